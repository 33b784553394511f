// Package utils provides small helpers shared across packages.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
)

// ================================================================================
// Type Conversion
// ================================================================================

// StringToInt converts string to int with default value
func StringToInt(s string, defaultValue int) int {
	if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return i
	}
	return defaultValue
}

// ClampInt bounds v to [min, max].
func ClampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ================================================================================
// Random Tokens
// ================================================================================

// GenerateSecureToken returns n random bytes hex encoded.
func GenerateSecureToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ================================================================================
// Data Masking/Obfuscation
// ================================================================================

// MaskEmail masks email address (e.g., "test@example.com" -> "t**t@example.com")
func MaskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***"
	}

	localPart := parts[0]
	domain := parts[1]

	if len(localPart) <= 2 {
		return strings.Repeat("*", len(localPart)) + "@" + domain
	}

	masked := string(localPart[0]) + strings.Repeat("*", len(localPart)-2) + string(localPart[len(localPart)-1])
	return masked + "@" + domain
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
