// Package constants defines system-wide constants for the taskflow service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Service Identity
// ================================================================================

const (
	// ServiceName is used for tracing resources and log fields
	ServiceName = "taskflow"

	// ConfigEnvPrefix is the prefix of environment overrides (TASKFLOW_SERVER_PORT, ...)
	ConfigEnvPrefix = "TASKFLOW"
)

// ================================================================================
// Role Constants
// ================================================================================

const (
	// RoleUser is the default role for registered accounts
	RoleUser = "user"

	// RoleAdmin grants access to the /users/{id} administration routes
	RoleAdmin = "admin"
)

// ================================================================================
// Token Constants
// ================================================================================

const (
	// TokenTypeBearer is the Authorization header scheme
	TokenTypeBearer = "Bearer"

	// AccessTokenDefaultTTL is the default lifetime of an issued token (1 hour)
	AccessTokenDefaultTTL = 1 * time.Hour

	// PasswordResetTokenTTL is the default lifetime of a password reset token
	PasswordResetTokenTTL = 1 * time.Hour

	// PasswordResetTokenBytes is the entropy of a reset token before hex encoding
	PasswordResetTokenBytes = 32

	// BcryptCost is the work factor for stored password hashes
	BcryptCost = 10
)

// ================================================================================
// Rate Limit Constants
// ================================================================================

// RateLimitScope names a limiter instance
type RateLimitScope string

const (
	// RateLimitScopeAuth guards the unauthenticated /auth namespace, keyed by address
	RateLimitScopeAuth RateLimitScope = "auth"

	// RateLimitScopeAPI guards every protected route, keyed by resolved identity
	RateLimitScopeAPI RateLimitScope = "api"
)

const (
	// AuthRateLimitMaxRequests is the default auth-namespace quota
	AuthRateLimitMaxRequests = 100

	// AuthRateLimitWindow is the default auth-namespace window
	AuthRateLimitWindow = 15 * time.Minute

	// APIRateLimitMaxRequests is the default protected-route quota
	APIRateLimitMaxRequests = 60

	// APIRateLimitWindow is the default protected-route window
	APIRateLimitWindow = 60 * time.Second

	// RateLimitJanitorInterval is how often idle windows are swept
	RateLimitJanitorInterval = 5 * time.Minute
)

// ================================================================================
// Cache Constants
// ================================================================================

const (
	// TaskCachePrefix is the resource type segment of task listing cache keys
	TaskCachePrefix = "tasks_"

	// TaskListCacheTTLSeconds is the default lifetime of a cached task listing
	TaskListCacheTTLSeconds = 60

	// CacheCleanupInterval is how often go-cache removes physically expired entries
	CacheCleanupInterval = 5 * time.Minute

	// PasswordResetKeyPrefix prefixes hashed reset tokens in Redis
	PasswordResetKeyPrefix = "pwreset:"
)

// TaskCacheNamespace returns the prefix shared by every cached listing of one owner.
// The trailing separator keeps "tasks_u1_" from matching keys of owner "u10".
func TaskCacheNamespace(userID string) string {
	return TaskCachePrefix + userID + "_"
}

// TaskCacheKey builds the key of one listing variant.
func TaskCacheKey(userID, variant string) string {
	return TaskCacheNamespace(userID) + variant
}

// ================================================================================
// Pagination Constants
// ================================================================================

const (
	DefaultPageSize    = 20
	MaxPageSize        = 100
	MaxRandomUsers     = 10
	DefaultRandomUsers = 1
)

// ================================================================================
// HTTP Header Constants
// ================================================================================

const (
	HeaderAuthorization      = "Authorization"
	HeaderRequestID          = "X-Request-ID"
	HeaderCache              = "X-Cache"
	HeaderRetryAfter         = "Retry-After"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// ================================================================================
// Event Constants
// ================================================================================

// EventType names a published domain event
type EventType string

const (
	EventUserRegistered         EventType = "user.registered"
	EventPasswordResetRequested EventType = "password.reset_requested"
	EventPasswordReset          EventType = "password.reset"
	EventTaskCreated            EventType = "task.created"
	EventTaskUpdated            EventType = "task.updated"
	EventTaskDeleted            EventType = "task.deleted"
	EventUserDeleted            EventType = "user.deleted"
	EventUserRoleChanged        EventType = "user.role_changed"
)

// ================================================================================
// Context Key Constants
// ================================================================================

// ContextKey represents keys used in context.Context
type ContextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyIdentity is the key for the resolved client identity
	ContextKeyIdentity ContextKey = "client_identity"
)

// GinKeyRouteName is the gin context key holding the dispatcher route that served a request.
const GinKeyRouteName = "route_name"
