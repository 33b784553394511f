package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/taskflow/pkg/constants"
)

// Role is the authorization role carried in the access token.
type Role string

const (
	RoleUser  Role = constants.RoleUser
	RoleAdmin Role = constants.RoleAdmin
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents a registered account.
type User struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username     string    `gorm:"size:64;not null" json:"username"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Phone        string    `gorm:"size:32" json:"phone"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         Role      `gorm:"size:16;not null;default:user" json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewUser creates a user with the default role.
func NewUser(username, email, phone, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: passwordHash,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
