package models

import (
	"context"

	"github.com/turtacn/taskflow/pkg/constants"
)

// ClientIdentity is the principal a request acts as. Before authentication only
// SourceAddress is set.
type ClientIdentity struct {
	UserID        string `json:"userId,omitempty"`
	Username      string `json:"username,omitempty"`
	Role          Role   `json:"role,omitempty"`
	SourceAddress string `json:"sourceAddress"`
}

// Authenticated reports whether the identity carries verified claims.
func (i ClientIdentity) Authenticated() bool {
	return i.UserID != ""
}

// IsAdmin reports whether the identity holds the admin role.
func (i ClientIdentity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// ContextWithIdentity returns a copy of ctx carrying id.
func ContextWithIdentity(ctx context.Context, id ClientIdentity) context.Context {
	return context.WithValue(ctx, constants.ContextKeyIdentity, id)
}

// IdentityFromContext returns the identity attached by the auth guard.
func IdentityFromContext(ctx context.Context) (ClientIdentity, bool) {
	id, ok := ctx.Value(constants.ContextKeyIdentity).(ClientIdentity)
	return id, ok
}
