package service

import (
	"context"
	"time"

	"github.com/turtacn/taskflow/internal/domain/models"
)

//go:generate mockery --name PasswordHasher --output mocks --outpkg mocks
// PasswordHasher hashes and verifies account passwords.
// PasswordHasher 负责密码哈希与校验。
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

//go:generate mockery --name TokenService --output mocks --outpkg mocks
// TokenService mints and verifies access tokens.
// TokenService 负责签发与校验访问令牌。
type TokenService interface {
	// Issue signs a token for user and returns it with its expiry.
	Issue(ctx context.Context, user *models.User) (token string, expiresAt time.Time, err error)

	// Verify checks signature and expiry and returns the identity encoded in the token.
	Verify(ctx context.Context, token string) (models.ClientIdentity, error)
}

//go:generate mockery --name ResetTokenStore --output mocks --outpkg mocks
// ResetTokenStore keeps single-use password reset tokens until they expire.
// ResetTokenStore 保存一次性密码重置令牌，过期自动失效。
type ResetTokenStore interface {
	// Save associates token with userID for ttl.
	Save(ctx context.Context, token, userID string, ttl time.Duration) error

	// Consume returns the user of token and removes it. ok is false when the token is
	// unknown or expired.
	Consume(ctx context.Context, token string) (userID string, ok bool, err error)
}

//go:generate mockery --name EventPublisher --output mocks --outpkg mocks
// EventPublisher emits domain events to downstream consumers (mailer, analytics).
// EventPublisher 将领域事件发送给下游消费者。
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
	Close() error
}
