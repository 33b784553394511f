package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/taskflow/internal/domain/service"
	"github.com/turtacn/taskflow/pkg/constants"
)

type resetTokenStore struct {
	rdb redis.UniversalClient
}

// NewResetTokenStore 创建密码重置令牌存储
// Only the SHA-256 digest of a token is stored; the key expires with the token.
func NewResetTokenStore(rdb redis.UniversalClient) service.ResetTokenStore {
	return &resetTokenStore{rdb: rdb}
}

func resetKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return constants.PasswordResetKeyPrefix + hex.EncodeToString(sum[:])
}

func (s *resetTokenStore) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, resetKey(token), userID, ttl).Err()
}

// Consume reads and deletes the key in one transaction so a token is usable once.
func (s *resetTokenStore) Consume(ctx context.Context, token string) (string, bool, error) {
	key := resetKey(token)
	pipe := s.rdb.TxPipeline()
	get := pipe.Get(ctx, key)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return "", false, err
	}

	userID, err := get.Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}
