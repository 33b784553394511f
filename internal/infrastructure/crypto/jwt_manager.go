package crypto

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/internal/domain/service"
	"github.com/turtacn/taskflow/pkg/clock"
	apperrors "github.com/turtacn/taskflow/pkg/errors"
	"github.com/turtacn/taskflow/pkg/logger"
)

// Claims is the payload of an access token.
type Claims struct {
	UserID   string      `json:"userId"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTConfig configures the token manager.
type JWTConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

type jwtManagerImpl struct {
	cfg    JWTConfig
	clock  clock.Clock
	parser *jwt.Parser
	log    logger.Logger
}

// NewJWTManager creates an HS256 token manager. Verification uses clk for expiry so
// tests can age tokens without sleeping.
func NewJWTManager(cfg JWTConfig, clk clock.Clock, log logger.Logger) service.TokenService {
	if clk == nil {
		clk = clock.New()
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(clk.Now),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &jwtManagerImpl{
		cfg:    cfg,
		clock:  clk,
		parser: jwt.NewParser(opts...),
		log:    log.WithComponent("jwt"),
	}
}

// Issue creates and signs a token for user.
func (j *jwtManagerImpl) Issue(ctx context.Context, user *models.User) (string, time.Time, error) {
	now := j.clock.Now()
	expiresAt := now.Add(j.cfg.TTL)

	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    j.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.cfg.Secret)
	if err != nil {
		j.log.Error(ctx, "Failed to sign JWT", err, logger.String("user_id", user.ID))
		return "", time.Time{}, apperrors.ErrInternal("").WithCause(err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token string.
func (j *jwtManagerImpl) Verify(ctx context.Context, tokenString string) (models.ClientIdentity, error) {
	claims := &Claims{}
	token, err := j.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return j.cfg.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.ClientIdentity{}, apperrors.ErrUnauthorized("Token expired").WithCause(err)
		}
		return models.ClientIdentity{}, apperrors.ErrUnauthorized("").WithCause(err)
	}
	if !token.Valid || claims.UserID == "" || !claims.Role.Valid() {
		return models.ClientIdentity{}, apperrors.ErrUnauthorized("")
	}

	return models.ClientIdentity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
	}, nil
}
