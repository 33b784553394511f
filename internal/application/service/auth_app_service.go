// Package service provides application-level services that orchestrate domain services and repositories
package service

import (
	"context"
	"time"

	"github.com/turtacn/taskflow/internal/application/dto"
	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/internal/domain/repository"
	domainService "github.com/turtacn/taskflow/internal/domain/service"
	"github.com/turtacn/taskflow/pkg/constants"
	"github.com/turtacn/taskflow/pkg/errors"
	"github.com/turtacn/taskflow/pkg/logger"
	"github.com/turtacn/taskflow/pkg/utils"
)

// AuthAppService defines the interface for the account application service
type AuthAppService interface {
	// Register creates a user account with the default role
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)

	// Login verifies credentials and issues an access token
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)

	// ForgotPassword issues a reset token when the email belongs to a user.
	// It never reveals whether the email is registered.
	ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error

	// ResetPassword consumes a reset token and replaces the password
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error
}

// authAppServiceImpl is the concrete implementation of AuthAppService
type authAppServiceImpl struct {
	users         repository.UserRepository
	hasher        domainService.PasswordHasher
	tokens        domainService.TokenService
	resetTokens   domainService.ResetTokenStore
	events        domainService.EventPublisher
	resetTokenTTL time.Duration
	logger        logger.Logger
}

// NewAuthAppService creates a new instance of AuthAppService
func NewAuthAppService(
	users repository.UserRepository,
	hasher domainService.PasswordHasher,
	tokens domainService.TokenService,
	resetTokens domainService.ResetTokenStore,
	events domainService.EventPublisher,
	resetTokenTTL time.Duration,
	log logger.Logger,
) AuthAppService {
	if resetTokenTTL <= 0 {
		resetTokenTTL = constants.PasswordResetTokenTTL
	}
	return &authAppServiceImpl{
		users:         users,
		hasher:        hasher,
		tokens:        tokens,
		resetTokens:   resetTokens,
		events:        events,
		resetTokenTTL: resetTokenTTL,
		logger:        log.WithComponent("auth_service"),
	}
}

func (s *authAppServiceImpl) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	email := utils.NormalizeEmail(req.Email)

	// 1. Reject duplicate email before paying for a bcrypt hash
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		s.logger.Info(ctx, "Registration with existing email", logger.String("email", utils.MaskEmail(email)))
		return nil, errors.ErrUserExists()
	} else if !errors.HasCode(err, errors.ErrCodeNotFound) {
		return nil, err
	}

	// 2. Hash password
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.logger.Error(ctx, "Failed to hash password", err)
		return nil, errors.ErrInternal("").WithCause(err)
	}

	// 3. Persist; a concurrent registration surfaces as user_exists from the repository
	user := models.NewUser(req.Username, email, req.Phone, hash)
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, models.NewEvent(constants.EventUserRegistered, user.ID, user.ID, map[string]string{
		"email": email,
	}))
	s.logger.Info(ctx, "User registered", logger.String("user_id", user.ID))

	return &dto.RegisterResponse{Message: "User registered successfully", UserID: user.ID}, nil
}

func (s *authAppServiceImpl) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	invalid := errors.ErrUnauthorized("Invalid email or password")

	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(req.Email))
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if !s.hasher.Compare(user.PasswordHash, req.Password) {
		s.logger.Warn(ctx, "Login with wrong password", logger.String("user_id", user.ID))
		return nil, invalid
	}

	token, expiresAt, err := s.tokens.Issue(ctx, user)
	if err != nil {
		s.logger.Error(ctx, "Failed to issue token", err, logger.String("user_id", user.ID))
		return nil, errors.ErrInternal("").WithCause(err)
	}

	return &dto.LoginResponse{
		Token:     token,
		TokenType: constants.TokenTypeBearer,
		ExpiresAt: expiresAt,
		User:      dto.ToUserResponse(user),
	}, nil
}

func (s *authAppServiceImpl) ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error {
	email := utils.NormalizeEmail(req.Email)
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			s.logger.Debug(ctx, "Password reset for unknown email", logger.String("email", utils.MaskEmail(email)))
			return nil
		}
		return err
	}

	token, err := utils.GenerateSecureToken(constants.PasswordResetTokenBytes)
	if err != nil {
		return errors.ErrInternal("").WithCause(err)
	}
	if err := s.resetTokens.Save(ctx, token, user.ID, s.resetTokenTTL); err != nil {
		s.logger.Error(ctx, "Failed to store reset token", err, logger.String("user_id", user.ID))
		return errors.ErrUnavailable("Password reset is temporarily unavailable").WithCause(err)
	}

	// The mailer consumes this event and delivers the token.
	s.publish(ctx, models.NewEvent(constants.EventPasswordResetRequested, user.ID, user.ID, map[string]string{
		"email":       email,
		"reset_token": token,
		"expires_in":  s.resetTokenTTL.String(),
	}))
	return nil
}

func (s *authAppServiceImpl) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	userID, ok, err := s.resetTokens.Consume(ctx, req.Token)
	if err != nil {
		s.logger.Error(ctx, "Failed to consume reset token", err)
		return errors.ErrUnavailable("Password reset is temporarily unavailable").WithCause(err)
	}
	if !ok {
		return errors.ErrInvalidRequest("invalid or expired reset token")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return errors.ErrInternal("").WithCause(err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.HasCode(err, errors.ErrCodeNotFound) {
			return errors.ErrInvalidRequest("invalid or expired reset token")
		}
		return err
	}

	s.publish(ctx, models.NewEvent(constants.EventPasswordReset, userID, userID, nil))
	s.logger.Info(ctx, "Password reset", logger.String("user_id", userID))
	return nil
}

func (s *authAppServiceImpl) publish(ctx context.Context, event models.Event) {
	publishEvent(ctx, s.events, s.logger, event)
}

// publishEvent is best effort: a broker failure never fails the request that caused the event.
func publishEvent(ctx context.Context, events domainService.EventPublisher, log logger.Logger, event models.Event) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, event); err != nil {
		log.Warn(ctx, "Failed to publish event",
			logger.String("event_type", string(event.Type)),
			logger.Error(err),
		)
	}
}
