package service

import (
	"context"

	"github.com/turtacn/taskflow/internal/application/dto"
	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/internal/domain/repository"
	domainService "github.com/turtacn/taskflow/internal/domain/service"
	"github.com/turtacn/taskflow/pkg/constants"
	"github.com/turtacn/taskflow/pkg/errors"
	"github.com/turtacn/taskflow/pkg/logger"
)

// UserAppService covers the caller's profile, public random profiles and admin user management.
type UserAppService interface {
	GetProfile(ctx context.Context, userID string) (*dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
	RandomUsers(ctx context.Context, count int) (*dto.RandomUsersResponse, error)

	GetUser(ctx context.Context, id string) (*dto.UserResponse, error)
	// DeleteUser removes the user and all of their tasks; it returns the number of tasks removed.
	DeleteUser(ctx context.Context, actorID, id string) (int64, error)
	UpdateRole(ctx context.Context, actorID, id string, role models.Role) (*dto.UserResponse, error)
}

type userAppServiceImpl struct {
	users  repository.UserRepository
	events domainService.EventPublisher
	logger logger.Logger
}

// NewUserAppService creates a new instance of UserAppService
func NewUserAppService(
	users repository.UserRepository,
	events domainService.EventPublisher,
	log logger.Logger,
) UserAppService {
	return &userAppServiceImpl{
		users:  users,
		events: events,
		logger: log.WithComponent("user_service"),
	}
}

func (s *userAppServiceImpl) GetProfile(ctx context.Context, userID string) (*dto.UserResponse, error) {
	return s.GetUser(ctx, userID)
}

func (s *userAppServiceImpl) UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	current, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	username, phone := current.Username, current.Phone
	if req.Username != nil {
		username = *req.Username
	}
	if req.Phone != nil {
		phone = *req.Phone
	}

	updated, err := s.users.UpdateProfile(ctx, userID, username, phone)
	if err != nil {
		return nil, err
	}
	resp := dto.ToUserResponse(updated)
	return &resp, nil
}

func (s *userAppServiceImpl) RandomUsers(ctx context.Context, count int) (*dto.RandomUsersResponse, error) {
	if count < 1 || count > constants.MaxRandomUsers {
		return nil, errors.ErrInvalidRequest("count must be between 1 and 10")
	}
	users, err := s.users.Random(ctx, count)
	if err != nil {
		return nil, err
	}
	public := dto.ToPublicUsers(users)
	return &dto.RandomUsersResponse{Users: public, Count: len(public)}, nil
}

func (s *userAppServiceImpl) GetUser(ctx context.Context, id string) (*dto.UserResponse, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := dto.ToUserResponse(user)
	return &resp, nil
}

func (s *userAppServiceImpl) DeleteUser(ctx context.Context, actorID, id string) (int64, error) {
	if actorID == id {
		return 0, errors.ErrForbidden("Administrators cannot delete their own account")
	}

	removed, err := s.users.Delete(ctx, id)
	if err != nil {
		return 0, err
	}

	s.logger.Info(ctx, "User deleted by admin",
		logger.String("actor_id", actorID),
		logger.String("user_id", id),
		logger.Int64("tasks_removed", removed),
	)
	publishEvent(ctx, s.events, s.logger, models.NewEvent(constants.EventUserDeleted, id, id, map[string]string{
		"actor_id": actorID,
	}))
	return removed, nil
}

func (s *userAppServiceImpl) UpdateRole(ctx context.Context, actorID, id string, role models.Role) (*dto.UserResponse, error) {
	if !role.Valid() {
		return nil, errors.ErrInvalidRequest("role must be user or admin")
	}
	if actorID == id && role != models.RoleAdmin {
		return nil, errors.ErrForbidden("Administrators cannot demote themselves")
	}

	updated, err := s.users.UpdateRole(ctx, id, role)
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.events, s.logger, models.NewEvent(constants.EventUserRoleChanged, id, id, map[string]string{
		"actor_id": actorID,
		"role":     string(role),
	}))
	resp := dto.ToUserResponse(updated)
	return &resp, nil
}
