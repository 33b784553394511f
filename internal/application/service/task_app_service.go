package service

import (
	"context"
	"strings"

	"github.com/turtacn/taskflow/internal/application/dto"
	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/internal/domain/repository"
	domainService "github.com/turtacn/taskflow/internal/domain/service"
	"github.com/turtacn/taskflow/pkg/constants"
	"github.com/turtacn/taskflow/pkg/errors"
	"github.com/turtacn/taskflow/pkg/logger"
)

// TaskAppService manages the tasks of one owner. Every method is scoped to userID.
type TaskAppService interface {
	List(ctx context.Context, userID string, filter models.TaskFilter) (*dto.TaskListResponse, error)
	Get(ctx context.Context, userID, id string) (*dto.TaskResponse, error)
	Create(ctx context.Context, userID string, req *dto.CreateTaskRequest) (*dto.TaskResponse, error)
	Update(ctx context.Context, userID, id string, req *dto.UpdateTaskRequest) (*dto.TaskResponse, error)
	Delete(ctx context.Context, userID, id string) error
}

type taskAppServiceImpl struct {
	tasks  repository.TaskRepository
	events domainService.EventPublisher
	logger logger.Logger
}

// NewTaskAppService creates a new instance of TaskAppService
func NewTaskAppService(tasks repository.TaskRepository, events domainService.EventPublisher, log logger.Logger) TaskAppService {
	return &taskAppServiceImpl{
		tasks:  tasks,
		events: events,
		logger: log.WithComponent("task_service"),
	}
}

func (s *taskAppServiceImpl) List(ctx context.Context, userID string, filter models.TaskFilter) (*dto.TaskListResponse, error) {
	tasks, total, err := s.tasks.List(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	return &dto.TaskListResponse{
		Tasks:      dto.ToTaskResponses(tasks),
		Pagination: dto.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

func (s *taskAppServiceImpl) Get(ctx context.Context, userID, id string) (*dto.TaskResponse, error) {
	task, err := s.tasks.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	resp := dto.ToTaskResponse(task)
	return &resp, nil
}

func (s *taskAppServiceImpl) Create(ctx context.Context, userID string, req *dto.CreateTaskRequest) (*dto.TaskResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, errors.ErrInvalidRequest("Title is required").WithDetail("title", "required")
	}

	task := models.NewTask(userID, title, req.Description, req.Priority, req.DueDate)
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.events, s.logger, models.NewEvent(constants.EventTaskCreated, userID, task.ID, map[string]string{
		"title":    task.Title,
		"priority": string(task.Priority),
	}))
	resp := dto.ToTaskResponse(task)
	return &resp, nil
}

func (s *taskAppServiceImpl) Update(ctx context.Context, userID, id string, req *dto.UpdateTaskRequest) (*dto.TaskResponse, error) {
	task, err := s.tasks.FindByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, errors.ErrInvalidRequest("Title cannot be empty").WithDetail("title", "min")
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}
	if req.Priority != nil {
		task.Priority = *req.Priority
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.events, s.logger, models.NewEvent(constants.EventTaskUpdated, userID, task.ID, nil))
	resp := dto.ToTaskResponse(task)
	return &resp, nil
}

func (s *taskAppServiceImpl) Delete(ctx context.Context, userID, id string) error {
	if err := s.tasks.Delete(ctx, userID, id); err != nil {
		return err
	}
	publishEvent(ctx, s.events, s.logger, models.NewEvent(constants.EventTaskDeleted, userID, id, nil))
	return nil
}
