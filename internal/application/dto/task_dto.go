package dto

import (
	"time"

	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/pkg/constants"
)

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	Title       string          `json:"title" binding:"required,min=1,max=255"`
	Description string          `json:"description" binding:"max=4096"`
	Priority    models.Priority `json:"priority" binding:"omitempty,priority"`
	DueDate     *time.Time      `json:"dueDate"`
}

// UpdateTaskRequest 更新任务请求；PUT 与 PATCH 均为部分更新
type UpdateTaskRequest struct {
	Title       *string          `json:"title" binding:"omitempty,min=1,max=255"`
	Description *string          `json:"description" binding:"omitempty,max=4096"`
	Completed   *bool            `json:"completed"`
	Priority    *models.Priority `json:"priority" binding:"omitempty,priority"`
	DueDate     *time.Time       `json:"dueDate"`
}

// ListTasksQuery 任务列表查询参数
type ListTasksQuery struct {
	Completed *bool  `form:"completed"`
	Priority  string `form:"priority" binding:"omitempty,priority"`
	SortBy    string `form:"sortBy" binding:"omitempty,oneof=createdAt dueDate priority title"`
	Order     int    `form:"order" binding:"omitempty,oneof=1 -1"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// TaskResponse 任务详情
type TaskResponse struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Completed   bool            `json:"completed"`
	Priority    models.Priority `json:"priority"`
	DueDate     *time.Time      `json:"dueDate,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// TaskEnvelope 单个任务的响应
type TaskEnvelope struct {
	Message string       `json:"message,omitempty"`
	Task    TaskResponse `json:"task"`
}

// TaskListResponse 任务列表响应
type TaskListResponse struct {
	Tasks      []TaskResponse `json:"tasks"`
	Pagination Pagination     `json:"pagination"`
}

// ToTaskResponse converts a task model.
func ToTaskResponse(t *models.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		Priority:    t.Priority,
		DueDate:     t.DueDate,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// ToTaskResponses converts a page of tasks.
func ToTaskResponses(tasks []*models.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, ToTaskResponse(t))
	}
	return out
}

// Filter converts the query into a repository filter, applying defaults.
func (q ListTasksQuery) Filter() models.TaskFilter {
	f := models.TaskFilter{
		Completed: q.Completed,
		Priority:  models.Priority(q.Priority),
		SortBy:    models.TaskSortField(q.SortBy),
		Order:     q.Order,
		Page:      q.Page,
		Limit:     q.Limit,
	}
	if f.SortBy == "" {
		f.SortBy = models.SortByCreatedAt
	}
	if f.Order == 0 {
		f.Order = -1
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.Limit == 0 {
		f.Limit = constants.DefaultPageSize
	}
	return f
}
