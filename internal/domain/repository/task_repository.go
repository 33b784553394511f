package repository

import (
	"context"

	"github.com/turtacn/taskflow/internal/domain/models"
)

// TaskRepository 定义任务仓储接口
// 所有查询都限定在任务所有者 (userID) 范围内
// Every lookup is scoped to the owning user; a task of another owner is reported as not found.
type TaskRepository interface {
	// Create 保存新任务
	Create(ctx context.Context, task *models.Task) error

	// FindByID 查询单个任务
	FindByID(ctx context.Context, userID, id string) (*models.Task, error)

	// List 按过滤条件分页查询，返回当前页与总数
	List(ctx context.Context, userID string, filter models.TaskFilter) ([]*models.Task, int64, error)

	// Update 保存任务的全部可变字段
	Update(ctx context.Context, task *models.Task) error

	// Delete 删除单个任务
	Delete(ctx context.Context, userID, id string) error

	// DeleteByUser 删除某用户的全部任务，返回删除数量
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
