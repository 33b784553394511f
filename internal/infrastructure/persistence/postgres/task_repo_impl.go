package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/internal/domain/repository"
	"github.com/turtacn/taskflow/pkg/constants"
	"github.com/turtacn/taskflow/pkg/errors"
	"github.com/turtacn/taskflow/pkg/logger"
)

type taskRepository struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewTaskRepository 创建任务仓储
func NewTaskRepository(db *gorm.DB, log logger.Logger) repository.TaskRepository {
	return &taskRepository{db: db, logger: log.WithComponent("task_repository")}
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		r.logger.Warn(ctx, "Failed to create task", logger.Error(err), logger.String("user_id", task.UserID))
		return mapDBErr(err, nil, errors.ErrConflict("Task already exists"))
	}
	return nil
}

func (r *taskRepository) FindByID(ctx context.Context, userID, id string) (*models.Task, error) {
	var t models.Task
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&t).Error
	if err != nil {
		return nil, mapDBErr(err, errors.ErrNotFound("Task"), nil)
	}
	return &t, nil
}

func (r *taskRepository) List(ctx context.Context, userID string, filter models.TaskFilter) ([]*models.Task, int64, error) {
	start := time.Now()
	q := r.db.WithContext(ctx).Model(&models.Task{}).Where("user_id = ?", userID)
	if filter.Completed != nil {
		q = q.Where("completed = ?", *filter.Completed)
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", filter.Priority)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, mapDBErr(err, nil, nil)
	}

	column, ok := filter.SortBy.Column()
	if !ok {
		column = "created_at"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = constants.DefaultPageSize
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	var tasks []*models.Task
	err := q.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: filter.Order < 0}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, 0, mapDBErr(err, nil, nil)
	}

	r.logger.Debug(ctx, "Tasks listed",
		logger.String("user_id", userID),
		logger.Int("count", len(tasks)),
		logger.Int64("total", total),
		logger.Int64("latency_ms", time.Since(start).Milliseconds()),
	)
	return tasks, total, nil
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ? AND user_id = ?", task.ID, task.UserID).
		Select("title", "description", "completed", "priority", "due_date", "updated_at").
		Updates(task)
	if res.Error != nil {
		return mapDBErr(res.Error, nil, nil)
	}
	if res.RowsAffected == 0 {
		return errors.ErrNotFound("Task")
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Task{})
	if res.Error != nil {
		return mapDBErr(res.Error, nil, nil)
	}
	if res.RowsAffected == 0 {
		return errors.ErrNotFound("Task")
	}
	return nil
}

func (r *taskRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Task{})
	if res.Error != nil {
		return 0, mapDBErr(res.Error, nil, nil)
	}
	return res.RowsAffected, nil
}
