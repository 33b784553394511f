package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/internal/domain/repository"
	"github.com/turtacn/taskflow/pkg/errors"
	"github.com/turtacn/taskflow/pkg/logger"
)

type userRepository struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB, log logger.Logger) repository.UserRepository {
	return &userRepository{db: db, logger: log.WithComponent("user_repository")}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	start := time.Now()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		r.logger.Warn(ctx, "Failed to create user", logger.Error(err), logger.String("email", user.Email))
		return mapDBErr(err, nil, errors.ErrUserExists())
	}
	r.logger.Debug(ctx, "User created",
		logger.String("user_id", user.ID),
		logger.Int64("latency_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, mapDBErr(err, errors.ErrNotFound("User"), nil)
	}
	return &u, nil
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, mapDBErr(err, errors.ErrNotFound("User"), nil)
	}
	return &u, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id, username, phone string) (*models.User, error) {
	return r.update(ctx, id, map[string]interface{}{
		"username":   username,
		"phone":      phone,
		"updated_at": time.Now().UTC(),
	})
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.update(ctx, id, map[string]interface{}{
		"password_hash": passwordHash,
		"updated_at":    time.Now().UTC(),
	})
	return err
}

func (r *userRepository) UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	return r.update(ctx, id, map[string]interface{}{
		"role":       role,
		"updated_at": time.Now().UTC(),
	})
}

func (r *userRepository) update(ctx context.Context, id string, values map[string]interface{}) (*models.User, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return nil, mapDBErr(res.Error, nil, nil)
	}
	if res.RowsAffected == 0 {
		return nil, errors.ErrNotFound("User")
	}
	return r.FindByID(ctx, id)
}

// Delete removes the user and their tasks atomically. When the user row is missing the
// task deletion is rolled back.
func (r *userRepository) Delete(ctx context.Context, id string) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := NewTaskRepository(tx, r.logger).DeleteByUser(ctx, id)
		if err != nil {
			return err
		}
		res := tx.Delete(&models.User{}, "id = ?", id)
		if res.Error != nil {
			return mapDBErr(res.Error, nil, nil)
		}
		if res.RowsAffected == 0 {
			return errors.ErrNotFound("User")
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info(ctx, "User deleted", logger.String("user_id", id), logger.Int64("tasks_removed", removed))
	return removed, nil
}

// Random 随机抽样；PostgreSQL 与 SQLite 均支持 RANDOM()
func (r *userRepository) Random(ctx context.Context, n int) ([]*models.User, error) {
	var users []*models.User
	if err := r.db.WithContext(ctx).Order("RANDOM()").Limit(n).Find(&users).Error; err != nil {
		return nil, mapDBErr(err, nil, nil)
	}
	return users, nil
}
