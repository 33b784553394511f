// Package repository 定义领域仓储接口
// Package repository defines the persistence contracts of the domain.
package repository

import (
	"context"

	"github.com/turtacn/taskflow/internal/domain/models"
)

// UserRepository 定义用户仓储接口
// 实现类：internal/infrastructure/persistence/postgres/user_repo_impl.go
type UserRepository interface {
	// Create 保存新用户；邮箱重复时返回 conflict 错误
	// Create stores a new user; a duplicate email yields a conflict AppError.
	Create(ctx context.Context, user *models.User) error

	// FindByID 根据用户 ID 查询；不存在时返回 not_found
	FindByID(ctx context.Context, id string) (*models.User, error)

	// FindByEmail 根据邮箱查询；不存在时返回 not_found
	FindByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdateProfile 更新用户名与电话
	UpdateProfile(ctx context.Context, id, username, phone string) (*models.User, error)

	// UpdatePassword 替换密码哈希
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// UpdateRole 修改角色
	UpdateRole(ctx context.Context, id string, role models.Role) (*models.User, error)

	// Delete 在同一事务中删除用户及其全部任务，返回删除的任务数
	Delete(ctx context.Context, id string) (int64, error)

	// Random 随机返回最多 n 个用户
	Random(ctx context.Context, n int) ([]*models.User, error)
}
