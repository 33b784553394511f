package dto

import (
	"time"

	"github.com/turtacn/taskflow/internal/domain/models"
)

// UserResponse 用户详情
type UserResponse struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// PublicUserResponse 公开的用户资料，不含联系方式
type PublicUserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UpdateProfileRequest 更新个人资料；未提供的字段保持不变
type UpdateProfileRequest struct {
	Username *string `json:"username" binding:"omitempty,min=1,max=64"`
	Phone    *string `json:"phone" binding:"omitempty,max=32"`
}

// UpdateRoleRequest 修改角色
type UpdateRoleRequest struct {
	Role models.Role `json:"role" binding:"required,oneof=user admin"`
}

// RandomUsersResponse 随机用户列表
type RandomUsersResponse struct {
	Users []PublicUserResponse `json:"users"`
	Count int                  `json:"count"`
}

// ToUserResponse converts a user model.
func ToUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ToPublicUsers converts users to their public profile.
func ToPublicUsers(users []*models.User) []PublicUserResponse {
	out := make([]PublicUserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, PublicUserResponse{ID: u.ID, Username: u.Username})
	}
	return out
}
