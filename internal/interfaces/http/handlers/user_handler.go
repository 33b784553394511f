package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/taskflow/internal/application/dto"
	"github.com/turtacn/taskflow/internal/application/service"
	"github.com/turtacn/taskflow/pkg/constants"
	"github.com/turtacn/taskflow/pkg/errors"
	"github.com/turtacn/taskflow/pkg/utils"
)

// UserHandler serves /users/random and the admin /users/{id} routes.
type UserHandler struct {
	users service.UserAppService
	cache ListingCache
}

// NewUserHandler creates a new UserHandler. cache is used to drop the task listings of a
// deleted user.
func NewUserHandler(users service.UserAppService, cache ListingCache) *UserHandler {
	return &UserHandler{users: users, cache: cache}
}

// Random returns up to count public profiles.
func (h *UserHandler) Random(c *gin.Context) {
	if c.Request.Method != http.MethodGet {
		routeNotFound(c)
		return
	}
	count := utils.StringToInt(c.DefaultQuery("count", ""), constants.DefaultRandomUsers)

	resp, err := h.users.RandomUsers(c.Request.Context(), count)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Admin routes /users/{id} and /users/{id}/role. Only administrators pass.
func (h *UserHandler) Admin(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	if !caller.IsAdmin() {
		respondError(c, errors.ErrForbidden("Admin access required"))
		return
	}

	segs := segments(c.Request.URL.Path)
	switch {
	case len(segs) == 2:
		switch c.Request.Method {
		case http.MethodGet:
			h.getUser(c, segs[1])
		case http.MethodDelete:
			h.deleteUser(c, caller.UserID, segs[1])
		default:
			routeNotFound(c)
		}
	case len(segs) == 3 && segs[2] == "role" && c.Request.Method == http.MethodPatch:
		h.updateRole(c, caller.UserID, segs[1])
	default:
		routeNotFound(c)
	}
}

func (h *UserHandler) getUser(c *gin.Context, id string) {
	user, err := h.users.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) deleteUser(c *gin.Context, actorID, id string) {
	removed, err := h.users.DeleteUser(c.Request.Context(), actorID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	h.cache.Invalidate(constants.TaskCacheNamespace(id))
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully", "tasksDeleted": removed})
}

func (h *UserHandler) updateRole(c *gin.Context, actorID, id string) {
	var req dto.UpdateRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.UpdateRole(c.Request.Context(), actorID, id, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role updated successfully", "user": user})
}
