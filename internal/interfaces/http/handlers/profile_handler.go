package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/taskflow/internal/application/dto"
	"github.com/turtacn/taskflow/internal/application/service"
)

// ProfileHandler serves /profile for the authenticated caller.
type ProfileHandler struct {
	users service.UserAppService
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(users service.UserAppService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// Handle routes a request by method and path.
func (h *ProfileHandler) Handle(c *gin.Context) {
	if len(segments(c.Request.URL.Path)) != 1 {
		routeNotFound(c)
		return
	}
	switch c.Request.Method {
	case http.MethodGet:
		h.Get(c)
	case http.MethodPut, http.MethodPatch:
		h.Update(c)
	default:
		routeNotFound(c)
	}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	user, err := h.users.GetProfile(c.Request.Context(), caller.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h *ProfileHandler) Update(c *gin.Context) {
	caller, ok := identity(c)
	if !ok {
		return
	}
	var req dto.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), caller.UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully", "user": user})
}
