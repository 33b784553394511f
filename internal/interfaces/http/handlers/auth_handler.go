package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/taskflow/internal/application/dto"
	"github.com/turtacn/taskflow/internal/application/service"
)

// AuthHandler handles the unauthenticated /auth routes.
type AuthHandler struct {
	authService service.AuthAppService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthAppService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	resp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ForgotPassword handles POST /auth/forgot-password. The answer does not depend on whether
// the email is registered.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ForgotPassword(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{
		Message: "If the email is registered, a password reset link has been sent",
	})
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ResetPassword(c.Request.Context(), &req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Password has been reset successfully"})
}
