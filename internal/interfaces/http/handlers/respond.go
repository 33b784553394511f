// Package handlers contains the HTTP handlers that run behind the request pipeline.
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/taskflow/internal/application/dto"
	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/pkg/errors"
)

// respondError maps err to its HTTP response. Unknown errors become a generic 500.
func respondError(c *gin.Context, err error) {
	appErr := errors.FromError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus, dto.NewErrorResponse(appErr))
}

// bindJSON decodes the body into obj and answers 400 when it is malformed or invalid.
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondError(c, invalidInput("Invalid request body", err))
		return false
	}
	return true
}

func invalidInput(message string, err error) *errors.AppError {
	appErr := errors.ErrInvalidRequest(message).WithCause(err)
	for field, tag := range dto.ValidationDetails(err) {
		appErr = appErr.WithDetail(field, tag)
	}
	return appErr
}

// identity returns the caller resolved by the auth guard.
func identity(c *gin.Context) (models.ClientIdentity, bool) {
	id, ok := models.IdentityFromContext(c.Request.Context())
	if !ok || !id.Authenticated() {
		respondError(c, errors.ErrUnauthorized(""))
		return models.ClientIdentity{}, false
	}
	return id, true
}

// segments splits a request path into its non-empty parts.
func segments(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// routeNotFound answers unknown paths behind the guard.
func routeNotFound(c *gin.Context) {
	respondError(c, errors.ErrRouteNotFound())
}
