// Package middleware contains the gin middleware of the request pipeline.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/turtacn/taskflow/internal/application/dto"
	"github.com/turtacn/taskflow/pkg/errors"
)

// abortWithError writes the error body of appErr and stops the chain.
func abortWithError(c *gin.Context, appErr *errors.AppError) {
	_ = c.Error(appErr)
	c.AbortWithStatusJSON(appErr.HTTPStatus, dto.NewErrorResponse(appErr))
}
