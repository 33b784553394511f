package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/taskflow/pkg/errors"
	"github.com/turtacn/taskflow/pkg/logger"
)

// Recovery 捕获 panic，记录日志并返回通用 500
func Recovery(log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("recovery")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error(c.Request.Context(), "Panic recovered", fmt.Errorf("%v", r),
					logger.String("path", c.Request.URL.Path),
					logger.String("stack", string(debug.Stack())),
				)
				if c.Writer.Written() {
					c.Abort()
					return
				}
				abortWithError(c, errors.ErrInternal(""))
			}
		}()
		c.Next()
	}
}
