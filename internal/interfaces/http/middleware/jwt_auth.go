package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/internal/domain/service"
	"github.com/turtacn/taskflow/pkg/constants"
	"github.com/turtacn/taskflow/pkg/errors"
	"github.com/turtacn/taskflow/pkg/logger"
)

// extractBearer extracts the token from the Authorization header.
func extractBearer(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return ""
	}
	return parts[1]
}

// RequireJWT is a middleware to protect routes that require a valid JWT.
// Every failure yields the same 401 body; the reason is only logged.
func RequireJWT(tokens service.TokenService, log logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("auth_guard")
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		tokenStr := extractBearer(c.GetHeader(constants.HeaderAuthorization))
		if tokenStr == "" {
			log.Debug(ctx, "Missing or malformed bearer token", logger.String("path", c.Request.URL.Path))
			abortWithError(c, errors.ErrUnauthorized(""))
			return
		}

		identity, err := tokens.Verify(ctx, tokenStr)
		if err != nil {
			log.Info(ctx, "Token rejected", logger.Error(err), logger.String("client_ip", c.ClientIP()))
			abortWithError(c, errors.ErrUnauthorized(""))
			return
		}

		identity.SourceAddress = c.ClientIP()
		c.Request = c.Request.WithContext(models.ContextWithIdentity(ctx, identity))
		c.Next()
	}
}

// Identity returns the identity attached by RequireJWT.
func Identity(c *gin.Context) (models.ClientIdentity, bool) {
	return models.IdentityFromContext(c.Request.Context())
}
