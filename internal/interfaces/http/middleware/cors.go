package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/turtacn/taskflow/internal/config"
	"github.com/turtacn/taskflow/pkg/constants"
)

// CORS 跨域准入
// Preflight requests are answered with 204 and disallowed origins with 403; neither reaches
// the rate limiter.
func CORS(cfg *config.CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", constants.HeaderAuthorization, constants.HeaderRequestID,
		},
		ExposeHeaders: []string{
			constants.HeaderRequestID, constants.HeaderCache, constants.HeaderRetryAfter,
			constants.HeaderRateLimitLimit, constants.HeaderRateLimitRemaining, constants.HeaderRateLimitReset,
		},
		OptionsResponseStatusCode: http.StatusNoContent,
		MaxAge:                    time.Duration(cfg.MaxAge) * time.Second,
	}

	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			c.AllowAllOrigins = true
		}
	}
	if !c.AllowAllOrigins {
		c.AllowOrigins = cfg.AllowOrigins
		c.AllowCredentials = cfg.AllowCredentials
	}
	return cors.New(c)
}
