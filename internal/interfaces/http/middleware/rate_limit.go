package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/turtacn/taskflow/internal/domain/service"
	"github.com/turtacn/taskflow/internal/infrastructure/monitoring"
	"github.com/turtacn/taskflow/internal/infrastructure/ratelimit"
	"github.com/turtacn/taskflow/pkg/constants"
	"github.com/turtacn/taskflow/pkg/errors"
	"github.com/turtacn/taskflow/pkg/logger"
)

// KeyFunc derives the limiter key of a request.
type KeyFunc func(c *gin.Context) string

// KeyByAddress keys requests by client address.
func KeyByAddress(c *gin.Context) string {
	return "addr:" + c.ClientIP()
}

// KeyByIdentity keys requests by the user of a valid bearer token, and by address otherwise.
// The api limiter runs before the guard, so the token is verified here without side effects;
// the guard still makes the authoritative decision.
func KeyByIdentity(tokens service.TokenService) KeyFunc {
	return func(c *gin.Context) string {
		raw := extractBearer(c.GetHeader(constants.HeaderAuthorization))
		if raw == "" {
			return KeyByAddress(c)
		}
		id, err := tokens.Verify(c.Request.Context(), raw)
		if err != nil || !id.Authenticated() {
			return KeyByAddress(c)
		}
		return "user:" + id.UserID
	}
}

// RateLimitGuard enforces one fixed-window policy.
type RateLimitGuard struct {
	limiter *ratelimit.FixedWindowLimiter
	scope   constants.RateLimitScope
	keyFn   KeyFunc
	enabled bool
	metrics *monitoring.Metrics
	logger  logger.Logger
	logGate *rate.Sometimes
}

// NewRateLimitGuard creates a guard. A disabled guard admits everything.
func NewRateLimitGuard(
	limiter *ratelimit.FixedWindowLimiter,
	scope constants.RateLimitScope,
	keyFn KeyFunc,
	enabled bool,
	metrics *monitoring.Metrics,
	log logger.Logger,
) *RateLimitGuard {
	return &RateLimitGuard{
		limiter: limiter,
		scope:   scope,
		keyFn:   keyFn,
		enabled: enabled,
		metrics: metrics,
		logger:  log.WithComponent("rate_limit"),
		logGate: &rate.Sometimes{First: 5, Interval: 10 * time.Second},
	}
}

// Check counts the request and reports whether it may continue. On rejection the 429
// response is written and the context aborted.
func (g *RateLimitGuard) Check(c *gin.Context) bool {
	if !g.enabled {
		return true
	}

	key := g.keyFn(c)
	d := g.limiter.Decide(key)

	h := c.Writer.Header()
	h.Set(constants.HeaderRateLimitLimit, strconv.Itoa(d.Limit))
	h.Set(constants.HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
	h.Set(constants.HeaderRateLimitReset, strconv.FormatInt(d.ResetAt.Unix(), 10))

	if d.Allowed {
		return true
	}

	retryAfter := int(math.Ceil(d.RetryAfter(g.limiter.Now()).Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	h.Set(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))

	g.metrics.RecordRateLimitHit(g.scope)
	g.logGate.Do(func() {
		g.logger.Warn(c.Request.Context(), "Rate limit exceeded",
			logger.String("scope", string(g.scope)),
			logger.String("key", key),
			logger.Int("limit", d.Limit),
			logger.Int("retry_after_s", retryAfter),
		)
	})

	abortWithError(c, errors.ErrRateLimitExceeded(retryAfter))
	return false
}

// Handler adapts Check to a gin middleware.
func (g *RateLimitGuard) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.Check(c) {
			return
		}
		c.Next()
	}
}

// StartJanitor sweeps expired windows until ctx is done.
func (g *RateLimitGuard) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval > 0 {
		g.limiter.StartJanitor(ctx, interval)
	}
}
