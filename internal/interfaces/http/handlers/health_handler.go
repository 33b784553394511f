package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/taskflow/pkg/logger"
)

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	deps    map[string]Pinger
	timeout time.Duration
	log     logger.Logger
}

// NewHealthHandler creates a new HealthHandler. deps maps a check name to its dependency;
// nil entries are skipped.
func NewHealthHandler(deps map[string]Pinger, log logger.Logger) *HealthHandler {
	return &HealthHandler{deps: deps, timeout: 3 * time.Second, log: log.WithComponent("health")}
}

// HealthCheck godoc
// @Summary      Liveness Check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// ReadinessCheck godoc
// @Summary      Readiness Check
// @Description  Checks every dependency in parallel; any failure answers 503.
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	checks := h.performChecks(c.Request.Context())

	status, httpStatus := "ready", http.StatusOK
	for _, result := range checks {
		if result != "ok" {
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

func (h *HealthHandler) performChecks(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.deps))
		g      errgroup.Group
	)
	for name, dep := range h.deps {
		if dep == nil {
			continue
		}
		name, dep := name, dep
		g.Go(func() error {
			result := "ok"
			if err := dep.Ping(ctx); err != nil {
				h.log.Warn(ctx, "Readiness check failed", logger.String("check", name), logger.Error(err))
				result = "unavailable"
			}
			mu.Lock()
			checks[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return checks
}
