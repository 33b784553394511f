// Package router assembles the request pipeline and the HTTP server.
package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/taskflow/internal/application/dto"
	"github.com/turtacn/taskflow/internal/config"
	"github.com/turtacn/taskflow/internal/domain/service"
	"github.com/turtacn/taskflow/internal/infrastructure/monitoring"
	"github.com/turtacn/taskflow/internal/interfaces/http/handlers"
	"github.com/turtacn/taskflow/internal/interfaces/http/middleware"
	"github.com/turtacn/taskflow/pkg/constants"
	apperrors "github.com/turtacn/taskflow/pkg/errors"
	"github.com/turtacn/taskflow/pkg/logger"
)

// Dependencies 路由器依赖
type Dependencies struct {
	Config   *config.Config
	Logger   logger.Logger
	Metrics  *monitoring.Metrics
	Gatherer prometheus.Gatherer
	Tracer   trace.Tracer
	Tokens   service.TokenService

	AuthLimiter *middleware.RateLimitGuard
	APILimiter  *middleware.RateLimitGuard

	Auth    *handlers.AuthHandler
	Tasks   *handlers.TaskHandler
	Profile *handlers.ProfileHandler
	Users   *handlers.UserHandler
	Health  *handlers.HealthHandler
}

// Router HTTP 路由器
type Router struct {
	engine     *gin.Engine
	dispatcher *Dispatcher
	deps       Dependencies
	server     *http.Server
}

// NewRouter builds the engine and registers every route.
func NewRouter(deps Dependencies) *Router {
	r := &Router{
		engine: gin.New(),
		deps:   deps,
		dispatcher: NewDispatcher(
			Route{Name: "tasks", Match: func(string) bool { return true }, Handler: deps.Tasks.Handle},
			Route{Name: "profile", Match: PathUnder("/profile"), Handler: deps.Profile.Handle},
			Route{Name: "random-users", Match: PathIs("/users/random"), Handler: deps.Users.Random},
			Route{Name: "admin-user", Match: PathPrefix("/users/"), Handler: deps.Users.Admin},
		),
	}
	// 仅信任显式配置的代理，否则 X-Forwarded-For 可被客户端随意伪造
	if err := r.engine.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		deps.Logger.Error(context.Background(), "Invalid trusted proxies, ignoring forwarded headers", err)
		_ = r.engine.SetTrustedProxies(nil)
	}
	r.setupRoutes()
	return r
}

// Engine exposes the gin engine, mainly for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Dispatcher exposes the post-auth dispatch table.
func (r *Router) Dispatcher() *Dispatcher {
	return r.dispatcher
}

func (r *Router) setupRoutes() {
	cfg := r.deps.Config
	log := r.deps.Logger

	// 全局中间件：可观测性在最外层，panic 恢复后的 500 同样计入指标与访问日志
	r.engine.Use(
		middleware.ObservabilityMiddleware(r.deps.Tracer, r.deps.Metrics, log),
		middleware.Recovery(log),
		middleware.CORS(&cfg.CORS),
	)

	// 运维路由（不经过限流与认证）
	r.engine.GET("/health", r.deps.Health.HealthCheck)
	r.engine.GET("/ready", r.deps.Health.ReadinessCheck)
	if r.deps.Gatherer != nil {
		r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.deps.Gatherer, promhttp.HandlerOpts{})))
	}
	if cfg.Server.PprofEnabled {
		pprof.Register(r.engine)
	}

	// 认证命名空间：auth 策略限流，无需令牌
	auth := r.engine.Group("/auth", r.deps.AuthLimiter.Handler())
	{
		auth.POST("/register", r.deps.Auth.Register)
		auth.POST("/login", r.deps.Auth.Login)
		auth.POST("/forgot-password", r.deps.Auth.ForgotPassword)
		auth.POST("/reset-password", r.deps.Auth.ResetPassword)
	}

	// 其余请求：api 策略限流 → 令牌校验 → 顺序分发
	r.engine.NoRoute(
		r.authNamespaceGate,
		r.deps.APILimiter.Handler(),
		middleware.RequireJWT(r.deps.Tokens, log),
		r.dispatcher.Dispatch,
	)
}

// authNamespaceGate answers unknown /auth paths. They still count against the auth policy and
// never reach the api limiter or the guard.
func (r *Router) authNamespaceGate(c *gin.Context) {
	path := c.Request.URL.Path
	if path != "/auth" && !PathPrefix("/auth/")(path) {
		c.Next()
		return
	}
	c.Set(constants.GinKeyRouteName, "auth")
	if !r.deps.AuthLimiter.Check(c) {
		return
	}
	appErr := apperrors.ErrRouteNotFound()
	c.AbortWithStatusJSON(appErr.HTTPStatus, dto.NewErrorResponse(appErr))
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (r *Router) Run(ctx context.Context) error {
	srvCfg := r.deps.Config.Server
	r.server = &http.Server{
		Addr:           srvCfg.Addr(),
		Handler:        r.engine,
		ReadTimeout:    time.Duration(srvCfg.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(srvCfg.WriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(srvCfg.IdleTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	errCh := make(chan error, 1)
	go func() {
		r.deps.Logger.Info(ctx, "Starting HTTP server", logger.String("address", srvCfg.Addr()))
		if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(srvCfg.ShutdownTimeout)*time.Second)
	defer cancel()
	r.deps.Logger.Info(shutdownCtx, "Shutting down HTTP server")
	if err := r.server.Shutdown(shutdownCtx); err != nil {
		r.deps.Logger.Error(shutdownCtx, "Server forced to shutdown", err)
		return err
	}
	r.deps.Logger.Info(shutdownCtx, "HTTP server stopped")
	return nil
}
