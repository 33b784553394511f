// Command server runs the taskflow HTTP API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/turtacn/taskflow/internal/application/dto"
	appservice "github.com/turtacn/taskflow/internal/application/service"
	"github.com/turtacn/taskflow/internal/config"
	"github.com/turtacn/taskflow/internal/infrastructure/cache"
	"github.com/turtacn/taskflow/internal/infrastructure/crypto"
	"github.com/turtacn/taskflow/internal/infrastructure/events"
	"github.com/turtacn/taskflow/internal/infrastructure/monitoring"
	"github.com/turtacn/taskflow/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/taskflow/internal/infrastructure/persistence/redis"
	"github.com/turtacn/taskflow/internal/infrastructure/ratelimit"
	"github.com/turtacn/taskflow/internal/interfaces/http/handlers"
	"github.com/turtacn/taskflow/internal/interfaces/http/middleware"
	"github.com/turtacn/taskflow/internal/interfaces/http/router"
	"github.com/turtacn/taskflow/pkg/clock"
	"github.com/turtacn/taskflow/pkg/constants"
	"github.com/turtacn/taskflow/pkg/logger"
)

func main() {
	var configFile string
	cmd := &cobra.Command{
		Use:          "taskflow-server",
		Short:        "Run the taskflow HTTP API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "path to config file")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configFile string) error {
	// Logger for startup
	startupLogger, err := monitoring.NewZapLogger(&config.LogConfig{Level: "info"})
	if err != nil {
		return err
	}

	loader := config.NewLoader(configFile, startupLogger)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLogger, err := monitoring.NewZapLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = appLogger.Sync() }()

	// 仅日志级别支持热更新，其余配置需要重启
	loader.Watch(func(updated *config.Config) {
		if err := appLogger.SetLevel(updated.Log.Level); err != nil {
			appLogger.Error(ctx, "Failed to apply log level", err)
		}
	})

	tracing, err := monitoring.NewTracingManager(&cfg.Tracing, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.Shutdown(shutdownCtx)
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(registry)

	// Initialize database
	db, err := postgres.NewDBConnection(ctx, &cfg.Database, appLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// Initialize Redis
	redisConn, err := redis.NewRedisConnection(ctx, &cfg.Redis, appLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisConn.Close()

	// Signing secret comes from Vault when enabled
	var vaultClient crypto.VaultClient
	if cfg.Vault.Enabled {
		if vaultClient, err = crypto.NewVaultClient(&cfg.Vault, appLogger); err != nil {
			return err
		}
	}
	secret, err := crypto.LoadJWTSecret(ctx, vaultClient, &cfg.Vault, &cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load jwt secret: %w", err)
	}

	clk := clock.New()
	tokens := crypto.NewJWTManager(crypto.JWTConfig{
		Secret: secret,
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.TTL) * time.Second,
	}, clk, appLogger)

	publisher := events.NewPublisher(cfg.Kafka, metrics, appLogger)
	defer publisher.Close()

	// Repositories and application services
	userRepo := postgres.NewUserRepository(db.DB(), appLogger)
	taskRepo := postgres.NewTaskRepository(db.DB(), appLogger)

	authSvc := appservice.NewAuthAppService(
		userRepo,
		crypto.NewBcryptHasher(constants.BcryptCost),
		tokens,
		redis.NewResetTokenStore(redisConn.GetClient()),
		publisher,
		time.Duration(cfg.PasswordReset.TokenTTL)*time.Second,
		appLogger,
	)
	taskSvc := appservice.NewTaskAppService(taskRepo, publisher, appLogger)
	userSvc := appservice.NewUserAppService(userRepo, publisher, appLogger)

	listingCache := cache.NewResponseCache(clk, time.Duration(cfg.Cache.CleanupInterval)*time.Second, metrics)

	// Rate limiters
	authGuard := middleware.NewRateLimitGuard(
		ratelimit.NewFixedWindowLimiter(ratelimit.Policy{
			MaxRequests: cfg.RateLimit.Auth.MaxRequests,
			Window:      cfg.RateLimit.Auth.Window(),
		}, clk),
		constants.RateLimitScopeAuth, middleware.KeyByAddress, cfg.RateLimit.Enabled, metrics, appLogger,
	)
	apiGuard := middleware.NewRateLimitGuard(
		ratelimit.NewFixedWindowLimiter(ratelimit.Policy{
			MaxRequests: cfg.RateLimit.API.MaxRequests,
			Window:      cfg.RateLimit.API.Window(),
		}, clk),
		constants.RateLimitScopeAPI, middleware.KeyByIdentity(tokens), cfg.RateLimit.Enabled, metrics, appLogger,
	)
	janitor := time.Duration(cfg.RateLimit.JanitorInterval) * time.Second
	authGuard.StartJanitor(ctx, janitor)
	apiGuard.StartJanitor(ctx, janitor)

	if err := dto.RegisterValidators(); err != nil {
		return err
	}
	gin.SetMode(gin.ReleaseMode)

	r := router.NewRouter(router.Dependencies{
		Config:      cfg,
		Logger:      appLogger,
		Metrics:     metrics,
		Gatherer:    registry,
		Tracer:      tracing.Tracer(),
		Tokens:      tokens,
		AuthLimiter: authGuard,
		APILimiter:  apiGuard,
		Auth:        handlers.NewAuthHandler(authSvc),
		Tasks:       handlers.NewTaskHandler(taskSvc, listingCache, cfg.Cache.TaskListTTL, appLogger),
		Profile:     handlers.NewProfileHandler(userSvc),
		Users:       handlers.NewUserHandler(userSvc, listingCache),
		Health: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"database": db,
			"redis":    redisConn,
		}, appLogger),
	})

	appLogger.Info(ctx, "taskflow starting",
		logger.String("database", cfg.Database.Driver),
		logger.Bool("kafka", cfg.Kafka.Enabled()),
		logger.Bool("rate_limit", cfg.RateLimit.Enabled),
	)
	return r.Run(ctx)
}
