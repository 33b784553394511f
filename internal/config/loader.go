package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/taskflow/pkg/constants"
	"github.com/turtacn/taskflow/pkg/logger"
)

// Loader reads the configuration from file, environment variables and defaults, and can
// watch the file for changes.
type Loader struct {
	v   *viper.Viper
	log logger.Logger
}

// NewLoader creates a Loader. When configFile is empty, config.yaml is searched in
// /etc/taskflow/ and the working directory.
func NewLoader(configFile string, log logger.Logger) *Loader {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/taskflow/")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(constants.ConfigEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, log: log.WithComponent("config")}
}

// Load reads and validates the configuration. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		l.log.Info(context.Background(), "No config file found, using defaults and environment")
	}
	return l.decode()
}

// Watch invokes fn with the new configuration every time the config file changes and
// still validates. Invalid edits are logged and ignored.
func (l *Loader) Watch(fn func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			l.log.Error(context.Background(), "Ignoring invalid config change", err, logger.String("file", e.Name))
			return
		}
		l.log.Info(context.Background(), "Config reloaded", logger.String("file", e.Name), logger.String("op", e.Op.String()))
		fn(cfg)
	})
	l.v.WatchConfig()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)
	v.SetDefault("server.idle_timeout", 60)
	v.SetDefault("server.shutdown_timeout", 30)
	v.SetDefault("server.pprof_enabled", false)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "taskflow")
	v.SetDefault("database.database", "taskflow")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.sqlite_path", "taskflow.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.mount_path", "secret")
	v.SetDefault("vault.secret_path", "taskflow/jwt")
	v.SetDefault("vault.secret_key", "secret")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", constants.ServiceName)
	v.SetDefault("jwt.ttl", int(constants.AccessTokenDefaultTTL.Seconds()))

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.auth.max_requests", constants.AuthRateLimitMaxRequests)
	v.SetDefault("rate_limit.auth.window_ms", constants.AuthRateLimitWindow.Milliseconds())
	v.SetDefault("rate_limit.api.max_requests", constants.APIRateLimitMaxRequests)
	v.SetDefault("rate_limit.api.window_ms", constants.APIRateLimitWindow.Milliseconds())
	v.SetDefault("rate_limit.janitor_interval", int(constants.RateLimitJanitorInterval.Seconds()))

	v.SetDefault("cache.task_list_ttl", constants.TaskListCacheTTLSeconds)
	v.SetDefault("cache.cleanup_interval", int(constants.CacheCleanupInterval.Seconds()))

	v.SetDefault("cors.allow_origins", []string{"*"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 43200)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "taskflow.events")
	v.SetDefault("kafka.required_acks", 1)
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "100ms")
	v.SetDefault("kafka.write_timeout", "5s")

	v.SetDefault("password_reset.token_ttl", int(constants.PasswordResetTokenTTL.Seconds()))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "")
	v.SetDefault("tracing.service_name", constants.ServiceName)
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.sampling_rate", 1.0)
}
