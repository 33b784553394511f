package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the application's configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Vault         VaultConfig         `mapstructure:"vault"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	RateLimit     RateLimitConfig     `mapstructure:"rate_limit"`
	Cache         CacheConfig         `mapstructure:"cache"`
	CORS          CORSConfig          `mapstructure:"cors"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	PasswordReset PasswordResetConfig `mapstructure:"password_reset"`
	Log           LogConfig           `mapstructure:"log"`
	Tracing       TracingConfig       `mapstructure:"tracing"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout     int    `mapstructure:"read_timeout" validate:"min=0"`  // in seconds
	WriteTimeout    int    `mapstructure:"write_timeout" validate:"min=0"` // in seconds
	IdleTimeout     int    `mapstructure:"idle_timeout" validate:"min=0"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" validate:"min=0"`
	PprofEnabled    bool   `mapstructure:"pprof_enabled"`
	// TrustedProxies 允许设置 X-Forwarded-For 的代理地址；为空时客户端地址取自连接
	TrustedProxies []string `mapstructure:"trusted_proxies" validate:"dive,ip|cidr"`
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	Host            string `mapstructure:"host" validate:"required_if=Driver postgres"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database" validate:"required_if=Driver postgres"`
	SSLMode         string `mapstructure:"ssl_mode"`
	SQLitePath      string `mapstructure:"sqlite_path" validate:"required_if=Driver sqlite"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // in minutes
	AutoMigrate     bool   `mapstructure:"auto_migrate"`
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Address  string `mapstructure:"address" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type VaultConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Address    string `mapstructure:"address" validate:"required_if=Enabled true"`
	Token      string `mapstructure:"token"`
	MountPath  string `mapstructure:"mount_path"`
	SecretPath string `mapstructure:"secret_path"`
	SecretKey  string `mapstructure:"secret_key"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
	TTL    int    `mapstructure:"ttl" validate:"min=1"` // in seconds
}

// PolicyConfig is one fixed-window limiter policy.
type PolicyConfig struct {
	MaxRequests int   `mapstructure:"max_requests" validate:"min=1"`
	WindowMS    int64 `mapstructure:"window_ms" validate:"min=1"`
}

// Window returns the policy window as a duration.
func (p PolicyConfig) Window() time.Duration {
	return time.Duration(p.WindowMS) * time.Millisecond
}

type RateLimitConfig struct {
	Enabled         bool         `mapstructure:"enabled"`
	Auth            PolicyConfig `mapstructure:"auth"`
	API             PolicyConfig `mapstructure:"api"`
	JanitorInterval int          `mapstructure:"janitor_interval"` // in seconds, 0 disables
}

type CacheConfig struct {
	TaskListTTL     int `mapstructure:"task_list_ttl" validate:"min=1"`    // in seconds
	CleanupInterval int `mapstructure:"cleanup_interval" validate:"min=0"` // in seconds
}

type CORSConfig struct {
	AllowOrigins     []string `mapstructure:"allow_origins" validate:"min=1"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"` // in seconds
}

type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	RequiredAcks int           `mapstructure:"required_acks"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Enabled reports whether events go to Kafka rather than the log.
func (c *KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0 && c.Topic != ""
}

type PasswordResetConfig struct {
	TokenTTL int `mapstructure:"token_ttl" validate:"min=1"` // in seconds
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint" validate:"required_if=Enabled true"`
	ServiceName    string  `mapstructure:"service_name"`
	Environment    string  `mapstructure:"environment"`
	SamplingRate   float64 `mapstructure:"sampling_rate" validate:"min=0,max=1"`
}

var validate = validator.New()

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.JWT.Secret == "" && !c.Vault.Enabled {
		return fmt.Errorf("invalid configuration: jwt.secret is required unless vault.enabled is set")
	}
	return nil
}
