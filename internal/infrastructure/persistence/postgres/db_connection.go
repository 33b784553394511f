// Package postgres provides the relational persistence of taskflow: connection lifecycle
// and gorm-backed repositories. PostgreSQL is reached through the pgx driver; an embedded
// SQLite database can be selected for local runs.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/taskflow/internal/config"
	"github.com/turtacn/taskflow/internal/domain/models"
	"github.com/turtacn/taskflow/pkg/logger"
)

// DBConnection manages the database handle lifecycle.
type DBConnection struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	driver string
	logger logger.Logger
}

// NewDBConnection opens the database selected by cfg.Driver and performs an initial ping.
//
// Parameters:
//   - ctx: Context for connection timeout control
//   - cfg: Database configuration including driver, credentials, and pool settings
//   - log: Logger instance for connection lifecycle events
//
// Returns:
//   - *DBConnection: Initialized connection manager
//   - error: Connection establishment error if any
func NewDBConnection(ctx context.Context, cfg *config.DatabaseConfig, log logger.Logger) (*DBConnection, error) {
	log = log.WithComponent("database")
	gormCfg := &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		log.Info(ctx, "Opening embedded SQLite database", logger.String("path", cfg.SQLitePath))
		db, err = gorm.Open(sqlite.Open(cfg.SQLitePath), gormCfg)
	default:
		log.Info(ctx, "Initializing PostgreSQL connection pool",
			logger.String("host", cfg.Host),
			logger.Int("port", cfg.Port),
			logger.String("database", cfg.Database),
			logger.Int("max_open_conns", cfg.MaxOpenConns),
		)
		var connConfig *pgx.ConnConfig
		connConfig, err = pgx.ParseConfig(cfg.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to parse database connection string: %w", err)
		}
		db, err = gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: stdlib.OpenDB(*connConfig)}), gormCfg)
	}
	if err != nil {
		log.Error(ctx, "Failed to open database", err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn, err := wrap(db, cfg.Driver, log)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		conn.sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		conn.sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.sqlDB.Close()
		return nil, err
	}
	return conn, nil
}

// NewDBConnectionFromGorm wraps an already opened gorm handle.
func NewDBConnectionFromGorm(db *gorm.DB, log logger.Logger) (*DBConnection, error) {
	return wrap(db, db.Dialector.Name(), log)
}

func wrap(db *gorm.DB, driver string, log logger.Logger) (*DBConnection, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql.DB: %w", err)
	}
	return &DBConnection{db: db, sqlDB: sqlDB, driver: driver, logger: log}, nil
}

// DB returns the gorm handle used by repositories.
func (c *DBConnection) DB() *gorm.DB {
	return c.db
}

// AutoMigrate creates or updates the users and tasks tables and their indexes.
func (c *DBConnection) AutoMigrate(ctx context.Context) error {
	if err := c.db.WithContext(ctx).AutoMigrate(&models.User{}, &models.Task{}); err != nil {
		c.logger.Error(ctx, "Schema migration failed", err)
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	c.logger.Info(ctx, "Schema migration completed", logger.String("driver", c.driver))
	return nil
}

// Ping verifies database connectivity and responsiveness.
func (c *DBConnection) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	startTime := time.Now()
	if err := c.sqlDB.PingContext(pingCtx); err != nil {
		c.logger.Error(ctx, "Database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Warn if latency is high (> 100ms)
	if latency := time.Since(startTime); latency > 100*time.Millisecond {
		c.logger.Warn(ctx, "High database latency detected", logger.Int64("latency_ms", latency.Milliseconds()))
	}
	return nil
}

// Stats returns connection pool statistics.
func (c *DBConnection) Stats() sql.DBStats {
	return c.sqlDB.Stats()
}

// Close shuts down the connection pool.
func (c *DBConnection) Close() error {
	c.logger.Info(context.Background(), "Closing database connection pool",
		logger.Int("open_conns", c.sqlDB.Stats().OpenConnections),
	)
	return c.sqlDB.Close()
}
