package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/taskflow/internal/config"
	"github.com/turtacn/taskflow/internal/infrastructure/monitoring"
	"github.com/turtacn/taskflow/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/taskflow/pkg/logger"
)

var configFile string

// rootCmd represents the base command when `taskflow-admin` is called without any subcommands.
// rootCmd 是不带子命令调用 `taskflow-admin` 时的根命令。
var rootCmd = &cobra.Command{
	Use:   "taskflow-admin",
	Short: "A CLI tool for administering the taskflow service.",
	Long: `taskflow-admin performs maintenance tasks against the taskflow database,
such as schema migration, role management and minting tokens for operators.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file")
	rootCmd.AddCommand(newMigrateCmd(), newUserCmd(), newTokenCmd())
}

// Execute runs the root command and exits non-zero on error.
// Execute 解析命令行参数并执行对应子命令，出错时退出。
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what every subcommand needs: the loaded config, a logger and, on demand, the database.
type env struct {
	cfg *config.Config
	log logger.Logger
}

func loadEnv() (*env, error) {
	log, err := monitoring.NewZapLogger(&config.LogConfig{Level: "warn", Format: "console"})
	if err != nil {
		return nil, err
	}
	cfg, err := config.NewLoader(configFile, log).Load()
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log}, nil
}

func (e *env) openDB(ctx context.Context) (*postgres.DBConnection, error) {
	return postgres.NewDBConnection(ctx, &e.cfg.Database, e.log)
}
