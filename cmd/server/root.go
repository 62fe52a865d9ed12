package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"accountd/internal/config"
	"accountd/internal/logging"
)

// Global flag for the YAML config file.
var configFile string

// NewRootCmd creates the root command. Without a subcommand it serves.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accountd",
		Short: "accountd - account and session service",
		Long: `accountd manages user accounts: registration, login with signed
session tokens, password reset, self-service profile edits and
administrator account management over a JSON HTTP API.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (YAML)")
	pf.String("env", "", "environment: dev, test or prod")
	pf.String("addr", "", "HTTP listen address")
	pf.String("public-url", "", "public base URL used in reset links")
	pf.String("dsn", "", "PostgreSQL connection string")
	pf.Bool("migrate", false, "apply pending migrations on start")
	pf.String("redis-addr", "", "Redis address for the shared token denylist")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: json or text")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCreateAdminCmd())

	return cmd
}

// loadConfig layers defaults, --config, APP_* variables and the flags set on cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	return logging.Setup("accountd", version, cfg.Log.Format, cfg.Log.Level, w)
}
