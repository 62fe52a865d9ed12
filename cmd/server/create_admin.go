package main

import (
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewCreateAdminCmd creates the create-admin subcommand. Flags fall back to
// the admin.bootstrap_* settings.
func NewCreateAdminCmd() *cobra.Command {
	var email, username, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator, or promote an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.DB.DSN == "" {
				return oops.Code("CONFIG_INVALID").Errorf("APP_DB_DSN (or --dsn) is required")
			}
			if email == "" {
				email = cfg.Admin.BootstrapEmail
			}
			if username == "" {
				username = cfg.Admin.BootstrapUsername
			}
			if username == "" {
				username = "admin"
			}
			if password == "" {
				password = cfg.Admin.BootstrapPassword
			}
			if strings.TrimSpace(email) == "" || password == "" {
				return oops.Code("CONFIG_INVALID").Errorf("--email and --password (or APP_ADMIN_BOOTSTRAP_*) are required")
			}

			logger := newLogger(cfg, cmd.ErrOrStderr())
			a, err := openDeps(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			acct, created, err := a.admin.EnsureAdmin(cmd.Context(), email, username, password)
			if err != nil {
				return err
			}
			if created {
				cmd.Printf("created admin %s (id %d)\n", acct.Email, acct.ID)
			} else {
				cmd.Printf("%s (id %d) is an active admin\n", acct.Email, acct.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&username, "username", "", "admin username (default admin)")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	return cmd
}
