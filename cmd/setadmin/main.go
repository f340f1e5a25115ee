// Command setadmin grants or revokes the admin role for a user id in the
// profiles table. It reads the same environment as the server.
//
//	setadmin <user-id> [--email a@b.c] [--revoke]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/engibriefs-store/internal/config"
	"github.com/tbourn/engibriefs-store/internal/domain"
	"github.com/tbourn/engibriefs-store/internal/repo"
	"github.com/tbourn/engibriefs-store/internal/services"
	"github.com/tbourn/engibriefs-store/internal/sysutil"
)

func main() {
	_ = godotenv.Load()
	log.Logger = sysutil.NewLogger(os.Stderr, true, "setadmin")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openDB).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// openDB connects with the server's DB settings and brings the schema up
// to date so the profiles table exists on a fresh database.
func openDB() (*gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	sysutil.SetLogLevel(cfg.LogLevel)
	db, err := repo.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func newRootCmd(open func() (*gorm.DB, error)) *cobra.Command {
	var (
		email  string
		revoke bool
	)
	cmd := &cobra.Command{
		Use:   "setadmin <user-id>",
		Short: "Grant or revoke the admin role for a user",
		Long: `Grant or revoke the admin role for a user.

The user id is the subject of the user's access token. A profile is
created when the user has never called the API.

Examples:
  setadmin 6f1c0e1e-4b7a-4c1e-9d55-0a4d0b1f2c3d --email ops@example.com
  setadmin 6f1c0e1e-4b7a-4c1e-9d55-0a4d0b1f2c3d --revoke`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			role := domain.RoleAdmin
			if revoke {
				role = domain.RoleUser
			}
			accounts := &services.AccountService{DB: db}
			p, err := accounts.SetRole(cmd.Context(), args[0], email, role)
			if err != nil {
				return fmt.Errorf("set role: %w", err)
			}
			log.Info().Str("user_id", p.ID).Str("role", p.Role).Msg("role updated")
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID, p.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email stored when the profile is created")
	cmd.Flags().BoolVar(&revoke, "revoke", false, "demote the user back to the user role")
	return cmd
}
