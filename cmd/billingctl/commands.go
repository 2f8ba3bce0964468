package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bizflow/backend/internal/app"
	"github.com/bizflow/backend/internal/config"
	"github.com/bizflow/backend/internal/database"
	"github.com/bizflow/backend/internal/jobs"
	"github.com/bizflow/backend/internal/logging"
	"github.com/bizflow/backend/internal/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	renewCmd          = sweepCommand(jobs.SweepRenewals, "Charge subscriptions whose period ends within the renewal window", "renew")
	retryCmd          = sweepCommand(jobs.SweepRetries, "Retry overdue payments whose retry date has passed", "retry")
	statusSweepCmd    = sweepCommand(jobs.SweepStatus, "Recompute and persist every subscription status")
	trialRemindersCmd = sweepCommand(jobs.SweepTrialReminders, "Send reminders for trials ending soon")
)

var accessCmd = &cobra.Command{
	Use:   "access <business-id>",
	Short: "Evaluate the access level of one business",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		businessID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid business id: %w", err)
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			result, err := a.Status.CheckAccess(ctx, businessID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		db, err := database.InitDB(cfg.Database)
		if err != nil {
			return err
		}
		defer database.Close(db)
		if err := database.Migrate(db); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <email>",
	Short: "Issue an admin token for the billing admin API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		token, err := utils.GenerateToken(cfg.JWT.Secret, args[0], utils.RoleAdmin, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
}

func sweepCommand(name, short string, aliases ...string) *cobra.Command {
	return &cobra.Command{
		Use:     name,
		Aliases: aliases,
		Short:   short,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				summary, err := a.Runner.Run(ctx, name)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{"sweep": name, "summary": summary})
			})
		},
	}
}

func loadConfig() *config.Config {
	cfg := config.LoadConfig()
	logging.Init(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level, Component: "billingctl"})
	return cfg
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
