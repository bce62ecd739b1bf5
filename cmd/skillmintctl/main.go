package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"skillmint/config"
	"skillmint/internal/app"
	"skillmint/internal/database"
	"skillmint/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "skillmintctl",
		Short:        "Operations tooling for the SkillMint money services",
		SilenceUsage: true,
	}
	root.AddCommand(migrateCmd(), seedCmd(), sweepCmd(), reconcileCmd())
	return root
}

func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New("skillmintctl", cfg.Log.Level), nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the schema and seed the platform account and coupons",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			db, err := database.NewDB(&cfg.Database)
			if err != nil {
				return err
			}
			platform, err := app.Migrate(db, cfg)
			if err != nil {
				return err
			}
			log.WithField("platform_user_id", platform.ID).Info("schema migrated")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Store the configured commission levels unless already set",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			db, err := database.NewDB(&cfg.Database)
			if err != nil {
				return err
			}
			if err := app.SeedSettings(db, cfg); err != nil {
				return err
			}
			log.Info("settings seeded")
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "sweep-orders",
		Short: "Fail pending orders and top-ups older than the order TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if ttl > 0 {
				cfg.Orders.TTL = ttl
			}
			a, err := app.Open(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			orders, topups, err := a.Services.Sweeper.SweepExpired(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d orders, %d top-ups\n", orders, topups)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "override ORDER_TTL")
	return cmd
}

func reconcileCmd() *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-run finalization for completed orders with outstanding effects",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			a, err := app.Open(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			n, err := a.Services.Reconciler.Run(ctx, batch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reconciled %d orders\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 100, "maximum tasks to process")
	return cmd
}
