package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/adapters/clock"
	"github.com/tollgate/tollgate/adapters/metrics"
	"github.com/tollgate/tollgate/adapters/sqlite"
	"github.com/tollgate/tollgate/app"
	"github.com/tollgate/tollgate/config"
)

var billingCmd = &cobra.Command{
	Use:   "billing",
	Short: "Run billing by hand",
	Long: `Run billing operations outside the server's background cycle.

The running server issues invoices and reconciles delinquency flags
every billing interval. This command does one cycle immediately,
which is useful after marking invoices paid or when the server
is not running.

Examples:
  tollgate billing run`,
}

var billingRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one billing cycle now",
	Long: `Execute one billing cycle immediately.

Issues invoices for the prior calendar month (skipped if already
issued), flags accounts with overdue unpaid invoices as delinquent,
and clears the flag on accounts that have settled up.`,
	RunE: runBillingRun,
}

func init() {
	rootCmd.AddCommand(billingCmd)
	billingCmd.AddCommand(billingRunCmd)
}

func runBillingRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	svc := app.NewBillingService(app.BillingDeps{
		Store:   sqlite.NewBillingStore(db),
		Clock:   clock.Real{},
		Metrics: metrics.Noop{},
		Logger:  logger,
	}, app.BillingConfig{
		Interval:        cfg.Billing.Interval,
		RequestsPerUnit: cfg.Billing.RequestsPerUnit,
	})

	if err := svc.RunOnce(context.Background()); err != nil {
		return fmt.Errorf("billing cycle failed: %w", err)
	}

	fmt.Printf("%s Billing cycle complete\n", checkMark)
	return nil
}
