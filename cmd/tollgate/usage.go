package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/adapters/sqlite"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "View usage statistics",
	Long: `View metered usage for accounts.

Examples:
  tollgate usage summary acct_123
  tollgate usage recent acct_123 --limit=20`,
}

var usageSummaryCmd = &cobra.Command{
	Use:   "summary <account-id>",
	Short: "Show month-to-date request count",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsageSummary,
}

var usageRecentCmd = &cobra.Command{
	Use:   "recent <account-id>",
	Short: "Show recent requests",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsageRecent,
}

var usageLimit int

func init() {
	rootCmd.AddCommand(usageCmd)

	usageCmd.AddCommand(usageSummaryCmd)
	usageCmd.AddCommand(usageRecentCmd)

	usageRecentCmd.Flags().IntVar(&usageLimit, "limit", 20, "number of requests to show")
}

func runUsageSummary(cmd *cobra.Command, args []string) error {
	accountID := args[0]

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ledger := sqlite.NewLedger(db)

	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	summary, err := ledger.SummaryForAccount(context.Background(), accountID, start, now)
	if err != nil {
		return fmt.Errorf("failed to get usage: %w", err)
	}

	fmt.Printf("Usage Summary for %s\n", accountID)
	fmt.Printf("Period: %s to %s\n\n", start.Format("2006-01-02"), now.Format("2006-01-02"))
	fmt.Printf("Requests: %d\n", summary.RequestCount)

	return nil
}

func runUsageRecent(cmd *cobra.Command, args []string) error {
	accountID := args[0]

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	ledger := sqlite.NewLedger(db)

	records, err := ledger.RecentForAccount(context.Background(), accountID, usageLimit)
	if err != nil {
		return fmt.Errorf("failed to get usage: %w", err)
	}

	if len(records) == 0 {
		fmt.Printf("No requests recorded for account %s.\n", accountID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tMETHOD\tPATH\tKEY\tSOURCE IP")
	fmt.Fprintln(w, "----\t------\t----\t---\t---------")

	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Format(time.RFC3339), r.Method, r.Path, r.KeyID, r.SourceIP)
	}

	w.Flush()
	return nil
}
