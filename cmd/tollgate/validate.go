package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/adapters/sqlite"
	"github.com/tollgate/tollgate/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the Tollgate configuration file.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - Upstream is reachable (optional)
  - Database is writable (optional)

Examples:
  tollgate validate
  tollgate validate --config /etc/tollgate/config.yaml`,
	RunE: runValidate,
}

var (
	validateCheckUpstream bool
	validateCheckDatabase bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckUpstream, "check-upstream", false, "check if upstream is reachable")
	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if database is writable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	// Check file exists
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	// Load and validate config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)

	// Show config summary
	fmt.Printf("  %s Upstream: %s\n", checkMark, cfg.Upstream.URL)
	fmt.Printf("  %s Key prefix: %s\n", checkMark, cfg.Gate.KeyPrefix)
	if cfg.Gate.FreeDailyLimit < 0 {
		fmt.Printf("  %s Free daily limit: unlimited\n", checkMark)
	} else {
		fmt.Printf("  %s Free daily limit: %d\n", checkMark, cfg.Gate.FreeDailyLimit)
	}
	fmt.Printf("  %s Billing interval: %s\n", checkMark, cfg.Billing.Interval)
	fmt.Printf("  %s Database: %s\n", checkMark, cfg.Database.Path)

	// Optional: check upstream
	if validateCheckUpstream {
		if err := checkUpstreamReachable(cfg.Upstream.URL); err != nil {
			fmt.Printf("  %s Upstream reachable\n", crossMark)
			fmt.Printf("      Error: %v\n", err)
		} else {
			fmt.Printf("  %s Upstream reachable\n", checkMark)
		}
	}

	// Optional: check database
	if validateCheckDatabase {
		if err := checkDatabaseWritable(cfg.Database.Path); err != nil {
			fmt.Printf("  %s Database writable\n", crossMark)
			fmt.Printf("      Error: %v\n", err)
		} else {
			fmt.Printf("  %s Database writable\n", checkMark)
		}
	}

	fmt.Println()
	fmt.Println("Configuration is valid.")
	return nil
}

func checkUpstreamReachable(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "HEAD", url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func checkDatabaseWritable(path string) error {
	db, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return nil
}
