package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/adapters/sqlite"
	"github.com/tollgate/tollgate/config"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tollgate",
	Short: "Metered-access gateway with API key admission, quotas, and billing",
	Long: `Tollgate is a self-hosted metered-access gateway.

It sits in front of a catalog API and admits requests by API key,
enforces per-key network restrictions and free-tier quotas, meters
every admitted request, and issues monthly invoices for paid usage.

Quick start:
  tollgate serve       # Start the gateway

Management:
  tollgate accounts    # Manage accounts
  tollgate keys        # Manage API keys
  tollgate billing     # Run a billing cycle by hand
  tollgate usage       # View usage statistics`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "tollgate.yaml", "config file path")
}

func openDatabase() (*sqlite.DB, error) {
	// Load config to get database path
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

func confirm(message string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("? %s [y/N]: ", message)
	input, _ := reader.ReadString('\n')
	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes"
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
