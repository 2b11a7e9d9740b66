package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/bootstrap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Start the Tollgate gateway server.

The server will:
  - Load configuration from tollgate.yaml (or --config)
  - Or load configuration from TOLLGATE_* environment variables
  - Connect to the database
  - Start admitting and forwarding requests to the upstream catalog API
  - Apply API key checks, network restrictions, quotas, and usage metering
  - Run the billing cycle in the background

Environment variables (for Docker deployments):
  TOLLGATE_UPSTREAM_URL     - Upstream catalog API URL (required)
  TOLLGATE_DATABASE_PATH    - Database path (default: tollgate.db)
  TOLLGATE_SERVER_PORT      - Server port (default: 8080)
  TOLLGATE_GATE_FREE_DAILY_LIMIT - Free-tier daily quota (default: 100)
  TOLLGATE_LOG_LEVEL        - Log level: debug, info, warn, error

Examples:
  tollgate serve
  tollgate serve --config /etc/tollgate/config.yaml

  # Docker (env vars only):
  TOLLGATE_UPSTREAM_URL=https://catalog.example.com tollgate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	// No configuration at all
	if !hasConfigFile && os.Getenv("TOLLGATE_UPSTREAM_URL") == "" {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s with at least an upstream.url\n", cfgFile)
		fmt.Println("Option 2: Set TOLLGATE_UPSTREAM_URL environment variable")
		fmt.Println()
		fmt.Println("Example (env vars):")
		fmt.Println("  TOLLGATE_UPSTREAM_URL=https://catalog.example.com tollgate serve")
		return nil
	}

	app, err := bootstrap.New(cfgFile)
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	if !hasConfigFile {
		fmt.Println("Running with environment variables (no config file)")
	}

	// Run (blocks until shutdown)
	return app.Run()
}
