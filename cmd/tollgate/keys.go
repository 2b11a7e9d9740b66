package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/adapters/sqlite"
	"github.com/tollgate/tollgate/config"
	"github.com/tollgate/tollgate/domain/key"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
	Long: `Manage Tollgate API keys.

Each account can have multiple API keys. An account may hold at most
one free-tier key. Keys authenticate requests at the gate.

Examples:
  tollgate keys list
  tollgate keys list --account=acct_123
  tollgate keys create --account=acct_123 --tier=paid
  tollgate keys deactivate key_abc123
  tollgate keys regenerate key_abc123`,
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API keys",
	RunE:  runKeysList,
}

var keysCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API key",
	RunE:  runKeysCreate,
}

var keysDeactivateCmd = &cobra.Command{
	Use:   "deactivate <key-id>",
	Short: "Deactivate an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysDeactivate,
}

var keysActivateCmd = &cobra.Command{
	Use:   "activate <key-id>",
	Short: "Reactivate an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysActivate,
}

var keysRegenerateCmd = &cobra.Command{
	Use:   "regenerate <key-id>",
	Short: "Replace a key's secret, keeping its ID and restrictions",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysRegenerate,
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <key-id>",
	Short: "Delete an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysDelete,
}

var (
	keyAccountID string
	keyTier      string
)

func init() {
	rootCmd.AddCommand(keysCmd)

	keysCmd.AddCommand(keysListCmd)
	keysCmd.AddCommand(keysCreateCmd)
	keysCmd.AddCommand(keysDeactivateCmd)
	keysCmd.AddCommand(keysActivateCmd)
	keysCmd.AddCommand(keysRegenerateCmd)
	keysCmd.AddCommand(keysDeleteCmd)

	keysListCmd.Flags().StringVar(&keyAccountID, "account", "", "filter by account ID")
	keysCreateCmd.Flags().StringVar(&keyAccountID, "account", "", "account ID (required)")
	keysCreateCmd.Flags().StringVar(&keyTier, "tier", "free", "key tier: free or paid")
	keysCreateCmd.MarkFlagRequired("account")
}

func runKeysList(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	keyStore := sqlite.NewKeyStore(db)

	var keys []key.Key
	if keyAccountID != "" {
		keys, err = keyStore.ListByAccount(context.Background(), keyAccountID)
	} else {
		keys, err = keyStore.List(context.Background())
	}

	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}

	if len(keys) == 0 {
		if keyAccountID != "" {
			fmt.Printf("No keys found for account %s.\n", keyAccountID)
		} else {
			fmt.Println("No API keys found.")
		}
		fmt.Println()
		fmt.Println("Create a key with: tollgate keys create --account=<account-id>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPREFIX\tACCOUNT\tTIER\tSTATUS\tCREATED")
	fmt.Fprintln(w, "--\t------\t-------\t----\t------\t-------")

	for _, k := range keys {
		status := "active"
		if !k.Active {
			status = "inactive"
		}
		created := k.CreatedAt.Format("2006-01-02")
		fmt.Fprintf(w, "%s\t%s...\t%s\t%s\t%s\t%s\n", k.ID, k.Prefix, k.AccountID, k.Tier, status, created)
	}

	w.Flush()
	return nil
}

func runKeysCreate(cmd *cobra.Command, args []string) error {
	tier := key.Tier(keyTier)
	if tier != key.TierFree && tier != key.TierPaid {
		return fmt.Errorf("invalid tier %q: must be free or paid", keyTier)
	}

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Verify account exists
	accountStore := sqlite.NewAccountStore(db)
	if _, err := accountStore.Get(context.Background(), keyAccountID); err != nil {
		return fmt.Errorf("account not found: %s", keyAccountID)
	}

	keyStore := sqlite.NewKeyStore(db)

	// Generate key with the configured prefix
	rawKey, keyData := key.Generate(cfg.Gate.KeyPrefix)
	keyData = keyData.WithAccountID(keyAccountID).WithTier(tier)

	if err := keyStore.Create(context.Background(), keyData); err != nil {
		return fmt.Errorf("failed to create key: %w", err)
	}

	fmt.Printf("%s Created %s API key for account %s\n", checkMark, tier, keyAccountID)
	fmt.Println()
	fmt.Println("API Key (save this, shown once):")
	fmt.Printf("  %s\n", rawKey)
	fmt.Println()
	fmt.Printf("Key ID: %s\n", keyData.ID)

	return nil
}

func runKeysDeactivate(cmd *cobra.Command, args []string) error {
	return setKeyActive(args[0], false)
}

func runKeysActivate(cmd *cobra.Command, args []string) error {
	return setKeyActive(args[0], true)
}

func setKeyActive(keyID string, active bool) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	keyStore := sqlite.NewKeyStore(db)

	k, err := keyStore.Get(context.Background(), keyID)
	if err != nil {
		return fmt.Errorf("key not found: %s", keyID)
	}

	if k.Active == active {
		if active {
			fmt.Printf("Key %s is already active.\n", keyID)
		} else {
			fmt.Printf("Key %s is already inactive.\n", keyID)
		}
		return nil
	}

	if err := keyStore.SetActive(context.Background(), keyID, active); err != nil {
		return fmt.Errorf("failed to update key: %w", err)
	}

	if active {
		fmt.Printf("%s Activated key: %s\n", checkMark, keyID)
	} else {
		fmt.Printf("%s Deactivated key: %s\n", checkMark, keyID)
	}
	return nil
}

func runKeysRegenerate(cmd *cobra.Command, args []string) error {
	keyID := args[0]

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	keyStore := sqlite.NewKeyStore(db)

	if _, err := keyStore.Get(context.Background(), keyID); err != nil {
		return fmt.Errorf("key not found: %s", keyID)
	}

	if !confirm(fmt.Sprintf("Regenerate secret for key %s? The old secret stops working immediately.", keyID)) {
		fmt.Println("Aborted.")
		return nil
	}

	rawKey, fresh := key.Generate(cfg.Gate.KeyPrefix)
	if err := keyStore.ReplaceSecret(context.Background(), keyID, fresh.Prefix, fresh.Hash); err != nil {
		return fmt.Errorf("failed to regenerate key: %w", err)
	}

	fmt.Printf("%s Regenerated key: %s\n", checkMark, keyID)
	fmt.Println()
	fmt.Println("New API Key (save this, shown once):")
	fmt.Printf("  %s\n", rawKey)

	return nil
}

func runKeysDelete(cmd *cobra.Command, args []string) error {
	keyID := args[0]

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	keyStore := sqlite.NewKeyStore(db)

	k, err := keyStore.Get(context.Background(), keyID)
	if err != nil {
		return fmt.Errorf("key not found: %s", keyID)
	}
	if k.Tier == key.TierFree {
		return fmt.Errorf("free keys are permanent; deactivate it instead: tollgate keys deactivate %s", keyID)
	}

	if !confirm(fmt.Sprintf("Delete key %s?", keyID)) {
		fmt.Println("Aborted.")
		return nil
	}

	if err := keyStore.Delete(context.Background(), keyID); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	fmt.Printf("%s Deleted key: %s\n", checkMark, keyID)
	return nil
}
