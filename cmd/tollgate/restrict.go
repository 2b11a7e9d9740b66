package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/adapters/sqlite"
	"github.com/tollgate/tollgate/domain/restriction"
)

var restrictCmd = &cobra.Command{
	Use:   "restrict",
	Short: "Manage per-key network restrictions",
	Long: `Manage the network restrictions attached to an API key.

A key with no restrictions admits requests from anywhere. Once any
restriction exists, a request is admitted only if its referrer domain
matches a listed domain or its source IP matches a listed IP.

Examples:
  tollgate restrict add-domain key_abc123 app.example.com
  tollgate restrict add-ip key_abc123 203.0.113.7
  tollgate restrict list key_abc123`,
}

var restrictAddDomainCmd = &cobra.Command{
	Use:   "add-domain <key-id> <domain>",
	Short: "Allow a referrer domain for a key",
	Args:  cobra.ExactArgs(2),
	RunE:  runRestrictAddDomain,
}

var restrictAddIPCmd = &cobra.Command{
	Use:   "add-ip <key-id> <ip>",
	Short: "Allow a source IP for a key",
	Args:  cobra.ExactArgs(2),
	RunE:  runRestrictAddIP,
}

var restrictListCmd = &cobra.Command{
	Use:   "list <key-id>",
	Short: "List a key's restrictions",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestrictList,
}

func init() {
	rootCmd.AddCommand(restrictCmd)

	restrictCmd.AddCommand(restrictAddDomainCmd)
	restrictCmd.AddCommand(restrictAddIPCmd)
	restrictCmd.AddCommand(restrictListCmd)
}

func runRestrictAddDomain(cmd *cobra.Command, args []string) error {
	keyID, domain := args[0], args[1]

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	keyStore := sqlite.NewKeyStore(db)

	if _, err := keyStore.Get(context.Background(), keyID); err != nil {
		return fmt.Errorf("key not found: %s", keyID)
	}

	r := restriction.Domain{
		ID:    uuid.New().String(),
		KeyID: keyID,
		Value: domain,
	}
	if err := keyStore.AddDomainRestriction(context.Background(), r); err != nil {
		return fmt.Errorf("failed to add restriction: %w", err)
	}

	fmt.Printf("%s Allowed domain %s for key %s\n", checkMark, domain, keyID)
	return nil
}

func runRestrictAddIP(cmd *cobra.Command, args []string) error {
	keyID, ip := args[0], args[1]

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	keyStore := sqlite.NewKeyStore(db)

	if _, err := keyStore.Get(context.Background(), keyID); err != nil {
		return fmt.Errorf("key not found: %s", keyID)
	}

	r := restriction.IP{
		ID:    uuid.New().String(),
		KeyID: keyID,
		Value: ip,
	}
	if err := keyStore.AddIPRestriction(context.Background(), r); err != nil {
		return fmt.Errorf("failed to add restriction: %w", err)
	}

	fmt.Printf("%s Allowed IP %s for key %s\n", checkMark, ip, keyID)
	return nil
}

func runRestrictList(cmd *cobra.Command, args []string) error {
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

	if len(k.Domains) == 0 && len(k.IPs) == 0 {
		fmt.Printf("Key %s has no restrictions (admitted from anywhere).\n", keyID)
		return nil
	}

	if len(k.Domains) > 0 {
		fmt.Println("Domains:")
		for _, d := range k.Domains {
			fmt.Printf("  %s\n", d.Value)
		}
	}
	if len(k.IPs) > 0 {
		fmt.Println("IPs:")
		for _, ip := range k.IPs {
			fmt.Printf("  %s\n", ip.Value)
		}
	}
	return nil
}
