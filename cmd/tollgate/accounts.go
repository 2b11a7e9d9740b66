package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tollgate/tollgate/adapters/sqlite"
	"github.com/tollgate/tollgate/ports"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage accounts",
	Long: `Manage Tollgate accounts.

Accounts own API keys and receive monthly invoices for paid usage.
A delinquent account (unpaid invoice past its due date) is rejected
at the gate until its invoices are settled.

Examples:
  tollgate accounts create --email=dev@example.com --name="Dev Team"
  tollgate accounts list
  tollgate accounts invoices acct_123
  tollgate accounts pay-invoice 42`,
}

var accountsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new account",
	RunE:  runAccountsCreate,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE:  runAccountsList,
}

var accountsInvoicesCmd = &cobra.Command{
	Use:   "invoices <account-id>",
	Short: "List an account's invoices",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsInvoices,
}

var accountsPayInvoiceCmd = &cobra.Command{
	Use:   "pay-invoice <invoice-id>",
	Short: "Mark an invoice as paid",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsPayInvoice,
}

var (
	accountEmail string
	accountName  string
	accountLimit int
)

func init() {
	rootCmd.AddCommand(accountsCmd)

	accountsCmd.AddCommand(accountsCreateCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsInvoicesCmd)
	accountsCmd.AddCommand(accountsPayInvoiceCmd)

	accountsCreateCmd.Flags().StringVar(&accountEmail, "email", "", "account email (required)")
	accountsCreateCmd.Flags().StringVar(&accountName, "name", "", "account name (optional)")
	accountsCreateCmd.MarkFlagRequired("email")

	accountsListCmd.Flags().IntVar(&accountLimit, "limit", 50, "number of accounts to show")
	accountsInvoicesCmd.Flags().IntVar(&accountLimit, "limit", 20, "number of invoices to show")
}

func runAccountsCreate(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	accountStore := sqlite.NewAccountStore(db)

	now := time.Now().UTC()
	account := ports.Account{
		ID:        "acct_" + uuid.New().String()[:8],
		Email:     accountEmail,
		Name:      accountName,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := accountStore.Create(context.Background(), account); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	fmt.Printf("%s Created account: %s\n", checkMark, account.ID)
	fmt.Printf("  Email: %s\n", account.Email)
	if account.Name != "" {
		fmt.Printf("  Name:  %s\n", account.Name)
	}
	fmt.Println()
	fmt.Printf("Create a key with: tollgate keys create --account=%s\n", account.ID)

	return nil
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	accountStore := sqlite.NewAccountStore(db)

	accounts, err := accountStore.List(context.Background(), accountLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	if len(accounts) == 0 {
		fmt.Println("No accounts found.")
		fmt.Println()
		fmt.Println("Create one with: tollgate accounts create --email=<email>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tSTATUS\tCREATED")
	fmt.Fprintln(w, "--\t-----\t----\t------\t-------")

	for _, a := range accounts {
		status := "ok"
		if a.Delinquent {
			status = "delinquent"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Email, a.Name, status, a.CreatedAt.Format("2006-01-02"))
	}

	w.Flush()
	return nil
}

func runAccountsInvoices(cmd *cobra.Command, args []string) error {
	accountID := args[0]

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	billingStore := sqlite.NewBillingStore(db)

	invoices, err := billingStore.ListByAccount(context.Background(), accountID, accountLimit)
	if err != nil {
		return fmt.Errorf("failed to list invoices: %w", err)
	}

	if len(invoices) == 0 {
		fmt.Printf("No invoices for account %s.\n", accountID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAMOUNT\tSTATUS\tISSUED\tDUE")
	fmt.Fprintln(w, "--\t------\t------\t------\t---")

	for _, inv := range invoices {
		status := "unpaid"
		if inv.Paid {
			status = "paid"
		}
		fmt.Fprintf(w, "%d\t%.2f\t%s\t%s\t%s\n",
			inv.ID, inv.Amount, status,
			inv.IssuedAt.Format("2006-01-02"), inv.DueAt.Format("2006-01-02"))
	}

	w.Flush()
	return nil
}

func runAccountsPayInvoice(cmd *cobra.Command, args []string) error {
	invoiceID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid invoice ID: %s", args[0])
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	billingStore := sqlite.NewBillingStore(db)

	if err := billingStore.MarkPaid(context.Background(), invoiceID); err != nil {
		return fmt.Errorf("failed to mark invoice paid: %w", err)
	}

	fmt.Printf("%s Marked invoice %d as paid\n", checkMark, invoiceID)
	fmt.Println()
	fmt.Println("Delinquency flags are reconciled on the next billing cycle,")
	fmt.Println("or immediately with: tollgate billing run")
	return nil
}
