package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tollgate/tollgate/adapters/memory"
	"github.com/tollgate/tollgate/domain/key"
	"github.com/tollgate/tollgate/domain/usage"
	"github.com/tollgate/tollgate/ports"
)

type billingStores struct {
	keys     *memory.KeyStore
	accounts *memory.AccountStore
	ledger   *memory.Ledger
	billing  *memory.BillingStore
}

func seedBilling(t *testing.T) billingStores {
	t.Helper()
	keys := memory.NewKeyStore()
	accounts := memory.NewAccountStore()
	ledger := memory.NewLedger()
	return billingStores{
		keys:     keys,
		accounts: accounts,
		ledger:   ledger,
		billing:  memory.NewBillingStore(keys, accounts, ledger),
	}
}

// seedAccount creates an account with one key of the given tier whose ID is
// "key-" + accountID, matching the key IDs appendN stamps on records.
func seedAccount(t *testing.T, s billingStores, accountID string, tier key.Tier) {
	t.Helper()
	ctx := context.Background()
	if err := s.accounts.Create(ctx, ports.Account{ID: accountID, Email: accountID + "@example.com"}); err != nil {
		t.Fatalf("Create() account error = %v", err)
	}
	if err := s.keys.Create(ctx, key.Key{
		ID:        "key-" + accountID,
		AccountID: accountID,
		Tier:      tier,
		Active:    true,
	}); err != nil {
		t.Fatalf("Create() key error = %v", err)
	}
}

func appendN(t *testing.T, ledger *memory.Ledger, accountID string, n int, ts time.Time) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		err := ledger.Append(ctx, usage.Record{
			ID:        accountID + "-" + time.Duration(i).String(),
			KeyID:     "key-" + accountID,
			AccountID: accountID,
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
}

func TestIssueInvoices(t *testing.T) {
	ctx := context.Background()
	s := seedBilling(t)
	store := s.billing

	for _, id := range []string{"acct-1", "acct-2", "acct-3"} {
		seedAccount(t, s, id, key.TierPaid)
	}
	seedAccount(t, s, "acct-free", key.TierFree)

	june := time.Date(2026, time.June, 10, 0, 0, 0, 0, time.UTC)
	appendN(t, s.ledger, "acct-1", 100, june)
	appendN(t, s.ledger, "acct-2", 3, june)
	// acct-3 has no June usage, only July.
	appendN(t, s.ledger, "acct-3", 5, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC))
	// Free-tier usage is never billed.
	appendN(t, s.ledger, "acct-free", 40, june)

	issuedAt := time.Date(2026, time.July, 1, 3, 0, 0, 0, time.UTC)
	n, err := store.IssueInvoices(ctx, time.June, 2026, issuedAt, 2)
	if err != nil {
		t.Fatalf("IssueInvoices() error = %v", err)
	}
	if n != 2 {
		t.Errorf("IssueInvoices() = %d invoices, want 2", n)
	}

	invs, err := store.ListByAccount(ctx, "acct-1", 0)
	if err != nil {
		t.Fatalf("ListByAccount() error = %v", err)
	}
	if len(invs) != 1 {
		t.Fatalf("ListByAccount(acct-1) returned %d invoices, want 1", len(invs))
	}
	if invs[0].Amount != 50.0 {
		t.Errorf("invoice amount = %v, want 50.0", invs[0].Amount)
	}
	wantDue := issuedAt.Add(60 * 24 * time.Hour)
	if !invs[0].DueAt.Equal(wantDue) {
		t.Errorf("invoice due = %v, want %v", invs[0].DueAt, wantDue)
	}

	if invs, _ := store.ListByAccount(ctx, "acct-3", 0); len(invs) != 0 {
		t.Errorf("acct-3 has %d invoices for June, want 0", len(invs))
	}
	if invs, _ := store.ListByAccount(ctx, "acct-free", 0); len(invs) != 0 {
		t.Errorf("acct-free has %d invoices for June, want 0", len(invs))
	}

	issued, err := store.PeriodIssued(ctx, time.June, 2026)
	if err != nil {
		t.Fatalf("PeriodIssued() error = %v", err)
	}
	if !issued {
		t.Error("PeriodIssued() = false after issuance, want true")
	}

	// Second issuance for the same period must be refused.
	if _, err := store.IssueInvoices(ctx, time.June, 2026, issuedAt, 2); !errors.Is(err, ports.ErrDuplicate) {
		t.Errorf("IssueInvoices() repeat error = %v, want ErrDuplicate", err)
	}
}

func TestFlagDelinquents(t *testing.T) {
	ctx := context.Background()
	s := seedBilling(t)
	store := s.billing
	accounts := s.accounts

	for _, id := range []string{"acct-1", "acct-2"} {
		seedAccount(t, s, id, key.TierPaid)
	}

	june := time.Date(2026, time.June, 10, 0, 0, 0, 0, time.UTC)
	appendN(t, s.ledger, "acct-1", 10, june)
	appendN(t, s.ledger, "acct-2", 10, june)

	issuedAt := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	if _, err := store.IssueInvoices(ctx, time.June, 2026, issuedAt, 2); err != nil {
		t.Fatalf("IssueInvoices() error = %v", err)
	}

	// Before the due date nobody is delinquent.
	n, err := store.FlagDelinquents(ctx, issuedAt.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("FlagDelinquents() error = %v", err)
	}
	if n != 0 {
		t.Errorf("FlagDelinquents() before due = %d, want 0", n)
	}

	// acct-2 pays, acct-1 does not.
	invs, err := store.ListByAccount(ctx, "acct-2", 1)
	if err != nil || len(invs) != 1 {
		t.Fatalf("ListByAccount() = %v, %v", invs, err)
	}
	if err := store.MarkPaid(ctx, invs[0].ID); err != nil {
		t.Fatalf("MarkPaid() error = %v", err)
	}

	after := issuedAt.Add(61 * 24 * time.Hour)
	n, err = store.FlagDelinquents(ctx, after)
	if err != nil {
		t.Fatalf("FlagDelinquents() error = %v", err)
	}
	if n != 1 {
		t.Errorf("FlagDelinquents() after due = %d, want 1", n)
	}

	a1, _ := accounts.Get(ctx, "acct-1")
	a2, _ := accounts.Get(ctx, "acct-2")
	if !a1.Delinquent {
		t.Error("acct-1 not delinquent, want delinquent")
	}
	if a2.Delinquent {
		t.Error("acct-2 delinquent, want clear")
	}

	// Paying later clears the flag on the next pass.
	invs, _ = store.ListByAccount(ctx, "acct-1", 1)
	if err := store.MarkPaid(ctx, invs[0].ID); err != nil {
		t.Fatalf("MarkPaid() error = %v", err)
	}
	if n, err := store.FlagDelinquents(ctx, after.Add(time.Hour)); err != nil || n != 0 {
		t.Errorf("FlagDelinquents() after payment = %d, %v, want 0, nil", n, err)
	}
	a1, _ = accounts.Get(ctx, "acct-1")
	if a1.Delinquent {
		t.Error("acct-1 still delinquent after paying")
	}
}

func TestLedgerCountForKeySince(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()

	day := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
	records := []usage.Record{
		{ID: "1", KeyID: "key-1", Timestamp: day.Add(-time.Second)}, // yesterday
		{ID: "2", KeyID: "key-1", Timestamp: day},                   // boundary counts
		{ID: "3", KeyID: "key-1", Timestamp: day.Add(time.Hour)},
		{ID: "4", KeyID: "key-2", Timestamp: day.Add(time.Hour)}, // other key
	}
	for _, r := range records {
		if err := ledger.Append(ctx, r); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	n, err := ledger.CountForKeySince(ctx, "key-1", day)
	if err != nil {
		t.Fatalf("CountForKeySince() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountForKeySince() = %d, want 2", n)
	}
}
