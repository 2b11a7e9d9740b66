package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tollgate/tollgate/domain/billing"
	"github.com/tollgate/tollgate/domain/key"
	"github.com/tollgate/tollgate/ports"
)

// BillingStore is an in-memory implementation of ports.BillingStore.
// It issues invoices out of the in-memory ledger and flips delinquency
// flags on the in-memory account store.
type BillingStore struct {
	mu       sync.Mutex
	keys     *KeyStore
	accounts *AccountStore
	ledger   *Ledger
	invoices []billing.Invoice
	markers  map[[2]int]billing.PeriodMarker // keyed by (month, year)
	nextID   int64
}

// NewBillingStore creates a new in-memory billing store over the given
// key store, account store and ledger.
func NewBillingStore(keys *KeyStore, accounts *AccountStore, ledger *Ledger) *BillingStore {
	return &BillingStore{
		keys:     keys,
		accounts: accounts,
		ledger:   ledger,
		markers:  make(map[[2]int]billing.PeriodMarker),
		nextID:   1,
	}
}

// PeriodIssued reports whether invoices for a month have been issued.
func (s *BillingStore) PeriodIssued(ctx context.Context, month time.Month, year int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.markers[[2]int{int(month), year}]
	return ok, nil
}

// IssueInvoices creates one invoice per account with billable usage in the
// period and marks the period issued. Free-tier usage is never billed.
func (s *BillingStore) IssueInvoices(ctx context.Context, month time.Month, year int, issuedAt time.Time, requestsPerUnit int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mk := [2]int{int(month), year}
	if _, ok := s.markers[mk]; ok {
		return 0, ports.ErrDuplicate
	}

	start, end := billing.MonthBounds(month, year)

	tiers := make(map[string]key.Tier)
	counts := make(map[string]int64)
	for _, r := range s.ledger.All() {
		if r.Timestamp.Before(start) || !r.Timestamp.Before(end) {
			continue
		}
		tier, ok := tiers[r.KeyID]
		if !ok {
			k, err := s.keys.Get(ctx, r.KeyID)
			if err != nil {
				// Records whose key is gone carry no billable tier.
				tiers[r.KeyID] = key.TierFree
				continue
			}
			tier = k.Tier
			tiers[r.KeyID] = tier
		}
		if tier == key.TierFree {
			continue
		}
		counts[r.AccountID]++
	}

	accountIDs := make([]string, 0, len(counts))
	for id := range counts {
		accountIDs = append(accountIDs, id)
	}
	sort.Strings(accountIDs)

	for _, id := range accountIDs {
		s.invoices = append(s.invoices, billing.Invoice{
			ID:        s.nextID,
			AccountID: id,
			Amount:    billing.Amount(counts[id], requestsPerUnit),
			IssuedAt:  issuedAt,
			DueAt:     billing.DueDate(issuedAt),
		})
		s.nextID++
	}

	s.markers[mk] = billing.PeriodMarker{Month: month, Year: year, IssuedAt: issuedAt}
	return len(accountIDs), nil
}

// FlagDelinquents reconciles account delinquency flags against unpaid
// overdue invoices.
func (s *BillingStore) FlagDelinquents(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	overdue := make(map[string]bool)
	for _, inv := range s.invoices {
		if billing.Overdue(inv, now) {
			overdue[inv.AccountID] = true
		}
	}
	s.mu.Unlock()

	accounts, err := s.accounts.List(ctx, 0, 0)
	if err != nil {
		return 0, err
	}

	flagged := 0
	for _, a := range accounts {
		want := overdue[a.ID]
		if want {
			flagged++
		}
		if a.Delinquent != want {
			a.Delinquent = want
			if err := s.accounts.Update(ctx, a); err != nil {
				return 0, err
			}
		}
	}
	return flagged, nil
}

// ListByAccount returns invoices for an account, newest first.
func (s *BillingStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]billing.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []billing.Invoice
	for i := len(s.invoices) - 1; i >= 0; i-- {
		if s.invoices[i].AccountID == accountID {
			out = append(out, s.invoices[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// MarkPaid records payment of an invoice.
func (s *BillingStore) MarkPaid(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.invoices {
		if s.invoices[i].ID == id {
			s.invoices[i].Paid = true
			return nil
		}
	}
	return ports.ErrNotFound
}

var _ ports.BillingStore = (*BillingStore)(nil)
