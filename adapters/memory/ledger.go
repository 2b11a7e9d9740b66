package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tollgate/tollgate/domain/usage"
	"github.com/tollgate/tollgate/ports"
)

// Ledger is an in-memory implementation of ports.UsageLedger.
type Ledger struct {
	mu      sync.RWMutex
	records []usage.Record

	// FailAppend makes Append fail, for exercising metering-failure paths.
	FailAppend bool
}

// NewLedger creates a new in-memory usage ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records one admitted request.
func (s *Ledger) Append(ctx context.Context, r usage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailAppend {
		return errors.New("ledger append failed")
	}
	s.records = append(s.records, r)
	return nil
}

// CountForKeySince returns records for a key at or after since.
func (s *Ledger) CountForKeySince(ctx context.Context, keyID string, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.records {
		if r.KeyID == keyID && !r.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

// SummaryForAccount returns aggregated usage for an account in [start, end).
func (s *Ledger) SummaryForAccount(ctx context.Context, accountID string, start, end time.Time) (usage.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.records {
		if r.AccountID == accountID && !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
			n++
		}
	}
	return usage.Summary{
		AccountID:    accountID,
		PeriodStart:  start,
		PeriodEnd:    end,
		RequestCount: n,
	}, nil
}

// RecentForAccount returns the most recent records for an account.
func (s *Ledger) RecentForAccount(ctx context.Context, accountID string, limit int) ([]usage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []usage.Record
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if s.records[i].AccountID == accountID {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

// All returns every record (for testing).
func (s *Ledger) All() []usage.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]usage.Record, len(s.records))
	copy(out, s.records)
	return out
}

var _ ports.UsageLedger = (*Ledger)(nil)
