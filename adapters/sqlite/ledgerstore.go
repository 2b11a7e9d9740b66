package sqlite

import (
	"context"
	"time"

	"github.com/tollgate/tollgate/domain/usage"
	"github.com/tollgate/tollgate/ports"
)

// Ledger implements ports.UsageLedger using SQLite.
type Ledger struct {
	db *DB
}

// NewLedger creates a new SQLite usage ledger.
func NewLedger(db *DB) *Ledger {
	return &Ledger{db: db}
}

// Append records one admitted request.
func (s *Ledger) Append(ctx context.Context, r usage.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records (id, key_id, account_id, method, path, source_ip, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.KeyID, r.AccountID, r.Method, r.Path, r.SourceIP, r.Timestamp)
	return err
}

// CountForKeySince returns records for a key at or after since.
func (s *Ledger) CountForKeySince(ctx context.Context, keyID string, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM usage_records
		WHERE key_id = ? AND ts >= ?
	`, keyID, since).Scan(&n)
	return n, err
}

// SummaryForAccount returns aggregated usage for an account in [start, end).
func (s *Ledger) SummaryForAccount(ctx context.Context, accountID string, start, end time.Time) (usage.Summary, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM usage_records
		WHERE account_id = ? AND ts >= ? AND ts < ?
	`, accountID, start, end).Scan(&n)
	if err != nil {
		return usage.Summary{}, err
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key_id, account_id, method, path, source_ip, ts
		FROM usage_records
		WHERE account_id = ?
		ORDER BY ts DESC
		LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []usage.Record
	for rows.Next() {
		var r usage.Record
		if err := rows.Scan(&r.ID, &r.KeyID, &r.AccountID, &r.Method, &r.Path, &r.SourceIP, &r.Timestamp); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Ensure interface compliance.
var _ ports.UsageLedger = (*Ledger)(nil)
