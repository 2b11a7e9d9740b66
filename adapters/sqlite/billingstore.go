package sqlite

import (
	"context"
	"time"

	"github.com/tollgate/tollgate/domain/billing"
	"github.com/tollgate/tollgate/ports"
)

// BillingStore implements ports.BillingStore using SQLite. Invoice
// generation and delinquency flagging run as single set-based statements
// so a period is billed in one transaction regardless of account count.
type BillingStore struct {
	db *DB
}

// NewBillingStore creates a new SQLite billing store.
func NewBillingStore(db *DB) *BillingStore {
	return &BillingStore{db: db}
}

// PeriodIssued reports whether invoices for a month have been issued.
func (s *BillingStore) PeriodIssued(ctx context.Context, month time.Month, year int) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM invoice_periods WHERE month = ? AND year = ?
	`, int(month), year).Scan(&n)
	return n > 0, err
}

// IssueInvoices creates one invoice per account with usage in the period
// and marks the period issued, atomically. The period marker's primary key
// refuses a second issuance for the same month.
func (s *BillingStore) IssueInvoices(ctx context.Context, month time.Month, year int, issuedAt time.Time, requestsPerUnit int64) (int, error) {
	if requestsPerUnit <= 0 {
		requestsPerUnit = 1
	}
	start, end := billing.MonthBounds(month, year)
	dueAt := billing.DueDate(issuedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO invoice_periods (month, year, issued_at) VALUES (?, ?, ?)
	`, int(month), year, issuedAt); err != nil {
		if isUniqueConstraintError(err) {
			return 0, ports.ErrDuplicate
		}
		return 0, err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO invoices (account_id, amount, paid, issued_at, due_at)
		SELECT u.account_id, CAST(COUNT(*) AS REAL) / ?, 0, ?, ?
		FROM usage_records u
		JOIN api_keys k ON k.id = u.key_id
		WHERE u.ts >= ? AND u.ts < ? AND k.tier != 'free'
		GROUP BY u.account_id
	`, requestsPerUnit, issuedAt, dueAt, start, end)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(n), nil
}

// FlagDelinquents reconciles every account's delinquency flag against its
// unpaid overdue invoices in one bulk update.
func (s *BillingStore) FlagDelinquents(ctx context.Context, now time.Time) (int, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET delinquent = EXISTS (
			SELECT 1 FROM invoices i
			WHERE i.account_id = accounts.id AND i.paid = 0 AND i.due_at < ?
		),
		updated_at = ?
	`, now, now)
	if err != nil {
		return 0, err
	}

	var n int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE delinquent = 1`).Scan(&n)
	return n, err
}

// ListByAccount returns invoices for an account, newest first.
func (s *BillingStore) ListByAccount(ctx context.Context, accountID string, limit int) ([]billing.Invoice, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, amount, paid, issued_at, due_at
		FROM invoices
		WHERE account_id = ?
		ORDER BY issued_at DESC, id DESC
		LIMIT ?
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []billing.Invoice
	for rows.Next() {
		var inv billing.Invoice
		if err := rows.Scan(&inv.ID, &inv.AccountID, &inv.Amount, &inv.Paid, &inv.IssuedAt, &inv.DueAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// MarkPaid records payment of an invoice.
func (s *BillingStore) MarkPaid(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE invoices SET paid = 1 WHERE id = ?
	`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Ensure interface compliance.
var _ ports.BillingStore = (*BillingStore)(nil)
