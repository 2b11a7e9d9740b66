package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tollgate/tollgate/ports"
)

// AccountStore implements ports.AccountStore using SQLite.
type AccountStore struct {
	db *DB
}

// NewAccountStore creates a new SQLite account store.
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

const accountColumns = "id, email, name, delinquent, created_at, updated_at"

// Get retrieves an account by ID.
func (s *AccountStore) Get(ctx context.Context, id string) (ports.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = ?
	`, id)
	return scanAccount(row)
}

// GetByEmail retrieves an account by email.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (ports.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE email = ?
	`, email)
	return scanAccount(row)
}

// Create stores a new account.
func (s *AccountStore) Create(ctx context.Context, a ports.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.Email, a.Name, a.Delinquent, a.CreatedAt, a.UpdatedAt)
	if isUniqueConstraintError(err) {
		return ports.ErrDuplicate
	}
	return err
}

// Update modifies an existing account.
func (s *AccountStore) Update(ctx context.Context, a ports.Account) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET email = ?, name = ?, delinquent = ?, updated_at = ?
		WHERE id = ?
	`, a.Email, a.Name, a.Delinquent, a.UpdatedAt, a.ID)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ports.ErrDuplicate
		}
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

// List returns accounts with pagination.
func (s *AccountStore) List(ctx context.Context, limit, offset int) ([]ports.Account, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []ports.Account
	for rows.Next() {
		var a ports.Account
		if err := rows.Scan(&a.ID, &a.Email, &a.Name, &a.Delinquent, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func scanAccount(row *sql.Row) (ports.Account, error) {
	var a ports.Account
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.Delinquent, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Account{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.Account{}, err
	}
	return a, nil
}

// Ensure interface compliance.
var _ ports.AccountStore = (*AccountStore)(nil)
