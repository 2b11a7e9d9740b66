package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/tollgate/tollgate/domain/key"
	"github.com/tollgate/tollgate/domain/restriction"
	"github.com/tollgate/tollgate/ports"
)

// KeyStore implements ports.KeyStore using SQLite.
type KeyStore struct {
	db *DB
}

// NewKeyStore creates a new SQLite key store.
func NewKeyStore(db *DB) *KeyStore {
	return &KeyStore{db: db}
}

const keyColumns = "id, account_id, hash, prefix, tier, active, created_at, last_used"

// GetByPrefix retrieves keys matching a prefix, restrictions included.
func (s *KeyStore) GetByPrefix(ctx context.Context, prefix string) ([]key.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+keyColumns+`
		FROM api_keys
		WHERE prefix = ?
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []key.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range keys {
		if err := s.loadRestrictions(ctx, &keys[i]); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// Get retrieves a key by ID.
func (s *KeyStore) Get(ctx context.Context, id string) (key.Key, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+keyColumns+`
		FROM api_keys
		WHERE id = ?
	`, id)

	k, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return key.Key{}, ports.ErrNotFound
	}
	if err != nil {
		return key.Key{}, err
	}
	if err := s.loadRestrictions(ctx, &k); err != nil {
		return key.Key{}, err
	}
	return k, nil
}

// Create stores a new key. The partial unique index on (account_id) for
// free keys enforces the one-free-key invariant at the database level.
func (s *KeyStore) Create(ctx context.Context, k key.Key) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (`+keyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, k.ID, k.AccountID, k.Hash, k.Prefix, string(k.Tier), k.Active, k.CreatedAt, nullTime(k.LastUsed))
	if isUniqueConstraintError(err) {
		if strings.Contains(err.Error(), "api_keys.account_id") {
			return ports.ErrFreeKeyExists
		}
		return ports.ErrDuplicate
	}
	return err
}

// SetActive activates or deactivates a key.
func (s *KeyStore) SetActive(ctx context.Context, id string, active bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET active = ? WHERE id = ?
	`, active, id)
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

// Delete removes a key and its restrictions.
func (s *KeyStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Free keys are permanent once issued.
	var tier string
	if err := tx.QueryRowContext(ctx, "SELECT tier FROM api_keys WHERE id = ?", id).Scan(&tier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ports.ErrNotFound
		}
		return err
	}
	if key.Tier(tier) == key.TierFree {
		return ports.ErrFreeKeyPermanent
	}

	for _, table := range []string{"key_domain_restrictions", "key_ip_restrictions"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE key_id = ?", id); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM api_keys WHERE id = ?", id)
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

	return tx.Commit()
}

// ListByAccount returns all keys for an account.
func (s *KeyStore) ListByAccount(ctx context.Context, accountID string) ([]key.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+keyColumns+`
		FROM api_keys
		WHERE account_id = ?
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []key.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range keys {
		if err := s.loadRestrictions(ctx, &keys[i]); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// List returns all keys, newest first.
func (s *KeyStore) List(ctx context.Context) ([]key.Key, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+keyColumns+`
		FROM api_keys
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []key.Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range keys {
		if err := s.loadRestrictions(ctx, &keys[i]); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// ReplaceSecret swaps a key's prefix and hash for freshly generated ones.
func (s *KeyStore) ReplaceSecret(ctx context.Context, id string, prefix string, hash []byte) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET prefix = ?, hash = ? WHERE id = ?
	`, prefix, hash, id)
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

// UpdateLastUsed updates the last used timestamp.
func (s *KeyStore) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET last_used = ? WHERE id = ?
	`, at, id)
	return err
}

// AddDomainRestriction attaches a domain allowlist entry to a key.
func (s *KeyStore) AddDomainRestriction(ctx context.Context, r restriction.Domain) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO key_domain_restrictions (id, key_id, domain) VALUES (?, ?, ?)
	`, r.ID, r.KeyID, r.Value)
	return err
}

// AddIPRestriction attaches an IP allowlist entry to a key.
func (s *KeyStore) AddIPRestriction(ctx context.Context, r restriction.IP) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO key_ip_restrictions (id, key_id, ip) VALUES (?, ?, ?)
	`, r.ID, r.KeyID, r.Value)
	return err
}

func (s *KeyStore) loadRestrictions(ctx context.Context, k *key.Key) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key_id, domain FROM key_domain_restrictions WHERE key_id = ?
	`, k.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r restriction.Domain
		if err := rows.Scan(&r.ID, &r.KeyID, &r.Value); err != nil {
			return err
		}
		k.Domains = append(k.Domains, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	ipRows, err := s.db.QueryContext(ctx, `
		SELECT id, key_id, ip FROM key_ip_restrictions WHERE key_id = ?
	`, k.ID)
	if err != nil {
		return err
	}
	defer ipRows.Close()
	for ipRows.Next() {
		var r restriction.IP
		if err := ipRows.Scan(&r.ID, &r.KeyID, &r.Value); err != nil {
			return err
		}
		k.IPs = append(k.IPs, r)
	}
	return ipRows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(row scanner) (key.Key, error) {
	var k key.Key
	var tier string
	var lastUsed sql.NullTime

	err := row.Scan(&k.ID, &k.AccountID, &k.Hash, &k.Prefix, &tier, &k.Active, &k.CreatedAt, &lastUsed)
	if err != nil {
		return key.Key{}, err
	}

	k.Tier = key.Tier(tier)
	if lastUsed.Valid {
		k.LastUsed = &lastUsed.Time
	}
	return k, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Ensure interface compliance.
var _ ports.KeyStore = (*KeyStore)(nil)
