// Package memory provides in-memory store implementations for testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tollgate/tollgate/domain/key"
	"github.com/tollgate/tollgate/domain/restriction"
	"github.com/tollgate/tollgate/ports"
)

// KeyStore is an in-memory implementation of ports.KeyStore.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]key.Key // by ID
}

// NewKeyStore creates a new in-memory key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		keys: make(map[string]key.Key),
	}
}

// GetByPrefix retrieves keys matching a prefix.
func (s *KeyStore) GetByPrefix(ctx context.Context, prefix string) ([]key.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []key.Key
	for _, k := range s.keys {
		if k.Prefix == prefix {
			result = append(result, k)
		}
	}
	return result, nil
}

// Get retrieves a key by ID.
func (s *KeyStore) Get(ctx context.Context, id string) (key.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keys[id]
	if !ok {
		return key.Key{}, ports.ErrNotFound
	}
	return k, nil
}

// Create stores a new key, enforcing the one-free-key-per-account rule.
func (s *KeyStore) Create(ctx context.Context, k key.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[k.ID]; ok {
		return ports.ErrDuplicate
	}
	if k.Tier == key.TierFree {
		for _, existing := range s.keys {
			if existing.AccountID == k.AccountID && existing.Tier == key.TierFree {
				return ports.ErrFreeKeyExists
			}
		}
	}

	s.keys[k.ID] = k
	return nil
}

// SetActive activates or deactivates a key.
func (s *KeyStore) SetActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[id]
	if !ok {
		return ports.ErrNotFound
	}
	k.Active = active
	s.keys[id] = k
	return nil
}

// Delete removes a key and its restrictions.
func (s *KeyStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[id]
	if !ok {
		return ports.ErrNotFound
	}
	if k.Tier == key.TierFree {
		return ports.ErrFreeKeyPermanent
	}
	delete(s.keys, id)
	return nil
}

// ListByAccount returns all keys for an account.
func (s *KeyStore) ListByAccount(ctx context.Context, accountID string) ([]key.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []key.Key
	for _, k := range s.keys {
		if k.AccountID == accountID {
			result = append(result, k)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ReplaceSecret swaps a key's prefix and hash.
func (s *KeyStore) ReplaceSecret(ctx context.Context, id string, prefix string, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[id]
	if !ok {
		return ports.ErrNotFound
	}
	k.Prefix = prefix
	k.Hash = hash
	s.keys[id] = k
	return nil
}

// UpdateLastUsed updates the last used timestamp.
func (s *KeyStore) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k, ok := s.keys[id]; ok {
		k.LastUsed = &at
		s.keys[id] = k
	}
	return nil
}

// AddDomainRestriction attaches a domain allowlist entry to a key.
func (s *KeyStore) AddDomainRestriction(ctx context.Context, r restriction.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[r.KeyID]
	if !ok {
		return ports.ErrNotFound
	}
	k.Domains = append(k.Domains, r)
	s.keys[r.KeyID] = k
	return nil
}

// AddIPRestriction attaches an IP allowlist entry to a key.
func (s *KeyStore) AddIPRestriction(ctx context.Context, r restriction.IP) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[r.KeyID]
	if !ok {
		return ports.ErrNotFound
	}
	k.IPs = append(k.IPs, r)
	s.keys[r.KeyID] = k
	return nil
}

var _ ports.KeyStore = (*KeyStore)(nil)
