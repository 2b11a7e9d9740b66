package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tollgate/tollgate/ports"
)

// AccountStore is an in-memory implementation of ports.AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]ports.Account // by ID
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]ports.Account),
	}
}

// Get retrieves an account by ID.
func (s *AccountStore) Get(ctx context.Context, id string) (ports.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return ports.Account{}, ports.ErrNotFound
	}
	return a, nil
}

// GetByEmail retrieves an account by email.
func (s *AccountStore) GetByEmail(ctx context.Context, email string) (ports.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return ports.Account{}, ports.ErrNotFound
}

// Create stores a new account.
func (s *AccountStore) Create(ctx context.Context, a ports.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; ok {
		return ports.ErrDuplicate
	}
	for _, existing := range s.accounts {
		if existing.Email == a.Email {
			return ports.ErrDuplicate
		}
	}
	s.accounts[a.ID] = a
	return nil
}

// Update modifies an existing account.
func (s *AccountStore) Update(ctx context.Context, a ports.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[a.ID]; !ok {
		return ports.ErrNotFound
	}
	s.accounts[a.ID] = a
	return nil
}

// List returns accounts with pagination.
func (s *AccountStore) List(ctx context.Context, limit, offset int) ([]ports.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]ports.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

var _ ports.AccountStore = (*AccountStore)(nil)
