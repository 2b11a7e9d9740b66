// Package key provides API key value types and pure validation functions.
// This package has NO dependencies on I/O.
package key

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tollgate/tollgate/domain/restriction"
)

// Tier classifies how a key is metered and billed.
type Tier string

const (
	// TierFree keys are capped at a daily request quota and never billed.
	TierFree Tier = "free"
	// TierPaid keys are unlimited but metered; usage is invoiced monthly.
	TierPaid Tier = "paid"
)

// Key represents an API key (immutable value type).
type Key struct {
	ID        string
	AccountID string
	Hash      []byte // bcrypt hash of the full key
	Prefix    string // First 12 chars for lookup
	Tier      Tier
	Active    bool
	Domains   []restriction.Domain
	IPs       []restriction.IP
	CreatedAt time.Time
	LastUsed  *time.Time
}

// ValidationResult represents the outcome of key validation (value type).
type ValidationResult struct {
	Valid  bool
	Key    Key    // Populated only if Valid=true
	Reason string // Populated only if Valid=false
}

// Reasons for validation failure.
const (
	ReasonValid     = ""
	ReasonNotFound  = "unknown_key"
	ReasonInactive  = "inactive_key"
	ReasonBadFormat = "invalid_format"
)

// PrefixLen is the number of leading characters stored in clear for lookup.
const PrefixLen = 12

// Generate creates a new API key with the given prefix.
// Returns the raw key (to give to the caller) and the Key struct (to store).
// The raw key is: prefix + 64 hex chars.
func Generate(prefix string) (rawKey string, k Key) {
	// 32 random bytes = 64 hex chars
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}

	rawKey = prefix + hex.EncodeToString(randomBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("bcrypt failed: %v", err))
	}

	idBytes := make([]byte, 8)
	rand.Read(idBytes)

	k = Key{
		ID:        "key_" + hex.EncodeToString(idBytes),
		Hash:      hash,
		Prefix:    rawKey[:PrefixLen],
		Tier:      TierFree,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	return rawKey, k
}

// Verify reports whether rawKey is the secret this Key was generated from.
func Verify(k Key, rawKey string) bool {
	return bcrypt.CompareHashAndPassword(k.Hash, []byte(rawKey)) == nil
}

// WithAccountID returns a copy of the key with the AccountID set.
func (k Key) WithAccountID(accountID string) Key {
	k.AccountID = accountID
	return k
}

// WithTier returns a copy of the key with the Tier set.
func (k Key) WithTier(t Tier) Key {
	k.Tier = t
	return k
}
