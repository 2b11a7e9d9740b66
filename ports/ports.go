// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/tollgate/tollgate/domain/billing"
	"github.com/tollgate/tollgate/domain/gate"
	"github.com/tollgate/tollgate/domain/key"
	"github.com/tollgate/tollgate/domain/restriction"
	"github.com/tollgate/tollgate/domain/usage"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// Account represents a billable account.
type Account struct {
	ID         string
	Email      string
	Name       string
	Delinquent bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AccountStore persists accounts.
type AccountStore interface {
	// Get retrieves an account by ID.
	Get(ctx context.Context, id string) (Account, error)

	// GetByEmail retrieves an account by email.
	GetByEmail(ctx context.Context, email string) (Account, error)

	// Create stores a new account.
	Create(ctx context.Context, a Account) error

	// Update modifies an existing account.
	Update(ctx context.Context, a Account) error

	// List returns accounts with pagination.
	List(ctx context.Context, limit, offset int) ([]Account, error)
}

// KeyStore persists API keys and their network restrictions.
type KeyStore interface {
	// GetByPrefix retrieves keys matching a prefix (for validation).
	// Restrictions are loaded alongside each key.
	GetByPrefix(ctx context.Context, prefix string) ([]key.Key, error)

	// Get retrieves a key by ID.
	Get(ctx context.Context, id string) (key.Key, error)

	// Create stores a new key. Creating a second free key for an account
	// that already has one fails with ErrFreeKeyExists.
	Create(ctx context.Context, k key.Key) error

	// SetActive activates or deactivates a key.
	SetActive(ctx context.Context, id string, active bool) error

	// Delete removes a key and its restrictions.
	Delete(ctx context.Context, id string) error

	// ListByAccount returns all keys for an account.
	ListByAccount(ctx context.Context, accountID string) ([]key.Key, error)

	// ReplaceSecret swaps a key's prefix and hash for freshly generated ones.
	ReplaceSecret(ctx context.Context, id string, prefix string, hash []byte) error

	// UpdateLastUsed updates the last used timestamp.
	UpdateLastUsed(ctx context.Context, id string, at time.Time) error

	// AddDomainRestriction attaches a domain allowlist entry to a key.
	AddDomainRestriction(ctx context.Context, r restriction.Domain) error

	// AddIPRestriction attaches an IP allowlist entry to a key.
	AddIPRestriction(ctx context.Context, r restriction.IP) error
}

// UsageLedger persists the request ledger.
type UsageLedger interface {
	// Append records one admitted request. The write is synchronous;
	// a failed append must fail the request it belongs to.
	Append(ctx context.Context, r usage.Record) error

	// CountForKeySince returns the number of records for a key with
	// timestamps at or after the given instant.
	CountForKeySince(ctx context.Context, keyID string, since time.Time) (int64, error)

	// SummaryForAccount returns aggregated usage for an account in [start, end).
	SummaryForAccount(ctx context.Context, accountID string, start, end time.Time) (usage.Summary, error)

	// RecentForAccount returns the most recent records for an account.
	RecentForAccount(ctx context.Context, accountID string, limit int) ([]usage.Record, error)
}

// BillingStore persists invoices and billing period markers.
type BillingStore interface {
	// PeriodIssued reports whether invoices for a month have been issued.
	PeriodIssued(ctx context.Context, month time.Month, year int) (bool, error)

	// IssueInvoices creates one invoice per account with usage in the
	// period, marks the period issued, and returns the invoice count.
	// The whole operation is atomic.
	IssueInvoices(ctx context.Context, month time.Month, year int, issuedAt time.Time, requestsPerUnit int64) (int, error)

	// FlagDelinquents marks every account with an unpaid invoice past its
	// due date as delinquent, and clears the flag on accounts without one.
	// Returns how many accounts are flagged after the pass.
	FlagDelinquents(ctx context.Context, now time.Time) (int, error)

	// ListByAccount returns invoices for an account, newest first.
	ListByAccount(ctx context.Context, accountID string, limit int) ([]billing.Invoice, error)

	// MarkPaid records payment of an invoice.
	MarkPaid(ctx context.Context, id int64) error
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// Upstream represents the catalog API being fronted.
type Upstream interface {
	// Forward sends an admitted request to the upstream and returns the
	// response.
	Forward(ctx context.Context, req gate.Request) (gate.Response, error)

	// HealthCheck verifies the upstream is reachable.
	HealthCheck(ctx context.Context) error
}

// -----------------------------------------------------------------------------
// Observability Ports
// -----------------------------------------------------------------------------

// Metrics records gate and billing measurements.
type Metrics interface {
	// RecordAdmission counts one gate decision by tier and outcome code.
	RecordAdmission(tier, code string)

	// RecordLatency observes end-to-end request latency.
	RecordLatency(path string, seconds float64)

	// RecordBillingRun counts one billing cycle by outcome.
	RecordBillingRun(outcome string, invoices int)
}
