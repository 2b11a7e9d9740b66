package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tollgate/tollgate/domain/billing"
	"github.com/tollgate/tollgate/ports"
)

// DefaultBillingInterval is how often the billing cycle runs.
const DefaultBillingInterval = 24 * time.Hour

// BillingService runs the periodic billing cycle: issue invoices for the
// prior calendar month and reconcile account delinquency flags.
type BillingService struct {
	store    ports.BillingStore
	clock    ports.Clock
	metrics  ports.Metrics
	logger   zerolog.Logger
	interval time.Duration

	// Static pricing configuration
	requestsPerUnit int64
}

// BillingDeps contains dependencies for BillingService.
type BillingDeps struct {
	Store   ports.BillingStore
	Clock   ports.Clock
	Metrics ports.Metrics
	Logger  zerolog.Logger
}

// BillingConfig contains configuration for BillingService.
type BillingConfig struct {
	Interval        time.Duration
	RequestsPerUnit int64
}

// NewBillingService creates a new billing service.
func NewBillingService(deps BillingDeps, cfg BillingConfig) *BillingService {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultBillingInterval
	}

	return &BillingService{
		store:           deps.Store,
		clock:           deps.Clock,
		metrics:         deps.Metrics,
		logger:          deps.Logger,
		interval:        interval,
		requestsPerUnit: cfg.RequestsPerUnit,
	}
}

// Run executes billing cycles until ctx is cancelled or a cycle fails.
// A failed cycle terminates the loop; the caller decides whether that
// takes the process down.
func (s *BillingService) Run(ctx context.Context) error {
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.metrics.RecordBillingRun("error", 0)
			s.logger.Error().Err(err).Msg("billing cycle failed, stopping billing task")
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.interval):
		}
	}
}

// RunOnce executes a single billing cycle. The cycle is idempotent: a
// period whose invoices were already issued is skipped, and delinquency
// reconciliation always converges to the same state for a given ledger.
func (s *BillingService) RunOnce(ctx context.Context) error {
	now := s.clock.Now()
	month, year := billing.PriorPeriod(now)

	issued, err := s.store.PeriodIssued(ctx, month, year)
	if err != nil {
		return fmt.Errorf("check period %s %d: %w", month, year, err)
	}

	invoices := 0
	if issued {
		s.logger.Debug().
			Str("month", month.String()).
			Int("year", year).
			Msg("invoices already issued for period")
	} else {
		invoices, err = s.store.IssueInvoices(ctx, month, year, now, s.requestsPerUnit)
		if err != nil {
			return fmt.Errorf("issue invoices for %s %d: %w", month, year, err)
		}
		s.logger.Info().
			Str("month", month.String()).
			Int("year", year).
			Int("invoices", invoices).
			Msg("invoices issued")
	}

	flagged, err := s.store.FlagDelinquents(ctx, now)
	if err != nil {
		return fmt.Errorf("flag delinquents: %w", err)
	}
	s.logger.Info().Int("delinquent_accounts", flagged).Msg("delinquency reconciled")

	s.metrics.RecordBillingRun("ok", invoices)
	return nil
}
