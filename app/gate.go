// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tollgate/tollgate/domain/gate"
	"github.com/tollgate/tollgate/domain/key"
	"github.com/tollgate/tollgate/domain/quota"
	"github.com/tollgate/tollgate/domain/restriction"
	"github.com/tollgate/tollgate/domain/usage"
	"github.com/tollgate/tollgate/ports"
)

// GateService admits or rejects incoming requests and meters the admitted
// ones. Every decision is made before the upstream is contacted.
type GateService struct {
	keys     ports.KeyStore
	accounts ports.AccountStore
	ledger   ports.UsageLedger
	upstream ports.Upstream
	clock    ports.Clock
	idGen    ports.IDGenerator
	metrics  ports.Metrics
	logger   zerolog.Logger

	// Static configuration (requires restart)
	keyPrefix string

	// Dynamic configuration (hot-reloadable)
	dynamicCfg atomic.Pointer[DynamicConfig]
}

// DynamicConfig contains hot-reloadable configuration.
type DynamicConfig struct {
	FreeDailyLimit int64
}

// GateDeps contains dependencies for GateService.
type GateDeps struct {
	Keys     ports.KeyStore
	Accounts ports.AccountStore
	Ledger   ports.UsageLedger
	Upstream ports.Upstream
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Metrics  ports.Metrics
	Logger   zerolog.Logger
}

// GateConfig contains configuration for GateService.
type GateConfig struct {
	KeyPrefix      string
	FreeDailyLimit int64
}

// NewGateService creates a new gate service.
func NewGateService(deps GateDeps, cfg GateConfig) *GateService {
	s := &GateService{
		keys:      deps.Keys,
		accounts:  deps.Accounts,
		ledger:    deps.Ledger,
		upstream:  deps.Upstream,
		clock:     deps.Clock,
		idGen:     deps.IDGen,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		keyPrefix: cfg.KeyPrefix,
	}

	s.UpdateConfig(cfg.FreeDailyLimit)

	return s
}

// UpdateConfig updates the hot-reloadable configuration.
// This is thread-safe and can be called while handling requests.
func (s *GateService) UpdateConfig(freeDailyLimit int64) {
	s.dynamicCfg.Store(&DynamicConfig{
		FreeDailyLimit: freeDailyLimit,
	})
}

func (s *GateService) getDynamicConfig() *DynamicConfig {
	return s.dynamicCfg.Load()
}

// HandleResult represents the outcome of handling a request.
type HandleResult struct {
	Response gate.Response
	Error    *gate.ErrorResponse
	Auth     *gate.AuthContext
}

// Handle processes an incoming request: authenticate, check restrictions and
// policy, record usage, then forward to the upstream.
// This method orchestrates pure domain functions with I/O operations.
func (s *GateService) Handle(ctx context.Context, req gate.Request) HandleResult {
	now := s.clock.Now()
	dynCfg := s.getDynamicConfig()

	// 1. Exactly one key credential (PURE)
	switch {
	case len(req.APIKeys) == 0:
		return s.reject("", &gate.ErrMissingKey)
	case len(req.APIKeys) > 1:
		return s.reject("", &gate.ErrDuplicateKey)
	}
	rawKey := req.APIKeys[0]

	// 2. Validate key format (PURE)
	prefix, valid := key.ValidateFormat(rawKey, s.keyPrefix)
	if !valid {
		return s.reject("", &gate.ErrUnknownKey)
	}

	// 3. Lookup candidates by prefix and match by hash (I/O + PURE)
	candidates, err := s.keys.GetByPrefix(ctx, prefix)
	if err != nil {
		return s.fail("key lookup", err)
	}
	var matched key.Key
	found := false
	for _, k := range candidates {
		if key.Verify(k, rawKey) {
			matched = k
			found = true
			break
		}
	}
	if !found {
		return s.reject("", &gate.ErrUnknownKey)
	}

	// 4. Validate key state (PURE)
	if v := key.Validate(matched); !v.Valid {
		return s.reject(string(matched.Tier), &gate.ErrInactiveKey)
	}

	// 5. Network restrictions (PURE)
	if !restriction.Evaluate(matched.Domains, matched.IPs, req.OriginDomain, req.RemoteIP) {
		return s.reject(string(matched.Tier), &gate.ErrRestricted)
	}

	// 6. Tier policy (PURE + I/O for counts)
	switch matched.Tier {
	case key.TierFree:
		used, err := s.ledger.CountForKeySince(ctx, matched.ID, quota.DayStartUTC(now))
		if err != nil {
			return s.fail("quota count", err)
		}
		if r := quota.CheckFree(used, dynCfg.FreeDailyLimit); !r.Allowed {
			return s.reject(string(matched.Tier), &gate.ErrQuotaExceeded)
		}
	case key.TierPaid:
		acct, err := s.accounts.Get(ctx, matched.AccountID)
		if err != nil {
			return s.fail("account lookup", err)
		}
		if r := quota.CheckPaid(acct.Delinquent); !r.Allowed {
			return s.reject(string(matched.Tier), &gate.ErrDelinquent)
		}
	default:
		return s.reject(string(matched.Tier), &gate.ErrInactiveKey)
	}

	auth := gate.AuthContext{
		KeyID:     matched.ID,
		AccountID: matched.AccountID,
		Tier:      string(matched.Tier),
	}

	// 7. Ledger append (synchronous I/O). A request that cannot be metered
	// is not served.
	rec := usage.Record{
		ID:        s.idGen.New(),
		KeyID:     matched.ID,
		AccountID: matched.AccountID,
		Method:    req.Method,
		Path:      req.Path,
		SourceIP:  req.RemoteIP,
		Timestamp: now,
	}
	if err := s.ledger.Append(ctx, rec); err != nil {
		return s.fail("ledger append", err)
	}

	// 8. Forward to upstream (I/O)
	resp, err := s.upstream.Forward(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).Str("path", req.Path).Msg("upstream request failed")
		s.metrics.RecordAdmission(auth.Tier, gate.ErrUpstream.Code)
		return HandleResult{Error: &gate.ErrUpstream, Auth: &auth}
	}

	// Best effort, never fails the request.
	if err := s.keys.UpdateLastUsed(ctx, matched.ID, now); err != nil {
		s.logger.Warn().Err(err).Str("key_id", matched.ID).Msg("last used update failed")
	}

	s.metrics.RecordAdmission(auth.Tier, "admitted")
	return HandleResult{Response: resp, Auth: &auth}
}

func (s *GateService) reject(tier string, e *gate.ErrorResponse) HandleResult {
	if tier == "" {
		tier = "unknown"
	}
	s.metrics.RecordAdmission(tier, e.Code)
	return HandleResult{Error: e}
}

func (s *GateService) fail(op string, err error) HandleResult {
	s.logger.Error().Err(err).Str("op", op).Msg("gate store failure")
	s.metrics.RecordAdmission("unknown", gate.ErrInternal.Code)
	return HandleResult{Error: &gate.ErrInternal}
}
