package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tollgate/tollgate/adapters/clock"
	gatehttp "github.com/tollgate/tollgate/adapters/http"
	"github.com/tollgate/tollgate/adapters/idgen"
	"github.com/tollgate/tollgate/adapters/memory"
	"github.com/tollgate/tollgate/adapters/metrics"
	"github.com/tollgate/tollgate/app"
	"github.com/tollgate/tollgate/domain/key"
	"github.com/tollgate/tollgate/ports"
)

var baseTime = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

const rawTestKey = "tg_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type testStores struct {
	keys     *memory.KeyStore
	accounts *memory.AccountStore
	ledger   *memory.Ledger
}

func setupTestHandler(t *testing.T, upstream ports.Upstream) (*gatehttp.GateHandler, *testStores) {
	t.Helper()

	stores := &testStores{
		keys:     memory.NewKeyStore(),
		accounts: memory.NewAccountStore(),
		ledger:   memory.NewLedger(),
	}

	service := app.NewGateService(app.GateDeps{
		Keys:     stores.keys,
		Accounts: stores.accounts,
		Ledger:   stores.ledger,
		Upstream: upstream,
		Clock:    clock.NewFake(baseTime),
		IDGen:    idgen.NewSequential("rec_"),
		Metrics:  metrics.Noop{},
		Logger:   zerolog.Nop(),
	}, app.GateConfig{
		KeyPrefix:      "tg_",
		FreeDailyLimit: 100,
	})

	return gatehttp.NewGateHandler(service, zerolog.Nop()), stores
}

func seedKey(t *testing.T, stores *testStores, rawKey string) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}

	if err := stores.accounts.Create(context.Background(), ports.Account{
		ID:    "acct-1",
		Email: "dev@example.com",
	}); err != nil {
		t.Fatalf("create account: %v", err)
	}

	if err := stores.keys.Create(context.Background(), key.Key{
		ID:        "key-1",
		AccountID: "acct-1",
		Hash:      hash,
		Prefix:    rawKey[:key.PrefixLen],
		Tier:      key.TierFree,
		Active:    true,
		CreatedAt: baseTime.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("create key: %v", err)
	}
}

func newCatalogServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[]}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func newUpstream(t *testing.T, baseURL string) *gatehttp.UpstreamClient {
	t.Helper()

	upstream, err := gatehttp.NewUpstreamClient(gatehttp.UpstreamConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("create upstream: %v", err)
	}
	t.Cleanup(func() { upstream.Close() })
	return upstream
}

func decodeErrorCode(t *testing.T, body io.Reader) string {
	t.Helper()

	var doc struct {
		Errors []struct {
			Code string `json:"code"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		t.Fatalf("decode error document: %v", err)
	}
	if len(doc.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(doc.Errors))
	}
	return doc.Errors[0].Code
}

func TestGateHandler_AdmittedRequest(t *testing.T) {
	server := newCatalogServer(t)
	handler, stores := setupTestHandler(t, newUpstream(t, server.URL))
	seedKey(t, stores, rawTestKey)

	req := httptest.NewRequest("GET", "/catalog/items?page=1", nil)
	req.Header.Set("X-API-Key", rawTestKey)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	resp := rec.Result()
	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 200, body: %s", resp.StatusCode, body)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "items") {
		t.Errorf("body = %s, want catalog payload", body)
	}

	records := stores.ledger.All()
	if len(records) != 1 {
		t.Fatalf("ledger records = %d, want 1", len(records))
	}
	if records[0].Path != "/catalog/items" {
		t.Errorf("recorded path = %s, want /catalog/items", records[0].Path)
	}
}

func TestGateHandler_BearerToken(t *testing.T) {
	server := newCatalogServer(t)
	handler, stores := setupTestHandler(t, newUpstream(t, server.URL))
	seedKey(t, stores, rawTestKey)

	req := httptest.NewRequest("GET", "/catalog/items", nil)
	req.Header.Set("Authorization", "Bearer "+rawTestKey)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestGateHandler_QueryParamKey(t *testing.T) {
	server := newCatalogServer(t)
	handler, stores := setupTestHandler(t, newUpstream(t, server.URL))
	seedKey(t, stores, rawTestKey)

	req := httptest.NewRequest("GET", "/catalog/items?api_key="+rawTestKey, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestGateHandler_MissingKey(t *testing.T) {
	server := newCatalogServer(t)
	handler, _ := setupTestHandler(t, newUpstream(t, server.URL))

	req := httptest.NewRequest("GET", "/catalog/items", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != "missing_key" {
		t.Errorf("code = %s, want missing_key", code)
	}
}

func TestGateHandler_DuplicateKeys(t *testing.T) {
	server := newCatalogServer(t)
	handler, stores := setupTestHandler(t, newUpstream(t, server.URL))
	seedKey(t, stores, rawTestKey)

	// Same valid key presented through two channels is still a rejection.
	req := httptest.NewRequest("GET", "/catalog/items?api_key="+rawTestKey, nil)
	req.Header.Set("X-API-Key", rawTestKey)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != "duplicate_key" {
		t.Errorf("code = %s, want duplicate_key", code)
	}
	if len(stores.ledger.All()) != 0 {
		t.Error("rejected request must not be metered")
	}
}

func TestGateHandler_UnknownKey(t *testing.T) {
	server := newCatalogServer(t)
	handler, _ := setupTestHandler(t, newUpstream(t, server.URL))

	req := httptest.NewRequest("GET", "/catalog/items", nil)
	req.Header.Set("X-API-Key", "tg_ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != "unknown_key" {
		t.Errorf("code = %s, want unknown_key", code)
	}
}

func TestGateHandler_UpstreamDown(t *testing.T) {
	server := newCatalogServer(t)
	upstream := newUpstream(t, server.URL)
	server.Close()

	handler, stores := setupTestHandler(t, upstream)
	seedKey(t, stores, rawTestKey)

	req := httptest.NewRequest("GET", "/catalog/items", nil)
	req.Header.Set("X-API-Key", rawTestKey)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != 502 {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != "upstream_error" {
		t.Errorf("code = %s, want upstream_error", code)
	}
	// The request was admitted before the forward failed, so it is metered.
	if len(stores.ledger.All()) != 1 {
		t.Errorf("ledger records = %d, want 1", len(stores.ledger.All()))
	}
}

func TestVersion(t *testing.T) {
	req := httptest.NewRequest("GET", "/version", nil)
	rec := httptest.NewRecorder()

	gatehttp.Version(rec, req)

	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	json.NewDecoder(rec.Body).Decode(&body)

	if body["service"] != "tollgate" {
		t.Errorf("service = %s, want tollgate", body["service"])
	}
}

func TestHealthHandler_NilUpstream(t *testing.T) {
	healthHandler := gatehttp.NewHealthHandler(nil)

	req := httptest.NewRequest("GET", "/health/ready", nil)
	rec := httptest.NewRecorder()
	healthHandler.Readiness(rec, req)

	if rec.Code != 200 {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHealthHandler_UnhealthyUpstream(t *testing.T) {
	server := newCatalogServer(t)
	upstream := newUpstream(t, server.URL)
	server.Close()

	healthHandler := gatehttp.NewHealthHandler(upstream)

	req := httptest.NewRequest("GET", "/health/ready", nil)
	rec := httptest.NewRecorder()
	healthHandler.Readiness(rec, req)

	if rec.Code != 503 {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRouter_UngatedEndpoints(t *testing.T) {
	server := newCatalogServer(t)
	upstream := newUpstream(t, server.URL)
	handler, _ := setupTestHandler(t, upstream)

	router := gatehttp.NewRouter(handler, gatehttp.NewHealthHandler(upstream), zerolog.Nop())

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/version"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != 200 {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestRouter_CatchAllGoesThroughGate(t *testing.T) {
	server := newCatalogServer(t)
	upstream := newUpstream(t, server.URL)
	handler, _ := setupTestHandler(t, upstream)

	router := gatehttp.NewRouter(handler, gatehttp.NewHealthHandler(upstream), zerolog.Nop())

	// Without a key the gate rejects; the catch-all must not 404.
	req := httptest.NewRequest("GET", "/catalog/items", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
