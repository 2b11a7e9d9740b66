// Package http provides the HTTP surface of the gate: the admission handler,
// the catalog upstream client, health endpoints, and the router.
package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tollgate/tollgate/adapters/metrics"
	"github.com/tollgate/tollgate/app"
	"github.com/tollgate/tollgate/domain/gate"
	"github.com/tollgate/tollgate/pkg/jsonapi"
)

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// GateHandler wraps the gate service for HTTP handling.
type GateHandler struct {
	service *app.GateService
	logger  zerolog.Logger
}

// NewGateHandler creates a new HTTP gate handler.
func NewGateHandler(service *app.GateService, logger zerolog.Logger) *GateHandler {
	return &GateHandler{
		service: service,
		logger:  logger,
	}
}

// ServeHTTP admits or rejects an incoming catalog request.
func (h *GateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Collect every key the caller presented. Presenting more than one is
	// itself a rejection, so the slice keeps them all.
	apiKeys := extractAPIKeys(r)

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(io.LimitReader(r.Body, 10<<20)) // 10MB limit
		if err != nil {
			h.logger.Error().Err(err).Msg("failed to read request body")
			writeError(w, &gate.ErrorResponse{
				Status:  400,
				Code:    "bad_request",
				Message: "Failed to read request body",
			})
			return
		}
	}

	req := gate.Request{
		APIKeys:      apiKeys,
		Method:       r.Method,
		Path:         r.URL.Path,
		Query:        r.URL.RawQuery,
		Headers:      extractHeaders(r),
		Body:         body,
		RemoteIP:     extractIP(r),
		OriginDomain: extractOrigin(r),
		UserAgent:    r.UserAgent(),
		TraceID:      middleware.GetReqID(ctx),
	}

	result := h.service.Handle(ctx, req)

	h.logRequest(req, result)

	if result.Error != nil {
		writeError(w, result.Error)
		return
	}

	for k, v := range result.Response.Headers {
		w.Header().Set(k, v)
	}

	w.WriteHeader(result.Response.Status)
	if len(result.Response.Body) > 0 {
		if _, err := w.Write(result.Response.Body); err != nil {
			h.logger.Error().Err(err).Msg("failed to write response body")
		}
	}
}

func (h *GateHandler) logRequest(req gate.Request, result app.HandleResult) {
	event := h.logger.Info()

	if result.Error != nil {
		event = h.logger.Warn()
		event.Int("error_status", result.Error.Status)
		event.Str("error_code", result.Error.Code)
	} else {
		event.Int("status", result.Response.Status)
		event.Int64("latency_ms", result.Response.LatencyMs)
	}

	event.
		Str("method", req.Method).
		Str("path", req.Path).
		Str("remote_ip", req.RemoteIP).
		Str("trace_id", req.TraceID)

	if result.Auth != nil {
		event.
			Str("key_id", result.Auth.KeyID).
			Str("account_id", result.Auth.AccountID).
			Str("tier", result.Auth.Tier)
	}

	event.Msg("gate request")
}

// extractAPIKeys collects all API keys presented on the request.
// Supports: Authorization header (Bearer token), X-API-Key headers, api_key query params.
func extractAPIKeys(r *http.Request) []string {
	var keys []string

	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			keys = append(keys, strings.TrimPrefix(auth, "Bearer "))
		}
	}

	for _, key := range r.Header.Values("X-API-Key") {
		if key != "" {
			keys = append(keys, key)
		}
	}

	for _, key := range r.URL.Query()["api_key"] {
		if key != "" {
			keys = append(keys, key)
		}
	}

	return keys
}

// extractHeaders extracts forwardable headers from the request.
// Note: Go stores the Host header in r.Host, not r.Header["Host"].
func extractHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string)

	if r.Host != "" {
		headers["Host"] = r.Host
	}

	for k, v := range r.Header {
		// Skip credentials and hop-by-hop headers
		lower := strings.ToLower(k)
		if lower == "authorization" || lower == "x-api-key" ||
			lower == "connection" || lower == "keep-alive" ||
			lower == "proxy-authenticate" || lower == "proxy-authorization" ||
			lower == "te" || lower == "trailers" || lower == "transfer-encoding" ||
			lower == "upgrade" {
			continue
		}
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return headers
}

// extractIP extracts the client IP from the request.
func extractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// extractOrigin returns the host of the Origin header, falling back to Referer.
// Empty when the caller sent neither, which restriction checks treat as no match.
func extractOrigin(r *http.Request) string {
	for _, raw := range []string{r.Header.Get("Origin"), r.Header.Get("Referer")} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		return u.Hostname()
	}
	return ""
}

// writeError writes a JSON:API error response.
func writeError(w http.ResponseWriter, err *gate.ErrorResponse) {
	jsonapi.WriteError(w, jsonapi.NewError(err.Status, err.Code, err.Message))
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	upstream HealthChecker
}

// HealthChecker interface for checking upstream health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(upstream HealthChecker) *HealthHandler {
	return &HealthHandler{upstream: upstream}
}

// Liveness returns a simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Readiness checks if the service and catalog are ready to handle traffic.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.upstream != nil {
		if err := h.upstream.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Version returns the service version.
func Version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(VersionResponse{
		Version: "dev",
		Service: "tollgate",
	})
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer // Registry backing the /metrics endpoint
}

// NewRouter creates the main HTTP router.
func NewRouter(gateHandler *GateHandler, healthHandler *HealthHandler, logger zerolog.Logger) chi.Router {
	return NewRouterWithConfig(gateHandler, healthHandler, logger, RouterConfig{})
}

// NewRouterWithConfig creates the main HTTP router with optional config.
func NewRouterWithConfig(gateHandler *GateHandler, healthHandler *HealthHandler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics))
	}

	// Health endpoints (ungated)
	r.Get("/health", healthHandler.Liveness)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/version", Version)

	// Everything else goes through the gate.
	r.NotFound(gateHandler.ServeHTTP)

	return r
}

// NewMetricsMiddleware creates middleware that records request latency.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip internal endpoints
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" || r.URL.Path == "/version" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			m.RecordLatency(metrics.NormalizePath(r.URL.Path), time.Since(start).Seconds())
		})
	}
}

// NewLoggingMiddleware creates a new logging middleware.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
