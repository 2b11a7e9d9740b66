package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tollgate/tollgate/domain/gate"
	"github.com/tollgate/tollgate/ports"
)

// UpstreamClient forwards admitted requests to the catalog service.
type UpstreamClient struct {
	client  *http.Client
	baseURL *url.URL
}

// UpstreamConfig contains configuration for the upstream client.
type UpstreamConfig struct {
	BaseURL         string
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
}

// NewUpstreamClient creates a new catalog upstream client.
func NewUpstreamClient(cfg UpstreamConfig) (*UpstreamClient, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns == 0 {
		maxIdleConns = 100
	}

	idleConnTimeout := cfg.IdleConnTimeout
	if idleConnTimeout == 0 {
		idleConnTimeout = 90 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConns,
		IdleConnTimeout:     idleConnTimeout,
	}

	return &UpstreamClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL: baseURL,
	}, nil
}

// Forward sends a request to the catalog and returns the response.
func (u *UpstreamClient) Forward(ctx context.Context, req gate.Request) (gate.Response, error) {
	start := time.Now()

	upstreamURL := u.baseURL.ResolveReference(&url.URL{
		Path:     req.Path,
		RawQuery: req.Query,
	})

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, upstreamURL.String(), body)
	if err != nil {
		return gate.Response{}, fmt.Errorf("create request: %w", err)
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpReq.Header.Set("X-Forwarded-For", req.RemoteIP)
	if req.TraceID != "" {
		httpReq.Header.Set("X-Request-ID", req.TraceID)
	}

	resp, err := u.client.Do(httpReq)
	if err != nil {
		return gate.Response{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 50<<20)) // 50MB limit
	if err != nil {
		return gate.Response{}, fmt.Errorf("read response: %w", err)
	}

	headers := make(map[string]string)
	for k, v := range resp.Header {
		if isHopByHop(k) {
			continue
		}
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return gate.Response{
		Status:       resp.StatusCode,
		Headers:      headers,
		Body:         respBody,
		LatencyMs:    time.Since(start).Milliseconds(),
		UpstreamAddr: u.baseURL.Host,
	}, nil
}

// HealthCheck verifies the catalog is reachable.
func (u *UpstreamClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "HEAD", u.baseURL.String(), nil)
	if err != nil {
		return err
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	// Any response (even 404) means the catalog is reachable.
	return nil
}

// Close closes idle connections held by the client.
func (u *UpstreamClient) Close() error {
	u.client.CloseIdleConnections()
	return nil
}

func isHopByHop(header string) bool {
	switch strings.ToLower(header) {
	case "connection", "keep-alive", "proxy-authenticate", "proxy-authorization",
		"te", "trailers", "transfer-encoding", "upgrade":
		return true
	}
	return false
}

// Ensure interface compliance.
var _ ports.Upstream = (*UpstreamClient)(nil)
