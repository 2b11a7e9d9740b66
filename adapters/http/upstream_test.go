package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gatehttp "github.com/tollgate/tollgate/adapters/http"
	"github.com/tollgate/tollgate/domain/gate"
)

func TestNewUpstreamClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     gatehttp.UpstreamConfig
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: gatehttp.UpstreamConfig{
				BaseURL:         "https://catalog.example.com",
				Timeout:         30 * time.Second,
				MaxIdleConns:    50,
				IdleConnTimeout: 60 * time.Second,
			},
			wantErr: false,
		},
		{
			name: "minimal config with defaults",
			cfg: gatehttp.UpstreamConfig{
				BaseURL: "https://catalog.example.com",
			},
			wantErr: false,
		},
		{
			name: "invalid URL",
			cfg: gatehttp.UpstreamConfig{
				BaseURL: "://invalid-url",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := gatehttp.NewUpstreamClient(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			client.Close()
		})
	}
}

func TestUpstreamClient_Forward(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-For") == "" {
			t.Error("missing X-Forwarded-For header")
		}
		if r.Header.Get("X-Request-ID") != "trace-123" {
			t.Errorf("X-Request-ID = %s, want trace-123", r.Header.Get("X-Request-ID"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Connection", "keep-alive")
		w.Write([]byte(`{"method":"` + r.Method + `","path":"` + r.URL.Path + `","query":"` + r.URL.RawQuery + `"}`))
	}))
	defer server.Close()

	client, err := gatehttp.NewUpstreamClient(gatehttp.UpstreamConfig{
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	resp, err := client.Forward(context.Background(), gate.Request{
		Method:   "GET",
		Path:     "/catalog/items",
		Query:    "page=2",
		Headers:  map[string]string{"Accept": "application/json"},
		RemoteIP: "192.168.1.1",
		TraceID:  "trace-123",
	})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}

	if resp.Status != 200 {
		t.Errorf("status = %d, want 200", resp.Status)
	}
	body := string(resp.Body)
	if !strings.Contains(body, `"path":"/catalog/items"`) {
		t.Errorf("body = %s, want forwarded path", body)
	}
	if !strings.Contains(body, `"query":"page=2"`) {
		t.Errorf("body = %s, want forwarded query", body)
	}
	if _, ok := resp.Headers["Connection"]; ok {
		t.Error("hop-by-hop header must not be forwarded back")
	}
	if resp.Headers["Content-Type"] != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", resp.Headers["Content-Type"])
	}
}

func TestUpstreamClient_ForwardBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		w.Write(buf[:n])
	}))
	defer server.Close()

	client, err := gatehttp.NewUpstreamClient(gatehttp.UpstreamConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	resp, err := client.Forward(context.Background(), gate.Request{
		Method: "POST",
		Path:   "/catalog/items",
		Body:   []byte(`{"name":"widget"}`),
	})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}

	if string(resp.Body) != `{"name":"widget"}` {
		t.Errorf("body = %s, want echoed payload", resp.Body)
	}
}

func TestUpstreamClient_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound) // any response means reachable
	}))
	defer server.Close()

	client, err := gatehttp.NewUpstreamClient(gatehttp.UpstreamConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("health check: %v", err)
	}

	server.Close()
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Error("expected error after server close")
	}
}
