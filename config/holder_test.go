package config_test

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tollgate/tollgate/config"
)

func validConfig() string {
	return `
upstream:
  url: "http://localhost:3000"

gate:
  free_daily_limit: 100
`
}

func TestHolder_Get(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	got := h.Get()
	if got == nil {
		t.Fatal("Get returned nil")
	}
	if got.Upstream.URL != "http://localhost:3000" {
		t.Errorf("Upstream.URL = %s, want http://localhost:3000", got.Upstream.URL)
	}
}

func TestHolder_Reload(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	if h.Get().Gate.FreeDailyLimit != 100 {
		t.Errorf("initial FreeDailyLimit = %d, want 100", h.Get().Gate.FreeDailyLimit)
	}

	newContent := `
upstream:
  url: "http://localhost:3000"

gate:
  free_daily_limit: 200
`
	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	if err := h.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	if h.Get().Gate.FreeDailyLimit != 200 {
		t.Errorf("reloaded FreeDailyLimit = %d, want 200", h.Get().Gate.FreeDailyLimit)
	}
}

func TestHolder_ReloadKeepsOldConfigOnError(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	// Break the file: missing upstream.url fails validation.
	if err := os.WriteFile(path, []byte("gate:\n  key_prefix: tg_\n"), 0644); err != nil {
		t.Fatalf("write broken config: %v", err)
	}

	if err := h.Reload(); err == nil {
		t.Fatal("Reload of broken config succeeded, want error")
	}

	if h.Get().Upstream.URL != "http://localhost:3000" {
		t.Error("old config was not kept after failed reload")
	}
}

func TestHolder_OnChange(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	var mu sync.Mutex
	var got *config.Config

	h.OnChange(func(cfg *config.Config) {
		mu.Lock()
		got = cfg
		mu.Unlock()
	})

	newContent := `
upstream:
  url: "http://localhost:3000"

gate:
  free_daily_limit: 42
`
	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got == nil {
		t.Fatal("OnChange callback not invoked")
	}
	if got.Gate.FreeDailyLimit != 42 {
		t.Errorf("callback FreeDailyLimit = %d, want 42", got.Gate.FreeDailyLimit)
	}
}

func TestHolder_WatchFile(t *testing.T) {
	path := writeConfig(t, validConfig())

	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder error: %v", err)
	}
	defer h.Stop()

	changed := make(chan int64, 1)
	h.OnChange(func(cfg *config.Config) {
		select {
		case changed <- cfg.Gate.FreeDailyLimit:
		default:
		}
	})

	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile error: %v", err)
	}

	newContent := `
upstream:
  url: "http://localhost:3000"

gate:
  free_daily_limit: 77
`
	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	select {
	case limit := <-changed:
		if limit != 77 {
			t.Errorf("watched reload FreeDailyLimit = %d, want 77", limit)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("file change was not picked up")
	}
}
