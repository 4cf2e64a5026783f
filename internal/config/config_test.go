package config

import (
	"path/filepath"
	"testing"
	"time"
)

type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestLoadClientFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadClientFromEnv(mapEnv{"HOME": "/home/ana"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APIURL != "http://localhost:3000" {
		t.Fatalf("expected default api url, got %q", cfg.APIURL)
	}
	if cfg.SocketURL != cfg.APIURL {
		t.Fatalf("expected socket url to follow api url, got %q", cfg.SocketURL)
	}
	if cfg.ToastTTL != 5*time.Second {
		t.Fatalf("expected 5s toast ttl, got %s", cfg.ToastTTL)
	}
	if cfg.HTTPTimeout != 15*time.Second {
		t.Fatalf("expected 15s http timeout, got %s", cfg.HTTPTimeout)
	}
	want := filepath.Join("/home/ana", ".config", "garage-client", "token")
	if cfg.TokenFile != want {
		t.Fatalf("expected token file %q, got %q", want, cfg.TokenFile)
	}
}

func TestLoadClientFromEnv_Overrides(t *testing.T) {
	cfg, err := LoadClientFromEnv(mapEnv{
		"GARAGE_API_URL":         "https://api.garage.test",
		"GARAGE_SOCKET_URL":      "wss://push.garage.test",
		"GARAGE_TOKEN_FILE":      "/tmp/token",
		"GARAGE_TOAST_SECONDS":   "2",
		"GARAGE_REFRESH_SECONDS": "30",
		"GARAGE_ROLE_POLICY":     "enforce",
		"LOG_LEVEL":              "debug",
		"METRICS_ADDR":           ":9100",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.SocketURL != "wss://push.garage.test" {
		t.Fatalf("unexpected socket url %q", cfg.SocketURL)
	}
	if cfg.TokenFile != "/tmp/token" {
		t.Fatalf("unexpected token file %q", cfg.TokenFile)
	}
	if cfg.ToastTTL != 2*time.Second {
		t.Fatalf("unexpected toast ttl %s", cfg.ToastTTL)
	}
	if cfg.RefreshInterval != 30*time.Second {
		t.Fatalf("unexpected refresh interval %s", cfg.RefreshInterval)
	}
	if cfg.RolePolicy != "enforce" || cfg.LogLevel != "debug" || cfg.MetricsAddr != ":9100" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadClientFromEnv_Invalid(t *testing.T) {
	cases := []mapEnv{
		{"GARAGE_API_URL": "localhost:3000"},
		{"GARAGE_API_URL": "ftp://x"},
		{"GARAGE_SOCKET_URL": "http://"},
		{"GARAGE_TOAST_SECONDS": "0"},
		{"GARAGE_HTTP_TIMEOUT_SECONDS": "soon"},
		{"GARAGE_REFRESH_SECONDS": "-1"},
	}
	for _, env := range cases {
		if _, err := LoadClientFromEnv(env); err == nil {
			t.Fatalf("expected error for %v", env)
		}
	}
}

func TestLoadMockFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadMockFromEnv(mapEnv{"MASTER_SECRET": "x"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 3000 {
		t.Fatalf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("expected default gin mode release, got %q", cfg.GinMode)
	}
}

func TestLoadMockFromEnv_MissingSecret(t *testing.T) {
	_, err := LoadMockFromEnv(mapEnv{})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoadMockFromEnv_Overrides(t *testing.T) {
	cfg, err := LoadMockFromEnv(mapEnv{"MASTER_SECRET": "x", "PORT": "1234", "TOKEN_EXPIRY_SECONDS": "60"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Port != 1234 {
		t.Fatalf("expected port 1234, got %d", cfg.Port)
	}
	if cfg.TokenExpiry != time.Minute {
		t.Fatalf("expected 1m expiry, got %s", cfg.TokenExpiry)
	}
}
