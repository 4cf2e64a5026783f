package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Client configures the garage client.
type Client struct {
	APIURL      string
	SocketURL   string
	TokenFile   string
	RoutesFile  string
	RolePolicy  string
	ToastTTL    time.Duration
	HTTPTimeout time.Duration
	LogLevel    string
	LogFormat   string
	MetricsAddr string

	// RefreshInterval polls unread notifications and retries a dropped
	// realtime connection. Zero disables it.
	RefreshInterval time.Duration
}

// Mock configures the development backend.
type Mock struct {
	Port         int
	MasterSecret string
	GinMode      string
	TLSCertFile  string
	TLSKeyFile   string
	TokenExpiry  time.Duration
	StateFile    string
	LogLevel     string
	LogFormat    string
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadClient() (Client, error) {
	return LoadClientFromEnv(osEnv{})
}

func LoadMock() (Mock, error) {
	return LoadMockFromEnv(osEnv{})
}

func LoadClientFromEnv(env Env) (Client, error) {
	cfg := Client{
		APIURL:      "http://localhost:3000",
		ToastTTL:    5 * time.Second,
		HTTPTimeout: 15 * time.Second,
		LogLevel:    "info",
		LogFormat:   "text",
	}

	if raw := env.Getenv("GARAGE_API_URL"); raw != "" {
		cfg.APIURL = raw
	}
	if err := checkURL(cfg.APIURL); err != nil {
		return Client{}, fmt.Errorf("invalid GARAGE_API_URL: %w", err)
	}

	cfg.SocketURL = cfg.APIURL
	if raw := env.Getenv("GARAGE_SOCKET_URL"); raw != "" {
		if err := checkURL(raw); err != nil {
			return Client{}, fmt.Errorf("invalid GARAGE_SOCKET_URL: %w", err)
		}
		cfg.SocketURL = raw
	}

	cfg.TokenFile = env.Getenv("GARAGE_TOKEN_FILE")
	if cfg.TokenFile == "" {
		cfg.TokenFile = defaultTokenFile(env)
	}
	cfg.RoutesFile = env.Getenv("GARAGE_ROUTES_FILE")
	cfg.RolePolicy = env.Getenv("GARAGE_ROLE_POLICY")

	if raw := env.Getenv("GARAGE_TOAST_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Client{}, fmt.Errorf("invalid GARAGE_TOAST_SECONDS")
		}
		cfg.ToastTTL = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("GARAGE_HTTP_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Client{}, fmt.Errorf("invalid GARAGE_HTTP_TIMEOUT_SECONDS")
		}
		cfg.HTTPTimeout = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("GARAGE_REFRESH_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			return Client{}, fmt.Errorf("invalid GARAGE_REFRESH_SECONDS")
		}
		cfg.RefreshInterval = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := env.Getenv("LOG_FORMAT"); raw != "" {
		cfg.LogFormat = raw
	}
	cfg.MetricsAddr = env.Getenv("METRICS_ADDR")

	return cfg, nil
}

func LoadMockFromEnv(env Env) (Mock, error) {
	cfg := Mock{
		Port:        3000,
		GinMode:     "release",
		TokenExpiry: 7 * 24 * time.Hour,
		LogLevel:    "info",
		LogFormat:   "text",
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Mock{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")
	if cfg.MasterSecret == "" {
		return Mock{}, fmt.Errorf("MASTER_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")
	cfg.StateFile = env.Getenv("STATE_FILE")

	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Mock{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		cfg.LogLevel = raw
	}
	if raw := env.Getenv("LOG_FORMAT"); raw != "" {
		cfg.LogFormat = raw
	}

	return cfg, nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func defaultTokenFile(env Env) string {
	dir := env.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home := env.Getenv("HOME")
		if home == "" {
			return filepath.Join(os.TempDir(), "garage-client", "token")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "garage-client", "token")
}
