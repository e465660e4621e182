package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Client captures configuration of the kycctl client.
type Client struct {
	BaseURL        string        `yaml:"base_url"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LogLevel       string        `yaml:"log_level"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	AdminToken     string        `yaml:"admin_token"`
	UserID         string        `yaml:"user_id"`
}

// MockBackend captures configuration of the local verification backend.
type MockBackend struct {
	Addr           string
	StageDuration  time.Duration
	AdminToken     string
	LogLevel       string
	RequestTimeout time.Duration
}

// DefaultClient returns the client defaults: a local backend polled every 3s.
func DefaultClient() Client {
	return Client{
		BaseURL:        "http://localhost:8080",
		PollInterval:   3 * time.Second,
		RequestTimeout: 30 * time.Second,
		LogLevel:       "info",
	}
}

// ClientFromEnv builds a Client config from environment variables so main stays lean.
func ClientFromEnv() Client {
	cfg := DefaultClient()
	applyClientEnv(&cfg)
	return cfg
}

// LoadClient reads an optional YAML file over the defaults, then applies
// environment variables on top. An empty path skips the file.
func LoadClient(path string) (Client, error) {
	cfg := DefaultClient()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Client{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Client{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	applyClientEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

// Validate rejects settings the client cannot run with.
func (c Client) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base url %q must start with http:// or https://", c.BaseURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

func applyClientEnv(cfg *Client) {
	if v := os.Getenv("KYC_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if d, ok := durationEnv("KYC_POLL_INTERVAL"); ok {
		cfg.PollInterval = d
	}
	if d, ok := durationEnv("KYC_REQUEST_TIMEOUT"); ok {
		cfg.RequestTimeout = d
	}
	if v := os.Getenv("KYC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("KYC_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("KYC_ADMIN_TOKEN"); v != "" {
		cfg.AdminToken = v
	}
	if v := os.Getenv("KYC_USER_ID"); v != "" {
		cfg.UserID = v
	}
}

// MockBackendFromEnv builds the mock backend config from KYC_MOCK_* variables.
func MockBackendFromEnv() MockBackend {
	cfg := MockBackend{
		Addr:           ":8080",
		StageDuration:  2 * time.Second,
		LogLevel:       "info",
		RequestTimeout: 30 * time.Second,
	}
	if v := os.Getenv("KYC_MOCK_ADDR"); v != "" {
		cfg.Addr = v
	}
	if d, ok := durationEnv("KYC_MOCK_STAGE_DURATION"); ok {
		cfg.StageDuration = d
	}
	if v := os.Getenv("KYC_MOCK_ADMIN_TOKEN"); v != "" {
		cfg.AdminToken = v
	}
	if v := os.Getenv("KYC_MOCK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}

// durationEnv parses a duration variable. Malformed values are ignored.
func durationEnv(key string) (time.Duration, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false
	}
	return d, true
}
