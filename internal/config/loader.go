package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL        = "https://api.cloudflare.com/client/v4"
	DefaultAPIListen      = ":8089"
	DefaultStateFile      = "state.json"
	defaultTimeout        = 15 * time.Second
	defaultPageSize       = 50
	defaultFallbackWindow = 60 * time.Minute
	defaultInterval       = 60 * time.Second
	defaultLookback       = 15 * time.Minute
	defaultAppID          = "Cloudflare Notifier"
)

// LoadConfig loads the configuration file at path. A .env file in the same
// directory is loaded into the environment first so *_env references resolve.
func LoadConfig(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envPath, err)
		}
	}

	cfg := &Config{}
	if err := loadYAML(path, cfg); err != nil {
		return nil, fmt.Errorf("loading %s: %w", filepath.Base(path), err)
	}

	applyDefaults(cfg, filepath.Dir(path))

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadYAML loads a YAML file into a struct
func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

func applyDefaults(cfg *Config, dir string) {
	cf := &cfg.Cloudflare
	if cf.BaseURL == "" {
		cf.BaseURL = DefaultBaseURL
	}
	cf.BaseURL = strings.TrimRight(cf.BaseURL, "/")
	if cf.VerifySSL == nil {
		verify := true
		cf.VerifySSL = &verify
	}
	if cf.Timeout == 0 {
		cf.Timeout = defaultTimeout
	}
	if cf.PageSize == 0 {
		cf.PageSize = defaultPageSize
	}
	if cf.FallbackWindow == 0 {
		cf.FallbackWindow = defaultFallbackWindow
	}

	if cfg.Polling.Interval == 0 {
		cfg.Polling.Interval = defaultInterval
	}
	if cfg.Polling.Lookback == 0 {
		cfg.Polling.Lookback = defaultLookback
	}
	if cfg.Polling.StatePath == "" {
		cfg.Polling.StatePath = DefaultStateFile
	}
	if !filepath.IsAbs(cfg.Polling.StatePath) {
		cfg.Polling.StatePath = filepath.Join(dir, cfg.Polling.StatePath)
	}

	if cfg.Notifications.Webhook.Timeout == 0 {
		cfg.Notifications.Webhook.Timeout = 10 * time.Second
	}
	if cfg.Notifications.Desktop.AppID == "" {
		cfg.Notifications.Desktop.AppID = defaultAppID
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = DefaultAPIListen
	}

	zones := cfg.Zones[:0]
	for _, z := range cfg.Zones {
		if z = strings.TrimSpace(z); z != "" {
			zones = append(zones, z)
		}
	}
	cfg.Zones = zones
}

// ResolveCredentials resolves the upstream credentials, preferring inline
// values over the referenced environment variables.
func (c *Config) ResolveCredentials() Credentials {
	cf := c.Cloudflare
	return Credentials{
		APIToken: resolve(cf.APIToken, cf.APITokenEnv),
		APIKey:   resolve(cf.APIKey, cf.APIKeyEnv),
		Email:    strings.TrimSpace(cf.Email),
	}
}

// WebhookURL resolves the webhook URL, empty when not configured
func (c *Config) WebhookURL() string {
	w := c.Notifications.Webhook
	return resolve(w.URL, w.URLEnv)
}

// VerifyTLS reports whether upstream TLS certificates are verified
func (c *Config) VerifyTLS() bool {
	return c.Cloudflare.VerifySSL == nil || *c.Cloudflare.VerifySSL
}

func resolve(inline, envName string) string {
	if v := strings.TrimSpace(inline); v != "" {
		return v
	}
	if envName == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(envName))
}

// ValidateConfig validates the configuration
func ValidateConfig(cfg *Config) error {
	cred := cfg.ResolveCredentials()
	if cred.APIToken == "" && (cred.APIKey == "" || cred.Email == "") {
		return errors.New("configure either cloudflare.api_token or cloudflare.api_key + cloudflare.email")
	}

	if len(cfg.Zones) == 0 {
		return errors.New("configure at least one zone id under zones")
	}
	seen := make(map[string]bool, len(cfg.Zones))
	for _, z := range cfg.Zones {
		if seen[z] {
			return fmt.Errorf("zone %s listed more than once", z)
		}
		seen[z] = true
	}

	if cfg.Polling.Interval < time.Second {
		return fmt.Errorf("polling.interval must be at least 1s, got %s", cfg.Polling.Interval)
	}
	if cfg.Polling.Lookback < 0 {
		return fmt.Errorf("polling.lookback must not be negative, got %s", cfg.Polling.Lookback)
	}
	if cfg.Cloudflare.PageSize < 1 {
		return fmt.Errorf("cloudflare.page_size must be positive, got %d", cfg.Cloudflare.PageSize)
	}

	k := cfg.Notifications.Kafka
	if len(k.Brokers) > 0 && k.Topic == "" {
		return errors.New("notifications.kafka: topic is required when brokers are set")
	}

	return nil
}
