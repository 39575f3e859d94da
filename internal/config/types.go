package config

import "time"

// Config represents the complete cfnotifier configuration
type Config struct {
	Cloudflare    CloudflareConfig   `yaml:"cloudflare"`
	Zones         []string           `yaml:"zones"`
	Polling       PollingConfig      `yaml:"polling"`
	Notifications NotificationConfig `yaml:"notifications"`
	API           APIConfig          `yaml:"api"`
}

// CloudflareConfig holds upstream API access settings.
// Either a token or a key + email pair must resolve.
type CloudflareConfig struct {
	APIToken       string        `yaml:"api_token,omitempty"`
	APITokenEnv    string        `yaml:"api_token_env,omitempty"`
	APIKey         string        `yaml:"api_key,omitempty"`
	APIKeyEnv      string        `yaml:"api_key_env,omitempty"`
	Email          string        `yaml:"email,omitempty"`
	BaseURL        string        `yaml:"base_url,omitempty"`
	VerifySSL      *bool         `yaml:"verify_ssl,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
	PageSize       int           `yaml:"page_size,omitempty"`
	FallbackWindow time.Duration `yaml:"fallback_window,omitempty"` // GraphQL lower bound when no cursor
}

// PollingConfig controls the poll loop
type PollingConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Lookback  time.Duration `yaml:"lookback"` // first-run window for zones without a cursor
	StatePath string        `yaml:"state_path"`
}

// NotificationConfig defines the notification channels
type NotificationConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
	Desktop DesktopConfig `yaml:"desktop"`
	Kafka   KafkaConfig   `yaml:"kafka"`
}

// WebhookConfig defines the embed webhook channel
type WebhookConfig struct {
	URL     string        `yaml:"url,omitempty"`
	URLEnv  string        `yaml:"url_env,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// DesktopConfig defines the local toast channel (Windows only)
type DesktopConfig struct {
	Enabled bool   `yaml:"enabled"`
	AppID   string `yaml:"app_id,omitempty"`
}

// KafkaConfig defines the kafka publishing channel
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
}

// APIConfig defines the status/metrics HTTP server
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Credentials are the resolved upstream secrets
type Credentials struct {
	APIToken string
	APIKey   string
	Email    string
}
