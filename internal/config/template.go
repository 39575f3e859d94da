package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Template is the commented starter configuration written by `cfnotifier init`
const Template = `# cfnotifier configuration
# Use either an API token (recommended) or an API key + email.
# Secrets can be given inline or through an environment variable
# (a .env file next to this config is loaded automatically).
cloudflare:
  api_token_env: CLOUDFLARE_API_TOKEN
  # api_key_env: CLOUDFLARE_API_KEY
  # email: you@example.com
  # Set to false to skip TLS validation (not recommended).
  verify_ssl: true
  timeout: 15s
  page_size: 50

# Zone IDs to monitor.
zones: []

polling:
  # Time between polls to Cloudflare.
  interval: 60s
  # How far back to look for events on the very first run.
  lookback: 15m
  state_path: state.json

notifications:
  webhook:
    url_env: CFNOTIFIER_WEBHOOK_URL
  desktop:
    enabled: true
  # kafka:
  #   brokers: ["localhost:9092"]
  #   topic: cloudflare-security-events

api:
  enabled: false
  listen: ":8089"
`

// WriteTemplate writes Template to path unless a file already exists there.
// It reports whether a new file was created.
func WriteTemplate(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(Template), 0o600); err != nil {
		return false, fmt.Errorf("writing config template: %w", err)
	}
	return true, nil
}
