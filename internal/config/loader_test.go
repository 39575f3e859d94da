package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
cloudflare:
  api_token: tok
zones: [" zone-a ", "", "zone-b"]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if got := cfg.Zones; len(got) != 2 || got[0] != "zone-a" || got[1] != "zone-b" {
		t.Errorf("Zones = %q", got)
	}
	if cfg.Cloudflare.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q", cfg.Cloudflare.BaseURL)
	}
	if !cfg.VerifyTLS() {
		t.Error("VerifyTLS should default to true")
	}
	if cfg.Cloudflare.PageSize != 50 {
		t.Errorf("PageSize = %d", cfg.Cloudflare.PageSize)
	}
	if cfg.Cloudflare.FallbackWindow != 60*time.Minute {
		t.Errorf("FallbackWindow = %s", cfg.Cloudflare.FallbackWindow)
	}
	if cfg.Polling.Interval != 60*time.Second || cfg.Polling.Lookback != 15*time.Minute {
		t.Errorf("Polling = %+v", cfg.Polling)
	}
	wantState := filepath.Join(filepath.Dir(path), DefaultStateFile)
	if cfg.Polling.StatePath != wantState {
		t.Errorf("StatePath = %q, want %q", cfg.Polling.StatePath, wantState)
	}
	if cfg.API.Listen != DefaultAPIListen {
		t.Errorf("API.Listen = %q", cfg.API.Listen)
	}
}

func TestLoadConfigResolvesEnvAndDotEnv(t *testing.T) {
	path := writeConfig(t, `
cloudflare:
  api_key_env: CFN_TEST_KEY
  email: ops@example.com
  verify_ssl: false
zones: [zone-a]
notifications:
  webhook:
    url_env: CFN_TEST_HOOK
`)
	dotenv := "CFN_TEST_KEY=from-dotenv\nCFN_TEST_HOOK=https://hooks.example.com/x\n"
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), ".env"), []byte(dotenv), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("CFN_TEST_KEY")
		os.Unsetenv("CFN_TEST_HOOK")
	})

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cred := cfg.ResolveCredentials()
	if cred.APIKey != "from-dotenv" || cred.Email != "ops@example.com" || cred.APIToken != "" {
		t.Errorf("credentials = %+v", cred)
	}
	if got := cfg.WebhookURL(); got != "https://hooks.example.com/x" {
		t.Errorf("WebhookURL = %q", got)
	}
	if cfg.VerifyTLS() {
		t.Error("VerifyTLS should honor verify_ssl: false")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "no credentials",
			body:    "zones: [a]\n",
			wantErr: "api_token",
		},
		{
			name:    "key without email",
			body:    "cloudflare:\n  api_key: k\nzones: [a]\n",
			wantErr: "api_token",
		},
		{
			name:    "no zones",
			body:    "cloudflare:\n  api_token: t\n",
			wantErr: "zone",
		},
		{
			name:    "duplicate zone",
			body:    "cloudflare:\n  api_token: t\nzones: [a, a]\n",
			wantErr: "more than once",
		},
		{
			name:    "interval too small",
			body:    "cloudflare:\n  api_token: t\nzones: [a]\npolling:\n  interval: 10ms\n",
			wantErr: "polling.interval",
		},
		{
			name:    "kafka without topic",
			body:    "cloudflare:\n  api_token: t\nzones: [a]\nnotifications:\n  kafka:\n    brokers: [localhost:9092]\n",
			wantErr: "topic",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWriteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	created, err := WriteTemplate(path)
	if err != nil || !created {
		t.Fatalf("first WriteTemplate = %v, %v", created, err)
	}
	created, err = WriteTemplate(path)
	if err != nil || created {
		t.Fatalf("second WriteTemplate = %v, %v; want no overwrite", created, err)
	}

	// The template is valid YAML but intentionally incomplete.
	_, err = LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "validation") {
		t.Fatalf("LoadConfig(template) err = %v, want validation failure", err)
	}
}
