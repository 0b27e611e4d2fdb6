package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var configEnv = []string{
	"CONFIG_FILE", "ENVIRONMENT", "PORT", "LOG_LEVEL", "GCP_PROJECT", "SITE_ID",
	"DATABASE_PATH", "MIN_HOST_VERSION", "TLS_FINGERPRINT", "ALLOW_INSECURE_API",
	"SITE_URL", "PLAUSIBLE_API_TOKEN", "PLAUSIBLE_API_URL", "BRIDGE_AUTH_TOKEN",
	"WOO_STORE_URL", "WOO_API_KEY", "WOO_API_SECRET", "WOO_CURRENCY",
}

// clearEnv blanks every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SITE_URL", "https://example.org")
	t.Setenv("PLAUSIBLE_API_TOKEN", "tok")
	t.Setenv("WOO_STORE_URL", "https://example.org")
	t.Setenv("WOO_API_KEY", "ck_test123")
	t.Setenv("WOO_API_SECRET", "cs_test456")
	t.Setenv("WOO_CURRENCY", "eur")
	t.Setenv("ALLOW_INSECURE_API", "true")

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.DatabasePath != "plausible.db" {
		t.Errorf("DatabasePath = %s, want plausible.db", cfg.DatabasePath)
	}
	if cfg.MinHostVersion != "2.0.0" {
		t.Errorf("MinHostVersion = %s, want 2.0.0", cfg.MinHostVersion)
	}
	if cfg.TLSFingerprint != "chrome" {
		t.Errorf("TLSFingerprint = %s, want chrome", cfg.TLSFingerprint)
	}
	if !cfg.AllowInsecure {
		t.Error("AllowInsecure = false, want true")
	}

	if cfg.Site.APIToken != "tok" {
		t.Errorf("APIToken = %s, want tok", cfg.Site.APIToken)
	}
	if !cfg.Site.ShopEnabled() {
		t.Error("ShopEnabled() = false, want true")
	}
	if cfg.Site.Currency != "EUR" {
		t.Errorf("Currency = %s, want EUR", cfg.Site.Currency)
	}
}

func TestLoadInvalidBool(t *testing.T) {
	clearEnv(t)
	t.Setenv("SITE_URL", "https://example.org")
	t.Setenv("ALLOW_INSECURE_API", "maybe")

	if _, err := Load(context.Background()); err == nil {
		t.Error("Load() should fail with an invalid ALLOW_INSECURE_API")
	}
}

func TestLoadProductionRequirements(t *testing.T) {
	tests := []struct {
		name    string
		project string
		siteID  string
		wantErr string
	}{
		{"missing project", "", "site-1", "GCP_PROJECT"},
		{"missing site id", "proj", "", "SITE_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("ENVIRONMENT", "production")
			t.Setenv("GCP_PROJECT", tt.project)
			t.Setenv("SITE_ID", tt.siteID)

			_, err := Load(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		site    SiteConfig
		wantErr string
	}{
		{"valid without shop", SiteConfig{SiteURL: "https://example.org"}, ""},
		{"missing site url", SiteConfig{}, "site_url is required"},
		{"site url without scheme", SiteConfig{SiteURL: "example.org"}, "invalid site_url"},
		{"bad api base url", SiteConfig{SiteURL: "https://example.org", APIBaseURL: "ftp://x"}, "invalid api_base_url"},
		{"store without key", SiteConfig{SiteURL: "https://example.org", StoreURL: "https://example.org", APISecret: "s"}, "api_key is required"},
		{"store without secret", SiteConfig{SiteURL: "https://example.org", StoreURL: "https://example.org", APIKey: "k"}, "api_secret is required"},
		{"bad currency", SiteConfig{SiteURL: "https://example.org", Currency: "EURO"}, "currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Config{Site: tt.site}).validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "custom")
	if got := envOrDefault("TEST_ENV_VAR", "default"); got != "custom" {
		t.Errorf("envOrDefault() = %s, want custom", got)
	}

	t.Setenv("TEST_ENV_VAR", "")
	if got := envOrDefault("TEST_ENV_VAR", "default"); got != "default" {
		t.Errorf("envOrDefault() = %s, want default", got)
	}
}

func TestWithDefault(t *testing.T) {
	if got := withDefault("", "fallback"); got != "fallback" {
		t.Errorf("withDefault(\"\") = %s, want fallback", got)
	}
	if got := withDefault("set", "fallback"); got != "set" {
		t.Errorf("withDefault(\"set\") = %s, want set", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"port": "3000",
		"log_level": "warn",
		"database_path": "/var/lib/bridge/options.db",
		"allow_insecure_api": true,
		"site": {
			"site_url": "https://example.org",
			"auth_token": "bridge-secret",
			"store_url": "https://example.org",
			"api_key": "ck_file",
			"api_secret": "cs_file"
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "3000" {
		t.Errorf("Port = %s, want 3000", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %s, want development", cfg.Environment)
	}
	if cfg.DatabasePath != "/var/lib/bridge/options.db" {
		t.Errorf("DatabasePath = %s", cfg.DatabasePath)
	}
	if !cfg.AllowInsecure {
		t.Error("AllowInsecure = false, want true")
	}
	if cfg.Site.AuthToken != "bridge-secret" {
		t.Errorf("AuthToken = %s, want bridge-secret", cfg.Site.AuthToken)
	}
	if cfg.Site.APIKey != "ck_file" {
		t.Errorf("APIKey = %s, want ck_file", cfg.Site.APIKey)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()
	invalid := filepath.Join(dir, "invalid.json")
	os.WriteFile(invalid, []byte("{not json"), 0o600)
	incomplete := filepath.Join(dir, "incomplete.json")
	os.WriteFile(incomplete, []byte(`{"site":{}}`), 0o600)

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "nope.json")},
		{"invalid json", invalid},
		{"missing site url", incomplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadFromFile(tt.path); err == nil {
				t.Error("loadFromFile() should fail")
			}
		})
	}
}
