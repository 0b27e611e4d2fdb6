// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/joho/godotenv"
)

// Config holds all service configuration.
// Environment determines whether secrets load from env vars (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	SiteID     string

	// DatabasePath is the SQLite file holding the plugin options.
	DatabasePath string
	// MinHostVersion is the oldest host plugin accepted on hook routes.
	MinHostVersion string
	// TLSFingerprint selects the outbound TLS stack: "chrome" or "standard".
	TLSFingerprint string
	// AllowInsecure permits a non-HTTPS analytics API base URL. Development only.
	AllowInsecure bool

	// Site-specific configuration (loaded from secrets)
	Site SiteConfig
}

// SiteConfig contains the secrets and endpoints of one WordPress site.
// In production, this is loaded from Secret Manager as JSON.
// In development, loaded from individual env vars or CONFIG_FILE.
type SiteConfig struct {
	SiteURL string `json:"site_url"`

	// APIToken seeds the stored settings when none is saved yet.
	APIToken string `json:"api_token,omitempty"`
	// APIBaseURL overrides the analytics plugin API location.
	APIBaseURL string `json:"api_base_url,omitempty"`
	// AuthToken is the bearer token the host plugin sends. Empty disables auth.
	AuthToken string `json:"auth_token,omitempty"`

	// WooCommerce REST credentials. The shop integration is disabled without a store URL.
	StoreURL  string `json:"store_url,omitempty"`
	APIKey    string `json:"api_key,omitempty"`
	APISecret string `json:"api_secret,omitempty"`
	// Currency overrides the store currency reported by WooCommerce.
	Currency string `json:"currency,omitempty"`
}

// ShopEnabled reports whether WooCommerce credentials are configured.
func (s SiteConfig) ShopEnabled() bool {
	return s.StoreURL != ""
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// A .env file in the working directory is read first when present.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// Missing .env is normal outside development.
	_ = godotenv.Load()

	// If CONFIG_FILE is set, load everything from the JSON file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	// Otherwise, use ENV vars / Secret Manager approach
	cfg := &Config{
		Port:           envOrDefault("PORT", "8080"),
		Environment:    envOrDefault("ENVIRONMENT", "development"),
		LogLevel:       envOrDefault("LOG_LEVEL", "info"),
		GCPProject:     os.Getenv("GCP_PROJECT"),
		SiteID:         os.Getenv("SITE_ID"),
		DatabasePath:   envOrDefault("DATABASE_PATH", "plausible.db"),
		MinHostVersion: envOrDefault("MIN_HOST_VERSION", "2.0.0"),
		TLSFingerprint: envOrDefault("TLS_FINGERPRINT", "chrome"),
	}

	if v := os.Getenv("ALLOW_INSECURE_API"); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("parsing ALLOW_INSECURE_API: %w", err)
		}
		cfg.AllowInsecure = allow
	}

	// Load site config based on environment
	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.SiteID == "" {
			return nil, fmt.Errorf("SITE_ID required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading site config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Use a struct that matches the JSON structure
	var fileConfig struct {
		Port           string     `json:"port"`
		Environment    string     `json:"environment"`
		LogLevel       string     `json:"log_level"`
		SiteID         string     `json:"site_id"`
		DatabasePath   string     `json:"database_path"`
		MinHostVersion string     `json:"min_host_version"`
		TLSFingerprint string     `json:"tls_fingerprint"`
		AllowInsecure  bool       `json:"allow_insecure_api"`
		Site           SiteConfig `json:"site"`
	}

	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:           withDefault(fileConfig.Port, "8080"),
		Environment:    withDefault(fileConfig.Environment, "development"),
		LogLevel:       withDefault(fileConfig.LogLevel, "info"),
		SiteID:         fileConfig.SiteID,
		DatabasePath:   withDefault(fileConfig.DatabasePath, "plausible.db"),
		MinHostVersion: withDefault(fileConfig.MinHostVersion, "2.0.0"),
		TLSFingerprint: withDefault(fileConfig.TLSFingerprint, "chrome"),
		AllowInsecure:  fileConfig.AllowInsecure,
		Site:           fileConfig.Site,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches site config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{site_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, c.SiteID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Site); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}

	return nil
}

// loadFromEnv reads site config from individual environment variables.
// Used in development mode for local testing.
func (c *Config) loadFromEnv() {
	c.Site = SiteConfig{
		SiteURL:    os.Getenv("SITE_URL"),
		APIToken:   os.Getenv("PLAUSIBLE_API_TOKEN"),
		APIBaseURL: os.Getenv("PLAUSIBLE_API_URL"),
		AuthToken:  os.Getenv("BRIDGE_AUTH_TOKEN"),
		StoreURL:   os.Getenv("WOO_STORE_URL"),
		APIKey:     os.Getenv("WOO_API_KEY"),
		APISecret:  os.Getenv("WOO_API_SECRET"),
		Currency:   os.Getenv("WOO_CURRENCY"),
	}
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	if c.Site.SiteURL == "" {
		return fmt.Errorf("site_url is required")
	}
	if err := validURL(c.Site.SiteURL); err != nil {
		return fmt.Errorf("invalid site_url: %w", err)
	}

	if c.Site.APIBaseURL != "" {
		if err := validURL(c.Site.APIBaseURL); err != nil {
			return fmt.Errorf("invalid api_base_url: %w", err)
		}
	}

	// Store credentials come as a set
	if c.Site.ShopEnabled() {
		if c.Site.APIKey == "" {
			return fmt.Errorf("api_key is required with store_url")
		}
		if c.Site.APISecret == "" {
			return fmt.Errorf("api_secret is required with store_url")
		}
		if err := validURL(c.Site.StoreURL); err != nil {
			return fmt.Errorf("invalid store_url: %w", err)
		}
	}

	c.Site.Currency = strings.ToUpper(strings.TrimSpace(c.Site.Currency))
	if c.Site.Currency != "" && len(c.Site.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter ISO 4217 code")
	}

	return nil
}

func validURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
