package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable names recognized by the config loader.
const (
	EnvConfigPath          = "CONFIG_PATH"
	EnvDBConnection        = "DB_CONNECTION"
	EnvJWTSecret           = "JWT_SECRET"
	EnvJWTExpiry           = "JWT_EXPIRY"
	EnvStripeSecretKey     = "STRIPE_SECRET_KEY"
	EnvStripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"
	EnvDodoAPIKey          = "DODO_PAYMENTS_API_KEY"
	EnvDodoWebhookSecret   = "DODO_PAYMENTS_WEBHOOK_SECRET"
	EnvDodoEnvironment     = "DODO_PAYMENTS_ENVIRONMENT"
	EnvGeminiAPIKey        = "GEMINI_API_KEY"
	EnvGoogleClientID      = "GOOGLE_CLIENT_ID"
	EnvGoogleClientSecret  = "GOOGLE_CLIENT_SECRET"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// StripeConfig holds Stripe API credentials.
type StripeConfig struct {
	SecretKey     string `yaml:"secret-key"`
	WebhookSecret string `yaml:"webhook-secret"`
}

// DodoConfig holds Dodo Payments API credentials.
type DodoConfig struct {
	APIKey        string `yaml:"api-key"`
	WebhookSecret string `yaml:"webhook-secret"`
	Environment   string `yaml:"environment"`
}

// GoogleOAuthConfig holds Google OAuth client settings.
type GoogleOAuthConfig struct {
	ClientID            string `yaml:"client-id"`
	ClientSecret        string `yaml:"client-secret"`
	RedirectURL         string `yaml:"redirect-url"`
	FrontendCallbackURL string `yaml:"frontend-callback-url"`
}

// ServerConfig holds the remaining service-level settings.
type ServerConfig struct {
	FrontendURL  string `yaml:"frontend-url"`
	BlogUpstream string `yaml:"blog-upstream"`
	GeminiAPIKey string `yaml:"gemini-api-key"`
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 30 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// LoadStripeConfig loads Stripe settings from the YAML config file.
func LoadStripeConfig(configPath string) (StripeConfig, error) {
	// fileConfig maps the YAML fields needed for Stripe settings.
	type fileConfig struct {
		Stripe StripeConfig `yaml:"stripe"`
	}

	var result StripeConfig
	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Stripe
		}
	}

	if key := strings.TrimSpace(os.Getenv(EnvStripeSecretKey)); key != "" {
		result.SecretKey = key
	}
	if secret := strings.TrimSpace(os.Getenv(EnvStripeWebhookSecret)); secret != "" {
		result.WebhookSecret = secret
	}
	return result, nil
}

// LoadDodoConfig loads Dodo Payments settings from the YAML config file.
func LoadDodoConfig(configPath string) (DodoConfig, error) {
	// fileConfig maps the YAML fields needed for Dodo settings.
	type fileConfig struct {
		Dodo DodoConfig `yaml:"dodo"`
	}

	result := DodoConfig{Environment: "test_mode"}
	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil && cfg.Dodo != (DodoConfig{}) {
			result = cfg.Dodo
		}
	}

	if key := strings.TrimSpace(os.Getenv(EnvDodoAPIKey)); key != "" {
		result.APIKey = key
	}
	if secret := strings.TrimSpace(os.Getenv(EnvDodoWebhookSecret)); secret != "" {
		result.WebhookSecret = secret
	}
	if env := strings.TrimSpace(os.Getenv(EnvDodoEnvironment)); env != "" {
		result.Environment = env
	}
	if strings.TrimSpace(result.Environment) == "" {
		result.Environment = "test_mode"
	}
	return result, nil
}

// LoadGoogleOAuthConfig loads Google OAuth settings from the YAML config file.
func LoadGoogleOAuthConfig(configPath string) (GoogleOAuthConfig, error) {
	// fileConfig maps the YAML fields needed for Google OAuth settings.
	type fileConfig struct {
		GoogleOAuth GoogleOAuthConfig `yaml:"google-oauth"`
	}

	var result GoogleOAuthConfig
	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.GoogleOAuth
		}
	}

	if id := strings.TrimSpace(os.Getenv(EnvGoogleClientID)); id != "" {
		result.ClientID = id
	}
	if secret := strings.TrimSpace(os.Getenv(EnvGoogleClientSecret)); secret != "" {
		result.ClientSecret = secret
	}
	return result, nil
}

// LoadServerConfig loads service-level settings from the YAML config file.
func LoadServerConfig(configPath string) (ServerConfig, error) {
	// fileConfig maps the YAML fields needed for server settings.
	type fileConfig struct {
		Server ServerConfig `yaml:"server"`
	}

	var result ServerConfig
	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.Server
		}
	}

	if key := strings.TrimSpace(os.Getenv(EnvGeminiAPIKey)); key != "" {
		result.GeminiAPIKey = key
	}
	return result, nil
}
