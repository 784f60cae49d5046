// Package config loads and validates app config from env and an optional
// .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or a path
	// to one. Required: the server refuses to start without it and never
	// falls back to a default signing key.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or a path to one.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "viatransfer-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "viatransfer-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// RefreshTTLConfig is the refresh session lifetime (e.g. "720h" = 30d).
	// Rotation renews this absolute lifetime on every successful exchange.
	RefreshTTLConfig string `mapstructure:"REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31) for refresh-secret hashes.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// PurgeInterval is how often the janitor sweeps stale session rows.
	PurgeIntervalConfig string `mapstructure:"PURGE_INTERVAL"`
	// PurgeRetention is how long revoked rows are kept before deletion.
	PurgeRetentionConfig string `mapstructure:"PURGE_RETENTION"`
	// RateLimitRPS / RateLimitBurst bound per-client-IP calls to the refresh
	// and logout endpoints.
	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
	// CORSAllowedOrigins is a comma-separated origin allowlist; empty
	// disables CORS handling.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// Security-event fan-out (optional). When Kafka brokers are set, the
	// server publishes security events for the monitoring worker.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SecurityEventsTopic is the Kafka topic for security events.
	SecurityEventsTopic string `mapstructure:"SECURITY_EVENTS_TOPIC"`
	// KafkaGroupID is the consumer group ID for the monitoring worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is the Loki base URL the worker pushes events to.
	LokiURL string `mapstructure:"LOKI_URL"`

	// OTLPEndpoint enables OpenTelemetry export when set (host:port or URL).
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI). Env vars
// override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "viatransfer-auth")
	v.SetDefault("JWT_AUDIENCE", "viatransfer-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("REFRESH_TTL", "720h") // 30d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("PURGE_INTERVAL", "1h")
	v.SetDefault("PURGE_RETENTION", "720h")
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SECURITY_EVENTS_TOPIC", "viatransfer-security-events")
	v.SetDefault("KAFKA_GROUP_ID", "viatransfer-security-worker")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.RateLimitRPS <= 0 {
		return nil, errors.New("config: RATE_LIMIT_RPS must be positive")
	}
	// An operator typo like REFRESH_TTL=30d must fail loudly here, not
	// silently run with the default.
	for _, d := range []struct{ name, value string }{
		{"JWT_ACCESS_TTL", cfg.JWTAccessTTL},
		{"REFRESH_TTL", cfg.RefreshTTLConfig},
		{"PURGE_INTERVAL", cfg.PurgeIntervalConfig},
		{"PURGE_RETENTION", cfg.PurgeRetentionConfig},
	} {
		if d.value == "" {
			continue
		}
		if parsed, err := time.ParseDuration(d.value); err != nil || parsed <= 0 {
			return nil, fmt.Errorf("config: %s must be a positive Go duration, got %q", d.name, d.value)
		}
	}

	return &cfg, nil
}

// ValidateSigningKeys checks the signing key pair is configured. cmd/server
// calls this before serving so a missing key is a startup failure, not a
// per-request 500. cmd/migrate and cmd/worker skip it.
func (c *Config) ValidateSigningKeys() error {
	if strings.TrimSpace(c.JWTPrivateKey) == "" || strings.TrimSpace(c.JWTPublicKey) == "" {
		return errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set; refusing to fall back to a default key")
	}
	return nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses the refresh lifetime. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.RefreshTTLConfig)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// PurgeInterval parses the janitor interval. Returns 1h if unset or invalid.
func (c *Config) PurgeInterval() time.Duration {
	d, err := time.ParseDuration(c.PurgeIntervalConfig)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// PurgeRetention parses the revoked-row retention. Returns 720h if unset or invalid.
func (c *Config) PurgeRetention() time.Duration {
	d, err := time.ParseDuration(c.PurgeRetentionConfig)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// KafkaBrokersList returns broker addresses from the comma-separated
// config. Used to decide if event fan-out is enabled (non-empty list) and
// to create the producer.
func (c *Config) KafkaBrokersList() []string {
	return splitAndTrim(c.KafkaBrokers)
}

// CORSOrigins returns the allowed origins from the comma-separated config.
func (c *Config) CORSOrigins() []string {
	return splitAndTrim(c.CORSAllowedOrigins)
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
