// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// minSigningSecretLen is the minimum accepted length of NAMQR_SIGNING_SECRET in bytes.
const minSigningSecretLen = 32

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// MetricsAddr is the address of the Prometheus /metrics listener; empty disables it.
	MetricsAddr string `mapstructure:"METRICS_ADDR"`
	// DatabaseURL is the Postgres DSN for the token store and device registry.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// ShutdownDrain is how long in-flight RPCs may run after SIGTERM before the server is stopped hard (e.g. "15s").
	ShutdownDrain string `mapstructure:"SHUTDOWN_DRAIN"`

	// SigningSecret is the server-held secret the token codec derives its HMAC key from. Required.
	SigningSecret string `mapstructure:"NAMQR_SIGNING_SECRET"`
	// SigningKeyID labels the current secret in logs.
	SigningKeyID string `mapstructure:"NAMQR_SIGNING_KEY_ID"`
	// PreviousSigningSecrets is a comma-separated list of retired secrets still accepted for verification.
	PreviousSigningSecrets string `mapstructure:"NAMQR_PREVIOUS_SIGNING_SECRETS"`
	// TokenTTL is the default token lifetime (e.g. "15m").
	TokenTTL string `mapstructure:"TOKEN_TTL"`
	// TokenMaxTTL caps caller-supplied TTL overrides (e.g. "24h").
	TokenMaxTTL string `mapstructure:"TOKEN_MAX_TTL"`

	// DeviceTrustMode selects the device trust gate: "repository", "policy" or "allow".
	DeviceTrustMode string `mapstructure:"DEVICE_TRUST_MODE"`
	// DeviceMaxStaleDays is the last-seen age after which the policy gate treats a terminal as suspended.
	DeviceMaxStaleDays int `mapstructure:"DEVICE_MAX_STALE_DAYS"`
	// RedisAddr enables the Redis device trust cache when set (e.g. localhost:6379).
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	// DeviceTrustCacheTTL is how long a cached device answer is served (e.g. "30s").
	DeviceTrustCacheTTL string `mapstructure:"DEVICE_TRUST_CACHE_TTL"`

	// SettlementURL is the base URL of the wallet/ledger service that moves funds.
	SettlementURL string `mapstructure:"SETTLEMENT_URL"`
	// SettlementTimeout bounds a single settlement call (e.g. "10s").
	SettlementTimeout string `mapstructure:"SETTLEMENT_TIMEOUT"`

	// JWTPublicKey is the PEM-encoded public key or path to file used to validate API caller tokens.
	// Empty disables caller authentication (development only).
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the expected iss claim of API caller tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the expected aud claim of API caller tokens.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	// Telemetry (optional). When Kafka brokers are set, redemption analytics events are emitted to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for redemption events (default namqr-redemptions).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// OTLPEndpoint is the OpenTelemetry collector endpoint; empty installs no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext gRPC to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Worker-only: Loki URL for the analytics worker to push events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the analytics worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	cfg, err := loadUnvalidated()
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWorker is Load for binaries that never sign or verify tokens (cmd/worker, cmd/migrate):
// the signing secret is not required.
func LoadWorker() (*Config, error) {
	return loadUnvalidated()
}

func loadUnvalidated() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SHUTDOWN_DRAIN", "15s")
	v.SetDefault("NAMQR_SIGNING_SECRET", "")
	v.SetDefault("NAMQR_SIGNING_KEY_ID", "k1")
	v.SetDefault("NAMQR_PREVIOUS_SIGNING_SECRETS", "")
	v.SetDefault("TOKEN_TTL", "15m")
	v.SetDefault("TOKEN_MAX_TTL", "24h")
	v.SetDefault("DEVICE_TRUST_MODE", "repository")
	v.SetDefault("DEVICE_MAX_STALE_DAYS", 30)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("DEVICE_TRUST_CACHE_TTL", "30s")
	v.SetDefault("SETTLEMENT_URL", "")
	v.SetDefault("SETTLEMENT_TIMEOUT", "10s")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "namqr-auth")
	v.SetDefault("JWT_AUDIENCE", "namqr-api")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "namqr-redemptions")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "namqr-redemption-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.SigningSecret) < minSigningSecretLen {
		return errors.New("config: NAMQR_SIGNING_SECRET must be at least 32 bytes")
	}
	for _, s := range c.PreviousSigningSecretsList() {
		if len(s) < minSigningSecretLen {
			return errors.New("config: NAMQR_PREVIOUS_SIGNING_SECRETS entries must be at least 32 bytes")
		}
	}
	switch c.DeviceTrustMode {
	case "repository", "policy":
	case "allow":
		if c.Env == "production" {
			return errors.New("config: DEVICE_TRUST_MODE=allow must not be used when APP_ENV=production")
		}
	default:
		return errors.New("config: DEVICE_TRUST_MODE must be repository, policy or allow")
	}
	if c.Env == "production" && strings.TrimSpace(c.JWTPublicKey) == "" {
		return errors.New("config: JWT_PUBLIC_KEY is required when APP_ENV=production")
	}
	if c.DefaultTokenTTL() > c.MaxTokenTTL() {
		return errors.New("config: TOKEN_TTL must not exceed TOKEN_MAX_TTL")
	}
	return nil
}

// DefaultTokenTTL parses TokenTTL. Returns 15m if unset or invalid.
func (c *Config) DefaultTokenTTL() time.Duration {
	return parseDurationOr(c.TokenTTL, 15*time.Minute)
}

// MaxTokenTTL parses TokenMaxTTL. Returns 24h if unset or invalid.
func (c *Config) MaxTokenTTL() time.Duration {
	return parseDurationOr(c.TokenMaxTTL, 24*time.Hour)
}

// DeviceCacheTTL parses DeviceTrustCacheTTL. Returns 30s if unset or invalid.
func (c *Config) DeviceCacheTTL() time.Duration {
	return parseDurationOr(c.DeviceTrustCacheTTL, 30*time.Second)
}

// SettlementCallTimeout parses SettlementTimeout. Returns 10s if unset or invalid.
func (c *Config) SettlementCallTimeout() time.Duration {
	return parseDurationOr(c.SettlementTimeout, 10*time.Second)
}

// ShutdownDrainDuration parses ShutdownDrain. Returns 15s if unset or invalid.
func (c *Config) ShutdownDrainDuration() time.Duration {
	return parseDurationOr(c.ShutdownDrain, 15*time.Second)
}

// PreviousSigningSecretsList returns the retired secrets from the comma-separated config.
func (c *Config) PreviousSigningSecretsList() []string {
	return splitList(c.PreviousSigningSecrets)
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if analytics streaming is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TelemetryKafkaBrokers)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
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
