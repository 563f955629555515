package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// resetEnv clears the environment and applies the minimal variables Load requires.
func resetEnv(extra map[string]string) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":8080")
	os.Setenv("NAMQR_SIGNING_SECRET", testSecret)
	for k, v := range extra {
		os.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	resetEnv(nil)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.SigningKeyID != "k1" {
		t.Errorf("SigningKeyID = %q, want %q", cfg.SigningKeyID, "k1")
	}
	if cfg.DefaultTokenTTL() != 15*time.Minute {
		t.Errorf("DefaultTokenTTL = %v, want 15m", cfg.DefaultTokenTTL())
	}
	if cfg.MaxTokenTTL() != 24*time.Hour {
		t.Errorf("MaxTokenTTL = %v, want 24h", cfg.MaxTokenTTL())
	}
	if cfg.DeviceTrustMode != "repository" {
		t.Errorf("DeviceTrustMode = %q, want repository", cfg.DeviceTrustMode)
	}
	if cfg.DeviceMaxStaleDays != 30 {
		t.Errorf("DeviceMaxStaleDays = %d, want 30", cfg.DeviceMaxStaleDays)
	}
	if cfg.TelemetryKafkaTopic != "namqr-redemptions" {
		t.Errorf("TelemetryKafkaTopic = %q, want default", cfg.TelemetryKafkaTopic)
	}
	if cfg.JWTIssuer != "namqr-auth" || cfg.JWTAudience != "namqr-api" {
		t.Errorf("JWT issuer/audience = %q/%q, want defaults", cfg.JWTIssuer, cfg.JWTAudience)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	resetEnv(map[string]string{
		"GRPC_ADDR":             ":9091",
		"TOKEN_TTL":             "5m",
		"DEVICE_TRUST_MODE":     "policy",
		"DEVICE_MAX_STALE_DAYS": "7",
		"REDIS_DB":              "3",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":9091" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9091")
	}
	if cfg.DefaultTokenTTL() != 5*time.Minute {
		t.Errorf("DefaultTokenTTL = %v, want 5m", cfg.DefaultTokenTTL())
	}
	if cfg.DeviceTrustMode != "policy" {
		t.Errorf("DeviceTrustMode = %q, want policy", cfg.DeviceTrustMode)
	}
	if cfg.DeviceMaxStaleDays != 7 {
		t.Errorf("DeviceMaxStaleDays = %d, want 7", cfg.DeviceMaxStaleDays)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB = %d, want 3", cfg.RedisDB)
	}
}

func TestLoad_SigningSecretRequired(t *testing.T) {
	testCases := []struct {
		name   string
		secret string
	}{
		{"missing", ""},
		{"too short", "short-secret"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resetEnv(nil)
			os.Setenv("NAMQR_SIGNING_SECRET", tc.secret)
			cfg, err := Load()
			if err == nil {
				t.Fatal("Load should return error for invalid signing secret")
			}
			if cfg != nil {
				t.Error("Load should return nil config on error")
			}
		})
	}
}

func TestLoad_PreviousSecretTooShort(t *testing.T) {
	resetEnv(map[string]string{"NAMQR_PREVIOUS_SIGNING_SECRETS": testSecret + ",tiny"})
	if _, err := Load(); err == nil {
		t.Fatal("Load should reject a short previous secret")
	}
}

func TestLoad_DeviceTrustMode(t *testing.T) {
	testCases := []struct {
		name string
		mode string
		env  string
		err  bool
	}{
		{"repository", "repository", "", false},
		{"policy", "policy", "production", false},
		{"allow in development", "allow", "development", false},
		{"allow in production", "allow", "production", true},
		{"unknown", "trust-everyone", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resetEnv(map[string]string{"DEVICE_TRUST_MODE": tc.mode, "APP_ENV": tc.env, "JWT_PUBLIC_KEY": "/etc/namqr/jwt.pub"})
			_, err := Load()
			if tc.err && err == nil {
				t.Fatal("Load should return error")
			}
			if !tc.err && err != nil {
				t.Fatalf("Load: %v", err)
			}
		})
	}
}

func TestLoad_ProductionRequiresJWTKey(t *testing.T) {
	resetEnv(map[string]string{"APP_ENV": "production"})
	_, err := Load()
	if err == nil {
		t.Fatal("Load should require JWT_PUBLIC_KEY in production")
	}
	if !strings.Contains(err.Error(), "JWT_PUBLIC_KEY") {
		t.Errorf("error = %q, want mention of JWT_PUBLIC_KEY", err.Error())
	}

	resetEnv(map[string]string{"APP_ENV": "development"})
	if _, err := Load(); err != nil {
		t.Fatalf("Load in development without JWT key: %v", err)
	}
}

func TestLoad_TTLExceedsMax(t *testing.T) {
	resetEnv(map[string]string{"TOKEN_TTL": "48h", "TOKEN_MAX_TTL": "24h"})
	_, err := Load()
	if err == nil {
		t.Fatal("Load should reject TOKEN_TTL above TOKEN_MAX_TTL")
	}
	if !strings.Contains(err.Error(), "TOKEN_TTL") {
		t.Errorf("error = %q, want mention of TOKEN_TTL", err.Error())
	}
}

func TestLoadWorker_NoSecretNeeded(t *testing.T) {
	os.Clearenv()
	os.Setenv("GRPC_ADDR", ":0")
	cfg, err := LoadWorker()
	if err != nil {
		t.Fatalf("LoadWorker: %v", err)
	}
	if cfg.KafkaGroupID != "namqr-redemption-worker" {
		t.Errorf("KafkaGroupID = %q, want default", cfg.KafkaGroupID)
	}
}

func TestDurations_InvalidFallBack(t *testing.T) {
	cfg := &Config{TokenTTL: "invalid", TokenMaxTTL: "-1h", DeviceTrustCacheTTL: "0", SettlementTimeout: "", ShutdownDrain: "soon"}
	if got := cfg.DefaultTokenTTL(); got != 15*time.Minute {
		t.Errorf("DefaultTokenTTL = %v, want 15m", got)
	}
	if got := cfg.MaxTokenTTL(); got != 24*time.Hour {
		t.Errorf("MaxTokenTTL = %v, want 24h", got)
	}
	if got := cfg.DeviceCacheTTL(); got != 30*time.Second {
		t.Errorf("DeviceCacheTTL = %v, want 30s", got)
	}
	if got := cfg.SettlementCallTimeout(); got != 10*time.Second {
		t.Errorf("SettlementCallTimeout = %v, want 10s", got)
	}
	if got := cfg.ShutdownDrainDuration(); got != 15*time.Second {
		t.Errorf("ShutdownDrainDuration = %v, want 15s", got)
	}
}

func TestTelemetryKafkaBrokersList(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"single", "localhost:9092", []string{"localhost:9092"}},
		{"trims and skips blanks", " a:1 , ,b:2 ", []string{"a:1", "b:2"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{TelemetryKafkaBrokers: tc.in}
			got := cfg.TelemetryKafkaBrokersList()
			if len(got) != len(tc.want) {
				t.Fatalf("len = %d, want %d (%v)", len(got), len(tc.want), got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
	var nilCfg *Config
	if nilCfg.TelemetryKafkaBrokersList() != nil {
		t.Error("nil config should return nil brokers")
	}
}
