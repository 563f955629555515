// Package logging builds the process-wide zap logger.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON production logger, or a console development logger when env is
// "development" or empty. level is a zap level name; unknown names fall back to info.
func New(env, level string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "development", "dev", "local":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.InitialFields = map[string]interface{}{"service": "namqr"}
	return cfg.Build()
}

// MaskAccount keeps only the last four characters of a payer account reference for logs.
func MaskAccount(ref string) string {
	if len(ref) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(ref)-4) + ref[len(ref)-4:]
}
