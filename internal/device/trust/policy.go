package trust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/device/domain"
)

const policyQuery = "data.namqr.device_trust.status"

// DefaultPolicy derives terminal status from the registry record and its last heartbeat.
const DefaultPolicy = `package namqr.device_trust

default status := "active"

status := "unknown" if {
	not input.device.registered
}

status := "killed" if {
	input.device.registered
	input.device.revoked
}

status := "suspended" if {
	input.device.registered
	not input.device.revoked
	input.device.suspended
}

status := "suspended" if {
	input.device.registered
	not input.device.revoked
	stale
}

stale if {
	input.max_stale_days > 0
	input.device.last_seen_unix > 0
	input.now_unix - input.device.last_seen_unix > input.max_stale_days * 86400
}
`

// PolicyGate evaluates a Rego policy over the registry record.
// When evaluation fails it falls back to the plain registry mapping of AnswerFor.
type PolicyGate struct {
	devices      DeviceReader
	query        rego.PreparedEvalQuery
	maxStaleDays int
	logger       *zap.Logger
	now          func() time.Time
}

// NewPolicyGate compiles DefaultPolicy and returns a gate that evaluates it per query.
func NewPolicyGate(ctx context.Context, devices DeviceReader, maxStaleDays int, logger *zap.Logger) (*PolicyGate, error) {
	return newPolicyGate(ctx, devices, DefaultPolicy, maxStaleDays, logger)
}

func newPolicyGate(ctx context.Context, devices DeviceReader, module string, maxStaleDays int, logger *zap.Logger) (*PolicyGate, error) {
	q, err := prepare(ctx, module)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyGate{
		devices:      devices,
		query:        q,
		maxStaleDays: maxStaleDays,
		logger:       logger,
		now:          time.Now,
	}, nil
}

func prepare(ctx context.Context, module string) (rego.PreparedEvalQuery, error) {
	compiler, err := ast.CompileModules(map[string]string{"device_trust.rego": module})
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("compile device trust policy: %w", err)
	}
	q, err := rego.New(rego.Query(policyQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("prepare device trust policy: %w", err)
	}
	return q, nil
}

func (g *PolicyGate) Query(ctx context.Context, deviceID string) (Answer, error) {
	d, err := g.devices.GetByID(ctx, deviceID)
	if err != nil {
		return Answer{}, err
	}
	status, err := g.evaluate(ctx, d)
	if err != nil {
		g.logger.Warn("device trust policy failed, using registry mapping",
			zap.String("device_id", deviceID), zap.Error(err))
		return AnswerFor(d), nil
	}
	ans := Answer{Status: status}
	if d != nil {
		ans.LastSeenAt = d.LastSeenAt
	}
	return ans, nil
}

// HealthCheck evaluates the compiled policy against an unregistered device.
func (g *PolicyGate) HealthCheck(ctx context.Context) error {
	status, err := g.evaluate(ctx, nil)
	if err != nil {
		return err
	}
	if status != StatusUnknown {
		return fmt.Errorf("device trust policy: unregistered device evaluated to %q", status)
	}
	return nil
}

func (g *PolicyGate) evaluate(ctx context.Context, d *domain.Device) (Status, error) {
	rs, err := g.query.Eval(ctx, rego.EvalInput(g.buildInput(d)))
	if err != nil {
		return "", fmt.Errorf("eval device trust policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return "", errors.New("device trust policy returned no result")
	}
	s, ok := rs[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("device trust policy returned %T, want string", rs[0].Expressions[0].Value)
	}
	switch st := Status(s); st {
	case StatusActive, StatusSuspended, StatusKilled, StatusUnknown:
		return st, nil
	}
	return "", fmt.Errorf("device trust policy returned unknown status %q", s)
}

func (g *PolicyGate) buildInput(d *domain.Device) map[string]interface{} {
	device := map[string]interface{}{
		"registered": false,
		"revoked":    false,
		"suspended":  false,
	}
	if d != nil {
		device["id"] = d.ID
		device["channel"] = d.Channel
		device["merchant_id"] = d.MerchantID
		device["registered"] = true
		device["revoked"] = d.Revoked()
		device["suspended"] = d.SuspendedAt != nil
		if d.LastSeenAt != nil {
			device["last_seen_unix"] = d.LastSeenAt.Unix()
		}
	}
	return map[string]interface{}{
		"device":         device,
		"max_stale_days": g.maxStaleDays,
		"now_unix":       g.now().Unix(),
	}
}
