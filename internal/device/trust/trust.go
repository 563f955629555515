// Package trust answers whether a scanning terminal may redeem tokens.
package trust

import (
	"context"
	"time"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/device/domain"
)

// Status is a terminal's standing as seen by the redemption flow.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusKilled    Status = "killed"
	StatusUnknown   Status = "unknown"
)

// Answer is the result of a device trust query.
type Answer struct {
	Status     Status     `json:"status"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// Blocks reports whether the answer forbids redemption. Unknown devices are allowed.
func (a Answer) Blocks() bool {
	return a.Status == StatusSuspended || a.Status == StatusKilled
}

// Gate is consulted before a token is claimed. An error means the gate could not answer.
type Gate interface {
	Query(ctx context.Context, deviceID string) (Answer, error)
}

// DeviceReader is the slice of the device repository the gates need.
type DeviceReader interface {
	GetByID(ctx context.Context, id string) (*domain.Device, error)
}

// AllowAll answers active for every device. Development and tests only.
type AllowAll struct{}

func (AllowAll) Query(context.Context, string) (Answer, error) {
	return Answer{Status: StatusActive}, nil
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context, deviceID string) (Answer, error)

func (f GateFunc) Query(ctx context.Context, deviceID string) (Answer, error) {
	return f(ctx, deviceID)
}

// RepositoryGate maps the registry record directly: revoked is killed, suspended is suspended,
// missing is unknown, anything else is active.
type RepositoryGate struct {
	devices DeviceReader
}

// NewRepositoryGate returns a gate backed by the device registry.
func NewRepositoryGate(devices DeviceReader) *RepositoryGate {
	return &RepositoryGate{devices: devices}
}

func (g *RepositoryGate) Query(ctx context.Context, deviceID string) (Answer, error) {
	d, err := g.devices.GetByID(ctx, deviceID)
	if err != nil {
		return Answer{}, err
	}
	return AnswerFor(d), nil
}

// AnswerFor maps a registry record (nil if unregistered) to an Answer.
func AnswerFor(d *domain.Device) Answer {
	switch {
	case d == nil:
		return Answer{Status: StatusUnknown}
	case d.Revoked():
		return Answer{Status: StatusKilled, LastSeenAt: d.LastSeenAt}
	case d.Suspended():
		return Answer{Status: StatusSuspended, LastSeenAt: d.LastSeenAt}
	}
	return Answer{Status: StatusActive, LastSeenAt: d.LastSeenAt}
}
