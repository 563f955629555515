package repository

import (
	"context"
	"errors"
	"time"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/device/domain"
)

// ErrNotFound is returned by state changes addressed to an unknown device id.
var ErrNotFound = errors.New("device not found")

// ErrDuplicateID is returned by Create when a device with the same id is registered.
var ErrDuplicateID = errors.New("device already registered")

// ErrRevoked is returned when reinstating or suspending a device that has been killed.
var ErrRevoked = errors.New("device is revoked")

// Repository defines persistence for registered terminals.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Device, error)
	ListByMerchant(ctx context.Context, merchantID string) ([]*domain.Device, error)
	Create(ctx context.Context, d *domain.Device) error
	Suspend(ctx context.Context, id string, at time.Time) error
	Reinstate(ctx context.Context, id string) error
	Revoke(ctx context.Context, id string, at time.Time) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}
