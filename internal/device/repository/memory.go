package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/device/domain"
)

// MemoryRepository is an in-process device registry for tests and development.
type MemoryRepository struct {
	mu      sync.RWMutex
	devices map[string]*domain.Device
}

// NewMemoryRepository returns an empty in-memory device registry.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{devices: make(map[string]*domain.Device)}
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (*domain.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.devices[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryRepository) ListByMerchant(_ context.Context, merchantID string) ([]*domain.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Device
	for _, d := range m.devices {
		if d.MerchantID == merchantID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) Create(_ context.Context, d *domain.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[d.ID]; ok {
		return ErrDuplicateID
	}
	cp := *d
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.devices[d.ID] = &cp
	return nil
}

func (m *MemoryRepository) Suspend(_ context.Context, id string, at time.Time) error {
	return m.updateLive(id, func(d *domain.Device) { d.SuspendedAt = &at })
}

func (m *MemoryRepository) Reinstate(_ context.Context, id string) error {
	return m.updateLive(id, func(d *domain.Device) { d.SuspendedAt = nil })
}

func (m *MemoryRepository) Revoke(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return ErrNotFound
	}
	if d.RevokedAt == nil {
		d.RevokedAt = &at
	}
	return nil
}

func (m *MemoryRepository) UpdateLastSeen(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return ErrNotFound
	}
	d.LastSeenAt = &at
	return nil
}

func (m *MemoryRepository) updateLive(id string, fn func(*domain.Device)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[id]
	if !ok {
		return ErrNotFound
	}
	if d.RevokedAt != nil {
		return ErrRevoked
	}
	fn(d)
	return nil
}
