package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/token/domain"
)

// MemoryRepository is an in-process token store for tests and single-instance development.
// Claim is a compare-and-swap under a mutex; it is not safe across processes.
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.Record
	nowF    func() time.Time
}

// NewMemoryRepository returns an empty in-memory token store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]*domain.Record), nowF: time.Now}
}

func (m *MemoryRepository) Issue(_ context.Context, rec *domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.ID]; ok {
		return ErrDuplicateID
	}
	cp := *rec
	cp.State = domain.StateIssued
	cp.RedeemedAt = nil
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.nowF().UTC()
	}
	m.records[rec.ID] = &cp
	return nil
}

func (m *MemoryRepository) Lookup(_ context.Context, tokenID string) (*domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[tokenID]
	if !ok {
		return nil, nil
	}
	return clone(rec), nil
}

func (m *MemoryRepository) Claim(_ context.Context, p ClaimParams) (*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[p.TokenID]
	if !ok || !rec.Redeemable(p.At) {
		return nil, classifyClaimMiss(rec, p.At)
	}
	at := p.At
	rec.State = domain.StateRedeemed
	rec.RedeemedAt = &at
	rec.RedeemedBy = p.ClaimedBy
	rec.SettlementReference = p.SettlementReference
	rec.RedemptionChannel = p.Channel
	rec.RedemptionDeviceID = p.DeviceID
	rec.RedeemedAmount = p.Amount
	return clone(rec), nil
}

func (m *MemoryRepository) AttachSettlement(_ context.Context, tokenID, reference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[tokenID]
	if !ok || rec.State != domain.StateRedeemed {
		return ErrNotFound
	}
	rec.SettlementReference = reference
	return nil
}

func (m *MemoryRepository) ListByPayee(_ context.Context, payeeID string, limit, offset int) ([]*domain.Record, error) {
	m.mu.RLock()
	var out []*domain.Record
	for _, rec := range m.records {
		if rec.PayeeID == payeeID {
			out = append(out, clone(rec))
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 || offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clone(rec *domain.Record) *domain.Record {
	cp := *rec
	if rec.RedeemedAt != nil {
		t := *rec.RedeemedAt
		cp.RedeemedAt = &t
	}
	return &cp
}
