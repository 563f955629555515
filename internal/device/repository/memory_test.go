package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/device/domain"
)

func TestMemoryRepository_StateChanges(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	repo := NewMemoryRepository()
	if err := repo.Create(ctx, &domain.Device{ID: "pos-1", MerchantID: "M1", Channel: "POS"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := repo.Suspend(ctx, "pos-1", now); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	d, _ := repo.GetByID(ctx, "pos-1")
	if !d.Suspended() {
		t.Error("device should be suspended")
	}
	if err := repo.Reinstate(ctx, "pos-1"); err != nil {
		t.Fatalf("Reinstate: %v", err)
	}
	if err := repo.Revoke(ctx, "pos-1", now); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := repo.Reinstate(ctx, "pos-1"); !errors.Is(err, ErrRevoked) {
		t.Errorf("Reinstate revoked err = %v, want ErrRevoked", err)
	}
	if err := repo.Revoke(ctx, "pos-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	d, _ = repo.GetByID(ctx, "pos-1")
	if !d.Revoked() || !d.RevokedAt.Equal(now) {
		t.Errorf("RevokedAt = %v, want first revocation time %v", d.RevokedAt, now)
	}
}

func TestMemoryRepository_Missing(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	d, err := repo.GetByID(ctx, "nope")
	if err != nil || d != nil {
		t.Errorf("GetByID = %v, %v; want nil, nil", d, err)
	}
	if err := repo.Suspend(ctx, "nope", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Suspend err = %v, want ErrNotFound", err)
	}
	if err := repo.UpdateLastSeen(ctx, "nope", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateLastSeen err = %v, want ErrNotFound", err)
	}
}

func TestMemoryRepository_ListByMerchant(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	_ = repo.Create(ctx, &domain.Device{ID: "b", MerchantID: "M1"})
	_ = repo.Create(ctx, &domain.Device{ID: "a", MerchantID: "M1"})
	_ = repo.Create(ctx, &domain.Device{ID: "c", MerchantID: "M2"})
	list, err := repo.ListByMerchant(ctx, "M1")
	if err != nil {
		t.Fatalf("ListByMerchant: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Errorf("ListByMerchant = %+v", list)
	}
}

func TestMemoryRepository_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	if err := repo.Create(ctx, &domain.Device{ID: "atm-1", MerchantID: "M1", Channel: "ATM"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, &domain.Device{ID: "atm-1", MerchantID: "M2"}); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("second Create err = %v, want ErrDuplicateID", err)
	}
}
