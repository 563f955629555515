package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/token/domain"
)

var (
	// ErrDuplicateID is returned by Issue when a record with the same token id exists.
	ErrDuplicateID = errors.New("token store: duplicate token id")
	// ErrNotFound is returned by Claim and AttachSettlement when no record has the token id.
	ErrNotFound = errors.New("token store: token not found")
	// ErrAlreadyRedeemed is returned by Claim when another caller already moved the record to REDEEMED.
	ErrAlreadyRedeemed = errors.New("token store: token already redeemed")
	// ErrExpired is returned by Claim when the record's expires_at is not after the claim time.
	ErrExpired = errors.New("token store: token expired")
)

// ClaimParams describes a single ISSUED to REDEEMED transition.
type ClaimParams struct {
	TokenID   string
	ClaimedBy string
	// SettlementReference may be empty at claim time and attached later with AttachSettlement.
	SettlementReference string
	Channel             domain.Channel
	DeviceID            string
	Amount              decimal.NullDecimal
	At                  time.Time
}

// Repository defines persistence for payment tokens.
type Repository interface {
	// Issue inserts rec in state ISSUED.
	Issue(ctx context.Context, rec *domain.Record) error
	// Lookup returns the record for tokenID, or nil if not found.
	Lookup(ctx context.Context, tokenID string) (*domain.Record, error)
	// Claim atomically moves the record from ISSUED to REDEEMED. Exactly one concurrent caller succeeds.
	Claim(ctx context.Context, p ClaimParams) (*domain.Record, error)
	// AttachSettlement records the settlement reference on a REDEEMED record.
	AttachSettlement(ctx context.Context, tokenID, reference string) error
	// ListByPayee returns the payee's records, newest first.
	ListByPayee(ctx context.Context, payeeID string, limit, offset int) ([]*domain.Record, error)
}

// classifyClaimMiss explains why a claim on rec (nil if missing) matched no row.
func classifyClaimMiss(rec *domain.Record, at time.Time) error {
	switch {
	case rec == nil:
		return ErrNotFound
	case rec.State == domain.StateRedeemed:
		return ErrAlreadyRedeemed
	case rec.ExpiredAt(at):
		return ErrExpired
	}
	return errors.New("token store: claim matched no row")
}
