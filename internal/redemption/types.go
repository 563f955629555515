package redemption

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/token/domain"
)

// IssueRequest describes a token to mint for a payee.
type IssueRequest struct {
	PayeeID string `validate:"required,max=64"`
	// Amount is left invalid for a payer-entered amount.
	Amount    decimal.NullDecimal
	Currency  string `validate:"required,iso4217"`
	Reference string `validate:"max=140"`
	// TTL overrides the default lifetime when positive. It may not exceed the configured maximum.
	TTL            time.Duration `validate:"gte=0"`
	OfflineCapable bool
}

// IssueResult is the QR payload and the stored record for a new token.
type IssueResult struct {
	Payload string
	Record  *domain.Record
}

// ValidateResult is the read-only view of a payload shown before the payer commits.
type ValidateResult struct {
	Valid  bool
	Reason Reason
	// Token fields are set whenever the payload decoded, even when Valid is false.
	TokenID        string
	PayeeID        string
	Amount         decimal.NullDecimal
	Currency       string
	Reference      string
	ExpiresAt      time.Time
	OfflineCapable bool
	// Offline is true when the store could not be reached and the answer rests on the signature alone.
	Offline bool
}

// RedeemRequest is one redemption attempt. Exactly one of Payload and TokenID identifies the token.
type RedeemRequest struct {
	Payload         string
	TokenID         string
	PayerAccountRef string
	// DeviceID is checked against the device trust gate only when set.
	DeviceID string
	Channel  string
	// Amount is the payer-entered amount. Optional for fixed-amount tokens, where it must match.
	Amount decimal.NullDecimal
}

// RedeemResult is the outcome of an attempt. A rejected attempt always carries a Reason.
type RedeemResult struct {
	Success             bool
	Reason              Reason
	Stage               Stage
	TokenID             string
	SettlementReference string
	// Record is the claimed record; nil when the attempt was rejected before the claim.
	Record *domain.Record
}
