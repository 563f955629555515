// Package settlement hands claimed tokens to the external wallet/ledger service that moves funds.
package settlement

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrRejected is returned when the ledger refuses the instruction (non-retryable).
var ErrRejected = errors.New("settlement rejected")

// Instruction is what the ledger needs to move funds for one redeemed token.
type Instruction struct {
	PayerAccountRef string          `json:"payer_account_ref"`
	PayeeID         string          `json:"payee_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	TokenID         string          `json:"token_id"`
}

// Settler submits an instruction and returns the ledger's settlement reference.
type Settler interface {
	Settle(ctx context.Context, in Instruction) (string, error)
}

// Func adapts a function to Settler.
type Func func(ctx context.Context, in Instruction) (string, error)

func (f Func) Settle(ctx context.Context, in Instruction) (string, error) {
	return f(ctx, in)
}
