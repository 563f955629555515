package redemption

import (
	"errors"

	"github.com/thependalorian/ketchup-smartpay-sub006/internal/token/codec"
	"github.com/thependalorian/ketchup-smartpay-sub006/internal/token/repository"
)

// Reason is the user-presentable cause of a rejected validation or redemption.
type Reason string

const (
	ReasonInvalidPrefix       Reason = "InvalidPrefix"
	ReasonInvalidFormat       Reason = "InvalidFormat"
	ReasonInvalidSignature    Reason = "InvalidSignature"
	ReasonExpired             Reason = "Expired"
	ReasonNotFound            Reason = "NotFound"
	ReasonAlreadyRedeemed     Reason = "AlreadyRedeemed"
	ReasonDeviceNotAuthorized Reason = "DeviceNotAuthorized"
	ReasonSettlementFailed    Reason = "SettlementFailed"
	// ReasonAmountRequired rejects a payer-entered-amount token redeemed without a positive amount.
	ReasonAmountRequired Reason = "AmountRequired"
	// ReasonAmountMismatch rejects a fixed-amount token redeemed with a different amount.
	ReasonAmountMismatch Reason = "AmountMismatch"
)

// Stage is a step of the redemption state machine. A result's Stage is the last step completed.
type Stage string

const (
	StageReceived      Stage = "RECEIVED"
	StageDecoded       Stage = "DECODED"
	StageDeviceChecked Stage = "DEVICE_CHECKED"
	StageClaimed       Stage = "CLAIMED"
	StageHandedOff     Stage = "HANDED_OFF"
)

// decodeReason maps a codec error to a rejection reason.
func decodeReason(err error) Reason {
	switch {
	case errors.Is(err, codec.ErrInvalidPrefix):
		return ReasonInvalidPrefix
	case errors.Is(err, codec.ErrInvalidSignature):
		return ReasonInvalidSignature
	case errors.Is(err, codec.ErrExpired):
		return ReasonExpired
	}
	return ReasonInvalidFormat
}

// claimReason maps a store claim error to a rejection reason. ok is false for operational errors.
func claimReason(err error) (Reason, bool) {
	switch {
	case errors.Is(err, repository.ErrAlreadyRedeemed):
		return ReasonAlreadyRedeemed, true
	case errors.Is(err, repository.ErrNotFound):
		return ReasonNotFound, true
	case errors.Is(err, repository.ErrExpired):
		return ReasonExpired, true
	}
	return "", false
}
