package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RedemptionState is the lifecycle state of a token store record.
type RedemptionState string

const (
	StateIssued   RedemptionState = "ISSUED"
	StateRedeemed RedemptionState = "REDEEMED"
)

// Channel is the physical or logical scanning context a redemption originates from.
type Channel string

const (
	ChannelPOS  Channel = "POS"
	ChannelATM  Channel = "ATM"
	ChannelUSSD Channel = "USSD"
	ChannelApp  Channel = "APP"
)

// ParseChannel returns the channel for s (case-insensitive), or false if s is not a known channel.
func ParseChannel(s string) (Channel, bool) {
	switch Channel(strings.ToUpper(strings.TrimSpace(s))) {
	case ChannelPOS:
		return ChannelPOS, true
	case ChannelATM:
		return ChannelATM, true
	case ChannelUSSD:
		return ChannelUSSD, true
	case ChannelApp:
		return ChannelApp, true
	}
	return "", false
}

// Token is the signed payment instruction carried in a QR payload. All fields are fixed at issuance.
type Token struct {
	ID             string
	PayeeID        string
	// Amount is invalid (Valid=false) when the payer supplies the amount at redemption time.
	Amount         decimal.NullDecimal
	Currency       string
	Reference      string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	OfflineCapable bool
}

// ExpiredAt reports whether the token's expiry is at or before now.
func (t *Token) ExpiredAt(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Record is the token store's durable view of a token: issuance fields plus redemption state.
type Record struct {
	Token
	State               RedemptionState
	RedeemedAt          *time.Time
	RedeemedBy          string
	SettlementReference string
	RedemptionChannel   Channel
	RedemptionDeviceID  string
	// RedeemedAmount is the amount actually handed to settlement; equals Amount for fixed-amount tokens.
	RedeemedAmount decimal.NullDecimal
	CreatedAt      time.Time
}

// Redeemable reports whether the record can still be claimed at now.
func (r *Record) Redeemable(now time.Time) bool {
	return r.State == StateIssued && !r.ExpiredAt(now)
}
