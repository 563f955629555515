package domain

import "time"

// Device is a registered scanning terminal (POS, ATM, USSD gateway or app install) that may redeem tokens.
type Device struct {
	ID         string
	MerchantID string
	Channel    string
	Label      string
	// SuspendedAt is set while an operator has temporarily blocked the terminal.
	SuspendedAt *time.Time
	// RevokedAt is set once the terminal is killed; it is never cleared.
	RevokedAt  *time.Time
	LastSeenAt *time.Time
	CreatedAt  time.Time
}

// Suspended reports whether the device is suspended and not revoked.
func (d *Device) Suspended() bool {
	return d.SuspendedAt != nil && d.RevokedAt == nil
}

// Revoked reports whether the device has been killed.
func (d *Device) Revoked() bool {
	return d.RevokedAt != nil
}
