package telemetry

import "time"

// Redemption analytics event types.
const (
	EventTokenIssued        = "token_issued"
	EventTokenValidated     = "token_validated"
	EventTokenRedeemed      = "token_redeemed"
	EventRedemptionRejected = "redemption_rejected"
)

// RedemptionEvent is one step of a token's life as seen by fraud analytics.
// It never carries the payer account reference.
type RedemptionEvent struct {
	EventID    string    `json:"eventId"`
	EventType  string    `json:"eventType"`
	TokenID    string    `json:"tokenId,omitempty"`
	PayeeID    string    `json:"payeeId,omitempty"`
	Channel    string    `json:"channel,omitempty"`
	DeviceID   string    `json:"deviceId,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	Currency   string    `json:"currency,omitempty"`
	Offline    bool      `json:"offline,omitempty"`
	Source     string    `json:"source"`
	OccurredAt time.Time `json:"occurredAt"`
}
