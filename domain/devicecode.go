package domain

import "time"

// DeviceCodeStatus represents the status of a device authorization request.
type DeviceCodeStatus string

const (
	DeviceCodeStatusPending    DeviceCodeStatus = "pending"
	DeviceCodeStatusAuthorized DeviceCodeStatus = "authorized"
	DeviceCodeStatusDenied     DeviceCodeStatus = "denied"
	DeviceCodeStatusRedeemed   DeviceCodeStatus = "redeemed"
)

// DeviceCode holds the information for a device authorization grant.
type DeviceCode struct {
	ID           string           `json:"id"`
	DeviceCode   string           `json:"device_code"`
	UserCode     string           `json:"user_code"`
	ClientID     string           `json:"client_id"`
	Scope        string           `json:"scope"`
	Status       DeviceCodeStatus `json:"status"`
	UserID       string           `json:"user_id,omitempty"`
	ExpiresAt    time.Time        `json:"expires_at"`
	Interval     int              `json:"interval"`
	CreatedAt    time.Time        `json:"created_at"`
	LastPolledAt time.Time        `json:"last_polled_at,omitempty"`
}

// Expired reports whether the device authorization is past its TTL.
func (d *DeviceCode) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}
