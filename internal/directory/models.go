package directory

import "time"

// Number maps a provider-assigned phone number to the business that owns it.
// Rows are provisioned out of band; this subsystem only reads them, once per
// inbound call.
type Number struct {
	ID          string    `json:"id" db:"id"`
	BusinessID  string    `json:"business_id" db:"business_id"`
	PhoneNumber string    `json:"phone_number" db:"phone_number"`
	Label       string    `json:"label,omitempty" db:"label"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
