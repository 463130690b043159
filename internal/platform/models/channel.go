package models

// NotificationChannel is an operator-registered webhook endpoint that
// receives signed event payloads from the batch jobs.
type NotificationChannel struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	URL             string   `json:"url"`
	Events          []string `json:"events"` // JSON array in DB; empty means all
	Secret          string   `json:"-"`
	Status          string   `json:"status"` // active, disabled
	LastTriggeredAt *int64   `json:"last_triggered_at,omitempty"`
	LastError       string   `json:"last_error,omitempty"`
	CreatedAt       int64    `json:"created_at"`
	UpdatedAt       int64    `json:"updated_at"`
}
