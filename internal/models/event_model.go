package models

import (
	"encoding/json"
	"time"
)

// WebhookEvent is an outbox row picked up by the (external) webhook transport.
type WebhookEvent struct {
	ID        int64           `db:"id" json:"id"`
	ProjectID int64           `db:"project_id" json:"project_id"`
	EventType string          `db:"event_type" json:"event_type"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// UsageEvent is a metering counter row keyed by billing identity.
type UsageEvent struct {
	ID                int64     `db:"id" json:"id"`
	BillingCustomerID string    `db:"billing_customer_id" json:"billing_customer_id"`
	EventName         string    `db:"event_name" json:"event_name"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
