package models

import "time"

type Project struct {
	ID                int64     `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	BillingCustomerID string    `db:"billing_customer_id" json:"billing_customer_id"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
