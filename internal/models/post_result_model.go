package models

import (
	"encoding/json"
	"time"
)

// PostResult is the append-only outcome of one delivery attempt for one
// (post, account) pair.
type PostResult struct {
	ID              int64           `db:"id" json:"id"`
	PostID          int64           `db:"post_id" json:"post_id"`
	AccountID       int64           `db:"account_id" json:"account_id"`
	Success         bool            `db:"success" json:"success"`
	ProviderPostID  string          `db:"provider_post_id" json:"provider_post_id"`
	ProviderPostURL string          `db:"provider_post_url" json:"provider_post_url"`
	ErrorMessage    string          `db:"error_message" json:"error_message"`
	Details         json.RawMessage `db:"details" json:"details"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}
