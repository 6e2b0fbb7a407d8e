package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// PlatformConfig overrides the post caption and carries the free-form
// platform settings bag (privacy, placement, disclosure flags). AccountID zero
// means the config is platform-scoped; non-zero scopes it to one account.
type PlatformConfig struct {
	ID        int64           `db:"id" json:"id"`
	PostID    int64           `db:"post_id" json:"post_id"`
	Provider  string          `db:"provider" json:"provider"`
	AccountID int64           `db:"account_id" json:"account_id"`
	Caption   sql.NullString  `db:"caption" json:"caption"`
	Settings  json.RawMessage `db:"settings" json:"settings"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
