package models

import (
	"encoding/json"
	"time"
)

// SocialAccount is one end-user account connection on one platform. Tokens are
// stored AES-GCM encrypted; an empty access token means the account is
// disconnected.
type SocialAccount struct {
	ID                    int64     `db:"id" json:"id"`
	ProjectID             int64     `db:"project_id" json:"project_id"`
	Platform              string    `db:"platform" json:"platform"`
	ExternalID            string    `db:"external_id" json:"external_id"`
	Username              string    `db:"username" json:"username"`
	AccessToken           string    `db:"access_token" json:"-"`
	RefreshToken          string    `db:"refresh_token" json:"-"`
	AccessTokenExpiresAt  time.Time `db:"access_token_expires_at" json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `db:"refresh_token_expires_at" json:"refresh_token_expires_at"`
	// ConnectionType records the platform-specific login flow the account was
	// connected with (Instagram: "instagram" or "facebook"). Empty when the
	// platform has a single flow.
	ConnectionType string `db:"connection_type" json:"connection_type"`
	// Metadata is a platform-specific bag (Bluesky: encrypted app password
	// under "app_password").
	Metadata  json.RawMessage `db:"metadata" json:"metadata"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

const (
	PlatformTiktok    = "tiktok"
	PlatformInstagram = "instagram"
	PlatformYoutube   = "youtube"
	PlatformBluesky   = "bluesky"
)
