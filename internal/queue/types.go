package queue

import (
	"encoding/json"

	cfg "github.com/DayMoonDevelopment/post-for-me-sub000/configs"
)

// Task kinds handled by the worker. Each has a payload/output contract below;
// the task runtime treats payloads as opaque JSON.
const (
	TaskTypeProcessPost    = "post:process"
	TaskTypeDeliverPost    = "post:deliver"
	TaskTypeLocalizeMedia  = "media:localize"
	TaskTypeNormalizeVideo = "media:normalize"
	TaskTypeCompressVideo  = "media:compress"
)

type ProcessPostPayload struct {
	PostID int64 `json:"post_id"`
}

type LocalizeMediaPayload struct {
	MediaID        int64  `json:"media_id"`
	URL            string `json:"url"`
	ThumbnailURL   string `json:"thumbnail_url,omitempty"`
	Provider       string `json:"provider,omitempty"`
	AccountID      int64  `json:"account_id,omitempty"`
	SkipProcessing bool   `json:"skip_processing,omitempty"`
}

type LocalizeMediaResult struct {
	MediaID        int64  `json:"media_id"`
	URL            string `json:"url"`
	ThumbnailURL   string `json:"thumbnail_url,omitempty"`
	Type           string `json:"type"`
	Provider       string `json:"provider,omitempty"`
	AccountID      int64  `json:"account_id,omitempty"`
	SkipProcessing bool   `json:"skip_processing,omitempty"`
}

type NormalizeVideoPayload struct {
	URL string `json:"url"`
}

type CompressVideoPayload struct {
	URL          string `json:"url"`
	MaxSizeBytes int64  `json:"max_size_bytes"`
}

type CompressVideoResult struct {
	URL string `json:"url"`
}

// MediaItem is the resolved, localized media handed to a delivery worker.
type MediaItem struct {
	URL                  string   `json:"url"`
	ThumbnailURL         string   `json:"thumbnail_url,omitempty"`
	ThumbnailTimestampMs int64    `json:"thumbnail_timestamp_ms,omitempty"`
	Type                 string   `json:"type"`
	Tags                 []string `json:"tags,omitempty"`
}

type DeliverPostPayload struct {
	PostID            int64              `json:"post_id"`
	Platform          string             `json:"platform"`
	AccountID         int64              `json:"account_id"`
	Caption           string             `json:"caption"`
	Media             []MediaItem        `json:"media"`
	Settings          json.RawMessage    `json:"settings,omitempty"`
	AppCredentials    cfg.AppCredentials `json:"app_credentials"`
	BillingCustomerID string             `json:"billing_customer_id"`
}
