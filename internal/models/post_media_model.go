package models

import "time"

// PostMedia is one media item attached to a post. Provider/AccountID scope the
// item to a single platform or a single account; both empty means the item is
// part of the post's default media set.
type PostMedia struct {
	ID                   int64     `db:"id" json:"id"`
	PostID               int64     `db:"post_id" json:"post_id"`
	URL                  string    `db:"url" json:"url"`
	ThumbnailURL         string    `db:"thumbnail_url" json:"thumbnail_url"`
	ThumbnailTimestampMs int64     `db:"thumbnail_timestamp_ms" json:"thumbnail_timestamp_ms"`
	Provider             string    `db:"provider" json:"provider"`
	AccountID            int64     `db:"account_id" json:"account_id"`
	SkipProcessing       bool      `db:"skip_processing" json:"skip_processing"`
	Type                 string    `db:"type" json:"type"`
	DisplayOrder         int       `db:"display_order" json:"display_order"`
	Tags                 []string  `db:"tags" json:"tags"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}

const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)
