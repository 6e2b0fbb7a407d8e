package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
	"github.com/lib/pq"
)

type PostMediaRepository interface {
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostMedia, error)
	SetLocalized(ctx context.Context, id int64, url, thumbnailURL, mediaType string) error
}

type postMediaRepository struct {
	db *sql.DB
}

func NewPostMediaRepository(db *sql.DB) PostMediaRepository {
	return &postMediaRepository{db: db}
}

func (r *postMediaRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostMedia, error) {
	query := `
		SELECT id, post_id, url, thumbnail_url, thumbnail_timestamp_ms, provider, account_id,
			skip_processing, type, display_order, tags, created_at
		FROM post_media
		WHERE post_id = $1
		ORDER BY display_order, id
	`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var media []*models.PostMedia
	for rows.Next() {
		var m models.PostMedia
		err := rows.Scan(&m.ID, &m.PostID, &m.URL, &m.ThumbnailURL, &m.ThumbnailTimestampMs,
			&m.Provider, &m.AccountID, &m.SkipProcessing, &m.Type, &m.DisplayOrder,
			pq.Array(&m.Tags), &m.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		media = append(media, &m)
	}
	return media, rows.Err()
}

// SetLocalized records the durable-storage URLs and detected type after the
// localizer re-hosts an item.
func (r *postMediaRepository) SetLocalized(ctx context.Context, id int64, url, thumbnailURL, mediaType string) error {
	query := `
		UPDATE post_media
		SET url = $1,
			thumbnail_url = $2,
			type = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, url, thumbnailURL, mediaType, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
