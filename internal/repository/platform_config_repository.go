package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
)

type PlatformConfigRepository interface {
	ListByPostID(ctx context.Context, postID int64) ([]*models.PlatformConfig, error)
}

type platformConfigRepository struct {
	db *sql.DB
}

func NewPlatformConfigRepository(db *sql.DB) PlatformConfigRepository {
	return &platformConfigRepository{db: db}
}

func (r *platformConfigRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PlatformConfig, error) {
	query := `
		SELECT id, post_id, provider, account_id, caption, settings, created_at
		FROM platform_configurations
		WHERE post_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var configs []*models.PlatformConfig
	for rows.Next() {
		var pc models.PlatformConfig
		err := rows.Scan(&pc.ID, &pc.PostID, &pc.Provider, &pc.AccountID, &pc.Caption, &pc.Settings, &pc.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		configs = append(configs, &pc)
	}
	return configs, rows.Err()
}
