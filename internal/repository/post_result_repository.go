package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
)

type PostResultRepository interface {
	Create(ctx context.Context, result *models.PostResult) (int64, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostResult, error)
}

type postResultRepository struct {
	db *sql.DB
}

func NewPostResultRepository(db *sql.DB) PostResultRepository {
	return &postResultRepository{db: db}
}

func (r *postResultRepository) Create(ctx context.Context, result *models.PostResult) (int64, error) {
	query := `
		INSERT INTO post_results (post_id, account_id, success, provider_post_id, provider_post_url, error_message, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	var id int64
	details := result.Details
	if len(details) == 0 {
		details = []byte("{}")
	}
	err := r.db.QueryRowContext(ctx, query,
		result.PostID, result.AccountID, result.Success,
		result.ProviderPostID, result.ProviderPostURL, result.ErrorMessage, []byte(details),
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *postResultRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostResult, error) {
	query := `
		SELECT id, post_id, account_id, success, provider_post_id, provider_post_url, error_message, details, created_at
		FROM post_results
		WHERE post_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var results []*models.PostResult
	for rows.Next() {
		var pr models.PostResult
		err := rows.Scan(&pr.ID, &pr.PostID, &pr.AccountID, &pr.Success,
			&pr.ProviderPostID, &pr.ProviderPostURL, &pr.ErrorMessage, &pr.Details, &pr.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		results = append(results, &pr)
	}
	return results, rows.Err()
}
