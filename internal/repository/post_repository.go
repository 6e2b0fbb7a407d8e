package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	UpdateStatus(ctx context.Context, status string, postID int64) error
	ListAccountsByPostID(ctx context.Context, postID int64) ([]*models.SocialAccount, error)
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT id, project_id, caption, scheduled_time, status, api_token, created_at, updated_at FROM posts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var post models.Post
	err := row.Scan(&post.ID, &post.ProjectID, &post.Caption, &post.ScheduledTime, &post.Status, &post.APIToken, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &post, nil
}

func (r *postRepository) UpdateStatus(ctx context.Context, status string, postID int64) error {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// ListAccountsByPostID resolves the post's selected account connections
// through the post_accounts join table.
func (r *postRepository) ListAccountsByPostID(ctx context.Context, postID int64) ([]*models.SocialAccount, error) {
	query := `
		SELECT sa.id, sa.project_id, sa.platform, sa.external_id, sa.username,
			sa.access_token, sa.refresh_token, sa.access_token_expires_at, sa.refresh_token_expires_at,
			sa.connection_type, sa.metadata, sa.status, sa.created_at, sa.updated_at
		FROM social_accounts sa
		JOIN post_accounts pa ON pa.account_id = sa.id
		WHERE pa.post_id = $1
		ORDER BY sa.id
	`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		var sa models.SocialAccount
		err := rows.Scan(&sa.ID, &sa.ProjectID, &sa.Platform, &sa.ExternalID, &sa.Username,
			&sa.AccessToken, &sa.RefreshToken, &sa.AccessTokenExpiresAt, &sa.RefreshTokenExpiresAt,
			&sa.ConnectionType, &sa.Metadata, &sa.Status, &sa.CreatedAt, &sa.UpdatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, &sa)
	}
	return accounts, rows.Err()
}
