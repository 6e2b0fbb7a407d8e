package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
)

type SocialAccountRepository interface {
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	ListExpiringBetween(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error)
	SetTokens(ctx context.Context, id int64, accessToken, refreshToken string, accessExpiresAt, refreshExpiresAt time.Time) error
	Disconnect(ctx context.Context, id int64) error
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const socialAccountColumns = `id, project_id, platform, external_id, username,
	access_token, refresh_token, access_token_expires_at, refresh_token_expires_at,
	connection_type, metadata, status, created_at, updated_at`

func scanSocialAccount(row interface{ Scan(dest ...any) error }) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	err := row.Scan(&sa.ID, &sa.ProjectID, &sa.Platform, &sa.ExternalID, &sa.Username,
		&sa.AccessToken, &sa.RefreshToken, &sa.AccessTokenExpiresAt, &sa.RefreshTokenExpiresAt,
		&sa.ConnectionType, &sa.Metadata, &sa.Status, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE id = $1`
	sa, err := scanSocialAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return sa, nil
}

func (r *socialAccountRepository) ListExpiringBetween(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts
		WHERE access_token_expires_at BETWEEN $1 AND $2 AND access_token <> ''`
	rows, err := r.db.QueryContext(ctx, query, initialTime, finalTime)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanSocialAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, sa)
	}
	return accounts, rows.Err()
}

func (r *socialAccountRepository) SetTokens(ctx context.Context, id int64, accessToken, refreshToken string, accessExpiresAt, refreshExpiresAt time.Time) error {
	query := `
		UPDATE social_accounts
		SET access_token = $1,
			refresh_token = $2,
			access_token_expires_at = $3,
			refresh_token_expires_at = $4,
			updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query, accessToken, refreshToken, accessExpiresAt, refreshExpiresAt, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// Disconnect nulls the stored tokens to mark the connection unusable.
func (r *socialAccountRepository) Disconnect(ctx context.Context, id int64) error {
	query := `
		UPDATE social_accounts
		SET access_token = '',
			status = 'disconnected',
			updated_at = $1
		WHERE id = $2
	`
	_, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
