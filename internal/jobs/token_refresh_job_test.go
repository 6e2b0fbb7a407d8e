package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	cfg "github.com/DayMoonDevelopment/post-for-me-sub000/configs"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/delivery"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/notify"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/platform"
)

type fakeSweepAccountRepo struct {
	accounts     []*models.SocialAccount
	disconnected []int64
	setTokens    int
}

func (r *fakeSweepAccountRepo) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	return nil, nil
}

func (r *fakeSweepAccountRepo) ListExpiringBetween(ctx context.Context, initialTime, finalTime time.Time) ([]*models.SocialAccount, error) {
	return r.accounts, nil
}

func (r *fakeSweepAccountRepo) SetTokens(ctx context.Context, id int64, accessToken, refreshToken string, accessExpiresAt, refreshExpiresAt time.Time) error {
	r.setTokens++
	return nil
}

func (r *fakeSweepAccountRepo) Disconnect(ctx context.Context, id int64) error {
	r.disconnected = append(r.disconnected, id)
	return nil
}

type sweepResultRepo struct{}

func (sweepResultRepo) Create(ctx context.Context, result *models.PostResult) (int64, error) {
	return 0, nil
}

func (sweepResultRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostResult, error) {
	return nil, nil
}

type sweepEventRepo struct{}

func (sweepEventRepo) CreateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return nil
}

func (sweepEventRepo) CreateUsageEvent(ctx context.Context, event *models.UsageEvent) error {
	return nil
}

func TestRefreshTokensDisconnectsLapsedAccounts(t *testing.T) {
	accounts := &fakeSweepAccountRepo{accounts: []*models.SocialAccount{
		{
			ID:                    1,
			Platform:              models.PlatformYoutube,
			AccessTokenExpiresAt:  time.Now().Add(10 * time.Minute),
			RefreshTokenExpiresAt: time.Now().Add(-time.Hour),
		},
		{
			// No registered app credentials; skipped without a disconnect.
			ID:                   2,
			Platform:             "unconfigured",
			AccessTokenExpiresAt: time.Now().Add(10 * time.Minute),
		},
	}}
	worker := delivery.NewWorker(cfg.Config{}, accounts, sweepResultRepo{}, notify.New(sweepEventRepo{}), platform.Deps{})

	job := NewTokenRefreshJob(&cfg.Config{}, accounts, worker)
	job.RefreshTokens()

	assert.Equal(t, []int64{1}, accounts.disconnected)
	assert.Zero(t, accounts.setTokens)
}
