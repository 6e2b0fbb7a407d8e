package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	cfg "github.com/DayMoonDevelopment/post-for-me-sub000/configs"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/delivery"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/orchestrator"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/repository"
)

// TokenRefreshJob periodically refreshes access tokens that are about to
// expire, so deliveries rarely hit the refresh path under time pressure.
type TokenRefreshJob struct {
	cfg      *cfg.Config
	accounts repository.SocialAccountRepository
	worker   *delivery.Worker
}

func NewTokenRefreshJob(
	c *cfg.Config,
	accounts repository.SocialAccountRepository,
	worker *delivery.Worker) *TokenRefreshJob {
	return &TokenRefreshJob{
		cfg:      c,
		accounts: accounts,
		worker:   worker,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.accounts.ListExpiringBetween(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			// A lapsed refresh credential cannot be recovered; null the
			// tokens so the account stops surfacing as deliverable.
			if !acc.RefreshTokenExpiresAt.IsZero() && acc.RefreshTokenExpiresAt.Before(currentTime) {
				if err := c.accounts.Disconnect(ctx, acc.ID); err != nil {
					slog.Info("unable to disconnect account",
						"platform", acc.Platform, "account_id", acc.ID, "error", err)
				}
				return
			}

			app, ok := orchestrator.AppCredentialsFor(c.cfg, acc)
			if !ok {
				slog.Info("no app credentials for account",
					"platform", acc.Platform, "account_id", acc.ID)
				return
			}
			if err := c.worker.RefreshAccount(ctx, acc, app); err != nil {
				slog.Info("unable to refresh tokens",
					"platform", acc.Platform, "account_id", acc.ID, "error", err)
			}
		}(acc)
	}

	wg.Wait()
}
