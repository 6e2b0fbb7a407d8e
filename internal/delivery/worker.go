package delivery

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	cfg "github.com/DayMoonDevelopment/post-for-me-sub000/configs"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/notify"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/platform"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/queue"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/repository"
	"github.com/DayMoonDevelopment/post-for-me-sub000/pkg/utils"
)

// refreshWindow forces a refresh when the stored access token expires within
// this horizon.
const refreshWindow = 7 * 24 * time.Hour

// alwaysRefresh lists platforms whose tokens are cheap to refresh and easily
// silently expired; their stored expiry is not trusted.
var alwaysRefresh = map[string]bool{
	models.PlatformTiktok:  true,
	models.PlatformBluesky: true,
}

// Worker is the per-account delivery unit: refresh credentials when needed,
// publish through the matching adapter, record one PostResult, meter and
// notify. It always produces a result.
type Worker struct {
	cfg      cfg.Config
	accounts repository.SocialAccountRepository
	results  repository.PostResultRepository
	notifier *notify.Notifier
	deps     platform.Deps
}

func NewWorker(
	c cfg.Config,
	accounts repository.SocialAccountRepository,
	results repository.PostResultRepository,
	notifier *notify.Notifier,
	deps platform.Deps) *Worker {
	return &Worker{
		cfg:      c,
		accounts: accounts,
		results:  results,
		notifier: notifier,
		deps:     deps,
	}
}

func (w *Worker) Deliver(ctx context.Context, p queue.DeliverPostPayload) *models.PostResult {
	account, err := w.accounts.GetByID(ctx, p.AccountID)
	if err != nil || account == nil {
		return w.record(ctx, p, failed(p, "social account not found"))
	}

	adapter, err := platform.New(p.Platform, w.deps, p.AppCredentials)
	if err != nil {
		return w.record(ctx, p, failed(p, err.Error()))
	}

	acc, err := w.decryptAccount(account)
	if err != nil {
		return w.record(ctx, p, failed(p, "unable to decrypt stored credentials"))
	}

	if w.needsRefresh(account) {
		creds, err := adapter.RefreshAccessToken(ctx, acc)
		if err != nil {
			// Publishing with a token known to be invalid is pointless;
			// stop here with a deterministic failure.
			slog.Info("token refresh failed", "platform", p.Platform, "account_id", account.ID, "error", err)
			return w.record(ctx, p, failed(p, "token refresh failed: "+err.Error()))
		}
		if err := w.persistTokens(ctx, account.ID, creds); err != nil {
			return w.record(ctx, p, failed(p, "unable to persist refreshed tokens"))
		}
		acc.AccessToken = creds.AccessToken
		acc.RefreshToken = creds.RefreshToken
		acc.AccessTokenExpiresAt = creds.ExpiresAt
	}

	out := adapter.Publish(ctx, &platform.PublishInput{
		PostID:   p.PostID,
		Account:  acc,
		Caption:  p.Caption,
		Media:    p.Media,
		Settings: p.Settings,
	})

	result := &models.PostResult{
		PostID:          p.PostID,
		AccountID:       p.AccountID,
		Success:         out.Success,
		ProviderPostID:  out.ProviderPostID,
		ProviderPostURL: out.ProviderPostURL,
		ErrorMessage:    out.ErrorMessage,
		Details:         out.Details,
	}

	if result.Success {
		w.notifier.MeterPublish(ctx, p.BillingCustomerID)
	}

	return w.record(ctx, p, result)
}

func (w *Worker) needsRefresh(account *models.SocialAccount) bool {
	if alwaysRefresh[account.Platform] {
		return true
	}
	return time.Until(account.AccessTokenExpiresAt) < refreshWindow
}

// RefreshAccount refreshes and persists tokens for one connected account. The
// token refresh sweep uses this outside of any delivery.
func (w *Worker) RefreshAccount(ctx context.Context, account *models.SocialAccount, app cfg.AppCredentials) error {
	adapter, err := platform.New(account.Platform, w.deps, app)
	if err != nil {
		return err
	}
	acc, err := w.decryptAccount(account)
	if err != nil {
		return err
	}
	creds, err := adapter.RefreshAccessToken(ctx, acc)
	if err != nil {
		return err
	}
	return w.persistTokens(ctx, account.ID, creds)
}

func (w *Worker) decryptAccount(account *models.SocialAccount) (*platform.Account, error) {
	key := []byte(w.cfg.SecretKey)

	accessToken, err := utils.Decrypt(account.AccessToken, key)
	if err != nil {
		return nil, err
	}
	refreshToken, err := utils.Decrypt(account.RefreshToken, key)
	if err != nil {
		return nil, err
	}

	acc := &platform.Account{
		ID:                    account.ID,
		Platform:              account.Platform,
		ExternalID:            account.ExternalID,
		Username:              account.Username,
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		AccessTokenExpiresAt:  account.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: account.RefreshTokenExpiresAt,
		ConnectionType:        account.ConnectionType,
	}

	if len(account.Metadata) > 0 {
		var meta struct {
			AppPassword string `json:"app_password"`
		}
		if err := json.Unmarshal(account.Metadata, &meta); err == nil && meta.AppPassword != "" {
			if secret, err := utils.Decrypt(meta.AppPassword, key); err == nil {
				acc.AppSecret = secret
			}
		}
	}
	return acc, nil
}

func (w *Worker) persistTokens(ctx context.Context, accountID int64, creds *platform.Credentials) error {
	key := []byte(w.cfg.SecretKey)

	encryptedAccess, err := utils.Encrypt([]byte(creds.AccessToken), key)
	if err != nil {
		return err
	}
	encryptedRefresh, err := utils.Encrypt([]byte(creds.RefreshToken), key)
	if err != nil {
		return err
	}
	return w.accounts.SetTokens(ctx, accountID, encryptedAccess, encryptedRefresh, creds.ExpiresAt, creds.RefreshExpiresAt)
}

// record persists the result row and emits the result-created notification;
// persistence failures are logged, the in-memory result is still returned so
// the orchestrator can reconcile.
func (w *Worker) record(ctx context.Context, p queue.DeliverPostPayload, result *models.PostResult) *models.PostResult {
	id, err := w.results.Create(ctx, result)
	if err != nil {
		slog.Info("post result persist failed", "post_id", p.PostID, "account_id", p.AccountID, "error", err)
	} else {
		result.ID = id
	}

	account, _ := w.accounts.GetByID(ctx, p.AccountID)
	if account != nil {
		w.notifier.ResultCreated(ctx, account.ProjectID, result)
	}
	return result
}

func failed(p queue.DeliverPostPayload, message string) *models.PostResult {
	return &models.PostResult{
		PostID:       p.PostID,
		AccountID:    p.AccountID,
		ErrorMessage: message,
	}
}
