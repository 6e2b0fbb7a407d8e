package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	cfg "github.com/DayMoonDevelopment/post-for-me-sub000/configs"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/notify"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/queue"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/repository"
	"github.com/DayMoonDevelopment/post-for-me-sub000/pkg/utils"
)

// Orchestrator drives a scheduled post through media preparation and
// per-account delivery. Every connected account always ends with exactly one
// result row, and the post always leaves the processing state, no matter which
// stage fails.
type Orchestrator struct {
	cfg      *cfg.Config
	posts    repository.PostRepository
	media    repository.PostMediaRepository
	configs  repository.PlatformConfigRepository
	results  repository.PostResultRepository
	projects repository.ProjectRepository
	jobs     queue.JobClient
	notifier *notify.Notifier
}

func New(
	c *cfg.Config,
	posts repository.PostRepository,
	media repository.PostMediaRepository,
	configs repository.PlatformConfigRepository,
	results repository.PostResultRepository,
	projects repository.ProjectRepository,
	jobs queue.JobClient,
	notifier *notify.Notifier,
) *Orchestrator {
	return &Orchestrator{
		cfg:      c,
		posts:    posts,
		media:    media,
		configs:  configs,
		results:  results,
		projects: projects,
		jobs:     jobs,
		notifier: notifier,
	}
}

func (o *Orchestrator) ProcessPost(ctx context.Context, postID int64) error {
	post, err := o.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		return fmt.Errorf("post %d not found", postID)
	}

	if err := o.posts.UpdateStatus(ctx, models.PostStatusProcessing, post.ID); err != nil {
		slog.Info(err.Error())
	}

	accounts, err := o.posts.ListAccountsByPostID(ctx, post.ID)
	if err != nil {
		return err
	}

	var results []*models.PostResult
	defer func() {
		if r := recover(); r != nil {
			slog.Error("post processing panicked", "post_id", post.ID, "panic", r)
		}
		o.finalize(context.WithoutCancel(ctx), post, accounts, results)
	}()

	results = o.run(ctx, post, accounts)
	return nil
}

func (o *Orchestrator) run(ctx context.Context, post *models.Post, accounts []*models.SocialAccount) []*models.PostResult {
	claims, err := utils.ValidateAPIToken(o.cfg.SecretKey, post.APIToken)
	if err != nil || claims.ProjectID != post.ProjectID {
		slog.Info("api token rejected", "post_id", post.ID, "error", err)
		return failAll(post, accounts, "invalid API key")
	}

	project, err := o.projects.GetByID(ctx, post.ProjectID)
	if err != nil {
		slog.Info(err.Error())
		return failAll(post, accounts, "could not load project")
	}
	if project == nil || project.BillingCustomerID == "" {
		return failAll(post, accounts, "no billing customer found for project")
	}

	media, err := o.media.ListByPostID(ctx, post.ID)
	if err != nil {
		slog.Info(err.Error())
		return failAll(post, accounts, "could not load post media")
	}

	hadMedia := len(media) > 0
	media = o.localize(ctx, media)
	if hadMedia && len(media) == 0 {
		return failAll(post, accounts, "media processing failed")
	}
	media = o.normalize(ctx, media)
	if hadMedia && len(media) == 0 {
		return failAll(post, accounts, "media processing failed")
	}

	platformConfigs, err := o.configs.ListByPostID(ctx, post.ID)
	if err != nil {
		slog.Info(err.Error())
		return failAll(post, accounts, "could not load platform configurations")
	}

	// A retried run must not publish twice: accounts that already have a
	// persisted result keep it and are skipped.
	prior, err := o.results.ListByPostID(ctx, post.ID)
	if err != nil {
		slog.Info(err.Error())
	}
	delivered := make(map[int64]*models.PostResult, len(prior))
	for _, r := range prior {
		delivered[r.AccountID] = r
	}

	var results []*models.PostResult
	var tasks []queue.Task
	var taskAccounts []*models.SocialAccount
	for _, acc := range accounts {
		if r, ok := delivered[acc.ID]; ok {
			results = append(results, r)
			continue
		}

		creds, ok := o.appCredentials(acc)
		if !ok {
			results = append(results, failureResult(post.ID, acc.ID,
				fmt.Sprintf("No App credentials found for provider %s", acc.Platform)))
			continue
		}

		tasks = append(tasks, queue.Task{
			Kind: queue.TaskTypeDeliverPost,
			Payload: queue.DeliverPostPayload{
				PostID:            post.ID,
				Platform:          acc.Platform,
				AccountID:         acc.ID,
				Caption:           effectiveCaption(post, platformConfigs, acc),
				Media:             toMediaItems(effectiveMedia(media, acc)),
				Settings:          effectiveSettings(platformConfigs, acc),
				AppCredentials:    creds,
				BillingCustomerID: project.BillingCustomerID,
			},
		})
		taskAccounts = append(taskAccounts, acc)
	}

	outcomes, err := o.jobs.SubmitBatchAndWait(ctx, tasks)
	if err != nil {
		slog.Info(err.Error())
		return results
	}
	for i, out := range outcomes {
		if out.Err != nil || len(out.Output) == 0 {
			// Reconciliation synthesizes a result for this account.
			slog.Info("delivery outcome missing", "post_id", post.ID,
				"account_id", taskAccounts[i].ID, "error", out.Err)
			continue
		}
		var res models.PostResult
		if err := json.Unmarshal(out.Output, &res); err != nil {
			slog.Info(err.Error())
			continue
		}
		results = append(results, &res)
	}
	return results
}

// localize fans localization jobs out over every media item and waits for the
// batch. A failing item is dropped rather than failing the post; survivors are
// persisted with their rehosted URLs and detected types.
func (o *Orchestrator) localize(ctx context.Context, media []*models.PostMedia) []*models.PostMedia {
	if len(media) == 0 {
		return media
	}

	tasks := make([]queue.Task, 0, len(media))
	for _, m := range media {
		tasks = append(tasks, queue.Task{
			Kind: queue.TaskTypeLocalizeMedia,
			Payload: queue.LocalizeMediaPayload{
				MediaID:        m.ID,
				URL:            m.URL,
				ThumbnailURL:   m.ThumbnailURL,
				Provider:       m.Provider,
				AccountID:      m.AccountID,
				SkipProcessing: m.SkipProcessing,
			},
		})
	}

	outcomes, err := o.jobs.SubmitBatchAndWait(ctx, tasks)
	if err != nil {
		slog.Info(err.Error())
		return nil
	}

	var kept []*models.PostMedia
	for i, out := range outcomes {
		m := media[i]
		if out.Err != nil {
			slog.Info("media localization failed", "media_id", m.ID, "error", out.Err)
			continue
		}
		var res queue.LocalizeMediaResult
		if err := json.Unmarshal(out.Output, &res); err != nil {
			slog.Info(err.Error())
			continue
		}
		m.URL = res.URL
		m.ThumbnailURL = res.ThumbnailURL
		m.Type = res.Type
		if err := o.media.SetLocalized(ctx, m.ID, m.URL, m.ThumbnailURL, m.Type); err != nil {
			slog.Info(err.Error())
		}
		kept = append(kept, m)
	}
	return kept
}

// normalize runs the video normalizer over every localized video that did not
// opt out of processing. Normalization rewrites objects in place, so survivors
// keep their URLs; a failing video is dropped from the delivery set.
func (o *Orchestrator) normalize(ctx context.Context, media []*models.PostMedia) []*models.PostMedia {
	var tasks []queue.Task
	var indexes []int
	for i, m := range media {
		if m.Type != models.MediaTypeVideo || m.SkipProcessing {
			continue
		}
		tasks = append(tasks, queue.Task{
			Kind:    queue.TaskTypeNormalizeVideo,
			Payload: queue.NormalizeVideoPayload{URL: m.URL},
		})
		indexes = append(indexes, i)
	}
	if len(tasks) == 0 {
		return media
	}

	outcomes, err := o.jobs.SubmitBatchAndWait(ctx, tasks)
	if err != nil {
		slog.Info(err.Error())
		return nil
	}

	dropped := make(map[int]bool)
	for i, out := range outcomes {
		if out.Err != nil {
			m := media[indexes[i]]
			slog.Info("video normalization failed", "media_id", m.ID, "error", out.Err)
			dropped[indexes[i]] = true
		}
	}
	if len(dropped) == 0 {
		return media
	}

	kept := make([]*models.PostMedia, 0, len(media))
	for i, m := range media {
		if !dropped[i] {
			kept = append(kept, m)
		}
	}
	return kept
}

// finalize is the always-run tail of processing: synthesize results for
// accounts that never got one, persist everything not already written by a
// delivery worker, mark the post processed, and emit the post-updated event.
func (o *Orchestrator) finalize(ctx context.Context, post *models.Post, accounts []*models.SocialAccount, results []*models.PostResult) {
	seen := make(map[int64]bool, len(results))
	for _, r := range results {
		seen[r.AccountID] = true
	}
	for _, acc := range accounts {
		if !seen[acc.ID] {
			results = append(results, failureResult(post.ID, acc.ID,
				"post status unavailable, check the social account"))
		}
	}

	for _, r := range results {
		if r.ID != 0 {
			continue
		}
		id, err := o.results.Create(ctx, r)
		if err != nil {
			slog.Info(err.Error())
			continue
		}
		r.ID = id
		o.notifier.ResultCreated(ctx, post.ProjectID, r)
	}

	if err := o.posts.UpdateStatus(ctx, models.PostStatusProcessed, post.ID); err != nil {
		slog.Info(err.Error())
	}
	post.Status = models.PostStatusProcessed

	o.notifier.PostUpdated(ctx, post.ProjectID, &notify.PostUpdatedPayload{
		Post:    post,
		Results: results,
	})
}

func failureResult(postID, accountID int64, message string) *models.PostResult {
	return &models.PostResult{
		PostID:       postID,
		AccountID:    accountID,
		Success:      false,
		ErrorMessage: message,
		Details:      json.RawMessage("{}"),
	}
}

func failAll(post *models.Post, accounts []*models.SocialAccount, message string) []*models.PostResult {
	results := make([]*models.PostResult, 0, len(accounts))
	for _, acc := range accounts {
		results = append(results, failureResult(post.ID, acc.ID, message))
	}
	return results
}
