package orchestrator

import (
	"encoding/json"

	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/queue"
)

// configFor finds the most specific configuration for an account:
// account-scoped beats platform-scoped.
func configFor(configs []*models.PlatformConfig, acc *models.SocialAccount) (accountCfg, platformCfg *models.PlatformConfig) {
	for _, c := range configs {
		if c.Provider != acc.Platform {
			continue
		}
		switch c.AccountID {
		case acc.ID:
			accountCfg = c
		case 0:
			platformCfg = c
		}
	}
	return accountCfg, platformCfg
}

// effectiveCaption applies the override precedence: account-scoped config,
// then platform-scoped config, then the post default.
func effectiveCaption(post *models.Post, configs []*models.PlatformConfig, acc *models.SocialAccount) string {
	accountCfg, platformCfg := configFor(configs, acc)
	if accountCfg != nil && accountCfg.Caption.Valid {
		return accountCfg.Caption.String
	}
	if platformCfg != nil && platformCfg.Caption.Valid {
		return platformCfg.Caption.String
	}
	return post.Caption
}

func effectiveSettings(configs []*models.PlatformConfig, acc *models.SocialAccount) json.RawMessage {
	accountCfg, platformCfg := configFor(configs, acc)
	if accountCfg != nil && len(accountCfg.Settings) > 0 {
		return accountCfg.Settings
	}
	if platformCfg != nil && len(platformCfg.Settings) > 0 {
		return platformCfg.Settings
	}
	return nil
}

// effectiveMedia mirrors the caption precedence per account: account-scoped
// items, else platform-scoped items, else the post's default set.
func effectiveMedia(media []*models.PostMedia, acc *models.SocialAccount) []*models.PostMedia {
	var accountScoped, platformScoped, global []*models.PostMedia
	for _, m := range media {
		switch {
		case m.AccountID == acc.ID && m.Provider == acc.Platform:
			accountScoped = append(accountScoped, m)
		case m.AccountID == 0 && m.Provider == acc.Platform:
			platformScoped = append(platformScoped, m)
		case m.AccountID == 0 && m.Provider == "":
			global = append(global, m)
		}
	}
	if len(accountScoped) > 0 {
		return accountScoped
	}
	if len(platformScoped) > 0 {
		return platformScoped
	}
	return global
}

func toMediaItems(media []*models.PostMedia) []queue.MediaItem {
	items := make([]queue.MediaItem, 0, len(media))
	for _, m := range media {
		items = append(items, queue.MediaItem{
			URL:                  m.URL,
			ThumbnailURL:         m.ThumbnailURL,
			ThumbnailTimestampMs: m.ThumbnailTimestampMs,
			Type:                 m.Type,
			Tags:                 m.Tags,
		})
	}
	return items
}
