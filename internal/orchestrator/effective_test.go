package orchestrator

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	cfg "github.com/DayMoonDevelopment/post-for-me-sub000/configs"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func cfgCreds(id, secret string) cfg.AppCredentials {
	return cfg.AppCredentials{ClientID: id, ClientSecret: secret}
}

func TestEffectiveCaptionPrecedence(t *testing.T) {
	post := &models.Post{ID: 1, Caption: "default caption"}
	acc := &models.SocialAccount{ID: 10, Platform: models.PlatformTiktok}
	other := &models.SocialAccount{ID: 11, Platform: models.PlatformYoutube}

	configs := []*models.PlatformConfig{
		{Provider: models.PlatformTiktok, AccountID: 0, Caption: nullString("tiktok caption")},
		{Provider: models.PlatformTiktok, AccountID: 10, Caption: nullString("account caption")},
	}

	assert.Equal(t, "account caption", effectiveCaption(post, configs, acc))
	assert.Equal(t, "default caption", effectiveCaption(post, configs, other))

	// Without the account-scoped override the platform config wins.
	assert.Equal(t, "tiktok caption", effectiveCaption(post, configs[:1], acc))
	// With no configs at all the post default wins.
	assert.Equal(t, "default caption", effectiveCaption(post, nil, acc))
}

func TestEffectiveCaptionIgnoresNullOverride(t *testing.T) {
	post := &models.Post{Caption: "default caption"}
	acc := &models.SocialAccount{ID: 10, Platform: models.PlatformTiktok}

	// A config row with a NULL caption sets only settings; the caption falls
	// through to the next level.
	configs := []*models.PlatformConfig{
		{Provider: models.PlatformTiktok, AccountID: 10, Settings: json.RawMessage(`{"privacy":"private"}`)},
	}
	assert.Equal(t, "default caption", effectiveCaption(post, configs, acc))
}

func TestEffectiveSettingsPrecedence(t *testing.T) {
	acc := &models.SocialAccount{ID: 10, Platform: models.PlatformTiktok}

	configs := []*models.PlatformConfig{
		{Provider: models.PlatformTiktok, AccountID: 0, Settings: json.RawMessage(`{"scope":"platform"}`)},
		{Provider: models.PlatformTiktok, AccountID: 10, Settings: json.RawMessage(`{"scope":"account"}`)},
	}

	assert.JSONEq(t, `{"scope":"account"}`, string(effectiveSettings(configs, acc)))
	assert.JSONEq(t, `{"scope":"platform"}`, string(effectiveSettings(configs[:1], acc)))
	assert.Nil(t, effectiveSettings(nil, acc))
}

func TestEffectiveMediaPrecedence(t *testing.T) {
	acc := &models.SocialAccount{ID: 10, Platform: models.PlatformTiktok}

	global := &models.PostMedia{ID: 1}
	platformScoped := &models.PostMedia{ID: 2, Provider: models.PlatformTiktok}
	accountScoped := &models.PostMedia{ID: 3, Provider: models.PlatformTiktok, AccountID: 10}
	otherAccount := &models.PostMedia{ID: 4, Provider: models.PlatformTiktok, AccountID: 99}

	all := []*models.PostMedia{global, platformScoped, accountScoped, otherAccount}
	got := effectiveMedia(all, acc)
	assert.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)

	got = effectiveMedia([]*models.PostMedia{global, platformScoped}, acc)
	assert.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)

	got = effectiveMedia([]*models.PostMedia{global}, acc)
	assert.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ID)

	assert.Empty(t, effectiveMedia(nil, acc))
}

func TestAppCredentialsForInstagramSubTypes(t *testing.T) {
	f := newFixture(t)
	f.config.InstagramFacebook = cfgCreds("fb-id", "fb-secret")

	igAccount := &models.SocialAccount{Platform: models.PlatformInstagram, ConnectionType: "instagram"}
	fbAccount := &models.SocialAccount{Platform: models.PlatformInstagram, ConnectionType: "facebook"}
	bareAccount := &models.SocialAccount{Platform: models.PlatformInstagram}

	creds, ok := AppCredentialsFor(f.config, igAccount)
	assert.True(t, ok)
	assert.Equal(t, "ig-id", creds.ClientID)

	creds, ok = AppCredentialsFor(f.config, fbAccount)
	assert.True(t, ok)
	assert.Equal(t, "fb-id", creds.ClientID)

	// No recorded sub-type falls back to the Instagram-login set.
	creds, ok = AppCredentialsFor(f.config, bareAccount)
	assert.True(t, ok)
	assert.Equal(t, "ig-id", creds.ClientID)
}

func TestAppCredentialsForBlueskyNeedsNone(t *testing.T) {
	f := newFixture(t)
	_, ok := AppCredentialsFor(f.config, &models.SocialAccount{Platform: models.PlatformBluesky})
	assert.True(t, ok)
}

func TestAppCredentialsForUnconfiguredPlatform(t *testing.T) {
	f := newFixture(t)
	f.config.Google = cfgCreds("", "")
	_, ok := AppCredentialsFor(f.config, &models.SocialAccount{Platform: models.PlatformYoutube})
	assert.False(t, ok)
}
