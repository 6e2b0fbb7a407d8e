package orchestrator

import (
	cfg "github.com/DayMoonDevelopment/post-for-me-sub000/configs"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/platform"
)

// appCredentials picks the app-level OAuth client for an account. Instagram
// accounts select by connection sub-type; accounts with no recorded sub-type
// fall back to the Instagram-login set. Bluesky authenticates with an
// account-level app password, so it carries no app credentials.
func AppCredentialsFor(c *cfg.Config, acc *models.SocialAccount) (cfg.AppCredentials, bool) {
	var creds cfg.AppCredentials
	switch acc.Platform {
	case models.PlatformTiktok:
		creds = c.Tiktok
	case models.PlatformYoutube:
		creds = c.Google
	case models.PlatformInstagram:
		if acc.ConnectionType == platform.ConnectionTypeFacebook {
			creds = c.InstagramFacebook
		} else {
			creds = c.Instagram
		}
	case models.PlatformBluesky:
		return cfg.AppCredentials{}, true
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return creds, false
	}
	return creds, true
}

func (o *Orchestrator) appCredentials(acc *models.SocialAccount) (cfg.AppCredentials, bool) {
	return AppCredentialsFor(o.cfg, acc)
}
