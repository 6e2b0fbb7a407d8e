package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	cfg "github.com/DayMoonDevelopment/post-for-me-sub000/configs"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/queue"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/transfer"
)

// Instagram connections come in two login sub-types with different Graph
// hosts; the sub-type is recorded on the account at connect time.
const (
	ConnectionTypeInstagram = "instagram"
	ConnectionTypeFacebook  = "facebook"

	instagramGraphHost = "https://graph.instagram.com/v21.0"
	facebookGraphHost  = "https://graph.facebook.com/v21.0"
)

func init() {
	Register(models.PlatformInstagram, NewInstagramAdapter)
}

type instagramAdapter struct {
	deps   Deps
	app    cfg.AppCredentials
	igHost string
	fbHost string
}

func NewInstagramAdapter(deps Deps, app cfg.AppCredentials) Adapter {
	return &instagramAdapter{deps: deps, app: app, igHost: instagramGraphHost, fbHost: facebookGraphHost}
}

func (a *instagramAdapter) graphHost(connectionType string) string {
	if connectionType == ConnectionTypeFacebook {
		return a.fbHost
	}
	return a.igHost
}

func (a *instagramAdapter) RefreshAccessToken(ctx context.Context, acc *Account) (*Credentials, error) {
	var refreshURL string
	if acc.ConnectionType == ConnectionTypeFacebook {
		refreshURL = a.fbHost + "/oauth/access_token?" + url.Values{
			"grant_type":        {"fb_exchange_token"},
			"client_id":         {a.app.ClientID},
			"client_secret":     {a.app.ClientSecret},
			"fb_exchange_token": {acc.AccessToken},
		}.Encode()
	} else {
		refreshURL = a.igHost + "/refresh_access_token?" + url.Values{
			"grant_type":   {"ig_refresh_token"},
			"access_token": {acc.AccessToken},
		}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, refreshURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.deps.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("instagram token refresh: %w", err)
	}
	defer resp.Body.Close()

	var token transfer.InstagramTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("instagram token refresh: %w", err)
	}
	if resp.StatusCode != http.StatusOK || token.AccessToken == "" {
		return nil, fmt.Errorf("instagram token refresh: status %d", resp.StatusCode)
	}

	expiresAt := time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	// Long-lived tokens double as their own refresh credential.
	return &Credentials{
		AccessToken:      token.AccessToken,
		RefreshToken:     token.AccessToken,
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: expiresAt,
	}, nil
}

func (a *instagramAdapter) Publish(ctx context.Context, in *PublishInput) *Result {
	trail := &Trail{}
	client := trail.Client(a.deps.HTTP)
	host := a.graphHost(in.Account.ConnectionType)

	if len(in.Media) == 0 {
		return trail.Failure("instagram publishing requires media")
	}

	containerIDs := make([]string, 0, len(in.Media))
	for _, m := range in.Media {
		id, err := a.createContainer(ctx, client, host, in, m, len(in.Media) > 1)
		if err != nil {
			return trail.Failure(err.Error())
		}
		if m.Type == models.MediaTypeVideo {
			if err := a.awaitContainer(ctx, client, host, in.Account.AccessToken, id); err != nil {
				return trail.Failure(err.Error())
			}
		}
		containerIDs = append(containerIDs, id)
	}

	creationID := containerIDs[0]
	if len(containerIDs) > 1 {
		carouselID, err := a.createCarousel(ctx, client, host, in, containerIDs)
		if err != nil {
			return trail.Failure(err.Error())
		}
		creationID = carouselID
	}

	mediaID, err := a.publishContainer(ctx, client, host, in.Account, creationID)
	if err != nil {
		return trail.Failure(err.Error())
	}

	permalink := a.permalink(ctx, client, host, in.Account.AccessToken, mediaID)
	return &Result{Success: true, ProviderPostID: mediaID, ProviderPostURL: permalink}
}

func (a *instagramAdapter) createContainer(ctx context.Context, client *http.Client, host string, in *PublishInput, m queue.MediaItem, partOfCarousel bool) (string, error) {
	params := url.Values{"access_token": {in.Account.AccessToken}}
	if m.Type == models.MediaTypeVideo {
		params.Set("media_type", "REELS")
		params.Set("video_url", m.URL)
		if m.ThumbnailTimestampMs > 0 {
			params.Set("thumb_offset", fmt.Sprintf("%d", m.ThumbnailTimestampMs))
		}
	} else {
		params.Set("image_url", m.URL)
	}
	if partOfCarousel {
		params.Set("is_carousel_item", "true")
	} else {
		params.Set("caption", in.Caption)
	}

	return a.postContainer(ctx, client, host+"/"+in.Account.ExternalID+"/media", params)
}

func (a *instagramAdapter) createCarousel(ctx context.Context, client *http.Client, host string, in *PublishInput, children []string) (string, error) {
	params := url.Values{
		"access_token": {in.Account.AccessToken},
		"media_type":   {"CAROUSEL"},
		"caption":      {in.Caption},
	}
	for _, child := range children {
		params.Add("children", child)
	}
	return a.postContainer(ctx, client, host+"/"+in.Account.ExternalID+"/media", params)
}

func (a *instagramAdapter) postContainer(ctx context.Context, client *http.Client, endpoint string, params url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	defer resp.Body.Close()

	var container transfer.InstagramContainerResponse
	if err := json.NewDecoder(resp.Body).Decode(&container); err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	if container.Error != nil {
		return "", fmt.Errorf("create container: %s", container.Error.Message)
	}
	if container.ID == "" {
		return "", errors.New("create container returned no id")
	}
	return container.ID, nil
}

// awaitContainer polls the async processing status until the container is
// ready to publish.
func (a *instagramAdapter) awaitContainer(ctx context.Context, client *http.Client, host, accessToken, containerID string) error {
	deadline := time.Now().Add(5 * time.Minute)
	for {
		if time.Now().After(deadline) {
			return fmt.Errorf("container %s still processing after timeout", containerID)
		}

		statusURL := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s", host, containerID, url.QueryEscape(accessToken))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("container status: %w", err)
		}
		var status transfer.InstagramContainerStatus
		decodeErr := json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if decodeErr != nil {
			return fmt.Errorf("container status: %w", decodeErr)
		}

		switch status.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR", "EXPIRED":
			return fmt.Errorf("container %s entered state %s", containerID, status.StatusCode)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
}

func (a *instagramAdapter) publishContainer(ctx context.Context, client *http.Client, host string, acc *Account, creationID string) (string, error) {
	params := url.Values{
		"access_token": {acc.AccessToken},
		"creation_id":  {creationID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host+"/"+acc.ExternalID+"/media_publish?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("media publish: %w", err)
	}
	defer resp.Body.Close()

	var published transfer.InstagramPublishResponse
	if err := json.NewDecoder(resp.Body).Decode(&published); err != nil {
		return "", fmt.Errorf("media publish: %w", err)
	}
	if published.Error != nil {
		return "", fmt.Errorf("media publish: %s", published.Error.Message)
	}
	if published.ID == "" {
		return "", errors.New("media publish returned no id")
	}
	return published.ID, nil
}

// permalink is best-effort; a published post without a resolvable link is
// still a success.
func (a *instagramAdapter) permalink(ctx context.Context, client *http.Client, host, accessToken, mediaID string) string {
	infoURL := fmt.Sprintf("%s/%s?fields=permalink&access_token=%s", host, mediaID, url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, infoURL, nil)
	if err != nil {
		return ""
	}
	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	var info transfer.InstagramMediaInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return ""
	}
	return info.Permalink
}
