package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	cfg "github.com/DayMoonDevelopment/post-for-me-sub000/configs"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/transfer"
)

const (
	tiktokAPIBase       = "https://open.tiktokapis.com"
	tiktokTokenPath     = "/v2/oauth/token/"
	tiktokCreatorPath   = "/v2/post/publish/creator_info/query/"
	tiktokVideoInitPath = "/v2/post/publish/video/init/"
	tiktokPhotoInitPath = "/v2/post/publish/content/init/"
	tiktokStatusPath    = "/v2/post/publish/status/fetch/"
	tiktokMaxVideoBytes = 300 * 1024 * 1024
)

func init() {
	Register(models.PlatformTiktok, NewTiktokAdapter)
}

type tiktokAdapter struct {
	deps Deps
	app  cfg.AppCredentials
	base string
}

func NewTiktokAdapter(deps Deps, app cfg.AppCredentials) Adapter {
	return &tiktokAdapter{deps: deps, app: app, base: tiktokAPIBase}
}

func (a *tiktokAdapter) RefreshAccessToken(ctx context.Context, acc *Account) (*Credentials, error) {
	data := url.Values{}
	data.Set("client_key", a.app.ClientID)
	data.Set("client_secret", a.app.ClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", acc.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+tiktokTokenPath, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.deps.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tiktok token refresh: %w", err)
	}
	defer resp.Body.Close()

	var token transfer.TiktokTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("tiktok token refresh: %w", err)
	}
	if resp.StatusCode != http.StatusOK || token.AccessToken == "" {
		if token.ErrorDescription != "" {
			return nil, fmt.Errorf("tiktok token refresh: %s", token.ErrorDescription)
		}
		return nil, fmt.Errorf("tiktok token refresh: status %d", resp.StatusCode)
	}

	now := time.Now()
	return &Credentials{
		AccessToken:      token.AccessToken,
		RefreshToken:     token.RefreshToken,
		ExpiresAt:        now.Add(time.Duration(token.ExpiresIn) * time.Second),
		RefreshExpiresAt: now.Add(time.Duration(token.RefreshExpiresIn) * time.Second),
	}, nil
}

type tiktokSettings struct {
	PrivacyLevel       string `json:"privacy_level"`
	DisableDuet        bool   `json:"disable_duet"`
	DisableComment     bool   `json:"disable_comment"`
	DisableStitch      bool   `json:"disable_stitch"`
	BrandContentToggle bool   `json:"brand_content_toggle"`
	BrandOrganicToggle bool   `json:"brand_organic_toggle"`
	IsAIGC             bool   `json:"is_aigc"`
	AutoAddMusic       bool   `json:"auto_add_music"`
}

func (a *tiktokAdapter) Publish(ctx context.Context, in *PublishInput) *Result {
	trail := &Trail{}
	client := trail.Client(a.deps.HTTP)

	var settings tiktokSettings
	if len(in.Settings) > 0 {
		if err := json.Unmarshal(in.Settings, &settings); err != nil {
			return trail.Failure(fmt.Sprintf("invalid platform settings: %v", err))
		}
	}
	if settings.PrivacyLevel == "" {
		settings.PrivacyLevel = "PUBLIC_TO_EVERYONE"
	}

	// The creator info query doubles as the upload grant: it validates the
	// token against the publish scope before any bytes move.
	if err := a.queryCreatorInfo(ctx, client, in.Account.AccessToken); err != nil {
		return trail.Failure(err.Error())
	}

	video := firstOfType(in.Media, models.MediaTypeVideo)
	var publishID string
	var err error
	if video != nil {
		publishID, err = a.publishVideo(ctx, client, in, video.URL, video.ThumbnailTimestampMs, settings)
	} else {
		publishID, err = a.publishPhotos(ctx, client, in, settings)
	}
	if err != nil {
		return trail.Failure(err.Error())
	}

	postID, err := a.awaitPublish(ctx, client, in.Account.AccessToken, publishID)
	if err != nil {
		return trail.Failure(err.Error())
	}

	return &Result{
		Success:         true,
		ProviderPostID:  postID,
		ProviderPostURL: fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", in.Account.Username, postID),
	}
}

func (a *tiktokAdapter) queryCreatorInfo(ctx context.Context, client *http.Client, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+tiktokCreatorPath, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("creator info query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("creator info query: status %d", resp.StatusCode)
	}
	return nil
}

// publishVideo compresses the source under the direct-post ceiling when
// needed, initializes a FILE_UPLOAD and pushes the raw bytes.
func (a *tiktokAdapter) publishVideo(ctx context.Context, client *http.Client, in *PublishInput, videoURL string, coverTimestampMs int64, settings tiktokSettings) (string, error) {
	resolvedURL, err := a.deps.Resolver.Compress(ctx, videoURL, tiktokMaxVideoBytes)
	if err != nil {
		return "", fmt.Errorf("resolve video size: %w", err)
	}

	local, err := a.deps.Downloader.Download(ctx, resolvedURL)
	if err != nil {
		return "", fmt.Errorf("download video: %w", err)
	}
	defer os.Remove(local)

	info, err := os.Stat(local)
	if err != nil {
		return "", err
	}
	size := info.Size()

	if coverTimestampMs == 0 {
		coverTimestampMs = 1000
	}
	initReq := transfer.TiktokVideoInitRequest{
		PostInfo: transfer.TiktokVideoPostInfo{
			Title:                 in.Caption,
			PrivacyLevel:          settings.PrivacyLevel,
			DisableDuet:           settings.DisableDuet,
			DisableComment:        settings.DisableComment,
			DisableStitch:         settings.DisableStitch,
			VideoCoverTimestampMs: coverTimestampMs,
			BrandContentToggle:    settings.BrandContentToggle,
			BrandOrganicToggle:    settings.BrandOrganicToggle,
			IsAIGC:                settings.IsAIGC,
		},
		SourceInfo: transfer.TiktokFileSourceInfo{
			Source:          "FILE_UPLOAD",
			VideoSize:       size,
			ChunkSize:       size,
			TotalChunkCount: 1,
		},
	}

	initResp, err := a.postInit(ctx, client, in.Account.AccessToken, a.base+tiktokVideoInitPath, initReq)
	if err != nil {
		return "", err
	}
	if initResp.Data.UploadURL == "" {
		return "", errors.New("tiktok init returned no upload url")
	}

	f, err := os.Open(local)
	if err != nil {
		return "", err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, initResp.Data.UploadURL, f)
	if err != nil {
		return "", err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "video/mp4")
	req.Header.Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", size-1, size))

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload video bytes: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("upload video bytes: status %d", resp.StatusCode)
	}

	return initResp.Data.PublishID, nil
}

func (a *tiktokAdapter) publishPhotos(ctx context.Context, client *http.Client, in *PublishInput, settings tiktokSettings) (string, error) {
	var photos []string
	for _, m := range in.Media {
		if m.Type == models.MediaTypeImage {
			photos = append(photos, m.URL)
		}
	}
	if len(photos) == 0 {
		return "", errors.New("no publishable media for tiktok")
	}

	initReq := transfer.TiktokPhotoInitRequest{
		PostInfo: transfer.TiktokPhotoPostInfo{
			Title:              in.Caption,
			PrivacyLevel:       settings.PrivacyLevel,
			DisableComment:     settings.DisableComment,
			AutoAddMusic:       settings.AutoAddMusic,
			BrandContentToggle: settings.BrandContentToggle,
			BrandOrganicToggle: settings.BrandOrganicToggle,
		},
		SourceInfo: transfer.TiktokPhotoSourceInfo{
			Source:      "PULL_FROM_URL",
			PhotoImages: photos,
		},
		PostMode:  "DIRECT_POST",
		MediaType: "PHOTO",
	}

	initResp, err := a.postInit(ctx, client, in.Account.AccessToken, a.base+tiktokPhotoInitPath, initReq)
	if err != nil {
		return "", err
	}
	return initResp.Data.PublishID, nil
}

func (a *tiktokAdapter) postInit(ctx context.Context, client *http.Client, accessToken, initURL string, payload any) (*transfer.TiktokInitResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, initURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("publish init: %w", err)
	}
	defer resp.Body.Close()

	var initResp transfer.TiktokInitResponse
	if err := json.NewDecoder(resp.Body).Decode(&initResp); err != nil {
		return nil, fmt.Errorf("publish init: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("publish init: %s", initResp.Error.Message)
	}
	if initResp.Data.PublishID == "" {
		return nil, errors.New("publish init returned no publish id")
	}
	return &initResp, nil
}

// awaitPublish polls the async processing job until it reports a terminal
// state and extracts the resulting post id.
func (a *tiktokAdapter) awaitPublish(ctx context.Context, client *http.Client, accessToken, publishID string) (string, error) {
	deadline := time.Now().Add(5 * time.Minute)
	for {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("publish %s still processing after timeout", publishID)
		}

		body, err := json.Marshal(transfer.TiktokStatusRequest{PublishID: publishID})
		if err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+tiktokStatusPath, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")

		resp, err := client.Do(req)
		if err != nil {
			return "", fmt.Errorf("publish status: %w", err)
		}
		var status transfer.TiktokStatusResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if decodeErr != nil {
			return "", fmt.Errorf("publish status: %w", decodeErr)
		}

		switch status.Data.Status {
		case "PUBLISH_COMPLETE":
			if len(status.Data.PostIDs) > 0 {
				return status.Data.PostIDs[0], nil
			}
			return publishID, nil
		case "FAILED":
			return "", fmt.Errorf("tiktok publish failed: %s", status.Data.FailReason)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
}
