package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"

	cfg "github.com/DayMoonDevelopment/post-for-me-sub000/configs"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/queue"
)

const youtubeResumableURL = "https://www.googleapis.com/upload/youtube/v3/videos?uploadType=resumable&part=snippet,status"

func init() {
	Register(models.PlatformYoutube, NewYoutubeAdapter)
}

type youtubeAdapter struct {
	deps      Deps
	app       cfg.AppCredentials
	uploadURL string
}

func NewYoutubeAdapter(deps Deps, app cfg.AppCredentials) Adapter {
	return &youtubeAdapter{deps: deps, app: app, uploadURL: youtubeResumableURL}
}

func (a *youtubeAdapter) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.app.ClientID,
		ClientSecret: a.app.ClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/youtube.upload"},
		Endpoint:     google.Endpoint,
	}
}

func (a *youtubeAdapter) RefreshAccessToken(ctx context.Context, acc *Account) (*Credentials, error) {
	source := a.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: acc.RefreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("youtube token refresh: %w", err)
	}

	// Google does not rotate the refresh token on refresh.
	return &Credentials{
		AccessToken:      token.AccessToken,
		RefreshToken:     acc.RefreshToken,
		ExpiresAt:        token.Expiry,
		RefreshExpiresAt: acc.RefreshTokenExpiresAt,
	}, nil
}

type youtubeSettings struct {
	Title         string `json:"title"`
	PrivacyStatus string `json:"privacy_status"`
	MadeForKids   bool   `json:"made_for_kids"`
}

func (a *youtubeAdapter) Publish(ctx context.Context, in *PublishInput) *Result {
	trail := &Trail{}
	client := trail.Client(a.deps.HTTP)

	video := firstOfType(in.Media, models.MediaTypeVideo)
	if video == nil {
		return trail.Failure("youtube publishing requires a video")
	}

	var settings youtubeSettings
	if len(in.Settings) > 0 {
		if err := json.Unmarshal(in.Settings, &settings); err != nil {
			return trail.Failure(fmt.Sprintf("invalid platform settings: %v", err))
		}
	}
	if settings.PrivacyStatus == "" {
		settings.PrivacyStatus = "public"
	}
	title := settings.Title
	if title == "" {
		title = truncate(in.Caption, 100)
	}

	local, err := a.deps.Downloader.Download(ctx, video.URL)
	if err != nil {
		return trail.Failure(fmt.Sprintf("download video: %v", err))
	}
	defer os.Remove(local)

	f, err := os.Open(local)
	if err != nil {
		return trail.Failure(err.Error())
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return trail.Failure(err.Error())
	}

	sessionURL, err := a.startSession(ctx, client, in.Account.AccessToken, title, in.Caption, video.Tags, settings, info.Size())
	if err != nil {
		return trail.Failure(err.Error())
	}

	upload := NewResumableUpload(client, sessionURL, f, info.Size())
	body, err := upload.Run(ctx)
	if err != nil {
		return trail.Failure(fmt.Sprintf("resumable upload: %v", err))
	}

	var uploaded youtube.Video
	if err := json.Unmarshal(body, &uploaded); err != nil || uploaded.Id == "" {
		return trail.Failure("upload finished but response carried no video id")
	}

	return &Result{
		Success:         true,
		ProviderPostID:  uploaded.Id,
		ProviderPostURL: "https://www.youtube.com/watch?v=" + uploaded.Id,
	}
}

// startSession opens the resumable session; the server answers with the
// session URL in the Location header.
func (a *youtubeAdapter) startSession(ctx context.Context, client *http.Client, accessToken, title, description string, tags []string, settings youtubeSettings, size int64) (string, error) {
	resource := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: description,
			Tags:        tags,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           settings.PrivacyStatus,
			SelfDeclaredMadeForKids: settings.MadeForKids,
		},
	}
	payload, err := json.Marshal(resource)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.uploadURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", "video/mp4")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("session start returned status %d", resp.StatusCode)
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return "", errors.New("session start returned no Location header")
	}
	return location, nil
}

func firstOfType(media []queue.MediaItem, mediaType string) *queue.MediaItem {
	for i := range media {
		if media[i].Type == mediaType {
			return &media[i]
		}
	}
	return nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
