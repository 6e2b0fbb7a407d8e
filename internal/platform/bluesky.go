package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	cfg "github.com/DayMoonDevelopment/post-for-me-sub000/configs"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/queue"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/transfer"
)

const (
	blueskyPDS           = "https://bsky.social"
	blueskyMaxVideoBytes = 100 * 1024 * 1024
	blueskyMaxImages     = 4
	// Sessions are short-lived; the session TTL drives the expiry we report.
	blueskySessionTTL = 2 * time.Hour
)

func init() {
	Register(models.PlatformBluesky, NewBlueskyAdapter)
}

// blueskyAdapter needs no app-level credentials: auth is account-scoped via
// session tokens, with the stored app password as the secondary path.
type blueskyAdapter struct {
	deps Deps
	pds  string
}

func NewBlueskyAdapter(deps Deps, _ cfg.AppCredentials) Adapter {
	return &blueskyAdapter{deps: deps, pds: blueskyPDS}
}

func (a *blueskyAdapter) RefreshAccessToken(ctx context.Context, acc *Account) (*Credentials, error) {
	session, err := a.refreshSession(ctx, acc.RefreshToken)
	if err != nil && acc.AppSecret != "" {
		// Expired or revoked refresh state: fall back to re-authenticating
		// with the stored app password instead of failing outright.
		session, err = a.createSession(ctx, acc.Username, acc.AppSecret)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &Credentials{
		AccessToken:      session.AccessJwt,
		RefreshToken:     session.RefreshJwt,
		ExpiresAt:        now.Add(blueskySessionTTL),
		RefreshExpiresAt: now.Add(90 * 24 * time.Hour),
	}, nil
}

func (a *blueskyAdapter) refreshSession(ctx context.Context, refreshJwt string) (*transfer.BlueskySession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.pds+"/xrpc/com.atproto.server.refreshSession", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+refreshJwt)
	return a.doSession(req)
}

func (a *blueskyAdapter) createSession(ctx context.Context, identifier, appPassword string) (*transfer.BlueskySession, error) {
	body, err := json.Marshal(map[string]string{
		"identifier": identifier,
		"password":   appPassword,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.pds+"/xrpc/com.atproto.server.createSession", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.doSession(req)
}

func (a *blueskyAdapter) doSession(req *http.Request) (*transfer.BlueskySession, error) {
	resp, err := a.deps.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bluesky session: %w", err)
	}
	defer resp.Body.Close()

	var session transfer.BlueskySession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("bluesky session: %w", err)
	}
	if resp.StatusCode != http.StatusOK || session.AccessJwt == "" {
		if session.Message != "" {
			return nil, fmt.Errorf("bluesky session: %s", session.Message)
		}
		return nil, fmt.Errorf("bluesky session: status %d", resp.StatusCode)
	}
	return &session, nil
}

func (a *blueskyAdapter) Publish(ctx context.Context, in *PublishInput) *Result {
	trail := &Trail{}
	client := trail.Client(a.deps.HTTP)
	acc := in.Account

	record := map[string]any{
		"$type":     "app.bsky.feed.post",
		"text":      in.Caption,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
	}

	video := firstOfType(in.Media, models.MediaTypeVideo)
	if video != nil {
		blob, err := a.uploadVideo(ctx, client, acc, video.URL)
		if err != nil {
			return trail.Failure(err.Error())
		}
		record["embed"] = map[string]any{
			"$type": "app.bsky.embed.video",
			"video": blob,
		}
	} else if images := imagesOnly(in.Media); len(images) > 0 {
		embeds := make([]map[string]any, 0, len(images))
		for _, imageURL := range images {
			blob, err := a.uploadBlob(ctx, client, acc, imageURL, "image/jpeg")
			if err != nil {
				return trail.Failure(err.Error())
			}
			embeds = append(embeds, map[string]any{"alt": "", "image": blob})
		}
		record["embed"] = map[string]any{
			"$type":  "app.bsky.embed.images",
			"images": embeds,
		}
	}

	created, err := a.createRecord(ctx, client, acc, record)
	if err != nil {
		return trail.Failure(err.Error())
	}

	rkey := created.URI[strings.LastIndex(created.URI, "/")+1:]
	return &Result{
		Success:         true,
		ProviderPostID:  created.URI,
		ProviderPostURL: fmt.Sprintf("https://bsky.app/profile/%s/post/%s", acc.Username, rkey),
	}
}

func imagesOnly(media []queue.MediaItem) []string {
	var urls []string
	for _, m := range media {
		if m.Type == models.MediaTypeImage {
			urls = append(urls, m.URL)
		}
		if len(urls) == blueskyMaxImages {
			break
		}
	}
	return urls
}

func (a *blueskyAdapter) uploadVideo(ctx context.Context, client *http.Client, acc *Account, videoURL string) (*transfer.BlueskyBlob, error) {
	resolvedURL, err := a.deps.Resolver.Compress(ctx, videoURL, blueskyMaxVideoBytes)
	if err != nil {
		return nil, fmt.Errorf("resolve video size: %w", err)
	}
	return a.uploadBlob(ctx, client, acc, resolvedURL, "video/mp4")
}

func (a *blueskyAdapter) uploadBlob(ctx context.Context, client *http.Client, acc *Account, storageURL, contentType string) (*transfer.BlueskyBlob, error) {
	local, err := a.deps.Downloader.Download(ctx, storageURL)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	defer os.Remove(local)

	f, err := os.Open(local)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.pds+"/xrpc/com.atproto.repo.uploadBlob", f)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+acc.AccessToken)
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}
	defer resp.Body.Close()

	var uploaded transfer.BlueskyUploadBlobResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if uploaded.Message != "" {
			return nil, fmt.Errorf("upload blob: %s", uploaded.Message)
		}
		return nil, fmt.Errorf("upload blob: status %d", resp.StatusCode)
	}
	return &uploaded.Blob, nil
}

func (a *blueskyAdapter) createRecord(ctx context.Context, client *http.Client, acc *Account, record map[string]any) (*transfer.BlueskyCreateRecordResponse, error) {
	body, err := json.Marshal(transfer.BlueskyCreateRecordRequest{
		Repo:       acc.ExternalID,
		Collection: "app.bsky.feed.post",
		Record:     record,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.pds+"/xrpc/com.atproto.repo.createRecord", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+acc.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	defer resp.Body.Close()

	var created transfer.BlueskyCreateRecordResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	if resp.StatusCode != http.StatusOK || created.URI == "" {
		if created.Message != "" {
			return nil, fmt.Errorf("create record: %s", created.Message)
		}
		return nil, fmt.Errorf("create record: status %d", resp.StatusCode)
	}
	return &created, nil
}
