package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/queue"
)

// ErrUnsupportedType is returned when content sniffing yields neither an
// image nor a video.
var ErrUnsupportedType = errors.New("file type not supported")

// ObjectStore is the durable storage surface the media pipeline needs;
// satisfied by storage.Client.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Overwrite(ctx context.Context, storageURL string, body io.Reader, contentType string) error
	Download(ctx context.Context, storageURL string) (string, error)
	ObjectSize(ctx context.Context, storageURL string) (int64, error)
	KeyFromURL(storageURL string) (string, error)
}

// Localizer fetches externally-supplied media and re-hosts it in pipeline
// storage. Retry-safe: every run writes under a fresh random key.
type Localizer struct {
	store      ObjectStore
	httpClient *http.Client
}

func NewLocalizer(store ObjectStore) *Localizer {
	return &Localizer{
		store:      store,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

func (l *Localizer) Localize(ctx context.Context, p queue.LocalizeMediaPayload) (*queue.LocalizeMediaResult, error) {
	mediaType, mime, ext, err := l.detectType(ctx, p.URL)
	if err != nil {
		return nil, err
	}

	url, err := l.rehost(ctx, p.URL, mime, ext)
	if err != nil {
		return nil, err
	}

	result := &queue.LocalizeMediaResult{
		MediaID:        p.MediaID,
		URL:            url,
		Type:           mediaType,
		Provider:       p.Provider,
		AccountID:      p.AccountID,
		SkipProcessing: p.SkipProcessing,
	}

	if p.ThumbnailURL != "" {
		thumbType, thumbMime, thumbExt, err := l.detectType(ctx, p.ThumbnailURL)
		if err != nil {
			return nil, fmt.Errorf("thumbnail: %w", err)
		}
		if thumbType != "image" {
			return nil, fmt.Errorf("thumbnail: %w", ErrUnsupportedType)
		}
		thumbURL, err := l.rehost(ctx, p.ThumbnailURL, thumbMime, thumbExt)
		if err != nil {
			return nil, fmt.Errorf("thumbnail: %w", err)
		}
		result.ThumbnailURL = thumbURL
	}

	return result, nil
}

// detectType probes the source's content type: a metadata-only request first,
// then a small ranged read sniffed against file-signature magic bytes.
func (l *Localizer) detectType(ctx context.Context, url string) (mediaType, mime, ext string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", "", "", err
	}
	resp, err := l.httpClient.Do(req)
	if err == nil {
		resp.Body.Close()
		if kind, m, e, ok := classifyMIME(resp.Header.Get("Content-Type")); ok {
			return kind, m, e, nil
		}
	}

	// HEAD was inconclusive; sniff the first bytes instead.
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", "", err
	}
	req.Header.Set("Range", "bytes=0-261")
	resp, err = l.httpClient.Do(req)
	if err != nil {
		return "", "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", "", "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	head := make([]byte, 262)
	n, _ := io.ReadFull(resp.Body, head)
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return "", "", "", ErrUnsupportedType
	}
	if mediaType, m, e, ok := classifyMIME(kind.MIME.Value); ok {
		return mediaType, m, e, nil
	}
	return "", "", "", ErrUnsupportedType
}

func classifyMIME(mime string) (mediaType, normalizedMIME, ext string, ok bool) {
	mime = strings.TrimSpace(strings.Split(mime, ";")[0])
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "image", mime, extForMIME(mime), true
	case strings.HasPrefix(mime, "video/"):
		return "video", mime, extForMIME(mime), true
	}
	return "", "", "", false
}

func extForMIME(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/x-msvideo":
		return ".avi"
	case "video/quicktime":
		return ".mov"
	default:
		return ""
	}
}

// rehost streams the full body through a temp file into durable storage and
// returns the storage URL. The body is never held in memory.
func (l *Localizer) rehost(ctx context.Context, url, mime, ext string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "localize-*")
	if err != nil {
		return "", err
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil {
			slog.Info(err.Error())
		}
	}()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return "", err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("media/%s%s", id, ext)

	return l.store.Upload(ctx, key, tmp, mime)
}
