package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/queue"
)

// fakeStore is an in-memory ObjectStore.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return "https://cdn.test/" + key, nil
}

func (s *fakeStore) Overwrite(ctx context.Context, storageURL string, body io.Reader, contentType string) error {
	key, err := s.KeyFromURL(storageURL)
	if err != nil {
		return err
	}
	_, err = s.Upload(ctx, key, body, contentType)
	return err
}

func (s *fakeStore) Download(ctx context.Context, storageURL string) (string, error) {
	key, err := s.KeyFromURL(storageURL)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	data, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("object %s not found", key)
	}
	tmp, err := os.CreateTemp("", "fakestore-*")
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	if _, err := tmp.Write(data); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}

func (s *fakeStore) ObjectSize(ctx context.Context, storageURL string) (int64, error) {
	key, err := s.KeyFromURL(storageURL)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return 0, fmt.Errorf("object %s not found", key)
	}
	return int64(len(data)), nil
}

func (s *fakeStore) KeyFromURL(storageURL string) (string, error) {
	key, ok := strings.CutPrefix(storageURL, "https://cdn.test/")
	if !ok {
		return "", fmt.Errorf("unexpected url %s", storageURL)
	}
	return key, nil
}

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 300)...)

var mp4Bytes = append([]byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2',
}, make([]byte, 300)...)

// serveBytes serves the same body for every request with the given declared
// content type.
func serveBytes(contentType string, body []byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write(body)
	})
}

func TestLocalizeDetectsTypeFromHeaders(t *testing.T) {
	srv := httptest.NewServer(serveBytes("image/jpeg", make([]byte, 400)))
	defer srv.Close()

	store := newFakeStore()
	l := NewLocalizer(store)

	res, err := l.Localize(context.Background(), queue.LocalizeMediaPayload{MediaID: 7, URL: srv.URL + "/pic"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.MediaID)
	assert.Equal(t, "image", res.Type)
	assert.True(t, strings.HasPrefix(res.URL, "https://cdn.test/media/"))
	assert.True(t, strings.HasSuffix(res.URL, ".jpg"))
}

func TestLocalizeSniffsMagicBytes(t *testing.T) {
	// The server declares nothing useful; detection falls back to sniffing.
	srv := httptest.NewServer(serveBytes("application/octet-stream", mp4Bytes))
	defer srv.Close()

	store := newFakeStore()
	l := NewLocalizer(store)

	res, err := l.Localize(context.Background(), queue.LocalizeMediaPayload{MediaID: 1, URL: srv.URL + "/clip"})
	require.NoError(t, err)
	assert.Equal(t, "video", res.Type)
	assert.True(t, strings.HasSuffix(res.URL, ".mp4"))

	key, err := store.KeyFromURL(res.URL)
	require.NoError(t, err)
	assert.Equal(t, mp4Bytes, store.objects[key])
}

func TestLocalizeRejectsUnsupportedType(t *testing.T) {
	srv := httptest.NewServer(serveBytes("application/octet-stream", []byte("plain text, nothing to see")))
	defer srv.Close()

	l := NewLocalizer(newFakeStore())

	_, err := l.Localize(context.Background(), queue.LocalizeMediaPayload{URL: srv.URL + "/notes"})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestLocalizeThumbnailMustBeImage(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/media", serveBytes("application/octet-stream", pngBytes))
	mux.Handle("/thumb", serveBytes("application/octet-stream", mp4Bytes))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := NewLocalizer(newFakeStore())

	_, err := l.Localize(context.Background(), queue.LocalizeMediaPayload{
		URL:          srv.URL + "/media",
		ThumbnailURL: srv.URL + "/thumb",
	})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestLocalizeRehostsThumbnail(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/media", serveBytes("video/mp4", mp4Bytes))
	mux.Handle("/thumb", serveBytes("image/png", pngBytes))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := newFakeStore()
	l := NewLocalizer(store)

	res, err := l.Localize(context.Background(), queue.LocalizeMediaPayload{
		URL:          srv.URL + "/media",
		ThumbnailURL: srv.URL + "/thumb",
	})
	require.NoError(t, err)
	assert.Equal(t, "video", res.Type)
	assert.NotEmpty(t, res.ThumbnailURL)
	assert.NotEqual(t, res.URL, res.ThumbnailURL)
	assert.Len(t, store.objects, 2)
}

func TestLocalizeRetriesWriteFreshKeys(t *testing.T) {
	srv := httptest.NewServer(serveBytes("image/png", pngBytes))
	defer srv.Close()

	store := newFakeStore()
	l := NewLocalizer(store)

	first, err := l.Localize(context.Background(), queue.LocalizeMediaPayload{URL: srv.URL})
	require.NoError(t, err)
	second, err := l.Localize(context.Background(), queue.LocalizeMediaPayload{URL: srv.URL})
	require.NoError(t, err)
	assert.NotEqual(t, first.URL, second.URL)
}
