package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfg "github.com/DayMoonDevelopment/post-for-me-sub000/configs"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/queue"
)

func newTiktokAdapterFor(srv *httptest.Server, deps Deps) *tiktokAdapter {
	deps.HTTP = srv.Client()
	return &tiktokAdapter{
		deps: deps,
		app:  cfg.AppCredentials{ClientID: "tt-id", ClientSecret: "tt-secret"},
		base: srv.URL,
	}
}

func TestTiktokPublishVideo(t *testing.T) {
	var uploadURL string
	var uploadedBytes int64

	mux := http.NewServeMux()
	mux.HandleFunc(tiktokCreatorPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc(tiktokVideoInitPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":{"publish_id":"pub1","upload_url":%q}}`, uploadURL)
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		assert.NotEmpty(t, r.Header.Get("Content-Range"))
		body, _ := io.ReadAll(r.Body)
		uploadedBytes = int64(len(body))
	})
	mux.HandleFunc(tiktokStatusPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"status":"PUBLISH_COMPLETE","post_ids":["777"]}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	uploadURL = srv.URL + "/upload"

	resolver := &fakeResolver{}
	a := newTiktokAdapterFor(srv, Deps{
		Downloader: &fakeDownloader{data: []byte("video-bytes")},
		Resolver:   resolver,
	})

	out := a.Publish(context.Background(), &PublishInput{
		Account: &Account{Username: "creator", AccessToken: "tok"},
		Caption: "hi",
		Media:   []queue.MediaItem{{Type: models.MediaTypeVideo, URL: "https://cdn.test/media/v.mp4"}},
	})

	assert.True(t, out.Success)
	assert.Equal(t, "777", out.ProviderPostID)
	assert.Equal(t, "https://www.tiktok.com/@creator/video/777", out.ProviderPostURL)
	assert.Equal(t, int64(len("video-bytes")), uploadedBytes)
	assert.Equal(t, int64(tiktokMaxVideoBytes), resolver.maxSeen)
}

func TestTiktokPublishFailedStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tiktokCreatorPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc(tiktokPhotoInitPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"publish_id":"pub2"}}`))
	})
	mux.HandleFunc(tiktokStatusPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"status":"FAILED","fail_reason":"picture_size_check_failed"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := newTiktokAdapterFor(srv, Deps{})
	out := a.Publish(context.Background(), &PublishInput{
		Account: &Account{Username: "creator", AccessToken: "tok"},
		Media:   []queue.MediaItem{{Type: models.MediaTypeImage, URL: "https://cdn.test/media/p.jpg"}},
	})

	assert.False(t, out.Success)
	assert.Equal(t, "tiktok publish failed: picture_size_check_failed", out.ErrorMessage)
	assert.Contains(t, string(out.Details), "status/fetch")
}

func TestTiktokPublishCreatorInfoRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(tiktokCreatorPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := newTiktokAdapterFor(srv, Deps{})
	out := a.Publish(context.Background(), &PublishInput{
		Account: &Account{Username: "creator", AccessToken: "tok"},
		Media:   []queue.MediaItem{{Type: models.MediaTypeImage, URL: "https://cdn.test/media/p.jpg"}},
	})

	assert.False(t, out.Success)
	assert.Equal(t, "creator info query: status 403", out.ErrorMessage)
	assert.Contains(t, string(out.Details), `"status":403`)
}
