package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/queue"
)

func newInstagramAdapterFor(srv *httptest.Server) *instagramAdapter {
	return &instagramAdapter{
		deps:   Deps{HTTP: srv.Client()},
		igHost: srv.URL,
		fbHost: srv.URL,
	}
}

func instagramAccount() *Account {
	return &Account{ExternalID: "17841400", Username: "someone", AccessToken: "ig-secret-token"}
}

func TestInstagramPublishReel(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/17841400/media", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "REELS", r.URL.Query().Get("media_type"))
		assert.NotEmpty(t, r.URL.Query().Get("video_url"))
		w.Write([]byte(`{"id":"c1"}`))
	})
	mux.HandleFunc("/c1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status_code":"FINISHED"}`))
	})
	mux.HandleFunc("/17841400/media_publish", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "c1", r.URL.Query().Get("creation_id"))
		w.Write([]byte(`{"id":"m99"}`))
	})
	mux.HandleFunc("/m99", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"permalink":"https://www.instagram.com/p/xyz/"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := newInstagramAdapterFor(srv)
	out := a.Publish(context.Background(), &PublishInput{
		Account: instagramAccount(),
		Caption: "hello",
		Media:   []queue.MediaItem{{Type: models.MediaTypeVideo, URL: "https://cdn.test/media/v.mp4"}},
	})

	assert.True(t, out.Success)
	assert.Equal(t, "m99", out.ProviderPostID)
	assert.Equal(t, "https://www.instagram.com/p/xyz/", out.ProviderPostURL)
}

func TestInstagramPublishContainerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/17841400/media", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"c1"}`))
	})
	mux.HandleFunc("/c1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status_code":"ERROR"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := newInstagramAdapterFor(srv)
	out := a.Publish(context.Background(), &PublishInput{
		Account: instagramAccount(),
		Media:   []queue.MediaItem{{Type: models.MediaTypeVideo, URL: "https://cdn.test/media/v.mp4"}},
	})

	assert.False(t, out.Success)
	assert.Equal(t, "container c1 entered state ERROR", out.ErrorMessage)
	// The trail in the details never carries the raw token.
	assert.NotContains(t, string(out.Details), "ig-secret-token")
	assert.Contains(t, string(out.Details), "access_token=REDACTED")
}

func TestInstagramPublishRejectedCreate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/17841400/media", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"Invalid parameter"}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := newInstagramAdapterFor(srv)
	out := a.Publish(context.Background(), &PublishInput{
		Account: instagramAccount(),
		Media:   []queue.MediaItem{{Type: models.MediaTypeImage, URL: "https://cdn.test/media/p.jpg"}},
	})

	assert.False(t, out.Success)
	assert.Equal(t, "create container: Invalid parameter", out.ErrorMessage)
	assert.Contains(t, string(out.Details), `"status":400`)
}

func TestInstagramPublishRequiresMedia(t *testing.T) {
	a := &instagramAdapter{igHost: "ig", fbHost: "fb"}
	out := a.Publish(context.Background(), &PublishInput{Account: instagramAccount()})
	assert.False(t, out.Success)
	assert.Equal(t, "instagram publishing requires media", out.ErrorMessage)
}

func TestInstagramGraphHostByConnection(t *testing.T) {
	a := &instagramAdapter{igHost: "ig", fbHost: "fb"}
	assert.Equal(t, "fb", a.graphHost(ConnectionTypeFacebook))
	assert.Equal(t, "ig", a.graphHost(ConnectionTypeInstagram))
	assert.Equal(t, "ig", a.graphHost(""))
}
