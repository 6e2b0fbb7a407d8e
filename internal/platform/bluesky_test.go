package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/models"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/queue"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/transfer"
)

func newBlueskyAdapterFor(srv *httptest.Server, deps Deps) *blueskyAdapter {
	deps.HTTP = srv.Client()
	return &blueskyAdapter{deps: deps, pds: srv.URL}
}

func blueskyAccount() *Account {
	return &Account{ExternalID: "did:plc:abc", Username: "alice.bsky.social", AccessToken: "jwt"}
}

func TestBlueskyPublishImages(t *testing.T) {
	var blobUploads int
	var record transfer.BlueskyCreateRecordRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/xrpc/com.atproto.repo.uploadBlob", func(w http.ResponseWriter, r *http.Request) {
		blobUploads++
		w.Write([]byte(`{"blob":{"$type":"blob","mimeType":"image/jpeg","size":11}}`))
	})
	mux.HandleFunc("/xrpc/com.atproto.repo.createRecord", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
		w.Write([]byte(`{"uri":"at://did:plc:abc/app.bsky.feed.post/rkey9","cid":"x"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := newBlueskyAdapterFor(srv, Deps{Downloader: &fakeDownloader{data: []byte("image-bytes")}})

	// Five images submitted; the embed caps at four.
	media := make([]queue.MediaItem, 5)
	for i := range media {
		media[i] = queue.MediaItem{Type: models.MediaTypeImage, URL: "https://cdn.test/media/p.jpg"}
	}
	out := a.Publish(context.Background(), &PublishInput{
		Account: blueskyAccount(),
		Caption: "hello",
		Media:   media,
	})

	assert.True(t, out.Success)
	assert.Equal(t, "at://did:plc:abc/app.bsky.feed.post/rkey9", out.ProviderPostID)
	assert.Equal(t, "https://bsky.app/profile/alice.bsky.social/post/rkey9", out.ProviderPostURL)
	assert.Equal(t, blueskyMaxImages, blobUploads)
	assert.Equal(t, "did:plc:abc", record.Repo)
	assert.Equal(t, "app.bsky.feed.post", record.Collection)
}

func TestBlueskyPublishVideoCompresses(t *testing.T) {
	var blobContentType string

	mux := http.NewServeMux()
	mux.HandleFunc("/xrpc/com.atproto.repo.uploadBlob", func(w http.ResponseWriter, r *http.Request) {
		blobContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"blob":{"$type":"blob","mimeType":"video/mp4","size":11}}`))
	})
	mux.HandleFunc("/xrpc/com.atproto.repo.createRecord", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"uri":"at://did:plc:abc/app.bsky.feed.post/rkey1","cid":"x"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resolver := &fakeResolver{}
	a := newBlueskyAdapterFor(srv, Deps{
		Downloader: &fakeDownloader{data: []byte("video-bytes")},
		Resolver:   resolver,
	})

	out := a.Publish(context.Background(), &PublishInput{
		Account: blueskyAccount(),
		Media:   []queue.MediaItem{{Type: models.MediaTypeVideo, URL: "https://cdn.test/media/v.mp4"}},
	})

	assert.True(t, out.Success)
	assert.Equal(t, int64(blueskyMaxVideoBytes), resolver.maxSeen)
	assert.Equal(t, "video/mp4", blobContentType)
}

func TestBlueskyPublishRecordRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/xrpc/com.atproto.repo.createRecord", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"InvalidRequest","message":"record invalid"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := newBlueskyAdapterFor(srv, Deps{})
	out := a.Publish(context.Background(), &PublishInput{
		Account: blueskyAccount(),
		Caption: "text only",
	})

	assert.False(t, out.Success)
	assert.Equal(t, "create record: record invalid", out.ErrorMessage)
	assert.Contains(t, string(out.Details), `"status":400`)
}
