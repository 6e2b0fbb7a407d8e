package platform

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrailRecordsRequestAndResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer srv.Close()

	trail := &Trail{}
	client := trail.Client(srv.Client())

	resp, err := client.Post(srv.URL+"/publish", "application/json", strings.NewReader(`{"title":"x"}`))
	require.NoError(t, err)
	// The caller can still read the body after capture.
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"error":"bad request"}`, string(body))

	var details struct {
		Requests []TrailEntry `json:"requests"`
	}
	require.NoError(t, json.Unmarshal(trail.JSON(), &details))
	require.Len(t, details.Requests, 1)

	entry := details.Requests[0]
	assert.Equal(t, http.MethodPost, entry.Method)
	assert.Equal(t, srv.URL+"/publish", entry.URL)
	assert.Equal(t, http.StatusBadRequest, entry.Status)
	assert.JSONEq(t, `{"title":"x"}`, entry.Request)
	assert.JSONEq(t, `{"error":"bad request"}`, entry.Response)
}

func TestTrailFailureCarriesEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	trail := &Trail{}
	client := trail.Client(srv.Client())
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	result := trail.Failure("publish failed")
	assert.False(t, result.Success)
	assert.Equal(t, "publish failed", result.ErrorMessage)
	assert.Contains(t, string(result.Details), `"status":500`)
}

func TestTrailRedactsSecretQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	trail := &Trail{}
	client := trail.Client(srv.Client())
	resp, err := client.Get(srv.URL + "/media?access_token=sekret-token&fields=permalink")
	require.NoError(t, err)
	resp.Body.Close()

	details := string(trail.JSON())
	assert.NotContains(t, details, "sekret-token")
	assert.Contains(t, details, "access_token=REDACTED")
	assert.Contains(t, details, "fields=permalink")
}

func TestTrailEmptyJSON(t *testing.T) {
	trail := &Trail{}
	assert.JSONEq(t, `{"requests":null}`, string(trail.JSON()))
}

func TestRegistryKnowsAllPlatforms(t *testing.T) {
	names := Registered()
	for _, want := range []string{"bluesky", "instagram", "tiktok", "youtube"} {
		assert.Contains(t, names, want)
	}
}
