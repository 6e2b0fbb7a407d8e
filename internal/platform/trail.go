package platform

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const trailBodyLimit = 8 * 1024

// Trail records every outbound request/response pair during a publish so a
// failed result carries the full diagnostic trace in its details.
type Trail struct {
	mu      sync.Mutex
	entries []TrailEntry
}

type TrailEntry struct {
	Method   string `json:"method"`
	URL      string `json:"url"`
	Status   int    `json:"status,omitempty"`
	Request  string `json:"request,omitempty"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Client returns an http client whose transport records into the trail.
func (t *Trail) Client(base *http.Client) *http.Client {
	inner := http.DefaultTransport
	timeout := 5 * time.Minute
	if base != nil {
		if base.Transport != nil {
			inner = base.Transport
		}
		if base.Timeout != 0 {
			timeout = base.Timeout
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &trailTransport{trail: t, base: inner},
	}
}

func (t *Trail) add(e TrailEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
}

// JSON renders the trail as the details payload for a failed result.
func (t *Trail) JSON() json.RawMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, err := json.Marshal(map[string]any{"requests": t.entries})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

// Failure builds a failed result carrying the trail.
func (t *Trail) Failure(msg string) *Result {
	return &Result{ErrorMessage: msg, Details: t.JSON()}
}

type trailTransport struct {
	trail *Trail
	base  http.RoundTripper
}

// Query parameters that carry credentials; trail rows outlive the request
// and end up in persisted result details.
var secretQueryParams = map[string]bool{
	"access_token":      true,
	"client_secret":     true,
	"fb_exchange_token": true,
	"refresh_token":     true,
}

func redactURL(u *url.URL) string {
	q := u.Query()
	redacted := false
	for name := range q {
		if secretQueryParams[name] {
			q.Set(name, "REDACTED")
			redacted = true
		}
	}
	if !redacted {
		return u.String()
	}
	clean := *u
	clean.RawQuery = q.Encode()
	return clean.String()
}

func (tt *trailTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	entry := TrailEntry{Method: req.Method, URL: redactURL(req.URL)}

	// Request bodies are only captured when replayable; raw upload streams
	// have no GetBody and are skipped.
	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			entry.Request = readCapped(body)
			body.Close()
		}
	}

	resp, err := tt.base.RoundTrip(req)
	if err != nil {
		entry.Error = err.Error()
		tt.trail.add(entry)
		return resp, err
	}

	entry.Status = resp.StatusCode
	captured, rest := captureBody(resp.Body)
	entry.Response = captured
	resp.Body = rest
	tt.trail.add(entry)
	return resp, nil
}

func readCapped(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, trailBodyLimit))
	return string(b)
}

func captureBody(body io.ReadCloser) (string, io.ReadCloser) {
	if body == nil {
		return "", body
	}
	head, _ := io.ReadAll(io.LimitReader(body, trailBodyLimit))
	rest := struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), body), body}
	return string(head), rest
}
