package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type uploadState int

const (
	stateSessionStarted uploadState = iota
	stateChunkInFlight
	stateResuming
	stateComplete
	stateFailed
)

const defaultChunkSize = 8 * 1024 * 1024

// ResumableUpload drives a session-based chunked upload: fixed-size byte
// ranges with Content-Range headers, resuming from the server-reported last
// received byte after an interruption. The loop is strictly sequential
// because each chunk's offset depends on the previous response.
type ResumableUpload struct {
	client     *http.Client
	sessionURL string
	src        io.ReaderAt
	size       int64
	chunkSize  int64

	state   uploadState
	offset  int64
	retries int

	maxRetries  int
	backoffBase time.Duration
	backoffCap  time.Duration
}

func NewResumableUpload(client *http.Client, sessionURL string, src io.ReaderAt, size int64) *ResumableUpload {
	return &ResumableUpload{
		client:      client,
		sessionURL:  sessionURL,
		src:         src,
		size:        size,
		chunkSize:   defaultChunkSize,
		state:       stateSessionStarted,
		maxRetries:  8,
		backoffBase: time.Second,
		backoffCap:  32 * time.Second,
	}
}

// Run uploads until a terminal state and returns the final response body.
func (u *ResumableUpload) Run(ctx context.Context) ([]byte, error) {
	for {
		switch u.state {
		case stateSessionStarted, stateResuming:
			u.state = stateChunkInFlight
		case stateChunkInFlight:
			body, err := u.sendChunk(ctx)
			if err != nil {
				return nil, err
			}
			if u.state == stateComplete {
				return body, nil
			}
		case stateComplete:
			return nil, nil
		case stateFailed:
			return nil, fmt.Errorf("upload failed at offset %d", u.offset)
		}
	}
}

func (u *ResumableUpload) sendChunk(ctx context.Context) ([]byte, error) {
	end := u.offset + u.chunkSize
	if end > u.size {
		end = u.size
	}
	chunk := io.NewSectionReader(u.src, u.offset, end-u.offset)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.sessionURL, chunk)
	if err != nil {
		u.state = stateFailed
		return nil, err
	}
	req.ContentLength = end - u.offset
	req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", u.offset, end-1, u.size))

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, u.retryAfter(ctx, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		u.state = stateComplete
		u.retries = 0
		return io.ReadAll(resp.Body)

	case resp.StatusCode == http.StatusPermanentRedirect: // 308: chunk accepted, more expected
		next, ok := parseRangeEnd(resp.Header.Get("Range"))
		if !ok {
			// Header stripped by a proxy; ask the server where it stands.
			next, err = u.queryOffset(ctx)
			if err != nil {
				return nil, u.retryAfter(ctx, err)
			}
		}
		u.offset = next
		u.retries = 0
		u.state = stateChunkInFlight
		return nil, nil

	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, u.retryAfter(ctx, fmt.Errorf("status %d", resp.StatusCode))

	default:
		// Unrecoverable 4xx.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		u.state = stateFailed
		return nil, fmt.Errorf("upload rejected with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// retryAfter backs off (capped exponential), re-syncs the offset with a
// status query, and keeps the loop going; nil means "retry".
func (u *ResumableUpload) retryAfter(ctx context.Context, cause error) error {
	u.retries++
	if u.retries > u.maxRetries {
		u.state = stateFailed
		return fmt.Errorf("upload gave up after %d retries: %w", u.maxRetries, cause)
	}

	delay := u.backoffBase << (u.retries - 1)
	if delay > u.backoffCap {
		delay = u.backoffCap
	}
	select {
	case <-ctx.Done():
		u.state = stateFailed
		return ctx.Err()
	case <-time.After(delay):
	}

	if next, err := u.queryOffset(ctx); err == nil {
		u.offset = next
	}
	u.state = stateResuming
	return nil
}

// queryOffset asks the session where the last accepted byte is by sending an
// empty Content-Range probe.
func (u *ResumableUpload) queryOffset(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.sessionURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Range", fmt.Sprintf("bytes */%d", u.size))

	resp, err := u.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPermanentRedirect {
		if next, ok := parseRangeEnd(resp.Header.Get("Range")); ok {
			return next, nil
		}
		// Nothing received yet.
		return 0, nil
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		u.state = stateComplete
		return u.size, nil
	}
	return 0, fmt.Errorf("status query returned %d", resp.StatusCode)
}

// parseRangeEnd extracts the next offset from a "bytes=0-12345" Range header.
func parseRangeEnd(header string) (int64, bool) {
	header = strings.TrimPrefix(header, "bytes=")
	_, endStr, ok := strings.Cut(header, "-")
	if !ok {
		return 0, false
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return end + 1, true
}
