package platform

import (
	"context"
	"os"
)

// fakeDownloader hands every request the same bytes from a temp file.
type fakeDownloader struct {
	data []byte
	urls []string
}

func (d *fakeDownloader) Download(ctx context.Context, storageURL string) (string, error) {
	d.urls = append(d.urls, storageURL)
	tmp, err := os.CreateTemp("", "download-*")
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	if _, err := tmp.Write(d.data); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}

// fakeResolver records the ceiling it was asked to fit and returns the URL
// unchanged.
type fakeResolver struct {
	maxSeen int64
}

func (r *fakeResolver) Compress(ctx context.Context, storageURL string, maxSizeBytes int64) (string, error) {
	r.maxSeen = maxSizeBytes
	return storageURL, nil
}
