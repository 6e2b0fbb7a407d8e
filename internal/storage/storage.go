package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	cfg "github.com/DayMoonDevelopment/post-for-me-sub000/configs"
)

// Client wraps the R2 bucket holding localized media. Uploads go through the
// s3 transfer manager so large files stream in parts and interrupted parts
// are retried without restarting the whole object.
type Client struct {
	config   cfg.Config
	s3       *s3.Client
	uploader *manager.Uploader
}

func New(c cfg.Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.R2.AccessKey, c.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2.AccountID))
	})

	return &Client{
		config: c,
		s3:     s3Client,
		uploader: manager.NewUploader(s3Client, func(u *manager.Uploader) {
			u.PartSize = 16 * 1024 * 1024
		}),
	}, nil
}

// Upload streams body into the bucket under key and returns the public URL.
func (c *Client) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return c.URLFor(key), nil
}

// Overwrite replaces the object behind an existing storage URL in place.
func (c *Client) Overwrite(ctx context.Context, storageURL string, body io.Reader, contentType string) error {
	key, err := c.KeyFromURL(storageURL)
	if err != nil {
		return err
	}
	_, err = c.Upload(ctx, key, body, contentType)
	return err
}

// Download streams the object behind a storage URL into a temp file and
// returns its path. Callers own the file.
func (c *Client) Download(ctx context.Context, storageURL string) (string, error) {
	key, err := c.KeyFromURL(storageURL)
	if err != nil {
		return "", err
	}

	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.config.R2.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp("", "media-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		slog.Info(err.Error())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// ObjectSize returns the stored byte size for a storage URL.
func (c *Client) ObjectSize(ctx context.Context, storageURL string) (int64, error) {
	key, err := c.KeyFromURL(storageURL)
	if err != nil {
		return 0, err
	}
	head, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.config.R2.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return aws.ToInt64(head.ContentLength), nil
}

func (c *Client) URLFor(key string) string {
	return strings.TrimSuffix(c.config.R2.PublicBaseURL, "/") + "/" + key
}

func (c *Client) KeyFromURL(storageURL string) (string, error) {
	u, err := url.Parse(storageURL)
	if err != nil {
		return "", err
	}
	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", fmt.Errorf("storage url %q has no object key", storageURL)
	}
	return key, nil
}
