package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	cfg "github.com/DayMoonDevelopment/post-for-me-sub000/configs"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/queue"
)

// Account carries one connection's decrypted credentials into an adapter.
type Account struct {
	ID                    int64
	Platform              string
	ExternalID            string
	Username              string
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	ConnectionType        string
	// AppSecret is a stored application-specific secret usable as a secondary
	// auth path (Bluesky app password). Empty for OAuth-only platforms.
	AppSecret string
}

// Credentials is the outcome of a token refresh.
type Credentials struct {
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

type PublishInput struct {
	PostID   int64
	Account  *Account
	Caption  string
	Media    []queue.MediaItem
	Settings json.RawMessage
}

// Result is always structured; adapters never throw past this boundary.
type Result struct {
	Success         bool
	ProviderPostID  string
	ProviderPostURL string
	ErrorMessage    string
	Details         json.RawMessage
}

// Adapter hides one platform's posting and refresh differences. Publish must
// return a Result even on total failure so the delivery worker can persist a
// deterministic outcome.
type Adapter interface {
	RefreshAccessToken(ctx context.Context, acc *Account) (*Credentials, error)
	Publish(ctx context.Context, in *PublishInput) *Result
}

// Downloader fetches a storage object to a local file for raw-byte uploads.
type Downloader interface {
	Download(ctx context.Context, storageURL string) (string, error)
}

// SizeResolver fits a stored video under a platform's byte ceiling.
type SizeResolver interface {
	Compress(ctx context.Context, storageURL string, maxSizeBytes int64) (string, error)
}

// Deps are the shared collaborators handed to every adapter.
type Deps struct {
	HTTP       *http.Client
	Downloader Downloader
	Resolver   SizeResolver
}

type Factory func(deps Deps, app cfg.AppCredentials) Adapter

var registry = map[string]Factory{}

// Register installs a platform factory; called from adapter init functions so
// adding a platform never touches the orchestrator.
func Register(platform string, f Factory) {
	registry[platform] = f
}

func New(platform string, deps Deps, app cfg.AppCredentials) (Adapter, error) {
	f, ok := registry[platform]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %s", platform)
	}
	if deps.HTTP == nil {
		deps.HTTP = &http.Client{Timeout: 5 * time.Minute}
	}
	return f(deps, app), nil
}

func Registered() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
