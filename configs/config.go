package config

import (
	"os"
	"strconv"
)

type R2 struct {
	AccountID     string
	AccessKey     string
	SecretKey     string
	BucketName    string
	PublicBaseURL string
}

// AppCredentials is an app-level OAuth client registered with a platform.
type AppCredentials struct {
	ClientID     string
	ClientSecret string
}

type Config struct {
	PostgresURI string
	RedisURI    string

	SecretKey string

	FFmpegPath  string
	FFprobePath string

	WorkerConcurrency int
	OpsAddr           string

	R2 R2

	Tiktok AppCredentials
	Google AppCredentials
	// Instagram supports two login flows; credentials are selected by the
	// connection's recorded sub-type, falling back to the Instagram-login set.
	Instagram         AppCredentials
	InstagramFacebook AppCredentials
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI: getEnv("POSTGRES_URI", ""),
		RedisURI:    getEnv("REDIS_URI", "127.0.0.1:6379"),

		SecretKey: getEnv("SECRET_KEY", ""),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 10),
		OpsAddr:           getEnv("OPS_ADDR", ":3000"),

		R2: R2{
			AccountID:     getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:     getEnv("R2_ACCESS_KEY", ""),
			SecretKey:     getEnv("R2_SECRET_KEY", ""),
			BucketName:    getEnv("R2_BUCKET_NAME", ""),
			PublicBaseURL: getEnv("R2_PUBLIC_BASE_URL", ""),
		},

		Tiktok: AppCredentials{
			ClientID:     getEnv("TIKTOK_CLIENT_KEY", ""),
			ClientSecret: getEnv("TIKTOK_CLIENT_SECRET", ""),
		},
		Google: AppCredentials{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		},
		Instagram: AppCredentials{
			ClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
			ClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		},
		InstagramFacebook: AppCredentials{
			ClientID:     getEnv("INSTAGRAM_FACEBOOK_CLIENT_ID", ""),
			ClientSecret: getEnv("INSTAGRAM_FACEBOOK_CLIENT_SECRET", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
