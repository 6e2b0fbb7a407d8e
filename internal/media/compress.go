package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
)

const (
	maxCompressAttempts = 3
	// Floor for the computed target bitrate, in bps (0.5 Mbps).
	minCompressBitrate = 500_000
)

// CompressAttempt is one rung of the compression ladder: each attempt trades
// more encode time and quality for a smaller output.
type CompressAttempt struct {
	Index        int
	SizeRatio    float64
	Preset       string
	Profile      string
	CRFMax       int
	AudioBitrate string
}

func compressSchedule(attempt int, hasAudio bool) CompressAttempt {
	a := CompressAttempt{
		Index:     attempt,
		SizeRatio: 0.9 - 0.1*float64(attempt),
	}
	switch attempt {
	case 0:
		a.Preset, a.Profile = "fast", "high"
		a.AudioBitrate = "128k"
	case 1:
		a.Preset, a.Profile = "medium", "main"
		a.CRFMax = 28
		a.AudioBitrate = "96k"
	default:
		a.Preset, a.Profile = "slow", "main"
		a.CRFMax = 32
		a.AudioBitrate = "64k"
	}
	if !hasAudio {
		a.AudioBitrate = ""
	}
	return a
}

func compressTargetBitrate(maxSizeBytes int64, ratio, duration float64) int64 {
	if duration <= 0 {
		return minCompressBitrate
	}
	target := int64(float64(maxSizeBytes) * ratio * 8 / duration)
	if target < minCompressBitrate {
		target = minCompressBitrate
	}
	return target
}

// Compressor re-encodes a stored video under a hard byte ceiling, used for
// platforms with small upload caps.
type Compressor struct {
	store   ObjectStore
	ffmpeg  string
	ffprobe string
}

func NewCompressor(store ObjectStore, ffmpegPath, ffprobePath string) *Compressor {
	return &Compressor{store: store, ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

// Compress returns the original URL unchanged when the object already fits.
// Otherwise it walks the attempt ladder and uploads the first result within
// budget under a derived key. If every attempt overshoots, the smallest
// result is uploaded anyway and the overage logged.
func (c *Compressor) Compress(ctx context.Context, storageURL string, maxSizeBytes int64) (string, error) {
	size, err := c.store.ObjectSize(ctx, storageURL)
	if err != nil {
		return "", err
	}
	if size <= maxSizeBytes {
		return storageURL, nil
	}

	src, err := c.store.Download(ctx, storageURL)
	if err != nil {
		return "", err
	}

	var temps []string
	defer func() {
		os.Remove(src)
		for _, t := range temps {
			os.Remove(t)
		}
	}()

	facts, err := Probe(ctx, c.ffprobe, src)
	if err != nil {
		return "", err
	}

	var bestOut string
	var bestSize int64
	var bestAttempt int
	for attempt := 0; attempt < maxCompressAttempts; attempt++ {
		a := compressSchedule(attempt, facts.HasAudio)
		target := compressTargetBitrate(maxSizeBytes, a.SizeRatio, facts.Duration)

		out := fmt.Sprintf("%s.c%d.mp4", src, attempt)
		temps = append(temps, out)

		if err := runFFmpeg(ctx, c.ffmpeg, buildCompressArgs(src, out, a, target)); err != nil {
			return "", err
		}

		info, err := os.Stat(out)
		if err != nil {
			return "", err
		}
		if bestOut == "" || info.Size() < bestSize {
			bestOut, bestSize, bestAttempt = out, info.Size(), attempt
		}

		if info.Size() <= maxSizeBytes {
			return c.uploadDerived(ctx, storageURL, out, attempt)
		}
		slog.Info("compressed output over budget",
			"attempt", attempt, "size", info.Size(), "max", maxSizeBytes)
	}

	// Budget never met; return the smallest result anyway.
	slog.Info("returning oversized compression result",
		"size", bestSize, "max", maxSizeBytes, "overage", bestSize-maxSizeBytes)
	return c.uploadDerived(ctx, storageURL, bestOut, bestAttempt)
}

func (c *Compressor) uploadDerived(ctx context.Context, storageURL, localPath string, attempt int) (string, error) {
	key, err := c.store.KeyFromURL(storageURL)
	if err != nil {
		return "", err
	}
	ext := path.Ext(key)
	newKey := fmt.Sprintf("%s-c%d%s", strings.TrimSuffix(key, ext), attempt+1, ".mp4")

	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return c.store.Upload(ctx, newKey, f, "video/mp4")
}

func buildCompressArgs(in, out string, a CompressAttempt, targetBitrate int64) []string {
	b := strconv.FormatInt(targetBitrate, 10)
	args := []string{
		"-y", "-i", in,
		"-c:v", "libx264",
		"-preset", a.Preset,
		"-profile:v", a.Profile,
		"-b:v", b,
		"-maxrate", b,
		"-bufsize", strconv.FormatInt(2*targetBitrate, 10),
		"-pix_fmt", "yuv420p",
	}
	if a.CRFMax > 0 {
		args = append(args, "-crf", strconv.Itoa(a.CRFMax))
	}
	if a.AudioBitrate != "" {
		args = append(args, "-c:a", "aac", "-b:a", a.AudioBitrate)
	} else {
		args = append(args, "-an")
	}
	return append(args, "-movflags", "+faststart", out)
}
