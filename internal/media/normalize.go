package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Envelope every destination platform accepts.
const (
	maxOverallBitrate = 25_000_000
	maxNormalizedSize = 300 * 1024 * 1024
	// Oversize sources are re-targeted under the ceiling with headroom for
	// container overhead.
	oversizeTargetBytes  = 280 * 1024 * 1024
	oversizeBitrateCap   = 15_000_000
	highBitrateTarget    = 24_000_000
	minFrameRate         = 23.0
	maxFrameRate         = 60.0
	fallbackFrameRate    = 24.0
	maxAudioSampleRate   = 48_000
	maxAudioChannels     = 2
	// ~128kbps with muxing slack.
	maxAudioBitrate = 144_000
)

type AspectClass struct {
	Name      string
	Ratio     float64
	MaxWidth  int
	MaxHeight int
}

var aspectClasses = []AspectClass{
	{Name: "vertical", Ratio: 9.0 / 16.0, MaxWidth: 1080, MaxHeight: 1920},
	{Name: "landscape", Ratio: 16.0 / 9.0, MaxWidth: 1920, MaxHeight: 1080},
	{Name: "square", Ratio: 1.0, MaxWidth: 1080, MaxHeight: 1080},
	{Name: "classic", Ratio: 4.0 / 3.0, MaxWidth: 1440, MaxHeight: 1080},
}

const aspectTolerance = 0.1

// classifyAspect picks the class with the closest ratio within tolerance,
// defaulting to landscape.
func classifyAspect(width, height int) AspectClass {
	if height == 0 {
		return aspectClasses[1]
	}
	ratio := float64(width) / float64(height)

	best := aspectClasses[1]
	bestDiff := math.Inf(1)
	for _, class := range aspectClasses {
		diff := math.Abs(ratio - class.Ratio)
		if diff < bestDiff {
			best = class
			bestDiff = diff
		}
	}
	if bestDiff > aspectTolerance {
		return aspectClasses[1]
	}
	return best
}

// targetDimensions downscales uniformly so both dimensions fit the class
// bounds, never upscaling, each dimension rounded to an even pixel count.
func targetDimensions(width, height int, class AspectClass) (int, int) {
	scale := 1.0
	if w := float64(class.MaxWidth) / float64(width); w < scale {
		scale = w
	}
	if h := float64(class.MaxHeight) / float64(height); h < scale {
		scale = h
	}
	return evenDimension(float64(width) * scale), evenDimension(float64(height) * scale)
}

func evenDimension(f float64) int {
	n := int(math.Round(f))
	if n%2 != 0 {
		n--
	}
	if n < 2 {
		n = 2
	}
	return n
}

// isCompliant reports whether the source already satisfies every constraint,
// in which case normalization is a no-op.
func isCompliant(f *VideoFacts) bool {
	if !strings.Contains(f.Container, "mp4") {
		return false
	}
	if f.VideoCodec != "h264" && f.VideoCodec != "hevc" {
		return false
	}
	if f.BitRate > maxOverallBitrate {
		return false
	}
	if f.SizeBytes > maxNormalizedSize {
		return false
	}
	if f.FrameRate < minFrameRate || f.FrameRate > maxFrameRate {
		return false
	}
	class := classifyAspect(f.Width, f.Height)
	if f.Width > class.MaxWidth || f.Height > class.MaxHeight {
		return false
	}
	if f.HasAudio {
		if f.AudioCodec != "aac" {
			return false
		}
		if f.AudioChannels > maxAudioChannels {
			return false
		}
		if f.AudioSampleRate > maxAudioSampleRate {
			return false
		}
		if f.AudioBitRate > maxAudioBitrate {
			return false
		}
	}
	return true
}

type encodeMode int

const (
	modeCRF encodeMode = iota
	modeBitrate
)

type encodePlan struct {
	Width         int
	Height        int
	FrameRate     float64
	Mode          encodeMode
	TargetBitrate int64
	Preset        string
	CRF           int
}

func planEncode(f *VideoFacts) encodePlan {
	class := classifyAspect(f.Width, f.Height)
	w, h := targetDimensions(f.Width, f.Height, class)

	fps := f.FrameRate
	if fps < minFrameRate || fps > maxFrameRate {
		fps = fallbackFrameRate
	}

	plan := encodePlan{Width: w, Height: h, FrameRate: fps, Preset: "medium", CRF: 23}

	switch {
	case f.SizeBytes > maxNormalizedSize:
		// Sources with an unreadable duration get the cap outright.
		target := int64(oversizeBitrateCap)
		if f.Duration > 0 {
			if t := int64(float64(oversizeTargetBytes) * 8 / f.Duration); t < target {
				target = t
			}
		}
		plan.Mode = modeBitrate
		plan.TargetBitrate = target
		plan.Preset = "faster"
	case f.BitRate > maxOverallBitrate:
		plan.Mode = modeBitrate
		plan.TargetBitrate = highBitrateTarget
	default:
		plan.Mode = modeCRF
	}
	return plan
}

// Normalizer brings a localized video into the shared platform envelope,
// re-encoding only when some constraint is violated. The result overwrites
// the source object; no new media row is needed.
type Normalizer struct {
	store   ObjectStore
	ffmpeg  string
	ffprobe string
}

func NewNormalizer(store ObjectStore, ffmpegPath, ffprobePath string) *Normalizer {
	return &Normalizer{store: store, ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

func (n *Normalizer) Normalize(ctx context.Context, storageURL string) error {
	src, err := n.store.Download(ctx, storageURL)
	if err != nil {
		return err
	}
	defer os.Remove(src)

	facts, err := Probe(ctx, n.ffprobe, src)
	if err != nil {
		return err
	}
	if isCompliant(facts) {
		return nil
	}

	plan := planEncode(facts)
	out := src + ".norm.mp4"
	defer os.Remove(out)

	if err := runFFmpeg(ctx, n.ffmpeg, buildNormalizeArgs(src, out, plan, facts.HasAudio)); err != nil {
		return err
	}

	encoded, err := os.Open(out)
	if err != nil {
		return err
	}
	defer encoded.Close()

	return n.store.Overwrite(ctx, storageURL, encoded, "video/mp4")
}

func buildNormalizeArgs(in, out string, p encodePlan, hasAudio bool) []string {
	args := []string{
		"-y", "-i", in,
		"-c:v", "libx264",
		"-preset", p.Preset,
		"-vf", fmt.Sprintf("scale=%d:%d", p.Width, p.Height),
		"-r", strconv.FormatFloat(p.FrameRate, 'f', -1, 64),
		"-pix_fmt", "yuv420p",
	}
	if p.Mode == modeBitrate {
		b := strconv.FormatInt(p.TargetBitrate, 10)
		args = append(args, "-b:v", b, "-maxrate", b, "-bufsize", strconv.FormatInt(2*p.TargetBitrate, 10))
	} else {
		args = append(args, "-crf", strconv.Itoa(p.CRF))
	}
	if hasAudio {
		args = append(args, "-c:a", "aac", "-b:a", "128k", "-ac", "2", "-ar", "48000")
	} else {
		args = append(args, "-an")
	}
	return append(args, "-movflags", "+faststart", out)
}

func runFFmpeg(ctx context.Context, ffmpegPath string, args []string) error {
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 2048 {
			msg = msg[len(msg)-2048:]
		}
		slog.Info("ffmpeg failed", "error", err, "stderr", msg)
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}
