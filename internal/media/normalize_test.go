package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func compliantFacts() *VideoFacts {
	return &VideoFacts{
		Container:       "mov,mp4,m4a,3gp,3g2,mj2",
		SizeBytes:       50 * 1024 * 1024,
		Duration:        60,
		BitRate:         8_000_000,
		VideoCodec:      "h264",
		Width:           1920,
		Height:          1080,
		FrameRate:       30,
		HasAudio:        true,
		AudioCodec:      "aac",
		AudioChannels:   2,
		AudioSampleRate: 44_100,
		AudioBitRate:    128_000,
	}
}

func TestClassifyAspect(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		want   string
	}{
		{"vertical", 1080, 1920, "vertical"},
		{"landscape", 1920, 1080, "landscape"},
		{"square", 1080, 1080, "square"},
		{"classic", 1440, 1080, "classic"},
		{"near vertical within tolerance", 720, 1280, "vertical"},
		{"extreme ratio falls back to landscape", 1000, 300, "landscape"},
		{"zero height falls back to landscape", 1920, 0, "landscape"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyAspect(tt.width, tt.height).Name)
		})
	}
}

func TestTargetDimensions(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		height     int
		wantWidth  int
		wantHeight int
	}{
		{"4k landscape downscales", 3840, 2160, 1920, 1080},
		{"small source never upscales", 640, 360, 640, 360},
		{"odd dimensions round down to even", 1001, 563, 1000, 562},
		{"oversized vertical downscales", 2160, 3840, 1080, 1920},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class := classifyAspect(tt.width, tt.height)
			w, h := targetDimensions(tt.width, tt.height, class)
			assert.Equal(t, tt.wantWidth, w)
			assert.Equal(t, tt.wantHeight, h)
		})
	}
}

func TestIsCompliant(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*VideoFacts)
		want   bool
	}{
		{"already in envelope", func(f *VideoFacts) {}, true},
		{"non mp4 container", func(f *VideoFacts) { f.Container = "matroska,webm" }, false},
		{"vp9 codec", func(f *VideoFacts) { f.VideoCodec = "vp9" }, false},
		{"hevc is accepted", func(f *VideoFacts) { f.VideoCodec = "hevc" }, true},
		{"bitrate just over ceiling", func(f *VideoFacts) { f.BitRate = 26_000_000 }, false},
		{"file over size ceiling", func(f *VideoFacts) { f.SizeBytes = 301 * 1024 * 1024 }, false},
		{"frame rate too low", func(f *VideoFacts) { f.FrameRate = 20 }, false},
		{"frame rate too high", func(f *VideoFacts) { f.FrameRate = 120 }, false},
		{"dimensions over class bounds", func(f *VideoFacts) { f.Width, f.Height = 3840, 2160 }, false},
		{"non aac audio", func(f *VideoFacts) { f.AudioCodec = "mp3" }, false},
		{"too many audio channels", func(f *VideoFacts) { f.AudioChannels = 6 }, false},
		{"audio sample rate too high", func(f *VideoFacts) { f.AudioSampleRate = 96_000 }, false},
		{"audio bitrate too high", func(f *VideoFacts) { f.AudioBitRate = 320_000 }, false},
		{"no audio stream skips audio checks", func(f *VideoFacts) {
			f.HasAudio = false
			f.AudioCodec = ""
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := compliantFacts()
			tt.mutate(f)
			assert.Equal(t, tt.want, isCompliant(f))
		})
	}
}

func TestPlanEncodeOversizeFile(t *testing.T) {
	f := compliantFacts()
	f.SizeBytes = 400 * 1024 * 1024
	f.Duration = 100

	plan := planEncode(f)
	assert.Equal(t, modeBitrate, plan.Mode)
	assert.Equal(t, "faster", plan.Preset)
	// 280MB over 100s works out above the cap, so the cap wins.
	assert.Equal(t, int64(oversizeBitrateCap), plan.TargetBitrate)
}

func TestPlanEncodeOversizeLongFile(t *testing.T) {
	f := compliantFacts()
	f.SizeBytes = 400 * 1024 * 1024
	duration := 3600.0
	f.Duration = duration

	plan := planEncode(f)
	assert.Equal(t, modeBitrate, plan.Mode)
	assert.Equal(t, int64(float64(oversizeTargetBytes)*8/duration), plan.TargetBitrate)
}

func TestPlanEncodeOversizeUnknownDuration(t *testing.T) {
	f := compliantFacts()
	f.SizeBytes = 400 * 1024 * 1024
	f.Duration = 0

	plan := planEncode(f)
	assert.Equal(t, modeBitrate, plan.Mode)
	assert.Equal(t, int64(oversizeBitrateCap), plan.TargetBitrate)
	assert.Equal(t, "faster", plan.Preset)
}

func TestPlanEncodeHighBitrate(t *testing.T) {
	f := compliantFacts()
	f.BitRate = 30_000_000

	plan := planEncode(f)
	assert.Equal(t, modeBitrate, plan.Mode)
	assert.Equal(t, int64(highBitrateTarget), plan.TargetBitrate)
	assert.Equal(t, "medium", plan.Preset)
}

func TestPlanEncodeDefaultCRF(t *testing.T) {
	f := compliantFacts()
	f.VideoCodec = "vp9" // out of envelope but neither oversized nor high-bitrate

	plan := planEncode(f)
	assert.Equal(t, modeCRF, plan.Mode)
	assert.Equal(t, 23, plan.CRF)
}

func TestPlanEncodeClampsFrameRate(t *testing.T) {
	f := compliantFacts()
	f.FrameRate = 120

	plan := planEncode(f)
	assert.Equal(t, fallbackFrameRate, plan.FrameRate)
}

func TestParseRate(t *testing.T) {
	assert.InDelta(t, 29.97, parseRate("30000/1001"), 0.01)
	assert.Equal(t, 30.0, parseRate("30"))
	assert.Equal(t, 0.0, parseRate("30/0"))
}
