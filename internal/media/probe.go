package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// VideoFacts is the subset of ffprobe output the pipeline decides on.
type VideoFacts struct {
	Container string
	SizeBytes int64
	Duration  float64
	BitRate   int64

	VideoCodec string
	Width      int
	Height     int
	FrameRate  float64

	HasAudio        bool
	AudioCodec      string
	AudioChannels   int
	AudioSampleRate int
	AudioBitRate    int64
}

type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		Channels   int    `json:"channels"`
		SampleRate string `json:"sample_rate"`
		BitRate    string `json:"bit_rate"`
	} `json:"streams"`
}

// Probe runs ffprobe against a local file.
func Probe(ctx context.Context, ffprobePath, path string) (*VideoFacts, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("ffprobe output: %w", err)
	}

	facts := &VideoFacts{
		Container: out.Format.FormatName,
		SizeBytes: parseInt(out.Format.Size),
		Duration:  parseFloat(out.Format.Duration),
		BitRate:   parseInt(out.Format.BitRate),
	}

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			facts.VideoCodec = s.CodecName
			facts.Width = s.Width
			facts.Height = s.Height
			facts.FrameRate = parseRate(s.RFrameRate)
		case "audio":
			facts.HasAudio = true
			facts.AudioCodec = s.CodecName
			facts.AudioChannels = s.Channels
			facts.AudioSampleRate = int(parseInt(s.SampleRate))
			facts.AudioBitRate = parseInt(s.BitRate)
		}
	}

	if facts.VideoCodec == "" {
		return nil, fmt.Errorf("no video stream in %s", path)
	}
	return facts, nil
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// parseRate parses ffprobe rational rates like "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}
