package posetrack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultProbeBinary is the ffprobe executable looked up on PATH.
const DefaultProbeBinary = "ffprobe"

// ErrNoVideoStream is returned when a file has no video stream.
var ErrNoVideoStream = errors.New("no video stream found")

// VideoInfo is the stream metadata needed to time a Track.
type VideoInfo struct {
	FPS      float64
	Frames   int
	Width    int
	Height   int
	Duration float64
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	NBFrames     string `json:"nb_frames"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Duration     string `json:"duration"`
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe against path and returns its first video stream's metadata.
func Probe(ctx context.Context, binary, path string) (VideoInfo, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultProbeBinary
	}

	path = strings.TrimSpace(path)
	if path == "" {
		return VideoInfo{}, errors.New("probe: empty path")
	}

	// #nosec G204 -- binary comes from configuration, path is passed after "--"
	cmd := exec.CommandContext(ctx, binary,
		"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return VideoInfo{}, fmt.Errorf("%w: %s: %w", ErrTrackerUnavailable, binary, err)
		}

		return VideoInfo{}, fmt.Errorf("probe %s: %w", path, err)
	}

	return ParseProbe(output)
}

// ParseProbe decodes ffprobe JSON output.
func ParseProbe(data []byte) (VideoInfo, error) {
	var result probeResult

	err := json.Unmarshal(data, &result)
	if err != nil {
		return VideoInfo{}, fmt.Errorf("probe parse: %w", err)
	}

	for _, stream := range result.Streams {
		if !strings.EqualFold(stream.CodecType, "video") {
			continue
		}

		info := VideoInfo{
			FPS:      parseRate(stream.AvgFrameRate),
			Width:    stream.Width,
			Height:   stream.Height,
			Duration: parseFloat(stream.Duration),
		}

		if info.FPS <= 0 {
			info.FPS = parseRate(stream.RFrameRate)
		}

		if info.Duration <= 0 {
			info.Duration = parseFloat(result.Format.Duration)
		}

		frames, convErr := strconv.Atoi(strings.TrimSpace(stream.NBFrames))
		if convErr == nil {
			info.Frames = frames
		} else if info.FPS > 0 && info.Duration > 0 {
			info.Frames = int(info.Duration * info.FPS)
		}

		return info, nil
	}

	return VideoInfo{}, ErrNoVideoStream
}

// parseRate parses ffprobe rationals such as "30000/1001" or plain numbers.
func parseRate(value string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(value), "/")
	if !found {
		return parseFloat(num)
	}

	d := parseFloat(den)
	if d == 0 {
		return 0
	}

	return parseFloat(num) / d
}

func parseFloat(value string) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}

	return parsed
}
