package posetrack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// trackerReport is the common envelope of a tracker's JSON report.
type trackerReport[F any] struct {
	FPS    float64 `json:"fps"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Frames []F     `json:"frames"`
}

// runTracker executes a tracking binary over every stride-th frame of videoPath and
// returns its JSON report from stdout.
func runTracker(ctx context.Context, binary, videoPath string, stride int) ([]byte, error) {
	_, err := os.Stat(videoPath)
	if err != nil {
		return nil, fmt.Errorf("reference video: %w", err)
	}

	args := []string{"--video", videoPath, "--stride", strconv.Itoa(stride), "--format", "json"}

	// #nosec G204 -- binary comes from configuration, arguments are fixed flags
	cmd := exec.CommandContext(ctx, binary, args...)

	var stderr strings.Builder
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s: %w", ErrTrackerUnavailable, binary, err)
		}

		return nil, fmt.Errorf("%s execution failed: %w - output: %s", binary, err, strings.TrimSpace(stderr.String()))
	}

	return output, nil
}

// resolveTiming fills in the frame rate from ffprobe when the tracker did not report it.
func resolveTiming(ctx context.Context, probeBinary, videoPath string, fps float64) (float64, error) {
	if fps > 0 {
		return fps, nil
	}

	info, err := Probe(ctx, probeBinary, videoPath)
	if err != nil {
		return 0, fmt.Errorf("failed to determine frame rate: %w", err)
	}

	return info.FPS, nil
}

func checkDetections(track Track) (Track, error) {
	if track.Len() < MinDetections {
		return Track{}, fmt.Errorf("%w: %d of %d required (%s)",
			ErrInsufficientDetections, track.Len(), MinDetections, track.Method)
	}

	return track, nil
}
