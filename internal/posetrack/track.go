// Package posetrack estimates per-frame head rotation from a reference video.
//
// The heavy lifting (decoding video, locating a face) is done by external tracking
// binaries; this package runs them, converts what they report into yaw/pitch/roll
// angles and falls back from landmark tracking to a coarser face-box estimate when the
// landmark backend is unavailable.
package posetrack

import (
	"context"
	"errors"
)

// MinDetections is the smallest number of tracked frames a usable Track may contain.
const MinDetections = 10

var (
	// ErrInsufficientDetections means too few frames contained a detectable face.
	ErrInsufficientDetections = errors.New("insufficient face detections in video")
	// ErrTrackerUnavailable means the tracking backend binary could not be run.
	ErrTrackerUnavailable = errors.New("pose tracker unavailable")
	// ErrNoExtractors is returned by an empty Chain.
	ErrNoExtractors = errors.New("no pose extractors configured")
)

// Track is a sampled head-rotation series. Angles are in radians.
type Track struct {
	Yaw   []float64
	Pitch []float64
	Roll  []float64

	// FPS is the frame rate of the source video.
	FPS float64
	// Stride is the number of video frames between consecutive samples.
	Stride int
	// Method names the backend that produced the track.
	Method string
}

// Len returns the number of samples.
func (t Track) Len() int {
	return len(t.Yaw)
}

// SampleRate returns samples per second of video, accounting for the sampling stride.
func (t Track) SampleRate() float64 {
	stride := t.Stride
	if stride < 1 {
		stride = 1
	}

	return t.FPS / float64(stride)
}

// Extractor produces a Track from a video file.
type Extractor interface {
	Extract(ctx context.Context, videoPath string) (Track, error)
	Name() string
}

func (t *Track) append(yaw, pitch, roll float64) {
	t.Yaw = append(t.Yaw, yaw)
	t.Pitch = append(t.Pitch, pitch)
	t.Roll = append(t.Roll, roll)
}
