// Package intent holds the script-side intent contract: the segments produced by text
// generation and the timing map the synthesis stage builds once real segment timings
// are known.
package intent

import (
	"errors"
	"fmt"
	"math"
	"os"
)

// Script mask levels.
const (
	NeutralLevel      = 1.0
	PauseLevel        = 0.0
	EmphasisBase      = 1.1
	EmphasisPerWord   = 0.05
	EmphasisCeil      = 1.3
	MinPauseSeconds   = 0.01
	DefaultTimingFPS  = 25.0
	timingFileMode    = 0o600
	pauseLevelCeiling = 0.1
	emphasisFloor     = 1.05
)

var (
	// ErrInvalidTiming indicates a timing map that cannot be rendered.
	ErrInvalidTiming = errors.New("invalid timing map")
	// ErrEmptyScript is returned when a generated script has no segments.
	ErrEmptyScript = errors.New("script has no segments")
)

// TimingSegment is one synthesized segment placed on the audio timeline.
type TimingSegment struct {
	SegmentIndex int      `json:"segment_idx"`
	StartTime    float64  `json:"start_time"`
	EndTime      float64  `json:"end_time"`
	PauseAfter   float64  `json:"pause_after"`
	Emphasis     []string `json:"emphasis"`
	SentenceEnd  bool     `json:"sentence_end"`
}

// TimingMap maps audio time onto per-frame script intent.
type TimingMap struct {
	FPS           float64         `json:"fps"`
	TotalDuration float64         `json:"total_duration"`
	Segments      []TimingSegment `json:"segments"`
}

// NumFrames is ceil(TotalDuration × FPS).
func (m *TimingMap) NumFrames() int {
	if m.FPS <= 0 || m.TotalDuration <= 0 {
		return 0
	}

	return int(math.Ceil(m.TotalDuration * m.FPS))
}

// Validate checks the map can be rendered.
func (m *TimingMap) Validate() error {
	if !(m.FPS > 0) || math.IsInf(m.FPS, 0) {
		return fmt.Errorf("%w: fps must be positive, got %v", ErrInvalidTiming, m.FPS)
	}

	if !(m.TotalDuration >= 0) || math.IsInf(m.TotalDuration, 0) {
		return fmt.Errorf("%w: total duration must be non-negative, got %v", ErrInvalidTiming, m.TotalDuration)
	}

	for i, seg := range m.Segments {
		if seg.EndTime < seg.StartTime {
			return fmt.Errorf("%w: segment %d ends before it starts", ErrInvalidTiming, i)
		}

		if seg.PauseAfter < 0 {
			return fmt.Errorf("%w: segment %d has negative pause", ErrInvalidTiming, i)
		}
	}

	return nil
}

// frame maps a time in seconds to round(t × fps), clamped into [0, n-1].
func (m *TimingMap) frame(seconds float64, n int) int {
	idx := int(math.Round(seconds * m.FPS))

	return max(0, min(idx, n-1))
}

// BuildIntentMask renders the per-frame script mask. Segments are applied in order and
// later writes win on shared frames.
func (m *TimingMap) BuildIntentMask() []float64 {
	n := m.NumFrames()

	mask := make([]float64, n)
	for i := range mask {
		mask[i] = NeutralLevel
	}

	if n == 0 {
		return mask
	}

	for _, seg := range m.Segments {
		start := m.frame(seg.StartTime, n)
		end := m.frame(seg.EndTime, n)

		if len(seg.Emphasis) > 0 {
			level := EmphasisWeight(len(seg.Emphasis))
			for t := start; t < end; t++ {
				mask[t] = level
			}
		}

		if seg.PauseAfter > MinPauseSeconds {
			pauseEnd := m.frame(seg.EndTime+seg.PauseAfter, n)
			for t := end; t < pauseEnd; t++ {
				mask[t] = PauseLevel
			}
		}
	}

	return mask
}

// EmphasisWeight is the mask level for a segment with the given number of emphasis words.
func EmphasisWeight(words int) float64 {
	return math.Min(EmphasisCeil, EmphasisBase+EmphasisPerWord*float64(words))
}

// SentenceEndFrames returns the frame of every sentence-ending segment's end time,
// dropping frames outside [0, NumFrames).
func (m *TimingMap) SentenceEndFrames() []int {
	n := m.NumFrames()

	var frames []int

	for _, seg := range m.Segments {
		if !seg.SentenceEnd {
			continue
		}

		idx := int(math.Round(seg.EndTime * m.FPS))
		if idx >= 0 && idx < n {
			frames = append(frames, idx)
		}
	}

	return frames
}

// MaskStats counts pause and emphasis frames in a mask.
type MaskStats struct {
	Frames   int
	Pause    int
	Emphasis int
}

// Stats summarizes a rendered mask.
func Stats(mask []float64) MaskStats {
	stats := MaskStats{Frames: len(mask)}

	for _, v := range mask {
		switch {
		case v < pauseLevelCeiling:
			stats.Pause++
		case v > emphasisFloor:
			stats.Emphasis++
		}
	}

	return stats
}

// DecodeTimingMap parses and validates a JSON timing map.
func DecodeTimingMap(data []byte) (*TimingMap, error) {
	var m TimingMap

	err := parseJSON(data, &m)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTiming, err)
	}

	err = m.Validate()
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// Encode renders the map as JSON.
func (m *TimingMap) Encode() ([]byte, error) {
	return encodeJSON(m)
}

// LoadTimingMap reads a JSON timing map from disk.
func LoadTimingMap(path string) (*TimingMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing map %s: %w", path, err)
	}

	return DecodeTimingMap(data)
}

// Save writes the map to path as JSON.
func (m *TimingMap) Save(path string) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}

	err = os.WriteFile(path, data, timingFileMode)
	if err != nil {
		return fmt.Errorf("failed to write timing map %s: %w", path, err)
	}

	return nil
}
