// Package audio derives a coarse speech/silence intent signal from a synthesized
// speech waveform.
//
// Energy is measured as short-time RMS with one hop per video frame, thresholded against
// a self-calibrating silence level and resampled to the motion frame count.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/book-expert/logger"
	"github.com/go-audio/wav"
	"gonum.org/v1/gonum/stat"
)

// Default analysis settings.
const (
	DEFAULT_FPS                = 25.0
	DEFAULT_FRAME_LENGTH       = 2048
	DEFAULT_SILENCE_PERCENTILE = 20.0
	DEFAULT_SILENCE_FACTOR     = 1.5
)

// Mask levels.
const (
	SPEECH_LEVEL  = 1.0
	SILENCE_LEVEL = 0.05
)

// Limits for option validation.
const (
	MAX_FPS          = 240.0
	MAX_FRAME_LENGTH = 1 << 16
)

const (
	ERR_FMT_FPS_RANGE          = "%w: fps must be in (0, %.0f]"
	ERR_FMT_FRAME_LENGTH_RANGE = "%w: frame length must be between 1 and %d samples"
	ERR_FMT_PERCENTILE_RANGE   = "%w: silence percentile must be in [0, 100]"
	ERR_FMT_FACTOR_NEGATIVE    = "%w: silence factor must be non-negative"
	ERR_FMT_HOP_TOO_SMALL      = "%w: sample rate %d Hz is too low for %.2f fps"
)

var (
	// ErrInvalidOptions indicates analysis options out of range.
	ErrInvalidOptions = errors.New("invalid audio analysis options")
	// ErrUnsupportedFormat is returned for input that is not a PCM WAV file.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrNoSamples is returned for a waveform without samples.
	ErrNoSamples = errors.New("audio contains no samples")
)

// Options controls energy analysis.
type Options struct {
	FPS               float64 `json:"fps"`
	FrameLength       int     `json:"frameLength"`
	SilencePercentile float64 `json:"silencePercentile"`
	SilenceFactor     float64 `json:"silenceFactor"`
}

// NewDefaultOptions returns the default analysis options for the given frame rate.
func NewDefaultOptions(fps float64) Options {
	return Options{
		FPS:               fps,
		FrameLength:       DEFAULT_FRAME_LENGTH,
		SilencePercentile: DEFAULT_SILENCE_PERCENTILE,
		SilenceFactor:     DEFAULT_SILENCE_FACTOR,
	}
}

// Validate checks that options are within reasonable bounds.
func (o *Options) Validate() error {
	fpsErr := validateFPS(o.FPS)
	if fpsErr != nil {
		return fpsErr
	}

	frameLengthErr := validateFrameLength(o.FrameLength)
	if frameLengthErr != nil {
		return frameLengthErr
	}

	percentileErr := validatePercentile(o.SilencePercentile)
	if percentileErr != nil {
		return percentileErr
	}

	return validateFactor(o.SilenceFactor)
}

// Analyzer builds audio intent masks.
type Analyzer struct {
	opts Options
	log  *logger.Logger
}

// NewAnalyzer creates an Analyzer with validated options.
func NewAnalyzer(opts Options, log *logger.Logger) (*Analyzer, error) {
	err := opts.Validate()
	if err != nil {
		return nil, err
	}

	return &Analyzer{opts: opts, log: log}, nil
}

// Options returns the analyzer settings.
func (a *Analyzer) Options() Options {
	return a.opts
}

// Mask decodes a WAV stream and returns a speech/silence mask of exactly numFrames values.
func (a *Analyzer) Mask(source io.ReadSeeker, numFrames int) ([]float64, error) {
	samples, sampleRate, err := decodeMono(source)
	if err != nil {
		return nil, err
	}

	hop := int(float64(sampleRate) / a.opts.FPS)
	if hop < 1 {
		return nil, fmt.Errorf(ERR_FMT_HOP_TOO_SMALL, ErrInvalidOptions, sampleRate, a.opts.FPS)
	}

	energy := RMS(samples, a.opts.FrameLength, hop)
	threshold := SilenceThreshold(energy, a.opts.SilencePercentile, a.opts.SilenceFactor)

	levels := make([]float64, len(energy))
	for i, e := range energy {
		levels[i] = SILENCE_LEVEL
		if e >= threshold {
			levels[i] = SPEECH_LEVEL
		}
	}

	return Resample(levels, numFrames), nil
}

// MaskOrUniform is Mask with failures absorbed: any analysis error yields an all-speech
// mask, since audio intent is a refinement and never a hard dependency.
func (a *Analyzer) MaskOrUniform(source io.ReadSeeker, numFrames int) []float64 {
	mask, err := a.Mask(source, numFrames)
	if err != nil {
		a.log.Warn("Audio intent analysis failed, assuming speech on all %d frames: %v", numFrames, err)

		return Uniform(numFrames)
	}

	pauses := 0

	for _, v := range mask {
		if v < SPEECH_LEVEL/10 {
			pauses++
		}
	}

	a.log.Info("Audio intent: %d/%d pause frames", pauses, numFrames)

	return mask
}

// MaskFromFile builds a mask from a WAV file, absorbing failures like MaskOrUniform.
func (a *Analyzer) MaskFromFile(path string, numFrames int) []float64 {
	data, err := os.ReadFile(path)
	if err != nil {
		a.log.Warn("Failed to read audio '%s', assuming speech on all frames: %v", path, err)

		return Uniform(numFrames)
	}

	return a.MaskOrUniform(bytes.NewReader(data), numFrames)
}

// Uniform returns an all-speech mask.
func Uniform(numFrames int) []float64 {
	if numFrames < 0 {
		numFrames = 0
	}

	mask := make([]float64, numFrames)
	for i := range mask {
		mask[i] = SPEECH_LEVEL
	}

	return mask
}

// RMS computes centred short-time root-mean-square energy. The signal is zero padded by
// half a frame on each side, giving 1 + len(samples)/hop frames.
func RMS(samples []float64, frameLength, hop int) []float64 {
	if frameLength < 1 || hop < 1 {
		return nil
	}

	pad := frameLength / 2
	padded := len(samples) + 2*pad

	// prefix[i] is the sum of squares of padded[0:i].
	prefix := make([]float64, padded+1)
	for i := range padded {
		v := 0.0
		if idx := i - pad; idx >= 0 && idx < len(samples) {
			v = samples[idx]
		}

		prefix[i+1] = prefix[i] + v*v
	}

	count := 1 + len(samples)/hop
	energy := make([]float64, count)

	for i := range energy {
		start := i * hop
		end := min(start+frameLength, padded)
		energy[i] = math.Sqrt(math.Max(0, prefix[end]-prefix[start]) / float64(frameLength))
	}

	return energy
}

// SilenceThreshold returns factor times the given percentile of energy.
func SilenceThreshold(energy []float64, percentile, factor float64) float64 {
	if len(energy) == 0 {
		return 0
	}

	sorted := append([]float64(nil), energy...)
	sort.Float64s(sorted)

	return factor * stat.Quantile(percentile/100, stat.LinInterp, sorted, nil)
}

// Resample maps x onto n samples by linear interpolation over normalized position.
func Resample(x []float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}

	out := make([]float64, n)

	switch {
	case len(x) == 0:
		return Uniform(n)
	case len(x) == n:
		copy(out, x)

		return out
	case len(x) == 1 || n == 1:
		for i := range out {
			out[i] = x[0]
		}

		return out
	}

	last := float64(len(x) - 1)

	for j := range out {
		pos := float64(j) / float64(n-1) * last
		lo := int(math.Floor(pos))

		if lo >= len(x)-1 {
			out[j] = x[len(x)-1]

			continue
		}

		frac := pos - float64(lo)
		out[j] = x[lo] + frac*(x[lo+1]-x[lo])
	}

	return out
}

// decodeMono decodes a PCM WAV stream and averages its channels.
func decodeMono(source io.ReadSeeker) ([]float64, int, error) {
	decoder := wav.NewDecoder(source)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: not a valid PCM WAV stream", ErrUnsupportedFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read PCM buffer: %w", err)
	}

	if buf == nil || buf.Format == nil {
		return nil, 0, fmt.Errorf("%w: missing format chunk", ErrUnsupportedFormat)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, 0, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}

	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, 0, ErrNoSamples
	}

	mono := make([]float64, frames)
	for i := range mono {
		sum := 0
		for c := range channels {
			sum += buf.Data[i*channels+c]
		}

		mono[i] = float64(sum) / float64(channels)
	}

	return mono, buf.Format.SampleRate, nil
}

//
// Validation Helpers
//

func validateFPS(fps float64) error {
	if !(fps > 0 && fps <= MAX_FPS) {
		return fmt.Errorf(ERR_FMT_FPS_RANGE, ErrInvalidOptions, MAX_FPS)
	}

	return nil
}

func validateFrameLength(frameLength int) error {
	if frameLength < 1 || frameLength > MAX_FRAME_LENGTH {
		return fmt.Errorf(ERR_FMT_FRAME_LENGTH_RANGE, ErrInvalidOptions, MAX_FRAME_LENGTH)
	}

	return nil
}

func validatePercentile(percentile float64) error {
	if !(percentile >= 0 && percentile <= 100) {
		return fmt.Errorf(ERR_FMT_PERCENTILE_RANGE, ErrInvalidOptions)
	}

	return nil
}

func validateFactor(factor float64) error {
	if !(factor >= 0) {
		return fmt.Errorf(ERR_FMT_FACTOR_NEGATIVE, ErrInvalidOptions)
	}

	return nil
}
