package motion

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/book-expert/logger"
	"gonum.org/v1/gonum/mat"

	"github.com/book-expert/motion-governor/internal/audio"
	"github.com/book-expert/motion-governor/internal/intent"
	"github.com/book-expert/motion-governor/internal/style"
)

// DefaultFPS is the motion stream frame rate of the upstream generator.
const DefaultFPS = 25.0

var (
	// ErrNoCoefficients is returned for a request without a coefficient matrix.
	ErrNoCoefficients = errors.New("no coefficients to govern")
	// ErrInvalidOptions indicates governor options out of range.
	ErrInvalidOptions = errors.New("invalid governor options")
)

// Options configures a Governor.
type Options struct {
	FPS           float64
	CompactCutoff int
	Audio         audio.Options
}

// DefaultOptions returns the standard options at DefaultFPS.
func DefaultOptions() Options {
	return Options{
		FPS:           DefaultFPS,
		CompactCutoff: DefaultCompactCutoff,
		Audio:         audio.NewDefaultOptions(DefaultFPS),
	}
}

// Request is the input to one governance call. Audio bytes take precedence over
// AudioPath; both and Timing are optional.
type Request struct {
	Coefficients *mat.Dense
	AudioPath    string
	Audio        []byte
	Timing       *intent.TimingMap
}

// Result is the outcome of one governance call.
type Result struct {
	Coefficients   *mat.Dense
	Layout         Layout
	Intent         []float64
	SentenceEnds   []int
	PauseFrames    int
	EmphasisFrames int
	// Governed is false when the coefficients are the ungoverned fallback.
	Governed bool
}

// Governor applies a style profile to motion coefficients. It holds no per-run state
// and is safe for concurrent use.
type Governor struct {
	profile  style.Profile
	opts     Options
	analyzer *audio.Analyzer
	log      *logger.Logger
}

// New creates a Governor for the given profile.
func New(profile style.Profile, opts Options, log *logger.Logger) (*Governor, error) {
	if !(opts.FPS > 0) {
		return nil, fmt.Errorf("%w: fps must be positive", ErrInvalidOptions)
	}

	if opts.CompactCutoff < 1 {
		opts.CompactCutoff = DefaultCompactCutoff
	}

	err := profile.Validate()
	if err != nil {
		return nil, err
	}

	opts.Audio.FPS = opts.FPS

	analyzer, err := audio.NewAnalyzer(opts.Audio, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio analyzer: %w", err)
	}

	return &Governor{profile: profile, opts: opts, analyzer: analyzer, log: log}, nil
}

// Profile returns the style profile the governor applies.
func (g *Governor) Profile() style.Profile {
	return g.profile
}

// Govern classifies the coefficients, builds the fused intent signal and runs the
// pipeline matching the layout. ErrUnsupportedLayout and *ProcessingError are returned
// as is; callers that must always produce output use GovernBestEffort.
func (g *Governor) Govern(req Request) (*Result, error) {
	result, err := g.prepare(req)
	if err != nil {
		return nil, err
	}

	governed, err := g.apply(result, req.Coefficients)
	if err != nil {
		return nil, err
	}

	result.Coefficients = governed
	result.Governed = true

	return result, nil
}

// GovernBestEffort is Govern with processing failures absorbed: the result then carries
// a copy of the original coefficients and Governed is false. Layout errors still fail.
func (g *Governor) GovernBestEffort(req Request) (*Result, error) {
	result, err := g.prepare(req)
	if err != nil {
		return nil, err
	}

	governed, err := g.apply(result, req.Coefficients)

	switch {
	case err == nil:
		result.Coefficients = governed
		result.Governed = true
	case errors.Is(err, ErrProcessing):
		g.log.Warn("Governance failed, returning original coefficients: %v", err)

		result.Coefficients = mat.DenseCopyOf(req.Coefficients)
	default:
		return nil, err
	}

	return result, nil
}

// prepare detects the layout and builds the reconciled, fused intent signal.
func (g *Governor) prepare(req Request) (*Result, error) {
	if req.Coefficients == nil || req.Coefficients.IsEmpty() {
		return nil, ErrNoCoefficients
	}

	frames, dims := req.Coefficients.Dims()

	layout, err := DetectLayout(dims, g.opts.CompactCutoff)
	if err != nil {
		return nil, err
	}

	g.log.Info("Governing %d frames, layout %s, style %s", frames, layout, g.profile.Name)

	var (
		wg           sync.WaitGroup
		audioMask    []float64
		scriptMask   []float64
		sentenceEnds []int
	)

	wg.Add(2)

	go func() {
		defer wg.Done()

		audioMask = g.audioMask(req, frames)
	}()

	go func() {
		defer wg.Done()

		if req.Timing == nil {
			return
		}

		scriptMask = req.Timing.BuildIntentMask()
		sentenceEnds = req.Timing.SentenceEndFrames()
	}()

	wg.Wait()

	audioMask = Reconcile(audioMask, frames)
	scriptMask = Reconcile(scriptMask, frames)

	if dropped := len(sentenceEnds); dropped > 0 {
		sentenceEnds = ReconcileFrames(sentenceEnds, frames)
		if dropped -= len(sentenceEnds); dropped > 0 {
			g.log.Info("Dropped %d sentence ends beyond frame %d", dropped, frames)
		}
	}

	fused := Reconcile(Fuse(audioMask, scriptMask), frames)
	stats := intent.Stats(fused)

	g.log.Info(
		"Intent sources: audio=%t script=%t; combined %d pause, %d emphasis frames",
		audioMask != nil, scriptMask != nil, stats.Pause, stats.Emphasis,
	)

	return &Result{
		Layout:         layout,
		Intent:         fused,
		SentenceEnds:   sentenceEnds,
		PauseFrames:    stats.Pause,
		EmphasisFrames: stats.Emphasis,
	}, nil
}

func (g *Governor) audioMask(req Request, frames int) []float64 {
	switch {
	case len(req.Audio) > 0:
		return g.analyzer.MaskOrUniform(bytes.NewReader(req.Audio), frames)
	case req.AudioPath != "":
		return g.analyzer.MaskFromFile(req.AudioPath, frames)
	default:
		return nil
	}
}

// apply runs the processing variant selected by the layout.
func (g *Governor) apply(result *Result, coeffs *mat.Dense) (*mat.Dense, error) {
	switch schema := result.Layout.Schema().(type) {
	case LatentSchema:
		return gateLatent(coeffs, result.Intent), nil
	case ParametricSchema:
		return governParametric(g.profile, schema, coeffs, result.Intent, result.SentenceEnds)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedLayout, schema)
	}
}
