package motion

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/book-expert/motion-governor/internal/style"
)

// Intent thresholds.
const (
	PauseThreshold    = 0.1
	EmphasisThreshold = 1.05
	neutralIntent     = 1.0
)

// Latent gating maps fused intent in [0, latentIntentCeil] onto [latentFloor, latentFloor+latentSpan*ceil].
const (
	latentIntentCeil = 1.2
	latentFloor      = 0.7
	latentSpan       = 0.25
)

var (
	// ErrProcessing marks a failure inside the per-frame pipeline. Callers may fall back
	// to the ungoverned coefficients.
	ErrProcessing = errors.New("motion processing failed")
	// ErrNonFinite means a governed frame contained NaN or Inf.
	ErrNonFinite = errors.New("non-finite coefficient")
)

// ProcessingError reports the frame at which the pipeline failed.
type ProcessingError struct {
	Frame int
	Cause error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%v at frame %d: %v", ErrProcessing, e.Frame, e.Cause)
}

func (e *ProcessingError) Unwrap() []error {
	return []error{ErrProcessing, e.Cause}
}

// FrameState is the smoothing memory carried from one frame to the next. The zero value
// is the start of a run: the first frame bypasses blending.
type FrameState struct {
	Pose [3]float64
	Expr []float64
	Set  bool
}

// Frame is one frame of raw input to Step.
type Frame struct {
	Pose        [3]float64
	Expr        []float64
	Intent      float64
	SentenceEnd bool
}

// FrameResult is one governed frame.
type FrameResult struct {
	Pose     [3]float64
	Expr     []float64
	Pause    bool
	Emphasis bool
}

// Step governs a single frame and returns the state for the next one.
func Step(p style.Profile, state FrameState, in Frame) (FrameResult, FrameState) {
	intent := in.Intent
	pause := intent < PauseThreshold
	emphasis := intent > EmphasisThreshold

	poseMax := p.PoseMax.Vector()
	poseScale := p.PoseScale.Vector()

	var pose [3]float64
	for axis := range pose {
		pose[axis] = clamp(in.Pose[axis], poseMax[axis]) * poseScale[axis] * intent
	}

	expr := make([]float64, len(in.Expr))
	for i, v := range in.Expr {
		expr[i] = clamp(v, p.ExprMax) * p.ExprStrength * intent
	}

	if state.Set {
		alpha := 1 - p.Smoothing

		for axis := range pose {
			pose[axis] = alpha*pose[axis] + (1-alpha)*state.Pose[axis]
		}

		for i := range expr {
			expr[i] = alpha*expr[i] + (1-alpha)*state.Expr[i]
		}
	}

	if pause {
		poseHold := 1 - p.StillnessOnPause
		exprHold := 1 - p.StillnessExprOnPause

		for axis := range pose {
			pose[axis] *= poseHold
		}

		for i := range expr {
			expr[i] *= exprHold
		}
	}

	// The nod lands after smoothing and then decays through the carried state.
	if in.SentenceEnd && p.NodRate > 0 {
		pose[style.AxisPitch] += p.NodAmplitude
	}

	next := FrameState{Pose: pose, Expr: expr, Set: true}

	return FrameResult{Pose: pose, Expr: expr, Pause: pause, Emphasis: emphasis}, next
}

func clamp(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

// gateLatent scales every row of coeffs uniformly by its remapped intent.
func gateLatent(coeffs *mat.Dense, intent []float64) *mat.Dense {
	out := mat.DenseCopyOf(coeffs)
	if intent == nil {
		return out
	}

	rows, _ := out.Dims()
	for t := range rows {
		clamped := math.Max(0, math.Min(latentIntentCeil, intent[t]))
		row := out.RawRowView(t)

		for i := range row {
			row[i] *= latentFloor + latentSpan*clamped
		}
	}

	return out
}

// governParametric runs the full per-frame pipeline over the pose and expression
// columns of coeffs. Columns outside those ranges are copied unchanged.
func governParametric(
	p style.Profile,
	schema ParametricSchema,
	coeffs *mat.Dense,
	intent []float64,
	sentenceEnds []int,
) (out *mat.Dense, err error) {
	out = mat.DenseCopyOf(coeffs)
	rows, _ := out.Dims()

	boundaries := make(map[int]struct{}, len(sentenceEnds))
	for _, frame := range sentenceEnds {
		boundaries[frame] = struct{}{}
	}

	frame := 0

	defer func() {
		if recovered := recover(); recovered != nil {
			out = nil
			err = &ProcessingError{Frame: frame, Cause: fmt.Errorf("panic: %v", recovered)}
		}
	}()

	var state FrameState

	for frame = 0; frame < rows; frame++ {
		row := out.RawRowView(frame)

		in := Frame{Intent: neutralIntent}
		if intent != nil {
			in.Intent = intent[frame]
		}

		_, in.SentenceEnd = boundaries[frame]
		in.Expr = row[schema.Expression.Start:schema.Expression.End]

		if schema.HasPose {
			copy(in.Pose[:], row[schema.Pose.Start:schema.Pose.End])
		}

		var result FrameResult
		result, state = Step(p, state, in)

		if !finite(result.Pose[:]) || !finite(result.Expr) {
			return nil, &ProcessingError{Frame: frame, Cause: ErrNonFinite}
		}

		copy(row[schema.Expression.Start:schema.Expression.End], result.Expr)

		if schema.HasPose {
			copy(row[schema.Pose.Start:schema.Pose.End], result.Pose[:])
		}
	}

	return out, nil
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}
