package motion_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/motion-governor/internal/motion"
	"github.com/book-expert/motion-governor/internal/style"
)

func norm(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v * v
	}

	return math.Sqrt(sum)
}

func TestStep_FirstFrameBypassesSmoothing(t *testing.T) {
	t.Parallel()

	p := style.Default()
	in := motion.Frame{Pose: [3]float64{0.1, 0.1, 0.1}, Expr: []float64{1, -1}, Intent: 1}

	result, next := motion.Step(p, motion.FrameState{}, in)

	assert.InDelta(t, 0.1*p.PoseScale.Yaw, result.Pose[style.AxisYaw], 1e-12)
	assert.InDelta(t, 0.1*p.PoseScale.Pitch, result.Pose[style.AxisPitch], 1e-12)
	assert.InDelta(t, p.ExprStrength, result.Expr[0], 1e-12)
	assert.True(t, next.Set)
	assert.Equal(t, result.Pose, next.Pose)
}

func TestStep_ClampsAndSmooths(t *testing.T) {
	t.Parallel()

	p := style.Default()
	prev := motion.FrameState{Pose: [3]float64{0, 0, 0}, Expr: []float64{0}, Set: true}
	in := motion.Frame{Pose: [3]float64{5, 0, 0}, Expr: []float64{10}, Intent: 1}

	result, _ := motion.Step(p, prev, in)

	alpha := 1 - p.Smoothing
	assert.InDelta(t, alpha*p.PoseMax.Yaw*p.PoseScale.Yaw, result.Pose[style.AxisYaw], 1e-12)
	assert.InDelta(t, alpha*p.ExprMax*p.ExprStrength, result.Expr[0], 1e-12)
}

func TestStep_IntentFlags(t *testing.T) {
	t.Parallel()

	p := style.Default()

	pause, _ := motion.Step(p, motion.FrameState{}, motion.Frame{Expr: []float64{}, Intent: 0.05})
	assert.True(t, pause.Pause)
	assert.False(t, pause.Emphasis)

	emphasis, _ := motion.Step(p, motion.FrameState{}, motion.Frame{Expr: []float64{}, Intent: 1.2})
	assert.True(t, emphasis.Emphasis)
	assert.False(t, emphasis.Pause)
}

func TestStep_PauseDampsBelowSmoothedValue(t *testing.T) {
	t.Parallel()

	for _, name := range style.PresetNames() {
		p, err := style.Preset(name)
		require.NoError(t, err)

		withoutOverride := p
		withoutOverride.StillnessOnPause = 0
		withoutOverride.StillnessExprOnPause = 0

		prev := motion.FrameState{Pose: [3]float64{0.1, -0.05, 0.02}, Expr: []float64{0.8, -0.4, 0.3}, Set: true}
		in := motion.Frame{Pose: [3]float64{0.2, 0.1, -0.1}, Expr: []float64{1.5, 0.5, -2}, Intent: 0.05}

		governed, _ := motion.Step(p, prev, in)
		smoothed, _ := motion.Step(withoutOverride, prev, in)

		require.True(t, governed.Pause)
		assert.Less(t, norm(governed.Pose[:]), norm(smoothed.Pose[:]), "preset %s pose", name)
		assert.Less(t, norm(governed.Expr), norm(smoothed.Expr), "preset %s expression", name)
	}
}

func TestStep_NodDecaysThroughSmoother(t *testing.T) {
	t.Parallel()

	p := style.Default().WithNod(0.3, 0.05)
	in := motion.Frame{Pose: [3]float64{0, 0.1, 0}, Expr: []float64{}, Intent: 1}

	_, state := motion.Step(p, motion.FrameState{}, in)

	in.SentenceEnd = true
	nod, state := motion.Step(p, state, in)

	in.SentenceEnd = false
	after, _ := motion.Step(p, state, in)

	base := 0.1 * p.PoseScale.Pitch
	assert.InDelta(t, base+0.05, nod.Pose[style.AxisPitch], 1e-12)
	assert.InDelta(t, base+p.Smoothing*0.05, after.Pose[style.AxisPitch], 1e-12)
	assert.Less(t, nod.Pose[style.AxisPitch]-after.Pose[style.AxisPitch], 0.05)
}

func TestStep_NoNodWithoutRate(t *testing.T) {
	t.Parallel()

	p := style.Default()
	require.Zero(t, p.NodRate)

	in := motion.Frame{Pose: [3]float64{0, 0.1, 0}, Expr: []float64{}, Intent: 1, SentenceEnd: true}
	result, _ := motion.Step(p, motion.FrameState{}, in)

	assert.InDelta(t, 0.1*p.PoseScale.Pitch, result.Pose[style.AxisPitch], 1e-12)
}

func TestProcessingError(t *testing.T) {
	t.Parallel()

	err := &motion.ProcessingError{Frame: 7, Cause: motion.ErrNonFinite}

	require.ErrorIs(t, err, motion.ErrProcessing)
	require.ErrorIs(t, err, motion.ErrNonFinite)
	assert.Contains(t, err.Error(), "frame 7")
}
