package motion_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/motion-governor/internal/motion"
)

func ramp(n int) []float64 {
	mask := make([]float64, n)
	for i := range mask {
		mask[i] = 0.1 * float64(i+1)
	}

	return mask
}

func TestReconcile_Lengths(t *testing.T) {
	t.Parallel()

	for _, length := range []int{1, 5, 10, 17} {
		for _, target := range []int{0, 1, 7, 10, 23} {
			mask := ramp(length)
			aligned := motion.Reconcile(mask, target)

			require.Len(t, aligned, target, "L=%d T=%d", length, target)

			for i := range min(length, target) {
				assert.InDelta(t, mask[i], aligned[i], 0, "L=%d T=%d prefix %d", length, target, i)
			}

			for i := length; i < target; i++ {
				assert.InDelta(t, mask[length-1], aligned[i], 0, "L=%d T=%d pad %d", length, target, i)
			}
		}
	}
}

func TestReconcile_NilAndEqual(t *testing.T) {
	t.Parallel()

	assert.Nil(t, motion.Reconcile(nil, 10))
	assert.Nil(t, motion.Reconcile([]float64{}, 10))

	mask := ramp(4)
	aligned := motion.Reconcile(mask, 4)
	assert.Equal(t, mask, aligned)
}

func TestReconcile_DoesNotAliasInput(t *testing.T) {
	t.Parallel()

	mask := ramp(4)
	aligned := motion.Reconcile(mask, 6)
	aligned[0] = 42

	assert.InDelta(t, 0.1, mask[0], 1e-12)
}

func TestReconcileFrames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int{0, 25, 49}, motion.ReconcileFrames([]int{0, 25, 49, 50, 80, -1}, 50))
	assert.Nil(t, motion.ReconcileFrames(nil, 50))
	assert.Empty(t, motion.ReconcileFrames([]int{60}, 50))
}

func TestFuse(t *testing.T) {
	t.Parallel()

	a := []float64{1, 0.05, 1, 1}
	s := []float64{1.2, 1.2, 0, 1}

	assert.Equal(t, motion.Fuse(a, s), motion.Fuse(s, a), "fusion is commutative")
	assert.InDeltaSlice(t, []float64{1.2, 0.06, 0, 1}, motion.Fuse(a, s), 1e-12)

	assert.Equal(t, a, motion.Fuse(a, nil))
	assert.Equal(t, s, motion.Fuse(nil, s))
	assert.Nil(t, motion.Fuse(nil, nil))
}

func TestFuse_SilenceBeatsEmphasis(t *testing.T) {
	t.Parallel()

	fused := motion.Fuse([]float64{0.05}, []float64{1.3})
	assert.Less(t, fused[0], motion.PauseThreshold)
}
