package style_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/motion-governor/internal/style"
)

func TestPresets(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"calm_tech", "energetic", "lecturer"}, style.PresetNames())

	for _, name := range style.PresetNames() {
		p, err := style.Preset(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.Name)
		require.NoError(t, p.Validate(), "preset %s", name)
		assert.True(t, style.IsPreset(name))
	}

	assert.Equal(t, style.PresetCalmTech, style.Default().Name)
	assert.Zero(t, style.Default().NodRate)

	energetic, err := style.Preset(style.PresetEnergetic)
	require.NoError(t, err)
	assert.Less(t, energetic.Smoothing, style.Default().Smoothing)
	assert.Positive(t, energetic.NodRate)
}

func TestPreset_Unknown(t *testing.T) {
	t.Parallel()

	_, err := style.Preset("sleepy")
	require.ErrorIs(t, err, style.ErrUnknownPreset)
	assert.False(t, style.IsPreset("sleepy"))
}

func TestWithHelpersCopy(t *testing.T) {
	t.Parallel()

	base := style.Default()
	renamed := base.WithName("mine").WithNod(0.4, 0.07)

	assert.Equal(t, "mine", renamed.Name)
	assert.InDelta(t, 0.4, renamed.NodRate, 1e-12)
	assert.InDelta(t, 0.07, renamed.NodAmplitude, 1e-12)
	assert.Equal(t, style.PresetCalmTech, base.Name, "the receiver is unchanged")
	assert.Equal(t, style.Default(), base)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		modify func(*style.Profile)
	}{
		{"smoothing of one", func(p *style.Profile) { p.Smoothing = 1 }},
		{"negative smoothing", func(p *style.Profile) { p.Smoothing = -0.1 }},
		{"stillness above one", func(p *style.Profile) { p.StillnessOnPause = 1.2 }},
		{"negative expression stillness", func(p *style.Profile) { p.StillnessExprOnPause = -0.5 }},
		{"negative pose max", func(p *style.Profile) { p.PoseMax.Roll = -1 }},
		{"negative strength", func(p *style.Profile) { p.ExprStrength = -1 }},
		{"nan scale", func(p *style.Profile) { p.PoseScale.Pitch = math.NaN() }},
		{"infinite amplitude", func(p *style.Profile) { p.NodAmplitude = math.Inf(1) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			p := style.Default()
			tc.modify(&p)

			require.ErrorIs(t, p.Validate(), style.ErrInvalidProfile)
		})
	}
}

func TestAxesVector(t *testing.T) {
	t.Parallel()

	axes := style.Axes{Yaw: 1, Pitch: 2, Roll: 3}
	v := axes.Vector()

	assert.InDelta(t, 1.0, v[style.AxisYaw], 0)
	assert.InDelta(t, 2.0, v[style.AxisPitch], 0)
	assert.InDelta(t, 3.0, v[style.AxisRoll], 0)
}
