// Package style defines the Style Profile: the named, immutable bundle of constants that
// controls how raw motion coefficients are clamped, scaled, smoothed and held still.
//
// Profiles come from three places: the hand-authored presets in this file, a serialized
// record on disk (see codec.go), or statistics of a reference video (see derive.go).
// Once constructed a Profile is a plain value; it is never mutated and may be shared
// across concurrent governance calls.
package style

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Preset names.
const (
	PresetCalmTech  = "calm_tech"
	PresetEnergetic = "energetic"
	PresetLecturer  = "lecturer"
)

// Axis indices into a pose vector.
const (
	AxisYaw = iota
	AxisPitch
	AxisRoll
)

const (
	errFmtSmoothingRange = "%w: smoothing must be in [0, 1), got %g"
	errFmtStillnessRange = "%w: %s must be in [0, 1], got %g"
	errFmtNegative       = "%w: %s must be non-negative, got %g"
	errFmtNotFinite      = "%w: %s is not a finite number"
)

var (
	// ErrInvalidProfile indicates a profile whose constants are out of range.
	ErrInvalidProfile = errors.New("invalid style profile")
	// ErrUnknownPreset is returned when a preset name is not registered.
	ErrUnknownPreset = errors.New("unknown style preset")
)

// Axes holds one value per head-rotation axis.
type Axes struct {
	Yaw   float64 `json:"yaw"   toml:"yaw"   yaml:"yaw"`
	Pitch float64 `json:"pitch" toml:"pitch" yaml:"pitch"`
	Roll  float64 `json:"roll"  toml:"roll"  yaml:"roll"`
}

// Vector returns the axes in yaw, pitch, roll order.
func (a Axes) Vector() [3]float64 {
	return [3]float64{a.Yaw, a.Pitch, a.Roll}
}

// Profile is a named set of governance constants.
type Profile struct {
	Name string `json:"name" toml:"name" yaml:"name"`

	// Pose limits and amplitude scale, in the motion model's native angle units.
	PoseMax   Axes `json:"pose_max"   toml:"pose_max"   yaml:"pose_max"`
	PoseScale Axes `json:"pose_scale" toml:"pose_scale" yaml:"pose_scale"`

	ExprMax      float64 `json:"expr_max"      toml:"expr_max"      yaml:"expr_max"`
	ExprStrength float64 `json:"expr_strength" toml:"expr_strength" yaml:"expr_strength"`

	// Smoothing in [0, 1); higher means heavier temporal smoothing.
	Smoothing float64 `json:"smoothing" toml:"smoothing" yaml:"smoothing"`

	StillnessOnPause     float64 `json:"stillness_on_pause"      toml:"stillness_on_pause"      yaml:"stillness_on_pause"`
	StillnessExprOnPause float64 `json:"stillness_expr_on_pause" toml:"stillness_expr_on_pause" yaml:"stillness_expr_on_pause"`

	// NodRate is in nods per second; zero disables sentence-boundary nods.
	NodRate      float64 `json:"nod_rate"      toml:"nod_rate"      yaml:"nod_rate"`
	NodAmplitude float64 `json:"nod_amplitude" toml:"nod_amplitude" yaml:"nod_amplitude"`
}

var presets = map[string]Profile{
	PresetCalmTech: {
		Name:                 PresetCalmTech,
		PoseMax:              Axes{Yaw: 0.25, Pitch: 0.15, Roll: 0.15},
		PoseScale:            Axes{Yaw: 0.5, Pitch: 0.4, Roll: 0.3},
		ExprMax:              3.0,
		ExprStrength:         0.6,
		Smoothing:            0.80,
		StillnessOnPause:     0.90,
		StillnessExprOnPause: 0.92,
		NodRate:              0.0,
		NodAmplitude:         0.05,
	},
	PresetEnergetic: {
		Name:                 PresetEnergetic,
		PoseMax:              Axes{Yaw: 0.5, Pitch: 0.4, Roll: 0.3},
		PoseScale:            Axes{Yaw: 0.9, Pitch: 0.8, Roll: 0.7},
		ExprMax:              3.0,
		ExprStrength:         1.1,
		Smoothing:            0.60,
		StillnessOnPause:     0.60,
		StillnessExprOnPause: 0.70,
		NodRate:              0.3,
		NodAmplitude:         0.08,
	},
	PresetLecturer: {
		Name:                 PresetLecturer,
		PoseMax:              Axes{Yaw: 0.35, Pitch: 0.25, Roll: 0.2},
		PoseScale:            Axes{Yaw: 0.7, Pitch: 0.6, Roll: 0.5},
		ExprMax:              3.0,
		ExprStrength:         0.8,
		Smoothing:            0.70,
		StillnessOnPause:     0.75,
		StillnessExprOnPause: 0.85,
		NodRate:              0.2,
		NodAmplitude:         0.06,
	},
}

// Default returns the calm_tech preset.
func Default() Profile {
	return presets[PresetCalmTech]
}

// Preset returns the named preset.
func Preset(name string) (Profile, error) {
	profile, ok := presets[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}

	return profile, nil
}

// IsPreset reports whether name refers to a built-in preset.
func IsPreset(name string) bool {
	_, ok := presets[name]

	return ok
}

// PresetNames returns the registered preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// WithName returns a copy of p carrying a different name.
func (p Profile) WithName(name string) Profile {
	p.Name = name

	return p
}

// WithNod returns a copy of p with the sentence-boundary nod parameters replaced.
func (p Profile) WithNod(rate, amplitude float64) Profile {
	p.NodRate = rate
	p.NodAmplitude = amplitude

	return p
}

// Validate checks that every constant is finite and inside its documented range.
func (p Profile) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"pose_max.yaw", p.PoseMax.Yaw},
		{"pose_max.pitch", p.PoseMax.Pitch},
		{"pose_max.roll", p.PoseMax.Roll},
		{"pose_scale.yaw", p.PoseScale.Yaw},
		{"pose_scale.pitch", p.PoseScale.Pitch},
		{"pose_scale.roll", p.PoseScale.Roll},
		{"expr_max", p.ExprMax},
		{"expr_strength", p.ExprStrength},
		{"nod_rate", p.NodRate},
	}

	for _, field := range fields {
		if math.IsNaN(field.value) || math.IsInf(field.value, 0) {
			return fmt.Errorf(errFmtNotFinite, ErrInvalidProfile, field.name)
		}

		if field.value < 0 {
			return fmt.Errorf(errFmtNegative, ErrInvalidProfile, field.name, field.value)
		}
	}

	if math.IsNaN(p.NodAmplitude) || math.IsInf(p.NodAmplitude, 0) {
		return fmt.Errorf(errFmtNotFinite, ErrInvalidProfile, "nod_amplitude")
	}

	if !(p.Smoothing >= 0 && p.Smoothing < 1) {
		return fmt.Errorf(errFmtSmoothingRange, ErrInvalidProfile, p.Smoothing)
	}

	stillness := []struct {
		name  string
		value float64
	}{
		{"stillness_on_pause", p.StillnessOnPause},
		{"stillness_expr_on_pause", p.StillnessExprOnPause},
	}

	for _, field := range stillness {
		if !(field.value >= 0 && field.value <= 1) {
			return fmt.Errorf(errFmtStillnessRange, ErrInvalidProfile, field.name, field.value)
		}
	}

	return nil
}
