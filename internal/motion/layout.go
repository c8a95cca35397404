// Package motion governs raw per-frame facial motion coefficients.
//
// A governance call classifies the coefficient matrix layout, builds and reconciles the
// audio and script intent masks against the motion frame count, fuses them and runs
// either the latent scalar gate or the full parametric pipeline
// (clamp, intent gate, style scale, smoothing, pause and boundary overrides).
package motion

import (
	"errors"
	"fmt"
)

// DefaultCompactCutoff is the column count below which coefficients are treated as
// latent and may only be scaled uniformly.
const DefaultCompactCutoff = 200

// Column contract of the upstream motion-proposal generator.
const (
	fullSchemaDims    = 224
	fullPoseDims      = 227
	compactSchemaDims = 67

	fullExprStart    = 80
	fullPoseStart    = 224
	compactExprStart = 0
	compactPoseStart = 64

	expressionWidth = 64
	poseWidth       = 3
)

// ErrUnsupportedLayout means the coefficient dimensionality matches no known schema.
var ErrUnsupportedLayout = errors.New("unsupported coefficient layout")

// ColumnRange is a half-open column interval [Start, End).
type ColumnRange struct {
	Start int
	End   int
}

// Width returns the number of columns in the range.
func (r ColumnRange) Width() int {
	return r.End - r.Start
}

func (r ColumnRange) String() string {
	return fmt.Sprintf("[%d:%d)", r.Start, r.End)
}

// Layout is the classification of one coefficient matrix.
type Layout struct {
	Dims          int
	HasExpression bool
	Expression    ColumnRange
	HasPose       bool
	Pose          ColumnRange
	Compact       bool
}

func (l Layout) String() string {
	kind := "full"
	if l.Compact {
		kind = "compact"
	}

	pose := "none"
	if l.HasPose {
		pose = l.Pose.String()
	}

	return fmt.Sprintf("%s(%d dims, expr=%s, pose=%s)", kind, l.Dims, l.Expression, pose)
}

// Schema is the processing variant selected by a Layout: LatentSchema or ParametricSchema.
type Schema interface {
	schema()
}

// LatentSchema coefficients are not interpretable per column; only a uniform row
// multiplier keeps them inside the decoder's operating range.
type LatentSchema struct {
	Dims int
}

// ParametricSchema coefficients hold expression and pose parameters that may be
// clamped and scaled individually.
type ParametricSchema struct {
	Expression ColumnRange
	Pose       ColumnRange
	HasPose    bool
}

func (LatentSchema) schema()     {}
func (ParametricSchema) schema() {}

// Schema resolves the processing variant for the layout.
func (l Layout) Schema() Schema {
	if l.Compact {
		return LatentSchema{Dims: l.Dims}
	}

	return ParametricSchema{Expression: l.Expression, Pose: l.Pose, HasPose: l.HasPose}
}

// DetectLayout classifies a coefficient matrix by its column count. compactCutoff
// values below one fall back to DefaultCompactCutoff.
func DetectLayout(dims, compactCutoff int) (Layout, error) {
	if compactCutoff < 1 {
		compactCutoff = DefaultCompactCutoff
	}

	layout := Layout{Dims: dims, Compact: dims < compactCutoff}

	switch {
	case dims >= fullSchemaDims:
		layout.HasExpression = true
		layout.Expression = ColumnRange{Start: fullExprStart, End: fullExprStart + expressionWidth}

		if dims >= fullPoseDims {
			layout.HasPose = true
			layout.Pose = ColumnRange{Start: fullPoseStart, End: fullPoseStart + poseWidth}
		}
	case dims >= compactSchemaDims:
		layout.HasExpression = true
		layout.Expression = ColumnRange{Start: compactExprStart, End: compactExprStart + expressionWidth}
		layout.HasPose = true
		layout.Pose = ColumnRange{Start: compactPoseStart, End: compactPoseStart + poseWidth}
	default:
		return Layout{}, fmt.Errorf("%w: %d dimensions", ErrUnsupportedLayout, dims)
	}

	return layout, nil
}
