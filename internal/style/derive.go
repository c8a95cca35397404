package style

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/book-expert/motion-governor/internal/posetrack"
)

// Reference standard deviations that map to a full (1.0) pose scale per axis.
const (
	referenceYawStd   = 0.3 / 0.8
	referencePitchStd = 0.2 / 0.7
	referenceRollStd  = 0.15 / 0.6
)

const (
	poseMaxPercentile   = 0.95
	minPoseScale        = 0.3
	maxPoseScale        = 1.0
	flatRollStd         = 0.01
	flatRollPoseMax     = 0.2
	flatRollPoseScale   = 0.4
	lowMotionEnergy     = 0.3
	mediumMotionEnergy  = 0.6
	minNodRate          = 0.1
	fallbackNodAmp      = 0.05
	nodAmplitudeOfStd   = 0.5
	derivedExprMax      = 3.0
	exprStillnessMargin = 0.05
)

// ErrTrackMismatch means the three axis series of a track differ in length.
var ErrTrackMismatch = errors.New("pose track axes have different lengths")

// motionBucket is the smoothing/stillness/expression regime chosen by motion energy.
type motionBucket struct {
	smoothing    float64
	stillness    float64
	exprStrength float64
}

var (
	calmBucket     = motionBucket{smoothing: 0.85, stillness: 0.90, exprStrength: 0.6}
	moderateBucket = motionBucket{smoothing: 0.70, stillness: 0.75, exprStrength: 0.8}
	dynamicBucket  = motionBucket{smoothing: 0.60, stillness: 0.60, exprStrength: 1.0}
)

// Derive builds a profile from the head-rotation statistics of a reference track.
//
// Limits come from the 95th percentile of absolute angles so a single extreme frame
// cannot widen the whole profile.
func Derive(track posetrack.Track, name string) (Profile, error) {
	n := track.Len()
	if len(track.Pitch) != n || len(track.Roll) != n {
		return Profile{}, ErrTrackMismatch
	}

	if n < posetrack.MinDetections {
		return Profile{}, fmt.Errorf("%w: %d samples", posetrack.ErrInsufficientDetections, n)
	}

	_, yawStd := stat.PopMeanStdDev(track.Yaw, nil)
	_, pitchStd := stat.PopMeanStdDev(track.Pitch, nil)
	_, rollStd := stat.PopMeanStdDev(track.Roll, nil)

	poseMax := Axes{
		Yaw:   absPercentile(track.Yaw, poseMaxPercentile),
		Pitch: absPercentile(track.Pitch, poseMaxPercentile),
		Roll:  flatRollPoseMax,
	}

	poseScale := Axes{
		Yaw:   clampScale(yawStd / referenceYawStd),
		Pitch: clampScale(pitchStd / referencePitchStd),
		Roll:  flatRollPoseScale,
	}

	if rollStd > flatRollStd {
		poseMax.Roll = absPercentile(track.Roll, poseMaxPercentile)
		poseScale.Roll = clampScale(rollStd / referenceRollStd)
	}

	bucket := bucketFor(yawStd + pitchStd + rollStd)

	nodRate := estimateNodRate(track.Pitch, track.SampleRate())

	nodAmplitude := fallbackNodAmp
	if nodRate > minNodRate {
		nodAmplitude = pitchStd * nodAmplitudeOfStd
	}

	profile := Profile{
		Name:                 name,
		PoseMax:              poseMax,
		PoseScale:            poseScale,
		ExprMax:              derivedExprMax,
		ExprStrength:         bucket.exprStrength,
		Smoothing:            bucket.smoothing,
		StillnessOnPause:     bucket.stillness,
		StillnessExprOnPause: bucket.stillness + exprStillnessMargin,
		NodRate:              nodRate,
		NodAmplitude:         nodAmplitude,
	}

	validateErr := profile.Validate()
	if validateErr != nil {
		return Profile{}, fmt.Errorf("derived profile %q: %w", name, validateErr)
	}

	return profile, nil
}

func bucketFor(energy float64) motionBucket {
	switch {
	case energy < lowMotionEnergy:
		return calmBucket
	case energy < mediumMotionEnergy:
		return moderateBucket
	default:
		return dynamicBucket
	}
}

func clampScale(v float64) float64 {
	return math.Max(minPoseScale, math.Min(maxPoseScale, v))
}

// absPercentile returns the p-quantile of |x|.
func absPercentile(x []float64, p float64) float64 {
	abs := make([]float64, len(x))
	for i, v := range x {
		abs[i] = math.Abs(v)
	}

	sort.Float64s(abs)

	return stat.Quantile(p, stat.LinInterp, abs, nil)
}

// estimateNodRate counts reversals of pitch direction per second of track time.
func estimateNodRate(pitch []float64, sampleRate float64) float64 {
	if sampleRate <= 0 || len(pitch) < 3 {
		return 0
	}

	changes := 0
	prevSign := 0.0

	for i := 1; i < len(pitch); i++ {
		sign := signum(pitch[i] - pitch[i-1])
		if i > 1 && sign != prevSign {
			changes++
		}

		prevSign = sign
	}

	seconds := float64(len(pitch)) / sampleRate

	return float64(changes) / seconds
}

func signum(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
