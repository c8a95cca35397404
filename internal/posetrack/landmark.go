package posetrack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/book-expert/logger"
)

// LandmarkStride samples every third video frame.
const LandmarkStride = 3

// MethodLandmark names tracks produced by LandmarkTracker.
const MethodLandmark = "landmark"

// Geometric estimate: angular offsets are measured against 30% of the frame size and
// doubled.
const (
	landmarkSpan = 0.3
	landmarkGain = 2.0
)

var errIncompleteLandmarks = errors.New("landmark frame is missing points")

// Point is a normalized image coordinate in [0, 1].
type Point [2]float64

// LandmarkFrame is one tracked frame of face landmarks.
type LandmarkFrame struct {
	Index    int    `json:"index"`
	Nose     *Point `json:"nose"`
	Chin     *Point `json:"chin"`
	LeftEye  *Point `json:"left_eye"`
	RightEye *Point `json:"right_eye"`
}

// LandmarkTracker estimates head rotation from face landmarks reported by an external
// face-mesh binary.
type LandmarkTracker struct {
	binary      string
	probeBinary string
	log         *logger.Logger
}

// NewLandmarkTracker creates a tracker that runs binary, probing timing with probeBinary.
func NewLandmarkTracker(binary, probeBinary string, log *logger.Logger) *LandmarkTracker {
	return &LandmarkTracker{binary: binary, probeBinary: probeBinary, log: log}
}

// Name implements Extractor.
func (l *LandmarkTracker) Name() string {
	return MethodLandmark
}

// Extract implements Extractor.
func (l *LandmarkTracker) Extract(ctx context.Context, videoPath string) (Track, error) {
	l.log.Info("Extracting landmark pose track from %s", videoPath)

	output, err := runTracker(ctx, l.binary, videoPath, LandmarkStride)
	if err != nil {
		return Track{}, err
	}

	track, err := ParseLandmarks(output)
	if err != nil {
		return Track{}, err
	}

	track.FPS, err = resolveTiming(ctx, l.probeBinary, videoPath, track.FPS)
	if err != nil {
		return Track{}, err
	}

	l.log.Info("Extracted pose from %d frames at %.2f fps", track.Len(), track.FPS)

	return track, nil
}

// ParseLandmarks converts a landmark tracker report into a Track. Frames without a
// complete set of points are skipped.
func ParseLandmarks(data []byte) (Track, error) {
	var report trackerReport[LandmarkFrame]

	err := json.Unmarshal(data, &report)
	if err != nil {
		return Track{}, fmt.Errorf("failed to parse landmark report: %w", err)
	}

	width, height := float64(report.Width), float64(report.Height)
	if width <= 0 || height <= 0 {
		width, height = 1, 1
	}

	track := Track{FPS: report.FPS, Stride: LandmarkStride, Method: MethodLandmark}

	for _, frame := range report.Frames {
		yaw, pitch, roll, poseErr := PoseFromLandmarks(frame, width, height)
		if poseErr != nil {
			continue
		}

		track.append(yaw, pitch, roll)
	}

	return checkDetections(track)
}

// PoseFromLandmarks estimates yaw, pitch and roll from one frame's landmarks on a
// width × height image.
func PoseFromLandmarks(frame LandmarkFrame, width, height float64) (yaw, pitch, roll float64, err error) {
	if frame.Nose == nil || frame.LeftEye == nil || frame.RightEye == nil {
		return 0, 0, 0, errIncompleteLandmarks
	}

	noseX, noseY := frame.Nose[0]*width, frame.Nose[1]*height
	leftX, leftY := frame.LeftEye[0]*width, frame.LeftEye[1]*height
	rightX, rightY := frame.RightEye[0]*width, frame.RightEye[1]*height

	eyeX, eyeY := (leftX+rightX)/2, (leftY+rightY)/2

	yaw = math.Atan2(noseX-eyeX, width*landmarkSpan) * landmarkGain
	pitch = math.Atan2(noseY-eyeY, height*landmarkSpan) * landmarkGain
	roll = math.Atan2(rightY-leftY, rightX-leftX)

	return yaw, pitch, roll, nil
}
