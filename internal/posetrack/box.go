package posetrack

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/book-expert/logger"
)

// BoxStride samples every fifth video frame.
const BoxStride = 5

// MethodBox names tracks produced by BoxTracker.
const MethodBox = "box"

// Face displacement from the image centre maps to rotation by these gains. Roll cannot
// be recovered from a bounding box.
const (
	boxYawGain   = 0.6
	boxPitchGain = 0.5
)

// Box is a face bounding box in pixels: x, y, width, height.
type Box [4]float64

// BoxFrame is one frame of face detections.
type BoxFrame struct {
	Index int   `json:"index"`
	Faces []Box `json:"faces"`
}

// BoxTracker is the coarse fallback: it estimates rotation from how far the largest
// detected face sits from the frame centre.
type BoxTracker struct {
	binary      string
	probeBinary string
	log         *logger.Logger
}

// NewBoxTracker creates a tracker that runs binary, probing timing with probeBinary.
func NewBoxTracker(binary, probeBinary string, log *logger.Logger) *BoxTracker {
	return &BoxTracker{binary: binary, probeBinary: probeBinary, log: log}
}

// Name implements Extractor.
func (b *BoxTracker) Name() string {
	return MethodBox
}

// Extract implements Extractor.
func (b *BoxTracker) Extract(ctx context.Context, videoPath string) (Track, error) {
	b.log.Info("Extracting face-box pose track from %s", videoPath)

	output, err := runTracker(ctx, b.binary, videoPath, BoxStride)
	if err != nil {
		return Track{}, err
	}

	var report trackerReport[BoxFrame]

	err = json.Unmarshal(output, &report)
	if err != nil {
		return Track{}, fmt.Errorf("failed to parse face-box report: %w", err)
	}

	if report.Width <= 0 || report.Height <= 0 {
		info, probeErr := Probe(ctx, b.probeBinary, videoPath)
		if probeErr != nil {
			return Track{}, fmt.Errorf("failed to determine frame size: %w", probeErr)
		}

		report.Width, report.Height = info.Width, info.Height
		if report.FPS <= 0 {
			report.FPS = info.FPS
		}
	}

	track, err := tracksFromBoxes(report)
	if err != nil {
		return Track{}, err
	}

	track.FPS, err = resolveTiming(ctx, b.probeBinary, videoPath, track.FPS)
	if err != nil {
		return Track{}, err
	}

	b.log.Info("Analyzed %d frames at %.2f fps", track.Len(), track.FPS)

	return track, nil
}

// ParseBoxes converts a face-box report into a Track. The report must carry the frame size.
func ParseBoxes(data []byte) (Track, error) {
	var report trackerReport[BoxFrame]

	err := json.Unmarshal(data, &report)
	if err != nil {
		return Track{}, fmt.Errorf("failed to parse face-box report: %w", err)
	}

	return tracksFromBoxes(report)
}

func tracksFromBoxes(report trackerReport[BoxFrame]) (Track, error) {
	if report.Width <= 0 || report.Height <= 0 {
		return Track{}, fmt.Errorf("face-box report has invalid frame size %dx%d", report.Width, report.Height)
	}

	width, height := float64(report.Width), float64(report.Height)
	track := Track{FPS: report.FPS, Stride: BoxStride, Method: MethodBox}

	for _, frame := range report.Frames {
		face, ok := largest(frame.Faces)
		if !ok {
			continue
		}

		centreX := (face[0]+face[2]/2)/width - 0.5
		centreY := (face[1]+face[3]/2)/height - 0.5

		track.append(centreX*boxYawGain, centreY*boxPitchGain, 0)
	}

	return checkDetections(track)
}

func largest(faces []Box) (Box, bool) {
	var (
		best     Box
		bestArea = -1.0
	)

	for _, face := range faces {
		if area := face[2] * face[3]; area > bestArea {
			best, bestArea = face, area
		}
	}

	return best, bestArea >= 0
}
