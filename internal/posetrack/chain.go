package posetrack

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/logger"
)

// Chain tries extractors in order and returns the first successful track.
type Chain struct {
	extractors []Extractor
	log        *logger.Logger
}

// NewChain creates a Chain over the given extractors.
func NewChain(log *logger.Logger, extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors, log: log}
}

// NewDefaultChain prefers landmark tracking and falls back to face boxes.
func NewDefaultChain(landmarkBinary, boxBinary, probeBinary string, log *logger.Logger) *Chain {
	return NewChain(log,
		NewLandmarkTracker(landmarkBinary, probeBinary, log),
		NewBoxTracker(boxBinary, probeBinary, log),
	)
}

// Name implements Extractor.
func (c *Chain) Name() string {
	names := make([]string, 0, len(c.extractors))
	for _, extractor := range c.extractors {
		names = append(names, extractor.Name())
	}

	return strings.Join(names, "+")
}

// Extract implements Extractor.
func (c *Chain) Extract(ctx context.Context, videoPath string) (Track, error) {
	if len(c.extractors) == 0 {
		return Track{}, ErrNoExtractors
	}

	var errs []error

	for _, extractor := range c.extractors {
		track, err := extractor.Extract(ctx, videoPath)
		if err == nil {
			return track, nil
		}

		if ctx.Err() != nil {
			return Track{}, ctx.Err()
		}

		c.log.Warn("Pose extraction with %s failed: %v", extractor.Name(), err)
		errs = append(errs, fmt.Errorf("%s: %w", extractor.Name(), err))
	}

	return Track{}, fmt.Errorf("all pose extraction methods failed: %w", errors.Join(errs...))
}
