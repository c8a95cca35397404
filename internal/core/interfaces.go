// Package core defines the interfaces shared by the governor's service components.
package core

import (
	"context"
	"time"

	"github.com/book-expert/motion-governor/internal/style"
)

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// StyleResolver turns a style name into a usable profile.
type StyleResolver interface {
	Resolve(ctx context.Context, name string) (style.Profile, error)
}

// GovernanceRun is one ledger entry describing a completed governance call.
type GovernanceRun struct {
	RunID          string
	Style          string
	Frames         int
	Dims           int
	Compact        bool
	Governed       bool
	PauseFrames    int
	EmphasisFrames int
	CreatedAt      time.Time
}

// RunRecorder persists governance runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, run GovernanceRun) error
}
