package profilestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/logger"

	"github.com/book-expert/motion-governor/internal/pathutil"
	"github.com/book-expert/motion-governor/internal/style"
)

// Resolver resolves a style name against the presets, profile files and the registry,
// in that order. Anything it cannot resolve falls back to the default preset.
type Resolver struct {
	store    *Store
	fallback style.Profile
	log      *logger.Logger
}

// NewResolver creates a resolver. store may be nil, in which case only presets and
// files resolve.
func NewResolver(store *Store, log *logger.Logger) *Resolver {
	return &Resolver{store: store, fallback: style.Default(), log: log}
}

// WithFallback returns a copy of r that falls back to p instead of the default preset.
func (r *Resolver) WithFallback(p style.Profile) *Resolver {
	clone := *r
	clone.fallback = p

	return &clone
}

// Resolve returns the profile for name. An empty name yields the fallback. Only a
// cancelled context produces an error.
func (r *Resolver) Resolve(ctx context.Context, name string) (style.Profile, error) {
	if name == "" {
		return r.fallback, nil
	}

	if style.IsPreset(name) {
		return style.Preset(name)
	}

	if pathutil.IsProfileFile(name) {
		profile, err := r.fromFile(name)
		if err == nil {
			return profile, nil
		}

		r.log.Warn("Style file %s unusable, falling back to %s: %v", name, r.fallback.Name, err)

		return r.fallback, nil
	}

	if r.store != nil {
		entry, err := r.store.Get(ctx, name)
		if err == nil {
			return entry.Profile, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return style.Profile{}, fmt.Errorf("resolve style %q: %w", name, ctxErr)
		}

		if !errors.Is(err, ErrProfileNotFound) {
			r.log.Error("Profile registry lookup for %q failed: %v", name, err)
		}
	}

	r.log.Warn("Unknown style %q, falling back to %s", name, r.fallback.Name)

	return r.fallback, nil
}

func (r *Resolver) fromFile(path string) (style.Profile, error) {
	resolved, err := pathutil.ResolveStyleFile(path)
	if err != nil {
		return style.Profile{}, err
	}

	return style.Load(resolved)
}
