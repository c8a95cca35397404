package profilestore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/motion-governor/internal/core"
	"github.com/book-expert/motion-governor/internal/profilestore"
	"github.com/book-expert/motion-governor/internal/style"
)

func openStore(t *testing.T) *profilestore.Store {
	t.Helper()

	store, err := profilestore.Open(filepath.Join(t.TempDir(), "db", "profiles.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "profilestore-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	return log
}

func houseStyle() style.Profile {
	return style.Default().WithName("house").WithNod(0.25, 0.04)
}

func TestStore_PutGet(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, houseStyle(), profilestore.SourceDerived))

	entry, err := store.Get(ctx, "house")
	require.NoError(t, err)

	assert.Equal(t, houseStyle(), entry.Profile)
	assert.Equal(t, profilestore.SourceDerived, entry.Source)
	assert.WithinDuration(t, time.Now(), entry.CreatedAt, time.Minute)
}

func TestStore_PutReplaces(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, houseStyle(), ""))
	require.NoError(t, store.Put(ctx, houseStyle().WithNod(0.5, 0.1), profilestore.SourceFile))

	entry, err := store.Get(ctx, "house")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, entry.Profile.NodRate, 1e-12)
	assert.Equal(t, profilestore.SourceFile, entry.Source)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_PutRejects(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	ctx := context.Background()

	err := store.Put(ctx, style.Default(), "")
	require.ErrorIs(t, err, profilestore.ErrPresetName)

	err = store.Put(ctx, houseStyle().WithName(""), "")
	require.ErrorIs(t, err, style.ErrInvalidProfile)

	bad := houseStyle()
	bad.Smoothing = 1.5

	err = store.Put(ctx, bad, "")
	require.ErrorIs(t, err, style.ErrInvalidProfile)
}

func TestStore_ListAndDelete(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, houseStyle().WithName("zeta"), ""))
	require.NoError(t, store.Put(ctx, houseStyle().WithName("alpha"), ""))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alpha", entries[0].Profile.Name)
	assert.Equal(t, "zeta", entries[1].Profile.Name)

	require.NoError(t, store.Delete(ctx, "alpha"))
	require.ErrorIs(t, store.Delete(ctx, "alpha"), profilestore.ErrProfileNotFound)

	_, err = store.Get(ctx, "alpha")
	require.ErrorIs(t, err, profilestore.ErrProfileNotFound)
}

func TestStore_Runs(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordRun(ctx, core.GovernanceRun{
		RunID: "first", Style: "calm_tech", Frames: 100, Dims: 70, Compact: true, Governed: true,
		PauseFrames: 49, EmphasisFrames: 0, CreatedAt: base,
	}))
	require.NoError(t, store.RecordRun(ctx, core.GovernanceRun{
		RunID: "second", Style: "energetic", Frames: 50, Dims: 257, Governed: false,
		CreatedAt: base.Add(time.Hour),
	}))
	require.NoError(t, store.RecordRun(ctx, core.GovernanceRun{Style: "lecturer", Frames: 10, Dims: 73}))

	runs, err := store.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, "lecturer", runs[0].Style)
	assert.NotEmpty(t, runs[0].RunID, "a run id is assigned")
	assert.Equal(t, "second", runs[1].RunID)
	assert.False(t, runs[1].Governed)
	assert.False(t, runs[1].Compact)

	first := runs[2]
	assert.Equal(t, "first", first.RunID)
	assert.True(t, first.Compact)
	assert.True(t, first.Governed)
	assert.Equal(t, 49, first.PauseFrames)
	assert.True(t, base.Equal(first.CreatedAt))

	limited, err := store.Runs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "profiles.db")
	ctx := context.Background()

	store, err := profilestore.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, houseStyle(), ""))
	require.NoError(t, store.Close())

	reopened, err := profilestore.Open(path)
	require.NoError(t, err)

	t.Cleanup(func() { _ = reopened.Close() })

	entry, err := reopened.Get(ctx, "house")
	require.NoError(t, err)
	assert.Equal(t, houseStyle(), entry.Profile)
	assert.Equal(t, path, reopened.Path())
}

func TestResolver(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, houseStyle(), ""))

	styleFile := filepath.Join(t.TempDir(), "anchor.yaml")
	require.NoError(t, style.Save(style.Default().WithName("anchor"), styleFile))

	resolver := profilestore.NewResolver(store, newTestLogger(t))

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty uses the default", input: "", expected: style.PresetCalmTech},
		{name: "preset", input: style.PresetLecturer, expected: style.PresetLecturer},
		{name: "registry", input: "house", expected: "house"},
		{name: "file", input: styleFile, expected: "anchor"},
		{name: "unknown falls back", input: "sleepy", expected: style.PresetCalmTech},
		{name: "missing file falls back", input: filepath.Join(t.TempDir(), "gone.toml"), expected: style.PresetCalmTech},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			profile, err := resolver.Resolve(ctx, testCase.input)
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, profile.Name)
		})
	}
}

func TestResolver_WithoutStore(t *testing.T) {
	t.Parallel()

	energetic, err := style.Preset(style.PresetEnergetic)
	require.NoError(t, err)

	resolver := profilestore.NewResolver(nil, newTestLogger(t)).WithFallback(energetic)

	profile, err := resolver.Resolve(context.Background(), "house")
	require.NoError(t, err)
	assert.Equal(t, style.PresetEnergetic, profile.Name)

	var _ core.StyleResolver = resolver
}
