// Package config_test tests the configuration loading for the motion governor.
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/motion-governor/internal/audio"
	"github.com/book-expert/motion-governor/internal/config"
)

const fullConfig = `
[nats]
url = "nats://10.0.0.5:4222"
governor_subject = "motion.govern.v2"
queue_group = "governors"
coeffs_object_store_bucket = "COEFFS"
audio_object_store_bucket = "AUDIO"

[governor]
style = "lecturer"
style_file = "styles/house.toml"
fps = 30.0
compact_cutoff = 180
frame_length = 1024
silence_factor = 2.0
silence_percentile = 15.0
timeout_seconds = 60

[reference]
landmark_binary = "/opt/mesh/track"
box_binary = "/opt/haar/track"
probe_binary = "/usr/local/bin/ffprobe"

[paths]
base_logs_dir = "/var/log/motion"
profile_db = "/var/lib/motion/profiles.db"
`

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	err := toml.Unmarshal([]byte(fullConfig), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "nats://10.0.0.5:4222", cfg.NATS.URL)
	assert.Equal(t, "motion.govern.v2", cfg.NATS.GovernorSubject)
	assert.Equal(t, "governors", cfg.NATS.QueueGroup)
	assert.Equal(t, "COEFFS", cfg.NATS.CoeffsObjectStoreBucket)
	assert.Equal(t, "AUDIO", cfg.NATS.AudioObjectStoreBucket)
	assert.Equal(t, "lecturer", cfg.Governor.Style)
	assert.Equal(t, "styles/house.toml", cfg.Governor.StyleFile)
	assert.InEpsilon(t, 30.0, cfg.Governor.FPS, 0.001)
	assert.Equal(t, 180, cfg.Governor.CompactCutoff)
	assert.Equal(t, 1024, cfg.Governor.FrameLength)
	assert.InEpsilon(t, 2.0, cfg.Governor.SilenceFactor, 0.001)
	assert.InEpsilon(t, 15.0, cfg.Governor.SilencePercentile, 0.001)
	assert.Equal(t, 60, cfg.Governor.TimeoutSeconds)
	assert.Equal(t, "/opt/mesh/track", cfg.Reference.LandmarkBinary)
	assert.Equal(t, "/usr/local/bin/ffprobe", cfg.Reference.ProbeBinary)
	assert.Equal(t, "/var/log/motion", cfg.Paths.BaseLogsDir)
	assert.Equal(t, "/var/lib/motion/profiles.db", cfg.Paths.ProfileDB)
}

func TestLoadFile_AppliesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "project.toml")
	require.NoError(t, os.WriteFile(path, []byte("[governor]\nstyle = \"energetic\"\n"), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "energetic", cfg.Governor.Style)
	assert.Equal(t, config.DefaultNATSURL, cfg.NATS.URL)
	assert.Equal(t, config.DefaultSubject, cfg.NATS.GovernorSubject)
	assert.InEpsilon(t, 25.0, cfg.Governor.FPS, 0.001)
	assert.Equal(t, 200, cfg.Governor.CompactCutoff)
	assert.Equal(t, audio.DEFAULT_FRAME_LENGTH, cfg.Governor.FrameLength)
	assert.InEpsilon(t, 1.5, cfg.Governor.SilenceFactor, 0.001)
	assert.InEpsilon(t, 20.0, cfg.Governor.SilencePercentile, 0.001)
	assert.Equal(t, "ffprobe", cfg.Reference.ProbeBinary)
	assert.Equal(t, config.DefaultProfileDatabase, cfg.Paths.ProfileDB)
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := config.LoadFile(filepath.Join(dir, "absent.toml"))
	require.Error(t, err)

	broken := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[governor\n"), 0o600))

	_, err = config.LoadFile(broken)
	require.Error(t, err)

	invalid := filepath.Join(dir, "invalid.toml")
	require.NoError(t, os.WriteFile(invalid, []byte("[governor]\nsilence_percentile = 150.0\n"), 0o600))

	_, err = config.LoadFile(invalid)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
	require.ErrorIs(t, err, audio.ErrInvalidOptions)

	negative := filepath.Join(dir, "negative.toml")
	require.NoError(t, os.WriteFile(negative, []byte("[governor]\ncompact_cutoff = -5\n"), 0o600))

	_, err = config.LoadFile(negative)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestMotionOptions(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Governor.FPS = 30
	cfg.Governor.CompactCutoff = 150

	opts := cfg.MotionOptions()

	assert.InEpsilon(t, 30.0, opts.FPS, 0.001)
	assert.Equal(t, 150, opts.CompactCutoff)
	assert.InEpsilon(t, 30.0, opts.Audio.FPS, 0.001)
	assert.Equal(t, audio.DEFAULT_FRAME_LENGTH, opts.Audio.FrameLength)
}
