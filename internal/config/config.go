// Package config provides the configuration structure for the motion governor.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"

	"github.com/book-expert/motion-governor/internal/audio"
	"github.com/book-expert/motion-governor/internal/motion"
	"github.com/book-expert/motion-governor/internal/posetrack"
	"github.com/book-expert/motion-governor/internal/style"
)

// Defaults applied to unset fields.
const (
	DefaultNATSURL         = "nats://127.0.0.1:4222"
	DefaultSubject         = "motion.govern"
	DefaultQueueGroup      = "motion-governors"
	DefaultCoeffsBucket    = "MOTION_COEFFS"
	DefaultAudioBucket     = "AUDIO_FILES"
	DefaultTimeoutSeconds  = 120
	DefaultLandmarkBinary  = "face-landmarks"
	DefaultBoxBinary       = "face-boxes"
	DefaultLogsDir         = "logs"
	DefaultProfileDatabase = "profiles.db"
)

// ErrInvalidConfig indicates a configuration value out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                     string `toml:"url"`
	GovernorSubject         string `toml:"governor_subject"`
	QueueGroup              string `toml:"queue_group"`
	CoeffsObjectStoreBucket string `toml:"coeffs_object_store_bucket"`
	AudioObjectStoreBucket  string `toml:"audio_object_store_bucket"`
}

// GovernorConfig holds the governance defaults.
type GovernorConfig struct {
	Style             string  `toml:"style"`
	StyleFile         string  `toml:"style_file"`
	FPS               float64 `toml:"fps"`
	CompactCutoff     int     `toml:"compact_cutoff"`
	FrameLength       int     `toml:"frame_length"`
	SilenceFactor     float64 `toml:"silence_factor"`
	SilencePercentile float64 `toml:"silence_percentile"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// ReferenceConfig names the external binaries used to derive styles from video.
type ReferenceConfig struct {
	LandmarkBinary string `toml:"landmark_binary"`
	BoxBinary      string `toml:"box_binary"`
	ProbeBinary    string `toml:"probe_binary"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	ProfileDB   string `toml:"profile_db"`
}

// Config is the root configuration structure.
type Config struct {
	NATS      NATSConfig      `toml:"nats"`
	Governor  GovernorConfig  `toml:"governor"`
	Reference ReferenceConfig `toml:"reference"`
	Paths     PathsConfig     `toml:"paths"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()

	return cfg
}

// Load loads the service configuration through the configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finalize(&cfg)
}

// LoadFile loads configuration from an explicit TOML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return finalize(&cfg)
}

func finalize(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	setString(&c.NATS.URL, DefaultNATSURL)
	setString(&c.NATS.GovernorSubject, DefaultSubject)
	setString(&c.NATS.QueueGroup, DefaultQueueGroup)
	setString(&c.NATS.CoeffsObjectStoreBucket, DefaultCoeffsBucket)
	setString(&c.NATS.AudioObjectStoreBucket, DefaultAudioBucket)

	setString(&c.Governor.Style, style.PresetCalmTech)

	if c.Governor.FPS == 0 {
		c.Governor.FPS = motion.DefaultFPS
	}

	if c.Governor.CompactCutoff == 0 {
		c.Governor.CompactCutoff = motion.DefaultCompactCutoff
	}

	if c.Governor.FrameLength == 0 {
		c.Governor.FrameLength = audio.DEFAULT_FRAME_LENGTH
	}

	if c.Governor.SilenceFactor == 0 {
		c.Governor.SilenceFactor = audio.DEFAULT_SILENCE_FACTOR
	}

	if c.Governor.SilencePercentile == 0 {
		c.Governor.SilencePercentile = audio.DEFAULT_SILENCE_PERCENTILE
	}

	if c.Governor.TimeoutSeconds == 0 {
		c.Governor.TimeoutSeconds = DefaultTimeoutSeconds
	}

	setString(&c.Reference.LandmarkBinary, DefaultLandmarkBinary)
	setString(&c.Reference.BoxBinary, DefaultBoxBinary)
	setString(&c.Reference.ProbeBinary, posetrack.DefaultProbeBinary)

	setString(&c.Paths.BaseLogsDir, DefaultLogsDir)
	setString(&c.Paths.ProfileDB, DefaultProfileDatabase)
}

// Validate checks ranges that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Governor.CompactCutoff < 1 {
		return fmt.Errorf("%w: governor.compact_cutoff must be positive", ErrInvalidConfig)
	}

	if c.Governor.TimeoutSeconds < 1 {
		return fmt.Errorf("%w: governor.timeout_seconds must be positive", ErrInvalidConfig)
	}

	opts := c.AudioOptions()

	err := opts.Validate()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// AudioOptions returns the audio analysis options.
func (c *Config) AudioOptions() audio.Options {
	return audio.Options{
		FPS:               c.Governor.FPS,
		FrameLength:       c.Governor.FrameLength,
		SilencePercentile: c.Governor.SilencePercentile,
		SilenceFactor:     c.Governor.SilenceFactor,
	}
}

// MotionOptions returns the governor options.
func (c *Config) MotionOptions() motion.Options {
	return motion.Options{
		FPS:           c.Governor.FPS,
		CompactCutoff: c.Governor.CompactCutoff,
		Audio:         c.AudioOptions(),
	}
}

func setString(field *string, fallback string) {
	if *field == "" {
		*field = fallback
	}
}
