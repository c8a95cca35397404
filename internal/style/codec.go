package style

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a serialization format for profiles.
type Format string

const (
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const profileFilePermissions = 0o600

// ErrUnsupportedFormat is returned for an unknown serialization format.
var ErrUnsupportedFormat = errors.New("unsupported profile format")

// FormatForPath picks the format from a file extension. Unknown extensions use TOML.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatTOML
	}
}

// Marshal encodes p in the given format.
func Marshal(p Profile, format Format) ([]byte, error) {
	var (
		data []byte
		err  error
	)

	switch format {
	case FormatTOML:
		data, err = toml.Marshal(p)
	case FormatJSON:
		data, err = json.MarshalIndent(p, "", "  ")
	case FormatYAML:
		data, err = yaml.Marshal(p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile %q as %s: %w", p.Name, format, err)
	}

	return data, nil
}

// Unmarshal decodes a profile. Fields absent from data keep their calm_tech preset value,
// so a partial record always yields a usable profile.
func Unmarshal(data []byte, format Format) (Profile, error) {
	profile := Default()

	var err error

	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, &profile)
	case FormatJSON:
		err = json.Unmarshal(data, &profile)
	case FormatYAML:
		err = yaml.Unmarshal(data, &profile)
	default:
		return Profile{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err != nil {
		return Profile{}, fmt.Errorf("failed to unmarshal %s profile: %w", format, err)
	}

	validateErr := profile.Validate()
	if validateErr != nil {
		return Profile{}, validateErr
	}

	return profile, nil
}

// Save writes p to path in the format implied by its extension.
func Save(p Profile, path string) error {
	data, err := Marshal(p, FormatForPath(path))
	if err != nil {
		return err
	}

	err = os.WriteFile(path, data, profileFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to write profile to %s: %w", path, err)
	}

	return nil
}

// Load reads a profile from path in the format implied by its extension.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	return Unmarshal(data, FormatForPath(path))
}
