// Package pathutil provides file and path helpers shared by the governor's binaries.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const envDataDir = "MOTIONGOV_DATA_DIR"

const (
	appName                = "motion-governor"
	stylesDirName          = "styles"
	tmpDir                 = "/tmp"
	dotLocalShare          = ".local/share"
	defaultDirPermissions  = 0o750
	invalidCharReplacement = "_"
)

// Data size constants.
const (
	byteUnit = 1
	kilobyte = byteUnit * 1024
	megabyte = kilobyte * 1024
	gigabyte = megabyte * 1024
)

const (
	secondsInMinute = 60
	secondsInHour   = 3600
	formatSeconds   = "%.1fs"
	formatMinutes   = "%dm %.1fs"
	formatHours     = "%dh %dm"
	formatGB        = "%.1f GB"
	formatMB        = "%.1f MB"
	formatKB        = "%.1f KB"
	formatBytes     = "%d B"
)

const (
	extJSON = ".json"
	extTOML = ".toml"
	extYAML = ".yaml"
	extYML  = ".yml"
	extWAV  = ".wav"
)

const (
	errFmtFailedToCreateDir           = "failed to create directory %s: %w"
	errFmtCouldNotResolveAbsolutePath = "could not resolve absolute path for %q: %w"
	errFmtErrorCheckingPath           = "error checking path %q: %w"
	errFmtStyleNotFound               = "%w: %s"
)

// ErrStyleFileNotFound is returned when a style file cannot be located.
var ErrStyleFileNotFound = errors.New("style file not found")

// GetDataDir returns the governor's data directory, honouring MOTIONGOV_DATA_DIR.
func GetDataDir() string {
	if dataDir := os.Getenv(envDataDir); dataDir != "" {
		return dataDir
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(tmpDir, appName)
	}

	return filepath.Join(homeDir, dotLocalShare, appName)
}

// EnsureDir creates path and its parents when missing.
func EnsureDir(path string) error {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		mkdirErr := os.MkdirAll(path, defaultDirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf(errFmtFailedToCreateDir, path, mkdirErr)
		}
	}

	return nil
}

// resolveSinglePath reports whether path exists and returns its absolute form.
// Errors other than "not found" are returned.
func resolveSinglePath(path string) (resolvedPath string, found bool, err error) {
	_, statErr := os.Stat(path)
	if statErr == nil {
		absPath, errAbs := filepath.Abs(path)
		if errAbs != nil {
			return "", false, fmt.Errorf(errFmtCouldNotResolveAbsolutePath, path, errAbs)
		}

		return absPath, true, nil
	} else if !os.IsNotExist(statErr) {
		return "", false, fmt.Errorf(errFmtErrorCheckingPath, path, statErr)
	}

	return "", false, nil
}

// ResolveStyleFile locates a style profile file. It checks name as given, then a local
// "styles" directory, then the styles directory under GetDataDir.
func ResolveStyleFile(name string) (string, error) {
	candidatePaths := []string{
		name,
		filepath.Join(stylesDirName, name),
		filepath.Join(GetDataDir(), stylesDirName, name),
	}

	for _, path := range candidatePaths {
		resolvedPath, found, err := resolveSinglePath(path)
		if err != nil {
			return "", err
		} else if found {
			return resolvedPath, nil
		}
	}

	return "", fmt.Errorf(errFmtStyleNotFound, ErrStyleFileNotFound, name)
}

// FormatDuration formats seconds for display, e.g. "1h 15m", "5m 30.5s", "45.2s".
func FormatDuration(seconds float64) string {
	if seconds < secondsInMinute {
		return fmt.Sprintf(formatSeconds, seconds)
	}

	if seconds < secondsInHour {
		minutes := int(seconds / secondsInMinute)
		remainingSeconds := seconds - float64(minutes*secondsInMinute)

		return fmt.Sprintf(formatMinutes, minutes, remainingSeconds)
	}

	hours := int(seconds / secondsInHour)
	remainingSeconds := seconds - float64(hours*secondsInHour)
	remainingMinutes := int(remainingSeconds / secondsInMinute)

	return fmt.Sprintf(formatHours, hours, remainingMinutes)
}

// FormatFileSize formats a byte count for display, e.g. "1.2 GB", "500.5 MB".
func FormatFileSize(bytes int64) string {
	switch {
	case bytes >= gigabyte:
		return fmt.Sprintf(formatGB, float64(bytes)/gigabyte)
	case bytes >= megabyte:
		return fmt.Sprintf(formatMB, float64(bytes)/megabyte)
	case bytes >= kilobyte:
		return fmt.Sprintf(formatKB, float64(bytes)/kilobyte)
	default:
		return fmt.Sprintf(formatBytes, bytes)
	}
}

// IsProfileFile reports whether name carries a style profile extension.
func IsProfileFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case extTOML, extJSON, extYAML, extYML:
		return true
	default:
		return false
	}
}

// IsWaveFile reports whether name carries a WAV extension.
func IsWaveFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), extWAV)
}

// SanitizeKey replaces characters that are unsafe in file names and object keys.
func SanitizeKey(key string) string {
	replacer := strings.NewReplacer(
		"<", invalidCharReplacement,
		">", invalidCharReplacement,
		":", invalidCharReplacement,
		"\"", invalidCharReplacement,
		"/", invalidCharReplacement,
		"\\", invalidCharReplacement,
		"|", invalidCharReplacement,
		"?", invalidCharReplacement,
		"*", invalidCharReplacement,
		" ", invalidCharReplacement,
	)

	return replacer.Replace(key)
}
