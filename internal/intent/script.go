package intent

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// DefaultPauseAfter is the trailing pause given to a plain-text fallback script.
const DefaultPauseAfter = 0.3

// minGeneratedLength rejects truncated generator output such as a bare code fence.
const minGeneratedLength = 20

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// SegmentIntent is one script segment with its intent markers.
type SegmentIntent struct {
	Text        string   `json:"text"`
	PauseAfter  float64  `json:"pause_after"`
	Emphasis    []string `json:"emphasis"`
	SentenceEnd bool     `json:"sentence_end"`
}

// ScriptIntent is a complete script. TotalDuration is filled in after synthesis.
type ScriptIntent struct {
	Segments      []SegmentIntent `json:"segments"`
	TotalDuration *float64        `json:"total_duration"`
}

// Simple wraps plain text as a single sentence-ending segment.
func Simple(text string, pauseAfter float64) ScriptIntent {
	return ScriptIntent{
		Segments: []SegmentIntent{{
			Text:        text,
			PauseAfter:  pauseAfter,
			Emphasis:    []string{},
			SentenceEnd: true,
		}},
	}
}

// Flatten joins segment text with spaces, upper-casing every emphasis word so the
// synthesizer stresses it.
func (s ScriptIntent) Flatten() string {
	parts := make([]string, 0, len(s.Segments))

	for _, seg := range s.Segments {
		text := strings.TrimSpace(seg.Text)

		for _, word := range seg.Emphasis {
			if word == "" {
				continue
			}

			pattern := regexp.MustCompile("(?i)" + regexp.QuoteMeta(word))
			text = pattern.ReplaceAllLiteralString(text, strings.ToUpper(word))
		}

		parts = append(parts, text)
	}

	return strings.Join(parts, " ")
}

// ParseGenerated extracts a script from raw generator output. It accepts plain JSON,
// a fenced json block, or the first {...} span of surrounding prose. Output without
// segments is rejected; no repair is attempted.
func ParseGenerated(raw string) (ScriptIntent, error) {
	response := strings.TrimSpace(raw)
	if response == "" {
		return ScriptIntent{}, fmt.Errorf("%w: empty response", ErrEmptyScript)
	}

	if len(response) < minGeneratedLength && strings.Contains(response, "```") {
		return ScriptIntent{}, fmt.Errorf("%w: incomplete response %q", ErrEmptyScript, response)
	}

	candidates := []string{response}

	if match := fencedBlock.FindStringSubmatch(response); match != nil {
		candidates = append(candidates, strings.TrimSpace(match[1]))
	}

	if start, end := strings.Index(response, "{"), strings.LastIndex(response, "}"); start >= 0 && end > start {
		candidates = append(candidates, response[start:end+1])
	}

	var lastErr error

	for _, candidate := range candidates {
		var script ScriptIntent

		err := parseJSON([]byte(candidate), &script)
		if err != nil {
			lastErr = err

			continue
		}

		if len(script.Segments) == 0 {
			return ScriptIntent{}, ErrEmptyScript
		}

		script.normalize()

		return script, nil
	}

	return ScriptIntent{}, fmt.Errorf("failed to parse generated script: %w", lastErr)
}

// LoadScript reads a script intent JSON file.
func LoadScript(path string) (ScriptIntent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ScriptIntent{}, fmt.Errorf("failed to read script %s: %w", path, err)
	}

	var script ScriptIntent

	err = parseJSON(data, &script)
	if err != nil {
		return ScriptIntent{}, err
	}

	script.normalize()

	return script, nil
}

// Save writes the script as JSON.
func (s ScriptIntent) Save(path string) error {
	data, err := encodeJSON(s)
	if err != nil {
		return err
	}

	err = os.WriteFile(path, data, timingFileMode)
	if err != nil {
		return fmt.Errorf("failed to write script %s: %w", path, err)
	}

	return nil
}

func (s *ScriptIntent) normalize() {
	for i := range s.Segments {
		if s.Segments[i].Emphasis == nil {
			s.Segments[i].Emphasis = []string{}
		}
	}
}
