package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/book-expert/motion-governor/internal/coeffs"
	"github.com/book-expert/motion-governor/internal/intent"
	"github.com/book-expert/motion-governor/internal/style"
)

// writeConfig points logs and the registry into a temporary directory.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "motiongov.toml")
	body := fmt.Sprintf("[paths]\nbase_logs_dir = %q\nprofile_db = %q\n",
		filepath.Join(dir, "logs"), filepath.Join(dir, "profiles.db"))

	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func writeInputs(t *testing.T, dir string) (string, string) {
	t.Helper()

	data := make([]float64, 100*70)
	for i := range data {
		data[i] = 1
	}

	coeffPath := filepath.Join(dir, "take.coeffs")
	require.NoError(t, coeffs.WriteFile(coeffPath, coeffs.New(mat.NewDense(100, 70, data))))

	timing := intent.TimingMap{
		FPS:           25,
		TotalDuration: 4,
		Segments:      []intent.TimingSegment{{StartTime: 0, EndTime: 2, PauseAfter: 1, SentenceEnd: true}},
	}
	timingPath := filepath.Join(dir, "take.timing.json")
	require.NoError(t, timing.Save(timingPath))

	return coeffPath, timingPath
}

func TestStylePresets(t *testing.T) {
	t.Parallel()

	cfgPath, _ := writeConfig(t)

	out, err := execute(t, "-c", cfgPath, "style", "presets")
	require.NoError(t, err)

	for _, name := range style.PresetNames() {
		assert.Contains(t, out, name)
	}
}

func TestGovernAndRuns(t *testing.T) {
	t.Parallel()

	cfgPath, dir := writeConfig(t)
	coeffPath, timingPath := writeInputs(t, dir)

	out, err := execute(t, "-c", cfgPath, "govern",
		"--coeffs", coeffPath, "--timing", timingPath, "--style", style.PresetEnergetic, "--record")
	require.NoError(t, err)
	assert.Regexp(t, `Pause frames\s+│\s+25\s+│`, out)
	assert.Regexp(t, `Governed\s+│\s+yes\s+│`, out)

	governed, err := coeffs.ReadFile(coeffs.GovernedPath(coeffPath))
	require.NoError(t, err)
	assert.InDelta(t, 0.7, governed.Coefficients.At(60, 0), 1e-12)
	assert.InDelta(t, 0.95, governed.Coefficients.At(10, 0), 1e-12)

	out, err = execute(t, "-c", cfgPath, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, style.PresetEnergetic)
}

func TestGovern_RequiresCoeffs(t *testing.T) {
	t.Parallel()

	cfgPath, _ := writeConfig(t)

	_, err := execute(t, "-c", cfgPath, "govern")
	require.ErrorIs(t, err, errMissingCoeffs)
}

func TestGovern_ExplicitOutput(t *testing.T) {
	t.Parallel()

	cfgPath, dir := writeConfig(t)
	coeffPath, _ := writeInputs(t, dir)
	outPath := filepath.Join(dir, "custom.coeffs")

	_, err := execute(t, "-c", cfgPath, "govern", "--coeffs", coeffPath, "--out", outPath)
	require.NoError(t, err)

	governed, err := coeffs.ReadFile(outPath)
	require.NoError(t, err)
	assert.InDelta(t, 0.95, governed.Coefficients.At(60, 0), 1e-12, "no intent means every frame is neutral")
}

func TestStyleRegistryLifecycle(t *testing.T) {
	t.Parallel()

	cfgPath, dir := writeConfig(t)
	profilePath := filepath.Join(dir, "house.yaml")
	require.NoError(t, style.Save(style.Default().WithName("house").WithNod(0.3, 0.05), profilePath))

	out, err := execute(t, "-c", cfgPath, "style", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No registered profiles")

	out, err = execute(t, "-c", cfgPath, "style", "import", profilePath)
	require.NoError(t, err)
	assert.Contains(t, out, "Registered house")

	out, err = execute(t, "-c", cfgPath, "style", "show", "house", "--format", "json")
	require.NoError(t, err)

	shown, err := style.Unmarshal([]byte(out), style.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "house", shown.Name)
	assert.InDelta(t, 0.3, shown.NodRate, 1e-12)

	out, err = execute(t, "-c", cfgPath, "style", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "house")
	assert.Contains(t, out, "file")

	_, err = execute(t, "-c", cfgPath, "style", "delete", "house")
	require.NoError(t, err)

	_, err = execute(t, "-c", cfgPath, "style", "show", "house")
	require.Error(t, err)
}

func TestStyleShow_PresetAndFile(t *testing.T) {
	t.Parallel()

	cfgPath, dir := writeConfig(t)

	out, err := execute(t, "-c", cfgPath, "style", "show", style.PresetLecturer)
	require.NoError(t, err)

	lecturer, err := style.Unmarshal([]byte(out), style.FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, style.PresetLecturer, lecturer.Name)

	profilePath := filepath.Join(dir, "anchor.toml")
	require.NoError(t, style.Save(style.Default().WithName("anchor"), profilePath))

	out, err = execute(t, "-c", cfgPath, "style", "show", profilePath, "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: anchor")

	_, err = execute(t, "-c", cfgPath, "style", "show", "sleepy")
	require.ErrorIs(t, err, errNoRegistry)
}

func TestTimingMask(t *testing.T) {
	t.Parallel()

	cfgPath, dir := writeConfig(t)
	_, timingPath := writeInputs(t, dir)

	out, err := execute(t, "-c", cfgPath, "timing", "mask", "--timing", timingPath, "--dump")
	require.NoError(t, err)

	assert.Regexp(t, `Frames\s+│\s+100\s+│`, out)
	assert.Regexp(t, `Pause frames\s+│\s+25\s+│`, out)
	assert.Regexp(t, `Sentence ends\s+│\s+50\s+│`, out)
	assert.Contains(t, out, "60\t0.000")
	assert.Contains(t, out, "10\t1.000")
}
