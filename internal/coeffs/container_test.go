package coeffs_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/book-expert/motion-governor/internal/coeffs"
)

func sampleMatrix() *mat.Dense {
	data := make([]float64, 4*70)
	for i := range data {
		data[i] = float64(i) * 0.01
	}

	return mat.NewDense(4, 70, data)
}

func TestContainerRoundTrip(t *testing.T) {
	t.Parallel()

	container := coeffs.New(sampleMatrix())
	require.NoError(t, container.Set("trans_params", []float64{256, 256, 1.02, 0.5}))
	require.NoError(t, container.Set("source", "take-3"))

	data, err := container.Encode()
	require.NoError(t, err)

	decoded, err := coeffs.Decode(data)
	require.NoError(t, err)

	assert.True(t, mat.Equal(sampleMatrix(), decoded.Coefficients))
	assert.Equal(t, []string{"coeff_3dmm", "source", "trans_params"}, decoded.Keys())

	var source string

	raw, ok := decoded.Raw("source")
	require.True(t, ok)
	require.NoError(t, msgpack.Unmarshal(raw, &source))
	assert.Equal(t, "take-3", source)

	again, err := decoded.Encode()
	require.NoError(t, err)
	assert.Equal(t, data, again, "re-encoding is byte-identical")
}

func TestWithCoefficientsKeepsOtherEntries(t *testing.T) {
	t.Parallel()

	container := coeffs.New(sampleMatrix())
	require.NoError(t, container.Set("crop", map[string]int{"x": 10, "y": 20}))

	original, ok := container.Raw("crop")
	require.True(t, ok)

	scaled := mat.DenseCopyOf(sampleMatrix())
	scaled.Scale(0.5, scaled)

	data, err := container.WithCoefficients(scaled).Encode()
	require.NoError(t, err)

	decoded, err := coeffs.Decode(data)
	require.NoError(t, err)

	assert.True(t, mat.Equal(scaled, decoded.Coefficients))

	raw, ok := decoded.Raw("crop")
	require.True(t, ok)
	assert.True(t, bytes.Equal(original, raw))
	assert.True(t, mat.Equal(sampleMatrix(), container.Coefficients), "the source container is untouched")
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	_, err := coeffs.Decode([]byte{0xc1})
	require.ErrorIs(t, err, coeffs.ErrMalformed)

	noCoeffs, err := msgpack.Marshal(map[string]int{"other": 1})
	require.NoError(t, err)

	_, err = coeffs.Decode(noCoeffs)
	require.ErrorIs(t, err, coeffs.ErrMissingCoefficients)

	badMatrix, err := msgpack.Marshal(map[string][]byte{coeffs.CoeffKey: []byte("short")})
	require.NoError(t, err)

	_, err = coeffs.Decode(badMatrix)
	require.ErrorIs(t, err, coeffs.ErrMalformed)

	_, err = coeffs.New(nil).Encode()
	require.ErrorIs(t, err, coeffs.ErrMissingCoefficients)

	require.Error(t, coeffs.New(sampleMatrix()).Set(coeffs.CoeffKey, 1))
}

func TestReadWriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "take.coeffs")

	require.NoError(t, coeffs.WriteFile(path, coeffs.New(sampleMatrix())))

	loaded, err := coeffs.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, mat.Equal(sampleMatrix(), loaded.Coefficients))

	_, err = coeffs.ReadFile(filepath.Join(t.TempDir(), "absent.coeffs"))
	require.Error(t, err)
}

func TestGovernedPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "out/take_governed.coeffs", coeffs.GovernedPath("out/take.coeffs"))
	assert.Equal(t, "take_governed", coeffs.GovernedPath("take"))
	assert.Equal(t, "/a.b/take_governed.msgpack", coeffs.GovernedPath("/a.b/take.msgpack"))
}
