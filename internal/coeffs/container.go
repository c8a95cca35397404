// Package coeffs reads and writes the persisted motion coefficient container.
//
// A container is a msgpack map. The coefficient matrix lives under CoeffKey as the gonum
// binary encoding of a frames × dims matrix; every other entry (identity, texture and
// lighting parameters, crop metadata) is carried as raw msgpack and written back
// byte-identical.
package coeffs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"
)

// CoeffKey is the container entry holding the coefficient matrix.
const CoeffKey = "coeff_3dmm"

// GovernedSuffix is appended to the file stem of governed output.
const GovernedSuffix = "_governed"

const containerFileMode = 0o600

var (
	// ErrMissingCoefficients is returned for a container without CoeffKey.
	ErrMissingCoefficients = errors.New("container has no coefficient matrix")
	// ErrMalformed is returned for data that is not a msgpack map.
	ErrMalformed = errors.New("malformed coefficient container")
)

// Container is a decoded coefficient file.
type Container struct {
	Coefficients *mat.Dense
	extra        map[string]msgpack.RawMessage
}

// New creates a container holding only a coefficient matrix.
func New(coeffs *mat.Dense) *Container {
	return &Container{Coefficients: coeffs, extra: map[string]msgpack.RawMessage{}}
}

// Decode parses a msgpack container.
func Decode(data []byte) (*Container, error) {
	var entries map[string]msgpack.RawMessage

	err := msgpack.Unmarshal(data, &entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	raw, ok := entries[CoeffKey]
	if !ok {
		return nil, ErrMissingCoefficients
	}

	delete(entries, CoeffKey)

	var blob []byte

	err = msgpack.Unmarshal(raw, &blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not binary: %w", ErrMalformed, CoeffKey, err)
	}

	var coeffs mat.Dense

	err = coeffs.UnmarshalBinary(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, CoeffKey, err)
	}

	return &Container{Coefficients: &coeffs, extra: entries}, nil
}

// Encode renders the container with keys in sorted order.
func (c *Container) Encode() ([]byte, error) {
	if c.Coefficients == nil || c.Coefficients.IsEmpty() {
		return nil, ErrMissingCoefficients
	}

	blob, err := c.Coefficients.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to encode coefficient matrix: %w", err)
	}

	packed, err := msgpack.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to pack coefficient matrix: %w", err)
	}

	var buf bytes.Buffer

	enc := msgpack.NewEncoder(&buf)

	err = enc.EncodeMapLen(len(c.extra) + 1)
	if err != nil {
		return nil, fmt.Errorf("failed to encode container: %w", err)
	}

	for _, key := range c.Keys() {
		value := msgpack.RawMessage(packed)
		if key != CoeffKey {
			value = c.extra[key]
		}

		err = enc.EncodeString(key)
		if err == nil {
			err = enc.Encode(value)
		}

		if err != nil {
			return nil, fmt.Errorf("failed to encode container entry %s: %w", key, err)
		}
	}

	return buf.Bytes(), nil
}

// WithCoefficients returns a copy of c carrying coeffs. Other entries are shared.
func (c *Container) WithCoefficients(coeffs *mat.Dense) *Container {
	return &Container{Coefficients: coeffs, extra: c.extra}
}

// Set stores value, msgpack encoded, under key. CoeffKey cannot be set this way.
func (c *Container) Set(key string, value any) error {
	if key == CoeffKey {
		return fmt.Errorf("use Coefficients to replace %s", CoeffKey)
	}

	packed, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	if c.extra == nil {
		c.extra = map[string]msgpack.RawMessage{}
	}

	c.extra[key] = packed

	return nil
}

// Raw returns the undecoded msgpack value stored under key.
func (c *Container) Raw(key string) (msgpack.RawMessage, bool) {
	value, ok := c.extra[key]

	return value, ok
}

// Keys lists every entry, CoeffKey included, in sorted order.
func (c *Container) Keys() []string {
	keys := make([]string, 0, len(c.extra)+1)
	keys = append(keys, CoeffKey)

	for key := range c.extra {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// ReadFile decodes the container at path.
func ReadFile(path string) (*Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read coefficients %s: %w", path, err)
	}

	return Decode(data)
}

// WriteFile encodes c to path.
func WriteFile(path string, c *Container) error {
	data, err := c.Encode()
	if err != nil {
		return err
	}

	err = os.WriteFile(path, data, containerFileMode)
	if err != nil {
		return fmt.Errorf("failed to write coefficients %s: %w", path, err)
	}

	return nil
}

// GovernedPath derives the default output path: <stem>_governed<ext>.
func GovernedPath(path string) string {
	ext := filepath.Ext(path)

	return strings.TrimSuffix(path, ext) + GovernedSuffix + ext
}
