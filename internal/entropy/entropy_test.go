package entropy

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestShannon(t *testing.T) {
	uniform := make([]byte, 256*64)
	for i := range uniform {
		uniform[i] = byte(i)
	}

	tests := []struct {
		name     string
		data     []byte
		minRange float64
		maxRange float64
	}{
		{name: "empty", data: nil, minRange: 0, maxRange: 0},
		{name: "single repeated byte", data: bytes.Repeat([]byte("a"), 4096), minRange: 0, maxRange: 0},
		{name: "two values evenly split", data: bytes.Repeat([]byte("ab"), 512), minRange: 1, maxRange: 1},
		{name: "exact uniform distribution", data: uniform, minRange: 8, maxRange: 8},
		{
			name:     "plaintext",
			data:     []byte("The quick brown fox jumps over the lazy dog. Plain prose stays well below the alert threshold."),
			minRange: 3.5,
			maxRange: 5.5,
		},
		{name: "random bytes", data: randomBytes(t, 100_000), minRange: 7.9, maxRange: 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Shannon(tt.data)
			assert.GreaterOrEqual(t, h, tt.minRange)
			assert.LessOrEqual(t, h, tt.maxRange)
		})
	}
}

func TestShannonBounds(t *testing.T) {
	for n := 1; n <= 300; n += 37 {
		h := Shannon(randomBytes(t, n))
		assert.GreaterOrEqual(t, h, 0.0)
		assert.LessOrEqual(t, h, MaxBitsPerByte)
	}
}

func TestSampleFileRespectsLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.bin")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0x41}, SampleLimit+1000), 0600))

	data, err := SampleFile(path, SampleLimit)
	require.NoError(t, err)
	assert.Len(t, data, SampleLimit)
}

func TestFileIgnoresContentPastLimit(t *testing.T) {
	// Low-entropy prefix followed by random tail past the sample window.
	content := append(bytes.Repeat([]byte("a"), SampleLimit), randomBytes(t, 50_000)...)
	path := filepath.Join(t.TempDir(), "tail.txt")
	require.NoError(t, os.WriteFile(path, content, 0600))

	h, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, h)
}

func TestSampleFileErrors(t *testing.T) {
	_, err := SampleFile(filepath.Join(t.TempDir(), "missing.txt"), SampleLimit)
	assert.True(t, os.IsNotExist(err))

	_, err = SampleFile(t.TempDir(), SampleLimit)
	assert.ErrorIs(t, err, ErrNotRegular)
}
