package hash

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateIsDeterministic(t *testing.T) {
	h, err := NewFileHasher("sha256")
	require.NoError(t, err)

	payload := []byte("This is a test file used to check plagiarism logic.")

	first, err := h.Calculate(payload)
	require.NoError(t, err)
	second, err := h.Calculate(payload)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, h.Size())
}

func TestCalculateDiffersForDifferentPayloads(t *testing.T) {
	h, err := NewFileHasher("")
	require.NoError(t, err)
	assert.Equal(t, SHA256, h.Algorithm())

	a, err := h.Calculate([]byte("alpha"))
	require.NoError(t, err)
	b, err := h.Calculate([]byte("alphb"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestFingerprintSizeIsFixed(t *testing.T) {
	h, err := NewFileHasher("sha256")
	require.NoError(t, err)

	small, err := h.Calculate([]byte("x"))
	require.NoError(t, err)
	large, err := h.Calculate(bytes.Repeat([]byte("lorem ipsum "), 100000))
	require.NoError(t, err)

	assert.Len(t, small, 64)
	assert.Len(t, large, 64)
}

func TestCalculateReaderMatchesCalculate(t *testing.T) {
	for _, algo := range []string{"md5", "sha1", "sha256", "sha512"} {
		t.Run(algo, func(t *testing.T) {
			h, err := NewFileHasher(algo)
			require.NoError(t, err)

			payload := []byte("same bytes either way")
			direct, err := h.Calculate(payload)
			require.NoError(t, err)
			streamed, err := h.CalculateReader(bytes.NewReader(payload))
			require.NoError(t, err)

			assert.Equal(t, direct, streamed)
			assert.Len(t, direct, h.Size())
		})
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	_, err := NewFileHasher("crc32")
	assert.Error(t, err)
}
