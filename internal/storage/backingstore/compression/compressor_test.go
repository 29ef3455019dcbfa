package compression

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGet(t *testing.T) {
	c, err := Get("lz4")
	require.NoError(t, err)
	assert.Equal(t, "lz4", c.Name())

	c, err = Get("none")
	require.NoError(t, err)
	assert.Equal(t, "none", c.Name())

	_, err = Get("zstd")
	assert.Error(t, err)
}

func TestRegistryAvailable(t *testing.T) {
	names := Available()
	assert.Contains(t, names, "lz4")
	assert.Contains(t, names, "none")
}

func TestNoCompressorRoundTrip(t *testing.T) {
	c := &NoCompressor{}
	data := []byte("hello world")

	compressed, err := c.Compress(data, 0)
	require.NoError(t, err)
	assert.Equal(t, data, compressed)

	decompressed, err := c.Decompress(compressed, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, decompressed)
}

func TestNoCompressorCopies(t *testing.T) {
	c := &NoCompressor{}
	data := []byte("mutate me")

	compressed, err := c.Compress(data, 0)
	require.NoError(t, err)

	data[0] = 'X'
	assert.Equal(t, byte('m'), compressed[0])
}

func TestLZ4RoundTrip(t *testing.T) {
	c := &LZ4Compressor{}
	data := bytes.Repeat([]byte("origindb compresses repetitive payloads well "), 50)

	compressed, err := c.Compress(data, 1)
	require.NoError(t, err)
	require.NotEmpty(t, compressed)
	assert.Less(t, len(compressed), len(data))

	decompressed, err := c.Decompress(compressed, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, decompressed)
}

func TestLZ4IncompressibleData(t *testing.T) {
	c := &LZ4Compressor{}
	data := make([]byte, 256)
	_, err := rand.Read(data)
	require.NoError(t, err)

	compressed, err := c.Compress(data, 1)
	require.NoError(t, err)
	// Random bytes do not compress; the block encoder signals that with
	// an empty result.
	assert.Empty(t, compressed)
}

func TestLZ4EmptyInput(t *testing.T) {
	c := &LZ4Compressor{}

	compressed, err := c.Compress(nil, 1)
	require.NoError(t, err)
	assert.Empty(t, compressed)

	decompressed, err := c.Decompress(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, decompressed)
}

func TestLZ4DecompressBadOriginalSize(t *testing.T) {
	c := &LZ4Compressor{}

	_, err := c.Decompress([]byte{0x01}, -1)
	assert.Error(t, err)
}

func TestMaxCompressedSize(t *testing.T) {
	none := &NoCompressor{}
	assert.Equal(t, 1024, none.MaxCompressedSize(1024))

	lz := &LZ4Compressor{}
	assert.GreaterOrEqual(t, lz.MaxCompressedSize(1024), 1024)
}
