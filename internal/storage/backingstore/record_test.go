package backingstore

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaRoundTrip(t *testing.T) {
	in := DatabaseMeta{Name: "inventory", Version: 42}
	raw, err := EncodeMeta(in)
	require.NoError(t, err)

	out, err := DecodeMeta(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeMetaRejectsGarbage(t *testing.T) {
	_, err := DecodeMeta([]byte{0xff, 0x00, 0x01})
	assert.Error(t, err)
}

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, []byte{'m', 0, 'd', 'b'}, MetaKey("db"))
	assert.True(t, bytes.HasPrefix(MetaKey("db"), MetaPrefix()))

	rk := RecordKey("db", []byte("k"))
	assert.True(t, bytes.HasPrefix(rk, RecordPrefix("db")))
	assert.Equal(t, []byte{'r', 0, 'd', 'b', 0, 'k'}, rk)

	// Metadata and record ranges must never overlap.
	assert.False(t, bytes.HasPrefix(rk, MetaPrefix()))
}

func TestRecordCodecSmallValuesStayPlain(t *testing.T) {
	c, err := NewRecordCodec(Options{Compressor: "lz4"})
	require.NoError(t, err)

	value := []byte("short")
	stored, err := c.Encode(value)
	require.NoError(t, err)
	assert.Equal(t, recordPlain, stored[0])

	got, err := c.Decode(stored)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestRecordCodecCompressesLargeValues(t *testing.T) {
	c, err := NewRecordCodec(Options{Compressor: "lz4"})
	require.NoError(t, err)

	value := bytes.Repeat([]byte("origindb!"), 1024)
	stored, err := c.Encode(value)
	require.NoError(t, err)
	assert.Equal(t, recordCompressed, stored[0])
	assert.Less(t, len(stored), len(value))

	got, err := c.Decode(stored)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestRecordCodecIncompressibleStaysPlain(t *testing.T) {
	c, err := NewRecordCodec(Options{Compressor: "lz4"})
	require.NoError(t, err)

	value := make([]byte, 4096)
	_, err = rand.Read(value)
	require.NoError(t, err)

	stored, err := c.Encode(value)
	require.NoError(t, err)

	got, err := c.Decode(stored)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestRecordCodecNoneCompressor(t *testing.T) {
	c, err := NewRecordCodec(Options{Compressor: "none"})
	require.NoError(t, err)

	value := bytes.Repeat([]byte("x"), 1024)
	stored, err := c.Encode(value)
	require.NoError(t, err)
	assert.Equal(t, recordPlain, stored[0])

	got, err := c.Decode(stored)
	require.NoError(t, err)
	assert.Equal(t, value, got)
}

func TestRecordCodecRejectsBadFlag(t *testing.T) {
	c, err := NewRecordCodec(Options{})
	require.NoError(t, err)

	_, err = c.Decode([]byte{99, 1, 2, 3})
	assert.Error(t, err)
	_, err = c.Decode(nil)
	assert.Error(t, err)
}
