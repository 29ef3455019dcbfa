package backingstore

import (
	"encoding/binary"
	"fmt"

	"github.com/ugorji/go/codec"

	"github.com/origindb/origindb/internal/storage/backingstore/compression"
)

// Value encoding constants.
const (
	recordPlain      byte = 0
	recordCompressed byte = 1

	// Values below this size are stored uncompressed.
	defaultCompressionThreshold = 128
)

var cborHandle codec.CborHandle

// DatabaseMeta is the per-database metadata entry kept by every store.
type DatabaseMeta struct {
	Name    string `codec:"name"`
	Version int64  `codec:"version"`
}

// EncodeMeta serializes a metadata entry.
func EncodeMeta(m DatabaseMeta) ([]byte, error) {
	var buf []byte
	if err := codec.NewEncoderBytes(&buf, &cborHandle).Encode(m); err != nil {
		return nil, fmt.Errorf("encode database metadata: %w", err)
	}
	return buf, nil
}

// DecodeMeta deserializes a metadata entry.
func DecodeMeta(b []byte) (DatabaseMeta, error) {
	var m DatabaseMeta
	if err := codec.NewDecoderBytes(b, &cborHandle).Decode(&m); err != nil {
		return DatabaseMeta{}, fmt.Errorf("decode database metadata: %w", err)
	}
	return m, nil
}

// Key layout shared by the ordered-keyspace drivers:
//
//	'm' 0x00 <db name>            -> DatabaseMeta (cbor)
//	'r' 0x00 <db name> 0x00 <key> -> encoded record value
//
// The 0x00 separator keeps metadata and record ranges disjoint and
// prefix-scannable.

// MetaKey returns the metadata key for a database name.
func MetaKey(name string) []byte {
	k := make([]byte, 0, 2+len(name))
	k = append(k, 'm', 0)
	return append(k, name...)
}

// MetaPrefix returns the common prefix of all metadata keys.
func MetaPrefix() []byte {
	return []byte{'m', 0}
}

// RecordKey returns the storage key for a record of one database.
func RecordKey(db string, key []byte) []byte {
	k := make([]byte, 0, 3+len(db)+len(key))
	k = append(k, 'r', 0)
	k = append(k, db...)
	k = append(k, 0)
	return append(k, key...)
}

// RecordPrefix returns the common prefix of all record keys of one database.
func RecordPrefix(db string) []byte {
	k := make([]byte, 0, 3+len(db))
	k = append(k, 'r', 0)
	k = append(k, db...)
	return append(k, 0)
}

// RecordCodec encodes record values for storage, compressing large values.
type RecordCodec struct {
	compressor compression.Compressor
	level      int
	threshold  int
}

// NewRecordCodec builds a codec from driver options.
func NewRecordCodec(opts Options) (*RecordCodec, error) {
	opts = opts.withDefaults()
	comp, err := compression.Get(opts.Compressor)
	if err != nil {
		return nil, fmt.Errorf("record codec: %w", err)
	}
	return &RecordCodec{
		compressor: comp,
		level:      opts.CompressionLevel,
		threshold:  opts.CompressionThreshold,
	}, nil
}

// Encode returns the stored form of a record value. Compressed values carry
// the original length so decompression can size its buffer exactly:
//
//	<flag> [uint32 original length] <payload>
//
// Incompressible values stay plain.
func (c *RecordCodec) Encode(value []byte) ([]byte, error) {
	if len(value) >= c.threshold && c.compressor.Name() != "none" {
		compressed, err := c.compressor.Compress(value, c.level)
		if err == nil && len(compressed) > 0 && len(compressed)+4 < len(value) {
			out := make([]byte, 5+len(compressed))
			out[0] = recordCompressed
			binary.BigEndian.PutUint32(out[1:5], uint32(len(value)))
			copy(out[5:], compressed)
			return out, nil
		}
	}

	out := make([]byte, 1+len(value))
	out[0] = recordPlain
	copy(out[1:], value)
	return out, nil
}

// Decode returns the original record value from its stored form.
func (c *RecordCodec) Decode(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, fmt.Errorf("decode record: empty stored value")
	}
	switch stored[0] {
	case recordPlain:
		out := make([]byte, len(stored)-1)
		copy(out, stored[1:])
		return out, nil
	case recordCompressed:
		if len(stored) < 5 {
			return nil, fmt.Errorf("decode record: truncated compressed value")
		}
		size := int(binary.BigEndian.Uint32(stored[1:5]))
		value, err := c.compressor.Decompress(stored[5:], size)
		if err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		return value, nil
	default:
		return nil, fmt.Errorf("decode record: unknown encoding flag %d", stored[0])
	}
}
