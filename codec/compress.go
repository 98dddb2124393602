package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression is the block compression applied to encoded row batches.
// Implementations must be safe for concurrent use.
type Compression interface {
	Tag() byte
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte, rawLen int) ([]byte, error)
}

const (
	tagNone byte = 0
	tagLZ4  byte = 1
	tagZstd byte = 2
)

// DefaultCompression is used when the caller does not pick one.
var DefaultCompression Compression = LZ4{}

// CompressionByName returns a built-in compression by its stable name.
func CompressionByName(name string) (Compression, bool) {
	switch name {
	case "none":
		return None{}, true
	case "lz4":
		return LZ4{}, true
	case "zstd":
		return Zstd{}, true
	default:
		return nil, false
	}
}

func compressionByTag(tag byte) (Compression, bool) {
	switch tag {
	case tagNone:
		return None{}, true
	case tagLZ4:
		return LZ4{}, true
	case tagZstd:
		return Zstd{}, true
	default:
		return nil, false
	}
}

// None passes blocks through uncompressed.
type None struct{}

// Tag returns the wire tag for uncompressed blocks.
func (None) Tag() byte { return tagNone }

// Name returns "none".
func (None) Name() string { return "none" }

// Compress returns src unchanged.
func (None) Compress(src []byte) ([]byte, error) { return src, nil }

// Decompress returns src unchanged.
func (None) Decompress(src []byte, rawLen int) ([]byte, error) {
	if len(src) != rawLen {
		return nil, fmt.Errorf("codec: raw block length %d, want %d", len(src), rawLen)
	}
	return src, nil
}

// LZ4 compresses blocks with lz4 (fast, the default for row batches).
type LZ4 struct{}

// Tag returns the wire tag for lz4 blocks.
func (LZ4) Tag() byte { return tagLZ4 }

// Name returns "lz4".
func (LZ4) Name() string { return "lz4" }

// Compress lz4-compresses src. Incompressible blocks are stored raw with a
// zero-length marker, matching UncompressBlock's contract on the read side.
func (LZ4) Compress(src []byte) ([]byte, error) {
	var c lz4.Compressor
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := c.CompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	if n == 0 || n >= len(src) {
		// Incompressible: fall back to a raw copy, flagged by length == rawLen.
		out := make([]byte, len(src))
		copy(out, src)
		return out, nil
	}
	return dst[:n], nil
}

// maxBlockExpansion caps how much a compressed block may claim to expand.
// lz4 block compression tops out around 255:1, so a larger raw length in the
// header is a corrupt message, not a big batch; allocating from it would let
// a malformed message drive the allocation size.
const maxBlockExpansion = 255

// Decompress reverses Compress.
func (LZ4) Decompress(src []byte, rawLen int) ([]byte, error) {
	if rawLen < 0 || rawLen > len(src)*maxBlockExpansion {
		return nil, fmt.Errorf("codec: implausible raw block length %d for %d compressed bytes", rawLen, len(src))
	}
	if len(src) == rawLen {
		return src, nil
	}
	dst := make([]byte, rawLen)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// Zstd compresses blocks with zstd (better ratio for large pages).
type Zstd struct{}

var (
	zstdEnc, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	zstdDec, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
)

// Tag returns the wire tag for zstd blocks.
func (Zstd) Tag() byte { return tagZstd }

// Name returns "zstd".
func (Zstd) Name() string { return "zstd" }

// Compress zstd-compresses src.
func (Zstd) Compress(src []byte) ([]byte, error) {
	return zstdEnc.EncodeAll(src, nil), nil
}

// Decompress reverses Compress. rawLen is only an allocation hint here; a
// corrupt header must not pick the buffer size.
func (Zstd) Decompress(src []byte, rawLen int) ([]byte, error) {
	if rawLen < 0 || rawLen > len(src)*maxBlockExpansion {
		rawLen = len(src)
	}
	dst, err := zstdDec.DecodeAll(src, make([]byte, 0, rawLen))
	if err != nil {
		return nil, err
	}
	return dst, nil
}
