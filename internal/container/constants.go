// Package container reads the chunk structure of PNG and APNG streams and
// reports it, in stream order, to a Director.
package container

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Signature is the 8-byte magic that starts every PNG stream.
const Signature = "\x89PNG\r\n\x1a\n"

// ChunkType is a PNG chunk type code stored big-endian.
type ChunkType uint32

// MakeChunkType creates a ChunkType from its four ASCII letters.
func MakeChunkType(a, b, c, d byte) ChunkType {
	return ChunkType(binary.BigEndian.Uint32([]byte{a, b, c, d}))
}

// Chunk types handled by the reader.
var (
	TypeIHDR = MakeChunkType('I', 'H', 'D', 'R')
	TypePLTE = MakeChunkType('P', 'L', 'T', 'E')
	TypeTRNS = MakeChunkType('t', 'R', 'N', 'S')
	TypeIDAT = MakeChunkType('I', 'D', 'A', 'T')
	TypeIEND = MakeChunkType('I', 'E', 'N', 'D')
	TypeACTL = MakeChunkType('a', 'c', 'T', 'L')
	TypeFCTL = MakeChunkType('f', 'c', 'T', 'L')
	TypeFDAT = MakeChunkType('f', 'd', 'A', 'T')
)

// String returns the four-letter chunk name.
func (t ChunkType) String() string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(t))
	return string(b[:])
}

// Critical reports whether the chunk must be understood to decode the image.
func (t ChunkType) Critical() bool {
	return t>>24&0x20 == 0
}

// Format constants.
const (
	ChunkHeaderSize = 8 // length + type
	ChunkCRCSize    = 4
	MaxChunkLength  = 1<<31 - 1
	MaxDimension    = 1<<31 - 1

	IHDRSize    = 13
	ACTLSize    = 8
	FCTLSize    = 26
	FDATSeqSize = 4

	colorTypePaletted = 3
	maxDisposeOp      = 2
	maxBlendOp        = 1
)

// Errors returned by the reader. All of them wrap ErrFormat.
var (
	ErrFormat = errors.New("apng: invalid format")

	ErrSignature    = fmt.Errorf("%w: missing PNG signature", ErrFormat)
	ErrTruncated    = fmt.Errorf("%w: truncated data", ErrFormat)
	ErrChecksum     = fmt.Errorf("%w: chunk checksum mismatch", ErrFormat)
	ErrChunkOrder   = fmt.Errorf("%w: chunk out of order", ErrFormat)
	ErrSequence     = fmt.Errorf("%w: sequence number out of order", ErrFormat)
	ErrInvalidChunk = fmt.Errorf("%w: invalid chunk", ErrFormat)
	ErrUnsupported  = fmt.Errorf("%w: unsupported critical chunk", ErrFormat)
	ErrImageData    = fmt.Errorf("%w: invalid image data", ErrFormat)
)
