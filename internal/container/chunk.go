package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// Chunk is a single length/type/data/CRC record of a PNG stream.
type Chunk struct {
	Type ChunkType
	Data []byte
}

// ChunkReader tokenizes a PNG stream into chunks, verifying each CRC.
type ChunkReader struct {
	r   io.Reader
	hdr [ChunkHeaderSize]byte
	crc [ChunkCRCSize]byte
	n   int64 // chunks read
}

// NewChunkReader returns a reader positioned after the PNG signature. The
// signature is read and checked immediately.
func NewChunkReader(r io.Reader) (*ChunkReader, error) {
	var sig [len(Signature)]byte
	if _, err := io.ReadFull(r, sig[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrSignature
		}
		return nil, err
	}
	if string(sig[:]) != Signature {
		return nil, ErrSignature
	}
	return &ChunkReader{r: r}, nil
}

// Next reads the next chunk. A stream that ends before a chunk is complete
// yields ErrTruncated.
func (cr *ChunkReader) Next() (Chunk, error) {
	if _, err := io.ReadFull(cr.r, cr.hdr[:]); err != nil {
		return Chunk{}, truncated(err)
	}
	length := binary.BigEndian.Uint32(cr.hdr[:4])
	if length > MaxChunkLength {
		return Chunk{}, fmt.Errorf("%w: chunk length %d", ErrInvalidChunk, length)
	}
	typ := ChunkType(binary.BigEndian.Uint32(cr.hdr[4:8]))

	// Grow with the data actually present instead of trusting the length.
	var buf bytes.Buffer
	n, err := io.CopyN(&buf, cr.r, int64(length))
	if err != nil && !errors.Is(err, io.EOF) {
		return Chunk{}, err
	}
	if n < int64(length) {
		return Chunk{}, fmt.Errorf("%w: %s chunk", ErrTruncated, typ)
	}
	if _, err := io.ReadFull(cr.r, cr.crc[:]); err != nil {
		return Chunk{}, truncated(err)
	}

	h := crc32.NewIEEE()
	h.Write(cr.hdr[4:8])
	h.Write(buf.Bytes())
	if h.Sum32() != binary.BigEndian.Uint32(cr.crc[:]) {
		return Chunk{}, fmt.Errorf("%w: %s chunk", ErrChecksum, typ)
	}
	cr.n++
	return Chunk{Type: typ, Data: buf.Bytes()}, nil
}

// Count returns the number of chunks read so far.
func (cr *ChunkReader) Count() int64 { return cr.n }

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}

// AppendChunk appends the encoded form of a chunk (length, type, data, CRC)
// to b.
func AppendChunk(b []byte, typ ChunkType, data []byte) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(data)))
	start := len(b)
	b = binary.BigEndian.AppendUint32(b, uint32(typ))
	b = append(b, data...)
	return binary.BigEndian.AppendUint32(b, crc32.ChecksumIEEE(b[start:]))
}
