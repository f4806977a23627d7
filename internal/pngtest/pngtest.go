// Package pngtest builds PNG and APNG byte streams chunk by chunk for tests,
// including streams no well-behaved encoder would produce.
package pngtest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"image"

	"github.com/deepteams/apng/animation"
	"github.com/deepteams/apng/internal/container"
)

// Builder accumulates chunks. Image data is always 8-bit RGBA.
type Builder struct {
	buf []byte
	seq uint32
}

// New starts a stream with the signature and an RGBA8 IHDR of the given size.
func New(width, height int) *Builder {
	b := &Builder{buf: []byte(container.Signature)}
	ihdr := make([]byte, container.IHDRSize)
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(width))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(height))
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolor with alpha
	return b.Chunk("IHDR", ihdr)
}

// Raw starts an empty stream, without signature.
func Raw() *Builder { return &Builder{} }

// Bytes returns the stream built so far.
func (b *Builder) Bytes() []byte { return b.buf }

// Append appends arbitrary bytes.
func (b *Builder) Append(p []byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}

// Chunk appends a chunk with a valid CRC.
func (b *Builder) Chunk(typ string, data []byte) *Builder {
	t := container.MakeChunkType(typ[0], typ[1], typ[2], typ[3])
	b.buf = container.AppendChunk(b.buf, t, data)
	return b
}

// SkipSequence advances the sequence counter without writing a chunk.
func (b *Builder) SkipSequence(n uint32) *Builder {
	b.seq += n
	return b
}

// ACTL appends an animation control chunk.
func (b *Builder) ACTL(frames, plays int) *Builder {
	var p [container.ACTLSize]byte
	binary.BigEndian.PutUint32(p[0:4], uint32(frames))
	binary.BigEndian.PutUint32(p[4:8], uint32(plays))
	return b.Chunk("acTL", p[:])
}

// FCTL appends a frame control chunk. fc.SequenceNumber is ignored; the
// builder numbers chunks itself.
func (b *Builder) FCTL(fc animation.FrameControl) *Builder {
	var p [container.FCTLSize]byte
	be := binary.BigEndian
	be.PutUint32(p[0:4], b.seq)
	be.PutUint32(p[4:8], uint32(fc.Width))
	be.PutUint32(p[8:12], uint32(fc.Height))
	be.PutUint32(p[12:16], uint32(fc.XOffset))
	be.PutUint32(p[16:20], uint32(fc.YOffset))
	be.PutUint16(p[20:22], fc.DelayNum)
	be.PutUint16(p[22:24], fc.DelayDen)
	p[24] = byte(fc.DisposeOp)
	p[25] = byte(fc.BlendOp)
	b.seq++
	return b.Chunk("fcTL", p[:])
}

// IDAT appends the image data of img as one IDAT chunk.
func (b *Builder) IDAT(img *image.NRGBA) *Builder {
	return b.Chunk("IDAT", ImageData(img))
}

// FDAT appends the image data of img as one fdAT chunk.
func (b *Builder) FDAT(img *image.NRGBA) *Builder {
	p := binary.BigEndian.AppendUint32(nil, b.seq)
	b.seq++
	return b.Chunk("fdAT", append(p, ImageData(img)...))
}

// IEND appends the terminating chunk.
func (b *Builder) IEND() *Builder {
	return b.Chunk("IEND", nil)
}

// ImageData returns the zlib-compressed, unfiltered RGBA8 scanlines of img.
func ImageData(img *image.NRGBA) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	r := img.Bounds()
	row := make([]byte, 1+4*r.Dx())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := img.PixOffset(r.Min.X, y)
		copy(row[1:], img.Pix[i:i+4*r.Dx()])
		zw.Write(row)
	}
	zw.Close()
	return buf.Bytes()
}

// Frame is one animation frame for Animation.
type Frame struct {
	Control animation.FrameControl
	Image   *image.NRGBA
}

// Animation encodes a complete APNG whose first frame is the IDAT image.
// Frame regions are taken from each Control; Width and Height default to
// the image size.
func Animation(width, height, plays int, frames ...Frame) []byte {
	b := New(width, height).ACTL(len(frames), plays)
	for i, f := range frames {
		fc := f.Control
		if fc.Width == 0 && fc.Height == 0 {
			fc.Width, fc.Height = f.Image.Bounds().Dx(), f.Image.Bounds().Dy()
		}
		b.FCTL(fc)
		if i == 0 {
			b.IDAT(f.Image)
		} else {
			b.FDAT(f.Image)
		}
	}
	return b.IEND().Bytes()
}

// Static encodes img as a plain PNG.
func Static(img *image.NRGBA) []byte {
	r := img.Bounds()
	return New(r.Dx(), r.Dy()).IDAT(img).IEND().Bytes()
}
