// Package raster provides the RGBA8888 pixel buffers that animation frames
// are composited into and retained as.
//
// A Buffer wraps an *image.NRGBA whose memory comes from an Allocator, so a
// host can substitute its own bitmap storage. Every Buffer must be released
// exactly once; Release is idempotent so owners can release defensively.
package raster

import (
	"errors"
	"image"
)

// ErrReleased is returned when an operation needs the pixels of a buffer
// that has already been released.
var ErrReleased = errors.New("raster: buffer already released")

// Op selects how Blit combines source pixels with the destination.
type Op int

const (
	// OpSource replaces destination pixels, alpha included.
	OpSource Op = iota
	// OpOver composites the source over the destination.
	OpOver
)

func (o Op) String() string {
	switch o {
	case OpSource:
		return "source"
	case OpOver:
		return "over"
	default:
		return "unknown"
	}
}

// Buffer is an RGBA8888 raster with its origin at (0,0).
type Buffer struct {
	img   *image.NRGBA
	alloc Allocator
}

// New allocates a fully transparent width x height buffer from alloc.
// A nil alloc uses DefaultAllocator.
func New(alloc Allocator, width, height int) (*Buffer, error) {
	if alloc == nil {
		alloc = DefaultAllocator
	}
	pix, err := alloc.Alloc(width, height)
	if err != nil {
		return nil, err
	}
	return &Buffer{
		img: &image.NRGBA{
			Pix:    pix,
			Stride: width * 4,
			Rect:   image.Rect(0, 0, width, height),
		},
		alloc: alloc,
	}, nil
}

// Image returns the underlying image, or nil once the buffer is released.
// The image stays owned by the buffer.
func (b *Buffer) Image() *image.NRGBA {
	return b.img
}

// Bounds returns the buffer rectangle. It is empty after Release.
func (b *Buffer) Bounds() image.Rectangle {
	if b.img == nil {
		return image.Rectangle{}
	}
	return b.img.Rect
}

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int { return b.Bounds().Dx() }

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int { return b.Bounds().Dy() }

// Released reports whether Release has been called.
func (b *Buffer) Released() bool {
	return b.img == nil
}

// Release returns the pixel memory to the allocator. Calling it again is a no-op.
func (b *Buffer) Release() {
	if b.img == nil {
		return
	}
	pix := b.img.Pix
	b.img = nil
	b.alloc.Free(pix)
}

// Clear sets every pixel to transparent black (0,0,0,0).
func (b *Buffer) Clear() {
	if b.img == nil {
		return
	}
	clear(b.img.Pix)
}

// Blit draws src with its top-left corner at the given point. The drawn area
// is clipped to the buffer.
func (b *Buffer) Blit(src *image.NRGBA, at image.Point, op Op) {
	if b.img == nil || src == nil {
		return
	}
	sb := src.Bounds()
	rect := image.Rectangle{Min: at, Max: at.Add(sb.Size())}.Intersect(b.img.Rect)
	if rect.Empty() {
		return
	}
	w := rect.Dx() * 4
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		sOff := src.PixOffset(sb.Min.X+rect.Min.X-at.X, sb.Min.Y+y-at.Y)
		dOff := b.img.PixOffset(rect.Min.X, y)
		srow := src.Pix[sOff : sOff+w]
		drow := b.img.Pix[dOff : dOff+w]
		if op == OpSource {
			copy(drow, srow)
			continue
		}
		for i := 0; i < w; i += 4 {
			blendOver(drow[i:i+4:i+4], srow[i:i+4:i+4])
		}
	}
}

// CopyRegion returns a new buffer holding a copy of the pixels inside r,
// which is clipped to the buffer bounds.
func (b *Buffer) CopyRegion(r image.Rectangle) (*Buffer, error) {
	if b.img == nil {
		return nil, ErrReleased
	}
	r = r.Intersect(b.img.Rect)
	dst, err := New(b.alloc, r.Dx(), r.Dy())
	if err != nil {
		return nil, err
	}
	w := r.Dx() * 4
	for y := r.Min.Y; y < r.Max.Y; y++ {
		sOff := b.img.PixOffset(r.Min.X, y)
		dOff := (y - r.Min.Y) * dst.img.Stride
		copy(dst.img.Pix[dOff:dOff+w], b.img.Pix[sOff:sOff+w])
	}
	return dst, nil
}

// Clone returns a full copy of the buffer using the same allocator.
func (b *Buffer) Clone() (*Buffer, error) {
	if b.img == nil {
		return nil, ErrReleased
	}
	dst, err := New(b.alloc, b.img.Rect.Dx(), b.img.Rect.Dy())
	if err != nil {
		return nil, err
	}
	copy(dst.img.Pix, b.img.Pix)
	return dst, nil
}
