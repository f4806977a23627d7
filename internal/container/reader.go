package container

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"io"

	"github.com/deepteams/apng/animation"
)

// Director receives the structure of a PNG stream in stream order. Any
// error it returns stops the read and is returned from Read unchanged.
type Director interface {
	// OnHeader is called once, for the IHDR chunk.
	OnHeader(h animation.Header) error
	// OnAnimationControl is called for an acTL chunk preceding the image data.
	OnAnimationControl(ac animation.AnimationControl) error
	// OnFrameControl is called for each fcTL chunk and returns the region
	// the frame's image data decodes into.
	OnFrameControl(fc animation.FrameControl) (image.Rectangle, error)
	// OnFrameImage delivers the decoded image of the frame announced by the
	// last OnFrameControl.
	OnFrameImage(img *image.NRGBA) error
	// WantDefaultImage reports whether an IDAT image that is not part of the
	// animation should be decoded at all.
	WantDefaultImage() bool
	// OnDefaultImage delivers the IDAT image when no fcTL precedes it.
	OnDefaultImage(img *image.NRGBA) error
}

const (
	idatNone = iota
	idatReading
	idatDone
)

type pendingFrame struct {
	seq      uint32
	size     image.Point
	data     []byte
	fromIDAT bool
}

type reader struct {
	d      Director
	header animation.Header

	ihdr, plte, trns []byte
	animated         bool
	nextSeq          uint32

	idat        int
	wantDefault bool
	defaultData []byte

	frame *pendingFrame
}

// Read parses a PNG or APNG stream from r, reporting it to d, and returns
// nil once IEND has been processed. Bytes after IEND are not read. ctx is
// checked before every chunk.
func Read(ctx context.Context, r io.Reader, d Director) error {
	cr, err := NewChunkReader(r)
	if err != nil {
		return err
	}
	rd := &reader{d: d}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := cr.Next()
		if err != nil {
			return err
		}
		done, err := rd.handle(c)
		if err != nil {
			return fmt.Errorf("chunk %d (%s): %w", cr.Count(), c.Type, err)
		}
		if done {
			return nil
		}
	}
}

func (rd *reader) handle(c Chunk) (bool, error) {
	if rd.ihdr == nil && c.Type != TypeIHDR {
		return false, fmt.Errorf("%w: %s before IHDR", ErrChunkOrder, c.Type)
	}
	if rd.idat == idatReading && c.Type != TypeIDAT {
		if err := rd.endIDAT(); err != nil {
			return false, err
		}
	}

	switch c.Type {
	case TypeIHDR:
		if rd.ihdr != nil {
			return false, fmt.Errorf("%w: duplicate IHDR", ErrChunkOrder)
		}
		h, err := parseIHDR(c.Data)
		if err != nil {
			return false, err
		}
		rd.ihdr, rd.header = c.Data, h
		return false, rd.d.OnHeader(h)
	case TypePLTE:
		if rd.idat != idatNone || rd.plte != nil {
			return false, fmt.Errorf("%w: PLTE", ErrChunkOrder)
		}
		rd.plte = c.Data
	case TypeTRNS:
		if rd.idat != idatNone || rd.trns != nil {
			return false, fmt.Errorf("%w: tRNS", ErrChunkOrder)
		}
		rd.trns = c.Data
	case TypeACTL:
		if rd.idat != idatNone || rd.animated {
			return false, fmt.Errorf("%w: acTL", ErrChunkOrder)
		}
		ac, err := parseACTL(c.Data)
		if err != nil {
			return false, err
		}
		rd.animated = true
		return false, rd.d.OnAnimationControl(ac)
	case TypeFCTL:
		return false, rd.frameControl(c.Data)
	case TypeIDAT:
		return false, rd.imageData(c.Data)
	case TypeFDAT:
		return false, rd.frameData(c.Data)
	case TypeIEND:
		if rd.idat == idatNone {
			return false, fmt.Errorf("%w: IEND before IDAT", ErrChunkOrder)
		}
		return true, rd.flushFrame()
	default:
		if c.Type.Critical() {
			return false, fmt.Errorf("%w: %s", ErrUnsupported, c.Type)
		}
	}
	return false, nil
}

func (rd *reader) checkSequence(seq uint32) error {
	if seq != rd.nextSeq {
		return fmt.Errorf("%w: got %d, want %d", ErrSequence, seq, rd.nextSeq)
	}
	rd.nextSeq++
	return nil
}

func (rd *reader) frameControl(data []byte) error {
	fc, err := parseFCTL(data)
	if err != nil {
		return err
	}
	if err := rd.checkSequence(fc.SequenceNumber); err != nil {
		return err
	}
	if err := rd.flushFrame(); err != nil {
		return err
	}

	fromIDAT := rd.idat == idatNone
	if fromIDAT && (fc.XOffset != 0 || fc.YOffset != 0 || fc.Width != rd.header.Width || fc.Height != rd.header.Height) {
		return fmt.Errorf("%w: first fcTL region %v differs from image bounds", ErrInvalidChunk, fc.Bounds())
	}
	r, err := rd.d.OnFrameControl(fc)
	if err != nil {
		return err
	}
	rd.frame = &pendingFrame{seq: fc.SequenceNumber, size: r.Size(), fromIDAT: fromIDAT}
	return nil
}

func (rd *reader) imageData(data []byte) error {
	switch rd.idat {
	case idatDone:
		return fmt.Errorf("%w: IDAT after image data ended", ErrChunkOrder)
	case idatNone:
		rd.idat = idatReading
		if rd.frame == nil {
			rd.wantDefault = rd.d.WantDefaultImage()
		}
	}
	switch {
	case rd.frame != nil:
		rd.frame.data = append(rd.frame.data, data...)
	case rd.wantDefault:
		rd.defaultData = append(rd.defaultData, data...)
	}
	return nil
}

func (rd *reader) endIDAT() error {
	rd.idat = idatDone
	if rd.frame != nil || !rd.wantDefault {
		return nil
	}
	data := rd.defaultData
	rd.defaultData = nil
	img, err := decodeImage(rd.ihdr, rd.plte, rd.trns, rd.header.Bounds().Size(), data)
	if err != nil {
		return err
	}
	return rd.d.OnDefaultImage(img)
}

func (rd *reader) frameData(data []byte) error {
	if len(data) < FDATSeqSize {
		return fmt.Errorf("%w: fdAT length %d", ErrInvalidChunk, len(data))
	}
	if err := rd.checkSequence(binary.BigEndian.Uint32(data[:FDATSeqSize])); err != nil {
		return err
	}
	if rd.idat == idatNone || rd.frame == nil || rd.frame.fromIDAT {
		return fmt.Errorf("%w: fdAT without a preceding fcTL", ErrChunkOrder)
	}
	rd.frame.data = append(rd.frame.data, data[FDATSeqSize:]...)
	return nil
}

// flushFrame decodes the pending frame, if any, and hands it to the director.
func (rd *reader) flushFrame() error {
	f := rd.frame
	if f == nil {
		return nil
	}
	rd.frame = nil
	if len(f.data) == 0 {
		return fmt.Errorf("%w: fcTL %d has no image data", ErrChunkOrder, f.seq)
	}
	img, err := decodeImage(rd.ihdr, rd.plte, rd.trns, f.size, f.data)
	if err != nil {
		return err
	}
	return rd.d.OnFrameImage(img)
}
