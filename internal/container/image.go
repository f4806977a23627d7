package container

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"

	"github.com/deepteams/apng/animation"
	"github.com/deepteams/apng/raster"
)

func parseIHDR(data []byte) (animation.Header, error) {
	if len(data) != IHDRSize {
		return animation.Header{}, fmt.Errorf("%w: IHDR length %d", ErrInvalidChunk, len(data))
	}
	w := binary.BigEndian.Uint32(data[0:4])
	h := binary.BigEndian.Uint32(data[4:8])
	if w == 0 || h == 0 || w > MaxDimension || h > MaxDimension {
		return animation.Header{}, fmt.Errorf("%w: image size %dx%d", ErrInvalidChunk, w, h)
	}
	return animation.Header{Width: int(w), Height: int(h)}, nil
}

func parseACTL(data []byte) (animation.AnimationControl, error) {
	if len(data) != ACTLSize {
		return animation.AnimationControl{}, fmt.Errorf("%w: acTL length %d", ErrInvalidChunk, len(data))
	}
	n := binary.BigEndian.Uint32(data[0:4])
	plays := binary.BigEndian.Uint32(data[4:8])
	if n == 0 || n > MaxDimension || plays > MaxDimension {
		return animation.AnimationControl{}, fmt.Errorf("%w: acTL frames=%d plays=%d", ErrInvalidChunk, n, plays)
	}
	return animation.AnimationControl{NumFrames: int(n), NumPlays: int(plays)}, nil
}

func parseFCTL(data []byte) (animation.FrameControl, error) {
	if len(data) != FCTLSize {
		return animation.FrameControl{}, fmt.Errorf("%w: fcTL length %d", ErrInvalidChunk, len(data))
	}
	be := binary.BigEndian
	w, h := be.Uint32(data[4:8]), be.Uint32(data[8:12])
	x, y := be.Uint32(data[12:16]), be.Uint32(data[16:20])
	if w == 0 || h == 0 || w > MaxDimension || h > MaxDimension || x > MaxDimension || y > MaxDimension {
		return animation.FrameControl{}, fmt.Errorf("%w: fcTL region %dx%d+%d+%d", ErrInvalidChunk, w, h, x, y)
	}
	if data[24] > maxDisposeOp || data[25] > maxBlendOp {
		return animation.FrameControl{}, fmt.Errorf("%w: fcTL dispose=%d blend=%d", ErrInvalidChunk, data[24], data[25])
	}
	return animation.FrameControl{
		SequenceNumber: be.Uint32(data[0:4]),
		Width:          int(w),
		Height:         int(h),
		XOffset:        int(x),
		YOffset:        int(y),
		DelayNum:       be.Uint16(data[20:22]),
		DelayDen:       be.Uint16(data[22:24]),
		DisposeOp:      animation.DisposeOp(data[24]),
		BlendOp:        animation.BlendOp(data[25]),
	}, nil
}

// decodeImage rebuilds a standalone PNG around one frame's image data, using
// the stream's IHDR with the frame size patched in, and decodes it.
func decodeImage(ihdr, plte, trns []byte, size image.Point, data []byte) (*image.NRGBA, error) {
	hdr := make([]byte, IHDRSize)
	copy(hdr, ihdr)
	binary.BigEndian.PutUint32(hdr[0:4], uint32(size.X))
	binary.BigEndian.PutUint32(hdr[4:8], uint32(size.Y))

	buf := make([]byte, 0, len(data)+len(plte)+len(trns)+128)
	buf = append(buf, Signature...)
	buf = AppendChunk(buf, TypeIHDR, hdr)
	if plte != nil {
		buf = AppendChunk(buf, TypePLTE, plte)
	}
	if trns != nil {
		buf = AppendChunk(buf, TypeTRNS, trns)
	}
	buf = AppendChunk(buf, TypeIDAT, data)
	buf = AppendChunk(buf, TypeIEND, nil)

	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageData, err)
	}
	if img.Bounds().Size() != size {
		return nil, fmt.Errorf("%w: decoded %v, want %v", ErrImageData, img.Bounds().Size(), size)
	}
	return raster.ToNRGBA(img), nil
}
