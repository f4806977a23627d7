// Package animation implements APNG canvas reconstruction and playback timing.
//
// A Composer applies each frame's blend and dispose operations to an
// accumulation buffer and appends a snapshot of the result to a Timeline.
// A finished Timeline maps elapsed playback time to the visible frame.
// Chunk parsing and scanline decoding happen elsewhere; this package only
// deals with the compositing and timing semantics of the APNG format.
package animation

import (
	"errors"
	"fmt"
	"image"
)

// DisposeOp controls how the frame region is treated after the frame is
// rendered, before the next frame is drawn.
type DisposeOp uint8

const (
	// DisposeNone leaves the canvas as-is.
	DisposeNone DisposeOp = 0
	// DisposeBackground clears the canvas to transparent black.
	DisposeBackground DisposeOp = 1
	// DisposePrevious reverts the frame region to its content before the
	// frame was drawn.
	DisposePrevious DisposeOp = 2
)

func (d DisposeOp) String() string {
	switch d {
	case DisposeNone:
		return "none"
	case DisposeBackground:
		return "background"
	case DisposePrevious:
		return "previous"
	default:
		return fmt.Sprintf("DisposeOp(%d)", uint8(d))
	}
}

// BlendOp controls how a frame is composited onto the canvas.
type BlendOp uint8

const (
	// BlendSource overwrites the frame region, alpha included.
	BlendSource BlendOp = 0
	// BlendOver alpha-composites the frame over the existing canvas.
	BlendOver BlendOp = 1
)

func (b BlendOp) String() string {
	switch b {
	case BlendSource:
		return "source"
	case BlendOver:
		return "over"
	default:
		return fmt.Sprintf("BlendOp(%d)", uint8(b))
	}
}

var (
	// ErrContract is wrapped by every error caused by callbacks arriving in
	// an order or shape the compositor cannot accept.
	ErrContract = errors.New("animation: contract violation")

	ErrFramePending     = fmt.Errorf("%w: frame control while a frame is pending", ErrContract)
	ErrNoPendingFrame   = fmt.Errorf("%w: frame image without frame control", ErrContract)
	ErrFrameOutOfBounds = fmt.Errorf("%w: frame region exceeds canvas bounds", ErrContract)
	ErrFrameSize        = fmt.Errorf("%w: frame image does not match frame region", ErrContract)
	ErrComposerReleased = fmt.Errorf("%w: composer already released", ErrContract)
	ErrNotAnimated      = fmt.Errorf("%w: frame callback without animation control", ErrContract)
	ErrNoHeader         = fmt.Errorf("%w: callback before header", ErrContract)
)

// Header holds the canvas dimensions from IHDR.
type Header struct {
	Width  int
	Height int
}

// Bounds returns the canvas rectangle.
func (h Header) Bounds() image.Rectangle {
	return image.Rect(0, 0, h.Width, h.Height)
}

// AnimationControl holds the acTL values.
type AnimationControl struct {
	// NumFrames is the declared number of frames.
	NumFrames int
	// NumPlays is the number of times to play the animation. 0 means forever.
	NumPlays int
}

// FrameControl holds the fcTL values for one frame.
type FrameControl struct {
	SequenceNumber uint32
	Width          int
	Height         int
	XOffset        int
	YOffset        int
	DelayNum       uint16
	DelayDen       uint16
	DisposeOp      DisposeOp
	BlendOp        BlendOp
}

// Bounds returns the frame region on the canvas.
func (fc *FrameControl) Bounds() image.Rectangle {
	return image.Rect(fc.XOffset, fc.YOffset, fc.XOffset+fc.Width, fc.YOffset+fc.Height)
}

// DelayMilliseconds returns the frame delay in milliseconds. A zero
// denominator means hundredths of a second.
func (fc *FrameControl) DelayMilliseconds() int64 {
	den := int64(fc.DelayDen)
	if den == 0 {
		den = 100
	}
	return int64(fc.DelayNum) * 1000 / den
}
