package animation

import (
	"image"

	"github.com/deepteams/apng/raster"
)

// Composer owns the accumulation buffer and turns (frame control, frame
// image) pairs into composited timeline frames.
//
// Exactly one frame may be pending at a time: BeginFrame moves the composer
// from idle to building, CompleteFrame moves it back.
type Composer struct {
	header   Header
	maxDim   int
	canvas   *raster.Buffer
	timeline *Timeline
	pending  *FrameControl
}

// NewComposer allocates a transparent canvas of the header's size. Completed
// frames are downscaled to fit maxDim (0 disables scaling) and appended to tl.
func NewComposer(alloc raster.Allocator, h Header, maxDim int, tl *Timeline) (*Composer, error) {
	canvas, err := raster.New(alloc, h.Width, h.Height)
	if err != nil {
		return nil, err
	}
	return &Composer{
		header:   h,
		maxDim:   maxDim,
		canvas:   canvas,
		timeline: tl,
	}, nil
}

// Canvas returns the accumulation buffer. It is nil after Release.
func (c *Composer) Canvas() *raster.Buffer {
	if c.canvas == nil || c.canvas.Released() {
		return nil
	}
	return c.canvas
}

// Pending reports whether a frame has begun but not completed.
func (c *Composer) Pending() bool {
	return c.pending != nil
}

// BeginFrame validates fc against the canvas and makes it the pending frame.
// It returns the canvas region the frame image must be decoded for.
func (c *Composer) BeginFrame(fc FrameControl) (image.Rectangle, error) {
	if c.Canvas() == nil {
		return image.Rectangle{}, ErrComposerReleased
	}
	if c.pending != nil {
		return image.Rectangle{}, ErrFramePending
	}
	r := fc.Bounds()
	if fc.Width <= 0 || fc.Height <= 0 || fc.XOffset < 0 || fc.YOffset < 0 || !r.In(c.header.Bounds()) {
		return image.Rectangle{}, ErrFrameOutOfBounds
	}
	c.pending = &fc
	return r, nil
}

// CompleteFrame draws sub into the pending frame region, appends a snapshot
// of the canvas to the timeline, then applies the frame's dispose operation.
func (c *Composer) CompleteFrame(sub *image.NRGBA) (Frame, error) {
	if c.Canvas() == nil {
		return Frame{}, ErrComposerReleased
	}
	fc := c.pending
	if fc == nil {
		return Frame{}, ErrNoPendingFrame
	}
	c.pending = nil

	region := fc.Bounds()
	if sub == nil || sub.Bounds().Size() != region.Size() {
		return Frame{}, ErrFrameSize
	}

	var previous *raster.Buffer
	if fc.DisposeOp == DisposePrevious {
		snap, err := c.canvas.CopyRegion(region)
		if err != nil {
			return Frame{}, err
		}
		previous = snap
		defer previous.Release()
	}

	op := raster.OpSource
	if fc.BlendOp == BlendOver {
		op = raster.OpOver
	}
	c.canvas.Blit(sub, region.Min, op)

	snap, err := c.canvas.Clone()
	if err != nil {
		return Frame{}, err
	}
	snap, err = raster.Downscale(snap, c.maxDim)
	if err != nil {
		return Frame{}, err
	}
	f := c.timeline.Append(snap, fc.DelayMilliseconds())

	switch fc.DisposeOp {
	case DisposeBackground:
		// Clears the whole canvas rather than only fc.Bounds().
		// TODO: limit the clear to region once existing callers accept it.
		c.canvas.Clear()
	case DisposePrevious:
		c.canvas.Blit(previous.Image(), region.Min, raster.OpSource)
	}
	return f, nil
}

// Release frees the accumulation buffer and drops any pending frame.
// It is safe to call more than once.
func (c *Composer) Release() {
	c.pending = nil
	if c.canvas != nil {
		c.canvas.Release()
		c.canvas = nil
	}
}
