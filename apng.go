package apng

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deepteams/apng/animation"
	"github.com/deepteams/apng/internal/container"
	"github.com/deepteams/apng/raster"
)

// NoChange is the delay reported when the returned frame never changes.
const NoChange = animation.NoChange

// Errors returned by Decode. Use errors.Is to match a family.
var (
	// ErrFormat is wrapped by every error caused by malformed input.
	ErrFormat     = container.ErrFormat
	ErrChecksum   = container.ErrChecksum
	ErrTruncated  = container.ErrTruncated
	ErrSequence   = container.ErrSequence
	ErrChunkOrder = container.ErrChunkOrder

	// ErrContract is wrapped by errors caused by frame data that cannot be
	// composited, such as a frame region outside the canvas.
	ErrContract    = animation.ErrContract
	ErrNotAnimated = animation.ErrNotAnimated

	// ErrAllocation is wrapped when the allocator refuses a buffer.
	ErrAllocation = raster.ErrAllocation

	ErrNoImage = errors.New("apng: stream contains no image")
)

// Options configures Decode. A nil *Options uses the defaults.
type Options struct {
	// MaxPixelDimension caps the larger side of every decoded frame.
	// Larger frames are downscaled preserving aspect ratio. 0 disables
	// scaling.
	MaxPixelDimension int

	// Allocator provides pixel memory. nil uses raster.DefaultAllocator.
	Allocator raster.Allocator

	// Logger receives debug records while decoding. nil discards them.
	Logger *slog.Logger

	// DurationScale is the initial playback time scale. Values above 1 slow
	// playback down. 0 means 1.
	DurationScale float64
}

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Allocator == nil {
		out.Allocator = raster.DefaultAllocator
	}
	if out.Logger == nil {
		out.Logger = slog.New(slog.DiscardHandler)
	}
	if out.MaxPixelDimension < 0 {
		out.MaxPixelDimension = 0
	}
	out.DurationScale = validScale(out.DurationScale)
	return out
}

func validScale(v float64) float64 {
	if v > 0 && !math.IsInf(v, 0) {
		return v
	}
	return 1
}

// FrameResult is the answer to a FindFrame lookup.
type FrameResult struct {
	// Image is the composited frame. It is owned by Frames and valid
	// until Close; callers must not modify it.
	Image *image.NRGBA
	// Delay is the wall time until a different frame becomes visible, or
	// NoChange.
	Delay time.Duration
}

// Frame is one entry of a decoded animation.
type Frame struct {
	Image    *image.NRGBA
	Start    time.Duration
	Duration time.Duration
}

// Frames is a decoded APNG. Lookups may run concurrently with each other
// and with SetDurationScale, but not with Close.
type Frames struct {
	timeline *animation.Timeline // nil for still images
	still    *raster.Buffer
	bounds   image.Rectangle
	scale    atomic.Uint64
	closer   sync.Once
}

// Decode reads an APNG or PNG stream from r.
func Decode(r io.Reader, opts *Options) (*Frames, error) {
	return DecodeContext(context.Background(), r, opts)
}

// DecodeContext is like Decode but stops with ctx's error once ctx is done.
// On any error every buffer allocated so far has been released.
func DecodeContext(ctx context.Context, r io.Reader, opts *Options) (_ *Frames, err error) {
	o := opts.withDefaults()
	s := newSession(o)
	defer func() {
		if err != nil {
			s.release()
		}
	}()

	if err := container.Read(ctx, r, s); err != nil {
		o.Logger.Warn("apng: decode failed", "frames", s.completed(), "error", err)
		return nil, fmt.Errorf("apng: decode: %w", err)
	}
	f, err := s.finish()
	if err != nil {
		return nil, fmt.Errorf("apng: decode: %w", err)
	}
	f.SetDurationScale(o.DurationScale)
	return f, nil
}

// DecodeConfig returns the canvas size of an APNG or PNG stream without
// decoding image data. Decoded frames are always NRGBA.
func DecodeConfig(r io.Reader) (image.Config, error) {
	info, err := container.Probe(r)
	if err != nil {
		return image.Config{}, fmt.Errorf("apng: decode config: %w", err)
	}
	return image.Config{
		ColorModel: color.NRGBAModel,
		Width:      info.Header.Width,
		Height:     info.Header.Height,
	}, nil
}

// FindFrame returns the frame visible after elapsed playback time and how
// long it stays visible. Negative times are treated as zero. Still images
// always return the same image with Delay NoChange.
func (f *Frames) FindFrame(elapsed time.Duration) FrameResult {
	if f.timeline == nil {
		if f.still == nil || f.still.Released() {
			return FrameResult{Delay: NoChange}
		}
		return FrameResult{Image: f.still.Image(), Delay: NoChange}
	}
	i, d := f.timeline.Find(elapsed, f.DurationScale())
	if i < 0 {
		return FrameResult{Delay: NoChange}
	}
	return FrameResult{Image: f.timeline.Frame(i).Buffer.Image(), Delay: d}
}

// IsSingleFrame reports whether the stream decoded to one still image.
func (f *Frames) IsSingleFrame() bool {
	return f.timeline == nil
}

// FrameCount returns the number of decoded frames.
func (f *Frames) FrameCount() int {
	if f.timeline == nil {
		return 1
	}
	return f.timeline.Len()
}

// Frame returns the i-th decoded frame with its timing at scale 1. It
// returns the zero Frame when i is out of range.
func (f *Frames) Frame(i int) Frame {
	if f.timeline == nil {
		if i != 0 || f.still == nil || f.still.Released() {
			return Frame{}
		}
		return Frame{Image: f.still.Image()}
	}
	if i < 0 || i >= f.timeline.Len() {
		return Frame{}
	}
	fr := f.timeline.Frame(i)
	return Frame{
		Image:    fr.Buffer.Image(),
		Start:    time.Duration(fr.Start) * time.Millisecond,
		Duration: time.Duration(fr.Duration) * time.Millisecond,
	}
}

// LoopCount returns the number of plays, 0 meaning forever. Still images
// report 0.
func (f *Frames) LoopCount() int {
	if f.timeline == nil {
		return 0
	}
	return f.timeline.LoopCount()
}

// TotalDuration returns the length of one play at scale 1.
func (f *Frames) TotalDuration() time.Duration {
	if f.timeline == nil {
		return 0
	}
	ms := f.timeline.TotalDuration()
	if ms > math.MaxInt64/int64(time.Millisecond) {
		return NoChange
	}
	return time.Duration(ms) * time.Millisecond
}

// Bounds returns the bounds of the returned images, after downscaling.
func (f *Frames) Bounds() image.Rectangle {
	return f.bounds
}

// SetDurationScale changes the playback time scale. Values above 1 slow
// playback down; non-positive or infinite values reset it to 1.
func (f *Frames) SetDurationScale(v float64) {
	f.scale.Store(math.Float64bits(validScale(v)))
}

// DurationScale returns the playback time scale.
func (f *Frames) DurationScale() float64 {
	return math.Float64frombits(f.scale.Load())
}

// Close releases all frame memory. It is safe to call more than once.
func (f *Frames) Close() error {
	f.closer.Do(func() {
		if f.timeline != nil {
			f.timeline.Release()
		}
		if f.still != nil {
			f.still.Release()
		}
	})
	return nil
}
