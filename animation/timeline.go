package animation

import (
	"math"

	"github.com/deepteams/apng/raster"
)

// EndWaitMillis is how long the last frame is held after a finite number of
// plays before the animation starts over.
const EndWaitMillis = 3000

// Frame is one composited timeline entry. Start and Duration are in
// milliseconds; Duration is always at least 1.
type Frame struct {
	Buffer   *raster.Buffer
	Start    int64
	Duration int64
}

// End returns the first millisecond after the frame.
func (f Frame) End() int64 {
	return f.Start + f.Duration
}

// Timeline is an append-only sequence of contiguous frames. Frames are
// appended in time order during parsing; afterwards the timeline is only
// read and may be shared between goroutines.
type Timeline struct {
	frames    []Frame
	total     int64
	loopCount int
}

// NewTimeline returns an empty timeline. loopCount is the number of plays,
// 0 meaning forever; sizeHint preallocates room for that many frames.
func NewTimeline(loopCount, sizeHint int) *Timeline {
	if loopCount < 0 {
		loopCount = 0
	}
	if sizeHint < 0 || sizeHint > 1024 {
		sizeHint = 0
	}
	return &Timeline{
		frames:    make([]Frame, 0, sizeHint),
		loopCount: loopCount,
	}
}

// SetLoopCount replaces the number of plays. It must not be called once the
// timeline is shared with readers.
func (t *Timeline) SetLoopCount(n int) {
	t.loopCount = max(n, 0)
}

// Append adds buf as the next frame and takes ownership of it. Delays below
// 1 ms are raised to 1 ms so time always moves forward.
func (t *Timeline) Append(buf *raster.Buffer, delayMillis int64) Frame {
	f := Frame{
		Buffer:   buf,
		Start:    t.total,
		Duration: max(delayMillis, 1),
	}
	t.frames = append(t.frames, f)
	t.total = satAdd(t.total, f.Duration)
	return f
}

// Len returns the number of frames.
func (t *Timeline) Len() int {
	return len(t.frames)
}

// Frame returns the i-th frame.
func (t *Timeline) Frame(i int) Frame {
	return t.frames[i]
}

// TotalDuration returns the length of one play in milliseconds.
func (t *Timeline) TotalDuration() int64 {
	return t.total
}

// LoopCount returns the number of plays, 0 meaning forever.
func (t *Timeline) LoopCount() int {
	return t.loopCount
}

// Take removes the buffer of frame i from the timeline and hands ownership
// to the caller. The frame keeps its timing.
func (t *Timeline) Take(i int) *raster.Buffer {
	buf := t.frames[i].Buffer
	t.frames[i].Buffer = nil
	return buf
}

// Release frees every frame buffer still owned by the timeline and empties
// it. It is safe to call more than once.
func (t *Timeline) Release() {
	for i := range t.frames {
		if buf := t.frames[i].Buffer; buf != nil {
			buf.Release()
		}
	}
	t.frames = nil
	t.total = 0
}

func satAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func satMul(a, b int64) int64 {
	if a != 0 && b > math.MaxInt64/a {
		return math.MaxInt64
	}
	return a * b
}
