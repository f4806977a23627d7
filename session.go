package apng

import (
	"image"
	"log/slog"

	"github.com/deepteams/apng/animation"
	"github.com/deepteams/apng/raster"
)

// session receives the chunk reader's callbacks and builds the timeline.
type session struct {
	alloc  raster.Allocator
	maxDim int
	log    *slog.Logger

	header   *animation.Header
	animated bool
	declared int
	composer *animation.Composer
	timeline *animation.Timeline
	still    *raster.Buffer
}

func newSession(o Options) *session {
	return &session{
		alloc:  o.Allocator,
		maxDim: o.MaxPixelDimension,
		log:    o.Logger,
	}
}

func (s *session) OnHeader(h animation.Header) error {
	s.timeline = animation.NewTimeline(0, 0)
	c, err := animation.NewComposer(s.alloc, h, s.maxDim, s.timeline)
	if err != nil {
		return err
	}
	s.header, s.composer = &h, c
	s.log.Debug("apng: header", "width", h.Width, "height", h.Height)
	return nil
}

func (s *session) OnAnimationControl(ac animation.AnimationControl) error {
	if s.header == nil {
		return animation.ErrNoHeader
	}
	s.animated = true
	s.declared = ac.NumFrames
	s.timeline.SetLoopCount(ac.NumPlays)
	s.log.Debug("apng: animation control", "frames", ac.NumFrames, "plays", ac.NumPlays)
	return nil
}

func (s *session) OnFrameControl(fc animation.FrameControl) (image.Rectangle, error) {
	if s.header == nil {
		return image.Rectangle{}, animation.ErrNoHeader
	}
	if !s.animated {
		return image.Rectangle{}, animation.ErrNotAnimated
	}
	r, err := s.composer.BeginFrame(fc)
	if err != nil {
		return image.Rectangle{}, err
	}
	s.log.Debug("apng: frame control",
		"seq", fc.SequenceNumber,
		"region", r,
		"delay_ms", fc.DelayMilliseconds(),
		"dispose", fc.DisposeOp,
		"blend", fc.BlendOp,
	)
	return r, nil
}

func (s *session) OnFrameImage(img *image.NRGBA) error {
	if s.header == nil {
		return animation.ErrNoHeader
	}
	if !s.animated {
		return animation.ErrNotAnimated
	}
	f, err := s.composer.CompleteFrame(img)
	if err != nil {
		return err
	}
	s.log.Debug("apng: frame", "index", s.timeline.Len()-1, "start_ms", f.Start, "duration_ms", f.Duration)
	return nil
}

func (s *session) WantDefaultImage() bool {
	return !s.animated
}

func (s *session) OnDefaultImage(img *image.NRGBA) error {
	if s.header == nil {
		return animation.ErrNoHeader
	}
	if s.animated {
		return nil
	}
	buf, err := raster.New(s.alloc, img.Rect.Dx(), img.Rect.Dy())
	if err != nil {
		return err
	}
	buf.Blit(img, image.Point{}, raster.OpSource)
	buf, err = raster.Downscale(buf, s.maxDim)
	if err != nil {
		return err
	}
	if s.still != nil {
		s.still.Release()
	}
	s.still = buf
	s.log.Debug("apng: default image", "width", img.Rect.Dx(), "height", img.Rect.Dy())
	return nil
}

func (s *session) completed() int {
	if s.timeline == nil {
		return 0
	}
	return s.timeline.Len()
}

// finish releases the canvas and hands the decoded frames to a Frames. A
// timeline with fewer than two frames collapses into a still image.
func (s *session) finish() (*Frames, error) {
	if s.header == nil {
		return nil, ErrNoImage
	}
	s.composer.Release()

	n := s.timeline.Len()
	if s.animated && n != s.declared {
		s.log.Debug("apng: frame count differs from acTL", "declared", s.declared, "decoded", n)
	}

	f := &Frames{}
	switch {
	case n >= 2:
		f.timeline = s.timeline
		f.bounds = s.timeline.Frame(0).Buffer.Bounds()
	case n == 1:
		f.still = s.timeline.Take(0)
		s.timeline.Release()
	case s.still != nil:
		f.still = s.still
	default:
		return nil, ErrNoImage
	}
	if f.still != nil {
		f.bounds = f.still.Bounds()
	}
	s.timeline, s.still = nil, nil

	s.log.Debug("apng: decoded",
		"frames", f.FrameCount(),
		"still", f.IsSingleFrame(),
		"loops", f.LoopCount(),
		"total", f.TotalDuration(),
		"bounds", f.bounds,
	)
	return f, nil
}

// release frees everything the session still owns. It is safe to call more
// than once.
func (s *session) release() {
	if s.composer != nil {
		s.composer.Release()
	}
	if s.timeline != nil {
		s.timeline.Release()
	}
	if s.still != nil {
		s.still.Release()
		s.still = nil
	}
}
