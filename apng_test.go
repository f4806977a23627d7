package apng

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	sapng "github.com/setanarut/apng"
	"github.com/stretchr/testify/require"

	"github.com/deepteams/apng/animation"
	"github.com/deepteams/apng/internal/pngtest"
	"github.com/deepteams/apng/internal/rastertest"
	"github.com/deepteams/apng/raster"
)

var (
	red    = color.NRGBA{R: 255, A: 255}
	green  = color.NRGBA{G: 255, A: 255}
	blue   = color.NRGBA{B: 255, A: 255}
	yellow = color.NRGBA{R: 255, G: 255, A: 255}
)

// threeFrames encodes full-canvas red, green and blue frames lasting 100,
// 150 and 200 ms.
func threeFrames(plays int) []byte {
	return pngtest.Animation(4, 4, plays,
		pngtest.Frame{Image: rastertest.Solid(4, 4, red), Control: animation.FrameControl{DelayNum: 10, DelayDen: 100}},
		pngtest.Frame{Image: rastertest.Solid(4, 4, green), Control: animation.FrameControl{DelayNum: 15, DelayDen: 100}},
		pngtest.Frame{Image: rastertest.Solid(4, 4, blue), Control: animation.FrameControl{DelayNum: 1, DelayDen: 5}},
	)
}

func decode(t *testing.T, data []byte, opts *Options) *Frames {
	t.Helper()
	f, err := Decode(bytes.NewReader(data), opts)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestDecodeStill(t *testing.T) {
	img := rastertest.Gradient(6, 4)
	alloc := &rastertest.CountingAllocator{}
	f := decode(t, pngtest.Static(img), &Options{Allocator: alloc})

	if !f.IsSingleFrame() {
		t.Fatal("IsSingleFrame = false")
	}
	if f.FrameCount() != 1 || f.LoopCount() != 0 || f.TotalDuration() != 0 {
		t.Errorf("count/loops/total = %d/%d/%v", f.FrameCount(), f.LoopCount(), f.TotalDuration())
	}
	if alloc.Live() != 1 {
		t.Errorf("live buffers = %d, want 1", alloc.Live())
	}

	first := f.FindFrame(0)
	for _, d := range []time.Duration{-time.Second, time.Millisecond, time.Hour, NoChange} {
		got := f.FindFrame(d)
		if got.Image != first.Image {
			t.Errorf("FindFrame(%v) returned a different image", d)
		}
		if got.Delay != NoChange {
			t.Errorf("FindFrame(%v).Delay = %v, want NoChange", d, got.Delay)
		}
	}
	require.Equal(t, img.Pix, first.Image.Pix)
	require.Equal(t, image.Rect(0, 0, 6, 4), f.Bounds())

	require.NoError(t, f.Close())
	if alloc.Live() != 0 {
		t.Errorf("live buffers after Close = %d, want 0", alloc.Live())
	}
}

func TestFindFrameLookup(t *testing.T) {
	f := decode(t, threeFrames(2), nil)
	require.False(t, f.IsSingleFrame())
	require.Equal(t, 3, f.FrameCount())
	require.Equal(t, 2, f.LoopCount())
	require.Equal(t, 450*time.Millisecond, f.TotalDuration())

	tests := []struct {
		elapsed time.Duration
		frame   int
		delay   time.Duration
	}{
		{0, 0, 100 * time.Millisecond},
		{99 * time.Millisecond, 0, 1 * time.Millisecond},
		{100 * time.Millisecond, 1, 150 * time.Millisecond},
		{250 * time.Millisecond, 2, 200 * time.Millisecond},
		{460 * time.Millisecond, 0, 90 * time.Millisecond},
		{905 * time.Millisecond, 2, 2995 * time.Millisecond},
		{3899 * time.Millisecond, 2, 1 * time.Millisecond},
		{3900 * time.Millisecond, 0, 100 * time.Millisecond},
	}
	colors := []color.NRGBA{red, green, blue}
	for _, tt := range tests {
		got := f.FindFrame(tt.elapsed)
		if got.Image != f.Frame(tt.frame).Image {
			t.Errorf("FindFrame(%v): wrong frame, want %d", tt.elapsed, tt.frame)
		}
		if c := got.Image.NRGBAAt(1, 1); c != colors[tt.frame] {
			t.Errorf("FindFrame(%v): color %v, want %v", tt.elapsed, c, colors[tt.frame])
		}
		if got.Delay != tt.delay {
			t.Errorf("FindFrame(%v).Delay = %v, want %v", tt.elapsed, got.Delay, tt.delay)
		}
	}
}

func TestFindFrameInfiniteLoop(t *testing.T) {
	f := decode(t, threeFrames(0), nil)
	got := f.FindFrame(905 * time.Millisecond) // 905 mod 450 = 5
	if got.Image != f.Frame(0).Image || got.Delay != 95*time.Millisecond {
		t.Errorf("FindFrame(905ms) = %v after %v, want red after 95ms", got.Image.NRGBAAt(0, 0), got.Delay)
	}
}

func TestFrameAccessor(t *testing.T) {
	f := decode(t, threeFrames(0), nil)
	require.Equal(t, Frame{}, f.Frame(-1))
	require.Equal(t, Frame{}, f.Frame(3))

	fr := f.Frame(2)
	require.Equal(t, 250*time.Millisecond, fr.Start)
	require.Equal(t, 200*time.Millisecond, fr.Duration)
	require.Equal(t, blue, fr.Image.NRGBAAt(0, 0))
}

func TestDurationScale(t *testing.T) {
	f := decode(t, threeFrames(0), &Options{DurationScale: 2})
	require.Equal(t, 2.0, f.DurationScale())

	// 200ms wall time at half speed is 100ms into the animation.
	got := f.FindFrame(200 * time.Millisecond)
	require.Equal(t, f.Frame(1).Image, got.Image)
	require.Equal(t, 300*time.Millisecond, got.Delay)

	f.SetDurationScale(0.5)
	got = f.FindFrame(100 * time.Millisecond)
	require.Equal(t, f.Frame(1).Image, got.Image)
	require.Equal(t, 25*time.Millisecond, got.Delay)

	for _, v := range []float64{0, -1} {
		f.SetDurationScale(v)
		if f.DurationScale() != 1 {
			t.Errorf("SetDurationScale(%v): scale = %v, want 1", v, f.DurationScale())
		}
	}
}

func TestDecodeComposition(t *testing.T) {
	data, err := os.ReadFile("testdata/bounce_8x8.png")
	require.NoError(t, err)
	f := decode(t, data, nil)
	require.Equal(t, 3, f.FrameCount())

	translucent := color.NRGBA{G: 255, A: 128}
	over := raster.BlendNRGBA(translucent, red)

	frame1 := f.Frame(1).Image
	require.Equal(t, over, frame1.NRGBAAt(2, 2))
	require.Equal(t, over, frame1.NRGBAAt(5, 5))
	require.Equal(t, red, frame1.NRGBAAt(1, 1))
	require.Equal(t, red, frame1.NRGBAAt(6, 6))

	// Frame 1 disposes to previous, so frame 2 sees the red canvas again.
	frame2 := f.Frame(2).Image
	require.Equal(t, red, frame2.NRGBAAt(3, 3))
	require.Equal(t, blue, frame2.NRGBAAt(7, 7))

	require.Equal(t, 100*time.Millisecond, f.Frame(1).Start)
	require.Equal(t, 450*time.Millisecond, f.TotalDuration())
}

func TestDecodeBackgroundDisposal(t *testing.T) {
	data := pngtest.Animation(4, 4, 0,
		pngtest.Frame{Image: rastertest.Solid(4, 4, red), Control: animation.FrameControl{DelayNum: 1, DisposeOp: animation.DisposeBackground}},
		pngtest.Frame{Image: rastertest.Solid(1, 1, green), Control: animation.FrameControl{XOffset: 3, YOffset: 3, DelayNum: 1}},
	)
	f := decode(t, data, nil)
	second := f.Frame(1).Image
	require.Equal(t, color.NRGBA{}, second.NRGBAAt(0, 0))
	require.Equal(t, green, second.NRGBAAt(3, 3))
}

func TestDecodePalettedHiddenDefault(t *testing.T) {
	data, err := os.ReadFile("testdata/paletted_hidden_6x2.png")
	require.NoError(t, err)
	f := decode(t, data, nil)

	require.Equal(t, 2, f.FrameCount())
	require.Equal(t, 0, f.LoopCount())
	require.Equal(t, yellow, f.Frame(0).Image.NRGBAAt(0, 0))

	second := f.Frame(1).Image
	require.Equal(t, yellow, second.NRGBAAt(2, 1))
	require.Equal(t, color.NRGBA{G: 128, B: 255, A: 255}, second.NRGBAAt(3, 0))
}

func TestDecodeSingleAnimatedFrame(t *testing.T) {
	alloc := &rastertest.CountingAllocator{}
	data := pngtest.Animation(3, 3, 0, pngtest.Frame{Image: rastertest.Solid(3, 3, green), Control: animation.FrameControl{DelayNum: 5}})
	f := decode(t, data, &Options{Allocator: alloc})

	require.True(t, f.IsSingleFrame())
	require.Equal(t, 1, f.FrameCount())
	require.Equal(t, NoChange, f.FindFrame(time.Second).Delay)
	require.Equal(t, green, f.FindFrame(0).Image.NRGBAAt(2, 2))
	require.Equal(t, 1, alloc.Live())
}

func TestDecodeDownscale(t *testing.T) {
	data := pngtest.Animation(40, 20, 0,
		pngtest.Frame{Image: rastertest.Gradient(40, 20), Control: animation.FrameControl{DelayNum: 1}},
		pngtest.Frame{Image: rastertest.Solid(40, 20, blue), Control: animation.FrameControl{DelayNum: 1}},
	)
	alloc := &rastertest.CountingAllocator{}
	f := decode(t, data, &Options{MaxPixelDimension: 10, Allocator: alloc})

	want := image.Rect(0, 0, 10, 5)
	require.Equal(t, want, f.Bounds())
	for i := 0; i < f.FrameCount(); i++ {
		require.Equal(t, want, f.Frame(i).Image.Bounds())
	}
	c := f.Frame(1).Image.NRGBAAt(4, 2)
	require.InDelta(t, 255, c.B, 1)
	require.InDelta(t, 255, c.A, 1)
	require.Equal(t, 2, alloc.Live())

	cfg, err := DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 40, cfg.Width)
	require.Equal(t, 20, cfg.Height)
}

func TestDecodeEncoderFixture(t *testing.T) {
	frames := []image.Image{
		rastertest.Solid(6, 6, red),
		rastertest.Solid(6, 6, green),
		rastertest.Solid(6, 6, blue),
		rastertest.Solid(6, 6, yellow),
	}
	f := decode(t, sapng.APNGBytes(frames, 4), nil)

	require.Equal(t, 4, f.FrameCount())
	require.Equal(t, 160*time.Millisecond, f.TotalDuration())
	for i, want := range []color.NRGBA{red, green, blue, yellow} {
		res := f.FindFrame(time.Duration(i)*40*time.Millisecond + time.Millisecond)
		require.Equal(t, want, res.Image.NRGBAAt(3, 3), "frame %d", i)
		require.Equal(t, 39*time.Millisecond, res.Delay)
	}
}

func TestDecodeCleanupOnFailure(t *testing.T) {
	full := animation.FrameControl{Width: 8, Height: 8, DelayNum: 1}
	img := rastertest.Solid(8, 8, red)
	valid, err := os.ReadFile("testdata/bounce_8x8.png")
	require.NoError(t, err)

	tests := []struct {
		name      string
		data      []byte
		failAfter int
		want      error
	}{
		{"truncated", valid[:len(valid)-20], 0, ErrTruncated},
		{"bad_crc", append(bytes.Clone(valid[:len(valid)-1]), valid[len(valid)-1]^1), 0, ErrChecksum},
		{
			"sequence_gap",
			pngtest.New(8, 8).ACTL(2, 0).FCTL(full).IDAT(img).SkipSequence(2).FCTL(full).FDAT(img).IEND().Bytes(),
			0, ErrSequence,
		},
		{
			"frame_out_of_bounds",
			pngtest.New(8, 8).ACTL(2, 0).FCTL(full).IDAT(img).
				FCTL(animation.FrameControl{Width: 4, Height: 4, XOffset: 6, YOffset: 0}).
				FDAT(rastertest.Solid(4, 4, red)).IEND().Bytes(),
			0, ErrContract,
		},
		{"frame_control_without_actl", pngtest.New(8, 8).FCTL(full).IDAT(img).IEND().Bytes(), 0, ErrNotAnimated},
		{"allocation", valid, 2, ErrAllocation},
		{"no_frames", pngtest.New(8, 8).ACTL(1, 0).IDAT(img).IEND().Bytes(), 0, ErrNoImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc := &rastertest.CountingAllocator{FailAfter: tt.failAfter}
			f, err := Decode(bytes.NewReader(tt.data), &Options{Allocator: alloc})
			require.ErrorIs(t, err, tt.want)
			require.Nil(t, f)
			if alloc.Live() != 0 {
				t.Errorf("live buffers = %d, want 0", alloc.Live())
			}
		})
	}
}

func TestDecodeAreaLimit(t *testing.T) {
	_, err := Decode(bytes.NewReader(threeFrames(0)), &Options{Allocator: &raster.PoolAllocator{MaxArea: 15}})
	require.ErrorIs(t, err, ErrAllocation)
}

func TestDecodeCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	alloc := &rastertest.CountingAllocator{}
	_, err := DecodeContext(ctx, bytes.NewReader(threeFrames(0)), &Options{Allocator: alloc})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, alloc.Live())
}

func TestCloseTwice(t *testing.T) {
	alloc := &rastertest.CountingAllocator{}
	f, err := Decode(bytes.NewReader(threeFrames(1)), &Options{Allocator: alloc})
	require.NoError(t, err)
	require.Equal(t, 3, alloc.Live())

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	require.Zero(t, alloc.Live())

	res := f.FindFrame(0)
	require.Nil(t, res.Image)
	require.Equal(t, NoChange, res.Delay)
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(bytes.NewReader(threeFrames(0)))
	require.NoError(t, err)
	require.Equal(t, image.Config{ColorModel: color.NRGBAModel, Width: 4, Height: 4}, cfg)

	_, err = DecodeConfig(strings.NewReader("GIF89a"))
	require.ErrorIs(t, err, ErrFormat)
}

func TestDecodeLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	decode(t, threeFrames(0), &Options{Logger: logger})
	out := buf.String()
	for _, want := range []string{"apng: header", "apng: animation control", "apng: frame", "apng: decoded"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}

	buf.Reset()
	_, err := Decode(bytes.NewReader(threeFrames(0)[:60]), &Options{Logger: logger})
	require.Error(t, err)
	require.Contains(t, buf.String(), "level=WARN")
	require.Contains(t, buf.String(), "apng: decode failed")
}

func TestFindFrameConcurrent(t *testing.T) {
	f := decode(t, threeFrames(3), nil)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if g == 0 && i%50 == 0 {
					f.SetDurationScale(float64(1 + i%3))
				}
				res := f.FindFrame(time.Duration(i*g) * time.Millisecond)
				if res.Image == nil {
					t.Error("nil image")
					return
				}
			}
		}(g)
	}
	wg.Wait()
}
