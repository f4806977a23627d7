// Package apng decodes Animated PNG (APNG) streams into a time-indexed
// sequence of fully composited frames.
//
// Every frame is composited onto an accumulation canvas according to its
// blend and dispose operations, copied, optionally downscaled and stored on
// a timeline. A decoded animation can then be sampled at any elapsed time:
//
//	frames, err := apng.Decode(r, &apng.Options{MaxPixelDimension: 512})
//	if err != nil {
//		return err
//	}
//	defer frames.Close()
//
//	res := frames.FindFrame(elapsed)
//	draw(res.Image)
//	wakeAfter(res.Delay)
//
// Plain PNG files decode to a single frame whose delay is NoChange.
// Animations with a finite play count hold their last frame for three
// seconds before starting over.
//
// Decoded frames live in memory obtained from an Allocator; Close returns
// it. The package does not register itself with image.RegisterFormat since
// the PNG signature already belongs to image/png.
package apng
