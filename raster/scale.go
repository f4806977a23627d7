package raster

import (
	"fmt"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// ScaledSize returns the dimensions of a width x height image fitted into a
// maxDim x maxDim box with its aspect ratio preserved. The larger side becomes
// maxDim and the smaller one is rounded to the nearest integer, at least 1.
// Sizes already inside the box, or a non-positive maxDim, are returned as-is.
func ScaledSize(width, height, maxDim int) (int, int) {
	if maxDim <= 0 || (width <= maxDim && height <= maxDim) {
		return width, height
	}
	if width >= height {
		h := int(0.5 + float64(height)*float64(maxDim)/float64(width))
		return maxDim, max(h, 1)
	}
	w := int(0.5 + float64(width)*float64(maxDim)/float64(height))
	return max(w, 1), maxDim
}

// Downscale fits src into a maxDim x maxDim box using bilinear resampling.
//
// Ownership of src passes to Downscale: when no scaling is needed src itself
// is returned, otherwise src is released and a new buffer from the same
// allocator is returned. src is released on error as well.
func Downscale(src *Buffer, maxDim int) (*Buffer, error) {
	if src.img == nil {
		return nil, ErrReleased
	}
	w, h := src.Width(), src.Height()
	dw, dh := ScaledSize(w, h, maxDim)
	if dw == w && dh == h {
		return src, nil
	}
	dst, err := New(src.alloc, dw, dh)
	if err != nil {
		src.Release()
		return nil, fmt.Errorf("raster: downscale %dx%d to %dx%d: %w", w, h, dw, dh, err)
	}
	xdraw.BiLinear.Scale(dst.img, dst.img.Rect, src.img, src.img.Rect, xdraw.Src, nil)
	src.Release()
	return dst, nil
}

// ToNRGBA converts img to an *image.NRGBA whose bounds start at (0,0).
// An NRGBA image that already starts at the origin is returned unchanged.
// Paletted and 16-bit non-premultiplied sources keep their straight colour
// values; other types go through the premultiplied draw path, which is exact
// for them.
func ToNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if nrgba, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return nrgba
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+4*b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	case *image.Paletted:
		pal := make([]color.NRGBA, len(src.Palette))
		for i, c := range src.Palette {
			pal[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
		}
		for y := 0; y < b.Dy(); y++ {
			row := dst.Pix[y*dst.Stride:]
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < b.Dx(); x++ {
				// Out-of-range indices read as transparent black.
				var c color.NRGBA
				if idx := int(src.Pix[si+x]); idx < len(pal) {
					c = pal[idx]
				}
				row[4*x], row[4*x+1], row[4*x+2], row[4*x+3] = c.R, c.G, c.B, c.A
			}
		}
	case *image.NRGBA64:
		for y := 0; y < b.Dy(); y++ {
			row := dst.Pix[y*dst.Stride:]
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < 4*b.Dx(); x++ {
				// High byte of each big-endian 16-bit sample.
				row[x] = src.Pix[si+2*x]
			}
		}
	default:
		xdraw.Draw(dst, dst.Rect, img, b.Min, xdraw.Src)
	}
	return dst
}
