// Package rastertest provides allocators and image helpers for tests that
// need to observe buffer lifetimes.
package rastertest

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/deepteams/apng/raster"
)

// CountingAllocator tracks live allocations and can be told to fail.
type CountingAllocator struct {
	mu sync.Mutex

	// FailAfter makes every Alloc after the first FailAfter calls fail.
	// Zero disables failures.
	FailAfter int

	allocs int
	frees  int
	live   map[*byte]bool
}

// Alloc implements raster.Allocator.
func (a *CountingAllocator) Alloc(width, height int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.FailAfter > 0 && a.allocs >= a.FailAfter {
		return nil, fmt.Errorf("%w: injected failure after %d allocations", raster.ErrAllocation, a.allocs)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", raster.ErrAllocation, width, height)
	}
	if a.live == nil {
		a.live = make(map[*byte]bool)
	}
	pix := make([]byte, width*height*4)
	a.allocs++
	a.live[&pix[0]] = true
	return pix, nil
}

// Free implements raster.Allocator. Freeing unknown or already freed memory
// panics so double releases surface in tests.
func (a *CountingAllocator) Free(pix []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(pix) == 0 || !a.live[&pix[0]] {
		panic("rastertest: free of memory that is not live")
	}
	delete(a.live, &pix[0])
	a.frees++
}

// Live returns the number of allocations not yet freed.
func (a *CountingAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Allocs returns the total number of successful allocations.
func (a *CountingAllocator) Allocs() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs
}

// Solid returns a w x h NRGBA image filled with c.
func Solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// Gradient returns a w x h opaque image whose pixels are unique per position.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 17), G: uint8(y * 29), B: uint8(x + y), A: 255})
		}
	}
	return img
}
