package raster

import (
	"errors"
	"fmt"

	"github.com/deepteams/apng/internal/pool"
)

// ErrAllocation is returned when pixel memory for a buffer cannot be provided.
var ErrAllocation = errors.New("raster: allocation failed")

// DefaultMaxArea is the largest pixel count the default allocator hands out
// for a single buffer (64 megapixels, 256 MiB of RGBA data).
const DefaultMaxArea = 1 << 26

// Allocator provides and reclaims RGBA8888 pixel memory. Implementations
// stand in for the host platform's bitmap allocator.
type Allocator interface {
	// Alloc returns a zeroed slice of exactly width*height*4 bytes.
	Alloc(width, height int) ([]byte, error)
	// Free takes back a slice obtained from Alloc.
	Free(pix []byte)
}

// PoolAllocator serves pixel memory from size-bucketed pools.
type PoolAllocator struct {
	// MaxArea caps width*height for a single buffer. Zero means DefaultMaxArea.
	MaxArea int
}

// DefaultAllocator is the allocator used when callers do not supply one.
var DefaultAllocator Allocator = &PoolAllocator{}

// Alloc implements Allocator.
func (a *PoolAllocator) Alloc(width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid dimensions %dx%d", ErrAllocation, width, height)
	}
	limit := a.MaxArea
	if limit <= 0 {
		limit = DefaultMaxArea
	}
	if uint64(width)*uint64(height) > uint64(limit) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrAllocation, width, height, limit)
	}
	return pool.GetZeroed(width * height * 4), nil
}

// Free implements Allocator.
func (a *PoolAllocator) Free(pix []byte) {
	pool.Put(pix)
}
