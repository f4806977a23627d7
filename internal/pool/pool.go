// Package pool provides bucketed sync.Pool instances for raster pixel memory.
// Buffers are organized by size class so that frames of similar dimensions
// reuse each other's storage during a decode.
package pool

import "sync"

// Size classes for bucketed pools, expressed in bytes of RGBA8888 pixel data.
const (
	Size4K   = 4096     // 32x32
	Size64K  = 65536    // 128x128
	Size256K = 262144   // 256x256
	Size1M   = 1048576  // 512x512
	Size4M   = 4194304  // 1024x1024
	Size16M  = 16777216 // 2048x2048
)

// bucketIndex returns the pool index for a given size, or -1 when the size
// is too large to be pooled.
func bucketIndex(size int) int {
	switch {
	case size <= Size4K:
		return 0
	case size <= Size64K:
		return 1
	case size <= Size256K:
		return 2
	case size <= Size1M:
		return 3
	case size <= Size4M:
		return 4
	case size <= Size16M:
		return 5
	default:
		return -1
	}
}

var sizes = [6]int{Size4K, Size64K, Size256K, Size1M, Size4M, Size16M}

var pools [6]sync.Pool

func init() {
	for i := range pools {
		sz := sizes[i]
		pools[i] = sync.Pool{
			New: func() any {
				b := make([]byte, sz)
				return &b
			},
		}
	}
}

// Get returns a byte slice of length size. Pooled slices may hold stale
// pixel data; use GetZeroed when the contents must start transparent.
// The caller must call Put when done.
func Get(size int) []byte {
	idx := bucketIndex(size)
	if idx < 0 {
		return make([]byte, size)
	}
	bp := pools[idx].Get().(*[]byte)
	b := *bp
	if cap(b) < size {
		b = make([]byte, sizes[idx])
		*bp = b
	}
	return b[:size]
}

// GetZeroed is like Get but clears the returned slice.
func GetZeroed(size int) []byte {
	b := Get(size)
	clear(b)
	return b
}

// Put returns a byte slice to the pool. The slice must have been obtained
// from Get. Slices smaller than Size4K or larger than Size16M are not pooled.
func Put(b []byte) {
	c := cap(b)
	if c < Size4K {
		return
	}
	idx := bucketIndex(c)
	if idx < 0 {
		return
	}
	// A slice only serves its bucket if it can hold the bucket's largest request.
	if c < sizes[idx] {
		if idx == 0 {
			return
		}
		idx--
	}
	b = b[:c]
	pools[idx].Put(&b)
}
