package animation

import (
	"math"
	"sort"
	"time"
)

// NoChange is the delay reported when the visible frame never changes.
const NoChange = time.Duration(math.MaxInt64)

// Find returns the index of the frame visible after elapsed playback time
// and how long it stays visible. scale stretches playback: 2 plays at half
// speed, 0.5 at double speed; non-positive or non-finite values mean 1.
//
// Elapsed time is folded into one full playback, which for a finite loop
// count ends with the last frame held for EndWaitMillis. Negative and very
// large times are folded rather than rejected. An empty timeline returns
// -1 and NoChange.
func (t *Timeline) Find(elapsed time.Duration, scale float64) (int, time.Duration) {
	n := len(t.frames)
	if n == 0 || t.total <= 0 {
		return -1, NoChange
	}
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		scale = 1
	}

	plays, endWait := int64(1), int64(0)
	if t.loopCount > 0 {
		plays, endWait = int64(t.loopCount), EndWaitMillis
	}
	loopTotal := max(satAdd(satMul(t.total, plays), endWait), 1)

	tl := toMillis(elapsed, scale) % loopTotal
	if endWait > 0 && tl >= loopTotal-endWait {
		return n - 1, fromMillis(loopTotal-tl, scale)
	}

	tt := tl % t.total
	idx := sort.Search(n, func(i int) bool {
		return t.frames[i].End() > tt
	})
	idx = min(max(idx, 0), n-1)

	f := t.frames[idx]
	return idx, fromMillis(max(f.End()-tt, 0), scale)
}

// toMillis converts elapsed wall time to timeline milliseconds, truncating.
func toMillis(elapsed time.Duration, scale float64) int64 {
	if elapsed <= 0 {
		return 0
	}
	if scale == 1 {
		return elapsed.Milliseconds()
	}
	v := float64(elapsed) / float64(time.Millisecond) / scale
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// fromMillis converts timeline milliseconds to wall time, rounding to the
// nearest millisecond.
func fromMillis(ms int64, scale float64) time.Duration {
	if scale != 1 {
		v := float64(ms)*scale + 0.5
		if v >= float64(math.MaxInt64/int64(time.Millisecond)) {
			return NoChange
		}
		ms = int64(v)
	}
	if ms > math.MaxInt64/int64(time.Millisecond) {
		return NoChange
	}
	return time.Duration(ms) * time.Millisecond
}
