package plugin

import (
	"iter"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func collect[T any](seq iter.Seq[T]) []T {
	var out []T
	for v := range seq {
		out = append(out, v)
	}
	return out
}

func TestBufferedPreservesInputOrder(t *testing.T) {
	in := slices.Values([]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15})
	slow := func(n int) (int, bool) {
		// Earlier items finish later.
		time.Sleep(time.Duration(16-n) * time.Millisecond)
		return n * 10, true
	}

	for _, size := range []int{1, 3, 8, 64} {
		got := collect(buffered(in, size, slow, discardLogger()))
		assert.Equal(t, []int{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120, 130, 140, 150}, got, "size %d", size)
	}
}

func TestBufferedDropsAbsentWithoutReordering(t *testing.T) {
	in := slices.Values([]int{1, 2, 3, 4, 5, 6, 7, 8})
	evens := func(n int) (int, bool) {
		time.Sleep(time.Duration(rand.IntN(3)) * time.Millisecond)
		return n, n%2 == 0
	}

	assert.Equal(t, []int{2, 4, 6, 8}, collect(buffered(in, 4, evens, discardLogger())))
}

func TestBufferedCapsInFlight(t *testing.T) {
	var inFlight, peak atomic.Int32
	work := func(n int) (int, bool) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return n, true
	}

	in := slices.Values(make([]int, 40))
	got := collect(buffered(in, 3, work, discardLogger()))

	assert.Len(t, got, 40)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestBufferedZeroSizeRunsSerially(t *testing.T) {
	var inFlight, peak atomic.Int32
	work := func(n int) (int, bool) {
		if cur := inFlight.Add(1); cur > peak.Load() {
			peak.Store(cur)
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return n, true
	}

	got := collect(buffered(slices.Values([]int{1, 2, 3}), 0, work, discardLogger()))
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, int32(1), peak.Load())
}

func TestBufferedEarlyBreakStopsSubmission(t *testing.T) {
	var calls atomic.Int32
	work := func(n int) (int, bool) {
		calls.Add(1)
		return n, true
	}

	in := slices.Values(make([]int, 100))
	for range buffered(in, 4, work, discardLogger()) {
		break
	}

	// The first window plus nothing after the break.
	assert.LessOrEqual(t, calls.Load(), int32(4))
}

func TestBufferedPanicIsAbsent(t *testing.T) {
	work := func(n int) (int, bool) {
		if n == 2 {
			panic("boom")
		}
		return n, true
	}

	got := collect(buffered(slices.Values([]int{1, 2, 3}), 2, work, discardLogger()))
	assert.Equal(t, []int{1, 3}, got)
}

func TestBufferedEmptyInput(t *testing.T) {
	got := collect(buffered(slices.Values([]int(nil)), 4, func(n int) (int, bool) { return n, true }, discardLogger()))
	assert.Empty(t, got)
}
