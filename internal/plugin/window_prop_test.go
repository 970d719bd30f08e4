package plugin

import (
	"slices"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// Whatever the window size and completion timing, buffered yields exactly the
// present results, in input order, and stops cleanly on early break.
func TestBufferedOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(t, "n")
		values := rapid.SliceOfN(rapid.IntRange(-100, 100), n, n).Draw(t, "values")
		present := rapid.SliceOfN(rapid.Bool(), n, n).Draw(t, "present")
		delays := rapid.SliceOfN(rapid.IntRange(0, 3), n, n).Draw(t, "delays")
		size := rapid.IntRange(0, 9).Draw(t, "size")
		take := rapid.IntRange(0, n+1).Draw(t, "take")

		var want []int
		for i := range n {
			if present[i] {
				want = append(want, values[i])
			}
		}
		if take < len(want) {
			want = want[:take]
		}

		load := func(i int) (int, bool) {
			time.Sleep(time.Duration(delays[i]) * 100 * time.Microsecond)
			return values[i], present[i]
		}

		var got []int
		if take > 0 {
			for v := range buffered(slices.Values(indexes(n)), size, load, discardLogger()) {
				got = append(got, v)
				if len(got) == take {
					break
				}
			}
		}

		if !slices.Equal(got, want) {
			t.Fatalf("size %d take %d: got %v, want %v", size, take, got, want)
		}
	})
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
