package plugin

import (
	"iter"
	"log/slog"
)

type slot[R any] struct {
	value R
	ok    bool
}

// buffered maps fn over in with up to size calls running at once and yields
// the results in input order. Items for which fn reports !ok are dropped
// without holding back later results.
//
// The window is a FIFO of single-use result channels, one per submitted item.
// It is only refilled when the consumer asks for the next value, so a stalled
// consumer stalls submission too. When the consumer stops early, pending calls
// finish into their buffered channel and are discarded.
func buffered[T, R any](in iter.Seq[T], size int, fn func(T) (R, bool), logger *slog.Logger) iter.Seq[R] {
	if size < 1 {
		size = 1
	}
	return func(yield func(R) bool) {
		next, stop := iter.Pull(in)
		defer stop()

		window := make([]chan slot[R], 0, size)
		exhausted := false
		for {
			for !exhausted && len(window) < size {
				item, ok := next()
				if !ok {
					exhausted = true
					break
				}
				window = append(window, submit(item, fn, logger))
			}
			if len(window) == 0 {
				return
			}

			res := <-window[0]
			window[0] = nil
			window = window[1:]
			if res.ok && !yield(res.value) {
				return
			}
		}
	}
}

// submit runs fn on its own goroutine. A panic counts as an absent result.
func submit[T, R any](item T, fn func(T) (R, bool), logger *slog.Logger) chan slot[R] {
	ch := make(chan slot[R], 1)
	go func() {
		var res slot[R]
		defer func() {
			if r := recover(); r != nil {
				logger.Error("plugin load panicked", "panic", r)
				res = slot[R]{}
			}
			ch <- res
		}()
		v, ok := fn(item)
		res = slot[R]{value: v, ok: ok}
	}()
	return ch
}
