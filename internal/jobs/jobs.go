// Package jobs runs independent operations under a fixed concurrency budget.
//
// Work is split into consecutive windows of at most N items. Every item of a
// window runs concurrently and the next window starts only once the current
// one has fully drained, so no more than N operations are ever in flight.
package jobs

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the window size used when none is configured.
const DefaultConcurrency = 5

// Operation processes a single work item.
type Operation[T, R any] func(ctx context.Context, item T) (R, error)

// Window is a half-open index range [Start, End) of the input.
type Window struct {
	Index int
	Start int
	End   int
}

// Size reports the number of items in the window.
func (w Window) Size() int {
	return w.End - w.Start
}

// Windows partitions n items into consecutive windows of the given size.
func Windows(n, size int) []Window {
	if size <= 0 {
		size = DefaultConcurrency
	}
	windows := make([]Window, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		windows = append(windows, Window{Index: len(windows), Start: start, End: end})
	}
	return windows
}

// WindowError reports the first failure of a window.
type WindowError struct {
	Window Window
	Item   int
	Err    error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("window %d item %d: %v", e.Window.Index, e.Item, e.Err)
}

func (e *WindowError) Unwrap() error {
	return e.Err
}

// Run executes op once per item, window by window. Results are returned in
// input order. When an operation fails, its window still drains and Run
// returns the results gathered so far together with the error of the
// lowest-indexed failed item; later windows are not started.
func Run[T, R any](ctx context.Context, items []T, size int, op Operation[T, R]) ([]R, error) {
	results := make([]R, len(items))
	for _, window := range Windows(len(items), size) {
		if err := ctx.Err(); err != nil {
			return results[:window.Start], err
		}

		var group errgroup.Group
		errs := make([]error, window.Size())
		for i := window.Start; i < window.End; i++ {
			i := i
			group.Go(func() error {
				result, err := op(ctx, items[i])
				if err != nil {
					errs[i-window.Start] = err
					return err
				}
				results[i] = result
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			for offset, itemErr := range errs {
				if itemErr != nil {
					return results[:window.End], &WindowError{Window: window, Item: window.Start + offset, Err: itemErr}
				}
			}
			return results[:window.End], err
		}
	}
	return results, nil
}
