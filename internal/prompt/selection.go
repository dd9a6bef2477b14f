package prompt

import "context"

// SelectionSource decides, item by item, whether a candidate is kept.
type SelectionSource[T any] func(ctx context.Context, item T) (bool, error)

// Scripted replays fixed decisions in order and declines once they run out.
func Scripted[T any](decisions ...bool) SelectionSource[T] {
	i := 0
	return func(ctx context.Context, item T) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if i >= len(decisions) {
			return false, nil
		}
		d := decisions[i]
		i++
		return d, nil
	}
}

// SelectAll keeps every candidate.
func SelectAll[T any]() SelectionSource[T] {
	return func(ctx context.Context, item T) (bool, error) {
		return true, ctx.Err()
	}
}

// Select runs source over items and returns the kept ones in order.
// It stops at the first error and returns what was kept so far.
func Select[T any](ctx context.Context, items []T, source SelectionSource[T]) ([]T, error) {
	var kept []T
	for _, item := range items {
		ok, err := source(ctx, item)
		if err != nil {
			return kept, err
		}
		if ok {
			kept = append(kept, item)
		}
	}
	return kept, nil
}
