package store

import "context"

// Relay converts a snapshot stream into a typed stream. convert returning
// false skips that delivery. The output has the same latest-wins semantics
// as the input and closes when the input does.
func Relay[T any](ctx context.Context, in <-chan Snapshot, convert func(context.Context, Snapshot) (T, bool)) <-chan T {
	out := make(chan T, 1)
	go func() {
		defer close(out)
		for snap := range in {
			if ctx.Err() != nil {
				continue
			}
			v, ok := convert(ctx, snap)
			if !ok {
				continue
			}
			Offer(out, v)
		}
	}()
	return out
}
