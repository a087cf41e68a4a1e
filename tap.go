package railz

import "context"

// Tap creates a Step that performs a side effect and passes its input
// through unchanged: notifications, audit records, cache warming. A non-nil
// error from fn is raised.
//
// E cannot be inferred from fn and is given explicitly.
func Tap[E, In any](name Name, fn func(context.Context, In) error) Step[In, In, E] {
	return NewStep(name, func(in In) Effect[Result[E, In]] {
		return Suspend(func(ctx context.Context) (Result[E, In], error) {
			if err := fn(ctx, in); err != nil {
				return Result[E, In]{}, err
			}
			return Ok[E](in), nil
		})
	})
}
