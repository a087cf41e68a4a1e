package railz

import "context"

// Transform creates a Step from a pure mapping that always succeeds. Use it
// for normalization and reshaping between steps that can fail.
//
// E cannot be inferred from fn and is given explicitly:
//
//	normalize := railz.Transform[*AppError]("normalize", func(_ context.Context, in Input) Input {
//	    in.Email = strings.ToLower(in.Email)
//	    return in
//	})
func Transform[E, In, Out any](name Name, fn func(context.Context, In) Out) Step[In, Out, E] {
	return NewStep(name, func(in In) Effect[Result[E, Out]] {
		return Suspend(func(ctx context.Context) (Result[E, Out], error) {
			return Ok[E](fn(ctx, in)), nil
		})
	})
}
