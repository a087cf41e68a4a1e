package railz

import "context"

// Apply creates a Step from a pure function that may fail with a domain
// error. The function runs once per run of the step, never at construction.
//
// Example:
//
//	checkQuota := railz.Apply("check-quota", func(_ context.Context, o Order) railz.Result[*AppError, Order] {
//	    if o.Quantity > maxQuantity {
//	        return railz.Err[Order](ErrQuotaExceeded)
//	    }
//	    return railz.Ok[*AppError](o)
//	})
func Apply[In, Out, E any](name Name, fn func(context.Context, In) Result[E, Out]) Step[In, Out, E] {
	return NewStep(name, func(in In) Effect[Result[E, Out]] {
		return Suspend(func(ctx context.Context) (Result[E, Out], error) {
			return fn(ctx, in), nil
		})
	})
}
