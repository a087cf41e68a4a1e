package railz

import "context"

// Perform creates a Step for side-effecting work such as persistence or a
// remote call. The function returns a domain outcome, or a non-nil error when
// the collaborator itself failed; that error is raised rather than folded
// into E, so the caller decides how infrastructure failures are reported.
//
// Example:
//
//	persist := railz.Perform("persist", func(ctx context.Context, u User) (railz.Result[*AppError, User], error) {
//	    if err := db.Insert(ctx, u); err != nil {
//	        return railz.Result[*AppError, User]{}, err
//	    }
//	    return railz.Ok[*AppError](u), nil
//	})
func Perform[In, Out, E any](name Name, fn func(context.Context, In) (Result[E, Out], error)) Step[In, Out, E] {
	return NewStep(name, func(in In) Effect[Result[E, Out]] {
		return Suspend(func(ctx context.Context) (Result[E, Out], error) {
			return fn(ctx, in)
		})
	})
}
