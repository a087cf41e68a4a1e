package railz

import "context"

// Guard creates a Step that lets its input through when pred holds and
// rejects it with reject(input) otherwise. The condition and the error are
// kept apart so each can be tested on its own.
//
// Example:
//
//	adultsOnly := railz.Guard("adults-only",
//	    func(_ context.Context, u User) bool { return u.Age >= 18 },
//	    func(u User) *AppError { return Forbidden("user %s is under age", u.ID) },
//	)
func Guard[In, E any](name Name, pred func(context.Context, In) bool, reject func(In) E) Step[In, In, E] {
	return NewStep(name, func(in In) Effect[Result[E, In]] {
		return Suspend(func(ctx context.Context) (Result[E, In], error) {
			if !pred(ctx, in) {
				return Err[In](reject(in)), nil
			}
			return Ok[E](in), nil
		})
	})
}
