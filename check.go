package railz

import "context"

// Check is a named, pure validation of one aspect of an In, producing a
// typed field value F on success. Checks registered on the same Validator
// must be independent: none may depend on another's outcome.
type Check[In, F, E any] struct {
	fn   func(context.Context, In) Result[E, F]
	name Name
}

// NewCheck wraps fn as a named Check.
//
//	checkAge := railz.NewCheck("age", func(_ context.Context, in Input) railz.Result[*AppError, int] {
//	    if in.Age < 0 || in.Age > 150 {
//	        return railz.Err[int](Invalid("age", "must be between 0 and 150"))
//	    }
//	    return railz.Ok[*AppError](in.Age)
//	})
func NewCheck[In, F, E any](name Name, fn func(context.Context, In) Result[E, F]) Check[In, F, E] {
	return Check[In, F, E]{name: name, fn: fn}
}

// Require builds a yes/no check that carries no field value.
func Require[In, E any](name Name, pred func(context.Context, In) bool, reject func(In) E) Check[In, struct{}, E] {
	return NewCheck(name, func(ctx context.Context, in In) Result[E, struct{}] {
		if !pred(ctx, in) {
			return Err[struct{}](reject(in))
		}
		return Ok[E](struct{}{})
	})
}

// Name returns the check name.
func (c Check[In, F, E]) Name() Name {
	return c.name
}

// Run applies the check to in.
func (c Check[In, F, E]) Run(ctx context.Context, in In) Result[E, F] {
	return c.fn(ctx, in)
}

// check is a Check with its field type erased.
type check[In, E any] struct {
	fn   func(context.Context, In) Result[E, any]
	name Name
}

func (c Check[In, F, E]) erase() check[In, E] {
	return check[In, E]{
		name: c.name,
		fn: func(ctx context.Context, in In) Result[E, any] {
			return MapResult(c.fn(ctx, in), func(f F) any { return f })
		},
	}
}
