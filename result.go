package railz

// Result is a tagged outcome: either a success carrying an A or a failure
// carrying an E, never both. Construct it with Ok or Err.
//
// The zero Result is a failure carrying the zero E. Steps should always
// return an explicitly constructed Result.
type Result[E, A any] struct {
	value A
	err   E
	ok    bool
}

// Ok returns a successful Result. E cannot be inferred and is given
// explicitly:
//
//	r := railz.Ok[*AppError](user)
func Ok[E, A any](a A) Result[E, A] {
	return Result[E, A]{value: a, ok: true}
}

// Err returns a failed Result. A cannot be inferred and is given
// explicitly:
//
//	r := railz.Err[User](ErrDuplicateEmail)
func Err[A, E any](e E) Result[E, A] {
	return Result[E, A]{err: e}
}

// IsOk reports whether r is a success.
func (r Result[E, A]) IsOk() bool {
	return r.ok
}

// IsErr reports whether r is a failure.
func (r Result[E, A]) IsErr() bool {
	return !r.ok
}

// Value returns the success value and true, or the zero A and false.
func (r Result[E, A]) Value() (A, bool) {
	return r.value, r.ok
}

// Error returns the failure and true, or the zero E and false.
func (r Result[E, A]) Error() (E, bool) {
	return r.err, !r.ok
}

// Get returns both slots and the success flag in a single call. Only the slot
// selected by ok is meaningful.
func (r Result[E, A]) Get() (A, E, bool) {
	return r.value, r.err, r.ok
}

// OrElse returns the success value, or the value computed by f from the
// failure.
func (r Result[E, A]) OrElse(f func(E) A) A {
	if r.ok {
		return r.value
	}
	return f(r.err)
}

// MapResult transforms the success value; a failure passes through unchanged.
func MapResult[E, A, B any](r Result[E, A], f func(A) B) Result[E, B] {
	if !r.ok {
		return Err[B](r.err)
	}
	return Ok[E](f(r.value))
}

// AndThen chains a step producing another Result. f is not called on a
// failure.
func AndThen[E, A, B any](r Result[E, A], f func(A) Result[E, B]) Result[E, B] {
	if !r.ok {
		return Err[B](r.err)
	}
	return f(r.value)
}

// MapError transforms the failure; a success passes through unchanged.
func MapError[E, F, A any](r Result[E, A], f func(E) F) Result[F, A] {
	if r.ok {
		return Ok[F](r.value)
	}
	return Err[A](f(r.err))
}

// Fold collapses r into a single value.
func Fold[E, A, B any](r Result[E, A], onErr func(E) B, onOk func(A) B) B {
	if r.ok {
		return onOk(r.value)
	}
	return onErr(r.err)
}

// Succeed lifts a value into a successful deferred Result.
func Succeed[E, A any](a A) Effect[Result[E, A]] {
	return Of(Ok[E](a))
}

// Reject lifts a failure into a deferred Result.
func Reject[A, E any](e E) Effect[Result[E, A]] {
	return Of(Err[A](e))
}

// MapOk transforms the success value inside a deferred Result.
func MapOk[E, A, B any](e Effect[Result[E, A]], f func(A) B) Effect[Result[E, B]] {
	return Map(e, func(r Result[E, A]) Result[E, B] {
		return MapResult(r, f)
	})
}

// Bind sequences a deferred Result with a dependent step. When the first
// Result is a failure, f is never called and the failure is returned
// verbatim.
func Bind[E, A, B any](e Effect[Result[E, A]], f func(A) Effect[Result[E, B]]) Effect[Result[E, B]] {
	return FlatMap(e, func(r Result[E, A]) Effect[Result[E, B]] {
		if !r.ok {
			return Of(Err[B](r.err))
		}
		return f(r.value)
	})
}
