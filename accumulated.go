package railz

import "slices"

// Accumulated is the error-collecting counterpart of Result: either a
// success carrying an A, or a failure carrying one or more E values in the
// order they were produced.
//
// The failure list is never empty. Invalid takes the first error as a
// separate argument so an empty failure cannot be constructed. The zero
// Accumulated is a success carrying the zero A.
type Accumulated[E, A any] struct {
	value A
	errs  []E
}

// Valid returns a successful Accumulated.
func Valid[E, A any](a A) Accumulated[E, A] {
	return Accumulated[E, A]{value: a}
}

// Invalid returns a failed Accumulated carrying first followed by rest.
func Invalid[A, E any](first E, rest ...E) Accumulated[E, A] {
	errs := make([]E, 0, 1+len(rest))
	errs = append(errs, first)
	errs = append(errs, rest...)
	return Accumulated[E, A]{errs: errs}
}

// IsValid reports whether a is a success.
func (a Accumulated[E, A]) IsValid() bool {
	return len(a.errs) == 0
}

// Value returns the success value and true, or the zero A and false.
func (a Accumulated[E, A]) Value() (A, bool) {
	if len(a.errs) > 0 {
		var zero A
		return zero, false
	}
	return a.value, true
}

// Errors returns a copy of the failure list; nil on success.
func (a Accumulated[E, A]) Errors() []E {
	return slices.Clone(a.errs)
}

// First returns the first failure and true, or the zero E and false.
func (a Accumulated[E, A]) First() (E, bool) {
	if len(a.errs) == 0 {
		var zero E
		return zero, false
	}
	return a.errs[0], true
}

// Widen converts a Result into an Accumulated with at most one error.
func Widen[E, A any](r Result[E, A]) Accumulated[E, A] {
	if r.ok {
		return Valid[E](r.value)
	}
	return Invalid[A](r.err)
}

// Narrow converts an Accumulated into a Result keeping only the first
// error. The remaining errors are discarded.
func Narrow[E, A any](a Accumulated[E, A]) Result[E, A] {
	if len(a.errs) == 0 {
		return Ok[E](a.value)
	}
	return Err[A](a.errs[0])
}

// Combine merges two independent outcomes. Both successes are combined with
// f; otherwise the failures of a are followed by those of b.
func Combine[E, A, B, C any](a Accumulated[E, A], b Accumulated[E, B], f func(A, B) C) Accumulated[E, C] {
	if len(a.errs) == 0 && len(b.errs) == 0 {
		return Valid[E](f(a.value, b.value))
	}
	errs := make([]E, 0, len(a.errs)+len(b.errs))
	errs = append(errs, a.errs...)
	errs = append(errs, b.errs...)
	return Accumulated[E, C]{errs: errs}
}
