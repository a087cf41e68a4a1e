package railz

import (
	"context"
	"time"

	"github.com/zoobzio/clockz"
)

// Effect is a deferred computation producing a T. Building an Effect never
// executes anything; the computation happens only when Run is called, and
// every call to Run executes it again from scratch. Nothing is cached, so two
// Effects built the same way are interchangeable no matter where or how
// often they run.
//
// Effect is failure-oblivious: a run either yields a T or raises an error.
// Domain failures belong in the value, as Effect[Result[E, A]], which is how
// Step and Pipeline use it.
//
// Go methods cannot introduce type parameters, so the transforming
// combinators are package functions:
//
//	greeting := railz.Map(railz.Of("world"), func(s string) string {
//	    return "hello " + s
//	})
//	line := railz.FlatMap(greeting, func(s string) railz.Effect[int] {
//	    return railz.Suspend(func(_ context.Context) (int, error) {
//	        return fmt.Println(s)
//	    })
//	})
//	// Nothing has been printed yet.
//	n, err := line.Run(ctx)
type Effect[T any] struct {
	run func(context.Context) (T, error)
}

// Of wraps an already-known value. Running it always yields v.
func Of[T any](v T) Effect[T] {
	return Effect[T]{run: func(context.Context) (T, error) {
		return v, nil
	}}
}

// Delay wraps a side-effecting closure that cannot fail. fn is invoked
// exactly once per run and never at construction.
func Delay[T any](fn func() T) Effect[T] {
	return Effect[T]{run: func(context.Context) (T, error) {
		return fn(), nil
	}}
}

// Suspend wraps a side-effecting closure that may raise. A non-nil error
// from fn becomes the run's failure.
func Suspend[T any](fn func(context.Context) (T, error)) Effect[T] {
	return Effect[T]{run: fn}
}

// Fail returns an Effect whose every run raises err.
func Fail[T any](err error) Effect[T] {
	return Effect[T]{run: func(context.Context) (T, error) {
		var zero T
		return zero, err
	}}
}

// Map returns an Effect that runs e and applies f to its value. Neither e
// nor f is executed at composition time.
func Map[T, U any](e Effect[T], f func(T) U) Effect[U] {
	return Effect[U]{run: func(ctx context.Context) (U, error) {
		v, err := e.Run(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return f(v), nil
	}}
}

// FlatMap returns an Effect that runs e, passes its value to f and runs the
// Effect f returns. If ctx is done once e has finished, the continuation is
// not started.
func FlatMap[T, U any](e Effect[T], f func(T) Effect[U]) Effect[U] {
	return Effect[U]{run: func(ctx context.Context) (U, error) {
		var zero U
		v, err := e.Run(ctx)
		if err != nil {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, contextError(ctx, nil, v, time.Now(), 0)
		}
		return f(v).Run(ctx)
	}}
}

// Run executes the computation. A nil ctx is treated as
// context.Background(). A panic inside the computation is recovered and
// raised as an *Error with Panic set.
func (e Effect[T]) Run(ctx context.Context) (result T, err error) {
	if e.run == nil {
		return result, ErrNilEffect
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer recoverFromPanic(&err, nil)
	return e.run(ctx)
}

// Collect returns an Effect that runs each effect in order and gathers the
// values. The first raised failure stops the run.
func Collect[T any](effects ...Effect[T]) Effect[[]T] {
	return Effect[[]T]{run: func(ctx context.Context) ([]T, error) {
		values := make([]T, 0, len(effects))
		for _, e := range effects {
			if ctx.Err() != nil {
				return nil, contextError(ctx, nil, values, time.Now(), 0)
			}
			v, err := e.Run(ctx)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		return values, nil
	}}
}

// Attempt catches a raised failure of e as Result.Err. Cancellation is caught
// like any other failure; callers that must tell them apart can use
// IsCancellation on the error.
func Attempt[T any](e Effect[T]) Effect[Result[error, T]] {
	return Catch(e, func(err error) error { return err })
}

// Catch runs e and converts a raised failure into Result.Err via f.
func Catch[E, T any](e Effect[T], f func(error) E) Effect[Result[E, T]] {
	return Effect[Result[E, T]]{run: func(ctx context.Context) (Result[E, T], error) {
		v, err := e.Run(ctx)
		if err != nil {
			return Err[T](f(err)), nil
		}
		return Ok[E](v), nil
	}}
}

// Timeout bounds each run of e to d as measured by clock. When the deadline
// passes first the run raises an *Error with Timeout set; e keeps the
// derived context, so well-behaved computations stop promptly. A nil clock
// uses the real clock.
func Timeout[T any](e Effect[T], d time.Duration, clock clockz.Clock) Effect[T] {
	if clock == nil {
		clock = clockz.RealClock
	}
	return Effect[T]{run: func(ctx context.Context) (T, error) {
		start := clock.Now()
		ctx, cancel := clock.WithTimeout(ctx, d)
		defer cancel()

		type outcome struct {
			value T
			err   error
		}
		done := make(chan outcome, 1)
		go func() {
			v, err := e.Run(ctx)
			done <- outcome{value: v, err: err}
		}()

		select {
		case o := <-done:
			return o.value, o.err
		case <-ctx.Done():
			var zero T
			return zero, contextError(ctx, nil, nil, clock.Now(), clock.Since(start))
		}
	}}
}
