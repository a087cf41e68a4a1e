package railz

import (
	"context"
	"strconv"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
	"golang.org/x/sync/errgroup"
)

// Observability constants for Validator.
const (
	// Metrics.
	ValidatorRunsTotal    = metricz.Key("validator.runs.total")
	ValidatorValidTotal   = metricz.Key("validator.valid.total")
	ValidatorInvalidTotal = metricz.Key("validator.invalid.total")
	ValidatorFailedTotal  = metricz.Key("validator.failed.total")
	ValidatorErrorsTotal  = metricz.Key("validator.errors.total")
	ValidatorChecksTotal  = metricz.Key("validator.checks.total")
	ValidatorDurationMs   = metricz.Key("validator.duration.ms")

	// Spans.
	ValidatorValidateSpan = tracez.Key("validator.validate")
	ValidatorCheckSpan    = tracez.Key("validator.check")

	// Tags.
	ValidatorTagCheckCount  = tracez.Tag("validator.check_count")
	ValidatorTagConcurrency = tracez.Tag("validator.concurrency")
	ValidatorTagCheckName   = tracez.Tag("validator.check_name")
	ValidatorTagPassed      = tracez.Tag("validator.passed")
	ValidatorTagErrorCount  = tracez.Tag("validator.error_count")
	ValidatorTagError       = tracez.Tag("validator.error")

	// Hook event keys.
	ValidatorEventChecked  = hookz.Key("validator.checked")
	ValidatorEventComplete = hookz.Key("validator.complete")
)

// ValidatorEvent is emitted via hookz as each check finishes and when a
// validation completes.
type ValidatorEvent struct {
	Timestamp     time.Time     // When the event occurred
	Failure       any           // The E value of a failed check
	Name          Name          // Validator name
	CheckName     Name          // Check that finished (empty for validator.complete)
	CheckIndex    int           // Registration index of the check
	TotalChecks   int           // Number of registered checks
	FailedChecks  int           // Failed checks (validator.complete only)
	Passed        bool          // Whether the check, or the whole validation, passed
	Duration      time.Duration // Check duration
	TotalDuration time.Duration // Validation duration (validator.complete only)
}

// Validator runs a fixed set of independent checks against one input and
// reports every failure rather than the first. When all checks pass their
// typed values are handed to a combiner that builds the validated output.
//
// Build a Validator with one of the fixed-arity constructors, the
// counterpart of applying a constructor to N validated fields:
//
//	fields := railz.Validate3("user-fields", checkName, checkEmail, checkAge,
//	    func(name, email string, age int) Candidate {
//	        return Candidate{Name: name, Email: email, Age: age}
//	    })
//
//	outcome, err := fields.Validate(ctx, input)
//
// Checks are dispatched concurrently, at most WithConcurrency at a time
// (default: all at once), or inline with Sequential. Either way the failure
// list is in registration order, independent of completion order, and holds
// only E values. The error return is reserved for raised failures: a
// panicking check, or a context that was done before the join.
//
// Use a Pipeline instead when one check needs another's result.
//
// # Observability
//
// Metrics:
//   - validator.runs.total: Counter of validations
//   - validator.valid.total: Counter of validations where every check passed
//   - validator.invalid.total: Counter of validations with at least one failure
//   - validator.failed.total: Counter of validations that raised
//   - validator.errors.total: Counter of individual check failures
//   - validator.checks.total: Gauge of registered checks
//   - validator.duration.ms: Gauge of the last validation duration
//
// Traces:
//   - validator.validate: Parent span for a validation
//   - validator.check: Child span for each check
//
// Events (via hooks):
//   - validator.checked: Fired as each check finishes
//   - validator.complete: Fired when all checks have been joined
type Validator[In, Out, E any] struct {
	clock       clockz.Clock
	combine     func([]any) Out
	obs         *telemetry[ValidatorEvent]
	name        Name
	checks      []check[In, E]
	concurrency int
	sequential  bool
}

func newValidator[In, Out, E any](name Name, combine func([]any) Out, checks ...check[In, E]) Validator[In, Out, E] {
	return Validator[In, Out, E]{
		name:    name,
		combine: combine,
		checks:  checks,
		clock:   clockz.RealClock,
		obs:     newValidatorTelemetry(),
	}
}

func newValidatorTelemetry() *telemetry[ValidatorEvent] {
	return newTelemetry[ValidatorEvent](
		[]metricz.Key{ValidatorRunsTotal, ValidatorValidTotal, ValidatorInvalidTotal, ValidatorFailedTotal, ValidatorErrorsTotal},
		[]metricz.Key{ValidatorChecksTotal, ValidatorDurationMs},
	)
}

// Validate1 builds a Validator from a single check.
func Validate1[In, F1, Out, E any](
	name Name,
	c1 Check[In, F1, E],
	combine func(F1) Out,
) Validator[In, Out, E] {
	return newValidator(name, func(v []any) Out {
		return combine(cast[F1](v[0]))
	}, c1.erase())
}

// Validate2 builds a Validator from two independent checks.
func Validate2[In, F1, F2, Out, E any](
	name Name,
	c1 Check[In, F1, E],
	c2 Check[In, F2, E],
	combine func(F1, F2) Out,
) Validator[In, Out, E] {
	return newValidator(name, func(v []any) Out {
		return combine(cast[F1](v[0]), cast[F2](v[1]))
	}, c1.erase(), c2.erase())
}

// Validate3 builds a Validator from three independent checks.
func Validate3[In, F1, F2, F3, Out, E any](
	name Name,
	c1 Check[In, F1, E],
	c2 Check[In, F2, E],
	c3 Check[In, F3, E],
	combine func(F1, F2, F3) Out,
) Validator[In, Out, E] {
	return newValidator(name, func(v []any) Out {
		return combine(cast[F1](v[0]), cast[F2](v[1]), cast[F3](v[2]))
	}, c1.erase(), c2.erase(), c3.erase())
}

// Validate4 builds a Validator from four independent checks.
func Validate4[In, F1, F2, F3, F4, Out, E any](
	name Name,
	c1 Check[In, F1, E],
	c2 Check[In, F2, E],
	c3 Check[In, F3, E],
	c4 Check[In, F4, E],
	combine func(F1, F2, F3, F4) Out,
) Validator[In, Out, E] {
	return newValidator(name, func(v []any) Out {
		return combine(cast[F1](v[0]), cast[F2](v[1]), cast[F3](v[2]), cast[F4](v[3]))
	}, c1.erase(), c2.erase(), c3.erase(), c4.erase())
}

// Validate5 builds a Validator from five independent checks.
func Validate5[In, F1, F2, F3, F4, F5, Out, E any](
	name Name,
	c1 Check[In, F1, E],
	c2 Check[In, F2, E],
	c3 Check[In, F3, E],
	c4 Check[In, F4, E],
	c5 Check[In, F5, E],
	combine func(F1, F2, F3, F4, F5) Out,
) Validator[In, Out, E] {
	return newValidator(name, func(v []any) Out {
		return combine(cast[F1](v[0]), cast[F2](v[1]), cast[F3](v[2]), cast[F4](v[3]), cast[F5](v[4]))
	}, c1.erase(), c2.erase(), c3.erase(), c4.erase(), c5.erase())
}

// ValidateAll builds a Validator from any number of checks sharing a field
// type. combine receives the values in registration order. With no checks
// the validation always passes.
func ValidateAll[In, F, Out, E any](name Name, combine func([]F) Out, checks ...Check[In, F, E]) Validator[In, Out, E] {
	erased := make([]check[In, E], len(checks))
	for i, c := range checks {
		erased[i] = c.erase()
	}
	return newValidator(name, func(v []any) Out {
		fields := make([]F, len(v))
		for i := range v {
			fields[i] = cast[F](v[i])
		}
		return combine(fields)
	}, erased...)
}

// Validate runs every check against in.
func (v Validator[In, Out, E]) Validate(ctx context.Context, in In) (result Accumulated[E, Out], err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	obs := v.telemetry()
	clock := v.getClock()
	checks := v.checks

	obs.metrics.Counter(ValidatorRunsTotal).Inc()
	obs.metrics.Gauge(ValidatorChecksTotal).Set(float64(len(checks)))
	start := clock.Now()

	ctx, span := obs.tracer.StartSpan(ctx, ValidatorValidateSpan)
	span.SetTag(ValidatorTagCheckCount, strconv.Itoa(len(checks)))
	defer func() {
		obs.metrics.Gauge(ValidatorDurationMs).Set(float64(clock.Since(start).Milliseconds()))
		switch {
		case err != nil:
			span.SetTag(ValidatorTagPassed, "false")
			span.SetTag(ValidatorTagError, err.Error())
			obs.metrics.Counter(ValidatorFailedTotal).Inc()
		case result.IsValid():
			span.SetTag(ValidatorTagPassed, "true")
			obs.metrics.Counter(ValidatorValidTotal).Inc()
		default:
			span.SetTag(ValidatorTagPassed, "false")
			span.SetTag(ValidatorTagErrorCount, strconv.Itoa(len(result.errs)))
			obs.metrics.Counter(ValidatorInvalidTotal).Inc()
		}
		span.Finish()
	}()

	if ctx.Err() != nil {
		return result, contextError(ctx, []Name{v.name}, in, clock.Now(), clock.Since(start))
	}

	outcomes := make([]Result[E, any], len(checks))
	if v.sequential || len(checks) <= 1 {
		span.SetTag(ValidatorTagConcurrency, "1")
		for i := range checks {
			if err := v.runCheck(ctx, obs, clock, i, in, outcomes); err != nil {
				return result, err
			}
		}
	} else {
		limit := v.concurrency
		if limit <= 0 || limit > len(checks) {
			limit = len(checks)
		}
		span.SetTag(ValidatorTagConcurrency, strconv.Itoa(limit))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for i := range checks {
			g.Go(func() error {
				return v.runCheck(gctx, obs, clock, i, in, outcomes)
			})
		}
		if err := g.Wait(); err != nil {
			return result, err
		}
	}

	// A check skipped because the context ended leaves its slot empty, so
	// the outcomes must not be combined.
	if ctx.Err() != nil {
		return result, contextError(ctx, []Name{v.name}, in, clock.Now(), clock.Since(start))
	}

	values := make([]any, len(checks))
	var errs []E
	for i, outcome := range outcomes {
		if value, ok := outcome.Value(); ok {
			values[i] = value
			continue
		}
		failure, _ := outcome.Error()
		errs = append(errs, failure)
		obs.metrics.Counter(ValidatorErrorsTotal).Inc()
	}

	obs.emit(ctx, ValidatorEventComplete, ValidatorEvent{
		Name:          v.name,
		TotalChecks:   len(checks),
		FailedChecks:  len(errs),
		Passed:        len(errs) == 0,
		TotalDuration: clock.Since(start),
		Timestamp:     clock.Now(),
	})

	if len(errs) > 0 {
		return Invalid[Out](errs[0], errs[1:]...), nil
	}
	out, err := v.build(values, in)
	if err != nil {
		return result, err
	}
	return Valid[E](out), nil
}

// build hands the check values to the combiner. A panicking combiner is
// raised with the validator's name as its path.
func (v Validator[In, Out, E]) build(values []any, in In) (out Out, err error) {
	defer recoverFromPanic(&err, in, v.name)
	return v.combine(values), nil
}

// runCheck runs check i and stores its outcome in slot i. It returns an error
// only when the check panicked.
func (v Validator[In, Out, E]) runCheck(
	ctx context.Context,
	obs *telemetry[ValidatorEvent],
	clock clockz.Clock,
	i int,
	in In,
	outcomes []Result[E, any],
) (err error) {
	c := v.checks[i]
	defer recoverFromPanic(&err, in, v.name, c.name)

	if ctx.Err() != nil {
		return nil
	}

	checkCtx, checkSpan := obs.tracer.StartSpan(ctx, ValidatorCheckSpan)
	defer checkSpan.Finish()
	checkSpan.SetTag(ValidatorTagCheckName, c.name)

	checkStart := clock.Now()
	outcome := c.fn(checkCtx, in)
	outcomes[i] = outcome

	event := ValidatorEvent{
		Name:        v.name,
		CheckName:   c.name,
		CheckIndex:  i,
		TotalChecks: len(v.checks),
		Passed:      outcome.IsOk(),
		Duration:    clock.Since(checkStart),
		Timestamp:   clock.Now(),
	}
	if failure, failed := outcome.Error(); failed {
		event.Failure = failure
	}
	checkSpan.SetTag(ValidatorTagPassed, strconv.FormatBool(event.Passed))
	obs.emit(ctx, ValidatorEventChecked, event)
	return nil
}

// Effect returns the deferred validation of in.
func (v Validator[In, Out, E]) Effect(in In) Effect[Accumulated[E, Out]] {
	return Suspend(func(ctx context.Context) (Accumulated[E, Out], error) {
		return v.Validate(ctx, in)
	})
}

// WithConcurrency returns a copy that runs at most n checks at a time.
// n <= 0 means no limit.
func (v Validator[In, Out, E]) WithConcurrency(n int) Validator[In, Out, E] {
	v.concurrency = n
	v.sequential = false
	return v
}

// Sequential returns a copy that runs the checks inline, in registration
// order, without spawning goroutines.
func (v Validator[In, Out, E]) Sequential() Validator[In, Out, E] {
	v.sequential = true
	return v
}

// WithClock returns a copy that measures time with clock.
func (v Validator[In, Out, E]) WithClock(clock clockz.Clock) Validator[In, Out, E] {
	v.clock = clock
	return v
}

// Name returns the validator name.
func (v Validator[In, Out, E]) Name() Name {
	return v.name
}

// Len returns the number of checks.
func (v Validator[In, Out, E]) Len() int {
	return len(v.checks)
}

// Names returns the check names in registration order.
func (v Validator[In, Out, E]) Names() []Name {
	names := make([]Name, len(v.checks))
	for i, c := range v.checks {
		names[i] = c.name
	}
	return names
}

func (v Validator[In, Out, E]) getClock() clockz.Clock {
	if v.clock == nil {
		return clockz.RealClock
	}
	return v.clock
}

func (v Validator[In, Out, E]) telemetry() *telemetry[ValidatorEvent] {
	if v.obs == nil {
		return newValidatorTelemetry()
	}
	return v.obs
}

// Metrics returns the metrics registry for this validator.
func (v Validator[In, Out, E]) Metrics() *metricz.Registry {
	return v.telemetry().metrics
}

// Tracer returns the tracer for this validator.
func (v Validator[In, Out, E]) Tracer() *tracez.Tracer {
	return v.telemetry().tracer
}

// OnChecked registers a handler called asynchronously as each check
// finishes.
func (v Validator[In, Out, E]) OnChecked(handler func(context.Context, ValidatorEvent) error) error {
	return v.telemetry().hook(ValidatorEventChecked, handler)
}

// OnComplete registers a handler called asynchronously once all checks of a
// validation have been joined.
func (v Validator[In, Out, E]) OnComplete(handler func(context.Context, ValidatorEvent) error) error {
	return v.telemetry().hook(ValidatorEventComplete, handler)
}

// Close shuts down the observability components.
func (v Validator[In, Out, E]) Close() error {
	if v.obs != nil {
		v.obs.close()
	}
	return nil
}
