// Package testing provides test doubles and assertion helpers for code built
// on railz.
//
// This package includes mock steps and checks that record their calls,
// a chaos wrapper for injecting raised failures, and assertions over
// Result, Accumulated and Outcome values.
//
// Example usage:
//
//	func TestRegister(t *testing.T) {
//		persist := railztest.NewMockStep[Candidate, User, *AppError](t, "persist").
//			WithOk(User{ID: "u-1"})
//		notify := railztest.NewMockStep[User, User, *AppError](t, "notify").
//			WithFunc(func(u User) railz.Result[*AppError, User] { return railz.Ok[*AppError](u) })
//
//		steps := railz.Then(railz.Start("register", persist.Step()), notify.Step())
//		result, err := steps.Run(candidate).Run(context.Background())
//
//		require.NoError(t, err)
//		railztest.AssertOk(t, result)
//		railztest.AssertCalled(t, notify, 1)
//	}
package testing

import (
	"context"
	"errors"
	"fmt"
	mathrand "math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/railz"
)

// ErrNotConfigured is raised by a mock that was called before being given a
// behavior.
var ErrNotConfigured = errors.New("mock has no configured behavior")

// Recorder is implemented by the mocks in this package.
type Recorder interface {
	Name() railz.Name
	CallCount() int
}

// MockCall represents a single call to a mock.
type MockCall[In any] struct {
	Input     In
	Timestamp time.Time
	Context   context.Context
}

// recorder holds the call tracking shared by MockStep and MockCheck.
type recorder[In any] struct { //nolint:govet // fieldalignment: Test helper struct optimized for functionality over memory efficiency
	t           testing.TB
	name        string
	callCount   int64
	mu          sync.RWMutex
	lastInput   In
	callHistory []MockCall[In]
	maxHistory  int
	delay       time.Duration
	panicMsg    string
}

// record stores the call and returns the configured delay and panic message.
func (r *recorder[In]) record(ctx context.Context, in In) (time.Duration, string) {
	atomic.AddInt64(&r.callCount, 1)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastInput = in
	if r.maxHistory > 0 {
		r.callHistory = append(r.callHistory, MockCall[In]{
			Input:     in,
			Timestamp: time.Now(),
			Context:   ctx,
		})
		if len(r.callHistory) > r.maxHistory {
			r.callHistory = r.callHistory[1:]
		}
	}
	return r.delay, r.panicMsg
}

// wait applies the delay, returning early with the context error.
func wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name returns the mock name.
func (r *recorder[In]) Name() railz.Name {
	return r.name
}

// CallCount returns the number of times the mock has been run.
func (r *recorder[In]) CallCount() int {
	return int(atomic.LoadInt64(&r.callCount))
}

// LastInput returns the input from the most recent call.
func (r *recorder[In]) LastInput() In {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastInput
}

// CallHistory returns a copy of all recorded calls.
// Returns nil if history tracking is disabled.
func (r *recorder[In]) CallHistory() []MockCall[In] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.maxHistory == 0 {
		return nil
	}
	history := make([]MockCall[In], len(r.callHistory))
	copy(history, r.callHistory)
	return history
}

// Reset clears all call tracking.
func (r *recorder[In]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	atomic.StoreInt64(&r.callCount, 0)
	r.lastInput = *new(In)
	r.callHistory = nil
}

func (r *recorder[In]) setDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delay = d
}

func (r *recorder[In]) setPanic(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panicMsg = msg
}

func (r *recorder[In]) setHistorySize(size int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxHistory = size
	if size == 0 {
		r.callHistory = nil
	} else if len(r.callHistory) > size {
		r.callHistory = r.callHistory[len(r.callHistory)-size:]
	}
}

// MockStep is a configurable railz.Step that records every run.
type MockStep[In, Out, E any] struct {
	recorder[In]
	fn    func(In) railz.Result[E, Out]
	raise error
}

// NewMockStep creates a mock step. Configure it with WithOk, WithErr,
// WithFunc or WithRaise before running it.
func NewMockStep[In, Out, E any](t testing.TB, name string) *MockStep[In, Out, E] {
	return &MockStep[In, Out, E]{recorder: recorder[In]{t: t, name: name, maxHistory: 100}}
}

// WithOk makes every run succeed with out.
func (m *MockStep[In, Out, E]) WithOk(out Out) *MockStep[In, Out, E] {
	return m.WithFunc(func(In) railz.Result[E, Out] { return railz.Ok[E](out) })
}

// WithErr makes every run fail with e.
func (m *MockStep[In, Out, E]) WithErr(e E) *MockStep[In, Out, E] {
	return m.WithFunc(func(In) railz.Result[E, Out] { return railz.Err[Out](e) })
}

// WithFunc computes each run's Result from its input.
func (m *MockStep[In, Out, E]) WithFunc(fn func(In) railz.Result[E, Out]) *MockStep[In, Out, E] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	m.raise = nil
	return m
}

// WithRaise makes every run raise err instead of returning a Result.
func (m *MockStep[In, Out, E]) WithRaise(err error) *MockStep[In, Out, E] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raise = err
	return m
}

// WithDelay delays every run. The delay ends early, raising the context
// error, when the run's context is done.
func (m *MockStep[In, Out, E]) WithDelay(d time.Duration) *MockStep[In, Out, E] {
	m.setDelay(d)
	return m
}

// WithPanic makes every run panic with msg.
func (m *MockStep[In, Out, E]) WithPanic(msg string) *MockStep[In, Out, E] {
	m.setPanic(msg)
	return m
}

// WithHistorySize configures how many calls to keep in history.
// Set to 0 to disable history tracking.
func (m *MockStep[In, Out, E]) WithHistorySize(size int) *MockStep[In, Out, E] {
	m.setHistorySize(size)
	return m
}

// Step returns the railz.Step backed by this mock.
func (m *MockStep[In, Out, E]) Step() railz.Step[In, Out, E] {
	return railz.NewStep(m.name, func(in In) railz.Effect[railz.Result[E, Out]] {
		return railz.Suspend(func(ctx context.Context) (railz.Result[E, Out], error) {
			return m.run(ctx, in)
		})
	})
}

func (m *MockStep[In, Out, E]) run(ctx context.Context, in In) (railz.Result[E, Out], error) {
	var zero railz.Result[E, Out]
	delay, panicMsg := m.record(ctx, in)
	if panicMsg != "" {
		panic(panicMsg)
	}
	if err := wait(ctx, delay); err != nil {
		return zero, err
	}

	m.mu.RLock()
	fn, raise := m.fn, m.raise
	m.mu.RUnlock()

	switch {
	case raise != nil:
		return zero, raise
	case fn == nil:
		m.t.Errorf("mock step %s was run without a configured behavior", m.name)
		return zero, ErrNotConfigured
	}
	return fn(in), nil
}

// MockCheck is a configurable railz.Check that records every run.
type MockCheck[In, F, E any] struct {
	recorder[In]
	fn func(In) railz.Result[E, F]
}

// NewMockCheck creates a mock check. Configure it with WithOk, WithErr or
// WithFunc before running it.
func NewMockCheck[In, F, E any](t testing.TB, name string) *MockCheck[In, F, E] {
	return &MockCheck[In, F, E]{recorder: recorder[In]{t: t, name: name, maxHistory: 100}}
}

// WithOk makes every run pass with f.
func (m *MockCheck[In, F, E]) WithOk(f F) *MockCheck[In, F, E] {
	return m.WithFunc(func(In) railz.Result[E, F] { return railz.Ok[E](f) })
}

// WithErr makes every run fail with e.
func (m *MockCheck[In, F, E]) WithErr(e E) *MockCheck[In, F, E] {
	return m.WithFunc(func(In) railz.Result[E, F] { return railz.Err[F](e) })
}

// WithFunc computes each run's Result from its input.
func (m *MockCheck[In, F, E]) WithFunc(fn func(In) railz.Result[E, F]) *MockCheck[In, F, E] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// WithDelay delays every run. A check cannot raise, so a run whose context
// ends during the delay still returns its configured Result.
func (m *MockCheck[In, F, E]) WithDelay(d time.Duration) *MockCheck[In, F, E] {
	m.setDelay(d)
	return m
}

// WithPanic makes every run panic with msg.
func (m *MockCheck[In, F, E]) WithPanic(msg string) *MockCheck[In, F, E] {
	m.setPanic(msg)
	return m
}

// Check returns the railz.Check backed by this mock.
func (m *MockCheck[In, F, E]) Check() railz.Check[In, F, E] {
	return railz.NewCheck(m.name, func(ctx context.Context, in In) railz.Result[E, F] {
		delay, panicMsg := m.record(ctx, in)
		if panicMsg != "" {
			panic(panicMsg)
		}
		_ = wait(ctx, delay) //nolint:errcheck

		m.mu.RLock()
		fn := m.fn
		m.mu.RUnlock()
		if fn == nil {
			panic(fmt.Sprintf("mock check %s was run without a configured behavior", m.name))
		}
		return fn(in)
	})
}

// ChaosStep wraps a step and randomly injects raised failures, latency and
// panics. Domain failures of the wrapped step pass through untouched.
type ChaosStep[In, Out, E any] struct { //nolint:govet // fieldalignment: Test helper struct optimized for functionality over memory efficiency
	wrapped     railz.Step[In, Out, E]
	failureRate float64
	latencyMin  time.Duration
	latencyMax  time.Duration
	panicRate   float64
	rng         *mathrand.Rand
	mu          sync.Mutex
	totalCalls  int64
	failedCalls int64
	panicCalls  int64
}

// ChaosConfig holds configuration for chaos testing.
type ChaosConfig struct {
	FailureRate float64       // Probability of raising an error (0.0 to 1.0)
	LatencyMin  time.Duration // Minimum additional latency to inject
	LatencyMax  time.Duration // Maximum additional latency to inject
	PanicRate   float64       // Probability of panicking (0.0 to 1.0)
	Seed        int64         // Random seed for reproducible chaos (0 for time-based)
}

// ErrChaos is the failure raised by ChaosStep.
var ErrChaos = errors.New("chaos step induced failure")

// NewChaosStep wraps step with chaos injection.
func NewChaosStep[In, Out, E any](step railz.Step[In, Out, E], config ChaosConfig) *ChaosStep[In, Out, E] {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &ChaosStep[In, Out, E]{
		wrapped:     step,
		failureRate: config.FailureRate,
		latencyMin:  config.LatencyMin,
		latencyMax:  config.LatencyMax,
		panicRate:   config.PanicRate,
		rng:         mathrand.New(mathrand.NewSource(seed)), //nolint:gosec // G404: Test utility uses weak RNG for deterministic chaos scenarios
	}
}

// Step returns the railz.Step with chaos injected. It keeps the wrapped
// step's name.
func (c *ChaosStep[In, Out, E]) Step() railz.Step[In, Out, E] {
	return railz.NewStep(c.wrapped.Name(), func(in In) railz.Effect[railz.Result[E, Out]] {
		return railz.Suspend(func(ctx context.Context) (railz.Result[E, Out], error) {
			return c.run(ctx, in)
		})
	})
}

func (c *ChaosStep[In, Out, E]) run(ctx context.Context, in In) (railz.Result[E, Out], error) {
	var zero railz.Result[E, Out]
	atomic.AddInt64(&c.totalCalls, 1)

	c.mu.Lock()
	if c.rng.Float64() < c.panicRate {
		c.mu.Unlock()
		atomic.AddInt64(&c.panicCalls, 1)
		panic("chaos step induced panic")
	}
	var latency time.Duration
	if c.latencyMax > c.latencyMin {
		latency = c.latencyMin + time.Duration(c.rng.Int63n(int64(c.latencyMax-c.latencyMin)))
	} else if c.latencyMin > 0 {
		latency = c.latencyMin
	}
	injectFailure := c.rng.Float64() < c.failureRate
	c.mu.Unlock()

	if err := wait(ctx, latency); err != nil {
		return zero, err
	}
	if injectFailure {
		atomic.AddInt64(&c.failedCalls, 1)
		return zero, ErrChaos
	}
	return c.wrapped.Run(in).Run(ctx)
}

// Stats returns statistics about chaos injection.
func (c *ChaosStep[In, Out, E]) Stats() ChaosStats {
	return ChaosStats{
		TotalCalls:  atomic.LoadInt64(&c.totalCalls),
		FailedCalls: atomic.LoadInt64(&c.failedCalls),
		PanicCalls:  atomic.LoadInt64(&c.panicCalls),
	}
}

// ChaosStats holds statistics about chaos injection.
type ChaosStats struct {
	TotalCalls  int64
	FailedCalls int64
	PanicCalls  int64
}

// FailureRate returns the observed rate of injected failures.
func (s ChaosStats) FailureRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.FailedCalls) / float64(s.TotalCalls)
}

// String returns a human-readable representation of the stats.
func (s ChaosStats) String() string {
	return fmt.Sprintf("ChaosStats{Total: %d, Failed: %d (%.1f%%), Panics: %d}",
		s.TotalCalls, s.FailedCalls, s.FailureRate()*100, s.PanicCalls)
}

// Assertion Helpers

// AssertCalled verifies that a mock was run exactly n times.
func AssertCalled(t testing.TB, mock Recorder, expectedCalls int) {
	t.Helper()
	if actual := mock.CallCount(); actual != expectedCalls {
		t.Errorf("expected mock %s to be called %d times, but was called %d times",
			mock.Name(), expectedCalls, actual)
	}
}

// AssertNotCalled verifies that a mock was never run.
func AssertNotCalled(t testing.TB, mock Recorder) {
	t.Helper()
	AssertCalled(t, mock, 0)
}

// AssertOk verifies that r is a success and returns its value.
func AssertOk[E, A any](t testing.TB, r railz.Result[E, A]) A {
	t.Helper()
	v, ok := r.Value()
	if !ok {
		e, _ := r.Error()
		t.Errorf("expected Ok, got Err(%v)", e)
	}
	return v
}

// AssertErr verifies that r is a failure and returns its error.
func AssertErr[E, A any](t testing.TB, r railz.Result[E, A]) E {
	t.Helper()
	e, failed := r.Error()
	if !failed {
		v, _ := r.Value()
		t.Errorf("expected Err, got Ok(%v)", v)
	}
	return e
}

// AssertErrors verifies that a failed with exactly the given errors, in
// order.
func AssertErrors[E comparable, A any](t testing.TB, a railz.Accumulated[E, A], want ...E) {
	t.Helper()
	got := a.Errors()
	if len(got) != len(want) {
		t.Errorf("expected %d errors %v, got %d %v", len(want), want, len(got), got)
		return
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("error %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

// AssertCompleted verifies that a workflow completed and returns its output.
func AssertCompleted[E, Out any](t testing.TB, o railz.Outcome[E, Out]) Out {
	t.Helper()
	out, ok := o.Output()
	if !ok {
		t.Errorf("expected workflow to complete, got %s with errors %v", o.State(), o.Errors())
	}
	return out
}

// AssertRejected verifies that a workflow was rejected with n errors and
// returns them.
func AssertRejected[E, Out any](t testing.TB, o railz.Outcome[E, Out], n int) []E {
	t.Helper()
	if !o.IsRejected() {
		t.Errorf("expected workflow to be rejected, got %s", o.State())
		return nil
	}
	errs := o.Errors()
	if len(errs) != n {
		t.Errorf("expected %d rejection errors, got %d: %v", n, len(errs), errs)
	}
	return errs
}

// Helper Functions

// WaitForCalls waits for a mock to be run at least n times, with a timeout.
// Returns true if the expected calls were reached.
func WaitForCalls(mock Recorder, expectedCalls int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if mock.CallCount() >= expectedCalls {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return mock.CallCount() >= expectedCalls
}

// ParallelTest runs fn concurrently in the given number of goroutines and
// waits for all of them.
func ParallelTest(t testing.TB, goroutines int, fn func(int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			fn(id)
		}(i)
	}
	wg.Wait()
}
