package testing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/railz"
)

func TestMockStep(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns Configured Value", func(t *testing.T) {
		mock := NewMockStep[string, string, string](t, "mock-test").WithOk("mocked")

		result, err := mock.Step().Run("input").Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := AssertOk(t, result); got != "mocked" {
			t.Errorf("expected 'mocked', got %q", got)
		}
	})

	t.Run("Returns Configured Domain Error", func(t *testing.T) {
		mock := NewMockStep[string, string, string](t, "mock-error").WithErr("duplicate")

		result, err := mock.Step().Run("input").Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := AssertErr(t, result); got != "duplicate" {
			t.Errorf("expected 'duplicate', got %q", got)
		}
	})

	t.Run("Raises Configured Error", func(t *testing.T) {
		boom := errors.New("database unavailable")
		mock := NewMockStep[string, string, string](t, "mock-raise").WithRaise(boom)

		_, err := mock.Step().Run("input").Run(ctx)
		if !errors.Is(err, boom) {
			t.Errorf("expected %v, got %v", boom, err)
		}
	})

	t.Run("Computes Result From Input", func(t *testing.T) {
		mock := NewMockStep[int, int, string](t, "mock-func").
			WithFunc(func(n int) railz.Result[string, int] { return railz.Ok[string](n * 2) })

		result, err := mock.Step().Run(21).Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := AssertOk(t, result); got != 42 {
			t.Errorf("expected 42, got %d", got)
		}
	})

	t.Run("Is Lazy", func(t *testing.T) {
		mock := NewMockStep[int, int, string](t, "mock-lazy").WithOk(1)

		effect := mock.Step().Run(1)
		AssertNotCalled(t, mock)

		_, _ = effect.Run(ctx)
		_, _ = effect.Run(ctx)
		AssertCalled(t, mock, 2)
	})

	t.Run("Tracks Last Input", func(t *testing.T) {
		mock := NewMockStep[string, string, string](t, "mock-input").WithOk("out")
		step := mock.Step()

		_, _ = step.Run("first").Run(ctx)
		_, _ = step.Run("second").Run(ctx)
		_, _ = step.Run("third").Run(ctx)

		if mock.LastInput() != "third" {
			t.Errorf("expected last input 'third', got %q", mock.LastInput())
		}
		history := mock.CallHistory()
		if len(history) != 3 {
			t.Fatalf("expected 3 calls in history, got %d", len(history))
		}
		if history[0].Input != "first" {
			t.Errorf("expected first call input 'first', got %q", history[0].Input)
		}
	})

	t.Run("Applies Delay", func(t *testing.T) {
		mock := NewMockStep[int, int, string](t, "mock-delay").WithOk(42).WithDelay(50 * time.Millisecond)

		start := time.Now()
		_, _ = mock.Step().Run(1).Run(ctx)
		if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
			t.Errorf("expected delay of at least 50ms, got %v", elapsed)
		}
	})

	t.Run("Respects Context Cancellation During Delay", func(t *testing.T) {
		mock := NewMockStep[int, int, string](t, "mock-cancel").WithOk(42).WithDelay(time.Second)

		cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := mock.Step().Run(1).Run(cancelCtx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("Panic Is Recovered By Effect", func(t *testing.T) {
		mock := NewMockStep[int, int, string](t, "mock-panic").WithPanic("boom")

		_, err := mock.Step().Run(1).Run(ctx)
		var railErr *railz.Error
		if !errors.As(err, &railErr) || !railErr.Panic {
			t.Errorf("expected panic error, got %v", err)
		}
	})

	t.Run("Reset Clears Tracking", func(t *testing.T) {
		mock := NewMockStep[int, int, string](t, "mock-reset").WithOk(1)
		_, _ = mock.Step().Run(7).Run(ctx)

		mock.Reset()
		AssertNotCalled(t, mock)
		if mock.LastInput() != 0 {
			t.Errorf("expected zero last input, got %d", mock.LastInput())
		}
		if len(mock.CallHistory()) != 0 {
			t.Error("expected empty history after reset")
		}
	})

	t.Run("History Size", func(t *testing.T) {
		mock := NewMockStep[int, int, string](t, "mock-history").WithOk(1).WithHistorySize(2)
		step := mock.Step()
		for i := 0; i < 5; i++ {
			_, _ = step.Run(i).Run(ctx)
		}

		history := mock.CallHistory()
		if len(history) != 2 {
			t.Fatalf("expected 2 calls in history, got %d", len(history))
		}
		if history[0].Input != 3 || history[1].Input != 4 {
			t.Errorf("expected inputs [3 4], got [%d %d]", history[0].Input, history[1].Input)
		}

		mock.WithHistorySize(0)
		if mock.CallHistory() != nil {
			t.Error("expected nil history when disabled")
		}
	})
}

func TestMockCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("Pass And Fail", func(t *testing.T) {
		pass := NewMockCheck[int, int, string](t, "pass").WithOk(1)
		fail := NewMockCheck[int, int, string](t, "fail").WithErr("bad")

		if r := pass.Check().Run(ctx, 0); !r.IsOk() {
			t.Error("expected pass")
		}
		if r := fail.Check().Run(ctx, 0); AssertErr(t, r) != "bad" {
			t.Error("expected 'bad'")
		}
		AssertCalled(t, pass, 1)
		AssertCalled(t, fail, 1)
	})

	t.Run("Delayed Checks Keep Registration Order", func(t *testing.T) {
		first := NewMockCheck[int, int, string](t, "first").WithErr("first").WithDelay(40 * time.Millisecond)
		second := NewMockCheck[int, int, string](t, "second").WithOk(2)
		third := NewMockCheck[int, int, string](t, "third").WithErr("third")

		v := railz.Validate3("order", first.Check(), second.Check(), third.Check(),
			func(a, b, c int) int { return a + b + c })

		result, err := v.Validate(ctx, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		AssertErrors(t, result, "first", "third")
	})
}

func TestChaosStep(t *testing.T) {
	ctx := context.Background()

	t.Run("No Chaos Passes Through", func(t *testing.T) {
		inner := NewMockStep[int, int, string](t, "inner").WithOk(5)
		chaos := NewChaosStep(inner.Step(), ChaosConfig{Seed: 1})

		for i := 0; i < 10; i++ {
			result, err := chaos.Step().Run(i).Run(ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			AssertOk(t, result)
		}
		stats := chaos.Stats()
		if stats.TotalCalls != 10 || stats.FailedCalls != 0 {
			t.Errorf("unexpected stats: %s", stats)
		}
		AssertCalled(t, inner, 10)
	})

	t.Run("Always Fails", func(t *testing.T) {
		inner := NewMockStep[int, int, string](t, "inner").WithOk(5)
		chaos := NewChaosStep(inner.Step(), ChaosConfig{FailureRate: 1, Seed: 1})

		_, err := chaos.Step().Run(1).Run(ctx)
		if !errors.Is(err, ErrChaos) {
			t.Errorf("expected chaos failure, got %v", err)
		}
		AssertNotCalled(t, inner)
		if rate := chaos.Stats().FailureRate(); rate != 1 {
			t.Errorf("expected failure rate 1, got %v", rate)
		}
	})

	t.Run("Keeps Wrapped Name", func(t *testing.T) {
		inner := NewMockStep[int, int, string](t, "persist").WithOk(1)
		chaos := NewChaosStep(inner.Step(), ChaosConfig{})
		if chaos.Step().Name() != "persist" {
			t.Errorf("expected name 'persist', got %q", chaos.Step().Name())
		}
	})
}

func TestAssertRejected(t *testing.T) {
	ctx := context.Background()

	check := NewMockCheck[int, int, string](t, "positive").
		WithFunc(func(n int) railz.Result[string, int] {
			if n <= 0 {
				return railz.Err[int]("not positive")
			}
			return railz.Ok[string](n)
		})
	save := NewMockStep[int, int, string](t, "save").WithOk(100)

	wf := railz.NewWorkflow("numbers",
		railz.Validate1("fields", check.Check(), func(n int) int { return n }),
		railz.Start("process", save.Step()),
	)

	outcome, err := wf.Run(ctx, -1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	errs := AssertRejected(t, outcome, 1)
	if len(errs) == 1 && errs[0] != "not positive" {
		t.Errorf("expected 'not positive', got %q", errs[0])
	}
	AssertNotCalled(t, save)

	outcome, err = wf.Run(ctx, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out := AssertCompleted(t, outcome); out != 100 {
		t.Errorf("expected 100, got %d", out)
	}
}

func TestWaitForCalls(t *testing.T) {
	mock := NewMockStep[int, int, string](t, "wait").WithOk(1)
	step := mock.Step()

	go func() {
		for i := 0; i < 3; i++ {
			time.Sleep(10 * time.Millisecond)
			_, _ = step.Run(i).Run(context.Background())
		}
	}()

	if !WaitForCalls(mock, 3, time.Second) {
		t.Errorf("expected 3 calls, got %d", mock.CallCount())
	}
	if WaitForCalls(mock, 10, 30*time.Millisecond) {
		t.Error("expected wait for 10 calls to time out")
	}
}

func TestParallelTest(t *testing.T) {
	var counter int64
	ParallelTest(t, 10, func(int) {
		atomic.AddInt64(&counter, 1)
	})
	if counter != 10 {
		t.Errorf("expected 10 runs, got %d", counter)
	}
}
