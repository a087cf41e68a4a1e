package railz

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestStepAdapters(t *testing.T) {
	ctx := context.Background()

	t.Run("Transform", func(t *testing.T) {
		step := Transform[string](upper, func(_ context.Context, s string) string {
			return strings.ToUpper(s)
		})
		if step.Name() != upper {
			t.Errorf("expected name %q, got %q", upper, step.Name())
		}
		r, err := step.Run("hello").Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v, _ := r.Value(); v != "HELLO" {
			t.Errorf("expected HELLO, got %q", v)
		}
	})

	t.Run("Apply Success And Failure", func(t *testing.T) {
		step := Apply(nonEmpty, func(_ context.Context, s string) Result[string, int] {
			if s == "" {
				return Err[int]("empty")
			}
			return Ok[string](len(s))
		})

		r, _ := step.Run("four").Run(ctx)
		if v, _ := r.Value(); v != 4 {
			t.Errorf("expected 4, got %d", v)
		}
		r, _ = step.Run("").Run(ctx)
		if e, _ := r.Error(); e != "empty" {
			t.Errorf("expected 'empty', got %q", e)
		}
	})

	t.Run("Perform Raises", func(t *testing.T) {
		boom := errors.New("unavailable")
		step := Perform(persist, func(_ context.Context, _ string) (Result[string, int], error) {
			return Result[string, int]{}, boom
		})
		if _, err := step.Run("x").Run(ctx); !errors.Is(err, boom) {
			t.Errorf("expected %v, got %v", boom, err)
		}
	})

	t.Run("Tap Passes Input Through", func(t *testing.T) {
		var seen string
		step := Tap[string](notify, func(_ context.Context, s string) error {
			seen = s
			return nil
		})
		r, err := step.Run("value").Run(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v, _ := r.Value(); v != "value" || seen != "value" {
			t.Errorf("expected pass-through, got %q seen %q", v, seen)
		}
	})

	t.Run("Tap Failure Is Raised", func(t *testing.T) {
		boom := errors.New("smtp down")
		step := Tap[string](notify, func(context.Context, string) error { return boom })
		if _, err := step.Run("x").Run(ctx); !errors.Is(err, boom) {
			t.Errorf("expected %v, got %v", boom, err)
		}
	})

	t.Run("Guard", func(t *testing.T) {
		step := Guard(positive,
			func(_ context.Context, n int) bool { return n > 0 },
			func(int) string { return "not positive" },
		)
		r, _ := step.Run(3).Run(ctx)
		if v, _ := r.Value(); v != 3 {
			t.Errorf("expected 3, got %d", v)
		}
		r, _ = step.Run(-1).Run(ctx)
		if e, _ := r.Error(); e != "not positive" {
			t.Errorf("expected rejection, got %q", e)
		}
	})

	t.Run("Steps Are Lazy", func(t *testing.T) {
		calls := 0
		step := Transform[string](double, func(_ context.Context, n int) int {
			calls++
			return n * 2
		})
		effect := step.Run(1)
		if calls != 0 {
			t.Fatal("building the effect ran the step")
		}
		_, _ = effect.Run(ctx)
		_, _ = effect.Run(ctx)
		if calls != 2 {
			t.Errorf("expected 2 calls, got %d", calls)
		}
	})

	t.Run("Zero Step", func(t *testing.T) {
		var step Step[int, int, string]
		if _, err := step.Run(1).Run(ctx); !errors.Is(err, ErrNilEffect) {
			t.Errorf("expected ErrNilEffect, got %v", err)
		}
	})
}

func TestEmbed(t *testing.T) {
	inner := Then(Start(subPipeline, Transform[string](increment, func(_ context.Context, n int) int {
		return n + 1
	})), Transform[string](double, func(_ context.Context, n int) int {
		return n * 2
	}))

	step := Embed[int, int, string](inner)
	if step.Name() != subPipeline {
		t.Errorf("expected name %q, got %q", subPipeline, step.Name())
	}

	outer := Then(Start(mainPipeline, step), Transform[string](addTen, func(_ context.Context, n int) int {
		return n + 10
	}))
	r, err := outer.Run(1).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := r.Value(); v != 14 {
		t.Errorf("expected 14, got %d", v)
	}

	t.Run("Raised Failure Path", func(t *testing.T) {
		boom := errors.New("down")
		failing := Start(subPipeline, Perform(persist, func(context.Context, int) (Result[string, int], error) {
			return Result[string, int]{}, boom
		}))
		outer := Start(mainPipeline, Embed[int, int, string](failing))

		_, err := outer.Run(1).Run(context.Background())
		var railErr *Error
		if !errors.As(err, &railErr) {
			t.Fatalf("expected *Error, got %v", err)
		}
		if got := strings.Join(railErr.Path, ","); got != "main,sub,persist" {
			t.Errorf("expected main,sub,persist got %s", got)
		}
	})
}
