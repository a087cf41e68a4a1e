package railz

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

const (
	registerWorkflow Name = "register"
	processPipeline  Name = "process"
)

type registered struct {
	ID int
	account
}

// registrationFixture wires the signup validator into a pipeline backed by
// an in-memory set of taken emails.
type registrationFixture struct {
	mu       sync.Mutex
	taken    map[string]bool
	saved    int32
	notified int32
}

func newRegistrationFixture(taken ...string) *registrationFixture {
	f := &registrationFixture{taken: make(map[string]bool)}
	for _, email := range taken {
		f.taken[email] = true
	}
	return f
}

func (f *registrationFixture) pipeline() Pipeline[account, registered, fieldError] {
	unique := Apply("check-unique", func(_ context.Context, a account) Result[fieldError, account] {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.taken[a.Email] {
			return Err[account](fieldError{"email-taken"})
		}
		return Ok[fieldError](a)
	})
	save := Transform[fieldError](persist, func(_ context.Context, a account) registered {
		id := atomic.AddInt32(&f.saved, 1)
		f.mu.Lock()
		f.taken[a.Email] = true
		f.mu.Unlock()
		return registered{ID: int(id), account: a}
	})
	welcome := Tap[fieldError](notify, func(context.Context, registered) error {
		atomic.AddInt32(&f.notified, 1)
		return nil
	})
	return Then(Then(Start(processPipeline, unique), save), welcome)
}

func (f *registrationFixture) workflow() Workflow[signup, account, registered, fieldError] {
	return NewWorkflow(registerWorkflow, signupValidator(0, 0, 0), f.pipeline())
}

func TestWorkflowScenarios(t *testing.T) {
	t.Run("Completed", func(t *testing.T) {
		f := newRegistrationFixture()
		outcome, err := f.workflow().Run(context.Background(), signup{"alice", "alice@example.com", 25})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.State() != Completed || !outcome.IsCompleted() {
			t.Fatalf("expected completed, got %s", outcome.State())
		}
		user, ok := outcome.Output()
		if !ok {
			t.Fatal("completed outcome has no output")
		}
		if user.ID == 0 || user.Name != "alice" || user.Email != "alice@example.com" || user.Age != 25 {
			t.Errorf("unexpected user %+v", user)
		}
		if outcome.Errors() != nil || outcome.Phase() != PhaseNone {
			t.Errorf("completed outcome carries rejection data: %v %s", outcome.Errors(), outcome.Phase())
		}
	})

	t.Run("Rejected By Validation", func(t *testing.T) {
		f := newRegistrationFixture()
		outcome, err := f.workflow().Run(context.Background(), signup{"", "invalid", 200})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !outcome.IsRejected() {
			t.Fatalf("expected rejected, got %s", outcome.State())
		}
		if got := fields(outcome.Errors()); got != "name,email,age" {
			t.Errorf("expected 3 errors name,email,age got %s", got)
		}
		if outcome.Phase() != PhaseValidation || outcome.FailedStep() != "" {
			t.Errorf("unexpected phase %s step %q", outcome.Phase(), outcome.FailedStep())
		}
		if atomic.LoadInt32(&f.saved) != 0 {
			t.Error("processing ran for invalid input")
		}
	})

	t.Run("Rejected By Processing", func(t *testing.T) {
		f := newRegistrationFixture("alice@example.com")
		outcome, err := f.workflow().Run(context.Background(), signup{"bob", "alice@example.com", 30})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !outcome.IsRejected() {
			t.Fatalf("expected rejected, got %s", outcome.State())
		}
		if got := fields(outcome.Errors()); got != "email-taken" {
			t.Errorf("expected exactly one email-taken error, got %s", got)
		}
		if outcome.Phase() != PhaseProcessing || outcome.FailedStep() != "check-unique" {
			t.Errorf("unexpected phase %s step %q", outcome.Phase(), outcome.FailedStep())
		}
		if atomic.LoadInt32(&f.saved) != 0 || atomic.LoadInt32(&f.notified) != 0 {
			t.Error("steps after the rejection ran")
		}
	})

	t.Run("Result And Accumulated Views", func(t *testing.T) {
		f := newRegistrationFixture()
		outcome, _ := f.workflow().Run(context.Background(), signup{"", "x", 1})
		if e, _ := outcome.Result().Error(); e.Field != "name" {
			t.Errorf("expected first error name, got %v", e)
		}
		if n := len(outcome.Accumulated().Errors()); n != 2 {
			t.Errorf("expected 2 accumulated errors, got %d", n)
		}
	})
}

func TestWorkflowRaisedFailures(t *testing.T) {
	boom := errors.New("disk on fire")
	failing := Perform(persist, func(_ context.Context, _ account) (Result[fieldError, registered], error) {
		return Result[fieldError, registered]{}, boom
	})
	wf := NewWorkflow(registerWorkflow, signupValidator(0, 0, 0), Start(processPipeline, failing))
	valid := signup{"carol", "carol@example.com", 40}

	t.Run("Raised Without Recover", func(t *testing.T) {
		outcome, err := wf.Run(context.Background(), valid)
		if !errors.Is(err, boom) {
			t.Fatalf("expected %v, got %v", boom, err)
		}
		if outcome.State().Terminal() {
			t.Errorf("raised run reported terminal state %s", outcome.State())
		}
		var railErr *Error
		if errors.As(err, &railErr) {
			if got := strings.Join(railErr.Path, ","); got != "register,process,persist" {
				t.Errorf("expected path register,process,persist got %s", got)
			}
		}
	})

	t.Run("Recovered Into Rejection", func(t *testing.T) {
		recovered := wf.WithRecover(func(err error) fieldError { return fieldError{"infrastructure"} })
		outcome, err := recovered.Run(context.Background(), valid)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := fields(outcome.Errors()); got != "infrastructure" {
			t.Errorf("expected one infrastructure error, got %s", got)
		}
		if outcome.FailedStep() != persist {
			t.Errorf("expected failed step persist, got %q", outcome.FailedStep())
		}
		if v := recovered.Metrics().Counter(WorkflowRecoveredTotal).Value(); v != 1 {
			t.Errorf("expected 1 recovered run, got %f", v)
		}
	})

	t.Run("Validation Panic Recovered", func(t *testing.T) {
		exploding := NewCheck(checkName, func(context.Context, signup) Result[fieldError, string] {
			panic("bad check")
		})
		v := Validate1("signup", exploding, func(name string) account { return account{Name: name} })
		f := newRegistrationFixture()
		wf := NewWorkflow(registerWorkflow, v, f.pipeline()).
			WithRecover(func(error) fieldError { return fieldError{"infrastructure"} })

		outcome, err := wf.Run(context.Background(), valid)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Phase() != PhaseValidation || len(outcome.Errors()) != 1 {
			t.Errorf("expected one validation-phase error, got %s %v", outcome.Phase(), outcome.Errors())
		}
	})

	t.Run("Panic Building Step Effect", func(t *testing.T) {
		eager := NewStep(persist, func(account) Effect[Result[fieldError, registered]] {
			panic("store exploded")
		})
		wf := NewWorkflow(registerWorkflow, signupValidator(0, 0, 0), Start(processPipeline, eager))

		_, err := wf.Run(context.Background(), valid)
		var railErr *Error
		if !errors.As(err, &railErr) || !railErr.Panic {
			t.Fatalf("expected panic error, got %v", err)
		}
		if got := strings.Join(railErr.Path, ","); got != "register,process,persist" {
			t.Errorf("expected path register,process,persist got %s", got)
		}

		outcome, err := wf.WithRecover(func(error) fieldError { return fieldError{"infrastructure"} }).
			Run(context.Background(), valid)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Phase() != PhaseProcessing || outcome.FailedStep() != persist {
			t.Errorf("expected rejection at persist, got %s %q", outcome.Phase(), outcome.FailedStep())
		}
	})

	t.Run("Combiner Panic", func(t *testing.T) {
		v := Validate1("signup", nameCheck(0), func(string) account {
			panic("combine exploded")
		})
		f := newRegistrationFixture()
		wf := NewWorkflow(registerWorkflow, v, f.pipeline())

		_, err := wf.Run(context.Background(), valid)
		var railErr *Error
		if !errors.As(err, &railErr) || !railErr.Panic {
			t.Fatalf("expected panic error, got %v", err)
		}
		if got := strings.Join(railErr.Path, ","); got != "register,signup" {
			t.Errorf("expected path register,signup got %s", got)
		}
		if f.saved != 0 {
			t.Error("processing ran after a failed validation")
		}

		outcome, err := wf.WithRecover(func(error) fieldError { return fieldError{"infrastructure"} }).
			Run(context.Background(), valid)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome.Phase() != PhaseValidation || fields(outcome.Errors()) != "infrastructure" {
			t.Errorf("expected validation-phase infrastructure error, got %s %v", outcome.Phase(), outcome.Errors())
		}
	})

	t.Run("Cancellation Is Never Recovered", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		recovered := wf.WithRecover(func(error) fieldError { return fieldError{"infrastructure"} })

		_, err := recovered.Run(ctx, valid)
		if !IsCancellation(err) {
			t.Errorf("expected cancellation, got %v", err)
		}
	})
}

func TestWorkflowTransitions(t *testing.T) {
	f := newRegistrationFixture("taken@example.com")
	wf := f.workflow().WithClock(clockz.NewFakeClock())
	defer wf.Close()

	var mu sync.Mutex
	var events []WorkflowEvent
	if err := wf.OnTransition(func(_ context.Context, ev WorkflowEvent) error {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
		return nil
	}); err != nil {
		t.Fatalf("failed to register hook: %v", err)
	}

	_, _ = wf.Run(context.Background(), signup{"", "", -1})
	_, _ = wf.Run(context.Background(), signup{"bob", "taken@example.com", 30})
	_, _ = wf.Run(context.Background(), signup{"dan", "dan@example.com", 30})

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	count := map[[2]State]int{}
	for _, ev := range events {
		if ev.Name != registerWorkflow {
			t.Errorf("unexpected workflow name %q", ev.Name)
		}
		count[[2]State{ev.From, ev.To}]++
	}
	if count[[2]State{Validating, Rejected}] != 1 {
		t.Errorf("expected 1 validating->rejected, got %v", count)
	}
	if count[[2]State{Validating, Processing}] != 2 {
		t.Errorf("expected 2 validating->processing, got %v", count)
	}
	if count[[2]State{Processing, Rejected}] != 1 {
		t.Errorf("expected 1 processing->rejected, got %v", count)
	}
	if count[[2]State{Processing, Completed}] != 1 {
		t.Errorf("expected 1 processing->completed, got %v", count)
	}

	m := wf.Metrics()
	if m.Counter(WorkflowRunsTotal).Value() != 3 ||
		m.Counter(WorkflowCompletedTotal).Value() != 1 ||
		m.Counter(WorkflowRejectedValidationTotal).Value() != 1 ||
		m.Counter(WorkflowRejectedProcessingTotal).Value() != 1 {
		t.Error("unexpected workflow metrics")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		Validating: "validating",
		Processing: "processing",
		Rejected:   "rejected",
		Completed:  "completed",
		State(99):  "unknown",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("expected %q, got %q", want, s.String())
		}
	}
	if Validating.Terminal() || Processing.Terminal() || !Rejected.Terminal() || !Completed.Terminal() {
		t.Error("unexpected terminal states")
	}
	if PhaseValidation.String() != "validation" || PhaseProcessing.String() != "processing" || PhaseNone.String() != "none" {
		t.Error("unexpected phase names")
	}
}
