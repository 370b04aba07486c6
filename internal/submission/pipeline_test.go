package submission

import (
	"context"
	"errors"
	"testing"
	"time"
)

// recordingStep appends its name to a shared log.
type recordingStep struct {
	name string
	log  *[]string
}

func (s *recordingStep) Name() string { return s.name }
func (s *recordingStep) Run(_ context.Context, _ *StepContext) error {
	*s.log = append(*s.log, s.name)
	return nil
}

// failingStep always returns an error.
type failingStep struct {
	name string
}

func (s *failingStep) Name() string { return s.name }
func (s *failingStep) Run(_ context.Context, _ *StepContext) error {
	return errors.New("intentional failure")
}

func TestPipeline_RunsInOrder(t *testing.T) {
	var log []string
	p := NewPipeline(
		&recordingStep{name: "a", log: &log},
		&recordingStep{name: "b", log: &log},
	)
	if err := p.Run(context.Background(), &StepContext{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(log) != 2 || log[0] != "a" || log[1] != "b" {
		t.Errorf("log = %v, want [a b]", log)
	}
}

func TestPipeline_StepError(t *testing.T) {
	p := NewPipeline(&failingStep{name: "bad-step"})

	err := p.Run(context.Background(), &StepContext{})
	if err == nil {
		t.Fatal("expected error")
	}

	var se *StepError
	if !errors.As(err, &se) {
		t.Fatalf("error is not *StepError: %T", err)
	}
	if se.StepName() != "bad-step" {
		t.Errorf("StepName = %q, want %q", se.StepName(), "bad-step")
	}
}

func TestPipeline_StopsOnFirstError(t *testing.T) {
	var log []string
	p := NewPipeline(
		&recordingStep{name: "first", log: &log},
		&failingStep{name: "fail-step"},
		&recordingStep{name: "never", log: &log},
	)

	if err := p.Run(context.Background(), &StepContext{}); err == nil {
		t.Fatal("expected error from failing step")
	}
	if len(log) != 1 {
		t.Errorf("ran %v, want only [first]", log)
	}
}

func TestPipeline_CancelledContext(t *testing.T) {
	var log []string
	p := NewPipeline(&recordingStep{name: "a", log: &log})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Run(ctx, &StepContext{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(log) != 0 {
		t.Errorf("steps ran after cancel: %v", log)
	}
}

func TestStepError_Info(t *testing.T) {
	p := NewPipeline(&failingStep{name: "send"})
	err := p.Run(context.Background(), &StepContext{})

	var se *StepError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StepError, got %T", err)
	}
	info := se.Info(time.Date(2026, 1, 1, 8, 0, 0, 0, time.FixedZone("X", 3600)))
	if info.FailedStep != "send" {
		t.Errorf("FailedStep = %q, want send", info.FailedStep)
	}
	if info.Message != "intentional failure" {
		t.Errorf("Message = %q", info.Message)
	}
	if info.FailedAt != "2026-01-01T07:00:00Z" {
		t.Errorf("FailedAt = %q, want UTC", info.FailedAt)
	}
}
