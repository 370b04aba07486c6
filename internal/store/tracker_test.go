package store

import (
	"context"
	"errors"
	"testing"

	"github.com/yangwenmai/savanna/internal/model"
)

func TestTracker_Lifecycle(t *testing.T) {
	tr := NewTracker()
	ctx := context.Background()

	if err := tr.Enqueue(model.Submission{AssetID: "a"}); !errors.Is(err, model.ErrInvalidToken) {
		t.Fatalf("Enqueue without token err = %v, want ErrInvalidToken", err)
	}

	if err := tr.Enqueue(makeSubmission("a", "tok-1", "Courage")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	e, err := tr.Get("tok-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.Status != model.StatusPending {
		t.Errorf("Status = %q, want pending", e.Status)
	}

	sub, err := tr.ClaimNextPending(ctx)
	if err != nil || sub == nil {
		t.Fatalf("ClaimNextPending = (%v, %v)", sub, err)
	}
	if sub.CorrelationToken != "tok-1" {
		t.Errorf("claimed %q, want tok-1", sub.CorrelationToken)
	}
	if next, _ := tr.ClaimNextPending(ctx); next != nil {
		t.Errorf("second claim = %v, want nil", next)
	}

	waiting := model.Feedback{Level: model.LevelWarning, Message: "Still waiting..."}
	if err := tr.Notify("tok-1", waiting); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	done := model.Feedback{Level: model.LevelSuccess, Message: "stored"}
	if err := tr.Complete("tok-1", model.StatusConfirmed, done); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := tr.Complete("tok-1", model.StatusRejected, model.Feedback{}); !errors.Is(err, model.ErrAlreadyTerminal) {
		t.Errorf("second Complete err = %v, want ErrAlreadyTerminal", err)
	}
	if err := tr.Notify("tok-1", waiting); !errors.Is(err, model.ErrAlreadyTerminal) {
		t.Errorf("Notify after terminal err = %v, want ErrAlreadyTerminal", err)
	}

	e, _ = tr.Get("tok-1")
	if e.Status != model.StatusConfirmed || e.Feedback.Message != "stored" {
		t.Errorf("entry = %+v, want confirmed/stored", e)
	}
	if e.Submission.Status != model.StatusConfirmed {
		t.Errorf("submission status = %q, want confirmed", e.Submission.Status)
	}
}

func TestTracker_EnqueueTwiceQueuesOnce(t *testing.T) {
	tr := NewTracker()
	sub := makeSubmission("a", "tok-1", "Courage")
	_ = tr.Enqueue(sub)
	_ = tr.Enqueue(sub)
	if n := tr.Pending(); n != 1 {
		t.Errorf("Pending = %d, want 1", n)
	}
}

func TestTracker_UnknownToken(t *testing.T) {
	tr := NewTracker()
	if _, err := tr.Get("nope"); !errors.Is(err, model.ErrSubmissionNotFound) {
		t.Errorf("Get err = %v, want ErrSubmissionNotFound", err)
	}
	if err := tr.Complete("nope", model.StatusConfirmed, model.Feedback{}); !errors.Is(err, model.ErrSubmissionNotFound) {
		t.Errorf("Complete err = %v, want ErrSubmissionNotFound", err)
	}
}

func TestTracker_ClaimHonoursContext(t *testing.T) {
	tr := NewTracker()
	_ = tr.Enqueue(makeSubmission("a", "tok-1", "Courage"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.ClaimNextPending(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("ClaimNextPending err = %v, want context.Canceled", err)
	}
}
