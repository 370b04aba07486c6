package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/yangwenmai/savanna/internal/confirm"
	"github.com/yangwenmai/savanna/internal/model"
)

// Confirmer resolves one sent submission.
type Confirmer interface {
	Confirm(ctx context.Context, token, virtue string, sub model.Submission) (confirm.Outcome, error)
}

// Claimer hands out pending submissions and records their terminal status.
type Claimer interface {
	ClaimNextPending(ctx context.Context) (*model.Submission, error)
	Complete(token string, status model.Status, fb model.Feedback) error
}

// Worker polls for pending submissions and confirms them, a bounded number
// at a time.
type Worker struct {
	claimer   Claimer
	confirmer Confirmer
	interval  time.Duration
	sem       *semaphore.Weighted
	wg        sync.WaitGroup
}

// New creates a new Worker. concurrency below 1 is treated as 1.
func New(claimer Claimer, confirmer Confirmer, interval time.Duration, concurrency int) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		claimer:   claimer,
		confirmer: confirmer,
		interval:  interval,
		sem:       semaphore.NewWeighted(int64(concurrency)),
	}
}

// Start begins the polling loop. It blocks until ctx is cancelled and every
// in-flight confirmation has returned.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("worker started", "interval", w.interval.String())
	defer func() {
		w.wg.Wait()
		slog.Info("worker stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		if err := w.sem.Acquire(ctx, 1); err != nil {
			return
		}

		sub, err := w.claimer.ClaimNextPending(ctx)
		if err != nil || sub == nil {
			w.sem.Release(1)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("worker claim error", "error", err)
			}
			w.sleep(ctx)
			continue
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer w.sem.Release(1)
			w.process(ctx, sub)
		}()
	}
}

func (w *Worker) process(ctx context.Context, sub *model.Submission) {
	token := sub.CorrelationToken
	slog.Info("confirming submission", "token", token, "asset_id", sub.AssetID)

	out, err := w.confirmer.Confirm(ctx, token, sub.Virtue, *sub)
	if err != nil {
		if ctx.Err() != nil {
			slog.Warn("confirmation interrupted", "token", token, "error", err)
			return
		}
		slog.Error("confirmation failed", "token", token, "error", err)
		out = confirm.Outcome{Token: token, Status: model.StatusRejected, Message: err.Error()}
	}

	if err := w.claimer.Complete(token, out.Status, confirm.FeedbackFor(out, sub.Virtue)); err != nil {
		slog.Error("failed to record outcome", "token", token, "status", out.Status, "error", err)
		return
	}
	slog.Info("submission is now terminal", "token", token, "status", out.Status)
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.interval):
	}
}
