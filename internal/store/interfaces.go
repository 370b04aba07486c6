package store

import (
	"context"
	"time"

	"github.com/yangwenmai/savanna/internal/model"
)

// GalleryCache is the local, append-only copy of the gallery.
type GalleryCache interface {
	AppendSubmission(ctx context.Context, sub model.Submission) (bool, error)
	SaveSnapshot(ctx context.Context, subs []model.Submission) error
	LoadFresh(ctx context.Context, maxAge time.Duration) ([]model.Submission, bool, error)
	List(ctx context.Context) ([]model.Submission, error)
	ListByVirtue(ctx context.Context, virtue string) ([]model.Submission, error)
}

// SubmissionTracker follows submissions from send to a terminal status.
type SubmissionTracker interface {
	Enqueue(sub model.Submission) error
	ClaimNextPending(ctx context.Context) (*model.Submission, error)
	Notify(token string, fb model.Feedback) error
	Complete(token string, status model.Status, fb model.Feedback) error
	Get(token string) (Entry, error)
}
