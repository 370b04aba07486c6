package submission

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/yangwenmai/savanna/internal/model"
)

// Enqueuer starts tracking a sent submission.
type Enqueuer interface {
	Enqueue(sub model.Submission) error
}

// Service validates, enriches and sends submissions, then hands them to the
// confirmation worker through the tracker.
type Service struct {
	pipeline *Pipeline
	tracker  Enqueuer
	now      func() time.Time
}

// NewService wires the standard pipeline.
func NewService(w SessionSource, meta MetadataResolver, sender Sender, processID string, tracker Enqueuer) *Service {
	return &Service{
		pipeline: NewPipeline(
			&SessionStep{Wallet: w},
			&ValidateStep{},
			&MetadataStep{Resolver: meta},
			&BuildStep{},
			&SendStep{Sender: sender, ProcessID: processID},
		),
		tracker: tracker,
		now:     time.Now,
	}
}

// Submit sends a submission and returns its pending record. The record's
// CorrelationToken identifies it from then on.
func (s *Service) Submit(ctx context.Context, assetURL, virtue string) (*model.Submission, error) {
	sc := &StepContext{AssetURL: assetURL, Virtue: virtue, Now: s.now()}
	if err := s.pipeline.Run(ctx, sc); err != nil {
		var se *StepError
		if errors.As(err, &se) {
			slog.Warn("submission failed", "asset_url", assetURL, "error_info", se.Info(s.now()).ToJSON())
		} else {
			slog.Warn("submission failed", "asset_url", assetURL, "error", err)
		}
		return nil, err
	}

	if err := s.tracker.Enqueue(sc.Record); err != nil {
		return nil, err
	}
	slog.Info("submission sent",
		"asset_id", sc.AssetID,
		"virtue", sc.Virtue,
		"token", sc.Token,
	)
	rec := sc.Record
	return &rec, nil
}
