// Package submission turns a user's asset link into a sent submission message.
package submission

import (
	"context"
	"time"

	"github.com/yangwenmai/savanna/internal/model"
	"github.com/yangwenmai/savanna/internal/wallet"
)

// StepContext carries state between the steps of one submission.
type StepContext struct {
	AssetURL string
	Virtue   string
	Now      time.Time

	Session  *wallet.Session
	AssetID  string
	Metadata model.AssetMetadata
	Wire     model.WireSubmission
	Record   model.Submission
	Token    string
}

// Step is one stage of the submission pipeline.
type Step interface {
	Name() string
	Run(ctx context.Context, sc *StepContext) error
}

// Pipeline runs steps in order and stops at the first failure.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline from the given steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Run executes every step against sc.
// On failure it returns a *StepError naming the step.
func (p *Pipeline) Run(ctx context.Context, sc *StepContext) error {
	for _, s := range p.steps {
		if err := ctx.Err(); err != nil {
			return &StepError{Step: s.Name(), Err: err}
		}
		if err := s.Run(ctx, sc); err != nil {
			return &StepError{Step: s.Name(), Err: err}
		}
	}
	return nil
}

// StepError wraps an error with the step name that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepName returns the name of the failed step.
func (e *StepError) StepName() string {
	return e.Step
}

// Info describes the failure for clients and logs.
func (e *StepError) Info(at time.Time) model.ErrorInfo {
	return model.ErrorInfo{
		FailedStep: e.Step,
		Message:    e.Err.Error(),
		FailedAt:   at.UTC().Format(time.RFC3339),
	}
}
