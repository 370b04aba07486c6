package store

import (
	"context"
	"sync"
	"time"

	"github.com/yangwenmai/savanna/internal/model"
)

var _ SubmissionTracker = (*Tracker)(nil)

// Entry is the tracked state of one submission.
type Entry struct {
	Submission model.Submission `json:"submission"`
	Status     model.Status     `json:"status"`
	Feedback   model.Feedback   `json:"feedback"`
	Claimed    bool             `json:"-"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// Tracker holds submission lifecycles in memory for the life of the process.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*Entry
	queue   []string
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// Enqueue starts tracking a pending submission.
func (t *Tracker) Enqueue(sub model.Submission) error {
	if sub.CorrelationToken == "" {
		return model.ErrInvalidToken
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[sub.CorrelationToken]; ok {
		return nil
	}
	sub.Status = model.StatusPending
	t.entries[sub.CorrelationToken] = &Entry{
		Submission: sub,
		Status:     model.StatusPending,
		Feedback:   model.Feedback{Level: model.LevelInfo, Message: "Submitting...", TxURL: model.GatewayURL(sub.CorrelationToken)},
		UpdatedAt:  t.now(),
	}
	t.queue = append(t.queue, sub.CorrelationToken)
	return nil
}

// ClaimNextPending pops the oldest unclaimed submission.
// Returns nil if nothing is waiting.
func (t *Tracker) ClaimNextPending(ctx context.Context) (*model.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	for len(t.queue) > 0 {
		token := t.queue[0]
		t.queue = t.queue[1:]
		e, ok := t.entries[token]
		if !ok || e.Claimed || e.Status.IsTerminal() {
			continue
		}
		e.Claimed = true
		e.UpdatedAt = t.now()
		sub := e.Submission
		return &sub, nil
	}
	return nil, nil
}

// Notify records progress feedback for a submission that is still pending.
func (t *Tracker) Notify(token string, fb model.Feedback) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[token]
	if !ok {
		return model.ErrSubmissionNotFound
	}
	if e.Status.IsTerminal() {
		return model.ErrAlreadyTerminal
	}
	e.Feedback = fb
	e.UpdatedAt = t.now()
	return nil
}

// Complete moves a submission to its terminal status. Only the first call
// for a token takes effect.
func (t *Tracker) Complete(token string, status model.Status, fb model.Feedback) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[token]
	if !ok {
		return model.ErrSubmissionNotFound
	}
	if e.Status.IsTerminal() {
		return model.ErrAlreadyTerminal
	}
	e.Status = status
	e.Submission.Status = status
	e.Feedback = fb
	e.UpdatedAt = t.now()
	return nil
}

// Get returns a copy of the tracked entry.
func (t *Tracker) Get(token string) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[token]
	if !ok {
		return Entry{}, model.ErrSubmissionNotFound
	}
	return *e, nil
}

// Pending returns how many submissions are still waiting to be claimed.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}
