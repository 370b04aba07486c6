// Package confirm resolves a sent submission message to a terminal status.
//
// A direct result lookup is raced against a deadline. When it produces no
// reply for the token, the coordinator polls recent submit_result replies a
// bounded number of times before giving up as unconfirmed. A confirmed
// submission is appended to the local gallery cache exactly once.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yangwenmai/savanna/internal/model"
	"github.com/yangwenmai/savanna/internal/transport"
)

// Transport is the part of the message transport the coordinator reads from.
type Transport interface {
	Result(ctx context.Context, token string) (*transport.Result, error)
	ListMessages(ctx context.Context, filter []model.Tag, limit int) ([]model.Reply, error)
}

// Cache receives confirmed submissions.
type Cache interface {
	AppendSubmission(ctx context.Context, sub model.Submission) (bool, error)
}

// Observer is told about progress before a terminal status is reached.
type Observer interface {
	Notify(token string, fb model.Feedback) error
}

// Source records which path produced the outcome.
type Source string

const (
	SourceDirect Source = "direct"
	SourcePoll   Source = "poll"
	SourceNone   Source = "none"
)

// Outcome is the result of confirming one submission.
type Outcome struct {
	Token    string       `json:"token"`
	Status   model.Status `json:"status"`
	Message  string       `json:"message,omitempty"`
	Source   Source       `json:"source"`
	Attempts int          `json:"attempts"`
	Appended bool         `json:"appended"`
}

// Options bounds the confirmation flow.
type Options struct {
	DirectTimeout time.Duration
	PollInterval  time.Duration
	PollAttempts  int
	PollLimit     int
}

// DefaultOptions returns the production timings: a 90s direct lookup, then
// six polls of the five newest replies, ten seconds apart.
func DefaultOptions() Options {
	return Options{
		DirectTimeout: 90 * time.Second,
		PollInterval:  10 * time.Second,
		PollAttempts:  6,
		PollLimit:     5,
	}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithObserver reports progress feedback to o.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// WithSleep replaces the pause between polls.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) { c.sleep = fn }
}

// Coordinator owns the lifecycle of sent submissions until they are terminal.
type Coordinator struct {
	transport Transport
	cache     Cache
	opts      Options
	observer  Observer
	sleep     func(ctx context.Context, d time.Duration) error

	inflight singleflight.Group
	mu       sync.Mutex
	resolved map[string]Outcome
	flights  map[string]*flight
}

// flight is the context of one shared run. It is cancelled once every
// caller waiting on it has returned.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// New creates a coordinator.
func New(t Transport, cache Cache, opts Options, fns ...Option) *Coordinator {
	c := &Coordinator{
		transport: t,
		cache:     cache,
		opts:      opts,
		sleep:     sleep,
		resolved:  make(map[string]Outcome),
		flights:   make(map[string]*flight),
	}
	for _, fn := range fns {
		fn(c)
	}
	return c
}

// Confirm drives token to a terminal status. Concurrent calls for the same
// token share one run, and a token that already resolved returns its
// recorded outcome without touching the transport or the cache again.
//
// The shared run keeps the values of the ctx that started it but not its
// cancellation or deadline: it stops only when every waiting caller has
// returned. If ctx ends first the outcome is still pending and ctx.Err() is
// returned, while other callers keep waiting on the same run.
func (c *Coordinator) Confirm(ctx context.Context, token, virtue string, sub model.Submission) (Outcome, error) {
	if token == "" {
		return Outcome{}, model.ErrInvalidToken
	}
	if sub.AssetID == "" {
		return Outcome{Token: token, Status: model.StatusPending}, model.ErrMissingAssetID
	}

	for {
		if out, ok := c.lookup(token); ok {
			return out, nil
		}
		out, err := c.wait(ctx, token, virtue, sub)
		// A run abandoned by its other callers ends cancelled; join a fresh one.
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			continue
		}
		return out, err
	}
}

func (c *Coordinator) wait(ctx context.Context, token, virtue string, sub model.Submission) (Outcome, error) {
	f := c.join(ctx, token)
	defer c.leave(token, f)

	ch := c.inflight.DoChan(token, func() (any, error) {
		if out, ok := c.lookup(token); ok {
			return out, nil
		}
		out, err := c.run(f.ctx, token, virtue, sub)
		if err == nil {
			c.mu.Lock()
			c.resolved[token] = out
			c.mu.Unlock()
		}
		return out, err
	})

	select {
	case r := <-ch:
		return r.Val.(Outcome), r.Err
	case <-ctx.Done():
		return Outcome{Token: token, Status: model.StatusPending, Source: SourceNone}, ctx.Err()
	}
}

func (c *Coordinator) join(ctx context.Context, token string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flights[token]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[token] = f
	}
	f.waiters++
	return f
}

func (c *Coordinator) leave(token string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[token] == f {
		delete(c.flights, token)
	}
}

// Resolved returns the recorded outcome for token, if any.
func (c *Coordinator) Resolved(token string) (Outcome, bool) {
	return c.lookup(token)
}

func (c *Coordinator) lookup(token string) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, ok := c.resolved[token]
	return out, ok
}

func (c *Coordinator) run(ctx context.Context, token, virtue string, sub model.Submission) (Outcome, error) {
	pending := Outcome{Token: token, Status: model.StatusPending, Source: SourceNone}

	if reply, ok := c.direct(ctx, token); ok {
		return c.resolve(ctx, token, virtue, sub, reply, SourceDirect, 0), nil
	}
	if err := ctx.Err(); err != nil {
		return pending, err
	}

	c.notify(token, WaitingFeedback(token))

	filter := []model.Tag{{Name: model.TagAction, Value: model.ActionSubmitResult}}
	for attempt := 1; attempt <= c.opts.PollAttempts; attempt++ {
		pending.Attempts = attempt

		replies, err := c.transport.ListMessages(ctx, filter, c.opts.PollLimit)
		if err != nil {
			slog.Warn("confirmation poll failed", "token", token, "attempt", attempt, "error", err)
		}
		for _, r := range replies {
			if r.References(token) {
				return c.resolve(ctx, token, virtue, sub, r, SourcePoll, attempt), nil
			}
		}

		if err := c.sleep(ctx, c.opts.PollInterval); err != nil {
			return pending, err
		}
	}

	slog.Warn("submission unconfirmed", "token", token, "attempts", c.opts.PollAttempts)
	out := Outcome{
		Token:    token,
		Status:   model.StatusUnconfirmed,
		Message:  "No confirmation received. Check transaction.",
		Source:   SourceNone,
		Attempts: c.opts.PollAttempts,
	}
	return out, nil
}

type directResult struct {
	res *transport.Result
	err error
}

// direct races the result lookup against the direct deadline. Only the first
// reply is considered, and only if it references token.
func (c *Coordinator) direct(ctx context.Context, token string) (model.Reply, bool) {
	dctx, cancel := context.WithTimeout(ctx, c.opts.DirectTimeout)
	defer cancel()

	ch := make(chan directResult, 1)
	go func() {
		res, err := c.transport.Result(dctx, token)
		ch <- directResult{res: res, err: err}
	}()

	var r directResult
	select {
	case r = <-ch:
	case <-dctx.Done():
		slog.Warn("direct result timed out", "token", token, "timeout", c.opts.DirectTimeout)
		return model.Reply{}, false
	}

	if r.err != nil {
		slog.Warn("direct result failed", "token", token, "error", r.err)
		return model.Reply{}, false
	}
	if r.res == nil || len(r.res.Messages) == 0 {
		return model.Reply{}, false
	}
	first := r.res.Messages[0]
	if !first.References(token) {
		ref, _ := first.TagValue(model.TagReference)
		slog.Debug("ignoring reply for another message", "token", token, "reference", ref)
		return model.Reply{}, false
	}
	return first, true
}

func (c *Coordinator) resolve(ctx context.Context, token, virtue string, sub model.Submission, reply model.Reply, src Source, attempts int) Outcome {
	payload := model.DecodeReplyPayload(reply.Data)
	out := Outcome{
		Token:    token,
		Status:   payload.Status(),
		Message:  payload.Message,
		Source:   src,
		Attempts: attempts,
	}

	if out.Status == model.StatusConfirmed {
		sub.CorrelationToken = token
		sub.Status = model.StatusConfirmed
		if sub.Virtue == "" {
			sub.Virtue = virtue
		}
		appended, err := c.cache.AppendSubmission(ctx, sub)
		if err != nil {
			slog.Error("append confirmed submission to cache", "token", token, "error", err)
		}
		out.Appended = appended
	}

	slog.Info("submission resolved",
		"token", token,
		"status", out.Status,
		"source", out.Source,
		"attempts", out.Attempts,
	)
	return out
}

func (c *Coordinator) notify(token string, fb model.Feedback) {
	if c.observer == nil {
		return
	}
	if err := c.observer.Notify(token, fb); err != nil {
		slog.Debug("progress notification dropped", "token", token, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// String renders the outcome for logs.
func (o Outcome) String() string {
	return fmt.Sprintf("%s via %s (%d polls)", o.Status, o.Source, o.Attempts)
}
