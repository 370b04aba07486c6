package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/yangwenmai/savanna/internal/model"
)

// MemoryProcess is an in-process stand-in for the remote submission process.
// It accepts submissions, answers each with a submit_result reply and serves
// its state the way the real process does.
type MemoryProcess struct {
	mu          sync.Mutex
	processID   string
	submissions []model.WireSubmission
	replies     []model.Reply
	byToken     map[string]int

	resultDelay time.Duration
	hideResults bool
	noState     bool
	sendErr     error
}

// MemoryOption configures a MemoryProcess.
type MemoryOption func(*MemoryProcess)

// WithResultDelay delays direct result lookups.
func WithResultDelay(d time.Duration) MemoryOption {
	return func(p *MemoryProcess) { p.resultDelay = d }
}

// WithHiddenResults makes direct result lookups fail so replies are only
// visible through ListMessages.
func WithHiddenResults() MemoryOption {
	return func(p *MemoryProcess) { p.hideResults = true }
}

// WithoutState disables the state endpoint so readers fall back to dry runs.
func WithoutState() MemoryOption {
	return func(p *MemoryProcess) { p.noState = true }
}

// WithSendError makes every Send fail with err.
func WithSendError(err error) MemoryOption {
	return func(p *MemoryProcess) { p.sendErr = err }
}

// NewMemoryProcess creates an empty in-memory process.
func NewMemoryProcess(processID string, opts ...MemoryOption) *MemoryProcess {
	p := &MemoryProcess{
		processID: processID,
		byToken:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Send records a submission and queues its reply.
func (p *MemoryProcess) Send(ctx context.Context, msg Message, signer Signer) (string, error) {
	if signer == nil {
		return "", model.ErrWalletNotConnected
	}
	if p.sendErr != nil {
		return "", p.sendErr
	}
	item := DataItem{Target: orDefault(msg.Target, p.processID), Anchor: NewAnchor(), Tags: withProtocolTags(msg.Tags), Data: msg.Data}

	var token string
	if msg.Dispatch {
		d, ok := signer.(Dispatcher)
		if !ok {
			return "", ErrDispatchUnsupported
		}
		id, err := d.Dispatch(ctx, item)
		if err != nil {
			return "", err
		}
		token = id
	} else {
		signed, err := signer.Sign(ctx, item)
		if err != nil {
			return "", fmt.Errorf("sign: %w", err)
		}
		token = signed.ID
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.handle(token, signer.Address(), msg)
	return token, nil
}

func (p *MemoryProcess) handle(token, from string, msg Message) {
	action, _ := model.Reply{Tags: msg.Tags}.TagValue(model.TagAction)
	if action != model.ActionSubmit {
		return
	}

	var sub model.WireSubmission
	status, message := "ok", "Submission recorded"
	if err := json.Unmarshal([]byte(msg.Data), &sub); err != nil || sub.AssetID == "" {
		status, message = "error", "Missing AssetId"
	} else if p.hasAsset(sub.AssetID) {
		status, message = "duplicate", "Asset already submitted"
	} else {
		sub.Sender = from
		p.submissions = append(p.submissions, sub)
	}

	body, _ := json.Marshal(map[string]string{"status": status, "message": message})
	replyID := ItemID(append([]byte(token), body...))
	p.replies = append(p.replies, model.Reply{
		ID: replyID,
		Tags: []model.Tag{
			{Name: model.TagAction, Value: model.ActionSubmitResult},
			{Name: model.TagReference, Value: token},
		},
		Data: string(body),
	})
	p.byToken[token] = len(p.replies) - 1
}

func (p *MemoryProcess) hasAsset(id string) bool {
	for _, s := range p.submissions {
		if s.AssetID == id {
			return true
		}
	}
	return false
}

// Result returns the reply produced for token.
func (p *MemoryProcess) Result(ctx context.Context, token string) (*Result, error) {
	if p.resultDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.resultDelay):
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.byToken[token]
	if !ok || p.hideResults {
		return nil, fmt.Errorf("result %s: %w", token, model.ErrTransactionNotFound)
	}
	return &Result{Messages: []model.Reply{p.replies[idx]}}, nil
}

// ListMessages returns the newest replies matching filter.
func (p *MemoryProcess) ListMessages(_ context.Context, filter []model.Tag, limit int) ([]model.Reply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []model.Reply
	for i := len(p.replies) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if p.replies[i].MatchesTags(filter) {
			out = append(out, p.replies[i])
		}
	}
	return out, nil
}

// DryRun answers the state patch action with the current submissions.
func (p *MemoryProcess) DryRun(_ context.Context, tags []model.Tag) (*Result, error) {
	action, _ := model.Reply{Tags: tags}.TagValue(model.TagAction)
	if action != model.ActionPatchState {
		return &Result{}, nil
	}
	state, err := p.stateJSON()
	if err != nil {
		return nil, err
	}
	return &Result{Messages: []model.Reply{{Data: string(state)}}}, nil
}

// State returns the process state document.
func (p *MemoryProcess) State(_ context.Context) ([]byte, error) {
	if p.noState {
		return nil, model.ErrStateUnavailable
	}
	return p.stateJSON()
}

// Inject queues an arbitrary reply, as if the process had emitted it.
func (p *MemoryProcess) Inject(reply model.Reply) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, reply)
}

// Submissions returns a copy of the recorded submissions.
func (p *MemoryProcess) Submissions() []model.WireSubmission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.WireSubmission(nil), p.submissions...)
}

func (p *MemoryProcess) stateJSON() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs := p.submissions
	if subs == nil {
		subs = []model.WireSubmission{}
	}
	return json.Marshal(map[string]any{"submissions": subs})
}
