package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yangwenmai/savanna/internal/arweave"
	"github.com/yangwenmai/savanna/internal/model"
)

// Default unit endpoints.
const (
	DefaultMUURL = "https://mu.ao-testnet.xyz"
	DefaultCUURL = "https://cu.ao-testnet.xyz"
	DefaultSUURL = "https://su44.ao-testnet.xyz"

	maxBodySize = 5 * 1024 * 1024
)

// HTTPTransport talks to the messenger, compute and scheduler units over HTTP
// and lists replies through the gateway.
type HTTPTransport struct {
	processID  string
	muURL      string
	cuURL      string
	suURL      string
	gateway    *arweave.Client
	httpClient *http.Client
}

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTPTransport)

// WithMU overrides the messenger unit endpoint.
func WithMU(u string) HTTPOption {
	return func(t *HTTPTransport) { t.muURL = strings.TrimRight(u, "/") }
}

// WithCU overrides the compute unit endpoint.
func WithCU(u string) HTTPOption {
	return func(t *HTTPTransport) { t.cuURL = strings.TrimRight(u, "/") }
}

// WithSU overrides the scheduler unit endpoint.
func WithSU(u string) HTTPOption {
	return func(t *HTTPTransport) { t.suURL = strings.TrimRight(u, "/") }
}

// WithGateway sets the gateway used to list replies.
func WithGateway(gw *arweave.Client) HTTPOption {
	return func(t *HTTPTransport) { t.gateway = gw }
}

// WithHTTPTimeout sets the per-request timeout for unit calls.
func WithHTTPTimeout(d time.Duration) HTTPOption {
	return func(t *HTTPTransport) { t.httpClient.Timeout = d }
}

// NewHTTPTransport creates a transport bound to processID.
func NewHTTPTransport(processID string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		processID: processID,
		muURL:     DefaultMUURL,
		cuURL:     DefaultCUURL,
		suURL:     DefaultSUURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.gateway == nil {
		t.gateway = arweave.NewClient()
	}
	return t
}

// Send signs msg and posts it to the messenger unit, or hands it to the
// signer when a dispatched send is requested.
func (t *HTTPTransport) Send(ctx context.Context, msg Message, signer Signer) (string, error) {
	if signer == nil {
		return "", model.ErrWalletNotConnected
	}
	item := DataItem{
		Target: orDefault(msg.Target, t.processID),
		Anchor: NewAnchor(),
		Tags:   withProtocolTags(msg.Tags),
		Data:   msg.Data,
	}

	if msg.Dispatch {
		d, ok := signer.(Dispatcher)
		if !ok {
			return "", ErrDispatchUnsupported
		}
		return d.Dispatch(ctx, item)
	}

	signed, err := signer.Sign(ctx, item)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}

	body, err := t.do(ctx, http.MethodPost, t.muURL+"/", "application/octet-stream", signed.Raw)
	if err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.ID != "" {
		return resp.ID, nil
	}
	return signed.ID, nil
}

type wireResult struct {
	Messages []struct {
		ID   string          `json:"Id"`
		Tags []model.Tag     `json:"Tags"`
		Data json.RawMessage `json:"Data"`
	} `json:"Messages"`
	Output any    `json:"Output"`
	Error  string `json:"Error"`
}

func (w wireResult) toResult() *Result {
	res := &Result{Output: w.Output, Error: w.Error}
	for _, m := range w.Messages {
		res.Messages = append(res.Messages, model.Reply{ID: m.ID, Tags: m.Tags, Data: dataString(m.Data)})
	}
	return res
}

// Result reads the computed result of the message identified by token.
func (t *HTTPTransport) Result(ctx context.Context, token string) (*Result, error) {
	u := fmt.Sprintf("%s/result/%s?process-id=%s", t.cuURL, url.PathEscape(token), url.QueryEscape(t.processID))
	body, err := t.do(ctx, http.MethodGet, u, "", nil)
	if err != nil {
		return nil, fmt.Errorf("result: %w", err)
	}
	var w wireResult
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return w.toResult(), nil
}

// ListMessages returns the most recent replies from the process that carry
// every tag in filter.
func (t *HTTPTransport) ListMessages(ctx context.Context, filter []model.Tag, limit int) ([]model.Reply, error) {
	tags := append([]model.Tag{{Name: "From-Process", Value: t.processID}}, filter...)
	txs, err := t.gateway.Transactions(ctx, tags, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	replies := make([]model.Reply, 0, len(txs))
	for _, tx := range txs {
		data, _, err := t.gateway.Data(ctx, tx.ID)
		if err != nil {
			slog.Warn("reply data unavailable", "message_id", tx.ID, "error", err)
			continue
		}
		replies = append(replies, model.Reply{ID: tx.ID, Tags: tx.Tags, Data: string(data)})
	}
	return replies, nil
}

type dryRunRequest struct {
	ID     string      `json:"Id"`
	Target string      `json:"Target"`
	Owner  string      `json:"Owner"`
	Anchor string      `json:"Anchor"`
	Data   string      `json:"Data"`
	Tags   []model.Tag `json:"Tags"`
}

// DryRun evaluates a read-only message against the process.
func (t *HTTPTransport) DryRun(ctx context.Context, tags []model.Tag) (*Result, error) {
	body, err := json.Marshal(dryRunRequest{
		ID:     "1234",
		Target: t.processID,
		Owner:  "1234",
		Anchor: "0",
		Data:   "1234",
		Tags:   withProtocolTags(tags),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal dry run: %w", err)
	}

	u := fmt.Sprintf("%s/dry-run?process-id=%s", t.cuURL, url.QueryEscape(t.processID))
	raw, err := t.do(ctx, http.MethodPost, u, "application/json", body)
	if err != nil {
		return nil, fmt.Errorf("dry run: %w", err)
	}
	var w wireResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("unmarshal dry run: %w", err)
	}
	return w.toResult(), nil
}

// State reads the process state from the scheduler's HTTP state endpoint.
func (t *HTTPTransport) State(ctx context.Context) ([]byte, error) {
	body, err := t.do(ctx, http.MethodGet, t.suURL+"/"+t.processID+"/state", "", nil)
	if err != nil {
		var ae *arweave.APIError
		if errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound {
			return nil, model.ErrStateUnavailable
		}
		return nil, fmt.Errorf("state: %w", err)
	}
	return body, nil
}

func (t *HTTPTransport) do(ctx context.Context, method, u, contentType string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &arweave.APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

func withProtocolTags(tags []model.Tag) []model.Tag {
	out := []model.Tag{
		{Name: "Data-Protocol", Value: "ao"},
		{Name: "Variant", Value: "ao.TN.1"},
		{Name: "Type", Value: "Message"},
	}
	return append(out, tags...)
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
