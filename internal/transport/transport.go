// Package transport sends messages to the remote process and reads its replies.
package transport

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/yangwenmai/savanna/internal/model"
)

// ErrDispatchUnsupported is returned when a dispatched send was requested
// but the signer cannot dispatch on its own.
var ErrDispatchUnsupported = errors.New("signer does not support dispatch")

// Message is an outbound message addressed to a process.
type Message struct {
	Target   string
	Tags     []model.Tag
	Data     string
	Dispatch bool
}

// DataItem is the unsigned form of a message handed to a signer.
type DataItem struct {
	Target string      `json:"target"`
	Anchor string      `json:"anchor"`
	Tags   []model.Tag `json:"tags"`
	Data   string      `json:"data"`
}

// SignedItem is a data item ready to post to a messenger unit.
type SignedItem struct {
	ID  string
	Raw []byte
}

// Signer signs data items on behalf of a wallet.
type Signer interface {
	Address() string
	Sign(ctx context.Context, item DataItem) (SignedItem, error)
}

// Dispatcher is implemented by signers that can post the item themselves.
type Dispatcher interface {
	Dispatch(ctx context.Context, item DataItem) (string, error)
}

// Result is the computed outcome of a message.
type Result struct {
	Messages []model.Reply `json:"Messages"`
	Output   any           `json:"Output,omitempty"`
	Error    string        `json:"Error,omitempty"`
}

// Transport is the remote process as seen by this service.
type Transport interface {
	Send(ctx context.Context, msg Message, signer Signer) (string, error)
	Result(ctx context.Context, token string) (*Result, error)
	ListMessages(ctx context.Context, filter []model.Tag, limit int) ([]model.Reply, error)
	DryRun(ctx context.Context, tags []model.Tag) (*Result, error)
	State(ctx context.Context) ([]byte, error)
}

// NewAnchor returns a random 32-byte anchor, base64url encoded.
func NewAnchor() string {
	b := make([]byte, 32)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// ItemID derives a 43-character identifier from the item contents.
func ItemID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// dataString renders a Data member that may be a JSON string or any other value.
func dataString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
