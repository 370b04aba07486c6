package model

import "encoding/json"

// Tag names used on process messages.
const (
	TagAction    = "Action"
	TagReference = "X-Reference"

	ActionSubmit       = "submit"
	ActionSubmitResult = "submit_result"
	ActionPatchState   = "~patch@1.0"
)

// Tag is a name/value pair attached to a ledger message.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Reply is a message emitted by the remote process.
type Reply struct {
	ID   string `json:"Id,omitempty"`
	Tags []Tag  `json:"Tags"`
	Data string `json:"Data"`
}

// TagValue returns the value of the first tag called name.
func (r Reply) TagValue(name string) (string, bool) {
	for _, t := range r.Tags {
		if t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// References reports whether the reply acknowledges the given token.
func (r Reply) References(token string) bool {
	ref, ok := r.TagValue(TagReference)
	return ok && ref == token
}

// MatchesTags reports whether every tag in filter is present on the reply.
func (r Reply) MatchesTags(filter []Tag) bool {
	for _, f := range filter {
		v, ok := r.TagValue(f.Name)
		if !ok || v != f.Value {
			return false
		}
	}
	return true
}

// ReplyKind discriminates decoded reply payloads.
type ReplyKind int

const (
	ReplyRejected ReplyKind = iota
	ReplyOK
	ReplyDuplicate
)

// ReplyPayload is the decoded body of a submission result.
type ReplyPayload struct {
	Kind    ReplyKind
	Message string
}

// DecodeReplyPayload parses a reply body. Bodies that are not JSON are kept
// verbatim as the rejection message; JSON that is not an object carries no
// status and reads as an unknown reply.
func DecodeReplyPayload(data string) ReplyPayload {
	var decoded any
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		return ReplyPayload{Kind: ReplyRejected, Message: data}
	}
	body, _ := decoded.(map[string]any)
	status, _ := body["status"].(string)
	msg, _ := body["message"].(string)

	switch status {
	case "ok":
		return ReplyPayload{Kind: ReplyOK, Message: msg}
	case "duplicate":
		return ReplyPayload{Kind: ReplyDuplicate, Message: msg}
	}
	if msg == "" {
		msg = "Unknown reply"
	}
	return ReplyPayload{Kind: ReplyRejected, Message: msg}
}

// Status maps the payload onto a terminal submission status.
func (p ReplyPayload) Status() Status {
	switch p.Kind {
	case ReplyOK:
		return StatusConfirmed
	case ReplyDuplicate:
		return StatusDuplicate
	default:
		return StatusRejected
	}
}
