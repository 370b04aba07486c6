package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeReplyPayload(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantStatus Status
		wantMsg    string
	}{
		{"ok", `{"status":"ok"}`, StatusConfirmed, ""},
		{"duplicate", `{"status":"duplicate","message":"already in"}`, StatusDuplicate, "already in"},
		{"error with message", `{"status":"error","message":"bad virtue"}`, StatusRejected, "bad virtue"},
		{"error without message", `{"status":"error"}`, StatusRejected, "Unknown reply"},
		{"not json", `Submission stored`, StatusRejected, "Submission stored"},
		{"json string", `"ok"`, StatusRejected, "Unknown reply"},
		{"json array", `[1]`, StatusRejected, "Unknown reply"},
		{"json null", `null`, StatusRejected, "Unknown reply"},
		{"non-string status", `{"status":1,"message":"x"}`, StatusRejected, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DecodeReplyPayload(tt.data)
			assert.Equal(t, tt.wantStatus, p.Status())
			assert.Equal(t, tt.wantMsg, p.Message)
		})
	}
}

func TestReplyReferences(t *testing.T) {
	r := Reply{Tags: []Tag{{Name: TagAction, Value: ActionSubmitResult}, {Name: TagReference, Value: "tx123"}}}
	assert.True(t, r.References("tx123"))
	assert.False(t, r.References("tx999"))
	assert.False(t, Reply{}.References(""))

	assert.True(t, r.MatchesTags([]Tag{{Name: TagAction, Value: ActionSubmitResult}}))
	assert.False(t, r.MatchesTags([]Tag{{Name: TagAction, Value: ActionSubmit}}))
}

func TestErrorInfoToJSON(t *testing.T) {
	j := ErrorInfo{FailedStep: "send", Message: "timeout", FailedAt: "2026-01-01T00:00:00Z"}.ToJSON()
	assert.Contains(t, j, `"failed_step":"send"`)
}
