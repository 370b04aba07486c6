package confirm

import (
	"fmt"

	"github.com/yangwenmai/savanna/internal/model"
)

// WaitingFeedback is shown while the coordinator falls back to polling.
func WaitingFeedback(token string) model.Feedback {
	return model.Feedback{
		Level:   model.LevelWarning,
		Message: "Still waiting... checking for confirmation...",
		TxURL:   model.GatewayURL(token),
	}
}

// FeedbackFor renders the user-facing line for a terminal outcome.
func FeedbackFor(o Outcome, virtue string) model.Feedback {
	fb := model.Feedback{TxURL: model.GatewayURL(o.Token)}
	switch o.Status {
	case model.StatusConfirmed:
		fb.Level = model.LevelSuccess
		fb.Message = fmt.Sprintf("Submission stored under %q!", virtue)
	case model.StatusDuplicate:
		fb.Level = model.LevelError
		fb.Message = "Duplicate submission rejected."
	case model.StatusRejected:
		fb.Level = model.LevelError
		fb.Message = o.Message
		if fb.Message == "" {
			fb.Message = "Unknown reply"
		}
	case model.StatusUnconfirmed:
		fb.Level = model.LevelError
		fb.Message = "No confirmation received. Check transaction."
	default:
		fb.Level = model.LevelInfo
		fb.Message = "Submitting..."
	}
	return fb
}
