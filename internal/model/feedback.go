package model

// Level colours a feedback message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Feedback is the single status line shown to the submitter.
type Feedback struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
	TxURL   string `json:"txUrl,omitempty"`
}
