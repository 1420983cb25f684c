package pipeline

import "fmt"

// Kind classifies a pipeline failure so callers can map it to a response
// without parsing message text.
type Kind string

const (
	KindInvalidInput    Kind = "invalid_input"
	KindTranscription   Kind = "transcription"
	KindIncompleteInput Kind = "incomplete_input"
	KindCancelled       Kind = "cancelled"
	KindInternal        Kind = "internal"
)

// Error is the terminal failure of a task.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func failure(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
