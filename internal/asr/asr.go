// Package asr defines the speech-to-text collaborator boundary. The engine
// consumes transcripts; it never implements recognition itself.
package asr

import (
	"context"
	"fmt"
)

// Segment is one transcribed unit with optional millisecond timestamps.
// Providers that return no timing produce a single unbounded segment.
type Segment struct {
	Text    string `json:"text"`
	StartMS *int64 `json:"start_ms,omitempty"`
	EndMS   *int64 `json:"end_ms,omitempty"`
}

// Transcriber turns a recording on disk into ordered transcript segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, langHint string) ([]Segment, error)
}

// TranscriptionError marks a provider failure so the pipeline can surface
// the right error kind instead of a generic internal error.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed: %v", e.Err)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// FullText joins segment texts in order.
func FullText(segments []Segment) string {
	var out string
	for i, s := range segments {
		if i > 0 && out != "" && s.Text != "" {
			out += " "
		}
		out += s.Text
	}
	return out
}
