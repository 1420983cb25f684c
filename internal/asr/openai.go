package asr

import (
	"context"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAITranscriber uses Whisper via the OpenAI API. The verbose JSON
// response format gives per-segment timestamps, which the aligner needs for
// exact-mode alignment.
type OpenAITranscriber struct {
	client *openai.Client
	model  string
}

func NewOpenAITranscriber(apiKey string) *OpenAITranscriber {
	return &OpenAITranscriber{
		client: openai.NewClient(apiKey),
		model:  openai.Whisper1,
	}
}

// ModelName reports which model produced the transcript, for the report's
// provenance block.
func (t *OpenAITranscriber) ModelName() string { return t.model }

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string, langHint string) ([]Segment, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
		Language: langHint,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, &TranscriptionError{Err: err}
	}

	if len(resp.Segments) == 0 {
		log.Printf("[ASR] provider returned no segments, falling back to plain text")
		if resp.Text == "" {
			return nil, nil
		}
		return []Segment{{Text: resp.Text}}, nil
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		start := int64(s.Start * 1000)
		end := int64(s.End * 1000)
		segments = append(segments, Segment{Text: s.Text, StartMS: &start, EndMS: &end})
	}
	return segments, nil
}
