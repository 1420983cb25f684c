// Package judge defines the semantic-judgment collaborator boundary. The
// engine treats judgment text as opaque; the reasoning lives on the other
// side of the API.
package judge

import (
	"context"

	"github.com/pitchlab/podium/internal/deck"
)

// SlideJudgment is the verdict for one slide: how well the delivered speech
// matched the slide's claims, with supporting evidence.
type SlideJudgment struct {
	SlideIndex         int      `json:"index"`
	Similarity         float64  `json:"similarity_0_1"`
	Judgment           string   `json:"judgement"`
	MissingPoints      []string `json:"missing_points,omitempty"`
	HallucinatedPoints []string `json:"hallucinated_points,omitempty"`
	Evidence           []string `json:"evidence,omitempty"`
}

// Question is a follow-up challenge question, optionally pinned to a slide.
type Question struct {
	Slide *int   `json:"slide"`
	Text  string `json:"q"`
}

// QuestionSet groups questions by the asking role.
type QuestionSet struct {
	Investor []Question `json:"investor"`
	Tech     []Question `json:"tech"`
	Product  []Question `json:"product"`
}

// Feedback is the deck-level coaching output.
type Feedback struct {
	Improvements []string    `json:"improvements"`
	Questions    QuestionSet `json:"questions"`
}

// FeedbackContext is what the judge sees when generating feedback.
type FeedbackContext struct {
	WeakSlides   []int           `json:"weak_slides"`
	DeckMetrics  *deck.Metrics   `json:"style_issues"`
	PerSlide     []SlideJudgment `json:"per_slide"`
	Audience     string          `json:"audience,omitempty"`
	Presentation string          `json:"presentation,omitempty"`
}

// Judge scores slides against their aligned transcript slices and generates
// deck-level feedback. A per-slide failure is recorded by omitting that
// slide from the returned judgments; it never fails the whole run.
type Judge interface {
	JudgeSlides(ctx context.Context, slides []deck.SlideContent, transcriptByIndex map[int]string) ([]SlideJudgment, error)
	GenerateFeedback(ctx context.Context, fc FeedbackContext) (*Feedback, error)
}
