// Package report merges every analysis output into one document keyed by
// slide index. Assembly is strict: a slide present in the deck but missing
// a required component output fails the run instead of shipping a partial
// report under a success status.
package report

import (
	"fmt"
	"math"
	"time"

	"github.com/pitchlab/podium/internal/align"
	"github.com/pitchlab/podium/internal/deck"
	"github.com/pitchlab/podium/internal/judge"
	"github.com/pitchlab/podium/internal/script"
	"github.com/pitchlab/podium/internal/speech"
)

// weakSimilarity is the judgment score below which a slide counts as weak.
const weakSimilarity = 0.5

// IncompleteInputError names the slide and component that assembly was
// missing.
type IncompleteInputError struct {
	SlideIndex int
	Missing    string
}

func (e *IncompleteInputError) Error() string {
	return fmt.Sprintf("incomplete input for slide %d: missing %s", e.SlideIndex, e.Missing)
}

// SlideReport is everything known about one slide.
type SlideReport struct {
	Index         int                  `json:"index"`
	Title         string               `json:"title"`
	Transcript    string               `json:"transcript"`
	DurationMS    int64                `json:"duration_ms"`
	Judgment      *judge.SlideJudgment `json:"judgment"`
	JudgmentNote  string               `json:"judgment_note,omitempty"`
	Speech        speech.Metrics       `json:"speech"`
	Presentation  deck.SlideMetrics    `json:"presentation"`
	ScriptSection *script.Comparison   `json:"script,omitempty"`
}

// Alignment records how transcript slices were obtained.
type Alignment struct {
	Mode     align.Mode `json:"mode"`
	Degraded bool       `json:"degraded"`
	Adjusted bool       `json:"adjusted"`
}

// Report is the immutable result of one completed analysis run.
type Report struct {
	SessionID    string            `json:"session_id"`
	GeneratedAt  time.Time         `json:"generated_at"`
	Models       map[string]string `json:"models,omitempty"`
	OverallScore float64           `json:"overall_score"`
	Alignment    Alignment         `json:"alignment"`
	Delivery     struct {
		SlideSpeechSimilarityAvg float64 `json:"slide_speech_similarity_avg"`
	} `json:"delivery"`
	Slides              []SlideReport     `json:"slides"`
	PresentationQuality *deck.Metrics     `json:"presentation_quality"`
	SpeechQuality       *speech.Result    `json:"speech_quality"`
	ScriptPresent       bool              `json:"script_present"`
	Questions           judge.QuestionSet `json:"questions"`
	Improvements        []string          `json:"improvements"`
	WeakSlides          []int             `json:"weak_slides"`
	Warnings            []string          `json:"warnings,omitempty"`
}

// Input gathers the component outputs feeding one report.
type Input struct {
	SessionID   string
	Models      map[string]string
	Content     []deck.SlideContent
	DeckMetrics *deck.Metrics
	AlignResult *align.Result
	Speech      *speech.Result
	Script      []script.Comparison
	Judgments   []judge.SlideJudgment
	// JudgmentNotes explains, per slide index, why a judgment is missing.
	JudgmentNotes map[int]string
	Feedback      *judge.Feedback
}

// Assemble builds the report, failing fast when a deck slide lacks an
// aligned slice, speech metrics, or presentation metrics. Missing judgments
// are recorded inline with a note and never fail assembly.
func Assemble(in Input) (*Report, error) {
	if in.DeckMetrics == nil {
		return nil, fmt.Errorf("deck metrics missing")
	}
	if in.AlignResult == nil {
		return nil, fmt.Errorf("alignment result missing")
	}
	if in.Speech == nil {
		return nil, fmt.Errorf("speech result missing")
	}

	sliceByIndex := map[int]align.Slice{}
	for _, s := range in.AlignResult.Slices {
		sliceByIndex[s.SlideIndex] = s
	}
	speechByIndex := map[int]speech.Metrics{}
	for _, m := range in.Speech.PerSlide {
		speechByIndex[m.SlideIndex] = m
	}
	presentationByIndex := map[int]deck.SlideMetrics{}
	for _, m := range in.DeckMetrics.PerSlide {
		presentationByIndex[m.Index] = m
	}
	judgmentByIndex := map[int]judge.SlideJudgment{}
	for _, j := range in.Judgments {
		judgmentByIndex[j.SlideIndex] = j
	}
	scriptByIndex := map[int]script.Comparison{}
	for _, c := range in.Script {
		scriptByIndex[c.SlideIndex] = c
	}

	rep := &Report{
		SessionID:   in.SessionID,
		GeneratedAt: time.Now(),
		Models:      in.Models,
		Alignment: Alignment{
			Mode:     in.AlignResult.Mode,
			Degraded: in.AlignResult.Degraded,
			Adjusted: in.AlignResult.Adjusted,
		},
		PresentationQuality: in.DeckMetrics,
		SpeechQuality:       in.Speech,
		ScriptPresent:       len(in.Script) > 0,
	}

	var simSum float64
	var simCount int
	weak := map[int]bool{}

	for _, content := range in.Content {
		idx := content.Index

		slice, ok := sliceByIndex[idx]
		if !ok {
			return nil, &IncompleteInputError{SlideIndex: idx, Missing: "aligned slice"}
		}
		speechM, ok := speechByIndex[idx]
		if !ok {
			return nil, &IncompleteInputError{SlideIndex: idx, Missing: "speech metrics"}
		}
		presM, ok := presentationByIndex[idx]
		if !ok {
			return nil, &IncompleteInputError{SlideIndex: idx, Missing: "presentation metrics"}
		}

		sr := SlideReport{
			Index:        idx,
			Title:        content.Title,
			Transcript:   slice.Text,
			DurationMS:   slice.DurationMS,
			Speech:       speechM,
			Presentation: presM,
		}

		if j, ok := judgmentByIndex[idx]; ok {
			jc := j
			sr.Judgment = &jc
			simSum += j.Similarity
			simCount++
			if j.Similarity < weakSimilarity {
				weak[idx] = true
			}
		} else {
			note := in.JudgmentNotes[idx]
			if note == "" {
				note = "judgment unavailable"
			}
			sr.JudgmentNote = note
		}

		if c, ok := scriptByIndex[idx]; ok {
			cc := c
			sr.ScriptSection = &cc
		}

		rep.Slides = append(rep.Slides, sr)
	}

	var simAvg float64
	if simCount > 0 {
		simAvg = round3(simSum / float64(simCount))
	}
	rep.Delivery.SlideSpeechSimilarityAvg = simAvg
	rep.OverallScore = math.Round(simAvg*1000) / 10

	for _, idx := range in.DeckMetrics.DenseSlides {
		weak[idx] = true
	}
	for _, idx := range in.DeckMetrics.SmallFontSlides {
		weak[idx] = true
	}
	rep.WeakSlides = sortedKeys(weak)

	if in.Feedback != nil {
		rep.Improvements = in.Feedback.Improvements
		rep.Questions = in.Feedback.Questions
	}

	if in.AlignResult.Degraded {
		rep.Warnings = append(rep.Warnings, "alignment degraded: transcript split proportionally without timestamps")
	}
	if in.AlignResult.Adjusted {
		rep.Warnings = append(rep.Warnings, "transcript exceeded recording bounds; trailing words clamped to final slide")
	}
	if !in.Speech.Available {
		rep.Warnings = append(rep.Warnings, "waveform unavailable: pause and pitch metrics not computed")
	}

	return rep, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func sortedKeys(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	return keys
}
