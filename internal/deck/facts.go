// Package deck computes presentation-quality heuristics from extracted
// slide facts. Facts arrive as deck.json produced by an external extractor;
// slide imagery itself is never analyzed here.
package deck

import (
	"encoding/json"
	"fmt"
	"strings"
)

type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// TextRun is one styled run of text inside a text box.
type TextRun struct {
	Text       string  `json:"text"`
	FontPt     float64 `json:"font_pt,omitempty"`
	FontFamily string  `json:"font_family,omitempty"`
	ColorRGB   *RGB    `json:"color_rgb,omitempty"`
}

type TextBox struct {
	Text string    `json:"text"`
	Area int64     `json:"area"`
	Runs []TextRun `json:"runs,omitempty"`
}

type SlideFacts struct {
	Index         int       `json:"index"`
	Title         string    `json:"title"`
	Notes         string    `json:"notes,omitempty"`
	BackgroundRGB *RGB      `json:"background_rgb,omitempty"`
	TextBoxes     []TextBox `json:"text_boxes"`
}

type Facts struct {
	SlideArea int64        `json:"slide_area"`
	Slides    []SlideFacts `json:"slides"`
}

// ParseFacts decodes deck.json. A deck with zero slides is the caller's
// problem to reject; parsing only guards against malformed input.
func ParseFacts(data []byte) (*Facts, error) {
	var facts Facts
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, fmt.Errorf("failed to parse deck facts: %w", err)
	}
	return &facts, nil
}

// SlideContent is the judge-facing view of a slide: what it claims to say.
type SlideContent struct {
	Index   int      `json:"index"`
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
	Notes   string   `json:"notes,omitempty"`
}

// Content extracts the textual content per slide for semantic judging.
func Content(facts *Facts) []SlideContent {
	content := make([]SlideContent, 0, len(facts.Slides))
	for _, slide := range facts.Slides {
		title := slide.Title
		if title == "" {
			title = fmt.Sprintf("Slide %d", slide.Index)
		}
		var bullets []string
		for _, box := range slide.TextBoxes {
			if t := strings.TrimSpace(box.Text); t != "" {
				bullets = append(bullets, t)
			}
		}
		content = append(content, SlideContent{
			Index:   slide.Index,
			Title:   title,
			Bullets: bullets,
			Notes:   strings.TrimSpace(slide.Notes),
		})
	}
	return content
}
