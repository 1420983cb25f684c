// Package script compares a rehearsal script against the speech actually
// delivered per slide. Similarity is a deterministic token-overlap score;
// it is symmetric, so swapping script and speech gives the same number.
package script

import (
	"regexp"
	"strings"

	"github.com/pitchlab/podium/internal/align"
)

// Comparison is the per-slide outcome: whether a script section exists for
// the slide, and how closely the delivered speech tracked it.
type Comparison struct {
	SlideIndex int     `json:"slide_index"`
	Supplied   bool    `json:"supplied"`
	Section    string  `json:"section,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

var (
	headingRe = regexp.MustCompile(`(?mi)^#{1,6}\s*slide\s+(\d+)\s*$`)
	tokenRe   = regexp.MustCompile(`[\w'-]+`)
)

// Compare scores each aligned slice against its script section. Sections
// come from "## Slide N" headings when the script uses them, otherwise
// blank-line paragraphs are assigned to slides in order. Slides without a
// section are reported with Supplied=false and no score.
func Compare(scriptText string, slices []align.Slice) []Comparison {
	sections := splitSections(scriptText, slices)

	comparisons := make([]Comparison, len(slices))
	for i, slice := range slices {
		c := Comparison{SlideIndex: slice.SlideIndex}
		if section, ok := sections[slice.SlideIndex]; ok {
			c.Supplied = true
			c.Section = section
			c.Similarity = Similarity(section, slice.Text)
		}
		comparisons[i] = c
	}
	return comparisons
}

// splitSections maps slide index to script section text.
func splitSections(scriptText string, slices []align.Slice) map[int]string {
	sections := map[int]string{}
	text := strings.TrimSpace(scriptText)
	if text == "" {
		return sections
	}

	matches := headingRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) > 0 {
		for i, m := range matches {
			idx := 0
			for _, ch := range text[m[2]:m[3]] {
				idx = idx*10 + int(ch-'0')
			}
			bodyStart := m[1]
			bodyEnd := len(text)
			if i+1 < len(matches) {
				bodyEnd = matches[i+1][0]
			}
			body := strings.TrimSpace(text[bodyStart:bodyEnd])
			if body != "" {
				sections[idx] = body
			}
		}
		return sections
	}

	// no headings: paragraphs map to slides in order
	var paragraphs []string
	for _, p := range regexp.MustCompile(`\n\s*\n`).Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	for i, slice := range slices {
		if i >= len(paragraphs) {
			break
		}
		sections[slice.SlideIndex] = paragraphs[i]
	}
	return sections
}

// Similarity is the Jaccard overlap of the two texts' token sets, in
// [0, 1]. Two empty texts count as identical.
func Similarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		set[tok] = true
	}
	return set
}
