package deck

import (
	"math"
	"sort"
	"strings"
)

const (
	// densityCharBudget is the character count treated as a "full" slide.
	densityCharBudget = 900.0
	// minLegibleFontPt flags slides with body text below this size.
	minLegibleFontPt = 18.0
	// minContrastRatio is the WCAG AA floor for normal text.
	minContrastRatio = 4.5
	// denseSlideScore marks a slide as overloaded.
	denseSlideScore = 0.7
	// styleSizeTolerancePt is how far a slide's minimum font may sit from
	// the deck average before the slide counts as a style outlier.
	styleSizeTolerancePt = 6.0
)

// SlideMetrics are the per-slide presentation-quality scores.
type SlideMetrics struct {
	Index         int      `json:"index"`
	HasText       bool     `json:"has_text"`
	Chars         int      `json:"chars"`
	TextAreaRatio float64  `json:"text_area_ratio"`
	DensityScore  float64  `json:"density_score"`
	MinFontPt     float64  `json:"min_font_pt,omitempty"`
	SmallFont     bool     `json:"small_font"`
	FontFamilies  []string `json:"font_families,omitempty"`
	// ContrastRatio is the worst text/background luminance ratio on the
	// slide; 21 is black-on-white, below 4.5 is an issue.
	ContrastRatio float64 `json:"contrast_ratio,omitempty"`
	ContrastIssue bool    `json:"contrast_issue"`
	StyleOutlier  bool    `json:"style_outlier"`
}

// Metrics aggregates slide scores across the deck. Slides without text are
// excluded from the density average but still appear per-slide, flagged.
type Metrics struct {
	PerSlide            []SlideMetrics `json:"per_slide"`
	TextDensityAvg      float64        `json:"text_density_avg"`
	DenseSlides         []int          `json:"dense_slides"`
	SmallFontSlides     []int          `json:"small_font_slides"`
	ContrastIssueSlides []int          `json:"contrast_issue_slides"`
	StyleOutlierSlides  []int          `json:"style_outlier_slides"`
	MajorityFont        string         `json:"majority_font,omitempty"`
	AvgFontPt           float64        `json:"avg_font_pt,omitempty"`
}

// ComputeMetrics scores every slide and the deck as a whole.
func ComputeMetrics(facts *Facts) *Metrics {
	perSlide := make([]SlideMetrics, 0, len(facts.Slides))
	var deckFonts []string
	var deckSizes []float64

	for _, slide := range facts.Slides {
		sm := scoreSlide(slide, facts.SlideArea)
		for _, box := range slide.TextBoxes {
			for _, run := range box.Runs {
				if run.FontFamily != "" {
					deckFonts = append(deckFonts, run.FontFamily)
				}
				if run.FontPt > 0 {
					deckSizes = append(deckSizes, run.FontPt)
				}
			}
		}
		perSlide = append(perSlide, sm)
	}

	m := &Metrics{PerSlide: perSlide}

	var densitySum float64
	var withText int
	for _, sm := range perSlide {
		if sm.HasText {
			densitySum += sm.DensityScore
			withText++
		}
		if sm.DensityScore > denseSlideScore {
			m.DenseSlides = append(m.DenseSlides, sm.Index)
		}
		if sm.SmallFont {
			m.SmallFontSlides = append(m.SmallFontSlides, sm.Index)
		}
		if sm.ContrastIssue {
			m.ContrastIssueSlides = append(m.ContrastIssueSlides, sm.Index)
		}
	}
	if withText > 0 {
		m.TextDensityAvg = round3(densitySum / float64(withText))
	}

	m.MajorityFont = majority(deckFonts)
	if len(deckSizes) > 0 {
		var sum float64
		for _, s := range deckSizes {
			sum += s
		}
		m.AvgFontPt = math.Round(sum/float64(len(deckSizes))*10) / 10
	}

	// style consistency: a slide is an outlier when it never uses the
	// deck's majority font, or its smallest font strays far from the
	// deck average
	if m.MajorityFont != "" && m.AvgFontPt > 0 {
		for i := range perSlide {
			sm := &perSlide[i]
			if !sm.HasText {
				continue
			}
			usesMajority := false
			for _, f := range sm.FontFamilies {
				if f == m.MajorityFont {
					usesMajority = true
					break
				}
			}
			if !usesMajority || (sm.MinFontPt > 0 && math.Abs(sm.MinFontPt-m.AvgFontPt) >= styleSizeTolerancePt) {
				sm.StyleOutlier = true
				m.StyleOutlierSlides = append(m.StyleOutlierSlides, sm.Index)
			}
		}
	}

	return m
}

func scoreSlide(slide SlideFacts, slideArea int64) SlideMetrics {
	sm := SlideMetrics{Index: slide.Index, ContrastRatio: 21.0}

	bg := RGB{R: 255, G: 255, B: 255}
	if slide.BackgroundRGB != nil {
		bg = *slide.BackgroundRGB
	}

	var chars int
	var textArea int64
	fontSet := map[string]bool{}
	minFont := 0.0

	for _, box := range slide.TextBoxes {
		text := strings.TrimSpace(box.Text)
		if text == "" {
			continue
		}
		chars += len([]rune(box.Text))
		textArea += box.Area

		for _, run := range box.Runs {
			if run.FontPt > 0 && (minFont == 0 || run.FontPt < minFont) {
				minFont = run.FontPt
			}
			if run.FontFamily != "" {
				fontSet[run.FontFamily] = true
			}
			if run.ColorRGB != nil {
				ratio := ContrastRatio(*run.ColorRGB, bg)
				if ratio < sm.ContrastRatio {
					sm.ContrastRatio = ratio
				}
			}
		}
	}

	sm.HasText = chars > 0
	sm.Chars = chars
	if slideArea > 0 {
		sm.TextAreaRatio = round3(float64(textArea) / float64(slideArea))
	}

	// 70% character load, 30% covered area, both capped at 1
	charDensity := math.Min(1.0, float64(chars)/densityCharBudget)
	sm.DensityScore = round3(0.7*charDensity + 0.3*math.Min(1.0, sm.TextAreaRatio*3.0))

	sm.MinFontPt = minFont
	sm.SmallFont = minFont > 0 && minFont < minLegibleFontPt
	sm.ContrastIssue = sm.HasText && sm.ContrastRatio < minContrastRatio

	if !sm.HasText {
		sm.ContrastRatio = 0
	}

	for f := range fontSet {
		sm.FontFamilies = append(sm.FontFamilies, f)
	}
	sort.Strings(sm.FontFamilies)

	return sm
}

func majority(items []string) string {
	if len(items) == 0 {
		return ""
	}
	counts := map[string]int{}
	for _, it := range items {
		counts[it]++
	}
	best := ""
	for it, c := range counts {
		if c > counts[best] || (c == counts[best] && (best == "" || it < best)) {
			best = it
		}
	}
	return best
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
