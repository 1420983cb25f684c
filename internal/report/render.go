package report

import (
	"fmt"
	"strings"

	"github.com/pitchlab/podium/internal/judge"
)

// RenderFeedback formats a report's coaching output as markdown for the
// feedback artifact.
func RenderFeedback(rep *Report) string {
	var sb strings.Builder

	sb.WriteString("# Presentation Feedback\n\n")
	fmt.Fprintf(&sb, "Overall score: %.1f/100\n\n", rep.OverallScore)

	if len(rep.WeakSlides) > 0 {
		sb.WriteString("## Slides to revisit\n\n")
		for _, idx := range rep.WeakSlides {
			fmt.Fprintf(&sb, "- Slide %d\n", idx)
		}
		sb.WriteString("\n")
	}

	if len(rep.Improvements) > 0 {
		sb.WriteString("## Improvements\n\n")
		for _, imp := range rep.Improvements {
			fmt.Fprintf(&sb, "- %s\n", imp)
		}
		sb.WriteString("\n")
	}

	renderRole(&sb, "Investor questions", rep.Questions.Investor)
	renderRole(&sb, "Technical questions", rep.Questions.Tech)
	renderRole(&sb, "Product questions", rep.Questions.Product)

	if len(rep.Warnings) > 0 {
		sb.WriteString("## Notes\n\n")
		for _, w := range rep.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
	}

	return sb.String()
}

func renderRole(sb *strings.Builder, heading string, questions []judge.Question) {
	if len(questions) == 0 {
		return
	}
	fmt.Fprintf(sb, "## %s\n\n", heading)
	for _, q := range questions {
		if q.Slide != nil {
			fmt.Fprintf(sb, "- (slide %d) %s\n", *q.Slide, q.Text)
		} else {
			fmt.Fprintf(sb, "- %s\n", q.Text)
		}
	}
	sb.WriteString("\n")
}
