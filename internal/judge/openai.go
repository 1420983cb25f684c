package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pitchlab/podium/internal/deck"
)

const (
	// judgeBatchSize bounds how many slides go into one completion call.
	judgeBatchSize = 3
	maxImprovement = 8
	maxPerRole     = 5
)

var slideNumRe = regexp.MustCompile(`(?i)slide\s*(\d+)`)

// OpenAIJudge scores slides with a chat model in strict-JSON mode.
type OpenAIJudge struct {
	client *openai.Client
	model  string
}

func NewOpenAIJudge(apiKey string) *OpenAIJudge {
	return &OpenAIJudge{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4oMini,
	}
}

// ModelName reports which model produced the judgments, for the report's
// provenance block.
func (j *OpenAIJudge) ModelName() string { return j.model }

// JudgeSlides runs batched judgment calls. A failed batch drops only its
// own slides from the result; the caller records those as missing.
func (j *OpenAIJudge) JudgeSlides(ctx context.Context, slides []deck.SlideContent, transcriptByIndex map[int]string) ([]SlideJudgment, error) {
	var results []SlideJudgment

	for start := 0; start < len(slides); start += judgeBatchSize {
		end := start + judgeBatchSize
		if end > len(slides) {
			end = len(slides)
		}
		batch := slides[start:end]

		judgments, err := j.judgeBatch(ctx, batch, transcriptByIndex)
		if err != nil {
			log.Printf("[JUDGE] batch %d-%d failed: %v", batch[0].Index, batch[len(batch)-1].Index, err)
			continue
		}
		results = append(results, judgments...)
	}

	return results, nil
}

func (j *OpenAIJudge) judgeBatch(ctx context.Context, batch []deck.SlideContent, transcriptByIndex map[int]string) ([]SlideJudgment, error) {
	var sb strings.Builder
	for _, slide := range batch {
		fmt.Fprintf(&sb, "[SLIDE %d] %s\n", slide.Index, slide.Title)
		for _, b := range slide.Bullets {
			fmt.Fprintf(&sb, "- %s\n", b)
		}
		if slide.Notes != "" {
			fmt.Fprintf(&sb, "Notes: %s\n", slide.Notes)
		}
		fmt.Fprintf(&sb, "[TRANSCRIPT_WINDOW]\n%s\n\n", transcriptByIndex[slide.Index])
	}
	sb.WriteString(`[INSTRUCTIONS]
For each slide return JSON with keys: index, similarity_0_1 (0..1), judgement (1-2 sentences), missing_points[], hallucinated_points[], evidence[].
Return {"per_slide":[...]} preserving input order by slide index.`)

	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       j.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You are a rigorous presentation reviewer. " +
					"Judge alignment between each slide's content and what the speaker says. " +
					"Output strictly valid JSON only.",
			},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("judge request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("judge returned no choices")
	}

	var parsed struct {
		PerSlide []SlideJudgment `json:"per_slide"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("judge returned invalid JSON: %w", err)
	}
	return parsed.PerSlide, nil
}

// GenerateFeedback asks for concrete improvements and role-based challenge
// questions over the whole run.
func (j *OpenAIJudge) GenerateFeedback(ctx context.Context, fc FeedbackContext) (*Feedback, error) {
	contextJSON, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feedback context: %w", err)
	}

	user := "[CONTEXT]\n" + string(contextJSON) + `
[TASK]
1) Summarize 5-8 concrete improvements.
2) Generate 5 investor, 5 tech, 5 product challenge questions, referencing slide numbers where relevant.
Return JSON: {"improvements": [str], "questions": {"investor":[str], "tech":[str], "product":[str]}}`

	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       j.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You are a senior coach for public speaking. Be concise, actionable, and specific. " +
					"Output strictly valid JSON only.",
			},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("feedback request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("feedback returned no choices")
	}

	var parsed struct {
		Improvements []string `json:"improvements"`
		Questions    struct {
			Investor []string `json:"investor"`
			Tech     []string `json:"tech"`
			Product  []string `json:"product"`
		} `json:"questions"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("feedback returned invalid JSON: %w", err)
	}

	if len(parsed.Improvements) > maxImprovement {
		parsed.Improvements = parsed.Improvements[:maxImprovement]
	}

	return &Feedback{
		Improvements: parsed.Improvements,
		Questions: QuestionSet{
			Investor: WrapQuestions(parsed.Questions.Investor),
			Tech:     WrapQuestions(parsed.Questions.Tech),
			Product:  WrapQuestions(parsed.Questions.Product),
		},
	}, nil
}

// WrapQuestions attaches a slide number to each question when the text
// mentions one.
func WrapQuestions(raw []string) []Question {
	if len(raw) > maxPerRole {
		raw = raw[:maxPerRole]
	}
	out := make([]Question, 0, len(raw))
	for _, q := range raw {
		question := Question{Text: q}
		if m := slideNumRe.FindStringSubmatch(q); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				question.Slide = &n
			}
		}
		out = append(out, question)
	}
	return out
}
