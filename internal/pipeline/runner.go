// Package pipeline runs the full analysis for one session as a background
// task: parse deck facts, transcribe, align, score delivery and slides,
// judge, and assemble the report artifacts.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/pitchlab/podium/internal/align"
	"github.com/pitchlab/podium/internal/asr"
	"github.com/pitchlab/podium/internal/database"
	"github.com/pitchlab/podium/internal/deck"
	"github.com/pitchlab/podium/internal/judge"
	"github.com/pitchlab/podium/internal/models"
	"github.com/pitchlab/podium/internal/report"
	"github.com/pitchlab/podium/internal/script"
	"github.com/pitchlab/podium/internal/speech"
	"github.com/pitchlab/podium/internal/storage"
)

// ErrSessionBusy means the session already has a task in flight. A session
// runs at most one analysis at a time; re-running after completion is fine.
var ErrSessionBusy = errors.New("session is already being processed")

// Upload filenames the runner looks for inside a session.
var (
	deckFileNames      = []string{"deck.json"}
	recordingFileNames = []string{"audio.wav", "recording.wav", "audio.webm", "recording.webm"}
	timingFileNames    = []string{"timing.json"}
	scriptFileNames    = []string{"script.md", "script.txt"}
	metaFileNames      = []string{"meta.json"}
)

// sessionMeta mirrors the optional meta.json upload.
type sessionMeta struct {
	Language     string `json:"language,omitempty"`
	Audience     string `json:"audience,omitempty"`
	Presentation string `json:"presentation,omitempty"`
}

// Runner owns task execution. One goroutine per started task; per-session
// exclusivity is enforced at Start.
type Runner struct {
	tasks       *TaskStore
	files       storage.Store
	transcriber asr.Transcriber
	judge       judge.Judge
	reports     *database.ReportRepository
	speechCfg   speech.Config

	mu      sync.Mutex
	running map[string]context.CancelFunc // session id -> cancel
}

func NewRunner(tasks *TaskStore, files storage.Store, transcriber asr.Transcriber, j judge.Judge, reports *database.ReportRepository, speechCfg speech.Config) *Runner {
	return &Runner{
		tasks:       tasks,
		files:       files,
		transcriber: transcriber,
		judge:       j,
		reports:     reports,
		speechCfg:   speechCfg,
		running:     make(map[string]context.CancelFunc),
	}
}

// Start launches analysis for the session and returns the task id. It fails
// with ErrSessionBusy when a task for the same session is still in flight.
func (r *Runner) Start(sessionID string) (string, error) {
	r.mu.Lock()
	if _, busy := r.running[sessionID]; busy {
		r.mu.Unlock()
		return "", ErrSessionBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.running[sessionID] = cancel
	r.mu.Unlock()

	task := r.tasks.Create(sessionID)
	log.Printf("[PIPELINE] task %s started for session %s", task.ID, sessionID)

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.running, sessionID)
			r.mu.Unlock()
			cancel()
		}()
		r.run(ctx, task.ID, sessionID)
	}()

	return task.ID, nil
}

// Cancel requests cooperative cancellation of the session's running task.
func (r *Runner) Cancel(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.running[sessionID]
	if ok {
		cancel()
	}
	return ok
}

func (r *Runner) Task(taskID string) (Task, bool) {
	return r.tasks.Get(taskID)
}

func (r *Runner) run(ctx context.Context, taskID, sessionID string) {
	r.setPhase(taskID, PhaseParsingDeck, 5)

	deckName, ok := r.files.FindUpload(sessionID, deckFileNames...)
	if !ok {
		r.fail(taskID, failure(KindInvalidInput, "deck facts not uploaded"))
		return
	}
	deckData, err := r.files.ReadUpload(sessionID, deckName)
	if err != nil {
		r.fail(taskID, failure(KindInternal, "failed to read deck facts: %v", err))
		return
	}
	facts, err := deck.ParseFacts(deckData)
	if err != nil {
		r.fail(taskID, failure(KindInvalidInput, "%v", err))
		return
	}
	if len(facts.Slides) == 0 {
		r.fail(taskID, failure(KindInvalidInput, "deck has no slides"))
		return
	}
	content := deck.Content(facts)
	if slidesJSON, err := json.MarshalIndent(content, "", "  "); err == nil {
		if _, err := r.files.WriteArtifact(sessionID, "slides.json", slidesJSON); err != nil {
			log.Printf("[PIPELINE] task %s: failed to write slides artifact: %v", taskID, err)
		}
	}

	recordingName, ok := r.files.FindUpload(sessionID, recordingFileNames...)
	if !ok {
		r.fail(taskID, failure(KindInvalidInput, "recording not uploaded"))
		return
	}
	recordingPath, err := r.files.UploadPath(sessionID, recordingName)
	if err != nil {
		r.fail(taskID, failure(KindInternal, "%v", err))
		return
	}

	meta := r.readMeta(sessionID)

	// deck metrics are independent of the audio path; score them while
	// transcription runs
	metricsCh := make(chan *deck.Metrics, 1)
	go func() { metricsCh <- deck.ComputeMetrics(facts) }()

	track, err := speech.LoadTrack(recordingPath)
	if err != nil {
		r.fail(taskID, failure(KindInvalidInput, "failed to decode recording: %v", err))
		return
	}

	r.setPhase(taskID, PhaseTranscribing, 15)
	segments, err := r.transcriber.Transcribe(ctx, recordingPath, meta.Language)
	if err != nil {
		if ctx.Err() != nil {
			r.fail(taskID, failure(KindCancelled, "task cancelled"))
			return
		}
		r.fail(taskID, failure(KindTranscription, "%v", err))
		return
	}
	if _, err := r.files.WriteArtifact(sessionID, "transcript.txt", []byte(asr.FullText(segments))); err != nil {
		log.Printf("[PIPELINE] task %s: failed to write transcript artifact: %v", taskID, err)
	}

	if r.cancelled(ctx, taskID) {
		return
	}

	r.setPhase(taskID, PhaseAligning, 35)
	windows, err := r.slideWindows(sessionID, len(facts.Slides), track, segments)
	if err != nil {
		r.fail(taskID, failure(KindInvalidInput, "%v", err))
		return
	}
	alignSegments := make([]align.Segment, len(segments))
	for i, s := range segments {
		alignSegments[i] = align.Segment{Text: s.Text, StartMS: s.StartMS, EndMS: s.EndMS}
	}
	alignResult, err := align.Align(alignSegments, windows)
	if err != nil {
		r.fail(taskID, failure(KindInvalidInput, "%v", err))
		return
	}

	r.setPhase(taskID, PhaseAnalyzingSpeech, 50)
	speechResult, err := speech.Analyze(track, alignResult.Slices, windows, r.speechCfg)
	if err != nil {
		r.fail(taskID, failure(KindInternal, "%v", err))
		return
	}

	r.setPhase(taskID, PhaseScoringSlides, 60)
	deckMetrics := <-metricsCh

	if r.cancelled(ctx, taskID) {
		return
	}

	r.setPhase(taskID, PhaseComparingScript, 65)
	var comparisons []script.Comparison
	if scriptName, ok := r.files.FindUpload(sessionID, scriptFileNames...); ok {
		scriptData, err := r.files.ReadUpload(sessionID, scriptName)
		if err != nil {
			r.fail(taskID, failure(KindInternal, "failed to read script: %v", err))
			return
		}
		comparisons = script.Compare(string(scriptData), alignResult.Slices)
	}

	r.setPhase(taskID, PhaseJudging, 70)
	transcriptByIndex := make(map[int]string, len(alignResult.Slices))
	for _, s := range alignResult.Slices {
		transcriptByIndex[s.SlideIndex] = s.Text
	}
	judgments, judgeErr := r.judge.JudgeSlides(ctx, content, transcriptByIndex)
	if judgeErr != nil {
		if ctx.Err() != nil {
			r.fail(taskID, failure(KindCancelled, "task cancelled"))
			return
		}
		// judgment is advisory; the report ships with notes instead
		log.Printf("[PIPELINE] task %s: judging failed: %v", taskID, judgeErr)
		judgments = nil
	}
	notes := judgmentNotes(content, judgments, judgeErr)

	var feedback *judge.Feedback
	if len(judgments) > 0 {
		fc := judge.FeedbackContext{
			DeckMetrics:  deckMetrics,
			PerSlide:     judgments,
			Audience:     meta.Audience,
			Presentation: meta.Presentation,
		}
		for _, j := range judgments {
			if j.Similarity < 0.5 {
				fc.WeakSlides = append(fc.WeakSlides, j.SlideIndex)
			}
		}
		feedback, err = r.judge.GenerateFeedback(ctx, fc)
		if err != nil {
			if ctx.Err() != nil {
				r.fail(taskID, failure(KindCancelled, "task cancelled"))
				return
			}
			log.Printf("[PIPELINE] task %s: feedback generation failed: %v", taskID, err)
			feedback = nil
		}
	}

	if r.cancelled(ctx, taskID) {
		return
	}

	r.setPhase(taskID, PhaseAssembling, 90)
	rep, err := report.Assemble(report.Input{
		SessionID:     sessionID,
		Models:        r.modelNames(),
		Content:       content,
		DeckMetrics:   deckMetrics,
		AlignResult:   alignResult,
		Speech:        speechResult,
		Script:        comparisons,
		Judgments:     judgments,
		JudgmentNotes: notes,
		Feedback:      feedback,
	})
	if err != nil {
		var incomplete *report.IncompleteInputError
		if errors.As(err, &incomplete) {
			r.fail(taskID, failure(KindIncompleteInput, "%v", err))
		} else {
			r.fail(taskID, failure(KindInternal, "%v", err))
		}
		return
	}

	reportPath, err := r.writeReportArtifacts(sessionID, rep)
	if err != nil {
		r.fail(taskID, failure(KindInternal, "%v", err))
		return
	}

	if r.reports != nil {
		record := models.NewReportRecord(sessionID, rep.OverallScore, reportPath)
		if err := r.reports.Upsert(record); err != nil {
			log.Printf("[PIPELINE] task %s: failed to index report: %v", taskID, err)
		}
	}

	task, _ := r.tasks.Update(taskID, func(t *Task) {
		t.State = StateCompleted
		t.Phase = ""
		t.ProgressPct = 100
	})
	r.writeStatus(task)
	log.Printf("[PIPELINE] task %s completed, score %.1f", taskID, rep.OverallScore)
}

// slideWindows loads timing.json when present, otherwise synthesizes even
// windows across the recording duration.
func (r *Runner) slideWindows(sessionID string, slideCount int, track *speech.Track, segments []asr.Segment) ([]align.Window, error) {
	if timingName, ok := r.files.FindUpload(sessionID, timingFileNames...); ok {
		data, err := r.files.ReadUpload(sessionID, timingName)
		if err != nil {
			return nil, fmt.Errorf("failed to read timing file: %w", err)
		}
		return align.ParseTiming(data)
	}

	totalMS := track.DurationMS()
	if totalMS == 0 {
		for _, s := range segments {
			if s.EndMS != nil && *s.EndMS > totalMS {
				totalMS = *s.EndMS
			}
		}
	}
	return align.SynthesizeWindows(slideCount, totalMS)
}

func (r *Runner) readMeta(sessionID string) sessionMeta {
	var meta sessionMeta
	name, ok := r.files.FindUpload(sessionID, metaFileNames...)
	if !ok {
		return meta
	}
	data, err := r.files.ReadUpload(sessionID, name)
	if err != nil {
		log.Printf("[PIPELINE] session %s: failed to read meta: %v", sessionID, err)
		return meta
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		log.Printf("[PIPELINE] session %s: malformed meta.json ignored: %v", sessionID, err)
	}
	return meta
}

func (r *Runner) writeReportArtifacts(sessionID string, rep *report.Report) (string, error) {
	reportJSON, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	reportPath, err := r.files.WriteArtifact(sessionID, "report.json", reportJSON)
	if err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	if _, err := r.files.WriteArtifact(sessionID, "feedback.md", []byte(report.RenderFeedback(rep))); err != nil {
		return "", fmt.Errorf("failed to write feedback: %w", err)
	}

	questionsJSON, err := json.MarshalIndent(rep.Questions, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode questions: %w", err)
	}
	if _, err := r.files.WriteArtifact(sessionID, "questions.json", questionsJSON); err != nil {
		return "", fmt.Errorf("failed to write questions: %w", err)
	}

	return reportPath, nil
}

func (r *Runner) modelNames() map[string]string {
	names := map[string]string{}
	if n, ok := r.transcriber.(interface{ ModelName() string }); ok {
		names["stt"] = n.ModelName()
	}
	if n, ok := r.judge.(interface{ ModelName() string }); ok {
		names["judge"] = n.ModelName()
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

func (r *Runner) setPhase(taskID string, phase Phase, pct int) {
	task, _ := r.tasks.Update(taskID, func(t *Task) {
		t.State = StateRunning
		t.Phase = phase
		t.ProgressPct = pct
	})
	r.writeStatus(task)
}

func (r *Runner) fail(taskID string, e *Error) {
	task, _ := r.tasks.Update(taskID, func(t *Task) {
		t.State = StateFailed
		t.Error = e
	})
	r.writeStatus(task)
	log.Printf("[PIPELINE] task %s failed: %v", taskID, e)
}

func (r *Runner) cancelled(ctx context.Context, taskID string) bool {
	if ctx.Err() == nil {
		return false
	}
	r.fail(taskID, failure(KindCancelled, "task cancelled"))
	return true
}

// writeStatus mirrors the task state into the session's artifacts so the
// status survives a restart even though the task map does not.
func (r *Runner) writeStatus(task Task) {
	if task.ID == "" {
		return
	}
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return
	}
	if _, err := r.files.WriteArtifact(task.SessionID, "status.json", data); err != nil {
		log.Printf("[PIPELINE] task %s: failed to write status artifact: %v", task.ID, err)
	}
}

// judgmentNotes records, per slide that lacks a judgment, why it is missing.
func judgmentNotes(content []deck.SlideContent, judgments []judge.SlideJudgment, judgeErr error) map[int]string {
	judged := make(map[int]bool, len(judgments))
	for _, j := range judgments {
		judged[j.SlideIndex] = true
	}

	notes := map[int]string{}
	for _, c := range content {
		if judged[c.Index] {
			continue
		}
		if judgeErr != nil {
			notes[c.Index] = fmt.Sprintf("judging failed: %v", judgeErr)
		} else {
			notes[c.Index] = "judge batch failed"
		}
	}
	if len(notes) > 0 {
		indexes := make([]string, 0, len(notes))
		for idx := range notes {
			indexes = append(indexes, fmt.Sprintf("%d", idx))
		}
		log.Printf("[PIPELINE] slides without judgment: %s", strings.Join(indexes, ", "))
	}
	return notes
}
