package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/pitchlab/podium/internal/asr"
	"github.com/pitchlab/podium/internal/deck"
	"github.com/pitchlab/podium/internal/judge"
	"github.com/pitchlab/podium/internal/report"
	"github.com/pitchlab/podium/internal/speech"
	"github.com/pitchlab/podium/internal/storage"
)

type fakeTranscriber struct {
	segments []asr.Segment
	err      error
	// block, when set, holds Transcribe until closed or the context ends.
	block chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath, langHint string) ([]asr.Segment, error) {
	if f.block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.block:
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.segments, nil
}

type fakeJudge struct {
	skipIndex int // slide index to omit from judgments, 0 for none
	err       error
}

func (f *fakeJudge) JudgeSlides(ctx context.Context, slides []deck.SlideContent, transcriptByIndex map[int]string) ([]judge.SlideJudgment, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []judge.SlideJudgment
	for _, s := range slides {
		if s.Index == f.skipIndex {
			continue
		}
		out = append(out, judge.SlideJudgment{SlideIndex: s.Index, Similarity: 0.8, Judgment: "consistent"})
	}
	return out, nil
}

func (f *fakeJudge) GenerateFeedback(ctx context.Context, fc judge.FeedbackContext) (*judge.Feedback, error) {
	return &judge.Feedback{Improvements: []string{"Slow down on the numbers"}}, nil
}

func ms(v int64) *int64 { return &v }

func setupSession(t *testing.T, store storage.Store, sessionID string) {
	t.Helper()
	if err := store.CreateSession(sessionID); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	facts := deck.Facts{
		SlideArea: 1000,
		Slides: []deck.SlideFacts{
			{Index: 1, Title: "Problem", TextBoxes: []deck.TextBox{{Text: "Churn is expensive", Area: 100}}},
			{Index: 2, Title: "Solution", TextBoxes: []deck.TextBox{{Text: "Predict it early", Area: 100}}},
		},
	}
	deckJSON, _ := json.Marshal(facts)
	if _, err := store.SaveUpload(sessionID, "deck.json", bytes.NewReader(deckJSON)); err != nil {
		t.Fatalf("Failed to upload deck: %v", err)
	}
	if _, err := store.SaveUpload(sessionID, "audio.webm", bytes.NewReader([]byte("webm"))); err != nil {
		t.Fatalf("Failed to upload recording: %v", err)
	}
}

func newTestRunner(t *testing.T, transcriber asr.Transcriber, j judge.Judge) (*Runner, storage.Store) {
	t.Helper()
	base := t.TempDir()
	store, err := storage.NewLocalStore(base+"/uploads", base+"/artifacts")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return NewRunner(NewTaskStore(), store, transcriber, j, nil, speech.DefaultConfig()), store
}

func waitForTask(t *testing.T, r *Runner, taskID string) Task {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		task, ok := r.Task(taskID)
		if !ok {
			t.Fatalf("Task %s not found", taskID)
		}
		if task.State == StateCompleted || task.State == StateFailed {
			return task
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Task %s did not finish", taskID)
	return Task{}
}

func TestRunner_CompletesAndWritesArtifacts(t *testing.T) {
	transcriber := &fakeTranscriber{segments: []asr.Segment{
		{Text: "churn is expensive for everyone", StartMS: ms(0), EndMS: ms(5000)},
		{Text: "we predict it early", StartMS: ms(5000), EndMS: ms(10000)},
	}}
	runner, store := newTestRunner(t, transcriber, &fakeJudge{})
	setupSession(t, store, "s1")

	taskID, err := runner.Start("s1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	task := waitForTask(t, runner, taskID)
	if task.State != StateCompleted {
		t.Fatalf("Expected completed, got %s (%v)", task.State, task.Error)
	}
	if task.ProgressPct != 100 {
		t.Errorf("Expected progress 100, got %d", task.ProgressPct)
	}

	data, err := store.ReadArtifact("s1", "report.json")
	if err != nil {
		t.Fatalf("Report artifact missing: %v", err)
	}
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("Report is not valid JSON: %v", err)
	}
	if rep.SessionID != "s1" {
		t.Errorf("Wrong session id: %q", rep.SessionID)
	}
	if len(rep.Slides) != 2 {
		t.Fatalf("Expected 2 slide reports, got %d", len(rep.Slides))
	}
	if rep.Slides[0].Judgment == nil {
		t.Errorf("Expected judgment on slide 1")
	}
	// no waveform for webm, so pause metrics are flagged unavailable
	if rep.SpeechQuality.Available {
		t.Errorf("Expected speech waveform metrics unavailable")
	}

	for _, name := range []string{"feedback.md", "questions.json", "transcript.txt", "slides.json", "status.json"} {
		if _, err := store.ReadArtifact("s1", name); err != nil {
			t.Errorf("Artifact %s missing: %v", name, err)
		}
	}

	var status Task
	statusData, _ := store.ReadArtifact("s1", "status.json")
	if err := json.Unmarshal(statusData, &status); err != nil {
		t.Fatalf("Status is not valid JSON: %v", err)
	}
	if status.State != StateCompleted {
		t.Errorf("Status artifact not updated: %s", status.State)
	}
}

func TestRunner_SessionBusy(t *testing.T) {
	transcriber := &fakeTranscriber{
		segments: []asr.Segment{{Text: "hello", StartMS: ms(0), EndMS: ms(1000)}},
		block:    make(chan struct{}),
	}
	runner, store := newTestRunner(t, transcriber, &fakeJudge{})
	setupSession(t, store, "s1")

	taskID, err := runner.Start("s1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := runner.Start("s1"); err != ErrSessionBusy {
		t.Errorf("Expected ErrSessionBusy, got %v", err)
	}

	close(transcriber.block)
	waitForTask(t, runner, taskID)

	// finished session can be re-run
	if _, err := runner.Start("s1"); err != nil {
		t.Errorf("Expected re-run to start, got %v", err)
	}
}

func TestRunner_TranscriberFailure(t *testing.T) {
	transcriber := &fakeTranscriber{err: &asr.TranscriptionError{Err: fmt.Errorf("provider down")}}
	runner, store := newTestRunner(t, transcriber, &fakeJudge{})
	setupSession(t, store, "s1")

	taskID, err := runner.Start("s1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	task := waitForTask(t, runner, taskID)
	if task.State != StateFailed {
		t.Fatalf("Expected failed, got %s", task.State)
	}
	if task.Error == nil || task.Error.Kind != KindTranscription {
		t.Errorf("Expected transcription error, got %+v", task.Error)
	}
	if _, err := store.ReadArtifact("s1", "report.json"); err == nil {
		t.Errorf("Report must not be written on failure")
	}
}

func TestRunner_PartialJudgmentStillCompletes(t *testing.T) {
	transcriber := &fakeTranscriber{segments: []asr.Segment{
		{Text: "churn is expensive", StartMS: ms(0), EndMS: ms(5000)},
		{Text: "we predict it", StartMS: ms(5000), EndMS: ms(10000)},
	}}
	runner, store := newTestRunner(t, transcriber, &fakeJudge{skipIndex: 2})
	setupSession(t, store, "s1")

	taskID, err := runner.Start("s1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	task := waitForTask(t, runner, taskID)
	if task.State != StateCompleted {
		t.Fatalf("Expected completed, got %s (%v)", task.State, task.Error)
	}

	data, _ := store.ReadArtifact("s1", "report.json")
	var rep report.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("Report is not valid JSON: %v", err)
	}
	if rep.Slides[1].Judgment != nil {
		t.Errorf("Expected nil judgment for unjudged slide")
	}
	if rep.Slides[1].JudgmentNote == "" {
		t.Errorf("Expected a note explaining the missing judgment")
	}
	if rep.Slides[0].Judgment == nil {
		t.Errorf("Judged slide must keep its judgment")
	}
}

func TestRunner_Cancel(t *testing.T) {
	transcriber := &fakeTranscriber{
		segments: []asr.Segment{{Text: "hello", StartMS: ms(0), EndMS: ms(1000)}},
		block:    make(chan struct{}),
	}
	runner, store := newTestRunner(t, transcriber, &fakeJudge{})
	setupSession(t, store, "s1")

	taskID, err := runner.Start("s1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !runner.Cancel("s1") {
		t.Fatal("Expected cancel to find the running task")
	}
	task := waitForTask(t, runner, taskID)
	if task.State != StateFailed {
		t.Fatalf("Expected failed, got %s", task.State)
	}
	if task.Error == nil || task.Error.Kind != KindCancelled {
		t.Errorf("Expected cancelled error, got %+v", task.Error)
	}

	if runner.Cancel("s1") {
		t.Errorf("Cancel after completion should report no running task")
	}
}

func TestRunner_MissingDeckFails(t *testing.T) {
	runner, store := newTestRunner(t, &fakeTranscriber{}, &fakeJudge{})
	if err := store.CreateSession("s1"); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	taskID, err := runner.Start("s1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	task := waitForTask(t, runner, taskID)
	if task.State != StateFailed {
		t.Fatalf("Expected failed, got %s", task.State)
	}
	if task.Error == nil || task.Error.Kind != KindInvalidInput {
		t.Errorf("Expected invalid input error, got %+v", task.Error)
	}
}
