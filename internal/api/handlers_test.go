package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pitchlab/podium/internal/asr"
	"github.com/pitchlab/podium/internal/deck"
	"github.com/pitchlab/podium/internal/judge"
	"github.com/pitchlab/podium/internal/pipeline"
	"github.com/pitchlab/podium/internal/speech"
	"github.com/pitchlab/podium/internal/storage"
)

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(ctx context.Context, audioPath, langHint string) ([]asr.Segment, error) {
	start, end := int64(0), int64(10000)
	return []asr.Segment{{Text: "churn is expensive we predict it", StartMS: &start, EndMS: &end}}, nil
}

type stubJudge struct{}

func (stubJudge) JudgeSlides(ctx context.Context, slides []deck.SlideContent, transcriptByIndex map[int]string) ([]judge.SlideJudgment, error) {
	var out []judge.SlideJudgment
	for _, s := range slides {
		out = append(out, judge.SlideJudgment{SlideIndex: s.Index, Similarity: 0.7, Judgment: "ok"})
	}
	return out, nil
}

func (stubJudge) GenerateFeedback(ctx context.Context, fc judge.FeedbackContext) (*judge.Feedback, error) {
	return &judge.Feedback{Improvements: []string{"Add numbers to slide 1"}}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	base := t.TempDir()
	store, err := storage.NewLocalStore(base+"/uploads", base+"/artifacts")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	runner := pipeline.NewRunner(pipeline.NewTaskStore(), store, stubTranscriber{}, stubJudge{}, nil, speech.DefaultConfig())
	app := &App{
		Files:         store,
		Runner:        runner,
		MaxUploadSize: 10 << 20,
	}
	srv := httptest.NewServer(NewRouter(app))
	t.Cleanup(srv.Close)
	return srv
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/sessions", "application/json", nil)
	if err != nil {
		t.Fatalf("Create session failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Invalid response body: %v", err)
	}
	if body["session_id"] == "" {
		t.Fatal("Missing session_id")
	}
	return body["session_id"]
}

func uploadFile(t *testing.T, srv *httptest.Server, sessionID, filename string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	fw.Write(content)
	mw.Close()

	resp, err := http.Post(srv.URL+"/sessions/"+sessionID+"/uploads", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	return resp
}

func deckJSON(t *testing.T) []byte {
	t.Helper()
	facts := deck.Facts{
		SlideArea: 1000,
		Slides: []deck.SlideFacts{
			{Index: 1, Title: "Problem", TextBoxes: []deck.TextBox{{Text: "Churn is expensive", Area: 100}}},
			{Index: 2, Title: "Solution", TextBoxes: []deck.TextBox{{Text: "We predict it", Area: 100}}},
		},
	}
	data, err := json.Marshal(facts)
	if err != nil {
		t.Fatalf("Failed to marshal deck: %v", err)
	}
	return data
}

func TestFullAnalysisFlow(t *testing.T) {
	srv := newTestServer(t)
	sessionID := createSession(t, srv)

	resp := uploadFile(t, srv, sessionID, "deck.json", deckJSON(t))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Deck upload: expected 200, got %d", resp.StatusCode)
	}

	chunkResp, err := http.Post(srv.URL+"/sessions/"+sessionID+"/audio/chunk", "application/octet-stream", bytes.NewReader([]byte("webm-bytes")))
	if err != nil {
		t.Fatalf("Chunk upload failed: %v", err)
	}
	chunkResp.Body.Close()
	if chunkResp.StatusCode != http.StatusNoContent {
		t.Fatalf("Chunk: expected 204, got %d", chunkResp.StatusCode)
	}
	finResp, err := http.Post(srv.URL+"/sessions/"+sessionID+"/audio/finalize", "application/json", nil)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	finResp.Body.Close()
	if finResp.StatusCode != http.StatusOK {
		t.Fatalf("Finalize: expected 200, got %d", finResp.StatusCode)
	}

	procResp, err := http.Post(srv.URL+"/process/"+sessionID, "application/json", nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	var proc map[string]string
	json.NewDecoder(procResp.Body).Decode(&proc)
	procResp.Body.Close()
	if procResp.StatusCode != http.StatusAccepted {
		t.Fatalf("Process: expected 202, got %d", procResp.StatusCode)
	}
	taskID := proc["task_id"]
	if taskID == "" {
		t.Fatal("Missing task_id")
	}

	var task pipeline.Task
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		stResp, err := http.Get(srv.URL + "/status/" + taskID)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		json.NewDecoder(stResp.Body).Decode(&task)
		stResp.Body.Close()
		if task.State == pipeline.StateCompleted || task.State == pipeline.StateFailed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if task.State != pipeline.StateCompleted {
		t.Fatalf("Expected completed task, got %s (%v)", task.State, task.Error)
	}

	repResp, err := http.Get(srv.URL + "/report/" + sessionID)
	if err != nil {
		t.Fatalf("Report fetch failed: %v", err)
	}
	defer repResp.Body.Close()
	if repResp.StatusCode != http.StatusOK {
		t.Fatalf("Report: expected 200, got %d", repResp.StatusCode)
	}
	var rep map[string]interface{}
	if err := json.NewDecoder(repResp.Body).Decode(&rep); err != nil {
		t.Fatalf("Report is not valid JSON: %v", err)
	}
	if rep["session_id"] != sessionID {
		t.Errorf("Wrong session in report: %v", rep["session_id"])
	}

	fbResp, err := http.Get(srv.URL + "/feedback/" + sessionID)
	if err != nil {
		t.Fatalf("Feedback fetch failed: %v", err)
	}
	fbResp.Body.Close()
	if fbResp.StatusCode != http.StatusOK {
		t.Errorf("Feedback: expected 200, got %d", fbResp.StatusCode)
	}
}

func TestProcessUnknownSession(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/process/nope", "application/json", nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestUploadRejectsUnknownName(t *testing.T) {
	srv := newTestServer(t)
	sessionID := createSession(t, srv)

	resp := uploadFile(t, srv, sessionID, "malware.exe", []byte("nope"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}

func TestStatusUnknownTask(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/status/nope")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestReportBeforeProcessing(t *testing.T) {
	srv := newTestServer(t)
	sessionID := createSession(t, srv)

	resp, err := http.Get(srv.URL + "/report/" + sessionID)
	if err != nil {
		t.Fatalf("Report fetch failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 before processing, got %d", resp.StatusCode)
	}
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t)
	sessionID := createSession(t, srv)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/"+sessionID, nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", resp.StatusCode)
	}

	procResp, err := http.Post(srv.URL+"/process/"+sessionID, "application/json", nil)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	procResp.Body.Close()
	if procResp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", procResp.StatusCode)
	}
}
