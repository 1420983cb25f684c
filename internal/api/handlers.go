// Package api exposes the analysis engine over HTTP: session lifecycle,
// uploads, processing triggers, task status, and report retrieval.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pitchlab/podium/internal/database"
	"github.com/pitchlab/podium/internal/models"
	"github.com/pitchlab/podium/internal/pipeline"
	"github.com/pitchlab/podium/internal/storage"
)

// allowedUploads are the session input files the API accepts, by name.
var allowedUploads = map[string]bool{
	"deck.json":      true,
	"timing.json":    true,
	"meta.json":      true,
	"script.md":      true,
	"script.txt":     true,
	"audio.wav":      true,
	"audio.webm":     true,
	"recording.wav":  true,
	"recording.webm": true,
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

type App struct {
	Files         storage.Store
	DB            *database.DB
	SessionRepo   *database.SessionRepository
	ReportRepo    *database.ReportRepository
	Runner        *pipeline.Runner
	MaxUploadSize int64
}

func (app *App) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] failed to encode response: %v", err)
	}
}

func (app *App) respondError(w http.ResponseWriter, status int, message string) {
	app.respondJSON(w, status, map[string]string{"error": message})
}

func (app *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{"status": "ok"}
	if app.DB != nil {
		health["db"] = "ok"
		if err := app.DB.Conn().Ping(); err != nil {
			health["status"] = "degraded"
			health["db"] = err.Error()
		}
	}
	status := http.StatusOK
	if health["status"] != "ok" {
		status = http.StatusServiceUnavailable
	}
	app.respondJSON(w, status, health)
}

func (app *App) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	session := models.NewSession()

	if err := app.Files.CreateSession(session.ID); err != nil {
		log.Printf("[API] failed to create session dir: %v", err)
		app.respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	if app.SessionRepo != nil {
		if err := app.SessionRepo.Insert(session); err != nil {
			app.Files.RemoveSession(session.ID)
			log.Printf("[API] failed to insert session: %v", err)
			app.respondError(w, http.StatusInternalServerError, "failed to create session")
			return
		}
	}

	app.respondJSON(w, http.StatusCreated, map[string]string{
		"session_id":  session.ID,
		"upload_url":  "/sessions/" + session.ID + "/uploads",
		"process_url": "/process/" + session.ID,
	})
}

func (app *App) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !app.Files.SessionExists(sessionID) {
		app.respondError(w, http.StatusNotFound, "session not found")
		return
	}

	app.Runner.Cancel(sessionID)

	if err := app.Files.RemoveSession(sessionID); err != nil {
		log.Printf("[API] failed to remove session files: %v", err)
		app.respondError(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	if app.ReportRepo != nil {
		if err := app.ReportRepo.DeleteBySessionID(sessionID); err != nil {
			log.Printf("[API] failed to delete report record: %v", err)
		}
	}
	if app.SessionRepo != nil {
		if err := app.SessionRepo.Delete(sessionID); err != nil {
			log.Printf("[API] failed to delete session record: %v", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadHandler accepts one multipart file per request under the "file"
// field. The stored name comes from the uploaded filename and must be one
// of the known session inputs.
func (app *App) UploadHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !app.Files.SessionExists(sessionID) {
		app.respondError(w, http.StatusNotFound, "session not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)
	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		app.respondError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		app.respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	name := strings.ToLower(filepath.Base(header.Filename))
	if !allowedUploads[name] {
		app.respondError(w, http.StatusBadRequest, "unsupported upload name")
		return
	}

	if _, err := app.Files.SaveUpload(sessionID, name, file); err != nil {
		log.Printf("[API] failed to save upload: %v", err)
		app.respondError(w, http.StatusInternalServerError, "failed to save upload")
		return
	}

	app.respondJSON(w, http.StatusOK, map[string]string{"stored": name})
}

func (app *App) AudioChunkHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !app.Files.SessionExists(sessionID) {
		app.respondError(w, http.StatusNotFound, "session not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)
	if err := app.Files.AppendAudioChunk(sessionID, r.Body); err != nil {
		log.Printf("[API] failed to append chunk: %v", err)
		app.respondError(w, http.StatusInternalServerError, "failed to store chunk")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) AudioFinalizeHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !app.Files.SessionExists(sessionID) {
		app.respondError(w, http.StatusNotFound, "session not found")
		return
	}

	if _, err := app.Files.FinalizeAudio(sessionID); err != nil {
		app.respondError(w, http.StatusBadRequest, "no audio chunks uploaded")
		return
	}
	app.respondJSON(w, http.StatusOK, map[string]string{"stored": "audio.webm"})
}

func (app *App) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !app.Files.SessionExists(sessionID) {
		app.respondError(w, http.StatusNotFound, "session not found")
		return
	}

	taskID, err := app.Runner.Start(sessionID)
	if err != nil {
		if errors.Is(err, pipeline.ErrSessionBusy) {
			app.respondError(w, http.StatusConflict, "session is already being processed")
			return
		}
		log.Printf("[API] failed to start task: %v", err)
		app.respondError(w, http.StatusInternalServerError, "failed to start processing")
		return
	}

	app.respondJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
}

func (app *App) StatusHandler(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, ok := app.Runner.Task(taskID)
	if !ok {
		app.respondError(w, http.StatusNotFound, "task not found")
		return
	}

	if task.State != pipeline.StateCompleted {
		app.respondJSON(w, http.StatusOK, task)
		return
	}
	app.respondJSON(w, http.StatusOK, struct {
		pipeline.Task
		ReportURL string `json:"report_url"`
	}{Task: task, ReportURL: "/report/" + task.SessionID})
}

func (app *App) CancelHandler(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, ok := app.Runner.Task(taskID)
	if !ok {
		app.respondError(w, http.StatusNotFound, "task not found")
		return
	}
	if !app.Runner.Cancel(task.SessionID) {
		app.respondError(w, http.StatusConflict, "task is not running")
		return
	}
	app.respondJSON(w, http.StatusOK, map[string]string{"task_id": taskID, "state": "cancelling"})
}

func (app *App) ReportHandler(w http.ResponseWriter, r *http.Request) {
	app.serveArtifact(w, r, "report.json", "application/json")
}

func (app *App) QuestionsHandler(w http.ResponseWriter, r *http.Request) {
	app.serveArtifact(w, r, "questions.json", "application/json")
}

func (app *App) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	app.serveArtifact(w, r, "feedback.md", "text/markdown; charset=utf-8")
}

func (app *App) TranscriptHandler(w http.ResponseWriter, r *http.Request) {
	app.serveArtifact(w, r, "transcript.txt", "text/plain; charset=utf-8")
}

func (app *App) serveArtifact(w http.ResponseWriter, r *http.Request, name, contentType string) {
	sessionID := chi.URLParam(r, "sessionID")
	if !app.Files.SessionExists(sessionID) {
		app.respondError(w, http.StatusNotFound, "session not found")
		return
	}

	data, err := app.Files.ReadArtifact(sessionID, name)
	if err != nil {
		app.respondError(w, http.StatusNotFound, "not generated yet")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
