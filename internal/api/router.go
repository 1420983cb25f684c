package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)
	r.Get("/health", app.HealthHandler)

	r.Post("/sessions", app.CreateSessionHandler)
	r.Delete("/sessions/{sessionID}", app.DeleteSessionHandler)
	r.Post("/sessions/{sessionID}/uploads", app.UploadHandler)
	r.Post("/sessions/{sessionID}/audio/chunk", app.AudioChunkHandler)
	r.Post("/sessions/{sessionID}/audio/finalize", app.AudioFinalizeHandler)

	r.Post("/process/{sessionID}", app.ProcessHandler)
	r.Get("/status/{taskID}", app.StatusHandler)
	r.Post("/tasks/{taskID}/cancel", app.CancelHandler)

	r.Get("/report/{sessionID}", app.ReportHandler)
	r.Get("/feedback/{sessionID}", app.FeedbackHandler)
	r.Get("/questions/{sessionID}", app.QuestionsHandler)
	r.Get("/transcript/{sessionID}", app.TranscriptHandler)

	return r
}
