package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one recorded pitch run: a slide deck, a recording, and the
// optional timing/meta/script files that arrive with it. The engine only
// reads session files; retention is owned by whoever created the session.
type Session struct {
	ID        string
	CreatedAt time.Time
}

func NewSession() *Session {
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
	}
}

// ReportRecord indexes a generated report.json on disk. A session keeps at
// most one record; re-running analysis overwrites it.
type ReportRecord struct {
	ID           string
	SessionID    string
	OverallScore float64
	ReportPath   string
	CreatedAt    time.Time
}

func NewReportRecord(sessionID string, overallScore float64, reportPath string) *ReportRecord {
	return &ReportRecord{
		ID:           uuid.New().String(),
		SessionID:    sessionID,
		OverallScore: overallScore,
		ReportPath:   reportPath,
		CreatedAt:    time.Now(),
	}
}
