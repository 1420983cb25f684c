package database

import (
	"testing"

	"github.com/pitchlab/podium/internal/models"
)

func TestReportRepository_UpsertReplacesPreviousRun(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewReportRepository(db)

	first := models.NewReportRecord("session-1", 61.5, "/artifacts/session-1/report.json")
	if err := repo.Upsert(first); err != nil {
		t.Fatalf("Failed to upsert report: %v", err)
	}

	second := models.NewReportRecord("session-1", 78.0, "/artifacts/session-1/report.json")
	if err := repo.Upsert(second); err != nil {
		t.Fatalf("Failed to upsert second report: %v", err)
	}

	rec, err := repo.GetBySessionID("session-1")
	if err != nil {
		t.Fatalf("Failed to get report: %v", err)
	}
	if rec.OverallScore != 78.0 {
		t.Errorf("Expected score from latest run (78.0), got %v", rec.OverallScore)
	}
}

func TestReportRepository_GetBySessionID_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewReportRepository(db)
	if _, err := repo.GetBySessionID("nope"); err == nil {
		t.Error("Expected error for missing report, got nil")
	}
}

func TestReportRepository_DeleteBySessionID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewReportRepository(db)
	rec := models.NewReportRecord("session-2", 50.0, "/artifacts/session-2/report.json")
	if err := repo.Upsert(rec); err != nil {
		t.Fatalf("Failed to upsert report: %v", err)
	}
	if err := repo.DeleteBySessionID("session-2"); err != nil {
		t.Fatalf("Failed to delete report: %v", err)
	}
	if _, err := repo.GetBySessionID("session-2"); err == nil {
		t.Error("Expected error after delete, got nil")
	}
}
