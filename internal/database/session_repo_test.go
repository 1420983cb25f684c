package database

import (
	"testing"

	"github.com/pitchlab/podium/internal/models"
)

func TestSessionRepository_InsertAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	session := models.NewSession()

	if err := repo.Insert(session); err != nil {
		t.Fatalf("Failed to insert session: %v", err)
	}

	retrieved, err := repo.GetByID(session.ID)
	if err != nil {
		t.Fatalf("Failed to retrieve session: %v", err)
	}
	if retrieved.ID != session.ID {
		t.Errorf("Expected id %s, got %s", session.ID, retrieved.ID)
	}
}

func TestSessionRepository_GetByID_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(db)

	if _, err := repo.GetByID("00000000-0000-0000-0000-000000000000"); err == nil {
		t.Error("Expected error for non-existent session, got nil")
	}
}

func TestSessionRepository_Delete(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	session := models.NewSession()

	if err := repo.Insert(session); err != nil {
		t.Fatalf("Failed to insert session: %v", err)
	}
	if err := repo.Delete(session.ID); err != nil {
		t.Fatalf("Failed to delete session: %v", err)
	}
	if _, err := repo.GetByID(session.ID); err == nil {
		t.Error("Expected error after delete, got nil")
	}
	if err := repo.Delete(session.ID); err == nil {
		t.Error("Expected error deleting twice, got nil")
	}
}

func TestSessionRepository_List(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(db)
	for i := 0; i < 3; i++ {
		if err := repo.Insert(models.NewSession()); err != nil {
			t.Fatalf("Failed to insert session: %v", err)
		}
	}

	sessions, err := repo.List()
	if err != nil {
		t.Fatalf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 3 {
		t.Errorf("Expected 3 sessions, got %d", len(sessions))
	}
}
