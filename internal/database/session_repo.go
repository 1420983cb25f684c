package database

import (
	"database/sql"
	"fmt"

	"github.com/pitchlab/podium/internal/models"
)

type SessionRepository struct {
	db *DB
}

func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Insert(session *models.Session) error {
	query := `INSERT INTO sessions (id, created_at) VALUES (?, ?)`
	if r.db.dbType == "postgres" {
		query = `INSERT INTO sessions (id, created_at) VALUES ($1, $2)`
	}

	_, err := r.db.conn.Exec(query, session.ID, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(id string) (*models.Session, error) {
	query := `SELECT id, created_at FROM sessions WHERE id = ?`
	if r.db.dbType == "postgres" {
		query = `SELECT id, created_at FROM sessions WHERE id = $1`
	}

	var session models.Session
	err := r.db.conn.QueryRow(query, id).Scan(&session.ID, &session.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) Delete(id string) error {
	query := `DELETE FROM sessions WHERE id = ?`
	if r.db.dbType == "postgres" {
		query = `DELETE FROM sessions WHERE id = $1`
	}

	result, err := r.db.conn.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session not found")
	}
	return nil
}

func (r *SessionRepository) List() ([]models.Session, error) {
	rows, err := r.db.conn.Query(`SELECT id, created_at FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
