package database

import (
	"database/sql"
	"fmt"

	"github.com/pitchlab/podium/internal/models"
)

type ReportRepository struct {
	db *DB
}

func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Upsert stores the report record for a session, replacing any record from a
// previous run. Reports are not versioned; the latest run wins.
func (r *ReportRepository) Upsert(record *models.ReportRecord) error {
	if r.db.dbType == "postgres" {
		query := `
			INSERT INTO reports (id, session_id, overall_score, report_path, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (session_id)
			DO UPDATE SET
				overall_score = EXCLUDED.overall_score,
				report_path = EXCLUDED.report_path,
				created_at = EXCLUDED.created_at`

		_, err := r.db.conn.Exec(query,
			record.ID, record.SessionID, record.OverallScore, record.ReportPath, record.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert report: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO reports (id, session_id, overall_score, report_path, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (session_id)
		DO UPDATE SET
			overall_score = excluded.overall_score,
			report_path = excluded.report_path,
			created_at = excluded.created_at`

	_, err := r.db.conn.Exec(query,
		record.ID, record.SessionID, record.OverallScore, record.ReportPath, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert report: %w", err)
	}
	return nil
}

func (r *ReportRepository) GetBySessionID(sessionID string) (*models.ReportRecord, error) {
	query := `SELECT id, session_id, overall_score, report_path, created_at FROM reports WHERE session_id = ?`
	if r.db.dbType == "postgres" {
		query = `SELECT id, session_id, overall_score, report_path, created_at FROM reports WHERE session_id = $1`
	}

	var rec models.ReportRecord
	err := r.db.conn.QueryRow(query, sessionID).Scan(
		&rec.ID, &rec.SessionID, &rec.OverallScore, &rec.ReportPath, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &rec, nil
}

func (r *ReportRepository) DeleteBySessionID(sessionID string) error {
	query := `DELETE FROM reports WHERE session_id = ?`
	if r.db.dbType == "postgres" {
		query = `DELETE FROM reports WHERE session_id = $1`
	}

	if _, err := r.db.conn.Exec(query, sessionID); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}
