package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jlmalone/WhatsLiberation/internal/models"
	_ "modernc.org/sqlite"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		conversation TEXT NOT NULL,
		occurrence INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL,
		reason TEXT,
		run_dir TEXT,
		artifacts TEXT,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_exports_conversation ON exports(conversation, occurrence);
	CREATE INDEX IF NOT EXISTS idx_exports_status ON exports(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Storage) RecordExport(rec *models.ExportRecord) (int64, error) {
	var artifactsJSON *string
	if len(rec.Artifacts) > 0 {
		data, err := json.Marshal(rec.Artifacts)
		if err != nil {
			return 0, err
		}
		str := string(data)
		artifactsJSON = &str
	}

	var completedAt *time.Time
	if rec.CompletedAt != nil {
		t := rec.CompletedAt.UTC()
		completedAt = &t
	}

	result, err := s.db.Exec(
		`INSERT INTO exports (run_id, conversation, occurrence, status, reason, run_dir, artifacts, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Conversation, rec.Occurrence, rec.Status, rec.Reason,
		rec.RunDir, artifactsJSON, rec.StartedAt.UTC(), completedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record export: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	rec.ID = id
	return id, nil
}

const exportColumns = `id, run_id, conversation, occurrence, status, reason, run_dir, artifacts, started_at, completed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanExport(row scanner) (*models.ExportRecord, error) {
	var rec models.ExportRecord
	var reason, runDir, artifactsJSON sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.RunID, &rec.Conversation, &rec.Occurrence, &rec.Status,
		&reason, &runDir, &artifactsJSON, &rec.StartedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Reason = reason.String
	rec.RunDir = runDir.String
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	if artifactsJSON.Valid {
		if err := json.Unmarshal([]byte(artifactsJSON.String), &rec.Artifacts); err != nil {
			return nil, fmt.Errorf("export %d has corrupt artifacts: %w", rec.ID, err)
		}
	}

	return &rec, nil
}

func (s *Storage) GetExport(id int64) (*models.ExportRecord, error) {
	row := s.db.QueryRow(`SELECT `+exportColumns+` FROM exports WHERE id = ?`, id)
	rec, err := scanExport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("export %d not found", id)
	}
	return rec, err
}

// LastSuccess returns the most recent successful export of a selection,
// or nil if there is none.
func (s *Storage) LastSuccess(conversation string, occurrence int) (*models.ExportRecord, error) {
	row := s.db.QueryRow(
		`SELECT `+exportColumns+` FROM exports
		 WHERE conversation = ? AND occurrence = ? AND status = ?
		 ORDER BY id DESC LIMIT 1`,
		conversation, occurrence, models.ExportStatusSuccess,
	)
	rec, err := scanExport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *Storage) ListExports(limit int) ([]*models.ExportRecord, error) {
	rows, err := s.db.Query(`SELECT `+exportColumns+` FROM exports ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.ExportRecord
	for rows.Next() {
		rec, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

func (s *Storage) DeleteExport(id int64) error {
	result, err := s.db.Exec(`DELETE FROM exports WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("export %d not found", id)
	}
	return nil
}

// Helper to format time for display
func FormatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Local().Format("Jan 2")
	}
}
