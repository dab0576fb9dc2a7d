package database

import (
	"database/sql"
	"fmt"
	"time"
)

const runColumns = `id, started_at, finished_at, status, demo, news_count, summary, formatted_summary,
	translations, images, pdf_path, telegram_sent, telegram_message_id, error`

// InsertRun stores a run and its steps. Re-inserting an ID replaces it.
func (db *DB) InsertRun(r Run) error {
	if r.ID == "" {
		return fmt.Errorf("run id is required")
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM run_steps WHERE run_id = ?", r.ID); err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT OR REPLACE INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, formatTime(r.StartedAt), formatTime(r.FinishedAt), r.Status, r.Demo, r.NewsCount,
		r.Summary, r.FormattedSummary, r.Translations, r.Images, r.PDFPath,
		r.TelegramSent, r.TelegramMessageID, r.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for i, s := range r.Steps {
		if _, err := tx.Exec(
			"INSERT INTO run_steps (run_id, position, name, status, detail) VALUES (?, ?, ?, ?, ?)",
			r.ID, i, s.Name, s.Status, s.Detail,
		); err != nil {
			return fmt.Errorf("inserting step %s: %w", s.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	db.log.WithField("run_id", r.ID).WithField("status", r.Status).Debug("run stored")
	return nil
}

// GetRun returns a run with its steps, or nil if it does not exist.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.conn.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	r, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := db.conn.Query(
		"SELECT name, status, COALESCE(detail, '') FROM run_steps WHERE run_id = ? ORDER BY position", id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s Step
		if err := rows.Scan(&s.Name, &s.Status, &s.Detail); err != nil {
			return nil, err
		}
		r.Steps = append(r.Steps, s)
	}
	return r, rows.Err()
}

// GetRecentRuns returns up to limit runs, newest first. Steps are not loaded.
func (db *DB) GetRecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetStats returns aggregate run statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM runs", &s.TotalRuns},
		{"SELECT COUNT(*) FROM runs WHERE status = 'completed'", &s.Completed},
		{"SELECT COUNT(*) FROM runs WHERE status = 'partial_success'", &s.Partial},
		{"SELECT COUNT(*) FROM runs WHERE status = 'failed'", &s.Failed},
		{"SELECT COUNT(*) FROM runs WHERE demo = 1", &s.DemoRuns},
		{"SELECT COUNT(*) FROM runs WHERE telegram_sent = 1", &s.TelegramSent},
		{"SELECT COUNT(*) FROM runs WHERE pdf_path IS NOT NULL AND pdf_path != ''", &s.PDFs},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	var last sql.NullString
	if err := db.conn.QueryRow("SELECT MAX(started_at) FROM runs").Scan(&last); err != nil {
		return nil, err
	}
	if last.Valid {
		if t, err := parseTime(last.String); err == nil {
			s.LastRun = &t
		}
	}
	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r                                              Run
		started, finished                              string
		summary, formatted, translations, imgs, pdf, e sql.NullString
	)
	if err := sc.Scan(&r.ID, &started, &finished, &r.Status, &r.Demo, &r.NewsCount,
		&summary, &formatted, &translations, &imgs, &pdf,
		&r.TelegramSent, &r.TelegramMessageID, &e); err != nil {
		return nil, err
	}

	var err error
	if r.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return nil, err
	}
	r.Summary = summary.String
	r.FormattedSummary = formatted.String
	r.Translations = translations.String
	r.Images = imgs.String
	r.PDFPath = pdf.String
	r.Error = e.String
	return &r, nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
