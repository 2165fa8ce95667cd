package manifest

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/xmltable/internal/apperr"
	"github.com/starford/xmltable/internal/convert"
)

// RecordRun inserts or updates a run row.
func (db *DB) RecordRun(r convert.Report) error {
	var finished any
	if !r.FinishedAt.IsZero() {
		finished = r.FinishedAt
	}
	_, err := db.conn.Exec(`
		INSERT INTO runs (id, output, status, error, files, skipped, matches, records, dropped, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status      = excluded.status,
			error       = excluded.error,
			files       = excluded.files,
			skipped     = excluded.skipped,
			matches     = excluded.matches,
			records     = excluded.records,
			dropped     = excluded.dropped,
			finished_at = excluded.finished_at
	`, r.ID, r.Output, r.Status, r.Error, r.Files, r.Skipped, r.Matches, r.Records, r.Dropped, r.StartedAt, finished)
	if err != nil {
		return fmt.Errorf("manifest: record run: %w", err)
	}
	return nil
}

// RecordFile inserts or replaces a file row.
func (db *DB) RecordFile(f convert.FileReport) error {
	_, err := db.conn.Exec(`
		INSERT INTO files (run_id, path, checksum, matches, records, status, error, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, path) DO UPDATE SET
			checksum    = excluded.checksum,
			matches     = excluded.matches,
			records     = excluded.records,
			status      = excluded.status,
			error       = excluded.error,
			duration_ns = excluded.duration_ns
	`, f.RunID, f.Path, f.Checksum, f.Matches, f.Records, f.Status, f.Error, int64(f.Duration))
	if err != nil {
		return fmt.Errorf("manifest: record file: %w", err)
	}
	return nil
}

const runColumns = `id, output, status, error, files, skipped, matches, records, dropped, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (convert.Report, error) {
	var (
		r        convert.Report
		finished sql.NullTime
	)
	err := s.Scan(&r.ID, &r.Output, &r.Status, &r.Error, &r.Files, &r.Skipped, &r.Matches, &r.Records, &r.Dropped, &r.StartedAt, &finished)
	if err != nil {
		return r, err
	}
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return r, nil
}

// GetRun returns one run, or apperr.ErrNotFound.
func (db *DB) GetRun(id string) (*convert.Report, error) {
	r, err := scanRun(db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("manifest: get run: %w", err)
	}
	return &r, nil
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(limit int) ([]convert.Report, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("manifest: list runs: %w", err)
	}
	defer rows.Close()

	out := []convert.Report{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunFiles returns the file rows of a run in path order.
func (db *DB) RunFiles(runID string) ([]convert.FileReport, error) {
	rows, err := db.conn.Query(`
		SELECT run_id, path, checksum, matches, records, status, error, duration_ns
		FROM files WHERE run_id = ? ORDER BY path`, runID)
	if err != nil {
		return nil, fmt.Errorf("manifest: run files: %w", err)
	}
	defer rows.Close()

	out := []convert.FileReport{}
	for rows.Next() {
		var (
			f  convert.FileReport
			ns int64
		)
		if err := rows.Scan(&f.RunID, &f.Path, &f.Checksum, &f.Matches, &f.Records, &f.Status, &f.Error, &ns); err != nil {
			return nil, err
		}
		f.Duration = time.Duration(ns)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Prune deletes runs (and their files) that started before cutoff.
// Start times are stored in UTC, so cutoff is compared in UTC too.
func (db *DB) Prune(cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC()
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("manifest: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM files WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("manifest: prune files: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("manifest: prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

var _ convert.Recorder = (*DB)(nil)
