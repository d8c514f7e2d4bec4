// Package db is the relational store for captures and signal annotations.
// The analysis engine reads annotation ranges and writes back refined CFO
// results; everything else about the records belongs to the web layer.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/batch"
	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/monitoring"
)

// ErrNotFound is returned when a capture or annotation does not exist.
var ErrNotFound = errors.New("record not found")

type DB struct {
	*sql.DB
	path string
}

// NewDB opens (or creates) the sqlite database at path and applies the
// connection pragmas. Schema setup is handled separately by MigrateUp.
func NewDB(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL keeps readers unblocked while batch runs write back results.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	} {
		if _, err := sqldb.Exec(pragma); err != nil {
			sqldb.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return &DB{DB: sqldb, path: path}, nil
}

// parseTimestamp decodes a created_at column. The driver hands back
// CURRENT_TIMESTAMP values as RFC3339; plain sqlite datetime text is accepted
// for rows written by other tools.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}

// Capture is one recorded IQ file registered with the store.
type Capture struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SampleRate float64   `json:"sample_rate"`
	Datatype   string    `json:"datatype"`
	CreatedAt  time.Time `json:"created_at"`
}

// InsertCapture registers a capture; a blank ID is replaced with a new uuid.
func (db *DB) InsertCapture(ctx context.Context, c *Capture) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO captures (id, name, sample_rate, datatype)
		VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.SampleRate, c.Datatype)
	return err
}

// GetCapture fetches one capture by id.
func (db *DB) GetCapture(ctx context.Context, id string) (*Capture, error) {
	var c Capture
	var created string
	err := db.QueryRowContext(ctx, `
		SELECT id, name, sample_rate, datatype, created_at
		FROM captures WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.SampleRate, &c.Datatype, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: capture %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTimestamp(created); err != nil {
		return nil, fmt.Errorf("capture %s: parse created_at: %w", id, err)
	}
	return &c, nil
}

// ListCaptures returns all registered captures, newest first.
func (db *DB) ListCaptures(ctx context.Context) ([]Capture, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, sample_rate, datatype, created_at
		FROM captures ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var captures []Capture
	for rows.Next() {
		var c Capture
		var created string
		if err := rows.Scan(&c.ID, &c.Name, &c.SampleRate, &c.Datatype, &created); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTimestamp(created); err != nil {
			return nil, fmt.Errorf("capture %s: parse created_at: %w", c.ID, err)
		}
		captures = append(captures, c)
	}
	return captures, rows.Err()
}

// InsertAnnotation stores a new annotation; a blank ID gets a new uuid.
func (db *DB) InsertAnnotation(ctx context.Context, a *batch.Annotation) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO annotations
			(id, capture_id, sample_start, sample_count, estimated_cfo_hz,
			 estimated_snr_db, modulation_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CaptureID, a.SampleStart, a.SampleCount, a.EstimatedCFOHz,
		a.EstimatedSNRdB, a.ModulationType)
	return err
}

const annotationSelect = `
	SELECT a.id, a.capture_id, a.sample_start, a.sample_count,
	       a.estimated_cfo_hz, a.estimated_snr_db, a.modulation_type,
	       c.sample_rate, c.datatype
	FROM annotations a
	JOIN captures c ON c.id = a.capture_id`

func scanAnnotation(scan func(dest ...any) error) (batch.Annotation, error) {
	var a batch.Annotation
	var snr sql.NullFloat64
	err := scan(&a.ID, &a.CaptureID, &a.SampleStart, &a.SampleCount,
		&a.EstimatedCFOHz, &snr, &a.ModulationType, &a.SampleRate, &a.Datatype)
	if snr.Valid {
		a.EstimatedSNRdB = &snr.Float64
	}
	return a, err
}

// ListAnnotations returns all annotations joined with their capture's
// sample-rate metadata, in insertion order.
func (db *DB) ListAnnotations(ctx context.Context) ([]batch.Annotation, error) {
	rows, err := db.QueryContext(ctx, annotationSelect+` ORDER BY a.rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var annotations []batch.Annotation
	for rows.Next() {
		a, err := scanAnnotation(rows.Scan)
		if err != nil {
			return nil, err
		}
		annotations = append(annotations, a)
	}
	return annotations, rows.Err()
}

// GetAnnotation fetches one annotation by id.
func (db *DB) GetAnnotation(ctx context.Context, id string) (*batch.Annotation, error) {
	row := db.QueryRowContext(ctx, annotationSelect+` WHERE a.id = ?`, id)
	a, err := scanAnnotation(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: annotation %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAnnotationCFO writes a refined CFO and its lock/method metadata back
// onto an annotation. It implements batch.Store and is only called after a
// successful synchronizer run; failures never reach this method.
func (db *DB) UpdateAnnotationCFO(ctx context.Context, annotationID string, upd batch.CFOUpdate) error {
	res, err := db.ExecContext(ctx, `
		UPDATE annotations SET
			estimated_cfo_hz = ?,
			refined_cfo_hz = ?,
			cfo_method = ?,
			cfo_lock = ?,
			phase_error_variance = ?,
			loop_bandwidth = ?,
			refined_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		upd.TotalCFOHz, upd.TotalCFOHz, upd.Method, upd.LockDetected,
		upd.PhaseErrorVariance, upd.LoopBandwidth, annotationID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: annotation %s", ErrNotFound, annotationID)
	}
	return nil
}

// AttachAdminRoutes mounts the live SQL debugging console on the mux.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		monitoring.Logf("failed to create tailsql server: %v", err)
		return
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Annotations DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
}
