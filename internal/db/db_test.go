package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Valentine-RF/Second-Sight-RF-Tools-sub000/internal/batch"
)

const migrationsDir = "../../db/migrations"

func newTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	if err := database.MigrateUp(migrationsDir); err != nil {
		t.Fatal(err)
	}
	return database
}

func insertTestCapture(t *testing.T, database *DB) *Capture {
	t.Helper()
	c := &Capture{Name: "field-recording", SampleRate: 100000, Datatype: "cf32_le"}
	if err := database.InsertCapture(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestMigrateUpAndVersion(t *testing.T) {
	database := newTestDB(t)
	version, dirty, err := database.MigrateVersion(migrationsDir)
	if err != nil {
		t.Fatal(err)
	}
	if dirty {
		t.Error("fresh migration should not be dirty")
	}
	if version == 0 {
		t.Error("version should be nonzero after MigrateUp")
	}
	// A second MigrateUp is a no-op, not an error.
	if err := database.MigrateUp(migrationsDir); err != nil {
		t.Errorf("repeated MigrateUp failed: %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-08-23T09:39:57Z", time.Date(2026, 8, 23, 9, 39, 57, 0, time.UTC)},
		{"2026-08-23 09:39:57", time.Date(2026, 8, 23, 9, 39, 57, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseTimestamp(tt.in)
		if err != nil {
			t.Errorf("parseTimestamp(%q) error: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := parseTimestamp("not a time"); err == nil {
		t.Error("malformed timestamp should error, not be discarded")
	}
}

func TestMigrateDown(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	if err := database.MigrateDown(migrationsDir); err != nil {
		t.Fatal(err)
	}
	version, dirty, err := database.MigrateVersion(migrationsDir)
	if err != nil {
		t.Fatal(err)
	}
	if version != 0 || dirty {
		t.Errorf("after rollback version=%d dirty=%v, want 0/false", version, dirty)
	}
	if _, err := database.ListCaptures(ctx); err == nil {
		t.Error("captures table should not exist after rollback")
	}

	// The schema comes back cleanly.
	if err := database.MigrateUp(migrationsDir); err != nil {
		t.Fatal(err)
	}
	if _, err := database.ListCaptures(ctx); err != nil {
		t.Errorf("ListCaptures after re-migrate: %v", err)
	}
}

func TestCaptureRoundTrip(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	c := insertTestCapture(t, database)

	if c.ID == "" {
		t.Fatal("InsertCapture should assign an ID")
	}
	got, err := database.GetCapture(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != c.Name || got.SampleRate != c.SampleRate || got.Datatype != c.Datatype {
		t.Errorf("GetCapture = %+v, want %+v", got, c)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at should be populated")
	}
	if age := time.Since(got.CreatedAt); age < 0 || age > time.Hour {
		t.Errorf("created_at = %v, want a recent timestamp", got.CreatedAt)
	}

	list, err := database.ListCaptures(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != c.ID {
		t.Errorf("ListCaptures = %+v, want one entry %s", list, c.ID)
	}

	if _, err := database.GetCapture(ctx, "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing capture err = %v, want ErrNotFound", err)
	}
}

func TestAnnotationRoundTrip(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	c := insertTestCapture(t, database)

	snr := 18.5
	a := &batch.Annotation{
		CaptureID:      c.ID,
		SampleStart:    1000,
		SampleCount:    5000,
		EstimatedCFOHz: 1500,
		EstimatedSNRdB: &snr,
		ModulationType: "qpsk",
	}
	if err := database.InsertAnnotation(ctx, a); err != nil {
		t.Fatal(err)
	}

	got, err := database.GetAnnotation(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CaptureID != c.ID || got.SampleStart != 1000 || got.SampleCount != 5000 {
		t.Errorf("annotation range = %+v, want start 1000 count 5000", got)
	}
	if got.EstimatedSNRdB == nil || *got.EstimatedSNRdB != 18.5 {
		t.Errorf("snr = %v, want 18.5", got.EstimatedSNRdB)
	}
	// Sample-rate metadata comes from the capture join.
	if got.SampleRate != 100000 || got.Datatype != "cf32_le" {
		t.Errorf("joined metadata = rate %v dt %q, want 100000 / cf32_le", got.SampleRate, got.Datatype)
	}

	if _, err := database.GetAnnotation(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing annotation err = %v, want ErrNotFound", err)
	}
}

func TestAnnotationNullSNR(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	c := insertTestCapture(t, database)

	a := &batch.Annotation{CaptureID: c.ID, SampleStart: 0, SampleCount: 100, EstimatedCFOHz: 50}
	if err := database.InsertAnnotation(ctx, a); err != nil {
		t.Fatal(err)
	}
	got, err := database.GetAnnotation(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.EstimatedSNRdB != nil {
		t.Errorf("snr should be nil when unset, got %v", *got.EstimatedSNRdB)
	}
}

func TestUpdateAnnotationCFO(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	c := insertTestCapture(t, database)

	a := &batch.Annotation{CaptureID: c.ID, SampleStart: 0, SampleCount: 2000, EstimatedCFOHz: 1000}
	if err := database.InsertAnnotation(ctx, a); err != nil {
		t.Fatal(err)
	}

	upd := batch.CFOUpdate{
		TotalCFOHz:         1223.7,
		Method:             "costas",
		LockDetected:       true,
		PhaseErrorVariance: 0.012,
		LoopBandwidth:      0.005,
	}
	if err := database.UpdateAnnotationCFO(ctx, a.ID, upd); err != nil {
		t.Fatal(err)
	}

	got, err := database.GetAnnotation(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.EstimatedCFOHz != 1223.7 {
		t.Errorf("estimated_cfo_hz = %v, want refined value 1223.7", got.EstimatedCFOHz)
	}

	var method string
	var lock bool
	err = database.QueryRowContext(ctx,
		`SELECT cfo_method, cfo_lock FROM annotations WHERE id = ?`, a.ID).
		Scan(&method, &lock)
	if err != nil {
		t.Fatal(err)
	}
	if method != "costas" || !lock {
		t.Errorf("refinement metadata = %q/%v, want costas/true", method, lock)
	}

	if err := database.UpdateAnnotationCFO(ctx, "absent", upd); !errors.Is(err, ErrNotFound) {
		t.Errorf("update on missing annotation = %v, want ErrNotFound", err)
	}
}

func TestListAnnotationsOrder(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()
	c := insertTestCapture(t, database)

	for i := 0; i < 3; i++ {
		a := &batch.Annotation{CaptureID: c.ID, SampleStart: int64(i * 1000), SampleCount: 500, EstimatedCFOHz: 100}
		if err := database.InsertAnnotation(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
	list, err := database.ListAnnotations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("annotations = %d, want 3", len(list))
	}
	for i, a := range list {
		if a.SampleStart != int64(i*1000) {
			t.Errorf("annotation %d start = %d, want insertion order %d", i, a.SampleStart, i*1000)
		}
	}
}
