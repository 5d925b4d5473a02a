package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/shared"
)

type fakeNotes struct {
	mu    sync.Mutex
	notes map[string][]*models.Note
	fail  map[string]error
	calls int
}

func (f *fakeNotes) Notes(ctx context.Context, trackID string) ([]*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.fail[trackID]; err != nil {
		return nil, err
	}
	return f.notes[trackID], nil
}

func newFakeNotes() *fakeNotes {
	n1 := models.NewNote(1, "t1", "needle drop")
	n1.SetID("n1")
	n2 := models.NewNote(2, "t1", "the bridge")
	n2.SetID("n2")
	n3 := models.NewNote(1, "t2", "crackle")
	n3.SetID("n3")
	return &fakeNotes{
		notes: map[string][]*models.Note{"t1": {n1, n2}, "t2": {n3}},
		fail:  map[string]error{},
	}
}

func TestBulkExport(t *testing.T) {
	tracks := []models.Track{
		{ID: "t1", Name: "Side A"},
		{ID: "t2", Name: "Side B"},
		{ID: "t3", Name: "Hidden Track"},
	}

	t.Run("formats", func(t *testing.T) {
		tc := []struct {
			format string
			ext    string
		}{
			{format: "json", ext: ".json"},
			{format: "csv", ext: ".csv"},
			{format: "markdown", ext: ".md"},
			{format: "txt", ext: ".txt"},
		}

		for _, tt := range tc {
			t.Run(tt.format, func(t *testing.T) {
				dir := t.TempDir()
				result, err := BulkExport(context.Background(), nil, newFakeNotes(), tracks, BulkExportOpts{
					Format:     tt.format,
					OutputDir:  dir,
					NumWorkers: 2,
					RateLimit:  1000,
				})
				if err != nil {
					t.Fatalf("BulkExport() error = %v", err)
				}

				if result.TotalTracks != 3 || result.SuccessfulExports != 3 || result.FailedExports != 0 {
					t.Errorf("unexpected counts %+v", result)
				}
				for _, id := range []string{"t1", "t2", "t3"} {
					path := filepath.Join(dir, id+"_notes"+tt.ext)
					if _, err := os.Stat(path); err != nil {
						t.Errorf("expected %s: %v", path, err)
					}
				}
				if result.ManifestPath != filepath.Join(dir, "export_manifest.json") {
					t.Errorf("unexpected manifest path %q", result.ManifestPath)
				}
			})
		}
	})

	t.Run("partial failure", func(t *testing.T) {
		notes := newFakeNotes()
		notes.fail["t2"] = shared.ErrRateLimited
		dir := t.TempDir()

		result, err := BulkExport(context.Background(), nil, notes, tracks, BulkExportOpts{OutputDir: dir, RateLimit: 1000})
		if err != nil {
			t.Fatalf("BulkExport() error = %v", err)
		}
		if result.SuccessfulExports != 2 || result.FailedExports != 1 {
			t.Errorf("unexpected counts %+v", result)
		}
		for _, res := range result.Results {
			if res.TrackID == "t2" && (res.Success || !errors.Is(res.Error, shared.ErrRateLimited)) {
				t.Errorf("unexpected t2 result %+v", res)
			}
			if res.TrackID == "t1" && res.NoteCount != 2 {
				t.Errorf("expected 2 notes for t1, got %d", res.NoteCount)
			}
		}

		data, err := os.ReadFile(result.ManifestPath)
		if err != nil {
			t.Fatalf("manifest not written: %v", err)
		}
		var manifest map[string]any
		if err := json.Unmarshal(data, &manifest); err != nil {
			t.Fatalf("manifest is not JSON: %v", err)
		}
		if manifest["failed_exports"] != float64(1) {
			t.Errorf("expected failed_exports 1, got %v", manifest["failed_exports"])
		}
	})

	t.Run("progress", func(t *testing.T) {
		prog := make(chan ProgressUpdate, 32)
		_, err := BulkExport(context.Background(), prog, newFakeNotes(), tracks[:2], BulkExportOpts{OutputDir: t.TempDir(), RateLimit: 1000})
		if err != nil {
			t.Fatalf("BulkExport() error = %v", err)
		}
		close(prog)

		var completed int
		for u := range prog {
			if u.Phase != ExportNotes {
				t.Errorf("unexpected phase %s", u.Phase)
			}
			if strings.Contains(u.Message, "✓") {
				completed++
			}
		}
		if completed != 2 {
			t.Errorf("expected 2 completion updates, got %d", completed)
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := BulkExport(context.Background(), nil, newFakeNotes(), tracks, BulkExportOpts{Format: "xml", OutputDir: t.TempDir()})
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("nil client", func(t *testing.T) {
		if _, err := BulkExport(context.Background(), nil, nil, tracks, BulkExportOpts{}); err == nil {
			t.Error("expected error for nil client")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := BulkExport(ctx, nil, newFakeNotes(), tracks, BulkExportOpts{OutputDir: t.TempDir()})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
