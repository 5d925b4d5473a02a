package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/shared"
	th "github.com/desertthunder/vinyl/internal/testing"
)

func sampleExport() *NotesExport {
	first := models.NewNote(1, "track1", "the bridge, at 2:10")
	first.SetID("note-1")
	first.SetCreatedAt(time.Date(2025, 3, 1, 20, 15, 0, 0, time.UTC))
	reactions := models.Reactions{}
	reactions.Toggle("✨", "u1")
	reactions.Toggle("✨", "u2")
	reactions.Toggle("❤️", "u1")
	first.SetReactions(reactions)

	second := models.NewNote(2, "track1", "needle drop, \"quoted\"")
	second.SetID("note-2")
	second.SetCreatedAt(time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC))

	return &NotesExport{
		TrackID: "track1",
		Track: &models.Track{
			ID:      "track1",
			Name:    "Song One",
			Artists: []models.Artist{{Name: "Artist One"}},
			Album:   models.Album{Name: "Album One", Images: []models.Image{{URL: "https://img.example/cover.jpg"}}},
		},
		Notes:      []*models.Note{second, first},
		ExportedAt: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
		}
		if lines[0] != "ID,Track,Timestamp,Content,Reactions" {
			t.Errorf("unexpected header %q", lines[0])
		}
		if !strings.Contains(lines[1], `"needle drop, ""quoted"""`) {
			t.Errorf("expected quoted content, got %q", lines[1])
		}
		if !strings.Contains(lines[2], "❤️ 1 ✨ 2") {
			t.Errorf("expected reactions in palette order, got %q", lines[2])
		}
		if !strings.Contains(lines[2], "2025-03-01T20:15:00Z") {
			t.Errorf("expected RFC3339 timestamp, got %q", lines[2])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		t.Run("with track", func(t *testing.T) {
			data, err := ExportToMarkdown(sampleExport())
			if err != nil {
				t.Fatalf("ExportToMarkdown failed: %v", err)
			}
			content := string(data)
			for _, want := range []string{
				"# Artist One - Song One",
				"![Cover](https://img.example/cover.jpg)",
				"**Album**: Album One",
				"**Notes**: 2",
				"- the bridge, at 2:10 (2025-03-01 20:15) ❤️ 1 ✨ 2",
			} {
				if !strings.Contains(content, want) {
					t.Errorf("markdown missing %q:\n%s", want, content)
				}
			}
		})

		t.Run("without track", func(t *testing.T) {
			export := sampleExport()
			export.Track = nil
			data, _ := ExportToMarkdown(export)
			if !strings.HasPrefix(string(data), "# track1\n") {
				t.Errorf("expected track id title, got %q", string(data))
			}
			if strings.Contains(string(data), "Cover") {
				t.Error("expected no cover without track")
			}
		})
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleExport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}
		content := string(data)
		if !strings.Contains(content, "Track: Artist One - Song One\nNotes: 2\n") {
			t.Errorf("unexpected header: %s", content)
		}
		if !strings.Contains(content, "1. needle drop") || !strings.Contains(content, "2. the bridge") {
			t.Errorf("unexpected body: %s", content)
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(sampleExport())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}
		var decoded struct {
			TrackID string            `json:"trackId"`
			Notes   []json.RawMessage `json:"notes"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.TrackID != "track1" || len(decoded.Notes) != 2 {
			t.Errorf("unexpected decode %+v", decoded)
		}
		if !strings.Contains(string(decoded.Notes[1]), `"reactions"`) {
			t.Errorf("expected note reactions, got %s", decoded.Notes[1])
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := Export(sampleExport(), "xml"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
		if err := CheckFormat("markdown"); err != nil {
			t.Errorf("markdown should be valid: %v", err)
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			for _, format := range Formats {
				path, err := WriteExport(sampleExport(), format, "")
				if err != nil {
					t.Fatalf("WriteExport(%s) failed: %v", format, err)
				}
				if path != "track1_notes"+Extension(format) {
					t.Errorf("unexpected default path %s", path)
				}
				th.AssertFileExists(t, path)
			}
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "notes.md")
			got, err := WriteExport(sampleExport(), "markdown", path)
			if err != nil {
				t.Fatalf("WriteExport failed: %v", err)
			}
			if got != path {
				t.Errorf("expected %s, got %s", path, got)
			}
			if !strings.Contains(th.MustReadFile(t, path), "## Notes") {
				t.Error("expected markdown content")
			}
		})
	})

	t.Run("WriteBulkExportManifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "export_manifest.json")
		result := &BulkExportResult{
			TotalTracks:       2,
			SuccessfulExports: 1,
			FailedExports:     1,
			Results: []TrackExportResult{
				{TrackID: "track1", TrackName: "Song One", NoteCount: 2, Success: true, File: "track1_notes.csv"},
				{TrackID: "track2", TrackName: "Song Two", Error: errors.New("network timeout")},
			},
		}

		if err := WriteBulkExportManifest(result, "csv", path); err != nil {
			t.Fatalf("WriteBulkExportManifest failed: %v", err)
		}

		content := th.MustReadFile(t, path)
		for _, want := range []string{`"format": "csv"`, `"total_tracks": 2`, `"status": "success"`, `"status": "failed"`, `"error": "network timeout"`} {
			if !strings.Contains(content, want) {
				t.Errorf("manifest missing %s:\n%s", want, content)
			}
		}
	})
}

func TestFormatProgress(t *testing.T) {
	for ms, want := range map[int]string{0: "0:00", 61000: "1:01", 600500: "10:00", -5: "0:00"} {
		if got := FormatProgress(ms); got != want {
			t.Errorf("FormatProgress(%d) = %q, want %q", ms, got, want)
		}
	}
}
