// package formatter exports the notes left on tracks to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/shared"
)

// Formats lists the supported export formats.
var Formats = []string{"json", "csv", "markdown", "txt"}

// NotesExport is the set of notes left on one track.
type NotesExport struct {
	TrackID    string         `json:"trackId"`
	Track      *models.Track  `json:"track,omitempty"`
	Notes      []*models.Note `json:"notes"`
	ExportedAt time.Time      `json:"exportedAt"`
}

// Title names the export after its track when known.
func (e *NotesExport) Title() string {
	if e.Track != nil && e.Track.Name != "" {
		if artists := e.Track.ArtistNames(); artists != "" {
			return artists + " - " + e.Track.Name
		}
		return e.Track.Name
	}
	return e.TrackID
}

// Extension returns the file extension used for format.
func Extension(format string) string {
	switch format {
	case "markdown":
		return ".md"
	case "csv", "txt":
		return "." + format
	default:
		return ".json"
	}
}

// CheckFormat rejects formats other than [Formats].
func CheckFormat(format string) error {
	if !slices.Contains(Formats, format) {
		return fmt.Errorf("%w: format %q (want one of %s)", shared.ErrInvalidFlag, format, strings.Join(Formats, ", "))
	}
	return nil
}

// reactionSummary renders reactions in the fixed palette order, e.g. "❤️ 2 ✨ 1".
func reactionSummary(r models.Reactions) string {
	var parts []string
	for _, emoji := range models.AvailableReactions {
		if reaction, ok := r[emoji]; ok && reaction.Count > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", emoji, reaction.Count))
		}
	}
	return strings.Join(parts, " ")
}

// ExportToCSV converts a NotesExport to CSV format with columns: ID, Track, Timestamp, Content, Reactions
func ExportToCSV(export *NotesExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Track", "Timestamp", "Content", "Reactions"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, note := range export.Notes {
		record := []string{
			note.ID(),
			note.TrackID(),
			note.CreatedAt().UTC().Format(time.RFC3339),
			note.Content(),
			reactionSummary(note.Reactions()),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a NotesExport to Markdown with the album cover when the track is known
func ExportToMarkdown(export *NotesExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Title())

	if export.Track != nil {
		if cover := export.Track.Cover(); cover != "" {
			fmt.Fprintf(&buf, "![Cover](%s)\n\n", cover)
		}
		if export.Track.Album.Name != "" {
			fmt.Fprintf(&buf, "**Album**: %s\n", export.Track.Album.Name)
		}
	}
	fmt.Fprintf(&buf, "**Notes**: %d\n\n", len(export.Notes))

	buf.WriteString("## Notes\n\n")
	for _, note := range export.Notes {
		fmt.Fprintf(&buf, "- %s (%s)", note.Content(), note.CreatedAt().UTC().Format("2006-01-02 15:04"))
		if summary := reactionSummary(note.Reactions()); summary != "" {
			fmt.Fprintf(&buf, " %s", summary)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a NotesExport to plain text format
func ExportToText(export *NotesExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Track: %s\n", export.Title())
	fmt.Fprintf(&buf, "Notes: %d\n\n", len(export.Notes))

	for i, note := range export.Notes {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, note.Content())
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a NotesExport to indented JSON
func ExportToJSON(export *NotesExport) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Export renders export in format.
func Export(export *NotesExport, format string) ([]byte, error) {
	switch format {
	case "csv":
		return ExportToCSV(export)
	case "markdown":
		return ExportToMarkdown(export)
	case "txt":
		return ExportToText(export)
	case "json":
		return ExportToJSON(export)
	default:
		return nil, CheckFormat(format)
	}
}

// WriteExport writes export in format to path.
//
// Defaults to {trackID}_notes{ext} in the working directory.
func WriteExport(export *NotesExport, format, path string) (string, error) {
	if path == "" {
		path = export.TrackID + "_notes" + Extension(format)
	}

	data, err := Export(export, format)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return path, nil
}

// TrackExportResult is the outcome of exporting one track's notes.
type TrackExportResult struct {
	TrackID   string
	TrackName string
	NoteCount int
	Success   bool
	File      string
	Error     error
}

// BulkExportResult summarises a multi-track export.
type BulkExportResult struct {
	TotalTracks       int
	SuccessfulExports int
	FailedExports     int
	Results           []TrackExportResult
	OutputDirectory   string
	ManifestPath      string
}

type manifestEntry struct {
	TrackID   string `json:"track_id"`
	TrackName string `json:"track_name"`
	Notes     int    `json:"notes"`
	Status    string `json:"status"`
	File      string `json:"file,omitempty"`
	Error     string `json:"error,omitempty"`
}

type manifest struct {
	Format            string          `json:"format"`
	ExportedAt        time.Time       `json:"exported_at"`
	TotalTracks       int             `json:"total_tracks"`
	SuccessfulExports int             `json:"successful_exports"`
	FailedExports     int             `json:"failed_exports"`
	Tracks            []manifestEntry `json:"tracks"`
}

// WriteBulkExportManifest writes a JSON manifest describing a bulk export.
func WriteBulkExportManifest(result *BulkExportResult, format, path string) error {
	m := manifest{
		Format:            format,
		ExportedAt:        time.Now().UTC(),
		TotalTracks:       result.TotalTracks,
		SuccessfulExports: result.SuccessfulExports,
		FailedExports:     result.FailedExports,
		Tracks:            make([]manifestEntry, 0, len(result.Results)),
	}

	for _, r := range result.Results {
		entry := manifestEntry{
			TrackID:   r.TrackID,
			TrackName: r.TrackName,
			Notes:     r.NoteCount,
			Status:    "success",
			File:      r.File,
		}
		if !r.Success {
			entry.Status = "failed"
		}
		if r.Error != nil {
			entry.Error = r.Error.Error()
		}
		m.Tracks = append(m.Tracks, entry)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// FormatProgress renders a track position as m:ss.
func FormatProgress(ms int) string {
	if ms < 0 {
		ms = 0
	}
	seconds := ms / 1000
	return strconv.Itoa(seconds/60) + ":" + fmt.Sprintf("%02d", seconds%60)
}
