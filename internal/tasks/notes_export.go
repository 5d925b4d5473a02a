package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/vinyl/internal/formatter"
	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/shared"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for bulk note exports.
type BulkExportOpts struct {
	Format     string  // Export format: json, csv, markdown, txt
	OutputDir  string  // Base output directory (default: vinyl_notes_{epoch})
	NumWorkers int     // Concurrent workers (default: 5, max 10)
	RateLimit  float64 // Note fetches per second (default: 5)
}

type noteExportJob struct {
	step   int
	export *formatter.NotesExport
}

// BulkExport writes the notes of every track to its own file in opts.OutputDir, followed by
// an export_manifest.json summary.
//
// Note fetches are rate limited and files are written by a pool of workers. A track whose
// notes cannot be fetched or written is recorded as failed without stopping the others.
func BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	client NotesClient,
	tracks []models.Track,
	opts BulkExportOpts,
) (*formatter.BulkExportResult, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: notes client not initialized", shared.ErrMissingArgument)
	}
	if opts.Format == "" {
		opts.Format = "json"
	}
	if err := formatter.CheckFormat(opts.Format); err != nil {
		return nil, err
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("vinyl_notes_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 5
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	total := len(tracks)
	result := &formatter.BulkExportResult{
		TotalTracks:     total,
		OutputDirectory: opts.OutputDir,
		Results:         make([]formatter.TrackExportResult, 0, total),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan noteExportJob, total)
	results := make(chan formatter.TrackExportResult, total)

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go exportWorker(ctx, &wg, jobs, results, opts)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobs)
		sendProgress(prog, fetchingNotesUpdate(1, total))
		for i, track := range tracks {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			notes, err := client.Notes(ctx, track.ID)
			if err != nil {
				results <- formatter.TrackExportResult{
					TrackID:   track.ID,
					TrackName: trackName(track),
					Error:     fmt.Errorf("failed to fetch notes: %w", err),
				}
				continue
			}

			export := &formatter.NotesExport{
				TrackID:    track.ID,
				Track:      &track,
				Notes:      notes,
				ExportedAt: time.Now().UTC(),
			}
			jobs <- noteExportJob{step: i + 1, export: export}
			sendProgress(prog, exportingNotesUpdate(i+1, total, export.Title()))
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(completed, total, res.TrackName, res.NoteCount))
		} else {
			result.FailedExports++
			sendProgress(prog, exportFailedUpdate(completed, total, res.TrackName, res.Error))
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteBulkExportManifest(result, opts.Format, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

func trackName(t models.Track) string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("Unknown (%s)", t.ID)
}

// exportWorker writes exports from jobs until the channel closes.
func exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan noteExportJob,
	results chan<- formatter.TrackExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- exportTrackNotes(job.export, opts)
	}
}

func exportTrackNotes(export *formatter.NotesExport, opts BulkExportOpts) formatter.TrackExportResult {
	res := formatter.TrackExportResult{
		TrackID:   export.TrackID,
		TrackName: export.Title(),
		NoteCount: len(export.Notes),
	}

	path := filepath.Join(opts.OutputDir, export.TrackID+"_notes"+formatter.Extension(opts.Format))
	file, err := formatter.WriteExport(export, opts.Format, path)
	if err != nil {
		res.Error = fmt.Errorf("%s export failed: %w", opts.Format, err)
		return res
	}

	res.File = file
	res.Success = true
	return res
}
