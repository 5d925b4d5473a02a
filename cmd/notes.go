package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/vinyl/internal/formatter"
	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/desertthunder/vinyl/internal/tasks"
	"github.com/urfave/cli/v3"
)

// trackArg resolves --track, falling back to whatever is playing now.
func (r *Runner) trackArg(ctx context.Context, cmd *cli.Command) (string, *models.Track, error) {
	if id := cmd.String("track"); id != "" {
		return strings.TrimPrefix(id, "spotify:track:"), nil, nil
	}

	snap, err := r.api.Current(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read current track: %w", err)
	}
	if snap.Empty() {
		return "", nil, fmt.Errorf("%w: nothing is playing, pass --track", shared.ErrMissingArgument)
	}
	return snap.TrackID, snap.Track, nil
}

// NotesList prints the notes on a track, oldest first.
func (r *Runner) NotesList(ctx context.Context, cmd *cli.Command) error {
	trackID, track, err := r.trackArg(ctx, cmd)
	if err != nil {
		return err
	}

	notes, err := r.api.Notes(ctx, trackID)
	if err != nil {
		return fmt.Errorf("failed to list notes: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(notes, true)
	}

	title := trackID
	if track != nil {
		title = (&formatter.NotesExport{TrackID: trackID, Track: track}).Title()
	}
	r.writePlainHeader(fmt.Sprintf("Notes on %s (%d)", title, len(notes)))
	if len(notes) == 0 {
		return r.writePlain("No notes yet. Add one with 'vinyl notes add'.\n")
	}

	for _, note := range notes {
		r.writePlain("%s  %s\n", note.CreatedAt().Local().Format("2006-01-02 15:04"), note.Content())
		line := []string{"    id " + note.ID()}
		for _, emoji := range models.AvailableReactions {
			if reaction, ok := note.Reactions()[emoji]; ok && reaction.Count > 0 {
				line = append(line, fmt.Sprintf("%s %d", emoji, reaction.Count))
			}
		}
		r.writePlain("%s\n", strings.Join(line, "  "))
	}
	return nil
}

// NotesAdd leaves a note on a track.
func (r *Runner) NotesAdd(ctx context.Context, cmd *cli.Command) error {
	content := strings.TrimSpace(cmd.StringArg("content"))
	if content == "" {
		return fmt.Errorf("%w: note content", shared.ErrMissingArgument)
	}

	trackID, _, err := r.trackArg(ctx, cmd)
	if err != nil {
		return err
	}

	id, err := r.api.AddNote(ctx, trackID, content)
	if err != nil {
		return fmt.Errorf("failed to add note: %w", err)
	}

	r.logger.Debug("note added", "id", id, "track", trackID)
	return r.writePlain("✓ Note %s added to %s\n", id, trackID)
}

// parseReaction accepts an emoji from the palette or its 1-based position in it.
func parseReaction(raw string) (string, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 1 || n > len(models.AvailableReactions) {
			return "", fmt.Errorf("%w: reaction %d (want 1-%d)", shared.ErrInvalidInput, n, len(models.AvailableReactions))
		}
		return models.AvailableReactions[n-1], nil
	}
	if !models.IsAvailableReaction(raw) {
		return "", fmt.Errorf("%w: reaction %q (want one of %s)", shared.ErrInvalidInput, raw, strings.Join(models.AvailableReactions, " "))
	}
	return raw, nil
}

// NotesReact toggles the listener's reaction on a note.
func (r *Runner) NotesReact(ctx context.Context, cmd *cli.Command) error {
	noteID := cmd.StringArg("note-id")
	if noteID == "" {
		return fmt.Errorf("%w: note id", shared.ErrMissingArgument)
	}
	emoji, err := parseReaction(cmd.StringArg("emoji"))
	if err != nil {
		return err
	}

	userID := r.userID()
	if userID == "" {
		return fmt.Errorf("%w: set client.user_id or run 'vinyl login'", shared.ErrMissingArgument)
	}

	reactions, err := r.api.React(ctx, noteID, emoji, userID)
	if err != nil {
		return fmt.Errorf("failed to react: %w", err)
	}

	state := "removed"
	if reactions.Has(emoji, userID) {
		state = "added"
	}
	count := 0
	if reaction, ok := reactions[emoji]; ok {
		count = reaction.Count
	}
	return r.writePlain("✓ %s %s (%d)\n", emoji, state, count)
}

// NotesExport writes notes to disk, for one track or every track of a playlist.
func (r *Runner) NotesExport(ctx context.Context, cmd *cli.Command) error {
	format := cmd.String("format")
	if err := formatter.CheckFormat(format); err != nil {
		return err
	}

	if cmd.Bool("all") {
		return r.exportPlaylistNotes(ctx, cmd, format)
	}

	trackID, track, err := r.trackArg(ctx, cmd)
	if err != nil {
		return err
	}
	notes, err := r.api.Notes(ctx, trackID)
	if err != nil {
		return fmt.Errorf("failed to fetch notes: %w", err)
	}

	export := &formatter.NotesExport{TrackID: trackID, Track: track, Notes: notes, ExportedAt: time.Now().UTC()}
	path, err := formatter.WriteExport(export, format, cmd.String("output"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Exported %d notes to %s\n", len(notes), path)
}

func (r *Runner) exportPlaylistNotes(ctx context.Context, cmd *cli.Command, format string) error {
	playlistID := cmd.String("playlist-id")
	if playlistID == "" {
		playlistID = r.config.Player.PlaylistID
	}
	allowed, err := models.NewAllowedContext(playlistID)
	if err != nil {
		return fmt.Errorf("%w: playlist id: %v", shared.ErrInvalidFlag, err)
	}

	playlist, err := r.api.Playlist(ctx, allowed.PlaylistID)
	if err != nil {
		return fmt.Errorf("failed to fetch playlist: %w", err)
	}

	r.writePlainHeader(fmt.Sprintf("Exporting notes for %s (%d tracks)", playlist.Name, len(playlist.Tracks)))

	progress := make(chan tasks.ProgressUpdate, 32)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
		}
	}()

	result, err := tasks.BulkExport(ctx, progress, r.api, playlist.Tracks, tasks.BulkExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
	})
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlainln("✓ Exported %d/%d tracks to %s", result.SuccessfulExports, result.TotalTracks, result.OutputDirectory)
	if result.FailedExports > 0 {
		r.writePlain("✗ %d tracks failed, see %s\n", result.FailedExports, result.ManifestPath)
	}
	return nil
}
