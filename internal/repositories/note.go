package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/shared"
)

// NoteRepository implements [models.Repository] for [models.Note] persistence.
type NoteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ models.Repository[*models.Note] = (*NoteRepository)(nil)

// NewNoteRepository creates a new [NoteRepository] with the given database connection
func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func storeErr(action string, err error) error {
	return fmt.Errorf("%w: failed to %s: %v", shared.ErrStoreFailure, action, err)
}

// Create inserts a note with a generated ID and sequence and an empty reaction map.
func (r *NoteRepository) Create(ctx context.Context, note *models.Note) error {
	if err := note.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := r.now()
	id := shared.GenerateID()

	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		sequence, err := NextSequence(ctx, tx, "notes")
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO notes (id, sequence, track_id, content, is_shared, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, sequence, note.TrackID(), note.Content(), note.Shared(), now, now)
		if err != nil {
			return err
		}

		note.SetSequence(sequence)
		return nil
	})
	if err != nil {
		return storeErr("insert note", err)
	}

	note.SetID(id)
	note.SetCreatedAt(now)
	note.SetUpdatedAt(now)
	note.SetReactions(models.Reactions{})
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*models.Note, error) {
	var (
		id        string
		sequence  int
		trackID   string
		content   string
		isShared  bool
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)
	if err := row.Scan(&id, &sequence, &trackID, &content, &isShared, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}

	note := models.NewNote(sequence, trackID, content)
	note.SetID(id)
	note.SetShared(isShared)
	note.SetCreatedAt(createdAt)
	note.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		note.SetDeletedAt(&deletedAt.Time)
	}
	return note, nil
}

const noteColumns = `id, sequence, track_id, content, is_shared, created_at, updated_at, deleted_at`

// Get retrieves a note and its reactions by ID, excluding soft-deleted notes.
func (r *NoteRepository) Get(ctx context.Context, id string) (*models.Note, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ? AND deleted_at IS NULL`, id)
	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoteNotFound, id)
	}
	if err != nil {
		return nil, storeErr("query note", err)
	}

	reactions, err := r.loadReactions(ctx, r.db, []string{id})
	if err != nil {
		return nil, err
	}
	note.SetReactions(reactions[id])
	return note, nil
}

// Update modifies a note's content and visibility.
func (r *NoteRepository) Update(ctx context.Context, note *models.Note) error {
	if err := note.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := r.now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE notes
		SET content = ?, is_shared = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, note.Content(), note.Shared(), now, note.ID())
	if err != nil {
		return storeErr("update note", err)
	}

	if err := expectOneRow(result, note.ID()); err != nil {
		return err
	}
	note.SetUpdatedAt(now)
	return nil
}

// Delete soft-deletes a note by ID
func (r *NoteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE notes SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, r.now(), id)
	if err != nil {
		return storeErr("delete note", err)
	}
	return expectOneRow(result, id)
}

func expectOneRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return storeErr("get affected rows", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrNoteNotFound, id)
	}
	return nil
}

// List retrieves notes newest first. Criteria:
//   - "track_id" (string): only notes on this track
//   - "include_private" (bool): also return notes that are not shared
//   - "limit" (int): at most this many notes
func (r *NoteRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE deleted_at IS NULL`
	args := []any{}

	if trackID, ok := criteria["track_id"].(string); ok && trackID != "" {
		query += " AND track_id = ?"
		args = append(args, trackID)
	}
	if includePrivate, _ := criteria["include_private"].(bool); !includePrivate {
		query += " AND is_shared = 1"
	}

	query += " ORDER BY created_at DESC, sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query notes", err)
	}
	defer rows.Close()

	var (
		notes []*models.Note
		ids   []string
	)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, storeErr("scan note", err)
		}
		notes = append(notes, note)
		ids = append(ids, note.ID())
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate notes", err)
	}
	rows.Close()

	reactions, err := r.loadReactions(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for _, note := range notes {
		note.SetReactions(reactions[note.ID()])
	}
	return notes, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadReactions folds reaction rows into one tally per note id.
func (r *NoteRepository) loadReactions(ctx context.Context, q queryer, noteIDs []string) (map[string]models.Reactions, error) {
	out := make(map[string]models.Reactions, len(noteIDs))
	if len(noteIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(noteIDs)), ",")
	args := make([]any, len(noteIDs))
	for i, id := range noteIDs {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx,
		`SELECT note_id, emoji, user_id FROM note_reactions WHERE note_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, storeErr("query reactions", err)
	}
	defer rows.Close()

	for rows.Next() {
		var noteID, emoji, userID string
		if err := rows.Scan(&noteID, &emoji, &userID); err != nil {
			return nil, storeErr("scan reaction", err)
		}
		if out[noteID] == nil {
			out[noteID] = models.Reactions{}
		}
		out[noteID].Toggle(emoji, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate reactions", err)
	}
	return out, nil
}

// ToggleReaction flips userID's emoji reaction on a note and returns the note's resulting tally.
func (r *NoteRepository) ToggleReaction(ctx context.Context, noteID, emoji, userID string) (models.Reactions, error) {
	switch {
	case noteID == "":
		return nil, fmt.Errorf("%w: noteId", shared.ErrMissingArgument)
	case emoji == "":
		return nil, fmt.Errorf("%w: emoji", shared.ErrMissingArgument)
	case userID == "":
		return nil, fmt.Errorf("%w: userId", shared.ErrMissingArgument)
	}

	var result models.Reactions
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM notes WHERE id = ? AND deleted_at IS NULL)`, noteID).Scan(&exists)
		if err != nil {
			return storeErr("check note", err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", shared.ErrNoteNotFound, noteID)
		}

		all, err := r.loadReactions(ctx, tx, []string{noteID})
		if err != nil {
			return err
		}
		reactions := all[noteID]
		if reactions == nil {
			reactions = models.Reactions{}
		}

		if reactions.Toggle(emoji, userID) {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO note_reactions (note_id, emoji, user_id, created_at) VALUES (?, ?, ?, ?)`,
				noteID, emoji, userID, r.now())
		} else {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM note_reactions WHERE note_id = ? AND emoji = ? AND user_id = ?`,
				noteID, emoji, userID)
		}
		if err != nil {
			return storeErr("write reaction", err)
		}

		result = reactions
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrNoteNotFound) || errors.Is(err, shared.ErrStoreFailure) {
			return nil, err
		}
		return nil, storeErr("toggle reaction", err)
	}
	return result, nil
}
