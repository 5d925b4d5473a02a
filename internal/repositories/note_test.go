package repositories

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(shared.MemoryDSN)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// steppedClock returns a clock that advances one second per call.
func steppedClock() func() time.Time {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func newTestRepo(t *testing.T) *NoteRepository {
	t.Helper()
	repo := NewNoteRepository(setupTestDB(t))
	repo.now = steppedClock()
	return repo
}

func mustCreate(t *testing.T, repo *NoteRepository, trackID, content string) *models.Note {
	t.Helper()
	note := models.NewNote(0, trackID, content)
	if err := repo.Create(context.Background(), note); err != nil {
		t.Fatalf("failed to create note: %v", err)
	}
	return note
}

func TestNoteRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		repo := newTestRepo(t)
		first := mustCreate(t, repo, "track1", "first")
		second := mustCreate(t, repo, "track1", "second")

		if first.ID() == "" || first.ID() == second.ID() {
			t.Errorf("expected distinct ids, got %q and %q", first.ID(), second.ID())
		}
		if first.Sequence() != 1 || second.Sequence() != 2 {
			t.Errorf("expected sequences 1 and 2, got %d and %d", first.Sequence(), second.Sequence())
		}
		if len(first.Reactions()) != 0 {
			t.Errorf("expected empty reactions, got %v", first.Reactions())
		}
	})

	t.Run("Create ValidationError", func(t *testing.T) {
		repo := newTestRepo(t)
		err := repo.Create(ctx, models.NewNote(0, "track1", "   "))
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := newTestRepo(t)
		note := mustCreate(t, repo, "track1", "hello")

		retrieved, err := repo.Get(ctx, note.ID())
		if err != nil {
			t.Fatalf("failed to get note: %v", err)
		}
		if retrieved.Content() != "hello" || retrieved.TrackID() != "track1" || !retrieved.Shared() {
			t.Errorf("unexpected note %+v", retrieved)
		}
		if !retrieved.CreatedAt().Equal(note.CreatedAt()) {
			t.Errorf("expected created_at %v, got %v", note.CreatedAt(), retrieved.CreatedAt())
		}

		if _, err := repo.Get(ctx, "missing"); !errors.Is(err, shared.ErrNoteNotFound) {
			t.Errorf("expected ErrNoteNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := newTestRepo(t)
		note := mustCreate(t, repo, "track1", "draft")

		note.SetContent("final")
		note.SetShared(false)
		if err := repo.Update(ctx, note); err != nil {
			t.Fatalf("failed to update note: %v", err)
		}

		retrieved, _ := repo.Get(ctx, note.ID())
		if retrieved.Content() != "final" || retrieved.Shared() {
			t.Errorf("unexpected note after update %+v", retrieved)
		}

		ghost := models.NewNote(0, "track1", "x")
		ghost.SetID("missing")
		if err := repo.Update(ctx, ghost); !errors.Is(err, shared.ErrNoteNotFound) {
			t.Errorf("expected ErrNoteNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := newTestRepo(t)
		note := mustCreate(t, repo, "track1", "bye")

		if err := repo.Delete(ctx, note.ID()); err != nil {
			t.Fatalf("failed to delete note: %v", err)
		}
		if _, err := repo.Get(ctx, note.ID()); !errors.Is(err, shared.ErrNoteNotFound) {
			t.Errorf("deleted note should not be found, got %v", err)
		}
		if err := repo.Delete(ctx, note.ID()); !errors.Is(err, shared.ErrNoteNotFound) {
			t.Errorf("deleting twice should fail with ErrNoteNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := newTestRepo(t)
		oldest := mustCreate(t, repo, "track1", "oldest")
		middle := mustCreate(t, repo, "track1", "middle")
		newest := mustCreate(t, repo, "track1", "newest")
		mustCreate(t, repo, "track2", "other track")

		private := mustCreate(t, repo, "track1", "private")
		private.SetShared(false)
		repo.Update(ctx, private)

		deleted := mustCreate(t, repo, "track1", "deleted")
		repo.Delete(ctx, deleted.ID())

		t.Run("newest first, shared only", func(t *testing.T) {
			notes, err := repo.List(ctx, map[string]any{"track_id": "track1"})
			if err != nil {
				t.Fatalf("failed to list notes: %v", err)
			}

			var got []string
			for _, n := range notes {
				got = append(got, n.ID())
			}
			want := []string{newest.ID(), middle.ID(), oldest.ID()}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("expected order %v, got %v", want, got)
			}
		})

		t.Run("include private", func(t *testing.T) {
			notes, _ := repo.List(ctx, map[string]any{"track_id": "track1", "include_private": true})
			if len(notes) != 4 {
				t.Errorf("expected 4 notes, got %d", len(notes))
			}
		})

		t.Run("limit", func(t *testing.T) {
			notes, _ := repo.List(ctx, map[string]any{"track_id": "track1", "limit": 1})
			if len(notes) != 1 || notes[0].ID() != newest.ID() {
				t.Errorf("expected only the newest note, got %d notes", len(notes))
			}
		})

		t.Run("all tracks", func(t *testing.T) {
			notes, _ := repo.List(ctx, nil)
			if len(notes) != 4 {
				t.Errorf("expected 4 shared notes across tracks, got %d", len(notes))
			}
		})

		t.Run("unknown track", func(t *testing.T) {
			notes, err := repo.List(ctx, map[string]any{"track_id": "nope"})
			if err != nil || len(notes) != 0 {
				t.Errorf("expected no notes, got %d, %v", len(notes), err)
			}
		})
	})
}

func TestToggleReaction(t *testing.T) {
	ctx := context.Background()

	t.Run("toggle on and off", func(t *testing.T) {
		repo := newTestRepo(t)
		note := mustCreate(t, repo, "track1", "hi")

		reactions, err := repo.ToggleReaction(ctx, note.ID(), "❤️", "u1")
		if err != nil {
			t.Fatalf("ToggleReaction() error = %v", err)
		}
		if reactions["❤️"] == nil || reactions["❤️"].Count != 1 {
			t.Fatalf("expected one heart, got %v", reactions)
		}

		reactions, _ = repo.ToggleReaction(ctx, note.ID(), "❤️", "u2")
		if reactions["❤️"].Count != 2 || !reflect.DeepEqual(reactions["❤️"].Users, []string{"u1", "u2"}) {
			t.Errorf("expected two hearts, got %+v", reactions["❤️"])
		}

		reactions, _ = repo.ToggleReaction(ctx, note.ID(), "❤️", "u1")
		reactions, _ = repo.ToggleReaction(ctx, note.ID(), "❤️", "u2")
		if _, ok := reactions["❤️"]; ok {
			t.Errorf("expected heart key removed at zero, got %v", reactions)
		}

		stored, _ := repo.Get(ctx, note.ID())
		if len(stored.Reactions()) != 0 {
			t.Errorf("expected no stored reactions, got %v", stored.Reactions())
		}
	})

	t.Run("double toggle round trips", func(t *testing.T) {
		repo := newTestRepo(t)
		note := mustCreate(t, repo, "track1", "hi")
		repo.ToggleReaction(ctx, note.ID(), "✨", "u1")
		repo.ToggleReaction(ctx, note.ID(), "😢", "u2")

		before, _ := repo.Get(ctx, note.ID())
		for _, emoji := range models.AvailableReactions {
			for _, user := range []string{"u1", "u2", "u3"} {
				repo.ToggleReaction(ctx, note.ID(), emoji, user)
				repo.ToggleReaction(ctx, note.ID(), emoji, user)

				after, _ := repo.Get(ctx, note.ID())
				if !reflect.DeepEqual(after.Reactions(), before.Reactions()) {
					t.Fatalf("toggle(%s, %s) twice changed %v to %v", emoji, user, before.Reactions(), after.Reactions())
				}
			}
		}
	})

	t.Run("reactions are listed with notes", func(t *testing.T) {
		repo := newTestRepo(t)
		a := mustCreate(t, repo, "track1", "a")
		b := mustCreate(t, repo, "track1", "b")
		repo.ToggleReaction(ctx, a.ID(), "🥺", "u1")

		notes, _ := repo.List(ctx, map[string]any{"track_id": "track1"})
		byID := map[string]*models.Note{}
		for _, n := range notes {
			byID[n.ID()] = n
		}
		if !byID[a.ID()].Reactions().Has("🥺", "u1") || len(byID[b.ID()].Reactions()) != 0 {
			t.Errorf("unexpected reactions a=%v b=%v", byID[a.ID()].Reactions(), byID[b.ID()].Reactions())
		}
	})

	t.Run("errors", func(t *testing.T) {
		repo := newTestRepo(t)
		note := mustCreate(t, repo, "track1", "hi")

		if _, err := repo.ToggleReaction(ctx, "missing", "✨", "u1"); !errors.Is(err, shared.ErrNoteNotFound) {
			t.Errorf("expected ErrNoteNotFound, got %v", err)
		}
		if _, err := repo.ToggleReaction(ctx, note.ID(), "", "u1"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := repo.ToggleReaction(ctx, note.ID(), "✨", ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}

		repo.Delete(ctx, note.ID())
		if _, err := repo.ToggleReaction(ctx, note.ID(), "✨", "u1"); !errors.Is(err, shared.ErrNoteNotFound) {
			t.Errorf("expected ErrNoteNotFound for deleted note, got %v", err)
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	if _, err := NextSequence(context.Background(), tx, "notes; DROP TABLE notes"); err == nil {
		t.Error("expected invalid table name to be rejected")
	}
	if _, err := NextSequence(context.Background(), tx, "missing"); err == nil {
		t.Error("expected error for table without sequence")
	}
}
