package ui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/tasks"
)

type fakePlayer struct {
	mu    sync.Mutex
	view  tasks.View
	calls []string
	kicks int
}

func (p *fakePlayer) record(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, name)
	return nil
}

func (p *fakePlayer) View() tasks.View                        { return p.view }
func (p *fakePlayer) Kick()                                   { p.kicks++ }
func (p *fakePlayer) Toggle(ctx context.Context) error        { return p.record("toggle") }
func (p *fakePlayer) Next(ctx context.Context) error          { return p.record("next") }
func (p *fakePlayer) Previous(ctx context.Context) error      { return p.record("previous") }
func (p *fakePlayer) StartPlaylist(ctx context.Context) error { return p.record("start") }
func (p *fakePlayer) PlayTrack(ctx context.Context, trackURI string, positionMS int) error {
	return p.record("play " + trackURI)
}

type fakeNotes struct {
	notes   map[string][]*models.Note
	added   []string
	reacted []string
}

func (f *fakeNotes) Notes(ctx context.Context, trackID string) ([]*models.Note, error) {
	return f.notes[trackID], nil
}

func (f *fakeNotes) AddNote(ctx context.Context, trackID, content string) (string, error) {
	f.added = append(f.added, trackID+":"+content)
	return "n9", nil
}

func (f *fakeNotes) React(ctx context.Context, noteID, emoji, userID string) (models.Reactions, error) {
	f.reacted = append(f.reacted, noteID+emoji+userID)
	r := models.Reactions{}
	r.Toggle(emoji, userID)
	return r, nil
}

type fakeLibrary struct {
	saved map[string]bool
	calls []string
}

func (f *fakeLibrary) Saved(ctx context.Context, ids []string) ([]bool, error) {
	out := make([]bool, len(ids))
	for i, id := range ids {
		out[i] = f.saved[id]
	}
	return out, nil
}

func (f *fakeLibrary) Save(ctx context.Context, ids []string) error {
	f.calls = append(f.calls, "save "+ids[0])
	f.saved[ids[0]] = true
	return nil
}

func (f *fakeLibrary) Unsave(ctx context.Context, ids []string) error {
	f.calls = append(f.calls, "unsave "+ids[0])
	delete(f.saved, ids[0])
	return nil
}

func playingView() tasks.View {
	track := &models.Track{
		ID:         "t1",
		URI:        "spotify:track:t1",
		Name:       "Blue in Green",
		DurationMS: 200000,
		Artists:    []models.Artist{{Name: "Miles Davis"}},
	}
	return tasks.View{
		State:      tasks.Idle,
		Snapshot:   models.NewPlaybackSnapshot(track, &models.Device{ID: "d1", Name: "Den"}, true, 1000, "", time.Unix(0, 0)),
		DeviceID:   "d1",
		InPlaylist: true,
		Queue:      models.Queue{Next: &models.Track{Name: "All Blues"}},
	}
}

func newTestModel(view tasks.View) (*Model, *fakePlayer, *fakeNotes) {
	note := models.NewNote(1, "t1", "that piano intro")
	note.SetID("n1")
	notes := &fakeNotes{notes: map[string][]*models.Note{"t1": {note}}}
	player := &fakePlayer{view: view}
	m := NewModel(context.Background(), player, notes, nil, Options{
		UserID: "u1",
		Now:    func() time.Time { return time.Unix(0, 0) },
	})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, player, notes
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// deliver runs cmd and feeds its message back into the model.
func deliver(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	m.Update(cmd())
}

// loadNotes simulates the loop reporting view and the notes arriving for its track.
func loadNotes(t *testing.T, m *Model, view tasks.View) {
	t.Helper()
	m.Update(progressUpdateMsg(tasks.ProgressUpdate{Phase: tasks.Poll, Message: "poll", Data: view}))
	m.Update(notesFetchedMsg(view.Snapshot.TrackID, m.notes.(*fakeNotes).notes[view.Snapshot.TrackID], nil))
}

func TestModelView(t *testing.T) {
	t.Run("connect prompt", func(t *testing.T) {
		m, _, _ := newTestModel(tasks.View{State: tasks.Unauthenticated})
		if out := m.View(); !strings.Contains(out, "vinyl login") {
			t.Errorf("expected login instructions, got:\n%s", out)
		}
	})

	t.Run("device instructions", func(t *testing.T) {
		m, _, _ := newTestModel(tasks.View{
			State:   tasks.AwaitingDevice,
			Devices: []models.Device{{Name: "Laptop", Type: "Computer"}},
		})
		out := m.View()
		if !strings.Contains(out, "No Spotify device found") || !strings.Contains(out, "Laptop") {
			t.Errorf("expected device instructions, got:\n%s", out)
		}
	})

	t.Run("turntable", func(t *testing.T) {
		m, _, _ := newTestModel(playingView())
		loadNotes(t, m, playingView())
		out := m.View()
		for _, want := range []string{"Blue in Green", "Miles Davis", "on Den", "All Blues", "that piano intro", "0:01"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in view:\n%s", want, out)
			}
		}
	})

	t.Run("start listening", func(t *testing.T) {
		m, _, _ := newTestModel(tasks.View{State: tasks.Idle})
		if out := m.View(); !strings.Contains(out, "start listening") {
			t.Errorf("expected start listening affordance, got:\n%s", out)
		}
	})

	t.Run("intent banner", func(t *testing.T) {
		view := playingView()
		view.InPlaylist = false
		view.Intent = models.NewTransitionIntent(models.IntentOutOfPlaylist, "Back to the record", "t1", time.Unix(0, 0), 5*time.Second)
		m, _, _ := newTestModel(view)

		out := m.View()
		if !strings.Contains(out, "Back to the record") || !strings.Contains(out, "off the record") {
			t.Errorf("expected banner, got:\n%s", out)
		}

		m.Update(tickMsg(time.Unix(10, 0)))
		if strings.Contains(m.View(), "Back to the record") {
			t.Error("expected banner to expire")
		}
	})
}

func TestModelUpdate(t *testing.T) {
	t.Run("transport keys", func(t *testing.T) {
		m, player, _ := newTestModel(playingView())

		for _, k := range []tea.KeyMsg{{Type: tea.KeySpace}, runes("n"), runes("p"), runes("s")} {
			_, cmd := m.Update(k)
			deliver(t, m, cmd)
		}
		want := []string{"toggle", "next", "previous", "start"}
		if strings.Join(player.calls, ",") != strings.Join(want, ",") {
			t.Errorf("calls = %v, want %v", player.calls, want)
		}
	})

	t.Run("keys ignored while unauthenticated", func(t *testing.T) {
		m, player, _ := newTestModel(tasks.View{State: tasks.Unauthenticated})
		if _, cmd := m.Update(runes("n")); cmd != nil {
			t.Error("expected no command")
		}
		if len(player.calls) != 0 {
			t.Errorf("unexpected calls %v", player.calls)
		}
	})

	t.Run("connect", func(t *testing.T) {
		m, player, _ := newTestModel(tasks.View{State: tasks.Unauthenticated})
		connected := false
		m.opts.Connect = func(context.Context) error { connected = true; return nil }

		_, cmd := m.Update(runes("c"))
		deliver(t, m, cmd)
		if !connected || player.kicks != 1 {
			t.Errorf("expected connect and kick, got %v %d", connected, player.kicks)
		}
	})

	t.Run("like", func(t *testing.T) {
		m, _, _ := newTestModel(tasks.View{State: tasks.Idle})
		library := &fakeLibrary{saved: map[string]bool{}}
		m.opts.Library = library

		if _, cmd := m.Update(runes("l")); cmd != nil {
			t.Fatal("expected no like without a track")
		}

		m.Update(progressUpdateMsg(tasks.ProgressUpdate{Data: playingView()}))
		if m.savedTrackID != "t1" {
			t.Fatalf("expected saved lookup for t1, got %q", m.savedTrackID)
		}
		m.Update(savedFetchedMsg("t1", false, nil))

		_, cmd := m.Update(runes("l"))
		deliver(t, m, cmd)
		if !m.saved || m.status != "Saved to your library" {
			t.Errorf("expected track saved, got %v %q", m.saved, m.status)
		}
		if out := m.View(); !strings.Contains(out, "♥") {
			t.Errorf("expected heart on saved track, got:\n%s", out)
		}

		_, cmd = m.Update(runes("l"))
		deliver(t, m, cmd)
		if m.saved {
			t.Error("expected second press to unsave")
		}
		want := []string{"save t1", "unsave t1"}
		if strings.Join(library.calls, ",") != strings.Join(want, ",") {
			t.Errorf("calls = %v, want %v", library.calls, want)
		}
	})

	t.Run("saved state follows the track", func(t *testing.T) {
		m, _, _ := newTestModel(tasks.View{State: tasks.Idle})
		m.opts.Library = &fakeLibrary{saved: map[string]bool{"t1": true}}

		m.Update(progressUpdateMsg(tasks.ProgressUpdate{Data: playingView()}))
		m.Update(savedFetchedMsg("t1", true, nil))
		if !m.saved {
			t.Fatal("expected saved state for t1")
		}

		m.Update(savedFetchedMsg("stale", false, nil))
		if !m.saved {
			t.Error("stale lookup should be ignored")
		}

		m.Update(progressUpdateMsg(tasks.ProgressUpdate{Data: tasks.View{State: tasks.Idle}}))
		if m.saved || m.savedTrackID != "" {
			t.Error("expected saved state reset when the track stops")
		}
	})

	t.Run("like disabled without library", func(t *testing.T) {
		m, _, _ := newTestModel(playingView())
		m.Update(progressUpdateMsg(tasks.ProgressUpdate{Data: playingView()}))
		if _, cmd := m.Update(runes("l")); cmd != nil {
			t.Error("expected no command without a library")
		}
	})

	t.Run("track change fetches notes", func(t *testing.T) {
		m, _, _ := newTestModel(tasks.View{State: tasks.Idle})
		_, cmd := m.Update(progressUpdateMsg(tasks.ProgressUpdate{Data: playingView()}))
		if cmd == nil || m.notesTrackID != "t1" {
			t.Fatalf("expected notes fetch for t1, got %q", m.notesTrackID)
		}

		m.Update(notesFetchedMsg("stale", []*models.Note{models.NewNote(1, "stale", "x")}, nil))
		if len(m.noteList.Items()) != 0 {
			t.Error("stale notes should be ignored")
		}
	})

	t.Run("react", func(t *testing.T) {
		m, _, notes := newTestModel(playingView())
		loadNotes(t, m, playingView())

		m.Update(tea.KeyMsg{Type: tea.KeyTab})
		if m.focus != NotesFocus {
			t.Fatalf("expected notes focus, got %d", m.focus)
		}
		_, cmd := m.Update(runes("5"))
		deliver(t, m, cmd)

		if len(notes.reacted) != 1 || notes.reacted[0] != "n1✨u1" {
			t.Errorf("unexpected reactions %v", notes.reacted)
		}
		item := m.noteList.Items()[0].(noteItem)
		if !item.note.Reactions().Has("✨", "u1") {
			t.Error("expected reaction applied to the note")
		}
		if !strings.Contains(item.Description(), "[✨ 1]") {
			t.Errorf("expected own reaction highlighted, got %q", item.Description())
		}
	})

	t.Run("add note", func(t *testing.T) {
		m, _, notes := newTestModel(playingView())
		loadNotes(t, m, playingView())

		m.Update(runes("a"))
		if m.focus != InputFocus {
			t.Fatalf("expected input focus, got %d", m.focus)
		}
		m.Update(runes("so good"))
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		deliver(t, m, cmd)

		if len(notes.added) != 1 || notes.added[0] != "t1:so good" {
			t.Errorf("unexpected notes %v", notes.added)
		}
		if m.focus != NotesFocus || m.input.Value() != "" {
			t.Error("expected input reset after submit")
		}
	})

	t.Run("empty note is ignored", func(t *testing.T) {
		m, _, notes := newTestModel(playingView())
		loadNotes(t, m, playingView())

		m.Update(runes("a"))
		m.Update(runes("   "))
		if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
			t.Error("expected no command for blank note")
		}
		if len(notes.added) != 0 {
			t.Errorf("unexpected notes %v", notes.added)
		}
	})

	t.Run("replay", func(t *testing.T) {
		m, player, _ := newTestModel(playingView())
		m.Update(tea.KeyMsg{Type: tea.KeyTab})
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		deliver(t, m, cmd)
		if len(player.calls) != 1 || player.calls[0] != "play spotify:track:t1" {
			t.Errorf("unexpected calls %v", player.calls)
		}
	})

	t.Run("closed updates stop the loop view", func(t *testing.T) {
		m, _, _ := newTestModel(playingView())
		ch := make(chan tasks.ProgressUpdate)
		close(ch)
		m.updates = ch
		deliver(t, m, m.waitForUpdate())
		if !m.stopped {
			t.Error("expected stopped")
		}
	})
}
