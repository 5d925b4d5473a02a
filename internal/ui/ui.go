package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/desertthunder/vinyl/internal/tasks"
)

// Player is the reconciliation loop as driven by the UI.
type Player interface {
	View() tasks.View
	Kick()
	Toggle(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	StartPlaylist(ctx context.Context) error
	PlayTrack(ctx context.Context, trackURI string, positionMS int) error
}

var _ Player = (*tasks.Reconciler)(nil)

// NotesService reads and writes notes. [*services.APIService] implements it.
type NotesService interface {
	Notes(ctx context.Context, trackID string) ([]*models.Note, error)
	AddNote(ctx context.Context, trackID, content string) (string, error)
	React(ctx context.Context, noteID, emoji, userID string) (models.Reactions, error)
}

// Library saves tracks to the listener's Spotify library. [*services.APIService] implements it.
type Library interface {
	Saved(ctx context.Context, ids []string) ([]bool, error)
	Save(ctx context.Context, ids []string) error
	Unsave(ctx context.Context, ids []string) error
}

// Focus is the pane receiving key presses.
type Focus int

const (
	PlayerFocus Focus = iota
	NotesFocus
	InputFocus
)

// Options configures a [Model].
type Options struct {
	UserID  string                          // identity used for reactions
	Connect func(ctx context.Context) error // runs the login flow; nil hides the connect key
	Library Library                         // nil disables the like key
	Now     func() time.Time
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	player  Player
	notes   NotesService
	updates <-chan tasks.ProgressUpdate
	opts    Options

	view    tasks.View
	status  string
	err     error
	stopped bool

	focus        Focus
	notesTrackID string
	noteList     list.Model
	input        textinput.Model

	savedTrackID string
	saved        bool

	help     help.Model
	keys     keyMap
	showHelp bool
	frame    int
	now      time.Time
	width    int
	height   int
}

// NewModel creates a TUI model reading loop updates from updates.
func NewModel(ctx context.Context, player Player, notes NotesService, updates <-chan tasks.ProgressUpdate, opts Options) *Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	noteList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	noteList.Title = "Notes"
	noteList.SetShowHelp(false)
	noteList.SetFilteringEnabled(false)

	input := textinput.New()
	input.Placeholder = "Leave a note on this track"
	input.CharLimit = models.MaxNoteLength

	return &Model{
		ctx:      ctx,
		player:   player,
		notes:    notes,
		updates:  updates,
		opts:     opts,
		view:     player.View(),
		noteList: noteList,
		input:    input,
		help:     help.New(),
		keys:     newKeyMap(),
		now:      opts.Now(),
	}
}

// Init starts listening for loop updates and the progress clock.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), m.tick())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.noteList.SetSize(max(msg.Width/2-4, 20), max(msg.Height-10, 5))
		m.input.Width = max(msg.Width/2-8, 20)
		return m, nil

	case tea.KeyMsg:
		if m.focus == InputFocus {
			return m.handleInputKeys(msg)
		}
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		if v, ok := update.Data.(tasks.View); ok {
			m.view = v
		}
		m.status = update.Message
		return m, tea.Batch(m.waitForUpdate(), m.syncNotes(), m.syncSaved())

	case MsgLoopStopped:
		m.stopped = true
		m.status = "Player loop stopped"
		return m, nil

	case MsgTick:
		m.now = msg.data.(time.Time)
		if m.view.Snapshot.IsPlaying {
			m.frame++
		}
		return m, m.tick()

	case MsgCommandDone:
		res := msg.data.(commandResult)
		m.err = res.err
		m.view = m.player.View()
		if res.err == nil {
			m.status = res.name
		}
		return m, nil

	case MsgConnected:
		if err, _ := msg.data.(error); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.status = "Connected"
		m.player.Kick()
		return m, nil

	case MsgNotesFetched:
		res := msg.data.(notesResult)
		if res.trackID != m.notesTrackID {
			return m, nil
		}
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		return m, m.noteList.SetItems(noteItems(res.notes, m.opts.UserID))

	case MsgNoteAdded:
		res := msg.data.(notesResult)
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		m.status = "Note saved"
		return m, m.fetchNotes(res.trackID)

	case MsgSavedFetched, MsgLiked:
		res := msg.data.(savedResult)
		if res.trackID != m.savedTrackID {
			return m, nil
		}
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		m.saved = res.saved
		if msg.kind == MsgLiked {
			m.err = nil
			m.status = "Removed from your library"
			if res.saved {
				m.status = "Saved to your library"
			}
		}
		return m, nil

	case MsgReacted:
		res := msg.data.(reactResult)
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		for i, item := range m.noteList.Items() {
			if ni, ok := item.(noteItem); ok && ni.note.ID() == res.noteID {
				ni.note.SetReactions(res.reactions)
				return m, m.noteList.SetItem(i, ni)
			}
		}
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.showHelp = !m.showHelp
		return m, nil
	}

	switch m.view.State {
	case tasks.Unauthenticated:
		if key.Matches(msg, m.keys.connect) && m.opts.Connect != nil {
			m.status = "Opening Spotify login..."
			return m, m.connect()
		}
		return m, nil
	case tasks.AwaitingDevice:
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.notes):
		if m.focus == NotesFocus {
			m.focus = PlayerFocus
		} else {
			m.focus = NotesFocus
		}
		return m, nil
	case key.Matches(msg, m.keys.toggle):
		return m, m.command("play/pause", m.player.Toggle)
	case key.Matches(msg, m.keys.next):
		return m, m.command("next", m.player.Next)
	case key.Matches(msg, m.keys.previous):
		return m, m.command("previous", m.player.Previous)
	case key.Matches(msg, m.keys.start):
		return m, m.command("start listening", m.player.StartPlaylist)
	case key.Matches(msg, m.keys.like):
		return m, m.like()
	case key.Matches(msg, m.keys.add):
		if m.notesTrackID == "" {
			return m, nil
		}
		m.focus = InputFocus
		return m, m.input.Focus()
	}

	if m.focus != NotesFocus {
		return m, nil
	}

	if key.Matches(msg, m.keys.react) {
		return m, m.react(msg.String())
	}
	if key.Matches(msg, m.keys.submit) {
		return m, m.replay()
	}

	var cmd tea.Cmd
	m.noteList, cmd = m.noteList.Update(msg)
	return m, cmd
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.input.Blur()
		m.input.Reset()
		m.focus = NotesFocus
		return m, nil
	case key.Matches(msg, m.keys.submit):
		content := strings.TrimSpace(m.input.Value())
		if content == "" {
			return m, nil
		}
		m.input.Blur()
		m.input.Reset()
		m.focus = NotesFocus
		return m, m.addNote(m.notesTrackID, content)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// syncNotes refetches notes when the playing track changed.
func (m *Model) syncNotes() tea.Cmd {
	trackID := m.view.Snapshot.TrackID
	if trackID == m.notesTrackID {
		return nil
	}
	m.notesTrackID = trackID
	if trackID == "" {
		return m.noteList.SetItems(nil)
	}
	return m.fetchNotes(trackID)
}

// syncSaved looks up the library state of a newly playing track.
func (m *Model) syncSaved() tea.Cmd {
	trackID := m.view.Snapshot.TrackID
	if trackID == m.savedTrackID {
		return nil
	}
	m.savedTrackID = trackID
	m.saved = false
	if trackID == "" || m.opts.Library == nil {
		return nil
	}
	return func() tea.Msg {
		saved, err := m.opts.Library.Saved(m.ctx, []string{trackID})
		return savedFetchedMsg(trackID, len(saved) > 0 && saved[0], err)
	}
}

// like saves the current track, or removes it when already saved.
func (m *Model) like() tea.Cmd {
	trackID := m.savedTrackID
	if trackID == "" || m.opts.Library == nil {
		return nil
	}
	want := !m.saved
	return func() tea.Msg {
		fn := m.opts.Library.Unsave
		if want {
			fn = m.opts.Library.Save
		}
		return likedMsg(trackID, want, fn(m.ctx, []string{trackID}))
	}
}

func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		if m.updates == nil {
			return loopStoppedMsg()
		}
		select {
		case <-m.ctx.Done():
			return loopStoppedMsg()
		case update, ok := <-m.updates:
			if !ok {
				return loopStoppedMsg()
			}
			return progressUpdateMsg(update)
		}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) command(name string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return commandDoneMsg(name, fn(m.ctx))
	}
}

func (m *Model) connect() tea.Cmd {
	return func() tea.Msg {
		return connectedMsg(m.opts.Connect(m.ctx))
	}
}

func (m *Model) fetchNotes(trackID string) tea.Cmd {
	return func() tea.Msg {
		notes, err := m.notes.Notes(m.ctx, trackID)
		return notesFetchedMsg(trackID, notes, err)
	}
}

func (m *Model) addNote(trackID, content string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.notes.AddNote(m.ctx, trackID, content)
		return noteAddedMsg(trackID, err)
	}
}

// react toggles the reaction bound to digit on the selected note.
func (m *Model) react(digit string) tea.Cmd {
	item, ok := m.noteList.SelectedItem().(noteItem)
	if !ok {
		return nil
	}
	idx := int(digit[0] - '1')
	if idx < 0 || idx >= len(models.AvailableReactions) {
		return nil
	}
	if m.opts.UserID == "" {
		m.err = fmt.Errorf("%w: set client.user_id to react to notes", shared.ErrMissingArgument)
		return nil
	}

	noteID, emoji, userID := item.note.ID(), models.AvailableReactions[idx], m.opts.UserID
	return func() tea.Msg {
		reactions, err := m.notes.React(m.ctx, noteID, emoji, userID)
		return reactedMsg(noteID, reactions, err)
	}
}

// replay restarts the current track inside the playlist.
func (m *Model) replay() tea.Cmd {
	uri := m.view.Snapshot.TrackURI
	if uri == "" {
		return nil
	}
	return m.command("replay", func(ctx context.Context) error {
		return m.player.PlayTrack(ctx, uri, 0)
	})
}

// View renders the UI based on the loop state.
func (m *Model) View() string {
	var body string
	switch m.view.State {
	case tasks.Unauthenticated:
		body = m.renderConnect()
	case tasks.AwaitingDevice:
		body = m.renderAwaitingDevice()
	default:
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderTurntable(), "  ", m.renderNotes())
	}

	var b strings.Builder
	b.WriteString(styles.title.Render("vinyl"))
	b.WriteString("\n")
	if intent := m.view.Intent; !intent.Expired(m.now) {
		b.WriteString(styles.banner.Render(intent.Message))
		b.WriteString("\n")
	}
	b.WriteString(body)
	b.WriteString("\n\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	return b.String()
}

func (m *Model) renderConnect() string {
	lines := []string{"Spotify is not connected."}
	if m.opts.Connect != nil {
		lines = append(lines, "Press c to connect your account.")
	} else {
		lines = append(lines, "Run `vinyl login` to connect your account.")
	}
	return styles.panel.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderAwaitingDevice() string {
	lines := []string{
		"No Spotify device found.",
		"",
		"1. Open Spotify on your phone, computer or speaker",
		"2. Play anything for a moment",
		"3. Come back here; the turntable appears on its own",
	}
	if len(m.view.Devices) > 0 {
		lines = append(lines, "", "Known devices:")
		for _, d := range m.view.Devices {
			lines = append(lines, fmt.Sprintf("  • %s (%s)", d.Name, d.Type))
		}
	}
	return styles.panel.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderNotes() string {
	if m.notesTrackID == "" {
		return styles.panel.Render(styles.help.Render("Notes appear when a track is playing"))
	}

	view := m.noteList.View()
	if len(m.noteList.Items()) == 0 {
		view = "Notes\n\n" + styles.help.Render("No notes yet. Press a to add one.")
	}
	if m.focus == InputFocus {
		view += "\n\n" + m.input.View()
	}

	style := styles.panel
	if m.focus != PlayerFocus {
		style = style.BorderForeground(styles.record.GetForeground())
	}
	return style.Render(view)
}

func (m *Model) renderStatus() string {
	switch {
	case m.err != nil:
		return styles.err.Render("Error: " + m.err.Error())
	case m.view.State == tasks.Error:
		return styles.err.Render("Error: " + m.view.Message)
	case m.stopped:
		return styles.warn.Render(m.status)
	default:
		return styles.help.Render(m.status)
	}
}
