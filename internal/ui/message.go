package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgLoopStopped
	MsgTick
	MsgCommandDone
	MsgConnected
	MsgNotesFetched
	MsgNoteAdded
	MsgReacted
	MsgSavedFetched
	MsgLiked
)

type notesResult struct {
	trackID string
	notes   []*models.Note
	err     error
}

type reactResult struct {
	noteID    string
	reactions models.Reactions
	err       error
}

type savedResult struct {
	trackID string
	saved   bool
	err     error
}

type commandResult struct {
	name string
	err  error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// loopStoppedMsg is the constructor for [MsgLoopStopped]
func loopStoppedMsg() Msg {
	return Msg{kind: MsgLoopStopped}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}

// commandDoneMsg is the constructor for [MsgCommandDone]
func commandDoneMsg(name string, err error) Msg {
	return Msg{kind: MsgCommandDone, data: commandResult{name, err}}
}

// connectedMsg is the constructor for [MsgConnected]
func connectedMsg(err error) Msg {
	return Msg{kind: MsgConnected, data: err}
}

// notesFetchedMsg is the constructor for [MsgNotesFetched]
func notesFetchedMsg(trackID string, notes []*models.Note, err error) Msg {
	return Msg{kind: MsgNotesFetched, data: notesResult{trackID, notes, err}}
}

// noteAddedMsg is the constructor for [MsgNoteAdded]
func noteAddedMsg(trackID string, err error) Msg {
	return Msg{kind: MsgNoteAdded, data: notesResult{trackID: trackID, err: err}}
}

// reactedMsg is the constructor for [MsgReacted]
func reactedMsg(noteID string, reactions models.Reactions, err error) Msg {
	return Msg{kind: MsgReacted, data: reactResult{noteID, reactions, err}}
}

// savedFetchedMsg is the constructor for [MsgSavedFetched]
func savedFetchedMsg(trackID string, saved bool, err error) Msg {
	return Msg{kind: MsgSavedFetched, data: savedResult{trackID, saved, err}}
}

// likedMsg is the constructor for [MsgLiked]
func likedMsg(trackID string, saved bool, err error) Msg {
	return Msg{kind: MsgLiked, data: savedResult{trackID, saved, err}}
}
