package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/services"
	"github.com/desertthunder/vinyl/internal/shared"
)

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	trackID := strings.TrimSpace(r.URL.Query().Get("trackId"))
	if trackID == "" {
		s.fail(w, r, fmt.Errorf("%w: trackId", shared.ErrMissingArgument))
		return
	}

	notes, err := s.notes.List(r.Context(), map[string]any{"track_id": trackID})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if notes == nil {
		notes = []*models.Note{}
	}
	writeJSON(w, http.StatusOK, services.NotesResponse{Notes: notes})
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req services.NoteRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	trackID := strings.TrimSpace(req.TrackID)
	content := strings.TrimSpace(req.Note.Content)
	switch {
	case trackID == "":
		s.fail(w, r, fmt.Errorf("%w: trackId", shared.ErrMissingArgument))
		return
	case content == "":
		s.fail(w, r, fmt.Errorf("%w: note content", shared.ErrMissingArgument))
		return
	}

	note := models.NewNote(0, trackID, content)
	if err := s.notes.Create(r.Context(), note); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services.NoteCreatedResponse{Success: true, NoteID: note.ID()})
}

func (s *Server) handleReact(w http.ResponseWriter, r *http.Request) {
	var req services.ReactRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	switch {
	case req.NoteID == "":
		s.fail(w, r, fmt.Errorf("%w: noteId", shared.ErrMissingArgument))
		return
	case req.UserID == "":
		s.fail(w, r, fmt.Errorf("%w: userId", shared.ErrMissingArgument))
		return
	case !models.IsAvailableReaction(req.Emoji):
		s.fail(w, r, fmt.Errorf("%w: unsupported reaction %q", shared.ErrInvalidInput, req.Emoji))
		return
	}

	reactions, err := s.notes.ToggleReaction(r.Context(), req.NoteID, req.Emoji, req.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services.ReactResponse{Reactions: reactions})
}
