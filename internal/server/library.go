package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/vinyl/internal/services"
	"github.com/desertthunder/vinyl/internal/shared"
)

func splitIDs(raw string) []string {
	var ids []string
	for id := range strings.SplitSeq(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Server) handleLibraryContains(w http.ResponseWriter, r *http.Request) {
	ids := splitIDs(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		s.fail(w, r, fmt.Errorf("%w: ids", shared.ErrMissingArgument))
		return
	}

	player, ok := s.player(w, r)
	if !ok {
		return
	}

	saved, err := player.ContainsSavedTracks(r.Context(), ids)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services.LibraryContainsResponse{IDs: ids, Saved: saved})
}

func (s *Server) libraryCommand(w http.ResponseWriter, r *http.Request, save bool) {
	var req services.LibraryRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if len(req.IDs) == 0 {
		s.fail(w, r, fmt.Errorf("%w: ids", shared.ErrMissingArgument))
		return
	}

	player, ok := s.player(w, r)
	if !ok {
		return
	}

	var err error
	if save {
		err = player.SaveTracks(r.Context(), req.IDs)
	} else {
		err = player.RemoveSavedTracks(r.Context(), req.IDs)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *Server) handleLibrarySave(w http.ResponseWriter, r *http.Request) {
	s.libraryCommand(w, r, true)
}

func (s *Server) handleLibraryRemove(w http.ResponseWriter, r *http.Request) {
	s.libraryCommand(w, r, false)
}
