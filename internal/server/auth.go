package server

import (
	"fmt"
	"net/http"

	"github.com/desertthunder/vinyl/internal/services"
	"github.com/desertthunder/vinyl/internal/shared"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, services.StatusResponse{
		Name:          "vinyl",
		Version:       shared.Version,
		Authenticated: cookieValue(r, AccessTokenCookie) != "",
	})
}

// handleLogin starts the browser flow: the state is kept in a cookie and checked on callback.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.cookies.SetState(w, state)
	http.Redirect(w, r, s.provider.AuthURL(state, ""), http.StatusFound)
}

// handleAuthURL serves clients that run their own callback catcher and verify state themselves.
func (s *Server) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		generated, err := shared.GenerateState()
		if err != nil {
			s.fail(w, r, err)
			return
		}
		state = generated
	}
	writeJSON(w, http.StatusOK, services.AuthURLResponse{
		URL: s.provider.AuthURL(state, r.URL.Query().Get("redirect_uri")),
	})
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		err := fmt.Errorf("%w: code", shared.ErrMissingArgument)
		if reason := q.Get("error"); reason != "" {
			err = fmt.Errorf("%w: authorization denied: %s", shared.ErrInvalidInput, reason)
		}
		s.fail(w, r, err)
		return
	}

	if expected := cookieValue(r, StateCookie); expected != "" && expected != q.Get("state") {
		s.fail(w, r, shared.ErrStateMismatch)
		return
	}

	token, err := s.provider.Exchange(r.Context(), code, q.Get("redirect_uri"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.cookies.Set(w, token)
	s.cookies.ClearState(w)
	s.logger.Info("session established")
	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refresh := cookieValue(r, RefreshTokenCookie)
	if refresh == "" {
		s.fail(w, r, fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, shared.ErrNoRefreshToken))
		return
	}

	token, err := s.provider.Refresh(r.Context(), refresh)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, err))
		return
	}

	s.cookies.Set(w, token)
	writeOK(w)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, services.SessionResponse{
		Authenticated: cookieValue(r, AccessTokenCookie) != "",
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.cookies.Clear(w)
	writeOK(w)
}
