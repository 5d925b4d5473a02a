package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/services"
	"github.com/desertthunder/vinyl/internal/shared"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Middleware wraps an [http.Handler] to provide additional functionality.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that declares the routes it serves.
type Handler interface {
	http.Handler
	Routes() []string
}

// Router defines the interface for HTTP routing.
type Router interface {
	http.Handler
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	HandleFunc(method, path string, fn http.HandlerFunc)
	Handler(handler Handler)
}

// NoteStore persists notes and their reactions.
type NoteStore interface {
	Create(ctx context.Context, note *models.Note) error
	List(ctx context.Context, criteria map[string]any) ([]*models.Note, error)
	ToggleReaction(ctx context.Context, noteID, emoji, userID string) (models.Reactions, error)
}

// Options wires the facade's collaborators.
type Options struct {
	Provider services.Provider
	Notes    NoteStore
	Allowed  models.AllowedContext
	Guard    *CallGuard
	Cookies  SessionCookies
	Retry    services.RetryPolicy
	Logger   *log.Logger

	// RequestTimeout bounds each handler's provider and store calls.
	RequestTimeout time.Duration
	Now            func() time.Time
}

// Server is the backend facade: it holds the provider credentials, keeps sessions in cookies
// and exposes a small JSON API for the player and notes.
type Server struct {
	provider services.Provider
	notes    NoteStore
	allowed  models.AllowedContext
	guard    *CallGuard
	cookies  SessionCookies
	retry    services.RetryPolicy
	logger   *log.Logger
	timeout  time.Duration
	now      func() time.Time
	router   *BasicRouter
}

// New builds a [Server] and registers its routes.
func New(opts Options) *Server {
	s := &Server{
		provider: opts.Provider,
		notes:    opts.Notes,
		allowed:  opts.Allowed,
		guard:    opts.Guard,
		cookies:  opts.Cookies,
		retry:    opts.Retry,
		logger:   opts.Logger,
		timeout:  opts.RequestTimeout,
		now:      opts.Now,
	}
	if s.logger == nil {
		s.logger = shared.NewLogger(nil)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.retry.Logger == nil {
		s.retry.Logger = s.logger
	}
	s.cookies.now = s.now

	s.router = NewBasicRouter()
	s.router.Use(Recover(s.logger), Logging(s.logger), s.withTimeout)
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.HandleFunc(http.MethodGet, "/", s.handleStatus)

	r.HandleFunc(http.MethodGet, "/auth/login", s.handleLogin)
	r.HandleFunc(http.MethodGet, "/auth/url", s.handleAuthURL)
	r.HandleFunc(http.MethodGet, "/auth/callback", s.handleCallback)
	r.HandleFunc(http.MethodPost, "/auth/refresh", s.handleRefresh)
	r.HandleFunc(http.MethodGet, "/auth/session", s.handleSession)
	r.HandleFunc(http.MethodPost, "/logout", s.handleLogout)

	r.HandleFunc(http.MethodGet, "/me", s.handleMe)
	r.Handle(http.MethodGet, "/playback/current", Guarded(s.guard, http.HandlerFunc(s.handleCurrent)))
	r.HandleFunc(http.MethodPut, "/playback/play", s.handlePlay)
	r.HandleFunc(http.MethodPost, "/playback/play-track", s.handlePlayTrack)
	r.HandleFunc(http.MethodPost, "/playback/toggle", s.handleToggle)
	r.HandleFunc(http.MethodPut, "/playback/pause", s.handlePause)
	r.HandleFunc(http.MethodPost, "/playback/next", s.handleNext)
	r.HandleFunc(http.MethodPost, "/playback/previous", s.handlePrevious)
	r.HandleFunc(http.MethodPut, "/playback/seek", s.handleSeek)
	r.Handle(http.MethodGet, "/playback/queue", Guarded(s.guard, http.HandlerFunc(s.handleQueue)))
	r.Handle(http.MethodGet, "/devices", Guarded(s.guard, http.HandlerFunc(s.handleDevices)))

	r.HandleFunc(http.MethodGet, "/playlist", s.handlePlaylist)
	r.HandleFunc(http.MethodPost, "/playlist/start", s.handleStartPlaylist)

	r.HandleFunc(http.MethodGet, "/library/contains", s.handleLibraryContains)
	r.HandleFunc(http.MethodPut, "/library/save", s.handleLibrarySave)
	r.HandleFunc(http.MethodPut, "/library/remove", s.handleLibraryRemove)

	r.HandleFunc(http.MethodGet, "/notes", s.handleListNotes)
	r.HandleFunc(http.MethodPost, "/notes", s.handleCreateNote)
	r.HandleFunc(http.MethodPost, "/notes/react", s.handleReact)
}

func (s *Server) withTimeout(next http.Handler) http.Handler {
	if s.timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ServeHTTP implements [http.Handler] without tracing; [Server.Handler] adds it.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the facade wrapped in OpenTelemetry server instrumentation.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "vinyl",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// ListenAndServe serves the facade on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("facade listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		s.logger.Info("facade stopped")
		return nil
	}
}

// player returns a provider client for the request's session, or writes a 401.
func (s *Server) player(w http.ResponseWriter, r *http.Request) (services.Player, bool) {
	token := cookieValue(r, AccessTokenCookie)
	if token == "" {
		writeError(w, shared.ErrNotAuthenticated)
		return nil, false
	}
	return s.provider.Player(token), true
}

// fail logs err at a level matching its status and writes the envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, _, _ := classify(err)
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "path", r.URL.Path, "err", err)
	}
	writeError(w, err)
}
