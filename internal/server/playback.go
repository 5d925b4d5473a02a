package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/services"
	"github.com/desertthunder/vinyl/internal/shared"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	player, ok := s.player(w, r)
	if !ok {
		return
	}

	account, err := services.WithRetry(r.Context(), s.retry, player.CurrentUser)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, services.MeResponse{IsPremium: account.Premium(), User: account})
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	player, ok := s.player(w, r)
	if !ok {
		return
	}

	snapshot, err := services.WithRetry(r.Context(), s.retry, player.PlaybackState)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	timestamp := snapshot.CapturedAt
	if timestamp.IsZero() {
		timestamp = s.now()
	}
	writeJSON(w, http.StatusOK, services.CurrentResponse{
		Track:      snapshot.Track,
		IsPlaying:  snapshot.IsPlaying,
		Device:     snapshot.Device,
		ProgressMS: snapshot.ProgressMS,
		ContextURI: snapshot.ContextURI,
		Timestamp:  timestamp,
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	player, ok := s.player(w, r)
	if !ok {
		return
	}

	devices, err := services.WithRetry(r.Context(), s.retry, player.Devices)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}
	writeJSON(w, http.StatusOK, services.DevicesResponse{Devices: devices})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	player, ok := s.player(w, r)
	if !ok {
		return
	}

	queue, err := services.WithRetry(r.Context(), s.retry, player.Queue)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req services.PlayRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.ContextURI == "" && req.TrackURI == "" {
		s.fail(w, r, fmt.Errorf("%w: contextUri or trackUri", shared.ErrMissingArgument))
		return
	}

	player, ok := s.player(w, r)
	if !ok {
		return
	}

	err := player.Play(r.Context(), services.PlayOptions{
		DeviceID:   req.DeviceID,
		ContextURI: req.ContextURI,
		TrackURI:   req.TrackURI,
		PositionMS: req.PositionMS,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

// handlePlayTrack pauses, then starts the playlist at the given track and position.
func (s *Server) handlePlayTrack(w http.ResponseWriter, r *http.Request) {
	var req services.PlayTrackRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.TrackURI == "" {
		s.fail(w, r, fmt.Errorf("%w: trackUri", shared.ErrMissingArgument))
		return
	}
	if req.PlaylistURI == "" {
		req.PlaylistURI = s.allowed.URI()
	}

	player, ok := s.player(w, r)
	if !ok {
		return
	}

	if err := player.Pause(r.Context(), req.DeviceID); err != nil {
		s.logger.Debug("pause before play-track failed", "err", err)
	}

	err := player.Play(r.Context(), services.PlayOptions{
		DeviceID:   req.DeviceID,
		ContextURI: req.PlaylistURI,
		TrackURI:   req.TrackURI,
		PositionMS: services.IntPtr(max(req.PositionMS, 0)),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

// handleToggle resumes the playlist where it stopped when it is still loaded, otherwise
// starts it from the top. Pausing is a single call.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req services.ToggleRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	player, ok := s.player(w, r)
	if !ok {
		return
	}

	var err error
	if req.Play {
		err = s.resume(r.Context(), player, req.DeviceID)
	} else {
		err = player.Pause(r.Context(), req.DeviceID)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *Server) resume(ctx context.Context, player services.Player, deviceID string) error {
	opts := services.PlayOptions{DeviceID: deviceID, ContextURI: s.allowed.URI()}

	snapshot, err := player.PlaybackState(ctx)
	if err == nil && snapshot.Track != nil && s.allowed.Matches(snapshot.ContextURI) {
		opts.TrackURI = snapshot.Track.URI
		opts.PositionMS = services.IntPtr(snapshot.ProgressMS)
	}
	return player.Play(ctx, opts)
}

func (s *Server) deviceCommand(w http.ResponseWriter, r *http.Request, cmd func(services.Player, context.Context, string) error) {
	var req services.DeviceRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	player, ok := s.player(w, r)
	if !ok {
		return
	}
	if err := cmd(player, r.Context(), req.DeviceID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.deviceCommand(w, r, services.Player.Pause)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.deviceCommand(w, r, services.Player.Next)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	s.deviceCommand(w, r, services.Player.Previous)
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req services.SeekRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.PositionMS < 0 {
		s.fail(w, r, fmt.Errorf("%w: positionMs must not be negative", shared.ErrInvalidInput))
		return
	}

	player, ok := s.player(w, r)
	if !ok {
		return
	}
	if err := player.Seek(r.Context(), req.DeviceID, req.PositionMS); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w)
}

// handlePlaylist returns the allowed playlist, or the one named by ?id. When the full
// request is refused it retries once asking for the reduced field set.
func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	id := s.allowed.PlaylistID
	if raw := strings.TrimSpace(r.URL.Query().Get("id")); raw != "" {
		parsed, err := models.ParsePlaylistID(raw)
		if err != nil {
			s.fail(w, r, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
			return
		}
		id = parsed
	}

	player, ok := s.player(w, r)
	if !ok {
		return
	}

	fetch := func(fields string) (models.Playlist, error) {
		return services.WithRetry(r.Context(), s.retry, func(ctx context.Context) (models.Playlist, error) {
			return player.Playlist(ctx, id, fields)
		})
	}

	playlist, err := fetch("")
	if status := services.StatusOf(err); status == http.StatusUnauthorized || status == http.StatusForbidden {
		s.logger.Debug("full playlist refused, retrying reduced", "status", status)
		playlist, err = fetch(services.ReducedPlaylistFields)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

// handleStartPlaylist starts the allowed playlist from the top, then turns repeat and shuffle off.
func (s *Server) handleStartPlaylist(w http.ResponseWriter, r *http.Request) {
	var req services.DeviceRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	player, ok := s.player(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := player.Play(ctx, services.PlayOptions{DeviceID: req.DeviceID, ContextURI: s.allowed.URI()}); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := player.SetRepeat(ctx, req.DeviceID, "off"); err != nil {
		s.logger.Warn("could not turn repeat off", "err", err)
	}
	if err := player.SetShuffle(ctx, req.DeviceID, false); err != nil {
		s.logger.Warn("could not turn shuffle off", "err", err)
	}
	writeOK(w)
}
