package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/repositories"
	"github.com/desertthunder/vinyl/internal/server"
	"github.com/desertthunder/vinyl/internal/services"
	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the facade until the process is interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.config
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Credentials.Spotify.ClientID == "" || config.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: credentials.spotify.client_id and client_secret must be set", shared.ErrMissingCredentials)
	}

	allowed, err := models.NewAllowedContext(config.Player.PlaylistID)
	if err != nil {
		return fmt.Errorf("%w: player.playlist_id: %v", shared.ErrInvalidConfig, err)
	}

	shutdown, err := shared.InitTracing(ctx, config.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to start tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			r.logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	db, err := shared.OpenNotesDatabase(config.Database)
	if err != nil {
		return fmt.Errorf("failed to open notes database: %w", err)
	}
	defer db.Close()

	spotify, err := services.NewSpotifyService(
		config.Credentials.Spotify.Map(),
		services.WithTimeout(config.Server.RequestTimeout.Duration),
	)
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	retry := services.DefaultRetryPolicy()
	retry.Logger = r.logger

	srv := server.New(server.Options{
		Provider: spotify,
		Notes:    repositories.NewNoteRepository(db),
		Allowed:  allowed,
		Guard:    server.NewCallGuard(config.Server.MinCallInterval.Duration),
		Cookies: server.SessionCookies{
			Domain: config.Server.CookieDomain,
			Secure: config.Server.Production(),
		},
		Retry:          retry,
		Logger:         shared.WithLogger(r.logger, "component", "facade"),
		RequestTimeout: config.Server.RequestTimeout.Duration,
	})

	host, port := config.Server.Host, config.Server.Port
	if h := cmd.String("host"); h != "" {
		host = h
	}
	if p := cmd.Int("port"); p > 0 {
		port = p
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	r.logger.Info("starting facade", "addr", addr, "playlist", allowed.URI(), "version", shared.Version)
	return srv.ListenAndServe(ctx, addr)
}
