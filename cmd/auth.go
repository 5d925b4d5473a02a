package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/desertthunder/vinyl/internal/server"
	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/urfave/cli/v3"
)

const loginTimeout = 2 * time.Minute

// Login connects Spotify through the facade and keeps the session cookies in the session file.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	if err := r.login(ctx, r.output, !cmd.Bool("no-browser")); err != nil {
		return err
	}

	r.writePlainln("✓ Connected to Spotify")
	if account, err := r.api.Me(ctx); err == nil {
		r.writePlain("Signed in as %s (%s)\n", account.Name, account.Product)
		if !account.Premium() {
			r.writePlain("Playback control needs Premium; the turntable will only show advisories.\n")
		}
	}
	return nil
}

// login runs the authorization flow with a local catcher at client.callback_addr.
//
// The facade builds the provider URL with the catcher as redirect, and the caught code is
// forwarded to the facade's callback with the same redirect so the exchange matches.
func (r *Runner) login(ctx context.Context, out io.Writer, openBrowser bool) error {
	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	callbackAddr := r.config.Client.CallbackAddr
	redirectURI := "http://" + callbackAddr + "/callback"

	authURL, err := r.api.AuthURL(ctx, state, redirectURI)
	if err != nil {
		return fmt.Errorf("failed to get authorization url from %s: %w", r.api.BaseURL(), err)
	}

	oauthHandler := server.NewOAuthHandler(state, func(ctx context.Context, code, state string) error {
		return r.api.Callback(ctx, code, state, redirectURI)
	})
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	listener, err := net.Listen("tcp", callbackAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", callbackAddr, err)
	}
	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("waiting for OAuth callback at %v", callbackAddr)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	if openBrowser {
		fmt.Fprintf(out, "→ Opening browser for Spotify authorization...\n")
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warnf("failed to open browser automatically %v", err)
			openBrowser = false
		}
	}
	if !openBrowser {
		fmt.Fprintf(out, "Please open this URL in your browser:\n%s\n\n", authURL)
	}
	fmt.Fprintf(out, "→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(loginTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := result.Error(); err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}
	r.logger.Info("session stored", "user", r.userID())
	return nil
}

// Logout ends the facade session and clears the local cookies.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	if err := r.api.Logout(ctx); err != nil {
		r.logger.Warn("facade logout failed, clearing local session anyway", "error", err)
	}
	if err := r.jar.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return r.writePlain("✓ Logged out\n")
}

// statusReport is the JSON shape of [Runner.Status].
type statusReport struct {
	Server        string `json:"server"`
	Version       string `json:"version"`
	Authenticated bool   `json:"authenticated"`
	User          string `json:"user,omitempty"`
	Premium       bool   `json:"premium"`
	Track         string `json:"track,omitempty"`
	Playing       bool   `json:"playing"`
	Device        string `json:"device,omitempty"`
}

// Status reports whether the facade is up, the session valid, and what is playing.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	r.logger.Debug("checking status", "server", r.api.BaseURL())

	status, err := r.api.Status(ctx)
	if err != nil {
		return fmt.Errorf("facade unavailable at %s: %w", r.api.BaseURL(), err)
	}

	report := statusReport{Server: r.api.BaseURL(), Version: status.Version}
	if report.Authenticated, err = r.api.Session(ctx); err != nil {
		r.logger.Warn("session check failed", "error", err)
	}

	if report.Authenticated {
		if account, err := r.api.Me(ctx); err == nil {
			report.User, report.Premium = account.Name, account.Premium()
		}
		if snap, err := r.api.Current(ctx); err == nil && !snap.Empty() {
			report.Track, report.Playing = snap.Track.Name, snap.IsPlaying
			if snap.Device != nil {
				report.Device = snap.Device.Name
			}
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	r.writePlain("✓ Facade is up at %s (version %s)\n", report.Server, report.Version)
	if !report.Authenticated {
		return r.writePlain("Session: ✗ Not connected, run 'vinyl login'\n")
	}
	r.writePlain("Session: ✓ %s", report.User)
	if report.Premium {
		r.writePlain(" (premium)\n")
	} else {
		r.writePlain(" (standard)\n")
	}
	if report.Track == "" {
		return r.writePlain("Playback: nothing playing\n")
	}
	state := "paused"
	if report.Playing {
		state = "playing"
	}
	return r.writePlain("Playback: %s %s on %s\n", state, report.Track, report.Device)
}
