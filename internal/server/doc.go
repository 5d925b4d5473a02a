// Package server is the vinyl backend facade and the CLI's OAuth callback catcher.
//
// # Facade
//
// [Server] holds the provider credentials and exposes a small JSON API over the remote
// player: auth, playback, playlist, library and notes. Sessions travel as httpOnly cookies;
// the browser never sees a provider token in a response body.
//
// Every failure uses the same envelope, {"error", "code", "details"}. 401 means the session is
// missing or expired, 404 with details NO_ACTIVE_DEVICE means no device is open, 403 with
// PREMIUM_REQUIRED means playback control is unavailable, and 429 carries Retry-After.
//
// Reads the player loop polls (current, queue and devices) pass through a [CallGuard] that
// rejects calls arriving faster than the configured spacing.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with per-path method tables.
//
// # OAuth Callback Handler
//
// [OAuthHandler] catches the provider redirect on a local port during `vinyl login`, checks
// the state and forwards the code to the facade. It only processes one callback to prevent replay.
package server
