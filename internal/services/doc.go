// Package services implements the clients vinyl uses to talk to other processes.
//
// # Remote player
//
// [SpotifyService] implements [Provider]: it builds authorization URLs, exchanges codes and
// refreshes tokens through [oauth2.Config]. [SpotifyService.Player] returns a [SpotifyPlayer]
// bound to one bearer token, so the facade creates one per request from the session cookie.
// Outbound requests are traced with otelhttp and bounded by a timeout (10s by default).
//
// # Errors
//
// Non-2xx responses become [*APIError], which unwraps to the sentinels in the shared package:
//   - 401 : [shared.ErrNotAuthenticated]
//   - 404 NO_ACTIVE_DEVICE : [shared.ErrNoActiveDevice]
//   - 403 PREMIUM_REQUIRED : [shared.ErrPremiumRequired]
//   - 429 : [shared.ErrRateLimited], with the Retry-After hint in RetryAfter
//   - anything else : [shared.ErrProviderError]
//
// # Retry
//
// [WithRetry] and [Do] repeat idempotent calls. Rate-limited calls wait for the provider's
// hint; transient failures back off exponentially; terminal failures return at once.
//
// # Facade client
//
// [APIService] is the typed client for the vinyl HTTP facade. Paired with a [FileJar] it
// keeps the session cookies between CLI invocations.
package services
