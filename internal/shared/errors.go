package shared

import "errors"

var (
	ErrNotImplemented = errors.New("not implemented")

	// Configuration errors
	ErrMissingConfig      = errors.New("configuration not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")

	// Session errors
	ErrAuthFailed       = errors.New("authentication failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRefreshFailed    = errors.New("token refresh failed")
	ErrNoRefreshToken   = errors.New("no refresh token available")
	ErrStateMismatch    = errors.New("oauth state mismatch")
	ErrTimeout          = errors.New("operation timed out")

	// Player errors
	ErrNoActiveDevice   = errors.New("no active device")
	ErrPremiumRequired  = errors.New("premium account required")
	ErrRateLimited      = errors.New("rate limited")
	ErrProviderError    = errors.New("provider request failed")
	ErrPlaylistNotFound = errors.New("playlist not found")

	// Store errors
	ErrStoreFailure = errors.New("notes store failure")
	ErrNoteNotFound = errors.New("note not found")

	// Input validation errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidFlag     = errors.New("invalid flag value")
)
