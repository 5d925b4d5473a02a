// package services defines clients for the remote player (Spotify) and for the vinyl facade
package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/shared"
	"golang.org/x/oauth2"
)

// Provider issues sessions and player clients for the remote player service.
type Provider interface {
	// AuthURL returns the authorization URL carrying state. A non-empty redirectURI replaces
	// the configured one.
	AuthURL(state, redirectURI string) string

	// Exchange trades an authorization code for tokens. redirectURI must match the one the
	// authorization URL was built with.
	Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)

	// Refresh obtains a new access token from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	// Player returns a client acting with the given bearer token.
	Player(accessToken string) Player
}

// Player is the set of remote player operations used by the facade, one call per method.
type Player interface {
	CurrentUser(ctx context.Context) (models.Account, error)

	// PlaybackState returns the current snapshot; an empty snapshot when nothing is loaded.
	PlaybackState(ctx context.Context) (models.PlaybackSnapshot, error)
	Devices(ctx context.Context) ([]models.Device, error)
	Queue(ctx context.Context) (models.Queue, error)

	Play(ctx context.Context, opts PlayOptions) error
	Pause(ctx context.Context, deviceID string) error
	Next(ctx context.Context, deviceID string) error
	Previous(ctx context.Context, deviceID string) error
	Seek(ctx context.Context, deviceID string, positionMS int) error
	SetRepeat(ctx context.Context, deviceID, state string) error
	SetShuffle(ctx context.Context, deviceID string, on bool) error

	// Playlist fetches a playlist and all of its track pages. A non-empty fields narrows the payload.
	Playlist(ctx context.Context, playlistID, fields string) (models.Playlist, error)

	ContainsSavedTracks(ctx context.Context, ids []string) ([]bool, error)
	SaveTracks(ctx context.Context, ids []string) error
	RemoveSavedTracks(ctx context.Context, ids []string) error
}

// PlayOptions selects what to start.
//
// A context with a track starts the context at that track; a track alone plays just that
// track; a context alone resumes the context from its start.
type PlayOptions struct {
	DeviceID   string
	ContextURI string
	TrackURI   string
	PositionMS *int
}

type playOffset struct {
	URI string `json:"uri"`
}

type playBody struct {
	ContextURI string      `json:"context_uri,omitempty"`
	URIs       []string    `json:"uris,omitempty"`
	Offset     *playOffset `json:"offset,omitempty"`
	PositionMS *int        `json:"position_ms,omitempty"`
}

// body builds the provider request body, rejecting options with neither a context nor a track.
func (o PlayOptions) body() (playBody, error) {
	b := playBody{PositionMS: o.PositionMS}
	switch {
	case o.ContextURI != "" && o.TrackURI != "":
		b.ContextURI = o.ContextURI
		b.Offset = &playOffset{URI: o.TrackURI}
	case o.TrackURI != "":
		b.URIs = []string{o.TrackURI}
	case o.ContextURI != "":
		b.ContextURI = o.ContextURI
	default:
		return playBody{}, fmt.Errorf("%w: contextUri or trackUri", shared.ErrMissingArgument)
	}
	return b, nil
}

// IntPtr returns a pointer to v, for optional positions.
func IntPtr(v int) *int { return &v }
