// Spotify Web API implementation of [Provider] and [Player]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/shared"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// ReducedPlaylistFields is the narrow playlist query used when the full payload is refused.
	ReducedPlaylistFields = "id,name,description,uri,images,tracks.items(track(id,name,uri,duration_ms,artists(id,name),album(id,name,images))),tracks.next"

	maxIDsPerRequest = 50
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Product     string         `json:"product"` // premium, free, etc.
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyDevice represents a playback device.
type SpotifyDevice struct {
	ID            string `json:"id"`
	IsActive      bool   `json:"is_active"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	VolumePercent int    `json:"volume_percent"`
}

// SpotifyPlaybackState is the /me/player payload.
type SpotifyPlaybackState struct {
	Device     *SpotifyDevice `json:"device"`
	ProgressMS int            `json:"progress_ms"`
	IsPlaying  bool           `json:"is_playing"`
	Item       *SpotifyTrack  `json:"item"`
	Context    *struct {
		URI string `json:"uri"`
	} `json:"context"`
}

// SpotifyQueue is the /me/player/queue payload.
type SpotifyQueue struct {
	CurrentlyPlaying *SpotifyTrack  `json:"currently_playing"`
	Queue            []SpotifyTrack `json:"queue"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

type playlistTracksPage struct {
	Items []SpotifyPlaylistTrack `json:"items"`
	Next  *string                `json:"next"`
}

// SpotifyPlaylist represents a Spotify playlist with its first page of tracks.
type SpotifyPlaylist struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Images      []SpotifyImage     `json:"images"`
	URI         string             `json:"uri"`
	Tracks      playlistTracksPage `json:"tracks"`
}

func (t *SpotifyTrack) model() *models.Track {
	if t == nil || t.ID == "" {
		return nil
	}
	track := &models.Track{
		ID:         t.ID,
		Name:       t.Name,
		URI:        t.URI,
		DurationMS: t.DurationMS,
		Album:      models.Album{ID: t.Album.ID, Name: t.Album.Name, Images: images(t.Album.Images)},
	}
	for _, a := range t.Artists {
		track.Artists = append(track.Artists, models.Artist{ID: a.ID, Name: a.Name})
	}
	return track
}

func (d *SpotifyDevice) model() *models.Device {
	if d == nil {
		return nil
	}
	return &models.Device{ID: d.ID, Name: d.Name, Type: d.Type, IsActive: d.IsActive, VolumePercent: d.VolumePercent}
}

func images(in []SpotifyImage) []models.Image {
	out := make([]models.Image, 0, len(in))
	for _, img := range in {
		out = append(out, models.Image{URL: img.URL, Width: img.Width, Height: img.Height})
	}
	return out
}

// SpotifyOption customises a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithTimeout bounds every provider request.
func WithTimeout(d time.Duration) SpotifyOption {
	return func(s *SpotifyService) { s.timeout = d }
}

// WithTransport replaces the base transport beneath tracing and bearer auth.
func WithTransport(rt http.RoundTripper) SpotifyOption {
	return func(s *SpotifyService) { s.transport = rt }
}

// WithClock replaces time.Now for snapshot capture times.
func WithClock(now func() time.Time) SpotifyOption {
	return func(s *SpotifyService) { s.now = now }
}

// SpotifyService implements [Provider] for the Spotify Web API.
//
// It holds no session: each [Player] it returns carries one caller's bearer token.
type SpotifyService struct {
	config    *oauth2.Config
	apiURL    string
	transport http.RoundTripper
	timeout   time.Duration
	now       func() time.Time
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
//
// Besides client_id, client_secret and redirect_uri, the optional keys api_url, auth_url and
// token_url point the service at alternate endpoints.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/auth/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"streaming",
			"user-read-email",
			"user-read-private",
			"user-read-playback-state",
			"user-modify-playback-state",
			"user-read-currently-playing",
			"user-library-read",
			"user-library-modify",
			"playlist-read-private",
			"playlist-read-collaborative",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  valueOr(credentials["auth_url"], spotifyAuthURL),
			TokenURL: valueOr(credentials["token_url"], spotifyTokenURL),
		},
	}

	s := &SpotifyService{
		config:    config,
		apiURL:    strings.TrimRight(valueOr(credentials["api_url"], spotifyBaseURL), "/"),
		transport: http.DefaultTransport,
		timeout:   10 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state, redirectURI string) string {
	return s.config.AuthCodeURL(state, redirectOpts(redirectURI, oauth2.AccessTypeOffline)...)
}

func redirectOpts(redirectURI string, opts ...oauth2.AuthCodeOption) []oauth2.AuthCodeOption {
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}
	return opts
}

func (s *SpotifyService) tokenContext(ctx context.Context) context.Context {
	client := &http.Client{Transport: otelhttp.NewTransport(s.transport), Timeout: s.timeout}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

// Exchange trades an authorization code for an access and refresh token.
func (s *SpotifyService) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: code", shared.ErrMissingArgument)
	}
	token, err := s.config.Exchange(s.tokenContext(ctx), code, redirectOpts(redirectURI)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// Refresh obtains a fresh access token. The refresh token is carried over when the provider omits it.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}
	expired := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	token, err := s.config.TokenSource(s.tokenContext(ctx), expired).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return token, nil
}

// Player returns a [SpotifyPlayer] authorised with accessToken.
func (s *SpotifyService) Player(accessToken string) Player {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return &SpotifyPlayer{
		service: s,
		httpClient: &http.Client{
			Transport: &oauth2.Transport{Source: src, Base: otelhttp.NewTransport(s.transport)},
			Timeout:   s.timeout,
		},
	}
}

// SpotifyPlayer implements [Player] for one bearer token.
type SpotifyPlayer struct {
	service    *SpotifyService
	httpClient *http.Client
}

// doRequest performs an authenticated request. endpoint is either a path below the API root or an absolute paging URL.
func (p *SpotifyPlayer) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = p.service.apiURL + endpoint
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseSpotifyError(resp, data)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func withDevice(path, deviceID string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	if deviceID != "" {
		params.Set("device_id", deviceID)
	}
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

// CurrentUser retrieves the current authenticated user's profile.
func (p *SpotifyPlayer) CurrentUser(ctx context.Context) (models.Account, error) {
	var user SpotifyUser
	if err := p.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return models.Account{}, err
	}
	return models.Account{ID: user.ID, Name: user.DisplayName, Email: user.Email, Product: user.Product}, nil
}

// PlaybackState reads /me/player. A 204 means nothing is loaded.
func (p *SpotifyPlayer) PlaybackState(ctx context.Context) (models.PlaybackSnapshot, error) {
	var state SpotifyPlaybackState
	if err := p.doRequest(ctx, http.MethodGet, "/me/player", nil, &state); err != nil {
		return models.PlaybackSnapshot{}, err
	}

	var contextURI string
	if state.Context != nil {
		contextURI = state.Context.URI
	}
	return models.NewPlaybackSnapshot(
		state.Item.model(), state.Device.model(), state.IsPlaying, state.ProgressMS, contextURI, p.service.now(),
	), nil
}

// Devices lists the user's available playback devices.
func (p *SpotifyPlayer) Devices(ctx context.Context) ([]models.Device, error) {
	var resp struct {
		Devices []SpotifyDevice `json:"devices"`
	}
	if err := p.doRequest(ctx, http.MethodGet, "/me/player/devices", nil, &resp); err != nil {
		return nil, err
	}
	devices := make([]models.Device, 0, len(resp.Devices))
	for i := range resp.Devices {
		devices = append(devices, *resp.Devices[i].model())
	}
	return devices, nil
}

// Queue returns the currently playing item as Previous and the head of the queue as Next.
func (p *SpotifyPlayer) Queue(ctx context.Context) (models.Queue, error) {
	var q SpotifyQueue
	if err := p.doRequest(ctx, http.MethodGet, "/me/player/queue", nil, &q); err != nil {
		return models.Queue{}, err
	}
	queue := models.Queue{Previous: q.CurrentlyPlaying.model()}
	if len(q.Queue) > 0 {
		queue.Next = q.Queue[0].model()
	}
	return queue, nil
}

// Play starts playback as described by opts.
func (p *SpotifyPlayer) Play(ctx context.Context, opts PlayOptions) error {
	body, err := opts.body()
	if err != nil {
		return err
	}
	return p.doRequest(ctx, http.MethodPut, withDevice("/me/player/play", opts.DeviceID, nil), body, nil)
}

func (p *SpotifyPlayer) Pause(ctx context.Context, deviceID string) error {
	return p.doRequest(ctx, http.MethodPut, withDevice("/me/player/pause", deviceID, nil), nil, nil)
}

func (p *SpotifyPlayer) Next(ctx context.Context, deviceID string) error {
	return p.doRequest(ctx, http.MethodPost, withDevice("/me/player/next", deviceID, nil), nil, nil)
}

func (p *SpotifyPlayer) Previous(ctx context.Context, deviceID string) error {
	return p.doRequest(ctx, http.MethodPost, withDevice("/me/player/previous", deviceID, nil), nil, nil)
}

// Seek moves the playhead to positionMS.
func (p *SpotifyPlayer) Seek(ctx context.Context, deviceID string, positionMS int) error {
	if positionMS < 0 {
		return fmt.Errorf("%w: position must not be negative", shared.ErrInvalidInput)
	}
	params := url.Values{"position_ms": {strconv.Itoa(positionMS)}}
	return p.doRequest(ctx, http.MethodPut, withDevice("/me/player/seek", deviceID, params), nil, nil)
}

// SetRepeat sets the repeat mode: track, context or off.
func (p *SpotifyPlayer) SetRepeat(ctx context.Context, deviceID, state string) error {
	params := url.Values{"state": {state}}
	return p.doRequest(ctx, http.MethodPut, withDevice("/me/player/repeat", deviceID, params), nil, nil)
}

func (p *SpotifyPlayer) SetShuffle(ctx context.Context, deviceID string, on bool) error {
	params := url.Values{"state": {strconv.FormatBool(on)}}
	return p.doRequest(ctx, http.MethodPut, withDevice("/me/player/shuffle", deviceID, params), nil, nil)
}

// Playlist retrieves a playlist and follows every tracks.next page.
func (p *SpotifyPlayer) Playlist(ctx context.Context, playlistID, fields string) (models.Playlist, error) {
	if playlistID == "" {
		return models.Playlist{}, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	endpoint := "/playlists/" + url.PathEscape(playlistID)
	if fields != "" {
		endpoint += "?" + url.Values{"fields": {fields}}.Encode()
	}

	var sp SpotifyPlaylist
	if err := p.doRequest(ctx, http.MethodGet, endpoint, nil, &sp); err != nil {
		return models.Playlist{}, err
	}

	playlist := models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		URI:         sp.URI,
		Images:      images(sp.Images),
	}

	page := sp.Tracks
	for {
		for _, item := range page.Items {
			if t := item.Track.model(); t != nil {
				playlist.Tracks = append(playlist.Tracks, *t)
			}
		}
		if page.Next == nil || *page.Next == "" {
			break
		}

		next := *page.Next
		page = playlistTracksPage{}
		if err := p.doRequest(ctx, http.MethodGet, next, nil, &page); err != nil {
			return models.Playlist{}, fmt.Errorf("failed to fetch playlist page: %w", err)
		}
	}

	return playlist, nil
}

func checkIDs(ids []string) (string, error) {
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: ids", shared.ErrMissingArgument)
	}
	if len(ids) > maxIDsPerRequest {
		return "", fmt.Errorf("%w: maximum %d ids allowed", shared.ErrInvalidInput, maxIDsPerRequest)
	}
	return url.Values{"ids": {strings.Join(ids, ",")}}.Encode(), nil
}

// ContainsSavedTracks reports, per id, whether the track is in the user's library.
func (p *SpotifyPlayer) ContainsSavedTracks(ctx context.Context, ids []string) ([]bool, error) {
	query, err := checkIDs(ids)
	if err != nil {
		return nil, err
	}
	var saved []bool
	if err := p.doRequest(ctx, http.MethodGet, "/me/tracks/contains?"+query, nil, &saved); err != nil {
		return nil, err
	}
	return saved, nil
}

func (p *SpotifyPlayer) SaveTracks(ctx context.Context, ids []string) error {
	query, err := checkIDs(ids)
	if err != nil {
		return err
	}
	return p.doRequest(ctx, http.MethodPut, "/me/tracks?"+query, nil, nil)
}

func (p *SpotifyPlayer) RemoveSavedTracks(ctx context.Context, ids []string) error {
	query, err := checkIDs(ids)
	if err != nil {
		return err
	}
	return p.doRequest(ctx, http.MethodDelete, "/me/tracks?"+query, nil, nil)
}
