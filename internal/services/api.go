// Client for the vinyl facade, used by the terminal player and the CLI
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/shared"
)

// ErrorResponse is the facade's failure envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse acknowledges a command.
type SuccessResponse struct {
	Success bool `json:"success"`
}

type StatusResponse struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Authenticated bool   `json:"authenticated"`
}

type SessionResponse struct {
	Authenticated bool `json:"authenticated"`
}

type AuthURLResponse struct {
	URL string `json:"url"`
}

type MeResponse struct {
	IsPremium bool           `json:"isPremium"`
	User      models.Account `json:"user"`
}

// CurrentResponse is GET /playback/current. Track and Device are null when nothing is loaded.
type CurrentResponse struct {
	Track      *models.Track  `json:"track"`
	IsPlaying  bool           `json:"isPlaying"`
	Device     *models.Device `json:"device"`
	ProgressMS int            `json:"progressMs"`
	ContextURI string         `json:"contextUri,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

type DevicesResponse struct {
	Devices []models.Device `json:"devices"`
}

// PlayRequest is the body of PUT /playback/play.
type PlayRequest struct {
	DeviceID   string `json:"deviceId"`
	ContextURI string `json:"contextUri,omitempty"`
	TrackURI   string `json:"trackUri,omitempty"`
	PositionMS *int   `json:"positionMs,omitempty"`
}

// PlayTrackRequest is the body of POST /playback/play-track.
type PlayTrackRequest struct {
	DeviceID    string `json:"deviceId,omitempty"`
	TrackURI    string `json:"trackUri"`
	PlaylistURI string `json:"playlistUri"`
	PositionMS  int    `json:"positionMs"`
}

// ToggleRequest is the body of POST /playback/toggle.
type ToggleRequest struct {
	Play     bool   `json:"play"`
	DeviceID string `json:"deviceId,omitempty"`
}

// DeviceRequest is the optional body of pause, next, previous and playlist start.
type DeviceRequest struct {
	DeviceID string `json:"deviceId,omitempty"`
}

type SeekRequest struct {
	DeviceID   string `json:"deviceId,omitempty"`
	PositionMS int    `json:"positionMs"`
}

type LibraryRequest struct {
	IDs []string `json:"ids"`
}

type LibraryContainsResponse struct {
	IDs   []string `json:"ids"`
	Saved []bool   `json:"saved"`
}

// NoteRequest is the body of POST /notes.
type NoteRequest struct {
	TrackID string `json:"trackId"`
	Note    struct {
		Content string `json:"content"`
	} `json:"note"`
}

type NoteCreatedResponse struct {
	Success bool   `json:"success"`
	NoteID  string `json:"noteId"`
}

type NotesResponse struct {
	Notes []*models.Note `json:"notes"`
}

// ReactRequest is the body of POST /notes/react.
type ReactRequest struct {
	NoteID string `json:"noteId"`
	Emoji  string `json:"emoji"`
	UserID string `json:"userId"`
}

type ReactResponse struct {
	Reactions models.Reactions `json:"reactions"`
}

// APIService calls the vinyl facade over HTTP. Session cookies live in the client's jar.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewAPIService creates a facade client. An empty baseURL means the default local server.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:3000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		now:        time.Now,
	}
}

// BaseURL returns the facade root.
func (a *APIService) BaseURL() string { return a.baseURL }

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Raw performs a request against path and returns the undecoded response, whatever its status.
func (a *APIService) Raw(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	resp, body, err := a.send(ctx, a.httpClient, method, path, data)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}
	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}
	return apiResp, nil
}

func (a *APIService) send(ctx context.Context, client *http.Client, method, path string, data []byte) (*http.Response, []byte, error) {
	var reader io.Reader
	if data != nil {
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, body, nil
}

// call sends body as JSON and decodes a 2xx response into result. Failures become [*APIError].
func (a *APIService) call(ctx context.Context, method, path string, body, result any) error {
	var data []byte
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	resp, raw, err := a.send(ctx, a.httpClient, method, path, data)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeEnvelope(resp, raw)
	}

	if result != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func decodeEnvelope(resp *http.Response, raw []byte) *APIError {
	apiErr := &APIError{
		Status:     resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
	var env ErrorResponse
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != "" {
		apiErr.Message = env.Error
		apiErr.Reason = env.Details
	}
	return apiErr
}

func (a *APIService) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := a.call(ctx, http.MethodGet, "/", nil, &resp)
	return resp, err
}

// Session reports whether the jar holds a session the facade accepts.
func (a *APIService) Session(ctx context.Context) (bool, error) {
	var resp SessionResponse
	if err := a.call(ctx, http.MethodGet, "/auth/session", nil, &resp); err != nil {
		return false, err
	}
	return resp.Authenticated, nil
}

// authParams builds the query shared by AuthURL and Callback.
func authParams(values url.Values, redirectURI string) string {
	if redirectURI != "" {
		values.Set("redirect_uri", redirectURI)
	}
	return values.Encode()
}

// AuthURL asks the facade for a provider authorization URL carrying state. A non-empty
// redirectURI sends the provider's redirect to a local catcher instead of the facade.
func (a *APIService) AuthURL(ctx context.Context, state, redirectURI string) (string, error) {
	var resp AuthURLResponse
	path := "/auth/url?" + authParams(url.Values{"state": {state}}, redirectURI)
	if err := a.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// Callback forwards an authorization code to the facade. The session cookies of the
// redirect response land in the client's jar; the redirect itself is not followed.
func (a *APIService) Callback(ctx context.Context, code, state, redirectURI string) error {
	client := *a.httpClient
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	path := "/auth/callback?" + authParams(url.Values{"code": {code}, "state": {state}}, redirectURI)
	resp, raw, err := a.send(ctx, &client, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return decodeEnvelope(resp, raw)
	}
	return nil
}

// RefreshSession trades the refresh cookie for a new access cookie.
func (a *APIService) RefreshSession(ctx context.Context) error {
	return a.call(ctx, http.MethodPost, "/auth/refresh", nil, nil)
}

func (a *APIService) Logout(ctx context.Context) error {
	return a.call(ctx, http.MethodPost, "/logout", nil, nil)
}

func (a *APIService) Me(ctx context.Context) (models.Account, error) {
	var resp MeResponse
	if err := a.call(ctx, http.MethodGet, "/me", nil, &resp); err != nil {
		return models.Account{}, err
	}
	return resp.User, nil
}

// Current returns the facade's playback view as a snapshot captured now.
func (a *APIService) Current(ctx context.Context) (models.PlaybackSnapshot, error) {
	var resp CurrentResponse
	if err := a.call(ctx, http.MethodGet, "/playback/current", nil, &resp); err != nil {
		return models.PlaybackSnapshot{}, err
	}
	return models.NewPlaybackSnapshot(resp.Track, resp.Device, resp.IsPlaying, resp.ProgressMS, resp.ContextURI, a.now()), nil
}

func (a *APIService) Devices(ctx context.Context) ([]models.Device, error) {
	var resp DevicesResponse
	if err := a.call(ctx, http.MethodGet, "/devices", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

func (a *APIService) Queue(ctx context.Context) (models.Queue, error) {
	var resp models.Queue
	err := a.call(ctx, http.MethodGet, "/playback/queue", nil, &resp)
	return resp, err
}

// Playlist fetches a playlist; an empty id means the facade's configured playlist.
func (a *APIService) Playlist(ctx context.Context, id string) (models.Playlist, error) {
	path := "/playlist"
	if id != "" {
		path += "?" + url.Values{"id": {id}}.Encode()
	}
	var resp models.Playlist
	err := a.call(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

func (a *APIService) Play(ctx context.Context, req PlayRequest) error {
	return a.call(ctx, http.MethodPut, "/playback/play", req, nil)
}

func (a *APIService) PlayTrack(ctx context.Context, req PlayTrackRequest) error {
	return a.call(ctx, http.MethodPost, "/playback/play-track", req, nil)
}

func (a *APIService) Toggle(ctx context.Context, play bool, deviceID string) error {
	return a.call(ctx, http.MethodPost, "/playback/toggle", ToggleRequest{Play: play, DeviceID: deviceID}, nil)
}

func (a *APIService) Pause(ctx context.Context, deviceID string) error {
	return a.call(ctx, http.MethodPut, "/playback/pause", DeviceRequest{DeviceID: deviceID}, nil)
}

func (a *APIService) Next(ctx context.Context, deviceID string) error {
	return a.call(ctx, http.MethodPost, "/playback/next", DeviceRequest{DeviceID: deviceID}, nil)
}

func (a *APIService) Previous(ctx context.Context, deviceID string) error {
	return a.call(ctx, http.MethodPost, "/playback/previous", DeviceRequest{DeviceID: deviceID}, nil)
}

func (a *APIService) Seek(ctx context.Context, deviceID string, positionMS int) error {
	return a.call(ctx, http.MethodPut, "/playback/seek", SeekRequest{DeviceID: deviceID, PositionMS: positionMS}, nil)
}

// StartPlaylist plays the configured playlist from the top with repeat and shuffle off.
func (a *APIService) StartPlaylist(ctx context.Context, deviceID string) error {
	return a.call(ctx, http.MethodPost, "/playlist/start", DeviceRequest{DeviceID: deviceID}, nil)
}

func (a *APIService) Saved(ctx context.Context, ids []string) ([]bool, error) {
	var resp LibraryContainsResponse
	path := "/library/contains?" + url.Values{"ids": {strings.Join(ids, ",")}}.Encode()
	if err := a.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Saved, nil
}

func (a *APIService) Save(ctx context.Context, ids []string) error {
	return a.call(ctx, http.MethodPut, "/library/save", LibraryRequest{IDs: ids}, nil)
}

func (a *APIService) Unsave(ctx context.Context, ids []string) error {
	return a.call(ctx, http.MethodPut, "/library/remove", LibraryRequest{IDs: ids}, nil)
}

// Notes lists the shared notes on trackID, newest first.
func (a *APIService) Notes(ctx context.Context, trackID string) ([]*models.Note, error) {
	if trackID == "" {
		return nil, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	var resp NotesResponse
	path := "/notes?" + url.Values{"trackId": {trackID}}.Encode()
	if err := a.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Notes, nil
}

// AddNote stores a note on trackID and returns its id.
func (a *APIService) AddNote(ctx context.Context, trackID, content string) (string, error) {
	req := NoteRequest{TrackID: trackID}
	req.Note.Content = content

	var resp NoteCreatedResponse
	if err := a.call(ctx, http.MethodPost, "/notes", req, &resp); err != nil {
		return "", err
	}
	return resp.NoteID, nil
}

// React toggles userID's emoji on a note and returns the note's new tally.
func (a *APIService) React(ctx context.Context, noteID, emoji, userID string) (models.Reactions, error) {
	var resp ReactResponse
	if err := a.call(ctx, http.MethodPost, "/notes/react", ReactRequest{NoteID: noteID, Emoji: emoji, UserID: userID}, &resp); err != nil {
		return nil, err
	}
	if resp.Reactions == nil {
		resp.Reactions = models.Reactions{}
	}
	return resp.Reactions, nil
}

// IsUnauthenticated reports whether err means the session is missing or expired.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, shared.ErrNotAuthenticated)
}
