// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"sync"
	"testing"

	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/services"
	"github.com/desertthunder/vinyl/internal/shared"
	"golang.org/x/oauth2"
)

// Call records one invocation on a [FakePlayer].
type Call struct {
	Method string
	Args   []any
}

// FakePlayer is an in-memory [services.Player]. Commands mutate its snapshot the way the
// remote player would, and every call is recorded.
type FakePlayer struct {
	mu sync.Mutex

	Account    models.Account
	Snapshot   models.PlaybackSnapshot
	DeviceList []models.Device
	QueueView  models.Queue
	Playlists  map[string]models.Playlist
	Saved      map[string]bool

	errs     map[string][]error
	sticky   map[string]error
	calls    []Call
	Fields   []string
	Repeat   string
	Shuffled bool
}

var _ services.Player = (*FakePlayer)(nil)

// NewFakePlayer returns a premium account with nothing loaded.
func NewFakePlayer() *FakePlayer {
	return &FakePlayer{
		Account:   models.Account{ID: "user-1", Name: "Listener", Product: "premium"},
		Playlists: map[string]models.Playlist{},
		Saved:     map[string]bool{},
		errs:      map[string][]error{},
		sticky:    map[string]error{},
	}
}

// Fail makes every call to method return err until cleared with a nil err.
func (f *FakePlayer) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.sticky, method)
		return
	}
	f.sticky[method] = err
}

// FailNext queues errors returned by the next calls to method, in order.
func (f *FakePlayer) FailNext(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = append(f.errs[method], errs...)
}

// SetSnapshot replaces the current playback state.
func (f *FakePlayer) SetSnapshot(s models.PlaybackSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Snapshot = s
}

// SetDevices replaces the device list.
func (f *FakePlayer) SetDevices(devices ...models.Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeviceList = devices
}

// AddPlaylist registers p under its ID.
func (f *FakePlayer) AddPlaylist(p models.Playlist) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Playlists[p.ID] = p
}

// Calls returns a copy of the recorded calls.
func (f *FakePlayer) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CallCount counts recorded calls to method.
func (f *FakePlayer) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// LastCall returns the most recent call to method.
func (f *FakePlayer) LastCall(method string) (Call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].Method == method {
			return f.calls[i], true
		}
	}
	return Call{}, false
}

// record logs the call and returns the injected error, if any. Callers hold f.mu.
func (f *FakePlayer) record(method string, args ...any) error {
	f.calls = append(f.calls, Call{Method: method, Args: args})
	if queued := f.errs[method]; len(queued) > 0 {
		f.errs[method] = queued[1:]
		return queued[0]
	}
	return f.sticky[method]
}

func (f *FakePlayer) findTrack(uri string) *models.Track {
	for _, p := range f.Playlists {
		for _, t := range p.Tracks {
			if t.URI == uri {
				track := t
				return &track
			}
		}
	}
	return nil
}

func (f *FakePlayer) CurrentUser(ctx context.Context) (models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CurrentUser"); err != nil {
		return models.Account{}, err
	}
	return f.Account, nil
}

func (f *FakePlayer) PlaybackState(ctx context.Context) (models.PlaybackSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PlaybackState"); err != nil {
		return models.PlaybackSnapshot{}, err
	}
	return f.Snapshot, nil
}

func (f *FakePlayer) Devices(ctx context.Context) ([]models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Devices"); err != nil {
		return nil, err
	}
	return slices.Clone(f.DeviceList), nil
}

func (f *FakePlayer) Queue(ctx context.Context) (models.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Queue"); err != nil {
		return models.Queue{}, err
	}
	return f.QueueView, nil
}

func (f *FakePlayer) Play(ctx context.Context, opts services.PlayOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Play", opts); err != nil {
		return err
	}

	track := f.Snapshot.Track
	if opts.TrackURI != "" {
		track = f.findTrack(opts.TrackURI)
	} else if opts.ContextURI != "" {
		for _, p := range f.Playlists {
			if p.URI == opts.ContextURI && len(p.Tracks) > 0 {
				first := p.Tracks[0]
				track = &first
			}
		}
	}
	progress := 0
	if opts.PositionMS != nil {
		progress = *opts.PositionMS
	}
	f.Snapshot = models.NewPlaybackSnapshot(track, f.Snapshot.Device, true, progress, opts.ContextURI, f.Snapshot.CapturedAt)
	return nil
}

func (f *FakePlayer) Pause(ctx context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Pause", deviceID); err != nil {
		return err
	}
	f.Snapshot.IsPlaying = false
	return nil
}

func (f *FakePlayer) Next(ctx context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Next", deviceID); err != nil {
		return err
	}
	if next := f.QueueView.Next; next != nil {
		s := f.Snapshot
		f.Snapshot = models.NewPlaybackSnapshot(next, s.Device, true, 0, s.ContextURI, s.CapturedAt)
	}
	return nil
}

func (f *FakePlayer) Previous(ctx context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Previous", deviceID); err != nil {
		return err
	}
	f.Snapshot.ProgressMS = 0
	return nil
}

func (f *FakePlayer) Seek(ctx context.Context, deviceID string, positionMS int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("Seek", deviceID, positionMS); err != nil {
		return err
	}
	f.Snapshot.ProgressMS = positionMS
	return nil
}

func (f *FakePlayer) SetRepeat(ctx context.Context, deviceID, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetRepeat", deviceID, state); err != nil {
		return err
	}
	f.Repeat = state
	return nil
}

func (f *FakePlayer) SetShuffle(ctx context.Context, deviceID string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetShuffle", deviceID, on); err != nil {
		return err
	}
	f.Shuffled = on
	return nil
}

func (f *FakePlayer) Playlist(ctx context.Context, playlistID, fields string) (models.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fields = append(f.Fields, fields)
	if err := f.record("Playlist", playlistID, fields); err != nil {
		return models.Playlist{}, err
	}
	p, ok := f.Playlists[playlistID]
	if !ok {
		return models.Playlist{}, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return p, nil
}

func (f *FakePlayer) ContainsSavedTracks(ctx context.Context, ids []string) ([]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ContainsSavedTracks", ids); err != nil {
		return nil, err
	}
	saved := make([]bool, len(ids))
	for i, id := range ids {
		saved[i] = f.Saved[id]
	}
	return saved, nil
}

func (f *FakePlayer) SaveTracks(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SaveTracks", ids); err != nil {
		return err
	}
	for _, id := range ids {
		f.Saved[id] = true
	}
	return nil
}

func (f *FakePlayer) RemoveSavedTracks(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("RemoveSavedTracks", ids); err != nil {
		return err
	}
	for _, id := range ids {
		delete(f.Saved, id)
	}
	return nil
}

// FakeProvider is a [services.Provider] whose codes and refresh tokens are configured up front.
type FakeProvider struct {
	mu sync.Mutex

	player        *FakePlayer
	Codes         map[string]*oauth2.Token
	RefreshTokens map[string]*oauth2.Token
	Redirects     []string
	Tokens        []string
}

var _ services.Provider = (*FakeProvider)(nil)

// NewFakeProvider serves player for every access token.
func NewFakeProvider(player *FakePlayer) *FakeProvider {
	return &FakeProvider{
		player:        player,
		Codes:         map[string]*oauth2.Token{},
		RefreshTokens: map[string]*oauth2.Token{},
	}
}

func (p *FakeProvider) AuthURL(state, redirectURI string) string {
	q := url.Values{"state": {state}, "client_id": {"fake"}}
	if redirectURI != "" {
		q.Set("redirect_uri", redirectURI)
	}
	return "https://accounts.example.test/authorize?" + q.Encode()
}

func (p *FakeProvider) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Redirects = append(p.Redirects, redirectURI)
	token, ok := p.Codes[code]
	if !ok {
		return nil, fmt.Errorf("%w: unknown code %q", shared.ErrAuthFailed, code)
	}
	return token, nil
}

func (p *FakeProvider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	token, ok := p.RefreshTokens[refreshToken]
	if !ok {
		return nil, fmt.Errorf("%w: unknown refresh token", shared.ErrRefreshFailed)
	}
	return token, nil
}

func (p *FakeProvider) Player(accessToken string) services.Player {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Tokens = append(p.Tokens, accessToken)
	return p.player
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
