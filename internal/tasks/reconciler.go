package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/services"
	"github.com/desertthunder/vinyl/internal/shared"
	"golang.org/x/time/rate"
)

// Options configures a [Reconciler].
type Options struct {
	Allowed         models.AllowedContext
	PollInterval    time.Duration // scheduled poll period
	MinPollInterval time.Duration // minimum spacing between network polls
	SettleDelay     time.Duration // wait after a command before the follow-up poll
	IntentDuration  time.Duration // how long a banner stays up
	Retry           services.RetryPolicy
	Logger          *log.Logger
	Now             func() time.Time
}

// OptionsFromConfig builds loop options from the [player] config section.
func OptionsFromConfig(cfg shared.PlayerConfig) (Options, error) {
	allowed, err := models.NewAllowedContext(cfg.PlaylistID)
	if err != nil {
		return Options{}, fmt.Errorf("%w: player.playlist_id: %v", shared.ErrInvalidConfig, err)
	}
	return Options{
		Allowed:         allowed,
		PollInterval:    cfg.PollInterval.Duration,
		MinPollInterval: cfg.MinPollInterval.Duration,
		SettleDelay:     cfg.SettleDelay.Duration,
		IntentDuration:  cfg.IntentDuration.Duration,
		Retry:           services.DefaultRetryPolicy(),
	}, nil
}

func (o Options) normalized() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 10 * time.Second
	}
	if o.MinPollInterval <= 0 {
		o.MinPollInterval = time.Second
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 300 * time.Millisecond
	}
	if o.IntentDuration <= 0 {
		o.IntentDuration = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = shared.NewLogger(nil)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Retry.Logger == nil {
		o.Retry.Logger = o.Logger
	}
	return o
}

// Reconciler keeps the local view of playback in step with the remote player and steers
// playback back into the allowed playlist.
//
// Every snapshot goes through [Reconciler.Apply]; polls may overlap but applications are
// serialised, and the last one applied wins.
type Reconciler struct {
	backend Backend
	opts    Options
	logger  *log.Logger
	limiter *rate.Limiter
	kick    chan struct{}

	applyMu sync.Mutex

	mu             sync.Mutex
	v              View
	applied        bool
	playlistLoaded bool
	lastPoll       time.Time
	updates        chan<- ProgressUpdate
}

// NewReconciler creates a loop in the Unauthenticated state.
func NewReconciler(backend Backend, opts Options) *Reconciler {
	opts = opts.normalized()
	return &Reconciler{
		backend: backend,
		opts:    opts,
		logger:  shared.WithLogger(opts.Logger, "component", "reconciler"),
		limiter: rate.NewLimiter(rate.Every(opts.MinPollInterval), 1),
		kick:    make(chan struct{}, 1),
		v:       View{State: Unauthenticated},
	}
}

// State returns the current state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.v.State
}

// View returns a copy of the presentation state. Expired intents are dropped.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked()
}

func (r *Reconciler) viewLocked() View {
	now := r.opts.Now()
	v := r.v.clone()
	v.At = now
	if v.Intent.Expired(now) {
		v.Intent = nil
	}
	return v
}

func (r *Reconciler) emitLocked(phase Phase, message string) {
	sendProgress(r.updates, viewUpdate(phase, message, r.viewLocked()))
}

func (r *Reconciler) transitionLocked(to State, phase Phase, message string) {
	if from := r.v.State; from != to {
		r.logger.Info("state transition", "from", from, "to", to)
		r.v.State = to
		if message == "" {
			message = transitionMessage(from, to)
		}
	}
	r.emitLocked(phase, message)
}

func (r *Reconciler) transition(to State, phase Phase, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitionLocked(to, phase, message)
}

func (r *Reconciler) setIntentLocked(kind models.IntentKind, message, trackID string) {
	r.v.Intent = models.NewTransitionIntent(kind, message, trackID, r.opts.Now(), r.opts.IntentDuration)
}

// Kick asks the running loop to step as soon as possible.
func (r *Reconciler) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// followUpDelay is how long to wait before the poll that confirms a command: at least the
// settle delay, and long enough for the minimum-interval guard to admit it.
func (r *Reconciler) followUpDelay() time.Duration {
	r.mu.Lock()
	last := r.lastPoll
	r.mu.Unlock()

	delay := r.opts.SettleDelay
	if last.IsZero() {
		return delay
	}
	return max(delay, last.Add(r.opts.MinPollInterval).Sub(r.opts.Now()))
}

// schedulePoll kicks the loop once [Reconciler.followUpDelay] has passed.
func (r *Reconciler) schedulePoll() {
	time.AfterFunc(r.followUpDelay(), r.Kick)
}

// Step performs the one action the current state calls for: a session check, device
// discovery, or a poll.
func (r *Reconciler) Step(ctx context.Context) error {
	switch r.State() {
	case Unauthenticated:
		return r.checkSession(ctx)
	case AwaitingDevice:
		return r.discover(ctx)
	default:
		r.mu.Lock()
		unknown := r.v.Capability == models.CapabilityUnknown
		loaded := r.playlistLoaded
		r.mu.Unlock()
		if unknown {
			if err := r.refreshAccount(ctx); errors.Is(err, shared.ErrNotAuthenticated) {
				return err
			}
		}
		if !loaded {
			r.loadPlaylist(ctx)
		}
		_, err := r.Poll(ctx)
		return err
	}
}

func (r *Reconciler) checkSession(ctx context.Context) error {
	ok, err := r.backend.Session(ctx)
	if err != nil {
		r.fail(err, CheckSession)
		return err
	}
	if !ok {
		ok = r.refreshSession(ctx)
	}
	if !ok {
		r.mu.Lock()
		r.emitLocked(CheckSession, "Connect Spotify to start listening")
		r.mu.Unlock()
		return nil
	}

	r.transition(AwaitingDevice, CheckSession, "Connected")
	r.Kick()
	return nil
}

// refreshSession trades the refresh cookie for a new access token and reports whether it worked.
func (r *Reconciler) refreshSession(ctx context.Context) bool {
	if err := r.backend.RefreshSession(ctx); err != nil {
		r.logger.Debug("session refresh failed", "err", err)
		return false
	}
	r.logger.Info("session refreshed")
	return true
}

// refreshAccount resolves the capability tier. Until it succeeds the session is treated as standard.
func (r *Reconciler) refreshAccount(ctx context.Context) error {
	account, err := r.backend.Me(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotAuthenticated) {
			r.fail(err, DiscoverDevice)
		} else {
			r.logger.Warn("capability check failed", "err", err)
		}
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.v.Account = account
	r.v.Capability = models.CapabilityOf(account)
	return nil
}

func (r *Reconciler) loadPlaylist(ctx context.Context) {
	playlist, err := r.backend.Playlist(ctx, r.opts.Allowed.PlaylistID)
	if err != nil {
		r.logger.Warn("playlist fetch failed", "err", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.v.Playlist = playlist
	r.playlistLoaded = true
}

func (r *Reconciler) discover(ctx context.Context) error {
	if err := r.refreshAccount(ctx); errors.Is(err, shared.ErrNotAuthenticated) {
		return err
	}

	r.mu.Lock()
	loaded := r.playlistLoaded
	r.mu.Unlock()
	if !loaded {
		r.loadPlaylist(ctx)
	}

	devices, err := r.backend.Devices(ctx)
	if err != nil {
		r.fail(err, DiscoverDevice)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.v.Devices = devices

	device, ok := models.ActiveDevice(devices)
	if !ok {
		r.v.Message = "Open Spotify on a phone, computer or speaker, then come back"
		r.emitLocked(DiscoverDevice, r.v.Message)
		return nil
	}

	r.v.DeviceID = device.ID
	r.v.Message = ""
	r.transitionLocked(Idle, DiscoverDevice, "Playing on "+device.Name)
	r.Kick()
	return nil
}

// Poll fetches a snapshot and applies it. A poll inside the minimum interval of the previous
// one makes no network call and reports false.
func (r *Reconciler) Poll(ctx context.Context) (bool, error) {
	if !r.limiter.AllowN(r.opts.Now(), 1) {
		r.logger.Debug("poll skipped", "reason", "min interval")
		return false, nil
	}

	r.mu.Lock()
	r.lastPoll = r.opts.Now()
	r.mu.Unlock()

	snap, err := r.backend.Current(ctx)
	if errors.Is(err, shared.ErrNotAuthenticated) && r.refreshSession(ctx) {
		snap, err = r.backend.Current(ctx)
	}
	if err != nil {
		r.fail(err, Poll)
		return true, err
	}
	return true, r.Apply(ctx, snap)
}

// member reports whether snap is inside the allowed playlist. known is false when the context
// does not match and the playlist has not been loaded yet.
func (r *Reconciler) member(snap models.PlaybackSnapshot) (in, known bool) {
	if r.opts.Allowed.Matches(snap.ContextURI) {
		return true, true
	}
	if !r.playlistLoaded {
		return false, false
	}
	return r.v.Playlist.Contains(snap.TrackID), true
}

// Apply is the single transition function for snapshots.
//
// A snapshot that agrees with the last applied one on track and playing flag changes nothing.
// Context enforcement runs only when the track changes: in the playlist clears any banner; out
// of it, an elevated session gets one force-context command while any other session gets an
// advisory banner. While the playlist is still unloaded, a track from another context only
// gets the advisory.
func (r *Reconciler) Apply(ctx context.Context, snap models.PlaybackSnapshot) error {
	r.applyMu.Lock()
	defer r.applyMu.Unlock()

	r.mu.Lock()
	if r.v.State == Error {
		r.v.Message = ""
		r.transitionLocked(Idle, Poll, "Recovered")
	}
	if r.applied && r.v.Snapshot.SameState(snap) {
		r.mu.Unlock()
		return nil
	}

	trackChanged := !r.applied || r.v.Snapshot.TrackID != snap.TrackID
	r.v.Snapshot = snap
	r.applied = true
	if snap.DeviceID != "" {
		r.v.DeviceID = snap.DeviceID
	}

	if snap.Empty() {
		r.v.InPlaylist = false
		r.v.Queue = models.Queue{}
		r.transitionLocked(Idle, Poll, "Nothing playing")
		r.mu.Unlock()
		return nil
	}
	if !trackChanged {
		r.emitLocked(Poll, trackMessage(snap))
		r.mu.Unlock()
		return nil
	}

	inPlaylist, known := r.member(snap)
	elevated := r.v.Capability.Elevated()
	r.v.InPlaylist = inPlaylist
	r.mu.Unlock()

	r.refreshQueue(ctx)

	switch {
	case inPlaylist:
		r.mu.Lock()
		r.v.Intent = nil
		r.transitionLocked(Idle, Poll, trackMessage(snap))
		r.mu.Unlock()
		return nil

	case !known:
		r.mu.Lock()
		r.setIntentLocked(models.IntentOutOfPlaylist, "Playing outside the playlist. Press start to go back to it.", snap.TrackID)
		r.transitionLocked(Idle, Reconcile, trackMessage(snap))
		r.mu.Unlock()
		return nil

	case !elevated:
		r.mu.Lock()
		r.setIntentLocked(models.IntentOutOfPlaylist, "This track is off the record. Press start to go back to the playlist.", snap.TrackID)
		r.transitionLocked(Idle, Reconcile, trackMessage(snap))
		r.mu.Unlock()
		return nil
	}

	r.mu.Lock()
	r.setIntentLocked(models.IntentSwitchToPlaylist, "Switching back to the playlist", snap.TrackID)
	r.transitionLocked(Reconciling, Reconcile, "Switching back to the playlist")
	r.mu.Unlock()

	err := services.Do(ctx, r.opts.Retry, func(ctx context.Context) error {
		return r.backend.Play(ctx, services.PlayRequest{DeviceID: snap.DeviceID, ContextURI: r.opts.Allowed.URI()})
	})
	if err != nil {
		r.fail(err, Reconcile)
		return err
	}

	r.transition(Idle, Reconcile, "Back on the playlist")
	r.schedulePoll()
	return nil
}

// refreshQueue updates the neighbour previews. Failures only reach the log.
func (r *Reconciler) refreshQueue(ctx context.Context) {
	queue, err := r.backend.Queue(ctx)
	if err != nil {
		r.logger.Warn("queue fetch failed", "err", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.v.Queue = queue
}

// fail records err against the state machine. Unauthenticated resets the loop; no device and
// rate limits raise a banner; other failures move Idle or Reconciling to Error.
func (r *Reconciler) fail(err error, phase Phase) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
		r.v.Snapshot = models.PlaybackSnapshot{}
		r.v.Queue = models.Queue{}
		r.v.Capability = models.CapabilityUnknown
		r.applied = false
		r.transitionLocked(Unauthenticated, phase, "Session expired, connect Spotify again")

	case errors.Is(err, shared.ErrNoActiveDevice):
		r.setIntentLocked(models.IntentNoActiveDevice, "No active device: open Spotify on a device and try again", "")
		r.emitLocked(phase, r.v.Intent.Message)

	case errors.Is(err, shared.ErrRateLimited):
		r.setIntentLocked(models.IntentRateLimited, "Spotify is rate limiting us, please wait", "")
		r.emitLocked(phase, r.v.Intent.Message)

	case errors.Is(err, shared.ErrPremiumRequired):
		r.v.Capability = models.CapabilityStandard
		r.v.Message = "Spotify Premium is required for playback control"
		r.emitLocked(phase, r.v.Message)

	default:
		r.v.Message = err.Error()
		if r.v.State == Idle || r.v.State == Reconciling {
			r.transitionLocked(Error, phase, r.v.Message)
			return
		}
		r.emitLocked(phase, r.v.Message)
	}
}

func (r *Reconciler) command(ctx context.Context, name string, fn func(ctx context.Context, deviceID string) error) error {
	r.mu.Lock()
	deviceID := r.v.DeviceID
	r.mu.Unlock()

	if deviceID == "" {
		err := fmt.Errorf("%w: %s needs a device", shared.ErrNoActiveDevice, name)
		r.fail(err, Command)
		return err
	}

	if err := fn(ctx, deviceID); err != nil {
		r.fail(err, Command)
		return err
	}

	r.logger.Debug("command sent", "command", name, "device", deviceID)
	r.mu.Lock()
	r.emitLocked(Command, name)
	r.mu.Unlock()
	r.schedulePoll()
	return nil
}

// Toggle plays when paused and pauses when playing.
func (r *Reconciler) Toggle(ctx context.Context) error {
	play := !r.View().Snapshot.IsPlaying
	return r.command(ctx, "toggle", func(ctx context.Context, deviceID string) error {
		return r.backend.Toggle(ctx, play, deviceID)
	})
}

func (r *Reconciler) Next(ctx context.Context) error {
	return r.command(ctx, "next", r.backend.Next)
}

func (r *Reconciler) Previous(ctx context.Context) error {
	return r.command(ctx, "previous", r.backend.Previous)
}

// StartPlaylist drops the needle on the first track of the allowed playlist.
func (r *Reconciler) StartPlaylist(ctx context.Context) error {
	return r.command(ctx, "start playlist", r.backend.StartPlaylist)
}

// PlayTrack plays trackURI inside the allowed playlist from positionMS.
func (r *Reconciler) PlayTrack(ctx context.Context, trackURI string, positionMS int) error {
	if trackURI == "" {
		return fmt.Errorf("%w: track uri", shared.ErrMissingArgument)
	}
	return r.command(ctx, "play track", func(ctx context.Context, deviceID string) error {
		return r.backend.PlayTrack(ctx, services.PlayTrackRequest{
			DeviceID:    deviceID,
			TrackURI:    trackURI,
			PlaylistURI: r.opts.Allowed.URI(),
			PositionMS:  positionMS,
		})
	})
}

// Run steps the loop on the poll interval and whenever it is kicked, until ctx is cancelled.
// Updates are sent to updates without blocking; a lagging consumer misses updates, not state.
func (r *Reconciler) Run(ctx context.Context, updates chan<- ProgressUpdate) error {
	r.mu.Lock()
	r.updates = updates
	r.mu.Unlock()

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	r.step(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.step(ctx)
		case <-r.kick:
			r.step(ctx)
		}
	}
}

func (r *Reconciler) step(ctx context.Context) {
	if err := r.Step(ctx); err != nil && ctx.Err() == nil {
		r.logger.Debug("step failed", "state", r.State(), "err", err)
	}
}
