package tasks

import (
	"context"
	"slices"
	"time"

	"github.com/desertthunder/vinyl/internal/models"
	"github.com/desertthunder/vinyl/internal/services"
)

// State is the reconciliation loop's position in its state machine.
type State int

const (
	Unauthenticated State = iota
	AwaitingDevice
	Idle
	Reconciling
	Error
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case AwaitingDevice:
		return "awaiting_device"
	case Idle:
		return "idle"
	case Reconciling:
		return "reconciling"
	case Error:
		return "error"
	default:
		return ""
	}
}

// Backend is the facade as seen by the loop. [*services.APIService] implements it.
type Backend interface {
	Session(ctx context.Context) (bool, error)
	RefreshSession(ctx context.Context) error
	Me(ctx context.Context) (models.Account, error)
	Devices(ctx context.Context) ([]models.Device, error)
	Playlist(ctx context.Context, id string) (models.Playlist, error)
	Current(ctx context.Context) (models.PlaybackSnapshot, error)
	Queue(ctx context.Context) (models.Queue, error)

	Play(ctx context.Context, req services.PlayRequest) error
	PlayTrack(ctx context.Context, req services.PlayTrackRequest) error
	Toggle(ctx context.Context, play bool, deviceID string) error
	Next(ctx context.Context, deviceID string) error
	Previous(ctx context.Context, deviceID string) error
	StartPlaylist(ctx context.Context, deviceID string) error
}

var _ Backend = (*services.APIService)(nil)

// NotesClient reads notes from the facade. [*services.APIService] implements it.
type NotesClient interface {
	Notes(ctx context.Context, trackID string) ([]*models.Note, error)
}

// View is a copy of the loop's state for presentation. Nothing in it is shared with the loop.
type View struct {
	State      State
	Snapshot   models.PlaybackSnapshot
	Account    models.Account
	Capability models.Capability
	Devices    []models.Device
	DeviceID   string
	Queue      models.Queue
	Playlist   models.Playlist
	InPlaylist bool
	Intent     *models.TransitionIntent
	Message    string
	At         time.Time
}

// StartListening reports whether the "Start Listening" affordance should be offered.
func (v View) StartListening() bool {
	return v.State != Unauthenticated && v.State != AwaitingDevice && v.Snapshot.Empty()
}

// Progress estimates the playback position at now from the last applied snapshot.
func (v View) Progress(now time.Time) int {
	progress := v.Snapshot.ProgressMS
	if v.Snapshot.IsPlaying && !v.Snapshot.CapturedAt.IsZero() {
		progress += int(now.Sub(v.Snapshot.CapturedAt).Milliseconds())
	}
	if v.Snapshot.Track != nil && v.Snapshot.Track.DurationMS > 0 {
		progress = min(progress, v.Snapshot.Track.DurationMS)
	}
	return max(progress, 0)
}

func (v View) clone() View {
	out := v
	out.Devices = slices.Clone(v.Devices)
	out.Playlist.Tracks = slices.Clone(v.Playlist.Tracks)
	if v.Intent != nil {
		intent := *v.Intent
		out.Intent = &intent
	}
	return out
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
