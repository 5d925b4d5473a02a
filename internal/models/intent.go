package models

import "time"

// IntentKind names a corrective action surfaced to the listener.
type IntentKind string

const (
	IntentSwitchToPlaylist IntentKind = "switch_to_playlist"
	IntentOutOfPlaylist    IntentKind = "out_of_playlist"
	IntentRateLimited      IntentKind = "rate_limited"
	IntentNoActiveDevice   IntentKind = "no_active_device"
)

// TransitionIntent is a transient banner. At most one is active; a newer one replaces it.
type TransitionIntent struct {
	Kind      IntentKind `json:"kind"`
	Message   string     `json:"message"`
	TrackID   string     `json:"trackId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// NewTransitionIntent creates an intent displayed for ttl from now.
func NewTransitionIntent(kind IntentKind, message, trackID string, now time.Time, ttl time.Duration) *TransitionIntent {
	return &TransitionIntent{
		Kind:      kind,
		Message:   message,
		TrackID:   trackID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the display duration has elapsed at now.
func (i *TransitionIntent) Expired(now time.Time) bool {
	return i == nil || !now.Before(i.ExpiresAt)
}
