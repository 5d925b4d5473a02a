package models

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Image is artwork at one size.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Artist is a track credit.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album groups the artwork shown on the turntable label.
type Album struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// Track is a playable item.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URI        string   `json:"uri"`
	DurationMS int      `json:"durationMs"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
}

// ArtistNames joins the credited artists with ", ".
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// Cover returns the largest album image URL, or "".
func (t Track) Cover() string {
	if len(t.Album.Images) == 0 {
		return ""
	}
	return t.Album.Images[0].URL
}

// Device is a playback surface known to the provider.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"isActive"`
	VolumePercent int    `json:"volumePercent"`
}

// ActiveDevice returns the active device, or the first one when none is marked active.
func ActiveDevice(devices []Device) (Device, bool) {
	for _, d := range devices {
		if d.IsActive {
			return d, true
		}
	}
	if len(devices) > 0 {
		return devices[0], true
	}
	return Device{}, false
}

// PlaybackSnapshot is one read of the remote player. It is never mutated after capture.
type PlaybackSnapshot struct {
	TrackID    string    `json:"trackId"`
	TrackURI   string    `json:"trackUri"`
	IsPlaying  bool      `json:"isPlaying"`
	DeviceID   string    `json:"deviceId"`
	ContextURI string    `json:"contextUri,omitempty"`
	ProgressMS int       `json:"progressMs"`
	CapturedAt time.Time `json:"capturedAt"`
	Track      *Track    `json:"track"`
	Device     *Device   `json:"device"`
}

// NewPlaybackSnapshot captures a snapshot at now from the optional track and device.
func NewPlaybackSnapshot(track *Track, device *Device, playing bool, progressMS int, contextURI string, now time.Time) PlaybackSnapshot {
	s := PlaybackSnapshot{
		IsPlaying:  playing,
		ContextURI: contextURI,
		ProgressMS: progressMS,
		CapturedAt: now,
	}
	if track != nil {
		t := *track
		s.Track, s.TrackID, s.TrackURI = &t, t.ID, t.URI
	}
	if device != nil {
		d := *device
		s.Device, s.DeviceID = &d, d.ID
	}
	return s
}

// Empty reports whether nothing is loaded on the player.
func (s PlaybackSnapshot) Empty() bool {
	return s.TrackID == ""
}

// SameState reports whether s and other agree on track identity and the playing flag.
func (s PlaybackSnapshot) SameState(other PlaybackSnapshot) bool {
	return s.TrackID == other.TrackID && s.IsPlaying == other.IsPlaying
}

// Queue holds the neighbours shown beside the turntable.
type Queue struct {
	Previous *Track `json:"previous"`
	Next     *Track `json:"next"`
}

// Playlist is a provider playlist with every track page resolved.
type Playlist struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	URI         string  `json:"uri"`
	Images      []Image `json:"images"`
	Tracks      []Track `json:"tracks"`
}

// Contains reports whether trackID is one of the playlist's tracks.
func (p Playlist) Contains(trackID string) bool {
	return slices.ContainsFunc(p.Tracks, func(t Track) bool { return t.ID == trackID })
}

// Account is the signed-in provider user.
type Account struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Product string `json:"product"`
}

// Premium reports whether the account can issue transport commands.
func (a Account) Premium() bool {
	return a.Product == "premium"
}

// Capability is the session's transport permission tier.
type Capability int

const (
	// CapabilityUnknown is held until the account check resolves; it is treated as standard.
	CapabilityUnknown Capability = iota
	CapabilityStandard
	CapabilityPremium
)

// CapabilityOf derives the tier from an account.
func CapabilityOf(a Account) Capability {
	if a.Premium() {
		return CapabilityPremium
	}
	return CapabilityStandard
}

// Elevated reports whether corrective commands may be issued.
func (c Capability) Elevated() bool { return c == CapabilityPremium }

func (c Capability) String() string {
	switch c {
	case CapabilityStandard:
		return "standard"
	case CapabilityPremium:
		return "premium"
	default:
		return "unknown"
	}
}

var playlistIDPattern = regexp.MustCompile(`^[0-9A-Za-z]{10,40}$`)

// ParsePlaylistID accepts a bare id, a "spotify:playlist:<id>" URI, or an
// "https://open.spotify.com/playlist/<id>?si=..." link.
func ParsePlaylistID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	var id string
	switch {
	case strings.HasPrefix(raw, "spotify:playlist:"):
		id = strings.TrimPrefix(raw, "spotify:playlist:")
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid playlist url %q: %w", raw, err)
		}
		rest, ok := strings.CutPrefix(u.Path, "/playlist/")
		if !ok {
			return "", fmt.Errorf("not a playlist url: %q", raw)
		}
		id = strings.Trim(rest, "/")
	default:
		id, _, _ = strings.Cut(raw, "?")
	}

	if !playlistIDPattern.MatchString(id) {
		return "", fmt.Errorf("invalid playlist id %q", raw)
	}
	return id, nil
}

// AllowedContext is the one playlist inside which playback is enforced. It is fixed for the process lifetime.
type AllowedContext struct {
	PlaylistID string
}

// NewAllowedContext parses raw with [ParsePlaylistID].
func NewAllowedContext(raw string) (AllowedContext, error) {
	id, err := ParsePlaylistID(raw)
	if err != nil {
		return AllowedContext{}, err
	}
	return AllowedContext{PlaylistID: id}, nil
}

// URI returns the "spotify:playlist:<id>" context URI.
func (c AllowedContext) URI() string {
	return "spotify:playlist:" + c.PlaylistID
}

// Matches reports whether contextURI is this playlist.
func (c AllowedContext) Matches(contextURI string) bool {
	return contextURI != "" && contextURI == c.URI()
}
