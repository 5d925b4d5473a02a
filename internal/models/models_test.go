package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestReactions(t *testing.T) {
	t.Run("toggle adds then removes", func(t *testing.T) {
		r := Reactions{}
		if !r.Toggle("✨", "u1") {
			t.Fatal("expected first toggle to add")
		}
		if r["✨"].Count != 1 || !r.Has("✨", "u1") {
			t.Fatalf("unexpected tally %+v", r["✨"])
		}
		if r.Toggle("✨", "u1") {
			t.Fatal("expected second toggle to remove")
		}
		if _, ok := r["✨"]; ok {
			t.Error("expected emoji key to be removed at zero")
		}
	})

	t.Run("count follows membership", func(t *testing.T) {
		r := Reactions{}
		r.Toggle("❤️", "b")
		r.Toggle("❤️", "a")
		r.Toggle("❤️", "c")
		r.Toggle("❤️", "b")

		got := r["❤️"]
		if got.Count != 2 || !reflect.DeepEqual(got.Users, []string{"a", "c"}) {
			t.Errorf("unexpected tally %+v", got)
		}
	})

	t.Run("double toggle round trips", func(t *testing.T) {
		seeds := []Reactions{
			{},
			{"❤️": {Count: 1, Users: []string{"u1"}}},
			{"❤️": {Count: 2, Users: []string{"u1", "u2"}}, "😢": {Count: 1, Users: []string{"u3"}}},
		}
		users := []string{"u1", "u2", "u9"}

		for _, seed := range seeds {
			for _, emoji := range AvailableReactions {
				for _, user := range users {
					r := seed.Clone()
					r.Toggle(emoji, user)
					r.Toggle(emoji, user)
					if !reflect.DeepEqual(r, seed) {
						t.Errorf("toggle(%s, %s) twice on %v gave %v", emoji, user, seed, r)
					}
				}
			}
		}
	})

	t.Run("clone is deep", func(t *testing.T) {
		r := Reactions{"✨": {Count: 1, Users: []string{"u1"}}}
		c := r.Clone()
		c.Toggle("✨", "u2")
		if r["✨"].Count != 1 {
			t.Error("mutating clone changed original")
		}
	})

	t.Run("available", func(t *testing.T) {
		if !IsAvailableReaction("🥺") || IsAvailableReaction("👍") {
			t.Error("unexpected availability")
		}
	})
}

func TestNote(t *testing.T) {
	t.Run("new note is shared with empty reactions", func(t *testing.T) {
		n := NewNote(1, "track1", "lovely bridge")
		if !n.Shared() || n.Reactions() == nil || len(n.Reactions()) != 0 {
			t.Errorf("unexpected defaults %+v", n)
		}
		if err := n.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("validate", func(t *testing.T) {
		tc := []struct {
			name    string
			trackID string
			content string
		}{
			{name: "missing track", trackID: "", content: "x"},
			{name: "blank content", trackID: "t", content: "   "},
			{name: "too long", trackID: "t", content: strings.Repeat("a", MaxNoteLength+1)},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if err := NewNote(1, tt.trackID, tt.content).Validate(); err == nil {
					t.Error("expected validation error")
				}
			})
		}
	})

	t.Run("json shape", func(t *testing.T) {
		n := NewNote(3, "track1", "hi")
		n.SetID("n1")
		n.SetCreatedAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
		n.Reactions().Toggle("✨", "u1")

		data, err := json.Marshal(n)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}

		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		for _, key := range []string{"id", "trackId", "content", "timestamp", "reactions"} {
			if _, ok := raw[key]; !ok {
				t.Errorf("expected key %q in %s", key, data)
			}
		}
		if raw["timestamp"] != "2024-05-01T12:00:00Z" {
			t.Errorf("unexpected timestamp %v", raw["timestamp"])
		}

		var back Note
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal(Note) error = %v", err)
		}
		if back.ID() != "n1" || !back.Reactions().Has("✨", "u1") {
			t.Errorf("unexpected decoded note %+v", back)
		}
	})
}

func TestParsePlaylistID(t *testing.T) {
	const id = "1odn9BcsovHl9YoaOb38t6"
	tc := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare", in: id, want: id},
		{name: "bare with share suffix", in: id + "?si=abc", want: id},
		{name: "uri", in: "spotify:playlist:" + id, want: id},
		{name: "url", in: "https://open.spotify.com/playlist/" + id + "?si=f00", want: id},
		{name: "album url", in: "https://open.spotify.com/album/" + id, wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "not/a/playlist", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePlaylistID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePlaylistID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePlaylistID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAllowedContext(t *testing.T) {
	c, err := NewAllowedContext("spotify:playlist:1odn9BcsovHl9YoaOb38t6")
	if err != nil {
		t.Fatalf("NewAllowedContext() error = %v", err)
	}
	if c.URI() != "spotify:playlist:1odn9BcsovHl9YoaOb38t6" {
		t.Errorf("unexpected uri %s", c.URI())
	}
	if !c.Matches(c.URI()) || c.Matches("") || c.Matches("spotify:album:x") {
		t.Error("unexpected Matches result")
	}
}

func TestPlayback(t *testing.T) {
	now := time.Now()
	track := &Track{ID: "t1", URI: "spotify:track:t1", Artists: []Artist{{Name: "A"}, {Name: "B"}}}

	t.Run("snapshot copies inputs", func(t *testing.T) {
		s := NewPlaybackSnapshot(track, &Device{ID: "d1"}, true, 1200, "", now)
		track.Name = "changed"
		if s.Track.Name == "changed" {
			t.Error("snapshot should not alias caller's track")
		}
		if s.TrackID != "t1" || s.DeviceID != "d1" || s.Empty() {
			t.Errorf("unexpected snapshot %+v", s)
		}
	})

	t.Run("empty and same state", func(t *testing.T) {
		empty := NewPlaybackSnapshot(nil, nil, false, 0, "", now)
		if !empty.Empty() {
			t.Error("expected empty snapshot")
		}

		a := NewPlaybackSnapshot(track, nil, true, 10, "", now)
		b := NewPlaybackSnapshot(track, nil, true, 9000, "", now.Add(time.Second))
		c := NewPlaybackSnapshot(track, nil, false, 9000, "", now)
		if !a.SameState(b) || a.SameState(c) {
			t.Error("SameState should only consider track id and playing flag")
		}
	})

	t.Run("track helpers", func(t *testing.T) {
		if track.ArtistNames() != "A, B" {
			t.Errorf("unexpected artists %q", track.ArtistNames())
		}
		if track.Cover() != "" {
			t.Error("expected no cover")
		}
	})

	t.Run("playlist contains", func(t *testing.T) {
		p := Playlist{Tracks: []Track{{ID: "a"}, {ID: "b"}}}
		if !p.Contains("b") || p.Contains("z") {
			t.Error("unexpected Contains result")
		}
	})

	t.Run("capability", func(t *testing.T) {
		if CapabilityOf(Account{Product: "premium"}) != CapabilityPremium {
			t.Error("expected premium")
		}
		if CapabilityOf(Account{Product: "free"}).Elevated() || CapabilityUnknown.Elevated() {
			t.Error("only premium is elevated")
		}
	})

	t.Run("active device", func(t *testing.T) {
		d, ok := ActiveDevice([]Device{{ID: "a"}, {ID: "b", IsActive: true}})
		if !ok || d.ID != "b" {
			t.Errorf("expected active device b, got %+v", d)
		}
		d, ok = ActiveDevice([]Device{{ID: "a"}})
		if !ok || d.ID != "a" {
			t.Errorf("expected fallback to first device, got %+v", d)
		}
		if _, ok := ActiveDevice(nil); ok {
			t.Error("expected no device")
		}
	})

	t.Run("intent expiry", func(t *testing.T) {
		i := NewTransitionIntent(IntentOutOfPlaylist, "m", "t1", now, 5*time.Second)
		if i.Expired(now.Add(4 * time.Second)) {
			t.Error("intent expired early")
		}
		if !i.Expired(now.Add(5 * time.Second)) {
			t.Error("intent should expire at its deadline")
		}
		var none *TransitionIntent
		if !none.Expired(now) {
			t.Error("nil intent counts as expired")
		}
	})
}
