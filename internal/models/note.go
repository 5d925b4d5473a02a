package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxNoteLength bounds note content in characters.
const MaxNoteLength = 500

// AvailableReactions lists the emoji a listener may react with, in display order.
var AvailableReactions = []string{"❤️", "😢", "🥺", "😠", "✨"}

// IsAvailableReaction reports whether emoji is one of [AvailableReactions].
func IsAvailableReaction(emoji string) bool {
	return slices.Contains(AvailableReactions, emoji)
}

// Reaction is the tally for one emoji on a note. Users is kept sorted and Count always equals len(Users).
type Reaction struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// Reactions maps an emoji to its tally. Emoji with no users are absent.
type Reactions map[string]*Reaction

// Toggle flips userID's membership for emoji and reports whether the user now reacts with it.
func (r Reactions) Toggle(emoji, userID string) bool {
	reaction, ok := r[emoji]
	if !ok {
		reaction = &Reaction{}
		r[emoji] = reaction
	}

	idx, found := slices.BinarySearch(reaction.Users, userID)
	if found {
		reaction.Users = slices.Delete(reaction.Users, idx, idx+1)
	} else {
		reaction.Users = slices.Insert(reaction.Users, idx, userID)
	}
	reaction.Count = len(reaction.Users)

	if reaction.Count == 0 {
		delete(r, emoji)
	}
	return !found
}

// Has reports whether userID reacted with emoji.
func (r Reactions) Has(emoji, userID string) bool {
	reaction, ok := r[emoji]
	if !ok {
		return false
	}
	_, found := slices.BinarySearch(reaction.Users, userID)
	return found
}

// Clone returns a deep copy.
func (r Reactions) Clone() Reactions {
	out := make(Reactions, len(r))
	for emoji, reaction := range r {
		out[emoji] = &Reaction{Count: reaction.Count, Users: slices.Clone(reaction.Users)}
	}
	return out
}

// Note is a listener annotation attached to a track.
type Note struct {
	id        string
	sequence  int
	trackID   string
	content   string
	shared    bool
	reactions Reactions
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewNote creates a shared note with an empty reaction map.
func NewNote(sequence int, trackID, content string) *Note {
	now := time.Now().UTC()
	return &Note{
		sequence:  sequence,
		trackID:   trackID,
		content:   content,
		shared:    true,
		reactions: Reactions{},
		createdAt: now,
		updatedAt: now,
	}
}

func (n *Note) ID() string                { return n.id }
func (n *Note) Sequence() int             { return n.sequence }
func (n *Note) TrackID() string           { return n.trackID }
func (n *Note) Content() string           { return n.content }
func (n *Note) Shared() bool              { return n.shared }
func (n *Note) Reactions() Reactions      { return n.reactions }
func (n *Note) CreatedAt() time.Time      { return n.createdAt }
func (n *Note) UpdatedAt() time.Time      { return n.updatedAt }
func (n *Note) DeletedAt() *time.Time     { return n.deletedAt }
func (n *Note) SetID(id string)           { n.id = id }
func (n *Note) SetSequence(seq int)       { n.sequence = seq }
func (n *Note) SetContent(content string) { n.content = content }
func (n *Note) SetShared(shared bool)     { n.shared = shared }
func (n *Note) SetCreatedAt(t time.Time)  { n.createdAt = t }
func (n *Note) SetUpdatedAt(t time.Time)  { n.updatedAt = t }
func (n *Note) SetDeletedAt(t *time.Time) { n.deletedAt = t }

// SetReactions replaces the tally; nil becomes an empty map.
func (n *Note) SetReactions(r Reactions) {
	if r == nil {
		r = Reactions{}
	}
	n.reactions = r
}

// Validate checks the note has a track and non-blank content within [MaxNoteLength].
func (n *Note) Validate() error {
	if strings.TrimSpace(n.trackID) == "" {
		return fmt.Errorf("track id is required")
	}
	if strings.TrimSpace(n.content) == "" {
		return fmt.Errorf("note content is required")
	}
	if utf8.RuneCountInString(n.content) > MaxNoteLength {
		return fmt.Errorf("note content exceeds %d characters", MaxNoteLength)
	}
	return nil
}

type noteJSON struct {
	ID        string    `json:"id"`
	TrackID   string    `json:"trackId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Reactions Reactions `json:"reactions"`
}

// MarshalJSON renders the note as {id, trackId, content, timestamp, reactions}.
func (n *Note) MarshalJSON() ([]byte, error) {
	reactions := n.reactions
	if reactions == nil {
		reactions = Reactions{}
	}
	return json.Marshal(noteJSON{
		ID:        n.id,
		TrackID:   n.trackID,
		Content:   n.content,
		Timestamp: n.createdAt,
		Reactions: reactions,
	})
}

// UnmarshalJSON reads the form produced by [Note.MarshalJSON].
func (n *Note) UnmarshalJSON(data []byte) error {
	var raw noteJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.id = raw.ID
	n.trackID = raw.TrackID
	n.content = raw.Content
	n.shared = true
	n.createdAt = raw.Timestamp
	n.updatedAt = raw.Timestamp
	n.SetReactions(raw.Reactions)
	return nil
}
