package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/vinyl/internal/models"
)

var _ list.Item = noteItem{}

// noteItem wraps [models.Note] to implement [list.Item].
type noteItem struct {
	note   *models.Note
	userID string
}

func (i noteItem) FilterValue() string { return i.note.Content() }
func (i noteItem) Title() string       { return i.note.Content() }
func (i noteItem) Description() string {
	desc := i.note.CreatedAt().Local().Format("Jan 2 15:04")
	if r := reactionLine(i.note.Reactions(), i.userID); r != "" {
		desc = fmt.Sprintf("%s • %s", desc, r)
	}
	return desc
}

// reactionLine renders counts in palette order. Reactions left by userID are bracketed.
func reactionLine(r models.Reactions, userID string) string {
	var parts []string
	for _, emoji := range models.AvailableReactions {
		reaction, ok := r[emoji]
		if !ok || reaction.Count == 0 {
			continue
		}
		part := fmt.Sprintf("%s %d", emoji, reaction.Count)
		if userID != "" && r.Has(emoji, userID) {
			part = "[" + part + "]"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}

func noteItems(notes []*models.Note, userID string) []list.Item {
	items := make([]list.Item, len(notes))
	for i, n := range notes {
		items[i] = noteItem{note: n, userID: userID}
	}
	return items
}
