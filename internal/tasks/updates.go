package tasks

import (
	"fmt"

	"github.com/desertthunder/vinyl/internal/models"
)

// ProgressUpdate represents an event from a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Phase-specific data: a [View] for loop phases
}

// Operation phase enumeration
type Phase int

const (
	CheckSession Phase = iota
	DiscoverDevice
	Poll
	Reconcile
	Command
	ExportNotes
)

func (p Phase) String() string {
	switch p {
	case CheckSession:
		return "check_session"
	case DiscoverDevice:
		return "discover_device"
	case Poll:
		return "poll"
	case Reconcile:
		return "reconcile"
	case Command:
		return "command"
	case ExportNotes:
		return "export_notes"
	default:
		return ""
	}
}

func viewUpdate(phase Phase, message string, v View) ProgressUpdate {
	return ProgressUpdate{Phase: phase, Step: 1, Total: 1, Message: message, Data: v}
}

func transitionMessage(from, to State) string {
	return fmt.Sprintf("%s → %s", from, to)
}

func trackMessage(snap models.PlaybackSnapshot) string {
	if snap.Track == nil {
		return "Nothing playing"
	}
	if artists := snap.Track.ArtistNames(); artists != "" {
		return fmt.Sprintf("Now playing: %s - %s", artists, snap.Track.Name)
	}
	return "Now playing: " + snap.Track.Name
}

func fetchingNotesUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportNotes,
		Step:    step,
		Total:   total,
		Message: "Fetching notes...",
	}
}

func exportingNotesUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportNotes,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name string, notes int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportNotes,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d notes)", step, total, name, notes),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportNotes,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
