package ui

import (
	"fmt"
	"strings"

	"github.com/desertthunder/vinyl/internal/formatter"
	"github.com/desertthunder/vinyl/internal/models"
)

const progressWidth = 30

// spindle marks rotate while the record is playing.
var spindle = []string{"|", "/", "-", "\\"}

func renderRecord(playing bool, frame int) string {
	mark := "·"
	if playing {
		mark = spindle[frame%len(spindle)]
	}
	return strings.Join([]string{
		`    .-"""""-.`,
		`  .'  .---.  '.`,
		fmt.Sprintf(` /   /  %s  \   \`, mark),
		` |   |  o  |   |`,
		` \   \     /   /`,
		`  '.  '---'  .'`,
		`    '-.....-'`,
	}, "\n")
}

func progressBar(position, duration int) string {
	filled := 0
	if duration > 0 {
		filled = min(position*progressWidth/duration, progressWidth)
	}
	return fmt.Sprintf("%s %s%s %s",
		formatter.FormatProgress(position),
		strings.Repeat("━", filled),
		strings.Repeat("─", progressWidth-filled),
		formatter.FormatProgress(duration),
	)
}

func trackLine(t *models.Track) string {
	if t == nil {
		return "-"
	}
	if artists := t.ArtistNames(); artists != "" {
		return fmt.Sprintf("%s · %s", t.Name, artists)
	}
	return t.Name
}

func (m *Model) deviceName() string {
	if d := m.view.Snapshot.Device; d != nil {
		return d.Name
	}
	for _, d := range m.view.Devices {
		if d.ID == m.view.DeviceID {
			return d.Name
		}
	}
	return ""
}

func (m *Model) renderTurntable() string {
	v := m.view
	var b strings.Builder

	b.WriteString(styles.record.Render(renderRecord(v.Snapshot.IsPlaying, m.frame)))
	b.WriteString("\n\n")

	if v.StartListening() {
		b.WriteString("Nothing on the platter.\n")
		b.WriteString(styles.ok.Render("Press s to start listening"))
		return styles.panel.Render(b.String())
	}

	track := v.Snapshot.Track
	if track != nil {
		b.WriteString(styles.ok.Render(track.Name))
		if m.saved && m.savedTrackID == track.ID {
			b.WriteString(" " + styles.record.Render("♥"))
		}
		b.WriteString("\n")
		if artists := track.ArtistNames(); artists != "" {
			b.WriteString(artists)
			b.WriteString("\n")
		}
		if track.Album.Name != "" {
			b.WriteString(styles.help.Render(track.Album.Name))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(progressBar(v.Progress(m.now), track.DurationMS))
		b.WriteString("\n")
	}

	state := "⏸ paused"
	if v.Snapshot.IsPlaying {
		state = "▶ playing"
	}
	if name := m.deviceName(); name != "" {
		state += " on " + name
	}
	b.WriteString(state)
	if !v.InPlaylist {
		b.WriteString("  " + styles.warn.Render("off the record"))
	}
	b.WriteString("\n\n")

	b.WriteString(styles.help.Render("prev  ") + trackLine(v.Queue.Previous) + "\n")
	b.WriteString(styles.help.Render("next  ") + trackLine(v.Queue.Next))

	return styles.panel.Render(b.String())
}
