package main

import (
	"context"
	"time"

	"github.com/desertthunder/vinyl/internal/formatter"
	"github.com/desertthunder/vinyl/internal/tasks"
	"github.com/urfave/cli/v3"
)

// watchEvent is one line of `vinyl watch --json`.
type watchEvent struct {
	Time     time.Time `json:"time"`
	Phase    string    `json:"phase"`
	State    string    `json:"state"`
	Message  string    `json:"message"`
	Track    string    `json:"track,omitempty"`
	Playing  bool      `json:"playing"`
	Progress string    `json:"progress,omitempty"`
	Intent   string    `json:"intent,omitempty"`
}

// Watch runs the reconciliation loop without the TUI and prints every transition.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	opts, err := tasks.OptionsFromConfig(r.config.Player)
	if err != nil {
		return err
	}
	opts.Logger = r.logger
	opts.Retry.Logger = r.logger

	reconciler := tasks.NewReconciler(r.api, opts)
	updates := make(chan tasks.ProgressUpdate, 32)
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- reconciler.Run(ctx, updates)
	}()

	asJSON := cmd.Bool("json")
	if !asJSON {
		r.writePlainHeader("Watching " + opts.Allowed.URI())
	}

	for {
		select {
		case err := <-loopDone:
			return err
		case update := <-updates:
			if err := r.printUpdate(update, asJSON); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) printUpdate(update tasks.ProgressUpdate, asJSON bool) error {
	view, ok := update.Data.(tasks.View)
	if !ok {
		return r.writePlain("%s\n", update.Message)
	}

	event := watchEvent{
		Time:    time.Now(),
		Phase:   update.Phase.String(),
		State:   view.State.String(),
		Message: update.Message,
		Playing: view.Snapshot.IsPlaying,
	}
	if view.Snapshot.Track != nil {
		event.Track = view.Snapshot.Track.Name
		event.Progress = formatter.FormatProgress(view.Progress(event.Time))
	}
	if view.Intent != nil {
		event.Intent = view.Intent.Message
	}

	if asJSON {
		return r.writeJSON(event, false)
	}
	r.writePlain("[%s] %-15s %s\n", event.Time.Format("15:04:05"), event.State, event.Message)
	if event.Intent != "" {
		r.writePlain("    ⚠ %s\n", event.Intent)
	}
	return nil
}
