package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/desertthunder/vinyl/internal/tasks"
	"github.com/desertthunder/vinyl/internal/ui"
	"github.com/urfave/cli/v3"
)

// Player launches the turntable TUI with the reconciliation loop running behind it.
func (r *Runner) Player(ctx context.Context, cmd *cli.Command) error {
	opts, err := tasks.OptionsFromConfig(r.config.Player)
	if err != nil {
		return err
	}

	// Logs go to a file so they do not tear the alt screen.
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.logger = fileLogger
	opts.Logger = fileLogger
	opts.Retry.Logger = fileLogger

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reconciler := tasks.NewReconciler(r.api, opts)
	updates := make(chan tasks.ProgressUpdate, 32)
	loopDone := make(chan error, 1)
	go func() {
		loopDone <- reconciler.Run(ctx, updates)
	}()

	model := ui.NewModel(ctx, reconciler, r.api, updates, ui.Options{
		UserID:  r.userID(),
		Library: r.api,
		Connect: func(ctx context.Context) error {
			return r.login(ctx, io.Discard, true)
		},
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}

	cancel()
	return <-loopDone
}
