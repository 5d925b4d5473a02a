package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vinyl/internal/services"
	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	configPath := os.Getenv("VINYL_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	sessionPath := config.Client.SessionPath
	if sessionPath == "" {
		sessionPath = services.DefaultSessionPath()
	}
	jar, err := services.OpenFileJar(sessionPath)
	if err != nil {
		logger.Warn("ignoring unreadable session", "path", sessionPath, "error", err)
		jar, _ = services.OpenFileJar("")
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Jar:        jar,
		Logger:     logger,
	})

	app := newApp(runner, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

// newApp builds the root command around runner. --debug lowers logger to debug level.
func newApp(runner *Runner, logger *log.Logger) *cli.Command {
	return &cli.Command{
		Name:    "vinyl",
		Usage:   "A turntable for one Spotify playlist",
		Version: shared.Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("debug") {
				shared.SetLogLevel(logger, log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: runner.register(),
	}
}
