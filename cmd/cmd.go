// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// serveCommand runs the backend facade.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the backend facade that talks to Spotify",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize the notes database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write a config.toml template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupRollback,
			},
		},
	}
}

// loginCommand connects the CLI session to Spotify through the facade.
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Connect your Spotify account",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
		},
		Action: r.Login,
	}
}

func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Forget the Spotify session",
		Action: r.Logout,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show facade, session and playback status",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

// playerCommand returns the top-level TUI command.
func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "player",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch the turntable",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the TUI owns the terminal",
				Value: "./tmp/vinyl-tui.log",
			},
		},
		Action: r.Player,
	}
}

// watchCommand runs the reconciliation loop without a UI.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Keep playback inside the playlist without the TUI",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print each update as a JSON line",
			},
		},
		Action: r.Watch,
	}
}

func notesCommand(r *Runner) *cli.Command {
	trackFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "track",
			Aliases: []string{"t"},
			Usage:   "Track ID (default: the track playing now)",
		}
	}

	return &cli.Command{
		Name:  "notes",
		Usage: "Read and write notes on tracks",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the notes on a track",
				Flags: []cli.Flag{
					trackFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.NotesList,
			},
			{
				Name:  "add",
				Usage: "Leave a note on a track",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "content"},
				},
				Flags:  []cli.Flag{trackFlag()},
				Action: r.NotesAdd,
			},
			{
				Name:  "react",
				Usage: "Toggle a reaction on a note (❤️ 😢 🥺 😠 ✨)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "note-id"},
					&cli.StringArg{Name: "emoji"},
				},
				Action: r.NotesReact,
			},
			{
				Name:  "export",
				Usage: "Export notes to json, csv, markdown or txt",
				Flags: []cli.Flag{
					trackFlag(),
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Export every track of the playlist",
					},
					&cli.StringFlag{
						Name:  "playlist-id",
						Usage: "Playlist to export with --all (default: the configured playlist)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format: json, csv, markdown, txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file, or directory with --all",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent writers with --all",
						Value: 5,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Note fetches per second with --all",
						Value: 5,
					},
				},
				Action: r.NotesExport,
			},
		},
	}
}

// apiCommand handles direct facade calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the facade",
		Commands: []*cli.Command{
			{
				Name:  "raw",
				Usage: "Send a request with the session cookies and print the response",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "method"},
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "data",
						Aliases: []string{"d"},
						Usage:   "JSON body to send",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIRaw,
			},
		},
	}
}
