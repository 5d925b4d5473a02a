package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/vinyl/internal/shared"
	"github.com/urfave/cli/v3"
)

// loadConfigAt returns the config at path, creating it from the template when missing.
func (r *Runner) loadConfigAt(path string) *shared.Config {
	var config *shared.Config
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
		return config
	}

	r.logger.Info("config file not found, creating from template", "path", path)
	if err := shared.CreateConfigFile(path); err != nil {
		r.logger.Warn("failed to create config file, using defaults", "error", err)
		return shared.DefaultConfig()
	}
	r.logger.Info("config file created", "path", path)

	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load created config, using defaults", "error", err)
		return shared.DefaultConfig()
	}
	return config
}

// SetupDatabase initializes the notes database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfigAt(cmd.String("config"))

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("✓ Database ready at %s\n", config.Database.Path)
}

// SetupRollback reverts the most recent migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return err
		}
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back: %w", err)
	}
	return r.writePlain("✓ Rolled back the last migration on %s\n", config.Database.Path)
}

// SetupConfig writes the config template and lists the values to fill in.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.writePlain("✓ Config written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Create an app at https://developer.spotify.com/dashboard\n")
	r.writePlain("2. Set credentials.spotify.client_id and client_secret\n")
	r.writePlain("3. Add %s and http://%s/callback as redirect URIs\n", r.config.Credentials.Spotify.RedirectURI, r.config.Client.CallbackAddr)
	r.writePlain("4. Set player.playlist_id to your playlist\n")
	r.writePlain("5. Run 'vinyl serve', then 'vinyl login'\n")
	return nil
}
