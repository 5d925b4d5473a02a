package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./vinyl.db" {
			t.Errorf("expected database path ./vinyl.db, got %s", config.Database.Path)
		}
		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}
		if config.Player.PollInterval.Duration != 10*time.Second {
			t.Errorf("expected poll interval 10s, got %v", config.Player.PollInterval)
		}
		if config.Player.MinPollInterval.Duration != time.Second {
			t.Errorf("expected min poll interval 1s, got %v", config.Player.MinPollInterval)
		}
		if config.Player.SettleDelay.Duration != 300*time.Millisecond {
			t.Errorf("expected settle delay 300ms, got %v", config.Player.SettleDelay)
		}
		if config.Server.RequestTimeout.Duration != 10*time.Second {
			t.Errorf("expected request timeout 10s, got %v", config.Server.RequestTimeout)
		}
		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate, got %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}
		if config.Player.PlaylistID != DefaultConfig().Player.PlaylistID {
			t.Errorf("created config playlist id doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig overlays defaults", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := `[server]
host = "0.0.0.0"
port = 8080
environment = "production"

[player]
playlist_id = "abc123"
poll_interval = "5s"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:8080/auth/callback"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}
		if !config.Server.Production() {
			t.Error("expected production environment")
		}
		if config.Player.PlaylistID != "abc123" {
			t.Errorf("expected playlist abc123, got %s", config.Player.PlaylistID)
		}
		if config.Player.PollInterval.Duration != 5*time.Second {
			t.Errorf("expected poll interval 5s, got %v", config.Player.PollInterval)
		}
		if config.Player.SettleDelay.Duration != 300*time.Millisecond {
			t.Errorf("expected settle delay to keep default, got %v", config.Player.SettleDelay)
		}

		creds := config.Credentials.Spotify.Map()
		if creds["client_id"] != "test_client_id" || creds["redirect_uri"] != "http://localhost:8080/auth/callback" {
			t.Errorf("unexpected credentials map %v", creds)
		}
	})

	t.Run("LoadConfig rejects bad durations", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[player]\npoll_interval = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error for invalid duration")
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(*Config)
		}{
			{name: "missing playlist", mutate: func(c *Config) { c.Player.PlaylistID = " " }},
			{name: "zero poll interval", mutate: func(c *Config) { c.Player.PollInterval = Duration{} }},
			{name: "negative call interval", mutate: func(c *Config) { c.Server.MinCallInterval = Duration{-time.Second} }},
			{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				tt.mutate(config)
				if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})
}

func TestDuration(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte(" 1m30s ")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("expected 90s, got %v", d.Duration)
	}

	text, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error = %v", err)
	}
	if string(text) != "1m30s" {
		t.Errorf("expected 1m30s, got %s", text)
	}

	if err := d.UnmarshalText([]byte("later")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
