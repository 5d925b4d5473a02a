package shared

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Player      PlayerConfig      `toml:"player"`
	Client      ClientConfig      `toml:"client"`
	Telemetry   TelemetryConfig   `toml:"telemetry"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// Map returns the credentials in the shape expected by services.NewSpotifyService.
func (c SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"redirect_uri":  c.RedirectURI,
	}
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the backend HTTP server.
type ServerConfig struct {
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	Environment     string   `toml:"environment"`
	CookieDomain    string   `toml:"cookie_domain"`
	MinCallInterval Duration `toml:"min_call_interval"`
	RequestTimeout  Duration `toml:"request_timeout"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Production reports whether cookies should be issued with the Secure flag.
func (c ServerConfig) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// PlayerConfig controls the reconciliation loop.
type PlayerConfig struct {
	PlaylistID      string   `toml:"playlist_id"`
	PollInterval    Duration `toml:"poll_interval"`
	MinPollInterval Duration `toml:"min_poll_interval"`
	SettleDelay     Duration `toml:"settle_delay"`
	IntentDuration  Duration `toml:"intent_duration"`
}

// ClientConfig contains settings for the terminal client talking to the backend.
type ClientConfig struct {
	ServerURL    string `toml:"server_url"`
	CallbackAddr string `toml:"callback_addr"`
	SessionPath  string `toml:"session_path"`
	UserID       string `toml:"user_id"`
}

// TelemetryConfig toggles OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
	Stdout      bool   `toml:"stdout"`
}

// LogConfig sets the default log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration wraps [time.Duration] so TOML strings like "10s" decode directly.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the defaults of the embedded example config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the settings the server and the player loop cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Player.PlaylistID) == "" {
		return fmt.Errorf("%w: player.playlist_id is required", ErrInvalidConfig)
	}

	for name, d := range map[string]Duration{
		"player.poll_interval":     c.Player.PollInterval,
		"player.min_poll_interval": c.Player.MinPollInterval,
		"player.intent_duration":   c.Player.IntentDuration,
		"server.min_call_interval": c.Server.MinCallInterval,
		"server.request_timeout":   c.Server.RequestTimeout,
	} {
		if d.Duration <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}

	return nil
}
