package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Data directory for the session cache and scrobble history
	// Default: ~/.local/share/boxd
	DataDir string

	// Saved letterboxd sessions older than this many hours are discarded
	SessionTTLHours int

	// Webhook server settings
	Server ServerConfig

	// Event gating settings
	Webhook WebhookConfig

	// Plex-side settings
	Plex PlexConfig

	// Letterboxd credentials and browser settings
	Letterboxd LetterboxdConfig
}

// ServerConfig holds webhook server settings
type ServerConfig struct {
	Listen        string
	MaxConcurrent int
}

// WebhookConfig holds the event gating configuration
type WebhookConfig struct {
	Enabled    bool
	OnlyMovies bool
	Events     EventsConfig
}

// EventsConfig toggles the handled event types
type EventsConfig struct {
	Scrobble bool
	Rate     bool
}

// PlexConfig holds Plex specific configuration
type PlexConfig struct {
	// Account restricts scrobbling to one Plex account when set.
	// Empty means any account's events are scrobbled.
	Account string
}

// LetterboxdConfig holds Letterboxd specific configuration
type LetterboxdConfig struct {
	Username         string
	Password         string
	Headless         bool
	BrowserPath      string
	MaxLoginAttempts int
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	// Set defaults
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("session_ttl_hours", 720)
	v.SetDefault("server.listen", ":8484")
	v.SetDefault("server.max_concurrent", 1)
	v.SetDefault("webhook.enabled", true)
	v.SetDefault("webhook.only_movies", true)
	v.SetDefault("webhook.events.scrobble", true)
	v.SetDefault("webhook.events.rate", true)
	v.SetDefault("letterboxd.headless", true)
	v.SetDefault("letterboxd.max_login_attempts", 3)

	// Read config file (optional - don't fail if missing)
	_ = v.ReadInConfig()

	// Read from environment variables
	// letterboxd.username becomes BOXD_LETTERBOXD_USERNAME
	v.SetEnvPrefix("BOXD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map config to struct
	cfg := &Config{
		DataDir:         v.GetString("data_dir"),
		SessionTTLHours: v.GetInt("session_ttl_hours"),
		Server: ServerConfig{
			Listen:        v.GetString("server.listen"),
			MaxConcurrent: v.GetInt("server.max_concurrent"),
		},
		Webhook: WebhookConfig{
			Enabled:    v.GetBool("webhook.enabled"),
			OnlyMovies: v.GetBool("webhook.only_movies"),
			Events: EventsConfig{
				Scrobble: v.GetBool("webhook.events.scrobble"),
				Rate:     v.GetBool("webhook.events.rate"),
			},
		},
		Plex: PlexConfig{
			Account: v.GetString("plex.account"),
		},
		Letterboxd: LetterboxdConfig{
			Username:         v.GetString("letterboxd.username"),
			Password:         v.GetString("letterboxd.password"),
			Headless:         v.GetBool("letterboxd.headless"),
			BrowserPath:      v.GetString("letterboxd.browser_path"),
			MaxLoginAttempts: v.GetInt("letterboxd.max_login_attempts"),
		},
	}

	return cfg, nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "boxd")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "boxd")
}

// Save writes configuration to file
func (c *Config) Save() error {
	v := viper.New()

	// Set config file path
	configDir := getConfigDir()
	configFile := filepath.Join(configDir, "config.yaml")

	// Set values in viper
	v.Set("data_dir", c.DataDir)
	v.Set("session_ttl_hours", c.SessionTTLHours)
	v.Set("server.listen", c.Server.Listen)
	v.Set("server.max_concurrent", c.Server.MaxConcurrent)
	v.Set("webhook.enabled", c.Webhook.Enabled)
	v.Set("webhook.only_movies", c.Webhook.OnlyMovies)
	v.Set("webhook.events.scrobble", c.Webhook.Events.Scrobble)
	v.Set("webhook.events.rate", c.Webhook.Events.Rate)
	v.Set("plex.account", c.Plex.Account)
	v.Set("letterboxd.username", c.Letterboxd.Username)
	v.Set("letterboxd.password", c.Letterboxd.Password)
	v.Set("letterboxd.headless", c.Letterboxd.Headless)
	v.Set("letterboxd.browser_path", c.Letterboxd.BrowserPath)
	v.Set("letterboxd.max_login_attempts", c.Letterboxd.MaxLoginAttempts)

	// Write to file
	return v.WriteConfigAs(configFile)
}
