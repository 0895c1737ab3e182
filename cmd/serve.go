package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/boxd/internal/config"
	"github.com/jfmyers9/boxd/internal/scrobbler"
	"github.com/jfmyers9/boxd/internal/webhook"
	"github.com/jfmyers9/boxd/pkg/letterboxd"
)

var (
	serveLogFile  string
	serveLogLevel string
	serveDataDir  string
	serveListen   string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Plex webhook server",
	Long: `Run the webhook server that Plex posts watch events to.

The server will:
- Accept Plex webhooks on POST /webhook (add the URL in Plex's webhook settings)
- Decide per event whether it warrants a scrobble (movie libraries, enabled event types)
- Sign in to letterboxd.com with an automated browser, reusing saved sessions
- File a diary entry for the watched film and record the outcome
- Handle graceful shutdown on SIGINT/SIGTERM

The server runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file (useful for systemd).`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Command-line flags
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Log file path (default: stderr)")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "Data directory for sessions and history (default: ~/.local/share/boxd)")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default: :8484)")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validate Letterboxd credentials
	if cfg.Letterboxd.Username == "" || cfg.Letterboxd.Password == "" {
		return fmt.Errorf("letterboxd credentials not configured. Run 'boxd auth' first")
	}

	// Set up logging
	logger := setupLogger(serveLogFile, serveLogLevel)

	logger.Info().
		Str("version", version).
		Msg("Starting boxd webhook server")

	// Flag overrides
	if serveDataDir != "" {
		cfg.DataDir = serveDataDir
	}
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	logger.Info().Str("data_dir", cfg.DataDir).Msg("Using data directory")

	// Create pipeline
	pipeline, history, err := newPipeline(cfg, gateFromConfig(cfg), logger)
	if err != nil {
		return err
	}
	defer history.Close()

	// Create webhook server
	server := webhook.NewServer(webhook.Config{
		Listen:        cfg.Server.Listen,
		MaxConcurrent: int64(cfg.Server.MaxConcurrent),
	}, pipeline, logger)

	// Run server (blocks until shutdown signal)
	if err := server.Run(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	// Cleanup old journal entries on the way out
	if _, err := history.Cleanup(context.Background(), 90*24*time.Hour); err != nil {
		logger.Warn().Err(err).Msg("Failed to clean up history")
	}

	logger.Info().Msg("Server stopped")
	return nil
}

// gateFromConfig maps the webhook section of the config onto the gate.
func gateFromConfig(cfg *config.Config) scrobbler.GateConfig {
	return scrobbler.GateConfig{
		Enabled:    cfg.Webhook.Enabled,
		Scrobble:   cfg.Webhook.Events.Scrobble,
		Rate:       cfg.Webhook.Events.Rate,
		OnlyMovies: cfg.Webhook.OnlyMovies,
	}
}

// newPipeline wires the scrobble pipeline from configuration: the journal,
// the session cache, the credential source, and the browser client template.
func newPipeline(cfg *config.Config, gate scrobbler.GateConfig, logger zerolog.Logger) (*scrobbler.Pipeline, *scrobbler.History, error) {
	history, err := scrobbler.NewHistory(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history: %w", err)
	}

	sessions := scrobbler.NewSessionCache(
		filepath.Join(cfg.DataDir, "sessions"),
		time.Duration(cfg.SessionTTLHours)*time.Hour,
		logger,
	)

	creds := scrobbler.Credentials{
		Username: cfg.Letterboxd.Username,
		Password: cfg.Letterboxd.Password,
	}
	var source scrobbler.StaticCredentials
	if cfg.Plex.Account != "" {
		// Only the configured Plex account may scrobble.
		source = scrobbler.NewStaticCredentials(map[string]scrobbler.Credentials{
			cfg.Plex.Account: creds,
		}, scrobbler.Credentials{})
	} else {
		source = scrobbler.NewStaticCredentials(nil, creds)
	}

	pipeline := scrobbler.New(scrobbler.Options{
		Gate: gate,
		Client: letterboxd.Config{
			ShowBrowser:      !cfg.Letterboxd.Headless,
			BrowserPath:      cfg.Letterboxd.BrowserPath,
			MaxLoginAttempts: cfg.Letterboxd.MaxLoginAttempts,
		},
		Credentials: source,
		Sessions:    sessions,
		History:     history,
		Logger:      logger,
	})

	return pipeline, history, nil
}

// setupLogger creates a logger with the specified configuration
func setupLogger(logFile, logLevel string) zerolog.Logger {
	// Parse log level
	level := zerolog.InfoLevel
	switch logLevel {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	// Set up output
	var output *os.File
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			output = os.Stderr
		} else {
			output = f
		}
	} else {
		output = os.Stderr
	}

	// Create logger
	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	// Use pretty console output if logging to stderr
	if output == os.Stderr {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	return logger
}
