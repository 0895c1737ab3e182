package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/boxd/internal/config"
	"github.com/jfmyers9/boxd/internal/scrobbler"
)

var (
	scrobbleYear     int
	scrobbleIMDB     string
	scrobbleTMDB     string
	scrobbleDate     string
	scrobbleRating   float64
	scrobbleLogLevel string
	scrobbleDataDir  string
)

// scrobbleCmd represents the scrobble command
var scrobbleCmd = &cobra.Command{
	Use:   "scrobble <title>",
	Short: "Scrobble a film to Letterboxd manually",
	Long: `File a Letterboxd diary entry for a film without waiting for a Plex event.

The film is found by external identifier when one is given (most precise),
falling back to a title search. Event gating from the config does not
apply: running this command is the intent.

Examples:
  boxd scrobble "Heat" --year 1995
  boxd scrobble "Heat" --imdb tt0113277 --date 2026-08-20 --rating 8`,
	Args: cobra.ExactArgs(1),
	RunE: runScrobble,
}

func init() {
	rootCmd.AddCommand(scrobbleCmd)

	scrobbleCmd.Flags().IntVar(&scrobbleYear, "year", 0, "Release year, used to disambiguate title searches")
	scrobbleCmd.Flags().StringVar(&scrobbleIMDB, "imdb", "", "IMDB identifier, e.g. tt0113277")
	scrobbleCmd.Flags().StringVar(&scrobbleTMDB, "tmdb", "", "TMDB identifier, e.g. 949")
	scrobbleCmd.Flags().StringVar(&scrobbleDate, "date", "", "Watched date as YYYY-MM-DD (default: today)")
	scrobbleCmd.Flags().Float64Var(&scrobbleRating, "rating", 0, "Rating on the 0-10 scale (0 = unrated)")
	scrobbleCmd.Flags().StringVar(&scrobbleLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	scrobbleCmd.Flags().StringVar(&scrobbleDataDir, "data-dir", "", "Data directory for sessions and history (default: ~/.local/share/boxd)")
}

func runScrobble(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Validate Letterboxd credentials
	if cfg.Letterboxd.Username == "" || cfg.Letterboxd.Password == "" {
		return fmt.Errorf("letterboxd credentials not configured. Run 'boxd auth' first")
	}

	logger := setupLogger("", scrobbleLogLevel)

	if scrobbleDataDir != "" {
		cfg.DataDir = scrobbleDataDir
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	event := scrobbler.Event{
		Type:        scrobbler.EventScrobble,
		Account:     cfg.Plex.Account,
		Title:       args[0],
		Year:        scrobbleYear,
		SectionType: scrobbler.SectionMovie,
		Rating:      scrobbleRating,
	}
	if scrobbleIMDB != "" {
		event.GUIDs = append(event.GUIDs, "imdb://"+scrobbleIMDB)
	}
	if scrobbleTMDB != "" {
		event.GUIDs = append(event.GUIDs, "tmdb://"+scrobbleTMDB)
	}
	if scrobbleDate != "" {
		watched, err := time.Parse("2006-01-02", scrobbleDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", scrobbleDate)
		}
		event.LastViewedAt = watched.Unix()
	}

	// A manual scrobble bypasses the configured gate.
	gate := scrobbler.GateConfig{Enabled: true, Scrobble: true, Rate: true}

	pipeline, history, err := newPipeline(cfg, gate, logger)
	if err != nil {
		return err
	}
	defer history.Close()

	outcome := pipeline.Run(context.Background(), event)
	if !outcome.Success {
		return fmt.Errorf("scrobble failed: %s", outcome.Message)
	}

	fmt.Printf("✓ %s\n", outcome.Message)
	return nil
}
