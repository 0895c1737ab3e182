package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/boxd/internal/config"
	"github.com/jfmyers9/boxd/internal/scrobbler"
)

var (
	historyLimit   int
	historyFailed  bool
	historyDataDir string
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent scrobble outcomes",
	Long: `Show the most recent scrobble outcomes, newest first.

Every webhook that passes the event gate is recorded, successful or not,
along with the reason when it failed. Benign skips (disabled events,
non-movie libraries) are not recorded.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of entries to show")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "Show only failed scrobbles")
	historyCmd.Flags().StringVar(&historyDataDir, "data-dir", "", "Data directory for sessions and history (default: ~/.local/share/boxd)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if historyDataDir != "" {
		cfg.DataDir = historyDataDir
	}

	history, err := scrobbler.NewHistory(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer history.Close()

	entries, err := history.Recent(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if historyFailed {
		failed := entries[:0]
		for _, e := range entries {
			if !e.Success {
				failed = append(failed, e)
			}
		}
		entries = failed
	}

	if len(entries) == 0 {
		fmt.Println("No scrobbles recorded yet.")
		return nil
	}

	// Column-aligned table
	fmt.Println(renderRow("WHEN", "EVENT", "FILM", "RESULT", "MESSAGE"))
	for _, e := range entries {
		fmt.Println(renderRow(
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.EventType,
			formatFilm(e),
			formatResult(e),
			e.Message,
		))
	}

	total, err := history.Count(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to count history: %w", err)
	}
	failures, err := history.Count(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to count history: %w", err)
	}
	fmt.Printf("\n%d recorded, %d failed\n", total, failures)

	return nil
}

// renderRow lays the fields out in fixed display-width columns. The last
// column is not padded.
func renderRow(when, event, film, result, message string) string {
	return strings.TrimRight(
		padToWidth(when, 16)+"  "+
			padToWidth(event, 8)+"  "+
			padToWidth(film, 34)+"  "+
			padToWidth(result, 14)+"  "+
			padToWidth(message, 44),
		" ")
}

func formatFilm(e scrobbler.HistoryEntry) string {
	if e.Year > 0 {
		return fmt.Sprintf("%s (%d)", e.Title, e.Year)
	}
	return e.Title
}

func formatResult(e scrobbler.HistoryEntry) string {
	if e.Success {
		return "ok"
	}
	if e.Reason != "" {
		return e.Reason
	}
	return "failed"
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
// If text is longer than width, truncates with "..." suffix.
// If text is shorter than width, pads with spaces.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text // no padding requested
	}

	currentWidth := runewidth.StringWidth(text)

	if currentWidth > width {
		// Truncate with "..." suffix
		ellipsis := "..."
		ellipsisWidth := runewidth.StringWidth(ellipsis)

		if width <= ellipsisWidth {
			// If width is too small, just return ellipsis truncated to width
			return runewidth.Truncate(ellipsis, width, "")
		}

		// Truncate to (width - ellipsisWidth) and add ellipsis
		truncated := runewidth.Truncate(text, width-ellipsisWidth, "")
		result := truncated + ellipsis

		// Ensure we're exactly at the target width (in case truncate was imprecise)
		resultWidth := runewidth.StringWidth(result)
		if resultWidth < width {
			padding := strings.Repeat(" ", width-resultWidth)
			return result + padding
		} else if resultWidth > width {
			// Shouldn't happen, but handle it just in case
			return runewidth.Truncate(result, width, "")
		}
		return result
	} else if currentWidth < width {
		// Pad with spaces
		padding := strings.Repeat(" ", width-currentWidth)
		return text + padding
	}

	return text // exactly the right width
}
