package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jfmyers9/boxd/internal/scrobbler"
)

func TestPadToWidth(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{
			name:     "short text gets padded",
			input:    "Heat",
			width:    10,
			expected: "Heat      ",
		},
		{
			name:     "exact width unchanged",
			input:    "1234567890",
			width:    10,
			expected: "1234567890",
		},
		{
			name:     "long text truncated with ellipsis",
			input:    "The Assassination of Jesse James",
			width:    15,
			expected: "The Assassin...",
		},
		{
			name:     "zero width returns unchanged",
			input:    "Heat",
			width:    0,
			expected: "Heat",
		},
		{
			name:     "negative width returns unchanged",
			input:    "Heat",
			width:    -5,
			expected: "Heat",
		},
		{
			name:     "empty string gets padded",
			input:    "",
			width:    5,
			expected: "     ",
		},
		{
			name:     "emoji takes double width",
			input:    "🎬",
			width:    5,
			expected: "🎬   ",
		},
		{
			name:     "wide characters counted by display width",
			input:    "七人の侍",
			width:    10,
			expected: "七人の侍  ",
		},
		{
			name:     "wide characters truncated by display width",
			input:    "七人の侍 Seven Samurai",
			width:    10,
			expected: "七人の... ",
		},
		{
			name:     "width smaller than ellipsis",
			input:    "Heat",
			width:    2,
			expected: "..",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := padToWidth(tt.input, tt.width)
			if result != tt.expected {
				t.Errorf("padToWidth(%q, %d) = %q, want %q", tt.input, tt.width, result)
			}

			// The whole point is fixed columns: verify display width.
			if tt.width > 0 {
				gotWidth := runewidth.StringWidth(result)
				if gotWidth > tt.width {
					t.Errorf("padToWidth(%q, %d) has display width %d, want <= %d", tt.input, tt.width, gotWidth, tt.width)
				}
			}
		})
	}
}

func TestFormatFilm(t *testing.T) {
	withYear := scrobbler.HistoryEntry{Title: "Heat", Year: 1995}
	if got := formatFilm(withYear); got != "Heat (1995)" {
		t.Errorf("formatFilm = %q, want %q", got, "Heat (1995)")
	}

	noYear := scrobbler.HistoryEntry{Title: "Heat"}
	if got := formatFilm(noYear); got != "Heat" {
		t.Errorf("formatFilm = %q, want %q", got, "Heat")
	}
}

func TestFormatResult(t *testing.T) {
	tests := []struct {
		name  string
		entry scrobbler.HistoryEntry
		want  string
	}{
		{"success", scrobbler.HistoryEntry{Success: true}, "ok"},
		{"failure with reason", scrobbler.HistoryEntry{Reason: "film_not_found"}, "film_not_found"},
		{"failure without reason", scrobbler.HistoryEntry{}, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatResult(tt.entry); got != tt.want {
				t.Errorf("formatResult = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderRow(t *testing.T) {
	entry := scrobbler.HistoryEntry{
		Account:   "mitchell",
		Title:     "Heat",
		Year:      1995,
		EventType: "scrobble",
		Success:   true,
		Message:   "Successfully logged Heat",
		CreatedAt: time.Date(2026, 8, 22, 21, 30, 0, 0, time.UTC),
	}

	row := renderRow(
		entry.CreatedAt.Format("2006-01-02 15:04"),
		entry.EventType,
		formatFilm(entry),
		formatResult(entry),
		entry.Message,
	)

	if strings.HasSuffix(row, " ") {
		t.Errorf("renderRow left trailing spaces: %q", row)
	}
	for _, want := range []string{"2026-08-22 21:30", "scrobble", "Heat (1995)", "ok", "Successfully logged Heat"} {
		if !strings.Contains(row, want) {
			t.Errorf("renderRow missing %q: %q", want, row)
		}
	}

	// Columns line up when the fields are shorter than their widths.
	header := renderRow("WHEN", "EVENT", "FILM", "RESULT", "MESSAGE")
	if strings.Index(header, "EVENT") != strings.Index(row, "scrobble") {
		t.Errorf("event column misaligned:\n%s\n%s", header, row)
	}
	if strings.Index(header, "FILM") != strings.Index(row, "Heat (1995)") {
		t.Errorf("film column misaligned:\n%s\n%s", header, row)
	}
}
