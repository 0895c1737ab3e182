package letterboxd

import (
	"context"
	"strings"
	"time"
)

// Markers of the anti-bot interstitial. Titles are matched against the
// document title, content markers against the page markup, both
// case-insensitively.
var (
	challengeTitles = []string{
		"just a moment",
		"attention required",
		"checking your browser",
	}
	challengeMarkers = []string{
		"cf-browser-verification",
		"cf-challenge",
		"challenge-platform",
		"turnstile",
		"verifying you are human",
	}
)

// awaitClearance polls until the anti-bot interstitial clears or maxWait
// of wall-clock time elapses. Timing out is not an error: the caller
// proceeds against whatever the page shows and fails on its own terms,
// which keeps a stuck challenge from masking the real failure mode.
func (c *Client) awaitClearance(ctx context.Context, pg page, maxWait time.Duration) {
	deadline := time.Now().Add(maxWait)
	for {
		if !c.challengePresent(ctx, pg) {
			return
		}
		if time.Now().After(deadline) {
			c.log.Warn().Dur("waited", maxWait).Msg("anti-bot challenge still present, proceeding")
			return
		}
		c.log.Debug().Msg("anti-bot challenge present, waiting")
		if !sleep(ctx, c.pollInterval) {
			return
		}
	}
}

// challengePresent inspects the current page for interstitial markers.
// Inspection errors count as not-present; a broken page fails later with a
// more specific error.
func (c *Client) challengePresent(ctx context.Context, pg page) bool {
	if title, err := pg.Title(ctx); err == nil {
		lower := strings.ToLower(title)
		for _, phrase := range challengeTitles {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
	}
	if html, err := pg.HTML(ctx); err == nil {
		lower := strings.ToLower(html)
		for _, marker := range challengeMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}
