package letterboxd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// diarySavePath is the site's diary entry save endpoint.
	diarySavePath = "/s/save-diary-entry"

	dateLayout = "2006-01-02"

	// maxBodyLog caps how much of a rejection response gets logged.
	maxBodyLog = 32 << 10
)

// MarkWatched files a diary entry for film using the session's cookies and
// anti-forgery token. It returns true when the site accepted the entry and
// false with the response body logged when it rejected it. Network
// failures return false with the error retained for the caller's report.
// Calling without a fully authenticated session is a programming error and
// returns ErrNotAuthenticated.
func (c *Client) MarkWatched(ctx context.Context, session *Session, film *Film, entry DiaryEntry) (bool, error) {
	if session == nil || !session.Authenticated || session.CSRF == "" {
		return false, ErrNotAuthenticated
	}
	if film == nil || film.ID == "" {
		return false, errors.New("letterboxd: film has no id")
	}

	watched := entry.WatchedDate
	if watched == "" {
		watched = time.Now().UTC().Format(dateLayout)
	}
	rating := entry.Rating
	if rating < 0 {
		rating = 0
	}
	if rating > 10 {
		rating = 10
	}

	form := url.Values{}
	form.Set("json", "true")
	form.Set("__csrf", session.CSRF)
	form.Set("viewingId", "")
	// The endpoint has accepted the film id under two names across site
	// revisions; send both.
	form.Set("filmId", film.ID)
	form.Set("id", film.ID)
	form.Set("specifiedDate", "true")
	form.Set("viewingDateStr", watched)
	form.Set("review", entry.Review)
	form.Set("tags", entry.Tags)
	form.Set("rating", strconv.Itoa(rating))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+diarySavePath, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("build diary request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", session.CookieHeader())
	req.Header.Set("User-Agent", userAgent)
	if film.CanonicalURL != "" {
		req.Header.Set("Referer", film.CanonicalURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("save diary entry: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyLog))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("film", film.Slug).
			Str("body", strings.TrimSpace(string(body))).
			Msg("diary entry rejected")
		return false, nil
	}

	c.log.Info().
		Str("film", film.Slug).
		Str("date", watched).
		Int("rating", rating).
		Msg("diary entry saved")
	return true, nil
}
