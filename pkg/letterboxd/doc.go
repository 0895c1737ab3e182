// Package letterboxd provides a diary client for letterboxd.com.
//
// # Overview
//
// Letterboxd has no public write API, so this package drives a real
// (headless) Chromium instance for the parts of the flow the site guards
// behind its anti-bot measures: signing in and finding the film. The diary
// entry itself is filed with a plain authenticated POST reusing the browser
// session's cookies. The package is organised around three operations:
//
//  1. EnsureSession: reuse saved cookies, or perform an interactive
//     sign-in with human-paced keystrokes and Cloudflare handling,
//     retried with exponential backoff.
//  2. Resolve: find the film record, preferring IMDB/TMDB identifier
//     search over free-text title search.
//  3. MarkWatched: file the diary entry against the resolved film.
//
// # Quick Start
//
//	client, err := letterboxd.NewClient(letterboxd.Config{
//	    Username: "user",
//	    Password: "secret",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	session, err := client.EnsureSession(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	film, err := client.Resolve(ctx, "Heat", 1995, letterboxd.ExternalIDs{IMDB: "tt0113277"})
//	if err != nil || film == nil {
//	    log.Fatal("film not found")
//	}
//
//	ok, err := client.MarkWatched(ctx, session, film, letterboxd.DiaryEntry{
//	    WatchedDate: "2026-08-21",
//	    Rating:      8,
//	})
//
// # Sessions
//
// A Session is a plain value (cookies plus the anti-forgery token) that the
// caller may persist and hand back to EnsureSession later. A session with
// cookies is restored into the browser without touching the sign-in page.
// Sessions are owned by a single client; a client owns at most one browser
// and must not be shared across concurrent scrobbles.
//
// # Error Handling
//
// Expected "not found" outcomes are values, not errors: Resolve returns a
// nil Film when every strategy comes up empty, and MarkWatched returns
// false (with the response body logged) when the site rejects the entry.
// Errors are reserved for broken invariants (ErrNotAuthenticated,
// ErrNoCredentials) and for failures worth reporting upstream, such as
// ErrLoginFailed after the retry budget is spent.
package letterboxd
