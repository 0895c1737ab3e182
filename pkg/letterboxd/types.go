package letterboxd

import "strings"

// Cookie is a browser cookie captured from or restored into the automated
// session. Expires is seconds since the Unix epoch; zero means a session
// cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

// Session is the authenticated state produced by EnsureSession. It is a
// plain value so callers can persist it between runs and hand it back to
// skip the sign-in flow.
type Session struct {
	Cookies       []Cookie `json:"cookies"`
	CSRF          string   `json:"csrf"`
	Authenticated bool     `json:"authenticated"`
}

// CookieHeader renders the session cookies as a single Cookie header value
// suitable for direct HTTP requests outside the browser.
func (s *Session) CookieHeader() string {
	pairs := make([]string, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

// cookieValue returns the value of the named cookie, or "" if absent.
func cookieValue(cookies []Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// Film is a resolved film record from the site's search results.
type Film struct {
	// Title as rendered in the search result.
	Title string `json:"title"`
	// CanonicalURL is the absolute URL of the film's page, used as the
	// Referer when filing a diary entry.
	CanonicalURL string `json:"canonicalUrl"`
	// Slug is the URL path component identifying the film.
	Slug string `json:"slug"`
	// ID is the site's numeric film identifier, required to file a diary
	// entry.
	ID string `json:"id"`
}

// ExternalIDs carries provider identifiers for a film. Either field may be
// empty; identifier search is preferred over title search whenever one is
// present.
type ExternalIDs struct {
	IMDB string `json:"imdb,omitempty"`
	TMDB string `json:"tmdb,omitempty"`
}

// DiaryEntry describes one watched-film diary record to file.
type DiaryEntry struct {
	// WatchedDate in YYYY-MM-DD form. Empty means today (UTC).
	WatchedDate string `json:"watchedDate"`
	// Rating on the site's 0-10 half-star scale; 0 means unrated.
	Rating int `json:"rating"`
	// Review text, may be empty.
	Review string `json:"review,omitempty"`
	// Tags is a comma separated tag list, may be empty.
	Tags string `json:"tags,omitempty"`
}
