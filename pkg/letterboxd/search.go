package letterboxd

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// resultSelector matches one film entry on a search results page.
const resultSelector = "ul.results li .film-poster"

// resultsMarkers signal that the results page finished rendering, whether
// or not it found anything.
var resultsMarkers = []string{
	"ul.results",
	".no-results",
	"p.no-results",
}

// searchResult pairs a parsed film with the raw element text used for
// year disambiguation.
type searchResult struct {
	film *Film
	text string
}

// Resolve finds the film record for a title, trying identifier search
// first: IMDB id, then TMDB id, then free-text title. The title strategy
// disambiguates with the year when one is given. Resolve returns nil when
// every strategy comes up empty; it only errors on browser failures. It is
// read-only and safe to repeat.
func (c *Client) Resolve(ctx context.Context, title string, year int, ids ExternalIDs) (*Film, error) {
	pg, err := c.ensurePage(ctx)
	if err != nil {
		return nil, err
	}

	type strategy struct{ name, query string }
	strategies := []strategy{
		{"imdb", ids.IMDB},
		{"tmdb", ids.TMDB},
		{"title", title},
	}

	for _, s := range strategies {
		if s.query == "" {
			continue
		}
		var film *Film
		var err error
		if s.name == "title" {
			film, err = c.searchTitle(ctx, pg, title, year)
		} else {
			film, err = c.searchFirst(ctx, pg, s.query)
		}
		if err != nil {
			return nil, err
		}
		if film != nil {
			c.log.Debug().
				Str("strategy", s.name).
				Str("film", film.Slug).
				Str("id", film.ID).
				Msg("resolved film")
			return film, nil
		}
		c.log.Debug().Str("strategy", s.name).Str("query", s.query).Msg("search came up empty")
	}
	return nil, nil
}

// searchFirst runs one identifier search and takes the first result.
func (c *Client) searchFirst(ctx context.Context, pg page, query string) (*Film, error) {
	results, err := c.search(ctx, pg, query)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0].film, nil
}

// searchTitle runs a free-text search. With a year, the first result whose
// text carries both the title and the year wins; otherwise, and when no
// result matches both, the first result wins.
func (c *Client) searchTitle(ctx context.Context, pg page, title string, year int) (*Film, error) {
	results, err := c.search(ctx, pg, title)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	if year > 0 {
		needle := strings.ToLower(title)
		yr := strconv.Itoa(year)
		for _, r := range results {
			if strings.Contains(strings.ToLower(r.text), needle) && strings.Contains(r.text, yr) {
				return r.film, nil
			}
		}
	}
	return results[0].film, nil
}

// search loads the results page for query and parses every film entry on
// it. A missing results marker is not fatal; whatever the DOM holds is
// parsed as-is.
func (c *Client) search(ctx context.Context, pg page, query string) ([]searchResult, error) {
	if err := pg.Navigate(ctx, c.searchURL(query)); err != nil {
		return nil, err
	}
	if _, ok := pg.WaitAny(ctx, c.markerWait, resultsMarkers...); !ok {
		c.log.Debug().Str("query", query).Msg("results marker missing, parsing current page")
	}

	els, err := pg.Elements(ctx, resultSelector)
	if err != nil {
		return nil, err
	}
	results := make([]searchResult, 0, len(els))
	for _, el := range els {
		if film, text := c.filmFromElement(el); film != nil {
			results = append(results, searchResult{film: film, text: text})
		}
	}
	return results, nil
}

func (c *Client) searchURL(query string) string {
	return c.baseURL + "/search/films/" + url.PathEscape(query) + "/"
}

// filmFromElement extracts a film from one result element. The site ships
// two attribute schemes; the newer data-item-* one wins per field, with
// data-film-* as the fallback. Elements carrying no film id parse as nil.
func (c *Client) filmFromElement(el element) (*Film, string) {
	id := firstAttr(el, "data-item-id", "data-film-id")
	if id == "" {
		return nil, ""
	}
	// The newer scheme prefixes ids with "film:".
	id = strings.TrimPrefix(id, "film:")

	slug := firstAttr(el, "data-item-slug", "data-film-slug")
	link := firstAttr(el, "data-item-link", "data-target-link", "data-film-link")
	name := firstAttr(el, "data-item-name", "data-film-name")

	text := ""
	if t, err := el.Text(); err == nil {
		text = strings.TrimSpace(t)
	}
	if name == "" {
		name = text
	}
	if link == "" && slug != "" {
		link = "/film/" + slug + "/"
	}
	if slug == "" && link != "" {
		slug = slugFromLink(link)
	}

	return &Film{
		Title:        name,
		CanonicalURL: c.absoluteURL(link),
		Slug:         slug,
		ID:           id,
	}, text
}

// firstAttr returns the first named attribute that is present and
// non-empty.
func firstAttr(el element, names ...string) string {
	for _, name := range names {
		if v, err := el.Attribute(name); err == nil && v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

func (c *Client) absoluteURL(link string) string {
	if link == "" {
		return ""
	}
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return c.baseURL + link
}

func slugFromLink(link string) string {
	parts := strings.Split(strings.Trim(link, "/"), "/")
	return parts[len(parts)-1]
}
