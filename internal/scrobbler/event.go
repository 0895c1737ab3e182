package scrobbler

import (
	"strings"

	"github.com/jfmyers9/boxd/pkg/letterboxd"
)

// Event types the pipeline acts on. Scrobble fires when playback crosses
// the media server's watched threshold; rate fires when a user rates an
// item.
const (
	EventScrobble = "scrobble"
	EventRate     = "rate"
)

// SectionMovie is the library section type for movie libraries.
const SectionMovie = "movie"

// Event is one normalized watch event from the media server.
type Event struct {
	// Type is the normalized event type, EventScrobble or EventRate.
	Type string
	// Account is the media-server account the event belongs to.
	Account string
	// Title and Year identify the film as the media server knows it.
	Title string
	Year  int
	// SectionType is the library section type, SectionMovie for films.
	SectionType string
	// LastViewedAt is the Unix timestamp of the viewing, 0 when the
	// server did not report one.
	LastViewedAt int64
	// Rating is the rating submitted with a rate event, 0-10, 0 when
	// absent.
	Rating float64
	// UserRating is the stored user rating from the item's metadata,
	// used when the event itself carries none.
	UserRating float64
	// GUIDs is the item's external identifier list, provider-prefixed
	// like "imdb://tt0113277".
	GUIDs []string
	// Directors as reported by the media server, informational only.
	Directors []string
}

// ParseExternalIDs extracts catalog identifiers from a provider-prefixed
// GUID list. Unrecognized providers are ignored; the first occurrence of
// each provider wins.
func ParseExternalIDs(guids []string) letterboxd.ExternalIDs {
	var ids letterboxd.ExternalIDs
	for _, guid := range guids {
		provider, id, ok := strings.Cut(guid, "://")
		if !ok || id == "" {
			continue
		}
		switch strings.ToLower(provider) {
		case "imdb":
			if ids.IMDB == "" {
				ids.IMDB = id
			}
		case "tmdb":
			if ids.TMDB == "" {
				ids.TMDB = id
			}
		}
	}
	return ids
}
