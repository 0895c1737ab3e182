// Package webhook receives Plex webhook events over HTTP and hands the
// eligible ones to the scrobble pipeline.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/jfmyers9/boxd/internal/scrobbler"
)

// Plex event kinds this server acts on. Everything else (media.play,
// media.pause, library.new, ...) is acknowledged and skipped.
const (
	EventScrobble = "media.scrobble"
	EventRate     = "media.rate"
)

// ErrMalformed marks a request body that could not be decoded into a
// payload. The server reports it as a client error.
var ErrMalformed = errors.New("malformed webhook payload")

// Payload is the Plex webhook body. Plex posts it as the "payload" form
// field of a multipart request, with an optional thumbnail part this
// server ignores.
type Payload struct {
	Event string `json:"event"`
	// Rating is set on media.rate events, on Plex's 0-10 scale.
	Rating   float64  `json:"rating"`
	Account  Account  `json:"Account"`
	Metadata Metadata `json:"Metadata"`
}

// Account identifies the Plex account that triggered the event.
type Account struct {
	Title string `json:"title"`
}

// GUID is one external identifier entry, like "imdb://tt0113277".
type GUID struct {
	ID string `json:"id"`
}

// Tag is Plex's generic name wrapper used for directors, genres, etc.
type Tag struct {
	Tag string `json:"tag"`
}

// Metadata describes the media item the event is about.
type Metadata struct {
	LibrarySectionType string  `json:"librarySectionType"`
	Type               string  `json:"type"`
	Title              string  `json:"title"`
	Year               int     `json:"year"`
	LastViewedAt       int64   `json:"lastViewedAt"`
	UserRating         float64 `json:"userRating"`
	GUIDs              []GUID  `json:"Guid"`
	Directors          []Tag   `json:"Director"`
}

// ParsePayload decodes a webhook request body. Plex sends multipart form
// data with the JSON in the "payload" field; a bare JSON body is accepted
// too for manual testing with curl.
func ParsePayload(contentType string, body []byte) (*Payload, error) {
	raw := body
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		raw, err = payloadPart(bytes.NewReader(body), params["boundary"])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if p.Event == "" {
		return nil, fmt.Errorf("%w: missing event field", ErrMalformed)
	}
	return &p, nil
}

// payloadPart extracts the "payload" form field from a multipart body.
func payloadPart(r io.Reader, boundary string) ([]byte, error) {
	if boundary == "" {
		return nil, errors.New("multipart body without boundary")
	}
	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, errors.New("no payload field in multipart body")
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "payload" {
			return io.ReadAll(part)
		}
	}
}

// Eligible reports whether the event kind warrants pipeline work.
func (p *Payload) Eligible() bool {
	return p.Event == EventScrobble || p.Event == EventRate
}

// ScrobbleEvent converts the payload into the pipeline's normalized
// event shape.
func (p *Payload) ScrobbleEvent() scrobbler.Event {
	eventType := p.Event
	switch p.Event {
	case EventScrobble:
		eventType = scrobbler.EventScrobble
	case EventRate:
		eventType = scrobbler.EventRate
	}

	guids := make([]string, 0, len(p.Metadata.GUIDs))
	for _, g := range p.Metadata.GUIDs {
		if g.ID != "" {
			guids = append(guids, g.ID)
		}
	}
	directors := make([]string, 0, len(p.Metadata.Directors))
	for _, d := range p.Metadata.Directors {
		if d.Tag != "" {
			directors = append(directors, d.Tag)
		}
	}

	return scrobbler.Event{
		Type:         eventType,
		Account:      p.Account.Title,
		Title:        p.Metadata.Title,
		Year:         p.Metadata.Year,
		SectionType:  p.Metadata.LibrarySectionType,
		LastViewedAt: p.Metadata.LastViewedAt,
		Rating:       p.Rating,
		UserRating:   p.Metadata.UserRating,
		GUIDs:        guids,
		Directors:    directors,
	}
}
