package letterboxd

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func diarySession() *Session {
	return &Session{
		Cookies: []Cookie{
			{Name: "letterboxd.user.CURRENT", Value: "u1"},
			{Name: csrfCookieName, Value: "tok123"},
		},
		CSRF:          "tok123",
		Authenticated: true,
	}
}

func diaryServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request, *url.Values) {
	t.Helper()
	var captured http.Request
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		captured = *r
		form, _ = url.ParseQuery(string(raw))
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &captured, &form
}

func TestMarkWatchedSendsDiaryForm(t *testing.T) {
	srv, req, form := diaryServer(t, http.StatusOK, `{"result":true}`)
	c, err := NewClient(Config{Username: "mitchell", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	film := &Film{Title: "Heat", ID: "51540", Slug: "heat-1995", CanonicalURL: srv.URL + "/film/heat-1995/"}

	ok, err := c.MarkWatched(context.Background(), diarySession(), film, DiaryEntry{
		WatchedDate: "2026-08-21",
		Rating:      8,
		Review:      "Still the best heist film.",
		Tags:        "plex",
	})
	if err != nil {
		t.Fatalf("MarkWatched() error = %v", err)
	}
	if !ok {
		t.Fatal("MarkWatched() = false, want true")
	}

	if req.URL.Path != "/s/save-diary-entry" {
		t.Errorf("posted to %q, want the diary save endpoint", req.URL.Path)
	}
	if req.Method != http.MethodPost {
		t.Errorf("method = %q, want POST", req.Method)
	}
	wantFields := map[string]string{
		"json":           "true",
		"__csrf":         "tok123",
		"viewingId":      "",
		"filmId":         "51540",
		"id":             "51540",
		"specifiedDate":  "true",
		"viewingDateStr": "2026-08-21",
		"review":         "Still the best heist film.",
		"tags":           "plex",
		"rating":         "8",
	}
	for key, want := range wantFields {
		if !form.Has(key) {
			t.Errorf("form field %q missing", key)
			continue
		}
		if got := form.Get(key); got != want {
			t.Errorf("form[%q] = %q, want %q", key, got, want)
		}
	}
	if got, want := req.Header.Get("Cookie"), "letterboxd.user.CURRENT=u1; com.xk72.webparts.csrf=tok123"; got != want {
		t.Errorf("Cookie header = %q, want %q", got, want)
	}
	if got := req.Header.Get("Referer"); got != film.CanonicalURL {
		t.Errorf("Referer = %q, want the film page %q", got, film.CanonicalURL)
	}
	if got := req.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
		t.Errorf("Content-Type = %q, want form encoding", got)
	}
}

func TestMarkWatchedDefaultsAndClamps(t *testing.T) {
	tests := []struct {
		name       string
		entry      DiaryEntry
		wantRating string
	}{
		{"empty entry defaults", DiaryEntry{}, "0"},
		{"rating clamped high", DiaryEntry{Rating: 14}, "10"},
		{"rating clamped low", DiaryEntry{Rating: -3}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, form := diaryServer(t, http.StatusOK, "{}")
			c, err := NewClient(Config{Username: "mitchell", BaseURL: srv.URL})
			if err != nil {
				t.Fatalf("NewClient() error = %v", err)
			}
			film := &Film{ID: "51540", Slug: "heat-1995"}

			ok, err := c.MarkWatched(context.Background(), diarySession(), film, tt.entry)
			if err != nil || !ok {
				t.Fatalf("MarkWatched() = %v, %v", ok, err)
			}
			if got := form.Get("rating"); got != tt.wantRating {
				t.Errorf("rating = %q, want %q", got, tt.wantRating)
			}
			if tt.entry.WatchedDate == "" {
				if _, perr := time.Parse(dateLayout, form.Get("viewingDateStr")); perr != nil {
					t.Errorf("viewingDateStr = %q, want a default date", form.Get("viewingDateStr"))
				}
			}
		})
	}
}

func TestMarkWatchedRejected(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusInternalServerError} {
		srv, _, _ := diaryServer(t, status, `{"result":false}`)
		c, err := NewClient(Config{Username: "mitchell", BaseURL: srv.URL})
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}

		ok, err := c.MarkWatched(context.Background(), diarySession(), &Film{ID: "51540"}, DiaryEntry{})
		if err != nil {
			t.Errorf("status %d: MarkWatched() error = %v, want rejection as a value", status, err)
		}
		if ok {
			t.Errorf("status %d: MarkWatched() = true, want false", status)
		}
	}
}

func TestMarkWatchedNetworkError(t *testing.T) {
	srv, _, _ := diaryServer(t, http.StatusOK, "{}")
	c, err := NewClient(Config{Username: "mitchell", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	srv.Close()

	ok, err := c.MarkWatched(context.Background(), diarySession(), &Film{ID: "51540"}, DiaryEntry{})
	if ok {
		t.Error("MarkWatched() = true, want false on a network failure")
	}
	if err == nil {
		t.Error("MarkWatched() error = nil, want the network failure retained")
	}
}

func TestMarkWatchedRequiresAuthenticatedSession(t *testing.T) {
	c, err := NewClient(Config{Username: "mitchell"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	film := &Film{ID: "51540"}

	tests := []struct {
		name    string
		session *Session
	}{
		{"nil session", nil},
		{"not authenticated", &Session{CSRF: "tok", Authenticated: false}},
		{"missing token", &Session{Authenticated: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.MarkWatched(context.Background(), tt.session, film, DiaryEntry{})
			if !errors.Is(err, ErrNotAuthenticated) {
				t.Errorf("MarkWatched() error = %v, want ErrNotAuthenticated", err)
			}
		})
	}

	t.Run("film without id", func(t *testing.T) {
		if _, err := c.MarkWatched(context.Background(), diarySession(), &Film{}, DiaryEntry{}); err == nil {
			t.Error("MarkWatched() error = nil, want one for a film without an id")
		}
	})
}
