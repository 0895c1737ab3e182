package scrobbler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/boxd/pkg/letterboxd"
)

// fakeDiary scripts the letterboxd client surface the pipeline drives.
type fakeDiary struct {
	session    *letterboxd.Session
	sessionErr error
	film       *letterboxd.Film
	resolveErr error
	marked     bool
	markErr    error

	resolvePanic bool

	ensureCalls  int
	resolveCalls int
	markCalls    int
	closeCalls   int

	gotCached *letterboxd.Session
	gotTitle  string
	gotYear   int
	gotIDs    letterboxd.ExternalIDs
	gotFilm   *letterboxd.Film
	gotEntry  letterboxd.DiaryEntry
}

func (f *fakeDiary) EnsureSession(_ context.Context, cached *letterboxd.Session) (*letterboxd.Session, error) {
	f.ensureCalls++
	f.gotCached = cached
	return f.session, f.sessionErr
}

func (f *fakeDiary) Resolve(_ context.Context, title string, year int, ids letterboxd.ExternalIDs) (*letterboxd.Film, error) {
	f.resolveCalls++
	f.gotTitle, f.gotYear, f.gotIDs = title, year, ids
	if f.resolvePanic {
		panic("selector changed underneath us")
	}
	return f.film, f.resolveErr
}

func (f *fakeDiary) MarkWatched(_ context.Context, _ *letterboxd.Session, film *letterboxd.Film, entry letterboxd.DiaryEntry) (bool, error) {
	f.markCalls++
	f.gotFilm, f.gotEntry = film, entry
	return f.marked, f.markErr
}

func (f *fakeDiary) Close() error {
	f.closeCalls++
	return nil
}

// happyDiary returns a fake that succeeds end to end.
func happyDiary() *fakeDiary {
	return &fakeDiary{
		session: &letterboxd.Session{
			Cookies:       []letterboxd.Cookie{{Name: "letterboxd.user.CURRENT", Value: "u1"}},
			CSRF:          "tok123",
			Authenticated: true,
		},
		film:   &letterboxd.Film{Title: "Heat", Slug: "heat-1995", ID: "51540", CanonicalURL: "https://letterboxd.com/film/heat-1995/"},
		marked: true,
	}
}

func movieEvent() Event {
	return Event{
		Type:        EventScrobble,
		Account:     "mitchell",
		Title:       "Heat",
		Year:        1995,
		SectionType: SectionMovie,
		GUIDs:       []string{"imdb://tt0113277", "tmdb://949"},
	}
}

func testPipeline(t *testing.T, svc diaryService) (*Pipeline, *int) {
	t.Helper()
	p := New(Options{
		Gate:        GateConfig{Enabled: true, Scrobble: true, Rate: true, OnlyMovies: true},
		Credentials: NewStaticCredentials(nil, Credentials{Username: "mitchell", Password: "hunter2"}),
		Logger:      zerolog.Nop(),
	})
	services := 0
	p.newService = func(Credentials) (diaryService, error) {
		services++
		return svc, nil
	}
	return p, &services
}

func TestRunScrobblesMovie(t *testing.T) {
	svc := happyDiary()
	p, _ := testPipeline(t, svc)

	out := p.Run(context.Background(), movieEvent())
	if !out.Success {
		t.Fatalf("Run() = %+v, want success", out)
	}
	if out.Message != "Successfully logged Heat" {
		t.Errorf("message = %q, want the confirmation with the resolved title", out.Message)
	}
	if svc.gotTitle != "Heat" || svc.gotYear != 1995 {
		t.Errorf("resolved %q (%d), want the event's title and year", svc.gotTitle, svc.gotYear)
	}
	if svc.gotIDs != (letterboxd.ExternalIDs{IMDB: "tt0113277", TMDB: "949"}) {
		t.Errorf("ids = %+v, want both parsed from the guid list", svc.gotIDs)
	}
	if svc.gotEntry.Tags != DefaultTag {
		t.Errorf("tags = %q, want the provenance tag", svc.gotEntry.Tags)
	}
	if svc.closeCalls != 1 {
		t.Errorf("closeCalls = %d, want the browser released exactly once", svc.closeCalls)
	}
}

func TestRunRejectsShowWithoutSession(t *testing.T) {
	svc := happyDiary()
	p, services := testPipeline(t, svc)

	event := movieEvent()
	event.SectionType = "show"
	out := p.Run(context.Background(), event)

	if out.Success || out.Reason != ReasonNonMovie {
		t.Fatalf("Run() = %+v, want rejection with non_movie", out)
	}
	if !out.Benign() {
		t.Error("non_movie should be a benign skip")
	}
	if *services != 0 || svc.ensureCalls != 0 {
		t.Errorf("services=%d ensureCalls=%d, want no session work for a gated event", *services, svc.ensureCalls)
	}
}

func TestRunRejectsDisabledRateEvent(t *testing.T) {
	svc := happyDiary()
	p, services := testPipeline(t, svc)
	p.gate.Rate = false

	event := movieEvent()
	event.Type = EventRate
	out := p.Run(context.Background(), event)

	if out.Reason != ReasonEventDisabled {
		t.Fatalf("Run() = %+v, want event_disabled", out)
	}
	if *services != 0 {
		t.Errorf("services = %d, want none", *services)
	}
}

func TestRunReusesCachedSession(t *testing.T) {
	svc := happyDiary()
	p, _ := testPipeline(t, svc)
	p.sessions = NewSessionCache(t.TempDir(), 0, zerolog.Nop())
	if err := p.sessions.Store("mitchell", svc.session); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	out := p.Run(context.Background(), movieEvent())
	if !out.Success {
		t.Fatalf("Run() = %+v, want success", out)
	}
	if svc.gotCached == nil {
		t.Error("EnsureSession received no cached session")
	}
}

func TestRunSavesFreshSession(t *testing.T) {
	svc := happyDiary()
	p, _ := testPipeline(t, svc)
	p.sessions = NewSessionCache(t.TempDir(), 0, zerolog.Nop())

	out := p.Run(context.Background(), movieEvent())
	if !out.Success {
		t.Fatalf("Run() = %+v, want success", out)
	}
	if svc.gotCached != nil {
		t.Error("EnsureSession received a cached session from an empty cache")
	}
	if p.sessions.Load("mitchell") == nil {
		t.Error("fresh session not saved for the next run")
	}
}

func TestRunLoginFailure(t *testing.T) {
	svc := happyDiary()
	svc.session = nil
	svc.sessionErr = fmt.Errorf("%w after 3 attempts: no signed-in marker", letterboxd.ErrLoginFailed)
	p, _ := testPipeline(t, svc)
	p.sessions = NewSessionCache(t.TempDir(), 0, zerolog.Nop())
	if err := p.sessions.Store("mitchell", happyDiary().session); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	out := p.Run(context.Background(), movieEvent())
	if out.Reason != ReasonLoginFailed {
		t.Fatalf("Run() = %+v, want login_failed", out)
	}
	if out.Cause == nil {
		t.Error("login failure lost its cause")
	}
	if svc.resolveCalls != 0 {
		t.Error("resolution attempted without a session")
	}
	if p.sessions.Load("mitchell") != nil {
		t.Error("failed session not invalidated")
	}
	if svc.closeCalls != 1 {
		t.Errorf("closeCalls = %d, want the browser released on the failure path", svc.closeCalls)
	}
}

func TestRunNoCredentials(t *testing.T) {
	svc := happyDiary()
	p, services := testPipeline(t, svc)
	p.creds = NewStaticCredentials(nil, Credentials{})

	out := p.Run(context.Background(), movieEvent())
	if out.Reason != ReasonLoginFailed {
		t.Fatalf("Run() = %+v, want login_failed for missing credentials", out)
	}
	if *services != 0 {
		t.Errorf("services = %d, want no browser for a credential miss", *services)
	}
}

func TestRunFilmNotFound(t *testing.T) {
	svc := happyDiary()
	svc.film = nil
	p, _ := testPipeline(t, svc)

	event := movieEvent()
	event.Title = "Nonexistent Film 9999"
	out := p.Run(context.Background(), event)

	if out.Reason != ReasonFilmNotFound {
		t.Fatalf("Run() = %+v, want film_not_found", out)
	}
	if !strings.Contains(out.Message, "Nonexistent Film 9999") {
		t.Errorf("message = %q, want it to name the title", out.Message)
	}
	if svc.markCalls != 0 {
		t.Error("MarkWatched invoked despite an unresolved film")
	}
}

func TestRunMarkRejected(t *testing.T) {
	svc := happyDiary()
	svc.marked = false
	p, _ := testPipeline(t, svc)

	out := p.Run(context.Background(), movieEvent())
	if out.Reason != ReasonMarkFailed {
		t.Fatalf("Run() = %+v, want mark_failed", out)
	}
}

func TestRunMarkNetworkFailure(t *testing.T) {
	svc := happyDiary()
	svc.marked = false
	svc.markErr = errors.New("connection refused")
	p, _ := testPipeline(t, svc)

	out := p.Run(context.Background(), movieEvent())
	if out.Reason != ReasonMarkFailed {
		t.Fatalf("Run() = %+v, want mark_failed", out)
	}
	if out.Cause == nil {
		t.Error("network failure lost its cause")
	}
}

func TestRunMarkWithoutSessionIsUnknown(t *testing.T) {
	svc := happyDiary()
	svc.marked = false
	svc.markErr = letterboxd.ErrNotAuthenticated
	p, _ := testPipeline(t, svc)

	out := p.Run(context.Background(), movieEvent())
	if out.Reason != ReasonUnknown {
		t.Fatalf("Run() = %+v, want unknown_error for a broken invariant", out)
	}
}

func TestRunResolveFailure(t *testing.T) {
	svc := happyDiary()
	svc.film = nil
	svc.resolveErr = errors.New("browser crashed")
	p, _ := testPipeline(t, svc)

	out := p.Run(context.Background(), movieEvent())
	if out.Reason != ReasonUnknown {
		t.Fatalf("Run() = %+v, want unknown_error", out)
	}
	if out.Cause == nil {
		t.Error("resolve failure lost its cause")
	}
}

func TestRunRecoversPanics(t *testing.T) {
	svc := happyDiary()
	svc.resolvePanic = true
	p, _ := testPipeline(t, svc)

	out := p.Run(context.Background(), movieEvent())
	if out.Reason != ReasonUnknown {
		t.Fatalf("Run() = %+v, want unknown_error from the recovery boundary", out)
	}
	if out.Cause == nil || !strings.Contains(out.Cause.Error(), "panic") {
		t.Errorf("cause = %v, want the panic retained", out.Cause)
	}
	if svc.closeCalls != 1 {
		t.Errorf("closeCalls = %d, want the browser released despite the panic", svc.closeCalls)
	}
}

func TestRunWatchedDateFromLastViewed(t *testing.T) {
	svc := happyDiary()
	p, _ := testPipeline(t, svc)

	event := movieEvent()
	event.LastViewedAt = 1700000000
	out := p.Run(context.Background(), event)
	if !out.Success {
		t.Fatalf("Run() = %+v, want success", out)
	}
	if svc.gotEntry.WatchedDate != "2023-11-14" {
		t.Errorf("WatchedDate = %q, want the UTC calendar date for 1700000000", svc.gotEntry.WatchedDate)
	}
}

func TestRunRatingFallsBackToUserRating(t *testing.T) {
	svc := happyDiary()
	p, _ := testPipeline(t, svc)

	event := movieEvent()
	event.Type = EventRate
	event.Rating = 0
	event.UserRating = 7.4
	out := p.Run(context.Background(), event)
	if !out.Success {
		t.Fatalf("Run() = %+v, want success", out)
	}
	if svc.gotEntry.Rating != 7 {
		t.Errorf("Rating = %d, want the stored user rating rounded", svc.gotEntry.Rating)
	}
}

func TestRunJournalsOutcomes(t *testing.T) {
	history, err := NewHistory(":memory:")
	if err != nil {
		t.Fatalf("NewHistory() error = %v", err)
	}
	t.Cleanup(func() { _ = history.Close() })

	svc := happyDiary()
	p, _ := testPipeline(t, svc)
	p.history = history

	// A benign skip is not journaled.
	skipped := movieEvent()
	skipped.SectionType = "show"
	p.Run(context.Background(), skipped)

	out := p.Run(context.Background(), movieEvent())
	if !out.Success {
		t.Fatalf("Run() = %+v, want success", out)
	}

	entries, err := history.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("journaled %d entries, want 1 (skips excluded)", len(entries))
	}
	e := entries[0]
	if !e.Success || e.Title != "Heat" || e.Account != "mitchell" || e.WatchedDate == "" {
		t.Errorf("entry = %+v, want the successful scrobble recorded", e)
	}
}

func TestWatchedDate(t *testing.T) {
	now := time.Date(2026, 8, 22, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"last viewed timestamp", Event{LastViewedAt: 1700000000}, "2023-11-14"},
		{"no timestamp falls back to today", Event{}, "2026-08-22"},
		{"timestamp near midnight stays UTC", Event{LastViewedAt: 1699999999}, "2023-11-14"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := watchedDate(tt.event, now); got != tt.want {
				t.Errorf("watchedDate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventRating(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  int
	}{
		{"event rating wins", Event{Rating: 9, UserRating: 4}, 9},
		{"user rating fallback", Event{UserRating: 6.6}, 7},
		{"no rating", Event{}, 0},
		{"rounded", Event{Rating: 8.4}, 8},
		{"clamped", Event{Rating: 12}, 10},
		{"negative treated as unrated", Event{Rating: -2, UserRating: -1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eventRating(tt.event); got != tt.want {
				t.Errorf("eventRating() = %d, want %d", got, tt.want)
			}
		})
	}
}
