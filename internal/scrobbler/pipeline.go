package scrobbler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/boxd/pkg/letterboxd"
)

const dateLayout = "2006-01-02"

// DefaultTag is the provenance tag attached to every diary entry this
// pipeline files.
const DefaultTag = "boxd"

// diaryService is the slice of the letterboxd client the pipeline drives.
// Tests substitute a scripted implementation.
type diaryService interface {
	EnsureSession(ctx context.Context, cached *letterboxd.Session) (*letterboxd.Session, error)
	Resolve(ctx context.Context, title string, year int, ids letterboxd.ExternalIDs) (*letterboxd.Film, error)
	MarkWatched(ctx context.Context, session *letterboxd.Session, film *letterboxd.Film, entry letterboxd.DiaryEntry) (bool, error)
	Close() error
}

// Options configures a Pipeline.
type Options struct {
	// Gate is the event gating configuration.
	Gate GateConfig
	// Client is the letterboxd client template; username and password
	// are filled in per event from Credentials.
	Client letterboxd.Config
	// Credentials resolves media-server accounts to site credentials.
	Credentials CredentialSource
	// Sessions caches sign-ins between runs. Optional.
	Sessions *SessionCache
	// History journals outcomes. Optional.
	History *History
	// Tag is the provenance tag for diary entries; DefaultTag if empty.
	Tag string
	// Logger is the parent logger.
	Logger zerolog.Logger
}

// Pipeline turns one watch event into a diary entry on letterboxd, or into
// a typed reason why not. The zero value is not usable; construct with
// New. Run may be called concurrently: every invocation gets its own
// browser-backed client and shares only the mutex-guarded session cache
// and the journal.
type Pipeline struct {
	gate     GateConfig
	creds    CredentialSource
	sessions *SessionCache
	history  *History
	tag      string
	log      zerolog.Logger

	// newService builds the per-invocation diary client. Tests replace
	// it with a fake.
	newService func(creds Credentials) (diaryService, error)
	now        func() time.Time
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	tag := opts.Tag
	if tag == "" {
		tag = DefaultTag
	}
	log := opts.Logger.With().Str("component", "pipeline").Logger()

	p := &Pipeline{
		gate:     opts.Gate,
		creds:    opts.Credentials,
		sessions: opts.Sessions,
		history:  opts.History,
		tag:      tag,
		log:      log,
		now:      time.Now,
	}
	p.newService = func(creds Credentials) (diaryService, error) {
		cfg := opts.Client
		cfg.Username = creds.Username
		cfg.Password = creds.Password
		cfg.Logger = log
		return letterboxd.NewClient(cfg)
	}
	return p
}

// Run executes the pipeline for one event: gate, session, resolve, write.
// Every exit path yields an Outcome; errors never escape, and the browser
// session is released before Run returns.
func (p *Pipeline) Run(ctx context.Context, event Event) (out Outcome) {
	var watched string
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Interface("panic", r).Str("title", event.Title).Msg("pipeline panicked")
			out = Outcome{
				Reason:  ReasonUnknown,
				Message: "internal error while scrobbling",
				Cause:   fmt.Errorf("panic: %v", r),
			}
		}
		p.logOutcome(event, out)
		p.journal(event, out, watched)
	}()

	if decision := Decide(event, p.gate); !decision.Accepted {
		return Outcome{Reason: decision.Reason, Message: skipMessage(decision.Reason, event)}
	}

	p.log.Info().
		Str("account", event.Account).
		Str("event", event.Type).
		Str("title", event.Title).
		Int("year", event.Year).
		Msg("scrobbling")

	ids := ParseExternalIDs(event.GUIDs)

	creds, ok := p.creds.Lookup(event.Account)
	if !ok {
		return Outcome{
			Reason:  ReasonLoginFailed,
			Message: fmt.Sprintf("no letterboxd credentials configured for %q", event.Account),
		}
	}

	svc, err := p.newService(creds)
	if err != nil {
		return Outcome{Reason: ReasonUnknown, Message: "could not create letterboxd client", Cause: err}
	}
	defer func() {
		if err := svc.Close(); err != nil {
			p.log.Warn().Err(err).Msg("releasing browser session")
		}
	}()

	var cached *letterboxd.Session
	if p.sessions != nil {
		cached = p.sessions.Load(creds.Username)
	}
	session, err := svc.EnsureSession(ctx, cached)
	if err != nil {
		if p.sessions != nil {
			if ierr := p.sessions.Invalidate(creds.Username); ierr != nil {
				p.log.Warn().Err(ierr).Msg("invalidating saved session")
			}
		}
		if errors.Is(err, letterboxd.ErrLoginFailed) ||
			errors.Is(err, letterboxd.ErrNoCredentials) ||
			errors.Is(err, letterboxd.ErrNotAuthenticated) {
			return Outcome{Reason: ReasonLoginFailed, Message: "could not sign in to letterboxd", Cause: err}
		}
		return Outcome{Reason: ReasonUnknown, Message: "session setup failed", Cause: err}
	}
	if p.sessions != nil && cached == nil {
		if err := p.sessions.Store(creds.Username, session); err != nil {
			p.log.Warn().Err(err).Msg("saving session for reuse")
		}
	}

	film, err := svc.Resolve(ctx, event.Title, event.Year, ids)
	if err != nil {
		return Outcome{Reason: ReasonUnknown, Message: "film search failed", Cause: err}
	}
	if film == nil {
		return Outcome{
			Reason:  ReasonFilmNotFound,
			Message: fmt.Sprintf("no letterboxd match for %q (%d)", event.Title, event.Year),
		}
	}

	watched = watchedDate(event, p.now())
	marked, err := svc.MarkWatched(ctx, session, film, letterboxd.DiaryEntry{
		WatchedDate: watched,
		Rating:      eventRating(event),
		Tags:        p.tag,
	})
	if err != nil {
		if errors.Is(err, letterboxd.ErrNotAuthenticated) {
			return Outcome{Reason: ReasonUnknown, Message: "diary write attempted without a session", Cause: err}
		}
		return Outcome{Reason: ReasonMarkFailed, Message: "diary write did not reach letterboxd", Cause: err}
	}
	if !marked {
		return Outcome{
			Reason:  ReasonMarkFailed,
			Message: fmt.Sprintf("letterboxd rejected the diary entry for %q", film.Title),
		}
	}

	return Outcome{Success: true, Message: fmt.Sprintf("Successfully logged %s", film.Title)}
}

// watchedDate picks the diary date: the event's viewing timestamp as a UTC
// calendar date when present, today otherwise.
func watchedDate(event Event, now time.Time) string {
	if event.LastViewedAt > 0 {
		return time.Unix(event.LastViewedAt, 0).UTC().Format(dateLayout)
	}
	return now.UTC().Format(dateLayout)
}

// eventRating picks the rating for the diary entry: the event's own
// rating, falling back to the stored user rating, rounded to the site's
// 0-10 scale.
func eventRating(event Event) int {
	r := event.Rating
	if r <= 0 {
		r = event.UserRating
	}
	if r <= 0 {
		return 0
	}
	rating := int(math.Round(r))
	if rating > 10 {
		rating = 10
	}
	return rating
}

func skipMessage(reason Reason, event Event) string {
	switch reason {
	case ReasonWebhooksDisabled:
		return "webhooks are disabled"
	case ReasonNonMovie:
		return fmt.Sprintf("%q is not in a movie library", event.Title)
	case ReasonEventDisabled:
		return fmt.Sprintf("%s events are disabled", event.Type)
	default:
		return "event skipped"
	}
}

func (p *Pipeline) logOutcome(event Event, out Outcome) {
	switch {
	case out.Success:
		p.log.Info().Str("title", event.Title).Msg(out.Message)
	case out.Benign():
		p.log.Debug().Str("reason", string(out.Reason)).Msg(out.Message)
	default:
		p.log.Error().
			Err(out.Cause).
			Str("reason", string(out.Reason)).
			Str("title", event.Title).
			Msg(out.Message)
	}
}

// journal records the outcome for `boxd history`. Benign skips are not
// journaled; journal failures are logged and swallowed.
func (p *Pipeline) journal(event Event, out Outcome, watched string) {
	if p.history == nil || out.Benign() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := p.history.Record(ctx, HistoryEntry{
		Account:     event.Account,
		Title:       event.Title,
		Year:        event.Year,
		EventType:   event.Type,
		Success:     out.Success,
		Reason:      string(out.Reason),
		Message:     out.Message,
		WatchedDate: watched,
	}); err != nil {
		p.log.Warn().Err(err).Msg("recording history entry")
	}
}
