package scrobbler

// Reason is a stable machine-readable explanation for a skipped or failed
// scrobble.
type Reason string

const (
	// ReasonWebhooksDisabled means webhook processing is turned off.
	ReasonWebhooksDisabled Reason = "webhooks_disabled"

	// ReasonNonMovie means the event's library section is not a movie
	// library.
	ReasonNonMovie Reason = "non_movie"

	// ReasonEventDisabled means this event type is turned off in the
	// configuration.
	ReasonEventDisabled Reason = "event_disabled"

	// ReasonLoginFailed means sign-in exhausted its retry budget or no
	// credentials were available.
	ReasonLoginFailed Reason = "login_failed"

	// ReasonFilmNotFound means every search strategy came up empty.
	ReasonFilmNotFound Reason = "film_not_found"

	// ReasonMarkFailed means the diary write was rejected or did not
	// reach the site.
	ReasonMarkFailed Reason = "mark_failed"

	// ReasonUnknown covers anything the pipeline did not classify; the
	// outcome carries the original cause.
	ReasonUnknown Reason = "unknown_error"
)

// Benign reports whether the reason is a configuration-driven skip rather
// than a failure. Benign outcomes are never retried and never alarming.
func (r Reason) Benign() bool {
	switch r {
	case ReasonWebhooksDisabled, ReasonNonMovie, ReasonEventDisabled:
		return true
	}
	return false
}

// Decision is the event gate's verdict.
type Decision struct {
	Accepted bool
	Reason   Reason
}

// Outcome is the terminal result of one pipeline run. Exactly one of
// Success or Reason is meaningful; Cause, when set, retains the underlying
// error for diagnostics and is never rendered to webhook callers.
type Outcome struct {
	Success bool
	Reason  Reason
	Message string
	Cause   error
}

// Benign reports whether a failed outcome is a configuration-driven skip.
func (o Outcome) Benign() bool {
	return !o.Success && o.Reason.Benign()
}
