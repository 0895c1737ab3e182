package scrobbler

// GateConfig is the webhook gating configuration.
type GateConfig struct {
	// Enabled turns webhook-driven scrobbling on at all.
	Enabled bool
	// Scrobble enables acting on watched-threshold events.
	Scrobble bool
	// Rate enables acting on rating events.
	Rate bool
	// OnlyMovies rejects events from non-movie libraries before any
	// other event inspection.
	OnlyMovies bool
}

// Decide determines whether an event warrants a scrobble attempt:
// 1. Webhooks must be enabled
// 2. With OnlyMovies set, the library section must be a movie library
// 3. Scrobble events must be enabled for a scrobble event
// 4. Rate events must be enabled for a rate event
// 5. The library section must be a movie library regardless of config
//
// Checks run in order and the first failing one decides the rejection
// reason. The function is pure: no I/O, no clock, no side effects,
// so rejections cost nothing before any browser or network work starts.
func Decide(event Event, cfg GateConfig) Decision {
	if !cfg.Enabled {
		return Decision{Reason: ReasonWebhooksDisabled}
	}
	if cfg.OnlyMovies && event.SectionType != SectionMovie {
		return Decision{Reason: ReasonNonMovie}
	}
	if event.Type == EventScrobble && !cfg.Scrobble {
		return Decision{Reason: ReasonEventDisabled}
	}
	if event.Type == EventRate && !cfg.Rate {
		return Decision{Reason: ReasonEventDisabled}
	}
	if event.SectionType != SectionMovie {
		return Decision{Reason: ReasonNonMovie}
	}
	return Decision{Accepted: true}
}
