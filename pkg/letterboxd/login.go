package letterboxd

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

const (
	signInPath = "/sign-in/"

	// csrfCookieName is the cookie carrying the site's anti-forgery
	// token. Its value must accompany every authenticated POST.
	csrfCookieName = "com.xk72.webparts.csrf"
)

// Sign-in form and signed-in page selectors, in priority order. The site
// has shipped several variants of the form; the first selector that
// matches wins.
var (
	usernameSelectors = []string{
		"#signin-username",
		"input[name=username]",
		"#username",
	}
	passwordSelectors = []string{
		"#signin-password",
		"input[name=password]",
		"#password",
	}
	signedInMarkers = []string{
		"body.logged-in",
		"nav .js-nav-account",
		".main-nav .nav-account",
		"#add-new-button",
	}
)

// loginState tracks progress through one sign-in attempt.
type loginState int

const (
	stateUninitialized loginState = iota
	stateInitializing
	stateChallengeWait
	stateCredentialEntry
	stateAwaitingVerification
	stateAuthenticated
	stateFailed
)

func (s loginState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateInitializing:
		return "initializing"
	case stateChallengeWait:
		return "challenge-wait"
	case stateCredentialEntry:
		return "credential-entry"
	case stateAwaitingVerification:
		return "awaiting-verification"
	case stateAuthenticated:
		return "authenticated"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EnsureSession returns an authenticated session, reusing cached when it
// carries cookies and signing in afresh otherwise. A fresh sign-in needs
// Config.Password and is retried up to the configured attempt budget with
// exponential backoff, each retry on a brand new browser instance. The
// returned session is either fully authenticated or nil; there is no
// partial state.
func (c *Client) EnsureSession(ctx context.Context, cached *Session) (*Session, error) {
	if cached != nil && len(cached.Cookies) > 0 {
		return c.restoreSession(ctx, cached)
	}

	if c.password == "" {
		return nil, ErrNoCredentials
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			c.resetPage()
			wait := loginBackoff(attempt, c.backoffUnit)
			c.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", wait).
				Msg("retrying sign-in on a fresh browser")
			if !sleep(ctx, wait) {
				return nil, ctx.Err()
			}
		}

		session, err := c.login(ctx)
		if err == nil {
			return session, nil
		}
		lastErr = err
		c.log.Warn().Err(err).Int("attempt", attempt).Msg("sign-in attempt failed")
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrLoginFailed, c.maxAttempts, lastErr)
}

// loginBackoff returns the delay before retry attempt n, doubling each
// time: 2 units before attempt 2, 4 before attempt 3, and so on.
func loginBackoff(attempt int, unit time.Duration) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * unit
}

// restoreSession loads saved cookies into the browser so authenticated
// requests work without revisiting the sign-in form.
func (c *Client) restoreSession(ctx context.Context, cached *Session) (*Session, error) {
	pg, err := c.ensurePage(ctx)
	if err != nil {
		return nil, err
	}
	if err := pg.SetCookies(ctx, cached.Cookies); err != nil {
		return nil, err
	}

	csrf := cached.CSRF
	if csrf == "" {
		csrf = cookieValue(cached.Cookies, csrfCookieName)
	}
	if csrf == "" {
		return nil, fmt.Errorf("%w: saved session has no anti-forgery token", ErrNotAuthenticated)
	}

	c.log.Debug().Int("cookies", len(cached.Cookies)).Msg("restored saved session")
	return &Session{
		Cookies:       cached.Cookies,
		CSRF:          csrf,
		Authenticated: true,
	}, nil
}

// login runs a single sign-in attempt through its states. Any failure
// leaves the machine in stateFailed and surfaces an error carrying the
// page title and URL, never the password.
func (c *Client) login(ctx context.Context) (*Session, error) {
	state := stateInitializing
	var pg page

	fail := func(op string, err error) (*Session, error) {
		c.log.Debug().Stringer("from", state).Msg("sign-in state failed")
		state = stateFailed
		return nil, c.pageError(ctx, pg, op, err)
	}

	for {
		c.log.Debug().Stringer("state", state).Msg("sign-in")
		switch state {
		case stateInitializing:
			var err error
			pg, err = c.ensurePage(ctx)
			if err != nil {
				return fail("login", err)
			}
			if err := pg.Navigate(ctx, c.baseURL+signInPath); err != nil {
				return fail("login", err)
			}
			state = stateChallengeWait

		case stateChallengeWait:
			c.awaitClearance(ctx, pg, c.challengeTimeout)
			state = stateCredentialEntry

		case stateCredentialEntry:
			userSel, ok := c.firstPresent(ctx, pg, usernameSelectors)
			if !ok {
				return fail("login", errors.New("username field not found"))
			}
			passSel, ok := c.firstPresent(ctx, pg, passwordSelectors)
			if !ok {
				return fail("login", errors.New("password field not found"))
			}
			if err := pg.Type(ctx, userSel, c.username, keystrokeDelay); err != nil {
				return fail("login", err)
			}
			if err := pg.Type(ctx, passSel, c.password, keystrokeDelay); err != nil {
				return fail("login", err)
			}
			if err := pg.Submit(ctx, passSel); err != nil {
				return fail("login", err)
			}
			if err := pg.WaitStable(ctx); err != nil {
				c.log.Debug().Err(err).Msg("page not stable after submit")
			}
			state = stateAwaitingVerification

		case stateAwaitingVerification:
			// Submitting can trigger a second interstitial.
			c.awaitClearance(ctx, pg, c.challengeTimeout)
			ok, err := c.verifySignedIn(ctx, pg)
			if err != nil {
				return fail("login", err)
			}
			if !ok {
				return fail("login", errors.New("no signed-in marker after submit"))
			}
			state = stateAuthenticated

		case stateAuthenticated:
			cookies, err := pg.Cookies(ctx)
			if err != nil {
				return fail("login", err)
			}
			csrf := cookieValue(cookies, csrfCookieName)
			if csrf == "" {
				return fail("login", errors.New("no anti-forgery cookie after sign-in"))
			}
			c.log.Info().Str("username", c.username).Msg("signed in")
			return &Session{
				Cookies:       cookies,
				CSRF:          csrf,
				Authenticated: true,
			}, nil
		}
	}
}

// firstPresent waits for any of the selectors to appear, then picks the
// first in priority order that matches. Arrival order only decides when
// nothing higher-priority is attached.
func (c *Client) firstPresent(ctx context.Context, pg page, selectors []string) (string, bool) {
	matched, ok := pg.WaitAny(ctx, c.fieldWait, selectors...)
	for _, sel := range selectors {
		if present, err := pg.Has(ctx, sel); err == nil && present {
			return sel, true
		}
	}
	if ok {
		return matched, true
	}
	return "", false
}

// verifySignedIn checks whether the submit actually produced an
// authenticated page: off the sign-in URL and showing a signed-in marker,
// or at least no longer showing the form.
func (c *Client) verifySignedIn(ctx context.Context, pg page) (bool, error) {
	u, err := pg.URL(ctx)
	if err != nil {
		return false, err
	}
	if strings.Contains(u, "/sign-in") {
		return false, nil
	}
	for _, sel := range signedInMarkers {
		if ok, err := pg.Has(ctx, sel); err == nil && ok {
			return true, nil
		}
	}
	for _, sel := range usernameSelectors {
		if ok, err := pg.Has(ctx, sel); err == nil && ok {
			return false, nil
		}
	}
	return true, nil
}

// keystrokeDelay paces form input like a person: 50-150ms per character
// with an occasional longer pause.
func keystrokeDelay() time.Duration {
	d := time.Duration(50+rand.IntN(101)) * time.Millisecond
	if rand.IntN(10) == 0 {
		d += time.Duration(100+rand.IntN(201)) * time.Millisecond
	}
	return d
}

// pageError wraps err with the page's title and URL for diagnosis.
func (c *Client) pageError(ctx context.Context, pg page, op string, err error) error {
	e := &Error{Op: op, Err: err}
	if pg != nil {
		if title, terr := pg.Title(ctx); terr == nil {
			e.PageTitle = title
		}
		if u, uerr := pg.URL(ctx); uerr == nil {
			e.PageURL = u
		}
	}
	return e
}
