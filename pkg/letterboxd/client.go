package letterboxd

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is the site root used when Config.BaseURL is empty.
	DefaultBaseURL = "https://letterboxd.com"

	// DefaultMaxLoginAttempts is the sign-in retry budget, counting the
	// first attempt.
	DefaultMaxLoginAttempts = 3

	// DefaultNavigationTimeout bounds page navigations and element waits.
	DefaultNavigationTimeout = 30 * time.Second

	// DefaultChallengeTimeout bounds the wait for an anti-bot
	// interstitial to clear.
	DefaultChallengeTimeout = 30 * time.Second

	defaultHTTPTimeout  = 30 * time.Second
	defaultMarkerWait   = 4 * time.Second
	defaultFieldWait    = 10 * time.Second
	defaultPollInterval = 2500 * time.Millisecond
)

// Config holds the settings required to construct a Client.
type Config struct {
	// Username is the account name to sign in with (required).
	Username string

	// Password for the account. Only needed when no saved session is
	// available; EnsureSession fails with ErrNoCredentials if a fresh
	// sign-in is required and Password is empty.
	Password string

	// BaseURL optionally overrides the site root, primarily for testing.
	BaseURL string

	// HTTPClient optionally overrides the client used for direct HTTP
	// requests such as filing diary entries.
	HTTPClient *http.Client

	// Logger receives structured debug and error events. The zero value
	// discards everything.
	Logger zerolog.Logger

	// ShowBrowser runs the browser with a visible window instead of
	// headless. Useful when debugging sign-in trouble.
	ShowBrowser bool

	// BrowserPath optionally points at a Chromium binary to use instead
	// of the automatically resolved one.
	BrowserPath string

	// MaxLoginAttempts optionally overrides the sign-in retry budget.
	MaxLoginAttempts int

	// NavigationTimeout optionally overrides the per-navigation bound.
	NavigationTimeout time.Duration

	// ChallengeTimeout optionally overrides the anti-bot interstitial
	// wait bound.
	ChallengeTimeout time.Duration
}

// Client drives a single automated browser session against the site. It is
// intended for one scrobble flow at a time and is not safe for concurrent
// use; run concurrent flows with separate clients.
type Client struct {
	username         string
	password         string
	baseURL          string
	httpClient       *http.Client
	log              zerolog.Logger
	showBrowser      bool
	browserPath      string
	maxAttempts      int
	navTimeout       time.Duration
	challengeTimeout time.Duration

	// newPage creates the browser page on first use. Tests replace it
	// with a scripted fake.
	newPage func(ctx context.Context) (page, error)
	pg      page

	backoffUnit  time.Duration
	pollInterval time.Duration
	markerWait   time.Duration
	fieldWait    time.Duration
}

// NewClient validates cfg and returns a Client. No browser is launched
// until a session is needed.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Username == "" {
		return nil, errors.New("letterboxd: Username is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	maxAttempts := cfg.MaxLoginAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxLoginAttempts
	}
	navTimeout := cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = DefaultNavigationTimeout
	}
	challengeTimeout := cfg.ChallengeTimeout
	if challengeTimeout <= 0 {
		challengeTimeout = DefaultChallengeTimeout
	}

	c := &Client{
		username:         cfg.Username,
		password:         cfg.Password,
		baseURL:          baseURL,
		httpClient:       httpClient,
		log:              cfg.Logger,
		showBrowser:      cfg.ShowBrowser,
		browserPath:      cfg.BrowserPath,
		maxAttempts:      maxAttempts,
		navTimeout:       navTimeout,
		challengeTimeout: challengeTimeout,
		backoffUnit:      time.Second,
		pollInterval:     defaultPollInterval,
		markerWait:       defaultMarkerWait,
		fieldWait:        defaultFieldWait,
	}
	c.newPage = c.launchPage
	return c, nil
}

// Close shuts down the browser session if one is running. Safe to call
// multiple times.
func (c *Client) Close() error {
	if c.pg == nil {
		return nil
	}
	err := c.pg.Close()
	c.pg = nil
	return err
}

// ensurePage returns the live browser page, launching one on first use.
func (c *Client) ensurePage(ctx context.Context) (page, error) {
	if c.pg != nil {
		return c.pg, nil
	}
	pg, err := c.newPage(ctx)
	if err != nil {
		return nil, err
	}
	c.pg = pg
	return pg, nil
}

// resetPage discards the current browser session so the next attempt
// starts from a fresh one.
func (c *Client) resetPage() {
	if c.pg == nil {
		return
	}
	if err := c.pg.Close(); err != nil {
		c.log.Warn().Err(err).Msg("closing browser session")
	}
	c.pg = nil
}

// sleep waits for the duration or until the context is cancelled. It
// reports whether the full duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
