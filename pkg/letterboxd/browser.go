package letterboxd

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog"
)

// userAgent is presented instead of the headless default, which the site's
// anti-bot screen rejects outright.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// stableWindow is how long the DOM must stop changing before a navigation
// is considered settled.
const stableWindow = time.Second

// page is the surface of the automated browser the client drives. The
// production implementation wraps a rod page; tests substitute a scripted
// fake so the sign-in and search flows can run without Chromium.
type page interface {
	// Navigate loads the URL and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// WaitStable waits for the DOM to stop changing after a navigation
	// or form submission.
	WaitStable(ctx context.Context) error
	// WaitAny waits until one of the selectors appears, reporting which.
	// A timeout is reported as ok=false, never as a hang.
	WaitAny(ctx context.Context, timeout time.Duration, selectors ...string) (string, bool)
	// Has reports whether the selector currently matches, without
	// waiting.
	Has(ctx context.Context, selector string) (bool, error)
	// Elements returns the elements currently matching the selector.
	Elements(ctx context.Context, selector string) ([]element, error)
	// Type focuses the selector and inserts text one rune at a time,
	// sleeping pause() between runes when pause is non-nil.
	Type(ctx context.Context, selector, text string, pause func() time.Duration) error
	// Submit presses Enter on the selector.
	Submit(ctx context.Context, selector string) error
	// Title returns the current document title.
	Title(ctx context.Context) (string, error)
	// URL returns the current page URL.
	URL(ctx context.Context) (string, error)
	// HTML returns the current document markup.
	HTML(ctx context.Context) (string, error)
	// Cookies snapshots the browser's cookie jar.
	Cookies(ctx context.Context) ([]Cookie, error)
	// SetCookies restores cookies into the browser.
	SetCookies(ctx context.Context, cookies []Cookie) error
	// Close tears down the page and the browser behind it.
	Close() error
}

// element is one matched DOM node.
type element interface {
	Attribute(name string) (*string, error)
	Text() (string, error)
}

// launchPage starts a Chromium instance and returns a stealth-patched page
// on it. The stealth patches plus a desktop user agent and viewport keep
// the anti-bot screen from flagging the session as automated before the
// sign-in form ever renders.
func (c *Client) launchPage(ctx context.Context) (page, error) {
	l := launcher.New().
		Headless(!c.showBrowser).
		Set("disable-blink-features", "AutomationControlled")
	if c.browserPath != "" {
		l = l.Bin(c.browserPath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	pg, err := stealth.Page(browser)
	if err != nil {
		closeQuiet(browser, l, c.log)
		return nil, fmt.Errorf("open stealth page: %w", err)
	}
	if err := pg.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      userAgent,
		AcceptLanguage: "en-US,en;q=0.9",
	}); err != nil {
		c.log.Warn().Err(err).Msg("overriding user agent")
	}
	if err := pg.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		c.log.Warn().Err(err).Msg("setting viewport")
	}

	c.log.Debug().Bool("headless", !c.showBrowser).Msg("browser session started")
	return &rodPage{
		launcher:   l,
		browser:    browser,
		page:       pg,
		navTimeout: c.navTimeout,
		log:        c.log,
	}, nil
}

func closeQuiet(browser *rod.Browser, l *launcher.Launcher, log zerolog.Logger) {
	if err := browser.Close(); err != nil {
		log.Warn().Err(err).Msg("closing browser")
		l.Kill()
	}
	l.Cleanup()
}

// rodPage adapts a rod page (and the browser and launcher that own it) to
// the page interface.
type rodPage struct {
	launcher   *launcher.Launcher
	browser    *rod.Browser
	page       *rod.Page
	navTimeout time.Duration
	log        zerolog.Logger
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx).Timeout(p.navTimeout)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

func (p *rodPage) WaitStable(ctx context.Context) error {
	return p.page.Context(ctx).Timeout(p.navTimeout).WaitStable(stableWindow)
}

func (p *rodPage) WaitAny(ctx context.Context, timeout time.Duration, selectors ...string) (string, bool) {
	matched := ""
	race := p.page.Context(ctx).Timeout(timeout).Race()
	for _, sel := range selectors {
		sel := sel
		race = race.Element(sel).Handle(func(*rod.Element) error {
			matched = sel
			return nil
		})
	}
	if _, err := race.Do(); err != nil {
		return "", false
	}
	return matched, true
}

func (p *rodPage) Has(ctx context.Context, selector string) (bool, error) {
	ok, _, err := p.page.Context(ctx).Has(selector)
	return ok, err
}

func (p *rodPage) Elements(ctx context.Context, selector string) ([]element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	out := make([]element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

func (p *rodPage) Type(ctx context.Context, selector, text string, pause func() time.Duration) error {
	el, err := p.page.Context(ctx).Timeout(p.navTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s: %w", selector, err)
	}
	for _, r := range text {
		if err := el.Input(string(r)); err != nil {
			return fmt.Errorf("type into %s: %w", selector, err)
		}
		if pause != nil {
			if !sleep(ctx, pause()) {
				return ctx.Err()
			}
		}
	}
	return nil
}

func (p *rodPage) Submit(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Timeout(p.navTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s: %w", selector, err)
	}
	return el.Type(input.Enter)
}

func (p *rodPage) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) Cookies(ctx context.Context) ([]Cookie, error) {
	res, err := proto.NetworkGetCookies{}.Call(p.page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	cookies := make([]Cookie, 0, len(res.Cookies))
	for _, c := range res.Cookies {
		cookies = append(cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	return cookies, nil
}

func (p *rodPage) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  proto.TimeSinceEpoch(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	if err := p.page.Context(ctx).SetCookies(params); err != nil {
		return fmt.Errorf("restore cookies: %w", err)
	}
	return nil
}

// Close tears the session down page first, then browser, then the launched
// process. Failures are logged and followed by a forced kill so a wedged
// Chromium never outlives the client.
func (p *rodPage) Close() error {
	var firstErr error
	if err := p.page.Close(); err != nil {
		p.log.Warn().Err(err).Msg("closing page")
		firstErr = err
	}
	if err := p.browser.Close(); err != nil {
		p.log.Warn().Err(err).Msg("closing browser, killing process")
		p.launcher.Kill()
		if firstErr == nil {
			firstErr = err
		}
	}
	p.launcher.Cleanup()
	return firstErr
}
