package letterboxd

import (
	"context"
	"fmt"
	"time"
)

// fakePage is a scripted page implementation so the sign-in and search
// flows can be exercised without a browser. Tests mutate its fields
// directly or through the onNavigate/onSubmit hooks to simulate the site
// reacting to the client.
type fakePage struct {
	url       string
	title     string
	html      string
	selectors map[string]bool
	elements  map[string][]element
	cookies   []Cookie

	onNavigate func(p *fakePage, url string) error
	onSubmit   func(p *fakePage, selector string) error
	titleFn    func() (string, error)
	htmlFn     func() (string, error)

	navigated []string
	typed     map[string]string
	submitted []string
	restored  [][]Cookie
	closed    bool
	closeErr  error
}

func newFakePage() *fakePage {
	return &fakePage{
		selectors: map[string]bool{},
		elements:  map[string][]element{},
		typed:     map[string]string{},
	}
}

var _ page = (*fakePage)(nil)

func (p *fakePage) Navigate(_ context.Context, url string) error {
	p.navigated = append(p.navigated, url)
	if p.onNavigate != nil {
		return p.onNavigate(p, url)
	}
	p.url = url
	return nil
}

func (p *fakePage) WaitStable(context.Context) error { return nil }

func (p *fakePage) WaitAny(_ context.Context, _ time.Duration, selectors ...string) (string, bool) {
	for _, sel := range selectors {
		if p.has(sel) {
			return sel, true
		}
	}
	return "", false
}

func (p *fakePage) has(sel string) bool {
	return p.selectors[sel] || len(p.elements[sel]) > 0
}

func (p *fakePage) Has(_ context.Context, sel string) (bool, error) {
	return p.has(sel), nil
}

func (p *fakePage) Elements(_ context.Context, sel string) ([]element, error) {
	return p.elements[sel], nil
}

func (p *fakePage) Type(_ context.Context, sel, text string, _ func() time.Duration) error {
	if !p.has(sel) {
		return fmt.Errorf("no element %s", sel)
	}
	p.typed[sel] += text
	return nil
}

func (p *fakePage) Submit(_ context.Context, sel string) error {
	p.submitted = append(p.submitted, sel)
	if p.onSubmit != nil {
		return p.onSubmit(p, sel)
	}
	return nil
}

func (p *fakePage) Title(context.Context) (string, error) {
	if p.titleFn != nil {
		return p.titleFn()
	}
	return p.title, nil
}

func (p *fakePage) URL(context.Context) (string, error) { return p.url, nil }

func (p *fakePage) HTML(context.Context) (string, error) {
	if p.htmlFn != nil {
		return p.htmlFn()
	}
	return p.html, nil
}

func (p *fakePage) Cookies(context.Context) ([]Cookie, error) { return p.cookies, nil }

func (p *fakePage) SetCookies(_ context.Context, cookies []Cookie) error {
	p.restored = append(p.restored, cookies)
	return nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return p.closeErr
}

// fakeElement is one scripted search result node.
type fakeElement struct {
	attrs map[string]string
	text  string
}

var _ element = (*fakeElement)(nil)

func (e *fakeElement) Attribute(name string) (*string, error) {
	if v, ok := e.attrs[name]; ok {
		return &v, nil
	}
	return nil, nil
}

func (e *fakeElement) Text() (string, error) { return e.text, nil }
