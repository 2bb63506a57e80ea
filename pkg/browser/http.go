package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// HTTPBackend serves pages over plain HTTP without running JavaScript. Each
// page has its own cookie jar, so sessions stay isolated. Clicking a link
// follows it and clicking a submit control submits the enclosing form.
type HTTPBackend struct {
	timeout   time.Duration
	transport http.RoundTripper
}

// NewHTTPBackend creates an HTTP backend. timeout bounds form submissions and
// link clicks; a nil transport uses http.DefaultTransport.
func NewHTTPBackend(timeout time.Duration, transport http.RoundTripper) *HTTPBackend {
	if timeout <= 0 {
		timeout = DefaultImplicitWait
	}
	return &HTTPBackend{timeout: timeout, transport: transport}
}

func (b *HTTPBackend) Name() string {
	return BackendHTTP
}

// Start is a no-op; there is no browser process to launch.
func (b *HTTPBackend) Start(ctx context.Context) error {
	return nil
}

func (b *HTTPBackend) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &httpPage{
		client:  &http.Client{Jar: jar, Transport: b.transport},
		timeout: b.timeout,
	}, nil
}

func (b *HTTPBackend) Stop() error {
	return nil
}

type httpPage struct {
	client  *http.Client
	timeout time.Duration

	url *url.URL
	doc *goquery.Document

	// values holds the filled form fields of the current document
	values map[*html.Node]string
}

func (p *httpPage) Goto(ctx context.Context, rawURL string, timeout time.Duration) error {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	return p.load(ctx, req, timeout)
}

// load performs req and replaces the current document with the response.
func (p *httpPage) load(ctx context.Context, req *http.Request, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.client.Do(req.WithContext(ctx))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("unexpected status %s from %s", resp.Status, req.URL)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}
	p.setDocument(doc, resp.Request.URL)
	return nil
}

func (p *httpPage) setDocument(doc *html.Node, u *url.URL) {
	p.doc = goquery.NewDocumentFromNode(doc)
	p.url = u
	p.values = make(map[*html.Node]string)
}

// WaitForSelector checks the loaded document. Without JavaScript the
// document cannot change on its own, so a missing element is a timeout.
func (p *httpPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.find(selector); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, err)
		}
		return err
	}
	return nil
}

func (p *httpPage) Fill(ctx context.Context, selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := p.find(selector)
	if err != nil {
		return err
	}
	switch tag := goquery.NodeName(s); tag {
	case "input", "textarea", "select":
		p.values[s.Get(0)] = value
		return nil
	default:
		return fmt.Errorf("<%s> is not a form field", tag)
	}
}

func (p *httpPage) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := p.find(selector)
	if err != nil {
		return err
	}

	if s.Is("a") {
		href, ok := s.Attr("href")
		if !ok {
			return fmt.Errorf("link has no href")
		}
		target, err := p.url.Parse(href)
		if err != nil {
			return fmt.Errorf("invalid href %q: %w", href, err)
		}
		return p.Goto(ctx, target.String(), p.timeout)
	}

	if !s.Is("button:not([type]), button[type=submit], input[type=submit], input[type=image]") {
		return fmt.Errorf("<%s> cannot be activated without JavaScript", goquery.NodeName(s))
	}
	form := s.Closest("form")
	if form.Length() == 0 {
		return fmt.Errorf("submit control is not inside a form")
	}
	return p.submit(ctx, form, s)
}

func (p *httpPage) TextContent(ctx context.Context, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, err := p.find(selector)
	if err != nil {
		return "", err
	}
	return s.Text(), nil
}

func (p *httpPage) URL() string {
	if p.url == nil {
		return "about:blank"
	}
	return p.url.String()
}

func (p *httpPage) Close() error {
	p.client.CloseIdleConnections()
	p.doc = nil
	return nil
}

// find returns the first element, in document order, matching selector.
func (p *httpPage) find(selector string) (*goquery.Selection, error) {
	// goquery silently matches nothing on a bad selector, so compile it here
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	if p.doc == nil {
		return nil, fmt.Errorf("%w: %s (no document loaded)", ErrNotFound, selector)
	}
	s := p.doc.FindMatcher(m).First()
	if s.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return s, nil
}

// submit encodes the form's successful controls and loads the response.
func (p *httpPage) submit(ctx context.Context, form, submitter *goquery.Selection) error {
	values := url.Values{}
	form.Find("input[name], textarea[name], select[name]").Not("[disabled]").Each(func(_ int, field *goquery.Selection) {
		p.collectField(field, values)
	})

	if name := submitter.AttrOr("name", ""); name != "" {
		values.Add(name, submitter.AttrOr("value", ""))
	}

	target, err := p.url.Parse(form.AttrOr("action", ""))
	if err != nil {
		return fmt.Errorf("invalid form action: %w", err)
	}

	var req *http.Request
	if strings.EqualFold(form.AttrOr("method", ""), http.MethodPost) {
		req, err = http.NewRequest(http.MethodPost, target.String(), strings.NewReader(values.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		target.RawQuery = values.Encode()
		req, err = http.NewRequest(http.MethodGet, target.String(), nil)
		if err != nil {
			return err
		}
	}

	return p.load(ctx, req, p.timeout)
}

func (p *httpPage) collectField(field *goquery.Selection, values url.Values) {
	name := field.AttrOr("name", "")
	filled, isFilled := p.values[field.Get(0)]

	switch goquery.NodeName(field) {
	case "input":
		switch strings.ToLower(field.AttrOr("type", "")) {
		case "submit", "button", "image", "reset", "file":
			return
		case "checkbox", "radio":
			if _, checked := field.Attr("checked"); checked {
				values.Add(name, field.AttrOr("value", "on"))
			}
			return
		}
		if isFilled {
			values.Add(name, filled)
		} else {
			values.Add(name, field.AttrOr("value", ""))
		}
	case "textarea":
		if isFilled {
			values.Add(name, filled)
		} else {
			values.Add(name, field.Text())
		}
	case "select":
		if isFilled {
			values.Add(name, filled)
		} else if v, ok := selectedOption(field); ok {
			values.Add(name, v)
		}
	}
}

// selectedOption returns the value of the first selected option, or of the
// first option when none is selected.
func selectedOption(sel *goquery.Selection) (string, bool) {
	opt := sel.Find("option[selected]").First()
	if opt.Length() == 0 {
		opt = sel.Find("option").First()
	}
	if opt.Length() == 0 {
		return "", false
	}
	if v, ok := opt.Attr("value"); ok {
		return v, true
	}
	return strings.TrimSpace(opt.Text()), true
}
