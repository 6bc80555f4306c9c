// Package snapshot implements the dom capability over a static HTML
// document, for crawling saved pages and for tests.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/ibeckermayer/commentcrawl/internal/dom"
)

// UserAgent is sent when a snapshot is fetched over HTTP
const UserAgent = "commentcrawl/1.0 (static snapshot)"

// Page is a parsed document. Scrolling is a no-op and clicks only run the
// OnClick hook, so the DOM changes only if a hook changes it.
type Page struct {
	doc     *goquery.Document
	onClick func(*goquery.Selection)
	clicks  int
}

// Parse reads an HTML document
func Parse(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Page{doc: doc}, nil
}

// ParseString parses an HTML string
func ParseString(html string) (*Page, error) {
	return Parse(strings.NewReader(html))
}

// Open parses an HTML file from disk
func Open(path string) (*Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// OnClick installs a hook run with the clicked node
func (p *Page) OnClick(fn func(*goquery.Selection)) {
	p.onClick = fn
}

// Clicks returns how many clicks were dispatched
func (p *Page) Clicks() int {
	return p.clicks
}

// Document exposes the parsed document
func (p *Page) Document() *goquery.Document {
	return p.doc
}

// Navigate fetches url unless a document is already loaded.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if p.doc != nil {
		return nil
	}

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse html: %w", err)
	}
	p.doc = doc
	return nil
}

// ScrollToBottom has nothing to load in a static document
func (p *Page) ScrollToBottom(ctx context.Context) error {
	return ctx.Err()
}

// Find implements dom.Scope
func (p *Page) Find(ctx context.Context, q dom.Query) ([]dom.Element, error) {
	if p.doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}
	return p.find(ctx, p.doc.Selection, q)
}

func (p *Page) find(ctx context.Context, scope *goquery.Selection, q dom.Query) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	match, err := cascadia.Compile(q.Selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", q.Selector, err)
	}
	within, err := compileOptional(q.Within)
	if err != nil {
		return nil, err
	}
	outside, err := compileOptional(q.Outside)
	if err != nil {
		return nil, err
	}

	var out []dom.Element
	scope.FindMatcher(match).Each(func(_ int, s *goquery.Selection) {
		ancestors := s.ParentsUntilSelection(scope)
		if within != nil && ancestors.FilterMatcher(within).Length() == 0 {
			return
		}
		if outside != nil && ancestors.FilterMatcher(outside).Length() > 0 {
			return
		}
		out = append(out, &element{page: p, sel: s})
	})
	return out, nil
}

func compileOptional(selector string) (cascadia.Selector, error) {
	if selector == "" {
		return nil, nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return sel, nil
}

type element struct {
	page *Page
	sel  *goquery.Selection
}

func (e *element) Find(ctx context.Context, q dom.Query) ([]dom.Element, error) {
	return e.page.find(ctx, e.sel, q)
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.TrimSpace(e.sel.Text()), nil
}

// Visible is false when the node or an ancestor is hidden by attribute or
// inline style.
func (e *element) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	for n := e.sel; n.Length() > 0; n = n.Parent() {
		if _, ok := n.Attr("hidden"); ok {
			return false, nil
		}
		style := strings.ToLower(strings.ReplaceAll(n.AttrOr("style", ""), " ", ""))
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false, nil
		}
	}
	return true, nil
}

func (e *element) Enabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, disabled := e.sel.Attr("disabled")
	return !disabled, nil
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	return ctx.Err()
}

func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.clicks++
	if e.page.onClick != nil {
		e.page.onClick(e.sel)
	}
	return nil
}

// Launcher serves an already parsed page as a browser.
type Launcher struct {
	Page *Page
}

// Launch implements dom.Launcher
func (l Launcher) Launch(ctx context.Context) (context.Context, dom.Page, func(), error) {
	if l.Page == nil {
		return nil, nil, nil, fmt.Errorf("no snapshot page")
	}
	return ctx, l.Page, func() {}, nil
}
