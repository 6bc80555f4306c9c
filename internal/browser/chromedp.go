package browser

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/chromedp/cdproto/cdp"
	cdpdom "github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/commentcrawl/internal/dom"
)

// Chromedp launches Chrome through chromedp
type Chromedp struct {
	Settings Settings
}

// NewChromedp creates a chromedp launcher
func NewChromedp(s Settings) *Chromedp {
	return &Chromedp{Settings: s}
}

// Launch implements dom.Launcher
func (c *Chromedp) Launch(ctx context.Context) (context.Context, dom.Page, func(), error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, Options(c.Settings)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	release := func() {
		browserCancel()
		allocCancel()
	}

	// The first Run starts the browser
	if err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverJS).Do(ctx)
		return err
	})); err != nil {
		release()
		return nil, nil, nil, fmt.Errorf("failed to start browser: %w", err)
	}

	if err := injectCookies(browserCtx, c.Settings.Cookies); err != nil {
		release()
		return nil, nil, nil, fmt.Errorf("failed to inject cookies: %w", err)
	}

	return browserCtx, &chromedpPage{}, release, nil
}

// injectCookies sets cookies in the browser context
func injectCookies(ctx context.Context, cookies []*network.Cookie) error {
	if len(cookies) == 0 {
		return nil
	}
	return chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				err := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly).
					WithSameSite(c.SameSite).
					Do(ctx)

				if err != nil {
					return err
				}
			}
			return nil
		}),
	)
}

// chromedpPage is stateless; the tab lives in the context chromedp derived.
type chromedpPage struct{}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	return chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (p *chromedpPage) ScrollToBottom(ctx context.Context) error {
	return chromedp.Run(ctx, chromedp.Evaluate(dom.ScrollToBottomScript, nil))
}

func (p *chromedpPage) Find(ctx context.Context, q dom.Query) ([]dom.Element, error) {
	var roots []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes("html", &roots, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("failed to resolve document: %w", err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("document has no root element")
	}
	return findUnder(ctx, roots[0], q)
}

// matchSeq makes every filtered query tag its matches with a fresh token
var matchSeq atomic.Uint64

// findUnder queries the subtree of scope. With ancestor predicates, one
// script call tags the surviving matches and a second query collects
// exactly the tagged nodes, so nodes rendered in between are never
// mistaken for matches.
func findUnder(ctx context.Context, scope *cdp.Node, q dom.Query) ([]dom.Element, error) {
	selector := q.Selector
	if q.Within != "" || q.Outside != "" {
		token := fmt.Sprintf("m%d", matchSeq.Add(1))
		var n int
		if err := callOn(ctx, scope, dom.MarkScript, &n, q.Selector, q.Within, q.Outside, token); err != nil {
			return nil, fmt.Errorf("failed to filter %q: %w", q.Selector, err)
		}
		if n == 0 {
			return nil, nil
		}
		selector = fmt.Sprintf(`[%s="%s"]`, dom.MatchAttr, token)
	}

	var nodes []*cdp.Node
	err := chromedp.Run(ctx, chromedp.Nodes(selector, &nodes,
		chromedp.ByQueryAll,
		chromedp.FromNode(scope),
		chromedp.AtLeast(0),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", q.Selector, err)
	}

	out := make([]dom.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &chromedpElement{node: n}
	}
	return out, nil
}

// callOn calls fn with `this` bound to node and decodes its return value
// into res.
func callOn(ctx context.Context, node *cdp.Node, fn string, res any, args ...any) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := cdpdom.ResolveNode().WithBackendNodeID(node.BackendNodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to resolve node: %w", err)
		}
		defer runtime.ReleaseObject(obj.ObjectID).Do(ctx)

		return chromedp.CallFunctionOn(fn, res, func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return p.WithObjectID(obj.ObjectID)
		}, args...).Do(ctx)
	}))
}

type chromedpElement struct {
	node *cdp.Node
}

func (e *chromedpElement) Find(ctx context.Context, q dom.Query) ([]dom.Element, error) {
	return findUnder(ctx, e.node, q)
}

func (e *chromedpElement) Text(ctx context.Context) (string, error) {
	var text string
	err := callOn(ctx, e.node, dom.TextScript, &text)
	return text, err
}

func (e *chromedpElement) Visible(ctx context.Context) (bool, error) {
	var visible bool
	err := callOn(ctx, e.node, dom.VisibleScript, &visible)
	return visible, err
}

func (e *chromedpElement) Enabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := callOn(ctx, e.node, dom.EnabledScript, &enabled)
	return enabled, err
}

func (e *chromedpElement) ScrollIntoView(ctx context.Context) error {
	var ok bool
	return callOn(ctx, e.node, dom.ScrollIntoViewScript, &ok)
}

func (e *chromedpElement) Click(ctx context.Context) error {
	var ok bool
	return callOn(ctx, e.node, dom.ClickScript, &ok)
}
