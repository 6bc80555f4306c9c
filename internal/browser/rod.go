package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/ibeckermayer/commentcrawl/internal/dom"
)

// Rod launches Chrome through go-rod
type Rod struct {
	Settings Settings
}

// NewRod creates a go-rod launcher
func NewRod(s Settings) *Rod {
	return &Rod{Settings: s}
}

// Launch implements dom.Launcher
func (r *Rod) Launch(ctx context.Context) (context.Context, dom.Page, func(), error) {
	w, h := r.Settings.windowSize()
	l := launcher.New().
		Context(ctx).
		Headless(r.Settings.Headless).
		Set(flags.Flag("user-agent"), r.Settings.userAgent()).
		Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", w, h))

	for _, f := range stealthFlags {
		switch v := f.value.(type) {
		case string:
			l = l.Set(flags.Flag(f.name), v)
		case bool:
			if v {
				l = l.Set(flags.Flag(f.name))
			} else {
				l = l.Delete(flags.Flag(f.name))
			}
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, nil, nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	release := func() {
		_ = b.Close()
		l.Cleanup()
	}

	p, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		release()
		return nil, nil, nil, fmt.Errorf("failed to open page: %w", err)
	}

	if _, err := p.EvalOnNewDocument(hideWebdriverJS); err != nil {
		release()
		return nil, nil, nil, fmt.Errorf("failed to install init script: %w", err)
	}

	if len(r.Settings.Cookies) > 0 {
		if err := p.SetCookies(cookieParams(r.Settings.Cookies)); err != nil {
			release()
			return nil, nil, nil, fmt.Errorf("failed to inject cookies: %w", err)
		}
	}

	return ctx, &rodPage{page: p}, release, nil
}

func cookieParams(cookies []*network.Cookie) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		})
	}
	return params
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

func (p *rodPage) ScrollToBottom(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(`() => ` + dom.ScrollToBottomScript)
	return err
}

func (p *rodPage) Find(ctx context.Context, q dom.Query) ([]dom.Element, error) {
	roots, err := p.page.Context(ctx).Elements("html")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve document: %w", err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("document has no root element")
	}
	return rodFindUnder(ctx, roots[0], q)
}

// rodFindUnder filters in the same script call that selects, so the
// returned handles are exactly the nodes that passed the predicates.
func rodFindUnder(ctx context.Context, scope *rod.Element, q dom.Query) ([]dom.Element, error) {
	scope = scope.Context(ctx)

	var (
		els rod.Elements
		err error
	)
	if q.Within == "" && q.Outside == "" {
		els, err = scope.Elements(q.Selector)
	} else {
		els, err = scope.ElementsByJS(rod.Eval(dom.FilterScript, q.Selector, q.Within, q.Outside))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", q.Selector, err)
	}

	out := make([]dom.Element, len(els))
	for i, el := range els {
		out[i] = &rodElement{el: el}
	}
	return out, nil
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) eval(ctx context.Context, js string) (*proto.RuntimeRemoteObject, error) {
	return e.el.Context(ctx).Eval(js)
}

func (e *rodElement) Find(ctx context.Context, q dom.Query) ([]dom.Element, error) {
	return rodFindUnder(ctx, e.el, q)
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	res, err := e.eval(ctx, dom.TextScript)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	res, err := e.eval(ctx, dom.VisibleScript)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *rodElement) Enabled(ctx context.Context) (bool, error) {
	res, err := e.eval(ctx, dom.EnabledScript)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func (e *rodElement) ScrollIntoView(ctx context.Context) error {
	_, err := e.eval(ctx, dom.ScrollIntoViewScript)
	return err
}

func (e *rodElement) Click(ctx context.Context) error {
	_, err := e.eval(ctx, dom.ClickScript)
	return err
}
