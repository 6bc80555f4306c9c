package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/ibeckermayer/commentcrawl/internal/config"
	"github.com/ibeckermayer/commentcrawl/internal/dom"
)

var errBoom = errors.New("boom")

// fakeClock records pauses instead of sleeping
type fakeClock struct {
	slept     []time.Duration
	failAfter int // fail the n-th sleep and every later one when > 0
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	if c.failAfter > 0 && len(c.slept) >= c.failAfter {
		return errBoom
	}
	return ctx.Err()
}

func (c *fakeClock) total() time.Duration {
	var sum time.Duration
	for _, d := range c.slept {
		sum += d
	}
	return sum
}

// fakePage serves fixed elements per selector
type fakePage struct {
	controls  map[string][]dom.Element
	findErr   map[string]error
	scrollErr error
	navErr    error
	scrolls   int
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	return p.navErr
}

func (p *fakePage) ScrollToBottom(ctx context.Context) error {
	p.scrolls++
	return p.scrollErr
}

func (p *fakePage) Find(ctx context.Context, q dom.Query) ([]dom.Element, error) {
	if err := p.findErr[q.Selector]; err != nil {
		return nil, err
	}
	return p.controls[q.Selector], nil
}

// fakeControl is a clickable element. It disappears after maxClicks clicks
// when maxClicks > 0.
type fakeControl struct {
	text      string
	hidden    bool
	disabled  bool
	clickErr  error
	maxClicks int
	clicks    int
}

func (e *fakeControl) Find(ctx context.Context, q dom.Query) ([]dom.Element, error) {
	return nil, nil
}

func (e *fakeControl) Text(ctx context.Context) (string, error) {
	return e.text, nil
}

func (e *fakeControl) Visible(ctx context.Context) (bool, error) {
	if e.maxClicks > 0 && e.clicks >= e.maxClicks {
		return false, nil
	}
	return !e.hidden, nil
}

func (e *fakeControl) Enabled(ctx context.Context) (bool, error) {
	return !e.disabled, nil
}

func (e *fakeControl) ScrollIntoView(ctx context.Context) error {
	return nil
}

func (e *fakeControl) Click(ctx context.Context) error {
	if e.clickErr != nil {
		return e.clickErr
	}
	e.clicks++
	return nil
}

// fakeLauncher hands out a prepared page
type fakeLauncher struct {
	page     dom.Page
	err      error
	released bool
}

func (l *fakeLauncher) Launch(ctx context.Context) (context.Context, dom.Page, func(), error) {
	if l.err != nil {
		return nil, nil, nil, l.err
	}
	return ctx, l.page, func() { l.released = true }, nil
}

func testExpandConfig() config.ExpandConfig {
	return config.ExpandConfig{
		Enabled:     true,
		MaxAttempts: 50,
		IdleLimit:   3,
		ScrollPause: 2 * time.Second,
		ClickPause:  2 * time.Second,
	}
}
