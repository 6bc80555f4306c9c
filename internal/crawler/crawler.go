// Package crawler crawls one article's comment section: it opens the
// comment drawer, expands every "load more" affordance, then rebuilds the
// root/reply hierarchy from DOM nesting.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ibeckermayer/commentcrawl/internal/config"
	"github.com/ibeckermayer/commentcrawl/internal/dom"
	"github.com/ibeckermayer/commentcrawl/internal/logging"
	"github.com/ibeckermayer/commentcrawl/internal/types"
)

// UnknownTitle is used when the article has no readable headline
const UnknownTitle = "unknown title"

// ErrCommentButtonNotFound means no control opened the comment section
var ErrCommentButtonNotFound = errors.New("comment button not found")

// Crawler crawls one article per call
type Crawler struct {
	launcher  dom.Launcher
	crawl     config.CrawlConfig
	expand    config.ExpandConfig
	selectors config.SelectorsConfig
	clock     Clock
	logger    *zap.Logger
}

// New creates a crawler from the crawl, expand and selectors sections of cfg
func New(launcher dom.Launcher, cfg *config.Config, logger *zap.Logger) *Crawler {
	return &Crawler{
		launcher:  launcher,
		crawl:     cfg.Crawl,
		expand:    cfg.Expand,
		selectors: cfg.Selectors,
		clock:     RealClock{},
		logger:    logging.OrNop(logger),
	}
}

// WithClock replaces the clock used for every pause
func (c *Crawler) WithClock(clock Clock) *Crawler {
	c.clock = clock
	return c
}

// Crawl fetches the comments of the article at url.
//
// Only a browser that cannot be started is returned as an error. Any later
// failure is recorded in Crawl.Error with whatever was collected, so the
// caller always gets a result to persist. The browser is shut down on
// every path.
func (c *Crawler) Crawl(ctx context.Context, url string) (*types.Crawl, error) {
	result := &types.Crawl{
		RunID:     uuid.NewString(),
		Article:   types.Article{Title: UnknownTitle, URL: url},
		StartedAt: time.Now(),
	}
	logger := c.logger.With(zap.String("run", result.RunID))
	logger.Info("Starting crawl", zap.String("url", url))

	if c.crawl.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.crawl.Timeout)
		defer cancel()
	}

	pageCtx, page, release, err := c.launcher.Launch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	defer release()

	fail := func(err error) (*types.Crawl, error) {
		logger.Error("Crawl failed", zap.Error(err))
		result.Error = err.Error()
		result.FinishedAt = time.Now()
		return result, nil
	}

	if err := page.Navigate(pageCtx, url); err != nil {
		return fail(fmt.Errorf("failed to load article: %w", err))
	}
	if err := c.clock.Sleep(pageCtx, c.crawl.LoadDelay); err != nil {
		return fail(fmt.Errorf("load delay interrupted: %w", err))
	}

	if title, ok := dom.TextOf(pageCtx, page, dom.CSS(c.selectors.Title)); ok {
		result.Article.Title = title
	}
	logger.Info("Article loaded", zap.String("title", result.Article.Title))

	if c.crawl.OpenComments {
		if err := c.openComments(pageCtx, page, logger); err != nil {
			return fail(err)
		}
	}

	if c.expand.Enabled {
		expandCtx, cancel := c.expansionContext(pageCtx)
		result.Expansion = NewExpander(page, c.expand, c.selectors, c.clock, logger).Run(expandCtx)
		if expandCtx.Err() != nil && pageCtx.Err() == nil {
			logger.Warn("Expansion ran out of time, extracting what is loaded")
		}
		cancel()
	}

	if err := c.clock.Sleep(pageCtx, c.crawl.ExtractDelay); err != nil {
		return fail(fmt.Errorf("extract delay interrupted: %w", err))
	}

	session := NewSession(c.selectors, logger)
	if err := session.Extract(pageCtx, page); err != nil {
		logger.Warn("Extraction stopped early", zap.Error(err))
		result.Error = err.Error()
	}
	result.Comments = session.Records()
	result.Visited = session.Visited()
	result.FinishedAt = time.Now()

	logger.Info("Crawl finished",
		zap.Int("comments", len(result.Comments)),
		zap.Int("roots", result.Roots()),
		zap.Int("replies", result.Replies()),
		zap.Duration("took", result.FinishedAt.Sub(result.StartedAt)))

	return result, nil
}

// expansionContext bounds expansion by expand.timeout and by the crawl
// deadline minus what extraction needs, whichever comes first. Hitting it
// aborts expansion only.
func (c *Crawler) expansionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	budget, bounded := c.expand.Timeout, c.expand.Timeout > 0
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline) - c.crawl.ExtractDelay - c.crawl.ExtractReserve
		if left < 0 {
			left = 0
		}
		if !bounded || left < budget {
			budget, bounded = left, true
		}
	}
	if !bounded {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, budget)
}

// openComments scrolls the article so the comment widget renders, then
// clicks the control that opens the full comment list.
func (c *Crawler) openComments(ctx context.Context, page dom.Page, logger *zap.Logger) error {
	for i := 0; i < c.crawl.PreScrolls; i++ {
		if err := page.ScrollToBottom(ctx); err != nil {
			return fmt.Errorf("failed to scroll article: %w", err)
		}
		if err := c.clock.Sleep(ctx, c.crawl.PreScrollPause); err != nil {
			return fmt.Errorf("scroll pause interrupted: %w", err)
		}
		logger.Debug("Scrolled article", zap.Int("pass", i+1))
	}
	if err := c.clock.Sleep(ctx, c.crawl.SettleDelay); err != nil {
		return fmt.Errorf("settle delay interrupted: %w", err)
	}

	button, text, ok := c.findCommentButton(ctx, page)
	if !ok {
		return ErrCommentButtonNotFound
	}
	logger.Info("Found comment button", zap.String("text", text))

	if err := button.ScrollIntoView(ctx); err != nil {
		return fmt.Errorf("failed to reach comment button: %w", err)
	}
	if err := c.clock.Sleep(ctx, c.expand.ClickPause); err != nil {
		return fmt.Errorf("click pause interrupted: %w", err)
	}
	if err := button.Click(ctx); err != nil {
		return fmt.Errorf("failed to click comment button: %w", err)
	}
	if err := c.clock.Sleep(ctx, c.crawl.SettleDelay); err != nil {
		return fmt.Errorf("settle delay interrupted: %w", err)
	}
	return nil
}

// findCommentButton tries each candidate selector in order and returns the
// first match whose text names the comment section.
func (c *Crawler) findCommentButton(ctx context.Context, page dom.Page) (dom.Element, string, bool) {
	for _, selector := range c.selectors.CommentButtons {
		els, err := page.Find(ctx, dom.CSS(selector))
		if err != nil {
			continue
		}
		for _, el := range els {
			text, err := el.Text(ctx)
			if err != nil {
				continue
			}
			if ContainsKeyword(text, c.selectors.CommentButtonKeywords) {
				return el, text, true
			}
		}
	}
	return nil, "", false
}
