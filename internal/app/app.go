// Package app wires the crawler to its outputs: the run store, the
// optional document sink, the step cache, the spreadsheet and report files,
// email and the metrics textfile.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/commentcrawl/internal/browser"
	"github.com/ibeckermayer/commentcrawl/internal/config"
	"github.com/ibeckermayer/commentcrawl/internal/cookies"
	"github.com/ibeckermayer/commentcrawl/internal/crawler"
	"github.com/ibeckermayer/commentcrawl/internal/dom"
	"github.com/ibeckermayer/commentcrawl/internal/export"
	"github.com/ibeckermayer/commentcrawl/internal/logging"
	"github.com/ibeckermayer/commentcrawl/internal/metrics"
	"github.com/ibeckermayer/commentcrawl/internal/notifier"
	"github.com/ibeckermayer/commentcrawl/internal/report"
	"github.com/ibeckermayer/commentcrawl/internal/snapshot"
	"github.com/ibeckermayer/commentcrawl/internal/store"
	"github.com/ibeckermayer/commentcrawl/internal/store/mongo"
	"github.com/ibeckermayer/commentcrawl/internal/types"
)

// LauncherFunc picks the browser for one crawl. jar holds the session
// cookies to inject, if any.
type LauncherFunc func(cfg *config.Config, jar []*network.Cookie) (dom.Launcher, error)

// App holds the application state.
type App struct {
	mu sync.RWMutex

	// Mutable fields - use getSnapshot() for concurrent access.
	config   *config.Config
	notifier *notifier.Notifier

	logger  *zap.Logger
	store   *store.Store
	sink    *mongo.Sink
	steps   *store.StepCache
	cookies *cookies.Manager
	metrics *metrics.Metrics
	reports *report.Builder
	launch  LauncherFunc
	clock   crawler.Clock
}

// configSnapshot holds fields that may be replaced by ReloadConfig.
type configSnapshot struct {
	config   *config.Config
	notifier *notifier.Notifier
}

func (a *App) getSnapshot() configSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return configSnapshot{config: a.config, notifier: a.notifier}
}

// Option customizes an App
type Option func(*App)

// WithStore uses an already opened run store
func WithStore(s *store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithStepCache uses c instead of the platform cache directory
func WithStepCache(c *store.StepCache) Option {
	return func(a *App) { a.steps = c }
}

// WithNotifier mails reports through n regardless of the email config
func WithNotifier(n *notifier.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// WithCookies replays the sessions captured by m
func WithCookies(m *cookies.Manager) Option {
	return func(a *App) { a.cookies = m }
}

// WithLauncher replaces the live browser
func WithLauncher(fn LauncherFunc) Option {
	return func(a *App) { a.launch = fn }
}

// WithClock replaces the clock the crawler pauses on
func WithClock(c crawler.Clock) Option {
	return func(a *App) { a.clock = c }
}

// Result is what one crawl produced
type Result struct {
	Crawl *types.Crawl
	Files []string
}

// New creates an App. The run store is opened at cfg.DatabasePath() and
// the document sink is connected when a mongo URI is configured.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	reports, err := report.New()
	if err != nil {
		return nil, err
	}

	a := &App{
		config:  cfg,
		logger:  logging.OrNop(logger).Named("app"),
		metrics: metrics.New(),
		reports: reports,
		launch:  liveLauncher,
		clock:   crawler.RealClock{},
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.store == nil {
		path, err := cfg.DatabasePath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
		if a.store, err = store.New(path); err != nil {
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
	}

	if a.steps == nil && cfg.Output.CacheSteps {
		if a.steps, err = store.NewStepCache(); err != nil {
			a.logger.Warn("Step cache disabled", zap.Error(err))
		}
	}

	if a.notifier == nil && cfg.Email.Enabled {
		if a.notifier, err = notifier.NewFromConfig(cfg.Email); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to configure email: %w", err)
		}
	}

	if cfg.Output.MongoURI != "" {
		if a.sink, err = mongo.New(ctx, cfg.Output.MongoURI, cfg.Output.MongoDatabase); err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to connect document sink: %w", err)
		}
	}

	return a, nil
}

// Close releases the stores
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.sink != nil {
		errs = append(errs, a.sink.Close(ctx))
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// Config returns the configuration in use
func (a *App) Config() *config.Config {
	return a.getSnapshot().config
}

// Metrics returns the registry every crawl is recorded in
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// liveLauncher starts the configured browser driver
func liveLauncher(cfg *config.Config, jar []*network.Cookie) (dom.Launcher, error) {
	return browser.New(cfg.Crawl.Driver, browser.Settings{
		Headless:  cfg.Crawl.Headless,
		UserAgent: cfg.Crawl.UserAgent,
		Cookies:   jar,
	})
}

// sessionFor returns the stored cookies for url when cookie replay is on
func (a *App) sessionFor(cfg *config.Config, url string) []*network.Cookie {
	if !cfg.Crawl.UseCookies || a.cookies == nil {
		return nil
	}

	jar, err := a.cookies.CookiesFor(url)
	if err != nil {
		a.logger.Warn("Could not load cookies, crawling anonymously", zap.Error(err))
		return nil
	}
	if len(jar) == 0 {
		a.logger.Info("No stored session for article, crawling anonymously")
		return nil
	}

	a.logger.Info("Replaying stored session", zap.Int("cookies", len(jar)))
	return jar
}

// Crawl crawls the article at url with the configured browser, then
// stores and exports the result. An empty url falls back to
// crawl.article_url.
func (a *App) Crawl(ctx context.Context, url string) (*Result, error) {
	cfg := a.getSnapshot().config
	if url == "" {
		url = cfg.Crawl.ArticleURL
	}
	if url == "" {
		return nil, fmt.Errorf("no article url given and crawl.article_url is not set")
	}

	launcher, err := a.launch(cfg, a.sessionFor(cfg, url))
	if err != nil {
		return nil, err
	}
	return a.run(ctx, cfg, launcher, url)
}

// CrawlSnapshot extracts comments from a saved HTML page. Nothing can be
// clicked open offline, so comment opening and expansion are skipped.
func (a *App) CrawlSnapshot(ctx context.Context, path string) (*Result, error) {
	page, err := snapshot.Open(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	cfg := *a.getSnapshot().config
	cfg.Crawl.OpenComments = false
	cfg.Crawl.LoadDelay = 0
	cfg.Crawl.ExtractDelay = 0
	cfg.Expand.Enabled = false

	return a.run(ctx, &cfg, snapshot.Launcher{Page: page}, "file://"+filepath.ToSlash(abs))
}

func (a *App) run(ctx context.Context, cfg *config.Config, launcher dom.Launcher, url string) (*Result, error) {
	c, err := crawler.New(launcher, cfg, a.logger.Named("crawler")).WithClock(a.clock).Crawl(ctx, url)
	if err != nil {
		a.metrics.ObserveLaunchFailure()
		a.writeMetrics(cfg)
		return nil, err
	}
	logger := a.logger.With(zap.String("run", c.RunID))

	a.metrics.ObserveCrawl(c)
	defer a.writeMetrics(cfg)

	if err := a.persist(ctx, cfg, c); err != nil {
		return &Result{Crawl: c}, err
	}

	files, rep, err := a.export(cfg, c)
	if err != nil {
		return &Result{Crawl: c, Files: files}, err
	}

	logger.Info("Saved comments",
		zap.Int("total", len(c.Comments)),
		zap.Int("roots", c.Roots()),
		zap.Int("replies", c.Replies()),
		zap.Strings("files", files))

	if n := a.getSnapshot().notifier; n != nil && rep != nil {
		if err := n.SendReport(rep); err != nil {
			logger.Error("Failed to send report", zap.Error(err))
		} else {
			logger.Info("Report sent", zap.String("subject", rep.Subject))
		}
	}

	return &Result{Crawl: c, Files: files}, nil
}

// persist writes the crawl to the run store first; the sink and the step
// cache are best effort.
func (a *App) persist(ctx context.Context, cfg *config.Config, c *types.Crawl) error {
	if err := a.store.SaveCrawl(c); err != nil {
		return fmt.Errorf("failed to store crawl: %w", err)
	}

	if a.sink != nil {
		if err := a.sink.SaveCrawl(ctx, c); err != nil {
			a.logger.Error("Failed to write crawl to document sink", zap.Error(err))
		}
	}

	if a.steps != nil && cfg.Output.CacheSteps {
		if path, err := store.SaveStepOutput(a.steps, store.StepCrawl, c); err != nil {
			a.logger.Warn("Failed to cache crawl", zap.Error(err))
		} else {
			a.logger.Debug("Cached crawl", zap.String("path", path))
		}
	}
	return nil
}

// export writes the enabled output files in parallel. A crawl without
// comments gets a spreadsheet but no report.
func (a *App) export(cfg *config.Config, c *types.Crawl) ([]string, *report.Report, error) {
	out := cfg.Output
	if err := os.MkdirAll(out.Dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	rep, err := a.reports.Build(c)
	if errors.Is(err, report.ErrNoComments) {
		a.logger.Info("No comments, skipping report")
		rep = nil
	} else if err != nil {
		return nil, nil, err
	}

	var (
		g     errgroup.Group
		mu    sync.Mutex
		files []string
	)
	write := func(name string, fn func(path string) error) {
		if name == "" {
			return
		}
		path := filepath.Join(out.Dir, name)
		g.Go(func() error {
			if err := fn(path); err != nil {
				return err
			}
			mu.Lock()
			files = append(files, path)
			mu.Unlock()
			return nil
		})
	}

	write(out.Spreadsheet, func(path string) error { return export.WriteXLSX(path, c) })
	if rep != nil {
		write(out.Report, rep.WriteText)
		write(out.HTMLReport, rep.WriteHTML)
		if a.steps != nil && out.CacheSteps {
			g.Go(func() error {
				_, err := a.steps.SaveTextOutput(store.StepReport, rep.PlainBody, ".txt")
				return err
			})
		}
	}

	if err := g.Wait(); err != nil {
		return files, rep, fmt.Errorf("failed to write outputs: %w", err)
	}
	return files, rep, nil
}

func (a *App) writeMetrics(cfg *config.Config) {
	if cfg.Output.MetricsFile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(cfg.Output.MetricsFile); err != nil {
		a.logger.Warn("Failed to write metrics", zap.Error(err))
	}
}

// Report rebuilds the hierarchy report of a stored run, the latest one
// when runID is empty, and writes it to the output directory.
func (a *App) Report(runID string) (*report.Report, []string, error) {
	var (
		c   *types.Crawl
		err error
	)
	if runID == "" {
		c, err = a.store.LatestRun()
	} else {
		c, err = a.store.LoadCrawl(runID)
	}
	if err != nil {
		return nil, nil, err
	}

	rep, err := a.reports.Build(c)
	if err != nil {
		return nil, nil, err
	}

	out := a.getSnapshot().config.Output
	if err := os.MkdirAll(out.Dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var files []string
	if out.Report != "" {
		path := filepath.Join(out.Dir, out.Report)
		if err := rep.WriteText(path); err != nil {
			return nil, nil, err
		}
		files = append(files, path)
	}
	if out.HTMLReport != "" {
		path := filepath.Join(out.Dir, out.HTMLReport)
		if err := rep.WriteHTML(path); err != nil {
			return nil, nil, err
		}
		files = append(files, path)
	}
	return rep, files, nil
}

// Runs lists the most recent stored runs
func (a *App) Runs(limit int) ([]store.RunSummary, error) {
	return a.store.ListRuns(limit)
}

// ReloadConfig swaps in cfg for later crawls. The stores keep the
// connections they were opened with.
func (a *App) ReloadConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var n *notifier.Notifier
	if cfg.Email.Enabled {
		var err error
		if n, err = notifier.NewFromConfig(cfg.Email); err != nil {
			return fmt.Errorf("failed to configure email: %w", err)
		}
	}

	a.mu.Lock()
	a.config = cfg
	a.notifier = n
	a.mu.Unlock()

	a.logger.Info("Configuration reloaded")
	return nil
}
