package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/commentcrawl/internal/config"
	"github.com/ibeckermayer/commentcrawl/internal/cookies"
	"github.com/ibeckermayer/commentcrawl/internal/dom"
	"github.com/ibeckermayer/commentcrawl/internal/notifier"
	"github.com/ibeckermayer/commentcrawl/internal/snapshot"
	"github.com/ibeckermayer/commentcrawl/internal/store"
)

const articleHTML = `<html><body><h1>Weekend news</h1>
<div class="comment-info"><a class="name">alice</a><p class="content">first</p>
  <div class="ttp-comment-like"><span>12</span></div><span class="time">1h</span>
  <div class="replay-list">
    <div class="comment-info"><a class="name">bob</a><p class="content">agree</p></div>
  </div>
</div>
<div class="comment-info"><a class="name">carol</a><p class="content">second</p></div>
</body></html>`

type nopClock struct{}

func (nopClock) Sleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

type fakeSender struct {
	subjects []string
	err      error
}

func (f *fakeSender) Send(to, subject, htmlBody, plainBody string) error {
	f.subjects = append(f.subjects, subject)
	return f.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Crawl.OpenComments = false
	cfg.Expand.Enabled = false
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	cfg.Output.CacheSteps = false
	return cfg
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	return s
}

// snapshotLauncher serves articleHTML and records the cookies it was given
func snapshotLauncher(t *testing.T, gotJar *[]*network.Cookie) LauncherFunc {
	return func(cfg *config.Config, jar []*network.Cookie) (dom.Launcher, error) {
		if gotJar != nil {
			*gotJar = jar
		}
		p, err := snapshot.ParseString(articleHTML)
		require.NoError(t, err)
		return snapshot.Launcher{Page: p}, nil
	}
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{
		WithStore(testStore(t)),
		WithClock(nopClock{}),
		WithLauncher(snapshotLauncher(t, nil)),
	}, opts...)

	a, err := New(context.Background(), cfg, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func TestCrawlWritesOutputs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.MetricsFile = filepath.Join(t.TempDir(), "metrics", "commentcrawl.prom")
	a := newTestApp(t, cfg)

	res, err := a.Crawl(context.Background(), "https://example.com/article/1")
	require.NoError(t, err)

	c := res.Crawl
	assert.Equal(t, "Weekend news", c.Article.Title)
	require.Len(t, c.Comments, 3)
	assert.Equal(t, 2, c.Roots())
	assert.Equal(t, 1, c.Replies())

	assert.ElementsMatch(t, []string{
		filepath.Join(cfg.Output.Dir, "comments.xlsx"),
		filepath.Join(cfg.Output.Dir, "hierarchy_report.txt"),
		filepath.Join(cfg.Output.Dir, "hierarchy_report.html"),
	}, res.Files)
	for _, f := range res.Files {
		assert.FileExists(t, f)
	}

	text, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "hierarchy_report.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(text), "alice")
	assert.Contains(t, string(text), "bob")

	runs, err := a.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, c.RunID, runs[0].RunID)
	assert.Equal(t, 3, runs[0].Comments)

	metrics, err := os.ReadFile(cfg.Output.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `commentcrawl_runs_total{outcome="ok"} 1`)
}

func TestCrawlUsesConfiguredURL(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)

	_, err := a.Crawl(context.Background(), "")
	assert.Error(t, err)

	cfg.Crawl.ArticleURL = "https://example.com/article/2"
	res, err := a.Crawl(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/article/2", res.Crawl.Article.URL)
}

func TestCrawlDisabledOutputs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Spreadsheet = ""
	cfg.Output.HTMLReport = ""
	a := newTestApp(t, cfg)

	res, err := a.Crawl(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(cfg.Output.Dir, "hierarchy_report.txt")}, res.Files)
}

func TestCrawlWithoutCommentsSkipsReport(t *testing.T) {
	cfg := testConfig(t)
	sender := &fakeSender{}
	a := newTestApp(t, cfg,
		WithNotifier(notifier.New(sender, "me@example.com")),
		WithLauncher(func(*config.Config, []*network.Cookie) (dom.Launcher, error) {
			p, err := snapshot.ParseString(`<html><body><h1>quiet</h1></body></html>`)
			require.NoError(t, err)
			return snapshot.Launcher{Page: p}, nil
		}),
	)

	res, err := a.Crawl(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Empty(t, res.Crawl.Comments)
	assert.Equal(t, []string{filepath.Join(cfg.Output.Dir, "comments.xlsx")}, res.Files)
	assert.Empty(t, sender.subjects)
}

func TestCrawlSendsReport(t *testing.T) {
	cfg := testConfig(t)
	sender := &fakeSender{}
	a := newTestApp(t, cfg, WithNotifier(notifier.New(sender, "me@example.com")))

	_, err := a.Crawl(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	require.Len(t, sender.subjects, 1)
	assert.Contains(t, sender.subjects[0], "Weekend news")
}

func TestCrawlSurvivesMailFailure(t *testing.T) {
	cfg := testConfig(t)
	sender := &fakeSender{err: errors.New("smtp down")}
	a := newTestApp(t, cfg, WithNotifier(notifier.New(sender, "me@example.com")))

	res, err := a.Crawl(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Len(t, res.Crawl.Comments, 3)
}

func TestCrawlLaunchFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.MetricsFile = filepath.Join(t.TempDir(), "commentcrawl.prom")
	a := newTestApp(t, cfg, WithLauncher(func(*config.Config, []*network.Cookie) (dom.Launcher, error) {
		return snapshot.Launcher{}, nil
	}))

	_, err := a.Crawl(context.Background(), "https://example.com/a")
	require.Error(t, err)

	runs, err := a.Runs(10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	metrics, err := os.ReadFile(cfg.Output.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `commentcrawl_runs_total{outcome="failed"} 1`)
}

func TestCrawlReplaysCookies(t *testing.T) {
	cfg := testConfig(t)
	cfg.Crawl.UseCookies = true

	cs := cookies.NewStore(filepath.Join(t.TempDir(), "cookies.json"))
	require.NoError(t, cs.Save([]*network.Cookie{
		{Name: "sessionid", Value: "s", Domain: ".example.com", Path: "/",
			Priority: network.CookiePriorityMedium, SourceScheme: network.CookieSourceSchemeSecure},
		{Name: "other", Value: "o", Domain: ".other.com", Path: "/",
			Priority: network.CookiePriorityMedium, SourceScheme: network.CookieSourceSchemeSecure},
	}))

	var jar []*network.Cookie
	a := newTestApp(t, cfg,
		WithCookies(cookies.NewManager(cs)),
		WithLauncher(snapshotLauncher(t, &jar)),
	)

	_, err := a.Crawl(context.Background(), "https://www.example.com/a")
	require.NoError(t, err)
	require.Len(t, jar, 1)
	assert.Equal(t, "sessionid", jar[0].Name)

	cfg.Crawl.UseCookies = false
	_, err = a.Crawl(context.Background(), "https://www.example.com/a")
	require.NoError(t, err)
	assert.Empty(t, jar)
}

func TestCrawlSnapshot(t *testing.T) {
	cfg := testConfig(t)
	// would fail if the snapshot crawl tried to open the comment drawer
	cfg.Crawl.OpenComments = true
	cfg.Expand.Enabled = true
	a := newTestApp(t, cfg)

	path := filepath.Join(t.TempDir(), "saved.html")
	require.NoError(t, os.WriteFile(path, []byte(articleHTML), 0600))

	res, err := a.CrawlSnapshot(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, res.Crawl.Error)
	assert.Len(t, res.Crawl.Comments, 3)
	assert.True(t, strings.HasPrefix(res.Crawl.Article.URL, "file://"))
	assert.Zero(t, res.Crawl.Expansion.Attempts)

	_, err = a.CrawlSnapshot(context.Background(), filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)
}

func TestCrawlCachesSteps(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.CacheSteps = true
	steps := &store.StepCache{Dir: t.TempDir()}
	a := newTestApp(t, cfg, WithStepCache(steps))

	res, err := a.Crawl(context.Background(), "https://example.com/a")
	require.NoError(t, err)

	_, err = steps.LatestStepFile(store.StepCrawl)
	require.NoError(t, err)
	_, err = steps.LatestStepFile(store.StepReport)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Crawl.RunID)
}

func TestReport(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)

	_, _, err := a.Report("")
	assert.ErrorIs(t, err, store.ErrRunNotFound)

	res, err := a.Crawl(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(cfg.Output.Dir))

	rep, files, err := a.Report(res.Crawl.RunID)
	require.NoError(t, err)
	assert.Contains(t, rep.PlainBody, "carol")
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.FileExists(t, f)
	}

	latest, _, err := a.Report("")
	require.NoError(t, err)
	assert.Contains(t, latest.PlainBody, "Weekend news")

	_, _, err = a.Report("no-such-run")
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestReloadConfig(t *testing.T) {
	cfg := testConfig(t)
	a := newTestApp(t, cfg)

	next := testConfig(t)
	next.Crawl.ArticleURL = "https://example.com/next"
	require.NoError(t, a.ReloadConfig(next))
	assert.Equal(t, "https://example.com/next", a.Config().Crawl.ArticleURL)

	bad := testConfig(t)
	bad.Expand.MaxAttempts = 0
	assert.Error(t, a.ReloadConfig(bad))
	assert.Equal(t, next, a.Config())

	noHost := testConfig(t)
	noHost.Email.Enabled = true
	noHost.Email.ToAddr = "me@example.com"
	assert.Error(t, a.ReloadConfig(noHost))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Crawl.Timeout = 0

	_, err := New(context.Background(), cfg, nil, WithStore(testStore(t)))
	assert.Error(t, err)
}
