package cookies

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/commentcrawl/internal/browser"
)

// Manager captures cookies from a visible browser
type Manager struct {
	store *Store
}

// NewManager creates a new cookie manager
func NewManager(store *Store) *Manager {
	return &Manager{store: store}
}

// Login opens a visible browser at loginURL and waits for confirm to
// return, which is when the user says they are logged in. All cookies of
// the browser are then saved.
func (m *Manager) Login(ctx context.Context, loginURL string, confirm func(ctx context.Context) error) error {
	settings := browser.Settings{Headless: false}
	opts := append(browser.Options(settings), chromedp.Flag("start-maximized", true))

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(loginURL)); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}

	if err := confirm(browserCtx); err != nil {
		return fmt.Errorf("login aborted: %w", err)
	}

	cookies, err := extractCookies(browserCtx)
	if err != nil {
		return fmt.Errorf("failed to extract cookies: %w", err)
	}
	if len(cookies) == 0 {
		return fmt.Errorf("browser has no cookies")
	}

	if err := m.store.Save(cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}

	return nil
}

// extractCookies gets all cookies from the browser
func extractCookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie

	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)

	return cookies, err
}

// Logout clears stored cookies
func (m *Manager) Logout() error {
	return m.store.Clear()
}

// CookiesFor returns the stored cookies for a crawl of rawURL, or nil when
// no valid session is stored
func (m *Manager) CookiesFor(rawURL string) ([]*network.Cookie, error) {
	if !m.store.IsValid() {
		return nil, nil
	}
	return m.store.ForURL(rawURL)
}
