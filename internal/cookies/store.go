// Package cookies captures a logged-in browser session and replays it into
// later crawls, for articles whose full comment list needs a login.
package cookies

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/ibeckermayer/commentcrawl/internal/config"
)

// SessionCookieNames mark a logged-in session; their earliest expiry bounds
// the stored session
var SessionCookieNames = []string{"sessionid", "sid_tt", "sid_guard"}

// Store handles storage of captured session cookies
type Store struct {
	path string
}

// StoredCookies represents the persisted cookie data
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at,omitempty"`
}

// NewStore creates a cookie store at the given path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the default path for cookie storage
func DefaultPath() (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "cookies.json"), nil
}

// Save persists cookies to disk
func (s *Store) Save(cookies []*network.Cookie) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	// Find the earliest expiration among session cookies; session-only
	// cookies (Expires <= 0) do not bound it
	var earliestExpiry time.Time
	for _, c := range cookies {
		if !isSessionCookie(c.Name) || c.Expires <= 0 {
			continue
		}
		exp := time.Unix(int64(c.Expires), 0)
		if earliestExpiry.IsZero() || exp.Before(earliestExpiry) {
			earliestExpiry = exp
		}
	}

	stored := StoredCookies{
		Cookies:    withEnumDefaults(cookies),
		CapturedAt: time.Now(),
		ExpiresAt:  earliestExpiry,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0600)
}

// Load retrieves cookies from disk
func (s *Store) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}

	return &stored, nil
}

// withEnumDefaults copies cookies, filling the enum fields that cannot
// decode empty. Cookies built by hand or by older Chrome versions leave
// them unset.
func withEnumDefaults(cookies []*network.Cookie) []*network.Cookie {
	out := make([]*network.Cookie, len(cookies))
	for i, c := range cookies {
		cp := *c
		if cp.Priority == "" {
			cp.Priority = network.CookiePriorityMedium
		}
		if cp.SourceScheme == "" {
			cp.SourceScheme = network.CookieSourceSchemeUnset
		}
		out[i] = &cp
	}
	return out
}

// IsValid checks if stored cookies exist and have not expired
func (s *Store) IsValid() bool {
	stored, err := s.Load()
	if err != nil || len(stored.Cookies) == 0 {
		return false
	}
	return stored.ExpiresAt.IsZero() || time.Now().Before(stored.ExpiresAt)
}

// Clear removes stored cookies
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ForURL returns the stored cookies that apply to rawURL's host
func (s *Store) ForURL(rawURL string) ([]*network.Cookie, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	stored, err := s.Load()
	if err != nil {
		return nil, err
	}
	return ForHost(stored.Cookies, u.Hostname()), nil
}

// ForHost filters cookies by domain match: exact host, or a dotted parent
// domain
func ForHost(cookies []*network.Cookie, host string) []*network.Cookie {
	host = strings.ToLower(host)
	var out []*network.Cookie
	for _, c := range cookies {
		domain := strings.ToLower(strings.TrimPrefix(c.Domain, "."))
		if domain == "" {
			continue
		}
		if host == domain || strings.HasSuffix(host, "."+domain) {
			out = append(out, c)
		}
	}
	return out
}

func isSessionCookie(name string) bool {
	for _, n := range SessionCookieNames {
		if n == name {
			return true
		}
	}
	return false
}
