// Package browser provides the live-Chrome implementations of the dom
// capability, sharing one anti-bot-detection configuration.
package browser

import (
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// DefaultUserAgent is a realistic Chrome user agent
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// hideWebdriverJS runs before any page script
const hideWebdriverJS = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// Settings configures a launched browser
type Settings struct {
	Headless     bool
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	Cookies      []*network.Cookie // injected before navigation
}

func (s Settings) userAgent() string {
	if s.UserAgent == "" {
		return DefaultUserAgent
	}
	return s.UserAgent
}

func (s Settings) windowSize() (int, int) {
	w, h := s.WindowWidth, s.WindowHeight
	if w <= 0 {
		w = 1920
	}
	if h <= 0 {
		h = 1080
	}
	return w, h
}

// stealthFlags are the Chrome switches every driver sets. A false value
// removes the switch.
var stealthFlags = []struct {
	name  string
	value any
}{
	// Prevent navigator.webdriver = true detection
	{"disable-blink-features", "AutomationControlled"},
	{"enable-automation", false},

	// Keep comment widgets that load cross-origin frames working
	{"disable-web-security", true},
	{"disable-features", "VizDisplayCompositor"},

	// Disable automation-related extensions and features
	{"disable-extensions", true},
	{"disable-default-apps", true},
	{"disable-infobars", true},
	{"no-first-run", true},
	{"no-default-browser-check", true},

	// Only fatal Chrome logs
	{"log-level", "3"},
}

// Options returns chromedp allocator options with anti-bot-detection measures.
// All chromedp browser instances should use this to ensure consistent stealth configuration.
func Options(s Settings) []chromedp.ExecAllocatorOption {
	w, h := s.windowSize()
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.Headless),
		chromedp.UserAgent(s.userAgent()),
		chromedp.WindowSize(w, h),
	)

	for _, f := range stealthFlags {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}

	if s.Headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}

	return opts
}
