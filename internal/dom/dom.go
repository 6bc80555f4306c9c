// Package dom defines the element query capability the crawler drives.
// Implementations live in internal/browser (live Chrome) and
// internal/snapshot (static HTML).
package dom

import (
	"context"
	"strings"
)

// Query selects descendants of a scope.
//
// Within and Outside are ancestor predicates evaluated between a match and
// the scope (the scope itself never counts): Within keeps only matches that
// have such an ancestor, Outside drops them.
type Query struct {
	Selector string
	Within   string
	Outside  string
}

// CSS returns a plain selector query
func CSS(selector string) Query {
	return Query{Selector: selector}
}

// Scope is anything descendants can be queried from.
type Scope interface {
	// Find returns matching descendants in document order. No matches is
	// not an error.
	Find(ctx context.Context, q Query) ([]Element, error)
}

// Element is a handle to one node in the live document.
type Element interface {
	Scope
	Text(ctx context.Context) (string, error)
	Visible(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	ScrollIntoView(ctx context.Context) error
	Click(ctx context.Context) error
}

// Page is the whole document of one tab.
type Page interface {
	Scope
	Navigate(ctx context.Context, url string) error
	ScrollToBottom(ctx context.Context) error
}

// Launcher starts a browser and opens one page in it. The returned context
// is the one every page call must use; release shuts the browser down.
type Launcher interface {
	Launch(ctx context.Context) (context.Context, Page, func(), error)
}

// First returns the first match of q under scope, or false.
func First(ctx context.Context, scope Scope, q Query) (Element, bool) {
	els, err := scope.Find(ctx, q)
	if err != nil || len(els) == 0 {
		return nil, false
	}
	return els[0], true
}

// TextOf returns the trimmed text of the first match of q, or false if there
// is no match, it cannot be read, or it is empty.
func TextOf(ctx context.Context, scope Scope, q Query) (string, bool) {
	el, ok := First(ctx, scope, q)
	if !ok {
		return "", false
	}
	text, err := el.Text(ctx)
	if err != nil {
		return "", false
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

// Interactable reports whether el is both visible and enabled. Errors count
// as not interactable.
func Interactable(ctx context.Context, el Element) bool {
	visible, err := el.Visible(ctx)
	if err != nil || !visible {
		return false
	}
	enabled, err := el.Enabled(ctx)
	return err == nil && enabled
}

// Invoke scrolls el into view and clicks it.
func Invoke(ctx context.Context, el Element) error {
	if err := el.ScrollIntoView(ctx); err != nil {
		return err
	}
	return el.Click(ctx)
}
