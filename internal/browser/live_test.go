package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/commentcrawl/internal/dom"
)

// These tests drive a real Chrome and only run with COMMENTCRAWL_CHROME_TEST set.

const threadHTML = `<html><body>
<div class="comment-list">
  <div class="comment-item"><span class="user-name">alice</span>
    <div class="reply-list">
      <div class="comment-item"><span class="user-name">bob</span></div>
      <div class="comment-item"><span class="user-name">carol</span></div>
    </div>
  </div>
  <div class="comment-item"><span class="user-name">dave</span></div>
</div>
</body></html>`

func requireChrome(t *testing.T) {
	t.Helper()
	if os.Getenv("COMMENTCRAWL_CHROME_TEST") == "" {
		t.Skip("set COMMENTCRAWL_CHROME_TEST to run against a real Chrome")
	}
}

func textsOf(t *testing.T, ctx context.Context, els []dom.Element) []string {
	t.Helper()
	var out []string
	for _, el := range els {
		name, ok := dom.TextOf(ctx, el, dom.CSS(".user-name"))
		require.True(t, ok)
		out = append(out, name)
	}
	return out
}

func TestFilteredFind(t *testing.T) {
	requireChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(threadHTML))
	}))
	defer srv.Close()

	for _, driver := range []string{DriverChromedp, DriverRod} {
		t.Run(driver, func(t *testing.T) {
			l, err := New(driver, Settings{Headless: true})
			require.NoError(t, err)

			parent, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			ctx, page, release, err := l.Launch(parent)
			require.NoError(t, err)
			defer release()

			require.NoError(t, page.Navigate(ctx, srv.URL))

			roots, err := page.Find(ctx, dom.Query{Selector: ".comment-item", Outside: ".reply-list"})
			require.NoError(t, err)
			assert.Equal(t, []string{"alice", "dave"}, textsOf(t, ctx, roots))

			replies, err := roots[0].Find(ctx, dom.Query{Selector: ".comment-item", Within: ".reply-list"})
			require.NoError(t, err)
			assert.Equal(t, []string{"bob", "carol"}, textsOf(t, ctx, replies))

			none, err := roots[1].Find(ctx, dom.Query{Selector: ".comment-item", Within: ".reply-list"})
			require.NoError(t, err)
			assert.Empty(t, none)

			// a second filtered query must not see the first one's matches
			again, err := page.Find(ctx, dom.Query{Selector: ".comment-item", Outside: ".reply-list"})
			require.NoError(t, err)
			assert.Len(t, again, 2)

			visible, err := roots[0].Visible(ctx)
			require.NoError(t, err)
			assert.True(t, visible)
		})
	}
}
