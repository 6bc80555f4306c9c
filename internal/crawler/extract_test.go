package crawler

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/commentcrawl/internal/config"
	"github.com/ibeckermayer/commentcrawl/internal/snapshot"
	"github.com/ibeckermayer/commentcrawl/internal/types"
)

// comment renders one comment container; replies go in its reply list
func comment(author, text, likes, posted string, replies ...string) string {
	var b strings.Builder
	b.WriteString(`<div class="comment-info">`)
	if author != "" {
		fmt.Fprintf(&b, `<a class="name">%s</a>`, author)
	}
	if text != "" {
		fmt.Fprintf(&b, `<p class="content">%s</p>`, text)
	}
	if likes != "" {
		fmt.Fprintf(&b, `<div class="ttp-comment-like"><i></i><span>%s</span></div>`, likes)
	}
	if posted != "" {
		fmt.Fprintf(&b, `<span class="time">%s</span>`, posted)
	}
	if len(replies) > 0 {
		b.WriteString(`<div class="replay-list">`)
		for _, r := range replies {
			b.WriteString(r)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

func page(t *testing.T, comments ...string) *snapshot.Page {
	t.Helper()
	p, err := snapshot.ParseString(`<html><body><h1>Headline</h1><div class="comment-list">` +
		strings.Join(comments, "") + `</div></body></html>`)
	require.NoError(t, err)
	return p
}

func extract(t *testing.T, comments ...string) (*Session, []types.CommentRecord) {
	t.Helper()
	s := NewSession(config.DefaultSelectors(), nil)
	require.NoError(t, s.Extract(context.Background(), page(t, comments...)))
	return s, s.Records()
}

func TestExtractRootWithoutReplies(t *testing.T) {
	_, recs := extract(t, comment("alice", "hello", "3", "1小时前"))

	require.Len(t, recs, 1)
	assert.Equal(t, types.CommentRecord{
		ID:        1,
		Author:    "alice",
		Text:      "hello",
		LikeCount: "3",
		PostedAt:  "1小时前",
	}, recs[0])
}

func TestExtractRootWithTwoReplies(t *testing.T) {
	_, recs := extract(t, comment("alice", "root", "42", "1小时前",
		comment("bob", "first reply", "1.2万", "30分钟前"),
		comment("carol", "second reply", "", "10分钟前"),
	))

	require.Len(t, recs, 3)

	root := recs[0]
	assert.False(t, root.IsReply)
	assert.Nil(t, root.ParentID)
	assert.Nil(t, root.ReplyToAuthor)
	assert.Equal(t, "root", root.Text, "root fields must not come from its replies")
	assert.Equal(t, "42", root.LikeCount)

	for i, reply := range recs[1:] {
		assert.Equal(t, i+2, reply.ID)
		assert.True(t, reply.IsReply)
		require.NotNil(t, reply.ParentID)
		assert.Equal(t, root.ID, *reply.ParentID)
		require.NotNil(t, reply.ReplyToAuthor)
		assert.Equal(t, "alice", *reply.ReplyToAuthor)
	}
	assert.Equal(t, "bob", recs[1].Author)
	assert.Equal(t, "0", recs[1].LikeCount)
	assert.Equal(t, "carol", recs[2].Author)
	assert.Equal(t, "0", recs[2].LikeCount)
}

// TestExtractRootMajorOrder verifies replies of one root precede the next root
func TestExtractRootMajorOrder(t *testing.T) {
	_, recs := extract(t,
		comment("rootA", "a", "1", "t", comment("replyA1", "a1", "2", "t")),
		comment("rootB", "b", "3", "t"),
	)

	require.Len(t, recs, 3)
	assert.Equal(t, []string{"rootA", "replyA1", "rootB"}, authors(recs))
	assert.Equal(t, []int{1, 2, 3}, ids(recs))
	require.NotNil(t, recs[1].ParentID)
	assert.Equal(t, 1, *recs[1].ParentID)
	assert.Nil(t, recs[2].ParentID)
}

func TestExtractFallbacks(t *testing.T) {
	_, recs := extract(t,
		comment("", "", "", ""),
		`<div class="comment-info"><a class="name">  </a><p class="content"></p></div>`,
	)

	require.Len(t, recs, 2)
	assert.Equal(t, "user1", recs[0].Author)
	assert.Equal(t, NoContent, recs[0].Text)
	assert.Equal(t, ZeroLikes, recs[0].LikeCount)
	assert.Equal(t, UnknownTime, recs[0].PostedAt)

	// blank text counts as missing
	assert.Equal(t, "user2", recs[1].Author)
	assert.Equal(t, NoContent, recs[1].Text)
}

// TestExtractDeepRepliesGroupUnderRoot documents the two-level limit
func TestExtractDeepRepliesGroupUnderRoot(t *testing.T) {
	_, recs := extract(t, comment("root", "r", "1", "t",
		comment("reply", "x", "1", "t",
			comment("nested", "y", "1", "t"),
		),
	))

	require.Len(t, recs, 3)
	assert.Equal(t, []string{"root", "reply", "nested"}, authors(recs))
	for _, r := range recs[1:] {
		require.NotNil(t, r.ParentID)
		assert.Equal(t, 1, *r.ParentID)
	}
	assert.Equal(t, "x", recs[1].Text, "reply fields must not come from nested replies")
}

// TestExtractIdentityInvariants checks ids and parent links over a larger
// generated thread
func TestExtractIdentityInvariants(t *testing.T) {
	var roots []string
	for i := 0; i < 12; i++ {
		var replies []string
		for j := 0; j < i%4; j++ {
			replies = append(replies, comment(fmt.Sprintf("r%d-%d", i, j), "reply", fmt.Sprint(j), "t"))
		}
		roots = append(roots, comment(fmt.Sprintf("c%d", i), "root", fmt.Sprint(i), "t", replies...))
	}

	s, recs := extract(t, roots...)

	require.NotEmpty(t, recs)
	assert.Equal(t, len(recs), s.Visited())

	seenRoots := map[int]bool{}
	var lastRoot int
	for i, r := range recs {
		assert.Equal(t, i+1, r.ID)
		if !r.IsReply {
			assert.Nil(t, r.ParentID)
			seenRoots[r.ID] = true
			lastRoot = r.ID
			continue
		}
		require.NotNil(t, r.ParentID)
		assert.True(t, seenRoots[*r.ParentID], "parent %d must precede reply %d", *r.ParentID, r.ID)
		assert.Equal(t, lastRoot, *r.ParentID, "replies must follow their own root")
	}
}

func TestExtractEmptyPage(t *testing.T) {
	s, recs := extract(t)

	assert.Empty(t, recs)
	assert.Equal(t, 0, s.Visited())
}

func TestExtractCancelled(t *testing.T) {
	s := NewSession(config.DefaultSelectors(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Extract(ctx, page(t, comment("a", "b", "1", "t")))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Records())
}

func TestExtractBadSelector(t *testing.T) {
	sel := config.DefaultSelectors()
	sel.Comment = "[[["
	s := NewSession(sel, nil)

	assert.Error(t, s.Extract(context.Background(), page(t)))
}

func authors(recs []types.CommentRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Author
	}
	return out
}

func ids(recs []types.CommentRecord) []int {
	out := make([]int, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
