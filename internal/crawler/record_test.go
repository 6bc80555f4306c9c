package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/commentcrawl/internal/config"
	"github.com/ibeckermayer/commentcrawl/internal/dom"
	"github.com/ibeckermayer/commentcrawl/internal/types"
)

func TestNormalizeLikes(t *testing.T) {
	tests := []struct {
		raw  string
		ok   bool
		want string
	}{
		{"42", true, "42"},
		{"0", true, "0"},
		{"007", true, "007"},
		{"1.2万", true, "0"},
		{"1,024", true, "0"},
		{"-3", true, "0"},
		{"", true, "0"},
		{"٣", true, "0"},
		{"42", false, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLikes(tt.raw, tt.ok))
		})
	}
}

func firstComment(t *testing.T, html string) dom.Element {
	t.Helper()
	els, err := page(t, html).Find(context.Background(), dom.CSS(".comment-info"))
	require.NoError(t, err)
	require.NotEmpty(t, els)
	return els[0]
}

// TestBuildStructuralErrorsConsumeIDs verifies a skipped container leaves a
// gap-free sequence behind it
func TestBuildStructuralErrorsConsumeIDs(t *testing.T) {
	ctx := context.Background()
	s := NewSession(config.DefaultSelectors(), nil)

	_, err := s.Build(ctx, nil, nil)
	assert.ErrorIs(t, err, ErrNilContainer)

	reply := types.CommentRecord{ID: 9, IsReply: true}
	_, err = s.Build(ctx, firstComment(t, comment("a", "b", "1", "t")), &reply)
	assert.ErrorIs(t, err, ErrNestedReply)

	rec, err := s.Build(ctx, firstComment(t, comment("a", "b", "1", "t")), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.ID)
	assert.Equal(t, 3, s.Visited())
}

func TestBuildReplyCopiesParent(t *testing.T) {
	ctx := context.Background()
	s := NewSession(config.DefaultSelectors(), nil)

	parent, err := s.Build(ctx, firstComment(t, comment("alice", "root", "1", "t")), nil)
	require.NoError(t, err)

	reply, err := s.Build(ctx, firstComment(t, comment("bob", "reply", "2", "t")), &parent)
	require.NoError(t, err)

	// later changes to the parent value do not leak into the reply
	parent.Author = "changed"
	require.NotNil(t, reply.ReplyToAuthor)
	assert.Equal(t, "alice", *reply.ReplyToAuthor)
	assert.Equal(t, 1, *reply.ParentID)
}

func TestBuildMissingSelector(t *testing.T) {
	sel := config.DefaultSelectors()
	sel.Time = ""
	s := NewSession(sel, nil)

	rec, err := s.Build(context.Background(), firstComment(t, comment("a", "b", "1", "now")), nil)
	require.NoError(t, err)
	assert.Equal(t, UnknownTime, rec.PostedAt)
}

func TestRecordsIsACopy(t *testing.T) {
	_, recs := extract(t, comment("a", "b", "1", "t"))
	s := NewSession(config.DefaultSelectors(), nil)
	s.records = recs

	out := s.Records()
	out[0].Author = "mutated"
	assert.Equal(t, "a", s.records[0].Author)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "评论...", truncate("评论内容", 2))
}
