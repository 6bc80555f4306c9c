package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ibeckermayer/commentcrawl/internal/dom"
	"github.com/ibeckermayer/commentcrawl/internal/types"
)

// Field fallbacks
const (
	NoContent   = "no content"
	ZeroLikes   = "0"
	UnknownTime = "unknown time"
)

// PlaceholderAuthor is used when a container has no readable author
func PlaceholderAuthor(id int) string {
	return fmt.Sprintf("user%d", id)
}

// Build converts one container into a record. A nil parent builds a root
// comment; otherwise the record is a reply to parent.
//
// Identity is assigned before anything else, so a structural error still
// consumes an id. Field lookups never fail the record: a missing or empty
// field gets its fallback.
func (s *Session) Build(ctx context.Context, container dom.Element, parent *types.CommentRecord) (types.CommentRecord, error) {
	rec := types.CommentRecord{ID: s.take()}

	if container == nil {
		return types.CommentRecord{}, fmt.Errorf("container %d: %w", rec.ID, ErrNilContainer)
	}
	if parent != nil {
		if parent.IsReply {
			return types.CommentRecord{}, fmt.Errorf("container %d: %w", rec.ID, ErrNestedReply)
		}
		parentID, parentAuthor := parent.ID, parent.Author
		rec.IsReply = true
		rec.ParentID = &parentID
		rec.ReplyToAuthor = &parentAuthor
	}

	rec.Author = s.fieldOr(ctx, container, s.sel.Author, PlaceholderAuthor(rec.ID))
	rec.Text = s.fieldOr(ctx, container, s.sel.Text, NoContent)
	rec.LikeCount = NormalizeLikes(s.field(ctx, container, s.sel.Likes))
	rec.PostedAt = s.fieldOr(ctx, container, s.sel.Time, UnknownTime)

	s.logger.Debug("Extracted comment",
		zap.Int("id", rec.ID),
		zap.Bool("reply", rec.IsReply),
		zap.String("author", rec.Author),
		zap.String("text", truncate(rec.Text, 30)))

	return rec, nil
}

// field reads one sub-element of container. Matches inside a nested reply
// list belong to another comment and are ignored.
func (s *Session) field(ctx context.Context, container dom.Element, selector string) (string, bool) {
	if selector == "" {
		return "", false
	}
	return dom.TextOf(ctx, container, dom.Query{Selector: selector, Outside: s.sel.ReplyList})
}

// NormalizeLikes accepts a like count only if it is all ASCII digits
func NormalizeLikes(raw string, ok bool) string {
	if !ok || raw == "" {
		return ZeroLikes
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return ZeroLikes
		}
	}
	return raw
}

func (s *Session) fieldOr(ctx context.Context, container dom.Element, selector, def string) string {
	if v, ok := s.field(ctx, container, selector); ok {
		return v
	}
	return def
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
