package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ibeckermayer/commentcrawl/internal/dom"
)

// Extract walks the current DOM and appends one record per comment in
// root-major order: a root, then all of its replies, then the next root.
//
// Roots are comment containers not nested in any reply list. Replies are
// the comment containers inside a reply list under a root; anything deeper
// is grouped under that same root. A cancelled ctx stops the walk and the
// records built so far are kept.
func (s *Session) Extract(ctx context.Context, page dom.Scope) error {
	roots, err := page.Find(ctx, dom.Query{Selector: s.sel.Comment, Outside: s.sel.ReplyList})
	if err != nil {
		return fmt.Errorf("failed to find root comments: %w", err)
	}
	s.logger.Info("Found root comments", zap.Int("count", len(roots)))

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := s.Build(ctx, root, nil)
		if err != nil {
			// its replies are only reachable through this root
			s.logger.Warn("Skipping root comment", zap.Error(err))
			continue
		}
		s.records = append(s.records, rec)

		replies, err := root.Find(ctx, dom.Query{Selector: s.sel.Comment, Within: s.sel.ReplyList})
		if err != nil {
			s.logger.Warn("Failed to find replies", zap.Int("root", rec.ID), zap.Error(err))
			continue
		}
		s.logger.Debug("Found replies", zap.Int("root", rec.ID), zap.Int("count", len(replies)))

		for _, el := range replies {
			if err := ctx.Err(); err != nil {
				return err
			}
			reply, err := s.Build(ctx, el, &rec)
			if err != nil {
				s.logger.Warn("Skipping reply", zap.Int("root", rec.ID), zap.Error(err))
				continue
			}
			s.records = append(s.records, reply)
		}
	}

	return nil
}
