package crawler

import (
	"errors"

	"go.uber.org/zap"

	"github.com/ibeckermayer/commentcrawl/internal/config"
	"github.com/ibeckermayer/commentcrawl/internal/logging"
	"github.com/ibeckermayer/commentcrawl/internal/types"
)

// Structural errors. A container that fails with one of these is skipped
// but still consumes an id.
var (
	ErrNilContainer = errors.New("nil comment container")
	ErrNestedReply  = errors.New("parent is itself a reply")
)

// Session owns the id sequence and the records of one crawl. One session
// is one article and one linear pass; it is not safe for concurrent use.
type Session struct {
	sel     config.SelectorsConfig
	logger  *zap.Logger
	nextID  int
	records []types.CommentRecord
}

// NewSession starts an empty session whose first id is 1
func NewSession(sel config.SelectorsConfig, logger *zap.Logger) *Session {
	return &Session{
		sel:    sel,
		logger: logging.OrNop(logger),
		nextID: 1,
	}
}

// take hands out the next id. Every visited container calls it exactly once.
func (s *Session) take() int {
	id := s.nextID
	s.nextID++
	return id
}

// Visited returns how many containers consumed an id
func (s *Session) Visited() int {
	return s.nextID - 1
}

// Records returns the records built so far in extraction order
func (s *Session) Records() []types.CommentRecord {
	out := make([]types.CommentRecord, len(s.records))
	copy(out, s.records)
	return out
}
