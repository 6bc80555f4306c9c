package crawler

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ibeckermayer/commentcrawl/internal/config"
	"github.com/ibeckermayer/commentcrawl/internal/dom"
	"github.com/ibeckermayer/commentcrawl/internal/logging"
	"github.com/ibeckermayer/commentcrawl/internal/types"
)

// State of the expansion loop
type State int

const (
	Expanding State = iota
	Idle
	Done
)

func (s State) String() string {
	switch s {
	case Expanding:
		return "expanding"
	case Idle:
		return "idle"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Why the loop stopped
const (
	ReasonIdle        = "idle limit reached"
	ReasonMaxAttempts = "max attempts reached"
)

// Machine is the round counter behind the expansion loop. It moves between
// Expanding and Idle(n) after each round and ends in Done once either bound
// is hit.
type Machine struct {
	maxAttempts int
	idleLimit   int
	state       State
	attempts    int
	idle        int
}

// NewMachine starts in Expanding, or in Done if a bound is not positive
func NewMachine(maxAttempts, idleLimit int) *Machine {
	m := &Machine{maxAttempts: maxAttempts, idleLimit: idleLimit}
	if maxAttempts <= 0 || idleLimit <= 0 {
		m.state = Done
	}
	return m
}

// Advance records one finished round
func (m *Machine) Advance(clickedAny bool) State {
	if m.state == Done {
		return Done
	}

	if clickedAny {
		m.idle = 0
	} else {
		m.idle++
	}
	m.attempts++

	switch {
	case m.idle >= m.idleLimit || m.attempts >= m.maxAttempts:
		m.state = Done
	case m.idle > 0:
		m.state = Idle
	default:
		m.state = Expanding
	}
	return m.state
}

func (m *Machine) State() State    { return m.state }
func (m *Machine) Attempts() int   { return m.attempts }
func (m *Machine) IdleRounds() int { return m.idle }

// Reason explains a Done state
func (m *Machine) Reason() string {
	if m.idle >= m.idleLimit {
		return ReasonIdle
	}
	return ReasonMaxAttempts
}

// Expander grows the comment section by scrolling and invoking "show more
// replies" and "load more" controls until the page stops changing.
type Expander struct {
	page   dom.Page
	cfg    config.ExpandConfig
	sel    config.SelectorsConfig
	clock  Clock
	logger *zap.Logger
}

// NewExpander creates an expander; a nil clock sleeps for real
func NewExpander(page dom.Page, cfg config.ExpandConfig, sel config.SelectorsConfig, clock Clock, logger *zap.Logger) *Expander {
	if clock == nil {
		clock = RealClock{}
	}
	return &Expander{
		page:   page,
		cfg:    cfg,
		sel:    sel,
		clock:  clock,
		logger: logging.OrNop(logger),
	}
}

// Run drives rounds until the machine is Done. A failed scroll or pause
// aborts the loop; the page is left as far as it got and the caller goes
// on to extraction.
func (e *Expander) Run(ctx context.Context) types.ExpansionStats {
	m := NewMachine(e.cfg.MaxAttempts, e.cfg.IdleLimit)
	var stats types.ExpansionStats

	for m.State() != Done {
		clicks, err := e.round(ctx)
		stats.Clicks += clicks
		if err != nil {
			e.logger.Warn("Expansion aborted", zap.Int("attempts", m.Attempts()), zap.Error(err))
			stats.Attempts = m.Attempts()
			stats.IdleRounds = m.IdleRounds()
			stats.Aborted = true
			stats.Reason = err.Error()
			return stats
		}

		state := m.Advance(clicks > 0)
		if state == Idle {
			e.logger.Debug("No controls found",
				zap.Int("idle", m.IdleRounds()),
				zap.Int("limit", e.cfg.IdleLimit))
		}
	}

	stats.Attempts = m.Attempts()
	stats.IdleRounds = m.IdleRounds()
	stats.Reason = m.Reason()
	e.logger.Info("Expansion finished",
		zap.Int("attempts", stats.Attempts),
		zap.Int("clicks", stats.Clicks),
		zap.String("reason", stats.Reason))
	return stats
}

// round scrolls once and invokes every interactable control. Only the
// scroll and the pauses can fail it.
func (e *Expander) round(ctx context.Context) (int, error) {
	if err := e.page.ScrollToBottom(ctx); err != nil {
		return 0, fmt.Errorf("failed to scroll: %w", err)
	}
	if err := e.clock.Sleep(ctx, e.cfg.ScrollPause); err != nil {
		return 0, fmt.Errorf("scroll pause interrupted: %w", err)
	}

	clicks, err := e.invokeAll(ctx, e.sel.ShowMoreReplies, nil)
	if err != nil {
		return clicks, err
	}

	for _, selector := range e.sel.LoadMore {
		n, err := e.invokeAll(ctx, selector, e.sel.LoadMoreKeywords)
		clicks += n
		if err != nil {
			return clicks, err
		}
	}

	return clicks, nil
}

// invokeAll clicks every visible, enabled match of selector whose text
// contains one of keywords (any text if keywords is empty). Failures on a
// single control skip that control.
func (e *Expander) invokeAll(ctx context.Context, selector string, keywords []string) (int, error) {
	if selector == "" {
		return 0, nil
	}

	els, err := e.page.Find(ctx, dom.CSS(selector))
	if err != nil {
		e.logger.Debug("Control query failed", zap.String("selector", selector), zap.Error(err))
		return 0, nil
	}

	clicks := 0
	for _, el := range els {
		if !dom.Interactable(ctx, el) {
			continue
		}

		var text string
		if len(keywords) > 0 {
			text, err = el.Text(ctx)
			if err != nil || !ContainsKeyword(text, keywords) {
				continue
			}
		}

		if err := dom.Invoke(ctx, el); err != nil {
			e.logger.Debug("Control click failed", zap.String("selector", selector), zap.Error(err))
			continue
		}
		clicks++
		e.logger.Debug("Clicked control", zap.String("selector", selector), zap.String("text", text))

		if err := e.clock.Sleep(ctx, e.cfg.ClickPause); err != nil {
			return clicks, fmt.Errorf("click pause interrupted: %w", err)
		}
	}
	return clicks, nil
}

// ContainsKeyword reports whether text contains any keyword, ignoring case
func ContainsKeyword(text string, keywords []string) bool {
	text = strings.ToLower(text)
	for _, k := range keywords {
		if k != "" && strings.Contains(text, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
