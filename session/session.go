// CLAUDE:SUMMARY Session context shared by every component: UI page, clock, timing budgets, logger, bounded waits.
// Package session carries the state shared by every navigation component
// during one run: the UI capability handle, the timing budget, the clock and
// the logger. Its lifetime is one run.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/aprexport/interact"
	"github.com/hazyhaar/aprexport/uicap"
)

// Clock abstracts time so waits can be simulated in tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock uses the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config configures a Session.
type Config struct {
	Page   uicap.Page
	Timing Timing
	Clock  Clock
	Logger *slog.Logger
}

// Session is the explicit context passed to every component.
type Session struct {
	Page   uicap.Page
	Timing Timing
	Clock  Clock
	Logger *slog.Logger
}

// New builds a Session, filling unset timings with defaults.
func New(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Timing.applyDefaults()
	return &Session{
		Page:   cfg.Page,
		Timing: cfg.Timing,
		Clock:  cfg.Clock,
		Logger: cfg.Logger,
	}
}

// Pause blocks for a fixed settle window. Cancellation cuts it short.
func (s *Session) Pause(ctx context.Context, d time.Duration) {
	_ = s.Clock.Sleep(ctx, d)
}

// WaitUntil polls cond every Timing.Poll until it holds or timeout elapses.
// The condition is checked once before any sleep, so a condition that already
// holds costs nothing.
func (s *Session) WaitUntil(ctx context.Context, timeout time.Duration, cond func(ctx context.Context) bool) bool {
	return s.WaitEvery(ctx, timeout, s.Timing.Poll, cond)
}

// WaitEvery is WaitUntil with an explicit polling interval.
func (s *Session) WaitEvery(ctx context.Context, timeout, interval time.Duration, cond func(ctx context.Context) bool) bool {
	if interval <= 0 {
		interval = s.Timing.Poll
	}
	deadline := s.Clock.Now().Add(timeout)
	for {
		if cond(ctx) {
			return true
		}
		if ctx.Err() != nil || !s.Clock.Now().Before(deadline) {
			return false
		}
		if err := s.Clock.Sleep(ctx, interval); err != nil {
			return false
		}
	}
}

// WaitFor polls until loc matches a visible element and returns it.
func (s *Session) WaitFor(ctx context.Context, f uicap.Finder, loc uicap.Locator, timeout time.Duration) (uicap.Element, bool) {
	var found uicap.Element
	ok := s.WaitUntil(ctx, timeout, func(ctx context.Context) bool {
		el, err := uicap.FirstVisible(ctx, f, loc)
		if err != nil {
			return false
		}
		found = el
		return true
	})
	return found, ok
}

// WaitGone polls until no visible element matches loc.
func (s *Session) WaitGone(ctx context.Context, loc uicap.Locator, timeout time.Duration) bool {
	return s.WaitUntil(ctx, timeout, func(ctx context.Context) bool {
		return !uicap.VisibleExists(ctx, s.Page, loc)
	})
}

// Click clicks el natively, falling back to a scripted click.
func (s *Session) Click(ctx context.Context, what string, el uicap.Element) error {
	_, err := interact.Click(ctx, s.Logger, what, el)
	return err
}

// Fresh runs fn, and when it fails with a lookup error runs it once more so
// the second attempt re-resolves everything from scratch.
func Fresh[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err != nil && uicap.Recoverable(err) {
		return fn(ctx)
	}
	return v, err
}
