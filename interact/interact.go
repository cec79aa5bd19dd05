// CLAUDE:SUMMARY Ordered strategy executor: tries interaction strategies in sequence until one succeeds.
// Package interact runs ordered fallback chains of UI interaction strategies
// (native click, scripted click, direct function call, ...). Each strategy is
// tried in turn; the first success wins and the failures of earlier attempts
// are only logged.
package interact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/aprexport/uicap"
)

// ErrExhausted is returned when every strategy failed.
var ErrExhausted = errors.New("interact: all strategies failed")

// Strategy is one way of achieving an interaction.
type Strategy struct {
	Name string
	Do   func(ctx context.Context) error
}

// Run tries strategies in order and returns the name of the one that
// succeeded. Context cancellation stops the chain: the caller gave up, the
// remaining strategies would not help.
func Run(ctx context.Context, logger *slog.Logger, op string, strategies ...Strategy) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var errs []error
	for _, s := range strategies {
		err := s.Do(ctx)
		if err == nil {
			if len(errs) > 0 {
				logger.DebugContext(ctx, "interact: fallback succeeded", "op", op, "strategy", s.Name, "failed", len(errs))
			}
			return s.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		if ctx.Err() != nil {
			return "", errors.Join(append(errs, ctx.Err())...)
		}
		logger.DebugContext(ctx, "interact: strategy failed", "op", op, "strategy", s.Name, "error", err)
	}
	return "", fmt.Errorf("%w: %s: %w", ErrExhausted, op, errors.Join(errs...))
}

// Click clicks el natively and falls back to a scripted click.
func Click(ctx context.Context, logger *slog.Logger, what string, el uicap.Element) (string, error) {
	return Run(ctx, logger, "click "+what, ClickStrategies(el)...)
}

// ClickStrategies returns the native then scripted click strategies for el.
func ClickStrategies(el uicap.Element) []Strategy {
	return []Strategy{
		{Name: "native", Do: func(ctx context.Context) error { return el.Click(ctx, uicap.Native) }},
		{Name: "scripted", Do: func(ctx context.Context) error { return el.Click(ctx, uicap.Scripted) }},
	}
}

// CallStrategy invokes a page function as a strategy.
func CallStrategy(page uicap.Page, fn string, args ...any) Strategy {
	return Strategy{
		Name: "call " + fn,
		Do:   func(ctx context.Context) error { return page.Call(ctx, fn, args...) },
	}
}
