// CLAUDE:SUMMARY Pagination navigator: absolute client index to page/offset, letter filter, direct page control or counted next clicks.
// Package pager positions the client list on the page holding a given
// absolute client index of one letter's filtered list.
package pager

import (
	"context"
	"strconv"

	"github.com/hazyhaar/aprexport/session"
	"github.com/hazyhaar/aprexport/site"
	"github.com/hazyhaar/aprexport/transient"
	"github.com/hazyhaar/aprexport/uicap"
)

// PageSize is the number of rows the client list renders per page.
const PageSize = 100

// Locate maps a 1-based absolute index to its 1-based page and 0-based
// offset on that page.
func Locate(index int) (page, offset int) {
	if index < 1 {
		index = 1
	}
	return (index-1)/PageSize + 1, (index - 1) % PageSize
}

// Navigator drives the client list.
type Navigator struct {
	s *session.Session
	t *transient.Resolver
}

// New returns a Navigator.
func New(s *session.Session, t *transient.Resolver) *Navigator {
	return &Navigator{s: s, t: t}
}

// ApplyLetter filters the list by letter. Applying the filter always lands
// on page 1 of that letter, so repeating it changes nothing.
func (n *Navigator) ApplyLetter(ctx context.Context, letter string) bool {
	link, ok := n.s.WaitFor(ctx, n.s.Page, site.LetterFilter(letter), n.s.Timing.Default)
	if !ok {
		n.s.Logger.WarnContext(ctx, "pager: letter filter not found", "letter", letter)
		return false
	}
	if err := n.s.Click(ctx, "letter "+letter, link); err != nil {
		n.s.Logger.WarnContext(ctx, "pager: letter click failed", "letter", letter, "error", err)
		return false
	}
	n.t.AwaitStable(ctx, n.s.Timing.Spinner)
	n.s.Pause(ctx, n.s.Timing.LetterSettle)
	n.t.AwaitStable(ctx, n.s.Timing.Loading)
	return true
}

// GotoPage applies the letter filter then moves to page. The direct page
// number control is preferred; when it is not rendered the "next" control is
// activated exactly page-1 times. False means the list could not be moved
// and the sweep must stop.
func (n *Navigator) GotoPage(ctx context.Context, letter string, page int) bool {
	if !n.ApplyLetter(ctx, letter) {
		return false
	}
	if page <= 1 {
		return true
	}

	log := n.s.Logger.With("letter", letter, "page", page)
	if ctl, ok := n.s.WaitFor(ctx, n.s.Page, site.PageNumber(strconv.Itoa(page)), n.s.Timing.PageControl); ok {
		err := n.s.Click(ctx, "page "+strconv.Itoa(page), ctl)
		if err == nil {
			n.settle(ctx)
			log.InfoContext(ctx, "pager: page selected directly")
			return true
		}
		log.WarnContext(ctx, "pager: page control click failed", "error", err)
	}

	log.InfoContext(ctx, "pager: no direct page control, stepping with next", "steps", page-1)
	for step := 1; step < page; step++ {
		if ctx.Err() != nil {
			return false
		}
		next, err := session.Fresh(ctx, n.nextControl)
		if err != nil {
			log.WarnContext(ctx, "pager: next control unavailable", "step", step, "error", err)
			return false
		}
		if err := n.s.Click(ctx, "next page", next); err != nil {
			log.WarnContext(ctx, "pager: next click failed", "step", step, "error", err)
			return false
		}
		n.settle(ctx)
	}
	return true
}

// Rows returns the client links of the current page in display order.
func (n *Navigator) Rows(ctx context.Context) ([]uicap.Element, error) {
	return n.s.Page.FindAll(ctx, site.ClientRows)
}

// HasNextPage reports whether the "next" control exists and is enabled.
func (n *Navigator) HasNextPage(ctx context.Context) bool {
	_, err := n.nextControl(ctx)
	return err == nil
}

// nextControl returns the enabled "next" control or ErrNotFound.
func (n *Navigator) nextControl(ctx context.Context) (uicap.Element, error) {
	next, err := n.s.Page.Find(ctx, site.NextPage)
	if err != nil {
		return nil, err
	}
	disabled, err := uicap.HasClass(ctx, next, site.DisabledClass)
	if err != nil {
		return nil, err
	}
	if disabled {
		return nil, uicap.ErrNotFound
	}
	return next, nil
}

func (n *Navigator) settle(ctx context.Context) {
	n.t.AwaitStable(ctx, n.s.Timing.Loading)
	n.s.Pause(ctx, n.s.Timing.PageSettle)
}
