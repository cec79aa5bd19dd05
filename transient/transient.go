// CLAUDE:SUMMARY Transient-UI resolver: waits out spinners and loading rows, dismisses interstitials, toasts and stray overlays.
// Package transient deals with the UI that appears and disappears outside the
// exporter's control: the busy spinner, the "Loading..." table placeholder,
// the client-note interstitial, toasts and leftover slides. Every operation is
// best effort; callers proceed whatever the outcome.
package transient

import (
	"context"
	"time"

	"github.com/hazyhaar/aprexport/interact"
	"github.com/hazyhaar/aprexport/session"
	"github.com/hazyhaar/aprexport/site"
	"github.com/hazyhaar/aprexport/uicap"
)

// Resolver awaits and dismisses transient UI.
type Resolver struct {
	s *session.Session
}

// New returns a Resolver bound to s.
func New(s *session.Session) *Resolver {
	return &Resolver{s: s}
}

// AwaitStable polls until no spinner, loading placeholder or interstitial is
// visible. An interstitial found while polling is dismissed actively. It
// returns false when the UI did not settle within timeout.
func (r *Resolver) AwaitStable(ctx context.Context, timeout time.Duration) bool {
	page := r.s.Page
	ok := r.s.WaitUntil(ctx, timeout, func(ctx context.Context) bool {
		if uicap.VisibleExists(ctx, page, site.Interstitial) {
			r.DismissInterstitial(ctx, 0)
			return false
		}
		return !uicap.VisibleExists(ctx, page, site.Spinner) &&
			!uicap.VisibleExists(ctx, page, site.LoadingRow)
	})
	if !ok {
		r.s.Logger.WarnContext(ctx, "transient: ui did not settle", "timeout", timeout)
	}
	return ok
}

// DismissInterstitial waits up to appearWithin for the client-note
// interstitial and closes it. It reports whether the interstitial appeared.
func (r *Resolver) DismissInterstitial(ctx context.Context, appearWithin time.Duration) bool {
	page := r.s.Page
	modal, ok := r.s.WaitFor(ctx, page, site.Interstitial, appearWithin)
	if !ok {
		return false
	}

	strategies := []interact.Strategy{}
	if closer, err := uicap.FirstVisible(ctx, page, site.InterstitialClose); err == nil {
		strategies = append(strategies, interact.ClickStrategies(closer)...)
	}
	strategies = append(strategies,
		interact.Strategy{Name: "force-hide", Do: modal.Hide},
		interact.Strategy{Name: "escape", Do: func(ctx context.Context) error {
			return page.Press(ctx, uicap.KeyEscape)
		}},
	)
	how, err := interact.Run(ctx, r.s.Logger, "dismiss interstitial", strategies...)
	if err != nil {
		r.s.Logger.WarnContext(ctx, "transient: interstitial not dismissed", "error", err)
	} else {
		r.s.Logger.InfoContext(ctx, "transient: interstitial dismissed", "via", how)
	}
	r.s.Pause(ctx, r.s.Timing.ModalSettle)
	return true
}

// RemoveToasts detaches every notification toast so none can cover the
// viewer controls. It returns how many were removed.
func (r *Resolver) RemoveToasts(ctx context.Context) int {
	toasts, err := r.s.Page.FindAll(ctx, site.Toasts)
	if err != nil {
		return 0
	}
	n := 0
	for _, t := range toasts {
		if t.Remove(ctx) == nil {
			n++
		}
	}
	if n > 0 {
		r.s.Logger.DebugContext(ctx, "transient: toasts removed", "count", n)
	}
	return n
}

// CleanupOverlays closes slides, "×" buttons and blocking modals left behind
// by the records tab, then sends Escape. It returns how many overlays were
// closed.
func (r *Resolver) CleanupOverlays(ctx context.Context) int {
	page := r.s.Page
	n := r.clickVisible(ctx, site.ViewerClose[0], "custom slide")
	n += r.clickVisible(ctx, site.CloseX, "close button")
	_ = page.Press(ctx, uicap.KeyEscape)

	modals, _ := page.FindAll(ctx, site.BlockingModals)
	for _, m := range modals {
		if v, err := m.Visible(ctx); err != nil || !v {
			continue
		}
		closer, err := m.Find(ctx, site.ModalClose)
		if err == nil && closer.Click(ctx, uicap.Native) == nil {
			n++
			continue
		}
		if page.Press(ctx, uicap.KeyEscape) == nil {
			n++
		}
	}
	if n > 0 {
		r.s.Logger.InfoContext(ctx, "transient: overlays closed", "count", n)
		r.s.Pause(ctx, r.s.Timing.CloseSettle)
	}
	return n
}

func (r *Resolver) clickVisible(ctx context.Context, loc uicap.Locator, what string) int {
	els, err := r.s.Page.FindAll(ctx, loc)
	if err != nil {
		return 0
	}
	n := 0
	for _, el := range els {
		if v, err := el.Visible(ctx); err != nil || !v {
			continue
		}
		if r.s.Click(ctx, what, el) == nil {
			n++
		}
	}
	return n
}
