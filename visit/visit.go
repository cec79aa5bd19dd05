// CLAUDE:SUMMARY Client session driver: opens a client row, dismisses the note interstitial, reads identity, switches to the records tab.
// Package visit opens one client from the list and prepares its records tab.
// It never navigates back; returning to the list is the caller's job and
// must happen whatever Open reports.
package visit

import (
	"context"
	"strings"

	"github.com/hazyhaar/aprexport/session"
	"github.com/hazyhaar/aprexport/site"
	"github.com/hazyhaar/aprexport/transient"
	"github.com/hazyhaar/aprexport/treatment"
	"github.com/hazyhaar/aprexport/uicap"
)

// Visit is what was learned while opening a client.
type Visit struct {
	Identity treatment.ClientIdentity
	// Opened reports that the client row was clicked.
	Opened bool
	// ModalAppeared reports the client-note interstitial.
	ModalAppeared bool
	// RecordsTab reports that the records tab was switched to.
	RecordsTab bool
}

// Driver opens clients.
type Driver struct {
	s *session.Session
	t *transient.Resolver
}

// New returns a Driver.
func New(s *session.Session, t *transient.Resolver) *Driver {
	return &Driver{s: s, t: t}
}

// Open clicks row and walks the client page up to the records tab. On
// failure the identity gathered so far is still returned, with ok false.
func (d *Driver) Open(ctx context.Context, row uicap.Element) (v Visit, ok bool) {
	v.Identity = treatment.UnknownClient()

	if err := d.s.Click(ctx, "client row", row); err != nil {
		d.s.Logger.WarnContext(ctx, "visit: client row not clickable", "error", err)
		return v, false
	}
	v.Opened = true
	d.s.Pause(ctx, d.s.Timing.ClientSettle)

	v.ModalAppeared = d.t.DismissInterstitial(ctx, d.s.Timing.Interstitial)
	v.Identity = d.Identity(ctx)

	if err := d.s.Page.Call(ctx, site.FnChangeClientTab, site.RecordsTab); err != nil {
		d.s.Logger.WarnContext(ctx, "visit: records tab failed", "client", v.Identity.DisplayName, "error", err)
		return v, false
	}
	d.s.Pause(ctx, d.s.Timing.TabSettle)
	v.RecordsTab = true
	return v, true
}

// Identity reads the client name and id from the profile block. Parts that
// cannot be read degrade to treatment.Unknown.
func (d *Driver) Identity(ctx context.Context) treatment.ClientIdentity {
	profile, err := session.Fresh(ctx, func(ctx context.Context) (uicap.Element, error) {
		return d.s.Page.Find(ctx, site.ProfileInfo)
	})
	if err != nil {
		d.s.Logger.WarnContext(ctx, "visit: profile not found", "error", err)
		return treatment.UnknownClient()
	}

	name := readText(ctx, profile, site.ProfileName)
	id := strings.TrimSpace(strings.Replace(readText(ctx, profile, site.ProfileID), "ID:", "", 1))
	ident := treatment.NewClientIdentity(name, id)
	d.s.Logger.InfoContext(ctx, "visit: client identified", "name", ident.DisplayName, "id", ident.ExternalID)
	return ident
}

func readText(ctx context.Context, scope uicap.Element, loc uicap.Locator) string {
	el, err := scope.Find(ctx, loc)
	if err != nil {
		return ""
	}
	txt, err := el.Text(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(txt)
}
