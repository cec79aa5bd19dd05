// CLAUDE:SUMMARY Login and client-list navigation: guided menu/sidebar/script strategies then direct URL, verified by the list marker.
// Package portal signs in and brings the browser back to the client list.
// Returning to the list is what keeps absolute client indexes aligned with
// the displayed rows, so failing to do it ends the run.
package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/aprexport/interact"
	"github.com/hazyhaar/aprexport/session"
	"github.com/hazyhaar/aprexport/site"
	"github.com/hazyhaar/aprexport/transient"
	"github.com/hazyhaar/aprexport/uicap"
)

// ErrUnrecoverableNavigation means every route back to the client list failed.
var ErrUnrecoverableNavigation = errors.New("portal: client list unreachable")

// ErrLogin is returned when the login form does not go away after submit.
var ErrLogin = errors.New("portal: login rejected or timed out")

// menuDelay lets a mega menu or sidebar finish opening.
const menuDelay = time.Second

// Credentials for the login form.
type Credentials struct {
	Username string
	Password string
}

// Portal navigates between the login page, the client pages and the list.
type Portal struct {
	s *session.Session
	t *transient.Resolver
}

// New returns a Portal.
func New(s *session.Session, t *transient.Resolver) *Portal {
	return &Portal{s: s, t: t}
}

// Login opens the login page and submits creds.
func (p *Portal) Login(ctx context.Context, creds Credentials) error {
	page := p.s.Page
	if err := page.Navigate(ctx, site.LoginURL); err != nil {
		return fmt.Errorf("portal: login page: %w", err)
	}
	user, ok := p.s.WaitFor(ctx, page, site.Username, p.s.Timing.Default)
	if !ok {
		return fmt.Errorf("portal: login form: %w", uicap.ErrNotFound)
	}
	if err := user.Input(ctx, creds.Username); err != nil {
		return fmt.Errorf("portal: username: %w", err)
	}
	pass, err := page.Find(ctx, site.Password)
	if err != nil {
		return fmt.Errorf("portal: password field: %w", err)
	}
	if err := pass.Input(ctx, creds.Password); err != nil {
		return fmt.Errorf("portal: password: %w", err)
	}
	submit, err := page.Find(ctx, site.SignIn)
	if err != nil {
		return fmt.Errorf("portal: sign-in button: %w", err)
	}
	if err := p.s.Click(ctx, "sign in", submit); err != nil {
		return fmt.Errorf("portal: sign in: %w", err)
	}
	p.t.AwaitStable(ctx, p.s.Timing.Spinner)
	if !p.s.WaitGone(ctx, site.Username, p.s.Timing.Default) {
		return ErrLogin
	}
	p.s.Logger.InfoContext(ctx, "portal: logged in")
	return nil
}

// OpenList reaches the client list from any page after login.
func (p *Portal) OpenList(ctx context.Context) error {
	how, err := interact.Run(ctx, p.s.Logger, "open client list",
		p.verified("menu", p.viaMenu),
		p.verified("direct url", p.viaURL),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnrecoverableNavigation, err)
	}
	p.s.Logger.InfoContext(ctx, "portal: client list open", "via", how)
	return nil
}

// ReturnToList clears overlays and goes back to the client list, trying the
// guided routes before loading the list URL. It runs to completion even when
// ctx is cancelled, so the browser is never left on a client page.
func (p *Portal) ReturnToList(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	p.t.CleanupOverlays(ctx)

	how, err := interact.Run(ctx, p.s.Logger, "return to client list",
		p.verified("menu", p.viaMenu),
		p.verified("sidebar", p.viaSidebar),
		p.verified("sidebar script", p.viaSidebarScript),
		p.verified("pagenav", p.viaPageNav),
		p.verified("direct url", p.viaURL),
	)
	if err != nil {
		p.s.Logger.ErrorContext(ctx, "portal: client list unreachable", "error", err)
		return fmt.Errorf("%w: %w", ErrUnrecoverableNavigation, err)
	}
	p.s.Logger.InfoContext(ctx, "portal: back on client list", "via", how)
	return nil
}

// OnList reports whether the client list table is displayed.
func (p *Portal) OnList(ctx context.Context) bool {
	return uicap.Exists(ctx, p.s.Page, site.ClientListTable)
}

// verified wraps a route so that it only succeeds once the list is shown.
func (p *Portal) verified(name string, route func(ctx context.Context) error) interact.Strategy {
	return interact.Strategy{Name: name, Do: func(ctx context.Context) error {
		if err := route(ctx); err != nil {
			return err
		}
		p.t.AwaitStable(ctx, p.s.Timing.Spinner)
		if !p.s.WaitUntil(ctx, p.s.Timing.Default, p.OnList) {
			return fmt.Errorf("portal: %s: list not displayed", name)
		}
		p.t.AwaitStable(ctx, p.s.Timing.Loading)
		return nil
	}}
}

func (p *Portal) clickWhenVisible(ctx context.Context, loc uicap.Locator, what string) error {
	el, ok := p.s.WaitFor(ctx, p.s.Page, loc, p.s.Timing.Default)
	if !ok {
		return fmt.Errorf("portal: %s: %w", what, uicap.ErrNotFound)
	}
	return p.s.Click(ctx, what, el)
}

func (p *Portal) viaMenu(ctx context.Context) error {
	if err := p.clickWhenVisible(ctx, site.ClientsMenu, "clients menu"); err != nil {
		return err
	}
	p.s.Pause(ctx, menuDelay)
	return p.clickWhenVisible(ctx, site.ClientListMenu, "client list menu")
}

func (p *Portal) viaSidebar(ctx context.Context) error {
	link, err := p.s.Page.Find(ctx, site.SidebarClient)
	if err != nil {
		return fmt.Errorf("portal: sidebar client: %w", err)
	}
	if err := link.Click(ctx, uicap.Native); err != nil {
		return err
	}
	p.s.Pause(ctx, menuDelay/2)
	list, err := p.s.Page.Find(ctx, site.SidebarClientList)
	if err != nil {
		return fmt.Errorf("portal: sidebar client list: %w", err)
	}
	return list.Click(ctx, uicap.Native)
}

// viaSidebarScript re-expands a collapsed sidebar, scrolls to the top and
// clicks the list entry from script, which works when the entry is covered.
func (p *Portal) viaSidebarScript(ctx context.Context) error {
	if toggle, err := uicap.FirstVisible(ctx, p.s.Page, site.SidebarToggle); err == nil {
		if toggle.Click(ctx, uicap.Native) == nil {
			p.s.Pause(ctx, menuDelay)
		}
	}
	if err := p.s.Page.Call(ctx, site.FnScrollTo, 0, 0); err != nil {
		p.s.Logger.DebugContext(ctx, "portal: scroll to top failed", "error", err)
	}
	p.s.Pause(ctx, menuDelay)
	link, err := p.s.Page.Find(ctx, site.ClientListScript)
	if err != nil {
		return fmt.Errorf("portal: client list link: %w", err)
	}
	return link.Click(ctx, uicap.Scripted)
}

func (p *Portal) viaPageNav(ctx context.Context) error {
	return p.s.Page.Call(ctx, site.FnPageNav, site.ClientListPath, 0)
}

func (p *Portal) viaURL(ctx context.Context) error {
	return p.s.Page.Navigate(ctx, site.ClientListURL)
}
