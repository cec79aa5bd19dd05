package portal

import (
	"context"
	"errors"
	"testing"

	"github.com/hazyhaar/aprexport/session"
	"github.com/hazyhaar/aprexport/site"
	"github.com/hazyhaar/aprexport/site/sitetest"
	"github.com/hazyhaar/aprexport/transient"
	"github.com/hazyhaar/aprexport/uicap"
	"github.com/hazyhaar/aprexport/uicap/uitest"
)

func newPortal(app *sitetest.App) *Portal {
	s := session.New(session.Config{Page: app.Page, Clock: uitest.NewClock()})
	return New(s, transient.New(s))
}

// onClient leaves the app on a client page with its records tab open.
func onClient(t *testing.T, app *sitetest.App) {
	t.Helper()
	ctx := context.Background()
	app.ShowList()
	row, err := app.Page.Find(ctx, site.ClientRows)
	if err != nil {
		t.Fatal(err)
	}
	if err := row.Click(ctx, uicap.Native); err != nil {
		t.Fatal(err)
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	app := sitetest.New(sitetest.Letter("B", 1)...)
	p := newPortal(app)
	if err := p.Login(ctx, Credentials{Username: "ann", Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	if view, _, _ := app.State(); view != "home" {
		t.Errorf("view: got %q, want home", view)
	}
	if app.Page.Count("navigate:"+site.LoginURL) != 1 || app.Page.Count("click:#btnSignin") != 1 {
		t.Errorf("events: %v", app.Page.Events())
	}
}

func TestOpenList(t *testing.T) {
	app := sitetest.New(sitetest.Letter("B", 1)...)
	p := newPortal(app)
	if err := p.OpenList(context.Background()); err != nil {
		t.Fatal(err)
	}
	if view, _, _ := app.State(); view != "list" {
		t.Errorf("view: got %q", view)
	}
}

func TestReturnToList_Menu(t *testing.T) {
	app := sitetest.New(sitetest.Letter("B", 3)...)
	onClient(t, app)
	p := newPortal(app)
	if err := p.ReturnToList(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !p.OnList(context.Background()) {
		t.Error("not on list")
	}
	if app.Page.Count("navigate:"+site.ClientListURL) != 0 {
		t.Error("direct URL used although the menu works")
	}
}

func TestReturnToList_PageNavWhenMenuMissing(t *testing.T) {
	app := sitetest.New(sitetest.Letter("B", 3)...)
	app.BrokenMenu = true
	onClient(t, app)
	p := newPortal(app)
	if err := p.ReturnToList(context.Background()); err != nil {
		t.Fatal(err)
	}
	if app.Page.Count("call:"+site.FnPageNav) != 1 {
		t.Errorf("events: %v", app.Page.Events())
	}
}

func TestReturnToList_Unrecoverable(t *testing.T) {
	app := sitetest.New(sitetest.Letter("B", 3)...)
	onClient(t, app)
	app.BrokenList = true
	p := newPortal(app)
	err := p.ReturnToList(context.Background())
	if !errors.Is(err, ErrUnrecoverableNavigation) {
		t.Fatalf("got %v, want ErrUnrecoverableNavigation", err)
	}
	if app.Page.Count("navigate:"+site.ClientListURL) != 1 {
		t.Errorf("direct URL not attempted: %v", app.Page.Events())
	}
}

func TestReturnToList_IgnoresCancellation(t *testing.T) {
	app := sitetest.New(sitetest.Letter("B", 3)...)
	onClient(t, app)
	p := newPortal(app)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.ReturnToList(ctx); err != nil {
		t.Fatal(err)
	}
}
