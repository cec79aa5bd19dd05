package pager

import (
	"context"
	"testing"

	"github.com/hazyhaar/aprexport/session"
	"github.com/hazyhaar/aprexport/site/sitetest"
	"github.com/hazyhaar/aprexport/transient"
	"github.com/hazyhaar/aprexport/uicap/uitest"
)

func TestLocate(t *testing.T) {
	tests := []struct {
		index, page, offset int
	}{
		{1, 1, 0},
		{2, 1, 1},
		{100, 1, 99},
		{101, 2, 0},
		{150, 2, 49},
		{200, 2, 99},
		{201, 3, 0},
		{1000, 10, 99},
	}
	for _, tt := range tests {
		page, offset := Locate(tt.index)
		if page != tt.page || offset != tt.offset {
			t.Errorf("Locate(%d): got (%d,%d), want (%d,%d)", tt.index, page, offset, tt.page, tt.offset)
		}
	}
}

func TestLocate_OffsetRange(t *testing.T) {
	for i := 1; i <= 2500; i++ {
		page, off := Locate(i)
		if off < 0 || off >= PageSize {
			t.Fatalf("Locate(%d): offset %d out of range", i, off)
		}
		if (page-1)*PageSize+off+1 != i {
			t.Fatalf("Locate(%d): (%d,%d) does not map back", i, page, off)
		}
	}
}

func newNavigator(app *sitetest.App) *Navigator {
	s := session.New(session.Config{Page: app.Page, Clock: uitest.NewClock()})
	return New(s, transient.New(s))
}

func TestApplyLetter_Idempotent(t *testing.T) {
	ctx := context.Background()
	app := sitetest.New(append(sitetest.Letter("A", 3), sitetest.Letter("B", 250)...)...)
	app.ShowList()
	n := newNavigator(app)

	if !n.ApplyLetter(ctx, "B") {
		t.Fatal("ApplyLetter: first call failed")
	}
	_, letter1, page1 := app.State()
	rows1, _ := n.Rows(ctx)
	first1, _ := rows1[0].Text(ctx)

	if !n.ApplyLetter(ctx, "B") {
		t.Fatal("ApplyLetter: second call failed")
	}
	_, letter2, page2 := app.State()
	rows2, _ := n.Rows(ctx)
	first2, _ := rows2[0].Text(ctx)

	if letter1 != letter2 || page1 != page2 || len(rows1) != len(rows2) || first1 != first2 {
		t.Errorf("state changed: (%s,%d,%d,%s) then (%s,%d,%d,%s)",
			letter1, page1, len(rows1), first1, letter2, page2, len(rows2), first2)
	}
	if letter2 != "B" || page2 != 1 || len(rows2) != 100 {
		t.Errorf("got letter %s page %d rows %d", letter2, page2, len(rows2))
	}
}

func TestGotoPage_Direct(t *testing.T) {
	ctx := context.Background()
	app := sitetest.New(sitetest.Letter("B", 250)...)
	app.ShowList()
	n := newNavigator(app)

	if !n.GotoPage(ctx, "B", 2) {
		t.Fatal("GotoPage: failed")
	}
	if _, _, page := app.State(); page != 2 {
		t.Errorf("page: got %d, want 2", page)
	}
	if c := app.Page.Count("click:#clientlistTableBody_next"); c != 0 {
		t.Errorf("next clicks: got %d, want 0", c)
	}
	rows, _ := n.Rows(ctx)
	if txt, _ := rows[49].Text(ctx); txt != "Bname0150" {
		t.Errorf("row 49 on page 2: got %q", txt)
	}
}

func TestGotoPage_NextFallback(t *testing.T) {
	ctx := context.Background()
	app := sitetest.New(sitetest.Letter("B", 350)...)
	app.PageWindow = 1
	app.ShowList()
	n := newNavigator(app)

	if !n.GotoPage(ctx, "B", 3) {
		t.Fatal("GotoPage: failed")
	}
	if _, _, page := app.State(); page != 3 {
		t.Errorf("page: got %d, want 3", page)
	}
	if c := app.Page.Count("click:#clientlistTableBody_next"); c != 2 {
		t.Errorf("next clicks: got %d, want exactly 2", c)
	}
}

func TestGotoPage_FirstPageNoAction(t *testing.T) {
	ctx := context.Background()
	app := sitetest.New(sitetest.Letter("B", 250)...)
	app.ShowList()
	n := newNavigator(app)

	if !n.GotoPage(ctx, "B", 1) {
		t.Fatal("GotoPage: failed")
	}
	for _, ev := range app.Page.Events() {
		if ev != "click:a" {
			t.Errorf("unexpected event %q after letter click", ev)
		}
	}
}

func TestGotoPage_FailsPastLastPage(t *testing.T) {
	ctx := context.Background()
	app := sitetest.New(sitetest.Letter("B", 120)...)
	app.PageWindow = 0
	app.ShowList()
	n := newNavigator(app)

	if n.GotoPage(ctx, "B", 4) {
		t.Fatal("GotoPage: want false when next runs out")
	}
}

func TestHasNextPage(t *testing.T) {
	ctx := context.Background()
	app := sitetest.New(sitetest.Letter("B", 120)...)
	app.ShowList()
	n := newNavigator(app)
	n.ApplyLetter(ctx, "B")
	if !n.HasNextPage(ctx) {
		t.Error("page 1 of 2: want next")
	}
	n.GotoPage(ctx, "B", 2)
	if n.HasNextPage(ctx) {
		t.Error("last page: want no next")
	}
}
