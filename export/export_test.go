package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/aprexport/rectree"
	"github.com/hazyhaar/aprexport/session"
	"github.com/hazyhaar/aprexport/site"
	"github.com/hazyhaar/aprexport/site/sitetest"
	"github.com/hazyhaar/aprexport/treatment"
	"github.com/hazyhaar/aprexport/uicap"
	"github.com/hazyhaar/aprexport/uicap/uitest"
)

const record = "06/08/2023 HRT LABS"

type fixture struct {
	app    *sitetest.App
	dialog *uitest.Dialog
	pipe   *Pipeline
	docs   []rectree.Document
	client treatment.ClientIdentity
	main   string
	dest   string
}

type fakePages struct{ n int }

func (f fakePages) PageCount(string) (int, error) { return f.n, nil }

func setup(t *testing.T, docs ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	app := sitetest.New(sitetest.Client{Name: "Baker, Ann", ID: "44", Groups: []sitetest.Group{
		{Title: record, HasFolder: true, Docs: docs},
	}})
	app.ShowList()
	row, err := app.Page.Find(ctx, site.ClientRows)
	if err != nil {
		t.Fatal(err)
	}
	if err := row.Click(ctx, uicap.Native); err != nil {
		t.Fatal(err)
	}
	if err := app.Page.Call(ctx, site.FnChangeClientTab, site.RecordsTab); err != nil {
		t.Fatal(err)
	}

	s := session.New(session.Config{Page: app.Page, Clock: uitest.NewClock()})
	w := rectree.New(s, "")
	folders := w.Folders(ctx)
	if len(folders) != 1 {
		t.Fatalf("folders: got %d", len(folders))
	}
	var list []rectree.Document
	for d := range w.Documents(ctx, folders[0]) {
		list = append(list, d)
	}

	main := t.TempDir()
	client := treatment.NewClientIdentity("Baker, Ann", "44")
	dialog := &uitest.Dialog{OnSave: app.SaveTo("")}
	return &fixture{
		app:    app,
		dialog: dialog,
		pipe:   New(Config{Session: s, Dialog: dialog, MainFolder: main, Pages: fakePages{n: 2}}),
		docs:   list,
		client: client,
		main:   main,
		dest:   filepath.Join(main, client.FolderKey),
	}
}

func TestExport_Saved(t *testing.T) {
	f := setup(t, "Consent")
	rec := f.pipe.Export(context.Background(), f.docs[0], f.client, record, f.dest)

	if !rec.Succeeded || rec.RecoveredViaFallback || rec.State != treatment.StateClosed {
		t.Fatalf("record: %+v", rec)
	}
	want := filepath.Join(f.dest, "2023-06-08_HRT LABS Consent_Treatment_Records_Baker, Ann.pdf")
	if rec.TargetPath != want {
		t.Errorf("TargetPath:\n got %q\nwant %q", rec.TargetPath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("file: %v", err)
	}
	if rec.Pages != 2 {
		t.Errorf("pages: got %d", rec.Pages)
	}
	if got := strings.Join(f.dialog.Calls, "|"); got != "print|save:"+want {
		t.Errorf("dialog calls: %s", got)
	}
	if got := strings.Join(f.app.Trace(), "|"); got != "open:Consent|print:Consent|close:Consent" {
		t.Errorf("trace: %s", got)
	}
}

func TestExport_FallbackRelocates(t *testing.T) {
	f := setup(t, "Consent")
	f.dialog.OnSave = f.app.SaveTo(f.main)

	rec := f.pipe.Export(context.Background(), f.docs[0], f.client, record, f.dest)
	if !rec.Succeeded || !rec.RecoveredViaFallback {
		t.Fatalf("record: %+v", rec)
	}
	if _, err := os.Stat(rec.TargetPath); err != nil {
		t.Errorf("target missing after relocation: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.main, "Treatment Record.pdf")); !os.IsNotExist(err) {
		t.Errorf("stray file left in main folder: %v", err)
	}
}

func TestExport_IgnoresStalePDFs(t *testing.T) {
	f := setup(t, "Consent")
	f.dialog.OnSave = nil // nothing is written

	old := filepath.Join(f.main, "earlier.pdf")
	if err := os.WriteFile(old, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	rec := f.pipe.Export(context.Background(), f.docs[0], f.client, record, f.dest)
	if rec.Succeeded || rec.State != treatment.StateFailed || rec.FailedAt != treatment.StateSaved {
		t.Fatalf("record: %+v", rec)
	}
	if !strings.Contains(rec.Reason, ErrNoArtifact.Error()) {
		t.Errorf("reason: %q", rec.Reason)
	}
	if _, err := os.Stat(old); err != nil {
		t.Errorf("older pdf was moved: %v", err)
	}
	trace := f.app.Trace()
	if trace[len(trace)-1] != "close:Consent" {
		t.Errorf("viewer left open after failure: %v", trace)
	}
}

func TestExport_ScriptedPrintFallback(t *testing.T) {
	f := setup(t, "Consent")
	f.app.Page.FailNativeClicks("#printKey")

	rec := f.pipe.Export(context.Background(), f.docs[0], f.client, record, f.dest)
	if !rec.Succeeded {
		t.Fatalf("record: %+v", rec)
	}
	if f.app.Page.Count("click:#printKey") != 1 {
		t.Errorf("events: %v", f.app.Page.Events())
	}
}

func TestExport_RunPrintFallback(t *testing.T) {
	f := setup(t, "Consent")
	f.app.NoPrintKey = true

	rec := f.pipe.Export(context.Background(), f.docs[0], f.client, record, f.dest)
	if !rec.Succeeded {
		t.Fatalf("record: %+v", rec)
	}
	if f.app.Page.Count("call:"+site.FnRunPrint) != 1 {
		t.Errorf("events: %v", f.app.Page.Events())
	}
}

type missingDoc struct{}

func (missingDoc) Entry() treatment.DocumentEntry {
	return treatment.DocumentEntry{DisplayName: "Gone", Position: 9}
}

func (missingDoc) Resolve(context.Context) (uicap.Element, error) {
	return nil, uicap.ErrNotFound
}

func TestExport_EntryNotClickable(t *testing.T) {
	f := setup(t, "Consent")
	rec := f.pipe.Export(context.Background(), missingDoc{}, f.client, record, f.dest)
	if rec.Succeeded || rec.FailedAt != treatment.StateIdle {
		t.Fatalf("record: %+v", rec)
	}
	if len(f.dialog.Calls) != 0 {
		t.Errorf("dialog driven for an unopened document: %v", f.dialog.Calls)
	}
}

func TestExport_TotalOrdering(t *testing.T) {
	f := setup(t, "Consent", "Labs", "Chart")
	ctx := context.Background()
	for _, d := range f.docs {
		if rec := f.pipe.Export(ctx, d, f.client, record, f.dest); !rec.Succeeded {
			t.Fatalf("%s: %+v", d.Entry().DisplayName, rec)
		}
	}
	open := ""
	for _, ev := range f.app.Trace() {
		kind, doc, _ := strings.Cut(ev, ":")
		switch kind {
		case "open":
			if open != "" {
				t.Fatalf("%s opened while %s still open", doc, open)
			}
			open = doc
		case "close":
			if open != doc {
				t.Fatalf("closed %s, open was %q", doc, open)
			}
			open = ""
		}
	}
	entries, _ := os.ReadDir(f.dest)
	if len(entries) != 3 {
		t.Errorf("files: got %d, want 3", len(entries))
	}
}

func TestExport_IgnoresCancellation(t *testing.T) {
	f := setup(t, "Consent")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := f.pipe.Export(ctx, f.docs[0], f.client, record, f.dest)
	if !rec.Succeeded {
		t.Fatalf("entered export abandoned on cancel: %+v", rec)
	}
}

type panicDoc struct{}

func (panicDoc) Entry() treatment.DocumentEntry { return treatment.DocumentEntry{DisplayName: "P"} }
func (panicDoc) Resolve(context.Context) (uicap.Element, error) {
	panic("driver crashed")
}

func TestExport_PanicBecomesFailure(t *testing.T) {
	f := setup(t, "Consent")
	rec := f.pipe.Export(context.Background(), panicDoc{}, f.client, record, f.dest)
	if rec.Succeeded || rec.State != treatment.StateFailed {
		t.Fatalf("record: %+v", rec)
	}
}

func TestNewestPDF(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	now := time.Now()
	write := func(dir, name string, mod time.Time) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("%PDF"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(p, mod, mod); err != nil {
			t.Fatal(err)
		}
		return p
	}
	write(a, "old.pdf", now.Add(-time.Hour))
	write(a, "notes.txt", now.Add(time.Minute))
	want := write(b, "new.PDF", now.Add(2*time.Second))
	write(a, "mid.pdf", now.Add(time.Second))

	got, ok := newestPDF(now.Add(-time.Minute), nil, a, b, "")
	if !ok || got != want {
		t.Errorf("newestPDF: got %q, want %q", got, want)
	}
	got, ok = newestPDF(now.Add(-time.Minute), func(p string) bool { return p == want }, a, b)
	if !ok || filepath.Base(got) != "mid.pdf" {
		t.Errorf("newestPDF with skip: got %q", got)
	}
	if _, ok := newestPDF(now.Add(time.Hour), nil, a, b); ok {
		t.Error("want no candidate newer than since")
	}
}

func TestRelocate(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.pdf")
	dst := filepath.Join(dir, "client", "b.pdf")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := relocate(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("src still present: %v", err)
	}
	if b, _ := os.ReadFile(dst); string(b) != "x" {
		t.Errorf("dst content: %q", b)
	}
}

func TestPDFInspector_InvalidFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.pdf")
	if err := os.WriteFile(p, []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := (PDFInspector{}).PageCount(p); err == nil {
		t.Error("want error for invalid pdf")
	}
}
