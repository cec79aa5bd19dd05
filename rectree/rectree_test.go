package rectree

import (
	"context"
	"testing"

	"github.com/hazyhaar/aprexport/session"
	"github.com/hazyhaar/aprexport/site"
	"github.com/hazyhaar/aprexport/site/sitetest"
	"github.com/hazyhaar/aprexport/uicap"
	"github.com/hazyhaar/aprexport/uicap/uitest"
)

func openRecords(t *testing.T, c sitetest.Client) (*sitetest.App, *Walker) {
	t.Helper()
	ctx := context.Background()
	app := sitetest.New(c)
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
	return app, New(s, "")
}

func TestFolders(t *testing.T) {
	ctx := context.Background()
	_, w := openRecords(t, sitetest.Client{Name: "Baker", ID: "7", Groups: []sitetest.Group{
		{Title: "06/08/2023 HRT LABS", HasFolder: true, Docs: []string{"Consent", "Labs"}, Others: []string{"Photos"}},
		{Title: "01/02/2024 Intake", Others: []string{"Consents"}},
		{Title: "03/04/2024 Botox", HasFolder: true, Docs: []string{"Chart"}},
	}})

	folders := w.Folders(ctx)
	if len(folders) != 2 {
		t.Fatalf("folders: got %d, want 2", len(folders))
	}
	if folders[0].Group.Title != "06/08/2023 HRT LABS" || folders[1].Group.Title != "03/04/2024 Botox" {
		t.Errorf("order: got %q, %q", folders[0].Group.Title, folders[1].Group.Title)
	}

	var names []string
	for doc := range w.Documents(ctx, folders[0]) {
		names = append(names, doc.Entry().DisplayName)
		if doc.Entry().Position != len(names)-1 {
			t.Errorf("position: got %d, want %d", doc.Entry().Position, len(names)-1)
		}
		el, err := doc.Resolve(ctx)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if txt, _ := el.Text(ctx); txt != doc.Entry().DisplayName {
			t.Errorf("resolved %q for %q", txt, doc.Entry().DisplayName)
		}
	}
	if len(names) != 2 || names[0] != "Consent" || names[1] != "Labs" {
		t.Errorf("documents: got %v", names)
	}
}

func TestFolders_NoneMatching(t *testing.T) {
	_, w := openRecords(t, sitetest.Client{Name: "Baker", ID: "7", Groups: []sitetest.Group{
		{Title: "01/02/2024 Intake", Others: []string{"Consents"}},
	}})
	if got := w.Folders(context.Background()); len(got) != 0 {
		t.Errorf("folders: got %d, want 0", len(got))
	}
}

func TestFolders_NoGroups(t *testing.T) {
	_, w := openRecords(t, sitetest.Client{Name: "Baker", ID: "7"})
	if got := w.Folders(context.Background()); got != nil {
		t.Errorf("folders: got %v, want nil", got)
	}
}

func TestDocuments_ReexpandsCollapsedFolder(t *testing.T) {
	ctx := context.Background()
	app, w := openRecords(t, sitetest.Client{Name: "Baker", ID: "7", Groups: []sitetest.Group{
		{Title: "06/08/2023 HRT LABS", HasFolder: true, Docs: []string{"Consent", "Labs"}},
	}})
	folders := w.Folders(ctx)
	if len(folders) != 1 {
		t.Fatalf("folders: got %d", len(folders))
	}

	// Collapse the group behind the walker's back.
	caret, _ := app.Page.Find(ctx, site.GroupCaret)
	_ = caret.Click(ctx, uicap.Native)

	n := 0
	for range w.Documents(ctx, folders[0]) {
		n++
	}
	if n != 2 {
		t.Errorf("documents after collapse: got %d, want 2", n)
	}
}

const fixedTree = `<ul id="records">
<li class="parentrec"><span class="caret parentcaret caret-down"><a>05/05/2024 Filler</a></span>
  <ul class="nested active">
    <li><span class="caret caret-down"><a>Treatment Records</a></span>
      <ul class="nested sub-nested active">
        <li id="f_doc0"><div class="slide"><a onclick="launchERForm(1)"><span class="treetextitem">One</span></a></div></li>
        <li id="f_doc1"><div class="slide"><a onclick="launchERForm(2)"><span class="treetextitem"></span></a></div></li>
        <li id="f_doc2"><div class="slide"><a onclick="launchERForm(3)"><span class="treetextitem">Three</span></a></div></li>
      </ul>
    </li>
  </ul>
</li>
</ul>`

func TestDocuments_ShortCollectionSkipsIndex(t *testing.T) {
	ctx := context.Background()
	p := uitest.New(fixedTree)
	s := session.New(session.Config{Page: p, Clock: uitest.NewClock()})
	w := New(s, "")

	folders := w.Folders(ctx)
	if len(folders) != 1 {
		t.Fatalf("folders: got %d", len(folders))
	}
	var got []int
	for doc := range w.Documents(ctx, folders[0]) {
		got = append(got, doc.Entry().Position)
		if doc.Entry().Position == 0 {
			// Viewing the first document drops the last one from the tree.
			p.Doc().Find("#f_doc2").Remove()
		}
		if doc.Entry().Position == 1 && doc.Entry().DisplayName != "File_2" {
			t.Errorf("unnamed entry: got %q, want File_2", doc.Entry().DisplayName)
		}
	}
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("positions: got %v, want [0 1]", got)
	}
}

func TestDocuments_StopsWhenConsumerBreaks(t *testing.T) {
	ctx := context.Background()
	p := uitest.New(fixedTree)
	s := session.New(session.Config{Page: p, Clock: uitest.NewClock()})
	w := New(s, "")
	folders := w.Folders(ctx)
	n := 0
	for range w.Documents(ctx, folders[0]) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("yielded %d", n)
	}
}
