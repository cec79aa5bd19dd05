// CLAUDE:SUMMARY Scripted in-memory AestheticsPro: client list, profile, record tree and viewer rendered into a uitest.Page.
// Package sitetest simulates the target application on top of uitest.Page.
//
// Every state change re-renders the whole body, so element handles held
// across an interaction go stale exactly as they do on the real site.
package sitetest

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/aprexport/site"
	"github.com/hazyhaar/aprexport/uicap"
	"github.com/hazyhaar/aprexport/uicap/uitest"
)

// Group is one record group of a client.
type Group struct {
	Title string
	// Docs are the entries of the records folder. HasFolder false means the
	// group holds no records folder at all.
	Docs      []string
	HasFolder bool
	// Others are sibling sub-folders with other labels.
	Others []string
}

// Client is one row of the client list.
type Client struct {
	Name   string
	ID     string
	Note   bool // shows the client-note interstitial on open
	Groups []Group
	// NoProfile hides the profile block, so identity falls back to Unknown.
	NoProfile bool
}

// App is a fake application. Exported fields configure it before use.
type App struct {
	Page *uitest.Page

	// PageWindow is how many page-number links are rendered on each side of
	// the current page.
	PageWindow int
	// BrokenMenu makes the Clients menu absent so guided returns fail.
	BrokenMenu bool
	// BrokenList makes every route to the list fail.
	BrokenList bool
	// NoPrintKey renders the viewer without its print button, leaving only
	// the page-level print function.
	NoPrintKey bool

	mu       sync.Mutex
	clients  map[string][]Client
	view     string
	letter   string
	page     int
	current  *Client
	note     bool
	records  bool
	expanded map[string]bool
	viewer   string
	printed  string
	trace    []string
}

// New builds an App with clients grouped by the letter of their name.
func New(clients ...Client) *App {
	a := &App{
		Page:       uitest.New(""),
		PageWindow: 2,
		clients:    make(map[string][]Client),
		expanded:   make(map[string]bool),
		view:       "home",
	}
	for _, c := range clients {
		l := strings.ToUpper(c.Name[:1])
		a.clients[l] = append(a.clients[l], c)
	}
	a.wire()
	a.render()
	return a
}

// Letter builds n clients for letter named "<letter>name0001" and so on.
func Letter(letter string, n int) []Client {
	out := make([]Client, n)
	for i := range out {
		out[i] = Client{Name: fmt.Sprintf("%sname%04d", letter, i+1), ID: strconv.Itoa(1000 + i)}
	}
	return out
}

// Trace returns the viewer lifecycle: "open:<doc>", "print:<doc>", "close:<doc>".
func (a *App) Trace() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.trace...)
}

// State returns the current view, letter and page.
func (a *App) State() (view, letter string, page int) {
	return a.view, a.letter, a.page
}

// ShowList jumps straight to the client list, page 1, no filter.
func (a *App) ShowList() {
	a.toList()
}

// Printed returns the document whose print is pending, if any.
func (a *App) Printed() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.printed
}

// SaveTo returns an OnSave hook for uitest.Dialog that writes a small PDF
// when a print is pending. With dir non-empty the file lands in dir under a
// browser-chosen name instead of the typed path.
func (a *App) SaveTo(dir string) func(path string) error {
	return func(path string) error {
		a.mu.Lock()
		doc := a.printed
		a.printed = ""
		a.mu.Unlock()
		if doc == "" {
			return nil
		}
		if dir != "" {
			path = filepath.Join(dir, "Treatment Record.pdf")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		return os.WriteFile(path, []byte("%PDF-1.4\n% "+doc+"\n%%EOF\n"), 0o644)
	}
}

func (a *App) record(ev string) {
	a.mu.Lock()
	a.trace = append(a.trace, ev)
	a.mu.Unlock()
}

func (a *App) wire() {
	p := a.Page
	p.OnNavigate(func(_ *uitest.Page, url string) error {
		switch url {
		case site.ClientListURL:
			if a.BrokenList {
				return fmt.Errorf("sitetest: list unavailable")
			}
			a.toList()
		case site.LoginURL:
			a.view = "login"
			a.render()
		}
		return nil
	})
	p.OnClick("#btnSignin", func(*uitest.Page, *goquery.Selection) error {
		a.view = "home"
		a.render()
		return nil
	})
	p.OnClick("a.menulink", func(*uitest.Page, *goquery.Selection) error {
		if a.BrokenList {
			return nil
		}
		a.toList()
		return nil
	})
	p.OnClick("div.sortingRow a", func(_ *uitest.Page, el *goquery.Selection) error {
		a.letter = strings.TrimSpace(el.Text())
		a.page = 1
		a.render()
		return nil
	})
	p.OnClick("#clientlistTableBody_next", func(_ *uitest.Page, el *goquery.Selection) error {
		if el.HasClass(site.DisabledClass) {
			return nil
		}
		a.page++
		a.render()
		return nil
	})
	p.OnClick("#clientlistTableBody_paginate a", func(_ *uitest.Page, el *goquery.Selection) error {
		n, err := strconv.Atoi(strings.TrimSpace(el.Text()))
		if err == nil {
			a.page = n
			a.render()
		}
		return nil
	})
	p.OnClick("td.clientName a", func(_ *uitest.Page, el *goquery.Selection) error {
		i, _ := strconv.Atoi(el.AttrOr("data-idx", "-1"))
		rows := a.filtered()
		if i < 0 || i >= len(rows) {
			return fmt.Errorf("sitetest: no client %d", i)
		}
		c := rows[i]
		a.current = &c
		a.view = "client"
		a.note = c.Note
		a.records = false
		a.expanded = make(map[string]bool)
		a.render()
		return nil
	})
	p.OnClick("#cboxClose", func(*uitest.Page, *goquery.Selection) error {
		a.note = false
		a.render()
		return nil
	})
	p.OnClick("span.caret", func(_ *uitest.Page, el *goquery.Selection) error {
		key := el.AttrOr("data-key", "")
		a.expanded[key] = !a.expanded[key]
		a.render()
		return nil
	})
	p.OnClick("a[onclick*='launchERForm']", func(_ *uitest.Page, el *goquery.Selection) error {
		a.viewer = el.AttrOr("data-doc", "")
		a.record("open:" + a.viewer)
		a.render()
		return nil
	})
	p.OnClick("#printKey", func(*uitest.Page, *goquery.Selection) error {
		a.print()
		return nil
	})
	p.OnClick(".closeCustomSlide", func(*uitest.Page, *goquery.Selection) error {
		a.closeViewer()
		return nil
	})
	p.OnKey(uicap.KeyEscape, func(*uitest.Page) error {
		a.closeViewer()
		return nil
	})
	p.OnCall(site.FnChangeClientTab, func(_ *uitest.Page, args ...any) error {
		if a.view != "client" {
			return fmt.Errorf("sitetest: changeClientTab is not defined")
		}
		a.records = len(args) == 1 && args[0] == site.RecordsTab
		a.render()
		return nil
	})
	p.OnCall(site.FnRunPrint, func(*uitest.Page, ...any) error {
		if a.viewer == "" {
			return fmt.Errorf("sitetest: no form loaded")
		}
		a.print()
		return nil
	})
	p.OnCall(site.FnPageNav, func(*uitest.Page, ...any) error {
		if a.BrokenList {
			return fmt.Errorf("sitetest: pagenav failed")
		}
		a.toList()
		return nil
	})
	p.OnCall(site.FnScrollTo, func(*uitest.Page, ...any) error { return nil })
}

func (a *App) print() {
	a.mu.Lock()
	a.printed = a.viewer
	a.trace = append(a.trace, "print:"+a.viewer)
	a.mu.Unlock()
}

func (a *App) closeViewer() {
	if a.viewer == "" {
		return
	}
	a.record("close:" + a.viewer)
	a.viewer = ""
	a.render()
}

func (a *App) toList() {
	a.view = "list"
	a.letter = ""
	a.page = 1
	a.current = nil
	a.viewer = ""
	a.render()
}

// filtered returns the rows of the active letter, or every client when no
// letter is applied.
func (a *App) filtered() []Client {
	if a.letter != "" {
		return a.clients[a.letter]
	}
	letters := make([]string, 0, len(a.clients))
	for l := range a.clients {
		letters = append(letters, l)
	}
	sort.Strings(letters)
	var all []Client
	for _, l := range letters {
		all = append(all, a.clients[l]...)
	}
	return all
}

func (a *App) render() {
	var b strings.Builder
	if a.view != "login" && !a.BrokenMenu {
		b.WriteString(`<nav><a class="dc-mega">Clients</a><a class="menulink" onclick="pagenav('clients/client_list/index.cfm', 0)">Client List</a></nav>`)
	}
	switch a.view {
	case "login":
		b.WriteString(`<form><input id="username"><input id="password" type="password"><button id="btnSignin">Sign in</button></form>`)
	case "list":
		a.renderList(&b)
	case "client":
		a.renderClient(&b)
	}
	a.Page.SetBody(b.String())
}

func (a *App) renderList(b *strings.Builder) {
	b.WriteString(`<div class="sortingRow">`)
	for c := 'A'; c <= 'Z'; c++ {
		fmt.Fprintf(b, `<a>%c</a>`, c)
	}
	b.WriteString(`</div><table><tbody id="tblClientLeadListBody">`)

	rows := a.filtered()
	lo := (a.page - 1) * 100
	hi := min(lo+100, len(rows))
	if lo >= hi {
		b.WriteString(`<tr class="dataTables_empty"><td class="dataTables_empty">No matching records found</td></tr>`)
	}
	for i := lo; i < hi; i++ {
		fmt.Fprintf(b, `<tr><td class="clientName"><a data-idx="%d" onclick="clientdetails(%s)">%s</a></td></tr>`,
			i, rows[i].ID, html.EscapeString(rows[i].Name))
	}
	b.WriteString(`</tbody></table><div id="clientlistTableBody_paginate">`)

	last := max(1, (len(rows)+99)/100)
	for n := max(1, a.page-a.PageWindow); n <= min(last, a.page+a.PageWindow); n++ {
		fmt.Fprintf(b, `<a class="paginate_button">%d</a>`, n)
	}
	class := "paginate_button next"
	if a.page >= last {
		class += " disabled"
	}
	fmt.Fprintf(b, `<a id="clientlistTableBody_next" class="%s">Next</a></div>`, class)
}

func (a *App) renderClient(b *strings.Builder) {
	c := a.current
	if !c.NoProfile {
		fmt.Fprintf(b, `<div id="clientProfileInfoDiv"><h5>%s</h5><p>ID: %s</p></div>`, html.EscapeString(c.Name), c.ID)
	}
	if a.note {
		b.WriteString(`<div id="clientnotepop">Client note</div><a id="cboxClose">close</a>`)
	}
	if !a.records {
		return
	}
	b.WriteString(`<ul id="records">`)
	for gi, g := range c.Groups {
		gk := "g" + strconv.Itoa(gi)
		fmt.Fprintf(b, `<li class="parentrec"><span class="caret parentcaret%s" data-key="%s"><a>%s</a></span>`,
			a.down(gk), gk, html.EscapeString(g.Title))
		if a.expanded[gk] {
			b.WriteString(`<ul class="nested active">`)
			for oi, o := range g.Others {
				ok := fmt.Sprintf("%so%d", gk, oi)
				fmt.Fprintf(b, `<li><span class="caret%s" data-key="%s"><a>%s</a></span></li>`, a.down(ok), ok, html.EscapeString(o))
			}
			if g.HasFolder {
				fk := gk + "f"
				fmt.Fprintf(b, `<li><span class="caret%s" data-key="%s"><a>%s</a></span>`, a.down(fk), fk, site.RecordsFolderLabel)
				if a.expanded[fk] {
					b.WriteString(`<ul class="nested sub-nested active">`)
					for di, d := range g.Docs {
						fmt.Fprintf(b, `<li id="%s_doc%d"><div class="slide"><a onclick="launchERForm(%d)" data-doc="%s"><span class="treetextitem">%s</span></a></div></li>`,
							fk, di, di, html.EscapeString(d), html.EscapeString(d))
					}
					b.WriteString(`</ul>`)
				}
				b.WriteString(`</li>`)
			}
			b.WriteString(`</ul>`)
		}
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul>`)

	if a.viewer != "" {
		key := `<a id="printKey">Print</a>`
		if a.NoPrintKey {
			key = ""
		}
		b.WriteString(`<div id="viewer"><div class="er_icons"><div onclick="emailDownloadERC()">Email</div><div onclick="refreshFormERC()">Refresh</div></div>` +
			`<div id="printslide">` + key + `</div>` +
			`<div class="closeCustomSlide nav-customclose"><img src="/img/menu-close.png"></div></div>`)
	}
}

func (a *App) down(key string) string {
	if a.expanded[key] {
		return " " + site.ExpandedClass
	}
	return ""
}
