// CLAUDE:SUMMARY In-memory uicap.Page backed by goquery: scripted click/call/key handlers, staleness and visibility rules.
// Package uitest provides an in-memory implementation of uicap.Page for tests.
//
// The page holds a parsed HTML document. Tests register handlers that mutate
// the document when an element is clicked, a page function is called or a key
// is pressed, which lets a test script the target application's behaviour.
// Handles to nodes that have been detached report uicap.ErrStale, and elements
// under display:none or [hidden] are invisible and reject native clicks.
package uitest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hazyhaar/aprexport/uicap"
)

// ClickFunc handles a click on an element matching a registered selector.
type ClickFunc func(p *Page, el *goquery.Selection) error

// CallFunc handles Page.Call.
type CallFunc func(p *Page, args ...any) error

// Page is an in-memory uicap.Page. It is safe for use by one goroutine at a
// time, matching how the exporter drives a real tab.
type Page struct {
	mu  sync.Mutex
	doc *goquery.Document

	clicks     []clickRule
	calls      map[string]CallFunc
	keys       map[uicap.Key]func(p *Page) error
	navigate   func(p *Page, url string) error
	nativeFail []string

	events []string
}

type clickRule struct {
	css string
	fn  ClickFunc
}

// New parses body as the content of <body>.
func New(body string) *Page {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body>" + body + "</body></html>"))
	if err != nil {
		panic("uitest: parse: " + err.Error())
	}
	return &Page{
		doc:   doc,
		calls: make(map[string]CallFunc),
		keys:  make(map[uicap.Key]func(p *Page) error),
	}
}

// Doc exposes the document for direct mutation inside handlers and tests.
func (p *Page) Doc() *goquery.Document { return p.doc }

// SetBody replaces the whole body; every previously returned handle goes stale.
func (p *Page) SetBody(body string) {
	p.doc.Find("body").SetHtml(body)
}

// OnClick registers fn for clicks on elements matching css. The first
// matching rule wins.
func (p *Page) OnClick(css string, fn ClickFunc) {
	p.clicks = append(p.clicks, clickRule{css: css, fn: fn})
}

// OnCall registers a page function.
func (p *Page) OnCall(name string, fn CallFunc) { p.calls[name] = fn }

// OnKey registers a keystroke handler.
func (p *Page) OnKey(k uicap.Key, fn func(p *Page) error) { p.keys[k] = fn }

// OnNavigate registers the navigation handler.
func (p *Page) OnNavigate(fn func(p *Page, url string) error) { p.navigate = fn }

// FailNativeClicks makes native clicks on elements matching css fail, so the
// scripted fallback is exercised.
func (p *Page) FailNativeClicks(css string) { p.nativeFail = append(p.nativeFail, css) }

// Events returns the recorded interaction log, e.g. "click:#printKey",
// "call:runPrint", "key:Enter", "navigate:https://...".
func (p *Page) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// Count returns how many recorded events equal ev.
func (p *Page) Count(ev string) int {
	n := 0
	for _, e := range p.Events() {
		if e == ev {
			n++
		}
	}
	return n
}

func (p *Page) record(ev string) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *Page) Find(ctx context.Context, loc uicap.Locator) (uicap.Element, error) {
	return first(p.FindAll(ctx, loc))
}

func (p *Page) FindAll(_ context.Context, loc uicap.Locator) ([]uicap.Element, error) {
	return p.wrap(p.doc.Find(loc.CSS), loc), nil
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.record("navigate:" + url)
	if p.navigate == nil {
		return nil
	}
	return p.navigate(p, url)
}

func (p *Page) Call(_ context.Context, fn string, args ...any) error {
	p.record("call:" + fn)
	h, ok := p.calls[fn]
	if !ok {
		return fmt.Errorf("uitest: %s is not a function", fn)
	}
	return h(p, args...)
}

func (p *Page) Press(_ context.Context, key uicap.Key) error {
	p.record("key:" + string(key))
	if h, ok := p.keys[key]; ok {
		return h(p)
	}
	return nil
}

func (p *Page) wrap(sel *goquery.Selection, loc uicap.Locator) []uicap.Element {
	out := make([]uicap.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if loc.Filtered() && !loc.Match(s.Text()) {
			return
		}
		out = append(out, &Element{page: p, node: s.Nodes[0]})
	})
	return out
}

func first(els []uicap.Element, err error) (uicap.Element, error) {
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, uicap.ErrNotFound
	}
	return els[0], nil
}

// Element is a handle to one node of a Page.
type Element struct {
	page *Page
	node *html.Node
}

// Selection returns a goquery selection of the element, for assertions.
func (e *Element) Selection() *goquery.Selection { return e.page.doc.FindNodes(e.node) }

func (e *Element) attached() error {
	root := e.page.doc.Nodes[0]
	n := e.node
	for n.Parent != nil {
		n = n.Parent
	}
	if n != root {
		return uicap.ErrStale
	}
	return nil
}

func (e *Element) Find(ctx context.Context, loc uicap.Locator) (uicap.Element, error) {
	return first(e.FindAll(ctx, loc))
}

func (e *Element) FindAll(_ context.Context, loc uicap.Locator) ([]uicap.Element, error) {
	if err := e.attached(); err != nil {
		return nil, err
	}
	return e.page.wrap(e.Selection().Find(loc.CSS), loc), nil
}

func (e *Element) Text(context.Context) (string, error) {
	if err := e.attached(); err != nil {
		return "", err
	}
	return uicap.NormalizeText(e.Selection().Text()), nil
}

func (e *Element) Attribute(_ context.Context, name string) (string, bool, error) {
	if err := e.attached(); err != nil {
		return "", false, err
	}
	v, ok := e.Selection().Attr(name)
	return v, ok, nil
}

func (e *Element) Visible(context.Context) (bool, error) {
	if err := e.attached(); err != nil {
		return false, err
	}
	return visible(e.node), nil
}

func visible(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		for _, a := range n.Attr {
			if a.Key == "hidden" {
				return false
			}
			if a.Key == "style" {
				style := strings.ReplaceAll(a.Val, " ", "")
				if strings.Contains(style, "display:none") {
					return false
				}
			}
		}
	}
	return true
}

func (e *Element) Click(_ context.Context, mode uicap.ClickMode) error {
	if err := e.attached(); err != nil {
		return err
	}
	sel := e.Selection()
	if mode == uicap.Native {
		if !visible(e.node) {
			return uicap.ErrNotInteractable
		}
		for _, css := range e.page.nativeFail {
			if sel.Is(css) {
				return fmt.Errorf("%w: native click intercepted", uicap.ErrNotInteractable)
			}
		}
	}
	e.page.record("click:" + describe(e.node))
	for _, r := range e.page.clicks {
		if sel.Is(r.css) {
			return r.fn(e.page, sel)
		}
	}
	return nil
}

func (e *Element) ScrollIntoView(context.Context) error { return e.attached() }

func (e *Element) Input(_ context.Context, text string) error {
	if err := e.attached(); err != nil {
		return err
	}
	e.Selection().SetAttr("value", text)
	return nil
}

func (e *Element) Hide(context.Context) error {
	if err := e.attached(); err != nil {
		return err
	}
	e.Selection().SetAttr("style", "display: none")
	e.page.record("hide:" + describe(e.node))
	return nil
}

func (e *Element) Remove(context.Context) error {
	if err := e.attached(); err != nil {
		return err
	}
	e.page.record("remove:" + describe(e.node))
	e.Selection().Remove()
	return nil
}

// describe renders a node as "#id" or "tag.class1.class2".
func describe(n *html.Node) string {
	var id, class string
	for _, a := range n.Attr {
		switch a.Key {
		case "id":
			id = a.Val
		case "class":
			class = a.Val
		}
	}
	if id != "" {
		return "#" + id
	}
	s := n.Data
	for _, c := range strings.Fields(class) {
		s += "." + c
	}
	return s
}
