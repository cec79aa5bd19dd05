// CLAUDE:SUMMARY go-rod implementation of the UI capability layer with stale/not-interactable error mapping.
package uicap

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// callJS resolves a dotted global function name and applies it with its owner
// as receiver, so window.scrollTo and bare page functions both work.
const callJS = `(name, args) => {
	const parts = name.split('.');
	let owner = window;
	for (let i = 0; i < parts.length - 1; i++) {
		owner = owner[parts[i]];
		if (owner == null) throw new Error(name + ' is not defined');
	}
	const fn = owner[parts[parts.length - 1]];
	if (typeof fn !== 'function') throw new Error(name + ' is not a function');
	fn.apply(owner, args);
}`

// RodPage adapts a *rod.Page to Page.
type RodPage struct {
	page *rod.Page
}

// NewRodPage wraps page.
func NewRodPage(page *rod.Page) *RodPage {
	return &RodPage{page: page}
}

// Rod returns the underlying page.
func (p *RodPage) Rod() *rod.Page { return p.page }

func (p *RodPage) Find(ctx context.Context, loc Locator) (Element, error) {
	els, err := p.FindAll(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return els[0], nil
}

func (p *RodPage) FindAll(ctx context.Context, loc Locator) ([]Element, error) {
	els, err := p.page.Context(ctx).Elements(loc.CSS)
	if err != nil {
		return nil, mapRodError(err)
	}
	return filterRod(ctx, els, loc)
}

func (p *RodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("uicap: navigate %s: %w", url, err)
	}
	if err := pg.WaitLoad(); err != nil {
		return fmt.Errorf("uicap: wait load %s: %w", url, err)
	}
	return nil
}

func (p *RodPage) Call(ctx context.Context, fn string, args ...any) error {
	if args == nil {
		args = []any{}
	}
	if _, err := p.page.Context(ctx).Eval(callJS, fn, args); err != nil {
		return fmt.Errorf("uicap: call %s: %w", fn, err)
	}
	return nil
}

func (p *RodPage) Press(ctx context.Context, key Key) error {
	k, err := rodKey(key)
	if err != nil {
		return err
	}
	if err := p.page.Keyboard.Press(k); err != nil {
		return fmt.Errorf("uicap: press %s: %w", key, err)
	}
	return nil
}

func rodKey(key Key) (input.Key, error) {
	switch key {
	case KeyEscape:
		return input.Escape, nil
	case KeyEnter:
		return input.Enter, nil
	}
	return 0, fmt.Errorf("uicap: unsupported key %q", key)
}

// rodElement adapts a *rod.Element to Element.
type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Find(ctx context.Context, loc Locator) (Element, error) {
	els, err := e.FindAll(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	}
	return els[0], nil
}

func (e *rodElement) FindAll(ctx context.Context, loc Locator) ([]Element, error) {
	els, err := e.el.Context(ctx).Elements(loc.CSS)
	if err != nil {
		return nil, mapRodError(err)
	}
	return filterRod(ctx, els, loc)
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	s, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", mapRodError(err)
	}
	return NormalizeText(s), nil
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, mapRodError(err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	v, err := e.el.Context(ctx).Visible()
	if err != nil {
		return false, mapRodError(err)
	}
	return v, nil
}

func (e *rodElement) Click(ctx context.Context, mode ClickMode) error {
	el := e.el.Context(ctx)
	var err error
	if mode == Scripted {
		_, err = el.Eval(`() => this.click()`)
	} else {
		err = el.Click(proto.InputMouseButtonLeft, 1)
	}
	if err != nil {
		return fmt.Errorf("uicap: %s click: %w", mode, mapRodError(err))
	}
	return nil
}

func (e *rodElement) ScrollIntoView(ctx context.Context) error {
	return mapRodError(e.el.Context(ctx).ScrollIntoView())
}

func (e *rodElement) Input(ctx context.Context, text string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return mapRodError(err)
	}
	return mapRodError(el.Input(text))
}

func (e *rodElement) Hide(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(`() => { this.style.display = 'none'; }`)
	return mapRodError(err)
}

func (e *rodElement) Remove(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(`() => this.remove()`)
	return mapRodError(err)
}

func filterRod(ctx context.Context, els rod.Elements, loc Locator) ([]Element, error) {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		if loc.Filtered() {
			txt, err := el.Context(ctx).Text()
			if err != nil || !loc.Match(txt) {
				continue
			}
		}
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

// staleMarkers are CDP error fragments that mean the remote node is gone.
var staleMarkers = []string{
	"Cannot find context with specified id",
	"Could not find node with given id",
	"Node with given id does not belong to the document",
	"No node with given id found",
	"object not found",
}

var interactMarkers = []string{
	"not cursor interactable",
	"no visible shape",
	"covered by",
}

func mapRodError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, m := range staleMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", ErrStale, err)
		}
	}
	for _, m := range interactMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", ErrNotInteractable, err)
		}
	}
	return err
}
