// CLAUDE:SUMMARY UI capability layer: the opaque browser operations (find, click, keys, script, navigate) the exporter drives.
// Package uicap defines the UI capability layer consumed by the exporter.
//
// Every lookup is a fresh query against the live DOM. Element handles are
// short-lived: callers re-resolve them by key after any action that may
// re-render the page, and treat ErrStale as "look it up again".
package uicap

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when a locator matches nothing.
var ErrNotFound = errors.New("uicap: element not found")

// ErrStale is returned when an element handle no longer belongs to the document.
var ErrStale = errors.New("uicap: element is stale or detached from the document")

// ErrNotInteractable is returned when a native click cannot reach the element.
var ErrNotInteractable = errors.New("uicap: element not interactable")

// ClickMode selects how a click is delivered.
type ClickMode int

const (
	// Native dispatches real mouse input at the element's position.
	Native ClickMode = iota
	// Scripted calls element.click() from page script.
	Scripted
)

func (m ClickMode) String() string {
	if m == Scripted {
		return "scripted"
	}
	return "native"
}

// Key is a named keystroke.
type Key string

const (
	KeyEscape Key = "Escape"
	KeyEnter  Key = "Enter"
)

// Locator selects elements by CSS selector, optionally narrowed by their
// whitespace-normalised text.
type Locator struct {
	CSS string
	// Text requires an exact text match.
	Text string
	// Contains requires a substring match.
	Contains string
}

// CSS returns a Locator for a CSS selector.
func CSS(selector string) Locator { return Locator{CSS: selector} }

// WithText narrows l to elements whose text equals text.
func (l Locator) WithText(text string) Locator {
	l.Text = text
	return l
}

// Containing narrows l to elements whose text contains sub.
func (l Locator) Containing(sub string) Locator {
	l.Contains = sub
	return l
}

// Match reports whether an element text satisfies the text filters of l.
func (l Locator) Match(text string) bool {
	text = NormalizeText(text)
	if l.Text != "" && text != l.Text {
		return false
	}
	if l.Contains != "" && !strings.Contains(text, l.Contains) {
		return false
	}
	return true
}

// Filtered reports whether l has a text filter.
func (l Locator) Filtered() bool { return l.Text != "" || l.Contains != "" }

func (l Locator) String() string {
	switch {
	case l.Text != "":
		return l.CSS + " [text=" + l.Text + "]"
	case l.Contains != "":
		return l.CSS + " [contains=" + l.Contains + "]"
	}
	return l.CSS
}

// NormalizeText trims and collapses runs of whitespace.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Finder looks elements up. Lookups never wait; polling is the caller's job.
type Finder interface {
	// Find returns the first match in document order or ErrNotFound.
	Find(ctx context.Context, loc Locator) (Element, error)
	// FindAll returns every match in document order, possibly none.
	FindAll(ctx context.Context, loc Locator) ([]Element, error)
}

// Page is one browser tab.
type Page interface {
	Finder
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// Call invokes a page-global script function, e.g. Call(ctx, "runPrint").
	// Dotted names resolve through window ("window.scrollTo").
	Call(ctx context.Context, fn string, args ...any) error
	// Press sends a keystroke to the focused document.
	Press(ctx context.Context, key Key) error
}

// Element is a handle to one DOM element. Descendant lookups are scoped to it.
type Element interface {
	Finder
	Text(ctx context.Context) (string, error)
	// Attribute returns the attribute value and whether it is present.
	Attribute(ctx context.Context, name string) (string, bool, error)
	Visible(ctx context.Context) (bool, error)
	Click(ctx context.Context, mode ClickMode) error
	ScrollIntoView(ctx context.Context) error
	// Input replaces the element's value by typing text.
	Input(ctx context.Context, text string) error
	// Hide sets display:none on the element.
	Hide(ctx context.Context) error
	// Remove detaches the element from the document.
	Remove(ctx context.Context) error
}

// HasClass reports whether el's class attribute contains class.
func HasClass(ctx context.Context, el Element, class string) (bool, error) {
	v, ok, err := el.Attribute(ctx, "class")
	if err != nil || !ok {
		return false, err
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true, nil
		}
	}
	return false, nil
}

// Exists reports whether loc matches at least one element under f.
func Exists(ctx context.Context, f Finder, loc Locator) bool {
	_, err := f.Find(ctx, loc)
	return err == nil
}

// FirstVisible returns the first visible match of loc, or ErrNotFound.
func FirstVisible(ctx context.Context, f Finder, loc Locator) (Element, error) {
	els, err := f.FindAll(ctx, loc)
	if err != nil {
		return nil, err
	}
	for _, el := range els {
		if v, err := el.Visible(ctx); err == nil && v {
			return el, nil
		}
	}
	return nil, ErrNotFound
}

// VisibleExists reports whether any match of loc is visible.
func VisibleExists(ctx context.Context, f Finder, loc Locator) bool {
	_, err := FirstVisible(ctx, f, loc)
	return err == nil
}

// Recoverable reports whether err is a lookup failure that a fresh query may fix.
func Recoverable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrStale)
}
