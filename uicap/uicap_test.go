package uicap

import (
	"errors"
	"fmt"
	"testing"
)

func TestLocatorMatch(t *testing.T) {
	cases := []struct {
		loc  Locator
		text string
		want bool
	}{
		{CSS("a"), "anything", true},
		{CSS("a").WithText("B"), " B ", true},
		{CSS("a").WithText("B"), "BB", false},
		{CSS("a").Containing("Treatment Records"), "  Treatment\n Records (3)", true},
		{CSS("a").Containing("Treatment Records"), "Consents", false},
	}
	for _, c := range cases {
		if got := c.loc.Match(c.text); got != c.want {
			t.Errorf("%s.Match(%q): got %v, want %v", c.loc, c.text, got, c.want)
		}
	}
}

func TestLocatorString(t *testing.T) {
	if s := CSS("a").WithText("3").String(); s != "a [text=3]" {
		t.Errorf("got %q", s)
	}
	if s := CSS("p").Containing("ID:").String(); s != "p [contains=ID:]" {
		t.Errorf("got %q", s)
	}
}

func TestRecoverable(t *testing.T) {
	if !Recoverable(fmt.Errorf("wrap: %w", ErrStale)) {
		t.Error("wrapped ErrStale should be recoverable")
	}
	if !Recoverable(ErrNotFound) {
		t.Error("ErrNotFound should be recoverable")
	}
	if Recoverable(errors.New("boom")) {
		t.Error("arbitrary error should not be recoverable")
	}
}

func TestNormalizeText(t *testing.T) {
	if got := NormalizeText("  a \n\t b  "); got != "a b" {
		t.Errorf("got %q", got)
	}
}

func TestMapRodError(t *testing.T) {
	cases := []struct {
		msg  string
		want error
	}{
		{"{-32000 Could not find node with given id }", ErrStale},
		{"{-32000 Cannot find context with specified id }", ErrStale},
		{"element is not cursor interactable", ErrNotInteractable},
		{"element covered by <div class=overlay>", ErrNotInteractable},
	}
	for _, c := range cases {
		if got := mapRodError(errors.New(c.msg)); !errors.Is(got, c.want) {
			t.Errorf("mapRodError(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
	other := errors.New("net::ERR_CONNECTION_RESET")
	if got := mapRodError(other); got != other {
		t.Errorf("unrelated error changed: %v", got)
	}
	if mapRodError(nil) != nil {
		t.Error("nil must stay nil")
	}
}
