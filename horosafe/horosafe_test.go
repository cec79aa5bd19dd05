package horosafe

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestSafePath(t *testing.T) {
	tests := []struct {
		base, input string
		wantErr     bool
	}{
		{"/data/export", "abc/def", false},
		{"/data/export", "../etc/passwd", true},
		{"/data/export", "abc/../def", true},
		{"/data/export", "abc/../../outside", true},
		{"/data/export", "Smith.. Jr - 12", false},
		{"/data/export", "Baker, Ann - 44", false},
	}
	for _, tt := range tests {
		_, err := SafePath(tt.base, tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("SafePath(%q, %q) error=%v, wantErr=%v", tt.base, tt.input, err, tt.wantErr)
		}
	}
}

func TestChildDir(t *testing.T) {
	base := t.TempDir()
	got, err := ChildDir(base, " Baker, Ann - 44 ")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(base, "Baker, Ann - 44"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	for name, want := range map[string]error{
		"":    ErrEmptyName,
		".":   ErrEmptyName,
		"..":  ErrPathTraversal,
		"a/b": ErrPathTraversal,
		`a\b`: ErrPathTraversal,
	} {
		if _, err := ChildDir(base, name); !errors.Is(err, want) {
			t.Errorf("ChildDir(%q): got %v, want %v", name, err, want)
		}
	}
}
