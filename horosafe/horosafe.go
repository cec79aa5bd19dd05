// Package horosafe guards paths built from names read off the web UI so
// they stay inside the export folder.
package horosafe

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrPathTraversal is returned when a name would escape its base folder.
var ErrPathTraversal = errors.New("horosafe: path traversal detected")

// ErrEmptyName is returned for a name that cleans to nothing.
var ErrEmptyName = errors.New("horosafe: empty name")

// SafePath joins base and name and returns the cleaned path, refusing any
// result outside base.
func SafePath(base, name string) (string, error) {
	for _, part := range strings.FieldsFunc(name, isSep) {
		if part == ".." {
			return "", ErrPathTraversal
		}
	}
	root := filepath.Clean(base)
	cleaned := filepath.Join(root, filepath.Clean("/"+name))
	if cleaned != root && !strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

// ChildDir is SafePath for a single directory level: name must not contain
// separators and must not be "." or "..".
func ChildDir(base, name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "" || name == ".":
		return "", ErrEmptyName
	case name == ".." || strings.ContainsFunc(name, isSep):
		return "", ErrPathTraversal
	}
	return SafePath(base, name)
}

func isSep(r rune) bool { return r == '/' || r == '\\' }
