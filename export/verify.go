package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// mtimeSlack widens the candidate window: file timestamps come from a
// coarse kernel clock that can lag time.Now.
const mtimeSlack = 2 * time.Second

// verify confirms the PDF is at target. When it is not, the newest PDF
// written since started in the main or client folder is moved there and
// recovered is true. Files already verified for earlier documents are never
// candidates.
func (p *Pipeline) verify(target string, started time.Time, destFolder string) (recovered bool, err error) {
	if fileExists(target) {
		p.claimed[target] = true
		return false, nil
	}
	cand, ok := newestPDF(started.Add(-mtimeSlack), func(path string) bool { return p.claimed[path] }, p.main, destFolder)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNoArtifact, filepath.Base(target))
	}
	if err := relocate(cand, target); err != nil {
		return false, fmt.Errorf("export: relocate %s: %w", filepath.Base(cand), err)
	}
	p.claimed[target] = true
	return true, nil
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular() && fi.Size() > 0
}

// newestPDF returns the most recently modified *.pdf in dirs that was
// modified at or after since and is not skipped.
func newestPDF(since time.Time, skip func(path string) bool, dirs ...string) (string, bool) {
	var (
		best    string
		bestMod time.Time
	)
	seen := make(map[string]bool)
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true

		entries, err := os.ReadDir(abs)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			mod := info.ModTime()
			path := filepath.Join(abs, e.Name())
			if mod.Before(since) || (skip != nil && skip(path)) {
				continue
			}
			if best == "" || mod.After(bestMod) {
				best, bestMod = path, mod
			}
		}
	}
	return best, best != ""
}

// relocate moves src to dst, copying when a rename crosses filesystems.
func relocate(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// PDFInspector reads PDFs with pdfcpu.
type PDFInspector struct{}

// PageCount validates the PDF at path and returns its page count.
func (PDFInspector) PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("pdfcpu read: %w", err)
	}
	return ctx.PageCount, nil
}
