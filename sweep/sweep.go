// CLAUDE:SUMMARY Run controller: walks absolute client indexes of one letter, visits each client, exports its treatment records, always returns to the list.
// Package sweep runs one export sweep over a letter of the client list.
//
// The controller owns the client index cursor and the run log. A client that
// fails in any way is recorded and skipped. A page that cannot be reached ends
// the sweep normally; only losing the list on the way back is an error.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hazyhaar/aprexport/export"
	"github.com/hazyhaar/aprexport/horosafe"
	"github.com/hazyhaar/aprexport/osdialog"
	"github.com/hazyhaar/aprexport/pager"
	"github.com/hazyhaar/aprexport/portal"
	"github.com/hazyhaar/aprexport/rectree"
	"github.com/hazyhaar/aprexport/runlog"
	"github.com/hazyhaar/aprexport/session"
	"github.com/hazyhaar/aprexport/transient"
	"github.com/hazyhaar/aprexport/treatment"
	"github.com/hazyhaar/aprexport/uicap"
	"github.com/hazyhaar/aprexport/visit"
)

// ErrLetter is returned for a letter outside A to Z.
var ErrLetter = errors.New("sweep: letter must be a single A-Z character")

// Config configures a Controller.
type Config struct {
	Session *session.Session
	Dialog  osdialog.Dialog
	// MainFolder receives one sub-folder per client.
	MainFolder string
	// RecordsLabel is the label of the records folder. Defaults to
	// "Treatment Records".
	RecordsLabel string
	// Pages reads page counts of saved PDFs. Defaults to export.PDFInspector.
	Pages export.PageCounter
	// Log is the run log. Required.
	Log *runlog.Log
}

// Controller sweeps clients.
type Controller struct {
	s      *session.Session
	t      *transient.Resolver
	pager  *pager.Navigator
	visit  *visit.Driver
	tree   *rectree.Walker
	export *export.Pipeline
	portal *portal.Portal
	log    *runlog.Log
	main   string
}

// New wires the components of a sweep around one session.
func New(cfg Config) *Controller {
	s := cfg.Session
	t := transient.New(s)
	if cfg.Log == nil {
		cfg.Log = runlog.New(runlog.Config{Logger: s.Logger})
	}
	return &Controller{
		s:     s,
		t:     t,
		pager: pager.New(s, t),
		visit: visit.New(s, t),
		tree:  rectree.New(s, cfg.RecordsLabel),
		export: export.New(export.Config{
			Session:    s,
			Transient:  t,
			Dialog:     cfg.Dialog,
			MainFolder: cfg.MainFolder,
			Pages:      cfg.Pages,
		}),
		portal: portal.New(s, t),
		log:    cfg.Log,
		main:   cfg.MainFolder,
	}
}

// Portal returns the navigation used by the controller, for login and the
// initial list.
func (c *Controller) Portal() *portal.Portal { return c.portal }

// Log returns the run log.
func (c *Controller) Log() *runlog.Log { return c.log }

// NormalizeLetter upper-cases letter and checks it is one of A to Z.
func NormalizeLetter(letter string) (string, error) {
	l := strings.ToUpper(strings.TrimSpace(letter))
	if len(l) != 1 || l[0] < 'A' || l[0] > 'Z' {
		return "", fmt.Errorf("%w: %q", ErrLetter, letter)
	}
	return l, nil
}

// Run visits the clients of letter from the 1-based index start until the
// list is exhausted, and returns the outcomes recorded by this call. The
// browser must be on the client list. Cancelling ctx stops the sweep between
// clients and between documents; the outcomes so far are returned with a
// nil error.
func (c *Controller) Run(ctx context.Context, letter string, start int) ([]treatment.ClientVisitOutcome, error) {
	letter, err := NormalizeLetter(letter)
	if err != nil {
		return nil, err
	}
	start = max(start, 1)
	c.s.Logger.InfoContext(ctx, "sweep: starting", "letter", letter, "start", start, "run_id", c.log.RunID())

	var outcomes []treatment.ClientVisitOutcome
	for index := start; ; index++ {
		if ctx.Err() != nil {
			c.s.Logger.InfoContext(ctx, "sweep: cancelled", "letter", letter, "next_index", index)
			return outcomes, nil
		}
		page, offset := pager.Locate(index)
		if !c.pager.GotoPage(ctx, letter, page) {
			// Past the last page, or pagination broke: either way no further
			// index can be located.
			if ctx.Err() == nil {
				c.s.Logger.WarnContext(ctx, "sweep: page unreachable, ending sweep", "letter", letter, "page", page, "index", index)
			}
			return outcomes, nil
		}

		rows, err := session.Fresh(ctx, c.pager.Rows)
		if err != nil || len(rows) == 0 {
			c.s.Logger.InfoContext(ctx, "sweep: no clients on page, done", "letter", letter, "page", page, "error", err)
			return outcomes, nil
		}
		if offset >= len(rows) {
			if !c.pager.HasNextPage(ctx) {
				c.s.Logger.InfoContext(ctx, "sweep: end of list", "letter", letter, "index", index, "rows", len(rows))
				return outcomes, nil
			}
			// Short page with more pages after it: resume at the next page.
			c.s.Logger.InfoContext(ctx, "sweep: short page, moving on", "page", page, "rows", len(rows))
			index = page * pager.PageSize
			continue
		}

		row := rows[offset]
		name := rowName(ctx, row)
		if name != "" && c.log.Has(name) {
			c.s.Logger.InfoContext(ctx, "sweep: already recorded, skipping", "client", name, "index", index)
			continue
		}

		o := treatment.ClientVisitOutcome{
			Letter:         letter,
			ListName:       name,
			Index:          index,
			Page:           page,
			PositionOnPage: offset + 1,
			Client:         treatment.UnknownClient(),
		}
		c.s.Logger.InfoContext(ctx, "sweep: client", "index", index, "page", page, "position", offset+1, "client", name)
		c.process(ctx, row, &o)
		c.log.Append(ctx, o)
		outcomes = append(outcomes, o)

		if err := c.portal.ReturnToList(ctx); err != nil {
			return outcomes, err
		}
		c.s.Pause(ctx, c.s.Timing.BetweenClients)
	}
}

// process fills o for one client. It never panics: a crash inside the
// visit is logged and leaves o with what was gathered so far.
func (c *Controller) process(ctx context.Context, row uicap.Element, o *treatment.ClientVisitOutcome) {
	defer func() {
		if r := recover(); r != nil {
			o.Processed = false
			c.s.Logger.ErrorContext(ctx, "sweep: client visit panicked", "client", o.ListName, "index", o.Index, "panic", r)
		}
	}()

	v, ok := c.visit.Open(ctx, row)
	o.Client = v.Identity
	o.Processed = v.Opened
	o.ModalAppeared = v.ModalAppeared
	o.RecordsVisited = v.RecordsTab
	if !ok {
		c.s.Logger.WarnContext(ctx, "sweep: client not opened", "client", o.ListName, "index", o.Index, "clicked", v.Opened)
		return
	}
	o.RecordsProcessed = c.records(ctx, o)
	c.t.CleanupOverlays(ctx)
}

// records exports every document of every records folder of the open
// client. False means the client folder could not be prepared.
func (c *Controller) records(ctx context.Context, o *treatment.ClientVisitOutcome) bool {
	dest, err := horosafe.ChildDir(c.main, o.Client.FolderKey)
	if err == nil {
		err = os.MkdirAll(dest, 0o755)
	}
	if err != nil {
		c.s.Logger.ErrorContext(ctx, "sweep: client folder", "folder", o.Client.FolderKey, "error", err)
		return false
	}

	folders := c.tree.Folders(ctx)
	if len(folders) == 0 {
		c.s.Logger.InfoContext(ctx, "sweep: no treatment records", "client", o.Client.DisplayName)
		return true
	}
	for _, f := range folders {
		o.TreatmentFolders = append(o.TreatmentFolders, f.Group.Title)
	}
	for _, f := range folders {
		for doc := range c.tree.Documents(ctx, f) {
			rec := c.export.Export(ctx, doc, o.Client, f.Group.Title, dest)
			o.Exports = append(o.Exports, rec)
			if ctx.Err() != nil {
				return true
			}
			c.s.Pause(ctx, c.s.Timing.BetweenDocuments)
		}
		if ctx.Err() != nil {
			break
		}
	}
	c.s.Logger.InfoContext(ctx, "sweep: client exported", "client", o.Client.DisplayName,
		"folders", len(folders), "documents", len(o.Exports), "exported", o.Exported())
	return true
}

func rowName(ctx context.Context, row uicap.Element) string {
	txt, err := row.Text(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(txt)
}
