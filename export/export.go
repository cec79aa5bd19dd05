// CLAUDE:SUMMARY Document export state machine: open viewer, trigger print, blind native dialog, verify or relocate the PDF, close viewer.
// Package export exports one document of the records tree to a PDF on disk.
//
// The pipeline walks Idle, Opened, PrintTriggered, SaveDialogOpen, Saved,
// Verified and Closed, and can fail from any of them. The two native dialog
// steps are blind: whether they worked is only known from what lands on disk.
// Export never returns an error; every outcome is an ExportRecord.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hazyhaar/aprexport/interact"
	"github.com/hazyhaar/aprexport/osdialog"
	"github.com/hazyhaar/aprexport/session"
	"github.com/hazyhaar/aprexport/site"
	"github.com/hazyhaar/aprexport/transient"
	"github.com/hazyhaar/aprexport/treatment"
	"github.com/hazyhaar/aprexport/uicap"
)

// ErrNoArtifact is the failure reason when no PDF appeared after saving.
var ErrNoArtifact = errors.New("export: no pdf found after save")

// Document is a document link that can be re-resolved on demand.
type Document interface {
	Entry() treatment.DocumentEntry
	Resolve(ctx context.Context) (uicap.Element, error)
}

// PageCounter reads the page count of a PDF.
type PageCounter interface {
	PageCount(path string) (int, error)
}

// Config configures a Pipeline.
type Config struct {
	Session   *session.Session
	Transient *transient.Resolver
	Dialog    osdialog.Dialog
	// MainFolder is the root output folder, scanned by the fallback
	// alongside the client folder.
	MainFolder string
	// Pages reads page counts of saved PDFs. Defaults to PDFInspector.
	Pages PageCounter
	// Now is the filesystem clock used to date the export start.
	Now func() time.Time
}

// Pipeline exports documents one at a time.
type Pipeline struct {
	s      *session.Session
	t      *transient.Resolver
	dialog osdialog.Dialog
	main   string
	pages  PageCounter
	now    func() time.Time

	// mu serialises exports: the native dialog is one shared OS resource.
	mu sync.Mutex
	// claimed holds the target paths already verified in this run.
	claimed map[string]bool
}

// New returns a Pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Transient == nil {
		cfg.Transient = transient.New(cfg.Session)
	}
	if cfg.Dialog == nil {
		cfg.Dialog = osdialog.Kiosk{}
	}
	if cfg.Pages == nil {
		cfg.Pages = PDFInspector{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{
		s:       cfg.Session,
		t:       cfg.Transient,
		dialog:  cfg.Dialog,
		main:    cfg.MainFolder,
		pages:   cfg.Pages,
		now:     cfg.Now,
		claimed: make(map[string]bool),
	}
}

// run is the state of one export.
type run struct {
	rec    treatment.ExportRecord
	log    *slog.Logger
	opened bool
}

func (r *run) advance(ctx context.Context, s treatment.ExportState) {
	r.rec.State = s
	r.log.DebugContext(ctx, "export: state", "state", s.String())
}

func (r *run) fail(ctx context.Context, err error) {
	r.rec.FailedAt = r.rec.State
	r.rec.State = treatment.StateFailed
	r.rec.Succeeded = false
	r.rec.Reason = err.Error()
	r.log.WarnContext(ctx, "export: failed", "state", r.rec.FailedAt.String(), "error", err)
}

// Export runs the whole state machine for doc. Once entered it ignores
// cancellation of ctx, so a document is never abandoned with its viewer or
// a native dialog open.
func (p *Pipeline) Export(ctx context.Context, doc Document, client treatment.ClientIdentity, recordTitle, destFolder string) (rec treatment.ExportRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx = context.WithoutCancel(ctx)

	entry := doc.Entry()
	r := &run{
		rec: treatment.ExportRecord{
			Entry:       entry,
			RecordTitle: recordTitle,
			TargetPath:  treatment.TargetPath(destFolder, recordTitle, entry.DisplayName, client.DisplayName),
			State:       treatment.StateIdle,
		},
		log: p.s.Logger.With("document", entry.DisplayName, "position", entry.Position, "record", recordTitle),
	}
	if abs, err := filepath.Abs(r.rec.TargetPath); err == nil {
		r.rec.TargetPath = abs
	}
	defer func() {
		if v := recover(); v != nil {
			r.fail(ctx, fmt.Errorf("export: panic: %v", v))
			if r.opened {
				p.closeViewer(ctx, r.log)
			}
			rec = r.rec
		}
	}()

	p.exec(ctx, r, doc, destFolder)
	return r.rec
}

func (p *Pipeline) exec(ctx context.Context, r *run, doc Document, destFolder string) {
	started := p.now()

	if err := p.open(ctx, doc); err != nil {
		r.fail(ctx, err)
		return
	}
	r.opened = true
	r.advance(ctx, treatment.StateOpened)

	if err := p.triggerPrint(ctx, r.log); err != nil {
		r.fail(ctx, err)
		p.closeViewer(ctx, r.log)
		return
	}
	r.advance(ctx, treatment.StatePrintTriggered)

	// Blind: the print preview cannot be observed. A driver error is only
	// logged since silent printing may still have produced the file.
	p.s.Pause(ctx, p.s.Timing.PrintDialog)
	if err := p.dialog.ConfirmPrint(ctx); err != nil {
		r.log.WarnContext(ctx, "export: print confirmation not sent", "error", err)
	}
	r.advance(ctx, treatment.StateSaveDialogOpen)
	p.s.Pause(ctx, p.s.Timing.SaveDialog)

	if err := os.MkdirAll(destFolder, 0o755); err != nil {
		r.fail(ctx, fmt.Errorf("export: client folder: %w", err))
		p.closeViewer(ctx, r.log)
		return
	}
	if err := p.dialog.SaveAs(ctx, r.rec.TargetPath); err != nil {
		r.log.WarnContext(ctx, "export: save path not typed", "error", err)
	}
	r.advance(ctx, treatment.StateSaved)
	p.s.Pause(ctx, p.s.Timing.SaveSettle)

	recovered, err := p.verify(r.rec.TargetPath, started, destFolder)
	if err != nil {
		r.fail(ctx, err)
		p.closeViewer(ctx, r.log)
		return
	}
	r.rec.RecoveredViaFallback = recovered
	if n, err := p.pages.PageCount(r.rec.TargetPath); err != nil {
		r.log.WarnContext(ctx, "export: page count unavailable", "error", err)
	} else {
		r.rec.Pages = n
	}
	r.advance(ctx, treatment.StateVerified)
	if recovered {
		r.log.InfoContext(ctx, "export: file recovered by fallback", "path", r.rec.TargetPath)
	}

	p.closeViewer(ctx, r.log)
	r.advance(ctx, treatment.StateClosed)
	r.rec.Succeeded = true
	r.log.InfoContext(ctx, "export: saved", "path", r.rec.TargetPath, "pages", r.rec.Pages)
}

// open clicks the document link and waits for the viewer.
func (p *Pipeline) open(ctx context.Context, doc Document) error {
	link, err := session.Fresh(ctx, doc.Resolve)
	if err != nil {
		return fmt.Errorf("export: open: %w", err)
	}
	_ = link.ScrollIntoView(ctx)
	if err := p.s.Click(ctx, "document", link); err != nil {
		return fmt.Errorf("export: open: %w", err)
	}
	p.s.Pause(ctx, p.s.Timing.ViewerSettle)
	return nil
}

// triggerPrint waits for the viewer's action controls, then activates print.
// The probe only delays: print is attempted whether or not it succeeded.
func (p *Pipeline) triggerPrint(ctx context.Context, log *slog.Logger) error {
	p.t.RemoveToasts(ctx)

	page := p.s.Page
	loaded := p.s.WaitEvery(ctx, p.s.Timing.FormProbe, p.s.Timing.FormProbeInterval, func(ctx context.Context) bool {
		return uicap.Exists(ctx, page, site.ViewerIcons) &&
			uicap.Exists(ctx, page, site.EmailDownload) &&
			uicap.Exists(ctx, page, site.Refresh) &&
			uicap.Exists(ctx, page, site.PrintSlide)
	})
	if !loaded {
		log.WarnContext(ctx, "export: viewer controls incomplete, printing anyway")
	}

	printKey := func(mode uicap.ClickMode) interact.Strategy {
		return interact.Strategy{Name: mode.String() + " print", Do: func(ctx context.Context) error {
			el, err := page.Find(ctx, site.PrintKey)
			if err != nil {
				return err
			}
			if v, _ := el.Visible(ctx); !v {
				_ = el.ScrollIntoView(ctx)
			}
			return el.Click(ctx, mode)
		}}
	}
	how, err := interact.Run(ctx, log, "print", printKey(uicap.Native), printKey(uicap.Scripted),
		interact.CallStrategy(page, site.FnRunPrint))
	if err != nil {
		return fmt.Errorf("export: print: %w", err)
	}
	log.DebugContext(ctx, "export: print triggered", "via", how)
	return nil
}

// closeViewer closes the viewer by the most specific affordance available,
// then Escape. Failure is only logged.
func (p *Pipeline) closeViewer(ctx context.Context, log *slog.Logger) {
	defer p.s.Pause(ctx, p.s.Timing.AfterClose)

	page := p.s.Page
	for _, loc := range site.ViewerClose {
		el, err := uicap.FirstVisible(ctx, page, loc)
		if err != nil {
			continue
		}
		if err := p.s.Click(ctx, "viewer close", el); err == nil {
			p.s.Pause(ctx, p.s.Timing.CloseSettle)
			return
		}
	}
	if err := page.Press(ctx, uicap.KeyEscape); err != nil {
		log.WarnContext(ctx, "export: viewer close not confirmed", "error", err)
		return
	}
	p.s.Pause(ctx, p.s.Timing.CloseSettle)
	if uicap.VisibleExists(ctx, page, site.ViewerIcons) {
		log.WarnContext(ctx, "export: viewer may still be open")
	}
}
