// CLAUDE:SUMMARY Record tree walker: expands record groups, finds the records folder, lazily enumerates documents re-resolved by key.
// Package rectree walks a client's electronic-records tree.
//
// Expanding a node re-renders the tree, so no element handle is kept across
// an interaction. Groups are addressed by index and title, documents by
// position, and every access resolves them again from the page.
package rectree

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/hazyhaar/aprexport/session"
	"github.com/hazyhaar/aprexport/site"
	"github.com/hazyhaar/aprexport/treatment"
	"github.com/hazyhaar/aprexport/uicap"
)

// Resolver fetches a fresh live handle for a stable key.
type Resolver interface {
	Resolve(ctx context.Context) (uicap.Element, error)
}

var (
	_ Resolver = Folder{}
	_ Resolver = Document{}
)

// Walker walks the records tree of the open client.
type Walker struct {
	s     *session.Session
	label string
}

// New returns a Walker looking for folders labelled label.
func New(s *session.Session, label string) *Walker {
	if label == "" {
		label = site.RecordsFolderLabel
	}
	return &Walker{s: s, label: label}
}

// Folder is a records folder found under one record group.
type Folder struct {
	Group treatment.RecordGroup
	index int
	w     *Walker
}

// Resolve returns the live records folder node.
func (f Folder) Resolve(ctx context.Context) (uicap.Element, error) { return f.subFolder(ctx) }

// Document is one entry of a Folder, addressed by its discovery position.
type Document struct {
	entry  treatment.DocumentEntry
	folder Folder
}

// Entry returns the document's discovery-time description.
func (d Document) Entry() treatment.DocumentEntry { return d.entry }

// Resolve returns the live link of the document.
func (d Document) Resolve(ctx context.Context) (uicap.Element, error) {
	els, err := d.folder.entries(ctx)
	if err != nil {
		return nil, err
	}
	if d.entry.Position >= len(els) {
		return nil, fmt.Errorf("rectree: document %d of %q: %w", d.entry.Position, d.folder.Group.Title, uicap.ErrNotFound)
	}
	return els[d.entry.Position], nil
}

// Folders expands every record group in turn and returns, in encounter
// order, the groups that hold a records folder. Each records folder is
// expanded before it is returned.
func (w *Walker) Folders(ctx context.Context) []Folder {
	groups, err := w.s.Page.FindAll(ctx, site.RecordGroups)
	if err != nil || len(groups) == 0 {
		w.s.Logger.InfoContext(ctx, "rectree: no record groups")
		return nil
	}
	total := len(groups)

	var out []Folder
	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			break
		}
		f, ok := w.folderAt(ctx, i)
		if ok {
			out = append(out, f)
		}
	}
	w.s.Logger.InfoContext(ctx, "rectree: folders found", "groups", total, "folders", len(out))
	return out
}

func (w *Walker) folderAt(ctx context.Context, i int) (Folder, bool) {
	log := w.s.Logger.With("group", i)

	group, err := session.Fresh(ctx, func(ctx context.Context) (uicap.Element, error) { return w.groupAt(ctx, i) })
	if err != nil {
		log.WarnContext(ctx, "rectree: group vanished", "error", err)
		return Folder{}, false
	}
	title := textOf(ctx, group, site.GroupTitle)
	log = log.With("title", title)

	f := Folder{Group: treatment.RecordGroup{Title: title}, index: i, w: w}
	if !w.ensureExpanded(ctx, f.group, site.GroupCaret, "record group") {
		log.WarnContext(ctx, "rectree: group expansion not confirmed")
	}
	f.Group.Expanded = true

	if _, err := session.Fresh(ctx, f.subFolder); err != nil {
		log.DebugContext(ctx, "rectree: no records folder in group")
		return Folder{}, false
	}
	if !w.ensureExpanded(ctx, f.subFolder, site.SubFolderCaret, "records folder") {
		log.WarnContext(ctx, "rectree: records folder expansion not confirmed")
	}
	log.InfoContext(ctx, "rectree: records folder ready")
	return f, true
}

// ensureExpanded clicks the caret of the node returned by resolve when it
// lacks the expanded class, then resolves the node again and reports the
// observed state.
func (w *Walker) ensureExpanded(ctx context.Context, resolve func(context.Context) (uicap.Element, error), caret uicap.Locator, what string) bool {
	down, c, err := expandedState(ctx, resolve, caret)
	if err != nil {
		return false
	}
	if down {
		return true
	}
	if err := w.s.Click(ctx, what, c); err != nil {
		w.s.Logger.DebugContext(ctx, "rectree: expand click failed", "node", what, "error", err)
		return false
	}
	w.s.Pause(ctx, w.s.Timing.ExpandSettle)
	down, _, err = expandedState(ctx, resolve, caret)
	return err == nil && down
}

func expandedState(ctx context.Context, resolve func(context.Context) (uicap.Element, error), caret uicap.Locator) (bool, uicap.Element, error) {
	node, err := resolve(ctx)
	if err != nil {
		return false, nil, err
	}
	c, err := node.Find(ctx, caret)
	if err != nil {
		return false, nil, err
	}
	down, err := uicap.HasClass(ctx, c, site.ExpandedClass)
	return down, c, err
}

func (w *Walker) groupAt(ctx context.Context, i int) (uicap.Element, error) {
	groups, err := w.s.Page.FindAll(ctx, site.RecordGroups)
	if err != nil {
		return nil, err
	}
	if i >= len(groups) {
		return nil, fmt.Errorf("rectree: group %d: %w", i, uicap.ErrNotFound)
	}
	return groups[i], nil
}

// group re-resolves the folder's group by index, checking the title. When
// the title no longer matches, the groups are searched by title.
func (f Folder) group(ctx context.Context) (uicap.Element, error) {
	if g, err := f.w.groupAt(ctx, f.index); err == nil && textOf(ctx, g, site.GroupTitle) == f.Group.Title {
		return g, nil
	}
	groups, err := f.w.s.Page.FindAll(ctx, site.RecordGroups)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if textOf(ctx, g, site.GroupTitle) == f.Group.Title {
			return g, nil
		}
	}
	return nil, fmt.Errorf("rectree: group %q: %w", f.Group.Title, uicap.ErrNotFound)
}

// subFolder finds the records folder node inside the group.
func (f Folder) subFolder(ctx context.Context) (uicap.Element, error) {
	g, err := f.group(ctx)
	if err != nil {
		return nil, err
	}
	items, err := g.FindAll(ctx, site.SubFolders)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if strings.Contains(textOf(ctx, it, site.SubFolderTitle), f.w.label) {
			return it, nil
		}
	}
	return nil, fmt.Errorf("rectree: %q in %q: %w", f.w.label, f.Group.Title, uicap.ErrNotFound)
}

// entries returns the live document links of the folder, re-expanding the
// group and folder when a re-render collapsed them.
func (f Folder) entries(ctx context.Context) ([]uicap.Element, error) {
	f.w.ensureExpanded(ctx, f.group, site.GroupCaret, "record group")
	f.w.ensureExpanded(ctx, f.subFolder, site.SubFolderCaret, "records folder")
	sub, err := f.subFolder(ctx)
	if err != nil {
		return nil, err
	}
	return sub.FindAll(ctx, site.Documents)
}

// Documents lazily yields the documents of folder. The number of documents
// is fixed when the sequence starts; a position that no longer resolves is
// logged and skipped.
func (w *Walker) Documents(ctx context.Context, folder Folder) iter.Seq[Document] {
	return func(yield func(Document) bool) {
		initial, err := session.Fresh(ctx, folder.entries)
		if err != nil {
			w.s.Logger.WarnContext(ctx, "rectree: documents not listed", "group", folder.Group.Title, "error", err)
			return
		}
		bound := len(initial)
		w.s.Logger.InfoContext(ctx, "rectree: documents discovered", "group", folder.Group.Title, "count", bound)

		for pos := 0; pos < bound; pos++ {
			if ctx.Err() != nil {
				return
			}
			els, err := session.Fresh(ctx, folder.entries)
			if err != nil || pos >= len(els) {
				w.s.Logger.WarnContext(ctx, "rectree: document skipped", "group", folder.Group.Title,
					"position", pos, "found", len(els), "error", err)
				continue
			}
			doc := Document{
				entry:  treatment.DocumentEntry{DisplayName: documentName(ctx, els[pos], pos), Position: pos},
				folder: folder,
			}
			if !yield(doc) {
				return
			}
		}
	}
}

func documentName(ctx context.Context, link uicap.Element, pos int) string {
	if name := textOf(ctx, link, site.DocumentName); name != "" {
		return name
	}
	if txt, err := link.Text(ctx); err == nil && strings.TrimSpace(txt) != "" {
		return strings.TrimSpace(txt)
	}
	return "File_" + strconv.Itoa(pos+1)
}

func textOf(ctx context.Context, scope uicap.Element, loc uicap.Locator) string {
	el, err := scope.Find(ctx, loc)
	if err != nil {
		return ""
	}
	txt, err := el.Text(ctx)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(txt)
}
