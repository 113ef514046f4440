// Package waymark is the composition root: a Session wires the tree,
// anchor, highlight, navigation, and storage packages into the operation
// set the host consumes (spec §6 "Exposed (to the host)").
package waymark

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/waymark/waymark/anchor"
	"github.com/waymark/waymark/bookmark"
	"github.com/waymark/waymark/highlight"
	"github.com/waymark/waymark/navigation"
	"github.com/waymark/waymark/storage"
	"github.com/waymark/waymark/tree"
)

// Session holds everything one conversation's annotation state needs. It
// holds no process-wide mutable state; every piece is an explicit field
// constructed at NewSession time (spec §9's "model these as an explicit
// session object passed into the core at initialization").
type Session struct {
	Platform       string
	ConversationID string
	Root           *tree.Node

	gateway  *storage.Gateway
	renderer *highlight.Renderer
	nav      *navigation.Index
	clock    func() time.Time
}

// NewSession constructs a Session over root, persisting through store, with
// navigation driven by clock (time.Now in production). onMutated is passed
// through to the renderer and may be nil.
func NewSession(platform, conversationID string, root *tree.Node, store storage.KVStore, clock func() time.Time, onMutated highlight.OnTreeMutated) (*Session, error) {
	if clock == nil {
		clock = time.Now
	}
	gw, err := storage.NewGateway(store)
	if err != nil {
		return nil, err
	}
	s := &Session{
		Platform:       platform,
		ConversationID: conversationID,
		Root:           root,
		gateway:        gw,
		renderer:       highlight.NewRenderer(root, onMutated),
		nav:            navigation.NewIndex(conversationID, clock),
		clock:          clock,
	}
	s.nav.Initialize(s.gateway.GetHighlights(storage.Filter{ConversationID: conversationID}))
	return s, nil
}

// CreateAnchor wraps anchor.CreateAnchor, scoping selections to the
// session's tree (spec §6's anchor.create).
func (s *Session) CreateAnchor(sel *tree.Selection) (*anchor.Anchor, error) {
	return anchor.CreateAnchor(sel, s.Root)
}

// ResolveAnchor wraps anchor.ResolveAnchor against the session's tree
// (spec §6's anchor.resolve).
func (s *Session) ResolveAnchor(a *anchor.Anchor) (*tree.Range, anchor.Strategy, bool) {
	return anchor.ResolveAnchor(a, s.Root)
}

// SaveHighlight creates a Record from sel, persists it, renders it, and
// refreshes the navigation index.
func (s *Session) SaveHighlight(sel *tree.Selection, note string, tags []string, color string) (*bookmark.Record, []error) {
	a, err := s.CreateAnchor(sel)
	if err != nil {
		return nil, []error{err}
	}
	rec := bookmark.New(s.Platform, s.ConversationID, sel.MessageID, a, s.clock())
	rec.Note = note
	rec.Tags = tags
	rec.Color = color

	if errs := s.gateway.SaveHighlight(rec, s.clock()); len(errs) != 0 {
		return nil, errs
	}
	s.renderer.Render(rec.ID, a, DefaultHighlightClass, true)
	s.nav.Reload(s.gateway.GetHighlights(storage.Filter{ConversationID: s.ConversationID}))
	s.resolveActiveOverlaps()
	return rec, nil
}

// RemoveHighlight unwraps and deletes a highlight by id.
func (s *Session) RemoveHighlight(id string) {
	s.renderer.Remove(id)
	s.gateway.DeleteHighlight(id)
	s.nav.Reload(s.gateway.GetHighlights(storage.Filter{ConversationID: s.ConversationID}))
	s.resolveActiveOverlaps()
}

// RestoreHighlights renders every record in batches of batchSize (spec
// §4.8's renderer.restore), yielding between batches via onBatch so a host
// can interleave input handling (spec §5), then runs one final overlap
// resolution pass over everything rendered.
func (s *Session) RestoreHighlights(records []*bookmark.Record, batchSize int, onBatch func()) highlight.RestoreResult {
	items := make([]highlight.RestoreItem, 0, len(records))
	for _, rec := range records {
		items = append(items, highlight.RestoreItem{ID: rec.ID, Anchor: rec.Anchor, StyleClass: DefaultHighlightClass})
	}
	result := s.renderer.Restore(items, batchSize, onBatch)
	s.nav.Reload(s.gateway.GetHighlights(storage.Filter{ConversationID: s.ConversationID}))
	s.resolveActiveOverlaps()
	return result
}

// ClearAllHighlights unwraps every active highlight and returns the count
// removed, re-running overlap resolution (spec §4.8's renderer.clearAll).
func (s *Session) ClearAllHighlights() int {
	count := s.renderer.ClearAll()
	s.resolveActiveOverlaps()
	return count
}

// UpdateHighlight merges permitted field changes and restyles the active
// element if its color changed.
func (s *Session) UpdateHighlight(id string, fields bookmark.MutableFields) error {
	if err := s.gateway.UpdateHighlight(id, fields, s.clock()); err != nil {
		return err
	}
	if fields.Color != nil {
		s.renderer.Update(id, DefaultHighlightClass)
	}
	s.resolveActiveOverlaps()
	return nil
}

// resolveActiveOverlaps rebuilds spans for every currently active highlight
// (from the navigation index's bookmark records, which carry each anchor's
// offsets) and re-runs overlap resolution, per spec §4.8's "re-run overlap
// resolution" after every render/remove/update. Each span's Container is
// the highlight's message id: anchor offsets are only comparable within the
// same message container (spec §4.3), and two highlights in different
// messages can never share a text node (spec §4.7), so grouping must never
// cross that boundary.
func (s *Session) resolveActiveOverlaps() {
	active := s.renderer.ActiveIDs()
	if len(active) == 0 {
		return
	}
	activeSet := make(map[string]bool, len(active))
	for _, id := range active {
		activeSet[id] = true
	}
	spans := make([]highlight.Span, 0, len(active))
	for _, rec := range s.nav.Bookmarks {
		if !activeSet[rec.ID] || rec.Anchor == nil {
			continue
		}
		spans = append(spans, highlight.Span{
			ID:        rec.ID,
			Container: rec.MessageID,
			Start:     rec.Anchor.StartOffset,
			End:       rec.Anchor.EndOffset,
			Created:   parseCreatedOrder(rec.Created),
		})
	}
	s.ResolveOverlaps(spans)
}

func parseCreatedOrder(created string) int64 {
	t, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return 0
	}
	return t.UnixNano()
}

// DefaultHighlightClass is applied to every wrapped highlight element; a
// record's Color is metadata for the host's own stylesheet to key off of,
// not something this package maps into a CSS class itself.
const DefaultHighlightClass = "waymark-highlight"

// Highlights returns the stored records matching filter.
func (s *Session) Highlights(filter storage.Filter) []*bookmark.Record {
	return s.gateway.GetHighlights(filter)
}

// ResolveOverlaps recomputes overlap groups over the session's currently
// active highlights and applies the resulting opacities to the tree.
func (s *Session) ResolveOverlaps(spans []highlight.Span) {
	for _, group := range highlight.DetectOverlaps(spans) {
		resolved := highlight.ResolveOverlapGroup(group, spans)
		highlight.ApplyResolvedClasses(s.Root, resolved)
	}
}

// NavigateTo, NavigateNext, NavigatePrevious, and RefreshNavigation delegate
// to the session's navigation index.
func (s *Session) NavigateTo(id string) bool {
	return s.nav.NavigateTo(id)
}

func (s *Session) NavigateNext() bool {
	return s.nav.NavigateNext()
}

func (s *Session) NavigatePrevious() bool {
	return s.nav.NavigatePrevious()
}

func (s *Session) RefreshNavigation() {
	s.nav.Refresh()
}

// CurrentBookmark returns the record at the navigation cursor, or nil if
// nothing is selected.
func (s *Session) CurrentBookmark() *bookmark.Record {
	if s.nav.Cursor < 0 || s.nav.Cursor >= len(s.nav.Bookmarks) {
		return nil
	}
	return s.nav.Bookmarks[s.nav.Cursor]
}

// UpdateConversation switches the session to a different conversation,
// reloading its highlights and navigation index.
func (s *Session) UpdateConversation(conversationID string) {
	s.ConversationID = conversationID
	s.nav.UpdateConversation(conversationID, s.gateway.GetHighlights(storage.Filter{ConversationID: conversationID}))
}

// Flush persists any pending writes immediately.
func (s *Session) Flush() error { return s.gateway.FlushPending() }

// ExportJSON and ExportMarkdown are stateless transforms over a highlight
// list (spec §6's "Export formats").
func ExportJSON(records []*bookmark.Record) (string, error) {
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func ExportMarkdown(records []*bookmark.Record) string {
	var b strings.Builder
	for _, r := range records {
		text := ""
		if r.Anchor != nil {
			text = r.Anchor.SelectedText
		}
		fmt.Fprintf(&b, "- %q — %s — %s\n", text, r.Note, r.Created)
	}
	return b.String()
}
