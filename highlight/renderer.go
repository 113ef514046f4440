package highlight

import (
	"github.com/waymark/waymark/anchor"
	"github.com/waymark/waymark/tree"
)

// FlashClass is appended briefly to a freshly rendered highlight to draw
// the reader's eye to it, mirroring the teacher's transient-state styling
// convention. The renderer does not itself time the flash's removal; the
// host clears it after its own animation duration.
const FlashClass = "waymark-flash"

// RenderResult is returned by Render.
type RenderResult struct {
	ID       string
	Elements []*WrappedElement
	Warnings []error
}

// RestoreResult is returned by Restore.
type RestoreResult struct {
	Rendered int
	Failed   []string // ids that could not be resolved or wrapped
}

// OnTreeMutated, if set, is invoked after any operation that mutates the
// tree (render, remove, update, restore, clearAll), letting a host refresh
// derived state such as a minimap. Optional; nil is a valid no-op value.
type OnTreeMutated func()

// Renderer owns the live mapping from highlight id to its wrapped elements
// and the only tree mutations the highlight subsystem performs (spec §5's
// "the tree is exclusively mutated by the text wrapper under the
// renderer's direction").
type Renderer struct {
	root    *tree.Node
	active  map[string][]*WrappedElement
	onMutated OnTreeMutated
}

// NewRenderer constructs a Renderer over root. onMutated may be nil.
func NewRenderer(root *tree.Node, onMutated OnTreeMutated) *Renderer {
	return &Renderer{
		root:      root,
		active:    make(map[string][]*WrappedElement),
		onMutated: onMutated,
	}
}

func (rd *Renderer) notify() {
	if rd.onMutated != nil {
		rd.onMutated()
	}
}

// Render resolves a's current range against the renderer's tree and wraps
// it, recording the result in the active map (spec §6's renderer.render).
func (rd *Renderer) Render(id string, a *anchor.Anchor, styleClass string, flash bool) (RenderResult, bool) {
	r, _, ok := anchor.ResolveAnchor(a, rd.root)
	if !ok {
		return RenderResult{ID: id}, false
	}
	class := styleClass
	if flash && class != "" {
		class = class + " " + FlashClass
	} else if flash {
		class = FlashClass
	}
	wrapped, err := WrapRange(r, id, class)
	if err != nil {
		return RenderResult{ID: id, Warnings: []error{err}}, false
	}
	rd.active[id] = wrapped.Elements
	rd.notify()
	return RenderResult{ID: id, Elements: wrapped.Elements, Warnings: wrapped.Errors}, true
}

// Remove unwraps and forgets id, reporting whether it was active.
func (rd *Renderer) Remove(id string) bool {
	if _, ok := rd.active[id]; !ok {
		return false
	}
	RemoveHighlights(rd.root, id)
	delete(rd.active, id)
	rd.notify()
	return true
}

// Update rewrites the style class for an active highlight.
func (rd *Renderer) Update(id, styleClass string) bool {
	if _, ok := rd.active[id]; !ok {
		return false
	}
	UpdateStyling(rd.root, id, styleClass)
	rd.notify()
	return true
}

// RestoreItem is one highlight to render during a batch restore.
type RestoreItem struct {
	ID         string
	Anchor     *anchor.Anchor
	StyleClass string
}

// Restore renders a batch of highlights, yielding between batches of
// batchSize so a host can interleave input handling (spec §5's "batch
// restore ... may voluntarily yield between batches"). batchSize <= 0
// defaults to rendering everything in one batch.
func (rd *Renderer) Restore(items []RestoreItem, batchSize int, yield func()) RestoreResult {
	if batchSize <= 0 {
		batchSize = len(items)
	}
	var result RestoreResult
	for i, item := range items {
		if _, ok := rd.Render(item.ID, item.Anchor, item.StyleClass, false); ok {
			result.Rendered++
		} else {
			result.Failed = append(result.Failed, item.ID)
		}
		if batchSize > 0 && (i+1)%batchSize == 0 && yield != nil {
			yield()
		}
	}
	return result
}

// ClearAll unwraps every active highlight and returns the count removed.
func (rd *Renderer) ClearAll() int {
	count := len(rd.active)
	for id := range rd.active {
		RemoveHighlights(rd.root, id)
	}
	rd.active = make(map[string][]*WrappedElement)
	rd.notify()
	return count
}

// IsActive reports whether id currently has rendered elements.
func (rd *Renderer) IsActive(id string) bool {
	_, ok := rd.active[id]
	return ok
}

// ActiveIDs returns the ids of all currently rendered highlights (a copy;
// callers never receive a reference into the renderer's internal map, per
// spec §5's "no shared mutable state is exposed through the public API").
func (rd *Renderer) ActiveIDs() []string {
	ids := make([]string, 0, len(rd.active))
	for id := range rd.active {
		ids = append(ids, id)
	}
	return ids
}
