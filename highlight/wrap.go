// Package highlight implements the text wrapper, overlap manager, and
// renderer that turn a resolved Range into visible, stylable tree nodes and
// back (spec §4.6/§4.7/§4.8).
package highlight

import (
	"fmt"

	"github.com/waymark/waymark/errs"
	"github.com/waymark/waymark/tree"
)

// WrapTag is the element tag used for wrapped highlight spans, mirroring
// the teacher's convention of a dedicated inline wrapper element.
const WrapTag = "mark"

// WrappedElement is one span created to cover part of a range; a single
// WrapRange call may produce several, one per text node the range crosses.
type WrappedElement struct {
	Element   *tree.Node
	TextNode  *tree.Node // the (possibly split) text node now inside Element
}

// WrapResult is the outcome of wrapping a range.
type WrapResult struct {
	HighlightID string
	Elements    []*WrappedElement
	Errors      []error // per-text-node wrap failures; a partial success list
}

// WrapRange splits each text node the range crosses at its boundary offsets
// and wraps the resulting interior text node in a new <mark> element
// carrying data-highlight-id and class attributes (spec §4.6's wrap
// algorithm). Failures on individual text nodes are collected rather than
// aborting the whole operation, so a caller sees the partial result.
func WrapRange(r *tree.Range, highlightID, styleClass string) (*WrapResult, error) {
	if r == nil {
		return nil, errs.NewWrapFailed("range is nil")
	}
	if highlightID == "" {
		return nil, errs.NewWrapFailed("highlightID is empty")
	}

	textNodes := r.TextNodesInRange()
	if len(textNodes) == 0 {
		return nil, errs.NewWrapFailed("range contains no text")
	}

	result := &WrapResult{HighlightID: highlightID}
	for _, tn := range textNodes {
		wrapped, err := wrapOne(r, tn, highlightID, styleClass)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("wrap text node: %w", err))
			continue
		}
		if wrapped != nil {
			result.Elements = append(result.Elements, wrapped)
		}
	}
	if len(result.Elements) == 0 && len(result.Errors) > 0 {
		return result, errs.NewWrapFailed("no text node could be wrapped")
	}
	return result, nil
}

// wrapOne splits tn down to just the portion covered by r, then replaces
// that interior text node with a <mark> wrapping it.
func wrapOne(r *tree.Range, tn *tree.Node, highlightID, styleClass string) (*WrappedElement, error) {
	parent := tn.Parent()
	if parent == nil {
		return nil, fmt.Errorf("text node has no parent")
	}

	startOffset := 0
	if tn == r.StartNode {
		startOffset = r.StartOffset
	}
	endOffset := tn.Len()
	if tn == r.EndNode {
		endOffset = r.EndOffset
	}
	if startOffset >= endOffset {
		return nil, nil
	}

	interior := tn
	if startOffset > 0 {
		_, right, err := tree.SplitText(interior, startOffset)
		if err != nil {
			return nil, err
		}
		interior = right
		endOffset -= startOffset
		startOffset = 0
	}
	if endOffset < interior.Len() {
		left, _, err := tree.SplitText(interior, endOffset)
		if err != nil {
			return nil, err
		}
		interior = left
	}

	mark := tree.NewElement(WrapTag)
	mark.SetAttr("data-highlight-id", highlightID)
	if styleClass != "" {
		mark.SetAttr("class", styleClass)
	}

	host := interior.Parent()
	if host == nil {
		return nil, fmt.Errorf("interior text node lost its parent during split")
	}
	host.ReplaceChild(interior, mark)
	mark.AppendChild(interior)

	return &WrappedElement{Element: mark, TextNode: interior}, nil
}

// RemoveHighlights unwraps every <mark> in the subtree rooted at root that
// carries the given highlight id, replacing each with its text content.
// Adjacent text-node coalescing is a separate, explicit step (MergeAdjacent)
// rather than automatic: the wrap/unwrap identity invariant (spec §8
// property 1) only requires textual equivalence, not node-count
// equivalence, so callers that care about a tidy node count opt in.
func RemoveHighlights(root *tree.Node, highlightID string) int {
	marks := findMarks(root, highlightID)
	for _, m := range marks {
		unwrap(m)
	}
	return len(marks)
}

func findMarks(n *tree.Node, highlightID string) []*tree.Node {
	var found []*tree.Node
	var walk func(*tree.Node)
	walk = func(cur *tree.Node) {
		if cur.Kind() == tree.ElementKind && cur.Tag() == WrapTag &&
			(highlightID == "" || cur.Attr("data-highlight-id") == highlightID) {
			found = append(found, cur)
		}
		for c := cur.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
	}
	walk(n)
	return found
}

func unwrap(mark *tree.Node) {
	parent := mark.Parent()
	if parent == nil {
		return
	}
	children := mark.Children()
	if len(children) == 0 {
		parent.RemoveChild(mark)
		return
	}
	parent.ReplaceChild(mark, children...)
}

// MergeAdjacent coalesces sibling text nodes produced by unwrap back into a
// single text node, restoring the tree a wrap/unwrap round trip should
// leave behind (spec §8 property 1 and 3).
func MergeAdjacent(root *tree.Node) {
	var walk func(*tree.Node)
	walk = func(n *tree.Node) {
		child := n.FirstChild()
		for child != nil {
			next := child.NextSibling()
			if child.Kind() == tree.TextKind && next != nil && next.Kind() == tree.TextKind {
				child.SetText(child.Text() + next.Text())
				n.RemoveChild(next)
				continue // re-examine child against its new next sibling
			}
			child = next
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
	}
	walk(root)
}

// UpdateStyling rewrites the class attribute on every <mark> for
// highlightID within root.
func UpdateStyling(root *tree.Node, highlightID, styleClass string) int {
	marks := findMarks(root, highlightID)
	for _, m := range marks {
		if styleClass == "" {
			m.SetAttr("class", "")
		} else {
			m.SetAttr("class", styleClass)
		}
	}
	return len(marks)
}
