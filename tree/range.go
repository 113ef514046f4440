package tree

import "sort"

// Range is a contiguous span between two (node, offset) boundary points,
// adapted from dom.Range's four-field shape (spec §4.1, §3 "Range" entity).
// Unlike the teacher's live, mutation-tracked Range, a tree.Range is a plain
// value: the engine always resolves a fresh Range rather than holding one
// open across tree mutations (spec §5 — only storage, batch restore, and
// view-bringing may suspend; ranges never need to survive a yield point).
type Range struct {
	StartNode   *Node
	StartOffset int
	EndNode     *Node
	EndOffset   int
}

// NewRange constructs a Range after validating it per spec §4.1: both
// endpoints must resolve within the same tree, and start must precede or
// equal end in document order. Collapsed ranges are accepted here; anchor
// creation is what rejects collapsed selections.
func NewRange(startNode *Node, startOffset int, endNode *Node, endOffset int) (*Range, error) {
	if startNode == nil || endNode == nil {
		return nil, errNilEndpoint
	}
	if startNode.Root() != endNode.Root() {
		return nil, errCrossDocument
	}
	r := &Range{StartNode: startNode, StartOffset: startOffset, EndNode: endNode, EndOffset: endOffset}
	if ComparePoints(startNode, startOffset, endNode, endOffset) > 0 {
		return nil, errInverted
	}
	return r, nil
}

// Collapsed reports whether the range's two boundary points coincide.
func (r *Range) Collapsed() bool {
	return r.StartNode == r.EndNode && r.StartOffset == r.EndOffset
}

// Clone returns a copy of the range.
func (r *Range) Clone() *Range {
	c := *r
	return &c
}

// Snapshot is an immutable, non-live copy of a Range's boundary points,
// adapted from dom.StaticRange's stated purpose: remember where a range
// pointed without needing live mutation tracking (spec §9's reference-graph
// design note — anchors and wrapped elements should not hold tree references
// beyond what's needed to re-derive their position).
type Snapshot struct {
	StartNode   *Node
	StartOffset int
	EndNode     *Node
	EndOffset   int
}

// Snapshot freezes the range's current boundary points.
func (r *Range) Snapshot() Snapshot {
	return Snapshot{r.StartNode, r.StartOffset, r.EndNode, r.EndOffset}
}

// CommonAncestor returns the deepest node containing both boundary points.
func (r *Range) CommonAncestor() *Node {
	ancestors := make(map[*Node]bool)
	for n := r.StartNode; n != nil; n = n.parent {
		ancestors[n] = true
	}
	for n := r.EndNode; n != nil; n = n.parent {
		if ancestors[n] {
			return n
		}
	}
	return nil
}

// TextNodesInRange walks the text nodes contained within the range, in
// document order (spec §4.1's range.walk-text-nodes-contained-within).
func (r *Range) TextNodesInRange() []*Node {
	ancestor := r.CommonAncestor()
	if ancestor == nil {
		return nil
	}
	var out []*Node
	for _, tn := range TextNodesInSubtree(ancestor) {
		if r.nodeIntersects(tn) {
			out = append(out, tn)
		}
	}
	return out
}

// Text returns the range's canonical string view: the concatenation of the
// (possibly partial) text of every text node it contains.
func (r *Range) Text() string {
	if r.Collapsed() {
		return ""
	}
	if r.StartNode == r.EndNode && r.StartNode.kind == TextKind {
		runes := []rune(r.StartNode.text)
		return string(runes[clampOffset(r.StartOffset, len(runes)):clampOffset(r.EndOffset, len(runes))])
	}
	var sb []rune
	for _, tn := range r.TextNodesInRange() {
		runes := []rune(tn.text)
		start, end := 0, len(runes)
		if tn == r.StartNode {
			start = clampOffset(r.StartOffset, len(runes))
		}
		if tn == r.EndNode {
			end = clampOffset(r.EndOffset, len(runes))
		}
		if start < end {
			sb = append(sb, runes[start:end]...)
		}
	}
	return string(sb)
}

func clampOffset(offset, length int) int {
	if offset < 0 {
		return 0
	}
	if offset > length {
		return length
	}
	return offset
}

// Intersects reports whether the range contains any portion of node
// (spec §4.1's intersects(range, node)).
func Intersects(r *Range, node *Node) bool {
	return r.nodeIntersects(node)
}

func (r *Range) nodeIntersects(node *Node) bool {
	parent := node.parent
	if parent == nil {
		return true
	}
	start := node.IndexAmongSiblings()
	end := start + 1
	if ComparePoints(parent, start, r.EndNode, r.EndOffset) >= 0 {
		return false
	}
	if ComparePoints(parent, end, r.StartNode, r.StartOffset) <= 0 {
		return false
	}
	return true
}

// ComparePoints compares two boundary points in document order, returning
// -1, 0, or 1, mirroring dom.Range.comparePoints.
func ComparePoints(nodeA *Node, offsetA int, nodeB *Node, offsetB int) int {
	if nodeA == nodeB {
		switch {
		case offsetA < offsetB:
			return -1
		case offsetA > offsetB:
			return 1
		default:
			return 0
		}
	}

	if IsAncestor(nodeA, nodeB) {
		child := nodeB
		for child.parent != nodeA {
			child = child.parent
		}
		if child.IndexAmongSiblings() < offsetA {
			return 1
		}
		return -1
	}

	if IsAncestor(nodeB, nodeA) {
		child := nodeA
		for child.parent != nodeB {
			child = child.parent
		}
		if child.IndexAmongSiblings() < offsetB {
			return -1
		}
		return 1
	}

	return compareSiblingOrder(nodeA, nodeB)
}

func compareSiblingOrder(nodeA, nodeB *Node) int {
	pathA := Path(nodeA)
	pathB := Path(nodeB)

	var ancestorA, ancestorB *Node
	for i := 0; i < len(pathA) && i < len(pathB); i++ {
		if pathA[i] != pathB[i] {
			if i > 0 {
				ancestorA = pathA[i]
				ancestorB = pathB[i]
			}
			break
		}
	}
	if ancestorA == nil || ancestorB == nil {
		return 0
	}

	parent := ancestorA.parent
	for c := parent.firstChild; c != nil; c = c.nextSibling {
		if c == ancestorA {
			return -1
		}
		if c == ancestorB {
			return 1
		}
	}
	return 0
}

// sortByDocumentOrder sorts nodes in document order in place.
func sortByDocumentOrder(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := nodes[i], nodes[j]
		pa, pb := a.IndexAmongSiblings(), b.IndexAmongSiblings()
		return ComparePoints(a, pa, b, pb) < 0
	})
}

// SortByDocumentOrder sorts nodes in document order in place.
func SortByDocumentOrder(nodes []*Node) { sortByDocumentOrder(nodes) }

var (
	errNilEndpoint   = &treeError{"range endpoint is nil"}
	errCrossDocument = &treeError{"range endpoints are in different trees"}
	errInverted      = &treeError{"range start is after end"}
)
