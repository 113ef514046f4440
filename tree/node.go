// Package tree implements the abstract ordered tree the anchoring and
// highlight engine operates over (spec §4.1): element and text nodes with
// stable parent/child/sibling traversal, split-text, and atomic child
// replacement. It intentionally models only what the engine needs — two node
// kinds, an id-based stable-identifier shortcut, and a minimal attribute bag —
// rather than the full DOM object graph (namespaces, shadow roots, CSSOM,
// attribute nodes) the teacher repo's dom package implements.
package tree

import "strings"

// Kind distinguishes the two node kinds the engine reasons about.
type Kind uint8

const (
	// ElementKind is an element node with a tag name and ordered children.
	ElementKind Kind = iota
	// TextKind is a text node with string content and no children.
	TextKind
)

func (k Kind) String() string {
	switch k {
	case ElementKind:
		return "element"
	case TextKind:
		return "text"
	default:
		return "unknown"
	}
}

// Node is a single node in the tree. Only one of the type-specific fields
// (tag/attrs for elements, text for text nodes) is meaningful at a time,
// selected by Kind — mirroring how dom.Node keeps type-specific data behind
// the single nodeType discriminator rather than separate Go types per kind.
type Node struct {
	kind Kind
	tag  string
	attrs map[string]string
	text string

	parent      *Node
	firstChild  *Node
	lastChild   *Node
	prevSibling *Node
	nextSibling *Node
}

// NewElement creates a detached element node with the given tag name.
func NewElement(tag string) *Node {
	return &Node{kind: ElementKind, tag: tag}
}

// NewElementWithID creates a detached element node carrying a stable
// identifier (the path selector's `*[@id='...']` shortcut, spec §4.2).
func NewElementWithID(tag, id string) *Node {
	n := NewElement(tag)
	n.SetAttr("id", id)
	return n
}

// NewText creates a detached text node with the given content.
func NewText(data string) *Node {
	return &Node{kind: TextKind, text: data}
}

// Kind returns the node's kind.
func (n *Node) Kind() Kind { return n.kind }

// Tag returns the element tag name. Empty for text nodes.
func (n *Node) Tag() string { return n.tag }

// ID returns the stable identifier attribute, or "" if unset.
func (n *Node) ID() string { return n.Attr("id") }

// SetID sets the stable identifier attribute.
func (n *Node) SetID(id string) { n.SetAttr("id", id) }

// Attr returns an attribute value, or "" if unset or the node is not an element.
func (n *Node) Attr(name string) string {
	if n.attrs == nil {
		return ""
	}
	return n.attrs[name]
}

// SetAttr sets an attribute on an element node. No-op on text nodes.
func (n *Node) SetAttr(name, value string) {
	if n.kind != ElementKind {
		return
	}
	if n.attrs == nil {
		n.attrs = make(map[string]string)
	}
	n.attrs[name] = value
}

// Text returns the text content of a text node, or "" for elements.
func (n *Node) Text() string { return n.text }

// SetText sets the text content of a text node. No-op on element nodes.
func (n *Node) SetText(data string) {
	if n.kind != TextKind {
		return
	}
	n.text = data
}

// Len returns the node's length for range-offset purposes: the rune count of
// a text node's content, or the number of children for an element.
func (n *Node) Len() int {
	if n.kind == TextKind {
		return len([]rune(n.text))
	}
	count := 0
	for c := n.firstChild; c != nil; c = c.nextSibling {
		count++
	}
	return count
}

// Parent returns the node's parent, or nil if detached/root.
func (n *Node) Parent() *Node { return n.parent }

// FirstChild returns the node's first child, or nil.
func (n *Node) FirstChild() *Node { return n.firstChild }

// LastChild returns the node's last child, or nil.
func (n *Node) LastChild() *Node { return n.lastChild }

// PrevSibling returns the node's previous sibling, or nil.
func (n *Node) PrevSibling() *Node { return n.prevSibling }

// NextSibling returns the node's next sibling, or nil.
func (n *Node) NextSibling() *Node { return n.nextSibling }

// Children returns an ordered snapshot slice of the node's children.
func (n *Node) Children() []*Node {
	var out []*Node
	for c := n.firstChild; c != nil; c = c.nextSibling {
		out = append(out, c)
	}
	return out
}

// Root walks up through parents and returns the topmost ancestor (or n itself
// if it has no parent).
func (n *Node) Root() *Node {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// IndexAmongSiblings returns n's zero-based index among parent's children.
// Returns -1 if detached.
func (n *Node) IndexAmongSiblings() int {
	if n.parent == nil {
		return -1
	}
	i := 0
	for c := n.parent.firstChild; c != nil; c = c.nextSibling {
		if c == n {
			return i
		}
		i++
	}
	return -1
}

// IndexAmongSameTagSiblings returns n's 1-based index among parent's
// same-tag element children, the `k` used by the path selector's `tag[k]`
// step (spec §4.2). A text node returns its 1-based index among its
// text-node siblings (the `k` of a `text()[k]` step); a detached node
// returns 1.
func (n *Node) IndexAmongSameTagSiblings() int {
	if n.parent == nil {
		return 1
	}
	k := 0
	for c := n.parent.firstChild; c != nil; c = c.nextSibling {
		if c.kind != n.kind {
			continue
		}
		if c.kind == ElementKind && c.tag != n.tag {
			continue
		}
		k++
		if c == n {
			return k
		}
	}
	return 1
}

// AppendChild appends child as n's last child, detaching it from any
// current parent first.
func (n *Node) AppendChild(child *Node) {
	n.InsertBefore(child, nil)
}

// InsertBefore inserts newChild immediately before ref (appending if ref is
// nil), detaching newChild from any current parent first. Order of existing
// children is preserved.
func (n *Node) InsertBefore(newChild, ref *Node) {
	if newChild == nil || newChild == ref {
		return
	}
	if newChild.parent != nil {
		newChild.parent.removeChildLinks(newChild)
	}

	newChild.parent = n
	if ref == nil {
		newChild.prevSibling = n.lastChild
		newChild.nextSibling = nil
		if n.lastChild != nil {
			n.lastChild.nextSibling = newChild
		} else {
			n.firstChild = newChild
		}
		n.lastChild = newChild
		return
	}

	newChild.nextSibling = ref
	newChild.prevSibling = ref.prevSibling
	if ref.prevSibling != nil {
		ref.prevSibling.nextSibling = newChild
	} else {
		n.firstChild = newChild
	}
	ref.prevSibling = newChild
}

// RemoveChild detaches child from n. No-op if child is not a child of n.
func (n *Node) RemoveChild(child *Node) {
	if child == nil || child.parent != n {
		return
	}
	n.removeChildLinks(child)
	child.parent = nil
	child.prevSibling = nil
	child.nextSibling = nil
}

func (n *Node) removeChildLinks(child *Node) {
	if child.prevSibling != nil {
		child.prevSibling.nextSibling = child.nextSibling
	} else {
		n.firstChild = child.nextSibling
	}
	if child.nextSibling != nil {
		child.nextSibling.prevSibling = child.prevSibling
	} else {
		n.lastChild = child.prevSibling
	}
}

// ReplaceChild atomically replaces old (a current child of n) with
// newChildren, in order, preserving the position old occupied (spec §4.1's
// replace-child operation). If old is not a child of n, this is a no-op.
func (n *Node) ReplaceChild(old *Node, newChildren ...*Node) {
	if old == nil || old.parent != n {
		return
	}
	ref := old.nextSibling
	n.RemoveChild(old)
	for _, nc := range newChildren {
		n.InsertBefore(nc, ref)
	}
}

// TextNodesInSubtree returns every text-node descendant of n (inclusive) in
// document order, per spec §4.1's text-nodes-in-subtree traversal.
func TextNodesInSubtree(n *Node) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(node *Node) {
		if node.kind == TextKind {
			out = append(out, node)
			return
		}
		for c := node.firstChild; c != nil; c = c.nextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// SplitText replaces the text node t with two text nodes whose concatenation
// equals t's original content, at the given rune offset (spec §4.1's
// split-text). It returns the (left, right) pair; both are already attached
// in t's former position. If t is not attached to a parent, the pair is
// returned detached and t is left unchanged. It returns an error if offset is
// out of bounds or t is not a text node.
func SplitText(t *Node, offset int) (left, right *Node, err error) {
	if t.kind != TextKind {
		return nil, nil, errNotText
	}
	runes := []rune(t.text)
	if offset < 0 || offset > len(runes) {
		return nil, nil, errOffsetRange
	}
	leftText := string(runes[:offset])
	rightText := string(runes[offset:])

	parent := t.parent
	left = NewText(leftText)
	right = NewText(rightText)

	if parent == nil {
		return left, right, nil
	}
	parent.ReplaceChild(t, left, right)
	return left, right, nil
}

// Path returns the root-to-n sequence of ancestors, inclusive of n, ordered
// from root to n.
func Path(n *Node) []*Node {
	var rev []*Node
	for cur := n; cur != nil; cur = cur.parent {
		rev = append(rev, cur)
	}
	out := make([]*Node, len(rev))
	for i, node := range rev {
		out[len(rev)-1-i] = node
	}
	return out
}

// IsAncestor reports whether ancestor is a strict ancestor of n.
func IsAncestor(ancestor, n *Node) bool {
	for cur := n.parent; cur != nil; cur = cur.parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// IsInclusiveAncestor reports whether ancestor is n or a strict ancestor of n.
func IsInclusiveAncestor(ancestor, n *Node) bool {
	return ancestor == n || IsAncestor(ancestor, n)
}

// TextContent returns the concatenated text content of n's subtree.
func TextContent(n *Node) string {
	if n.kind == TextKind {
		return n.text
	}
	var sb strings.Builder
	for c := n.firstChild; c != nil; c = c.nextSibling {
		sb.WriteString(TextContent(c))
	}
	return sb.String()
}

var (
	errNotText     = &treeError{"node is not a text node"}
	errOffsetRange = &treeError{"offset is out of range"}
)

type treeError struct{ msg string }

func (e *treeError) Error() string { return e.msg }
