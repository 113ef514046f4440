// Package anchor implements the three cascading anchor-resolution strategies
// (spec §4.5): path selector (§4.2), offset anchor (§4.3), and fuzzy matching
// (delegated to package fuzzy, §4.4), plus the Anchor entity itself (spec
// §3) and its create/resolve/validate operations.
package anchor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/waymark/waymark/tree"
)

// DefaultDepthCap bounds path selector length (spec §4.2).
const DefaultDepthCap = 10

// PathResult is the outcome of creating a path selector for a node.
type PathResult struct {
	Path            string
	HitDepthCap     bool
	MissingStableID bool
}

// CreatePath walks from n up to the root, emitting at each step either
// `*[@id='…']` when the element carries a stable identifier, or `tag[k]`
// where k is n's 1-based index among same-tag siblings (spec §4.2). Walking
// stops as soon as a stable-id ancestor is found, since that id is enough to
// re-locate the subtree later.
//
// If the chain from n up to and including the stable-id ancestor (or the
// true root) has more than depthCap steps, HitDepthCap is set and the path
// keeps the depthCap steps nearest n, anchored at that stable-id ancestor,
// per spec §4.2's depth-cap rule. If no such ancestor exists at all, the path
// is anchored at the document root and MissingStableID is set.
func CreatePath(n *tree.Node, depthCap int) PathResult {
	if depthCap <= 0 {
		depthCap = DefaultDepthCap
	}

	// Collect the step chain from n up towards the root, stopping at the
	// first stable-id ancestor (inclusive).
	type step struct {
		node    *tree.Node
		isIDAnchor bool
	}
	var chain []step
	cur := n
	for cur != nil {
		if cur.Kind() == tree.ElementKind && cur.ID() != "" {
			chain = append(chain, step{cur, true})
			break
		}
		chain = append(chain, step{cur, false})
		cur = cur.Parent()
	}

	hitRoot := len(chain) > 0 && chain[len(chain)-1].node.Parent() == nil && !chain[len(chain)-1].isIDAnchor
	missingStableID := hitRoot

	hitCap := len(chain) > depthCap
	if hitCap {
		// Keep the nearest depthCap steps to n; look further up the same
		// chain (which already walks to either a stable-id ancestor or the
		// root) for an anchor point.
		kept := chain[:depthCap]
		rest := chain[depthCap:]
		var anchorStep step
		if len(rest) > 0 {
			anchorStep = rest[len(rest)-1]
		} else {
			anchorStep = kept[len(kept)-1]
			kept = kept[:len(kept)-1]
		}
		missingStableID = !anchorStep.isIDAnchor
		chain = append(kept, anchorStep)
	}

	// chain is ordered n -> ... -> anchor; emit root/anchor-first.
	parts := make([]string, len(chain))
	for i, st := range chain {
		idx := len(chain) - 1 - i
		node := st.node
		if st.isIDAnchor {
			parts[idx] = fmt.Sprintf("*[@id='%s']", node.ID())
			continue
		}
		if node.Kind() == tree.TextKind {
			parts[idx] = fmt.Sprintf("text()[%d]", node.IndexAmongSameTagSiblings())
			continue
		}
		parts[idx] = fmt.Sprintf("%s[%d]", node.Tag(), node.IndexAmongSameTagSiblings())
	}

	return PathResult{
		Path:            strings.Join(parts, "/"),
		HitDepthCap:     hitCap,
		MissingStableID: missingStableID,
	}
}

// parsedStep is one syntactic unit of a path selector.
type parsedStep struct {
	idAnchor string // non-empty for *[@id='...'] steps
	tag      string
	index    int // 1-based
	isText   bool
}

// ValidatePathSyntax reports whether path parses cleanly (spec §4.2's
// syntactic validity), without attempting to resolve it against any tree.
func ValidatePathSyntax(path string) bool {
	_, err := parsePath(path)
	return err == nil
}

func parsePath(path string) ([]parsedStep, error) {
	if path == "" {
		return nil, errEmptyPath
	}
	segments := strings.Split(path, "/")
	steps := make([]parsedStep, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			return nil, errMalformedStep
		}
		if strings.HasPrefix(seg, "*[@id='") && strings.HasSuffix(seg, "']") {
			id := seg[len("*[@id='") : len(seg)-len("']")]
			if id == "" {
				return nil, errMalformedStep
			}
			steps = append(steps, parsedStep{idAnchor: id})
			continue
		}
		open := strings.IndexByte(seg, '[')
		if open < 0 || !strings.HasSuffix(seg, "]") {
			return nil, errMalformedStep
		}
		tag := seg[:open]
		idxStr := seg[open+1 : len(seg)-1]
		idx, err := strconv.Atoi(idxStr)
		if err != nil || idx < 1 || tag == "" {
			return nil, errMalformedStep
		}
		if tag == "text()" {
			steps = append(steps, parsedStep{isText: true, index: idx})
			continue
		}
		steps = append(steps, parsedStep{tag: tag, index: idx})
	}
	return steps, nil
}

// ResolvePath evaluates the path selector against the current tree,
// descending deterministically from root. A missing child at any step fails
// resolution (spec §4.2's "Resolution"). root is the tree's true root,
// consulted to resolve `*[@id='...']` anchor steps wherever they occur in
// the document.
//
// When the path has no `*[@id='...']` anchor step, its first step describes
// the document root itself (CreatePath emits one step per ancestor up to
// and including the root when no stable-id ancestor exists along the way),
// not a child of it — so that first step is matched against root directly
// rather than searched for among root's children.
func ResolvePath(root *tree.Node, path string) (*tree.Node, bool) {
	steps, err := parsePath(path)
	if err != nil {
		return nil, false
	}

	var cur *tree.Node
	start := 0
	if steps[0].idAnchor != "" {
		cur = findByID(root, steps[0].idAnchor)
		if cur == nil {
			return nil, false
		}
		start = 1
	} else {
		if !matchesStep(root, steps[0]) {
			return nil, false
		}
		cur = root
		start = 1
	}

	for _, st := range steps[start:] {
		next := nthMatchingChild(cur, st)
		if next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// matchesStep reports whether n itself (not one of its children) satisfies
// step st — used for the root-anchored path's first step.
func matchesStep(n *tree.Node, st parsedStep) bool {
	if st.isText {
		return n.Kind() == tree.TextKind
	}
	return n.Kind() == tree.ElementKind && n.Tag() == st.tag && n.IndexAmongSameTagSiblings() == st.index
}

func nthMatchingChild(parent *tree.Node, st parsedStep) *tree.Node {
	count := 0
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		if st.isText {
			if c.Kind() != tree.TextKind {
				continue
			}
		} else {
			if c.Kind() != tree.ElementKind || c.Tag() != st.tag {
				continue
			}
		}
		count++
		if count == st.index {
			return c
		}
	}
	return nil
}

func findByID(root *tree.Node, id string) *tree.Node {
	if root.Kind() == tree.ElementKind && root.ID() == id {
		return root
	}
	for c := root.FirstChild(); c != nil; c = c.NextSibling() {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// IsSemanticallyValid reports whether path both parses and resolves to an
// existing node in root right now (spec §4.2's semantic validity).
func IsSemanticallyValid(root *tree.Node, path string) bool {
	_, ok := ResolvePath(root, path)
	return ok
}

var (
	errEmptyPath     = pathErr("path is empty")
	errMalformedStep = pathErr("path step is malformed")
)

type pathErr string

func (e pathErr) Error() string { return string(e) }
