package anchor

import (
	"strings"

	"github.com/waymark/waymark/errs"
	"github.com/waymark/waymark/fuzzy"
	"github.com/waymark/waymark/tree"
)

// Strategy identifies which cascade strategy produced (or should produce) a
// resolved range (spec §6's wire format: "path", "offset", "fuzzy").
type Strategy string

const (
	StrategyPath   Strategy = "path"
	StrategyOffset Strategy = "offset"
	StrategyFuzzy  Strategy = "fuzzy"
)

// Confidence penalties (spec §9 Open Question: "illustrative and must be
// documented as part of the implementation rather than treated as a
// de-facto contract"). These are the values spec.md itself proposes.
const (
	penaltyDepthCapHit     = 0.10
	penaltyMissingStableID = 0.05
	penaltyShortContext    = 0.05
)

// DefaultContextLength is the default number of characters captured on each
// side of a selection as context (spec §4.5 step 3).
const DefaultContextLength = 50

// Anchor is a location descriptor that re-identifies a text span after the
// surrounding tree mutates (spec §3 "Anchor" entity). It is immutable once
// created.
type Anchor struct {
	SelectedText  string   `json:"selectedText"`
	StartOffset   int      `json:"startOffset"` // absolute rune offset of the span's start within ContainerID's container
	EndOffset     int      `json:"endOffset"`
	Path          string   `json:"path"`
	MessageID     string   `json:"messageId"`
	ContainerID   string   `json:"containerId,omitempty"` // stable id of the enclosing container, for offset-strategy re-discovery
	ContextBefore string   `json:"contextBefore"`
	ContextAfter  string   `json:"contextAfter"`
	Checksum      string   `json:"checksum"`
	Confidence    float64  `json:"confidence"`
	Strategy      Strategy `json:"strategy"`
}

// CreateAnchor validates the selection and builds an Anchor from it (spec
// §4.5's createAnchor). root is the tree the selection belongs to, used to
// compute the path selector and locate the enclosing message container.
func CreateAnchor(sel *tree.Selection, root *tree.Node) (*Anchor, error) {
	if sel == nil || sel.Range == nil {
		return nil, errs.NewInvalidSelection("selection has no range")
	}
	r := sel.Range
	if r.Collapsed() {
		return nil, errs.NewInvalidSelection("selection is collapsed")
	}
	if r.StartNode.Root() != root || r.EndNode.Root() != root {
		return nil, errs.NewInvalidSelection("selection endpoints are not in the given document")
	}
	selectedText := r.Text()
	if selectedText == "" {
		return nil, errs.NewInvalidSelection("selected text is empty")
	}

	commonAncestor := r.CommonAncestor()
	if commonAncestor == nil {
		return nil, errs.NewInvalidSelection("selection has no common ancestor")
	}
	container := nearestContainer(commonAncestor, root)

	pathResult := CreatePath(commonAncestor, DefaultDepthCap)

	startOffset, ok := ComputeOffset(container, r.StartNode, r.StartOffset)
	if !ok {
		return nil, errs.NewInvalidSelection("selection start is not within its container")
	}
	endOffset, ok := ComputeOffset(container, r.EndNode, r.EndOffset)
	if !ok {
		return nil, errs.NewInvalidSelection("selection end is not within its container")
	}

	containerText := tree.TextContent(container)
	containerRunes := []rune(containerText)
	ctxBefore := sliceRunes(containerRunes, startOffset-DefaultContextLength, startOffset)
	ctxAfter := sliceRunes(containerRunes, endOffset, endOffset+DefaultContextLength)

	confidence := 1.0
	if pathResult.HitDepthCap {
		confidence -= penaltyDepthCapHit
	}
	if pathResult.MissingStableID {
		confidence -= penaltyMissingStableID
	}
	if len([]rune(ctxBefore)) < DefaultContextLength {
		confidence -= penaltyShortContext
	}
	if len([]rune(ctxAfter)) < DefaultContextLength {
		confidence -= penaltyShortContext
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &Anchor{
		SelectedText:  selectedText,
		StartOffset:   startOffset,
		EndOffset:     endOffset,
		Path:          pathResult.Path,
		MessageID:     sel.MessageID,
		ContainerID:   container.ID(),
		ContextBefore: ctxBefore,
		ContextAfter:  ctxAfter,
		Checksum:      Checksum(ctxBefore, selectedText, ctxAfter),
		Confidence:    confidence,
		Strategy:      StrategyPath,
	}, nil
}

// ValidateAnchor returns true iff a satisfies all structural invariants:
// non-empty text, end > start, confidence > 0, and a well-formed checksum
// (spec §4.5's validateAnchor). Structural validity is independent of
// whether the anchor currently resolves.
func ValidateAnchor(a *Anchor) bool {
	if a == nil {
		return false
	}
	if a.SelectedText == "" {
		return false
	}
	if a.EndOffset <= a.StartOffset {
		return false
	}
	if a.Confidence <= 0 {
		return false
	}
	if !isWellFormedChecksum(a.Checksum) {
		return false
	}
	return true
}

// ResolveAnchor applies the path, offset, then fuzzy strategies in order
// against root, returning the first range whose extracted text equals or
// fuzzy-matches a.SelectedText (spec §4.5's resolveAnchor). Each strategy's
// internal failures are swallowed; if all three fail, ok is false.
func ResolveAnchor(a *Anchor, root *tree.Node) (r *tree.Range, strategy Strategy, ok bool) {
	if rng, ok := tryPathStrategy(a, root); ok {
		return rng, StrategyPath, true
	}
	if rng, ok := tryOffsetStrategy(a, root); ok {
		return rng, StrategyOffset, true
	}
	if rng, ok := tryFuzzyStrategy(a, root); ok {
		return rng, StrategyFuzzy, true
	}
	return nil, "", false
}

func tryPathStrategy(a *Anchor, root *tree.Node) (*tree.Range, bool) {
	subtreeRoot, ok := ResolvePath(root, a.Path)
	if !ok {
		return nil, false
	}
	subtreeText := tree.TextContent(subtreeRoot)
	idx := strings.Index(subtreeText, a.SelectedText)
	if idx < 0 {
		return nil, false
	}
	rng, ok := ResolveOffset(subtreeRoot, len([]rune(subtreeText[:idx])), len([]rune(a.SelectedText)))
	if !ok {
		return nil, false
	}
	return rng, true
}

func tryOffsetStrategy(a *Anchor, root *tree.Node) (*tree.Range, bool) {
	container := rediscoverContainer(a, root)
	if container == nil {
		return nil, false
	}
	rng, ok := ResolveOffset(container, a.StartOffset, a.EndOffset-a.StartOffset)
	if !ok {
		return nil, false
	}
	got := rng.Text()
	if got == a.SelectedText {
		return rng, true
	}
	if fuzzy.NormalizeWhitespace(got) == fuzzy.NormalizeWhitespace(a.SelectedText) {
		return rng, true
	}
	return nil, false
}

func tryFuzzyStrategy(a *Anchor, root *tree.Node) (*tree.Range, bool) {
	union := a.ContextBefore + a.SelectedText + a.ContextAfter
	haystack := tree.TextContent(root)
	m, ok := fuzzy.Find(union, haystack)
	if !ok {
		return nil, false
	}

	unionLen := len([]rune(union))
	if unionLen == 0 {
		return nil, false
	}
	beforeLen := len([]rune(a.ContextBefore))
	textLen := len([]rune(a.SelectedText))

	middleStart := m.Index + (beforeLen*m.Length)/unionLen
	middleLen := (textLen * m.Length) / unionLen
	if middleLen <= 0 {
		middleLen = textLen
	}

	rng, ok := ResolveOffset(root, middleStart, middleLen)
	if !ok {
		return nil, false
	}
	return rng, true
}

// rediscoverContainer locates the message container again: by stable
// identifier if the anchor recorded one, or else by re-using the nearest
// ancestor of whatever the path selector resolves to (spec §4.5 step 2).
func rediscoverContainer(a *Anchor, root *tree.Node) *tree.Node {
	if a.ContainerID != "" {
		if found := findByID(root, a.ContainerID); found != nil {
			return found
		}
	}
	if pathNode, ok := ResolvePath(root, a.Path); ok {
		return nearestContainer(pathNode, root)
	}
	return root
}

// nearestContainer walks up from n until it finds an element carrying a
// stable identifier (the "message element" in spec.md's glossary), falling
// back to root if none exists.
func nearestContainer(n *tree.Node, root *tree.Node) *tree.Node {
	for cur := n; cur != nil; cur = cur.Parent() {
		if cur.Kind() == tree.ElementKind && cur.ID() != "" {
			return cur
		}
	}
	return root
}

func sliceRunes(runes []rune, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start >= end {
		return ""
	}
	return string(runes[start:end])
}
