package anchor

import "github.com/waymark/waymark/tree"

// ComputeOffset returns the absolute rune offset of (startNode, startOffset)
// within container, by summing the lengths of all text nodes preceding
// startNode in an in-order walk of container and adding the intra-node
// offset (spec §4.3's creation algorithm).
func ComputeOffset(container, startNode *tree.Node, startOffset int) (int, bool) {
	total := 0
	for _, tn := range tree.TextNodesInSubtree(container) {
		if tn == startNode {
			return total + startOffset, true
		}
		total += tn.Len()
	}
	return 0, false
}

// ResolveOffset walks container's text nodes in order, accumulating length
// until the accumulator reaches offset, then returns the (node, intraOffset)
// boundary point for both the start (at offset) and end (at offset+length)
// of the span (spec §4.3's resolution algorithm). Returns ok=false if offset
// or offset+length falls beyond the container's total text length, or if
// offset is negative.
func ResolveOffset(container *tree.Node, offset, length int) (r *tree.Range, ok bool) {
	if offset < 0 || length < 0 {
		return nil, false
	}
	textNodes := tree.TextNodesInSubtree(container)

	startNode, startLocal, ok1 := locate(textNodes, offset)
	endNode, endLocal, ok2 := locate(textNodes, offset+length)
	if !ok1 || !ok2 {
		return nil, false
	}

	rng, err := tree.NewRange(startNode, startLocal, endNode, endLocal)
	if err != nil {
		return nil, false
	}
	return rng, true
}

// locate finds the text node whose cumulative range contains target, and the
// intra-node offset within it. A target exactly at the end of the container
// resolves to the offset within the last text node (spec §4.3: "the first
// text node whose cumulative end exceeds the offset is the start container").
func locate(textNodes []*tree.Node, target int) (*tree.Node, int, bool) {
	running := 0
	for _, tn := range textNodes {
		length := tn.Len()
		end := running + length
		if target < end || (target == end && tn == lastOf(textNodes)) {
			return tn, target - running, true
		}
		running = end
	}
	return nil, 0, false
}

func lastOf(nodes []*tree.Node) *tree.Node {
	if len(nodes) == 0 {
		return nil
	}
	return nodes[len(nodes)-1]
}
