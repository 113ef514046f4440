package highlight

import (
	"fmt"
	"sort"

	"github.com/waymark/waymark/tree"
)

// Opacity parameters (spec §4.7, §8 property 7 / scenario 4).
const (
	OpacityMin  = 0.30
	OpacityMax  = 0.90
	OpacityStep = 0.15
)

// Span is the minimal information the overlap manager needs about a
// highlight: its identity, priority, creation order, the container it
// belongs to, and the interval it covers (in offsets relative to that
// container). Container is required for correct grouping: two highlights in
// different containers cannot share a text node even if their
// container-relative offsets happen to coincide (spec §4.7: highlights
// overlap only when they "share at least one text node").
type Span struct {
	ID        string
	Priority  int
	Created   int64 // monotonic creation order; lower is older
	Container string
	Start     int
	End       int
}

// OverlapGroup is a set of highlight ids whose spans transitively overlap.
type OverlapGroup struct {
	IDs []string
}

// DetectOverlaps partitions spans into overlap groups using union-find: any
// two spans in the same container whose intervals intersect land in the
// same group (spec §4.7's overlap detection). Spans in different
// containers never overlap, regardless of their offsets, since they cannot
// share a text node.
func DetectOverlaps(spans []Span) []OverlapGroup {
	n := len(spans)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if spans[i].Container != spans[j].Container {
				continue
			}
			if spans[i].Start < spans[j].End && spans[j].Start < spans[i].End {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]string)
	for i, s := range spans {
		root := find(i)
		groups[root] = append(groups[root], s.ID)
	}

	result := make([]OverlapGroup, 0, len(groups))
	for _, ids := range groups {
		result = append(result, OverlapGroup{IDs: ids})
	}
	// Deterministic ordering for callers/tests: by the group's smallest id.
	sort.Slice(result, func(i, j int) bool {
		return minString(result[i].IDs) < minString(result[j].IDs)
	})
	return result
}

func minString(ss []string) string {
	m := ss[0]
	for _, s := range ss[1:] {
		if s < m {
			m = s
		}
	}
	return m
}

// ResolvedOpacity is one member of a resolved overlap group, with its final
// computed opacity.
type ResolvedOpacity struct {
	ID      string
	Opacity float64
}

// PriorityBonusPerPoint and PriorityBonusCap scale a highlight's own
// priority into its opacity, on top of its stack-depth base (spec §4.7:
// "+ min(0.1·priority, 0.2)").
const (
	PriorityBonusPerPoint = 0.10
	PriorityBonusCap      = 0.20
)

// ResolveOverlapGroup orders the spans in group by descending priority then
// ascending creation time, and assigns opacities starting at OpacityMax and
// stepping down by OpacityStep per stack position, floored at OpacityMin,
// then adds each highlight's own priority bonus and clamps the result to
// [OpacityMin, OpacityMax] (spec §4.7's
// `max(MIN, MAX − (k−1)·STEP) + min(0.1·priority, 0.2)`, and §8 property 7
// / scenario 4).
func ResolveOverlapGroup(group OverlapGroup, spans []Span) []ResolvedOpacity {
	byID := make(map[string]Span, len(spans))
	for _, s := range spans {
		byID[s.ID] = s
	}

	ordered := make([]Span, 0, len(group.IDs))
	for _, id := range group.IDs {
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].Created < ordered[j].Created
	})

	result := make([]ResolvedOpacity, len(ordered))
	for i, s := range ordered {
		base := OpacityMax - float64(i)*OpacityStep
		if base < OpacityMin {
			base = OpacityMin
		}
		bonus := float64(s.Priority) * PriorityBonusPerPoint
		if bonus > PriorityBonusCap {
			bonus = PriorityBonusCap
		}
		o := base + bonus
		if o > OpacityMax {
			o = OpacityMax
		}
		if o < OpacityMin {
			o = OpacityMin
		}
		result[i] = ResolvedOpacity{ID: s.ID, Opacity: o}
	}
	return result
}

// ApplyResolvedClasses writes each resolved opacity onto the style
// attribute of every <mark> within root carrying a matching highlight id
// (spec §4.7's "apply resolved classes" step).
func ApplyResolvedClasses(root *tree.Node, resolved []ResolvedOpacity) {
	for _, ro := range resolved {
		for _, m := range findMarks(root, ro.ID) {
			m.SetAttr("style", fmt.Sprintf("opacity:%.2f", ro.Opacity))
		}
	}
}
