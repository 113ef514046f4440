package waymark

import (
	"strings"
	"testing"
	"time"

	"github.com/waymark/waymark/anchor"
	"github.com/waymark/waymark/storage"
	"github.com/waymark/waymark/tree"
)

func buildDocument(messageID, text string) (*tree.Node, *tree.Node) {
	root := tree.NewElement("article")
	msg := tree.NewElementWithID("div", messageID)
	p := tree.NewElement("p")
	t := tree.NewText(text)
	p.AppendChild(t)
	msg.AppendChild(p)
	root.AppendChild(msg)
	return root, t
}

func TestSaveHighlightRendersAndNavigates(t *testing.T) {
	root, textNode := buildDocument("msg-1", "the quick brown fox jumps over the lazy dog")
	r, err := tree.NewRange(textNode, 4, textNode, 9) // "quick"
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}
	sel := &tree.Selection{Range: r, MessageID: "msg-1"}

	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return fixed }

	s, err := NewSession("chatgpt", "conv-1", root, storage.NewMemoryKV(), clock, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	rec, errs := s.SaveHighlight(sel, "worth remembering", []string{"fox"}, "#ffcc00")
	if len(errs) != 0 {
		t.Fatalf("SaveHighlight: %v", errs)
	}
	if rec.Anchor.SelectedText != "quick" {
		t.Fatalf("SelectedText = %q", rec.Anchor.SelectedText)
	}

	if !s.NavigateTo(rec.ID) {
		t.Fatal("expected NavigateTo to find the freshly saved highlight")
	}
	if s.CurrentBookmark().ID != rec.ID {
		t.Fatalf("CurrentBookmark = %+v, want id %s", s.CurrentBookmark(), rec.ID)
	}

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := s.Highlights(storage.Filter{ConversationID: "conv-1"})
	if len(got) != 1 {
		t.Fatalf("expected 1 stored highlight, got %d", len(got))
	}
}

func TestRemoveHighlightUnwindsState(t *testing.T) {
	root, textNode := buildDocument("msg-1", "hello there world")
	r, _ := tree.NewRange(textNode, 0, textNode, 5)
	sel := &tree.Selection{Range: r, MessageID: "msg-1"}

	s, err := NewSession("claude", "conv-1", root, storage.NewMemoryKV(), nil, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	rec, errs := s.SaveHighlight(sel, "", nil, "")
	if len(errs) != 0 {
		t.Fatalf("SaveHighlight: %v", errs)
	}

	s.RemoveHighlight(rec.ID)
	if len(s.Highlights(storage.Filter{})) != 0 {
		t.Fatal("expected highlight to be removed from storage")
	}
}

func TestOverlappingHighlightsGetDistinctOpacity(t *testing.T) {
	root, textNode := buildDocument("msg-1", "the quick brown fox jumps over the lazy dog")
	s, err := NewSession("chatgpt", "conv-1", root, storage.NewMemoryKV(), nil, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	r1, _ := tree.NewRange(textNode, 4, textNode, 19) // "quick brown fox"
	rec1, errs := s.SaveHighlight(&tree.Selection{Range: r1, MessageID: "msg-1"}, "", nil, "")
	if len(errs) != 0 {
		t.Fatalf("SaveHighlight 1: %v", errs)
	}

	// The first save already wrapped and split textNode, detaching it from
	// the tree, so the second selection must be re-derived from root's
	// current text nodes rather than reusing the stale pointer.
	r2, ok := anchor.ResolveOffset(root, 10, 15) // "brown fox jumps"
	if !ok {
		t.Fatal("expected to resolve the second selection against the post-wrap tree")
	}
	rec2, errs := s.SaveHighlight(&tree.Selection{Range: r2, MessageID: "msg-1"}, "", nil, "")
	if len(errs) != 0 {
		t.Fatalf("SaveHighlight 2: %v", errs)
	}

	marks := findAllMarks(t, root)
	if len(marks) == 0 {
		t.Fatal("expected wrapped <mark> elements after overlapping saves")
	}
	var style1, style2 string
	for _, m := range marks {
		switch m.Attr("data-highlight-id") {
		case rec1.ID:
			style1 = m.Attr("style")
		case rec2.ID:
			style2 = m.Attr("style")
		}
	}
	if style1 == "" || style2 == "" {
		t.Fatalf("expected both highlights to receive an opacity style, got %q / %q", style1, style2)
	}
	if style1 == style2 {
		t.Errorf("expected overlapping highlights to receive distinct opacity, got equal styles %q", style1)
	}
}

func findAllMarks(t *testing.T, root *tree.Node) []*tree.Node {
	t.Helper()
	var out []*tree.Node
	var walk func(*tree.Node)
	walk = func(n *tree.Node) {
		if n.Kind() == tree.ElementKind && n.Tag() == "mark" {
			out = append(out, n)
		}
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walk(c)
		}
	}
	walk(root)
	return out
}

func TestExportMarkdownListsHighlights(t *testing.T) {
	root, textNode := buildDocument("msg-1", "hello there world")
	r, _ := tree.NewRange(textNode, 6, textNode, 11)
	sel := &tree.Selection{Range: r, MessageID: "msg-1"}

	s, err := NewSession("gemini", "conv-1", root, storage.NewMemoryKV(), nil, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	rec, errs := s.SaveHighlight(sel, "a note", nil, "")
	if len(errs) != 0 {
		t.Fatalf("SaveHighlight: %v", errs)
	}

	out := ExportMarkdown(s.Highlights(storage.Filter{}))
	if !strings.Contains(out, rec.Anchor.SelectedText) {
		t.Errorf("expected markdown export to contain the selected text, got %q", out)
	}
	if !strings.Contains(out, "a note") {
		t.Errorf("expected markdown export to contain the note, got %q", out)
	}
}
