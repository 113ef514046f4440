package anchor

import (
	"testing"

	"github.com/waymark/waymark/tree"
)

func buildMessage(id, text string) (*tree.Node, *tree.Node) {
	root := tree.NewElement("article")
	msg := tree.NewElementWithID("div", id)
	p := tree.NewElement("p")
	t := tree.NewText(text)
	p.AppendChild(t)
	msg.AppendChild(p)
	root.AppendChild(msg)
	return root, t
}

func TestCreateAnchorPathRoundTrip(t *testing.T) {
	root, textNode := buildMessage("msg-1", "The quick brown fox jumps over the lazy dog")

	start := 4  // "quick"
	end := 9
	r, err := tree.NewRange(textNode, start, textNode, end)
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}
	sel := &tree.Selection{Range: r, MessageID: "msg-1"}

	a, err := CreateAnchor(sel, root)
	if err != nil {
		t.Fatalf("CreateAnchor: %v", err)
	}
	if a.SelectedText != "quick" {
		t.Fatalf("SelectedText = %q, want %q", a.SelectedText, "quick")
	}
	if !ValidateAnchor(a) {
		t.Fatal("expected anchor to be structurally valid")
	}

	resolved, strategy, ok := ResolveAnchor(a, root)
	if !ok {
		t.Fatal("expected ResolveAnchor to succeed")
	}
	if strategy != StrategyPath {
		t.Errorf("strategy = %v, want path", strategy)
	}
	if resolved.Text() != "quick" {
		t.Errorf("resolved text = %q, want %q", resolved.Text(), "quick")
	}
}

func TestResolveAnchorFallsBackToOffsetAfterPathInvalidated(t *testing.T) {
	root, textNode := buildMessage("msg-1", "The quick brown fox jumps over the lazy dog")
	r, _ := tree.NewRange(textNode, 4, textNode, 9)
	sel := &tree.Selection{Range: r, MessageID: "msg-1"}
	a, err := CreateAnchor(sel, root)
	if err != nil {
		t.Fatalf("CreateAnchor: %v", err)
	}

	// Corrupt the path so the path strategy cannot resolve, forcing fallback
	// to the offset strategy against the still-valid container id.
	a.Path = "*[@id='msg-1']/p[1]/text()[99]"

	resolved, strategy, ok := ResolveAnchor(a, root)
	if !ok {
		t.Fatal("expected ResolveAnchor to succeed via offset fallback")
	}
	if strategy != StrategyOffset {
		t.Errorf("strategy = %v, want offset", strategy)
	}
	if resolved.Text() != "quick" {
		t.Errorf("resolved text = %q, want %q", resolved.Text(), "quick")
	}
}

func TestResolveAnchorFallsBackToFuzzyAfterMutation(t *testing.T) {
	root, textNode := buildMessage("msg-1", "The quick brown fox jumps over the lazy dog")
	r, _ := tree.NewRange(textNode, 4, textNode, 9)
	sel := &tree.Selection{Range: r, MessageID: "msg-1"}
	a, err := CreateAnchor(sel, root)
	if err != nil {
		t.Fatalf("CreateAnchor: %v", err)
	}

	// Simulate edits upstream of the anchored span: the path and recorded
	// offsets no longer line up, but the context is still present nearby.
	textNode.SetText("Once upon a time, the quick brown fox jumps over the lazy dog, the end.")
	a.Path = "*[@id='msg-1']/p[1]/text()[99]"
	a.StartOffset = 999
	a.EndOffset = 1004

	resolved, strategy, ok := ResolveAnchor(a, root)
	if !ok {
		t.Fatal("expected ResolveAnchor to succeed via fuzzy fallback")
	}
	if strategy != StrategyFuzzy {
		t.Errorf("strategy = %v, want fuzzy", strategy)
	}
	if resolved.Text() == "" {
		t.Error("expected a non-empty resolved range")
	}
}

func TestValidateAnchorRejectsMalformed(t *testing.T) {
	good := &Anchor{SelectedText: "x", StartOffset: 0, EndOffset: 1, Confidence: 1, Checksum: "1a2b"}
	if !ValidateAnchor(good) {
		t.Fatal("expected good anchor to validate")
	}

	cases := []*Anchor{
		nil,
		{SelectedText: "", StartOffset: 0, EndOffset: 1, Confidence: 1, Checksum: "1a2b"},
		{SelectedText: "x", StartOffset: 5, EndOffset: 1, Confidence: 1, Checksum: "1a2b"},
		{SelectedText: "x", StartOffset: 0, EndOffset: 1, Confidence: 0, Checksum: "1a2b"},
		{SelectedText: "x", StartOffset: 0, EndOffset: 1, Confidence: 1, Checksum: ""},
		{SelectedText: "x", StartOffset: 0, EndOffset: 1, Confidence: 1, Checksum: "UPPER"},
	}
	for i, c := range cases {
		if ValidateAnchor(c) {
			t.Errorf("case %d: expected invalid anchor to fail validation", i)
		}
	}
}

func TestCreateAnchorRejectsCollapsedSelection(t *testing.T) {
	root, textNode := buildMessage("msg-1", "hello world")
	r, err := tree.NewRange(textNode, 3, textNode, 3)
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}
	sel := &tree.Selection{Range: r, MessageID: "msg-1"}
	if _, err := CreateAnchor(sel, root); err == nil {
		t.Fatal("expected an error for a collapsed selection")
	}
}

func TestCreateAnchorConfidencePenalizesShortContext(t *testing.T) {
	// A selection at the start of a short document has short context on
	// both sides and a recorded, well-formed confidence < 1.
	root, textNode := buildMessage("msg-1", "hi there")
	r, _ := tree.NewRange(textNode, 0, textNode, 2)
	sel := &tree.Selection{Range: r, MessageID: "msg-1"}
	a, err := CreateAnchor(sel, root)
	if err != nil {
		t.Fatalf("CreateAnchor: %v", err)
	}
	if a.Confidence >= 1.0 {
		t.Errorf("expected confidence penalty for short context, got %v", a.Confidence)
	}
	if a.Confidence <= 0 {
		t.Errorf("confidence should remain positive, got %v", a.Confidence)
	}
}
