package tree

import "testing"

func buildParagraph(text string) (*Node, *Node) {
	p := NewElementWithID("p", "msg-1")
	t := NewText(text)
	p.AppendChild(t)
	return p, t
}

func TestAppendChildAndTraversal(t *testing.T) {
	root := NewElement("div")
	a := NewElement("p")
	b := NewElement("p")
	root.AppendChild(a)
	root.AppendChild(b)

	if root.FirstChild() != a || root.LastChild() != b {
		t.Fatal("expected a then b as children")
	}
	if a.NextSibling() != b || b.PrevSibling() != a {
		t.Fatal("sibling links not set correctly")
	}
	if a.Parent() != root || b.Parent() != root {
		t.Fatal("parent not set correctly")
	}
}

func TestInsertBeforeReparents(t *testing.T) {
	root := NewElement("div")
	a := NewElement("p")
	root.AppendChild(a)

	other := NewElement("section")
	other.AppendChild(a)

	if a.Parent() != other {
		t.Fatal("expected a to be reparented under other")
	}
	if root.FirstChild() != nil {
		t.Fatal("expected root to have no children after reparenting")
	}
}

func TestReplaceChildPreservesOrder(t *testing.T) {
	root := NewElement("div")
	a := NewElement("p")
	b := NewElement("span")
	c := NewElement("p")
	root.AppendChild(a)
	root.AppendChild(b)
	root.AppendChild(c)

	n1 := NewText("x")
	n2 := NewText("y")
	root.ReplaceChild(b, n1, n2)

	got := root.Children()
	want := []*Node{a, n1, n2, c}
	if len(got) != len(want) {
		t.Fatalf("got %d children, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("child %d mismatch", i)
		}
	}
}

func TestSplitText(t *testing.T) {
	p, txt := buildParagraph("This is the first paragraph with some text.")
	left, right, err := SplitText(txt, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if left.Text() != "This is the " {
		t.Errorf("left = %q", left.Text())
	}
	if right.Text() != "first paragraph with some text." {
		t.Errorf("right = %q", right.Text())
	}
	if got := TextContent(p); got != "This is the first paragraph with some text." {
		t.Errorf("concatenation mismatch: %q", got)
	}
}

func TestSplitTextOutOfRange(t *testing.T) {
	_, txt := buildParagraph("short")
	if _, _, err := SplitText(txt, 100); err == nil {
		t.Fatal("expected error for out-of-range offset")
	}
	if _, _, err := SplitText(txt, -1); err == nil {
		t.Fatal("expected error for negative offset")
	}
}

func TestTextNodesInSubtree(t *testing.T) {
	root := NewElement("div")
	p1 := NewElement("p")
	p1.AppendChild(NewText("a"))
	p2 := NewElement("p")
	p2.AppendChild(NewText("b"))
	p2.AppendChild(NewText("c"))
	root.AppendChild(p1)
	root.AppendChild(p2)

	nodes := TextNodesInSubtree(root)
	if len(nodes) != 3 {
		t.Fatalf("got %d text nodes, want 3", len(nodes))
	}
	if nodes[0].Text() != "a" || nodes[1].Text() != "b" || nodes[2].Text() != "c" {
		t.Fatalf("unexpected order: %q %q %q", nodes[0].Text(), nodes[1].Text(), nodes[2].Text())
	}
}

func TestIndexAmongSameTagSiblings(t *testing.T) {
	root := NewElement("div")
	p1 := NewElement("p")
	span := NewElement("span")
	p2 := NewElement("p")
	root.AppendChild(p1)
	root.AppendChild(span)
	root.AppendChild(p2)

	if p1.IndexAmongSameTagSiblings() != 1 {
		t.Errorf("p1 index = %d, want 1", p1.IndexAmongSameTagSiblings())
	}
	if p2.IndexAmongSameTagSiblings() != 2 {
		t.Errorf("p2 index = %d, want 2", p2.IndexAmongSameTagSiblings())
	}
	if span.IndexAmongSameTagSiblings() != 1 {
		t.Errorf("span index = %d, want 1", span.IndexAmongSameTagSiblings())
	}
}
