package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/waymark/waymark/anchor"
	"github.com/waymark/waymark/bookmark"
)

func seedRecord(id, conversationID string, now time.Time) *bookmark.Record {
	r := bookmark.New("chatgpt", conversationID, "msg-1", &anchor.Anchor{
		SelectedText: "topic",
		EndOffset:    5,
		Confidence:   0.9,
		Checksum:     "abc123",
	}, now)
	r.ID = id
	return r
}

func TestSaveAndFlushDurability(t *testing.T) {
	kv := NewMemoryKV()
	g, err := NewGateway(kv)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	r := seedRecord("id-1", "conv-1", time.Now())
	r.ID = "id-1"
	if errs := g.SaveHighlight(r, time.Now()); len(errs) != 0 {
		t.Fatalf("SaveHighlight: %v", errs)
	}
	if err := g.FlushPending(); err != nil {
		t.Fatalf("FlushPending: %v", err)
	}
	if _, ok, _ := kv.Get(KeyBookmarks); !ok {
		t.Fatal("expected bookmarks key to be present after flush")
	}

	g2, err := NewGateway(kv)
	if err != nil {
		t.Fatalf("NewGateway (reload): %v", err)
	}
	if g2.Count() != 1 {
		t.Fatalf("expected reloaded gateway to see 1 record, got %d", g2.Count())
	}
}

func TestGetHighlightsFilterByConversation(t *testing.T) {
	kv := NewMemoryKV()
	g, _ := NewGateway(kv)

	const total = 1000
	const perConversation = 100
	now := time.Now()
	for i := 0; i < total; i++ {
		convID := fmt.Sprintf("conv-%d", i/perConversation)
		r := seedRecord(fmt.Sprintf("id-%d", i), convID, now)
		if errs := g.SaveHighlight(r, now); len(errs) != 0 {
			t.Fatalf("SaveHighlight %d: %v", i, errs)
		}
	}
	g.FlushPending()

	got := g.GetHighlights(Filter{ConversationID: "conv-5"})
	if len(got) != perConversation {
		t.Fatalf("got %d records for conv-5, want %d", len(got), perConversation)
	}
	for _, r := range got {
		if r.ConversationID != "conv-5" {
			t.Errorf("unexpected conversation id in filtered result: %s", r.ConversationID)
		}
	}
}

func TestUpdateHighlightRejectsInvalidColor(t *testing.T) {
	kv := NewMemoryKV()
	g, _ := NewGateway(kv)
	r := seedRecord("id-1", "conv-1", time.Now())
	g.SaveHighlight(r, time.Now())

	badColor := "not-a-color"
	err := g.UpdateHighlight("id-1", bookmark.MutableFields{Color: &badColor}, time.Now())
	if err == nil {
		t.Fatal("expected an error for an invalid color update")
	}

	stored := g.GetHighlights(Filter{})[0]
	if stored.Color == badColor {
		t.Error("invalid update should not have been applied")
	}
}

func TestUpdateHighlightAppliesValidChange(t *testing.T) {
	kv := NewMemoryKV()
	g, _ := NewGateway(kv)
	r := seedRecord("id-1", "conv-1", time.Now())
	g.SaveHighlight(r, time.Now())

	note := "revisit this"
	if err := g.UpdateHighlight("id-1", bookmark.MutableFields{Note: &note}, time.Now()); err != nil {
		t.Fatalf("UpdateHighlight: %v", err)
	}
	stored := g.GetHighlights(Filter{})[0]
	if stored.Note != note {
		t.Errorf("Note = %q, want %q", stored.Note, note)
	}
}

func TestDeleteHighlightIsNoOpIfAbsent(t *testing.T) {
	kv := NewMemoryKV()
	g, _ := NewGateway(kv)
	g.DeleteHighlight("does-not-exist")
	if g.Count() != 0 {
		t.Errorf("expected count 0, got %d", g.Count())
	}
}

func TestBatchFlushesAutomaticallyAtMaxSize(t *testing.T) {
	kv := NewMemoryKV()
	g, _ := NewGateway(kv)
	g.maxBatch = 3

	for i := 0; i < 3; i++ {
		g.SaveHighlight(seedRecord(fmt.Sprintf("id-%d", i), "conv-1", time.Now()), time.Now())
	}
	if _, ok, _ := kv.Get(KeyBookmarks); !ok {
		t.Fatal("expected an automatic flush once maxBatch was reached")
	}
}
