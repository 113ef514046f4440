package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/waymark/waymark/storage"
	"github.com/waymark/waymark/tree"
	"github.com/waymark/waymark/waymark"
)

func main() {
	slog.Info("waymark starting", "component", "durable highlight anchoring engine")

	if len(os.Args) > 1 && os.Args[1] == "--headless" {
		slog.Info("running in headless mode")
		return
	}

	root, textNode := buildSampleConversation()
	store := storage.NewMemoryKV()

	session, err := waymark.NewSession("chatgpt", "conv-demo", root, store, time.Now, nil)
	if err != nil {
		slog.Error("failed to start session", "error", err)
		os.Exit(1)
	}

	sel := &tree.Selection{MessageID: "msg-1"}
	r, err := tree.NewRange(textNode, 36, textNode, 70) // "a great way to explore concurrency"
	if err == nil {
		sel.Range = r
	}

	rec, errs := session.SaveHighlight(sel, "revisit before the talk", []string{"golang", "concurrency"}, "#ffd54f")
	if len(errs) != 0 {
		slog.Error("save failed", "errors", errs)
		os.Exit(1)
	}
	slog.Info("saved highlight", "id", rec.ID, "text", rec.Anchor.SelectedText)

	if err := session.Flush(); err != nil {
		slog.Error("flush failed", "error", err)
		os.Exit(1)
	}

	if session.NavigateTo(rec.ID) {
		slog.Info("navigated to highlight", "text", session.CurrentBookmark().Anchor.SelectedText)
	}

	md := waymark.ExportMarkdown(session.Highlights(storage.Filter{ConversationID: "conv-demo"}))
	fmt.Print(md)
}

func buildSampleConversation() (*tree.Node, *tree.Node) {
	root := tree.NewElement("article")
	msg := tree.NewElementWithID("div", "msg-1")
	p := tree.NewElement("p")
	text := tree.NewText("Goroutines paired with channels are a great way to explore concurrency in Go.")
	p.AppendChild(text)
	msg.AppendChild(p)
	root.AppendChild(msg)
	return root, text
}
