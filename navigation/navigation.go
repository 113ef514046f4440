// Package navigation implements the ordered per-conversation bookmark
// index and cursor (spec §4.9).
package navigation

import (
	"sort"
	"time"

	"github.com/waymark/waymark/bookmark"
)

// DefaultDebounce matches the teacher's settle-delay convention for
// rapid-fire navigation requests (spec §4.9's default debounce window).
const DefaultDebounce = 100 * time.Millisecond

// Index is the ordered bookmark list and cursor for one conversation.
type Index struct {
	ConversationID     string
	Bookmarks          []*bookmark.Record
	Cursor             int // -1 when nothing is selected
	Debounce           time.Duration
	lastNavigationTime time.Time
	now                func() time.Time
}

// NewIndex constructs an empty index for conversationID. now is the clock
// used for debounce bookkeeping; pass time.Now in production and a fixed
// function in tests.
func NewIndex(conversationID string, now func() time.Time) *Index {
	if now == nil {
		now = time.Now
	}
	return &Index{
		ConversationID: conversationID,
		Cursor:         -1,
		Debounce:       DefaultDebounce,
		now:            now,
	}
}

// Initialize seeds the index with records, ordered by Created ascending
// (spec §8 scenario 1), and resets the cursor to -1.
func (idx *Index) Initialize(records []*bookmark.Record) {
	ordered := make([]*bookmark.Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Created < ordered[j].Created
	})
	idx.Bookmarks = ordered
	idx.Cursor = -1
}

// NavigateTo moves the cursor to the bookmark with the given id, returning
// false (and leaving the cursor unchanged) if the id is unknown or the call
// arrives within the debounce window of the previous navigation (spec §8
// property 9 and §5's cancellation rule).
func (idx *Index) NavigateTo(id string) bool {
	if idx.withinDebounce() {
		return false
	}
	for i, b := range idx.Bookmarks {
		if b.ID == id {
			idx.Cursor = i
			idx.markNavigated()
			return true
		}
	}
	return false
}

// NavigateNext advances the cursor by one, returning false without moving
// it if already at (or past) the last bookmark.
func (idx *Index) NavigateNext() bool {
	if idx.withinDebounce() {
		return false
	}
	if idx.Cursor >= len(idx.Bookmarks)-1 {
		return false
	}
	idx.Cursor++
	idx.markNavigated()
	return true
}

// NavigatePrevious moves the cursor back by one, returning false without
// moving it if already at (or before) the first bookmark.
func (idx *Index) NavigatePrevious() bool {
	if idx.withinDebounce() {
		return false
	}
	if idx.Cursor <= 0 {
		return false
	}
	idx.Cursor--
	idx.markNavigated()
	return true
}

// Refresh re-sorts the existing bookmark list by Created and keeps the
// cursor pointed at the same highlight id if it still exists, else resets
// it to -1.
func (idx *Index) Refresh() {
	var currentID string
	if idx.Cursor >= 0 && idx.Cursor < len(idx.Bookmarks) {
		currentID = idx.Bookmarks[idx.Cursor].ID
	}
	sort.SliceStable(idx.Bookmarks, func(i, j int) bool {
		return idx.Bookmarks[i].Created < idx.Bookmarks[j].Created
	})
	idx.Cursor = -1
	if currentID == "" {
		return
	}
	for i, b := range idx.Bookmarks {
		if b.ID == currentID {
			idx.Cursor = i
			break
		}
	}
}

// Reload replaces the bookmark list with records (re-sorted by Created
// ascending) while preserving the cursor's target highlight if it still
// exists, resetting to -1 otherwise. Unlike Initialize, this does not
// unconditionally discard the cursor — it is the right call after a
// same-conversation add/remove/update, where Initialize's unconditional
// reset would otherwise drop navigation state on every mutation.
func (idx *Index) Reload(records []*bookmark.Record) {
	var currentID string
	if idx.Cursor >= 0 && idx.Cursor < len(idx.Bookmarks) {
		currentID = idx.Bookmarks[idx.Cursor].ID
	}
	ordered := make([]*bookmark.Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Created < ordered[j].Created
	})
	idx.Bookmarks = ordered
	idx.Cursor = -1
	if currentID == "" {
		return
	}
	for i, b := range idx.Bookmarks {
		if b.ID == currentID {
			idx.Cursor = i
			break
		}
	}
}

// UpdateConversation re-initializes the index for a different conversation;
// a no-op if conversationID is the one already loaded (spec §4.9's
// updateConversation: "no-op if same; otherwise clear and re-initialize").
func (idx *Index) UpdateConversation(conversationID string, records []*bookmark.Record) {
	if conversationID == idx.ConversationID {
		return
	}
	idx.ConversationID = conversationID
	idx.Initialize(records)
}

func (idx *Index) withinDebounce() bool {
	if idx.lastNavigationTime.IsZero() {
		return false
	}
	return idx.now().Sub(idx.lastNavigationTime) < idx.Debounce
}

func (idx *Index) markNavigated() {
	idx.lastNavigationTime = idx.now()
}
