// Package storage implements the key/value gateway: write batching,
// filtered reads, and schema versioning over a pluggable KV provider
// (spec §4.10, §6).
package storage

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/waymark/waymark/bookmark"
)

// Schema keys (spec §6's "persisted state layout").
const (
	KeyBookmarks     = "bookmarks"
	KeySchemaVersion = "schemaVersion"
)

// CurrentSchemaVersion is the schema the gateway migrates stored data
// towards on first access (spec §4.10).
const CurrentSchemaVersion = 2

// Default batching parameters (spec §4.10's "Batching").
const (
	DefaultCoalesceWindow = 100 * time.Millisecond
	DefaultMaxBatchSize   = 10
)

// KVStore is the key/value capability the host provides (spec §6's
// "Storage provider"). Both methods block until the store has answered;
// the interface has no asynchronous form. Get returns ok=false for a
// missing key.
type KVStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(values map[string]string) error
}

// MemoryKV is an in-memory KVStore, grounded in the teacher's
// mutex-guarded map-of-maps storage manager, collapsed to a single
// origin's worth of key/value pairs.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV constructs an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

// Get implements KVStore.
func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set implements KVStore.
func (m *MemoryKV) Set(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.data[k] = v
	}
	return nil
}

// Filter restricts getHighlights to a subset of stored records (spec
// §4.10's getHighlights filter parameters). A zero-value field is
// unconstrained; Tags matches any-of.
type Filter struct {
	ConversationID string
	Platform       string
	Tags           []string
	CreatedFrom    string // ISO-8601, inclusive
	CreatedTo      string // ISO-8601, inclusive
	NoteOrTextLike string
}

func (f Filter) matches(r *bookmark.Record) bool {
	if f.ConversationID != "" && r.ConversationID != f.ConversationID {
		return false
	}
	if f.Platform != "" && r.Platform != f.Platform {
		return false
	}
	if len(f.Tags) > 0 && !anyTagMatches(f.Tags, r.Tags) {
		return false
	}
	if f.CreatedFrom != "" && r.Created < f.CreatedFrom {
		return false
	}
	if f.CreatedTo != "" && r.Created > f.CreatedTo {
		return false
	}
	if f.NoteOrTextLike != "" {
		needle := strings.ToLower(f.NoteOrTextLike)
		note := strings.ToLower(r.Note)
		text := ""
		if r.Anchor != nil {
			text = strings.ToLower(r.Anchor.SelectedText)
		}
		if !strings.Contains(note, needle) && !strings.Contains(text, needle) {
			return false
		}
	}
	return true
}

func anyTagMatches(want, have []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// pendingWrite is one queued record mutation awaiting a coalesced flush.
type pendingWrite struct {
	record *bookmark.Record
	delete bool
}

// Gateway is the sole writer of persisted highlight state (spec §5's
// "the storage gateway is the sole writer of persisted state"). It queues
// writes, coalescing repeated writes to the same id, and persists them to
// the underlying KVStore when the queue reaches maxBatch ids or when
// FlushPending is called. No timer flushes the queue when the coalescing
// window elapses; the coalesce field is not consulted.
type Gateway struct {
	mu            sync.Mutex
	store         KVStore
	coalesce      time.Duration
	maxBatch      int
	records       []*bookmark.Record // authoritative in-memory view
	pending       map[string]pendingWrite
	schemaVersion int
	afterWrite    func() // test hook, invoked synchronously after each flush
}

// NewGateway constructs a Gateway over store, loading any existing
// bookmarks and running the schema migration hook if the stored version
// predates CurrentSchemaVersion.
func NewGateway(store KVStore) (*Gateway, error) {
	g := &Gateway{
		store:         store,
		coalesce:      DefaultCoalesceWindow,
		maxBatch:      DefaultMaxBatchSize,
		pending:       make(map[string]pendingWrite),
		schemaVersion: CurrentSchemaVersion,
	}
	if err := g.load(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Gateway) load() error {
	if raw, ok, err := g.store.Get(KeySchemaVersion); err != nil {
		return err
	} else if ok {
		var v int
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			g.schemaVersion = v
		}
	}
	if raw, ok, err := g.store.Get(KeyBookmarks); err != nil {
		return err
	} else if ok {
		var records []*bookmark.Record
		if err := json.Unmarshal([]byte(raw), &records); err == nil {
			g.records = records
		}
	}
	if g.schemaVersion < CurrentSchemaVersion {
		g.migrate(g.schemaVersion)
		g.schemaVersion = CurrentSchemaVersion
	}
	return nil
}

// migrate is the hook invoked when stored data predates CurrentSchemaVersion.
// There is currently exactly one prior schema (version 1, pre-tags), so no
// field transformation is needed beyond defaulting Tags to non-nil.
func (g *Gateway) migrate(from int) {
	slog.Info("storage: migrating schema", "from", from, "to", CurrentSchemaVersion)
	if from < 2 {
		for _, r := range g.records {
			if r.Tags == nil {
				r.Tags = []string{}
			}
		}
	}
}

// SaveHighlight validates record, then queues it for a coalesced write
// (spec §4.10's saveHighlight: "replace in-place if id exists, else
// append; bump updated timestamp"). now is used to bump Updated when an
// existing record with the same id is replaced; a brand-new record keeps
// whatever Created/Updated the caller (bookmark.New) already set.
func (g *Gateway) SaveHighlight(record *bookmark.Record, now time.Time) []error {
	if errs := bookmark.Validate(record); len(errs) != 0 {
		return errs
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.applySave(record, now)
	g.queue(record.ID, pendingWrite{record: record})
	return nil
}

func (g *Gateway) applySave(record *bookmark.Record, now time.Time) {
	for i, r := range g.records {
		if r.ID == record.ID {
			record.Created = r.Created
			record.Updated = now.UTC().Format(time.RFC3339)
			g.records[i] = record
			return
		}
	}
	g.records = append(g.records, record)
}

// GetHighlights returns the subset of stored records matching filter, in
// insertion order, as caller-owned copies of the slice (spec §4.10's
// getHighlights; §5's "callers receive owned copies").
func (g *Gateway) GetHighlights(filter Filter) []*bookmark.Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*bookmark.Record, 0, len(g.records))
	for _, r := range g.records {
		if filter.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// UpdateHighlight merges permitted fields into the record with id, queuing
// a coalesced write. Returns an error if id is unknown.
func (g *Gateway) UpdateHighlight(id string, fields bookmark.MutableFields, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.records {
		if r.ID == id {
			candidate := *r
			bookmark.ApplyUpdate(&candidate, fields, now)
			if errs := bookmark.Validate(&candidate); len(errs) != 0 {
				return errs[0]
			}
			bookmark.ApplyUpdate(r, fields, now)
			g.queue(id, pendingWrite{record: r})
			return nil
		}
	}
	return errNotFound(id)
}

// DeleteHighlight removes id from the in-memory view and queues the
// deletion for the next flush. A no-op if id is absent.
func (g *Gateway) DeleteHighlight(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, r := range g.records {
		if r.ID == id {
			g.records = append(g.records[:i], g.records[i+1:]...)
			break
		}
	}
	g.queue(id, pendingWrite{delete: true})
}

// queue records a pending mutation. Must be called with g.mu held. Flushes
// immediately once the batch reaches maxBatch; otherwise relies on the
// caller (or FlushPending) to flush within the coalescing window.
func (g *Gateway) queue(id string, w pendingWrite) {
	g.pending[id] = w
	if len(g.pending) >= g.maxBatch {
		g.flushLocked()
	}
}

// FlushPending persists every queued write immediately (spec §4.10's "an
// immediate-flush path exists for operations whose callers require
// durability before returning"; spec §5's shutdown guarantee).
func (g *Gateway) FlushPending() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.flushLocked()
}

func (g *Gateway) flushLocked() error {
	if len(g.pending) == 0 {
		return nil
	}
	g.pending = make(map[string]pendingWrite)

	recordsJSON, err := json.Marshal(g.records)
	if err != nil {
		return err
	}
	versionJSON, err := json.Marshal(g.schemaVersion)
	if err != nil {
		return err
	}
	if err := g.store.Set(map[string]string{
		KeyBookmarks:     string(recordsJSON),
		KeySchemaVersion: string(versionJSON),
	}); err != nil {
		slog.Error("storage: flush failed", "error", err)
		return err
	}
	slog.Debug("storage: flushed pending writes", "records", len(g.records))
	if g.afterWrite != nil {
		g.afterWrite()
	}
	return nil
}

// SchemaVersion returns the gateway's current schema version.
func (g *Gateway) SchemaVersion() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.schemaVersion
}

// SetSchemaVersion overrides the gateway's in-memory schema version without
// running the migration hook; the next flush persists it (spec §4.10's
// schema version "get/set").
func (g *Gateway) SetSchemaVersion(v int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.schemaVersion = v
}

// Count returns the number of in-memory records.
func (g *Gateway) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.records)
}

// Clear removes every record, discards pending writes, and persists the
// empty record list immediately.
func (g *Gateway) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = nil
	g.pending = map[string]pendingWrite{"__clear__": {delete: true}}
	g.flushLocked()
}

type errNotFound string

func (e errNotFound) Error() string { return "highlight not found: " + string(e) }
