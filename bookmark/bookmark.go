// Package bookmark defines the persisted highlight record and its
// validation rules.
package bookmark

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/waymark/waymark/anchor"
)

// Record is a single persisted highlight (spec §3's Highlight entity).
type Record struct {
	ID             string         `json:"id"`
	Platform       string         `json:"platform"`
	ConversationID string         `json:"conversationId"`
	MessageID      string         `json:"messageId"`
	Anchor         *anchor.Anchor `json:"anchor"`
	Note           string         `json:"note,omitempty"`
	Tags           []string       `json:"tags,omitempty"`
	Created        string         `json:"created"` // ISO-8601
	Updated        string         `json:"updated"` // ISO-8601
	Color          string         `json:"color,omitempty"`
}

// New mints a Record with a fresh id and created/updated timestamps set to
// now, leaving validation to the caller (mirrors the teacher's pattern of
// separating construction from acceptance checks).
func New(platform, conversationID, messageID string, a *anchor.Anchor, now time.Time) *Record {
	ts := now.UTC().Format(time.RFC3339)
	return &Record{
		ID:             uuid.NewString(),
		Platform:       platform,
		ConversationID: conversationID,
		MessageID:      messageID,
		Anchor:         a,
		Created:        ts,
		Updated:        ts,
	}
}

// Validate runs every rule from spec §4.10 and returns the complete list of
// violations rather than stopping at the first (so a caller can report all
// problems with a record at once).
func Validate(r *Record) []error {
	var errs []error
	if r == nil {
		return []error{fmt.Errorf("record is nil")}
	}
	if r.ID == "" {
		errs = append(errs, fmt.Errorf("id: must not be empty"))
	}
	if r.Platform == "" {
		errs = append(errs, fmt.Errorf("platform: must not be empty"))
	}
	if r.ConversationID == "" {
		errs = append(errs, fmt.Errorf("conversationId: must not be empty"))
	}
	if r.MessageID == "" {
		errs = append(errs, fmt.Errorf("messageId: must not be empty"))
	}
	if r.Anchor == nil {
		errs = append(errs, fmt.Errorf("anchor: must be present"))
	} else {
		if r.Anchor.SelectedText == "" {
			errs = append(errs, fmt.Errorf("anchor.selectedText: must not be empty"))
		}
		if r.Anchor.EndOffset <= r.Anchor.StartOffset || r.Anchor.StartOffset < 0 {
			errs = append(errs, fmt.Errorf("anchor: endOffset must be greater than startOffset >= 0"))
		}
		if r.Anchor.Confidence < 0 || r.Anchor.Confidence > 1 {
			errs = append(errs, fmt.Errorf("anchor.confidence: must be in [0,1]"))
		}
	}
	if !isWellFormedTimestamp(r.Created) {
		errs = append(errs, fmt.Errorf("created: must be a well-formed ISO-8601 timestamp"))
	}
	if r.Color != "" && !isWellFormedColor(r.Color) {
		errs = append(errs, fmt.Errorf("color: must be '#' followed by 3 or 6 hex digits"))
	}
	return errs
}

func isWellFormedTimestamp(s string) bool {
	if s == "" {
		return false
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

func isWellFormedColor(s string) bool {
	if !strings.HasPrefix(s, "#") {
		return false
	}
	digits := s[1:]
	if len(digits) != 3 && len(digits) != 6 {
		return false
	}
	for _, r := range digits {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}

// MutableFields lists the fields updateHighlight is permitted to change
// (spec §4.10: "do not touch id, platform, conversation id, message id,
// anchor, or created").
type MutableFields struct {
	Note  *string
	Tags  []string
	Color *string
}

// ApplyUpdate merges only the permitted fields into r and bumps Updated.
func ApplyUpdate(r *Record, fields MutableFields, now time.Time) {
	if fields.Note != nil {
		r.Note = *fields.Note
	}
	if fields.Tags != nil {
		r.Tags = fields.Tags
	}
	if fields.Color != nil {
		r.Color = *fields.Color
	}
	r.Updated = now.UTC().Format(time.RFC3339)
}
