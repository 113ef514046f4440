// Package fuzzy implements bounded edit-distance string matching (spec
// §4.4): similarity scoring, a sliding-window search for a needle inside a
// larger haystack, and context-weighted tie-breaking. It backs the fuzzy
// strategy of the anchor resolution cascade (spec §4.5).
package fuzzy

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// AcceptThreshold is the minimum similarity score a fuzzy match must clear to
// be accepted (spec §4.4).
const AcceptThreshold = 0.80

// ContextTieBreakThreshold is the minimum combined before/after context
// similarity required to prefer one window over another (spec §4.4).
const ContextTieBreakThreshold = 0.75

// Match describes a located occurrence of a needle within a haystack.
type Match struct {
	// Index is the rune offset where the match starts, counted in the
	// whitespace-normalized haystack (see NormalizeWhitespace).
	Index int
	// Length is the rune length of the matched window in that normalized
	// haystack.
	Length int
	// Score is the similarity of the matched window to the needle.
	Score float64
}

// Similarity computes 1 - editDistance(a, b) / max(len(a), len(b)) using
// Levenshtein distance with unit insert/delete/substitute cost (spec §4.4).
// Two empty strings are identical (1.0); one empty and one non-empty string
// share nothing (0).
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

// NormalizeWhitespace collapses runs of whitespace to a single space and
// trims the result, tolerating formatting differences between the anchored
// text and the document as it exists now (spec §4.4).
func NormalizeWhitespace(s string) string {
	var sb strings.Builder
	inSpace := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			if !inSpace {
				sb.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		sb.WriteRune(r)
	}
	return sb.String()
}

// Find slides windows of about the needle's length (up to a quarter of that
// length, and at least 2 runes, longer or shorter) over haystack and returns
// the best-scoring window, accepting matches with similarity >= AcceptThreshold.
// Both needle and haystack are compared after whitespace normalization.
func Find(needle, haystack string) (Match, bool) {
	n := []rune(NormalizeWhitespace(needle))
	h := []rune(NormalizeWhitespace(haystack))
	if len(n) == 0 || len(h) == 0 {
		return Match{}, false
	}

	best := Match{Score: -1}
	// Slide a window of len(n), allowing it to grow/shrink by a small margin
	// so insertions/deletions near the boundary don't starve the match.
	margin := len(n) / 4
	if margin < 2 {
		margin = 2
	}
	for start := 0; start < len(h); start++ {
		for delta := -margin; delta <= margin; delta++ {
			winLen := len(n) + delta
			if winLen <= 0 || start+winLen > len(h) {
				continue
			}
			window := string(h[start : start+winLen])
			score := Similarity(string(n), window)
			if score > best.Score {
				best = Match{Index: start, Length: winLen, Score: score}
			}
		}
	}

	if best.Score < AcceptThreshold {
		return Match{}, false
	}
	return best, true
}

// FindWithContext searches for needle within haystack the same way Find
// does, then re-examines accepted windows starting within 8 runes of that
// best match (and within 2 runes of the needle's length) and prefers the one
// whose neighboring before/after substrings in the haystack also match the
// supplied context, with combined similarity >= ContextTieBreakThreshold
// (spec §4.4). Occurrences farther from Find's best match are not considered.
func FindWithContext(before, needle, after, haystack string) (Match, bool) {
	best, ok := Find(needle, haystack)
	if !ok {
		return Match{}, false
	}

	hRunes := []rune(NormalizeWhitespace(haystack))
	contextLen := len([]rune(NormalizeWhitespace(before)))
	afterLen := len([]rune(NormalizeWhitespace(after)))

	bestContextScore := scoreContext(hRunes, best, before, after, contextLen, afterLen)

	// Re-scan nearby windows (+/- a few runes) that score close to best and
	// prefer whichever has stronger surrounding context.
	n := []rune(NormalizeWhitespace(needle))
	h := hRunes
	const scanMargin = 8
	for start := best.Index - scanMargin; start <= best.Index+scanMargin; start++ {
		if start < 0 {
			continue
		}
		for winLen := len(n) - 2; winLen <= len(n)+2; winLen++ {
			if winLen <= 0 || start+winLen > len(h) {
				continue
			}
			cand := Match{Index: start, Length: winLen, Score: Similarity(string(n), string(h[start:start+winLen]))}
			if cand.Score < AcceptThreshold {
				continue
			}
			ctxScore := scoreContext(h, cand, before, after, contextLen, afterLen)
			if ctxScore >= ContextTieBreakThreshold && ctxScore > bestContextScore {
				best = cand
				bestContextScore = ctxScore
			}
		}
	}

	return best, true
}

func scoreContext(haystack []rune, m Match, before, after string, beforeLen, afterLen int) float64 {
	beforeStart := m.Index - beforeLen
	if beforeStart < 0 {
		beforeStart = 0
	}
	actualBefore := string(haystack[beforeStart:m.Index])

	afterEnd := m.Index + m.Length + afterLen
	if afterEnd > len(haystack) {
		afterEnd = len(haystack)
	}
	actualAfter := string(haystack[m.Index+m.Length : afterEnd])

	beforeScore := Similarity(NormalizeWhitespace(before), actualBefore)
	afterScore := Similarity(NormalizeWhitespace(after), actualAfter)
	return (beforeScore + afterScore) / 2
}
