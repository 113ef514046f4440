package anchor

import (
	"hash/fnv"
	"strconv"
)

// Checksum computes a 32-bit deterministic hash of
// contextBefore ‖ text ‖ contextAfter, rendered in base-36 (spec §4.5 step 4).
// fnv-32a is used rather than a cryptographic hash: the checksum exists to
// detect whether the anchored context drifted, not to resist tampering, and
// no hashing library appears anywhere in the retrieved example pack (see
// DESIGN.md), so the standard 32-bit non-cryptographic hash is the
// appropriate stdlib choice.
func Checksum(contextBefore, text, contextAfter string) string {
	h := fnv.New32a()
	h.Write([]byte(contextBefore))
	h.Write([]byte(text))
	h.Write([]byte(contextAfter))
	return strconv.FormatUint(uint64(h.Sum32()), 36)
}

// isWellFormedChecksum reports whether s looks like a base-36 fnv-32a
// checksum: non-empty and composed only of base-36 digits.
func isWellFormedChecksum(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'z')) {
			return false
		}
	}
	return true
}
