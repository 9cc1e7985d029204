// Package cache memoizes task results keyed by a deterministic fingerprint
// of the task type and normalized payload, independent of which candidate
// produced them.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// fingerprintPrefixLen bounds how much of the normalized payload feeds the
// key; long payloads with a common prefix but divergent tails are rare
// enough that the tail is also folded in via total length.
const fingerprintPrefixLen = 256

// Entry is a memoized task result.
type Entry struct {
	Output      string    `json:"output"`
	CandidateID string    `json:"candidate_id"`
	Cost        float64   `json:"cost"`
	TokensUsed  int       `json:"tokens_used"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the response cache contract. Implementations are safe for
// concurrent use; last-writer-wins on key collisions is acceptable because
// values are idempotent recomputations of the same fingerprint.
type Store interface {
	// Get returns the entry for key if present and within TTL.
	Get(ctx context.Context, key string) (Entry, bool)

	// Set stores or refreshes the entry for key.
	Set(ctx context.Context, key string, e Entry)

	// Len reports the current entry count (advisory, for status output).
	Len() int
}

// Fingerprint derives the cache key from the task type and payload. The
// payload is lowercased and whitespace-collapsed so trivially reformatted
// requests hit the same entry.
func Fingerprint(taskType, payload string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(payload)), " ")
	prefix := normalized
	if len(prefix) > fingerprintPrefixLen {
		prefix = prefix[:fingerprintPrefixLen]
	}

	h := sha256.New()
	h.Write([]byte(strings.ToLower(taskType)))
	h.Write([]byte{0})
	h.Write([]byte(prefix))
	h.Write([]byte{0})
	h.Write([]byte{byte(len(normalized)), byte(len(normalized) >> 8)})
	return hex.EncodeToString(h.Sum(nil))
}
