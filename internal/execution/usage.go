package execution

import (
	"sync"
	"time"
)

// UsageStats holds per-candidate consumption totals.
type UsageStats struct {
	TotalCalls  int     `json:"total_calls"`
	TotalTokens int     `json:"total_tokens"`
	TotalCost   float64 `json:"total_cost"`
	CallsToday  int     `json:"calls_today"`
	CostToday   float64 `json:"cost_today"`
}

// UsageTracker accumulates call, token and cost totals per candidate, with
// a daily window that resets at local midnight. Totals are observability
// data only; they reconstruct as zero on restart.
type UsageTracker struct {
	mu        sync.RWMutex
	usage     map[string]*UsageStats
	resetTime time.Time
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() *UsageTracker {
	return &UsageTracker{
		usage:     make(map[string]*UsageStats),
		resetTime: nextMidnight(time.Now()),
	}
}

// Record accumulates one successful call.
func (t *UsageTracker) Record(candidateID string, tokens int, cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if now.After(t.resetTime) {
		for _, s := range t.usage {
			s.CallsToday = 0
			s.CostToday = 0
		}
		t.resetTime = nextMidnight(now)
	}

	s, ok := t.usage[candidateID]
	if !ok {
		s = &UsageStats{}
		t.usage[candidateID] = s
	}

	s.TotalCalls++
	s.TotalTokens += tokens
	s.TotalCost += cost
	s.CallsToday++
	s.CostToday += cost
}

// Snapshot returns a copy of all per-candidate stats.
func (t *UsageTracker) Snapshot() map[string]UsageStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]UsageStats, len(t.usage))
	for id, s := range t.usage {
		out[id] = *s
	}
	return out
}

func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}
