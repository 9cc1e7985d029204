// Package routing holds the candidate registry, the per-candidate backoff
// state machine and the fuzzy suitability ranker.
//
// This package contains:
//   - Candidate: a routable upstream target with mutex-guarded health state
//   - Registry: candidate membership and status snapshots
//   - BackoffPolicy: exponential backoff with a circuit-open ceiling
//   - Ranker: fuzzy-rule suitability scoring with feedback adaptation
package routing

import (
	"sort"
	"sync"
	"time"

	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
)

// reputationCap bounds the reputation counter; the suitability bonus
// saturates well below it (min(rep/1000, 0.2)).
const reputationCap = 1000

// Candidate is a routable upstream execution target. All health mutation
// goes through RecordSuccess, RecordFailure, ForceReset and SetAvailable;
// each candidate carries its own lock so two tasks failing against it
// concurrently never lose updates.
type Candidate struct {
	ID   string
	Name string

	// CostPerKiloToken is the linear cost model, used for estimates only.
	CostPerKiloToken float64

	// MaxConcurrent bounds the load calculation; at MaxConcurrent in-flight
	// attempts the candidate reports a load of 1.0.
	MaxConcurrent int

	// priority is the candidate's position in the configured provider list,
	// used only as a tie-break when suitability scores are equal.
	priority int

	policy BackoffPolicy

	mu                  sync.Mutex
	capabilities        map[string]float64
	available           bool
	consecutiveFailures int
	backoffUntil        time.Time
	lastFailure         domain.FailureKind
	reputation          int
	inflight            int
}

// NewCandidate creates a healthy candidate with the given capability vector.
// Capability values are clamped to [0,1].
func NewCandidate(id, name string, costPerKiloToken float64, capabilities map[string]float64, policy BackoffPolicy) *Candidate {
	caps := make(map[string]float64, len(capabilities))
	for dim, v := range capabilities {
		caps[dim] = domain.Clamp01(v)
	}
	return &Candidate{
		ID:               id,
		Name:             name,
		CostPerKiloToken: costPerKiloToken,
		MaxConcurrent:    8,
		policy:           policy,
		capabilities:     caps,
		available:        true,
	}
}

// Capabilities returns a copy of the capability vector.
func (c *Candidate) Capabilities() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]float64, len(c.capabilities))
	for dim, v := range c.capabilities {
		out[dim] = v
	}
	return out
}

// Capability returns a single dimension's value (zero when undeclared).
func (c *Candidate) Capability(dim string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capabilities[dim]
}

// AdjustCapability nudges one dimension by delta, clamped to [0,1].
func (c *Candidate) AdjustCapability(dim string, delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.capabilities[dim]; !ok {
		return
	}
	c.capabilities[dim] = domain.Clamp01(c.capabilities[dim] + delta)
}

// Selectable reports whether the candidate may be attempted now: the
// operator kill switch is off and any backoff window has elapsed.
func (c *Candidate) Selectable(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available && !c.backoffUntil.After(now)
}

// RecordSuccess resets the failure state and bumps reputation.
func (c *Candidate) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures = 0
	c.backoffUntil = time.Time{}
	c.lastFailure = domain.FailureNone
	if c.reputation < reputationCap {
		c.reputation++
	}
}

// RecordFailure advances the backoff state machine: failures increment the
// consecutive counter, schedule the next availability time, and force the
// candidate unavailable once the ceiling is reached (circuit-open).
// Returns true when this failure opened the circuit.
func (c *Candidate) RecordFailure(kind domain.FailureKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures++
	c.lastFailure = kind
	c.backoffUntil = time.Now().Add(c.policy.Delay(c.consecutiveFailures))

	if c.consecutiveFailures >= c.policy.MaxFailures && c.available {
		c.available = false
		return true
	}
	return false
}

// ForceReset is the only exit from circuit-open: it restores availability
// and clears all failure state.
func (c *Candidate) ForceReset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.available = true
	c.consecutiveFailures = 0
	c.backoffUntil = time.Time{}
	c.lastFailure = domain.FailureNone
}

// SetAvailable flips the operator kill switch.
func (c *Candidate) SetAvailable(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.available = v
}

// BeginAttempt marks an in-flight attempt for load tracking.
func (c *Candidate) BeginAttempt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight++
}

// EndAttempt releases an in-flight attempt.
func (c *Candidate) EndAttempt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight > 0 {
		c.inflight--
	}
}

// Load reports current load in [0,1] relative to MaxConcurrent.
func (c *Candidate) Load() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	maxC := c.MaxConcurrent
	if maxC <= 0 {
		maxC = 1
	}
	return domain.Clamp01(float64(c.inflight) / float64(maxC))
}

// Reputation returns the bounded reputation counter.
func (c *Candidate) Reputation() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reputation
}

// BackoffUntil returns the current backoff release time.
func (c *Candidate) BackoffUntil() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backoffUntil
}

// State returns the candidate's position in the backoff state machine.
func (c *Candidate) State() domain.CandidateState {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case !c.available && c.consecutiveFailures >= c.policy.MaxFailures:
		return domain.StateCircuitOpen
	case c.consecutiveFailures > 0:
		return domain.StateDegraded
	default:
		return domain.StateHealthy
	}
}

// Status returns a snapshot for the admin surface.
func (c *Candidate) Status() domain.CandidateStatus {
	state := c.State()

	c.mu.Lock()
	defer c.mu.Unlock()

	caps := make(map[string]float64, len(c.capabilities))
	for dim, v := range c.capabilities {
		caps[dim] = v
	}

	maxC := c.MaxConcurrent
	if maxC <= 0 {
		maxC = 1
	}

	st := domain.CandidateStatus{
		ID:                  c.ID,
		Name:                c.Name,
		State:               state,
		Available:           c.available,
		ConsecutiveFailures: c.consecutiveFailures,
		BackoffUntil:        c.backoffUntil,
		Reputation:          c.reputation,
		Load:                domain.Clamp01(float64(c.inflight) / float64(maxC)),
		Capabilities:        caps,
	}
	if c.lastFailure != domain.FailureNone {
		st.LastFailure = c.lastFailure.String()
	}
	return st
}

// Registry holds the candidate set. Candidates are registered at startup and
// never removed mid-run; only their health state mutates.
type Registry struct {
	mu         sync.RWMutex
	candidates map[string]*Candidate
	order      []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{candidates: make(map[string]*Candidate)}
}

// Add registers a candidate. Registration order defines the static priority
// used as a ranking tie-break.
func (r *Registry) Add(c *Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.candidates[c.ID]; exists {
		return
	}
	c.priority = len(r.order)
	r.candidates[c.ID] = c
	r.order = append(r.order, c.ID)
}

// Get returns a candidate by ID.
func (r *Registry) Get(id string) (*Candidate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.candidates[id]
	return c, ok
}

// All returns every candidate in registration order.
func (r *Registry) All() []*Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Candidate, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.candidates[id])
	}
	return out
}

// Len returns the number of registered candidates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.candidates)
}

// Reset force-resets a circuit-open candidate back to healthy.
func (r *Registry) Reset(id string) bool {
	c, ok := r.Get(id)
	if !ok {
		return false
	}
	c.ForceReset()
	return true
}

// Statuses returns snapshots for every candidate, sorted by ID for stable
// output.
func (r *Registry) Statuses() []domain.CandidateStatus {
	candidates := r.All()

	out := make([]domain.CandidateStatus, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EarliestRelease returns the soonest backoff release time among candidates
// that are available but backing off. The zero time means no candidate will
// recover on its own.
func (r *Registry) EarliestRelease(now time.Time) time.Time {
	var earliest time.Time
	for _, c := range r.All() {
		c.mu.Lock()
		available, until := c.available, c.backoffUntil
		c.mu.Unlock()

		if !available || !until.After(now) {
			continue
		}
		if earliest.IsZero() || until.Before(earliest) {
			earliest = until
		}
	}
	return earliest
}
