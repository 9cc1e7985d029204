package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// FailureKind classifies a provider call failure. Classification is total:
// every error maps to exactly one kind, with FailureTransient as the catch-all.
type FailureKind int

const (
	// FailureNone marks a candidate with no recorded failure.
	FailureNone FailureKind = iota

	// FailurePayment means quota or credit is exhausted (HTTP 402).
	// Retrying has no value; the candidate is skipped without touching
	// its backoff state.
	FailurePayment

	// FailureRateLimited means the provider is throttling (HTTP 429, quota
	// messages). The candidate enters backoff.
	FailureRateLimited

	// FailureAuth means credentials were rejected (HTTP 400/401/403). Treated
	// like rate limiting for backoff purposes: the candidate is temporarily
	// unusable.
	FailureAuth

	// FailureTransient covers network errors, timeouts, 5xx and anything
	// unrecognized.
	FailureTransient
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailurePayment:
		return "payment_required"
	case FailureRateLimited:
		return "rate_limited"
	case FailureAuth:
		return "auth_error"
	case FailureTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// ErrNoCandidates is returned when the ranker produced an empty list: either
// the registry is empty or no candidate cleared the minimum suitability.
// Distinct from exhaustion: no attempt was ever made.
var ErrNoCandidates = errors.New("no capable candidates")

// BackoffError is returned when every ranked candidate is unavailable or in
// backoff. ReleaseAt carries the earliest backoff release across candidates;
// a zero ReleaseAt means every candidate is circuit-open and needs a manual
// reset.
type BackoffError struct {
	ReleaseAt time.Time
}

func (e *BackoffError) Error() string {
	if e.ReleaseAt.IsZero() {
		return "all candidates circuit-open, manual reset required"
	}
	return fmt.Sprintf("all candidates in backoff until %s", e.ReleaseAt.Format(time.RFC3339))
}

// Attempt records one failed candidate attempt inside an aggregate failure.
type Attempt struct {
	CandidateID string      `json:"candidate_id"`
	Kind        FailureKind `json:"kind"`
	Err         error       `json:"-"`
}

// Message returns the underlying error text for serialization.
func (a Attempt) Message() string {
	if a.Err == nil {
		return ""
	}
	return a.Err.Error()
}

// ExhaustedError aggregates the classified failure of every attempted
// candidate. It is terminal: the caller sees the full failure history.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s (%v)", a.CandidateID, a.Kind, a.Err))
	}
	return "all candidates exhausted: " + strings.Join(parts, "; ")
}
