package domain

import "time"

// Decision is one ranked candidate with its fuzzy suitability score and the
// human-readable reasons that produced it. Scores are fuzzy aggregates in
// [0,1], not probabilities, and are not normalized across candidates.
type Decision struct {
	CandidateID   string        `json:"candidate_id"`
	Suitability   float64       `json:"suitability"`
	Reasons       []string      `json:"reasons"`
	EstimatedCost float64       `json:"estimated_cost"`
	EstimatedTime time.Duration `json:"estimated_time"`
}

// CandidateState names a candidate's position in the backoff state machine.
type CandidateState string

const (
	StateHealthy     CandidateState = "healthy"
	StateDegraded    CandidateState = "degraded"
	StateCircuitOpen CandidateState = "circuit_open"
)

// CandidateStatus is a point-in-time snapshot of a candidate's health and
// capability state, consumed by the admin surface.
type CandidateStatus struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	State               CandidateState     `json:"state"`
	Available           bool               `json:"available"`
	ConsecutiveFailures int                `json:"consecutive_failures"`
	BackoffUntil        time.Time          `json:"backoff_until,omitempty"`
	LastFailure         string             `json:"last_failure,omitempty"`
	Reputation          int                `json:"reputation"`
	Load                float64            `json:"load"`
	Capabilities        map[string]float64 `json:"capabilities"`
}
