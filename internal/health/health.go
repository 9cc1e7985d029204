// Package health provides provider health monitoring and the HTTP surface.
package health

import "github.com/DealAppSeo/hyperdag-router/internal/core/domain"

// SystemStatus represents the overall health state of the system or a provider.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ProviderHealth contains health metrics for a single provider candidate.
type ProviderHealth struct {
	CandidateID         string               `json:"candidate_id"`
	Status              SystemStatus         `json:"status"`
	State               domain.CandidateState `json:"state"`
	Reachable           bool                 `json:"reachable"`
	ProbeError          string               `json:"probe_error,omitempty"`
	ConsecutiveFailures int                  `json:"consecutive_failures"`
	Load                float64              `json:"load"`
}

// Report contains the full system health report.
type Report struct {
	SystemStatus SystemStatus              `json:"system_status"`
	Providers    map[string]ProviderHealth `json:"providers"`
}
