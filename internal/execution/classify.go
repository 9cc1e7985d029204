// Package execution runs tasks against ranked candidates with response
// caching, per-candidate backoff and error-class-specific skip policies.
package execution

import (
	"context"
	"errors"
	"strings"

	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
	"github.com/DealAppSeo/hyperdag-router/internal/infra/provider"
)

// Classify maps a provider call failure to exactly one FailureKind. The
// typed status from the provider abstraction is authoritative; substring
// matching remains only as a fallback for unclassified legacy error shapes.
// Classification is total and never panics.
func Classify(err error) domain.FailureKind {
	if err == nil {
		return domain.FailureTransient
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureTransient
	}

	var callErr *provider.CallError
	if errors.As(err, &callErr) && callErr.Status > 0 {
		switch {
		case callErr.Status == 402:
			return domain.FailurePayment
		case callErr.Status == 429:
			return domain.FailureRateLimited
		case callErr.Status == 400, callErr.Status == 401, callErr.Status == 403:
			return domain.FailureAuth
		default:
			// 404, 5xx and anything else retries later via backoff.
			return domain.FailureTransient
		}
	}

	return classifyMessage(err.Error())
}

func classifyMessage(msg string) domain.FailureKind {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "402") ||
		strings.Contains(lower, "payment required") ||
		strings.Contains(lower, "insufficient credit"):
		return domain.FailurePayment

	case strings.Contains(lower, "429") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "quota"):
		return domain.FailureRateLimited

	case strings.Contains(lower, "401") ||
		strings.Contains(lower, "403") ||
		strings.Contains(lower, "400") ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "forbidden") ||
		strings.Contains(lower, "invalid api key"):
		return domain.FailureAuth

	default:
		return domain.FailureTransient
	}
}
