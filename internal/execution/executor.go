package execution

import (
	"context"
	"log/slog"
	"time"

	"github.com/DealAppSeo/hyperdag-router/internal/cache"
	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
	"github.com/DealAppSeo/hyperdag-router/internal/infra/provider"
	"github.com/DealAppSeo/hyperdag-router/internal/metrics"
	"github.com/DealAppSeo/hyperdag-router/internal/routing"
)

// Result is a completed task execution.
type Result struct {
	Output      string  `json:"output"`
	CandidateID string  `json:"candidate_id"`
	Cached      bool    `json:"cached"`
	Cost        float64 `json:"cost"`
	TokensUsed  int     `json:"tokens_used"`
}

// Config tunes the executor.
type Config struct {
	// AttemptTimeout bounds each candidate attempt.
	AttemptTimeout time.Duration
}

// DefaultConfig mirrors production defaults.
var DefaultConfig = Config{AttemptTimeout: 30 * time.Second}

// Executor attempts ranked candidates in order until one succeeds,
// classifying each failure and feeding the outcome back into the ranker.
type Executor struct {
	registry  *routing.Registry
	ranker    *routing.Ranker
	cache     cache.Store
	providers map[string]provider.Provider
	usage     *UsageTracker
	cfg       Config
	log       *slog.Logger
}

// NewExecutor wires the execution layer. Every provider must correspond to a
// registered candidate ID.
func NewExecutor(
	registry *routing.Registry,
	ranker *routing.Ranker,
	store cache.Store,
	providers map[string]provider.Provider,
	usage *UsageTracker,
	cfg Config,
) *Executor {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultConfig.AttemptTimeout
	}
	return &Executor{
		registry:  registry,
		ranker:    ranker,
		cache:     store,
		providers: providers,
		usage:     usage,
		cfg:       cfg,
		log:       slog.Default().With("component", "executor"),
	}
}

// Execute runs the task: cache first, then ranked candidates in order.
// Terminal errors are ErrNoCandidates, *BackoffError, *ExhaustedError, or
// the caller's context error.
func (e *Executor) Execute(ctx context.Context, task domain.Task) (*Result, error) {
	key := cache.Fingerprint(task.Type, task.Payload)
	if entry, ok := e.cache.Get(ctx, key); ok {
		metrics.CacheHits.Inc()
		metrics.TasksTotal.WithLabelValues("cache_hit").Inc()
		e.log.Debug("cache hit", "task", task.ID, "candidate", entry.CandidateID)
		return &Result{
			Output:      entry.Output,
			CandidateID: entry.CandidateID,
			Cached:      true,
			Cost:        0,
			TokensUsed:  entry.TokensUsed,
		}, nil
	}
	metrics.CacheMisses.Inc()

	decisions := e.ranker.Rank(task)
	if len(decisions) == 0 {
		metrics.TasksTotal.WithLabelValues("no_candidates").Inc()
		return nil, domain.ErrNoCandidates
	}

	now := time.Now()
	selectable := make([]domain.Decision, 0, len(decisions))
	for _, d := range decisions {
		c, ok := e.registry.Get(d.CandidateID)
		if ok && c.Selectable(now) {
			selectable = append(selectable, d)
		}
	}
	if len(selectable) == 0 {
		metrics.TasksTotal.WithLabelValues("all_backoff").Inc()
		return nil, &domain.BackoffError{ReleaseAt: e.registry.EarliestRelease(now)}
	}

	var attempts []domain.Attempt
	for _, d := range selectable {
		if err := ctx.Err(); err != nil {
			// Caller cancelled; skip the remaining candidates.
			return nil, err
		}

		c, ok := e.registry.Get(d.CandidateID)
		if !ok {
			continue
		}
		prov, ok := e.providers[d.CandidateID]
		if !ok {
			continue
		}

		res, err := e.attempt(ctx, c, prov, task)
		if err == nil {
			entry := cache.Entry{
				Output:      res.Output,
				CandidateID: c.ID,
				Cost:        res.Cost,
				TokensUsed:  res.TokensUsed,
				CreatedAt:   time.Now(),
			}
			e.cache.Set(ctx, key, entry)

			c.RecordSuccess()
			metrics.CircuitOpen.WithLabelValues(c.ID).Set(0)
			e.ranker.Adapt(c.ID, task.Type, true)
			e.usage.Record(c.ID, res.TokensUsed, res.Cost)
			metrics.TasksTotal.WithLabelValues("success").Inc()
			return res, nil
		}

		if ctx.Err() != nil {
			// The failure was the caller's cancellation, not the provider's.
			return nil, ctx.Err()
		}

		kind := Classify(err)
		attempts = append(attempts, domain.Attempt{CandidateID: c.ID, Kind: kind, Err: err})
		metrics.FailuresTotal.WithLabelValues(c.ID, kind.String()).Inc()

		if kind == domain.FailurePayment {
			// No retry value: skip without touching backoff state.
			e.log.Warn("candidate out of credit, skipping", "candidate", c.ID, "task", task.ID)
			continue
		}

		if opened := c.RecordFailure(kind); opened {
			metrics.CircuitOpen.WithLabelValues(c.ID).Set(1)
			e.log.Error("candidate circuit opened", "candidate", c.ID, "kind", kind.String())
		} else {
			e.log.Warn("candidate failed, backing off",
				"candidate", c.ID, "kind", kind.String(), "until", c.BackoffUntil())
		}
		e.ranker.Adapt(c.ID, task.Type, false)
	}

	metrics.TasksTotal.WithLabelValues("exhausted").Inc()
	return nil, &domain.ExhaustedError{Attempts: attempts}
}

func (e *Executor) attempt(ctx context.Context, c *routing.Candidate, prov provider.Provider, task domain.Task) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
	defer cancel()

	c.BeginAttempt()
	start := time.Now()
	res, err := prov.Invoke(attemptCtx, task)
	latency := time.Since(start)
	c.EndAttempt()

	metrics.AttemptLatency.WithLabelValues(c.ID).Observe(latency.Seconds())
	if err != nil {
		metrics.AttemptsTotal.WithLabelValues(c.ID, "failure").Inc()
		return nil, err
	}
	metrics.AttemptsTotal.WithLabelValues(c.ID, "success").Inc()
	metrics.TokensUsed.WithLabelValues(c.ID).Add(float64(res.TokensUsed))

	return &Result{
		Output:      res.Output,
		CandidateID: c.ID,
		Cost:        float64(res.TokensUsed) / 1000.0 * c.CostPerKiloToken,
		TokensUsed:  res.TokensUsed,
	}, nil
}
