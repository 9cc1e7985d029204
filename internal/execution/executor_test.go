package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DealAppSeo/hyperdag-router/internal/cache"
	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
	"github.com/DealAppSeo/hyperdag-router/internal/infra/provider"
	"github.com/DealAppSeo/hyperdag-router/internal/routing"
)

type fakeProvider struct {
	name   string
	output string
	tokens int
	err    error
	block  bool // when set, Invoke waits for ctx cancellation

	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Invoke(ctx context.Context, _ domain.Task) (*provider.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Result{Output: f.output, TokensUsed: f.tokens}, nil
}

func (f *fakeProvider) Ping(context.Context) error { return nil }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	registry *routing.Registry
	ranker   *routing.Ranker
	store    *cache.Memory
	executor *Executor
	alpha    *fakeProvider
	beta     *fakeProvider
}

func newHarness(t *testing.T, policy routing.BackoffPolicy, ttl time.Duration) *harness {
	t.Helper()

	registry := routing.NewRegistry()
	registry.Add(routing.NewCandidate("alpha", "Alpha", 0.01, map[string]float64{"domainX": 0.9}, policy))
	registry.Add(routing.NewCandidate("beta", "Beta", 0.002, map[string]float64{"domainX": 0.5}, policy))

	ranker := routing.NewRanker(registry, routing.DefaultRankerConfig)
	store := cache.NewMemory(100, ttl)

	alpha := &fakeProvider{name: "alpha", output: "from alpha", tokens: 100}
	beta := &fakeProvider{name: "beta", output: "from beta", tokens: 100}

	usage := NewUsageTracker()
	exec := NewExecutor(registry, ranker, store,
		map[string]provider.Provider{"alpha": alpha, "beta": beta},
		usage, Config{AttemptTimeout: time.Second})

	return &harness{registry: registry, ranker: ranker, store: store, executor: exec, alpha: alpha, beta: beta}
}

func domainXTask() domain.Task {
	return domain.Task{
		ID:      "t1",
		Type:    "domainX",
		Payload: "do the thing",
		Characteristics: &domain.Characteristics{
			Requirements: map[string]float64{"domainX": 0.9},
		},
	}
}

func TestExecuteSuccessUsesTopCandidate(t *testing.T) {
	h := newHarness(t, routing.DefaultBackoffPolicy, time.Hour)

	res, err := h.executor.Execute(context.Background(), domainXTask())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.CandidateID != "alpha" || res.Cached {
		t.Errorf("result = %+v, want fresh result from alpha", res)
	}
	if res.Cost != 100.0/1000.0*0.01 {
		t.Errorf("cost = %v", res.Cost)
	}
	if h.beta.callCount() != 0 {
		t.Error("beta invoked although alpha succeeded")
	}
}

func TestExecuteCacheHitSkipsCandidates(t *testing.T) {
	h := newHarness(t, routing.DefaultBackoffPolicy, time.Hour)
	task := domainXTask()

	key := cache.Fingerprint(task.Type, task.Payload)
	h.store.Set(context.Background(), key, cache.Entry{
		Output: "memoized", CandidateID: "beta", Cost: 0.5, TokensUsed: 42,
	})

	res, err := h.executor.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Cached || res.Output != "memoized" || res.CandidateID != "beta" {
		t.Errorf("result = %+v, want cached entry", res)
	}
	if res.Cost != 0 {
		t.Errorf("cache hit cost = %v, want 0", res.Cost)
	}
	if h.alpha.callCount() != 0 || h.beta.callCount() != 0 {
		t.Error("cache hit must not invoke any candidate")
	}
}

func TestExecuteExpiredEntryTriggersFreshAttempt(t *testing.T) {
	h := newHarness(t, routing.DefaultBackoffPolicy, 10*time.Millisecond)
	task := domainXTask()

	key := cache.Fingerprint(task.Type, task.Payload)
	h.store.Set(context.Background(), key, cache.Entry{Output: "stale", CandidateID: "beta"})
	time.Sleep(25 * time.Millisecond)

	res, err := h.executor.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Cached || res.Output != "from alpha" {
		t.Errorf("result = %+v, want a fresh result", res)
	}
	if h.alpha.callCount() != 1 {
		t.Errorf("alpha calls = %d, want 1", h.alpha.callCount())
	}
}

func TestExecuteSuccessRefreshesCache(t *testing.T) {
	h := newHarness(t, routing.DefaultBackoffPolicy, time.Hour)
	task := domainXTask()

	if _, err := h.executor.Execute(context.Background(), task); err != nil {
		t.Fatalf("first Execute: %v", err)
	}

	res, err := h.executor.Execute(context.Background(), task)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !res.Cached {
		t.Error("second identical task not served from cache")
	}
	if h.alpha.callCount() != 1 {
		t.Errorf("alpha calls = %d, want 1", h.alpha.callCount())
	}
}

func TestExecutePaymentRequiredSkipsWithoutBackoff(t *testing.T) {
	h := newHarness(t, routing.DefaultBackoffPolicy, time.Hour)
	h.alpha.err = &provider.CallError{Provider: "alpha", Status: 402, Err: errors.New("out of credit")}

	res, err := h.executor.Execute(context.Background(), domainXTask())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.CandidateID != "beta" {
		t.Errorf("served by %s, want beta", res.CandidateID)
	}

	alpha, _ := h.registry.Get("alpha")
	st := alpha.Status()
	if st.ConsecutiveFailures != 0 {
		t.Errorf("payment failure mutated consecutiveFailures: %d", st.ConsecutiveFailures)
	}
	if !st.BackoffUntil.IsZero() {
		t.Errorf("payment failure set backoffUntil: %v", st.BackoffUntil)
	}
}

func TestExecuteAllRateLimitedReturnsExhausted(t *testing.T) {
	h := newHarness(t, routing.DefaultBackoffPolicy, time.Hour)
	h.alpha.err = &provider.CallError{Provider: "alpha", Status: 429, Err: errors.New("slow down")}
	h.beta.err = &provider.CallError{Provider: "beta", Status: 429, Err: errors.New("slow down")}

	_, err := h.executor.Execute(context.Background(), domainXTask())

	var exhausted *domain.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want ExhaustedError", err)
	}
	if len(exhausted.Attempts) != 2 {
		t.Fatalf("attempts = %d, want exactly one per candidate", len(exhausted.Attempts))
	}
	seen := map[string]bool{}
	for _, a := range exhausted.Attempts {
		if a.Kind != domain.FailureRateLimited {
			t.Errorf("%s kind = %v, want rate_limited", a.CandidateID, a.Kind)
		}
		seen[a.CandidateID] = true
	}
	if !seen["alpha"] || !seen["beta"] {
		t.Errorf("attempts missing a candidate: %v", seen)
	}

	// Both entered backoff.
	for _, id := range []string{"alpha", "beta"} {
		c, _ := h.registry.Get(id)
		if c.Selectable(time.Now()) {
			t.Errorf("%s still selectable after rate limit", id)
		}
	}
}

func TestExecuteSuccessResetsFailureState(t *testing.T) {
	policy := routing.BackoffPolicy{Base: 5 * time.Millisecond, Max: 50 * time.Millisecond, MaxFailures: 5}
	h := newHarness(t, policy, time.Hour)

	alpha, _ := h.registry.Get("alpha")
	alpha.RecordFailure(domain.FailureTransient)
	alpha.RecordFailure(domain.FailureTransient)
	time.Sleep(20 * time.Millisecond) // let the backoff window lapse

	res, err := h.executor.Execute(context.Background(), domainXTask())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.CandidateID != "alpha" {
		t.Fatalf("served by %s, want alpha", res.CandidateID)
	}
	if got := alpha.Status().ConsecutiveFailures; got != 0 {
		t.Errorf("consecutiveFailures = %d after success, want 0", got)
	}
}

func TestExecuteNeverSelectsBackedOffCandidates(t *testing.T) {
	h := newHarness(t, routing.DefaultBackoffPolicy, time.Hour)

	alpha, _ := h.registry.Get("alpha")
	beta, _ := h.registry.Get("beta")
	alpha.RecordFailure(domain.FailureTransient)
	beta.SetAvailable(false)

	_, err := h.executor.Execute(context.Background(), domainXTask())

	var backoff *domain.BackoffError
	if !errors.As(err, &backoff) {
		t.Fatalf("err = %v, want BackoffError", err)
	}
	if !backoff.ReleaseAt.Equal(alpha.BackoffUntil()) {
		t.Errorf("ReleaseAt = %v, want alpha's release %v", backoff.ReleaseAt, alpha.BackoffUntil())
	}
	if h.alpha.callCount() != 0 || h.beta.callCount() != 0 {
		t.Error("backed-off candidates were invoked")
	}
}

func TestExecuteEmptyRegistryIsNoCandidates(t *testing.T) {
	registry := routing.NewRegistry()
	ranker := routing.NewRanker(registry, routing.DefaultRankerConfig)
	exec := NewExecutor(registry, ranker, cache.NewMemory(10, time.Hour),
		map[string]provider.Provider{}, NewUsageTracker(), DefaultConfig)

	_, err := exec.Execute(context.Background(), domainXTask())
	if !errors.Is(err, domain.ErrNoCandidates) {
		t.Errorf("err = %v, want ErrNoCandidates", err)
	}
}

func TestExecuteCancellationSkipsRemaining(t *testing.T) {
	h := newHarness(t, routing.DefaultBackoffPolicy, time.Hour)
	h.alpha.block = true

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := h.executor.Execute(ctx, domainXTask())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if h.beta.callCount() != 0 {
		t.Error("remaining candidate invoked after cancellation")
	}
}

func TestExecuteFeedbackAdaptsCapabilities(t *testing.T) {
	h := newHarness(t, routing.DefaultBackoffPolicy, time.Hour)
	alpha, _ := h.registry.Get("alpha")
	beta, _ := h.registry.Get("beta")

	h.alpha.err = &provider.CallError{Provider: "alpha", Status: 500, Err: errors.New("boom")}

	if _, err := h.executor.Execute(context.Background(), domainXTask()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// alpha failed: nudged down. beta served: nudged up.
	if got := alpha.Capability("domainX"); got != 0.8 {
		t.Errorf("alpha domainX = %v, want 0.8", got)
	}
	if got := beta.Capability("domainX"); got != 0.6 {
		t.Errorf("beta domainX = %v, want 0.6", got)
	}
}
