package routing

import (
	"math"
	"reflect"
	"testing"

	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
)

func testRegistry() *Registry {
	r := NewRegistry()
	r.Add(NewCandidate("alpha", "Alpha", 0.01, map[string]float64{
		"domainX":                0.9,
		domain.DimCostEfficiency: 0.5,
		domain.DimResponseSpeed:  0.6,
	}, DefaultBackoffPolicy))
	r.Add(NewCandidate("beta", "Beta", 0.002, map[string]float64{
		"domainX":                0.2,
		domain.DimCostEfficiency: 0.9,
		domain.DimResponseSpeed:  0.9,
	}, DefaultBackoffPolicy))
	return r
}

func TestRankExpertiseDominates(t *testing.T) {
	ranker := NewRanker(testRegistry(), DefaultRankerConfig)

	task := domain.Task{
		Type:    "domainX-task",
		Payload: "work item",
		Characteristics: &domain.Characteristics{
			Requirements: map[string]float64{"domainX": 0.9},
		},
	}

	decisions := ranker.Rank(task)
	if len(decisions) != 2 {
		t.Fatalf("got %d decisions, want 2", len(decisions))
	}
	if decisions[0].CandidateID != "alpha" || decisions[1].CandidateID != "beta" {
		t.Fatalf("order = [%s, %s], want [alpha, beta]", decisions[0].CandidateID, decisions[1].CandidateID)
	}
	if decisions[0].Suitability <= decisions[1].Suitability {
		t.Errorf("alpha suitability %v not strictly greater than beta %v",
			decisions[0].Suitability, decisions[1].Suitability)
	}
}

func TestRankDeterministic(t *testing.T) {
	ranker := NewRanker(testRegistry(), DefaultRankerConfig)
	task := domain.Task{Type: "general", Payload: "summarize the quarterly report"}

	first := ranker.Rank(task)
	for i := 0; i < 10; i++ {
		if got := ranker.Rank(task); !reflect.DeepEqual(got, first) {
			t.Fatalf("ranking changed between identical calls: %+v vs %+v", got, first)
		}
	}
}

func TestRankCostSensitivityRule(t *testing.T) {
	ranker := NewRanker(testRegistry(), DefaultRankerConfig)

	task := domain.Task{
		Type:    "bulk",
		Payload: "cheap batch job",
		Characteristics: &domain.Characteristics{
			Requirements:    map[string]float64{domain.DimCostEfficiency: 0.5},
			CostSensitivity: 0.9,
		},
	}

	decisions := ranker.Rank(task)
	if decisions[0].CandidateID != "beta" {
		t.Fatalf("cost-sensitive task ranked %s first, want beta", decisions[0].CandidateID)
	}
	if !hasReason(decisions[0].Reasons, "cost-efficient for a cost-sensitive task") {
		t.Errorf("missing cost rule reason: %v", decisions[0].Reasons)
	}
}

func TestRankUrgencyRule(t *testing.T) {
	ranker := NewRanker(testRegistry(), DefaultRankerConfig)

	task := domain.Task{
		Type:    "ping",
		Payload: "x",
		Characteristics: &domain.Characteristics{
			Requirements: map[string]float64{domain.DimResponseSpeed: 0.5},
			Urgency:      0.9,
		},
	}

	decisions := ranker.Rank(task)
	if decisions[0].CandidateID != "beta" {
		t.Fatalf("urgent task ranked %s first, want beta", decisions[0].CandidateID)
	}
	if !hasReason(decisions[0].Reasons, "fast response for an urgent task") {
		t.Errorf("missing urgency rule reason: %v", decisions[0].Reasons)
	}
}

func TestRankFallbackReason(t *testing.T) {
	ranker := NewRanker(testRegistry(), DefaultRankerConfig)

	task := domain.Task{
		Type:    "misc",
		Payload: "x",
		Characteristics: &domain.Characteristics{
			Requirements: map[string]float64{"domainX": 0.2},
		},
	}

	for _, d := range ranker.Rank(task) {
		if len(d.Reasons) != 1 || d.Reasons[0] != "balanced capabilities for general tasks" {
			t.Errorf("%s reasons = %v, want fallback only", d.CandidateID, d.Reasons)
		}
	}
}

func TestRankEmptyRegistry(t *testing.T) {
	ranker := NewRanker(NewRegistry(), DefaultRankerConfig)

	if got := ranker.Rank(domain.Task{Type: "t", Payload: "p"}); len(got) != 0 {
		t.Errorf("empty registry produced %d decisions", len(got))
	}
}

func TestRankMinSuitabilityFilter(t *testing.T) {
	ranker := NewRanker(testRegistry(), RankerConfig{LearningRate: 0.1, MinSuitability: 0.5})

	task := domain.Task{
		Type:    "misc",
		Payload: "x",
		Characteristics: &domain.Characteristics{
			Requirements: map[string]float64{"domainX": 0.3},
		},
	}

	for _, d := range ranker.Rank(task) {
		if d.Suitability < 0.5 {
			t.Errorf("%s scored %v, below the minimum", d.CandidateID, d.Suitability)
		}
	}
}

func TestLoadPenaltyLowersScore(t *testing.T) {
	reg := testRegistry()
	ranker := NewRanker(reg, DefaultRankerConfig)
	task := domain.Task{
		Type:    "t",
		Payload: "x",
		Characteristics: &domain.Characteristics{
			Requirements: map[string]float64{"domainX": 0.5},
		},
	}

	before := ranker.Rank(task)

	alpha, _ := reg.Get("alpha")
	alpha.MaxConcurrent = 1
	alpha.BeginAttempt()
	defer alpha.EndAttempt()

	after := ranker.Rank(task)

	if suitabilityOf(after, "alpha") >= suitabilityOf(before, "alpha") {
		t.Errorf("full load did not lower alpha's score: %v -> %v",
			suitabilityOf(before, "alpha"), suitabilityOf(after, "alpha"))
	}
	if suitabilityOf(after, "beta") != suitabilityOf(before, "beta") {
		t.Error("beta's score changed when only alpha's load changed")
	}
}

func TestReputationBonusCapped(t *testing.T) {
	reg := testRegistry()
	alpha, _ := reg.Get("alpha")
	for i := 0; i < 2000; i++ {
		alpha.RecordSuccess()
	}

	if rep := alpha.Reputation(); rep != 1000 {
		t.Fatalf("reputation = %d, want capped at 1000", rep)
	}

	ranker := NewRanker(reg, DefaultRankerConfig)
	task := domain.Task{
		Type:    "t",
		Payload: "x",
		Characteristics: &domain.Characteristics{
			Requirements: map[string]float64{"domainX": 0.3},
		},
	}

	// Bonus saturates at +0.2: score with capped reputation must stay in [0,1].
	for _, d := range ranker.Rank(task) {
		if d.Suitability < 0 || d.Suitability > 1 {
			t.Errorf("%s suitability %v outside [0,1]", d.CandidateID, d.Suitability)
		}
	}
}

func TestAdaptNudgesMatchingDimensions(t *testing.T) {
	reg := testRegistry()
	ranker := NewRanker(reg, RankerConfig{LearningRate: 0.1})
	alpha, _ := reg.Get("alpha")

	before := alpha.Capability("domainX")
	ranker.Adapt("alpha", "domainX-task", true)

	if got := alpha.Capability("domainX"); math.Abs(got-(before+0.1)) > 1e-9 {
		t.Errorf("capability = %v, want %v", got, before+0.1)
	}

	// Clamp at the ceiling under repeated positive feedback.
	for i := 0; i < 20; i++ {
		ranker.Adapt("alpha", "domainX-task", true)
	}
	if got := alpha.Capability("domainX"); got != 1.0 {
		t.Errorf("capability = %v after repeated feedback, want clamped 1.0", got)
	}

	// Negative feedback moves it down, clamped at the floor.
	for i := 0; i < 20; i++ {
		ranker.Adapt("alpha", "domainX-task", false)
	}
	if got := alpha.Capability("domainX"); got != 0.0 {
		t.Errorf("capability = %v after repeated failures, want clamped 0.0", got)
	}
}

func TestAdaptLeadingTokenMatch(t *testing.T) {
	reg := NewRegistry()
	reg.Add(NewCandidate("a", "A", 0, map[string]float64{
		domain.DimWeb3Expertise: 0.5,
		domain.DimResponseSpeed: 0.5,
	}, DefaultBackoffPolicy))
	ranker := NewRanker(reg, RankerConfig{LearningRate: 0.1})

	ranker.Adapt("a", "web3 contract review", true)

	a, _ := reg.Get("a")
	if got := a.Capability(domain.DimWeb3Expertise); got != 0.6 {
		t.Errorf("web3-expertise = %v, want 0.6", got)
	}
	if got := a.Capability(domain.DimResponseSpeed); got != 0.5 {
		t.Errorf("response-speed = %v, want unchanged 0.5", got)
	}
}

func TestComplexityMembership(t *testing.T) {
	tests := []struct {
		complexity       float64
		low, medium, high float64
	}{
		{0, 1, 0, 0},
		{0.25, 0.5, 0.5, 0},
		{0.5, 0, 1, 0},
		{0.75, 0, 0.5, 0.5},
		{1, 0, 0, 1},
	}

	for _, tt := range tests {
		if got := lowComplexity(tt.complexity); math.Abs(got-tt.low) > 1e-9 {
			t.Errorf("lowComplexity(%v) = %v, want %v", tt.complexity, got, tt.low)
		}
		if got := mediumComplexity(tt.complexity); math.Abs(got-tt.medium) > 1e-9 {
			t.Errorf("mediumComplexity(%v) = %v, want %v", tt.complexity, got, tt.medium)
		}
		if got := highComplexity(tt.complexity); math.Abs(got-tt.high) > 1e-9 {
			t.Errorf("highComplexity(%v) = %v, want %v", tt.complexity, got, tt.high)
		}
	}
}

func hasReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}

func suitabilityOf(decisions []domain.Decision, id string) float64 {
	for _, d := range decisions {
		if d.CandidateID == id {
			return d.Suitability
		}
	}
	return -1
}
