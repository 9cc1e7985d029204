package routing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/DealAppSeo/hyperdag-router/internal/core/domain"
)

// Fuzzy rule bonuses. Each rule contributes additively when its antecedent
// crosses the threshold; the final score is clamped to [0,1].
const (
	expertiseBonus = 0.9
	costBonus      = 0.7
	urgencyBonus   = 0.8

	expertiseReqThreshold = 0.7
	expertiseCapThreshold = 0.8
	costSensThreshold     = 0.6
	costCapThreshold      = 0.7
	urgencyThreshold      = 0.7
	speedCapThreshold     = 0.8

	loadPenaltyFactor  = 0.3
	reputationDivisor  = 1000.0
	maxReputationBonus = 0.2

	// approxCharsPerToken converts payload size to a token estimate for
	// cost projection.
	approxCharsPerToken = 4
)

// RankerConfig tunes the suitability ranker.
type RankerConfig struct {
	// LearningRate is the feedback nudge applied per adaptation.
	LearningRate float64

	// MinSuitability filters candidates scoring below it out of the ranking.
	MinSuitability float64
}

// DefaultRankerConfig mirrors production defaults.
var DefaultRankerConfig = RankerConfig{LearningRate: 0.1}

// Ranker scores candidates against a task using fuzzy rules and adapts
// per-candidate capability weights from execution feedback.
type Ranker struct {
	registry *Registry
	cfg      RankerConfig
}

// NewRanker creates a ranker over the given registry.
func NewRanker(registry *Registry, cfg RankerConfig) *Ranker {
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = DefaultRankerConfig.LearningRate
	}
	return &Ranker{registry: registry, cfg: cfg}
}

// Rank scores every registered candidate and returns decisions ordered by
// suitability, highest first. Ties break on the static configuration
// priority, then lexicographically by candidate ID, so repeated calls over
// an unchanged registry are deterministic. An empty result means no capable
// candidates exist; the caller must treat that as distinct from execution
// failure.
func (r *Ranker) Rank(task domain.Task) []domain.Decision {
	chars := task.EffectiveCharacteristics()
	candidates := r.registry.All()

	type scored struct {
		decision domain.Decision
		priority int
	}
	results := make([]scored, 0, len(candidates))

	for _, c := range candidates {
		score, reasons := r.score(chars, c)
		if score < r.cfg.MinSuitability {
			continue
		}
		results = append(results, scored{
			decision: domain.Decision{
				CandidateID:   c.ID,
				Suitability:   score,
				Reasons:       reasons,
				EstimatedCost: estimateCost(task.Payload, c.CostPerKiloToken),
				EstimatedTime: estimateTime(c),
			},
			priority: c.priority,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].decision.Suitability != results[j].decision.Suitability {
			return results[i].decision.Suitability > results[j].decision.Suitability
		}
		if results[i].priority != results[j].priority {
			return results[i].priority < results[j].priority
		}
		return results[i].decision.CandidateID < results[j].decision.CandidateID
	})

	decisions := make([]domain.Decision, len(results))
	for i, s := range results {
		decisions[i] = s.decision
	}
	return decisions
}

func (r *Ranker) score(chars domain.Characteristics, c *Candidate) (float64, []string) {
	caps := c.Capabilities()
	var reasons []string

	// Base score: mean of per-dimension match terms (requirement x capability).
	score := 0.0
	if len(chars.Requirements) > 0 {
		sum := 0.0
		for dim, req := range chars.Requirements {
			sum += req * caps[dim]
		}
		score = sum / float64(len(chars.Requirements))
	}

	// Rule: strong domain expertise match.
	for _, dim := range sortedDims(chars.Requirements) {
		if chars.Requirements[dim] > expertiseReqThreshold && caps[dim] > expertiseCapThreshold {
			score += expertiseBonus
			reasons = append(reasons, fmt.Sprintf("strong %s match", dim))
		}
	}

	// Rule: cost sensitivity.
	if chars.CostSensitivity > costSensThreshold && caps[domain.DimCostEfficiency] > costCapThreshold {
		score += costBonus
		reasons = append(reasons, "cost-efficient for a cost-sensitive task")
	}

	// Rule: urgency.
	if chars.Urgency > urgencyThreshold && caps[domain.DimResponseSpeed] > speedCapThreshold {
		score += urgencyBonus
		reasons = append(reasons, "fast response for an urgent task")
	}

	// Rule: high complexity favors broad capability, weighted by the
	// triangular high membership over complexity.
	if mu := highComplexity(chars.Complexity); mu > 0 {
		score += mu * averageCapability(caps)
		if mu >= 0.5 {
			reasons = append(reasons, "broad capabilities for a high-complexity task")
		}
	}

	// Load penalty and reputation bonus.
	score *= 1 - c.Load()*loadPenaltyFactor
	score += min(float64(c.Reputation())/reputationDivisor, maxReputationBonus)

	if len(reasons) == 0 {
		reasons = []string{"balanced capabilities for general tasks"}
	}
	return domain.Clamp01(score), reasons
}

// Adapt nudges the capability dimensions whose name (or leading token)
// case-insensitively matches the task type. Clamping bounds repeated
// identical feedback; there is no history window or momentum.
func (r *Ranker) Adapt(candidateID, taskType string, success bool) {
	c, ok := r.registry.Get(candidateID)
	if !ok {
		return
	}

	delta := r.cfg.LearningRate
	if !success {
		delta = -delta
	}

	lowerType := strings.ToLower(taskType)
	for dim := range c.Capabilities() {
		lowerDim := strings.ToLower(dim)
		token, _, _ := strings.Cut(lowerDim, "-")
		if strings.Contains(lowerType, lowerDim) || strings.Contains(lowerType, token) {
			c.AdjustCapability(dim, delta)
		}
	}
}

// highComplexity is the rising edge of the {0, 0.5, 1} triangular partition:
// zero at or below 0.5, one at 1.
func highComplexity(complexity float64) float64 {
	if complexity <= 0.5 {
		return 0
	}
	return (complexity - 0.5) / 0.5
}

// lowComplexity and mediumComplexity complete the partition; the ranker only
// consumes the high edge today but the membership functions are symmetric.
func lowComplexity(complexity float64) float64 {
	if complexity >= 0.5 {
		return 0
	}
	return (0.5 - complexity) / 0.5
}

func mediumComplexity(complexity float64) float64 {
	switch {
	case complexity <= 0, complexity >= 1:
		return 0
	case complexity < 0.5:
		return complexity / 0.5
	default:
		return (1 - complexity) / 0.5
	}
}

func averageCapability(caps map[string]float64) float64 {
	if len(caps) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range caps {
		sum += v
	}
	return sum / float64(len(caps))
}

func sortedDims(m map[string]float64) []string {
	dims := make([]string, 0, len(m))
	for dim := range m {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	return dims
}

func estimateCost(payload string, costPerKiloToken float64) float64 {
	tokens := float64(len(payload)) / approxCharsPerToken
	return tokens / 1000.0 * costPerKiloToken
}

func estimateTime(c *Candidate) time.Duration {
	speed := c.Capability(domain.DimResponseSpeed)
	// Slower candidates project longer turnaround; 2s floor for the fastest.
	return time.Duration(float64(10*time.Second) * (1 - 0.8*speed))
}
