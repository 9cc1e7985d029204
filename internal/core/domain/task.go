package domain

import (
	"strings"
)

// Well-known capability dimension names. Candidates may declare additional
// dimensions; the router only requires that names are stable strings.
const (
	DimWeb3Expertise     = "web3-expertise"
	DimSeoExpertise      = "seo-expertise"
	DimCodeExpertise     = "code-expertise"
	DimGeneralReasoning  = "general-reasoning"
	DimCostEfficiency    = "cost-efficiency"
	DimResponseSpeed     = "response-speed"
	DimAvailability      = "availability"
)

// Characteristics describes what a task demands from a candidate.
// All values live in [0,1]; construction clamps them.
type Characteristics struct {
	// Requirements maps capability dimension names to requirement weights.
	Requirements map[string]float64 `json:"requirements,omitempty"`

	Urgency         float64 `json:"urgency"`
	CostSensitivity float64 `json:"cost_sensitivity"`
	Complexity      float64 `json:"complexity"`
}

// Task is the unit of work submitted to the router. Immutable once built.
type Task struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Payload string `json:"payload"`

	// Characteristics is optional; when nil they are derived from the payload.
	Characteristics *Characteristics `json:"characteristics,omitempty"`
}

// EffectiveCharacteristics returns the task's characteristics, deriving them
// deterministically from the payload when none were supplied. All values are
// clamped to [0,1].
func (t Task) EffectiveCharacteristics() Characteristics {
	if t.Characteristics != nil {
		return t.Characteristics.clamped()
	}
	return deriveCharacteristics(t.Type, t.Payload)
}

func (c Characteristics) clamped() Characteristics {
	out := Characteristics{
		Urgency:         Clamp01(c.Urgency),
		CostSensitivity: Clamp01(c.CostSensitivity),
		Complexity:      Clamp01(c.Complexity),
	}
	if len(c.Requirements) > 0 {
		out.Requirements = make(map[string]float64, len(c.Requirements))
		for dim, w := range c.Requirements {
			out.Requirements[dim] = Clamp01(w)
		}
	}
	return out
}

// deriveCharacteristics builds a characteristics vector from the raw payload.
// The derivation is intentionally simple: payload length drives complexity,
// keyword presence drives urgency and the per-domain requirement weights.
func deriveCharacteristics(taskType, payload string) Characteristics {
	lower := strings.ToLower(taskType + " " + payload)

	c := Characteristics{
		Requirements:    make(map[string]float64),
		Urgency:         0.3,
		CostSensitivity: 0.5,
		Complexity:      Clamp01(float64(len(payload)) / 2000.0),
	}

	if strings.Contains(lower, "urgent") || strings.Contains(lower, "asap") ||
		strings.Contains(lower, "immediately") {
		c.Urgency = 0.9
	}
	if strings.Contains(lower, "cheap") || strings.Contains(lower, "budget") {
		c.CostSensitivity = 0.9
	}

	for keyword, dim := range map[string]string{
		"web3":       DimWeb3Expertise,
		"blockchain": DimWeb3Expertise,
		"contract":   DimWeb3Expertise,
		"seo":        DimSeoExpertise,
		"keyword":    DimSeoExpertise,
		"code":       DimCodeExpertise,
		"function":   DimCodeExpertise,
		"debug":      DimCodeExpertise,
	} {
		if strings.Contains(lower, keyword) {
			c.Requirements[dim] = 0.8
		}
	}
	if len(c.Requirements) == 0 {
		c.Requirements[DimGeneralReasoning] = 0.6
	}

	return c
}

// Clamp01 bounds v to the [0,1] interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
