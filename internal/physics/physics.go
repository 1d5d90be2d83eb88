package physics

import (
	"math"
	"strings"

	"github.com/talgya/idealworld/internal/agents"
)

// Deltas is the stat change produced by resolving one action. Every channel
// is clamped to [-30, +30].
type Deltas struct {
	Wealth    int `json:"wealthDelta"`
	Health    int `json:"healthDelta"`
	Happiness int `json:"happinessDelta"`
	Cortisol  int `json:"cortisolDelta"`
	Dopamine  int `json:"dopamineDelta"`
}

var (
	leaderRoles = []string{"leader", "governor", "merchant", "chief", "king", "queen", "mayor", "minister"}
	tradeRoles  = []string{"artisan", "worker", "farmer", "builder", "miner", "smith", "carpenter"}
	knowRoles   = []string{"scholar", "healer", "priest", "teacher", "monk", "doctor", "sage"}
)

// roleIncome returns the WORK income tier for a role string.
func roleIncome(role string) int {
	lower := strings.ToLower(role)
	contains := func(keys []string) bool {
		for _, k := range keys {
			if strings.Contains(lower, k) {
				return true
			}
		}
		return false
	}
	switch {
	case contains(leaderRoles):
		return 8
	case contains(tradeRoles):
		return 5
	case contains(knowRoles):
		return 4
	default:
		return 3
	}
}

func findAlive(all []agents.Agent, id string) *agents.Agent {
	if id == "" {
		return nil
	}
	for i := range all {
		if all[i].ID == id && all[i].Alive {
			return &all[i]
		}
	}
	return nil
}

// tradeGain is proportional to the wealth gap with the partner, clamped to
// [-5, +5], plus a flat +2. No valid living partner yields the flat gain.
func tradeGain(agent agents.Agent, all []agents.Agent, targetID string) int {
	target := findAlive(all, targetID)
	if target == nil {
		return 2
	}
	diff := float64(target.Current.Wealth-agent.Current.Wealth) * 0.1
	return int(math.Round(math.Max(-5, math.Min(5, diff)) + 2))
}

// stealGain is capped at 15% of the target's wealth, or a small flat gain
// when there is no valid living target.
func stealGain(all []agents.Agent, targetID string) int {
	target := findAlive(all, targetID)
	if target == nil {
		return 3
	}
	gain := int(math.Round(float64(target.Current.Wealth) * 0.15))
	if gain > 15 {
		gain = 15
	}
	return gain
}

func clampDelta(v int) int {
	if v < -30 {
		return -30
	}
	if v > 30 {
		return 30
	}
	return v
}

// ClampStat bounds a stored stat value to [0, 100].
func ClampStat(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Resolve computes the deterministic stat deltas for an agent's chosen
// action. Same inputs always produce the same output; the decision service
// already injected the behavioral variance.
func Resolve(agent agents.Agent, code Code, targetID string, all []agents.Agent) Deltas {
	var w, h, hap, cor, dop int

	switch code {
	case Work:
		w = roleIncome(agent.Role)
		h, hap, cor, dop = -2, -1, -3, 2
	case Rest:
		h, hap, cor, dop = 5, 2, -5, 1
	case Trade:
		w = tradeGain(agent, all, targetID)
		hap, cor, dop = 3, -2, 3
	case Strike:
		hap, cor, dop = 5, 5, 4
	case Steal:
		w = stealGain(all, targetID)
		h, hap, cor, dop = -5, -3, 10, 5
	case Help:
		w = -5
		hap, cor, dop = 5, -5, 5
	case Invest:
		w = -10
		hap, cor, dop = -2, 3, 2
	case Consume:
		w = -8
		h, hap, cor, dop = 3, 8, -8, 8
	default: // None and anything malformed
		h, hap, cor, dop = -1, -1, 2, -2
	}

	// Universal adjustments after action resolution: metabolism, stress
	// escalation under scarcity, hedonic adaptation.
	h -= 2
	if agent.Current.Wealth < 20 {
		cor += 10
	}
	if agent.Current.Health < 30 {
		cor += 8
	}
	dop -= 3

	return Deltas{
		Wealth:    clampDelta(w),
		Health:    clampDelta(h),
		Happiness: clampDelta(hap),
		Cortisol:  clampDelta(cor),
		Dopamine:  clampDelta(dop),
	}
}
