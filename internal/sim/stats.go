package sim

import (
	"math"

	"github.com/talgya/idealworld/internal/agents"
)

// Stats is one iteration's aggregate statistics snapshot over the alive
// population.
type Stats struct {
	IterationNumber int `json:"iterationNumber"`

	AvgWealth    int `json:"avgWealth"`
	AvgHealth    int `json:"avgHealth"`
	AvgHappiness int `json:"avgHappiness"`

	MinWealth    int `json:"minWealth"`
	MaxWealth    int `json:"maxWealth"`
	MinHealth    int `json:"minHealth"`
	MaxHealth    int `json:"maxHealth"`
	MinHappiness int `json:"minHappiness"`
	MaxHappiness int `json:"maxHappiness"`

	AliveCount int `json:"aliveCount"`
	TotalCount int `json:"totalCount"`

	GiniWealth    float64 `json:"giniWealth"`
	GiniHappiness float64 `json:"giniHappiness"`
}

// Gini computes the Gini inequality coefficient of a value list, rounded to
// two decimal places. Fewer than two values, or a zero mean, yields 0.
// O(n²), which is acceptable at the target scale of a few hundred agents.
func Gini(values []int) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	if sum == 0 {
		return 0
	}
	mean := float64(sum) / float64(n)

	var diff float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			diff += math.Abs(float64(values[i] - values[j]))
		}
	}
	g := diff / (2 * float64(n) * float64(n) * mean)
	return math.Round(g*100) / 100
}

// ComputeStats aggregates the citizen roster's stat snapshot for one
// iteration. The central narrator is not a citizen and is excluded.
func ComputeStats(roster []agents.Agent, iteration int) Stats {
	st := Stats{IterationNumber: iteration}

	var wealth, health, happiness []int
	for _, a := range roster {
		if a.Central {
			continue
		}
		st.TotalCount++
		if !a.Alive {
			continue
		}
		wealth = append(wealth, a.Current.Wealth)
		health = append(health, a.Current.Health)
		happiness = append(happiness, a.Current.Happiness)
	}
	st.AliveCount = len(wealth)
	if st.AliveCount == 0 {
		return st
	}

	st.AvgWealth, st.MinWealth, st.MaxWealth = summarize(wealth)
	st.AvgHealth, st.MinHealth, st.MaxHealth = summarize(health)
	st.AvgHappiness, st.MinHappiness, st.MaxHappiness = summarize(happiness)
	st.GiniWealth = Gini(wealth)
	st.GiniHappiness = Gini(happiness)
	return st
}

func summarize(values []int) (avg, min, max int) {
	min, max = values[0], values[0]
	sum := 0
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	avg = int(math.Round(float64(sum) / float64(len(values))))
	return avg, min, max
}
