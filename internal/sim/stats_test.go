package sim

import (
	"testing"

	"github.com/talgya/idealworld/internal/agents"
)

func TestGini(t *testing.T) {
	tests := []struct {
		name   string
		values []int
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []int{50}, 0},
		{"perfect equality", []int{40, 40, 40, 40}, 0},
		{"all zero", []int{0, 0, 0}, 0},
		{"total concentration", []int{100, 0, 0, 0}, 0.75},
		{"two values", []int{0, 100}, 0.5},
		{"mild spread", []int{30, 50, 70}, 0.18},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Gini(tc.values); got != tc.want {
				t.Fatalf("Gini(%v) = %v, want %v", tc.values, got, tc.want)
			}
		})
	}
}

func TestGiniBounds(t *testing.T) {
	samples := [][]int{
		{1, 2, 3, 4, 5},
		{0, 0, 0, 100},
		{10, 90, 10, 90, 10, 90},
		{7},
	}
	for _, vs := range samples {
		g := Gini(vs)
		if g < 0 || g > 1 {
			t.Fatalf("Gini(%v) = %v out of [0,1]", vs, g)
		}
	}
}

func TestGiniMoreUnequalIsHigher(t *testing.T) {
	even := Gini([]int{50, 50, 50, 50})
	mild := Gini([]int{40, 45, 55, 60})
	harsh := Gini([]int{5, 5, 90, 100})
	if !(even <= mild && mild < harsh) {
		t.Fatalf("monotonicity violated: even=%v mild=%v harsh=%v", even, mild, harsh)
	}
}

func statAgent(wealth, health, happiness int, alive, central bool) agents.Agent {
	return agents.Agent{
		Current: agents.Stats{Wealth: wealth, Health: health, Happiness: happiness},
		Alive:   alive,
		Central: central,
	}
}

func TestComputeStats(t *testing.T) {
	roster := []agents.Agent{
		statAgent(20, 80, 60, true, false),
		statAgent(60, 40, 40, true, false),
		statAgent(100, 90, 80, true, false),
		statAgent(5, 0, 10, false, false),   // dead, excluded from aggregates
		statAgent(999, 99, 99, true, true),  // central narrator, excluded
	}

	got := ComputeStats(roster, 7)

	if got.IterationNumber != 7 {
		t.Fatalf("iteration = %d, want 7", got.IterationNumber)
	}
	if got.AliveCount != 3 || got.TotalCount != 4 {
		t.Fatalf("counts = %d/%d, want 3/4", got.AliveCount, got.TotalCount)
	}
	if got.AvgWealth != 60 {
		t.Fatalf("avg wealth = %d, want 60", got.AvgWealth)
	}
	if got.MinWealth != 20 || got.MaxWealth != 100 {
		t.Fatalf("wealth range = [%d,%d], want [20,100]", got.MinWealth, got.MaxWealth)
	}
	if got.AvgHealth != 70 || got.MinHealth != 40 || got.MaxHealth != 90 {
		t.Fatalf("health = %d [%d,%d]", got.AvgHealth, got.MinHealth, got.MaxHealth)
	}
	if got.AvgHappiness != 60 {
		t.Fatalf("avg happiness = %d, want 60", got.AvgHappiness)
	}
	if got.GiniWealth <= 0 {
		t.Fatalf("gini wealth = %v, want > 0 for unequal wealth", got.GiniWealth)
	}
}

func TestComputeStatsEmptyPopulation(t *testing.T) {
	got := ComputeStats([]agents.Agent{statAgent(10, 0, 10, false, false)}, 1)
	if got.AliveCount != 0 {
		t.Fatalf("alive = %d, want 0", got.AliveCount)
	}
	if got.AvgWealth != 0 || got.GiniWealth != 0 {
		t.Fatalf("aggregates over empty population: %+v", got)
	}
}
