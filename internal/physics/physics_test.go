package physics

import (
	"testing"

	"github.com/talgya/idealworld/internal/agents"
)

func testAgent(id, role string, wealth, health int) agents.Agent {
	return agents.Agent{
		ID:    id,
		Role:  role,
		Alive: true,
		Current: agents.Stats{
			Wealth: wealth, Health: health, Happiness: 60, Cortisol: 40, Dopamine: 50,
		},
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want Code
	}{
		{"WORK", Work},
		{"work", Work},
		{"  Trade ", Trade},
		{"consume", Consume},
		{"NONE", None},
		{"", None},
		{"FLY_TO_MOON", None},
		{"str ike", None},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestResolveDeterministic(t *testing.T) {
	all := []agents.Agent{
		testAgent("a", "Farmer", 50, 70),
		testAgent("b", "Merchant", 90, 80),
	}
	for _, code := range []Code{Work, Trade, Rest, Strike, Steal, Help, Invest, Consume, None} {
		first := Resolve(all[0], code, "b", all)
		second := Resolve(all[0], code, "b", all)
		if first != second {
			t.Errorf("%s: two identical calls differ: %+v vs %+v", code, first, second)
		}
	}
}

func TestResolveClampsAllChannels(t *testing.T) {
	all := []agents.Agent{
		testAgent("poor", "Beggar", 5, 10), // triggers both cortisol escalations
		testAgent("rich", "King", 100, 100),
	}
	for _, code := range []Code{Work, Trade, Rest, Strike, Steal, Help, Invest, Consume, None} {
		for i := range all {
			d := Resolve(all[i], code, all[1-i].ID, all)
			for name, v := range map[string]int{
				"wealth": d.Wealth, "health": d.Health, "happiness": d.Happiness,
				"cortisol": d.Cortisol, "dopamine": d.Dopamine,
			} {
				if v < -30 || v > 30 {
					t.Errorf("%s on %s: %s delta %d outside [-30,30]", code, all[i].ID, name, v)
				}
			}
		}
	}
}

func TestWorkIncomeTiers(t *testing.T) {
	cases := []struct {
		role string
		want int
	}{
		{"Village Leader", 8},
		{"merchant", 8},
		{"Queen Regent", 8},
		{"Blacksmith", 5},
		{"farmer", 5},
		{"Scholar of the Old Ways", 4},
		{"healer", 4},
		{"Drifter", 3},
	}
	for _, c := range cases {
		a := testAgent("x", c.role, 50, 70)
		d := Resolve(a, Work, "", nil)
		if d.Wealth != c.want {
			t.Errorf("WORK as %q: wealth delta %d, want %d", c.role, d.Wealth, c.want)
		}
	}
}

func TestStealCappedAtFifteenPercent(t *testing.T) {
	thief := testAgent("thief", "Outlaw", 50, 70)
	rich := testAgent("rich", "Merchant", 100, 80)
	all := []agents.Agent{thief, rich}

	d := Resolve(thief, Steal, "rich", all)
	if d.Wealth != 15 {
		t.Errorf("steal from wealth 100: gain %d, want 15", d.Wealth)
	}

	modest := testAgent("modest", "Farmer", 40, 80)
	all = []agents.Agent{thief, modest}
	d = Resolve(thief, Steal, "modest", all)
	if d.Wealth != 6 {
		t.Errorf("steal from wealth 40: gain %d, want 6", d.Wealth)
	}

	// No valid living target falls back to the flat gain.
	dead := testAgent("dead", "Farmer", 40, 0)
	dead.Alive = false
	all = []agents.Agent{thief, dead}
	d = Resolve(thief, Steal, "dead", all)
	if d.Wealth != 3 {
		t.Errorf("steal with dead target: gain %d, want 3", d.Wealth)
	}
}

func TestTradeGainClamped(t *testing.T) {
	poor := testAgent("poor", "Farmer", 10, 70)
	rich := testAgent("rich", "Merchant", 100, 70)
	all := []agents.Agent{poor, rich}

	// Gap 90 * 0.1 = 9, clamped to 5, plus flat 2.
	if d := Resolve(poor, Trade, "rich", all); d.Wealth != 7 {
		t.Errorf("poor trading with rich: wealth delta %d, want 7", d.Wealth)
	}
	// Other direction: -9 clamped to -5, plus 2.
	if d := Resolve(rich, Trade, "poor", all); d.Wealth != -3 {
		t.Errorf("rich trading with poor: wealth delta %d, want -3", d.Wealth)
	}
	// Missing partner yields the flat gain.
	if d := Resolve(poor, Trade, "", all); d.Wealth != 2 {
		t.Errorf("trade without partner: wealth delta %d, want 2", d.Wealth)
	}
}

func TestUniversalAdjustments(t *testing.T) {
	// NONE base: h=-1, plus metabolism -2.
	comfortable := testAgent("a", "Farmer", 50, 70)
	d := Resolve(comfortable, None, "", nil)
	if d.Health != -3 {
		t.Errorf("health delta %d, want -3", d.Health)
	}
	// NONE cortisol base +2, no escalation.
	if d.Cortisol != 2 {
		t.Errorf("cortisol delta %d, want 2", d.Cortisol)
	}
	// NONE dopamine base -2, hedonic adaptation -3.
	if d.Dopamine != -5 {
		t.Errorf("dopamine delta %d, want -5", d.Dopamine)
	}

	// Low wealth and low health both escalate cortisol.
	desperate := testAgent("b", "Farmer", 10, 20)
	d = Resolve(desperate, None, "", nil)
	if d.Cortisol != 20 {
		t.Errorf("desperate cortisol delta %d, want 20", d.Cortisol)
	}
}

func TestClampStat(t *testing.T) {
	cases := []struct{ in, want int }{
		{-10, 0}, {0, 0}, {55, 55}, {100, 100}, {140, 100},
	}
	for _, c := range cases {
		if got := ClampStat(c.in); got != c.want {
			t.Errorf("ClampStat(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}
