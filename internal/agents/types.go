// Package agents provides the agent data model shared by the physics engine,
// clustering, and the simulation loop.
package agents

// Stats holds an agent's stat snapshot. Wealth, health, and happiness are
// externally visible; cortisol and dopamine are hidden internal stats read
// only by the physics engine.
type Stats struct {
	Wealth    int `json:"wealth"`
	Health    int `json:"health"`
	Happiness int `json:"happiness"`
	Cortisol  int `json:"cortisol"`
	Dopamine  int `json:"dopamine"`
}

// Agent is a simulated individual. Owned by a session; mutated only by the
// simulation loop during iteration processing.
type Agent struct {
	ID         string `json:"id"`
	SessionID  string `json:"sessionId"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Background string `json:"background"`

	// Initial never changes after the roster is created; Current is updated
	// each iteration.
	Initial Stats `json:"initialStats"`
	Current Stats `json:"currentStats"`

	Alive   bool `json:"isAlive"`
	Central bool `json:"isCentralAgent"` // the narrator, excluded from decision collection

	BornAtIteration int  `json:"bornAtIteration"`
	DiedAtIteration *int `json:"diedAtIteration,omitempty"`
}
