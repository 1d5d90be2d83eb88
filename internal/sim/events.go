// Package sim contains the simulation orchestration engine: the per-session
// run controller, iteration statistics, and the simulation loop itself.
package sim

import "github.com/talgya/idealworld/internal/llm"

// Event types broadcast to session subscribers.
const (
	EventIterationStart     = "iteration-start"
	EventAgentIntent        = "agent-intent"
	EventResolution         = "resolution"
	EventIterationComplete  = "iteration-complete"
	EventSimulationComplete = "simulation-complete"
	EventPaused             = "paused"
	EventError              = "error"
)

// Event is one progress update pushed to live viewers. Fields are populated
// per type; delivery is best-effort and fire-and-forget.
type Event struct {
	Type             string               `json:"type"`
	Iteration        int                  `json:"iteration,omitempty"`
	Total            int                  `json:"total,omitempty"`
	AgentID          string               `json:"agentId,omitempty"`
	AgentName        string               `json:"agentName,omitempty"`
	Intent           string               `json:"intent,omitempty"`
	NarrativeSummary string               `json:"narrativeSummary,omitempty"`
	LifecycleEvents  []llm.LifecycleEvent `json:"lifecycleEvents,omitempty"`
	Stats            *Stats               `json:"stats,omitempty"`
	FinalReport      string               `json:"finalReport,omitempty"`
	Message          string               `json:"message,omitempty"`
}
