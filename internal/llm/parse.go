package llm

import (
	"strings"

	"github.com/talgya/idealworld/internal/physics"
)

// Intent is one agent's parsed statement of intended action.
type Intent struct {
	Text      string
	Reasoning string
	Code      physics.Code
	TargetID  string
}

// Outcome is the parsed resolution result for a single agent. Stat deltas
// are deliberately absent: they are always recomputed by the physics engine
// from the agent's action code, never trusted from model output.
type Outcome struct {
	AgentID string
	Text    string
	Died    bool
	NewRole string
}

// LifecycleEvent records a death or role change within an iteration.
type LifecycleEvent struct {
	Type    string `json:"type"` // "death" or "role_change"
	AgentID string `json:"agentId"`
	Detail  string `json:"detail"`
}

// Resolution is a full-population resolution.
type Resolution struct {
	NarrativeSummary string
	Outcomes         []Outcome
	LifecycleEvents  []LifecycleEvent
}

// GroupResolution is one cluster's resolution on the map-reduce path.
type GroupResolution struct {
	GroupSummary    string
	Outcomes        []Outcome
	LifecycleEvents []LifecycleEvent
}

// MergeResolution is the society-wide synthesis of per-cluster summaries.
type MergeResolution struct {
	NarrativeSummary string
	LifecycleEvents  []LifecycleEvent
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}

// ParseIntent extracts an agent intent. A model that answered in prose has
// the whole text treated as the intent with action NONE.
func ParseIntent(text string) Intent {
	var raw struct {
		Intent       string `json:"intent"`
		Reasoning    string `json:"reasoning"`
		ActionCode   string `json:"actionCode"`
		ActionTarget string `json:"actionTarget"`
	}
	if err := ExtractJSON(text, &raw); err != nil {
		intent := truncate(text, 500)
		if intent == "" {
			intent = "No specific intent."
		}
		return Intent{Text: intent, Code: physics.None}
	}

	intent := strings.TrimSpace(raw.Intent)
	if intent == "" {
		intent = "No specific intent."
	}
	return Intent{
		Text:      intent,
		Reasoning: strings.TrimSpace(raw.Reasoning),
		Code:      physics.Normalize(raw.ActionCode),
		TargetID:  strings.TrimSpace(raw.ActionTarget),
	}
}

type rawOutcome struct {
	AgentID string  `json:"agentId"`
	Outcome string  `json:"outcome"`
	Died    bool    `json:"died"`
	NewRole *string `json:"newRole"`
}

type rawLifecycleEvent struct {
	Type    string `json:"type"`
	AgentID string `json:"agentId"`
	Detail  string `json:"detail"`
}

func convertOutcomes(raw []rawOutcome) []Outcome {
	out := make([]Outcome, 0, len(raw))
	for _, o := range raw {
		oc := Outcome{
			AgentID: strings.TrimSpace(o.AgentID),
			Text:    strings.TrimSpace(o.Outcome),
			Died:    o.Died,
		}
		if o.NewRole != nil {
			oc.NewRole = strings.TrimSpace(*o.NewRole)
		}
		out = append(out, oc)
	}
	return out
}

func convertEvents(raw []rawLifecycleEvent) []LifecycleEvent {
	out := make([]LifecycleEvent, 0, len(raw))
	for _, e := range raw {
		typ := "death"
		if e.Type == "role_change" {
			typ = "role_change"
		}
		out = append(out, LifecycleEvent{Type: typ, AgentID: e.AgentID, Detail: e.Detail})
	}
	return out
}

// ParseResolution extracts a full-population resolution. On parse failure
// the raw text becomes the narrative and stat updates are skipped for the
// iteration, so one malformed response never halts the run.
func ParseResolution(text string) Resolution {
	var raw struct {
		NarrativeSummary string              `json:"narrativeSummary"`
		AgentOutcomes    []rawOutcome        `json:"agentOutcomes"`
		LifecycleEvents  []rawLifecycleEvent `json:"lifecycleEvents"`
	}
	if err := ExtractJSON(text, &raw); err != nil {
		summary := truncate(text, 500)
		if summary == "" {
			summary = "The iteration passed without major events."
		}
		return Resolution{NarrativeSummary: summary}
	}

	summary := strings.TrimSpace(raw.NarrativeSummary)
	if summary == "" {
		summary = "The iteration passed without major events."
	}
	return Resolution{
		NarrativeSummary: summary,
		Outcomes:         convertOutcomes(raw.AgentOutcomes),
		LifecycleEvents:  convertEvents(raw.LifecycleEvents),
	}
}

// ParseGroupResolution extracts one cluster's resolution.
func ParseGroupResolution(text string) GroupResolution {
	var raw struct {
		GroupSummary    string              `json:"groupSummary"`
		AgentOutcomes   []rawOutcome        `json:"agentOutcomes"`
		LifecycleEvents []rawLifecycleEvent `json:"lifecycleEvents"`
	}
	if err := ExtractJSON(text, &raw); err != nil {
		return GroupResolution{GroupSummary: "The group continued their activities."}
	}

	summary := strings.TrimSpace(raw.GroupSummary)
	if summary == "" {
		summary = "The group continued their activities."
	}
	return GroupResolution{
		GroupSummary:    summary,
		Outcomes:        convertOutcomes(raw.AgentOutcomes),
		LifecycleEvents: convertEvents(raw.LifecycleEvents),
	}
}

// ParseMergeResolution extracts the merge step's society-wide summary.
func ParseMergeResolution(text string) MergeResolution {
	var raw struct {
		NarrativeSummary string              `json:"narrativeSummary"`
		LifecycleEvents  []rawLifecycleEvent `json:"lifecycleEvents"`
	}
	if err := ExtractJSON(text, &raw); err != nil {
		summary := truncate(text, 500)
		if summary == "" {
			summary = "The iteration passed."
		}
		return MergeResolution{NarrativeSummary: summary}
	}

	summary := strings.TrimSpace(raw.NarrativeSummary)
	if summary == "" {
		summary = "The iteration passed."
	}
	return MergeResolution{
		NarrativeSummary: summary,
		LifecycleEvents:  convertEvents(raw.LifecycleEvents),
	}
}

// ParseFinalReport extracts the final report, falling back to the raw text.
func ParseFinalReport(text string) string {
	var raw struct {
		FinalReport string `json:"finalReport"`
	}
	if err := ExtractJSON(text, &raw); err == nil {
		if report := strings.TrimSpace(raw.FinalReport); report != "" {
			return report
		}
	}
	return strings.TrimSpace(text)
}
