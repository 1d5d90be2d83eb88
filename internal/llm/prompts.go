package llm

import (
	"fmt"
	"strings"

	"github.com/talgya/idealworld/internal/agents"
	"github.com/talgya/idealworld/internal/physics"
)

// AgentIntent pairs a collected intent with the agent it came from.
type AgentIntent struct {
	AgentID   string
	AgentName string
	Intent    string
	Reasoning string
	Code      physics.Code
	TargetID  string
}

// IterationSummary is one iteration's narrative, used for the final report.
type IterationSummary struct {
	Number  int
	Summary string
}

// FinalStats is the aggregate snapshot handed to the final-report prompt.
type FinalStats struct {
	AliveCount   int
	AvgWealth    int
	AvgHealth    int
	AvgHappiness int
}

func excerpt(s string, n int) string {
	if s == "" {
		return ""
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

const actionVocabulary = "WORK, TRADE, REST, STRIKE, STEAL, HELP, INVEST, CONSUME, NONE"

// BuildIntentPrompt asks one citizen agent what it will do this iteration.
func BuildIntentPrompt(agent agents.Agent, soc Society, previousSummary string, iteration int) []Message {
	history := "This is the first iteration."
	if previousSummary != "" {
		history = "What happened last iteration:\n" + excerpt(previousSummary, 600)
	}

	system := fmt.Sprintf(`You are %s, a %s in a simulated society based on: "%s"

Background: %s

Your current status:
- Wealth: %d/100
- Health: %d/100
- Happiness: %d/100

Society overview (excerpt):
%s

Laws (excerpt):
%s

Time scale: %s

%s

You MUST respond with ONLY valid JSON (no markdown, no preamble):
{
  "intent": "string - what you intend to do this iteration (1-3 sentences, first person)",
  "reasoning": "string - your internal reasoning (1-2 sentences)",
  "actionCode": "string - exactly one of: %s",
  "actionTarget": "string - agent id for TRADE/STEAL/HELP, empty otherwise"
}`,
		agent.Name, agent.Role, soc.Idea,
		agent.Background,
		agent.Current.Wealth, agent.Current.Health, agent.Current.Happiness,
		orDefault(excerpt(soc.Overview, 500), "(no overview)"),
		orDefault(excerpt(soc.Law, 400), "(no laws)"),
		orDefault(soc.TimeScale, "1 iteration = 1 month"),
		history,
		actionVocabulary,
	)

	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: fmt.Sprintf("Iteration %d: What will you do?", iteration)},
	}
}

func intentList(all []agents.Agent, intents []AgentIntent) string {
	byID := make(map[string]*agents.Agent, len(all))
	for i := range all {
		byID[all[i].ID] = &all[i]
	}

	var b strings.Builder
	for _, ai := range intents {
		role := "unknown"
		stats := agents.Stats{Wealth: 50, Health: 70, Happiness: 60}
		if a := byID[ai.AgentID]; a != nil {
			role = a.Role
			stats = a.Current
		}
		fmt.Fprintf(&b, "- %s [%s] (%s): %q\n  Stats: W=%d H=%d Hap=%d\n",
			ai.AgentName, ai.AgentID, role, ai.Intent,
			stats.Wealth, stats.Health, stats.Happiness)
	}
	return b.String()
}

const resolutionSchema = `You MUST respond with ONLY valid JSON (no markdown, no preamble):
{
  "narrativeSummary": "string - 3-5 sentence story of what happened this iteration",
  "agentOutcomes": [
    {
      "agentId": "string",
      "outcome": "string - what happened to this agent (1-2 sentences)",
      "died": false,
      "newRole": null
    }
  ],
  "lifecycleEvents": [
    { "type": "death", "agentId": "string", "detail": "string - cause of death" }
  ]
}

Rules:
- Include one entry in agentOutcomes for every agent listed in the intentions
- died: true only if the agent faces fatal circumstances
- lifecycleEvents: only include deaths and role changes that actually occur
- For role changes use type "role_change" with detail "from X to Y: reason"`

// BuildResolutionPrompt asks the central agent to resolve all intents at
// once (the standard path).
func BuildResolutionPrompt(soc Society, all []agents.Agent, intents []AgentIntent, iteration int, previousSummary string) []Message {
	prev := ""
	if previousSummary != "" {
		prev = "\nPrevious iteration summary:\n" + excerpt(previousSummary, 600) + "\n"
	}

	system := fmt.Sprintf(`You are the Central Agent (omniscient narrator) resolving iteration %d of a society simulation.

Society: "%s"
Time scale: %s
%s
Agent intentions this iteration:
%s
Laws (excerpt):
%s

Resolve all agent intentions simultaneously, considering:
- How agent actions interact with each other
- Law enforcement and consequences for violations
- Resource constraints and economic effects
- Realistic cause-and-effect chains

%s`,
		iteration,
		soc.Idea,
		orDefault(soc.TimeScale, "1 iteration = 1 month"),
		prev,
		intentList(all, intents),
		orDefault(excerpt(soc.Law, 500), "(no laws)"),
		resolutionSchema,
	)

	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: fmt.Sprintf("Resolve iteration %d.", iteration)},
	}
}

// BuildGroupResolutionPrompt resolves one role-coherent cluster on the
// map-reduce path.
func BuildGroupResolutionPrompt(soc Society, group []agents.Agent, intents []AgentIntent, iteration int, previousSummary string) []Message {
	prev := ""
	if previousSummary != "" {
		prev = "\nPrevious iteration summary:\n" + excerpt(previousSummary, 400) + "\n"
	}

	system := fmt.Sprintf(`You are the Central Agent resolving iteration %d for ONE group within a larger society simulation.

Society: "%s"
Time scale: %s
%s
This group's intentions:
%s
Laws (excerpt):
%s

Resolve only this group's intentions, considering interactions within the group.

You MUST respond with ONLY valid JSON (no markdown, no preamble):
{
  "groupSummary": "string - 2-3 sentence story of what happened in this group",
  "agentOutcomes": [
    {
      "agentId": "string",
      "outcome": "string - what happened to this agent (1-2 sentences)",
      "died": false,
      "newRole": null
    }
  ],
  "lifecycleEvents": [
    { "type": "death", "agentId": "string", "detail": "string - cause of death" }
  ]
}

Rules:
- Include one entry in agentOutcomes for every agent listed
- died: true only if the agent faces fatal circumstances
- For role changes use type "role_change" with detail "from X to Y: reason"`,
		iteration,
		soc.Idea,
		orDefault(soc.TimeScale, "1 iteration = 1 month"),
		prev,
		intentList(group, intents),
		orDefault(excerpt(soc.Law, 400), "(no laws)"),
	)

	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: fmt.Sprintf("Resolve iteration %d for this group.", iteration)},
	}
}

// BuildMergePrompt synthesizes per-cluster summaries into one society-wide
// narrative and a consolidated lifecycle-event list.
func BuildMergePrompt(soc Society, groupSummaries []string, events []LifecycleEvent, iteration int) []Message {
	var summaries strings.Builder
	for i, s := range groupSummaries {
		fmt.Fprintf(&summaries, "Group %d: %s\n", i+1, s)
	}

	var eventLines strings.Builder
	if len(events) == 0 {
		eventLines.WriteString("(none)")
	}
	for _, e := range events {
		fmt.Fprintf(&eventLines, "- %s %s: %s\n", e.Type, e.AgentID, e.Detail)
	}

	system := fmt.Sprintf(`You are the Central Agent merging group resolutions for iteration %d of a society simulation.

Society: "%s"

Per-group summaries:
%s
Lifecycle events reported by groups:
%s

Synthesize one society-wide narrative from the group summaries. Carry over every reported lifecycle event; you may add cross-group events only if clearly implied by the summaries.

You MUST respond with ONLY valid JSON (no markdown, no preamble):
{
  "narrativeSummary": "string - 3-5 sentence society-wide story for this iteration",
  "lifecycleEvents": [
    { "type": "death", "agentId": "string", "detail": "string" }
  ]
}`,
		iteration,
		soc.Idea,
		summaries.String(),
		eventLines.String(),
	)

	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: fmt.Sprintf("Merge iteration %d.", iteration)},
	}
}

// BuildFinalReportPrompt asks for the closing narrative report after the
// last iteration.
func BuildFinalReportPrompt(soc Society, summaries []IterationSummary, stats FinalStats) []Message {
	var summaryText strings.Builder
	for _, s := range summaries {
		fmt.Fprintf(&summaryText, "Iteration %d: %s\n\n", s.Number, s.Summary)
	}

	system := fmt.Sprintf(`You are the Central Agent writing a final report on a completed society simulation.

Society concept: "%s"
Time scale: %s

Simulation outcomes:
- Final population: %d agents
- Average wealth: %d/100
- Average health: %d/100
- Average happiness: %d/100

Iteration summaries:
%s

Write a comprehensive final report covering:
1. Overall narrative arc of the society
2. Key turning points and pivotal events
3. What worked well and what failed
4. Population trends and notable agents
5. Lessons about this type of society

You MUST respond with ONLY valid JSON (no markdown, no preamble):
{
  "finalReport": "string - 5-8 paragraph comprehensive narrative report"
}`,
		soc.Idea,
		orDefault(soc.TimeScale, "1 iteration = 1 month"),
		stats.AliveCount,
		stats.AvgWealth,
		stats.AvgHealth,
		stats.AvgHappiness,
		excerpt(summaryText.String(), 3000),
	)

	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: "Write the final simulation report."},
	}
}
