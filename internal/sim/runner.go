package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/idealworld/internal/agents"
	"github.com/talgya/idealworld/internal/cluster"
	"github.com/talgya/idealworld/internal/llm"
	"github.com/talgya/idealworld/internal/physics"
	"github.com/talgya/idealworld/internal/pool"
	"github.com/talgya/idealworld/internal/store"
)

// Config tunes one Runner instance.
type Config struct {
	CentralModel string
	CitizenModel string

	// MaxConcurrency bounds parallel decision-service calls.
	MaxConcurrency int
	// MapReduceThreshold is the alive-population size above which resolution
	// switches to the clustered map-reduce path.
	MapReduceThreshold int
	// MaxClusterSize caps cluster membership on the map-reduce path.
	MaxClusterSize int

	PauseCheckInterval time.Duration
	RetryBaseDelay     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 10
	}
	if c.MapReduceThreshold <= 0 {
		c.MapReduceThreshold = 30
	}
	if c.MaxClusterSize <= 0 {
		c.MaxClusterSize = 10
	}
	if c.PauseCheckInterval <= 0 {
		c.PauseCheckInterval = 500 * time.Millisecond
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	return c
}

var intentColumns = []string{
	"id", "session_id", "agent_id", "iteration_id",
	"intent", "reasoning", "action_code", "action_target", "created_at",
}

var actionColumns = []string{
	"id", "session_id", "agent_id", "iteration_id",
	"action", "outcome", "resolved_at",
}

// Runner drives one session's simulation from start to finish. A single
// Runner is shared by all sessions; each run owns its session's roster for
// the duration and holds no cross-run state.
type Runner struct {
	store    *store.Store
	flusher  *store.Flusher
	ctrl     *Controller
	provider llm.Provider
	cfg      Config
}

// NewRunner wires a Runner from its explicitly owned collaborators.
func NewRunner(st *store.Store, fl *store.Flusher, ctrl *Controller, provider llm.Provider, cfg Config) *Runner {
	return &Runner{
		store:    st,
		flusher:  fl,
		ctrl:     ctrl,
		provider: provider,
		cfg:      cfg.withDefaults(),
	}
}

// Controller exposes the run controller for the control surface.
func (r *Runner) Controller() *Controller {
	return r.ctrl
}

// Start transitions the session to running and launches the simulation loop
// in its own goroutine. Rejected while a loop for the session is alive.
func (r *Runner) Start(sessionID string, totalIterations int) error {
	if err := r.ctrl.Start(sessionID); err != nil {
		return err
	}
	go r.run(context.Background(), sessionID, totalIterations)
	return nil
}

// run executes the loop and owns the unrecoverable-error policy: whatever
// happens, the write buffer is drained, an error event goes out, the stage
// rolls back so the user can retry, and the controller entry is released —
// never left running in a zombie state.
func (r *Runner) run(ctx context.Context, sessionID string, totalIterations int) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("simulation panicked", "session", sessionID, "panic", rec)
			r.fail(sessionID, "internal simulation error")
		}
	}()

	if err := r.simulate(ctx, sessionID, totalIterations); err != nil {
		slog.Error("simulation failed", "session", sessionID, "error", err)
		r.fail(sessionID, err.Error())
	}
}

func (r *Runner) fail(sessionID, message string) {
	if err := r.flusher.Flush(); err != nil {
		slog.Error("drain after failure", "session", sessionID, "error", err)
	}
	r.ctrl.Broadcast(sessionID, Event{Type: EventError, Message: message})
	if err := r.store.UpdateStage(sessionID, store.StageDesignReview); err != nil {
		slog.Error("stage rollback failed", "session", sessionID, "error", err)
	}
	r.ctrl.Finish(sessionID)
}

// finishAborted handles a cooperative abort observed at a check point.
func (r *Runner) finishAborted(sessionID string) {
	if err := r.flusher.Flush(); err != nil {
		slog.Error("drain after abort", "session", sessionID, "error", err)
	}
	r.ctrl.Broadcast(sessionID, Event{Type: EventError, Message: "Simulation aborted."})
	if err := r.store.UpdateStage(sessionID, store.StageDesignReview); err != nil {
		slog.Error("stage rollback failed", "session", sessionID, "error", err)
	}
	r.ctrl.Finish(sessionID)
	slog.Info("simulation aborted", "session", sessionID)
}

func aliveCitizens(roster []agents.Agent) []agents.Agent {
	var out []agents.Agent
	for _, a := range roster {
		if a.Alive && !a.Central {
			out = append(out, a)
		}
	}
	return out
}

func (r *Runner) simulate(ctx context.Context, sessionID string, totalIterations int) error {
	sess, err := r.store.GetSession(sessionID)
	if err != nil {
		return err
	}
	if err := r.store.UpdateStage(sessionID, store.StageSimulating); err != nil {
		return err
	}
	if err := r.store.UpdateTotalIterations(sessionID, totalIterations); err != nil {
		return err
	}

	soc := llm.Society{
		Idea:      sess.Idea,
		Overview:  sess.SocietyOverview,
		Law:       sess.Law,
		TimeScale: sess.TimeScale,
	}

	roster, err := r.store.ListAgents(sessionID)
	if err != nil {
		return err
	}

	slog.Info("simulation started",
		"session", sessionID,
		"iterations", totalIterations,
		"agents", len(roster),
		"concurrency", r.cfg.MaxConcurrency,
	)

	var summaries []llm.IterationSummary
	previousSummary := ""

	for iter := 1; iter <= totalIterations; iter++ {
		if r.ctrl.AbortRequested(sessionID) {
			r.finishAborted(sessionID)
			return nil
		}

		if r.ctrl.PauseRequested(sessionID) {
			r.ctrl.SetPaused(sessionID)
			r.ctrl.Broadcast(sessionID, Event{Type: EventPaused, Iteration: iter - 1})
			if err := r.store.UpdateStage(sessionID, store.StageSimulationPaused); err != nil {
				return err
			}
			r.waitWhilePaused(ctx, sessionID)
			if r.ctrl.AbortRequested(sessionID) {
				r.finishAborted(sessionID)
				return nil
			}
			if err := r.store.UpdateStage(sessionID, store.StageSimulating); err != nil {
				return err
			}
		}

		r.ctrl.Broadcast(sessionID, Event{Type: EventIterationStart, Iteration: iter, Total: totalIterations})

		alive := aliveCitizens(roster)
		iterationID := uuid.NewString()
		now := time.Now().UTC().Format(time.RFC3339)

		// Decision collection: one bounded-parallel task per alive citizen,
		// broadcast in collection order once the whole batch resolves.
		intents := r.collectIntents(ctx, alive, soc, previousSummary, iter)
		for _, in := range intents {
			r.ctrl.Broadcast(sessionID, Event{
				Type:      EventAgentIntent,
				AgentID:   in.AgentID,
				AgentName: in.AgentName,
				Intent:    in.Intent,
			})
			r.flusher.Enqueue("agent_intents", intentColumns,
				uuid.NewString(), sessionID, in.AgentID, iterationID,
				in.Intent, in.Reasoning, string(in.Code), in.TargetID, now)
		}

		narrative, outcomes, lifecycle := r.resolve(ctx, soc, roster, alive, intents, iter, previousSummary)

		r.ctrl.Broadcast(sessionID, Event{
			Type:             EventResolution,
			Iteration:        iter,
			NarrativeSummary: narrative,
			LifecycleEvents:  lifecycle,
		})

		updates, deaths, roleChanges := r.applyPhysics(sessionID, iterationID, now, alive, roster, intents, outcomes, iter)
		if err := r.store.ApplyOutcomes(updates, deaths, roleChanges); err != nil {
			return fmt.Errorf("apply iteration %d outcomes: %w", iter, err)
		}

		// Reload to pick up the just-applied mutations before measuring.
		roster, err = r.store.ListAgents(sessionID)
		if err != nil {
			return err
		}

		stats := ComputeStats(roster, iter)
		statsJSON, _ := json.Marshal(stats)
		lifecycleJSON, _ := json.Marshal(lifecycle)
		if err := r.store.InsertIteration(&store.Iteration{
			ID:               iterationID,
			SessionID:        sessionID,
			Number:           iter,
			NarrativeSummary: narrative,
			Statistics:       string(statsJSON),
			LifecycleEvents:  string(lifecycleJSON),
		}); err != nil {
			return err
		}

		summaries = append(summaries, llm.IterationSummary{Number: iter, Summary: narrative})
		previousSummary = narrative

		r.ctrl.Broadcast(sessionID, Event{Type: EventIterationComplete, Iteration: iter, Stats: &stats})
		slog.Info("iteration complete",
			"session", sessionID,
			"iteration", iter,
			"alive", stats.AliveCount,
			"avg_wealth", stats.AvgWealth,
			"gini_wealth", stats.GiniWealth,
		)
	}

	if err := r.flusher.Flush(); err != nil {
		slog.Error("drain after run", "session", sessionID, "error", err)
	}

	finalStats := ComputeStats(roster, totalIterations)
	report := r.finalReport(ctx, soc, sess, summaries, finalStats, totalIterations)

	if err := r.store.UpdateStage(sessionID, store.StageReflecting); err != nil {
		return err
	}
	r.ctrl.Broadcast(sessionID, Event{Type: EventSimulationComplete, FinalReport: report})
	r.ctrl.Finish(sessionID)
	slog.Info("simulation complete", "session", sessionID, "survivors", finalStats.AliveCount)
	return nil
}

// waitWhilePaused blocks until the session is resumed or aborted, polling
// on a fixed interval.
func (r *Runner) waitWhilePaused(ctx context.Context, sessionID string) {
	ticker := time.NewTicker(r.cfg.PauseCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if r.ctrl.Status(sessionID) == StatusRunning || r.ctrl.AbortRequested(sessionID) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) chat(ctx context.Context, messages []llm.Message, model string) (string, error) {
	return r.provider.Chat(ctx, messages, llm.Options{Model: model})
}

// collectIntents gathers one intent per alive citizen through the bounded
// task pool. Each task carries its own fallback, so a decision-service or
// parse failure for one agent never disturbs the rest.
func (r *Runner) collectIntents(ctx context.Context, alive []agents.Agent, soc llm.Society, previousSummary string, iteration int) []llm.AgentIntent {
	tasks := make([]pool.Task[llm.AgentIntent], len(alive))
	for i, a := range alive {
		tasks[i] = func(ctx context.Context) llm.AgentIntent {
			messages := llm.BuildIntentPrompt(a, soc, previousSummary, iteration)
			raw, err := llm.WithRetry(ctx, 3, r.cfg.RetryBaseDelay, func(ctx context.Context) (string, error) {
				return r.chat(ctx, messages, r.cfg.CitizenModel)
			})
			if err != nil {
				slog.Warn("intent collection fell back", "agent", a.ID, "error", err)
				return llm.AgentIntent{
					AgentID:   a.ID,
					AgentName: a.Name,
					Intent:    a.Name + " continues their routine.",
					Code:      physics.None,
				}
			}
			parsed := llm.ParseIntent(raw)
			return llm.AgentIntent{
				AgentID:   a.ID,
				AgentName: a.Name,
				Intent:    parsed.Text,
				Reasoning: parsed.Reasoning,
				Code:      parsed.Code,
				TargetID:  parsed.TargetID,
			}
		}
	}
	return pool.Run(ctx, tasks, r.cfg.MaxConcurrency)
}

// resolve turns the iteration's intents into narrative and outcomes,
// branching on population size.
func (r *Runner) resolve(ctx context.Context, soc llm.Society, roster, alive []agents.Agent, intents []llm.AgentIntent, iteration int, previousSummary string) (string, []llm.Outcome, []llm.LifecycleEvent) {
	if len(alive) <= r.cfg.MapReduceThreshold {
		res := r.resolveStandard(ctx, soc, roster, intents, iteration, previousSummary)
		return res.NarrativeSummary, res.Outcomes, res.LifecycleEvents
	}
	return r.resolveMapReduce(ctx, soc, alive, intents, iteration, previousSummary)
}

// resolveStandard issues one resolution request covering all intents.
// Failure degrades to a local narrative with no outcomes rather than
// halting the run.
func (r *Runner) resolveStandard(ctx context.Context, soc llm.Society, roster []agents.Agent, intents []llm.AgentIntent, iteration int, previousSummary string) llm.Resolution {
	messages := llm.BuildResolutionPrompt(soc, roster, intents, iteration, previousSummary)
	raw, err := r.chat(ctx, messages, r.cfg.CentralModel)
	if err != nil {
		slog.Warn("resolution fell back", "iteration", iteration, "error", err)
		return llm.Resolution{NarrativeSummary: "The iteration passed without major events."}
	}
	return llm.ParseResolution(raw)
}

// resolveMapReduce clusters the population by role, resolves each cluster
// through the bounded pool, then issues one merge request that synthesizes
// the society-wide summary. The merged lifecycle list is always a superset
// of what the clusters reported.
func (r *Runner) resolveMapReduce(ctx context.Context, soc llm.Society, alive []agents.Agent, intents []llm.AgentIntent, iteration int, previousSummary string) (string, []llm.Outcome, []llm.LifecycleEvent) {
	intentByID := make(map[string]llm.AgentIntent, len(intents))
	for _, in := range intents {
		intentByID[in.AgentID] = in
	}

	clusters := cluster.ByRole(alive, r.cfg.MaxClusterSize)
	slog.Info("map-reduce resolution", "iteration", iteration, "population", len(alive), "clusters", len(clusters))

	tasks := make([]pool.Task[llm.GroupResolution], len(clusters))
	for i, group := range clusters {
		groupIntents := make([]llm.AgentIntent, 0, len(group))
		for _, a := range group {
			if in, ok := intentByID[a.ID]; ok {
				groupIntents = append(groupIntents, in)
			}
		}
		tasks[i] = func(ctx context.Context) llm.GroupResolution {
			messages := llm.BuildGroupResolutionPrompt(soc, group, groupIntents, iteration, previousSummary)
			raw, err := r.chat(ctx, messages, r.cfg.CentralModel)
			if err != nil {
				slog.Warn("group resolution fell back", "iteration", iteration, "error", err)
				return llm.GroupResolution{GroupSummary: "The group continued their activities."}
			}
			return llm.ParseGroupResolution(raw)
		}
	}
	groups := pool.Run(ctx, tasks, r.cfg.MaxConcurrency)

	var outcomes []llm.Outcome
	var clusterEvents []llm.LifecycleEvent
	groupSummaries := make([]string, len(groups))
	for i, g := range groups {
		groupSummaries[i] = g.GroupSummary
		outcomes = append(outcomes, g.Outcomes...)
		clusterEvents = append(clusterEvents, g.LifecycleEvents...)
	}

	narrative, merged := r.merge(ctx, soc, groupSummaries, clusterEvents, iteration)
	return narrative, outcomes, merged
}

func (r *Runner) merge(ctx context.Context, soc llm.Society, groupSummaries []string, clusterEvents []llm.LifecycleEvent, iteration int) (string, []llm.LifecycleEvent) {
	messages := llm.BuildMergePrompt(soc, groupSummaries, clusterEvents, iteration)
	raw, err := r.chat(ctx, messages, r.cfg.CentralModel)
	if err != nil {
		slog.Warn("merge fell back", "iteration", iteration, "error", err)
		return strings.Join(groupSummaries, " "), clusterEvents
	}
	res := llm.ParseMergeResolution(raw)

	// Cluster-reported events are authoritative; merge-only additions are
	// appended after them.
	seen := make(map[string]bool, len(clusterEvents))
	merged := append([]llm.LifecycleEvent(nil), clusterEvents...)
	for _, e := range clusterEvents {
		seen[e.Type+"|"+e.AgentID] = true
	}
	for _, e := range res.LifecycleEvents {
		if !seen[e.Type+"|"+e.AgentID] {
			merged = append(merged, e)
		}
	}
	return res.NarrativeSummary, merged
}

// applyPhysics converts outcomes into the critical stat-mutation batch.
// Deltas always come from the deterministic engine driven by each agent's
// chosen action code, never from decision-service output. Agents with no
// matching outcome are skipped, not crashed.
func (r *Runner) applyPhysics(sessionID, iterationID, now string, alive, roster []agents.Agent, intents []llm.AgentIntent, outcomes []llm.Outcome, iteration int) ([]store.StatUpdate, []store.Death, []store.RoleChange) {
	outcomeByID := make(map[string]llm.Outcome, len(outcomes))
	for _, o := range outcomes {
		outcomeByID[o.AgentID] = o
	}
	intentByID := make(map[string]llm.AgentIntent, len(intents))
	for _, in := range intents {
		intentByID[in.AgentID] = in
	}

	var updates []store.StatUpdate
	var deaths []store.Death
	var roleChanges []store.RoleChange

	for _, a := range alive {
		outcome, ok := outcomeByID[a.ID]
		if !ok {
			continue
		}
		in := intentByID[a.ID]
		d := physics.Resolve(a, in.Code, in.TargetID, roster)

		next := agents.Stats{
			Wealth:    a.Current.Wealth + d.Wealth,
			Health:    a.Current.Health + d.Health,
			Happiness: a.Current.Happiness + d.Happiness,
			Cortisol:  a.Current.Cortisol + d.Cortisol,
			Dopamine:  a.Current.Dopamine + d.Dopamine,
		}

		if outcome.Died || next.Health <= 0 {
			deaths = append(deaths, store.Death{ID: a.ID, Iteration: iteration})
		} else {
			updates = append(updates, store.StatUpdate{ID: a.ID, Stats: next})
			if outcome.NewRole != "" && !strings.EqualFold(outcome.NewRole, a.Role) {
				roleChanges = append(roleChanges, store.RoleChange{ID: a.ID, Role: outcome.NewRole})
			}
		}

		// The textual outcome is a non-critical log row.
		outcomeJSON, _ := json.Marshal(map[string]any{
			"text":           outcome.Text,
			"actionCode":     in.Code,
			"wealthDelta":    d.Wealth,
			"healthDelta":    d.Health,
			"happinessDelta": d.Happiness,
		})
		r.flusher.Enqueue("resolved_actions", actionColumns,
			uuid.NewString(), sessionID, a.ID, iterationID,
			outcome.Text, string(outcomeJSON), now)
	}

	return updates, deaths, roleChanges
}

func (r *Runner) finalReport(ctx context.Context, soc llm.Society, sess *store.Session, summaries []llm.IterationSummary, finalStats Stats, totalIterations int) string {
	messages := llm.BuildFinalReportPrompt(soc, summaries, llm.FinalStats{
		AliveCount:   finalStats.AliveCount,
		AvgWealth:    finalStats.AvgWealth,
		AvgHealth:    finalStats.AvgHealth,
		AvgHappiness: finalStats.AvgHappiness,
	})
	raw, err := r.chat(ctx, messages, r.cfg.CentralModel)
	if err != nil {
		slog.Warn("final report fell back", "session", sess.ID, "error", err)
		return fmt.Sprintf("The simulation of %q concluded after %d iterations with %d survivors.",
			sess.Idea, totalIterations, finalStats.AliveCount)
	}
	return llm.ParseFinalReport(raw)
}
