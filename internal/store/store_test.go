package store

import (
	"testing"

	"github.com/google/uuid"

	"github.com/talgya/idealworld/internal/agents"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSession(t *testing.T, s *Store, agentCount int) (*Session, []agents.Agent) {
	t.Helper()
	sess := &Session{
		ID:    uuid.NewString(),
		Title: "Test Society",
		Idea:  "a quiet farming commune",
		Stage: StageDesignReview,
	}
	if err := s.CreateSession(sess); err != nil {
		t.Fatalf("create session: %v", err)
	}

	roster := make([]agents.Agent, agentCount)
	for i := range roster {
		roster[i] = agents.Agent{
			ID:        uuid.NewString(),
			SessionID: sess.ID,
			Name:      "Agent",
			Role:      "Farmer",
			Initial:   agents.Stats{Wealth: 50, Health: 70, Happiness: 60, Cortisol: 30, Dopamine: 50},
			Current:   agents.Stats{Wealth: 50, Health: 70, Happiness: 60, Cortisol: 30, Dopamine: 50},
			Alive:     true,
		}
	}
	if err := s.InsertAgents(roster); err != nil {
		t.Fatalf("insert agents: %v", err)
	}
	return sess, roster
}

func TestSessionRoundTrip(t *testing.T) {
	s := testStore(t)
	sess, _ := seedSession(t, s, 0)

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Idea != sess.Idea || got.Stage != StageDesignReview {
		t.Errorf("got %+v", got)
	}

	if err := s.UpdateStage(sess.ID, StageSimulating); err != nil {
		t.Fatalf("update stage: %v", err)
	}
	got, _ = s.GetSession(sess.ID)
	if got.Stage != StageSimulating {
		t.Errorf("stage = %s, want simulating", got.Stage)
	}
}

func TestApplyOutcomesClampsStats(t *testing.T) {
	s := testStore(t)
	sess, roster := seedSession(t, s, 1)

	err := s.ApplyOutcomes([]StatUpdate{
		{ID: roster[0].ID, Stats: agents.Stats{Wealth: 140, Health: -5, Happiness: 55, Cortisol: 200, Dopamine: -1}},
	}, nil, nil)
	if err != nil {
		t.Fatalf("apply outcomes: %v", err)
	}

	list, err := s.ListAgents(sess.ID)
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	st := list[0].Current
	if st.Wealth != 100 || st.Health != 0 || st.Happiness != 55 || st.Cortisol != 100 || st.Dopamine != 0 {
		t.Errorf("stored stats %+v, want clamped to [0,100]", st)
	}
}

func TestMarkDeadExactlyOnce(t *testing.T) {
	s := testStore(t)
	sess, roster := seedSession(t, s, 1)
	id := roster[0].ID

	if err := s.ApplyOutcomes(nil, []Death{{ID: id, Iteration: 3}}, nil); err != nil {
		t.Fatalf("first death: %v", err)
	}
	// A second death marker for an already-dead agent must not move the
	// recorded iteration.
	if err := s.ApplyOutcomes(nil, []Death{{ID: id, Iteration: 7}}, nil); err != nil {
		t.Fatalf("second death: %v", err)
	}

	list, _ := s.ListAgents(sess.ID)
	a := list[0]
	if a.Alive {
		t.Fatalf("agent still alive after death marker")
	}
	if a.DiedAtIteration == nil || *a.DiedAtIteration != 3 {
		t.Errorf("died_at_iteration = %v, want 3", a.DiedAtIteration)
	}
}

func TestApplyOutcomesSkipsDeadAgents(t *testing.T) {
	s := testStore(t)
	sess, roster := seedSession(t, s, 1)
	id := roster[0].ID

	if err := s.ApplyOutcomes(nil, []Death{{ID: id, Iteration: 1}}, nil); err != nil {
		t.Fatalf("death: %v", err)
	}
	if err := s.ApplyOutcomes([]StatUpdate{
		{ID: id, Stats: agents.Stats{Wealth: 99, Health: 99, Happiness: 99}},
	}, nil, nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	list, _ := s.ListAgents(sess.ID)
	if list[0].Current.Wealth == 99 {
		t.Errorf("stat update applied to a dead agent")
	}
}

func TestRoleChange(t *testing.T) {
	s := testStore(t)
	sess, roster := seedSession(t, s, 1)

	err := s.ApplyOutcomes(nil, nil, []RoleChange{{ID: roster[0].ID, Role: "Council Member"}})
	if err != nil {
		t.Fatalf("role change: %v", err)
	}
	list, _ := s.ListAgents(sess.ID)
	if list[0].Role != "Council Member" {
		t.Errorf("role = %q", list[0].Role)
	}
}

func TestIterationHistory(t *testing.T) {
	s := testStore(t)
	sess, _ := seedSession(t, s, 0)

	for n := 1; n <= 3; n++ {
		err := s.InsertIteration(&Iteration{
			ID:               uuid.NewString(),
			SessionID:        sess.ID,
			Number:           n,
			NarrativeSummary: "things happened",
		})
		if err != nil {
			t.Fatalf("insert iteration %d: %v", n, err)
		}
	}

	history, err := s.ListIterations(sess.ID)
	if err != nil {
		t.Fatalf("list iterations: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("got %d iterations, want 3", len(history))
	}
	for i, it := range history {
		if it.Number != i+1 {
			t.Errorf("history[%d].Number = %d", i, it.Number)
		}
		if it.Statistics == "" || it.LifecycleEvents == "" {
			t.Errorf("iteration %d missing JSON defaults", it.Number)
		}
	}
}
