package store

import (
	"fmt"

	"github.com/talgya/idealworld/internal/agents"
	"github.com/talgya/idealworld/internal/physics"
)

type agentRow struct {
	ID               string `db:"id"`
	SessionID        string `db:"session_id"`
	Name             string `db:"name"`
	Role             string `db:"role"`
	Background       string `db:"background"`
	InitialWealth    int    `db:"initial_wealth"`
	InitialHealth    int    `db:"initial_health"`
	InitialHappiness int    `db:"initial_happiness"`
	InitialCortisol  int    `db:"initial_cortisol"`
	InitialDopamine  int    `db:"initial_dopamine"`
	Wealth           int    `db:"wealth"`
	Health           int    `db:"health"`
	Happiness        int    `db:"happiness"`
	Cortisol         int    `db:"cortisol"`
	Dopamine         int    `db:"dopamine"`
	Alive            bool   `db:"alive"`
	Central          bool   `db:"central"`
	BornAtIteration  int    `db:"born_at_iteration"`
	DiedAtIteration  *int   `db:"died_at_iteration"`
}

func (r agentRow) toAgent() agents.Agent {
	return agents.Agent{
		ID:         r.ID,
		SessionID:  r.SessionID,
		Name:       r.Name,
		Role:       r.Role,
		Background: r.Background,
		Initial: agents.Stats{
			Wealth: r.InitialWealth, Health: r.InitialHealth, Happiness: r.InitialHappiness,
			Cortisol: r.InitialCortisol, Dopamine: r.InitialDopamine,
		},
		Current: agents.Stats{
			Wealth: r.Wealth, Health: r.Health, Happiness: r.Happiness,
			Cortisol: r.Cortisol, Dopamine: r.Dopamine,
		},
		Alive:           r.Alive,
		Central:         r.Central,
		BornAtIteration: r.BornAtIteration,
		DiedAtIteration: r.DiedAtIteration,
	}
}

// ListAgents returns all agents belonging to a session, in insertion order.
func (s *Store) ListAgents(sessionID string) ([]agents.Agent, error) {
	var rows []agentRow
	err := s.db.Select(&rows,
		"SELECT * FROM agents WHERE session_id = ? ORDER BY rowid", sessionID)
	if err != nil {
		return nil, fmt.Errorf("list agents for %s: %w", sessionID, err)
	}
	out := make([]agents.Agent, len(rows))
	for i, r := range rows {
		out[i] = r.toAgent()
	}
	return out, nil
}

// InsertAgents writes a roster of agents in one transaction.
func (s *Store) InsertAgents(list []agents.Agent) error {
	if len(list) == 0 {
		return nil
	}
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO agents
		(id, session_id, name, role, background,
		 initial_wealth, initial_health, initial_happiness, initial_cortisol, initial_dopamine,
		 wealth, health, happiness, cortisol, dopamine,
		 alive, central, born_at_iteration, died_at_iteration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range list {
		_, err := stmt.Exec(
			a.ID, a.SessionID, a.Name, a.Role, a.Background,
			a.Initial.Wealth, a.Initial.Health, a.Initial.Happiness, a.Initial.Cortisol, a.Initial.Dopamine,
			a.Current.Wealth, a.Current.Health, a.Current.Happiness, a.Current.Cortisol, a.Current.Dopamine,
			a.Alive, a.Central, a.BornAtIteration, a.DiedAtIteration,
		)
		if err != nil {
			return fmt.Errorf("insert agent %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

// StatUpdate is one agent's new stat snapshot for the critical batch.
type StatUpdate struct {
	ID    string
	Stats agents.Stats
}

// Death marks an agent dead at a given iteration.
type Death struct {
	ID        string
	Iteration int
}

// RoleChange reassigns an agent's role.
type RoleChange struct {
	ID   string
	Role string
}

// ApplyOutcomes applies one iteration's stat mutations, deaths, and role
// changes in a single transaction. This is the critical path: it is never
// deferred, and iteration N+1 must not start before it commits. Stats are
// clamped to [0,100] before storage; a death marker is only ever written to
// a still-living agent, so died_at_iteration is set exactly once.
func (s *Store) ApplyOutcomes(updates []StatUpdate, deaths []Death, roleChanges []RoleChange) error {
	if len(updates) == 0 && len(deaths) == 0 && len(roleChanges) == 0 {
		return nil
	}
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, u := range updates {
		_, err := tx.Exec(
			`UPDATE agents SET wealth = ?, health = ?, happiness = ?, cortisol = ?, dopamine = ?
			 WHERE id = ? AND alive = 1`,
			physics.ClampStat(u.Stats.Wealth),
			physics.ClampStat(u.Stats.Health),
			physics.ClampStat(u.Stats.Happiness),
			physics.ClampStat(u.Stats.Cortisol),
			physics.ClampStat(u.Stats.Dopamine),
			u.ID,
		)
		if err != nil {
			return fmt.Errorf("update stats for %s: %w", u.ID, err)
		}
	}

	for _, d := range deaths {
		_, err := tx.Exec(
			`UPDATE agents SET alive = 0, health = 0, died_at_iteration = ?
			 WHERE id = ? AND alive = 1`,
			d.Iteration, d.ID,
		)
		if err != nil {
			return fmt.Errorf("mark dead %s: %w", d.ID, err)
		}
	}

	for _, rc := range roleChanges {
		_, err := tx.Exec(
			"UPDATE agents SET role = ? WHERE id = ? AND alive = 1",
			rc.Role, rc.ID,
		)
		if err != nil {
			return fmt.Errorf("change role for %s: %w", rc.ID, err)
		}
	}

	return tx.Commit()
}
