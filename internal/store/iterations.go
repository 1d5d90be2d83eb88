package store

import "fmt"

// Iteration is one persisted simulation time-step. Statistics and lifecycle
// events are stored as JSON text; the record is immutable after insertion.
type Iteration struct {
	ID               string `db:"id" json:"id"`
	SessionID        string `db:"session_id" json:"sessionId"`
	Number           int    `db:"iteration_number" json:"iterationNumber"`
	NarrativeSummary string `db:"narrative_summary" json:"narrativeSummary"`
	Statistics       string `db:"statistics" json:"statistics"`
	LifecycleEvents  string `db:"lifecycle_events" json:"lifecycleEvents"`
	CreatedAt        string `db:"created_at" json:"createdAt"`
}

// InsertIteration persists one completed iteration record.
func (s *Store) InsertIteration(it *Iteration) error {
	if it.CreatedAt == "" {
		it.CreatedAt = nowISO()
	}
	if it.Statistics == "" {
		it.Statistics = "{}"
	}
	if it.LifecycleEvents == "" {
		it.LifecycleEvents = "[]"
	}
	_, err := s.db.NamedExec(`INSERT INTO iterations
		(id, session_id, iteration_number, narrative_summary, statistics, lifecycle_events, created_at)
		VALUES (:id, :session_id, :iteration_number, :narrative_summary, :statistics, :lifecycle_events, :created_at)`,
		it)
	if err != nil {
		return fmt.Errorf("insert iteration %d for %s: %w", it.Number, it.SessionID, err)
	}
	return nil
}

// ListIterations returns a session's iteration history in order.
func (s *Store) ListIterations(sessionID string) ([]Iteration, error) {
	var out []Iteration
	err := s.db.Select(&out,
		"SELECT * FROM iterations WHERE session_id = ? ORDER BY iteration_number", sessionID)
	if err != nil {
		return nil, fmt.Errorf("list iterations for %s: %w", sessionID, err)
	}
	return out, nil
}
