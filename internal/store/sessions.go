package store

import (
	"fmt"
	"time"
)

// Stage tracks which phase of the product a session is in. The simulation
// loop only cares about StageSimulating and StageSimulationPaused; the rest
// exist so a session can sit anywhere in the product flow.
type Stage string

const (
	StageIdeaInput          Stage = "idea-input"
	StageBrainstorming      Stage = "brainstorming"
	StageDesigning          Stage = "designing"
	StageDesignReview       Stage = "design-review"
	StageRefining           Stage = "refining"
	StageSimulating         Stage = "simulating"
	StageSimulationPaused   Stage = "simulation-paused"
	StageReflecting         Stage = "reflecting"
	StageReflectionComplete Stage = "reflection-complete"
	StageReviewing          Stage = "reviewing"
	StageCompleted          Stage = "completed"
)

// Session is the simulation's top-level unit of work.
type Session struct {
	ID              string `db:"id" json:"id"`
	Title           string `db:"title" json:"title"`
	Idea            string `db:"idea" json:"idea"`
	Stage           Stage  `db:"stage" json:"stage"`
	SocietyOverview string `db:"society_overview" json:"societyOverview"`
	Law             string `db:"law" json:"law"`
	TimeScale       string `db:"time_scale" json:"timeScale"`
	TotalIterations int    `db:"total_iterations" json:"totalIterations"`
	CreatedAt       string `db:"created_at" json:"createdAt"`
	UpdatedAt       string `db:"updated_at" json:"updatedAt"`
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// CreateSession inserts a new session row.
func (s *Store) CreateSession(sess *Session) error {
	if sess.Stage == "" {
		sess.Stage = StageIdeaInput
	}
	now := nowISO()
	sess.CreatedAt = now
	sess.UpdatedAt = now

	_, err := s.db.NamedExec(`INSERT INTO sessions
		(id, title, idea, stage, society_overview, law, time_scale, total_iterations, created_at, updated_at)
		VALUES (:id, :title, :idea, :stage, :society_overview, :law, :time_scale, :total_iterations, :created_at, :updated_at)`,
		sess)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession loads a session by id.
func (s *Store) GetSession(id string) (*Session, error) {
	var sess Session
	if err := s.db.Get(&sess, "SELECT * FROM sessions WHERE id = ?", id); err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return &sess, nil
}

// UpdateStage moves a session to a new stage.
func (s *Store) UpdateStage(id string, stage Stage) error {
	_, err := s.db.Exec("UPDATE sessions SET stage = ?, updated_at = ? WHERE id = ?",
		stage, nowISO(), id)
	if err != nil {
		return fmt.Errorf("update stage for %s: %w", id, err)
	}
	return nil
}

// UpdateTotalIterations records the iteration budget chosen at start.
func (s *Store) UpdateTotalIterations(id string, total int) error {
	_, err := s.db.Exec("UPDATE sessions SET total_iterations = ?, updated_at = ? WHERE id = ?",
		total, nowISO(), id)
	if err != nil {
		return fmt.Errorf("update total iterations for %s: %w", id, err)
	}
	return nil
}
