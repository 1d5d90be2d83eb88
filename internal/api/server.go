// Package api provides the HTTP control surface for sessions and their
// simulations, plus the websocket progress stream.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/talgya/idealworld/internal/agents"
	"github.com/talgya/idealworld/internal/sim"
	"github.com/talgya/idealworld/internal/store"
)

const maxIterationsPerRun = 200

// Server serves the session API.
type Server struct {
	Store  *store.Store
	Runner *sim.Runner
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("GET /api/sessions/{id}/iterations", s.handleIterations)

	mux.HandleFunc("POST /api/sessions/{id}/simulate", s.handleSimulate)
	mux.HandleFunc("POST /api/sessions/{id}/simulate/pause", s.handlePause)
	mux.HandleFunc("POST /api/sessions/{id}/simulate/resume", s.handleResume)
	mux.HandleFunc("POST /api/sessions/{id}/simulate/abort", s.handleAbort)
	mux.HandleFunc("GET /api/sessions/{id}/simulate/status", s.handleStatus)
	mux.HandleFunc("GET /api/sessions/{id}/simulate/stream", s.handleStream)

	return mux
}

type createAgentRequest struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Background string `json:"background"`
	Wealth     int    `json:"wealth"`
	Health     int    `json:"health"`
	Happiness  int    `json:"happiness"`
}

type createSessionRequest struct {
	Title           string               `json:"title"`
	Idea            string               `json:"idea"`
	SocietyOverview string               `json:"societyOverview"`
	Law             string               `json:"law"`
	TimeScale       string               `json:"timeScale"`
	Agents          []createAgentRequest `json:"agents"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Idea) == "" {
		http.Error(w, "idea is required", http.StatusBadRequest)
		return
	}
	if len(req.Agents) == 0 {
		http.Error(w, "at least one agent is required", http.StatusBadRequest)
		return
	}

	sess := &store.Session{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Idea:            req.Idea,
		Stage:           store.StageDesignReview,
		SocietyOverview: req.SocietyOverview,
		Law:             req.Law,
		TimeScale:       req.TimeScale,
	}
	if err := s.Store.CreateSession(sess); err != nil {
		slog.Error("create session", "error", err)
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	roster := make([]agents.Agent, len(req.Agents))
	for i, a := range req.Agents {
		stats := agents.Stats{
			Wealth:    clampOrDefault(a.Wealth, 50),
			Health:    clampOrDefault(a.Health, 70),
			Happiness: clampOrDefault(a.Happiness, 60),
			Cortisol:  30,
			Dopamine:  50,
		}
		name := strings.TrimSpace(a.Name)
		if name == "" {
			name = fmt.Sprintf("Citizen %d", i+1)
		}
		role := strings.TrimSpace(a.Role)
		if role == "" {
			role = "worker"
		}
		roster[i] = agents.Agent{
			ID:         uuid.NewString(),
			SessionID:  sess.ID,
			Name:       name,
			Role:       role,
			Background: a.Background,
			Initial:    stats,
			Current:    stats,
			Alive:      true,
		}
	}
	if err := s.Store.InsertAgents(roster); err != nil {
		slog.Error("insert agents", "error", err)
		http.Error(w, "failed to create agents", http.StatusInternalServerError)
		return
	}

	slog.Info("session created", "session", sess.ID, "agents", len(roster))
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{"session": sess, "agents": roster})
}

func clampOrDefault(v, def int) int {
	if v == 0 {
		return def
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.Store.GetSession(id)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	roster, err := s.Store.ListAgents(id)
	if err != nil {
		slog.Error("list agents", "session", id, "error", err)
		http.Error(w, "failed to load agents", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"session": sess,
		"agents":  roster,
		"status":  s.Runner.Controller().Status(id),
	})
}

func (s *Server) handleIterations(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Store.GetSession(id); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	iters, err := s.Store.ListIterations(id)
	if err != nil {
		slog.Error("list iterations", "session", id, "error", err)
		http.Error(w, "failed to load iterations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"iterations": iters})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.Store.GetSession(id); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	var req struct {
		Iterations int `json:"iterations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Iterations < 1 || req.Iterations > maxIterationsPerRun {
		http.Error(w, fmt.Sprintf("iterations must be 1..%d", maxIterationsPerRun), http.StatusBadRequest)
		return
	}

	if err := s.Runner.Start(id, req.Iterations); err != nil {
		if errors.Is(err, sim.ErrAlreadyRunning) {
			http.Error(w, "simulation already running", http.StatusConflict)
			return
		}
		slog.Error("start simulation", "session", id, "error", err)
		http.Error(w, "failed to start simulation", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]any{"status": sim.StatusRunning, "iterations": req.Iterations})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Runner.Controller().Pause(id); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"status": "pause-requested"})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Runner.Controller().Resume(id); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"status": sim.StatusRunning})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.Runner.Controller().Abort(id)
	writeJSON(w, map[string]any{"status": "abort-requested"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	writeJSON(w, map[string]any{"status": s.Runner.Controller().Status(id)})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
