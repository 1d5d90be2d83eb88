package sim

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Status is a session's run state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
)

// ErrNotRunning and friends report rejected control transitions.
var (
	ErrAlreadyRunning = errors.New("simulation already running")
	ErrNotRunning     = errors.New("no running simulation")
	ErrNotPaused      = errors.New("simulation is not paused")
)

// subscriberBuffer is the per-subscriber event backlog. A subscriber that
// falls this far behind is dropped rather than blocking the broadcaster.
const subscriberBuffer = 64

// Subscriber is one live viewer's handle. Events arrive as serialized JSON.
type Subscriber struct {
	ch chan []byte
}

// Events returns the subscriber's event channel. It is closed when the
// subscriber is removed.
func (s *Subscriber) Events() <-chan []byte {
	return s.ch
}

type sessionState struct {
	status         Status
	abortRequested bool
	pauseRequested bool
	subs           map[*Subscriber]struct{}
}

// Controller is the per-session run/pause/abort state machine plus the set
// of live subscribers. Entries are created lazily and are independent: one
// session pausing or aborting never affects another. A single instance is
// created at process start and shared by all sessions.
type Controller struct {
	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewController creates an empty controller.
func NewController() *Controller {
	return &Controller{sessions: make(map[string]*sessionState)}
}

func (c *Controller) getOrCreate(sessionID string) *sessionState {
	st, ok := c.sessions[sessionID]
	if !ok {
		st = &sessionState{status: StatusIdle, subs: make(map[*Subscriber]struct{})}
		c.sessions[sessionID] = st
	}
	return st
}

// Status reports the session's current run state.
func (c *Controller) Status(sessionID string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.sessions[sessionID]; ok {
		return st.status
	}
	return StatusIdle
}

// Start transitions a session to running and clears the abort and pause
// flags. A session whose loop is still alive (running or paused) is
// rejected.
func (c *Controller) Start(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.getOrCreate(sessionID)
	if st.status != StatusIdle {
		return fmt.Errorf("%w: session %s is %s", ErrAlreadyRunning, sessionID, st.status)
	}
	st.status = StatusRunning
	st.abortRequested = false
	st.pauseRequested = false
	return nil
}

// Pause requests a pause. Only valid while running; the loop observes the
// flag at the top of the next iteration.
func (c *Controller) Pause(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.sessions[sessionID]
	if !ok || st.status != StatusRunning {
		return ErrNotRunning
	}
	st.pauseRequested = true
	return nil
}

// Resume transitions a paused session back to running.
func (c *Controller) Resume(sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.sessions[sessionID]
	if !ok || st.status != StatusPaused {
		return ErrNotPaused
	}
	st.status = StatusRunning
	st.pauseRequested = false
	return nil
}

// Abort requests an abort. Valid in any state; the loop observes the flag
// at its next check point.
func (c *Controller) Abort(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.sessions[sessionID]; ok {
		st.abortRequested = true
	}
}

// SetPaused is called by the loop when it honors a pause request.
func (c *Controller) SetPaused(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.sessions[sessionID]; ok {
		st.status = StatusPaused
		st.pauseRequested = false
	}
}

// PauseRequested reports whether a pause has been requested.
func (c *Controller) PauseRequested(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.sessions[sessionID]; ok {
		return st.pauseRequested
	}
	return false
}

// AbortRequested reports whether an abort has been requested.
func (c *Controller) AbortRequested(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.sessions[sessionID]; ok {
		return st.abortRequested
	}
	return false
}

// Finish releases the session back to idle, clearing all flags. Used after
// graceful completion, abort, or an unrecoverable error.
func (c *Controller) Finish(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.sessions[sessionID]; ok {
		st.status = StatusIdle
		st.abortRequested = false
		st.pauseRequested = false
	}
}

// Subscribe adds a live viewer to the session. No subscriber is assumed
// persistent; reconnection simply re-adds a handle.
func (c *Controller) Subscribe(sessionID string) *Subscriber {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub := &Subscriber{ch: make(chan []byte, subscriberBuffer)}
	c.getOrCreate(sessionID).subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes a viewer and closes its channel.
func (c *Controller) Unsubscribe(sessionID string, sub *Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.sessions[sessionID]
	if !ok {
		return
	}
	if _, present := st.subs[sub]; present {
		delete(st.subs, sub)
		close(sub.ch)
	}
}

// Broadcast serializes the event once and writes it to every subscriber of
// the session. A subscriber that cannot accept the write is dropped.
func (c *Controller) Broadcast(sessionID string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.sessions[sessionID]
	if !ok {
		return
	}
	for sub := range st.subs {
		select {
		case sub.ch <- data:
		default:
			delete(st.subs, sub)
			close(sub.ch)
		}
	}
}
