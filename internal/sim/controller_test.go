package sim

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestControllerLifecycle(t *testing.T) {
	c := NewController()
	const sid = "sess-1"

	if got := c.Status(sid); got != StatusIdle {
		t.Fatalf("fresh session status = %q, want idle", got)
	}
	if err := c.Pause(sid); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("pause while idle: err = %v, want ErrNotRunning", err)
	}
	if err := c.Resume(sid); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("resume while idle: err = %v, want ErrNotPaused", err)
	}

	if err := c.Start(sid); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := c.Status(sid); got != StatusRunning {
		t.Fatalf("status after start = %q, want running", got)
	}
	if err := c.Start(sid); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start: err = %v, want ErrAlreadyRunning", err)
	}

	if err := c.Pause(sid); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !c.PauseRequested(sid) {
		t.Fatal("pause flag not set")
	}
	// The loop acknowledges the request.
	c.SetPaused(sid)
	if got := c.Status(sid); got != StatusPaused {
		t.Fatalf("status after SetPaused = %q, want paused", got)
	}
	if err := c.Pause(sid); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("pause while paused: err = %v, want ErrNotRunning", err)
	}

	if err := c.Resume(sid); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if got := c.Status(sid); got != StatusRunning {
		t.Fatalf("status after resume = %q, want running", got)
	}
	if c.PauseRequested(sid) {
		t.Fatal("pause flag survived resume")
	}

	c.Finish(sid)
	if got := c.Status(sid); got != StatusIdle {
		t.Fatalf("status after finish = %q, want idle", got)
	}
	if err := c.Start(sid); err != nil {
		t.Fatalf("restart after finish: %v", err)
	}
}

func TestControllerAbortFromAnyState(t *testing.T) {
	c := NewController()
	const sid = "sess-abort"

	// Abort while idle is a no-op request that a future start must not see.
	c.Abort(sid)
	if err := c.Start(sid); err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.AbortRequested(sid) {
		t.Fatal("abort flag leaked across start")
	}

	c.Abort(sid)
	if !c.AbortRequested(sid) {
		t.Fatal("abort flag not set while running")
	}
	c.Finish(sid)

	if err := c.Start(sid); err != nil {
		t.Fatalf("restart: %v", err)
	}
	c.SetPaused(sid)
	c.Abort(sid)
	if !c.AbortRequested(sid) {
		t.Fatal("abort flag not set while paused")
	}
}

func TestControllerSessionsIndependent(t *testing.T) {
	c := NewController()
	if err := c.Start("a"); err != nil {
		t.Fatalf("start a: %v", err)
	}
	if err := c.Start("b"); err != nil {
		t.Fatalf("start b: %v", err)
	}
	c.Abort("a")
	if c.AbortRequested("b") {
		t.Fatal("abort on a visible to b")
	}
	if err := c.Pause("b"); err != nil {
		t.Fatalf("pause b: %v", err)
	}
	if c.PauseRequested("a") {
		t.Fatal("pause on b visible to a")
	}
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	c := NewController()
	const sid = "sess-bc"

	sub := c.Subscribe(sid)
	other := c.Subscribe("unrelated")

	c.Broadcast(sid, Event{Type: EventIterationStart, Iteration: 3, Total: 10})

	select {
	case raw := <-sub.Events():
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if ev.Type != EventIterationStart || ev.Iteration != 3 || ev.Total != 10 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("subscriber received nothing")
	}

	select {
	case <-other.Events():
		t.Fatal("event leaked to another session's subscriber")
	default:
	}

	c.Unsubscribe(sid, sub)
	if _, ok := <-sub.Events(); ok {
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestBroadcastDropsSlowSubscriber(t *testing.T) {
	c := NewController()
	const sid = "sess-slow"

	sub := c.Subscribe(sid)
	// Fill the buffer without draining, then one more to trigger the drop.
	for i := 0; i <= subscriberBuffer; i++ {
		c.Broadcast(sid, Event{Type: EventIterationStart, Iteration: i + 1})
	}

	// Drain everything that was buffered; the channel must end up closed.
	n := 0
	for range sub.Events() {
		n++
		if n > subscriberBuffer {
			t.Fatal("channel never closed")
		}
	}
	if n != subscriberBuffer {
		t.Fatalf("buffered events = %d, want %d", n, subscriberBuffer)
	}
}
