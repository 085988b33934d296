// Package interrupt implements cooperative interruption of in-flight agent
// calls. A Controller is armed when a call starts; an external Request fires
// its cancel signal at most once and captures who asked and why. The
// orchestrator races the call's domain logic against Done and routes an
// interrupted call to its recovery handler.
package interrupt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"goa.design/agentcall/runtime/agent/model"
)

type (
	// Controller holds the interrupt slot of one agent. It moves between
	// Idle, Armed and Interrupted; see State. All methods are safe for
	// concurrent use: Request is typically called from a goroutine other than
	// the one running the call.
	Controller struct {
		mu       sync.Mutex
		state    State
		done     chan struct{}
		captured Context
		now      func() time.Time
	}

	// Context describes an interrupt request.
	Context struct {
		// Source identifies who requested the interrupt.
		Source Source
		// Message is the optional message supplied with the request.
		Message *model.Message
		// Timestamp records when the interrupt fired.
		Timestamp time.Time
	}

	// Error is returned by operations abandoned because of an interrupt. It
	// matches ErrInterrupted with errors.Is.
	Error struct {
		Context Context
	}

	// State is the controller state.
	State int

	// Source enumerates interrupt requesters.
	Source string
)

const (
	// Idle means no call is in flight. Requests are ignored.
	Idle State = iota
	// Armed means a call is in flight and no interrupt was requested yet.
	Armed
	// Interrupted means the cancel signal fired for the in-flight call.
	Interrupted
)

const (
	SourceUser   Source = "user"
	SourceTool   Source = "tool"
	SourceSystem Source = "system"
)

// ErrInterrupted is the sentinel matched by interrupt errors.
var ErrInterrupted = errors.New("interrupted")

// NewController returns an idle controller. now overrides the clock used to
// timestamp interrupts; nil selects time.Now.
func NewController(now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{now: now}
}

// Arm prepares the controller for a new call. It unconditionally discards any
// state left by a previous call and returns the new cancel signal.
func (c *Controller) Arm() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Armed
	c.done = make(chan struct{})
	c.captured = Context{}
	return c.done
}

// Request fires the cancel signal of the armed call and captures the
// interrupt context. It returns false, doing nothing, when no call is armed
// or the call was already interrupted.
func (c *Controller) Request(source Source, msg *model.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Armed {
		return false
	}
	c.state = Interrupted
	c.captured = Context{Source: source, Message: msg, Timestamp: c.now()}
	close(c.done)
	return true
}

// Done returns the cancel signal of the current call, or nil when idle. A nil
// channel blocks forever in a select.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		return nil
	}
	return c.done
}

// Captured returns the interrupt context of the current call and whether an
// interrupt fired.
func (c *Controller) Captured() (Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captured, c.state == Interrupted
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Disarm returns the controller to Idle at call teardown, discarding the
// cancel signal and any captured context.
func (c *Controller) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Idle
	c.done = nil
	c.captured = Context{}
}

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Interrupted:
		return "interrupted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (e *Error) Error() string {
	return fmt.Sprintf("interrupted by %s", e.Context.Source)
}

// Is reports whether target is ErrInterrupted.
func (e *Error) Is(target error) bool { return target == ErrInterrupted }
