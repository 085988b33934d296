package runlog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"goa.design/agentcall/runtime/agent/hooks"
	"goa.design/agentcall/runtime/agent/model"
)

// RecorderPriority is the priority Recorder hooks should be registered with
// so they observe payloads after other hooks mutated them.
const RecorderPriority = 10_000

// Recorder is a hook that appends every lifecycle notification of one agent
// to a Store. Agents run one call at a time so a recorder tracks the current
// call ID between PreCall and PostCall, Interrupted or OnError.
type Recorder struct {
	store Store
	now   func() time.Time

	mu     sync.Mutex
	callID string
}

// NewRecorder returns a recorder writing to store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// CallID returns the ID of the call being recorded, or of the last recorded
// call once it completed.
func (r *Recorder) CallID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.callID
}

// PreCall implements hooks.PreCallHook. It starts a new call ID.
func (r *Recorder) PreCall(ctx context.Context, ev *hooks.PreCallEvent) error {
	r.mu.Lock()
	r.callID = uuid.NewString()
	r.mu.Unlock()
	return r.append(ctx, ev.Agent, hooks.PointPreCall, "", "", ev.Input)
}

// PostCall implements hooks.PostCallHook.
func (r *Recorder) PostCall(ctx context.Context, ev *hooks.PostCallEvent) error {
	return r.append(ctx, ev.Agent, hooks.PointPostCall, "", messageID(ev.Output), ev.Output)
}

// OnError implements hooks.ErrorHook.
func (r *Recorder) OnError(ctx context.Context, ev *hooks.ErrorEvent) error {
	var msg string
	if ev.Err != nil {
		msg = ev.Err.Error()
	}
	return r.append(ctx, ev.Agent, hooks.PointError, "", "", map[string]string{"error": msg})
}

// Interrupted implements hooks.InterruptedHook. It records the recovery
// message and the interrupt that caused it.
func (r *Recorder) Interrupted(ctx context.Context, ev *hooks.InterruptedEvent) error {
	payload := interruptedPayload{
		Source:    string(ev.Interrupt.Source),
		Message:   ev.Interrupt.Message,
		Timestamp: ev.Interrupt.Timestamp,
		Output:    ev.Output,
	}
	return r.append(ctx, ev.Agent, hooks.PointInterrupted, "", messageID(ev.Output), payload)
}

// interruptedPayload is the recorded payload of interrupted calls.
type interruptedPayload struct {
	Source    string         `json:"source"`
	Message   *model.Message `json:"message,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Output    *model.Message `json:"output"`
}

// ReasoningChunk implements hooks.ReasoningChunkHook.
func (r *Recorder) ReasoningChunk(ctx context.Context, ev *hooks.ReasoningEvent) error {
	return r.append(ctx, ev.Agent, hooks.PointReasoningChunk, ev.Phase, messageID(ev.Message), ev.Message)
}

// ReasoningDone implements hooks.ReasoningDoneHook.
func (r *Recorder) ReasoningDone(ctx context.Context, ev *hooks.ReasoningEvent) error {
	return r.append(ctx, ev.Agent, hooks.PointReasoningDone, ev.Phase, messageID(ev.Message), ev.Message)
}

// ActingChunk implements hooks.ActingChunkHook.
func (r *Recorder) ActingChunk(ctx context.Context, ev *hooks.ActingEvent) error {
	return r.append(ctx, ev.Agent, hooks.PointActingChunk, "", messageID(ev.Message), ev.Message)
}

// ActingDone implements hooks.ActingDoneHook.
func (r *Recorder) ActingDone(ctx context.Context, ev *hooks.ActingEvent) error {
	return r.append(ctx, ev.Agent, hooks.PointActingDone, "", messageID(ev.Message), ev.Message)
}

func (r *Recorder) append(ctx context.Context, agent string, point hooks.Point, phase hooks.Phase, msgID string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("runlog: encode %s payload: %w", point, err)
	}
	e := &Event{
		CallID:    r.CallID(),
		Agent:     agent,
		Point:     point,
		Phase:     phase,
		MessageID: msgID,
		Payload:   raw,
		Timestamp: r.now().UTC(),
	}
	if err := r.store.Append(ctx, e); err != nil {
		return fmt.Errorf("runlog: append %s: %w", point, err)
	}
	return nil
}

func messageID(m *model.Message) string {
	if m == nil {
		return ""
	}
	return m.ID
}
