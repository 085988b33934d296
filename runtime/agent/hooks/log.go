package hooks

import (
	"context"

	"goa.design/agentcall/runtime/agent/model"
	"goa.design/agentcall/runtime/agent/telemetry"
)

// LogHook logs every lifecycle notification. Register it with a low priority
// value so it observes payloads before other hooks mutate them.
type LogHook struct {
	logger telemetry.Logger
}

// NewLogHook returns a hook logging through logger.
func NewLogHook(logger telemetry.Logger) *LogHook {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &LogHook{logger: logger}
}

// PreCall implements PreCallHook.
func (h *LogHook) PreCall(ctx context.Context, ev *PreCallEvent) error {
	h.logger.Debug(ctx, "agent call started", "agent", ev.Agent, "inputs", len(ev.Input))
	return nil
}

// PostCall implements PostCallHook.
func (h *LogHook) PostCall(ctx context.Context, ev *PostCallEvent) error {
	h.logger.Debug(ctx, "agent call completed", "agent", ev.Agent, "message_id", messageID(ev.Output))
	return nil
}

// OnError implements ErrorHook.
func (h *LogHook) OnError(ctx context.Context, ev *ErrorEvent) error {
	h.logger.Error(ctx, "agent call failed", "agent", ev.Agent, "err", ev.Err)
	return nil
}

// Interrupted implements InterruptedHook.
func (h *LogHook) Interrupted(ctx context.Context, ev *InterruptedEvent) error {
	h.logger.Debug(ctx, "agent call recovered", "agent", ev.Agent, "source", string(ev.Interrupt.Source), "message_id", messageID(ev.Output))
	return nil
}

// ReasoningChunk implements ReasoningChunkHook.
func (h *LogHook) ReasoningChunk(ctx context.Context, ev *ReasoningEvent) error {
	h.logger.Debug(ctx, "reasoning chunk", "agent", ev.Agent, "phase", string(ev.Phase), "message_id", messageID(ev.Message))
	return nil
}

// ReasoningDone implements ReasoningDoneHook.
func (h *LogHook) ReasoningDone(ctx context.Context, ev *ReasoningEvent) error {
	h.logger.Info(ctx, "reasoning done", "agent", ev.Agent, "phase", string(ev.Phase), "message_id", messageID(ev.Message))
	return nil
}

// ActingChunk implements ActingChunkHook.
func (h *LogHook) ActingChunk(ctx context.Context, ev *ActingEvent) error {
	h.logger.Debug(ctx, "acting chunk", "agent", ev.Agent, "tool", ev.ToolUse.Name, "tool_use_id", ev.ToolUse.ID)
	return nil
}

// ActingDone implements ActingDoneHook.
func (h *LogHook) ActingDone(ctx context.Context, ev *ActingEvent) error {
	h.logger.Info(ctx, "acting done", "agent", ev.Agent, "tool", ev.ToolUse.Name, "tool_use_id", ev.ToolUse.ID)
	return nil
}

func messageID(m *model.Message) string {
	if m == nil {
		return ""
	}
	return m.ID
}
