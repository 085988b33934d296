package runtime

import (
	"context"

	"goa.design/agentcall/runtime/agent/interrupt"
	"goa.design/agentcall/runtime/agent/model"
)

// RecoveryText is the text of the message returned by DefaultRecovery.
const RecoveryText = "I noticed that you have interrupted me. What can I do for you?"

// DefaultRecovery returns an assistant message acknowledging the interrupt.
// The message metadata records the interrupt source and time.
func DefaultRecovery(_ context.Context, ictx interrupt.Context, _ []*model.Message) *model.Message {
	msg := model.NewTextMessage(model.RoleAssistant, "", RecoveryText)
	msg.Meta = map[string]any{
		MetaInterrupted:     true,
		MetaInterruptSource: string(ictx.Source),
		MetaInterruptedAt:   ictx.Timestamp,
	}
	return msg
}

// Metadata keys set on recovery messages.
const (
	MetaInterrupted     = "interrupted"
	MetaInterruptSource = "interrupt_source"
	MetaInterruptedAt   = "interrupted_at"
)
