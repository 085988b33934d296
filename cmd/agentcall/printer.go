package main

import (
	"fmt"
	"io"

	"goa.design/agentcall/runtime/agent/model"
	"goa.design/agentcall/runtime/agent/stream"
)

// printer renders stream events as labelled lines. In cumulative mode only
// final events are printed since earlier events repeat their content.
type printer struct {
	out         io.Writer
	incremental bool
}

func (p *printer) print(ev stream.Event) {
	if ev.Message == nil || (!p.incremental && !ev.Final && ev.Kind != stream.KindAgentResult) {
		return
	}
	for _, part := range ev.Message.Parts {
		if line := render(part); line != "" {
			fmt.Fprintf(p.out, "[%s] %s\n", ev.Kind, line)
		}
	}
}

func render(part model.Part) string {
	switch v := part.(type) {
	case model.TextPart:
		return v.Text
	case model.ThinkingPart:
		if v.Text == "" {
			return ""
		}
		return "(thinking) " + v.Text
	case model.ToolUsePart:
		return fmt.Sprintf("-> %s %s", v.Name, v.RawInput)
	case model.ToolResultPart:
		status := "ok"
		if v.IsError {
			status = "error"
		}
		var text string
		for _, o := range v.Output {
			if t, ok := o.(model.TextPart); ok {
				text += t.Text
			}
		}
		return fmt.Sprintf("<- %s %s: %s", v.Name, status, text)
	default:
		return ""
	}
}
