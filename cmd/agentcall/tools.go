package main

import (
	"context"
	"fmt"
	"time"

	"goa.design/agentcall/runtime/agent/model"
	"goa.design/agentcall/runtime/agent/tools"
)

// builtinTools returns the tools available to the CLI agent.
func builtinTools(now func() time.Time) (*tools.Registry, error) {
	reg := tools.NewRegistry()
	err := reg.Register(tools.Tool{
		Name:        "clock.now",
		Description: "Returns the current time in the given IANA time zone.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"zone": map[string]any{"type": "string", "description": "IANA zone such as Europe/Paris. Defaults to UTC."},
			},
			"additionalProperties": false,
		},
		Run: func(_ context.Context, call tools.Call) ([]model.Part, error) {
			zone, _ := call.Use.Input["zone"].(string)
			if zone == "" {
				zone = "UTC"
			}
			loc, err := time.LoadLocation(zone)
			if err != nil {
				return nil, fmt.Errorf("unknown time zone %q", zone)
			}
			return []model.Part{model.TextPart{Text: now().In(loc).Format(time.RFC3339)}}, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}
