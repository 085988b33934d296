// Package tools holds the tools an agent may call. Each tool declares a JSON
// schema for its arguments; the Registry compiles the schemas at
// registration, validates the arguments of every call and converts tool
// failures into error results the model can read.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"goa.design/agentcall/runtime/agent/interrupt"
	"goa.design/agentcall/runtime/agent/model"
)

type (
	// Tool describes a callable tool.
	Tool struct {
		// Name is the identifier the model uses to call the tool.
		Name string
		// Description tells the model when to use the tool.
		Description string
		// InputSchema is the JSON schema of the arguments. Nil accepts any
		// JSON object.
		InputSchema map[string]any
		// Run executes the tool.
		Run Func
	}

	// Func executes a tool call. The returned parts become the tool result
	// output. Returning an error produces an error result, except for errors
	// matching interrupt.ErrInterrupted or context cancellation which abort
	// the call.
	Func func(ctx context.Context, call Call) ([]model.Part, error)

	// Call is the invocation handed to a tool.
	Call struct {
		// Use is the tool call requested by the model.
		Use model.ToolUsePart
		// Progress reports partial output. It is never nil.
		Progress ProgressFunc
	}

	// ProgressFunc reports partial tool output.
	ProgressFunc func(ctx context.Context, partial []model.Part) error

	// Registry holds tools by name. It is safe for concurrent use.
	Registry struct {
		mu    sync.RWMutex
		tools map[string]*entry
	}

	entry struct {
		tool   Tool
		schema *jsonschema.Schema
	}
)

var (
	// ErrUnknownTool is reported when the model calls an unregistered tool.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrDuplicateTool is returned when registering a name twice.
	ErrDuplicateTool = errors.New("tool already registered")
)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*entry)}
}

// Register adds t. It fails if the name is empty or taken, Run is nil or the
// schema does not compile.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return errors.New("tools: name is required")
	}
	if t.Run == nil {
		return fmt.Errorf("tools: %s: run function is required", t.Name)
	}
	if t.InputSchema == nil {
		t.InputSchema = map[string]any{"type": "object"}
	}
	schema, err := compile(t.Name, t.InputSchema)
	if err != nil {
		return fmt.Errorf("tools: %s: compile schema: %w", t.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name]; ok {
		return fmt.Errorf("tools: %s: %w", t.Name, ErrDuplicateTool)
	}
	r.tools[t.Name] = &entry{tool: t, schema: schema}
	return nil
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns the model-facing definitions sorted by name.
func (r *Registry) Definitions() []*model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]*model.ToolDefinition, 0, len(r.tools))
	for _, e := range r.tools {
		defs = append(defs, &model.ToolDefinition{
			Name:        e.tool.Name,
			Description: e.tool.Description,
			InputSchema: e.tool.InputSchema,
		})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute runs the tool call use and returns its result. Unknown tools,
// invalid arguments and tool failures yield results with IsError set; the
// returned error is non-nil only when the tool interrupted the call or ctx
// was cancelled. progress may be nil.
func (r *Registry) Execute(ctx context.Context, use model.ToolUsePart, progress ProgressFunc) (model.ToolResultPart, error) {
	r.mu.RLock()
	e, ok := r.tools[use.Name]
	r.mu.RUnlock()
	if !ok {
		return errorResult(use, fmt.Errorf("%w %q", ErrUnknownTool, use.Name)), nil
	}
	if issues := e.validate(use); len(issues) > 0 {
		return errorResult(use, &ValidationError{Tool: use.Name, Issues: issues}), nil
	}
	if progress == nil {
		progress = func(context.Context, []model.Part) error { return nil }
	}

	start := time.Now()
	out, err := e.tool.Run(ctx, Call{Use: use, Progress: progress})
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, interrupt.ErrInterrupted) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return model.ToolResultPart{}, err
		}
		res := errorResult(use, err)
		res.Meta["duration_ms"] = elapsed.Milliseconds()
		return res, nil
	}
	return model.ToolResultPart{
		ToolUseID: use.ID,
		Name:      use.Name,
		Output:    out,
		Meta:      map[string]any{"duration_ms": elapsed.Milliseconds()},
	}, nil
}

// validate checks the raw arguments against the tool schema. Arguments that
// are not valid JSON are reported as a single issue.
func (e *entry) validate(use model.ToolUsePart) []FieldIssue {
	var inst any
	if strings.TrimSpace(use.RawInput) != "" {
		var err error
		inst, err = jsonschema.UnmarshalJSON(strings.NewReader(use.RawInput))
		if err != nil {
			return []FieldIssue{{Constraint: ConstraintInvalidJSON, Message: err.Error()}}
		}
	} else {
		inst = toInstance(use.Input)
	}
	if err := e.schema.Validate(inst); err != nil {
		return issuesFrom(err)
	}
	return nil
}

func errorResult(use model.ToolUsePart, err error) model.ToolResultPart {
	return model.ToolResultPart{
		ToolUseID: use.ID,
		Name:      use.Name,
		Output:    []model.Part{model.TextPart{Text: err.Error()}},
		IsError:   true,
		Meta:      map[string]any{"error": err.Error()},
	}
}

func compile(name string, schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	url := name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, err
	}
	return c.Compile(url)
}

// toInstance round-trips v through JSON so numbers use the representation
// the validator expects.
func toInstance(v map[string]any) any {
	if v == nil {
		return map[string]any{}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return v
	}
	return inst
}
