// Package runtime implements the agent call orchestrator. An Agent drives
// one logical invocation through its hook pipeline: pre-call hooks, the
// domain logic raced against the interrupt signal, post-call hooks and the
// subscriber broadcast. Interrupted calls are routed to a recovery handler
// that produces the returned message; every other failure is reported to the
// error hooks and returned unchanged.
//
// An Agent runs one call at a time. Distinct agents are independent and may
// run concurrently.
package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"goa.design/agentcall/runtime/agent/hooks"
	"goa.design/agentcall/runtime/agent/interrupt"
	"goa.design/agentcall/runtime/agent/model"
	"goa.design/agentcall/runtime/agent/telemetry"
)

type (
	// Agent is a named conversational agent.
	Agent struct {
		name        string
		description string
		reply       ReplyFunc
		recovery    RecoveryFunc
		pipeline    *hooks.Pipeline
		interrupts  *interrupt.Controller
		logger      telemetry.Logger
		metrics     telemetry.Metrics
		tracer      telemetry.Tracer
		now         func() time.Time

		// busy is set while a call is in flight.
		busy atomic.Bool

		mu          sync.Mutex
		subscribers map[string][]Observer
		observed    []*model.Message
	}

	// ReplyFunc is the domain logic of an agent: it turns the call input
	// into the final message. It reports intermediate reasoning and tool
	// activity through ev. ctx is cancelled when the call is interrupted.
	ReplyFunc func(ctx context.Context, input []*model.Message, ev Emitter) (*model.Message, error)

	// RecoveryFunc produces the message returned by an interrupted call.
	// input is the call input as seen by the domain logic. A nil result
	// selects DefaultRecovery.
	RecoveryFunc func(ctx context.Context, ictx interrupt.Context, input []*model.Message) *model.Message

	// Observer receives messages broadcast by agents it subscribes to.
	Observer interface {
		Observe(ctx context.Context, msg *model.Message) error
	}

	// Options configures an Agent.
	Options struct {
		// Description documents the agent.
		Description string
		// Recovery handles interrupted calls. Defaults to DefaultRecovery.
		Recovery RecoveryFunc
		// Logger emits structured logs. Defaults to a no-op logger.
		Logger telemetry.Logger
		// Metrics records call metrics. Defaults to a no-op recorder.
		Metrics telemetry.Metrics
		// Tracer creates call spans. Defaults to a no-op tracer.
		Tracer telemetry.Tracer
		// Clock overrides time.Now.
		Clock func() time.Time
		// Hooks are registered with hooks.DefaultPriority in order.
		Hooks []any
	}

	// Option configures an Agent via New.
	Option func(*Options)
)

// ErrCallInProgress is returned by Call when the agent is already running a
// call.
var ErrCallInProgress = errors.New("runtime: agent call already in progress")

// WithDescription sets the agent description.
func WithDescription(d string) Option { return func(o *Options) { o.Description = d } }

// WithRecovery sets the interrupt recovery handler.
func WithRecovery(fn RecoveryFunc) Option { return func(o *Options) { o.Recovery = fn } }

// WithLogger sets the logger.
func WithLogger(l telemetry.Logger) Option { return func(o *Options) { o.Logger = l } }

// WithMetrics sets the metrics recorder.
func WithMetrics(m telemetry.Metrics) Option { return func(o *Options) { o.Metrics = m } }

// WithTracer sets the tracer.
func WithTracer(t telemetry.Tracer) Option { return func(o *Options) { o.Tracer = t } }

// WithClock overrides the clock used for interrupt timestamps and timers.
func WithClock(now func() time.Time) Option { return func(o *Options) { o.Clock = now } }

// WithHooks registers hooks with the default priority. Use RegisterHook to
// control priority and names.
func WithHooks(hs ...any) Option { return func(o *Options) { o.Hooks = append(o.Hooks, hs...) } }

// New returns an agent running reply. It panics if name is empty, reply is
// nil or a hook passed via WithHooks implements no hook capability.
func New(name string, reply ReplyFunc, opts ...Option) *Agent {
	if name == "" {
		panic("runtime: agent name is required")
	}
	if reply == nil {
		panic("runtime: agent reply function is required")
	}
	var o Options
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	if o.Logger == nil {
		o.Logger = telemetry.NewNoopLogger()
	}
	if o.Metrics == nil {
		o.Metrics = telemetry.NewNoopMetrics()
	}
	if o.Tracer == nil {
		o.Tracer = telemetry.NewNoopTracer()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Recovery == nil {
		o.Recovery = DefaultRecovery
	}
	a := &Agent{
		name:        name,
		description: o.Description,
		reply:       reply,
		recovery:    o.Recovery,
		pipeline:    hooks.NewPipeline(),
		interrupts:  interrupt.NewController(o.Clock),
		logger:      o.Logger,
		metrics:     o.Metrics,
		tracer:      o.Tracer,
		now:         o.Clock,
		subscribers: make(map[string][]Observer),
	}
	for _, h := range o.Hooks {
		if _, err := a.pipeline.Register(h); err != nil {
			panic("runtime: " + err.Error())
		}
	}
	return a
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Description returns the agent description.
func (a *Agent) Description() string { return a.description }

// RegisterHook adds a hook to the agent pipeline. See hooks.Pipeline.
func (a *Agent) RegisterHook(hook any, opts ...hooks.Option) (*hooks.Registration, error) {
	return a.pipeline.Register(hook, opts...)
}

// RemoveHook removes the hooks registered under name.
func (a *Agent) RemoveHook(name string) bool {
	return a.pipeline.Remove(name)
}

// Interrupt requests a user interrupt of the in-flight call, attaching the
// first message if any. It reports whether an interrupt fired; it is a no-op
// when no call is running or the call was already interrupted.
func (a *Agent) Interrupt(msg ...*model.Message) bool {
	var m *model.Message
	if len(msg) > 0 {
		m = msg[0]
	}
	return a.InterruptFrom(interrupt.SourceUser, m)
}

// InterruptFrom is Interrupt with an explicit source.
func (a *Agent) InterruptFrom(source interrupt.Source, msg *model.Message) bool {
	return a.interrupts.Request(source, msg)
}
