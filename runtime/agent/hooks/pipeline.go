package hooks

import (
	"context"
	"errors"
	"sort"
	"sync"
)

type (
	// Pipeline holds the registered hooks of one agent and dispatches
	// lifecycle notifications to them.
	//
	// Hooks run sequentially in ascending priority order; hooks sharing a
	// priority run in registration order. A notification stops at the first
	// hook error and returns that error unchanged.
	//
	// Registration and removal are safe at any time, including from within a
	// hook: each notification iterates the snapshot that was current when it
	// started, so a concurrent change affects only later notifications.
	Pipeline struct {
		mu      sync.Mutex
		entries []*entry
		seq     uint64
		// sorted caches the ordered snapshot. It is nil when stale.
		sorted []*entry
	}

	// Registration is the handle returned by Register. Closing it removes the
	// hook from the pipeline.
	Registration struct {
		p    *Pipeline
		e    *entry
		once sync.Once
	}

	// Option configures a hook registration.
	Option func(*entry)

	entry struct {
		hook     any
		name     string
		priority int
		seq      uint64
	}
)

// DefaultPriority is the priority of hooks registered without WithPriority.
const DefaultPriority = 100

// ErrNoCapability is returned by Register when the hook implements none of
// the lifecycle capabilities.
var ErrNoCapability = errors.New("hooks: value implements no hook capability")

// WithPriority sets the hook priority. Lower priorities run first.
func WithPriority(priority int) Option {
	return func(e *entry) { e.priority = priority }
}

// WithName names the hook so it can be removed with Pipeline.Remove.
func WithName(name string) Option {
	return func(e *entry) { e.name = name }
}

// NewPipeline returns an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Register adds hook to the pipeline. It returns ErrNoCapability if hook
// implements none of the capability interfaces.
func (p *Pipeline) Register(hook any, opts ...Option) (*Registration, error) {
	if hook == nil || len(Capabilities(hook)) == 0 {
		return nil, ErrNoCapability
	}
	e := &entry{hook: hook, priority: DefaultPriority}
	for _, o := range opts {
		o(e)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	e.seq = p.seq
	p.entries = append(p.entries, e)
	p.sorted = nil
	return &Registration{p: p, e: e}, nil
}

// Remove unregisters every hook registered under name and reports whether
// any was found.
func (p *Pipeline) Remove(name string) bool {
	if name == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := p.entries[:0:0]
	for _, e := range p.entries {
		if e.name != name {
			kept = append(kept, e)
		}
	}
	removed := len(kept) != len(p.entries)
	if removed {
		p.entries = kept
		p.sorted = nil
	}
	return removed
}

// Len returns the number of registered hooks.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Close removes the hook from the pipeline. Close is idempotent and always
// returns nil.
func (r *Registration) Close() error {
	r.once.Do(func() { r.p.remove(r.e) })
	return nil
}

func (p *Pipeline) remove(target *entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.entries {
		if e == target {
			entries := make([]*entry, 0, len(p.entries)-1)
			entries = append(entries, p.entries[:i]...)
			p.entries = append(entries, p.entries[i+1:]...)
			p.sorted = nil
			return
		}
	}
}

// snapshot returns the ordered hook list. The returned slice is never
// mutated; changes to the pipeline replace it.
func (p *Pipeline) snapshot() []*entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sorted == nil && len(p.entries) > 0 {
		sorted := make([]*entry, len(p.entries))
		copy(sorted, p.entries)
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].priority != sorted[j].priority {
				return sorted[i].priority < sorted[j].priority
			}
			return sorted[i].seq < sorted[j].seq
		})
		p.sorted = sorted
	}
	return p.sorted
}

// PreCall notifies pre-call hooks.
func (p *Pipeline) PreCall(ctx context.Context, ev *PreCallEvent) error {
	return each(p, func(h PreCallHook) error { return h.PreCall(ctx, ev) })
}

// PostCall notifies post-call hooks.
func (p *Pipeline) PostCall(ctx context.Context, ev *PostCallEvent) error {
	return each(p, func(h PostCallHook) error { return h.PostCall(ctx, ev) })
}

// Error notifies error hooks.
func (p *Pipeline) Error(ctx context.Context, ev *ErrorEvent) error {
	return each(p, func(h ErrorHook) error { return h.OnError(ctx, ev) })
}

// Interrupted notifies interrupted hooks.
func (p *Pipeline) Interrupted(ctx context.Context, ev *InterruptedEvent) error {
	return each(p, func(h InterruptedHook) error { return h.Interrupted(ctx, ev) })
}

// ReasoningChunk notifies reasoning chunk hooks.
func (p *Pipeline) ReasoningChunk(ctx context.Context, ev *ReasoningEvent) error {
	return each(p, func(h ReasoningChunkHook) error { return h.ReasoningChunk(ctx, ev) })
}

// ReasoningDone notifies reasoning done hooks.
func (p *Pipeline) ReasoningDone(ctx context.Context, ev *ReasoningEvent) error {
	return each(p, func(h ReasoningDoneHook) error { return h.ReasoningDone(ctx, ev) })
}

// ActingChunk notifies acting chunk hooks.
func (p *Pipeline) ActingChunk(ctx context.Context, ev *ActingEvent) error {
	return each(p, func(h ActingChunkHook) error { return h.ActingChunk(ctx, ev) })
}

// ActingDone notifies acting done hooks.
func (p *Pipeline) ActingDone(ctx context.Context, ev *ActingEvent) error {
	return each(p, func(h ActingDoneHook) error { return h.ActingDone(ctx, ev) })
}

// each invokes fn for every hook in the current snapshot implementing H and
// stops at the first error.
func each[H any](p *Pipeline, fn func(H) error) error {
	for _, e := range p.snapshot() {
		h, ok := e.hook.(H)
		if !ok {
			continue
		}
		if err := fn(h); err != nil {
			return err
		}
	}
	return nil
}
