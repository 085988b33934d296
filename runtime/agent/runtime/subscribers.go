package runtime

import (
	"context"

	"golang.org/x/sync/errgroup"

	"goa.design/agentcall/runtime/agent/model"
)

// ResetSubscribers replaces the observers registered under group. Groups
// model the multi-agent conversations the agent takes part in; the agent
// itself is never notified of its own messages.
func (a *Agent) ResetSubscribers(group string, observers []Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o == nil {
			continue
		}
		if other, ok := o.(*Agent); ok && other == a {
			continue
		}
		kept = append(kept, o)
	}
	a.subscribers[group] = kept
}

// RemoveSubscribers drops the observers registered under group.
func (a *Agent) RemoveSubscribers(group string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.subscribers, group)
}

// Subscribers returns the number of observers registered under group.
func (a *Agent) Subscribers(group string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subscribers[group])
}

// Observe implements Observer: msg is buffered and prepended to the input of
// the agent's next call.
func (a *Agent) Observe(_ context.Context, msg *model.Message) error {
	if msg == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observed = append(a.observed, msg)
	return nil
}

func (a *Agent) takeObserved() []*model.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	msgs := a.observed
	a.observed = nil
	return msgs
}

// broadcast delivers msg to every observer of every group concurrently and
// waits for all of them. Each observer receives its own copy.
func (a *Agent) broadcast(ctx context.Context, msg *model.Message) error {
	if msg == nil {
		return nil
	}
	a.mu.Lock()
	var observers []Observer
	for _, group := range a.subscribers {
		observers = append(observers, group...)
	}
	a.mu.Unlock()

	if len(observers) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, o := range observers {
		g.Go(func() error {
			return o.Observe(gctx, msg.Clone())
		})
	}
	return g.Wait()
}
