// Package middleware provides model.Client decorators. The adaptive rate
// limiter throttles stream openings against a tokens-per-minute budget that
// shrinks when the provider reports throttling and recovers on success.
package middleware

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"goa.design/pulse/rmap"

	"goa.design/agentcall/runtime/agent/model"
)

type (
	// AdaptiveRateLimiter is an AIMD token bucket placed in front of a
	// model.Client. Each Stream call waits for its estimated token cost. A
	// rate-limited provider error halves the budget; each successful open adds
	// a fixed recovery step up to the ceiling.
	AdaptiveRateLimiter struct {
		mu      sync.Mutex
		limiter *rate.Limiter
		tpm     float64
		floor   float64
		ceiling float64
		step    float64
		// onChange is invoked outside the lock with the direction of the last
		// adjustment (-1 backoff, +1 probe).
		onChange func(direction int)
	}

	limitedClient struct {
		next    model.Client
		limiter *AdaptiveRateLimiter
	}

	// sharedBudget is the subset of rmap.Map used to coordinate the budget
	// across processes.
	sharedBudget interface {
		Get(key string) (string, bool)
		SetIfNotExists(ctx context.Context, key, value string) (bool, error)
		TestAndSet(ctx context.Context, key, test, value string) (string, error)
		Subscribe() <-chan rmap.EventKind
	}
)

// DefaultTPM is the budget used when the caller does not provide one.
const DefaultTPM = 60000

// NewAdaptiveRateLimiter returns a limiter starting at initialTPM tokens per
// minute and never exceeding maxTPM. When m is not nil and key is set the
// budget is shared through the Pulse replicated map under key.
func NewAdaptiveRateLimiter(ctx context.Context, m *rmap.Map, key string, initialTPM, maxTPM float64) *AdaptiveRateLimiter {
	if m == nil || key == "" {
		return newLimiter(initialTPM, maxTPM)
	}
	return newSharedLimiter(ctx, m, key, initialTPM, maxTPM)
}

func newLimiter(initialTPM, maxTPM float64) *AdaptiveRateLimiter {
	if initialTPM <= 0 {
		initialTPM = DefaultTPM
	}
	if maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	return &AdaptiveRateLimiter{
		limiter: rate.NewLimiter(rate.Limit(initialTPM/60), int(initialTPM)),
		tpm:     initialTPM,
		floor:   max(initialTPM*0.1, 1),
		ceiling: maxTPM,
		step:    max(initialTPM*0.05, 1),
	}
}

// Wrap decorates next with the limiter.
func (l *AdaptiveRateLimiter) Wrap(next model.Client) model.Client {
	if next == nil {
		return nil
	}
	return &limitedClient{next: next, limiter: l}
}

// TPM returns the current tokens-per-minute budget.
func (l *AdaptiveRateLimiter) TPM() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tpm
}

// Stream waits for capacity, opens the stream and adjusts the budget from
// the outcome.
func (c *limitedClient) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	if err := c.limiter.limiter.WaitN(ctx, estimateTokens(req)); err != nil {
		return nil, err
	}
	s, err := c.next.Stream(ctx, req)
	switch {
	case err == nil:
		c.limiter.adjust(+1)
	case errors.Is(err, model.ErrRateLimited):
		c.limiter.adjust(-1)
	}
	return s, err
}

func (l *AdaptiveRateLimiter) adjust(direction int) {
	l.mu.Lock()
	next := l.tpm + l.step
	if direction < 0 {
		next = l.tpm / 2
	}
	changed := l.set(next)
	cb := l.onChange
	l.mu.Unlock()
	if changed && cb != nil {
		cb(direction)
	}
}

// set clamps tpm to [floor, ceiling] and applies it. It must be called with
// mu held and reports whether the budget changed.
func (l *AdaptiveRateLimiter) set(tpm float64) bool {
	tpm = min(max(tpm, l.floor), l.ceiling)
	if tpm == l.tpm {
		return false
	}
	l.tpm = tpm
	l.limiter.SetLimit(rate.Limit(tpm / 60))
	l.limiter.SetBurst(int(tpm))
	return true
}

// estimateTokens approximates the request cost at one token per three
// characters of text plus a fixed overhead for framing and the completion.
func estimateTokens(req *model.Request) int {
	const overhead = 500
	if req == nil {
		return overhead
	}
	chars := 0
	for _, m := range req.Messages {
		if m == nil {
			continue
		}
		for _, p := range m.Parts {
			switch v := p.(type) {
			case model.TextPart:
				chars += len(v.Text)
			case model.ThinkingPart:
				chars += len(v.Text)
			case model.ToolUsePart:
				chars += len(v.RawInput)
			case model.ToolResultPart:
				for _, o := range v.Output {
					if t, ok := o.(model.TextPart); ok {
						chars += len(t.Text)
					}
				}
			}
		}
	}
	return chars/3 + overhead
}

func newSharedLimiter(ctx context.Context, m sharedBudget, key string, initialTPM, maxTPM float64) *AdaptiveRateLimiter {
	if _, ok := m.Get(key); !ok {
		if _, err := m.SetIfNotExists(ctx, key, strconv.Itoa(int(initialTPM))); err != nil {
			return newLimiter(initialTPM, maxTPM)
		}
	}
	shared := initialTPM
	if v, ok := readBudget(m, key); ok {
		shared = v
	}
	l := newLimiter(shared, maxTPM)
	floor, ceiling, step := l.floor, l.ceiling, l.step
	l.onChange = func(direction int) {
		go publish(context.Background(), m, key, func(cur float64) float64 {
			if direction < 0 {
				return max(cur/2, floor)
			}
			return min(cur+step, ceiling)
		})
	}
	ch := m.Subscribe()
	go func() {
		for range ch {
			if v, ok := readBudget(m, key); ok {
				l.mu.Lock()
				l.set(v)
				l.mu.Unlock()
			}
		}
	}()
	return l
}

// publish applies fn to the shared budget with a bounded compare-and-swap
// loop.
func publish(ctx context.Context, m sharedBudget, key string, fn func(float64) float64) {
	const attempts = 3
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	for range attempts {
		curStr, ok := m.Get(key)
		if !ok {
			return
		}
		cur, err := strconv.ParseFloat(curStr, 64)
		if err != nil || cur <= 0 {
			return
		}
		next := strconv.Itoa(int(fn(cur)))
		if next == curStr {
			return
		}
		prev, err := m.TestAndSet(ctx, key, curStr, next)
		if err != nil || prev == curStr {
			return
		}
	}
}

func readBudget(m sharedBudget, key string) (float64, bool) {
	s, ok := m.Get(key)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
