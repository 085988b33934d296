package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"goa.design/pulse/rmap"

	"goa.design/agentcall/runtime/agent/model"
)

type (
	fakeClient struct {
		err   error
		calls int
	}

	fakeBudget struct {
		mu     sync.Mutex
		values map[string]string
		ch     chan rmap.EventKind
	}
)

func (f *fakeClient) Stream(context.Context, *model.Request) (model.Streamer, error) {
	f.calls++
	return nil, f.err
}

func newFakeBudget() *fakeBudget {
	return &fakeBudget{values: map[string]string{}, ch: make(chan rmap.EventKind, 1)}
}

func (m *fakeBudget) Get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *fakeBudget) SetIfNotExists(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value
	return true, nil
}

func (m *fakeBudget) TestAndSet(_ context.Context, key, test, value string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.values[key]
	if cur == test {
		m.values[key] = value
	}
	return cur, nil
}

func (m *fakeBudget) Subscribe() <-chan rmap.EventKind { return m.ch }

func request(text string) *model.Request {
	return &model.Request{Messages: []*model.Message{model.NewTextMessage(model.RoleUser, "", text)}}
}

func rateLimited() error {
	return &model.ProviderError{Provider: "test", HTTPStatus: 429, Kind: model.ProviderErrorKindRateLimited}
}

func TestLimiterAdjustsBudget(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		err     error
		initial float64
		ceiling float64
		want    float64
	}{
		{name: "backoff on rate limit", err: rateLimited(), initial: 60000, ceiling: 60000, want: 30000},
		{name: "probe on success", initial: 60000, ceiling: 120000, want: 63000},
		{name: "probe capped at ceiling", initial: 60000, ceiling: 60000, want: 60000},
		{name: "other errors keep budget", err: errors.New("bad request"), initial: 60000, ceiling: 120000, want: 60000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			l := newLimiter(tc.initial, tc.ceiling)
			client := &fakeClient{err: tc.err}
			_, err := l.Wrap(client).Stream(context.Background(), request("hello"))
			assert.Equal(t, tc.err, err)
			assert.Equal(t, 1, client.calls)
			assert.InDelta(t, tc.want, l.TPM(), 0.001)
		})
	}
}

func TestLimiterBackoffStopsAtFloor(t *testing.T) {
	t.Parallel()
	l := newLimiter(1000, 1000)
	wrapped := l.Wrap(&fakeClient{err: rateLimited()})
	for range 10 {
		_, _ = wrapped.Stream(context.Background(), request("x"))
	}
	assert.InDelta(t, 100, l.TPM(), 0.001)
}

func TestLimiterFailsWithoutCallingProvider(t *testing.T) {
	t.Parallel()
	l := newLimiter(60, 60)
	l.limiter = rate.NewLimiter(0, 0)
	client := &fakeClient{}
	_, err := l.Wrap(client).Stream(context.Background(), request(strings.Repeat("a", 600)))
	require.Error(t, err)
	assert.Zero(t, client.calls)
}

func TestEstimateTokensGrowsWithContent(t *testing.T) {
	t.Parallel()
	small := estimateTokens(request("short"))
	big := estimateTokens(request("this is a much longer message"))
	assert.Positive(t, small)
	assert.Greater(t, big, small)

	withResult := &model.Request{Messages: []*model.Message{
		model.NewMessage(model.RoleTool, "search", model.ToolResultPart{
			ToolUseID: "1",
			Output:    []model.Part{model.TextPart{Text: strings.Repeat("r", 300)}},
		}),
	}}
	assert.Equal(t, 600, estimateTokens(withResult))
	assert.Equal(t, 500, estimateTokens(nil))
}

func TestSharedLimiterPublishesBackoff(t *testing.T) {
	t.Parallel()
	m := newFakeBudget()
	const key = "anthropic"
	m.values[key] = strconv.Itoa(80000)

	l := newSharedLimiter(context.Background(), m, key, 40000, 80000)
	assert.InDelta(t, 80000, l.TPM(), 0.001)

	_, _ = l.Wrap(&fakeClient{err: rateLimited()}).Stream(context.Background(), request("hello"))

	require.Eventually(t, func() bool {
		v, _ := m.Get(key)
		return v == "40000"
	}, time.Second, 5*time.Millisecond)
}

func TestSharedLimiterFollowsRemoteChanges(t *testing.T) {
	t.Parallel()
	m := newFakeBudget()
	const key = "openai"

	l := newSharedLimiter(context.Background(), m, key, 60000, 120000)
	v, ok := m.Get(key)
	require.True(t, ok)
	assert.Equal(t, "60000", v)

	m.mu.Lock()
	m.values[key] = "90000"
	m.mu.Unlock()
	m.ch <- rmap.EventChange

	require.Eventually(t, func() bool {
		return l.TPM() == 90000
	}, time.Second, 5*time.Millisecond)
}
