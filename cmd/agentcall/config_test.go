package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcall/runtime/agent/stream"
)

func TestDecodeConfig(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		yaml    string
		wantErr string
		check   func(t *testing.T, c config)
	}{
		{
			name: "empty keeps defaults",
			yaml: "",
			check: func(t *testing.T, c config) {
				assert.Equal(t, "anthropic", c.Provider.Name)
				assert.Equal(t, "ANTHROPIC_API_KEY", c.Provider.APIKeyEnv)
				assert.Equal(t, 10, c.Agent.MaxIterations)
				assert.Equal(t, []stream.Kind{stream.KindAll}, c.streamOptions().Kinds)
			},
		},
		{
			name: "openai with pulse",
			yaml: `
agent:
  name: helper
provider:
  name: openai
  model: gpt-4o
stream:
  kinds: [reasoning, tool_result]
  incremental: false
  include_final_result: true
  redis_url: redis://localhost:6379/0
`,
			check: func(t *testing.T, c config) {
				assert.Equal(t, "OPENAI_API_KEY", c.Provider.APIKeyEnv)
				assert.Equal(t, "agent/helper", c.Stream.PulseStream)
				opts := c.streamOptions()
				assert.False(t, opts.Incremental)
				assert.True(t, opts.IncludeFinalResult)
				assert.True(t, opts.Accepts(stream.KindToolResult))
				assert.False(t, opts.Accepts(stream.KindHint))
			},
		},
		{name: "unknown provider", yaml: "provider:\n  name: gemini\n", wantErr: `unknown provider "gemini"`},
		{name: "unknown kind", yaml: "stream:\n  kinds: [chatter]\n", wantErr: `unknown stream kind "chatter"`},
		{name: "unknown field", yaml: "agent:\n  nmae: typo\n", wantErr: "field nmae not found"},
		{name: "empty agent name", yaml: "agent:\n  name: \"\"\n", wantErr: "agent name is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			err := decodeConfig(strings.NewReader(tc.yaml), &cfg)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()
	_, err := loadConfig("does-not-exist.yaml")
	require.Error(t, err)

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "assistant", cfg.Agent.Name)
}
