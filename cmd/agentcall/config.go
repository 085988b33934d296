package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"goa.design/agentcall/runtime/agent/stream"
)

type (
	// config is the YAML configuration of the CLI.
	config struct {
		Agent    agentConfig    `yaml:"agent"`
		Provider providerConfig `yaml:"provider"`
		Stream   streamConfig   `yaml:"stream"`
		Runlog   runlogConfig   `yaml:"runlog"`
	}

	agentConfig struct {
		Name           string  `yaml:"name"`
		System         string  `yaml:"system"`
		MaxIterations  int     `yaml:"max_iterations"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float32 `yaml:"temperature"`
		ThinkingBudget int     `yaml:"thinking_budget"`
	}

	providerConfig struct {
		// Name is one of anthropic, openai or bedrock.
		Name  string `yaml:"name"`
		Model string `yaml:"model"`
		// APIKeyEnv names the environment variable holding the API key.
		APIKeyEnv string `yaml:"api_key_env"`
		// Region is the AWS region used by bedrock.
		Region string `yaml:"region"`
		// TPM enables the adaptive rate limiter when positive.
		TPM float64 `yaml:"tpm"`
	}

	streamConfig struct {
		Kinds              []string `yaml:"kinds"`
		Incremental        bool     `yaml:"incremental"`
		IncludeFinalResult bool     `yaml:"include_final_result"`
		// RedisURL publishes events to Pulse when set.
		RedisURL string `yaml:"redis_url"`
		// PulseStream is the Pulse stream events are published to.
		PulseStream string `yaml:"pulse_stream"`
	}

	runlogConfig struct {
		// MongoURI records lifecycle events in MongoDB when set.
		MongoURI string `yaml:"mongo_uri"`
		Database string `yaml:"database"`
	}
)

var providerKeyEnv = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"bedrock":   "",
}

func defaultConfig() config {
	return config{
		Agent:    agentConfig{Name: "assistant", MaxIterations: 10, MaxTokens: 4096},
		Provider: providerConfig{Name: "anthropic", Region: "us-east-1"},
		Stream:   streamConfig{Kinds: []string{string(stream.KindAll)}, Incremental: true},
		Runlog:   runlogConfig{Database: "agentcall"},
	}
}

// loadConfig reads path over the defaults. An empty path returns the
// defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, cfg.validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer func() { _ = f.Close() }()
	if err := decodeConfig(f, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeConfig(r io.Reader, cfg *config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return cfg.validate()
}

func (c *config) validate() error {
	envVar, ok := providerKeyEnv[c.Provider.Name]
	if !ok {
		return fmt.Errorf("unknown provider %q", c.Provider.Name)
	}
	if c.Provider.APIKeyEnv == "" {
		c.Provider.APIKeyEnv = envVar
	}
	if c.Agent.Name == "" {
		return errors.New("agent name is required")
	}
	if c.Stream.RedisURL != "" && c.Stream.PulseStream == "" {
		c.Stream.PulseStream = "agent/" + c.Agent.Name
	}
	for _, k := range c.Stream.Kinds {
		switch stream.Kind(k) {
		case stream.KindAll, stream.KindReasoning, stream.KindToolResult, stream.KindHint, stream.KindSummary:
		default:
			return fmt.Errorf("unknown stream kind %q", k)
		}
	}
	return nil
}

func (c config) streamOptions() stream.Options {
	kinds := make([]stream.Kind, 0, len(c.Stream.Kinds))
	for _, k := range c.Stream.Kinds {
		kinds = append(kinds, stream.Kind(strings.TrimSpace(k)))
	}
	return stream.Options{
		Kinds:              kinds,
		Incremental:        c.Stream.Incremental,
		IncludeFinalResult: c.Stream.IncludeFinalResult,
	}
}
