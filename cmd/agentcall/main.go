// Command agentcall runs an interactive tool-using agent against a model
// provider and prints its event stream. Each input line is one agent call.
// Ctrl-C interrupts the running call; a second Ctrl-C exits.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"goa.design/clue/log"

	"goa.design/agentcall/runtime/agent/hooks"
	"goa.design/agentcall/runtime/agent/model"
	"goa.design/agentcall/runtime/agent/react"
	"goa.design/agentcall/runtime/agent/runlog"
	"goa.design/agentcall/runtime/agent/runtime"
	"goa.design/agentcall/runtime/agent/stream"
	"goa.design/agentcall/runtime/agent/telemetry"
)

func main() {
	var (
		configF = flag.String("config", "", "Path to the YAML configuration file")
		modelF  = flag.String("model", "", "Model identifier (overrides provider.model)")
		dbgF    = flag.Bool("debug", false, "Enable debug logs")
		followF = flag.String("follow", "", "Print events published to the Pulse stream using this consumer group instead of reading input")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	cfg, err := loadConfig(*configF)
	if err != nil {
		log.Fatalf(ctx, err, "failed to load configuration")
	}
	if *modelF != "" {
		cfg.Provider.Model = *modelF
	}
	if *followF != "" {
		if err := runFollow(ctx, cfg, *followF, os.Stdout); err != nil {
			log.Fatalf(ctx, err, "follow failed")
		}
		return
	}
	if err := run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		log.Fatalf(ctx, err, "agentcall failed")
	}
}

func run(ctx context.Context, cfg config, in io.Reader, out io.Writer) error {
	logger := telemetry.NewClueLogger()
	client, err := newModelClient(cfg.Provider, logger)
	if err != nil {
		return err
	}
	agent, err := newAgent(cfg, client, logger)
	if err != nil {
		return err
	}

	var publish stream.Sink
	if cfg.Stream.RedisURL != "" {
		streams, err := newPulseStreams(cfg.Stream)
		if err != nil {
			return err
		}
		defer func() { _ = streams.Close(context.Background()) }()
		publish = streams.Sink()
		log.Info(ctx, log.KV{K: "pulse-stream", V: cfg.Stream.PulseStream})
	}
	if cfg.Runlog.MongoURI != "" {
		rec, disconnect, err := newMongoRecorder(ctx, cfg.Runlog)
		if err != nil {
			return err
		}
		defer func() { _ = disconnect(context.Background()) }()
		if _, err := agent.RegisterHook(rec, hooks.WithPriority(runlog.RecorderPriority), hooks.WithName("runlog")); err != nil {
			return err
		}
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		for range sigc {
			if !agent.Interrupt() {
				cancel()
				return
			}
		}
	}()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		msg := model.NewTextMessage(model.RoleUser, "user", line)
		if err := call(ctx, agent, cfg.streamOptions(), publish, msg, out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error(ctx, err, log.KV{K: "msg", V: "call failed"})
		}
	}
}

// newAgent builds the ReAct agent described by cfg. Lifecycle notifications
// are logged at debug level before any other hook runs.
func newAgent(cfg config, client model.Client, logger telemetry.Logger) (*runtime.Agent, error) {
	registry, err := builtinTools(time.Now)
	if err != nil {
		return nil, err
	}
	opts := []react.Option{
		react.WithTools(registry),
		react.WithModel(cfg.Provider.Model),
		react.WithSystemPrompt(cfg.Agent.System),
		react.WithMaxIterations(cfg.Agent.MaxIterations),
		react.WithMaxTokens(cfg.Agent.MaxTokens),
		react.WithTemperature(cfg.Agent.Temperature),
		react.WithLogger(logger),
	}
	if cfg.Agent.ThinkingBudget > 0 {
		opts = append(opts, react.WithThinking(cfg.Agent.ThinkingBudget))
	}
	loop := react.New(cfg.Agent.Name, client, opts...)
	agent := runtime.New(cfg.Agent.Name, loop.Reply,
		runtime.WithLogger(logger),
		runtime.WithMetrics(telemetry.NewOtelMetrics()),
		runtime.WithTracer(telemetry.NewOtelTracer()),
	)
	if _, err := agent.RegisterHook(hooks.NewLogHook(logger), hooks.WithPriority(0), hooks.WithName("log")); err != nil {
		return nil, err
	}
	return agent, nil
}

// runFollow prints the events another agentcall process publishes to Pulse
// until interrupted.
func runFollow(ctx context.Context, cfg config, group string, out io.Writer) error {
	if cfg.Stream.RedisURL == "" {
		return errors.New("follow requires stream.redis_url")
	}
	streams, err := newPulseStreams(cfg.Stream)
	if err != nil {
		return err
	}
	defer func() { _ = streams.Close(context.Background()) }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	events, errs, cancel, err := streams.Follow(ctx, group)
	if err != nil {
		return err
	}
	defer cancel()
	log.Info(ctx, log.KV{K: "following", V: streams.StreamName()}, log.KV{K: "group", V: group})
	return follow(ctx, events, errs, &printer{out: out, incremental: cfg.Stream.Incremental})
}

// follow prints events until both channels close or ctx is done.
func follow(ctx context.Context, events <-chan stream.Event, errs <-chan error, p *printer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if ok && err != nil {
				return err
			}
			errs = nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.print(ev)
		}
	}
}

// call runs one streaming call and prints its events as they arrive.
func call(ctx context.Context, agent *runtime.Agent, opts stream.Options, publish stream.Sink, msg *model.Message, out io.Writer) error {
	r := stream.NewReader(ctx, func(ctx context.Context, sink stream.Sink) error {
		_, err := agent.StreamTo(ctx, opts, stream.Tee(sink, publish), msg)
		return err
	})
	defer r.Close()
	p := &printer{out: out, incremental: opts.Incremental}
	for {
		ev, ok, err := r.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return r.Err()
		}
		p.print(ev)
	}
}
