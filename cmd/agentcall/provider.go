package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"goa.design/agentcall/features/model/anthropic"
	"goa.design/agentcall/features/model/bedrock"
	"goa.design/agentcall/features/model/middleware"
	"goa.design/agentcall/features/model/openai"
	runlogmongo "goa.design/agentcall/features/runlog/mongo"
	clientsmongo "goa.design/agentcall/features/runlog/mongo/clients/mongo"
	pulsestream "goa.design/agentcall/features/stream/pulse"
	clientspulse "goa.design/agentcall/features/stream/pulse/clients/pulse"
	"goa.design/agentcall/runtime/agent/model"
	"goa.design/agentcall/runtime/agent/runlog"
	"goa.design/agentcall/runtime/agent/telemetry"
)

// newModelClient builds the configured provider client, wrapped with the
// adaptive rate limiter when a TPM budget is set.
func newModelClient(cfg providerConfig, logger telemetry.Logger) (model.Client, error) {
	var (
		client model.Client
		err    error
	)
	switch cfg.Name {
	case "anthropic":
		client, err = anthropic.NewFromAPIKey(os.Getenv(cfg.APIKeyEnv), cfg.Model)
	case "openai":
		client, err = openai.NewFromAPIKey(os.Getenv(cfg.APIKeyEnv), cfg.Model)
	case "bedrock":
		rt := bedrockruntime.New(bedrockruntime.Options{
			Region:      cfg.Region,
			Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(envCredentials)),
		})
		client, err = bedrock.New(bedrock.Options{
			Runtime:      bedrock.NewRuntime(rt),
			DefaultModel: cfg.Model,
			Logger:       logger,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Name, err)
	}
	if cfg.TPM > 0 {
		client = middleware.NewAdaptiveRateLimiter(context.Background(), nil, "", cfg.TPM, cfg.TPM*2).Wrap(client)
	}
	return client, nil
}

func envCredentials(context.Context) (aws.Credentials, error) {
	id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.Credentials{}, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}
	return aws.Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "environment",
	}, nil
}

// newPulseStreams connects to Redis and returns the Pulse publishing helper.
func newPulseStreams(cfg streamConfig) (*pulsestream.RuntimeStreams, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	pc, err := clientspulse.New(clientspulse.Options{Redis: redis.NewClient(opt), CloseRedis: true})
	if err != nil {
		return nil, err
	}
	return pulsestream.NewRuntimeStreams(pulsestream.RuntimeStreamsOptions{
		Client: pc,
		Sink:   pulsestream.Options{Stream: cfg.PulseStream},
	})
}

// newMongoRecorder connects to MongoDB and returns a lifecycle recorder
// together with a function disconnecting the client.
func newMongoRecorder(ctx context.Context, cfg runlogConfig) (*runlog.Recorder, func(context.Context) error, error) {
	mc, err := mongodriver.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	client, err := clientsmongo.New(clientsmongo.Options{Client: mc, Database: cfg.Database})
	if err != nil {
		_ = mc.Disconnect(ctx)
		return nil, nil, err
	}
	if err := client.Ping(ctx); err != nil {
		_ = mc.Disconnect(ctx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	store, err := runlogmongo.NewStore(client)
	if err != nil {
		_ = mc.Disconnect(ctx)
		return nil, nil, err
	}
	return runlog.NewRecorder(store), mc.Disconnect, nil
}
