package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"portfolio-chat/internal/config"
	"portfolio-chat/internal/integrations/anthropic"
	"portfolio-chat/internal/integrations/openai"
	"portfolio-chat/internal/integrations/paramstore"
	"portfolio-chat/internal/knowledge"
	"portfolio-chat/internal/metrics"
	"portfolio-chat/internal/repository"
	"portfolio-chat/internal/retrieval"
	"portfolio-chat/internal/usecase"
)

const (
	groqBaseURL   = "https://api.groq.com/openai/v1"
	groqModel     = "llama-3.1-8b-instant"
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	geminiModel   = "gemini-1.5-flash"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      config.Config
	chat     *usecase.ChatService
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	closers  []func() error
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			slog.Warn("close failed", "err", err)
		}
	}
}

func setupLogger(env config.Environment) {
	var h slog.Handler
	if env.IsProduction() {
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(h))
}

// needsAWS reports whether any component talks to AWS.
func needsAWS(cfg config.Config) bool {
	if cfg.Session.Backend == config.BackendDynamoDB {
		return true
	}
	refs := []string{
		cfg.Knowledge.ProfileSource,
		cfg.Knowledge.ProjectsSource,
		cfg.Retrieval.ResumeSource,
		embeddingKeyRef(cfg),
		cfg.LLM.APIKey(),
	}
	for _, r := range refs {
		if paramstore.IsRef(r) {
			return true
		}
	}
	return false
}

func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	// ---- AWS SDK config ----
	var (
		params paramstore.Getter
		dynamo *awsdynamodb.Client
	)
	if needsAWS(cfg) {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, fmt.Errorf("create SSM client: %w", err)
		}
		params = ps
		dynamo = awsdynamodb.NewFromConfig(awsCfg)
	}

	// ---- Knowledge and retrieval ----
	k := knowledge.NewLoader(params).Load(ctx, cfg.Knowledge.ProfileSource, cfg.Knowledge.ProjectsSource)
	retriever := buildRetriever(ctx, cfg, params)

	// ---- Generator ----
	generator, err := buildGenerator(cfg.LLM, params)
	if err != nil {
		return nil, err
	}

	// ---- Sessions ----
	sessions, err := a.buildSessions(ctx, cfg.Session, dynamo)
	if err != nil {
		return nil, err
	}

	engine, err := usecase.NewEngine(k, retriever, generator,
		usecase.WithRecorder(a.metrics),
		usecase.WithTopK(cfg.Retrieval.TopK),
		usecase.WithPromptTemplate(cfg.Knowledge.PromptTemplate),
	)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	a.chat, err = usecase.NewChatService(engine, sessions, cfg.Chat.MaxMessageLength)
	if err != nil {
		return nil, fmt.Errorf("create chat service: %w", err)
	}
	return a, nil
}

// embeddingKeyRef returns the credential used for embeddings. The OpenAI key
// serves when no dedicated embedding key is set.
func embeddingKeyRef(cfg config.Config) string {
	if cfg.Retrieval.EmbeddingAPIKey != "" {
		return cfg.Retrieval.EmbeddingAPIKey
	}
	return cfg.LLM.OpenAIKey
}

// buildRetriever indexes the resume. Any failure leaves the service running
// with an index that always reports unavailable.
func buildRetriever(ctx context.Context, cfg config.Config, params paramstore.Getter) usecase.ContextRetriever {
	key, err := paramstore.ResolveSecret(ctx, params, embeddingKeyRef(cfg))
	if err != nil {
		slog.Warn("embedding credentials unavailable, resume retrieval disabled", "err", err)
		return retrieval.Unavailable{Reason: err}
	}

	embed := retrieval.OpenAIEmbedding(retrieval.NewOpenAIClient(key, cfg.Retrieval.EmbeddingURL), cfg.Retrieval.EmbeddingModel)
	buildCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	ix, err := retrieval.Build(buildCtx, params, cfg.Retrieval.ResumeSource, embed, retrieval.Options{
		ChunkSize:    cfg.Retrieval.ChunkSize,
		ChunkOverlap: cfg.Retrieval.ChunkOverlap,
	})
	if err != nil {
		slog.Warn("resume index not built, resume retrieval disabled", "source", cfg.Retrieval.ResumeSource, "err", err)
		return retrieval.Unavailable{Reason: err}
	}
	return ix
}

// buildGenerator selects the provider client. A provider without a
// configured key yields a generator that always fails, so only generated
// replies degrade.
func buildGenerator(cfg config.LLMConfig, params paramstore.Getter) (usecase.Generator, error) {
	keyRef := cfg.APIKey()
	if keyRef == "" {
		slog.Warn("no API key configured for LLM provider, generated replies disabled", "provider", cfg.Provider)
		return usecase.UnavailableGenerator{Reason: fmt.Errorf("no API key for provider %s", cfg.Provider)}, nil
	}
	resolve := func(ctx context.Context) (string, error) {
		return paramstore.ResolveSecret(ctx, params, keyRef)
	}

	if cfg.Provider == config.ProviderAnthropic {
		opts := []anthropic.Option{
			anthropic.WithModel(cfg.Model),
			anthropic.WithMaxTokens(cfg.MaxTokens),
			anthropic.WithTemperature(cfg.Temperature),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		c, err := anthropic.NewClient(resolve, opts...)
		if err != nil {
			return nil, fmt.Errorf("create Anthropic client: %w", err)
		}
		return c, nil
	}

	baseURL, model := openai.DefaultBaseURL, openai.DefaultModel
	switch cfg.Provider {
	case config.ProviderGroq:
		baseURL, model = groqBaseURL, groqModel
	case config.ProviderGemini:
		baseURL, model = geminiBaseURL, geminiModel
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		model = cfg.Model
	}
	c, err := openai.NewClient(resolve,
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
		openai.WithTemperature(cfg.Temperature),
		openai.WithMaxTokens(cfg.MaxTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}
	return c, nil
}

func (a *app) buildSessions(ctx context.Context, cfg config.SessionConfig, dynamo *awsdynamodb.Client) (usecase.SessionStore, error) {
	switch cfg.Backend {
	case config.BackendDynamoDB:
		if dynamo == nil {
			return nil, errors.New("dynamodb backend selected without AWS config")
		}
		s, err := repository.NewDynamoStore(dynamo, cfg.Table, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("create session store: %w", err)
		}
		return s, nil
	case config.BackendRedis:
		rdb, err := repository.NewRedisClient(ctx, repository.RedisConfig{
			URL:          cfg.RedisURL,
			ReadTimeout:  cfg.RedisReadTimeout,
			WriteTimeout: cfg.RedisWriteTimeout,
			DialTimeout:  cfg.RedisDialTimeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		s, err := repository.NewRedisStore(rdb, cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("create session store: %w", err)
		}
		return s, nil
	default:
		slog.Info("using in-memory session store; sessions are lost on restart")
		return repository.NewMemoryStore(), nil
	}
}
