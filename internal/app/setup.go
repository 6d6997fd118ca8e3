package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/AyushKumarEntvin/Rag-Agent/db"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/chat"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/config"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/history"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/knowledge"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/log"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/observability"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/rag"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing first: Genkit's TracerProvider must be ready before Init.
	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool
	a.dbCleanup = dbCleanup

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Knowledge = knowledge.New(pool, embedder, logger)
	a.Retriever = rag.DefineRetriever(g, a.Knowledge)

	records, err := history.NewStore(cfg.HistoryDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening history store: %w", err)
	}
	a.History = records

	splitter, err := rag.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap, cfg.ChunkSeparator)
	if err != nil {
		return nil, fmt.Errorf("building splitter: %w", err)
	}
	a.Indexer = rag.NewIndexer(rag.NewLoader(logger), splitter, a.Knowledge, logger)

	chatSvc, err := chat.NewService(chat.Config{
		Assets:     a.Knowledge,
		Records:    records,
		NewSession: provideSessionFactory(a, cfg),
		Logger:     logger,
		MaxThreads: cfg.MaxThreads,
		WordDelay:  cfg.StreamDelay,
	})
	if err != nil {
		return nil, err
	}
	a.Chat = chatSvc

	return a, nil
}

// provideOtelShutdown sets up OTLP tracing before Genkit initialization.
// Must be called before provideGenkit to ensure TracerProvider is ready.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if !cfg.Tracing.Enabled {
		return func() {}
	}

	shutdown, err := observability.Setup(ctx, observability.Config{
		AgentHost:   cfg.Tracing.AgentHost,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		logger.Warn("setting up tracing, continuing untraced", "error", err)
		return func() {}
	}

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
// Every connection registers pgvector codecs so the knowledge store can
// bind and scan vector columns natively.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// provideGenkit initializes Genkit with the configured AI provider plugin.
// Supports googleai (default), ollama, and openai providers.
// Call ordering in Setup ensures tracing is set up first.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // googleai (and the gemini alias)
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		logger.Info("initialized Genkit with googleai provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the AI provider plugin.
// Each provider registers embedders differently:
//   - googleai: GoogleAIEmbedder(g, modelName)
//   - ollama: registered in provideGenkit, keyed by server address
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideSessionFactory returns the factory the chat service uses to
// bind a new thread to a retrieval session over one asset.
func provideSessionFactory(a *App, cfg *config.Config) chat.SessionFactory {
	modelName := cfg.FullModelName()
	genCfg := provideGenerationConfig(cfg)
	limiter := provideGenerationLimiter(cfg)

	return func(assetID uuid.UUID) (chat.Responder, error) {
		s, err := rag.NewSession(rag.SessionConfig{
			Genkit:    a.Genkit,
			Retriever: a.Retriever,
			AssetID:   assetID,
			ModelName: modelName,
			GenConfig: genCfg,
			TopK:      cfg.RAGTopK,
			Limiter:   limiter,
			Logger:    a.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("building retrieval session: %w", err)
		}
		return s, nil
	}
}

// provideGenerationConfig builds the provider-specific generation
// settings passed through ai.WithConfig on every model call.
func provideGenerationConfig(cfg *config.Config) any {
	switch cfg.Provider {
	case config.ProviderOllama, config.ProviderOpenAI:
		// Both plugins accept loosely typed config maps.
		return map[string]any{"temperature": cfg.Temperature}
	default:
		return &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(cfg.Temperature),
			MaxOutputTokens: int32(cfg.MaxTokens),
		}
	}
}

// provideGenerationLimiter paces outbound generation calls when
// generate_rpm is set. Free-tier Gemini keys in particular reject
// bursts well below their advertised quota.
func provideGenerationLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.GenerateRPM <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.GenerateRPM)), 1)
}
