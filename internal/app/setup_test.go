package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/AyushKumarEntvin/Rag-Agent/internal/config"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/knowledge"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/log"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/rag"
	"github.com/firebase/genkit/go/genkit"
)

func TestProvideGenerationConfig(t *testing.T) {
	t.Run("googleai gets typed config", func(t *testing.T) {
		cfg := &config.Config{Provider: config.ProviderGoogleAI, Temperature: 0.3, MaxTokens: 512}

		got, ok := provideGenerationConfig(cfg).(*genai.GenerateContentConfig)
		require.True(t, ok, "googleai config should be *genai.GenerateContentConfig")
		require.NotNil(t, got.Temperature)
		assert.InDelta(t, 0.3, float64(*got.Temperature), 1e-6)
		assert.Equal(t, int32(512), got.MaxOutputTokens)
	})

	t.Run("ollama gets config map", func(t *testing.T) {
		cfg := &config.Config{Provider: config.ProviderOllama, Temperature: 0.9}

		got, ok := provideGenerationConfig(cfg).(map[string]any)
		require.True(t, ok, "ollama config should be a map")
		assert.InDelta(t, 0.9, float64(got["temperature"].(float32)), 1e-6)
	})
}

func TestProvideGenerationLimiter(t *testing.T) {
	assert.Nil(t, provideGenerationLimiter(&config.Config{GenerateRPM: 0}))
	assert.Nil(t, provideGenerationLimiter(&config.Config{GenerateRPM: -5}))

	limiter := provideGenerationLimiter(&config.Config{GenerateRPM: 60})
	require.NotNil(t, limiter)
	// 60 requests/minute is one token per second.
	assert.InDelta(t, 1.0, float64(limiter.Limit()), 1e-6)
}

func TestProvideOtelShutdown_Disabled(t *testing.T) {
	cfg := &config.Config{}

	cleanup := provideOtelShutdown(context.Background(), cfg, log.NewNop())
	require.NotNil(t, cleanup)
	cleanup() // must be a no-op, not a panic
}

func TestAppClose_PartiallyInitialized(t *testing.T) {
	var dbClosed, otelClosed bool
	a := &App{
		dbCleanup:   func() { dbClosed = true },
		otelCleanup: func() { otelClosed = true },
	}

	require.NoError(t, a.Close())
	assert.True(t, dbClosed)
	assert.True(t, otelClosed)

	// Second Close is a no-op.
	require.NoError(t, a.Close())
}

func TestAppClose_ZeroValue(t *testing.T) {
	a := &App{}
	assert.NoError(t, a.Close())
}

type stubSearchStore struct{}

func (stubSearchStore) Search(context.Context, uuid.UUID, string, int) ([]knowledge.Result, error) {
	return nil, nil
}

func TestProvideSessionFactory(t *testing.T) {
	g := genkit.Init(context.Background())
	require.NotNil(t, g)

	a := &App{
		Genkit:    g,
		Retriever: rag.DefineRetriever(g, stubSearchStore{}),
		Logger:    log.NewNop(),
	}
	cfg := &config.Config{
		Provider:    config.ProviderGoogleAI,
		ModelName:   "gemini-2.5-flash",
		Temperature: 0.7,
		MaxTokens:   1024,
		RAGTopK:     4,
	}

	factory := provideSessionFactory(a, cfg)
	responder, err := factory(uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, responder)

	session, ok := responder.(*rag.Session)
	require.True(t, ok, "factory should build *rag.Session, got %T", responder)
	assert.NotNil(t, session)
}
