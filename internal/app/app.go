// Package app wires the application together: configuration, database
// pool, Genkit provider plugins, the knowledge and history stores, the
// ingestion pipeline, and the chat engine. Entry points (serve, index)
// call Setup once and work with the returned App.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AyushKumarEntvin/Rag-Agent/internal/chat"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/config"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/history"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/knowledge"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/log"
	"github.com/AyushKumarEntvin/Rag-Agent/internal/rag"
)

// App is the application container. All fields are initialized by Setup
// and valid until Close.
type App struct {
	Config *config.Config
	Logger log.Logger

	DBPool    *pgxpool.Pool
	Genkit    *genkit.Genkit
	Embedder  ai.Embedder
	Retriever ai.Retriever

	Knowledge *knowledge.Store
	History   *history.Store
	Indexer   *rag.Indexer
	Chat      *chat.Service

	otelCleanup func()
	dbCleanup   func()
}

// Close releases the App's resources in reverse initialization order.
// Safe to call on a partially initialized App.
func (a *App) Close() error {
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}

	// Flushes pending spans; runs after the pool is closed so the final
	// database spans are already ended.
	if a.otelCleanup != nil {
		a.otelCleanup()
		a.otelCleanup = nil
	}

	return nil
}
