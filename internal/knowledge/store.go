package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// VectorDimension is the embedding dimensionality of the chunks table.
// It must match the vector(768) column in db/migrations and the configured
// embedding model (text-embedding-004 produces 768-dimensional vectors).
const VectorDimension = 768

// searchTimeout bounds a single similarity query, embedding included.
const searchTimeout = 10 * time.Second

// Result is one retrieved chunk with its cosine similarity to the query.
type Result struct {
	Content    string
	Seq        int
	Similarity float64
}

// Store persists document chunks with their embeddings in PostgreSQL and
// answers similarity queries using pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store backed by the given pool and embedder.
//
// The pool must have pgvector codecs registered on its connections
// (pgxvector.RegisterTypes in an AfterConnect hook); app.Setup and
// testutil.SetupTestDB both do this.
func New(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		pool:     pool,
		embedder: embedder,
		logger:   logger,
	}
}

// CreateAsset registers a new asset under the given id.
// Chunks are attached separately with AddChunks.
func (s *Store) CreateAsset(ctx context.Context, id uuid.UUID, source string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO assets (id, source) VALUES ($1, $2)`, id, source)
	if err != nil {
		return fmt.Errorf("failed to create asset %s: %w", id, err)
	}

	s.logger.Debug("created asset", "asset_id", id, "source", source)
	return nil
}

// AssetExists reports whether an asset with the given id is indexed.
func (s *Store) AssetExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM assets WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check asset %s: %w", id, err)
	}

	return exists, nil
}

// AddChunks embeds the given texts and persists them as the asset's ordered
// chunks. Sequence numbers follow slice order. The embedder is called once
// for the whole batch, and all rows are written in a single transaction.
//
// An empty slice is a no-op: the asset stays indexed with zero chunks.
func (s *Store) AddChunks(ctx context.Context, assetID uuid.UUID, texts []string) (int, error) {
	if len(texts) == 0 {
		return 0, nil
	}

	// 1. Embed the whole batch in one request
	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return 0, fmt.Errorf("embedder returned %d embeddings for %d chunks", len(resp.Embeddings), len(texts))
	}

	rows := make([][]any, len(texts))
	for i, text := range texts {
		vec := resp.Embeddings[i].Embedding
		if len(vec) != VectorDimension {
			return 0, fmt.Errorf("chunk %d: embedding dimension %d, want %d", i, len(vec), VectorDimension)
		}
		rows[i] = []any{assetID, i, text, pgvector.NewVector(vec)}
	}

	// 2. Bulk insert inside a transaction
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("chunk insert rollback", "asset_id", assetID, "error", rbErr)
		}
	}()

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"chunks"},
		[]string{"asset_id", "seq", "content", "embedding"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert chunks for asset %s: %w", assetID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit chunks for asset %s: %w", assetID, err)
	}

	s.logger.Debug("added chunks", "asset_id", assetID, "count", copied)
	return int(copied), nil
}

// Search embeds the query and returns the asset's topK most similar chunks,
// ordered by descending cosine similarity. A missing asset or an asset with
// no chunks yields an empty result, not an error.
func (s *Store) Search(ctx context.Context, assetID uuid.UUID, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	resp, err := s.embedder.Embed(queryCtx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(query, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned for query")
	}

	queryVec := pgvector.NewVector(resp.Embeddings[0].Embedding)

	rows, err := s.pool.Query(queryCtx,
		`SELECT content, seq, 1 - (embedding <=> $2) AS similarity
		   FROM chunks
		  WHERE asset_id = $1
		  ORDER BY embedding <=> $2
		  LIMIT $3`,
		assetID, queryVec, topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Result])
	if err != nil {
		return nil, fmt.Errorf("failed to collect search results: %w", err)
	}

	return results, nil
}

// CountChunks returns the number of stored chunks for an asset.
func (s *Store) CountChunks(ctx context.Context, assetID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM chunks WHERE asset_id = $1`, assetID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks for asset %s: %w", assetID, err)
	}

	return count, nil
}

// DeleteAsset removes an asset and, through the FK cascade, all its chunks.
// Deleting an unknown asset is a no-op.
func (s *Store) DeleteAsset(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset %s: %w", id, err)
	}

	s.logger.Debug("deleted asset", "asset_id", id, "found", tag.RowsAffected() > 0)
	return nil
}
