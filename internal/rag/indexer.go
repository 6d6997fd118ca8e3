package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// IndexStore is the slice of the knowledge store the indexer writes to.
type IndexStore interface {
	CreateAsset(ctx context.Context, id uuid.UUID, source string) error
	AddChunks(ctx context.Context, assetID uuid.UUID, texts []string) (int, error)
	DeleteAsset(ctx context.Context, id uuid.UUID) error
}

// IndexResult summarizes one completed ingestion.
type IndexResult struct {
	AssetID  uuid.UUID
	Chunks   int
	Chars    int // runes of extracted text
	Duration time.Duration
}

// Indexer runs the ingestion pipeline: load a document, split it into
// chunks and persist them as one asset.
type Indexer struct {
	loader   *Loader
	splitter *Splitter
	store    IndexStore
	logger   *slog.Logger
}

// NewIndexer wires the pipeline stages together.
func NewIndexer(loader *Loader, splitter *Splitter, store IndexStore, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{loader: loader, splitter: splitter, store: store, logger: logger}
}

// Process ingests the document at source and returns the stored asset.
// A failure after the asset row was created removes the row again so no
// half-indexed document lingers.
func (idx *Indexer) Process(ctx context.Context, source string) (*IndexResult, error) {
	start := time.Now()

	text, err := idx.loader.Load(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}

	chunks := idx.splitter.Split(text)

	assetID := uuid.New()
	if err := idx.store.CreateAsset(ctx, assetID, source); err != nil {
		return nil, fmt.Errorf("creating asset: %w", err)
	}

	stored, err := idx.store.AddChunks(ctx, assetID, chunks)
	if err != nil {
		if cleanupErr := idx.store.DeleteAsset(ctx, assetID); cleanupErr != nil {
			idx.logger.Warn("failed to clean up asset after indexing error",
				slog.String("asset_id", assetID.String()),
				slog.String("error", cleanupErr.Error()),
			)
		}
		return nil, fmt.Errorf("storing chunks: %w", err)
	}

	result := &IndexResult{
		AssetID:  assetID,
		Chunks:   stored,
		Chars:    utf8.RuneCountInString(text),
		Duration: time.Since(start),
	}

	idx.logger.Info("document indexed",
		slog.String("asset_id", assetID.String()),
		slog.String("source", source),
		slog.Int("chunks", result.Chunks),
		slog.Duration("duration", result.Duration),
	)
	return result, nil
}

// Remove deletes an indexed asset and all its chunks.
func (idx *Indexer) Remove(ctx context.Context, assetID uuid.UUID) error {
	if err := idx.store.DeleteAsset(ctx, assetID); err != nil {
		return fmt.Errorf("removing asset: %w", err)
	}
	idx.logger.Info("document removed", slog.String("asset_id", assetID.String()))
	return nil
}
