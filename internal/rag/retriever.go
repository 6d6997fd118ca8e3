package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/AyushKumarEntvin/Rag-Agent/internal/knowledge"
)

// Retrieval depth bounds. Out-of-range requests fall back to the
// default instead of erroring.
const (
	DefaultTopK = 4
	MaxTopK     = 10
)

// RetrieverOptions scope a retrieval to one indexed asset.
type RetrieverOptions struct {
	AssetID uuid.UUID `json:"assetId"`
	K       int       `json:"k,omitempty"`
}

// SearchStore is the slice of the knowledge store retrieval reads from.
type SearchStore interface {
	Search(ctx context.Context, assetID uuid.UUID, query string, topK int) ([]knowledge.Result, error)
}

// DefineRetriever registers the document retriever on the Genkit
// instance. Requests must carry *RetrieverOptions with an asset id so
// results never leak across documents.
func DefineRetriever(g *genkit.Genkit, store SearchStore) ai.Retriever {
	return genkit.DefineRetriever(g, "document-retriever", nil,
		func(ctx context.Context, req *ai.RetrieverRequest) (*ai.RetrieverResponse, error) {
			opts, ok := req.Options.(*RetrieverOptions)
			if !ok || opts == nil {
				return nil, fmt.Errorf("retriever requires *RetrieverOptions, got %T", req.Options)
			}
			if opts.AssetID == uuid.Nil {
				return nil, errors.New("retriever options missing asset id")
			}

			query := queryText(req.Query)
			if query == "" {
				return nil, errors.New("retriever query is empty")
			}

			k := opts.K
			if k <= 0 || k > MaxTopK {
				k = DefaultTopK
			}

			results, err := store.Search(ctx, opts.AssetID, query, k)
			if err != nil {
				return nil, fmt.Errorf("searching chunks: %w", err)
			}

			docs := make([]*ai.Document, 0, len(results))
			for _, res := range results {
				docs = append(docs, ai.DocumentFromText(res.Content, map[string]any{
					"seq":        res.Seq,
					"similarity": res.Similarity,
				}))
			}
			return &ai.RetrieverResponse{Documents: docs}, nil
		})
}

// queryText flattens the text parts of the query document.
func queryText(doc *ai.Document) string {
	if doc == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range doc.Content {
		if part != nil && part.Kind == ai.PartText {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
