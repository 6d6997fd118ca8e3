// Package knowledge provides the vector-backed retrieval index.
//
// The knowledge package stores document chunks and their embeddings in
// PostgreSQL with the pgvector extension, and answers similarity queries
// used to ground chat answers in indexed documents.
//
// # Overview
//
// Every indexed document is an asset. Ingestion splits the document into
// ordered chunks, embeds each chunk, and persists both under the asset's
// id. Retrieval embeds the query and ranks chunks of a single asset by
// cosine similarity.
//
//	Document text
//	     |
//	     v
//	Chunks (ordered, overlapping)
//	     |
//	     v
//	Embedding Generation (via ai.Embedder)
//	     |
//	     v
//	Vector Storage (PostgreSQL + pgvector)
//	     |
//	     | (when searching)
//	     v
//	Query Embedding -> cosine similarity -> ranked chunks
//
// # Store Operations
//
//	CreateAsset(ctx, id, source)        - Register a new asset
//	AssetExists(ctx, id)                - Check whether an asset is indexed
//	AddChunks(ctx, assetID, texts)      - Embed and persist ordered chunks
//	Search(ctx, assetID, query, topK)   - Rank an asset's chunks against a query
//	CountChunks(ctx, assetID)           - Number of stored chunks for an asset
//	DeleteAsset(ctx, id)                - Remove an asset and its chunks
//
// Search is scoped to one asset: a chat thread answers questions about the
// document it was started for, never across documents.
//
// # Schema
//
// The two tables live in db/migrations and are applied on startup:
//
//	assets  (id, source, created_at)
//	chunks  (id, asset_id, seq, content, embedding vector(768), created_at)
//
// Chunk embeddings carry an HNSW cosine index. The embedding column is
// fixed at VectorDimension dims; the store rejects embedders that produce
// anything else.
//
// # Concurrency
//
// Store is safe for concurrent use. All state lives in PostgreSQL; the
// struct itself holds only the pool, the embedder, and a logger.
package knowledge
