// Package rag defines the interfaces for the retrieval-augmented chat
// components: embedding, named-collection vector storage, per-collection
// retrieval handles, and reranking. Concrete implementations (Qdrant, the
// LLM reranker, etc.) satisfy these interfaces so the chat layer never
// depends on a specific backend.
package rag

import (
	"context"
)

// Document represents a unit of stored or retrieved knowledge — typically one
// chunk of a candidate's resume. Documents are immutable once chunked.
type Document struct {
	// ID is the unique identifier for this document chunk.
	ID string

	// Content is the raw text content of the chunk.
	Content string

	// Metadata holds key-value pairs attached at ingestion time. It must
	// include the attribution field "name" (the candidate's name) so answers
	// can cite their source.
	Metadata map[string]string

	// Score is the similarity score assigned during retrieval (0.0–1.0).
	// Zero value means the score was not computed.
	Score float32
}

// Name returns the attribution identifier carried in the document metadata,
// or "Unknown Candidate" when ingestion could not determine one.
func (d Document) Name() string {
	if n := d.Metadata["name"]; n != "" {
		return n
	}
	return "Unknown Candidate"
}

// Embedder converts text into dense vector embeddings. Document and query
// embedding are separate modes — backends may apply a different internal
// prompt to queries — but the returned vectors live in the same space and
// the two methods are interchangeable at the call site.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// EmbedDocuments converts a batch of document texts into embeddings.
	// The returned slice is parallel to the input slice.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery converts a single search query into an embedding.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// VectorStore persists named collections of embedded documents and performs
// similarity search within one collection.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// CreateCollection atomically creates a new collection holding the given
	// documents. The embeddings slice must be parallel to docs. The collection
	// either exists with all documents indexed after a nil return, or does not
	// exist at all: implementations must roll back on partial failure and
	// return a *PartialCreationError. An existing name is rejected with
	// ErrCollectionExists — names are never reused for a different document set.
	CreateCollection(ctx context.Context, name string, docs []Document, embeddings [][]float32) error

	// ListCollections enumerates the names of all collections currently in
	// the store, including ones created by other processes.
	ListCollections(ctx context.Context) ([]string, error)

	// Search performs a similarity search within one collection and returns
	// the top-k most relevant documents for the given query embedding.
	Search(ctx context.Context, collection string, queryEmbedding []float32, topK int) ([]Document, error)

	// Close releases any resources held by the store.
	Close() error
}

// Retriever is a bound capability to search one specific collection.
// Handles are constructed exclusively by the Registry; callers obtain them
// via Lookup and never build one directly.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the top-k most relevant documents for the given query.
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)

	// Collection returns the name of the collection this handle is bound to.
	Collection() string
}

// Reranker narrows a broad recall result down to a small high-precision set.
// Compress must not mutate candidates, must tolerate an empty candidate list
// (returning empty without error), and returns at most min(topN, len(candidates))
// documents ordered relevance-descending with ties broken by retrieval rank.
type Reranker interface {
	Compress(ctx context.Context, query string, candidates []Document, topN int) ([]Document, error)
}
