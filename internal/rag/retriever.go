package rag

import (
	"context"
	"fmt"
)

// collectionRetriever implements Retriever for one named collection. It embeds
// the query at retrieval time and delegates similarity search to the store.
// Instances are built by the Registry only.
type collectionRetriever struct {
	// collection is the name this handle is bound to.
	collection string

	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// newCollectionRetriever binds a retrieval handle to one collection.
// defaultTopK sets the fallback result count when Retrieve is called with topK=0.
func newCollectionRetriever(collection string, embedder Embedder, store VectorStore, defaultTopK int) (*collectionRetriever, error) {
	if collection == "" {
		return nil, fmt.Errorf("rag: collection name must not be empty")
	}
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 20
	}
	return &collectionRetriever{
		collection:  collection,
		embedder:    embedder,
		store:       store,
		defaultTopK: defaultTopK,
	}, nil
}

// Collection returns the name of the bound collection.
func (r *collectionRetriever) Collection() string { return r.collection }

// Retrieve embeds the query and returns the top-k most relevant documents
// from the bound collection. If topK is 0 the defaultTopK configured at
// construction time is used.
func (r *collectionRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty vector for query")
	}

	docs, err := r.store.Search(ctx, r.collection, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search in %q failed: %w", r.collection, err)
	}

	return docs, nil
}
