package rag

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// VectorSize overrides the embedding dimensionality used when creating a
	// collection. If zero, the size is derived from the first embedding.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance. Each CVChat
// collection maps to one Qdrant collection of the same name.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore and returns a ready-to-use
// VectorStore. Collections are created on demand via CreateCollection.
func NewQdrantStore(cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

// Client exposes the underlying gRPC client for health probes.
func (s *QdrantStore) Client() *qdrant.Client { return s.client }

// CreateCollection atomically creates a named collection holding docs.
// The embeddings slice must be parallel to docs. If the upsert fails after the
// Qdrant collection was created, the collection is deleted again so a
// half-indexed collection is never visible to search; the failure is reported
// as a *PartialCreationError.
func (s *QdrantStore) CreateCollection(ctx context.Context, name string, docs []Document, embeddings [][]float32) error {
	if name == "" {
		return fmt.Errorf("qdrant: collection name must not be empty")
	}
	if len(docs) == 0 {
		return fmt.Errorf("qdrant: collection %q needs at least one document", name)
	}
	if len(docs) != len(embeddings) {
		return fmt.Errorf("qdrant: %d documents but %d embeddings for collection %q", len(docs), len(embeddings), name)
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return fmt.Errorf("qdrant: %q: %w", name, ErrCollectionExists)
	}

	size := s.cfg.VectorSize
	if size == 0 {
		size = uint64(len(embeddings[0]))
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     size,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", name, err)
	}

	if err := s.upsert(ctx, name, docs, embeddings); err != nil {
		// Roll back so the name stays free and searches never see a
		// partially indexed collection.
		if delErr := s.client.DeleteCollection(ctx, name); delErr != nil {
			slog.Error("qdrant: rollback of partial collection failed",
				slog.String("collection", name),
				slog.Any("error", delErr),
			)
		}
		return &PartialCreationError{Collection: name, Err: err}
	}

	return nil
}

// upsert writes all document points into the named collection. Documents
// without an ID get a deterministic one derived from their position, so
// re-creating the same collection never duplicates points.
func (s *QdrantStore) upsert(ctx context.Context, collection string, docs []Document, embeddings [][]float32) error {
	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		payload := map[string]interface{}{
			"content": doc.Content,
		}
		for k, v := range doc.Metadata {
			payload[k] = v
		}

		id := doc.ID
		if id == "" {
			// Qdrant point IDs must be UUIDs; 32 hex chars is the simple form.
			sum := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", collection, i)))
			id = fmt.Sprintf("%x", sum[:16])
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(id),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert into %q failed: %w", collection, err)
	}

	return nil
}

// ListCollections enumerates all collection names currently in Qdrant,
// including collections created by other processes.
func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("qdrant: list collections failed: %w", err)
	}
	return names, nil
}

// Search performs a cosine similarity search within one collection and
// returns the top-k results.
func (s *QdrantStore) Search(ctx context.Context, collection string, queryEmbedding []float32, topK int) ([]Document, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search in %q failed: %w", collection, err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		doc := Document{
			ID:       r.Id.GetUuid(),
			Score:    r.Score,
			Metadata: make(map[string]string),
		}
		if p := r.Payload; p != nil {
			if v, ok := p["content"]; ok {
				doc.Content = v.GetStringValue()
			}
			for k, v := range p {
				if k != "content" {
					doc.Metadata[k] = v.GetStringValue()
				}
			}
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
