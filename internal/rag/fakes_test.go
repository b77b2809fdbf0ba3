package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// fakeEmbedder produces deterministic 4-dimensional vectors from keyword
// counts so tests can rely on cosine-style ranking without a real model.
type fakeEmbedder struct {
	// failDocs forces EmbedDocuments to fail.
	failDocs bool
	// failQuery forces EmbedQuery to fail.
	failQuery bool

	mu sync.Mutex
	// docCalls counts EmbedDocuments invocations.
	docCalls int
}

// keywordAxes maps a tiny vocabulary onto vector dimensions.
var keywordAxes = []string{"alice", "bob", "golang", "python"}

func keywordVector(text string) []float32 {
	lower := strings.ToLower(text)
	vec := make([]float32, len(keywordAxes))
	for i, kw := range keywordAxes {
		vec[i] = float32(strings.Count(lower, kw))
	}
	return vec
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.docCalls++
	f.mu.Unlock()

	if f.failDocs {
		return nil, fmt.Errorf("fake embedder: document embedding down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = keywordVector(t)
	}
	return out, nil
}

// documentCalls reports how many times EmbedDocuments was invoked.
func (f *fakeEmbedder) documentCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docCalls
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, query string) ([]float32, error) {
	if f.failQuery {
		return nil, fmt.Errorf("fake embedder: query embedding down")
	}
	return keywordVector(query), nil
}

// fakeStore is an in-memory VectorStore with dot-product ranking. It honours
// the atomic-creation contract: a creation failure leaves no collection
// behind.
type fakeStore struct {
	mu sync.Mutex
	// collections maps name to stored documents and their vectors.
	collections map[string]fakeCollection
	// failCreate forces CreateCollection to fail after the existence check.
	failCreate bool
	// createCalls counts CreateCollection invocations.
	createCalls int
}

type fakeCollection struct {
	docs []Document
	vecs [][]float32
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: make(map[string]fakeCollection)}
}

func (s *fakeStore) CreateCollection(_ context.Context, name string, docs []Document, embeddings [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++

	if _, ok := s.collections[name]; ok {
		return fmt.Errorf("fake store: %q: %w", name, ErrCollectionExists)
	}
	if s.failCreate {
		return &PartialCreationError{Collection: name, Err: fmt.Errorf("fake store: upsert failed")}
	}

	stored := fakeCollection{
		docs: append([]Document(nil), docs...),
		vecs: append([][]float32(nil), embeddings...),
	}
	s.collections[name] = stored
	return nil
}

func (s *fakeStore) ListCollections(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *fakeStore) Search(_ context.Context, collection string, queryEmbedding []float32, topK int) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("fake store: collection %q not found", collection)
	}

	type scored struct {
		doc   Document
		score float32
	}
	results := make([]scored, 0, len(col.docs))
	for i, doc := range col.docs {
		var dot float32
		for j := range queryEmbedding {
			if j < len(col.vecs[i]) {
				dot += queryEmbedding[j] * col.vecs[i][j]
			}
		}
		doc.Score = dot
		results = append(results, scored{doc: doc, score: dot})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })

	if topK > len(results) {
		topK = len(results)
	}
	docs := make([]Document, 0, topK)
	for _, r := range results[:topK] {
		docs = append(docs, r.doc)
	}
	return docs, nil
}

func (s *fakeStore) Close() error { return nil }

// addCollection injects a collection directly, bypassing CreateCollection,
// to simulate out-of-process creation.
func (s *fakeStore) addCollection(name string, docs []Document, vecs [][]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[name] = fakeCollection{docs: docs, vecs: vecs}
}
