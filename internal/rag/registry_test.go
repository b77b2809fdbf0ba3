package rag

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// testDocs returns two resume chunks with attribution metadata, one for each
// of two distinct candidates.
func testDocs() []Document {
	return []Document{
		{
			ID:       "11111111-1111-1111-1111-111111111111",
			Content:  "Alice is a senior golang engineer with ten years of experience.",
			Metadata: map[string]string{"name": "alice", "candidate_id": "a1"},
		},
		{
			ID:       "22222222-2222-2222-2222-222222222222",
			Content:  "Bob is a junior python developer.",
			Metadata: map[string]string{"name": "bob", "candidate_id": "b2"},
		},
	}
}

func newTestRegistry(t *testing.T, store *fakeStore, emb *fakeEmbedder) *Registry {
	t.Helper()
	reg, err := NewRegistry(emb, store, 20, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func TestRegistry_RegisterNewThenLookup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFakeStore()
	reg := newTestRegistry(t, store, &fakeEmbedder{})

	if err := reg.RegisterNew(ctx, "c1", testDocs()); err != nil {
		t.Fatalf("register: %v", err)
	}

	handle, err := reg.Lookup(ctx, "c1")
	if err != nil {
		t.Fatalf("lookup after register: %v", err)
	}
	if handle.Collection() != "c1" {
		t.Errorf("handle bound to %q, want c1", handle.Collection())
	}

	docs, err := handle.Retrieve(ctx, "Tell me about Alice", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(docs) == 0 || docs[0].Metadata["name"] != "alice" {
		t.Errorf("expected the alice document ranked first, got %+v", docs)
	}
}

func TestRegistry_LookupUnknownCollection(t *testing.T) {
	t.Parallel()
	reg := newTestRegistry(t, newFakeStore(), &fakeEmbedder{})

	_, err := reg.Lookup(context.Background(), "missing")
	if !errors.Is(err, ErrUnknownCollection) {
		t.Fatalf("want ErrUnknownCollection, got %v", err)
	}
}

func TestRegistry_LookupRefreshesOnMiss(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFakeStore()
	reg := newTestRegistry(t, store, &fakeEmbedder{})

	// Simulate a collection created by another process after the registry
	// was constructed.
	docs := testDocs()
	store.addCollection("external", docs, [][]float32{
		keywordVector(docs[0].Content),
		keywordVector(docs[1].Content),
	})

	handle, err := reg.Lookup(ctx, "external")
	if err != nil {
		t.Fatalf("lookup should refresh and find out-of-band collection: %v", err)
	}
	if handle.Collection() != "external" {
		t.Errorf("handle bound to %q, want external", handle.Collection())
	}
}

func TestRegistry_LookupReturnsSameHandle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFakeStore()
	reg := newTestRegistry(t, store, &fakeEmbedder{})

	if err := reg.RegisterNew(ctx, "c1", testDocs()); err != nil {
		t.Fatalf("register: %v", err)
	}

	h1, err := reg.Lookup(ctx, "c1")
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if err := reg.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	h2, err := reg.Lookup(ctx, "c1")
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if h1 != h2 {
		t.Error("refresh must not rebuild an already cached handle")
	}
}

func TestRegistry_RegisterFailureLeavesNoState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFakeStore()
	store.failCreate = true
	reg := newTestRegistry(t, store, &fakeEmbedder{})

	err := reg.RegisterNew(ctx, "doomed", testDocs())
	var partial *PartialCreationError
	if !errors.As(err, &partial) {
		t.Fatalf("want PartialCreationError, got %v", err)
	}

	if _, err := reg.Lookup(ctx, "doomed"); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("failed creation must not leave a cached handle, got %v", err)
	}
	names, _ := store.ListCollections(ctx)
	if len(names) != 0 {
		t.Errorf("failed creation must not leave a store collection, got %v", names)
	}
}

func TestRegistry_RegisterEmbeddingFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFakeStore()
	reg := newTestRegistry(t, store, &fakeEmbedder{failDocs: true})

	if err := reg.RegisterNew(ctx, "c1", testDocs()); err == nil {
		t.Fatal("expected embedding failure to propagate")
	}
	if store.createCalls != 0 {
		t.Error("store must not be touched when embedding fails")
	}
}

func TestRegistry_RegisterDuplicateName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := newTestRegistry(t, newFakeStore(), &fakeEmbedder{})

	if err := reg.RegisterNew(ctx, "c1", testDocs()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.RegisterNew(ctx, "c1", testDocs()); !errors.Is(err, ErrCollectionExists) {
		t.Fatalf("want ErrCollectionExists, got %v", err)
	}
}

// blockingEmbedder parks its first EmbedDocuments call until released so a
// test can hold a RegisterNew in flight. Later calls pass straight through.
type blockingEmbedder struct {
	fakeEmbedder
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	var first bool
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
	}
	return b.fakeEmbedder.EmbedDocuments(ctx, texts)
}

func TestRegistry_RegisterSameNameInFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFakeStore()
	emb := &blockingEmbedder{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	reg, err := NewRegistry(emb, store, 20, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- reg.RegisterNew(ctx, "c1", testDocs()) }()
	<-emb.entered

	// Same name while the first creation is parked in the embedder.
	if err := reg.RegisterNew(ctx, "c1", testDocs()); !errors.Is(err, ErrCreationInProgress) {
		t.Fatalf("want ErrCreationInProgress, got %v", err)
	}

	// A distinct name must not be serialized behind it.
	if err := reg.RegisterNew(ctx, "c2", testDocs()); err != nil {
		t.Fatalf("independent name blocked by in-flight creation: %v", err)
	}

	close(emb.release)
	if err := <-done; err != nil {
		t.Fatalf("first register after release: %v", err)
	}
	if _, err := reg.Lookup(ctx, "c1"); err != nil {
		t.Errorf("lookup after completed creation: %v", err)
	}
}

func TestRegistry_RegisterExistingOutOfBandSkipsEmbedding(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFakeStore()
	emb := &fakeEmbedder{}
	reg := newTestRegistry(t, store, emb)

	// The collection exists in the store but has no cached handle.
	docs := testDocs()
	store.addCollection("external", docs, [][]float32{
		keywordVector(docs[0].Content),
		keywordVector(docs[1].Content),
	})

	err := reg.RegisterNew(ctx, "external", testDocs())
	if !errors.Is(err, ErrCollectionExists) {
		t.Fatalf("want ErrCollectionExists, got %v", err)
	}
	if calls := emb.documentCalls(); calls != 0 {
		t.Errorf("name taken out-of-band must be rejected before embedding, got %d embed calls", calls)
	}
}

func TestRegistry_RegisterValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	reg := newTestRegistry(t, newFakeStore(), &fakeEmbedder{})

	if err := reg.RegisterNew(ctx, "", testDocs()); err == nil {
		t.Error("empty name must be rejected")
	}
	if err := reg.RegisterNew(ctx, "c1", nil); err == nil {
		t.Error("empty document set must be rejected")
	}
}

func TestRegistry_ConcurrentLookups(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFakeStore()
	reg := newTestRegistry(t, store, &fakeEmbedder{})

	for _, name := range []string{"c1", "c2", "c3"} {
		docs := testDocs()
		store.addCollection(name, docs, [][]float32{
			keywordVector(docs[0].Content),
			keywordVector(docs[1].Content),
		})
	}

	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for i := 0; i < 10; i++ {
		for _, name := range []string{"c1", "c2", "c3"} {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				if _, err := reg.Lookup(ctx, name); err != nil {
					errs <- err
				}
			}(name)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent lookup: %v", err)
	}
}

func TestRegistry_NamesAfterRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newFakeStore()
	reg := newTestRegistry(t, store, &fakeEmbedder{})

	docs := testDocs()
	store.addCollection("c1", docs, [][]float32{
		keywordVector(docs[0].Content),
		keywordVector(docs[1].Content),
	})

	if err := reg.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	names := reg.Names()
	if len(names) != 1 || names[0] != "c1" {
		t.Errorf("want [c1], got %v", names)
	}
}
