package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Registry caches one retrieval handle per collection name. The vector store
// remains the source of truth for which collections exist; the registry is
// derived state that can be rebuilt at any time without touching the store.
// It tolerates collections created by other processes: Refresh picks them up,
// and Lookup retries one refresh before reporting a miss.
//
// A Registry is an explicitly owned object constructed once at process start.
// All methods are safe for concurrent use.
type Registry struct {
	// embedder is shared by every handle the registry builds.
	embedder Embedder

	// store is the backing vector store.
	store VectorStore

	// broadK is the default recall depth passed to new handles.
	broadK int

	// log is the structured logger for refresh and creation events.
	log *slog.Logger

	// mu guards handles and creating.
	mu sync.RWMutex

	// handles maps collection name to its cached retrieval handle.
	// Entries are never removed — stale reads against an out-of-band
	// deletion are acceptable, deletion is out of scope.
	handles map[string]Retriever

	// creating tracks collection names with an in-flight RegisterNew so two
	// concurrent creations of the same name exclude each other while
	// independent names proceed in parallel.
	creating map[string]struct{}
}

// NewRegistry constructs a Registry over the given embedder and store.
// broadK sets the default recall depth for handles built by this registry;
// zero selects the handle default.
func NewRegistry(embedder Embedder, store VectorStore, broadK int, log *slog.Logger) (*Registry, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		embedder: embedder,
		store:    store,
		broadK:   broadK,
		log:      log,
		handles:  make(map[string]Retriever),
		creating: make(map[string]struct{}),
	}, nil
}

// Refresh synchronizes the cache with the store: every collection name not
// yet cached gets a handle. Construction failure for one name is logged and
// skipped so it never aborts the refresh for the others. Existing entries are
// never evicted or replaced.
func (r *Registry) Refresh(ctx context.Context) error {
	names, err := r.store.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("rag: registry refresh: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		if _, ok := r.handles[name]; ok {
			continue
		}
		handle, err := newCollectionRetriever(name, r.embedder, r.store, r.broadK)
		if err != nil {
			r.log.Warn("registry: skipping collection, handle construction failed",
				slog.String("collection", name),
				slog.Any("error", err),
			)
			continue
		}
		r.handles[name] = handle
	}

	return nil
}

// Lookup returns the retrieval handle for name. On a cache miss it refreshes
// once — picking up collections created out-of-process — and fails with
// ErrUnknownCollection if the name is still absent. At most one handle is
// ever constructed per name.
func (r *Registry) Lookup(ctx context.Context, name string) (Retriever, error) {
	if name == "" {
		return nil, fmt.Errorf("rag: %w: empty name", ErrUnknownCollection)
	}

	r.mu.RLock()
	handle, ok := r.handles[name]
	r.mu.RUnlock()
	if ok {
		return handle, nil
	}

	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	handle, ok = r.handles[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return handle, nil
}

// Names returns the currently cached collection names, unordered.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handles))
	for name := range r.handles {
		names = append(names, name)
	}
	return names
}

// RegisterNew embeds docs, creates the collection in the store, and caches
// exactly one new handle for it. The store call completes fully before this
// method returns; on any failure no cache entry is added and the collection
// does not exist (CreateCollection rolls back partial state).
// Concurrent RegisterNew calls for the same name are mutually exclusive.
func (r *Registry) RegisterNew(ctx context.Context, name string, docs []Document) error {
	if name == "" {
		return fmt.Errorf("rag: register: collection name must not be empty")
	}
	if len(docs) == 0 {
		return fmt.Errorf("rag: register: collection %q needs at least one document", name)
	}

	r.mu.Lock()
	if _, ok := r.handles[name]; ok {
		r.mu.Unlock()
		return fmt.Errorf("rag: register %q: %w", name, ErrCollectionExists)
	}
	if _, ok := r.creating[name]; ok {
		r.mu.Unlock()
		return fmt.Errorf("rag: register %q: %w", name, ErrCreationInProgress)
	}
	r.creating[name] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.creating, name)
		r.mu.Unlock()
	}()

	// The store may hold a collection created out-of-band that no handle
	// exists for yet. Check before paying for an embedding pass.
	existing, err := r.store.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("rag: register %q: listing collections: %w", name, err)
	}
	for _, n := range existing {
		if n == name {
			return fmt.Errorf("rag: register %q: %w", name, ErrCollectionExists)
		}
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	embeddings, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("rag: register %q: embedding failed: %w", name, err)
	}
	if len(embeddings) != len(docs) {
		return fmt.Errorf("rag: register %q: expected %d embeddings, got %d", name, len(docs), len(embeddings))
	}

	if err := r.store.CreateCollection(ctx, name, docs, embeddings); err != nil {
		return fmt.Errorf("rag: register %q: %w", name, err)
	}

	handle, err := newCollectionRetriever(name, r.embedder, r.store, r.broadK)
	if err != nil {
		// The collection exists and is fully indexed; the next Refresh will
		// retry handle construction.
		return fmt.Errorf("rag: register %q: handle construction failed: %w", name, err)
	}

	r.mu.Lock()
	r.handles[name] = handle
	r.mu.Unlock()

	r.log.Info("registry: collection registered",
		slog.String("collection", name),
		slog.Int("documents", len(docs)),
	)
	return nil
}
