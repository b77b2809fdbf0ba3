package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/54b3r/cvchat-go/internal/logging"
	"github.com/54b3r/cvchat-go/internal/rag"
)

// handleCollectionsList handles GET /api/collections.
func (s *Server) handleCollectionsList(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	sort.Strings(names)
	writeJSON(w, http.StatusOK, collectionsResponse{Collections: names})
}

// handleCollectionsRefresh handles POST /api/collections/refresh. It picks up
// collections created out-of-process and returns the resulting list.
func (s *Server) handleCollectionsRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Refresh(r.Context()); err != nil {
		logging.FromContext(r.Context()).Error("collection refresh failed", slog.Any("error", err))
		http.Error(w, "collection refresh failed", http.StatusInternalServerError)
		return
	}
	names := s.registry.Names()
	sort.Strings(names)
	writeJSON(w, http.StatusOK, collectionsResponse{Collections: names})
}

// handleCollectionsCreate handles POST /api/collections. It indexes the
// supplied resume chunks as a new collection and clears every chat session so
// no stale history survives the talent pool change.
func (s *Server) handleCollectionsCreate(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Documents) == 0 {
		http.Error(w, "documents are required", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = generateCollectionName()
	}

	docs := make([]rag.Document, len(req.Documents))
	for i, d := range req.Documents {
		if strings.TrimSpace(d.Content) == "" {
			http.Error(w, fmt.Sprintf("document %d has empty content", i), http.StatusBadRequest)
			return
		}
		docs[i] = rag.Document{Content: d.Content, Metadata: d.Metadata}
	}

	log := logging.FromContext(r.Context())

	if err := s.registry.RegisterNew(r.Context(), name, docs); err != nil {
		switch {
		case errors.Is(err, rag.ErrCollectionExists), errors.Is(err, rag.ErrCreationInProgress):
			s.metrics.collectionCreatesTotal.WithLabelValues("conflict").Inc()
			http.Error(w, fmt.Sprintf("collection %q already exists or is being created", name), http.StatusConflict)
		default:
			log.Error("collection create failed",
				slog.String("collection", name),
				slog.Any("error", err),
			)
			s.metrics.collectionCreatesTotal.WithLabelValues("error").Inc()
			http.Error(w, "collection creation failed", http.StatusInternalServerError)
		}
		return
	}

	// A new talent pool invalidates every running conversation.
	s.chatter.ClearAllSessions()

	s.metrics.collectionCreatesTotal.WithLabelValues("ok").Inc()
	s.metrics.collectionDocuments.Observe(float64(len(docs)))

	log.Info("collection created",
		slog.String("collection", name),
		slog.Int("documents", len(docs)),
	)
	writeJSON(w, http.StatusCreated, createCollectionResponse{
		Collection: name,
		Documents:  len(docs),
	})
}

// generateCollectionName returns a unique collection name for requests that
// do not supply one.
func generateCollectionName() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "collection_00000000"
	}
	return "collection_" + hex.EncodeToString(b)
}
