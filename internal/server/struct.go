package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/cvchat-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives all Prometheus metric registrations.
	// Defaults to prometheus.DefaultRegisterer if nil.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint.
	// Defaults to prometheus.DefaultGatherer if nil.
	MetricsGatherer prometheus.Gatherer
}

// chatter is the interface handleChat calls to run one chat turn.
// *chat.Chatbot satisfies it; tests inject a fake.
type chatter interface {
	// SendMessage runs one turn for the session against the named collection.
	SendMessage(ctx context.Context, sessionID, collectionName, message string) (string, error)
	// ClearAllSessions discards every session's conversation memory.
	ClearAllSessions()
}

// collectionRegistry is the interface the collection handlers call.
// *rag.Registry satisfies it; tests inject a fake.
type collectionRegistry interface {
	// RegisterNew embeds docs and creates the named collection.
	RegisterNew(ctx context.Context, name string, docs []rag.Document) error
	// Names returns the currently cached collection names.
	Names() []string
	// Refresh synchronizes the cache with the vector store.
	Refresh(ctx context.Context) error
}

// Server is the HTTP server that exposes the chat pipeline and the
// collection registry.
type Server struct {
	// chatter runs chat turns; set to the Chatbot in production,
	// overridden by a fake in tests.
	chatter chatter
	// registry manages resume collections.
	registry collectionRegistry
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// CollectionName selects the resume collection to answer from.
	CollectionName string `json:"collectionName"`
	// SessionID identifies the conversation; empty selects the default session.
	SessionID string `json:"sessionId,omitempty"`
	// Message is the recruiter's natural language question.
	Message string `json:"message"`
}

// chatResponse is the JSON response for POST /api/chat.
type chatResponse struct {
	// Response is the grounded answer text.
	Response string `json:"response"`
}

// documentPayload is one resume chunk in a collection create request.
type documentPayload struct {
	// Content is the chunk text.
	Content string `json:"content"`
	// Metadata carries attribution fields, e.g. "name" and "candidate_id".
	Metadata map[string]string `json:"metadata,omitempty"`
}

// createCollectionRequest is the JSON body for POST /api/collections.
type createCollectionRequest struct {
	// Name is the collection name. If empty a unique name is generated.
	Name string `json:"name,omitempty"`
	// Documents is the list of resume chunks to index.
	Documents []documentPayload `json:"documents"`
}

// createCollectionResponse is the JSON response for POST /api/collections.
type createCollectionResponse struct {
	// Collection is the name the collection was created under.
	Collection string `json:"collection"`
	// Documents is the number of chunks indexed.
	Documents int `json:"documents"`
}

// collectionsResponse is the JSON response for GET /api/collections.
type collectionsResponse struct {
	// Collections is the sorted list of known collection names.
	Collections []string `json:"collections"`
}
