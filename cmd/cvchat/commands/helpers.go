package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/cloudwego/eino/components/model"

	"github.com/54b3r/cvchat-go/internal/chat"
	"github.com/54b3r/cvchat-go/internal/embedder"
	"github.com/54b3r/cvchat-go/internal/rag"
	"github.com/54b3r/cvchat-go/internal/store"
)

// getEnvOrDefault returns the env value for key, or fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env value for key parsed as int, or fallback when
// unset or unparseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration returns the env value for key parsed as a Go duration, or
// fallback when unset or unparseable.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// newVectorStore connects to Qdrant using the QDRANT_* environment variables.
// The vector size is derived from the configured embedding backend so new
// collections get the right dimensionality.
func newVectorStore() (*rag.QdrantStore, error) {
	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))

	st, err := rag.NewQdrantStore(&rag.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		VectorSize: uint64(embedder.DefaultDimensions(embBackend)), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	return st, nil
}

// buildRegistry wires the embedder and vector store into a collection
// registry. The caller owns closing the returned store.
func buildRegistry(log *slog.Logger) (*rag.Registry, *rag.QdrantStore, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	st, err := newVectorStore()
	if err != nil {
		return nil, nil, err
	}

	registry, err := rag.NewRegistry(emb, st, getEnvInt("CHAT_BROAD_K", 0), log)
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to create registry: %w", err)
	}

	return registry, st, nil
}

// openTranscript opens the transcript store. CVCHAT_TRANSCRIPT_DB overrides
// the default path (~/.cvchat/transcripts.db); set it to "disabled" to turn
// persistence off. Failures disable persistence rather than abort — transcript
// loss is an annoyance, not an outage.
func openTranscript(log *slog.Logger) (store.TranscriptStore, func()) {
	dbPath := os.Getenv("CVCHAT_TRANSCRIPT_DB")
	if dbPath == "disabled" {
		log.Info("transcript: disabled via CVCHAT_TRANSCRIPT_DB=disabled")
		return nil, func() {}
	}

	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("transcript: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, func() {}
		}
	}

	ts, err := store.Open(dbPath)
	if err != nil {
		log.Warn("transcript: failed to open store, disabling", slog.Any("error", err))
		return nil, func() {}
	}
	log.Info("transcript: store opened", slog.String("path", dbPath))
	return ts, func() { _ = ts.Close() }
}

// buildChatbot assembles the chat pipeline on top of an already-built
// registry: LLM reranker, answer generator, and per-session memory, tuned via
// the CHAT_* environment variables.
func buildChatbot(registry *rag.Registry, chatModel model.BaseChatModel, transcript store.TranscriptStore, log *slog.Logger) (*chat.Chatbot, error) {
	reranker, err := rag.NewLLMReranker(chatModel, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create reranker: %w", err)
	}

	generator, err := chat.NewModelGenerator(chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	bot, err := chat.New(&chat.Config{
		Registry:         registry,
		Reranker:         reranker,
		Generator:        generator,
		Transcript:       transcript,
		BroadK:           getEnvInt("CHAT_BROAD_K", 0),
		TopN:             getEnvInt("CHAT_RERANK_TOP_N", 0),
		MemoryWindow:     getEnvInt("CHAT_MEMORY_WINDOW", 0),
		MaxContextTokens: getEnvInt("CHAT_MAX_CONTEXT_TOKENS", 0),
		TurnTimeout:      getEnvDuration("CHAT_TURN_TIMEOUT", 0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chatbot: %w", err)
	}
	return bot, nil
}
