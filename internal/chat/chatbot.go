// Package chat implements the conversational retrieval pipeline: per user
// turn it fetches candidate passages from the active collection, reranks
// them down to a small relevant set, merges them with the bounded
// conversation history, and produces a grounded answer — updating memory
// exactly once per successful turn.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/54b3r/cvchat-go/internal/budget"
	"github.com/54b3r/cvchat-go/internal/logging"
	"github.com/54b3r/cvchat-go/internal/rag"
	"github.com/54b3r/cvchat-go/internal/store"
)

// DegradedAnswer is the fixed user-facing response for any upstream failure
// during a chat turn. The underlying error is logged, never leaked into the
// transcript.
const DegradedAnswer = "An error occurred while processing your request."

// DefaultSession is the session ID used when the transport supplies none.
const DefaultSession = "default"

// ValidationError reports caller input rejected before any external call.
type ValidationError struct {
	// Field names the offending input ("collection" or "message").
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("chat: %s must not be empty", e.Field)
}

// Resolver resolves collection names to retrieval handles. *rag.Registry
// satisfies it; tests inject a fake.
type Resolver interface {
	Lookup(ctx context.Context, name string) (rag.Retriever, error)
}

// Config holds the dependencies and tuning for a Chatbot.
type Config struct {
	// Registry resolves collection names to retrieval handles.
	Registry Resolver

	// Reranker narrows broad recall down to the relevant set.
	Reranker rag.Reranker

	// Generator produces the grounded answer from the assembled prompt.
	Generator Generator

	// Transcript optionally persists completed turns. May be nil.
	Transcript store.TranscriptStore

	// BroadK is the recall depth of the first retrieval pass.
	// Defaults to 20 if zero.
	BroadK int

	// TopN is the size of the reranked context set. Defaults to 6 if zero.
	TopN int

	// MemoryWindow is the number of turn pairs each session retains.
	// Defaults to 10 if zero.
	MemoryWindow int

	// MaxContextTokens is the estimated token budget for the full prompt.
	// Rendered history is trimmed oldest-first to fit.
	// Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int

	// TurnTimeout bounds the external calls of one turn (embedding, search,
	// rerank, generation combined). Defaults to 2 minutes if zero.
	TurnTimeout time.Duration
}

// session is the per-conversation mutable state: its memory window and the
// collection the history was computed against. mu enforces the single-writer
// discipline — turns on the same session never interleave.
type session struct {
	mu         sync.Mutex
	memory     *Memory
	collection string
}

// Chatbot orchestrates retrieval, reranking, prompting, and generation for
// chat turns. It holds no per-turn state beyond the session memories; turns
// against different sessions or collections proceed independently.
type Chatbot struct {
	registry   Resolver
	reranker   rag.Reranker
	generator  Generator
	transcript store.TranscriptStore

	broadK           int
	topN             int
	memoryWindow     int
	maxContextTokens int
	turnTimeout      time.Duration

	// mu guards sessions.
	mu sync.Mutex
	// sessions maps session ID to its conversation state.
	sessions map[string]*session
}

// New constructs a Chatbot from the provided Config.
func New(cfg *Config) (*Chatbot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("chat: config must not be nil")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("chat: registry must not be nil")
	}
	if cfg.Reranker == nil {
		return nil, fmt.Errorf("chat: reranker must not be nil")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("chat: generator must not be nil")
	}

	broadK := cfg.BroadK
	if broadK <= 0 {
		broadK = 20
	}
	topN := cfg.TopN
	if topN <= 0 {
		topN = 6
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}
	timeout := cfg.TurnTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Chatbot{
		registry:         cfg.Registry,
		reranker:         cfg.Reranker,
		generator:        cfg.Generator,
		transcript:       cfg.Transcript,
		broadK:           broadK,
		topN:             topN,
		memoryWindow:     cfg.MemoryWindow,
		maxContextTokens: maxCtx,
		turnTimeout:      timeout,
		sessions:         make(map[string]*session),
	}, nil
}

// SendMessage runs one chat turn for the given session against the named
// collection and returns the grounded answer.
//
// A *ValidationError or rag.ErrUnknownCollection propagates distinctly —
// both are caller input errors. Every other upstream failure (embedding,
// search, rerank, generation, timeout) is absorbed: the turn returns
// DegradedAnswer with a nil error, the cause is logged, and the session
// memory is left unmodified.
func (c *Chatbot) SendMessage(ctx context.Context, sessionID, collectionName, message string) (string, error) {
	if strings.TrimSpace(collectionName) == "" {
		return "", &ValidationError{Field: "collection"}
	}
	if strings.TrimSpace(message) == "" {
		return "", &ValidationError{Field: "message"}
	}
	if sessionID == "" {
		sessionID = DefaultSession
	}

	handle, err := c.registry.Lookup(ctx, collectionName)
	if err != nil {
		if errors.Is(err, rag.ErrUnknownCollection) {
			return "", err
		}
		// The lookup refresh hit the store; treat it like any other
		// upstream failure.
		return c.degrade(ctx, "lookup", collectionName, err), nil
	}

	sess := c.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	// History from another collection's context is meaningless here.
	if sess.collection != collectionName {
		sess.memory.Clear()
		sess.collection = collectionName
	}

	turnCtx, cancel := context.WithTimeout(ctx, c.turnTimeout)
	defer cancel()

	candidates, err := handle.Retrieve(turnCtx, message, c.broadK)
	if err != nil {
		return c.degrade(ctx, "retrieve", collectionName, err), nil
	}

	top, err := c.reranker.Compress(turnCtx, message, candidates, c.topN)
	if err != nil {
		return c.degrade(ctx, "rerank", collectionName, err), nil
	}

	contextText := FormatDocs(top)
	fixedTokens := budget.Estimate(BuildPrompt("", contextText, message))
	turns := budget.TrimTurns(fixedTokens, sess.memory.renderTurns(), c.maxContextTokens)
	historyText := strings.Join(turns, "\n")

	prompt := BuildPrompt(historyText, contextText, message)
	raw, err := c.generator.Generate(turnCtx, prompt)
	if err != nil {
		return c.degrade(ctx, "generate", collectionName, err), nil
	}

	answer := ExtractAnswer(raw)

	// The turn succeeded: this is the single memory mutation.
	sess.memory.Append(message, answer)

	if c.transcript != nil {
		if err := c.transcript.Append(ctx, collectionName, store.RoleUser, message); err != nil {
			logging.FromContext(ctx).Warn("transcript: failed to persist user message", slog.Any("error", err))
		}
		if err := c.transcript.Append(ctx, collectionName, store.RoleAssistant, answer); err != nil {
			logging.FromContext(ctx).Warn("transcript: failed to persist assistant message", slog.Any("error", err))
		}
	}

	return answer, nil
}

// ClearSession discards the memory of the given session, e.g. when the
// operator starts over. Unknown session IDs are a no-op.
func (c *Chatbot) ClearSession(sessionID string) {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	c.mu.Lock()
	sess, ok := c.sessions[sessionID]
	c.mu.Unlock()
	if ok {
		sess.mu.Lock()
		sess.memory.Clear()
		sess.collection = ""
		sess.mu.Unlock()
	}
}

// ClearAllSessions discards every session's memory. Invoked after a new
// collection is registered so stale cross-collection history never leaks
// into answers.
func (c *Chatbot) ClearAllSessions() {
	c.mu.Lock()
	sessions := make([]*session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		s.memory.Clear()
		s.collection = ""
		s.mu.Unlock()
	}
}

// session returns the state for sessionID, creating it on first use.
func (c *Chatbot) session(sessionID string) *session {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.sessions[sessionID]
	if !ok {
		sess = &session{memory: NewMemory(c.memoryWindow)}
		c.sessions[sessionID] = sess
	}
	return sess
}

// memoryLen reports the current window length of a session; used by tests
// to assert failed turns leave memory untouched.
func (c *Chatbot) memoryLen(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sess, ok := c.sessions[sessionID]; ok {
		return sess.memory.Len()
	}
	return 0
}

// degrade logs the upstream failure with full context and returns the fixed
// user-facing answer. Memory is never touched on this path.
func (c *Chatbot) degrade(ctx context.Context, stage, collection string, err error) string {
	logging.FromContext(ctx).Error("chat: turn failed",
		slog.String("stage", stage),
		slog.String("collection", collection),
		slog.Any("error", err),
	)
	return DegradedAnswer
}
