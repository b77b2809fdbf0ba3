package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/cvchat-go/internal/chat"
	"github.com/54b3r/cvchat-go/internal/rag"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeChatter implements the chatter interface for handler tests.
type fakeChatter struct {
	// answer is returned on every SendMessage call.
	answer string
	// err is returned instead of the answer when set.
	err error
	// cleared counts ClearAllSessions calls.
	cleared int

	lastSession    string
	lastCollection string
	lastMessage    string
}

func (f *fakeChatter) SendMessage(_ context.Context, sessionID, collectionName, message string) (string, error) {
	f.lastSession = sessionID
	f.lastCollection = collectionName
	f.lastMessage = message
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeChatter) ClearAllSessions() { f.cleared++ }

// fakeRegistry implements the collectionRegistry interface for handler tests.
type fakeRegistry struct {
	// names is returned by Names().
	names []string
	// registerErr is returned by RegisterNew when set.
	registerErr error
	// refreshErr is returned by Refresh when set.
	refreshErr error

	lastName string
	lastDocs []rag.Document
}

func (f *fakeRegistry) RegisterNew(_ context.Context, name string, docs []rag.Document) error {
	f.lastName = name
	f.lastDocs = docs
	if f.registerErr != nil {
		return f.registerErr
	}
	f.names = append(f.names, name)
	return nil
}

func (f *fakeRegistry) Names() []string { return append([]string(nil), f.names...) }

func (f *fakeRegistry) Refresh(_ context.Context) error { return f.refreshErr }

// newTestServer builds a *Server with fakes and an isolated metrics registry.
func newTestServer() *Server {
	return &Server{
		chatter:  &fakeChatter{answer: "ok"},
		registry: &fakeRegistry{},
		cfg:      &Config{},
		log:      slog.Default(),
		metrics:  newServerMetrics(prometheus.NewRegistry()),
	}
}

// ---------------------------------------------------------------------------
// POST /api/chat
// ---------------------------------------------------------------------------

func TestHandleChat_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`not-json`))
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_MissingCollection(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"message":"who knows go?"}`))
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_MissingMessage(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"collectionName":"eng-pool"}`))
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_Success(t *testing.T) {
	t.Parallel()

	bot := &fakeChatter{answer: "Alice has the strongest Go background."}
	s := newTestServer()
	s.chatter = bot

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"collectionName":"eng-pool","sessionId":"s1","message":"who knows go?"}`))
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response != "Alice has the strongest Go background." {
		t.Errorf("unexpected response %q", resp.Response)
	}

	if bot.lastSession != "s1" || bot.lastCollection != "eng-pool" || bot.lastMessage != "who knows go?" {
		t.Errorf("chatter called with (%q, %q, %q)", bot.lastSession, bot.lastCollection, bot.lastMessage)
	}
}

func TestHandleChat_UnknownCollection(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.chatter = &fakeChatter{err: fmt.Errorf("%w: %q", rag.ErrUnknownCollection, "missing")}

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"collectionName":"missing","message":"hi"}`))
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleChat_ValidationError(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.chatter = &fakeChatter{err: &chat.ValidationError{Field: "message"}}

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"collectionName":"eng-pool","message":"hi"}`))
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_InternalError(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.chatter = &fakeChatter{err: fmt.Errorf("session store corrupt")}

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"collectionName":"eng-pool","message":"hi"}`))
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// A degraded answer is a successful HTTP response; the failure is in-band.
func TestHandleChat_DegradedAnswerIs200(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.chatter = &fakeChatter{answer: chat.DegradedAnswer}

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"collectionName":"eng-pool","message":"hi"}`))
	w := httptest.NewRecorder()

	s.handleChat(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp chatResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response != chat.DegradedAnswer {
		t.Errorf("unexpected response %q", resp.Response)
	}
}
