package chat

import (
	"strings"
	"sync"
)

// defaultMemoryWindow is the number of turn pairs retained when no explicit
// window size is configured.
const defaultMemoryWindow = 10

// Pair is one completed conversation turn: the user's input and the
// assistant's output.
type Pair struct {
	// Input is the user's message.
	Input string
	// Output is the assistant's answer.
	Output string
}

// Memory is a bounded sliding window of conversation turn pairs. When the
// (k+1)-th pair is appended the oldest is evicted (FIFO). Append is the only
// mutator besides Clear, and the pipeline calls it exactly once per completed
// turn. Safe for concurrent use.
type Memory struct {
	// mu guards pairs.
	mu sync.Mutex

	// pairs holds the current window, oldest first. len(pairs) ≤ k always.
	pairs []Pair

	// k is the maximum number of pairs retained.
	k int
}

// NewMemory constructs a Memory retaining at most k turn pairs.
// k ≤ 0 selects the default window of 10.
func NewMemory(k int) *Memory {
	if k <= 0 {
		k = defaultMemoryWindow
	}
	return &Memory{k: k}
}

// Append records one completed turn, evicting the oldest pair when the
// window is full.
func (m *Memory) Append(input, output string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pairs = append(m.pairs, Pair{Input: input, Output: output})
	if len(m.pairs) > m.k {
		m.pairs = m.pairs[len(m.pairs)-m.k:]
	}
}

// Clear discards the whole window. Invoked whenever the active collection
// changes: history computed against one collection's context is not
// meaningful against another.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs = nil
}

// Len returns the number of pairs currently in the window.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pairs)
}

// Pairs returns a copy of the current window, oldest first.
func (m *Memory) Pairs() []Pair {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Pair(nil), m.pairs...)
}

// Render serializes the window for prompting: one "Human:"/"AI:" block per
// pair, oldest first, blank-line separated. Returns "" when the window is
// empty.
func (m *Memory) Render() string {
	return strings.Join(m.renderTurns(), "\n")
}

// renderTurns returns each pair rendered as its own block, oldest first,
// so callers can trim turns individually against a token budget.
func (m *Memory) renderTurns() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	turns := make([]string, 0, len(m.pairs))
	for _, p := range m.pairs {
		turns = append(turns, "Human: "+p.Input+"\nAI: "+p.Output)
	}
	return turns
}
