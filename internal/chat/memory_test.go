package chat

import (
	"fmt"
	"strings"
	"testing"
)

func TestMemory_WindowNeverExceedsK(t *testing.T) {
	t.Parallel()
	m := NewMemory(3)

	for i := 0; i < 4; i++ {
		m.Append(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	if m.Len() != 3 {
		t.Fatalf("window length = %d, want 3", m.Len())
	}
	pairs := m.Pairs()
	if pairs[0].Input != "q1" {
		t.Errorf("oldest pair must be evicted first, window starts with %q", pairs[0].Input)
	}
	if pairs[2].Input != "q3" || pairs[2].Output != "a3" {
		t.Errorf("newest pair missing, got %+v", pairs[2])
	}
}

func TestMemory_RenderEmpty(t *testing.T) {
	t.Parallel()
	m := NewMemory(5)
	if got := m.Render(); got != "" {
		t.Errorf("empty window must render to empty string, got %q", got)
	}
}

func TestMemory_RenderOrderAndFormat(t *testing.T) {
	t.Parallel()
	m := NewMemory(5)
	m.Append("first question", "first answer")
	m.Append("second question", "second answer")

	got := m.Render()
	if !strings.Contains(got, "Human: first question\nAI: first answer") {
		t.Errorf("missing first turn in render:\n%s", got)
	}
	if strings.Index(got, "first question") > strings.Index(got, "second question") {
		t.Errorf("turns must render oldest first:\n%s", got)
	}
}

func TestMemory_Clear(t *testing.T) {
	t.Parallel()
	m := NewMemory(5)
	m.Append("q", "a")
	m.Clear()
	if m.Len() != 0 {
		t.Errorf("window length after clear = %d, want 0", m.Len())
	}
}

func TestMemory_DefaultWindow(t *testing.T) {
	t.Parallel()
	m := NewMemory(0)
	for i := 0; i < 15; i++ {
		m.Append("q", "a")
	}
	if m.Len() != defaultMemoryWindow {
		t.Errorf("window length = %d, want default %d", m.Len(), defaultMemoryWindow)
	}
}
