package budget

import (
	"strings"
	"testing"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want int
	}{
		{name: "empty", in: "", want: 0},
		{name: "short rounds up to one", in: "hi", want: 1},
		{name: "exact multiple", in: strings.Repeat("a", 40), want: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Estimate(tt.in); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestTrimTurns_DropsOldestFirst(t *testing.T) {
	t.Parallel()

	// Each turn estimates to 25 tokens; fixed 50; budget 110 fits two turns.
	turn := strings.Repeat("x", 100)
	turns := []string{turn + "-old", turn + "-mid", turn + "-new"}

	got := TrimTurns(50, turns, 110)
	if len(got) != 2 {
		t.Fatalf("want 2 turns retained, got %d", len(got))
	}
	if !strings.HasSuffix(got[0], "-mid") || !strings.HasSuffix(got[1], "-new") {
		t.Errorf("oldest turn must be dropped first, got %v", got)
	}
}

func TestTrimTurns_FitsUnchanged(t *testing.T) {
	t.Parallel()

	turns := []string{"a", "b"}
	got := TrimTurns(0, turns, 100)
	if len(got) != 2 {
		t.Errorf("turns within budget must not be trimmed, got %d", len(got))
	}
}

func TestTrimTurns_FixedAloneOverBudget(t *testing.T) {
	t.Parallel()

	got := TrimTurns(1000, []string{"a", "b"}, 100)
	if len(got) != 0 {
		t.Errorf("want empty history when fixed parts exceed budget, got %v", got)
	}
}
