// Package budget provides token budget estimation and history trimming for
// the chat pipeline. Because CVChat supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose). This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English; using 3 would be
	// more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models (Llama 3 8B and
	// friends) while leaving room for the retrieved passages and the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// TrimTurns removes the oldest rendered conversation turns until the
// estimated token count of fixedTokens + turns fits within maxTokens.
// fixedTokens covers the parts of the prompt that must not be trimmed
// (template, retrieved context, question). Returns the trimmed slice; if even
// an empty history exceeds the budget, the empty slice is returned.
func TrimTurns(fixedTokens int, turns []string, maxTokens int) []string {
	if len(turns) == 0 {
		return turns
	}

	total := fixedTokens
	for _, t := range turns {
		total += Estimate(t)
	}

	// History is at most a couple of dozen turns; a linear scan dropping the
	// oldest first is clear and correct.
	for len(turns) > 0 && total > maxTokens {
		total -= Estimate(turns[0])
		turns = turns[1:]
	}
	return turns
}
