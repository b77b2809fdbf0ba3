package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// rerankPrompt instructs the scoring model to pick the most relevant passages.
// The model must answer with a bare JSON array of 1-based passage numbers,
// most relevant first.
const rerankPrompt = `You are a relevance ranker for a recruiting assistant.
Given a recruiter's question and a numbered list of resume passages, select
the passages that are most relevant to answering the question.

Question:
%s

Passages:
%s

Respond with ONLY a JSON array of the passage numbers, most relevant first,
at most %d entries. Example: [3, 1, 7]`

// LLMReranker implements Reranker with a listwise LLM scoring call: the
// candidates are presented as a numbered list and the model returns the
// indices of the most relevant ones. This is the single external scoring
// call allowed per Compress invocation.
type LLMReranker struct {
	// model is the chat model used for scoring.
	model model.BaseChatModel

	// log is the structured logger for degraded-parse events.
	log *slog.Logger
}

// NewLLMReranker constructs an LLMReranker over the given chat model.
func NewLLMReranker(m model.BaseChatModel, log *slog.Logger) (*LLMReranker, error) {
	if m == nil {
		return nil, fmt.Errorf("rag: reranker model must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &LLMReranker{model: m, log: log}, nil
}

// Compress returns the topN most relevant candidates, relevance-descending.
// An empty candidate list short-circuits to an empty result without a model
// call. The input slice is never mutated. If the model's answer cannot be
// parsed the original retrieval order is kept (logged, non-fatal); a model
// transport error propagates to the caller.
func (r *LLMReranker) Compress(ctx context.Context, query string, candidates []Document, topN int) ([]Document, error) {
	if len(candidates) == 0 {
		return []Document{}, nil
	}
	if topN <= 0 {
		topN = 6
	}
	if topN > len(candidates) {
		topN = len(candidates)
	}

	var sb strings.Builder
	for i, doc := range candidates {
		fmt.Fprintf(&sb, "[%d] %s\n%s\n\n", i+1, doc.Name(), doc.Content)
	}

	prompt := fmt.Sprintf(rerankPrompt, query, sb.String(), topN)
	resp, err := r.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return nil, fmt.Errorf("rag: rerank call failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("rag: rerank returned nil response")
	}

	indices, ok := parseIndexList(resp.Content, len(candidates))
	if !ok {
		r.log.Warn("reranker: unparseable model output, keeping retrieval order",
			slog.String("output", truncate(resp.Content, 200)),
		)
		out := make([]Document, topN)
		copy(out, candidates[:topN])
		return out, nil
	}

	out := make([]Document, 0, topN)
	for _, idx := range indices {
		out = append(out, candidates[idx])
		if len(out) == topN {
			break
		}
	}
	return out, nil
}

// parseIndexList extracts a JSON array of 1-based passage numbers from raw
// model output, tolerating surrounding prose. The result is deduplicated,
// clamped to [1, n], and converted to 0-based indices in model order — which
// preserves the original retrieval rank as the tie-breaker, since the model
// lists each passage at most once.
func parseIndexList(raw string, n int) ([]int, bool) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, false
	}

	var nums []int
	if err := json.Unmarshal([]byte(raw[start:end+1]), &nums); err != nil {
		return nil, false
	}

	seen := make(map[int]bool, len(nums))
	out := make([]int, 0, len(nums))
	for _, num := range nums {
		if num < 1 || num > n || seen[num] {
			continue
		}
		seen[num] = true
		out = append(out, num-1)
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

// truncate shortens s to max bytes for log output.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
