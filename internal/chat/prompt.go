package chat

import (
	"strings"

	"github.com/54b3r/cvchat-go/internal/rag"
)

// assistantMarker is the role boundary that separates the prompt echo from
// the generated continuation in Llama-3-style chat template output. Answer
// extraction depends on this exact string; keep it in one place so swapping
// the chat template means changing one constant.
const assistantMarker = "<|start_header_id|>assistant<|end_header_id|>"

// promptTemplate is the fixed prompt for every chat turn, in the Llama 3
// instruct chat format. The three placeholders are filled by BuildPrompt.
const promptTemplate = `<|begin_of_text|><|start_header_id|>system<|end_header_id|>

You are an intelligent talent acquisition assistant chatbot.
Your primary role is to assist recruiters by analyzing candidates' resumes, understanding their qualifications,
and answering questions about their suitability for specific roles. Provide detailed, professional, and context-aware responses.
this is the previous question and answer history if needed: {history}
Relevant Candidates Information:
{context}
<|eot_id|><|start_header_id|>user<|end_header_id|>

Recruiter's Question:
{question}<|eot_id|>` + assistantMarker + `

`

// BuildPrompt fills the fixed template with the rendered history, the
// formatted retrieved passages, and the user's question.
func BuildPrompt(history, context, question string) string {
	r := strings.NewReplacer(
		"{history}", history,
		"{context}", context,
		"{question}", question,
	)
	return r.Replace(promptTemplate)
}

// FormatDocs renders retrieved passages for the prompt: each passage is
// prefixed with its attribution line and joined by a blank line, in reranked
// order.
func FormatDocs(docs []rag.Document) string {
	formatted := make([]string, 0, len(docs))
	for _, doc := range docs {
		formatted = append(formatted, "Candidate Name: "+doc.Name()+"\n"+doc.Content)
	}
	return strings.Join(formatted, "\n\n")
}

// ExtractAnswer isolates the generated answer from raw model output. Backends
// that echo the prompt (raw completion endpoints) return the full template
// followed by the continuation; the answer is everything after the first
// assistant role marker. Chat-API backends return the continuation alone, in
// which case the marker is absent and the whole output is the answer —
// degraded but non-fatal.
func ExtractAnswer(raw string) string {
	if _, after, found := strings.Cut(raw, assistantMarker); found {
		return strings.TrimSpace(after)
	}
	return strings.TrimSpace(raw)
}
