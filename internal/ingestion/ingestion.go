// Package ingestion loads resume files from disk, splits them into
// overlapping chunks, and attaches the attribution metadata the chat pipeline
// relies on. The output feeds rag.Registry.RegisterNew, which embeds and
// indexes the chunks. This pipeline is invoked by the `cvchat ingest` CLI
// command and is also reachable over POST /api/collections with pre-chunked
// payloads.
package ingestion

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/54b3r/cvchat-go/internal/rag"
)

// Config holds the configuration for resume ingestion.
type Config struct {
	// ChunkSize is the maximum number of characters per resume chunk.
	// Defaults to 500 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters to overlap between consecutive
	// chunks. Defaults to 50 if zero or out of range.
	ChunkOverlap int
}

// resolve applies defaults to a possibly nil config.
func (c *Config) resolve() Config {
	cfg := Config{ChunkSize: 500, ChunkOverlap: 50}
	if c != nil {
		if c.ChunkSize > 0 {
			cfg.ChunkSize = c.ChunkSize
		}
		if c.ChunkOverlap > 0 {
			cfg.ChunkOverlap = c.ChunkOverlap
		}
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 10
	}
	return cfg
}

// jsonChunk is one entry of a pre-chunked .json resume file.
type jsonChunk struct {
	// Content is the chunk text.
	Content string `json:"content"`
	// Name optionally overrides the candidate name inferred from the filename.
	Name string `json:"name,omitempty"`
}

// LoadDir walks dir and converts every supported resume file into documents
// ready for indexing. Plain .md and .txt files are chunked with overlap;
// .json files are treated as pre-chunked and taken verbatim. Other files are
// skipped. Returns an error if dir is unreadable or contains no usable files.
func LoadDir(dir string, cfg *Config) ([]rag.Document, error) {
	resolved := cfg.resolve()

	var docs []rag.Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".txt":
			fileDocs, err := loadTextFile(path, resolved)
			if err != nil {
				return err
			}
			docs = append(docs, fileDocs...)
		case ".json":
			fileDocs, err := loadJSONFile(path)
			if err != nil {
				return err
			}
			docs = append(docs, fileDocs...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingestion: walking %s: %w", dir, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("ingestion: no resume files found under %s", dir)
	}

	return docs, nil
}

// loadTextFile reads a plain-text resume and splits it into chunks carrying
// the candidate's attribution metadata.
func loadTextFile(path string, cfg Config) ([]rag.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: reading %s: %w", path, err)
	}

	name := CandidateName(path)
	chunks := chunk(string(raw), cfg.ChunkSize, cfg.ChunkOverlap)

	docs := make([]rag.Document, 0, len(chunks))
	for i, c := range chunks {
		docs = append(docs, rag.Document{
			ID:      chunkID(path, i),
			Content: c,
			Metadata: map[string]string{
				"name":         name,
				"candidate_id": candidateID(name),
				"source":       filepath.Base(path),
				"chunk_index":  fmt.Sprintf("%d", i),
			},
		})
	}
	return docs, nil
}

// loadJSONFile reads a pre-chunked resume file: a JSON array of
// {"content": ..., "name": ...} objects. Chunks are indexed as-is.
func loadJSONFile(path string) ([]rag.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: reading %s: %w", path, err)
	}

	var entries []jsonChunk
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("ingestion: parsing %s: %w", path, err)
	}

	fallback := CandidateName(path)
	docs := make([]rag.Document, 0, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Content) == "" {
			continue
		}
		name := e.Name
		if name == "" {
			name = fallback
		}
		docs = append(docs, rag.Document{
			ID:      chunkID(path, i),
			Content: e.Content,
			Metadata: map[string]string{
				"name":         name,
				"candidate_id": candidateID(name),
				"source":       filepath.Base(path),
				"chunk_index":  fmt.Sprintf("%d", i),
			},
		})
	}
	return docs, nil
}

// chunk splits text into overlapping chunks of at most size characters.
// Boundaries advance by runes, not bytes, so multibyte text is never split
// mid-rune.
func chunk(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(runes); start += size - overlap {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// chunkID generates a deterministic ID for a resume chunk based on its source
// path and chunk index.
func chunkID(path string, index int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", path, index)))
	return fmt.Sprintf("%x", h[:16])
}
