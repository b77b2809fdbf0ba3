package commands

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/cvchat-go/internal/ingestion"
	"github.com/54b3r/cvchat-go/internal/logging"
)

// NewIngestCmd constructs the `cvchat ingest` command, which loads a
// directory of resume files into a new collection.
func NewIngestCmd() *cobra.Command {
	var dir string
	var name string
	var chunkSize int
	var chunkOverlap int

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a directory of resumes into a new collection",
		Long: `Load resume files from a directory, chunk and embed them, and index the
result as a new named collection in the Qdrant vector store.

Supported files: .md and .txt (chunked with overlap), .json (pre-chunked,
an array of {"content", "name"} objects). Candidate names are inferred from
filenames ("alice_rivera.md" becomes "Alice Rivera") and attached to every
chunk so answers can be attributed.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  cvchat ingest --dir ./resumes --name eng-pool
  cvchat ingest --dir ./resumes/platform-team
  INGEST_CHUNK_SIZE=800 cvchat ingest --dir ./resumes --name eng-pool`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if dir == "" {
				return fmt.Errorf("ingest: --dir is required")
			}
			if name == "" {
				name = collectionNameFromDir(dir)
			}

			if !cmd.Flags().Changed("chunk-size") {
				chunkSize = getEnvInt("INGEST_CHUNK_SIZE", chunkSize)
			}
			if !cmd.Flags().Changed("chunk-overlap") {
				chunkOverlap = getEnvInt("INGEST_CHUNK_OVERLAP", chunkOverlap)
			}

			docs, err := ingestion.LoadDir(dir, &ingestion.Config{
				ChunkSize:    chunkSize,
				ChunkOverlap: chunkOverlap,
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			log.Info("resumes loaded",
				slog.String("dir", dir),
				slog.Int("chunks", len(docs)),
			)

			registry, vectorStore, err := buildRegistry(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer vectorStore.Close()

			if err := registry.Refresh(ctx); err != nil {
				log.Warn("ingest: collection refresh failed", slog.Any("error", err))
			}

			log.Info("indexing collection", slog.String("collection", name))
			if err := registry.RegisterNew(ctx, name, docs); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingestion complete",
				slog.String("collection", name),
				slog.Int("chunks", len(docs)),
			)
			fmt.Printf("Indexed %d chunks into collection %q.\n", len(docs), name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of resume files to ingest")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Collection name (default: derived from the directory name)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 500, "Maximum characters per chunk")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 50, "Characters of overlap between consecutive chunks")

	return cmd
}

// collectionNameFromDir derives a collection name from the ingest directory:
// the base name, lower-cased, with spaces collapsed to hyphens.
func collectionNameFromDir(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	base = strings.ToLower(base)
	return strings.Join(strings.Fields(base), "-")
}
