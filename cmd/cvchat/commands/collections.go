package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/54b3r/cvchat-go/internal/logging"
)

// NewCollectionsCmd constructs the `cvchat collections` command, which lists
// the resume collections known to the vector store.
func NewCollectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List ingested resume collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			registry, vectorStore, err := buildRegistry(log)
			if err != nil {
				return fmt.Errorf("collections: %w", err)
			}
			defer vectorStore.Close()

			if err := registry.Refresh(ctx); err != nil {
				return fmt.Errorf("collections: failed to list collections: %w", err)
			}

			names := registry.Names()
			if len(names) == 0 {
				fmt.Println("No collections found. Run 'cvchat ingest' first.")
				return nil
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}
