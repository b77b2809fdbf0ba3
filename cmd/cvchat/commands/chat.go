package commands

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/cvchat-go/internal/chat"
	"github.com/54b3r/cvchat-go/internal/logging"
	"github.com/54b3r/cvchat-go/internal/provider"
)

// NewChatCmd constructs the `cvchat chat` command, an interactive terminal
// session against a resume collection.
func NewChatCmd() *cobra.Command {
	var collection string
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively with a resume collection",
		Long: `Start an interactive chat session against an ingested resume collection.

Questions are answered from the resume text and attributed to candidates.
Type 'exit' or 'quit' (or press Ctrl-D) to leave; '/clear' forgets the
conversation so far; '/collection <name>' switches to another pool.

Examples:
  cvchat chat --collection eng-pool
  cvchat chat --collection eng-pool --session screening-2026`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			registry, vectorStore, err := buildRegistry(log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer vectorStore.Close()

			if err := registry.Refresh(ctx); err != nil {
				return fmt.Errorf("chat: failed to list collections: %w", err)
			}

			names := registry.Names()
			sort.Strings(names)
			if collection == "" {
				// With exactly one collection there is nothing to choose.
				if len(names) != 1 {
					return fmt.Errorf("chat: --collection is required (available: %s)", strings.Join(names, ", "))
				}
				collection = names[0]
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("chat: failed to initialise model provider: %w", err)
			}

			transcript, closeTranscript := openTranscript(log)
			defer closeTranscript()

			bot, err := buildChatbot(registry, chatModel, transcript, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			fmt.Printf("Chatting with collection %q. Type 'exit' to leave.\n", collection)

			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					fmt.Println()
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())

				switch {
				case line == "":
					continue
				case line == "exit" || line == "quit":
					return nil
				case line == "/clear":
					bot.ClearSession(sessionID)
					fmt.Println("Conversation cleared.")
					continue
				case strings.HasPrefix(line, "/collection "):
					collection = strings.TrimSpace(strings.TrimPrefix(line, "/collection "))
					fmt.Printf("Switched to collection %q.\n", collection)
					continue
				}

				answer, err := bot.SendMessage(ctx, sessionID, collection, line)
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				fmt.Println(answer)
			}
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "Resume collection to chat against")
	cmd.Flags().StringVarP(&sessionID, "session", "s", chat.DefaultSession, "Session ID for conversation memory")

	return cmd
}
