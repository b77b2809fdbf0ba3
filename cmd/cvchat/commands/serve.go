package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/cvchat-go/internal/logging"
	"github.com/54b3r/cvchat-go/internal/provider"
	"github.com/54b3r/cvchat-go/internal/server"
	"github.com/54b3r/cvchat-go/internal/tracing"
)

// NewServeCmd constructs the `cvchat serve` command, which starts the HTTP
// API for chat and collection management.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the CVChat HTTP server",
		Long: `Start the CVChat HTTP server on localhost.

The server exposes a REST API: POST /api/chat for conversational turns,
GET/POST /api/collections for collection management, plus health, readiness,
and Prometheus metrics endpoints.

Examples:
  cvchat serve
  cvchat serve --port 9090
  MODEL_PROVIDER=azure cvchat serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			registry, vectorStore, err := buildRegistry(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer vectorStore.Close()

			// Discover collections indexed by previous runs. A cold Qdrant at
			// boot is not fatal; the registry re-syncs on lookup misses and
			// via POST /api/collections/refresh.
			if err := registry.Refresh(ctx); err != nil {
				log.Warn("serve: initial collection refresh failed", slog.Any("error", err))
			} else {
				log.Info("collections discovered", slog.Int("count", len(registry.Names())))
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "ollama")))

			transcript, closeTranscript := openTranscript(log)
			defer closeTranscript()

			bot, err := buildChatbot(registry, chatModel, transcript, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{
				server.NewQdrantPinger(vectorStore.Client()),
				server.NewLLMPinger(chatModel, getEnvOrDefault("MODEL_PROVIDER", "ollama")),
			}

			srv, err := server.New(bot, registry, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("CVCHAT_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
