// Package commands defines all Cobra CLI commands for the cvchat binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/cvchat-go/internal/audit"
	"github.com/54b3r/cvchat-go/internal/config"
	"github.com/54b3r/cvchat-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cvchat",
		Short: "CVChat — conversational search over candidate resume collections",
		Long: `CVChat is a local-first assistant for recruiters and hiring managers.

Ingest a directory of candidate resumes into a named collection, then ask
natural language questions about the pool: who has Go experience, which
candidates led teams, who worked on payments. Answers are grounded in the
resume text and attributed to the candidates they came from.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.cvchat/config.yaml).
See 'cvchat --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A .env in the working directory is a convenience for local
			// development. Missing files are fine.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.cvchat/config.yaml)")

	root.AddCommand(
		NewChatCmd(),
		NewIngestCmd(),
		NewCollectionsCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
