// Package cli implements the sanctum command line interface.
package cli

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driving"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var verbose bool

// Services wired by main.
var (
	vectorStore      driving.VectorStore
	indexerService   driving.IndexerService
	retrieverService driving.RetrieverService
	memoryService    driving.SessionMemoryService
	settingsService  driving.SettingsService
)

var (
	errStoreNotConfigured     = errors.New("vector store not configured")
	errIndexerNotConfigured   = errors.New("indexer service not configured")
	errRetrieverNotConfigured = errors.New("retriever service not configured")
	errMemoryNotConfigured    = errors.New("session memory service not configured")
	errSettingsNotConfigured  = errors.New("settings service not configured")
)

var rootCmd = &cobra.Command{
	Use:   "sanctum",
	Short: "Local retrieval-augmented generation for writers",
	Long: `Sanctum indexes your reference material into a local vector store and
retrieves the most relevant passages as context for an LLM. It also keeps
summaries of past writing sessions and your writing preferences so they can
be recalled later.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Services holds the driving ports the commands use. Nil fields make the
// commands that need them fail with a "not configured" error.
type Services struct {
	Store     driving.VectorStore
	Indexer   driving.IndexerService
	Retriever driving.RetrieverService
	Memory    driving.SessionMemoryService
	Settings  driving.SettingsService
}

// SetServices installs the services used by every command.
func SetServices(s Services) {
	vectorStore = s.Store
	indexerService = s.Indexer
	retrieverService = s.Retriever
	memoryService = s.Memory
	settingsService = s.Settings
}

// SetVersion sets the version printed by `sanctum version`.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// LoadEnv loads .env files into the environment. Missing files are
// ignored and variables already set win.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			logger.Warn("load %s: %v", f, err)
		}
	}
}

// Execute runs the root command. Long-running commands stop when ctx is cancelled.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
