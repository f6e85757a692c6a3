package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driving/httpapi"
)

var (
	serveAddr    string
	serveOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API",
	Long: `Serves retrieval, indexing, store maintenance and session memory over a
JSON REST API under /v1, with a /healthz liveness check.

Examples:
  sanctum serve
  sanctum serve --addr 127.0.0.1:3125 --origin http://localhost:5173`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:3125", "listen address")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "origin", nil, "allowed CORS origin (repeatable, default any)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := httpapi.Config{
		Store:          vectorStore,
		Retriever:      retrieverService,
		Indexer:        indexerService,
		Memory:         memoryService,
		Retrieval:      configuredRetrieveOptions(),
		AllowedOrigins: serveOrigins,
	}
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			cfg.AutoSaveThreshold = settings.Memory.AutoSaveThreshold
			cfg.MinUserMessages = settings.Memory.MinUserMessages
		}
	}

	server, err := httpapi.New(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "REST API listening on http://%s\n", serveAddr)
	return server.Run(cmd.Context(), serveAddr)
}
