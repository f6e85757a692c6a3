package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

var (
	storeStatsJSON bool
	storeClearYes  bool
	storeModel     string
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and maintain the vector store",
	Long: `Commands for the vector store and its four collections:
  references    indexed reference documents
  sessions      conversation summaries
  preferences   saved writing preferences
  web_research  indexed web research`,
}

var storeStatsCmd = &cobra.Command{
	Use:   "stats [collection...]",
	Short: "Show collection statistics",
	RunE:  runStoreStats,
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete [collection] [id]",
	Short: "Delete one document by id",
	Args:  cobra.ExactArgs(2),
	RunE:  runStoreDelete,
}

var storeDeleteSourceCmd = &cobra.Command{
	Use:   "delete-source [collection] [source]",
	Short: "Delete every chunk of a source",
	Args:  cobra.ExactArgs(2),
	RunE:  runStoreDeleteSource,
}

var storeExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the store as JSON",
	Long:  `Writes every collection to one JSON document. Without a file, writes to stdout.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStoreExport,
}

var storeImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Replace the store with an exported snapshot",
	Long: `Replaces the contents of every collection with the snapshot in file.
The snapshot is validated first; an invalid file leaves the store untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runStoreImport,
}

var storeClearCmd = &cobra.Command{
	Use:   "clear [collection]",
	Short: "Remove every document from a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreClear,
}

var storeReembedCmd = &cobra.Command{
	Use:   "reembed [collection] [source]",
	Short: "Check or refresh a source's embedding model",
	Long: `Confirms that every chunk of a source is embedded with --model.

Chunks only keep their own text, so switching a source to another model
needs the original document. The command fails in that case; index the
original again with 'sanctum index --model <model>'.`,
	Args: cobra.ExactArgs(2),
	RunE: runStoreReembed,
}

func init() {
	storeStatsCmd.Flags().BoolVar(&storeStatsJSON, "json", false, "output statistics as JSON")
	storeClearCmd.Flags().BoolVarP(&storeClearYes, "yes", "y", false, "confirm removing every document")
	storeReembedCmd.Flags().StringVar(&storeModel, "model", "", "target embedding model (default: configured model)")

	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storeDeleteCmd)
	storeCmd.AddCommand(storeDeleteSourceCmd)
	storeCmd.AddCommand(storeExportCmd)
	storeCmd.AddCommand(storeImportCmd)
	storeCmd.AddCommand(storeClearCmd)
	storeCmd.AddCommand(storeReembedCmd)
	rootCmd.AddCommand(storeCmd)
}

func runStoreStats(cmd *cobra.Command, args []string) error {
	if vectorStore == nil {
		return errStoreNotConfigured
	}

	collections := domain.AllCollections()
	if len(args) > 0 {
		collections = collections[:0:0]
		for _, name := range args {
			c, err := domain.ParseCollection(name)
			if err != nil {
				return err
			}
			collections = append(collections, c)
		}
	}

	stats := make([]*domain.CollectionStats, 0, len(collections))
	for _, c := range collections {
		s, err := vectorStore.Stats(cmd.Context(), c)
		if err != nil {
			return fmt.Errorf("stats %s: %w", c, err)
		}
		stats = append(stats, s)
	}

	if storeStatsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	for _, s := range stats {
		cmd.Printf("%-13s %5d documents  %4d sources", s.Collection, s.Count, s.DistinctSources)
		if s.NewestTimestamp != nil {
			cmd.Printf("  updated %s", s.NewestTimestamp.Local().Format("2006-01-02 15:04"))
		}
		cmd.Println()
	}
	return nil
}

func runStoreDelete(cmd *cobra.Command, args []string) error {
	if vectorStore == nil {
		return errStoreNotConfigured
	}
	c, err := domain.ParseCollection(args[0])
	if err != nil {
		return err
	}
	if err := vectorStore.DeleteByID(cmd.Context(), c, args[1]); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	cmd.Printf("Deleted %s from %s\n", args[1], c)
	return nil
}

func runStoreDeleteSource(cmd *cobra.Command, args []string) error {
	if vectorStore == nil {
		return errStoreNotConfigured
	}
	c, err := domain.ParseCollection(args[0])
	if err != nil {
		return err
	}
	n, err := vectorStore.DeleteBySource(cmd.Context(), c, args[1])
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	cmd.Printf("Deleted %d chunks of %s from %s\n", n, args[1], c)
	return nil
}

func runStoreExport(cmd *cobra.Command, args []string) error {
	if vectorStore == nil {
		return errStoreNotConfigured
	}
	data, err := vectorStore.ExportSnapshot(cmd.Context())
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if len(args) == 0 {
		_, err := cmd.OutOrStdout().Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(args[0], data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", args[0], err)
	}
	cmd.Printf("Exported store to %s\n", args[0])
	return nil
}

func runStoreImport(cmd *cobra.Command, args []string) error {
	if vectorStore == nil {
		return errStoreNotConfigured
	}
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if err := vectorStore.ImportSnapshot(cmd.Context(), data); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	cmd.Println("Imported snapshot")
	return nil
}

func runStoreClear(cmd *cobra.Command, args []string) error {
	if vectorStore == nil {
		return errStoreNotConfigured
	}
	c, err := domain.ParseCollection(args[0])
	if err != nil {
		return err
	}
	if !storeClearYes {
		return fmt.Errorf("refusing to clear %s without --yes", c)
	}
	if err := vectorStore.Clear(cmd.Context(), c); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	cmd.Printf("Cleared %s\n", c)
	return nil
}

func runStoreReembed(cmd *cobra.Command, args []string) error {
	if indexerService == nil {
		return errIndexerNotConfigured
	}
	c, err := domain.ParseCollection(args[0])
	if err != nil {
		return err
	}
	if err := indexerService.Reembed(cmd.Context(), c, args[1], storeModel); err != nil {
		if errors.Is(err, domain.ErrRequiresOriginalSource) {
			return fmt.Errorf("%w; run 'sanctum index --model %s' on the original document", err, storeModel)
		}
		return fmt.Errorf("reembed: %w", err)
	}
	model := storeModel
	if model == "" {
		model = "the configured model"
	}
	cmd.Printf("%s in %s already uses %s\n", args[1], c, model)
	return nil
}
