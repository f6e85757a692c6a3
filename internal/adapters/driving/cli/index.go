package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

var (
	indexCollection string
	indexModel      string
	indexStdin      bool
	indexSource     string
	indexTitle      string
	indexJSON       bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path|url...]",
	Short: "Index documents into a collection",
	Long: `Chunks, embeds and stores documents so they can be retrieved later.

Arguments may be local files or http(s) URLs. Markdown and text files are
read directly; other formats (PDF, Word, HTML) need a converter configured
with 'sanctum settings set converter.url <url>'.

Re-indexing a source replaces its previous chunks.

Examples:
  sanctum index notes/worldbuilding.md
  sanctum index -c web_research https://example.com/article
  cat draft.md | sanctum index --stdin --source draft.md`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexCollection, "collection", "c", string(domain.CollectionReferences), "target collection")
	indexCmd.Flags().StringVar(&indexModel, "model", "", "embedding model (default: configured model)")
	indexCmd.Flags().BoolVar(&indexStdin, "stdin", false, "read document content from stdin")
	indexCmd.Flags().StringVar(&indexSource, "source", "", "source name for --stdin content")
	indexCmd.Flags().StringVar(&indexTitle, "title", "", "title stored with --stdin content")
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexerService == nil {
		return errIndexerNotConfigured
	}
	collection, err := domain.ParseCollection(indexCollection)
	if err != nil {
		return err
	}

	var results []domain.IndexingResult
	if indexStdin {
		if len(args) > 0 {
			return errors.New("--stdin cannot be combined with path arguments")
		}
		result, err := indexFromStdin(cmd, collection)
		if err != nil {
			return err
		}
		results = append(results, result)
	} else {
		if len(args) == 0 {
			return errors.New("requires at least one path or URL, or --stdin")
		}
		for _, target := range args {
			results = append(results, indexTarget(cmd, target, collection))
		}
	}

	if indexJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal results: %w", err)
		}
		cmd.Println(string(data))
	} else {
		for _, r := range results {
			printIndexResult(cmd, r)
		}
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to index", failed, len(results))
	}
	return nil
}

func indexFromStdin(cmd *cobra.Command, collection domain.Collection) (domain.IndexingResult, error) {
	if indexSource == "" {
		return domain.IndexingResult{}, errors.New("--source is required with --stdin")
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return domain.IndexingResult{}, fmt.Errorf("read stdin: %w", err)
	}
	req := domain.IndexRequest{
		Content:        string(data),
		Source:         indexSource,
		Collection:     collection,
		EmbeddingModel: indexModel,
	}
	if indexTitle != "" {
		req.Metadata = map[string]any{domain.MetaTitle: indexTitle}
	}
	progress := newProgressPrinter(cmd.ErrOrStderr())
	defer progress.done()
	return indexerService.IndexDocument(cmd.Context(), req, progress.update), nil
}

func indexTarget(cmd *cobra.Command, target string, collection domain.Collection) domain.IndexingResult {
	progress := newProgressPrinter(cmd.ErrOrStderr())
	defer progress.done()
	if isURL(target) {
		return indexerService.IndexURL(cmd.Context(), target, collection, indexModel, progress.update)
	}
	return indexerService.IndexFile(cmd.Context(), target, collection, indexModel, progress.update)
}

func printIndexResult(cmd *cobra.Command, r domain.IndexingResult) {
	if r.Success {
		cmd.Printf("Indexed %s into %s: %d chunks, %d embeddings\n",
			r.Source, r.Collection, r.ChunksCreated, r.EmbeddingsGenerated)
		return
	}
	cmd.Printf("Failed to index %s (%s stage): %s\n", r.Source, r.FailedStage, r.Error)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
