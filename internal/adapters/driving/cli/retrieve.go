package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

var (
	retrieveCollections []string
	retrieveMaxResults  int
	retrieveMinScore    float64
	retrieveMaxTokens   int
	retrieveModel       string
	retrieveJSON        bool
	retrieveContextOnly bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Retrieve context for a query",
	Long: `Embeds the query, ranks stored chunks by cosine similarity and assembles
the best matches into a context block that fits the token budget.

Unset limits fall back to the configured rag.* settings.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().StringSliceVarP(&retrieveCollections, "collection", "c", nil,
		"collections to search (repeatable, default references)")
	retrieveCmd.Flags().IntVarP(&retrieveMaxResults, "limit", "n", 0, "maximum number of results")
	retrieveCmd.Flags().Float64Var(&retrieveMinScore, "min-score", 0, "minimum similarity (0-1)")
	retrieveCmd.Flags().IntVar(&retrieveMaxTokens, "max-tokens", 0, "context token budget")
	retrieveCmd.Flags().StringVar(&retrieveModel, "model", "", "embedding model (default: configured model)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output the result as JSON")
	retrieveCmd.Flags().BoolVar(&retrieveContextOnly, "context", false, "print only the assembled context")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if retrieverService == nil {
		return errRetrieverNotConfigured
	}

	opts := configuredRetrieveOptions()
	if retrieveMaxResults > 0 {
		opts.MaxResults = retrieveMaxResults
	}
	if cmd.Flags().Changed("min-score") {
		opts.MinScore = domain.ScoreThreshold(retrieveMinScore)
	}
	if retrieveMaxTokens > 0 {
		opts.MaxTokens = retrieveMaxTokens
	}
	for _, name := range retrieveCollections {
		c, err := domain.ParseCollection(strings.TrimSpace(name))
		if err != nil {
			return err
		}
		opts.Collections = append(opts.Collections, c)
	}

	result, err := retrieverService.Retrieve(cmd.Context(), args[0], opts, retrieveModel)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}

	switch {
	case retrieveJSON:
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		cmd.Println(string(data))
	case retrieveContextOnly:
		cmd.Println(result.Context)
	default:
		printRetrieval(cmd, result)
	}
	return nil
}

// configuredRetrieveOptions returns the rag.* settings, or the built-in
// defaults when settings are unavailable.
func configuredRetrieveOptions() domain.RetrieveOptions {
	if settingsService == nil {
		return domain.RetrieveOptions{}
	}
	settings, err := settingsService.Get()
	if err != nil {
		return domain.RetrieveOptions{}
	}
	return domain.RetrieveOptions{
		MaxResults: settings.Retrieval.MaxResults,
		MinScore:   domain.ScoreThreshold(settings.Retrieval.MinScore()),
		MaxTokens:  settings.Retrieval.MaxTokens,
	}
}

func printRetrieval(cmd *cobra.Command, result *domain.RetrievalResult) {
	if len(result.Results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range result.Results {
		r := &result.Results[i]
		name := r.MetaString(domain.MetaTitle)
		if name == "" {
			name = r.MetaString(domain.MetaSource)
		}
		if name == "" {
			name = r.ID
		}
		cmd.Printf("  [%d] %s (%.2f, %s)\n", i+1, name, r.Score, r.Collection)
		if heading := r.MetaString(domain.MetaHeading); heading != "" {
			cmd.Printf("      Section: %s\n", heading)
		}
		cmd.Printf("      %s\n", snippet(r.Content, 160))
		cmd.Println()
	}
	cmd.Printf("Context: ~%d tokens\n", result.TokensEstimate)
}

// snippet returns the first line of s cut to at most n runes.
func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n]) + "..."
	}
	return s
}
