package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	prefDocument string
	prefCategory string
	prefLimit    int
	prefJSON     bool
)

var preferenceCmd = &cobra.Command{
	Use:   "preference",
	Short: "Manage writing preferences",
	Long: `Writing preferences are short instructions ("prefer active voice") recalled
by relevance. Preferences without --document apply to every document.`,
}

var preferenceAddCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Save a writing preference",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreferenceAdd,
}

var preferenceSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Find preferences relevant to a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreferenceSearch,
}

func init() {
	preferenceAddCmd.Flags().StringVarP(&prefDocument, "document", "d", "", "scope the preference to a document")
	preferenceAddCmd.Flags().StringVar(&prefCategory, "category", "", "category such as style or tone")

	preferenceSearchCmd.Flags().StringVarP(&prefDocument, "document", "d", "", "include preferences scoped to this document")
	preferenceSearchCmd.Flags().IntVarP(&prefLimit, "limit", "n", 5, "maximum number of preferences")
	preferenceSearchCmd.Flags().BoolVar(&prefJSON, "json", false, "output preferences as JSON")

	preferenceCmd.AddCommand(preferenceAddCmd)
	preferenceCmd.AddCommand(preferenceSearchCmd)
	rootCmd.AddCommand(preferenceCmd)
}

func runPreferenceAdd(cmd *cobra.Command, args []string) error {
	if memoryService == nil {
		return errMemoryNotConfigured
	}
	result := memoryService.SavePreference(cmd.Context(), args[0], prefDocument, prefCategory)
	if !result.Success {
		return fmt.Errorf("save preference: %s", result.Error)
	}
	scope := "all documents"
	if prefDocument != "" {
		scope = prefDocument
	}
	cmd.Printf("Saved preference %s for %s\n", result.Preference.ID, scope)
	return nil
}

func runPreferenceSearch(cmd *cobra.Command, args []string) error {
	if memoryService == nil {
		return errMemoryNotConfigured
	}
	prefs, err := memoryService.RetrievePreferences(cmd.Context(), args[0], prefDocument, prefLimit)
	if err != nil {
		return fmt.Errorf("search preferences: %w", err)
	}
	if prefJSON {
		data, err := json.MarshalIndent(prefs, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal preferences: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	if len(prefs) == 0 {
		cmd.Println("No matching preferences.")
		return nil
	}
	for _, p := range prefs {
		line := p.Content
		if p.Category != "" {
			line = fmt.Sprintf("[%s] %s", p.Category, line)
		}
		cmd.Printf("  %.2f  %s\n", p.Score, line)
	}
	return nil
}
