package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

var (
	memorySummary    string
	memoryKeyPoints  []string
	memoryDecisions  []string
	memoryTranscript string
	memoryLimit      int
	memoryThreshold  int
	memoryMinUser    int
	memoryJSON       bool
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage session memories",
	Long: `Session memories are summaries of past writing conversations, stored per
document and recalled by relevance when you return to it.

Transcripts are JSON arrays of {"role": "user"|"assistant", "content": "..."}.
Use "-" to read a transcript from stdin.`,
}

var memorySummarizeCmd = &cobra.Command{
	Use:   "summarize [transcript]",
	Short: "Summarize a conversation without saving it",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemorySummarize,
}

var memorySaveCmd = &cobra.Command{
	Use:   "save [document]",
	Short: "Save a session summary for a document",
	Long: `Saves a summary for a document. Either pass --summary (with optional
--key-point and --decision), or --transcript to summarize a conversation first.`,
	Args: cobra.ExactArgs(1),
	RunE: runMemorySave,
}

var memoryRecallCmd = &cobra.Command{
	Use:   "recall [document] [query]",
	Short: "Recall relevant session summaries",
	Args:  cobra.ExactArgs(2),
	RunE:  runMemoryRecall,
}

var memoryAutoSaveCmd = &cobra.Command{
	Use:   "autosave [document] [transcript]",
	Short: "Save a summary if the conversation is long enough",
	Args:  cobra.ExactArgs(2),
	RunE:  runMemoryAutoSave,
}

var memoryListCmd = &cobra.Command{
	Use:   "list [document]",
	Short: "List session summaries for a document, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryList,
}

var memoryDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a session summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryDelete,
}

func init() {
	memorySaveCmd.Flags().StringVar(&memorySummary, "summary", "", "summary text")
	memorySaveCmd.Flags().StringArrayVar(&memoryKeyPoints, "key-point", nil, "key point (repeatable)")
	memorySaveCmd.Flags().StringArrayVar(&memoryDecisions, "decision", nil, "decision (repeatable)")
	memorySaveCmd.Flags().StringVar(&memoryTranscript, "transcript", "", "summarize this transcript instead")

	memoryRecallCmd.Flags().IntVarP(&memoryLimit, "limit", "n", 3, "maximum number of summaries")
	memoryRecallCmd.Flags().BoolVar(&memoryJSON, "json", false, "output summaries as JSON")

	memoryAutoSaveCmd.Flags().IntVar(&memoryThreshold, "threshold", 0, "message count that triggers a save (default: memory.autosave_threshold)")
	memoryAutoSaveCmd.Flags().IntVar(&memoryMinUser, "min-user", 0, "user messages required (default: memory.min_user_messages)")

	memoryCmd.AddCommand(memorySummarizeCmd)
	memoryCmd.AddCommand(memorySaveCmd)
	memoryCmd.AddCommand(memoryRecallCmd)
	memoryCmd.AddCommand(memoryAutoSaveCmd)
	memoryCmd.AddCommand(memoryListCmd)
	memoryCmd.AddCommand(memoryDeleteCmd)
	rootCmd.AddCommand(memoryCmd)
}

func runMemorySummarize(cmd *cobra.Command, args []string) error {
	if memoryService == nil {
		return errMemoryNotConfigured
	}
	messages, err := readTranscript(cmd, args[0])
	if err != nil {
		return err
	}
	outcome := memoryService.Summarize(cmd.Context(), messages)
	if outcome.IsFallback() {
		cmd.PrintErrf("Note: using heuristic summary (%v)\n", outcome.Err)
	}
	printDraft(cmd, outcome.Draft)
	return nil
}

func runMemorySave(cmd *cobra.Command, args []string) error {
	if memoryService == nil {
		return errMemoryNotConfigured
	}

	draft := domain.SummaryDraft{Summary: memorySummary, KeyPoints: memoryKeyPoints, Decisions: memoryDecisions}
	switch {
	case memoryTranscript != "":
		messages, err := readTranscript(cmd, memoryTranscript)
		if err != nil {
			return err
		}
		outcome := memoryService.Summarize(cmd.Context(), messages)
		if outcome.IsFallback() {
			cmd.PrintErrf("Note: using heuristic summary (%v)\n", outcome.Err)
		}
		draft = outcome.Draft
	case strings.TrimSpace(memorySummary) == "":
		return errors.New("one of --summary or --transcript is required")
	}

	result := memoryService.Save(cmd.Context(), args[0], draft)
	if !result.Success {
		return fmt.Errorf("save summary: %s", result.Error)
	}
	cmd.Printf("Saved summary %s for %s\n", result.Summary.ID, args[0])
	return nil
}

func runMemoryRecall(cmd *cobra.Command, args []string) error {
	if memoryService == nil {
		return errMemoryNotConfigured
	}
	recalled, err := memoryService.RetrieveRelevant(cmd.Context(), args[0], args[1], memoryLimit)
	if err != nil {
		return fmt.Errorf("recall: %w", err)
	}
	if memoryJSON {
		data, err := json.MarshalIndent(recalled, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal summaries: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	if len(recalled) == 0 {
		cmd.Println("No relevant memories.")
		return nil
	}
	cmd.Print(domain.FormatMemoryContext(recalled))
	return nil
}

func runMemoryAutoSave(cmd *cobra.Command, args []string) error {
	if memoryService == nil {
		return errMemoryNotConfigured
	}
	messages, err := readTranscript(cmd, args[1])
	if err != nil {
		return err
	}

	threshold, minUser := memoryThreshold, memoryMinUser
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			if threshold <= 0 {
				threshold = settings.Memory.AutoSaveThreshold
			}
			if minUser <= 0 {
				minUser = settings.Memory.MinUserMessages
			}
		}
	}

	result := memoryService.AutoSave(cmd.Context(), args[0], messages, threshold, minUser)
	switch {
	case result == nil:
		cmd.Println("Conversation too short; nothing saved.")
	case !result.Success:
		return fmt.Errorf("autosave: %s", result.Error)
	default:
		cmd.Printf("Saved summary %s for %s\n", result.Summary.ID, args[0])
	}
	return nil
}

func runMemoryList(cmd *cobra.Command, args []string) error {
	if memoryService == nil {
		return errMemoryNotConfigured
	}
	summaries, err := memoryService.ListSummaries(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("list summaries: %w", err)
	}
	if len(summaries) == 0 {
		cmd.Println("No summaries.")
		return nil
	}
	for _, s := range summaries {
		cmd.Printf("%s  %s  %s\n", s.ID, s.Timestamp.Local().Format("2006-01-02 15:04"), snippet(s.Summary, 80))
	}
	return nil
}

func runMemoryDelete(cmd *cobra.Command, args []string) error {
	if memoryService == nil {
		return errMemoryNotConfigured
	}
	if err := memoryService.DeleteSummary(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("delete summary: %w", err)
	}
	cmd.Printf("Deleted summary %s\n", args[0])
	return nil
}

func readTranscript(cmd *cobra.Command, name string) ([]domain.Message, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	var messages []domain.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("%w: transcript: %v", domain.ErrInvalidInput, err)
	}
	return messages, nil
}

func printDraft(cmd *cobra.Command, d domain.SummaryDraft) {
	cmd.Println(d.Summary)
	if len(d.KeyPoints) > 0 {
		cmd.Println()
		cmd.Println("Key points:")
		for _, p := range d.KeyPoints {
			cmd.Printf("  - %s\n", p)
		}
	}
	if len(d.Decisions) > 0 {
		cmd.Println()
		cmd.Println("Decisions:")
		for _, p := range d.Decisions {
			cmd.Printf("  - %s\n", p)
		}
	}
}
