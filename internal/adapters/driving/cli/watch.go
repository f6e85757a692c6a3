package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driving/watcher"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

var (
	watchCollection string
	watchModel      string
	watchExtensions []string
	watchDebounce   time.Duration
	watchNoScan     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Keep a directory indexed as files change",
	Long: `Indexes every matching file under a directory, then watches it. Saved
files are re-indexed and deleted or renamed files are removed from the
collection. Hidden files and directories are skipped.

Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchCollection, "collection", "c", string(domain.CollectionReferences), "target collection")
	watchCmd.Flags().StringVar(&watchModel, "model", "", "embedding model (default: configured model)")
	watchCmd.Flags().StringSliceVar(&watchExtensions, "ext", watcher.DefaultExtensions(), "file extensions to index")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "quiet period before a changed file is indexed")
	watchCmd.Flags().BoolVar(&watchNoScan, "no-scan", false, "skip indexing existing files at startup")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if indexerService == nil {
		return errIndexerNotConfigured
	}
	if vectorStore == nil {
		return errStoreNotConfigured
	}
	collection, err := domain.ParseCollection(watchCollection)
	if err != nil {
		return err
	}

	exts := make([]string, 0, len(watchExtensions))
	for _, ext := range watchExtensions {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}

	w := watcher.New(indexerService, vectorStore, args[0],
		watcher.WithCollection(collection),
		watcher.WithModel(watchModel),
		watcher.WithExtensions(exts...),
		watcher.WithDebounce(watchDebounce),
		watcher.WithInitialScan(!watchNoScan),
		watcher.WithResultHook(func(r domain.IndexingResult) { printIndexResult(cmd, r) }),
	)
	cmd.Printf("Watching %s into %s (Ctrl+C to stop)\n", args[0], collection)
	return w.Run(cmd.Context())
}
