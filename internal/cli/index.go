package cli

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"zotindex/internal/usecase"
)

var (
	indexLimit       int
	indexForce       bool
	indexBatchSize   int
	indexNoPrune     bool
	indexMetricsFile string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Sync the Zotero library into the vector index",
	Long: `Read every non-attachment item from the Zotero database, embed its
searchable text, and upsert it into the configured collection. Items whose
modification date is unchanged are skipped unless --force is given.

Examples:
  zotindex index                  # Incremental sync
  zotindex index --force          # Re-embed everything
  zotindex index --limit 50       # Only the 50 most recently modified items`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().IntVar(&indexLimit, "limit", 0, "index at most this many items (0 = all)")
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "re-embed items that have not changed")
	indexCmd.Flags().IntVar(&indexBatchSize, "batch-size", usecase.DefaultBatchSize, "documents per upsert")
	indexCmd.Flags().BoolVar(&indexNoPrune, "no-prune", false, "keep indexed items that were removed from the library")
	indexCmd.Flags().StringVar(&indexMetricsFile, "metrics-textfile", "", "write Prometheus metrics to this file when done")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	lib, err := openLibrary(ctx)
	if err != nil {
		return fmt.Errorf("failed to open Zotero database: %w", err)
	}
	defer lib.Close()

	manager, st, err := openManager()
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Printf("Syncing %s into collection %q (%s)...\n", lib.Path(), manager.Name(), manager.Binding())

	var (
		bar       *progressbar.ProgressBar
		startTime time.Time
	)
	progress := func(done, total int) {
		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)

		if done > 0 {
			rate := float64(done) / time.Since(startTime).Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}

	syncUC := usecase.NewSyncUseCase(lib, manager, logger)
	start := time.Now()
	result, err := syncUC.Sync(ctx, usecase.SyncOptions{
		Limit:     indexLimit,
		Force:     indexForce,
		BatchSize: indexBatchSize,
		Prune:     !indexNoPrune,
	}, progress)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("\nSync complete in %s:\n", formatDuration(time.Since(start)))
	fmt.Printf("  Items read:     %d\n", result.Total)
	fmt.Printf("  Items indexed:  %d\n", result.Indexed)
	fmt.Printf("  Unchanged:      %d\n", result.Unchanged)
	fmt.Printf("  Skipped:        %d (no text)\n", result.Skipped)
	fmt.Printf("  Deleted:        %d (removed from library)\n", result.Deleted)
	fmt.Printf("\nIndex stored at: %s\n", st.Location())

	if indexMetricsFile != "" {
		if err := prometheus.WriteToTextfile(indexMetricsFile, prometheus.DefaultGatherer); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
