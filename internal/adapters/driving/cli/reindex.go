package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessellate-ai/contextd/internal/core/domain"
)

var reindexFull bool

var reindexCmd = &cobra.Command{
	Use:   "reindex [source]",
	Short: "Ingest source content into the context index",
	Long: `Fetches new or changed documents from a source, chunks and embeds
them and writes the result to the document store. With no source
argument every configured source is reindexed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexFull, "full", false,
		"ignore the checkpoint and refetch everything")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	ctx := context.Background()

	var sources []domain.SourceID
	if len(args) == 1 {
		source, err := domain.ParseSourceID(args[0])
		if err != nil {
			return err
		}
		sources = []domain.SourceID{source}
	} else {
		sources = ingestService.Sources()
		if len(sources) == 0 {
			return fmt.Errorf("no sources configured; check ingestion.fixture_dir")
		}
	}

	for _, source := range sources {
		cmd.Printf("Reindexing %s...\n", source)
		report, err := ingestService.Reindex(ctx, source, reindexFull)
		if err != nil {
			return fmt.Errorf("reindex %s failed: %w", source, err)
		}

		cmd.Printf("  %d documents seen, %d indexed, %d chunks written\n",
			report.DocumentsSeen, report.DocumentsIndexed, report.ChunksWritten)
		for _, failure := range report.Failures {
			cmd.Printf("  failed: %s: %s\n", failure.DocumentID, failure.Reason)
		}
	}
	return nil
}
