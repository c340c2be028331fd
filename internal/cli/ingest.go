package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"rag-assistant-go/internal/service"
)

var (
	ingestChunkSize int
	ingestOverlap   int
	ingestAppend    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [source]",
	Short: "Index a document",
	Long: `Splits a document into overlapping chunks, embeds them in one batch and
stores them in the vectors table. The source is a local path or
minio://bucket/object; without an argument ingestion.source is used.
By default the table is truncated first, in the same transaction.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "chunk length in characters (default ingestion.chunk_size)")
	ingestCmd.Flags().IntVar(&ingestOverlap, "overlap", -1, "characters shared by consecutive chunks (default ingestion.overlap)")
	ingestCmd.Flags().BoolVar(&ingestAppend, "append", false, "keep existing rows instead of truncating the table")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	source := cfg.Ingestion.Source
	if len(args) == 1 {
		source = args[0]
	}

	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var opts service.IngestOptions
	if cmd.Flags().Changed("chunk-size") {
		opts.ChunkSize = &ingestChunkSize
	}
	if cmd.Flags().Changed("overlap") {
		opts.Overlap = &ingestOverlap
	}
	if ingestAppend {
		truncate := false
		opts.Truncate = &truncate
	}

	n, err := a.Documents.IngestSource(ctx, source, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %s: %d chunks\n", source, n)
	return nil
}
