package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"rag-assistant-go/internal/model"
	"rag-assistant-go/internal/service"
)

var (
	searchTopK      int
	searchMode      string
	searchThreshold float64
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Show the chunks retrieved for a query",
	Long: `Embeds the query and lists the closest stored chunks with their distance
and similarity score, without calling the chat model.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "maximum number of chunks (default retrieval.top_k)")
	searchCmd.Flags().StringVarP(&searchMode, "mode", "m", "", "distance metric: cosine or euclidean (default retrieval.mode)")
	searchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", 0, "minimum similarity in [0, 1] (default retrieval.score_threshold)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := service.SearchOptions{Mode: searchMode, TopK: searchTopK}
	if cmd.Flags().Changed("threshold") {
		opts.ScoreThreshold = &searchThreshold
	}

	results, err := a.Search.Search(ctx, args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	outputSearchTable(cmd, results)
	return nil
}

func outputSearchJSON(cmd *cobra.Command, results []model.SearchResult) error {
	if results == nil {
		results = []model.SearchResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []model.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s (distance %.4f, score %.4f)\n", i+1, r.DocumentName, r.Distance, r.Score)
		fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", r.Text)
	}
}
