// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/pms/internal/ingest"
	"github.com/pdiddy/pms/internal/metrics"
	"github.com/pdiddy/pms/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <project> <query>",
	Short: "Search PubMed and store new articles in a project",
	Long: `Search runs a PubMed query, skips articles the project already holds,
fetches the rest in batches, and appends them to the project. The query
uses PubMed syntax, e.g. '"Sepsis"[MeSH] AND adult'.

With --metrics-file the run's counters are written in the Prometheus
textfile format for a node exporter to pick up.`,
	Args: cobra.ExactArgs(2),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	projectID, query := args[0], args[1]
	maxResults, _ := cmd.Flags().GetInt("max-results")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	dateRangeFlag, _ := cmd.Flags().GetString("date-range")
	metricsFile, _ := cmd.Flags().GetString("metrics-file")

	var dateRange *types.DateRange
	if dateRangeFlag != "" {
		dr, err := types.ParseDateRange(dateRangeFlag)
		if err != nil {
			return err
		}
		dateRange = dr
	}

	var opts []ingest.Option
	var runMetrics *metrics.RunMetrics
	if metricsFile != "" {
		runMetrics = metrics.New()
		opts = append(opts, ingest.WithRecorder(runMetrics))
	}

	orch, closeFn, err := openOrchestrator(true, opts...)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := orch.SearchAndStore(cmd.Context(), projectID, query, ingest.SearchOptions{
		MaxResults: maxResults,
		DateRange:  dateRange,
		BatchSize:  batchSize,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Found %d articles, %d new\n", res.Found, res.New)
	if res.New > 0 {
		fmt.Fprintf(w, "Fetched %d, stored %d in project %s\n", res.Fetched, res.Stored, projectID)
	}

	if runMetrics != nil {
		if err := runMetrics.WriteTextfile(metricsFile); err != nil {
			env.log.Error("writing metrics failed", zap.Error(err))
		}
	}
	return nil
}

func init() {
	searchCmd.Flags().Int("max-results", 100, "maximum number of search results")
	searchCmd.Flags().String("date-range", "", "publication date range YYYY/MM/DD:YYYY/MM/DD")
	searchCmd.Flags().Int("batch-size", ingest.DefaultBatchSize, "articles fetched per request")
	searchCmd.Flags().String("metrics-file", "", "write run metrics to this Prometheus textfile")

	rootCmd.AddCommand(searchCmd)
}
