// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <project>",
	Short: "Show the searches run against a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	orch, closeFn, err := openOrchestrator(false)
	if err != nil {
		return err
	}
	defer closeFn()

	history, err := orch.History(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(history) == 0 {
		fmt.Fprintln(w, "No searches recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-16s  %6s  %6s  %6s  %s\n", "When", "Found", "New", "Stored", "Query")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, q := range history {
		query := q.Query
		if q.DateRange != nil {
			query += fmt.Sprintf(" [%s:%s]", q.DateRange.Start, q.DateRange.End)
		}
		fmt.Fprintf(w, "%-16s  %6d  %6d  %6d  %s\n",
			q.Timestamp.Local().Format("2006-01-02 15:04"), q.Found, q.New, q.Stored, query)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
