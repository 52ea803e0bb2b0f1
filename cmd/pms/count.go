// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count <project>",
	Short: "Count the articles in a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runCount,
}

func runCount(cmd *cobra.Command, args []string) error {
	orch, closeFn, err := openOrchestrator(false)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	p, err := orch.Project(ctx, args[0])
	if err != nil {
		return err
	}
	n, err := orch.Count(ctx, p.ID)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Project '%s' (%s) contains %d articles\n", p.Name, p.ID, n)

	missing, err := orch.Unrecorded(ctx, p.ID)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		fmt.Fprintf(w, "Warning: %d linked articles have no stored record and will not be exported: %s\n",
			len(missing), truncate(strings.Join(missing, ", "), 60))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(countCmd)
}
