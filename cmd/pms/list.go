// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	orch, closeFn, err := openOrchestrator(false)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	projects, err := orch.ListProjects(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(projects) == 0 {
		fmt.Fprintln(w, "No projects found.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-30s  %8s  %s\n", "ID", "Name", "Articles", "Created")
	fmt.Fprintln(w, strings.Repeat("-", 92))
	for _, p := range projects {
		n, err := orch.Count(ctx, p.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-36s  %-30s  %8d  %s\n",
			p.ID, truncate(p.Name, 30), n, p.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "\n%d projects\n", len(projects))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	rootCmd.AddCommand(listCmd)
}
