// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pms/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <project> <output>",
	Short: "Export a project's articles to a file",
	Long: `Export writes every stored article of a project to the output file.
Formats: jsonl (one JSON object per line), json (an indented array),
csv (one row per article, authors and keywords joined by "; "), and yaml.`,
	Args: cobra.ExactArgs(2),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	projectID, output := args[0], args[1]
	formatFlag, _ := cmd.Flags().GetString("format")

	format, err := export.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	orch, closeFn, err := openOrchestrator(false)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	p, err := orch.Project(ctx, projectID)
	if err != nil {
		return err
	}
	articles, err := orch.Articles(ctx, projectID)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(articles) == 0 {
		fmt.Fprintf(w, "No articles found in project '%s' (%s)\n", p.Name, p.ID)
		return nil
	}
	if err := export.WriteFile(output, format, articles); err != nil {
		return err
	}
	fmt.Fprintf(w, "Exported %d articles from project '%s' to %s\n", len(articles), p.Name, output)
	return nil
}

func init() {
	exportCmd.Flags().String("format", string(export.FormatJSONL), "output format: jsonl, json, csv, yaml")

	rootCmd.AddCommand(exportCmd)
}
