// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pms/internal/export"
	"github.com/pdiddy/pms/pkg/types"
)

var showCmd = &cobra.Command{
	Use:   "show <project> <pmid>",
	Short: "Print one stored article",
	Args:  cobra.ExactArgs(2),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	projectID, pmid := args[0], args[1]
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

	a, err := orch.Article(cmd.Context(), projectID, pmid)
	if err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("article %s not found in project %s", pmid, projectID)
	}
	return export.Write(cmd.OutOrStdout(), format, []types.Article{*a})
}

func init() {
	showCmd.Flags().String("format", string(export.FormatYAML), "output format: jsonl, json, csv, yaml")

	rootCmd.AddCommand(showCmd)
}
