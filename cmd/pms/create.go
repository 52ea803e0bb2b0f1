// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new project",
	Long: `Create registers a project in the tracking database and creates its
data directory. Without --project-id a random UUID is assigned.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	description, _ := cmd.Flags().GetString("description")
	id, _ := cmd.Flags().GetString("project-id")

	orch, closeFn, err := openOrchestrator(false)
	if err != nil {
		return err
	}
	defer closeFn()

	p, err := orch.CreateProject(cmd.Context(), args[0], description, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created project '%s' with ID: %s\n", p.Name, p.ID)
	return nil
}

func init() {
	createCmd.Flags().String("description", "", "project description")
	createCmd.Flags().String("project-id", "", "project ID (default: generated UUID)")

	rootCmd.AddCommand(createCmd)
}
