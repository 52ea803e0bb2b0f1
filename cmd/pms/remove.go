// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <project>",
	Short: "Remove a project and its stored articles",
	Long: `Remove deletes the project from the tracking database together with
its article links, and deletes its data directory. Article metadata shared
with other projects is kept. Asks for confirmation unless --force is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

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

	w := cmd.OutOrStdout()
	if !force {
		n, err := orch.Count(ctx, p.ID)
		if err != nil {
			return err
		}
		prompt := fmt.Sprintf("Remove project '%s' (%s) with %d articles? [y/N]: ", p.Name, p.ID, n)
		if !confirm(cmd.InOrStdin(), w, prompt) {
			fmt.Fprintln(w, "Cancelled.")
			return nil
		}
	}

	if err := orch.RemoveProject(ctx, p.ID); err != nil {
		return err
	}
	fmt.Fprintf(w, "Removed project '%s' (%s)\n", p.Name, p.ID)
	return nil
}

// confirm prints prompt and reports whether the answer is y or yes.
func confirm(r io.Reader, w io.Writer, prompt string) bool {
	fmt.Fprint(w, prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(w)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func init() {
	removeCmd.Flags().Bool("force", false, "remove without asking for confirmation")

	rootCmd.AddCommand(removeCmd)
}
