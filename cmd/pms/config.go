// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Config reads and writes the pms config file. Keys are addressed as
<section> <key>, for example "api email". Environment variables
(PMS_API_EMAIL) and .secrets/ files can also supply values; config set
only writes the file.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <section> <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := env.conf.Get(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), displayValue(args[1], v))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <section> <key> <value>",
	Short: "Change one setting and save it to the config file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := env.conf.Set(args[0], args[1], args[2]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s.%s in %s\n", args[0], args[1], env.conf.Path())
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print all settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		all := env.conf.List()

		sections := make([]string, 0, len(all))
		for s := range all {
			sections = append(sections, s)
		}
		sort.Strings(sections)

		for _, section := range sections {
			fmt.Fprintf(w, "[%s]\n", section)
			keys := make([]string, 0, len(all[section]))
			for k := range all[section] {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(w, "  %s = %v\n", k, displayValue(k, all[section][k]))
			}
		}
		return nil
	},
}

// displayValue hides the API key.
func displayValue(key string, v any) any {
	if key == "api_key" {
		if s, _ := v.(string); s != "" {
			return "********"
		}
	}
	return v
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configListCmd)
	rootCmd.AddCommand(configCmd)
}
