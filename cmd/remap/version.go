package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"remap/internal/decompile"
	"remap/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := ParseOutputFormat(formatFlag)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if format == FormatJSON {
			return writeJSON(out, map[string]interface{}{
				"version":         version.Version,
				"commit":          version.Commit,
				"buildDate":       version.BuildDate,
				"sourceRemapping": decompile.Available(),
			})
		}
		fmt.Fprintln(out, version.Full())
		if !decompile.Available() {
			fmt.Fprintln(out, "Source remapping: unavailable (built without cgo)")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
