package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"remap/internal/version"
)

var (
	// formatFlag is the --format value shared by every command
	formatFlag string
	// verbosity counts -v flags
	verbosity int
	quietFlag bool
	// rootFlag overrides the working directory the session lives in
	rootFlag string
)

var rootCmd = &cobra.Command{
	Use:   "remap",
	Short: "remap - rename classes and members of a JVM archive",
	Long: `remap keeps a mapping from the original names of a JVM archive's classes,
fields and methods to names you choose. Every rename is validated, recorded in an
undoable history and persisted in .remap/session.db of the working directory.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("remap version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&formatFlag, "format", string(FormatHuman), "Output format (human, json)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v, -vv)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Only log errors")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Session directory (default: current directory)")
}

// getRoot returns the directory holding REMAP.toml and .remap/
func getRoot() (string, error) {
	if rootFlag != "" {
		return rootFlag, nil
	}
	root, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return root, nil
}
