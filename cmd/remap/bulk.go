package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"remap/internal/mapping"
	"remap/internal/rename"
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Give generated unique names to many symbols at once",
	Long: `Bulk renames use the naming prefixes of .remap/config.json (naming.classPrefix,
naming.fieldPrefix, naming.methodPrefix) and skip symbols that are already renamed,
excluded by bulk.exclude or kept by bulk.keepMembers. Every rename is recorded and
can be undone individually.`,
}

var bulkAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Rename every class and member that still has its original name",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBulk(cmd, func(ctx context.Context, ws *workspace) (rename.Report, error) {
			return ws.RenameAllUnique(ctx)
		})
	},
}

var bulkClassCmd = &cobra.Command{
	Use:   "class <class>",
	Short: "Rename the members of one class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBulk(cmd, func(ctx context.Context, ws *workspace) (rename.Report, error) {
			return ws.RenameClassMembers(ctx, args[0])
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <class>",
	Short: "Give a class's members their original names back",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBulk(cmd, func(ctx context.Context, ws *workspace) (rename.Report, error) {
			return ws.ResetMembers(args[0])
		})
	},
}

func init() {
	bulkCmd.AddCommand(bulkAllCmd, bulkClassCmd)
	rootCmd.AddCommand(bulkCmd)
	rootCmd.AddCommand(resetCmd)
}

// SkippedCLI is a symbol a bulk pass left alone
type SkippedCLI struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// BulkResponseCLI summarises a bulk pass
type BulkResponseCLI struct {
	Renamed   int           `json:"renamed"`
	Actions   []ActionCLI   `json:"actions"`
	Skipped   []SkippedCLI  `json:"skipped,omitempty"`
	Cancelled bool          `json:"cancelled,omitempty"`
	Stats     mapping.Stats `json:"stats"`
}

func runBulk(cmd *cobra.Command, pass func(ctx context.Context, ws *workspace) (rename.Report, error)) error {
	return withWorkspace(cmd, true, func(ctx context.Context, rt *runtime, ws *workspace) error {
		report, err := pass(ctx, ws)
		if err != nil {
			return err
		}

		resp := &BulkResponseCLI{
			Renamed:   len(report.Actions),
			Actions:   make([]ActionCLI, 0, len(report.Actions)),
			Cancelled: report.Cancelled,
			Stats:     ws.Table().Stats(),
		}
		for _, a := range report.Actions {
			resp.Actions = append(resp.Actions, newActionCLI(a))
		}
		for _, s := range report.Skipped {
			resp.Skipped = append(resp.Skipped, SkippedCLI{Symbol: s.Symbol.String(), Reason: s.Reason})
		}
		rt.logger.Info("Bulk pass finished", "renamed", resp.Renamed, "skipped", len(resp.Skipped))

		out := cmd.OutOrStdout()
		if rt.format == FormatJSON {
			return writeJSON(out, resp)
		}
		formatBulkHuman(out, resp, verbosity > 0)
		return nil
	})
}

func formatBulkHuman(out io.Writer, resp *BulkResponseCLI, listActions bool) {
	st := newStyler(out)
	fmt.Fprintf(out, "Renamed %s symbols", st.Bold(fmt.Sprint(resp.Renamed)))
	if len(resp.Skipped) > 0 {
		fmt.Fprintf(out, ", skipped %d", len(resp.Skipped))
	}
	fmt.Fprintln(out)
	if resp.Cancelled {
		fmt.Fprintln(out, st.Failure("Interrupted: the renames done so far are kept"))
	}
	if listActions {
		for _, a := range resp.Actions {
			fmt.Fprintf(out, "  %s  %s %s → %s\n", st.Muted(shortID(a.ID, 8)), a.Kind, a.Before, st.Accent(a.After))
		}
		for _, s := range resp.Skipped {
			fmt.Fprintf(out, "  %s %s\n", st.Muted("skip"), truncate(s.Symbol+": "+s.Reason, 100))
		}
	}
}
