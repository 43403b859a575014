package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"remap/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the rename and selection logs",
}

var historyRenamesCmd = &cobra.Command{
	Use:   "renames",
	Short: "List recorded renames, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryRenames,
}

var historySelectionsCmd = &cobra.Command{
	Use:   "selections",
	Short: "List the classes brought into focus, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runHistorySelections,
}

var undoCmd = &cobra.Command{
	Use:   "undo [action-id]",
	Short: "Undo one recorded rename, at any position in the log",
	Long: `Undo restores the name a symbol had before the given rename. The action id may
be abbreviated to any unique prefix (see 'remap history renames'). Undoing an
action that a later rename of the same symbol superseded fails. Without an id the
most recent rename is undone.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUndo,
}

var selectCmd = &cobra.Command{
	Use:   "select <class>",
	Short: "Record a class as brought into focus",
	Args:  cobra.ExactArgs(1),
	RunE:  runSelect,
}

func init() {
	historyCmd.PersistentFlags().IntVarP(&historyLimit, "limit", "n", 0, "Only show the last n entries")
	historyCmd.AddCommand(historyRenamesCmd, historySelectionsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(undoCmd)
	rootCmd.AddCommand(selectCmd)
}

// ActionCLI is one entry of the rename log
type ActionCLI struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	Owner  string    `json:"owner,omitempty"`
	Desc   string    `json:"desc,omitempty"`
	Before string    `json:"before"`
	After  string    `json:"after"`
	Reset  bool      `json:"reset,omitempty"`
	At     time.Time `json:"at"`
}

func newActionCLI(a *history.RenameAction) ActionCLI {
	out := ActionCLI{
		ID:     a.ID().String(),
		Kind:   a.Kind().String(),
		Desc:   a.Symbol().Desc(),
		Before: a.Before(),
		After:  a.After(),
		Reset:  a.IsReset(),
		At:     a.At(),
	}
	if owner := a.Owner(); owner != nil && owner.Name() != a.Symbol() {
		out.Owner = owner.Current()
	}
	return out
}

// lastN returns the final n elements of s, or all of s when n <= 0
func lastN[T any](s []T, n int) []T {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

func runHistoryRenames(cmd *cobra.Command, args []string) error {
	return withWorkspace(cmd, false, func(ctx context.Context, rt *runtime, ws *workspace) error {
		renames := lastN(ws.History().Renames(), historyLimit)
		actions := make([]ActionCLI, 0, len(renames))
		for _, a := range renames {
			actions = append(actions, newActionCLI(a))
		}

		out := cmd.OutOrStdout()
		if rt.format == FormatJSON {
			return writeJSON(out, map[string]interface{}{"renames": actions})
		}
		st := newStyler(out)
		if len(actions) == 0 {
			fmt.Fprintln(out, "No renames recorded")
			return nil
		}
		for _, a := range actions {
			where := ""
			if a.Owner != "" {
				where = st.Muted(" in " + a.Owner)
			}
			fmt.Fprintf(out, "%s  %s  %-6s %s → %s%s\n",
				st.Muted(shortID(a.ID, 8)), a.At.Local().Format("15:04:05"), a.Kind, a.Before, st.Accent(a.After), where)
		}
		return nil
	})
}

func runHistorySelections(cmd *cobra.Command, args []string) error {
	return withWorkspace(cmd, false, func(ctx context.Context, rt *runtime, ws *workspace) error {
		selections := lastN(ws.History().Selections(), historyLimit)

		out := cmd.OutOrStdout()
		if rt.format == FormatJSON {
			type selectionCLI struct {
				Title string    `json:"title"`
				At    time.Time `json:"at"`
			}
			list := make([]selectionCLI, 0, len(selections))
			for _, s := range selections {
				list = append(list, selectionCLI{Title: s.Title, At: s.At})
			}
			return writeJSON(out, map[string]interface{}{"selections": list})
		}
		if len(selections) == 0 {
			fmt.Fprintln(out, "No classes selected")
			return nil
		}
		st := newStyler(out)
		for _, s := range selections {
			fmt.Fprintf(out, "%s  %s\n", st.Muted(s.At.Local().Format("15:04:05")), s.Title)
		}
		return nil
	})
}

func runUndo(cmd *cobra.Command, args []string) error {
	return withWorkspace(cmd, true, func(ctx context.Context, rt *runtime, ws *workspace) error {
		var action *history.RenameAction
		var err error
		if len(args) == 1 {
			action, err = ws.Undo(args[0])
		} else {
			action, err = ws.UndoLatest()
		}
		if err != nil {
			return err
		}

		resp := newActionCLI(action)
		out := cmd.OutOrStdout()
		if rt.format == FormatJSON {
			return writeJSON(out, map[string]interface{}{"undone": resp})
		}
		st := newStyler(out)
		fmt.Fprintf(out, "Undid %s: %s %s → %s\n", st.Muted(shortID(resp.ID, 8)), resp.Kind, resp.After, st.Accent(resp.Before))
		return nil
	})
}

func runSelect(cmd *cobra.Command, args []string) error {
	return withWorkspace(cmd, true, func(ctx context.Context, rt *runtime, ws *workspace) error {
		_, title, added, err := ws.SelectClass(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if rt.format == FormatJSON {
			return writeJSON(out, map[string]interface{}{"title": title, "added": added})
		}
		if added {
			fmt.Fprintf(out, "Selected %s\n", title)
		} else {
			fmt.Fprintf(out, "%s is already the current selection\n", title)
		}
		return nil
	})
}
