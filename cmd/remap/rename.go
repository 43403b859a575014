package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"remap/internal/mapping"
)

var renameDesc string

var renameCmd = &cobra.Command{
	Use:   "rename",
	Short: "Rename a class, field or method",
	Long: `Rename one symbol of the loaded archive. Symbols are found by original or
current name; class names may be dotted (a.b.C) or internal (a/b/C). Renaming a
symbol to its current name changes nothing; renaming it to its original name
resets it.

Examples:
  remap rename class a.b.C com.example.Widget
  remap rename field com.example.Widget a count
  remap rename method com.example.Widget b start --desc "()V"`,
}

var renameClassCmd = &cobra.Command{
	Use:   "class <class> <new-name>",
	Short: "Rename a class; the package may change too",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRename(cmd, mapping.KindClass, args[0], "", args[1])
	},
}

var renameFieldCmd = &cobra.Command{
	Use:   "field <class> <field> <new-name>",
	Short: "Rename a field",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRename(cmd, mapping.KindField, args[0], args[1], args[2])
	},
}

var renameMethodCmd = &cobra.Command{
	Use:   "method <class> <method> <new-name>",
	Short: "Rename a method",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRename(cmd, mapping.KindMethod, args[0], args[1], args[2])
	},
}

func init() {
	for _, c := range []*cobra.Command{renameFieldCmd, renameMethodCmd} {
		c.Flags().StringVar(&renameDesc, "desc", "", "JVM descriptor, required when the name is overloaded")
	}
	renameCmd.AddCommand(renameClassCmd, renameFieldCmd, renameMethodCmd)
	rootCmd.AddCommand(renameCmd)
}

// RenameResponseCLI reports one rename
type RenameResponseCLI struct {
	Kind     string `json:"kind"`
	Owner    string `json:"owner,omitempty"`
	Original string `json:"original"`
	Desc     string `json:"desc,omitempty"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
	Changed  bool   `json:"changed"`
	ActionID string `json:"actionId,omitempty"`
}

func runRename(cmd *cobra.Command, kind mapping.Kind, class, member, newName string) error {
	return withWorkspace(cmd, true, func(ctx context.Context, rt *runtime, ws *workspace) error {
		sym, err := resolveSymbol(ws, kind, class, member)
		if err != nil {
			return err
		}
		outcome, err := ws.Rename(sym, newName)
		if err != nil {
			return err
		}

		resp := &RenameResponseCLI{
			Kind:     kind.String(),
			Original: sym.Original(),
			Desc:     sym.Desc(),
			Previous: outcome.Previous,
			Current:  sym.Current(),
			Changed:  outcome.Changed,
		}
		if kind != mapping.KindClass {
			resp.Owner = sym.Owner().Current()
		}
		if outcome.Action != nil {
			resp.ActionID = outcome.Action.ID().String()
		}

		out := cmd.OutOrStdout()
		if rt.format == FormatJSON {
			return writeJSON(out, resp)
		}
		st := newStyler(out)
		if !resp.Changed {
			fmt.Fprintf(out, "%s %s already has that name\n", resp.Kind, st.Accent(resp.Current))
			return nil
		}
		fmt.Fprintf(out, "Renamed %s %s → %s\n", resp.Kind, resp.Previous, st.Accent(resp.Current))
		fmt.Fprintf(out, "  %s\n", st.Muted("action "+shortID(resp.ActionID, 8)))
		return nil
	})
}

// resolveSymbol finds a class name symbol, or a member of class when kind is a
// member kind
func resolveSymbol(ws *workspace, kind mapping.Kind, class, member string) (*mapping.SymbolMapping, error) {
	if kind == mapping.KindClass {
		cm, err := ws.ResolveClass(class)
		if err != nil {
			return nil, err
		}
		return cm.Name(), nil
	}
	return ws.ResolveMember(kind, class, member, renameDesc)
}
