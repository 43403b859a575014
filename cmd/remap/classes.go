package main

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"remap/internal/mapping"
)

var classesRenamedOnly bool

var classesCmd = &cobra.Command{
	Use:   "classes [pattern]",
	Short: "List the classes of the loaded archive by package",
	Long: `List classes grouped by their current package. The optional pattern is a
glob (a.b.*) when it contains wildcards, otherwise a case-insensitive substring;
it matches original and current names alike.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClasses,
}

var showCmd = &cobra.Command{
	Use:   "show <class>",
	Short: "Show a class with its members under their current names",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	classesCmd.Flags().BoolVar(&classesRenamedOnly, "renamed", false, "Only list classes with renamed symbols")
	rootCmd.AddCommand(classesCmd)
	rootCmd.AddCommand(showCmd)
}

// ClassSummaryCLI is one row of the class list
type ClassSummaryCLI struct {
	Original string `json:"original"`
	Current  string `json:"current"`
	Renamed  bool   `json:"renamed"`
	Members  int    `json:"members"`
	// RenamedSymbols counts the class name and its members
	RenamedSymbols int `json:"renamedSymbols"`
}

// ClassesResponseCLI is the class list
type ClassesResponseCLI struct {
	Pattern string            `json:"pattern,omitempty"`
	Classes []ClassSummaryCLI `json:"classes"`
	Stats   mapping.Stats     `json:"stats"`
}

func runClasses(cmd *cobra.Command, args []string) error {
	pattern := ""
	if len(args) == 1 {
		pattern = args[0]
	}

	return withWorkspace(cmd, false, func(ctx context.Context, rt *runtime, ws *workspace) error {
		table := ws.Table()
		resp := &ClassesResponseCLI{Pattern: pattern, Classes: []ClassSummaryCLI{}, Stats: table.Stats()}
		for _, cm := range table.Classes() {
			if !matchClass(cm, pattern) {
				continue
			}
			renamed := cm.RenamedCount()
			if classesRenamedOnly && renamed == 0 {
				continue
			}
			resp.Classes = append(resp.Classes, ClassSummaryCLI{
				Original:       cm.Original(),
				Current:        cm.Current(),
				Renamed:        cm.Name().IsRenamed(),
				Members:        len(cm.Members()),
				RenamedSymbols: renamed,
			})
		}

		out := cmd.OutOrStdout()
		if rt.format == FormatJSON {
			return writeJSON(out, resp)
		}
		fmt.Fprint(out, formatClassesHuman(resp, newStyler(out)))
		return nil
	})
}

// matchClass applies a classes pattern to both names of cm
func matchClass(cm *mapping.ClassMapping, pattern string) bool {
	if pattern == "" {
		return true
	}
	names := []string{mapping.DottedName(cm.Original()), mapping.DottedName(cm.Current())}
	if strings.ContainsAny(pattern, "*?[") {
		pattern = mapping.DottedName(pattern)
		for _, n := range names {
			// path.Match treats '/' as a separator; dotted names have none
			if ok, _ := path.Match(pattern, n); ok {
				return true
			}
		}
		return false
	}
	pattern = strings.ToLower(mapping.DottedName(pattern))
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), pattern) {
			return true
		}
	}
	return false
}

// formatClassesHuman renders the class list as a package tree
func formatClassesHuman(resp *ClassesResponseCLI, st styler) string {
	var b strings.Builder

	byPackage := make(map[string][]ClassSummaryCLI)
	for _, c := range resp.Classes {
		pkg := "(default package)"
		if i := strings.LastIndexByte(c.Current, '/'); i >= 0 {
			pkg = mapping.DottedName(c.Current[:i])
		}
		byPackage[pkg] = append(byPackage[pkg], c)
	}
	pkgs := make([]string, 0, len(byPackage))
	for p := range byPackage {
		pkgs = append(pkgs, p)
	}
	sort.Strings(pkgs)

	for _, pkg := range pkgs {
		b.WriteString(st.Bold(pkg) + "\n")
		classes := byPackage[pkg]
		sort.Slice(classes, func(i, j int) bool { return classes[i].Current < classes[j].Current })
		for i, c := range classes {
			branch := "├── "
			if i == len(classes)-1 {
				branch = "└── "
			}
			simple := c.Current[strings.LastIndexByte(c.Current, '/')+1:]
			line := simple
			if c.Renamed {
				line = st.Accent(simple) + st.Muted(" ← "+mapping.DottedName(c.Original))
			}
			if c.RenamedSymbols > 0 {
				line += st.Muted(fmt.Sprintf("  (%d renamed)", c.RenamedSymbols))
			}
			b.WriteString(branch + line + "\n")
		}
	}

	s := resp.Stats
	b.WriteString(fmt.Sprintf("\n%d of %d classes shown; renamed %d classes, %d fields, %d methods\n",
		len(resp.Classes), s.Classes, s.RenamedClasses, s.RenamedFields, s.RenamedMethods))
	return b.String()
}

// MemberCLI is a field or method under its current name
type MemberCLI struct {
	Kind      string `json:"kind"`
	Original  string `json:"original"`
	Current   string `json:"current"`
	Desc      string `json:"desc"`
	Signature string `json:"signature"`
	Renamed   bool   `json:"renamed"`
	Status    string `json:"status"`
}

// ShowResponseCLI is the class view
type ShowResponseCLI struct {
	Original   string      `json:"original"`
	Current    string      `json:"current"`
	Status     string      `json:"status"`
	Super      string      `json:"super,omitempty"`
	Interfaces []string    `json:"interfaces,omitempty"`
	Outer      string      `json:"outer,omitempty"`
	Inner      []string    `json:"inner,omitempty"`
	Subclasses []string    `json:"subclasses,omitempty"`
	Fields     []MemberCLI `json:"fields"`
	Methods    []MemberCLI `json:"methods"`
}

func runShow(cmd *cobra.Command, args []string) error {
	return withWorkspace(cmd, false, func(ctx context.Context, rt *runtime, ws *workspace) error {
		cm, err := ws.ResolveClass(args[0])
		if err != nil {
			return err
		}
		resp := buildShowResponse(ws.Table(), cm)

		out := cmd.OutOrStdout()
		if rt.format == FormatJSON {
			return writeJSON(out, resp)
		}
		fmt.Fprint(out, formatShowHuman(resp, newStyler(out)))
		return nil
	})
}

func buildShowResponse(table *mapping.Table, cm *mapping.ClassMapping) *ShowResponseCLI {
	current := func(name string) string {
		if name == "" {
			return ""
		}
		return mapping.DottedName(table.CurrentName(name))
	}

	resp := &ShowResponseCLI{
		Original: mapping.DottedName(cm.Original()),
		Current:  mapping.DottedName(cm.Current()),
		Status:   string(cm.Name().Status()),
		Super:    current(cm.Super()),
		Outer:    current(cm.Outer()),
		Fields:   []MemberCLI{},
		Methods:  []MemberCLI{},
	}
	for _, iface := range cm.Interfaces() {
		resp.Interfaces = append(resp.Interfaces, current(iface))
	}
	for _, inner := range table.InnerClasses(cm) {
		resp.Inner = append(resp.Inner, mapping.DottedName(inner.Current()))
	}
	for _, sub := range table.Subclasses(cm) {
		resp.Subclasses = append(resp.Subclasses, mapping.DottedName(sub.Current()))
	}
	for _, f := range cm.Fields() {
		resp.Fields = append(resp.Fields, MemberCLI{
			Kind:      f.Kind().String(),
			Original:  f.Original(),
			Current:   f.Current(),
			Desc:      f.Desc(),
			Signature: mapping.JavaTypeName(table.ResolveFieldType(f.Desc())) + " " + f.Current(),
			Renamed:   f.IsRenamed(),
			Status:    string(f.Status()),
		})
	}
	for _, m := range cm.Methods() {
		resp.Methods = append(resp.Methods, MemberCLI{
			Kind:      m.Kind().String(),
			Original:  m.Original(),
			Current:   m.Current(),
			Desc:      m.Desc(),
			Signature: mapping.JavaMethodSignature(m.Current(), table.ResolveMethodSignature(m.Desc())),
			Renamed:   m.IsRenamed(),
			Status:    string(m.Status()),
		})
	}
	return resp
}

func formatShowHuman(resp *ShowResponseCLI, st styler) string {
	var b strings.Builder

	b.WriteString(st.AccentBold(resp.Current) + "\n")
	if resp.Current != resp.Original {
		b.WriteString(st.Muted("  original "+resp.Original) + "\n")
	}
	b.WriteString(rule(60) + "\n")
	if resp.Super != "" {
		b.WriteString(fmt.Sprintf("extends    %s\n", resp.Super))
	}
	if len(resp.Interfaces) > 0 {
		b.WriteString(fmt.Sprintf("implements %s\n", strings.Join(resp.Interfaces, ", ")))
	}
	if resp.Outer != "" {
		b.WriteString(fmt.Sprintf("inside     %s\n", resp.Outer))
	}
	if len(resp.Inner) > 0 {
		b.WriteString(fmt.Sprintf("inner      %s\n", strings.Join(resp.Inner, ", ")))
	}
	if len(resp.Subclasses) > 0 {
		b.WriteString(fmt.Sprintf("subtypes   %s\n", strings.Join(resp.Subclasses, ", ")))
	}

	writeMembers := func(title string, members []MemberCLI) {
		if len(members) == 0 {
			return
		}
		b.WriteString("\n" + st.Bold(title) + "\n")
		for _, m := range members {
			line := "  " + m.Signature
			if m.Renamed {
				line = "  " + st.Accent(m.Signature) + st.Muted("  ← "+m.Original)
			}
			b.WriteString(line + st.Muted("  "+m.Desc) + "\n")
		}
	}
	writeMembers("Fields", resp.Fields)
	writeMembers("Methods", resp.Methods)
	return b.String()
}
