package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"remap/internal/archive"
	"remap/internal/errors"
	"remap/internal/mappingfile"
	"remap/internal/paths"
)

var (
	mappingsFormat      string
	mappingsOnlyRenamed bool
	mappingsAll         bool
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Save or apply mapping files",
	Long: `Mapping files list (kind, owner, original, descriptor, current) for each symbol.
Formats: text (tab separated), yaml and toml; the format follows the file
extension unless --format-file is given, and .gz or .zst files are compressed.
Without a file argument the mapping file declared in REMAP.toml is used.`,
}

var mappingsExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the current names to a mapping file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMappingsExport,
}

var mappingsImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Apply a mapping file; nothing changes if any entry is invalid",
	Long: `Apply a mapping file to the loaded archive. Every entry is validated first and
the file is applied as a whole or not at all. Imported names are not recorded as
renames, so they cannot be undone one by one.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMappingsImport,
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the archive inventory under the current names",
	Long: `Write the class inventory with every class, field and method under its current
name and all descriptors rewritten to the current class names. The output is
JSON, or YAML for .yaml/.yml paths, optionally compressed (.gz, .zst).`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	mappingsCmd.PersistentFlags().StringVar(&mappingsFormat, "format-file", "", "Mapping file format (text, yaml, toml)")
	mappingsExportCmd.Flags().BoolVar(&mappingsOnlyRenamed, "only-renamed", false, "Only write renamed symbols")
	mappingsExportCmd.Flags().BoolVar(&mappingsAll, "all", false, "Write every symbol even when mappingFile.onlyRenamed is set")
	mappingsExportCmd.MarkFlagsMutuallyExclusive("only-renamed", "all")
	mappingsCmd.AddCommand(mappingsExportCmd, mappingsImportCmd)
	rootCmd.AddCommand(mappingsCmd)
	rootCmd.AddCommand(exportCmd)
}

// mappingTarget resolves the file and format of a mappings command
func mappingTarget(rt *runtime, args []string) (string, mappingfile.Format, error) {
	var path string
	switch {
	case len(args) == 1:
		path = paths.Resolve(rt.root, args[0])
	case rt.decl != nil && rt.decl.Mappings.Path != "":
		path = rt.decl.MappingsPath(rt.root)
	default:
		return "", "", errors.New(errors.MappingFormatInvalid,
			"no mapping file given and none declared in REMAP.toml")
	}

	if mappingsFormat != "" {
		format, err := mappingfile.ParseFormat(mappingsFormat)
		return path, format, err
	}
	def, err := mappingfile.ParseFormat(rt.cfg.MappingFile.Format)
	if err != nil {
		return "", "", err
	}
	return path, mappingfile.FormatForPath(path, def), nil
}

// MappingsResponseCLI reports a mapping file transfer
type MappingsResponseCLI struct {
	Path    string `json:"path"`
	Format  string `json:"format"`
	Entries int    `json:"entries,omitempty"`
	Changed int    `json:"changed,omitempty"`
}

func runMappingsExport(cmd *cobra.Command, args []string) error {
	return withWorkspace(cmd, false, func(ctx context.Context, rt *runtime, ws *workspace) error {
		path, format, err := mappingTarget(rt, args)
		if err != nil {
			return err
		}
		onlyRenamed := (rt.cfg.MappingFile.OnlyRenamed || mappingsOnlyRenamed) && !mappingsAll

		n, err := ws.ExportMappings(path, format, onlyRenamed)
		if err != nil {
			return err
		}

		resp := &MappingsResponseCLI{Path: path, Format: string(format), Entries: n}
		out := cmd.OutOrStdout()
		if rt.format == FormatJSON {
			return writeJSON(out, resp)
		}
		fmt.Fprintf(out, "Wrote %d entries to %s (%s)\n", n, newStyler(out).Accent(path), format)
		return nil
	})
}

func runMappingsImport(cmd *cobra.Command, args []string) error {
	return withWorkspace(cmd, true, func(ctx context.Context, rt *runtime, ws *workspace) error {
		path, format, err := mappingTarget(rt, args)
		if err != nil {
			return err
		}

		changed, err := ws.ImportMappings(path, format)
		if err != nil {
			return err
		}

		resp := &MappingsResponseCLI{Path: path, Format: string(format), Changed: changed}
		out := cmd.OutOrStdout()
		if rt.format == FormatJSON {
			return writeJSON(out, resp)
		}
		fmt.Fprintf(out, "Applied %s: %d names changed\n", newStyler(out).Accent(path), changed)
		return nil
	})
}

func runExport(cmd *cobra.Command, args []string) error {
	return withWorkspace(cmd, false, func(ctx context.Context, rt *runtime, ws *workspace) error {
		path := paths.Resolve(rt.root, args[0])
		if err := ws.ExportArchive(ctx, archive.NewInventoryFile(path)); err != nil {
			return err
		}

		stats := ws.Table().Stats()
		out := cmd.OutOrStdout()
		if rt.format == FormatJSON {
			return writeJSON(out, map[string]interface{}{"path": path, "stats": stats})
		}
		fmt.Fprintf(out, "Wrote %d classes to %s\n", stats.Classes, newStyler(out).Accent(path))
		return nil
	})
}
