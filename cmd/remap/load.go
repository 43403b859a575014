package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"remap/internal/errors"
	"remap/internal/mapping"
	"remap/internal/mappingfile"
	"remap/internal/paths"
	"remap/internal/project"
)

var (
	loadSCIP      bool
	loadInventory bool
	loadMappings  bool
)

var loadCmd = &cobra.Command{
	Use:   "load [archive]",
	Short: "Load an archive inventory and start a new session",
	Long: `Load a class inventory (JSON or YAML, optionally .gz/.zst) or a SCIP index
produced by scip-java. The new session replaces the previous one together with its
history.

Without an argument the archive declared in REMAP.toml is loaded; failing that,
well-known files such as inventory.json or index.scip are looked up.

Examples:
  remap load inventory.json
  remap load --scip build/index.scip
  remap load                      # REMAP.toml or auto-detected`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().BoolVar(&loadSCIP, "scip", false, "Read the archive as a SCIP index")
	loadCmd.Flags().BoolVar(&loadInventory, "inventory", false, "Read the archive as a JSON/YAML inventory")
	loadCmd.Flags().BoolVar(&loadMappings, "mappings", true, "Apply the mapping file declared in REMAP.toml after loading")
	loadCmd.MarkFlagsMutuallyExclusive("scip", "inventory")
	rootCmd.AddCommand(loadCmd)
}

// LoadResponseCLI describes a finished load
type LoadResponseCLI struct {
	Source      string        `json:"source"`
	Kind        string        `json:"kind"`
	Fingerprint string        `json:"fingerprint"`
	Stats       mapping.Stats `json:"stats"`
	Applied     int           `json:"appliedMappings,omitempty"`
	Mappings    string        `json:"mappingsFile,omitempty"`
}

func runLoad(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	source, kind, err := resolveArchive(rt, args)
	if err != nil {
		return err
	}

	ctx, cancel := newContext(cmd)
	defer cancel()

	ws, err := rt.openStore()
	if err != nil {
		return err
	}
	defer ws.Close()

	reader := project.NewReader(paths.Resolve(rt.root, source), kind)
	if err := ws.Load(ctx, reader, source, kind); err != nil {
		return err
	}

	resp := &LoadResponseCLI{
		Source:      source,
		Kind:        kind,
		Fingerprint: ws.Fingerprint(),
	}

	if loadMappings && rt.decl != nil && rt.decl.Mappings.Path != "" {
		path := rt.decl.MappingsPath(rt.root)
		if _, statErr := os.Stat(path); statErr == nil {
			def, _ := mappingfile.ParseFormat(rt.cfg.MappingFile.Format)
			applied, err := ws.ImportMappings(path, mappingfile.FormatForPath(path, def))
			if err != nil {
				return err
			}
			resp.Applied = applied
			resp.Mappings = rt.decl.Mappings.Path
		}
	}
	resp.Stats = ws.Table().Stats()

	if err := ws.save(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	out := cmd.OutOrStdout()
	if rt.format == FormatJSON {
		return writeJSON(out, resp)
	}
	st := newStyler(out)
	fmt.Fprintf(out, "Loaded %s (%s)\n", st.Accent(resp.Source), resp.Kind)
	fmt.Fprintf(out, "  %d classes, %d fields, %d methods\n", resp.Stats.Classes, resp.Stats.Fields, resp.Stats.Methods)
	fmt.Fprintf(out, "  %s\n", st.Muted("fingerprint "+shortID(resp.Fingerprint, 16)))
	if resp.Mappings != "" {
		fmt.Fprintf(out, "  Applied %d names from %s\n", resp.Applied, resp.Mappings)
	}
	return nil
}

// resolveArchive picks the archive to load: the argument, REMAP.toml, or a
// well-known file in the session directory
func resolveArchive(rt *runtime, args []string) (string, string, error) {
	var source, kind string
	switch {
	case len(args) == 1:
		source, kind = args[0], project.KindForPath(args[0])
		// Archives under the session directory are recorded relative to it
		if filepath.IsAbs(source) {
			if rel, err := paths.CanonicalizePath(source, rt.root); err == nil && !strings.HasPrefix(rel, "..") {
				source = rel
			}
		}
	case rt.decl != nil:
		source, kind = rt.decl.Archive.Path, rt.decl.ArchiveKind()
	default:
		found, foundKind, ok := project.DetectArchive(rt.root)
		if !ok {
			return "", "", errors.Newf(errors.ArchiveLoadFailed,
				"no archive given and none found in %s; pass a path or declare one in %s", rt.root, project.DeclarationFile).
				WithDetails(map[string]string{"indexer": project.JavaIndexer.Command})
		}
		source, kind = found, foundKind
	}

	switch {
	case loadSCIP:
		kind = project.KindSCIP
	case loadInventory:
		kind = project.KindInventory
	}
	rt.logger.Debug("Resolved archive", "source", source, "kind", kind)
	return source, kind, nil
}

// shortID abbreviates identifiers for human output
func shortID(id string, n int) string {
	if len(id) > n {
		return id[:n]
	}
	return id
}
