package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"remap/internal/config"
	"remap/internal/paths"
	"remap/internal/project"
)

var (
	configShowDiff bool
	configForce    bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage remap configuration",
	Long:  "View and manage remap configuration stored in .remap/config.json and REMAP.toml",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration in effect: .remap/config.json over the defaults,
REMAP_LOGGING_LEVEL, and the settings merged in from REMAP.toml.

Examples:
  remap config show              # Pretty-print current config
  remap config show --format json
  remap config show --diff       # Only show non-default values`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default .remap/config.json and REMAP.toml",
	Long: `Write the default configuration to .remap/config.json. When no REMAP.toml
exists and an archive inventory is found in the directory, a REMAP.toml declaring
it is written too.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowDiff, "diff", false, "Only show non-default values")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config.json")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

// ConfigShowResponse is the response format for config show
type ConfigShowResponse struct {
	ConfigPath  string                 `json:"configPath,omitempty"`
	Declaration string                 `json:"declaration,omitempty"`
	Config      map[string]interface{} `json:"config"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	configMap, err := toMap(rt.cfg)
	if err != nil {
		return err
	}
	if configShowDiff {
		defaultMap, err := toMap(config.DefaultConfig())
		if err != nil {
			return err
		}
		configMap = computeDiff(configMap, defaultMap)
	}

	resp := ConfigShowResponse{Config: configMap}
	if _, err := os.Stat(paths.GetConfigPath(rt.root)); err == nil {
		resp.ConfigPath = paths.GetConfigPath(rt.root)
	}
	if rt.decl != nil {
		resp.Declaration = filepath.Join(rt.root, project.DeclarationFile)
	}

	out := cmd.OutOrStdout()
	if rt.format == FormatJSON {
		return writeJSON(out, resp)
	}

	st := newStyler(out)
	fmt.Fprintln(out, st.Bold("remap configuration"))
	fmt.Fprintln(out, rule(50))
	if resp.ConfigPath == "" {
		fmt.Fprintln(out, "Source: defaults (no config file found)")
	} else {
		fmt.Fprintf(out, "Source: %s\n", resp.ConfigPath)
	}
	if resp.Declaration != "" {
		fmt.Fprintf(out, "Project: %s\n", resp.Declaration)
	}
	fmt.Fprintln(out)
	printConfigSection(out, st, configMap, "")
	return nil
}

func toMap(cfg *config.Config) (map[string]interface{}, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return m, nil
}

// computeDiff keeps the values of current that differ from defaults
func computeDiff(current, defaults map[string]interface{}) map[string]interface{} {
	diff := make(map[string]interface{})
	for k, v := range current {
		dv, ok := defaults[k]
		if !ok {
			diff[k] = v
			continue
		}
		vm, isMap := v.(map[string]interface{})
		dm, isDefaultMap := dv.(map[string]interface{})
		if isMap && isDefaultMap {
			if sub := computeDiff(vm, dm); len(sub) > 0 {
				diff[k] = sub
			}
			continue
		}
		a, _ := json.Marshal(v)
		b, _ := json.Marshal(dv)
		if string(a) != string(b) {
			diff[k] = v
		}
	}
	return diff
}

func printConfigSection(out io.Writer, st styler, m map[string]interface{}, indent string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := m[k].(type) {
		case map[string]interface{}:
			fmt.Fprintf(out, "%s%s:\n", indent, st.Bold(k))
			printConfigSection(out, st, v, indent+"  ")
		case []interface{}:
			items := make([]string, len(v))
			for i, item := range v {
				items[i] = fmt.Sprint(item)
			}
			fmt.Fprintf(out, "%s%s: [%s]\n", indent, k, strings.Join(items, ", "))
		default:
			fmt.Fprintf(out, "%s%s: %v\n", indent, k, v)
		}
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	root, err := getRoot()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	configPath := paths.GetConfigPath(root)
	if _, err := os.Stat(configPath); err == nil && !configForce {
		fmt.Fprintf(out, "%s already exists; use --force to overwrite\n", configPath)
	} else {
		if err := config.DefaultConfig().Save(root); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Fprintf(out, "Wrote %s\n", configPath)
	}

	declPath := filepath.Join(root, project.DeclarationFile)
	if _, err := os.Stat(declPath); err == nil {
		return nil
	}
	archivePath, kind, ok := project.DetectArchive(root)
	if !ok {
		fmt.Fprintf(out, "No archive inventory found; run %q to produce a SCIP index, then declare it in %s\n",
			project.JavaIndexer.Command, project.DeclarationFile)
		return nil
	}
	decl := &project.Declaration{
		Version: 1,
		Archive: project.ArchiveDeclaration{Path: archivePath, Kind: kind},
		Mappings: project.MappingsDeclaration{
			Path:   "mappings.txt",
			Format: config.DefaultConfig().MappingFile.Format,
		},
	}
	if err := project.WriteDeclaration(declPath, decl); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s (archive %s)\n", declPath, archivePath)
	return nil
}
