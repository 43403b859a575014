package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"remap/internal/config"
	"remap/internal/errors"
	"remap/internal/paths"
)

const testInventory = `{
  "version": 1,
  "classes": [
    {
      "name": "a/A",
      "fields": [{"name": "a", "desc": "I"}],
      "methods": [{"name": "a", "desc": "()V"}, {"name": "b", "desc": "(I)V"}]
    },
    {
      "name": "a/B",
      "super": "a/A",
      "fields": [{"name": "x", "desc": "La/A;"}]
    }
  ]
}
`

// resetFlags restores every flag to its default between executions
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--root", root, "--quiet"))
	err := rootCmd.Execute()
	return out.String(), err
}

func mustExecute(t *testing.T, root string, args ...string) string {
	t.Helper()
	out, err := execute(t, root, args...)
	if err != nil {
		t.Fatalf("remap %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func decodeJSON(t *testing.T, data string, v interface{}) {
	t.Helper()
	if err := json.Unmarshal([]byte(data), v); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, data)
	}
}

func loadedRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "inventory.json"), []byte(testInventory), 0644); err != nil {
		t.Fatal(err)
	}
	out := mustExecute(t, root, "load")
	if !strings.Contains(out, "inventory.json") || !strings.Contains(out, "2 classes") {
		t.Fatalf("unexpected load output:\n%s", out)
	}
	return root
}

func TestCLI_RequiresSession(t *testing.T) {
	root := t.TempDir()
	_, err := execute(t, root, "classes")
	if !errors.HasCode(err, errors.SessionMissing) {
		t.Fatalf("expected SESSION_MISSING, got %v", err)
	}
	if _, statErr := os.Stat(paths.GetDataDir(root)); !os.IsNotExist(statErr) {
		t.Error("a read-only command must not create the data directory")
	}
}

func TestCLI_LoadWithoutArchive(t *testing.T) {
	_, err := execute(t, t.TempDir(), "load")
	if !errors.HasCode(err, errors.ArchiveLoadFailed) {
		t.Fatalf("expected ARCHIVE_LOAD_FAILED, got %v", err)
	}
}

func TestCLI_RenameShowUndo(t *testing.T) {
	root := loadedRoot(t)

	mustExecute(t, root, "rename", "class", "a.A", "com.example.Widget")
	mustExecute(t, root, "rename", "field", "com.example.Widget", "a", "count")
	out := mustExecute(t, root, "rename", "method", "a/A", "b", "apply", "--desc", "(I)V")
	if !strings.Contains(out, "apply") {
		t.Errorf("unexpected rename output: %s", out)
	}

	var show ShowResponseCLI
	decodeJSON(t, mustExecute(t, root, "show", "a/B", "--format", "json"), &show)
	if show.Super != "com.example.Widget" {
		t.Errorf("Super = %q, want com.example.Widget", show.Super)
	}
	if len(show.Fields) != 1 || show.Fields[0].Signature != "com.example.Widget x" {
		t.Errorf("Fields = %+v", show.Fields)
	}

	var hist struct {
		Renames []ActionCLI `json:"renames"`
	}
	decodeJSON(t, mustExecute(t, root, "history", "renames", "--format", "json"), &hist)
	if len(hist.Renames) != 3 {
		t.Fatalf("history has %d renames, want 3", len(hist.Renames))
	}
	field := hist.Renames[1]
	if field.Kind != "field" || field.Before != "a" || field.After != "count" || field.Owner != "com/example/Widget" {
		t.Errorf("field action = %+v", field)
	}

	mustExecute(t, root, "undo", field.ID[:8])

	decodeJSON(t, mustExecute(t, root, "show", "com.example.Widget", "--format", "json"), &show)
	if len(show.Fields) != 1 || show.Fields[0].Current != "a" {
		t.Errorf("field after undo = %+v", show.Fields)
	}
	decodeJSON(t, mustExecute(t, root, "history", "renames", "--format", "json"), &hist)
	if len(hist.Renames) != 2 {
		t.Errorf("history has %d renames after undo, want 2", len(hist.Renames))
	}

	_, err := execute(t, root, "undo", field.ID)
	if !errors.HasCode(err, errors.HistoryInconsistency) {
		t.Errorf("second undo: expected HISTORY_INCONSISTENCY, got %v", err)
	}

	// without an id the latest rename, the method, is undone
	mustExecute(t, root, "undo")
	decodeJSON(t, mustExecute(t, root, "show", "a/A", "--format", "json"), &show)
	if show.Status != "renamed" {
		t.Errorf("class status = %q, want renamed", show.Status)
	}
	for _, m := range show.Methods {
		if m.Original == "b" && (m.Current != "b" || m.Status != "original") {
			t.Errorf("method after undo = %+v", m)
		}
	}
}

func TestCLI_RenameErrors(t *testing.T) {
	root := loadedRoot(t)
	mustExecute(t, root, "rename", "class", "a/A", "b/Taken")

	tests := []struct {
		name string
		args []string
		code errors.ErrorCode
	}{
		{"conflict", []string{"rename", "class", "a/B", "b.Taken"}, errors.NameConflict},
		{"invalid", []string{"rename", "field", "a/B", "x", "1bad"}, errors.InvalidIdentifier},
		{"unknown class", []string{"rename", "class", "z/Missing", "Q"}, errors.SymbolNotFound},
		{"unknown member", []string{"rename", "method", "a/B", "nope", "q"}, errors.SymbolNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, root, tt.args...)
			if !errors.HasCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestCLI_BulkAndReset(t *testing.T) {
	root := loadedRoot(t)

	var bulk BulkResponseCLI
	decodeJSON(t, mustExecute(t, root, "bulk", "all", "--format", "json"), &bulk)
	if bulk.Renamed == 0 || bulk.Renamed != len(bulk.Actions) {
		t.Fatalf("bulk all renamed %d with %d actions", bulk.Renamed, len(bulk.Actions))
	}
	if bulk.Stats.RenamedClasses != 2 {
		t.Errorf("RenamedClasses = %d, want 2", bulk.Stats.RenamedClasses)
	}

	var reset BulkResponseCLI
	decodeJSON(t, mustExecute(t, root, "reset", "a/A", "--format", "json"), &reset)
	var show ShowResponseCLI
	decodeJSON(t, mustExecute(t, root, "show", "a/A", "--format", "json"), &show)
	for _, m := range append(show.Fields, show.Methods...) {
		if m.Renamed {
			t.Errorf("%s %s still renamed after reset", m.Kind, m.Original)
		}
	}
}

func TestCLI_MappingsAndExport(t *testing.T) {
	root := loadedRoot(t)
	mustExecute(t, root, "rename", "class", "a/A", "com/example/Widget")
	mustExecute(t, root, "rename", "field", "a/B", "x", "owner")

	out := mustExecute(t, root, "mappings", "export", "names.yaml", "--only-renamed")
	if !strings.Contains(out, "Wrote 2 entries") {
		t.Errorf("unexpected export output: %s", out)
	}

	// A fresh session picks the names up again from the file
	mustExecute(t, root, "load", "inventory.json")
	var classes ClassesResponseCLI
	decodeJSON(t, mustExecute(t, root, "classes", "--renamed", "--format", "json"), &classes)
	if len(classes.Classes) != 0 {
		t.Fatalf("reload kept renames: %+v", classes.Classes)
	}

	var imported MappingsResponseCLI
	decodeJSON(t, mustExecute(t, root, "mappings", "import", "names.yaml", "--format", "json"), &imported)
	if imported.Changed != 2 {
		t.Errorf("import changed %d names, want 2", imported.Changed)
	}
	decodeJSON(t, mustExecute(t, root, "classes", "Widget", "--format", "json"), &classes)
	if len(classes.Classes) != 1 || classes.Classes[0].Current != "com/example/Widget" {
		t.Errorf("classes after import = %+v", classes.Classes)
	}

	mustExecute(t, root, "export", "renamed.json")
	data, err := os.ReadFile(filepath.Join(root, "renamed.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Lcom/example/Widget;") || strings.Contains(string(data), `"a/A"`) {
		t.Errorf("exported inventory not renamed:\n%s", data)
	}
}

func TestCLI_SelectAndView(t *testing.T) {
	root := loadedRoot(t)

	cfg := config.DefaultConfig()
	cfg.Decompiler.SourceDir = "src"
	if err := cfg.Save(root); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(root, "src", "a", "A.java")
	if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("package a;\n\npublic class A {\n}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	mustExecute(t, root, "select", "a/B")
	mustExecute(t, root, "rename", "class", "a/A", "a/Widget")

	var view struct {
		Views []ViewResultCLI `json:"views"`
	}
	decodeJSON(t, mustExecute(t, root, "view", "a/A", "a/B", "--raw", "--format", "json"), &view)
	if len(view.Views) != 2 {
		t.Fatalf("got %d views, want 2", len(view.Views))
	}
	if view.Views[0].Class != "a.Widget" || !strings.Contains(view.Views[0].Source, "class A") {
		t.Errorf("view of a/A = %+v", view.Views[0])
	}
	if view.Views[1].Error == "" {
		t.Errorf("a/B has no source and should report an error: %+v", view.Views[1])
	}

	var selections struct {
		Selections []struct {
			Title string `json:"title"`
		} `json:"selections"`
	}
	decodeJSON(t, mustExecute(t, root, "history", "selections", "--format", "json"), &selections)
	var titles []string
	for _, s := range selections.Selections {
		titles = append(titles, s.Title)
	}
	// a.B was selected, then a.Widget, then a.B again
	if strings.Join(titles, ",") != "a.B,a.Widget,a.B" {
		t.Errorf("selections = %v", titles)
	}
}

func TestCLI_ViewAfterNameSwap(t *testing.T) {
	root := loadedRoot(t)

	cfg := config.DefaultConfig()
	cfg.Decompiler.SourceDir = "src"
	if err := cfg.Save(root); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"A", "B"} {
		src := filepath.Join(root, "src", "a", name+".java")
		if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(src, []byte("package a;\n\npublic class "+name+" {}\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	// a.B now names the class originally called A
	mustExecute(t, root, "rename", "class", "a/B", "a/Z")
	mustExecute(t, root, "rename", "class", "a/A", "a/B")

	tests := []struct {
		name     string
		args     []string
		original string
		title    string
		source   string
	}{
		{"by original name", []string{"a/A"}, "a/A", "a.B", "class A"},
		{"other class by original name", []string{"a/B"}, "a/B", "a.Z", "class B"},
		{"by current name", []string{"a.Z"}, "a/B", "a.Z", "class B"},
		{"reselected", []string{"a/A", "a/A"}, "a/A", "a.B", "class A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var view struct {
				Views []ViewResultCLI `json:"views"`
			}
			args := append([]string{"view"}, tt.args...)
			args = append(args, "--raw", "--format", "json")
			decodeJSON(t, mustExecute(t, root, args...), &view)
			if len(view.Views) != 1 {
				t.Fatalf("got %d views, want 1: %+v", len(view.Views), view.Views)
			}
			got := view.Views[0]
			if got.Original != tt.original || got.Class != tt.title || !strings.Contains(got.Source, tt.source) {
				t.Errorf("view = %+v, want %s titled %s with %q", got, tt.original, tt.title, tt.source)
			}
		})
	}
}

func TestCLI_ConfigInit(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "inventory.json"), []byte(testInventory), 0644); err != nil {
		t.Fatal(err)
	}

	mustExecute(t, root, "config", "init")
	if _, err := os.Stat(paths.GetConfigPath(root)); err != nil {
		t.Errorf("config.json not written: %v", err)
	}
	decl, err := os.ReadFile(filepath.Join(root, "REMAP.toml"))
	if err != nil {
		t.Fatalf("REMAP.toml not written: %v", err)
	}
	if !strings.Contains(string(decl), "inventory.json") {
		t.Errorf("REMAP.toml does not declare the archive:\n%s", decl)
	}

	var show ConfigShowResponse
	decodeJSON(t, mustExecute(t, root, "config", "show", "--format", "json"), &show)
	if show.ConfigPath == "" || show.Declaration == "" {
		t.Errorf("config show = %+v", show)
	}

	// REMAP.toml is picked up by load
	out := mustExecute(t, root, "load")
	if !strings.Contains(out, "inventory.json") {
		t.Errorf("unexpected load output: %s", out)
	}
}

func TestPrintError(t *testing.T) {
	err := errors.New(errors.SessionMissing, "no archive is loaded")

	var human bytes.Buffer
	printError(&human, err, FormatHuman)
	for _, want := range []string{"SESSION_MISSING", "Suggested fixes", "$ remap load <inventory>"} {
		if !strings.Contains(human.String(), want) {
			t.Errorf("human output missing %q:\n%s", want, human.String())
		}
	}

	var js bytes.Buffer
	printError(&js, err, FormatJSON)
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeJSON(t, js.String(), &resp)
	if resp.Error.Code != "SESSION_MISSING" {
		t.Errorf("code = %q", resp.Error.Code)
	}
}

func TestParseOutputFormat(t *testing.T) {
	for _, s := range []string{"", "human", "json"} {
		if _, err := ParseOutputFormat(s); err != nil {
			t.Errorf("ParseOutputFormat(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseOutputFormat("xml"); err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}
