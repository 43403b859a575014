package decompile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"remap/internal/config"
	"remap/internal/mapping"
)

func TestTopLevelAndSimpleName(t *testing.T) {
	tests := []struct {
		class  string
		top    string
		simple string
	}{
		{"a/b/C", "a/b/C", "C"},
		{"a/b/C$D", "a/b/C", "D"},
		{"a/b/C$D$E", "a/b/C", "E"},
		{"C", "C", "C"},
		{"C$1", "C", "1"},
		{"a/$Proxy", "a/$Proxy", "$Proxy"},
	}
	for _, tt := range tests {
		if got := TopLevel(tt.class); got != tt.top {
			t.Errorf("TopLevel(%q) = %q, want %q", tt.class, got, tt.top)
		}
		if tt.class != "a/$Proxy" {
			if got := SimpleName(tt.class); got != tt.simple {
				t.Errorf("SimpleName(%q) = %q, want %q", tt.class, got, tt.simple)
			}
		}
	}
}

func TestSourceDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "C.java")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("package a.b;\nclass C {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	d := SourceDir{Dir: dir}
	for _, class := range []string{"a/b/C", "a/b/C$Inner"} {
		src, err := d.Decompile(context.Background(), class)
		if err != nil {
			t.Fatalf("Decompile(%s) failed: %v", class, err)
		}
		if !strings.Contains(src, "class C") {
			t.Errorf("Decompile(%s) = %q", class, src)
		}
	}
	if _, err := d.Decompile(context.Background(), "a/b/Missing"); err == nil {
		t.Error("expected an error for a missing source")
	}
}

func TestCommand(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}

	cmd := Command{Args: []string{"/bin/sh", "-c", `printf 'class %s // %s' "$0" "$1"`, "{name}", "{class}"}}
	src, err := cmd.Decompile(context.Background(), "a/b/C")
	if err != nil {
		t.Fatalf("Decompile failed: %v", err)
	}
	if src != "class a.b.C // a/b/C" {
		t.Errorf("Decompile() = %q", src)
	}

	failing := Command{Args: []string{"/bin/sh", "-c", "echo broken >&2; exit 3"}}
	if _, err := failing.Decompile(context.Background(), "a/b/C"); err == nil || !strings.Contains(err.Error(), "broken") {
		t.Errorf("expected stderr in the error, got %v", err)
	}

	slow := Command{Args: []string{"/bin/sh", "-c", "sleep 5"}, Timeout: 20 * time.Millisecond}
	if _, err := slow.Decompile(context.Background(), "a/b/C"); err == nil {
		t.Error("expected a timeout")
	}

	if _, err := (Command{}).Decompile(context.Background(), "a/b/C"); err == nil {
		t.Error("expected an error for an empty command")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Decompiler
	if _, err := FromConfig(cfg, "/work"); err == nil {
		t.Error("expected an error when nothing is configured")
	}

	cfg.SourceDir = "src"
	d, err := FromConfig(cfg, "/work")
	if err != nil {
		t.Fatal(err)
	}
	if sd, ok := d.(SourceDir); !ok || sd.Dir != filepath.Join("/work", "src") {
		t.Errorf("FromConfig() = %#v", d)
	}

	cfg.Command = []string{"cfr", "{class}"}
	d, err = FromConfig(cfg, "/work")
	if err != nil {
		t.Fatal(err)
	}
	if c, ok := d.(Command); !ok || c.Timeout != 30*time.Second {
		t.Errorf("FromConfig() = %#v", d)
	}
}

func namesTable(t *testing.T) *mapping.Table {
	t.Helper()
	table := mapping.NewTable()

	outer := mapping.NewClassMapping("a/Outer", "", "", nil)
	_, _ = outer.AddField("f", "I")
	_, _ = outer.AddField("g", "I")
	_, _ = outer.AddMethod("<init>", "()V")
	_, _ = outer.AddMethod("run", "()V")
	_, _ = outer.AddMethod("over", "()V")
	_, _ = outer.AddMethod("over", "(I)V")
	inner := mapping.NewClassMapping("a/Outer$In", "", "a/Outer", nil)
	_, _ = inner.AddField("h", "J")
	other := mapping.NewClassMapping("b/Other", "", "", nil)
	_, _ = other.AddField("f", "I")
	dupA := mapping.NewClassMapping("c/Dup", "", "", nil)
	dupB := mapping.NewClassMapping("d/Dup", "", "", nil)

	for _, cm := range []*mapping.ClassMapping{outer, inner, other, dupA, dupB} {
		if err := table.Add(cm); err != nil {
			t.Fatal(err)
		}
	}
	return table
}

func TestSnapshotNames(t *testing.T) {
	table := namesTable(t)
	outer, _ := table.Get("a/Outer")
	inner, _ := table.Get("a/Outer$In")
	other, _ := table.Get("b/Other")
	dupA, _ := table.Get("c/Dup")
	dupB, _ := table.Get("d/Dup")

	names := SnapshotNames(table, inner)
	if !names.Empty() {
		t.Error("nothing is renamed yet")
	}

	outer.Name().SetValue("p/Main")
	f, _ := outer.Field("f", "I")
	f.SetValue("count")
	run, _ := outer.Method("run", "()V")
	run.SetValue("start")
	over0, _ := outer.Method("over", "()V")
	over0.SetValue("first")
	over1, _ := outer.Method("over", "(I)V")
	over1.SetValue("second")
	h, _ := inner.Field("h", "J")
	h.SetValue("total")
	of, _ := other.Field("f", "I")
	of.SetValue("elsewhere")
	dupA.Name().SetValue("c/First")
	dupB.Name().SetValue("d/Second")

	names = SnapshotNames(table, inner)
	if names.Class() != "a/Outer$In" {
		t.Errorf("Class() = %s", names.Class())
	}
	if got, ok := names.ClassName("a/Outer"); !ok || got != "p/Main" {
		t.Errorf("ClassName(a/Outer) = %s, %v", got, ok)
	}
	if got, ok := names.SimpleClassName("Outer"); !ok || got != "Main" {
		t.Errorf("SimpleClassName(Outer) = %s, %v", got, ok)
	}
	if _, ok := names.SimpleClassName("Dup"); ok {
		t.Error("Dup is ambiguous and must not be mapped")
	}
	if got, ok := names.Field("a/Outer", "f"); !ok || got != "count" {
		t.Errorf("Field(a/Outer, f) = %s, %v", got, ok)
	}
	if got, ok := names.Field("a/Outer$In", "h"); !ok || got != "total" {
		t.Errorf("Field(a/Outer$In, h) = %s, %v", got, ok)
	}
	if got, ok := names.Method("a/Outer", "run"); !ok || got != "start" {
		t.Errorf("Method(a/Outer, run) = %s, %v", got, ok)
	}
	if _, ok := names.Method("a/Outer", "over"); ok {
		t.Error("overloads renamed differently must not be mapped")
	}
	if _, ok := names.Method("a/Outer", "<init>"); ok {
		t.Error("constructors are never mapped")
	}
	if _, ok := names.Field("b/Other", "f"); ok {
		t.Error("members of classes outside the source file are not captured")
	}

	// The snapshot does not follow later changes
	f.SetValue("changed")
	if got, _ := names.Field("a/Outer", "f"); got != "count" {
		t.Errorf("snapshot changed to %s", got)
	}
}
