package rename

import (
	"fmt"
	"testing"

	"remap/internal/errors"
	"remap/internal/history"
	"remap/internal/mapping"
)

type fixture struct {
	table   *mapping.Table
	history *history.History
	engine  *Engine
}

func newFixture(t *testing.T, classes ...*mapping.ClassMapping) *fixture {
	t.Helper()
	table := mapping.NewTable()
	for _, cm := range classes {
		if err := table.Add(cm); err != nil {
			t.Fatalf("Add(%s) failed: %v", cm.Original(), err)
		}
	}
	hist := history.New(nil)
	return &fixture{
		table:   table,
		history: hist,
		engine:  NewEngine(table, hist, mapping.DefaultNamePolicy(), nil),
	}
}

func classWithFields(t *testing.T, name string, fields ...string) *mapping.ClassMapping {
	t.Helper()
	cm := mapping.NewClassMapping(name, "java/lang/Object", "", nil)
	for _, f := range fields {
		if _, err := cm.AddField(f, "I"); err != nil {
			t.Fatal(err)
		}
	}
	return cm
}

func field(t *testing.T, cm *mapping.ClassMapping, name string) *mapping.SymbolMapping {
	t.Helper()
	sym, ok := cm.Field(name, "I")
	if !ok {
		t.Fatalf("field %s not found", name)
	}
	return sym
}

// assertClassNamesUnique checks that no two classes share a current name
func assertClassNamesUnique(t *testing.T, table *mapping.Table) {
	t.Helper()
	seen := make(map[string]string)
	for _, cm := range table.Classes() {
		if other, dup := seen[cm.Current()]; dup {
			t.Fatalf("classes %s and %s share current name %s", other, cm.Original(), cm.Current())
		}
		seen[cm.Current()] = cm.Original()
	}
}

// assertMemberNamesUnique checks field names per class and method names per descriptor group
func assertMemberNamesUnique(t *testing.T, table *mapping.Table) {
	t.Helper()
	for _, cm := range table.Classes() {
		fields := make(map[string]bool)
		for _, f := range cm.Fields() {
			if fields[f.Current()] {
				t.Fatalf("%s has two fields named %s", cm.Original(), f.Current())
			}
			fields[f.Current()] = true
		}
		methods := make(map[string]bool)
		for _, m := range cm.Methods() {
			key := m.Current() + m.Desc()
			if methods[key] {
				t.Fatalf("%s has two methods %s", cm.Original(), key)
			}
			methods[key] = true
		}
	}
}

func TestEngine_FieldScenario(t *testing.T) {
	c := classWithFields(t, "a/b/C", "x", "y")
	f := newFixture(t, c)
	x := field(t, c, "x")

	_, err := f.engine.Rename(x, "y", mapping.KindField)
	if !errors.HasCode(err, errors.NameConflict) {
		t.Fatalf("renaming x to y: expected NAME_CONFLICT, got %v", err)
	}
	if x.Current() != "x" || len(f.history.Renames()) != 0 {
		t.Fatal("a failed rename must leave the symbol and history unchanged")
	}

	out, err := f.engine.Rename(x, "z", mapping.KindField)
	if err != nil {
		t.Fatalf("renaming x to z failed: %v", err)
	}
	if !out.Changed || out.Previous != "x" || out.Action == nil {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if x.Current() != "z" {
		t.Errorf("x.Current() = %s, want z", x.Current())
	}
	assertMemberNamesUnique(t, f.table)

	bulk := NewBulkRenamer(f.engine, testOptions(), nil)
	report := bulk.ResetMembers(c)
	if x.Current() != "x" {
		t.Errorf("after reset x.Current() = %s, want x", x.Current())
	}
	if len(report.Actions) != 1 || report.Actions[0].After() != "x" || report.Actions[0].Before() != "z" {
		t.Errorf("reset should record one action z -> x, got %v", report.Actions)
	}
	if n := len(f.history.Renames()); n != 2 {
		t.Errorf("history has %d actions, want 2", n)
	}
}

func TestEngine_ClassScenario(t *testing.T) {
	c1 := classWithFields(t, "a/b/C1")
	c2 := classWithFields(t, "a/b/C2")
	f := newFixture(t, c1, c2)

	before, _ := f.table.Get("a.b.C1")

	_, err := f.engine.Rename(c1.Name(), "a.b.C2", mapping.KindClass)
	if !errors.HasCode(err, errors.NameConflict) {
		t.Fatalf("renaming C1 to C2: expected NAME_CONFLICT, got %v", err)
	}

	if _, err := f.engine.Rename(c1.Name(), "C3", mapping.KindClass); err != nil {
		t.Fatalf("renaming C1 to C3 failed: %v", err)
	}
	assertClassNamesUnique(t, f.table)

	got, ok := f.table.Get("C3")
	if !ok || got != before {
		t.Error("Get(C3) should return the mapping formerly returned by Get(a.b.C1)")
	}
	if still, ok := f.table.Get("a.b.C1"); !ok || still != before {
		t.Error("original-name lookup should keep working")
	}
}

func TestEngine_DottedClassNamesNormalised(t *testing.T) {
	c := classWithFields(t, "a/b/C")
	f := newFixture(t, c)

	out, err := f.engine.Rename(c.Name(), "x.y.Z", mapping.KindClass)
	if err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if c.Current() != "x/y/Z" || out.Action.After() != "x/y/Z" {
		t.Errorf("current = %s, want x/y/Z", c.Current())
	}
}

func TestEngine_Idempotence(t *testing.T) {
	c := classWithFields(t, "a/b/C", "x")
	f := newFixture(t, c)
	x := field(t, c, "x")

	for _, tc := range []struct {
		sym  *mapping.SymbolMapping
		kind mapping.Kind
		name string
	}{
		{x, mapping.KindField, "x"},
		{c.Name(), mapping.KindClass, "a/b/C"},
		{c.Name(), mapping.KindClass, "a.b.C"},
	} {
		out, err := f.engine.Rename(tc.sym, tc.name, tc.kind)
		if err != nil || out.Changed {
			t.Errorf("Rename(%s, %s) = %+v, %v; want unchanged success", tc.sym, tc.name, out, err)
		}
	}

	_, _ = f.engine.Rename(x, "renamed", mapping.KindField)
	out, err := f.engine.Rename(x, "renamed", mapping.KindField)
	if err != nil || out.Changed {
		t.Errorf("renaming to the current name should be a no-op, got %+v, %v", out, err)
	}
	if n := len(f.history.Renames()); n != 1 {
		t.Errorf("history has %d actions, want 1", n)
	}
}

func TestEngine_Validation(t *testing.T) {
	c := mapping.NewClassMapping("a/b/C", "", "", nil)
	ctor, _ := c.AddMethod("<init>", "()V")
	run, _ := c.AddMethod("run", "()V")
	x, _ := c.AddField("x", "I")
	f := newFixture(t, c)

	tests := []struct {
		name string
		sym  *mapping.SymbolMapping
		kind mapping.Kind
		to   string
		code errors.ErrorCode
	}{
		{"empty", x, mapping.KindField, "", errors.InvalidIdentifier},
		{"reserved word", x, mapping.KindField, "int", errors.InvalidIdentifier},
		{"not an identifier", run, mapping.KindMethod, "do-it", errors.InvalidIdentifier},
		{"kind mismatch", x, mapping.KindMethod, "y", errors.InvalidIdentifier},
		{"constructor", ctor, mapping.KindMethod, "create", errors.InvalidIdentifier},
		{"method to init", run, mapping.KindMethod, "<init>", errors.InvalidIdentifier},
		{"class empty segment", c.Name(), mapping.KindClass, "a//C", errors.InvalidIdentifier},
		{"nil symbol", nil, mapping.KindField, "y", errors.SymbolNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Rename(tt.sym, tt.to, tt.kind)
			if !errors.HasCode(err, tt.code) {
				t.Errorf("expected %s, got %v", tt.code, err)
			}
		})
	}
	if len(f.history.Renames()) != 0 {
		t.Error("failed renames must not be recorded")
	}
}

func TestEngine_RejectsForeignSymbols(t *testing.T) {
	f := newFixture(t, classWithFields(t, "a/b/C", "x"))
	other := classWithFields(t, "a/b/C", "x")

	_, err := f.engine.Rename(field(t, other, "x"), "y", mapping.KindField)
	if !errors.HasCode(err, errors.SymbolNotFound) {
		t.Errorf("symbols of another table should be SYMBOL_NOT_FOUND, got %v", err)
	}
}

func TestEngine_MethodOverloadGroups(t *testing.T) {
	c := mapping.NewClassMapping("a/b/C", "", "", nil)
	a, _ := c.AddMethod("a", "()V")
	_, _ = c.AddMethod("b", "()V")
	_, _ = c.AddMethod("c", "(I)V")
	f := newFixture(t, c)

	if _, err := f.engine.Rename(a, "b", mapping.KindMethod); !errors.HasCode(err, errors.NameConflict) {
		t.Errorf("same descriptor should conflict, got %v", err)
	}
	if _, err := f.engine.Rename(a, "c", mapping.KindMethod); err != nil {
		t.Errorf("different descriptor overloads are allowed: %v", err)
	}
	assertMemberNamesUnique(t, f.table)
}

func TestEngine_CrossClassMemberNamesAllowed(t *testing.T) {
	c1 := classWithFields(t, "a/C1", "x")
	c2 := classWithFields(t, "a/C2", "y")
	f := newFixture(t, c1, c2)

	if _, err := f.engine.Rename(field(t, c2, "y"), "x", mapping.KindField); err != nil {
		t.Errorf("field names only need to be unique within their class: %v", err)
	}
}

func TestEngine_UndoRestoresConflictState(t *testing.T) {
	c1 := classWithFields(t, "a/C1", "x", "y")
	c2 := classWithFields(t, "a/C2")
	f := newFixture(t, c1, c2)
	x := field(t, c1, "x")

	if _, err := f.engine.Rename(x, "q", mapping.KindField); err != nil {
		t.Fatal(err)
	}

	takenBefore := f.table.TakenNames()
	fieldBefore := c1.FieldNameTaken("w", x)
	qBefore := c1.FieldNameTaken("q", nil)

	out, err := f.engine.Rename(c2.Name(), "a/Renamed", mapping.KindClass)
	if err != nil {
		t.Fatal(err)
	}
	wOut, err := f.engine.Rename(x, "w", mapping.KindField)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.engine.UndoAction(wOut.Action); err != nil {
		t.Fatalf("undo field rename failed: %v", err)
	}
	if _, err := f.engine.Undo(out.Action.ID()); err != nil {
		t.Fatalf("undo class rename failed: %v", err)
	}

	if x.Current() != "q" {
		t.Errorf("undo must restore before (q), not the original; got %s", x.Current())
	}
	takenAfter := f.table.TakenNames()
	if fmt.Sprint(takenAfter) != fmt.Sprint(takenBefore) {
		t.Errorf("taken class names = %v, want %v", takenAfter, takenBefore)
	}
	if c1.FieldNameTaken("w", x) != fieldBefore || c1.FieldNameTaken("q", nil) != qBefore {
		t.Error("field conflict state differs from the state before the renames")
	}
	if n := len(f.history.Renames()); n != 1 {
		t.Errorf("history has %d actions, want 1", n)
	}
}

func TestEngine_UndoOutOfOrder(t *testing.T) {
	c := classWithFields(t, "a/C", "x", "y")
	f := newFixture(t, c)
	x, y := field(t, c, "x"), field(t, c, "y")

	ax, _ := f.engine.Rename(x, "first", mapping.KindField)
	ay, _ := f.engine.Rename(y, "second", mapping.KindField)

	if err := f.engine.UndoAction(ax.Action); err != nil {
		t.Fatalf("undoing the older action failed: %v", err)
	}
	if x.Current() != "x" || y.Current() != "second" {
		t.Errorf("x=%s y=%s", x.Current(), y.Current())
	}
	if err := f.engine.UndoAction(ay.Action); err != nil {
		t.Fatalf("undoing the newer action failed: %v", err)
	}
	if y.Current() != "y" {
		t.Errorf("y=%s, want y", y.Current())
	}
}

func TestEngine_UndoSupersededAction(t *testing.T) {
	c := classWithFields(t, "a/C", "x")
	f := newFixture(t, c)
	x := field(t, c, "x")

	first, _ := f.engine.Rename(x, "a", mapping.KindField)
	second, _ := f.engine.Rename(x, "b", mapping.KindField)

	if err := f.engine.UndoAction(first.Action); !errors.HasCode(err, errors.HistoryInconsistency) {
		t.Fatalf("undoing a superseded action should be HISTORY_INCONSISTENCY, got %v", err)
	}
	if x.Current() != "b" {
		t.Fatalf("failed undo changed the symbol to %s", x.Current())
	}

	if err := f.engine.UndoAction(second.Action); err != nil {
		t.Fatal(err)
	}
	if err := f.engine.UndoAction(first.Action); err != nil {
		t.Fatal(err)
	}
	if x.Current() != "x" {
		t.Errorf("x=%s, want x", x.Current())
	}

	if err := f.engine.UndoAction(first.Action); !errors.HasCode(err, errors.HistoryInconsistency) {
		t.Errorf("undoing twice should be HISTORY_INCONSISTENCY, got %v", err)
	}
}

func TestEngine_UndoBlockedByLaterRename(t *testing.T) {
	c := classWithFields(t, "a/C", "x", "y")
	f := newFixture(t, c)
	x, y := field(t, c, "x"), field(t, c, "y")

	ax, _ := f.engine.Rename(x, "z", mapping.KindField)
	if _, err := f.engine.Rename(y, "x", mapping.KindField); err != nil {
		t.Fatal(err)
	}

	if err := f.engine.UndoAction(ax.Action); !errors.HasCode(err, errors.NameConflict) {
		t.Fatalf("restoring a name now held by y should be NAME_CONFLICT, got %v", err)
	}
	if x.Current() != "z" {
		t.Errorf("x=%s, want z", x.Current())
	}
	if _, ok := f.history.Find(ax.Action.ID()); !ok {
		t.Error("a failed undo must keep the action in the log")
	}
	assertMemberNamesUnique(t, f.table)
}

func TestEngine_ObserversSeeRestoredName(t *testing.T) {
	c := classWithFields(t, "a/C", "x")
	f := newFixture(t, c)
	x := field(t, c, "x")

	var seen []string
	f.history.SubscribeRenames(func(e history.RenameEvent) {
		seen = append(seen, string(e.Op)+":"+e.Action.Symbol().Current())
	})

	out, _ := f.engine.Rename(x, "y", mapping.KindField)
	_ = f.engine.UndoAction(out.Action)

	if len(seen) != 2 || seen[0] != "recorded:y" || seen[1] != "undone:x" {
		t.Errorf("observer saw %v", seen)
	}
}

func TestEngine_ResetToInvalidOriginal(t *testing.T) {
	c := classWithFields(t, "a/C", "do")
	f := newFixture(t, c)
	sym := field(t, c, "do")

	if _, err := f.engine.Rename(sym, "action", mapping.KindField); err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.Rename(sym, "do", mapping.KindField); err != nil {
		t.Errorf("restoring an original name must pass even if it is a reserved word: %v", err)
	}
}
