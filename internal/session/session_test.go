package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"remap/internal/archive"
	"remap/internal/config"
	"remap/internal/errors"
	"remap/internal/history"
	"remap/internal/mapping"
	"remap/internal/mappingfile"
	"remap/internal/storage"
)

type staticReader []archive.ClassInfo

func (r staticReader) ReadClasses(context.Context) ([]archive.ClassInfo, error) {
	return r, nil
}

type failingReader struct{}

func (failingReader) ReadClasses(context.Context) ([]archive.ClassInfo, error) {
	return nil, fmt.Errorf("truncated archive")
}

var inventory = staticReader{
	{
		Name:   "a/A",
		Fields: []archive.MemberInfo{{Name: "x", Desc: "I"}, {Name: "y", Desc: "La/B;"}},
		Methods: []archive.MemberInfo{
			{Name: "<init>", Desc: "()V"},
			{Name: "m", Desc: "()V"},
			{Name: "m", Desc: "(I)V"},
		},
	},
	{Name: "a/B", Fields: []archive.MemberInfo{{Name: "x", Desc: "I"}}},
	{Name: "a/A$Inner", Outer: "a/A"},
}

func loadedSession(t *testing.T) *Session {
	t.Helper()
	s := New(config.DefaultConfig(), nil)
	if err := s.Load(context.Background(), inventory, "inventory.json", "inventory"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return s
}

func TestSession_RequiresLoad(t *testing.T) {
	s := New(nil, nil)
	if s.Loaded() || s.Table() != nil || s.History() != nil {
		t.Error("a new session should have nothing loaded")
	}
	if _, err := s.RenameClass("a/A", "b/B"); !errors.HasCode(err, errors.SessionMissing) {
		t.Errorf("expected SESSION_MISSING, got %v", err)
	}
	if _, err := s.Snapshot(); !errors.HasCode(err, errors.SessionMissing) {
		t.Errorf("expected SESSION_MISSING, got %v", err)
	}
}

func TestSession_LoadFailureKeepsState(t *testing.T) {
	s := loadedSession(t)
	if _, err := s.RenameClass("a.A", "p.Main"); err != nil {
		t.Fatal(err)
	}
	var events []history.RenameEvent
	s.History().SubscribeRenames(func(e history.RenameEvent) { events = append(events, e) })
	table, hist := s.Table(), s.History()

	err := s.Load(context.Background(), failingReader{}, "broken.json", "inventory")
	if !errors.HasCode(err, errors.ArchiveLoadFailed) {
		t.Fatalf("expected ARCHIVE_LOAD_FAILED, got %v", err)
	}
	if s.Table() != table || s.History() != hist {
		t.Fatal("a failed load must keep the previous table and history")
	}
	if src, _ := s.Source(); src != "inventory.json" {
		t.Errorf("Source() = %s after failed load", src)
	}

	// observers survive the failed load
	if _, err := s.RenameClass("p/Main", "p/Other"); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Errorf("observer saw %d events, want 1", len(events))
	}
}

func TestSession_LoadReplacesState(t *testing.T) {
	s := loadedSession(t)
	var loads []LoadEvent
	s.OnLoad(func(e LoadEvent) { loads = append(loads, e) })

	oldHistory := s.History()
	calls := 0
	oldHistory.SubscribeRenames(func(history.RenameEvent) { calls++ })

	if err := s.Load(context.Background(), inventory[1:2], "small.json", "inventory"); err != nil {
		t.Fatal(err)
	}
	if len(loads) != 1 || loads[0].Classes != 1 || loads[0].Source != "small.json" {
		t.Errorf("load events = %+v", loads)
	}
	if s.History() == oldHistory {
		t.Error("load should start a fresh history")
	}
	if len(s.History().Renames()) != 0 {
		t.Error("fresh history should be empty")
	}
	if _, ok := s.Table().Get("a/A"); ok {
		t.Error("old classes should be gone")
	}

	// old observers were dropped with the old history
	if _, err := s.RenameClass("a/B", "p/B"); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("stale observer called %d times", calls)
	}
}

func TestSession_ResolveMember(t *testing.T) {
	s := loadedSession(t)

	tests := []struct {
		name    string
		kind    mapping.Kind
		member  string
		desc    string
		wantErr errors.ErrorCode
	}{
		{"field by name", mapping.KindField, "x", "", ""},
		{"method with desc", mapping.KindMethod, "m", "(I)V", ""},
		{"overloaded without desc", mapping.KindMethod, "m", "", errors.SymbolNotFound},
		{"unknown", mapping.KindField, "zz", "", errors.SymbolNotFound},
		{"wrong desc", mapping.KindField, "x", "J", errors.SymbolNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sym, err := s.ResolveMember(tt.kind, "a.A", tt.member, tt.desc)
			if tt.wantErr != "" {
				if !errors.HasCode(err, tt.wantErr) {
					t.Errorf("expected %s, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || sym.Original() != tt.member {
				t.Errorf("ResolveMember() = %v, %v", sym, err)
			}
		})
	}

	if _, err := s.ResolveClass("z.Z"); !errors.HasCode(err, errors.SymbolNotFound) {
		t.Errorf("unknown class: got %v", err)
	}
}

func TestSession_RenameAndUndo(t *testing.T) {
	s := loadedSession(t)

	out, err := s.RenameMember(mapping.KindField, "a/A", "x", "", "count")
	if err != nil || !out.Changed {
		t.Fatalf("RenameMember() = %+v, %v", out, err)
	}
	// by current name
	if _, err := s.RenameMember(mapping.KindField, "a/A", "count", "I", "total"); err != nil {
		t.Fatal(err)
	}

	first := s.History().Renames()[0]
	if _, err := s.Undo(first.ID().String()[:8]); !errors.HasCode(err, errors.HistoryInconsistency) {
		t.Errorf("undoing a superseded action: expected HISTORY_INCONSISTENCY, got %v", err)
	}

	latest, _ := s.History().Latest()
	action, err := s.Undo(latest.ID().String()[:8])
	if err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	if action.After() != "total" {
		t.Errorf("undid %s", action)
	}
	x, _ := s.ResolveMember(mapping.KindField, "a/A", "x", "I")
	if x.Current() != "count" {
		t.Errorf("x = %s after undo, want count", x.Current())
	}

	// the superseded action is the latest again and can now be undone
	if action, err := s.UndoLatest(); err != nil || action.After() != "count" {
		t.Fatalf("UndoLatest() = %v, %v", action, err)
	}
	if x.Current() != "x" {
		t.Errorf("x = %s after UndoLatest, want x", x.Current())
	}
	if _, err := s.UndoLatest(); !errors.HasCode(err, errors.HistoryInconsistency) {
		t.Errorf("UndoLatest on an empty log: expected HISTORY_INCONSISTENCY, got %v", err)
	}
}

func TestSession_SelectClass(t *testing.T) {
	s := loadedSession(t)
	if _, err := s.RenameClass("a/A", "p/Main"); err != nil {
		t.Fatal(err)
	}

	cm, title, added, err := s.SelectClass("a/A")
	if err != nil || !added || title != "p.Main" || cm.Original() != "a/A" {
		t.Errorf("SelectClass() = %v, %q, %v, %v", cm, title, added, err)
	}
	if _, _, added, _ := s.SelectClass("p.Main"); added {
		t.Error("selecting the same class twice should not append")
	}
	if n := len(s.History().Selections()); n != 1 {
		t.Errorf("%d selections, want 1", n)
	}
}

func TestSession_SelectClassAfterSwap(t *testing.T) {
	s := loadedSession(t)
	if _, err := s.RenameClass("a/B", "a/Z"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RenameClass("a/A", "a/B"); err != nil {
		t.Fatal(err)
	}

	cm, title, _, err := s.SelectClass("a/A")
	if err != nil {
		t.Fatal(err)
	}
	if title != "a.B" || cm.Original() != "a/A" {
		t.Errorf("SelectClass(a/A) = %s, %q; want a/A titled a.B", cm.Original(), title)
	}
	// the title names class B by its original name, which is why it is not resolved again
	if other, _ := s.ResolveClass(title); other == cm {
		t.Error("expected the title to resolve to the class originally named B")
	}
}

func TestSession_LoadWarnsAboutSharedFieldNames(t *testing.T) {
	var logs bytes.Buffer
	s := New(config.DefaultConfig(), slog.New(slog.NewTextHandler(&logs, nil)))
	classes := staticReader{{
		Name:   "a/A",
		Fields: []archive.MemberInfo{{Name: "a", Desc: "I"}, {Name: "a", Desc: "J"}, {Name: "b", Desc: "I"}},
	}}
	if err := s.Load(context.Background(), classes, "inventory.json", "inventory"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !strings.Contains(logs.String(), "fields sharing a name") || !strings.Contains(logs.String(), "a/A.a") {
		t.Errorf("expected a warning naming a/A.a, got:\n%s", logs.String())
	}

	// both fields stay renamable; a reset restores one and skips the other
	aI, _ := s.ResolveMember(mapping.KindField, "a/A", "a", "I")
	aJ, _ := s.ResolveMember(mapping.KindField, "a/A", "a", "J")
	if _, err := s.Rename(aI, "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Rename(aJ, "second"); err != nil {
		t.Fatal(err)
	}
	report, err := s.ResetMembers("a/A")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Actions) != 1 || len(report.Skipped) != 1 {
		t.Fatalf("ResetMembers() = %d actions, %d skipped; want 1 and 1", len(report.Actions), len(report.Skipped))
	}
	if (aI.Current() == "a") == (aJ.Current() == "a") {
		t.Errorf("exactly one field should be back to a: %s, %s", aI.Current(), aJ.Current())
	}
}

func TestSession_Bulk(t *testing.T) {
	s := loadedSession(t)

	report, err := s.RenameAllUnique(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Actions) == 0 {
		t.Fatal("bulk rename did nothing")
	}
	if len(s.History().Renames()) != len(report.Actions) {
		t.Error("every bulk rename should be recorded")
	}

	reset, err := s.ResetMembers("a/A")
	if err != nil {
		t.Fatal(err)
	}
	a, _ := s.ResolveClass("a/A")
	for _, m := range a.Members() {
		if m.IsRenamed() {
			t.Errorf("%s still renamed after reset", m)
		}
	}
	if len(reset.Actions) == 0 {
		t.Error("reset should record actions")
	}

	if _, err := s.RenameClassMembers(context.Background(), "a/A"); err != nil {
		t.Fatal(err)
	}
}

func TestSession_MappingsRoundTrip(t *testing.T) {
	s := loadedSession(t)
	if _, err := s.RenameClass("a/A", "p/Main"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RenameMember(mapping.KindMethod, "a/A", "m", "(I)V", "apply"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "names.yaml.zst")
	n, err := s.ExportMappings(path, mappingfile.FormatYAML, true)
	if err != nil || n != 2 {
		t.Fatalf("ExportMappings() = %d, %v", n, err)
	}

	fresh := loadedSession(t)
	changed, err := fresh.ImportMappings(path, mappingfile.FormatYAML)
	if err != nil || changed != 2 {
		t.Fatalf("ImportMappings() = %d, %v", changed, err)
	}
	if len(fresh.History().Renames()) != 0 {
		t.Error("imports are not recorded in history")
	}
	if a, _ := fresh.ResolveClass("a/A"); a.Current() != "p/Main" {
		t.Errorf("imported class name = %s", a.Current())
	}
}

func TestSession_ExportArchive(t *testing.T) {
	s := loadedSession(t)
	if _, err := s.RenameClass("a/B", "p/Helper"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "renamed.json")
	if err := s.ExportArchive(context.Background(), archive.NewInventoryFile(path)); err != nil {
		t.Fatal(err)
	}
	classes, err := archive.NewInventoryFile(path).ReadClasses(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, c := range classes {
		if c.Name == "a/A" {
			for _, f := range c.Fields {
				if f.Name == "y" && f.Desc != "Lp/Helper;" {
					t.Errorf("field descriptor = %s, want Lp/Helper;", f.Desc)
				}
			}
		}
		if c.Name == "p/Helper" {
			found = true
		}
	}
	if !found {
		t.Error("renamed class missing from the exported inventory")
	}
}

func TestSession_SaveAndResume(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	db, err := storage.Open(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()
	store := storage.NewSessionStore(db)

	fresh := New(nil, nil)
	if err := fresh.Resume(ctx, store); !errors.HasCode(err, errors.SessionMissing) {
		t.Fatalf("expected SESSION_MISSING, got %v", err)
	}

	s := loadedSession(t)
	if _, err := s.RenameClass("a/A", "p/Main"); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := s.SelectClass("p/Main"); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, store); err != nil {
		t.Fatal(err)
	}

	var loads int
	fresh.OnLoad(func(LoadEvent) { loads++ })
	if err := fresh.Resume(ctx, store); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if loads != 1 {
		t.Errorf("OnLoad fired %d times, want 1", loads)
	}
	if fresh.Fingerprint() != s.Fingerprint() {
		t.Error("fingerprint changed across save and resume")
	}
	if a, _ := fresh.ResolveClass("a/A"); a.Current() != "p/Main" {
		t.Errorf("resumed class name = %s", a.Current())
	}
	if len(fresh.History().Renames()) != 1 || len(fresh.History().Selections()) != 1 {
		t.Error("history not resumed")
	}
	latest, _ := fresh.History().Latest()
	if _, err := fresh.Undo(latest.ID().String()); err != nil {
		t.Errorf("undo after resume failed: %v", err)
	}
}
