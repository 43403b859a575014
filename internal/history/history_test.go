package history

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"remap/internal/errors"
	"remap/internal/mapping"
)

func newField(t *testing.T, name string) *mapping.SymbolMapping {
	t.Helper()
	cm := mapping.NewClassMapping("a/b/C", "", "", nil)
	sym, err := cm.AddField(name, "I")
	if err != nil {
		t.Fatal(err)
	}
	return sym
}

func TestHistory_RecordAndUndoAnyPosition(t *testing.T) {
	h := New(nil)
	sym := newField(t, "x")
	a1 := NewRenameAction(sym, "x", "a", time.Now())
	a2 := NewRenameAction(sym, "a", "b", time.Now())
	a3 := NewRenameAction(sym, "b", "c", time.Now())
	for _, a := range []*RenameAction{a1, a2, a3} {
		if err := h.Record(a); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	if err := h.Undo(a2); err != nil {
		t.Fatalf("Undo(middle) failed: %v", err)
	}
	renames := h.Renames()
	if len(renames) != 2 || renames[0] != a1 || renames[1] != a3 {
		t.Errorf("log after undo = %v", renames)
	}

	err := h.Undo(a2)
	if !errors.HasCode(err, errors.HistoryInconsistency) {
		t.Errorf("second undo should be HISTORY_INCONSISTENCY, got %v", err)
	}
	if _, err := h.UndoByID(uuid.New()); !errors.HasCode(err, errors.HistoryInconsistency) {
		t.Errorf("unknown ID should be HISTORY_INCONSISTENCY, got %v", err)
	}
	if sym.Current() != "x" {
		t.Error("history must never change symbol names")
	}
}

func TestHistory_RecordRejectsDuplicate(t *testing.T) {
	h := New(nil)
	a := NewRenameAction(newField(t, "x"), "x", "y", time.Now())
	if err := h.Record(a); err != nil {
		t.Fatal(err)
	}
	if err := h.Record(a); err == nil {
		t.Error("recording the same action twice should fail")
	}
	if err := h.Record(nil); err == nil {
		t.Error("recording nil should fail")
	}
}

func TestHistory_ObserversInRegistrationOrder(t *testing.T) {
	h := New(nil)
	var calls []string
	h.SubscribeRenames(func(e RenameEvent) { calls = append(calls, "first:"+string(e.Op)) })
	sub := h.SubscribeRenames(func(e RenameEvent) { calls = append(calls, "second:"+string(e.Op)) })

	a := NewRenameAction(newField(t, "x"), "x", "y", time.Now())
	_ = h.Record(a)
	_ = h.Undo(a)

	want := []string{"first:recorded", "second:recorded", "first:undone", "second:undone"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", calls, want)
	}

	sub.Unsubscribe()
	sub.Unsubscribe()
	calls = nil
	_ = h.Record(NewRenameAction(a.Symbol(), "x", "z", time.Now()))
	if len(calls) != 1 || calls[0] != "first:recorded" {
		t.Errorf("after unsubscribe calls = %v", calls)
	}
}

func TestHistory_SelectClassDeduplicates(t *testing.T) {
	h := New(nil)
	var events []string
	h.SubscribeSelections(func(e SelectionEvent) { events = append(events, e.Title) })

	for _, title := range []string{"a/A", "a/A", "a/B", "a/A", ""} {
		h.SelectClass(title)
	}

	var got []string
	for _, s := range h.Selections() {
		got = append(got, s.Title)
	}
	if strings.Join(got, ",") != "a/A,a/B,a/A" {
		t.Errorf("selections = %v", got)
	}
	if len(events) != 3 {
		t.Errorf("selection observers called %d times, want 3", len(events))
	}
}

func TestHistory_CloseDropsObservers(t *testing.T) {
	h := New(nil)
	called := false
	h.SubscribeRenames(func(RenameEvent) { called = true })
	h.SubscribeSelections(func(SelectionEvent) { called = true })
	h.Close()

	_ = h.Record(NewRenameAction(newField(t, "x"), "x", "y", time.Now()))
	h.SelectClass("a/A")
	if called {
		t.Error("observers must not run after Close")
	}
}

func TestHistory_FindPrefixAndLatest(t *testing.T) {
	h := New(nil)
	sym := newField(t, "x")
	a1 := RestoreAction(uuid.MustParse("11111111-0000-4000-8000-000000000001"), sym, "x", "y", time.Now())
	a2 := RestoreAction(uuid.MustParse("11112222-0000-4000-8000-000000000002"), sym, "y", "z", time.Now())
	_ = h.Record(a1)
	_ = h.Record(a2)

	if got, err := h.FindPrefix("11112"); err != nil || got != a2 {
		t.Errorf("FindPrefix(11112) = %v, %v", got, err)
	}
	if _, err := h.FindPrefix("1111"); !errors.HasCode(err, errors.HistoryInconsistency) {
		t.Errorf("ambiguous prefix should fail, got %v", err)
	}
	if got, err := h.FindPrefix(a1.ID().String()); err != nil || got != a1 {
		t.Errorf("full ID lookup = %v, %v", got, err)
	}
	if latest, ok := h.Latest(); !ok || latest != a2 {
		t.Errorf("Latest() = %v", latest)
	}
}

func TestHistory_RestoreDoesNotNotify(t *testing.T) {
	h := New(nil)
	called := false
	h.SubscribeRenames(func(RenameEvent) { called = true })

	a := NewRenameAction(newField(t, "x"), "x", "y", time.Now())
	h.Restore([]*RenameAction{a}, []Selection{{Title: "a/b/C"}})

	if called {
		t.Error("Restore must not notify observers")
	}
	if len(h.Renames()) != 1 || len(h.Selections()) != 1 {
		t.Errorf("Restore did not load state")
	}
}

func TestRenameAction_Accessors(t *testing.T) {
	sym := newField(t, "x")
	a := NewRenameAction(sym, "y", "x", time.Now())

	if a.Kind() != mapping.KindField || a.Owner() != sym.Owner() {
		t.Error("kind or owner mismatch")
	}
	if !a.IsReset() {
		t.Error("an action whose after equals the original is a reset")
	}
	if a.String() != "field: y -> x" {
		t.Errorf("String() = %q", a.String())
	}
}
