// Package history keeps the rename log and the class selection log of a session
// and publishes changes to both.
package history

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"remap/internal/errors"
	"remap/internal/mapping"
)

// RenameAction records one applied rename. It is never mutated after creation.
type RenameAction struct {
	id     uuid.UUID
	symbol *mapping.SymbolMapping
	before string
	after  string
	at     time.Time
}

// NewRenameAction creates an action with a fresh ID
func NewRenameAction(sym *mapping.SymbolMapping, before, after string, at time.Time) *RenameAction {
	return RestoreAction(uuid.New(), sym, before, after, at)
}

// RestoreAction recreates a persisted action
func RestoreAction(id uuid.UUID, sym *mapping.SymbolMapping, before, after string, at time.Time) *RenameAction {
	return &RenameAction{id: id, symbol: sym, before: before, after: after, at: at.UTC()}
}

func (a *RenameAction) ID() uuid.UUID                  { return a.id }
func (a *RenameAction) Symbol() *mapping.SymbolMapping { return a.symbol }
func (a *RenameAction) Kind() mapping.Kind             { return a.symbol.Kind() }
func (a *RenameAction) Before() string                 { return a.before }
func (a *RenameAction) After() string                  { return a.after }
func (a *RenameAction) At() time.Time                  { return a.at }

// Owner returns the containing class; for class renames it is the renamed class
func (a *RenameAction) Owner() *mapping.ClassMapping { return a.symbol.Owner() }

// IsReset reports whether the action restored the symbol's original name
func (a *RenameAction) IsReset() bool { return a.after == a.symbol.Original() }

// String renders the action the way the history views list it
func (a *RenameAction) String() string {
	return a.Kind().String() + ": " + a.before + " -> " + a.after
}

// Op distinguishes rename log events
type Op string

const (
	OpRecorded Op = "recorded"
	OpUndone   Op = "undone"
)

// RenameEvent is published on every rename log change
type RenameEvent struct {
	Op     Op
	Action *RenameAction
}

// Selection is one entry of the selection log
type Selection struct {
	Title string
	At    time.Time
}

// SelectionEvent is published when a class selection is appended
type SelectionEvent struct {
	Title string
}

// History holds the ordered rename log and the selection log.
// It does not own the symbols it references and never changes their names.
type History struct {
	renames    []*RenameAction
	selections []Selection

	renameTopic    Topic[RenameEvent]
	selectionTopic Topic[SelectionEvent]

	logger *slog.Logger
	now    func() time.Time
}

// New creates an empty history
func New(logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &History{logger: logger, now: time.Now}
}

// Record appends an applied rename and notifies rename observers
func (h *History) Record(a *RenameAction) error {
	if a == nil || a.symbol == nil {
		return errors.New(errors.InternalError, "cannot record an empty rename action")
	}
	if _, ok := h.Find(a.id); ok {
		return errors.Newf(errors.HistoryInconsistency, "action %s is already recorded", a.id)
	}
	h.renames = append(h.renames, a)
	h.logger.Debug("Recorded rename",
		"id", a.id.String(),
		"kind", a.Kind().String(),
		"before", a.before,
		"after", a.after,
	)
	h.renameTopic.Publish(RenameEvent{Op: OpRecorded, Action: a})
	return nil
}

// SelectClass appends a selection unless it repeats the previous entry
func (h *History) SelectClass(title string) bool {
	if title == "" {
		return false
	}
	if n := len(h.selections); n > 0 && h.selections[n-1].Title == title {
		return false
	}
	h.selections = append(h.selections, Selection{Title: title, At: h.now().UTC()})
	h.selectionTopic.Publish(SelectionEvent{Title: title})
	return true
}

// Undo removes a from the log, wherever it is. It does not restore the symbol's
// name; callers go through the rename engine for that.
func (h *History) Undo(a *RenameAction) error {
	if a == nil {
		return errors.New(errors.HistoryInconsistency, "no action given")
	}
	_, err := h.UndoByID(a.id)
	return err
}

// UndoByID removes the action with the given ID from the log
func (h *History) UndoByID(id uuid.UUID) (*RenameAction, error) {
	for i, a := range h.renames {
		if a.id != id {
			continue
		}
		h.renames = append(h.renames[:i:i], h.renames[i+1:]...)
		h.logger.Debug("Removed rename from history", "id", id.String(), "position", i)
		h.renameTopic.Publish(RenameEvent{Op: OpUndone, Action: a})
		return a, nil
	}
	return nil, errors.Newf(errors.HistoryInconsistency, "action %s is not in the rename log", id)
}

// Find looks an action up by ID
func (h *History) Find(id uuid.UUID) (*RenameAction, bool) {
	for _, a := range h.renames {
		if a.id == id {
			return a, true
		}
	}
	return nil, false
}

// FindPrefix resolves an abbreviated action ID. Ambiguous or unknown prefixes fail.
func (h *History) FindPrefix(prefix string) (*RenameAction, error) {
	if id, err := uuid.Parse(prefix); err == nil {
		if a, ok := h.Find(id); ok {
			return a, nil
		}
		return nil, errors.Newf(errors.HistoryInconsistency, "action %s is not in the rename log", prefix)
	}
	var match *RenameAction
	for _, a := range h.renames {
		if len(prefix) > 0 && len(a.id.String()) >= len(prefix) && a.id.String()[:len(prefix)] == prefix {
			if match != nil {
				return nil, errors.Newf(errors.HistoryInconsistency, "action prefix %q is ambiguous", prefix)
			}
			match = a
		}
	}
	if match == nil {
		return nil, errors.Newf(errors.HistoryInconsistency, "no action matches %q", prefix)
	}
	return match, nil
}

// Latest returns the most recently recorded action still in the log
func (h *History) Latest() (*RenameAction, bool) {
	if len(h.renames) == 0 {
		return nil, false
	}
	return h.renames[len(h.renames)-1], true
}

// Renames returns the rename log in chronological order
func (h *History) Renames() []*RenameAction {
	out := make([]*RenameAction, len(h.renames))
	copy(out, h.renames)
	return out
}

// Selections returns the selection log in chronological order
func (h *History) Selections() []Selection {
	out := make([]Selection, len(h.selections))
	copy(out, h.selections)
	return out
}

// Restore replaces both logs with persisted state without notifying observers
func (h *History) Restore(renames []*RenameAction, selections []Selection) {
	h.renames = append([]*RenameAction(nil), renames...)
	h.selections = append([]Selection(nil), selections...)
}

// SubscribeRenames registers an observer of the rename log
func (h *History) SubscribeRenames(fn func(RenameEvent)) *Subscription {
	return h.renameTopic.Subscribe(fn)
}

// SubscribeSelections registers an observer of the selection log
func (h *History) SubscribeSelections(fn func(SelectionEvent)) *Subscription {
	return h.selectionTopic.Subscribe(fn)
}

// Close drops every observer of both logs
func (h *History) Close() {
	h.renameTopic.Clear()
	h.selectionTopic.Clear()
}
