// Package rename validates and applies renames against a mapping table and
// records them in the session history.
package rename

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"remap/internal/errors"
	"remap/internal/history"
	"remap/internal/mapping"
)

// Outcome is the result of a successful Rename
type Outcome struct {
	// Changed is false for renames to the symbol's own current name
	Changed  bool
	Previous string
	Action   *history.RenameAction
}

// Engine is the single entry point that changes symbol names
type Engine struct {
	table   *mapping.Table
	history *history.History
	policy  mapping.NamePolicy
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine creates a rename engine over table, recording into hist
func NewEngine(table *mapping.Table, hist *history.History, policy mapping.NamePolicy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		table:   table,
		history: hist,
		policy:  policy,
		logger:  logger,
		now:     time.Now,
	}
}

// Table returns the table the engine mutates
func (e *Engine) Table() *mapping.Table { return e.table }

// History returns the history the engine records into
func (e *Engine) History() *history.History { return e.history }

// Policy returns the identifier policy in force
func (e *Engine) Policy() mapping.NamePolicy { return e.policy }

// Rename gives sym the name newName. Class names may be dotted. On failure the
// symbol is unchanged and the error carries INVALID_IDENTIFIER, NAME_CONFLICT or
// SYMBOL_NOT_FOUND.
func (e *Engine) Rename(sym *mapping.SymbolMapping, newName string, kind mapping.Kind) (Outcome, error) {
	if err := e.checkMember(sym); err != nil {
		return Outcome{}, err
	}
	if sym.Kind() != kind {
		return Outcome{}, errors.Newf(errors.InvalidIdentifier, "%s is a %s, not a %s", sym, sym.Kind(), kind)
	}
	if kind == mapping.KindClass {
		newName = mapping.InternalName(newName)
	}

	previous := sym.Current()
	if newName == previous {
		return Outcome{Changed: false, Previous: previous}, nil
	}

	if err := e.Check(sym, newName); err != nil {
		e.logger.Debug("Rename rejected",
			"symbol", sym.String(),
			"name", newName,
			"code", string(errors.CodeOf(err)),
		)
		return Outcome{}, err
	}

	sym.SetValue(newName)
	action := history.NewRenameAction(sym, previous, newName, e.now())
	if err := e.history.Record(action); err != nil {
		sym.SetValue(previous)
		return Outcome{}, err
	}

	e.logger.Info("Renamed",
		"kind", kind.String(),
		"before", previous,
		"after", newName,
	)
	return Outcome{Changed: true, Previous: previous, Action: action}, nil
}

// Check runs Rename's validation and conflict checks without applying anything.
// The symbol's own original name is always a valid identifier for it.
func (e *Engine) Check(sym *mapping.SymbolMapping, newName string) error {
	if err := e.checkMember(sym); err != nil {
		return err
	}
	if sym.Kind() == mapping.KindClass {
		newName = mapping.InternalName(newName)
	}
	if sym.Kind() == mapping.KindMethod && mapping.IsSpecialMethod(sym.Original()) {
		return errors.Newf(errors.InvalidIdentifier, "%s cannot be renamed", sym.Original())
	}
	if newName != sym.Original() {
		if err := e.policy.Validate(sym.Kind(), newName); err != nil {
			return err
		}
	}
	if e.conflicts(sym, newName) {
		return errors.Newf(errors.NameConflict, "%s %q is already in use", sym.Kind(), mapping.DottedName(newName)).
			WithDetails(map[string]string{"symbol": sym.String(), "name": newName})
	}
	return nil
}

// Undo reverses a recorded action: the symbol gets back its before name and the
// action leaves the log. Each action is reversed on its own before/after pair, so
// actions can be undone in any order as long as the symbol still carries after.
func (e *Engine) Undo(id uuid.UUID) (*history.RenameAction, error) {
	action, ok := e.history.Find(id)
	if !ok {
		return nil, errors.Newf(errors.HistoryInconsistency, "action %s is not in the rename log", id)
	}
	return action, e.UndoAction(action)
}

// UndoAction is Undo for an action already looked up
func (e *Engine) UndoAction(action *history.RenameAction) error {
	if _, ok := e.history.Find(action.ID()); !ok {
		return errors.Newf(errors.HistoryInconsistency, "action %s is not in the rename log", action.ID())
	}
	sym := action.Symbol()
	if sym.Current() != action.After() {
		return errors.Newf(errors.HistoryInconsistency,
			"%s is now %q, not %q; undo the later rename first", sym, sym.Current(), action.After()).
			WithDetails(map[string]string{"id": action.ID().String()})
	}
	if e.conflicts(sym, action.Before()) {
		return errors.Newf(errors.NameConflict, "cannot restore %q: the name is in use", action.Before())
	}

	// before was a valid state when the action was recorded; identifier rules are not re-checked
	sym.SetValue(action.Before())
	if err := e.history.Undo(action); err != nil {
		sym.SetValue(action.After())
		return err
	}
	e.logger.Info("Undid rename",
		"kind", sym.Kind().String(),
		"restored", action.Before(),
		"from", action.After(),
	)
	return nil
}

func (e *Engine) conflicts(sym *mapping.SymbolMapping, name string) bool {
	owner := sym.Owner()
	switch sym.Kind() {
	case mapping.KindClass:
		return e.table.IsNameTaken(name, owner)
	case mapping.KindField:
		return owner.FieldNameTaken(name, sym)
	default:
		return owner.MethodNameTaken(name, sym.Desc(), sym)
	}
}

// checkMember rejects symbols that do not belong to this engine's table
func (e *Engine) checkMember(sym *mapping.SymbolMapping) error {
	if sym == nil || sym.Owner() == nil {
		return errors.New(errors.SymbolNotFound, "no symbol given")
	}
	cm, ok := e.table.Get(sym.Owner().Original())
	if !ok || cm != sym.Owner() {
		return errors.Newf(errors.SymbolNotFound, "%s is not part of the loaded archive", sym)
	}
	return nil
}
