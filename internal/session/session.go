// Package session ties one loaded archive to its mapping table, rename engine and
// history, and swaps all of them together when a new archive is loaded.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"remap/internal/archive"
	"remap/internal/config"
	"remap/internal/errors"
	"remap/internal/history"
	"remap/internal/mapping"
	"remap/internal/mappingfile"
	"remap/internal/rename"
	"remap/internal/storage"
)

// LoadEvent is published after a new archive replaced the session state
type LoadEvent struct {
	Source      string
	Fingerprint string
	Classes     int
}

// state is everything that belongs to one loaded archive
type state struct {
	source      string
	sourceKind  string
	fingerprint string
	table       *mapping.Table
	history     *history.History
	engine      *rename.Engine
	bulk        *rename.BulkRenamer
}

// Session is the explicitly passed context of one open archive. It is not safe for
// concurrent use; run it from one goroutine or through a Loop.
type Session struct {
	cfg    *config.Config
	logger *slog.Logger
	policy mapping.NamePolicy

	current *state
	onLoad  history.Topic[LoadEvent]
}

// New creates a session with nothing loaded
func New(cfg *config.Config, logger *slog.Logger) *Session {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		cfg:    cfg,
		logger: logger,
		policy: mapping.NamePolicy{
			Strict:             cfg.Rename.StrictIdentifiers,
			EnforcePackagePath: cfg.Rename.EnforcePackagePath,
		},
	}
}

// Config returns the session configuration
func (s *Session) Config() *config.Config { return s.cfg }

// Policy returns the identifier rules renames are checked against
func (s *Session) Policy() mapping.NamePolicy { return s.policy }

// Loaded reports whether an archive is open
func (s *Session) Loaded() bool { return s.current != nil }

// Load reads an archive and replaces the table, history and engine with fresh
// ones built from it. The new state is built completely before the swap; on any
// failure the previous archive, history and observers stay as they were.
func (s *Session) Load(ctx context.Context, r archive.Reader, source, kind string) error {
	loaded, err := archive.Load(ctx, r)
	if err != nil {
		s.logger.Warn("Archive load failed", "source", source, "error", err.Error())
		return err
	}

	s.install(&state{
		source:      source,
		sourceKind:  kind,
		fingerprint: loaded.Fingerprint,
		table:       loaded.Table,
		history:     history.New(s.logger),
	})
	s.logger.Info("Archive loaded",
		"source", source,
		"inventory", archive.Summary(loaded.Classes),
		"fingerprint", shortFingerprint(loaded.Fingerprint),
	)
	s.warnSharedFieldNames(loaded.Table)
	return nil
}

// warnSharedFieldNames reports classes whose fields share a name across
// descriptors. Renames keep field names unique per class, so once such fields
// are renamed a reset can restore only one of them.
func (s *Session) warnSharedFieldNames(table *mapping.Table) {
	var shared []string
	for _, cm := range table.Classes() {
		for _, name := range cm.SharedFieldNames() {
			shared = append(shared, cm.Original()+"."+name)
		}
	}
	if len(shared) == 0 {
		return
	}
	examples := shared
	if len(examples) > 5 {
		examples = examples[:5]
	}
	s.logger.Warn("Archive has fields sharing a name within a class",
		"count", len(shared),
		"fields", strings.Join(examples, ", "),
	)
}

// Restore reopens a persisted session
func (s *Session) Restore(snap *storage.Snapshot) {
	s.install(&state{
		source:      snap.Source,
		sourceKind:  snap.SourceKind,
		fingerprint: snap.Fingerprint,
		table:       snap.Table,
		history:     snap.History,
	})
}

// install swaps in a fully built state and tells OnLoad observers
func (s *Session) install(next *state) {
	next.engine = rename.NewEngine(next.table, next.history, s.policy, s.logger)
	next.bulk = rename.NewBulkRenamer(next.engine, rename.OptionsFromConfig(s.cfg), s.logger)

	if s.current != nil {
		s.current.history.Close()
	}
	s.current = next
	s.onLoad.Publish(LoadEvent{
		Source:      next.source,
		Fingerprint: next.fingerprint,
		Classes:     next.table.Len(),
	})
}

// OnLoad registers an observer of archive loads
func (s *Session) OnLoad(fn func(LoadEvent)) *history.Subscription {
	return s.onLoad.Subscribe(fn)
}

// Close drops every observer of the session and its history
func (s *Session) Close() {
	s.onLoad.Clear()
	if s.current != nil {
		s.current.history.Close()
	}
}

func (s *Session) require() (*state, error) {
	if s.current == nil {
		return nil, errors.New(errors.SessionMissing, "no archive is loaded")
	}
	return s.current, nil
}

// Table returns the mapping table of the open archive, or nil
func (s *Session) Table() *mapping.Table {
	if s.current == nil {
		return nil
	}
	return s.current.table
}

// History returns the history of the open archive, or nil
func (s *Session) History() *history.History {
	if s.current == nil {
		return nil
	}
	return s.current.history
}

// Engine returns the rename engine of the open archive, or nil
func (s *Session) Engine() *rename.Engine {
	if s.current == nil {
		return nil
	}
	return s.current.engine
}

// Source returns where the open archive was read from and its kind
func (s *Session) Source() (string, string) {
	if s.current == nil {
		return "", ""
	}
	return s.current.source, s.current.sourceKind
}

// Fingerprint returns the identity of the open archive
func (s *Session) Fingerprint() string {
	if s.current == nil {
		return ""
	}
	return s.current.fingerprint
}

// ResolveClass finds a class by original or current name, dotted or internal
func (s *Session) ResolveClass(name string) (*mapping.ClassMapping, error) {
	st, err := s.require()
	if err != nil {
		return nil, err
	}
	cm, ok := st.table.Get(name)
	if !ok {
		return nil, errors.Newf(errors.SymbolNotFound, "class %s is not in the loaded archive", name)
	}
	return cm, nil
}

// ResolveMember finds a field or method of class by original or current name.
// desc may be empty when the name alone is unambiguous.
func (s *Session) ResolveMember(kind mapping.Kind, class, name, desc string) (*mapping.SymbolMapping, error) {
	cm, err := s.ResolveClass(class)
	if err != nil {
		return nil, err
	}

	var matches []*mapping.SymbolMapping
	for _, sym := range cm.FindMembers(kind, name) {
		if desc == "" || sym.Desc() == desc {
			matches = append(matches, sym)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, errors.Newf(errors.SymbolNotFound, "%s %s%s not found in %s", kind, name, desc, cm.Current())
	default:
		descs := make([]string, len(matches))
		for i, m := range matches {
			descs[i] = m.Desc()
		}
		return nil, errors.Newf(errors.SymbolNotFound,
			"%s %s is ambiguous in %s; pass one of the descriptors %s", kind, name, cm.Current(), strings.Join(descs, ", ")).
			WithDetails(map[string][]string{"descriptors": descs})
	}
}

// Rename renames a resolved symbol through the engine
func (s *Session) Rename(sym *mapping.SymbolMapping, newName string) (rename.Outcome, error) {
	st, err := s.require()
	if err != nil {
		return rename.Outcome{}, err
	}
	return st.engine.Rename(sym, newName, sym.Kind())
}

// RenameClass renames a class given by original or current name
func (s *Session) RenameClass(class, newName string) (rename.Outcome, error) {
	cm, err := s.ResolveClass(class)
	if err != nil {
		return rename.Outcome{}, err
	}
	return s.Rename(cm.Name(), newName)
}

// RenameMember renames a field or method of class
func (s *Session) RenameMember(kind mapping.Kind, class, name, desc, newName string) (rename.Outcome, error) {
	sym, err := s.ResolveMember(kind, class, name, desc)
	if err != nil {
		return rename.Outcome{}, err
	}
	return s.Rename(sym, newName)
}

// Undo reverses the action whose id starts with idPrefix
func (s *Session) Undo(idPrefix string) (*history.RenameAction, error) {
	st, err := s.require()
	if err != nil {
		return nil, err
	}
	action, err := st.history.FindPrefix(idPrefix)
	if err != nil {
		return nil, err
	}
	return action, st.engine.UndoAction(action)
}

// UndoLatest undoes the most recent rename still in the log
func (s *Session) UndoLatest() (*history.RenameAction, error) {
	st, err := s.require()
	if err != nil {
		return nil, err
	}
	action, ok := st.history.Latest()
	if !ok {
		return nil, errors.New(errors.HistoryInconsistency, "there are no renames to undo")
	}
	return action, st.engine.UndoAction(action)
}

// SelectClass records that class was brought into focus. The selection title is
// the class's current dotted name; after name swaps a title can equal another
// class's original name, so callers keep the returned mapping rather than
// resolving the title again. added is false when it repeats the previous one.
func (s *Session) SelectClass(class string) (cm *mapping.ClassMapping, title string, added bool, err error) {
	cm, err = s.ResolveClass(class)
	if err != nil {
		return nil, "", false, err
	}
	title = mapping.DottedName(cm.Current())
	return cm, title, s.current.history.SelectClass(title), nil
}

// RenameAllUnique runs the bulk rename over the whole archive
func (s *Session) RenameAllUnique(ctx context.Context) (rename.Report, error) {
	st, err := s.require()
	if err != nil {
		return rename.Report{}, err
	}
	return st.bulk.RenameAllUnique(ctx)
}

// RenameClassMembers runs the bulk rename over one class's members
func (s *Session) RenameClassMembers(ctx context.Context, class string) (rename.Report, error) {
	cm, err := s.ResolveClass(class)
	if err != nil {
		return rename.Report{}, err
	}
	return s.current.bulk.RenameClassMembers(ctx, cm)
}

// ResetMembers renames one class's members back to their original names
func (s *Session) ResetMembers(class string) (rename.Report, error) {
	cm, err := s.ResolveClass(class)
	if err != nil {
		return rename.Report{}, err
	}
	return s.current.bulk.ResetMembers(cm), nil
}

// ExportMappings writes the current names to a mapping file
func (s *Session) ExportMappings(path string, format mappingfile.Format, onlyRenamed bool) (int, error) {
	st, err := s.require()
	if err != nil {
		return 0, err
	}
	entries := mappingfile.FromTable(st.table, onlyRenamed)
	if err := mappingfile.WriteFile(path, format, entries); err != nil {
		return 0, err
	}
	s.logger.Info("Mappings exported", "path", path, "entries", len(entries))
	return len(entries), nil
}

// ImportMappings applies a mapping file. The import is all or nothing and is not
// recorded in history; recorded actions whose symbol it changed can no longer be
// undone.
func (s *Session) ImportMappings(path string, format mappingfile.Format) (int, error) {
	st, err := s.require()
	if err != nil {
		return 0, err
	}
	entries, err := mappingfile.ReadFile(path, format)
	if err != nil {
		return 0, err
	}
	changed, err := mappingfile.Apply(st.table, s.policy, entries)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Mappings imported", "path", path, "entries", len(entries), "changed", changed)
	return changed, nil
}

// ExportArchive hands the renamed inventory to an archive writer
func (s *Session) ExportArchive(ctx context.Context, w archive.Writer) error {
	st, err := s.require()
	if err != nil {
		return err
	}
	if err := w.WriteArchive(ctx, archive.Renamed(st.table)); err != nil {
		return fmt.Errorf("writing archive: %w", err)
	}
	return nil
}

// Snapshot captures the session for persistence
func (s *Session) Snapshot() (*storage.Snapshot, error) {
	st, err := s.require()
	if err != nil {
		return nil, err
	}
	return &storage.Snapshot{
		Fingerprint: st.fingerprint,
		Source:      st.source,
		SourceKind:  st.sourceKind,
		Classes:     archive.Inventory(st.table),
		Table:       st.table,
		History:     st.history,
	}, nil
}

// Save persists the session to store
func (s *Session) Save(ctx context.Context, store *storage.SessionStore) error {
	snap, err := s.Snapshot()
	if err != nil {
		return err
	}
	return store.Save(ctx, snap)
}

// Resume restores the session persisted in store. Returns SESSION_MISSING when
// nothing was saved.
func (s *Session) Resume(ctx context.Context, store *storage.SessionStore) error {
	snap, err := store.Load(ctx)
	if err != nil {
		return err
	}
	s.Restore(snap)
	s.logger.Debug("Session resumed", "source", snap.Source, "renames", len(snap.History.Renames()))
	return nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
