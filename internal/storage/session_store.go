package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"remap/internal/archive"
	"remap/internal/errors"
	"remap/internal/history"
	"remap/internal/mapping"
	"remap/internal/mappingfile"
)

// Snapshot is everything needed to resume a session: the archive inventory,
// the current names and both history logs
type Snapshot struct {
	Fingerprint string
	Source      string
	SourceKind  string
	SavedAt     time.Time
	Classes     []archive.ClassInfo
	Table       *mapping.Table
	History     *history.History
}

// SessionStore persists one session per database
type SessionStore struct {
	db     *DB
	logger *slog.Logger
}

// NewSessionStore creates a new session store
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db, logger: db.logger}
}

// Save replaces the stored session with snap in a single transaction
func (s *SessionStore) Save(ctx context.Context, snap *Snapshot) error {
	inventory, err := json.Marshal(snap.Classes)
	if err != nil {
		return fmt.Errorf("failed to encode inventory: %w", err)
	}
	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"archive", "symbols", "rename_actions", "selections"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO archive (id, fingerprint, source, source_kind, inventory_json, saved_at)
			VALUES (1, ?, ?, ?, ?, ?)
		`, snap.Fingerprint, snap.Source, snap.SourceKind, string(inventory), savedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to save archive: %w", err)
		}

		if err := insertSymbols(ctx, tx, snap.Table); err != nil {
			return err
		}
		if err := insertRenames(ctx, tx, snap.History.Renames()); err != nil {
			return err
		}
		return insertSelections(ctx, tx, snap.History.Selections())
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Session saved",
		"fingerprint", snap.Fingerprint,
		"renames", len(snap.History.Renames()),
	)
	return nil
}

func insertSymbols(ctx context.Context, tx *sql.Tx, table *mapping.Table) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO symbols (kind, owner, original, desc, current) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare symbol insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range mappingfile.FromTable(table, true) {
		if _, err := stmt.ExecContext(ctx, e.Kind.String(), e.Owner, e.Original, e.Desc, e.Current); err != nil {
			return fmt.Errorf("failed to save %s: %w", e, err)
		}
	}
	return nil
}

func insertRenames(ctx context.Context, tx *sql.Tx, renames []*history.RenameAction) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rename_actions (seq, id, kind, owner, original, desc, before_name, after_name, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare rename insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, a := range renames {
		sym := a.Symbol()
		owner := ""
		if sym.Kind() != mapping.KindClass {
			owner = sym.Owner().Original()
		}
		if _, err := stmt.ExecContext(ctx,
			i,
			a.ID().String(),
			sym.Kind().String(),
			owner,
			sym.Original(),
			sym.Desc(),
			a.Before(),
			a.After(),
			a.At().UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("failed to save rename %s: %w", a.ID(), err)
		}
	}
	return nil
}

func insertSelections(ctx context.Context, tx *sql.Tx, selections []history.Selection) error {
	for i, sel := range selections {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO selections (seq, title, at) VALUES (?, ?, ?)",
			i, sel.Title, sel.At.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("failed to save selection: %w", err)
		}
	}
	return nil
}

// Load rebuilds the stored session. Returns SESSION_MISSING when nothing was saved.
// The returned history has no observers.
func (s *SessionStore) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}
	var inventory, savedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, source, source_kind, inventory_json, saved_at
		FROM archive WHERE id = 1
	`).Scan(&snap.Fingerprint, &snap.Source, &snap.SourceKind, &inventory, &savedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.SessionMissing, "no session has been saved")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	snap.SavedAt, _ = time.Parse(time.RFC3339Nano, savedAt)

	if err := json.Unmarshal([]byte(inventory), &snap.Classes); err != nil {
		return nil, errors.Wrap(errors.InternalError, "stored inventory is corrupt", err)
	}
	if fp := archive.Fingerprint(snap.Classes); fp != snap.Fingerprint {
		return nil, errors.Newf(errors.InternalError, "stored inventory does not match fingerprint %s", snap.Fingerprint)
	}

	snap.Table, err = archive.Build(ctx, snap.Classes)
	if err != nil {
		return nil, err
	}

	entries, err := s.loadSymbols(ctx)
	if err != nil {
		return nil, err
	}
	// Stored names passed validation when they were set; only uniqueness is rechecked
	if _, err := mappingfile.Apply(snap.Table, mapping.NamePolicy{}, entries); err != nil {
		return nil, errors.Wrap(errors.InternalError, "stored names are inconsistent", err)
	}

	renames, err := s.loadRenames(ctx, snap.Table)
	if err != nil {
		return nil, err
	}
	selections, err := s.loadSelections(ctx)
	if err != nil {
		return nil, err
	}

	snap.History = history.New(s.logger)
	snap.History.Restore(renames, selections)

	s.logger.Debug("Session loaded",
		"fingerprint", snap.Fingerprint,
		"classes", snap.Table.Len(),
		"renames", len(renames),
	)
	return snap, nil
}

func (s *SessionStore) loadSymbols(ctx context.Context) ([]mappingfile.Entry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT kind, owner, original, desc, current FROM symbols")
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []mappingfile.Entry
	for rows.Next() {
		var e mappingfile.Entry
		var kind string
		if err := rows.Scan(&kind, &e.Owner, &e.Original, &e.Desc, &e.Current); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		if e.Kind, err = mapping.ParseKind(kind); err != nil {
			return nil, errors.Wrap(errors.InternalError, "stored symbol is corrupt", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SessionStore) loadRenames(ctx context.Context, table *mapping.Table) ([]*history.RenameAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, owner, original, desc, before_name, after_name, at
		FROM rename_actions ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read rename log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var renames []*history.RenameAction
	for rows.Next() {
		var id, kind, owner, original, desc, before, after, at string
		if err := rows.Scan(&id, &kind, &owner, &original, &desc, &before, &after, &at); err != nil {
			return nil, fmt.Errorf("failed to scan rename: %w", err)
		}
		actionID, err := uuid.Parse(id)
		if err != nil {
			return nil, errors.Wrap(errors.InternalError, "stored rename has an invalid id", err)
		}
		k, err := mapping.ParseKind(kind)
		if err != nil {
			return nil, errors.Wrap(errors.InternalError, "stored rename is corrupt", err)
		}
		sym, ok := lookupSymbol(table, k, owner, original, desc)
		if !ok {
			return nil, errors.Newf(errors.InternalError, "stored rename %s references unknown %s %s", id, kind, original)
		}
		stamp, _ := time.Parse(time.RFC3339Nano, at)
		renames = append(renames, history.RestoreAction(actionID, sym, before, after, stamp))
	}
	return renames, rows.Err()
}

func (s *SessionStore) loadSelections(ctx context.Context) ([]history.Selection, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT title, at FROM selections ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to read selection log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var selections []history.Selection
	for rows.Next() {
		var sel history.Selection
		var at string
		if err := rows.Scan(&sel.Title, &at); err != nil {
			return nil, fmt.Errorf("failed to scan selection: %w", err)
		}
		sel.At, _ = time.Parse(time.RFC3339Nano, at)
		selections = append(selections, sel)
	}
	return selections, rows.Err()
}

// Clear removes the stored session
func (s *SessionStore) Clear(ctx context.Context) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"archive", "symbols", "rename_actions", "selections"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// lookupSymbol finds a symbol by original names only
func lookupSymbol(table *mapping.Table, kind mapping.Kind, owner, original, desc string) (*mapping.SymbolMapping, bool) {
	if kind == mapping.KindClass {
		cm, ok := table.Get(original)
		if !ok || cm.Original() != original {
			return nil, false
		}
		return cm.Name(), true
	}
	cm, ok := table.Get(owner)
	if !ok || cm.Original() != owner {
		return nil, false
	}
	return cm.Member(kind, original, desc)
}
