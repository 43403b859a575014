// Package mappingfile saves and restores the original-to-current names of a table
// without its history.
package mappingfile

import (
	"fmt"

	"remap/internal/errors"
	"remap/internal/mapping"
)

// Entry is one (kind, owner, original, current) tuple. Owner is the class original
// name for members and empty for classes; Desc is the member descriptor.
type Entry struct {
	Kind     mapping.Kind
	Owner    string
	Original string
	Desc     string
	Current  string
}

// String renders the entry for error messages
func (e Entry) String() string {
	if e.Kind == mapping.KindClass {
		return fmt.Sprintf("class %s", e.Original)
	}
	return fmt.Sprintf("%s %s.%s%s", e.Kind, e.Owner, e.Original, e.Desc)
}

// FromTable lists every symbol of table, classes in original-name order each
// followed by its fields and methods. With onlyRenamed, unchanged symbols are left out.
func FromTable(table *mapping.Table, onlyRenamed bool) []Entry {
	var entries []Entry
	for _, cm := range table.Classes() {
		if !onlyRenamed || cm.Name().IsRenamed() {
			entries = append(entries, Entry{
				Kind:     mapping.KindClass,
				Original: cm.Original(),
				Current:  cm.Current(),
			})
		}
		for _, sym := range cm.Members() {
			if onlyRenamed && !sym.IsRenamed() {
				continue
			}
			entries = append(entries, Entry{
				Kind:     sym.Kind(),
				Owner:    cm.Original(),
				Original: sym.Original(),
				Desc:     sym.Desc(),
				Current:  sym.Current(),
			})
		}
	}
	return entries
}

// Apply sets the current names listed in entries. It is all or nothing: every
// entry is resolved and the resulting state is checked for invalid identifiers
// and duplicate names before any symbol changes. Nothing is recorded in history.
// Symbols not listed keep their current names. Returns how many symbols changed.
func Apply(table *mapping.Table, policy mapping.NamePolicy, entries []Entry) (int, error) {
	planned := make(map[*mapping.SymbolMapping]string, len(entries))
	var order []*mapping.SymbolMapping

	for _, e := range entries {
		sym, err := resolve(table, e)
		if err != nil {
			return 0, err
		}
		current := e.Current
		if e.Kind == mapping.KindClass {
			current = mapping.InternalName(current)
		}
		if prev, dup := planned[sym]; dup && prev != current {
			return 0, errors.Newf(errors.MappingFormatInvalid, "%s is mapped twice (%s and %s)", e, prev, current)
		}
		if current != sym.Original() {
			if sym.Kind() == mapping.KindMethod && mapping.IsSpecialMethod(sym.Original()) {
				return 0, errors.Newf(errors.InvalidIdentifier, "%s cannot be renamed", e)
			}
			if err := policy.Validate(sym.Kind(), current); err != nil {
				return 0, err
			}
		}
		if _, seen := planned[sym]; !seen {
			order = append(order, sym)
		}
		planned[sym] = current
	}

	if err := checkUnique(table, planned); err != nil {
		return 0, err
	}

	changed := 0
	for _, sym := range order {
		if sym.Current() != planned[sym] {
			sym.SetValue(planned[sym])
			changed++
		}
	}
	return changed, nil
}

func resolve(table *mapping.Table, e Entry) (*mapping.SymbolMapping, error) {
	if e.Original == "" || e.Current == "" {
		return nil, errors.Newf(errors.MappingFormatInvalid, "%s has an empty name", e)
	}
	if e.Kind == mapping.KindClass {
		cm, ok := table.Get(e.Original)
		if !ok || cm.Original() != mapping.InternalName(e.Original) {
			return nil, errors.Newf(errors.SymbolNotFound, "%s is not in the loaded archive", e)
		}
		return cm.Name(), nil
	}
	cm, ok := table.Get(e.Owner)
	if !ok || cm.Original() != mapping.InternalName(e.Owner) {
		return nil, errors.Newf(errors.SymbolNotFound, "owner of %s is not in the loaded archive", e)
	}
	sym, ok := cm.Member(e.Kind, e.Original, e.Desc)
	if !ok {
		return nil, errors.Newf(errors.SymbolNotFound, "%s is not in the loaded archive", e)
	}
	return sym, nil
}

// checkUnique verifies the uniqueness rules on the state after the planned changes.
// Collisions between symbols that are not being changed are left alone.
func checkUnique(table *mapping.Table, planned map[*mapping.SymbolMapping]string) error {
	after := func(sym *mapping.SymbolMapping) string {
		if name, ok := planned[sym]; ok {
			return name
		}
		return sym.Current()
	}
	collides := func(seen map[string]*mapping.SymbolMapping, key string, sym *mapping.SymbolMapping) bool {
		other, dup := seen[key]
		if !dup {
			seen[key] = sym
			return false
		}
		_, a := planned[sym]
		_, b := planned[other]
		return a || b
	}

	classes := make(map[string]*mapping.SymbolMapping)
	for _, cm := range table.Classes() {
		if name := after(cm.Name()); collides(classes, name, cm.Name()) {
			return errors.Newf(errors.NameConflict, "class %s would be named %s, which is taken", cm.Original(), name)
		}

		fields := make(map[string]*mapping.SymbolMapping)
		for _, f := range cm.Fields() {
			if name := after(f); collides(fields, name, f) {
				return errors.Newf(errors.NameConflict, "two fields of %s would be named %s", cm.Original(), name)
			}
		}
		methods := make(map[string]*mapping.SymbolMapping)
		for _, m := range cm.Methods() {
			if key := after(m) + "\x00" + m.Desc(); collides(methods, key, m) {
				return errors.Newf(errors.NameConflict, "two methods of %s would be named %s%s", cm.Original(), after(m), m.Desc())
			}
		}
	}
	return nil
}
