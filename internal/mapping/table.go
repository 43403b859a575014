package mapping

import (
	"fmt"
	"sort"
)

// Table is the registry of every ClassMapping of one loaded archive, keyed by class
// original name. It is not safe for concurrent use; all mutation happens on one
// goroutine (see session.Loop).
type Table struct {
	classes map[string]*ClassMapping
	sorted  []*ClassMapping
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{classes: make(map[string]*ClassMapping)}
}

// Add registers a class while the table is being built
func (t *Table) Add(cm *ClassMapping) error {
	if cm == nil || cm.Original() == "" {
		return fmt.Errorf("class mapping without a name")
	}
	if _, exists := t.classes[cm.Original()]; exists {
		return fmt.Errorf("duplicate class %s", cm.Original())
	}
	t.classes[cm.Original()] = cm
	t.sorted = nil
	return nil
}

// Len returns the number of classes
func (t *Table) Len() int { return len(t.classes) }

// Classes returns every class sorted by original name
func (t *Table) Classes() []*ClassMapping {
	if t.sorted == nil {
		t.sorted = make([]*ClassMapping, 0, len(t.classes))
		for _, cm := range t.classes {
			t.sorted = append(t.sorted, cm)
		}
		sort.Slice(t.sorted, func(i, j int) bool {
			return t.sorted[i].Original() < t.sorted[j].Original()
		})
	}
	out := make([]*ClassMapping, len(t.sorted))
	copy(out, t.sorted)
	return out
}

// Get looks a class up by original name first, then by current name.
// Dotted names are accepted. A missing class is a normal negative result.
func (t *Table) Get(name string) (*ClassMapping, bool) {
	name = InternalName(name)
	if cm, ok := t.classes[name]; ok {
		return cm, true
	}
	for _, cm := range t.Classes() {
		if cm.Current() == name {
			return cm, true
		}
	}
	return nil, false
}

// CurrentName maps a class original name to its current name. Names outside the
// archive are returned unchanged.
func (t *Table) CurrentName(original string) string {
	if cm, ok := t.classes[original]; ok {
		return cm.Current()
	}
	return original
}

// IsNameTaken reports whether any class other than excluding currently uses candidate.
// The comparison is exact and case-sensitive.
func (t *Table) IsNameTaken(candidate string, excluding *ClassMapping) bool {
	candidate = InternalName(candidate)
	for _, cm := range t.classes {
		if cm != excluding && cm.Current() == candidate {
			return true
		}
	}
	return false
}

// TakenNames returns the set of class current names, for bulk passes
func (t *Table) TakenNames() map[string]struct{} {
	taken := make(map[string]struct{}, len(t.classes))
	for _, cm := range t.classes {
		taken[cm.Current()] = struct{}{}
	}
	return taken
}

// InnerClasses returns the classes whose outer class is cm, sorted by original name
func (t *Table) InnerClasses(cm *ClassMapping) []*ClassMapping {
	var out []*ClassMapping
	for _, c := range t.Classes() {
		if c.Outer() == cm.Original() {
			out = append(out, c)
		}
	}
	return out
}

// Subclasses returns the classes that extend or implement cm
func (t *Table) Subclasses(cm *ClassMapping) []*ClassMapping {
	var out []*ClassMapping
	for _, c := range t.Classes() {
		if c.Super() == cm.Original() {
			out = append(out, c)
			continue
		}
		for _, iface := range c.interfaces {
			if iface == cm.Original() {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Stats summarises how much of the table has been renamed
type Stats struct {
	Classes        int `json:"classes"`
	Fields         int `json:"fields"`
	Methods        int `json:"methods"`
	RenamedClasses int `json:"renamedClasses"`
	RenamedFields  int `json:"renamedFields"`
	RenamedMethods int `json:"renamedMethods"`
}

// Stats counts symbols per kind
func (t *Table) Stats() Stats {
	var s Stats
	for _, cm := range t.classes {
		s.Classes++
		if cm.Name().IsRenamed() {
			s.RenamedClasses++
		}
		for _, f := range cm.fields {
			s.Fields++
			if f.IsRenamed() {
				s.RenamedFields++
			}
		}
		for _, m := range cm.methods {
			s.Methods++
			if m.IsRenamed() {
				s.RenamedMethods++
			}
		}
	}
	return s
}
