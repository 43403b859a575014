package decompile

import (
	"strings"

	"remap/internal/mapping"
)

// Names is an immutable copy of the current names a source rewrite needs. It is
// taken on the mutation thread so decompilation can run elsewhere while the
// table keeps changing.
type Names struct {
	class   string
	classes map[string]string
	simple  map[string]string
	members map[string]memberNames
}

type memberNames struct {
	fields  map[string]string
	methods map[string]string
}

// SnapshotNames copies the renamed class names of table and the renamed members of
// every class that shares a source file with cm
func SnapshotNames(table *mapping.Table, cm *mapping.ClassMapping) *Names {
	n := &Names{
		class:   cm.Original(),
		classes: make(map[string]string),
		simple:  make(map[string]string),
		members: make(map[string]memberNames),
	}
	file := TopLevel(cm.Original())
	ambiguous := make(map[string]bool)

	for _, c := range table.Classes() {
		if c.Name().IsRenamed() {
			n.classes[c.Original()] = c.Current()
		}

		from, to := SimpleName(c.Original()), SimpleName(c.Current())
		if prev, seen := n.simple[from]; (seen && prev != to) || ambiguous[from] {
			ambiguous[from] = true
			delete(n.simple, from)
		} else {
			n.simple[from] = to
		}

		if TopLevel(c.Original()) == file {
			n.members[c.Original()] = snapshotMembers(c)
		}
	}
	for from, to := range n.simple {
		if from == to {
			delete(n.simple, from)
		}
	}
	return n
}

func snapshotMembers(cm *mapping.ClassMapping) memberNames {
	m := memberNames{
		fields:  make(map[string]string),
		methods: make(map[string]string),
	}
	for _, f := range cm.Fields() {
		if f.IsRenamed() {
			m.fields[f.Original()] = f.Current()
		}
	}

	// Source has no descriptors: overloads are renamed only when they all agree
	conflict := make(map[string]bool)
	for _, meth := range cm.Methods() {
		name := meth.Original()
		if prev, seen := m.methods[name]; (seen && prev != meth.Current()) || conflict[name] {
			conflict[name] = true
			delete(m.methods, name)
			continue
		}
		m.methods[name] = meth.Current()
	}
	for from, to := range m.methods {
		if from == to || mapping.IsSpecialMethod(from) {
			delete(m.methods, from)
		}
	}
	return m
}

// Class returns the original internal name of the class the snapshot was taken for
func (n *Names) Class() string { return n.class }

// ClassName returns the current internal name of a renamed class
func (n *Names) ClassName(original string) (string, bool) {
	current, ok := n.classes[original]
	return current, ok
}

// SimpleClassName maps an unqualified class name to its current unqualified name
// when no other class with the same simple name was renamed differently
func (n *Names) SimpleClassName(simple string) (string, bool) {
	current, ok := n.simple[simple]
	return current, ok
}

// Field returns the current name of a renamed field declared in class
func (n *Names) Field(class, name string) (string, bool) {
	current, ok := n.members[class].fields[name]
	return current, ok
}

// Method returns the current name of a renamed method declared in class
func (n *Names) Method(class, name string) (string, bool) {
	current, ok := n.members[class].methods[name]
	return current, ok
}

// Empty reports whether nothing in the snapshot differs from the original names
func (n *Names) Empty() bool {
	if len(n.classes) > 0 || len(n.simple) > 0 {
		return false
	}
	for _, m := range n.members {
		if len(m.fields) > 0 || len(m.methods) > 0 {
			return false
		}
	}
	return true
}

// SimpleName returns the unqualified name of an internal class name (a/B$C -> C)
func SimpleName(class string) string {
	name := class[strings.LastIndexByte(class, '/')+1:]
	return name[strings.LastIndexByte(name, '$')+1:]
}
