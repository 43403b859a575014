package mapping

import (
	"fmt"
	"sort"
	"strings"
)

// MemberKey identifies a field or method within its class by original name and descriptor
type MemberKey struct {
	Name string
	Desc string
}

// ClassMapping aggregates a class's own SymbolMapping with its fields and methods.
// Super, outer and interface names are original names, kept for lookup only.
type ClassMapping struct {
	name       *SymbolMapping
	super      string
	outer      string
	interfaces []string

	fields  map[MemberKey]*SymbolMapping
	methods map[MemberKey]*SymbolMapping
	order   []*SymbolMapping
}

// NewClassMapping creates the mapping for one class. Names are in internal form.
func NewClassMapping(name, super, outer string, interfaces []string) *ClassMapping {
	cm := &ClassMapping{
		super:      InternalName(super),
		outer:      InternalName(outer),
		interfaces: make([]string, 0, len(interfaces)),
		fields:     make(map[MemberKey]*SymbolMapping),
		methods:    make(map[MemberKey]*SymbolMapping),
	}
	cm.name = newSymbol(KindClass, InternalName(name), "", cm)
	for _, iface := range interfaces {
		cm.interfaces = append(cm.interfaces, InternalName(iface))
	}
	return cm
}

// Name returns the class's own symbol
func (c *ClassMapping) Name() *SymbolMapping { return c.name }

// Original returns the class original internal name
func (c *ClassMapping) Original() string { return c.name.original }

// Current returns the class current internal name
func (c *ClassMapping) Current() string { return c.name.current }

// Super returns the superclass original name, or "" when unknown
func (c *ClassMapping) Super() string { return c.super }

// Outer returns the enclosing class original name for inner classes
func (c *ClassMapping) Outer() string { return c.outer }

// Interfaces returns the implemented interface original names
func (c *ClassMapping) Interfaces() []string {
	out := make([]string, len(c.interfaces))
	copy(out, c.interfaces)
	return out
}

// IsInner reports whether the class is nested in another class
func (c *ClassMapping) IsInner() bool { return c.outer != "" }

// AddField registers a field discovered at load time
func (c *ClassMapping) AddField(name, desc string) (*SymbolMapping, error) {
	return c.addMember(KindField, c.fields, name, desc)
}

// AddMethod registers a method discovered at load time
func (c *ClassMapping) AddMethod(name, desc string) (*SymbolMapping, error) {
	return c.addMember(KindMethod, c.methods, name, desc)
}

func (c *ClassMapping) addMember(kind Kind, members map[MemberKey]*SymbolMapping, name, desc string) (*SymbolMapping, error) {
	if name == "" {
		return nil, fmt.Errorf("%s of %s has an empty name", kind, c.Original())
	}
	key := MemberKey{Name: name, Desc: desc}
	if _, exists := members[key]; exists {
		return nil, fmt.Errorf("duplicate %s %s%s in %s", kind, name, desc, c.Original())
	}
	sym := newSymbol(kind, name, desc, c)
	members[key] = sym
	c.order = append(c.order, sym)
	return sym, nil
}

// Field looks up a field by original name and descriptor
func (c *ClassMapping) Field(name, desc string) (*SymbolMapping, bool) {
	sym, ok := c.fields[MemberKey{Name: name, Desc: desc}]
	return sym, ok
}

// Method looks up a method by original name and descriptor
func (c *ClassMapping) Method(name, desc string) (*SymbolMapping, bool) {
	sym, ok := c.methods[MemberKey{Name: name, Desc: desc}]
	return sym, ok
}

// Member looks up a field or method by original name and descriptor
func (c *ClassMapping) Member(kind Kind, name, desc string) (*SymbolMapping, bool) {
	switch kind {
	case KindField:
		return c.Field(name, desc)
	case KindMethod:
		return c.Method(name, desc)
	default:
		return nil, false
	}
}

// FindMembers returns the members of a kind whose original or current name is name,
// sorted like Fields/Methods. Used to resolve user input where descriptors are optional.
func (c *ClassMapping) FindMembers(kind Kind, name string) []*SymbolMapping {
	var candidates []*SymbolMapping
	switch kind {
	case KindField:
		candidates = c.Fields()
	case KindMethod:
		candidates = c.Methods()
	default:
		return nil
	}
	var byOriginal, byCurrent []*SymbolMapping
	for _, sym := range candidates {
		if sym.original == name {
			byOriginal = append(byOriginal, sym)
		} else if sym.current == name {
			byCurrent = append(byCurrent, sym)
		}
	}
	if len(byOriginal) > 0 {
		return byOriginal
	}
	return byCurrent
}

// Fields returns the fields sorted by original name then descriptor
func (c *ClassMapping) Fields() []*SymbolMapping { return sortedMembers(c.fields) }

// Methods returns the methods sorted by original name then descriptor
func (c *ClassMapping) Methods() []*SymbolMapping { return sortedMembers(c.methods) }

// Members returns fields then methods, each sorted
func (c *ClassMapping) Members() []*SymbolMapping {
	return append(c.Fields(), c.Methods()...)
}

// DeclarationOrder returns members in the order they were discovered at load time
func (c *ClassMapping) DeclarationOrder() []*SymbolMapping {
	out := make([]*SymbolMapping, len(c.order))
	copy(out, c.order)
	return out
}

// FieldNameTaken reports whether another field of this class currently uses name.
// Field names are class-scoped regardless of descriptor.
func (c *ClassMapping) FieldNameTaken(name string, exclude *SymbolMapping) bool {
	for _, sym := range c.fields {
		if sym != exclude && sym.current == name {
			return true
		}
	}
	return false
}

// SharedFieldNames returns the current field names carried by more than one
// field, sorted. The JVM allows fields that differ only by descriptor, so such
// classes load as they are even though field names are otherwise class-wide.
func (c *ClassMapping) SharedFieldNames() []string {
	count := make(map[string]int, len(c.fields))
	for _, sym := range c.fields {
		count[sym.current]++
	}
	var shared []string
	for name, n := range count {
		if n > 1 {
			shared = append(shared, name)
		}
	}
	sort.Strings(shared)
	return shared
}

// MethodNameTaken reports whether another method with the same descriptor currently uses name
func (c *ClassMapping) MethodNameTaken(name, desc string, exclude *SymbolMapping) bool {
	for _, sym := range c.methods {
		if sym != exclude && sym.desc == desc && sym.current == name {
			return true
		}
	}
	return false
}

// MemberNameTaken dispatches to FieldNameTaken or MethodNameTaken by kind
func (c *ClassMapping) MemberNameTaken(kind Kind, name, desc string, exclude *SymbolMapping) bool {
	if kind == KindField {
		return c.FieldNameTaken(name, exclude)
	}
	return c.MethodNameTaken(name, desc, exclude)
}

// Package returns the current package in internal form ("" for the default package)
func (c *ClassMapping) Package() string {
	if i := strings.LastIndexByte(c.name.current, '/'); i >= 0 {
		return c.name.current[:i]
	}
	return ""
}

// SimpleName returns the current name without its package
func (c *ClassMapping) SimpleName() string {
	if i := strings.LastIndexByte(c.name.current, '/'); i >= 0 {
		return c.name.current[i+1:]
	}
	return c.name.current
}

// RenamedCount returns how many of the class's symbols, itself included, are renamed
func (c *ClassMapping) RenamedCount() int {
	n := 0
	if c.name.IsRenamed() {
		n++
	}
	for _, sym := range c.order {
		if sym.IsRenamed() {
			n++
		}
	}
	return n
}

func sortedMembers(members map[MemberKey]*SymbolMapping) []*SymbolMapping {
	out := make([]*SymbolMapping, 0, len(members))
	for _, sym := range members {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].original != out[j].original {
			return out[i].original < out[j].original
		}
		return out[i].desc < out[j].desc
	})
	return out
}
