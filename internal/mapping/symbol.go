// Package mapping holds the original-to-current name registry of one loaded archive.
package mapping

import "fmt"

// Kind identifies what a symbol names
type Kind int

const (
	KindClass Kind = iota
	KindField
	KindMethod
)

// String returns the lower-case kind name used in logs, mapping files and storage
func (k Kind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindField:
		return "field"
	case KindMethod:
		return "method"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String
func ParseKind(s string) (Kind, error) {
	switch s {
	case "class":
		return KindClass, nil
	case "field":
		return KindField, nil
	case "method":
		return KindMethod, nil
	default:
		return 0, fmt.Errorf("unknown symbol kind %q", s)
	}
}

// Status describes where a symbol's current name comes from
type Status string

const (
	StatusOriginal Status = "original"
	StatusRenamed  Status = "renamed"
)

// SymbolMapping is the per-symbol record: original name, current name and kind.
// Members carry their JVM descriptor; classes have an empty descriptor.
type SymbolMapping struct {
	kind     Kind
	original string
	desc     string
	current  string
	owner    *ClassMapping
}

func newSymbol(kind Kind, original, desc string, owner *ClassMapping) *SymbolMapping {
	return &SymbolMapping{
		kind:     kind,
		original: original,
		desc:     desc,
		current:  original,
		owner:    owner,
	}
}

func (s *SymbolMapping) Kind() Kind           { return s.kind }
func (s *SymbolMapping) Original() string     { return s.original }
func (s *SymbolMapping) Current() string      { return s.current }
func (s *SymbolMapping) Desc() string         { return s.desc }
func (s *SymbolMapping) Owner() *ClassMapping { return s.owner }

// IsRenamed reports whether current differs from original
func (s *SymbolMapping) IsRenamed() bool { return s.current != s.original }

// Signature is the member's (original name, descriptor) key within its class
func (s *SymbolMapping) Signature() MemberKey {
	return MemberKey{Name: s.original, Desc: s.desc}
}

// Status reports whether the symbol still carries its original name
func (s *SymbolMapping) Status() Status {
	if s.IsRenamed() {
		return StatusRenamed
	}
	return StatusOriginal
}

// SetValue sets the current name without any checks. Callers validate first;
// undo relies on this to restore a previously valid name.
func (s *SymbolMapping) SetValue(name string) {
	if name == "" {
		return
	}
	s.current = name
}

// String renders the symbol for logs: a/b/C, a/b/C.x:I or a/b/C.run()V
func (s *SymbolMapping) String() string {
	if s.kind == KindClass {
		return s.original
	}
	owner := "?"
	if s.owner != nil {
		owner = s.owner.Original()
	}
	if s.kind == KindField {
		return owner + "." + s.original + ":" + s.desc
	}
	return owner + "." + s.original + s.desc
}
