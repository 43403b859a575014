// Package archive defines the contracts with archive readers and writers and
// builds mapping tables from class inventories.
package archive

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"remap/internal/errors"
	"remap/internal/mapping"
)

// MemberInfo is a field or method as declared in the archive
type MemberInfo struct {
	Name string `json:"name" yaml:"name"`
	Desc string `json:"desc" yaml:"desc"`
}

// ClassInfo is one class of the archive with its complete member inventory.
// Names are in internal form.
type ClassInfo struct {
	Name       string       `json:"name" yaml:"name"`
	Super      string       `json:"super,omitempty" yaml:"super,omitempty"`
	Outer      string       `json:"outer,omitempty" yaml:"outer,omitempty"`
	Interfaces []string     `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	Fields     []MemberInfo `json:"fields,omitempty" yaml:"fields,omitempty"`
	Methods    []MemberInfo `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// Reader produces the class inventory of an archive
type Reader interface {
	ReadClasses(ctx context.Context) ([]ClassInfo, error)
}

// Writer applies a renamed inventory to an archive representation
type Writer interface {
	WriteArchive(ctx context.Context, classes []ClassInfo) error
}

// Loaded is the result of reading and building an archive
type Loaded struct {
	Table       *mapping.Table
	Classes     []ClassInfo
	Fingerprint string
}

// Load reads r and builds a fresh table from it. Any failure is ARCHIVE_LOAD_FAILED
// and nothing is returned.
func Load(ctx context.Context, r Reader) (*Loaded, error) {
	classes, err := r.ReadClasses(ctx)
	if err != nil {
		if errors.HasCode(err, errors.ArchiveLoadFailed) {
			return nil, err
		}
		return nil, errors.Wrap(errors.ArchiveLoadFailed, "reading archive failed", err)
	}
	table, err := Build(ctx, classes)
	if err != nil {
		return nil, err
	}
	return &Loaded{
		Table:       table,
		Classes:     classes,
		Fingerprint: Fingerprint(classes),
	}, nil
}

// Build validates an inventory and creates one ClassMapping per class
func Build(ctx context.Context, classes []ClassInfo) (*mapping.Table, error) {
	table := mapping.NewTable()
	for i, ci := range classes {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(errors.ArchiveLoadFailed, "archive load cancelled", err)
			}
		}
		if strings.TrimSpace(ci.Name) == "" {
			return nil, errors.Newf(errors.ArchiveLoadFailed, "class #%d has no name", i)
		}
		cm := mapping.NewClassMapping(ci.Name, ci.Super, ci.Outer, ci.Interfaces)
		for _, f := range ci.Fields {
			if _, err := cm.AddField(f.Name, f.Desc); err != nil {
				return nil, errors.Wrap(errors.ArchiveLoadFailed, "invalid field inventory", err)
			}
		}
		for _, m := range ci.Methods {
			if _, err := cm.AddMethod(m.Name, m.Desc); err != nil {
				return nil, errors.Wrap(errors.ArchiveLoadFailed, "invalid method inventory", err)
			}
		}
		if err := table.Add(cm); err != nil {
			return nil, errors.Wrap(errors.ArchiveLoadFailed, "invalid class inventory", err)
		}
	}
	return table, nil
}

// Fingerprint identifies an inventory: BLAKE2b-256 over its sorted canonical form,
// hex encoded. Member and class order do not matter.
func Fingerprint(classes []ClassInfo) string {
	lines := make([]string, 0, len(classes))
	for _, ci := range classes {
		var b strings.Builder
		b.WriteString(mapping.InternalName(ci.Name))
		b.WriteString("|" + mapping.InternalName(ci.Super))
		b.WriteString("|" + mapping.InternalName(ci.Outer))
		ifaces := append([]string(nil), ci.Interfaces...)
		sort.Strings(ifaces)
		b.WriteString("|" + strings.Join(ifaces, ","))
		b.WriteString("|" + memberList("f", ci.Fields))
		b.WriteString("|" + memberList("m", ci.Methods))
		lines = append(lines, b.String())
	}
	sort.Strings(lines)

	sum := blake2b.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

func memberList(tag string, members []MemberInfo) string {
	parts := make([]string, 0, len(members))
	for _, m := range members {
		parts = append(parts, tag+":"+m.Name+":"+m.Desc)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// Renamed returns the table's inventory with every name replaced by its current
// name and every descriptor resolved. This is what archive writers consume.
func Renamed(table *mapping.Table) []ClassInfo {
	classes := table.Classes()
	out := make([]ClassInfo, 0, len(classes))
	for _, cm := range classes {
		ci := ClassInfo{
			Name:  cm.Current(),
			Super: table.CurrentName(cm.Super()),
			Outer: table.CurrentName(cm.Outer()),
		}
		for _, iface := range cm.Interfaces() {
			ci.Interfaces = append(ci.Interfaces, table.CurrentName(iface))
		}
		for _, sym := range cm.DeclarationOrder() {
			switch sym.Kind() {
			case mapping.KindField:
				ci.Fields = append(ci.Fields, MemberInfo{Name: sym.Current(), Desc: table.ResolveFieldType(sym.Desc())})
			case mapping.KindMethod:
				ci.Methods = append(ci.Methods, MemberInfo{Name: sym.Current(), Desc: table.ResolveMethodSignature(sym.Desc())})
			}
		}
		out = append(out, ci)
	}
	return out
}

// Inventory returns the table's inventory under original names
func Inventory(table *mapping.Table) []ClassInfo {
	classes := table.Classes()
	out := make([]ClassInfo, 0, len(classes))
	for _, cm := range classes {
		ci := ClassInfo{
			Name:       cm.Original(),
			Super:      cm.Super(),
			Outer:      cm.Outer(),
			Interfaces: cm.Interfaces(),
		}
		if len(ci.Interfaces) == 0 {
			ci.Interfaces = nil
		}
		for _, sym := range cm.DeclarationOrder() {
			m := MemberInfo{Name: sym.Original(), Desc: sym.Desc()}
			if sym.Kind() == mapping.KindField {
				ci.Fields = append(ci.Fields, m)
			} else {
				ci.Methods = append(ci.Methods, m)
			}
		}
		out = append(out, ci)
	}
	return out
}

// Summary describes an inventory for logs
func Summary(classes []ClassInfo) string {
	fields, methods := 0, 0
	for _, ci := range classes {
		fields += len(ci.Fields)
		methods += len(ci.Methods)
	}
	return fmt.Sprintf("%d classes, %d fields, %d methods", len(classes), fields, methods)
}
