package archive

import (
	"context"
	"fmt"
	"sort"
	"strings"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	"remap/internal/compression"
	"remap/internal/errors"
)

// SCIPReader builds a class inventory from a SCIP index produced by scip-java.
// SCIP carries no JVM descriptors: fields get an empty descriptor and methods get
// their disambiguator as a pseudo descriptor, e.g. "()" or "(+1)".
type SCIPReader struct {
	Path string
}

// NewSCIPReader creates a reader for the index at path
func NewSCIPReader(path string) *SCIPReader {
	return &SCIPReader{Path: path}
}

// ReadClasses implements Reader
func (r *SCIPReader) ReadClasses(ctx context.Context) ([]ClassInfo, error) {
	data, err := compression.ReadFile(r.Path)
	if err != nil {
		return nil, errors.Wrap(errors.ArchiveLoadFailed, fmt.Sprintf("SCIP index not readable at %s", r.Path), err)
	}

	var index scippb.Index
	if err := proto.Unmarshal(data, &index); err != nil {
		return nil, errors.Wrap(errors.ArchiveLoadFailed, fmt.Sprintf("failed to parse SCIP index from %s", r.Path), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return classesFromIndex(&index), nil
}

// scipClass accumulates one class while walking the index
type scipClass struct {
	info    ClassInfo
	fields  map[string]bool
	methods map[string]bool
}

func classesFromIndex(index *scippb.Index) []ClassInfo {
	classes := make(map[string]*scipClass)
	interfaces := make(map[string]bool)
	var infos []*scippb.SymbolInformation

	get := func(name string) *scipClass {
		c, ok := classes[name]
		if !ok {
			c = &scipClass{
				info:    ClassInfo{Name: name},
				fields:  make(map[string]bool),
				methods: make(map[string]bool),
			}
			classes[name] = c
		}
		return c
	}

	for _, doc := range index.Documents {
		infos = append(infos, doc.Symbols...)
	}
	infos = append(infos, index.ExternalSymbols...)

	// First pass: local classes and their members
	for _, doc := range index.Documents {
		for _, sym := range doc.Symbols {
			ref, ok := parseJavaSymbol(sym.Symbol)
			if !ok {
				continue
			}
			c := get(ref.class)
			if ref.outer != "" {
				c.info.Outer = ref.outer
			}
			switch ref.member {
			case memberField:
				if !c.fields[ref.name] {
					c.fields[ref.name] = true
					c.info.Fields = append(c.info.Fields, MemberInfo{Name: ref.name})
				}
			case memberMethod:
				key := ref.name + ref.desc
				if !c.methods[key] {
					c.methods[key] = true
					c.info.Methods = append(c.info.Methods, MemberInfo{Name: ref.name, Desc: ref.desc})
				}
			}
		}
	}

	for _, info := range infos {
		if info.Kind == scippb.SymbolInformation_Interface {
			if ref, ok := parseJavaSymbol(info.Symbol); ok && ref.member == memberNone {
				interfaces[ref.class] = true
			}
		}
	}

	// Second pass: supertypes from implementation relationships of type symbols
	for _, doc := range index.Documents {
		for _, sym := range doc.Symbols {
			ref, ok := parseJavaSymbol(sym.Symbol)
			if !ok || ref.member != memberNone {
				continue
			}
			c := classes[ref.class]
			for _, rel := range sym.Relationships {
				if !rel.IsImplementation {
					continue
				}
				target, ok := parseJavaSymbol(rel.Symbol)
				if !ok || target.member != memberNone {
					continue
				}
				if interfaces[target.class] || c.info.Super != "" {
					c.info.Interfaces = append(c.info.Interfaces, target.class)
				} else {
					c.info.Super = target.class
				}
			}
		}
	}

	out := make([]ClassInfo, 0, len(classes))
	for _, c := range classes {
		out = append(out, c.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type memberKind int

const (
	memberNone memberKind = iota
	memberField
	memberMethod
)

// javaSymbolRef is a scip-java global symbol resolved to JVM names
type javaSymbolRef struct {
	class  string
	outer  string
	member memberKind
	name   string
	desc   string
}

// parseJavaSymbol reads "<scheme> <manager> <package> <version> <descriptors>" and
// maps the descriptors onto a class, a field or a method. Local symbols,
// parameters and type parameters are rejected.
func parseJavaSymbol(symbol string) (javaSymbolRef, bool) {
	if symbol == "" || strings.HasPrefix(symbol, "local ") {
		return javaSymbolRef{}, false
	}
	parts := strings.SplitN(symbol, " ", 5)
	if len(parts) < 4 {
		return javaSymbolRef{}, false
	}
	descriptors, err := parseDescriptors(parts[len(parts)-1])
	if err != nil || len(descriptors) == 0 {
		return javaSymbolRef{}, false
	}

	var pkg []string
	var types []string
	var ref javaSymbolRef
	for i, d := range descriptors {
		last := i == len(descriptors)-1
		switch d.suffix {
		case '/':
			if len(types) > 0 {
				return javaSymbolRef{}, false
			}
			pkg = append(pkg, d.name)
		case '#':
			types = append(types, d.name)
		case '.':
			if !last || len(types) == 0 {
				return javaSymbolRef{}, false
			}
			ref.member, ref.name = memberField, d.name
		case '(':
			if !last || len(types) == 0 {
				return javaSymbolRef{}, false
			}
			ref.member, ref.name, ref.desc = memberMethod, d.name, "("+d.disambiguator+")"
		default:
			return javaSymbolRef{}, false
		}
	}
	if len(types) == 0 {
		return javaSymbolRef{}, false
	}

	prefix := ""
	if len(pkg) > 0 {
		prefix = strings.Join(pkg, "/") + "/"
	}
	ref.class = prefix + strings.Join(types, "$")
	if len(types) > 1 {
		ref.outer = prefix + strings.Join(types[:len(types)-1], "$")
	}
	return ref, true
}

type scipDescriptor struct {
	name          string
	suffix        byte
	disambiguator string
}

// parseDescriptors splits a SCIP descriptor string into namespace (/), type (#),
// term (.) and method (name(disambiguator).) descriptors. Names may be backtick-quoted.
func parseDescriptors(s string) ([]scipDescriptor, error) {
	var out []scipDescriptor
	for len(s) > 0 {
		name, rest, err := readDescriptorName(s)
		if err != nil {
			return nil, err
		}
		if rest == "" {
			return nil, fmt.Errorf("descriptor %q has no suffix", name)
		}
		d := scipDescriptor{name: name, suffix: rest[0]}
		rest = rest[1:]
		switch d.suffix {
		case '/', '#', '.', '!', ':':
		case '(':
			end := strings.IndexByte(rest, ')')
			if end < 0 {
				return nil, fmt.Errorf("unterminated method descriptor %q", name)
			}
			d.disambiguator = rest[:end]
			rest = rest[end+1:]
			if name == "" {
				// parameter descriptor "(name)"
				d.suffix = ')'
				d.name = d.disambiguator
			} else {
				if !strings.HasPrefix(rest, ".") {
					return nil, fmt.Errorf("method descriptor %q is missing its trailing dot", name)
				}
				rest = rest[1:]
			}
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("unterminated type parameter %q", name)
			}
			d.name = rest[:end]
			rest = rest[end+1:]
		default:
			return nil, fmt.Errorf("unknown descriptor suffix %q", d.suffix)
		}
		out = append(out, d)
		s = rest
	}
	return out, nil
}

func readDescriptorName(s string) (string, string, error) {
	if strings.HasPrefix(s, "`") {
		var b strings.Builder
		for i := 1; i < len(s); i++ {
			if s[i] != '`' {
				b.WriteByte(s[i])
				continue
			}
			if i+1 < len(s) && s[i+1] == '`' {
				b.WriteByte('`')
				i++
				continue
			}
			return b.String(), s[i+1:], nil
		}
		return "", "", fmt.Errorf("unterminated quoted name in %q", s)
	}
	end := strings.IndexAny(s, "/#.([!:")
	if end < 0 {
		return s, "", nil
	}
	return s[:end], s[end:], nil
}
