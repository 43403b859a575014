package mapping

import (
	"strings"
)

var primitiveNames = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// ResolveFieldType rewrites every class reference in a field descriptor to the
// referenced class's current name. Classes outside the archive are left as they are.
func (t *Table) ResolveFieldType(desc string) string {
	return RewriteDescriptor(desc, t.CurrentName)
}

// ResolveMethodSignature rewrites every class reference of a method descriptor,
// parameters and return type alike, to current names.
func (t *Table) ResolveMethodSignature(desc string) string {
	return RewriteDescriptor(desc, t.CurrentName)
}

// RewriteDescriptor replaces each L<name>; reference of a JVM descriptor with
// L<fn(name)>;. Malformed tails are copied through unchanged.
func RewriteDescriptor(desc string, fn func(string) string) string {
	if !strings.ContainsRune(desc, 'L') {
		return desc
	}
	var b strings.Builder
	b.Grow(len(desc))
	for i := 0; i < len(desc); i++ {
		c := desc[i]
		if c != 'L' {
			b.WriteByte(c)
			continue
		}
		end := strings.IndexByte(desc[i:], ';')
		if end < 0 {
			b.WriteString(desc[i:])
			break
		}
		b.WriteByte('L')
		b.WriteString(fn(desc[i+1 : i+end]))
		b.WriteByte(';')
		i += end
	}
	return b.String()
}

// ReferencedClasses lists the class names referenced by a descriptor, in order
func ReferencedClasses(desc string) []string {
	var out []string
	RewriteDescriptor(desc, func(name string) string {
		out = append(out, name)
		return name
	})
	return out
}

// JavaTypeName renders a field descriptor in source form: I -> int, [Ljava/lang/String; -> java.lang.String[].
// Unparseable input is returned as is.
func JavaTypeName(desc string) string {
	name, rest := parseType(desc)
	if name == "" || rest != "" {
		return desc
	}
	return name
}

// JavaMethodSignature renders name plus a method descriptor as "ret name(a, b)".
// Pseudo descriptors that are not JVM method descriptors are appended verbatim.
func JavaMethodSignature(name, desc string) string {
	params, ret, ok := splitMethodDescriptor(desc)
	if !ok {
		return name + desc
	}
	return ret + " " + name + "(" + strings.Join(params, ", ") + ")"
}

func splitMethodDescriptor(desc string) ([]string, string, bool) {
	if !strings.HasPrefix(desc, "(") {
		return nil, "", false
	}
	rest := desc[1:]
	params := []string{}
	for !strings.HasPrefix(rest, ")") {
		var name string
		name, rest = parseType(rest)
		if name == "" {
			return nil, "", false
		}
		params = append(params, name)
	}
	ret, tail := parseType(rest[1:])
	if ret == "" || tail != "" {
		return nil, "", false
	}
	return params, ret, true
}

// parseType consumes one type from the front of desc
func parseType(desc string) (string, string) {
	dims := 0
	for dims < len(desc) && desc[dims] == '[' {
		dims++
	}
	if dims == len(desc) {
		return "", desc
	}
	var base, rest string
	switch c := desc[dims]; c {
	case 'L':
		end := strings.IndexByte(desc[dims:], ';')
		if end < 0 {
			return "", desc
		}
		base = DottedName(desc[dims+1 : dims+end])
		rest = desc[dims+end+1:]
	default:
		p, ok := primitiveNames[c]
		if !ok {
			return "", desc
		}
		base = p
		rest = desc[dims+1:]
	}
	return base + strings.Repeat("[]", dims), rest
}
