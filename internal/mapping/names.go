package mapping

import (
	"strings"
	"unicode"

	"remap/internal/errors"
)

// Java keywords plus the literals true, false and null, and the underscore
var reservedWords = map[string]struct{}{
	"abstract": {}, "assert": {}, "boolean": {}, "break": {}, "byte": {},
	"case": {}, "catch": {}, "char": {}, "class": {}, "const": {},
	"continue": {}, "default": {}, "do": {}, "double": {}, "else": {},
	"enum": {}, "extends": {}, "final": {}, "finally": {}, "float": {},
	"for": {}, "goto": {}, "if": {}, "implements": {}, "import": {},
	"instanceof": {}, "int": {}, "interface": {}, "long": {}, "native": {},
	"new": {}, "package": {}, "private": {}, "protected": {}, "public": {},
	"return": {}, "short": {}, "static": {}, "strictfp": {}, "super": {},
	"switch": {}, "synchronized": {}, "this": {}, "throw": {}, "throws": {},
	"transient": {}, "try": {}, "void": {}, "volatile": {}, "while": {},
	"true": {}, "false": {}, "null": {}, "_": {},
}

// unsafe in archive entry paths on common filesystems
const unsafePathChars = "\\:*?\"|"

// NamePolicy selects how strictly proposed names are checked
type NamePolicy struct {
	// Strict requires Java source identifiers that are not reserved words.
	// Otherwise the JVM unqualified-name rules apply.
	Strict bool
	// EnforcePackagePath requires class names to map onto valid archive entry paths
	EnforcePackagePath bool
}

// DefaultNamePolicy is strict with package path enforcement
func DefaultNamePolicy() NamePolicy {
	return NamePolicy{Strict: true, EnforcePackagePath: true}
}

// InternalName converts a dotted class name (a.b.C) to internal form (a/b/C)
func InternalName(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

// DottedName converts an internal class name to dotted form
func DottedName(name string) string {
	return strings.ReplaceAll(name, "/", ".")
}

// IsSpecialMethod reports constructors and static initialisers
func IsSpecialMethod(name string) bool {
	return name == "<init>" || name == "<clinit>"
}

// IsReservedWord reports whether s is a Java keyword or literal
func IsReservedWord(s string) bool {
	_, ok := reservedWords[s]
	return ok
}

// IsJavaIdentifier reports whether s is a syntactically valid Java identifier,
// ignoring reserved words
func IsJavaIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '$' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && (unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)) {
			continue
		}
		return false
	}
	return true
}

// Validate checks name against the rules for kind. Class names must already be in
// internal form. The returned error carries the InvalidIdentifier code.
func (p NamePolicy) Validate(kind Kind, name string) error {
	if name == "" {
		return errors.New(errors.InvalidIdentifier, kind.String()+" name cannot be empty")
	}
	switch kind {
	case KindClass:
		return p.validateClass(name)
	case KindField, KindMethod:
		if IsSpecialMethod(name) {
			return errors.Newf(errors.InvalidIdentifier, "%s is reserved for constructors and initialisers", name)
		}
		return p.validateSegment(kind, name)
	default:
		return errors.Newf(errors.InvalidIdentifier, "unknown symbol kind %d", int(kind))
	}
}

func (p NamePolicy) validateClass(name string) error {
	for _, segment := range strings.Split(name, "/") {
		if p.EnforcePackagePath {
			if segment == "" || segment == "." || segment == ".." {
				return errors.Newf(errors.InvalidIdentifier, "class name %q has an empty or relative path segment", name)
			}
			if strings.ContainsAny(segment, unsafePathChars) || strings.IndexFunc(segment, unicode.IsControl) >= 0 {
				return errors.Newf(errors.InvalidIdentifier, "class name %q contains characters not allowed in archive paths", name)
			}
		}
		if err := p.validateSegment(KindClass, segment); err != nil {
			return err
		}
	}
	return nil
}

func (p NamePolicy) validateSegment(kind Kind, segment string) error {
	if p.Strict {
		if !IsJavaIdentifier(segment) {
			return errors.Newf(errors.InvalidIdentifier, "%q is not a valid Java identifier", segment)
		}
		if IsReservedWord(segment) {
			return errors.Newf(errors.InvalidIdentifier, "%q is a reserved word", segment)
		}
		return nil
	}

	// JVM unqualified names: non-empty, none of . ; [ /, and for methods no < >
	if segment == "" {
		return errors.Newf(errors.InvalidIdentifier, "%s name has an empty segment", kind)
	}
	forbidden := ".;[/"
	if kind == KindMethod {
		forbidden += "<>"
	}
	if strings.ContainsAny(segment, forbidden) {
		return errors.Newf(errors.InvalidIdentifier, "%q contains a character the JVM does not allow in %s names", segment, kind)
	}
	// Mapping files are tab separated and line based
	if strings.IndexFunc(segment, unicode.IsControl) >= 0 {
		return errors.Newf(errors.InvalidIdentifier, "%q contains a control character", segment)
	}
	return nil
}
