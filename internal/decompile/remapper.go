//go:build cgo

package decompile

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// Remapper rewrites decompiled Java source from original to current names.
// It parses the source with tree-sitter and replaces declarations, type
// references, qualified names, imports, field accesses and unqualified or
// this/super method calls. Locals and parameters are never touched.
type Remapper struct{}

// NewRemapper creates a source remapper
func NewRemapper() *Remapper {
	return &Remapper{}
}

// Available reports whether source remapping is supported in this build
func Available() bool {
	return true
}

type edit struct {
	start, end uint32
	text       string
}

// rewriter collects the edits for one source file
type rewriter struct {
	names  *Names
	source []byte
	edits  []edit
}

// Remap returns source with every name known to names replaced by its current form
func (r *Remapper) Remap(ctx context.Context, source string, names *Names) (string, error) {
	if names == nil || names.Empty() {
		return source, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(java.GetLanguage())

	src := []byte(source)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return "", fmt.Errorf("parse error: %w", err)
	}
	defer tree.Close()

	rw := &rewriter{names: names, source: src}
	rw.packageEdits(tree.RootNode())
	rw.walk(tree.RootNode(), nil)
	return rw.apply(), nil
}

func (rw *rewriter) replace(node *sitter.Node, text string) {
	if node == nil || node.Content(rw.source) == text {
		return
	}
	rw.edits = append(rw.edits, edit{start: node.StartByte(), end: node.EndByte(), text: text})
}

func (rw *rewriter) apply() string {
	sort.Slice(rw.edits, func(i, j int) bool { return rw.edits[i].start > rw.edits[j].start })
	out := rw.source
	for _, e := range rw.edits {
		next := make([]byte, 0, len(out)-int(e.end-e.start)+len(e.text))
		next = append(next, out[:e.start]...)
		next = append(next, e.text...)
		next = append(next, out[e.end:]...)
		out = next
	}
	return string(out)
}

// packageEdits moves the package declaration to the package of the current
// top-level class name, adding or dropping the declaration as needed
func (rw *rewriter) packageEdits(root *sitter.Node) {
	top := TopLevel(rw.names.Class())
	current, ok := rw.names.ClassName(top)
	if !ok {
		return
	}
	from, to := packageOf(top), packageOf(current)
	if from == to {
		return
	}

	var decl *sitter.Node
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if child := root.NamedChild(i); child.Type() == "package_declaration" {
			decl = child
			break
		}
	}
	switch {
	case decl == nil && to != "":
		rw.edits = append(rw.edits, edit{text: "package " + dotted(to) + ";\n\n"})
	case decl != nil && to == "":
		rw.edits = append(rw.edits, edit{start: decl.StartByte(), end: decl.EndByte()})
	case decl != nil:
		rw.replace(decl.NamedChild(0), dotted(to))
	}
}

func (rw *rewriter) walk(node *sitter.Node, scope []string) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "package_declaration":
		return

	case "import_declaration":
		rw.importEdit(node)
		return

	case "scoped_type_identifier", "scoped_identifier":
		if current, ok := rw.qualified(node.Content(rw.source)); ok {
			rw.replace(node, current)
			return
		}

	case "type_identifier":
		if current, ok := rw.names.SimpleClassName(node.Content(rw.source)); ok {
			rw.replace(node, current)
		}
		return

	case "class_declaration", "interface_declaration", "enum_declaration",
		"record_declaration", "annotation_type_declaration":
		name := node.ChildByFieldName("name")
		if name == nil {
			break
		}
		class := rw.nestedClass(scope, name.Content(rw.source))
		if current, ok := rw.names.ClassName(class); ok {
			rw.replace(name, SimpleName(current))
		}
		inner := append(append([]string(nil), scope...), class)
		rw.walkChildren(node, inner, name)
		return

	case "constructor_declaration":
		name := node.ChildByFieldName("name")
		if name != nil && len(scope) > 0 {
			if current, ok := rw.names.ClassName(scope[len(scope)-1]); ok {
				rw.replace(name, SimpleName(current))
			}
		}
		rw.walkChildren(node, scope, name)
		return

	case "method_declaration":
		name := node.ChildByFieldName("name")
		if name != nil {
			if current, ok := rw.lookup(scope, name.Content(rw.source), rw.names.Method); ok {
				rw.replace(name, current)
			}
		}
		rw.walkChildren(node, scope, name)
		return

	case "variable_declarator":
		name := node.ChildByFieldName("name")
		if name != nil && node.Parent() != nil && node.Parent().Type() == "field_declaration" {
			if current, ok := rw.lookup(scope, name.Content(rw.source), rw.names.Field); ok {
				rw.replace(name, current)
			}
		}
		rw.walkChildren(node, scope, name)
		return

	case "field_access":
		field := node.ChildByFieldName("field")
		if field != nil && isSelfReference(node.ChildByFieldName("object"), rw.source) {
			if current, ok := rw.lookup(scope, field.Content(rw.source), rw.names.Field); ok {
				rw.replace(field, current)
			}
		}
		rw.walkChildren(node, scope, field)
		return

	case "method_invocation":
		name := node.ChildByFieldName("name")
		object := node.ChildByFieldName("object")
		if name != nil && (object == nil || isSelfReference(object, rw.source)) {
			if current, ok := rw.lookup(scope, name.Content(rw.source), rw.names.Method); ok {
				rw.replace(name, current)
			}
		}
		rw.walkChildren(node, scope, name)
		return
	}

	rw.walkChildren(node, scope, nil)
}

func (rw *rewriter) walkChildren(node *sitter.Node, scope []string, skip *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if skip != nil && child.StartByte() == skip.StartByte() && child.EndByte() == skip.EndByte() {
			continue
		}
		rw.walk(child, scope)
	}
}

// nestedClass returns the original internal name of a class declared in scope
func (rw *rewriter) nestedClass(scope []string, simple string) string {
	if len(scope) > 0 {
		return scope[len(scope)-1] + "$" + simple
	}
	pkg := packageOf(TopLevel(rw.names.Class()))
	if pkg == "" {
		return simple
	}
	return pkg + "/" + simple
}

// lookup resolves a member name through the enclosing classes, innermost first
func (rw *rewriter) lookup(scope []string, name string, get func(class, name string) (string, bool)) (string, bool) {
	for i := len(scope) - 1; i >= 0; i-- {
		if current, ok := get(scope[i], name); ok {
			return current, true
		}
	}
	return "", false
}

// qualified resolves a dotted source name (a.b.Outer.Inner) to the current dotted
// name of a renamed class
func (rw *rewriter) qualified(text string) (string, bool) {
	text = strings.Join(strings.Fields(text), "")
	parts := strings.Split(text, ".")
	for pkgLen := len(parts) - 1; pkgLen >= 0; pkgLen-- {
		internal := strings.Join(parts[pkgLen:], "$")
		if pkgLen > 0 {
			internal = strings.Join(parts[:pkgLen], "/") + "/" + internal
		}
		if current, ok := rw.names.ClassName(internal); ok {
			return sourceName(current), true
		}
	}
	return "", false
}

// importEdit rewrites single-type and static imports of renamed classes
func (rw *rewriter) importEdit(node *sitter.Node) {
	var target *sitter.Node
	static := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "static":
			static = true
		case "scoped_identifier", "identifier":
			target = child
		}
	}
	if target == nil {
		return
	}

	text := target.Content(rw.source)
	if current, ok := rw.qualified(text); ok {
		rw.replace(target, current)
		return
	}
	if static {
		if dot := strings.LastIndexByte(text, '.'); dot > 0 {
			if current, ok := rw.qualified(text[:dot]); ok {
				rw.replace(target, current+text[dot:])
			}
		}
	}
}

// isSelfReference reports whether an access target is this or super
func isSelfReference(object *sitter.Node, source []byte) bool {
	if object == nil {
		return false
	}
	switch object.Type() {
	case "this", "super":
		return true
	}
	text := object.Content(source)
	return text == "this" || text == "super"
}

// sourceName converts an internal name to the dotted form used in source code
func sourceName(internal string) string {
	return strings.ReplaceAll(dotted(internal), "$", ".")
}

func dotted(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

func packageOf(internal string) string {
	if i := strings.LastIndexByte(internal, '/'); i >= 0 {
		return internal[:i]
	}
	return ""
}
