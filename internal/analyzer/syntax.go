package analyzer

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/executer-finder/internal/fqn"
	"github.com/DeusData/executer-finder/internal/parser"
)

// Small syntax helpers over the C# tree-sitter grammar.

// argumentExpr returns the expression of the i-th argument of an invocation
// or object creation, or nil.
func argumentExpr(call *tree_sitter.Node, i int) *tree_sitter.Node {
	args := parser.Field(call, "arguments")
	if args == nil {
		args = parser.ChildOfKind(call, "argument_list")
	}
	if args == nil {
		return nil
	}
	idx := 0
	for j := uint(0); j < args.NamedChildCount(); j++ {
		arg := args.NamedChild(j)
		if arg == nil || arg.Kind() != "argument" {
			continue
		}
		if idx == i {
			if arg.NamedChildCount() == 0 {
				return nil
			}
			// A named argument ("name: expr") puts the expression last.
			return arg.NamedChild(arg.NamedChildCount() - 1)
		}
		idx++
	}
	return nil
}

// simpleName returns the identifier of a name node, dropping any generic
// argument list.
func simpleName(node *tree_sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	switch node.Kind() {
	case "identifier":
		return parser.NodeText(node, source)
	case "generic_name":
		if id := parser.ChildOfKind(node, "identifier"); id != nil {
			return parser.NodeText(id, source)
		}
	}
	return fqn.StripGenerics(fqn.Compact(parser.NodeText(node, source)))
}

// memberName returns the member name of a member access or binding, or the
// identifier itself for a bare name.
func memberName(node *tree_sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	switch node.Kind() {
	case "member_access_expression", "member_binding_expression":
		return simpleName(parser.Field(node, "name"), source)
	case "identifier", "generic_name":
		return simpleName(node, source)
	}
	return ""
}

// invokedName returns the simple name of the method an invocation calls.
func invokedName(inv *tree_sitter.Node, source []byte) string {
	return memberName(parser.Field(inv, "function"), source)
}

// receiverOf returns the receiver expression of a member invocation and the
// invoked member name. It reports false for calls without a receiver.
// Conditional access (x?.M()) yields x as the receiver.
func receiverOf(fn *tree_sitter.Node, source []byte) (*tree_sitter.Node, string, bool) {
	if fn == nil {
		return nil, "", false
	}
	switch fn.Kind() {
	case "member_access_expression":
		recv := parser.Field(fn, "expression")
		if recv == nil && fn.NamedChildCount() > 0 {
			recv = fn.NamedChild(0)
		}
		return recv, memberName(fn, source), recv != nil
	case "member_binding_expression":
		cond := parser.Ancestor(fn, "conditional_access_expression")
		if cond == nil {
			return nil, "", false
		}
		recv := parser.Field(cond, "condition")
		if recv == nil && cond.NamedChildCount() > 0 {
			recv = cond.NamedChild(0)
		}
		return recv, memberName(fn, source), recv != nil
	}
	return nil, "", false
}

// declaratorValue returns the initializer expression of a variable
// declarator, or nil.
func declaratorValue(decl *tree_sitter.Node) *tree_sitter.Node {
	if v := parser.Field(decl, "value"); v != nil {
		return unwrapEquals(v)
	}
	for i := uint(0); i < decl.NamedChildCount(); i++ {
		child := decl.NamedChild(i)
		if child == nil {
			continue
		}
		switch child.Kind() {
		case "identifier", "tuple_pattern", "bracketed_argument_list":
			continue
		case "equals_value_clause":
			return unwrapEquals(child)
		default:
			return child
		}
	}
	return nil
}

func unwrapEquals(n *tree_sitter.Node) *tree_sitter.Node {
	if n != nil && n.Kind() == "equals_value_clause" && n.NamedChildCount() > 0 {
		return n.NamedChild(0)
	}
	return n
}

// declaratorName returns the declared identifier of a variable declarator.
func declaratorName(decl *tree_sitter.Node, source []byte) string {
	if name := parser.Field(decl, "name"); name != nil {
		return parser.NodeText(name, source)
	}
	if id := parser.ChildOfKind(decl, "identifier"); id != nil {
		return parser.NodeText(id, source)
	}
	return ""
}

// declarationType returns the declared type node of the variable_declaration
// that owns decl.
func declarationType(decl *tree_sitter.Node) *tree_sitter.Node {
	p := decl.Parent()
	if p == nil || p.Kind() != "variable_declaration" {
		return nil
	}
	if t := parser.Field(p, "type"); t != nil {
		return t
	}
	if p.NamedChildCount() > 0 {
		return p.NamedChild(0)
	}
	return nil
}

// initializerAssignments returns the assignments of an object or collection
// initializer attached to an object creation expression.
func initializerAssignments(creation *tree_sitter.Node) []*tree_sitter.Node {
	init := parser.Field(creation, "initializer")
	if init == nil {
		init = parser.ChildOfKind(creation, "initializer_expression")
	}
	if init == nil {
		return nil
	}
	var out []*tree_sitter.Node
	for i := uint(0); i < init.NamedChildCount(); i++ {
		if child := init.NamedChild(i); child != nil && child.Kind() == "assignment_expression" {
			out = append(out, child)
		}
	}
	return out
}

// isThis reports whether node is the "this" expression.
func isThis(node *tree_sitter.Node, source []byte) bool {
	if node == nil {
		return false
	}
	k := node.Kind()
	return k == "this_expression" || k == "this" || (k == "identifier" && parser.NodeText(node, source) == "this")
}

// splitTypeText normalizes a type name and splits it into namespace and
// simple name.
func splitTypeText(text string) (string, string) {
	return fqn.SplitQualified(fqn.StripGlobal(strings.TrimSuffix(fqn.Compact(text), "?")))
}
