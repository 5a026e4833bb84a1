package analyzer

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/executer-finder/internal/fqn"
	"github.com/DeusData/executer-finder/internal/parser"
	"github.com/DeusData/executer-finder/internal/resolve"
)

type typeKind int

const (
	typeUnresolved typeKind = iota
	typeNamed
	typePrimitive
	typeArray
	typeAnonymous
)

// typeRef is the resolved static type of a receiver expression.
type typeRef struct {
	Namespace string
	Name      string
	Kind      typeKind
	// Syntactic marks types inferred without symbol information.
	Syntactic bool
	decl      *declaredType
}

// Strategy names of the receiver type chain.
const (
	strategySemantic     = "semantic"
	strategyLocalNew     = "syntactic.local-new"
	strategyAssignNew    = "syntactic.assign-new"
	strategyFieldType    = "syntactic.field"
	strategyPropertyType = "syntactic.property"
	maxExpressionDepth   = 8
)

// callSite is a member invocation whose receiver type is being resolved.
type callSite struct {
	method   *methodScope
	receiver *tree_sitter.Node
}

// methodScope carries the declarations enclosing a method body.
type methodScope struct {
	class     *tree_sitter.Node
	classType *declaredType
	method    *tree_sitter.Node
	scope     scope
}

func (c *collector) typeChain() resolve.Chain[*callSite, typeRef] {
	chain := resolve.Chain[*callSite, typeRef]{
		{Name: strategySemantic, Resolve: c.semanticType},
		{Name: strategyLocalNew, Resolve: c.localNewType},
		{Name: strategyAssignNew, Resolve: c.assignNewType},
		{Name: strategyFieldType, Resolve: c.fieldType},
		{Name: strategyPropertyType, Resolve: c.propertyType},
	}
	if c.opts.DisableSemantic {
		return chain.Without(strategySemantic)
	}
	return chain
}

// semanticType resolves the receiver through declared symbols and the type
// index. Unknown types fail so the syntactic strategies get a chance.
func (c *collector) semanticType(site *callSite) (typeRef, bool) {
	t := c.exprType(site.method, site.receiver, 0)
	return t, t.Kind != typeUnresolved
}

// typeFromText resolves a type as written in source.
func (c *collector) typeFromText(text string, sc scope) typeRef {
	text = fqn.StripGlobal(fqn.Compact(text))
	text = strings.TrimSuffix(text, "?")
	switch {
	case text == "", text == "var", text == "dynamic":
		return typeRef{}
	case strings.HasSuffix(text, "]"), strings.HasSuffix(text, "*"):
		return typeRef{Name: text, Kind: typeArray}
	case strings.HasPrefix(text, "("):
		return typeRef{Namespace: "System", Name: "ValueTuple", Kind: typeNamed}
	case predefinedTypes[text]:
		return typeRef{Name: text, Kind: typePrimitive}
	}

	ns, simple := fqn.SplitQualified(text)
	if ns == "" {
		if target, ok := sc.aliases[simple]; ok {
			ns, simple = fqn.SplitQualified(target)
		}
	} else if head, rest, _ := strings.Cut(ns, "."); sc.aliases[head] != "" {
		ns = sc.aliases[head]
		if rest != "" {
			ns += "." + rest
		}
	}

	if ns != "" {
		if d, ok := c.index.lookupQualified(ns, simple); ok {
			return typeRef{Namespace: d.Namespace, Name: d.Name, Kind: typeNamed, decl: d}
		}
		return typeRef{Namespace: ns, Name: simple, Kind: typeNamed}
	}
	if d, ok := c.index.lookup(simple, sc.candidates()); ok {
		return typeRef{Namespace: d.Namespace, Name: d.Name, Kind: typeNamed, decl: d}
	}
	if pns, ok := platformTypes[simple]; ok {
		return typeRef{Namespace: pns, Name: simple, Kind: typeNamed}
	}
	return typeRef{Name: simple}
}

// exprType computes the static type of an expression.
func (c *collector) exprType(ms *methodScope, expr *tree_sitter.Node, depth int) typeRef {
	if expr == nil || depth > maxExpressionDepth {
		return typeRef{}
	}
	src := c.unit.Source
	switch expr.Kind() {
	case "identifier":
		name := parser.NodeText(expr, src)
		if text, owner, ok := c.symbolType(ms, name); ok {
			return c.symbolRef(ms, text, owner, depth)
		}
		return c.staticTypeRef(expr, ms.scope)
	case "this_expression", "this":
		return c.classRef(ms)
	case "member_access_expression":
		inner := parser.Field(expr, "expression")
		name := memberName(expr, src)
		if isThis(inner, src) {
			if text, ok := c.classMemberType(ms, name); ok {
				return c.typeFromText(text, ms.scope)
			}
			return typeRef{}
		}
		if t := c.exprType(ms, inner, depth+1); t.decl != nil {
			if text, ok := t.decl.members[name]; ok {
				return c.typeFromText(text, t.decl.scope)
			}
			return typeRef{}
		}
		return c.staticTypeRef(expr, ms.scope)
	case "qualified_name", "generic_name", "alias_qualified_name":
		return c.staticTypeRef(expr, ms.scope)
	case "object_creation_expression", "cast_expression":
		return c.typeFromText(parser.NodeText(parser.Field(expr, "type"), src), ms.scope)
	case "parenthesized_expression":
		if expr.NamedChildCount() == 1 {
			return c.exprType(ms, expr.NamedChild(0), depth+1)
		}
	case "invocation_expression":
		return c.invocationType(ms, expr, depth)
	case "string_literal", "verbatim_string_literal", "raw_string_literal",
		"interpolated_string_expression", "integer_literal", "real_literal",
		"boolean_literal", "character_literal", "predefined_type":
		return typeRef{Name: expr.Kind(), Kind: typePrimitive}
	case "anonymous_object_creation_expression":
		return typeRef{Kind: typeAnonymous}
	case "array_creation_expression", "implicit_array_creation_expression",
		"stackalloc_array_creation_expression", "implicit_stackalloc_expression":
		return typeRef{Kind: typeArray}
	}
	return typeRef{}
}

// staticTypeRef treats a receiver as a type name (Foo.Bar(), Ns.Foo.Bar()).
// Dotted names only count when their prefix is a known namespace, so that
// member chains on unknown locals are never mistaken for type names.
func (c *collector) staticTypeRef(expr *tree_sitter.Node, sc scope) typeRef {
	text := fqn.StripGlobal(fqn.Compact(parser.NodeText(expr, c.unit.Source)))
	ns, _ := fqn.SplitQualified(text)
	if ns != "" && !c.index.isNamespace(ns) {
		head, _, _ := strings.Cut(ns, ".")
		if _, alias := sc.aliases[head]; !alias {
			return typeRef{}
		}
	}
	t := c.typeFromText(text, sc)
	if ns == "" && t.decl == nil && t.Kind == typeNamed && sc.aliases[text] == "" {
		if _, platform := platformTypes[t.Name]; !platform {
			return typeRef{}
		}
	}
	return t
}

// invocationType returns the declared return type of a call on a type whose
// declaration was indexed.
func (c *collector) invocationType(ms *methodScope, inv *tree_sitter.Node, depth int) typeRef {
	fn := parser.Field(inv, "function")
	src := c.unit.Source
	var owner *declaredType
	var sc scope
	switch {
	case parser.IsKind(fn, "identifier", "generic_name"):
		owner, sc = ms.classType, ms.scope
	case parser.IsKind(fn, "member_access_expression"):
		recv, _, _ := receiverOf(fn, src)
		if isThis(recv, src) {
			owner, sc = ms.classType, ms.scope
		} else if t := c.exprType(ms, recv, depth+1); t.decl != nil {
			owner, sc = t.decl, t.decl.scope
		}
	}
	if owner == nil {
		return typeRef{}
	}
	if text, ok := owner.returns[memberName(fn, src)]; ok {
		return c.typeFromText(text, sc)
	}
	return typeRef{}
}

func (c *collector) classRef(ms *methodScope) typeRef {
	if ms.classType == nil {
		return typeRef{}
	}
	d := ms.classType
	return typeRef{Namespace: d.Namespace, Name: d.Name, Kind: typeNamed, decl: d}
}

// symbolRef resolves the declared type text of a symbol. An implicitly typed
// local takes the type of its initializer.
func (c *collector) symbolRef(ms *methodScope, text string, value *tree_sitter.Node, depth int) typeRef {
	if isImplicitType(text) {
		if value == nil {
			return typeRef{}
		}
		return c.exprType(ms, value, depth+1)
	}
	return c.typeFromText(text, ms.scope)
}

func isImplicitType(text string) bool {
	text = strings.TrimSpace(text)
	return text == "var" || text == ""
}

// symbolType finds the declaration of name visible in the method: a local,
// a foreach or out variable, a parameter, or a member of the class. It
// returns the declared type text and, for locals, the initializer.
func (c *collector) symbolType(ms *methodScope, name string) (string, *tree_sitter.Node, bool) {
	if text, value, ok := c.localType(ms.method, name); ok {
		return text, value, true
	}
	if text, ok := parameterType(ms.method, name, c.unit.Source); ok {
		return text, nil, true
	}
	if text, ok := c.classMemberType(ms, name); ok {
		return text, nil, true
	}
	return "", nil, false
}

func (c *collector) localType(method *tree_sitter.Node, name string) (string, *tree_sitter.Node, bool) {
	src := c.unit.Source
	var text string
	var value *tree_sitter.Node
	found := false
	parser.Walk(method, func(n *tree_sitter.Node) bool {
		if found {
			return false
		}
		switch n.Kind() {
		case "variable_declarator":
			if declaratorName(n, src) == name {
				text = parser.NodeText(declarationType(n), src)
				value = declaratorValue(n)
				found = true
			}
		case "foreach_statement":
			if parser.NodeText(parser.Field(n, "left"), src) == name {
				text = parser.NodeText(parser.Field(n, "type"), src)
				found = true
			}
		case "declaration_expression":
			if parser.NodeText(parser.Field(n, "name"), src) == name {
				text = parser.NodeText(parser.Field(n, "type"), src)
				found = true
			}
		}
		return !found
	})
	return text, value, found
}

func parameterType(method *tree_sitter.Node, name string, source []byte) (string, bool) {
	params := parser.Field(method, "parameters")
	if params == nil {
		params = parser.ChildOfKind(method, "parameter_list")
	}
	if params == nil {
		return "", false
	}
	for i := uint(0); i < params.NamedChildCount(); i++ {
		p := params.NamedChild(i)
		if p == nil || p.Kind() != "parameter" {
			continue
		}
		if parser.NodeText(parser.Field(p, "name"), source) == name {
			return parser.NodeText(parser.Field(p, "type"), source), true
		}
	}
	return "", false
}

func (c *collector) classMemberType(ms *methodScope, name string) (string, bool) {
	if ms.classType != nil {
		if text, ok := ms.classType.members[name]; ok {
			return text, true
		}
	}
	// Primary constructor parameters are in scope for the whole class.
	return parameterType(ms.class, name, c.unit.Source)
}

// receiverIdent returns the identifier a syntactic strategy looks up:
// "x" for both x.M() and this.x.M().
func receiverIdent(recv *tree_sitter.Node, source []byte) (name string, viaThis bool) {
	switch {
	case parser.IsKind(recv, "identifier"):
		return parser.NodeText(recv, source), false
	case parser.IsKind(recv, "member_access_expression") && isThis(parser.Field(recv, "expression"), source):
		return memberName(recv, source), true
	}
	return "", false
}

// syntacticRef resolves a type name without symbol information. A simple
// name that the index cannot place is assumed to live in the caller's
// namespace.
func (c *collector) syntacticRef(text string, sc scope) (typeRef, bool) {
	if text == "" {
		return typeRef{}, false
	}
	t := c.typeFromText(text, sc)
	if t.Kind == typeUnresolved && t.Name != "" {
		t.Kind = typeNamed
		if sc.namespace != fqn.GlobalNamespace {
			t.Namespace = sc.namespace
		}
	}
	t.Syntactic = true
	return t, t.Kind != typeUnresolved
}

// localNewType: a local declared in the same method and initialized with
// new T(...).
func (c *collector) localNewType(site *callSite) (typeRef, bool) {
	name, viaThis := receiverIdent(site.receiver, c.unit.Source)
	if name == "" || viaThis {
		return typeRef{}, false
	}
	var typeText string
	parser.Walk(site.method.method, func(n *tree_sitter.Node) bool {
		if typeText != "" {
			return false
		}
		if n.Kind() == "variable_declarator" && declaratorName(n, c.unit.Source) == name {
			if v := declaratorValue(n); parser.IsKind(v, "object_creation_expression") {
				typeText = parser.NodeText(parser.Field(v, "type"), c.unit.Source)
			}
		}
		return typeText == ""
	})
	return c.syntacticRef(typeText, site.method.scope)
}

// assignNewType: an assignment x = new T(...) in the same method.
func (c *collector) assignNewType(site *callSite) (typeRef, bool) {
	name, _ := receiverIdent(site.receiver, c.unit.Source)
	if name == "" {
		return typeRef{}, false
	}
	src := c.unit.Source
	var typeText string
	parser.Walk(site.method.method, func(n *tree_sitter.Node) bool {
		if typeText != "" {
			return false
		}
		if n.Kind() != "assignment_expression" {
			return true
		}
		left := fqn.Compact(parser.NodeText(parser.Field(n, "left"), src))
		if left != name && left != "this."+name {
			return true
		}
		if right := parser.Field(n, "right"); parser.IsKind(right, "object_creation_expression") {
			typeText = parser.NodeText(parser.Field(right, "type"), src)
		}
		return typeText == ""
	})
	return c.syntacticRef(typeText, site.method.scope)
}

// fieldType: a field of the enclosing class with the receiver's name.
func (c *collector) fieldType(site *callSite) (typeRef, bool) {
	name, _ := receiverIdent(site.receiver, c.unit.Source)
	if name == "" {
		return typeRef{}, false
	}
	return c.syntacticRef(c.classMemberText(site.method.class, name, "field_declaration"), site.method.scope)
}

// propertyType: a property of the enclosing class with the receiver's name.
func (c *collector) propertyType(site *callSite) (typeRef, bool) {
	name, _ := receiverIdent(site.receiver, c.unit.Source)
	if name == "" {
		return typeRef{}, false
	}
	return c.syntacticRef(c.classMemberText(site.method.class, name, "property_declaration"), site.method.scope)
}

// classMemberText scans the class body for a member of the given kind named
// name and returns its declared type text.
func (c *collector) classMemberText(class *tree_sitter.Node, name, kind string) string {
	body := classBody(class)
	if body == nil {
		return ""
	}
	src := c.unit.Source
	for i := uint(0); i < body.NamedChildCount(); i++ {
		member := body.NamedChild(i)
		if member == nil || member.Kind() != kind {
			continue
		}
		if kind == "property_declaration" {
			if parser.NodeText(parser.Field(member, "name"), src) == name {
				return parser.NodeText(parser.Field(member, "type"), src)
			}
			continue
		}
		vd := parser.ChildOfKind(member, "variable_declaration")
		if vd == nil {
			continue
		}
		for j := uint(0); j < vd.NamedChildCount(); j++ {
			d := vd.NamedChild(j)
			if d != nil && d.Kind() == "variable_declarator" && declaratorName(d, src) == name {
				return parser.NodeText(parser.Field(vd, "type"), src)
			}
		}
	}
	return ""
}

// keepType applies the domain filters to a resolved receiver type.
func (c *collector) keepType(t typeRef) bool {
	switch t.Kind {
	case typeNamed:
	default:
		return false
	}
	if t.Namespace == "" || t.Name == "" {
		return false
	}
	return !c.rules.IsPlatformNamespace(t.Namespace)
}
