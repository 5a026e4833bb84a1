package analyzer

import (
	"log/slog"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/executer-finder/internal/lang"
	"github.com/DeusData/executer-finder/internal/model"
	"github.com/DeusData/executer-finder/internal/parser"
	"github.com/DeusData/executer-finder/internal/resolve"
	"github.com/DeusData/executer-finder/internal/rules"
)

// collector extracts class records from one source unit. It only reads the
// shared type index, so collectors for different files run concurrently.
type collector struct {
	unit  *sourceUnit
	index *typeIndex
	rules *rules.Rules
	opts  *Options
	spec  *lang.LanguageSpec

	types      resolve.Chain[*callSite, typeRef]
	operations resolve.Chain[*operationQuery, string]
}

func newCollector(u *sourceUnit, index *typeIndex, opts *Options) *collector {
	c := &collector{
		unit:  u,
		index: index,
		rules: opts.Rules,
		opts:  opts,
		spec:  u.spec,
	}
	c.types = c.typeChain()
	c.operations = c.operationChain()
	return c
}

// collect returns one record per class declaration in the file, in source
// order. Nested classes get their own record.
func (c *collector) collect() []*model.ClassRecord {
	var classes []*model.ClassRecord
	parser.Walk(c.unit.Tree.RootNode(), func(n *tree_sitter.Node) bool {
		if parser.IsKind(n, c.spec.ClassNodeTypes...) {
			classes = append(classes, c.collectClass(n))
		}
		return true
	})
	return classes
}

func (c *collector) collectClass(node *tree_sitter.Node) *model.ClassRecord {
	src := c.unit.Source
	name := parser.NodeText(parser.Field(node, "name"), src)
	ns := c.unit.namespaceOf(node)
	rec := &model.ClassRecord{
		Namespace:  ns,
		Name:       name,
		Kind:       model.KindClass,
		FilePath:   c.unit.File.RelPath,
		SourceHash: c.unit.Hash,
		Methods:    []*model.MethodRecord{},
	}
	slog.Info("collect.class", "class", name, "namespace", ns, "file", rec.FilePath)

	classType, _ := c.index.lookupQualified(ns, name)
	body := classBody(node)
	parser.Walk(body, func(n *tree_sitter.Node) bool {
		if parser.IsKind(n, c.spec.ClassNodeTypes...) {
			return false
		}
		if parser.IsKind(n, c.spec.MethodNodeTypes...) {
			ms := &methodScope{class: node, classType: classType, method: n, scope: c.unit.scopeAt(ns)}
			rec.Methods = append(rec.Methods, c.collectMethod(ms))
			return false
		}
		return true
	})
	return rec
}

func (c *collector) collectMethod(ms *methodScope) *model.MethodRecord {
	src := c.unit.Source
	m := &model.MethodRecord{
		Name:         parser.NodeText(parser.Field(ms.method, "name"), src),
		ResponseType: strings.TrimSpace(parser.NodeText(parser.Field(ms.method, "returns", "type"), src)),
		RequestType:  firstParameterType(ms.method, src),
	}

	parser.Walk(ms.method, func(n *tree_sitter.Node) bool {
		if parser.IsKind(n, c.spec.InvocationNodeTypes...) {
			c.classifyInvocation(ms, n, m)
		}
		return true
	})
	m.StoredProcedures = c.collectProcedures(ms.method)
	m.Normalize()

	slog.Info("collect.method",
		"class", parser.NodeText(parser.Field(ms.class, "name"), src),
		"method", m.Name,
		"dispatch_calls", len(m.DispatchCalls),
		"invoked", len(m.InvokedMethods),
		"procedures", len(m.StoredProcedures))
	return m
}

// classifyInvocation sorts an invocation into a dispatch call or an
// ordinary member call on a domain type. Anything else is ignored.
func (c *collector) classifyInvocation(ms *methodScope, inv *tree_sitter.Node, m *model.MethodRecord) {
	if call, isDispatch := c.dispatchCall(ms.method, inv); isDispatch {
		if call != nil {
			slog.Info("collect.dispatch",
				"file", c.unit.File.RelPath,
				"request", call.RequestType,
				"response", call.ResponseType,
				"operation", call.MethodName)
			m.DispatchCalls = append(m.DispatchCalls, call)
		}
		return
	}

	recv, name, ok := receiverOf(parser.Field(inv, "function"), c.unit.Source)
	if !ok || name == "" || c.rules.IsHelperMethod(name) {
		return
	}
	t, strategy, ok := c.types.Run(&callSite{method: ms, receiver: recv})
	if !ok || !c.keepType(t) {
		return
	}
	slog.Debug("collect.invocation", "method", name, "type", t.Name, "namespace", t.Namespace, "strategy", strategy)
	m.InvokedMethods = append(m.InvokedMethods, model.InvokedMethod{
		Namespace:  t.Namespace,
		ClassName:  t.Name,
		MethodName: name,
	})
}

// firstParameterType returns the declared type of the first parameter, or
// "" for a parameterless method.
func firstParameterType(method *tree_sitter.Node, source []byte) string {
	params := parser.Field(method, "parameters")
	if params == nil {
		params = parser.ChildOfKind(method, "parameter_list")
	}
	p := parser.ChildOfKind(params, "parameter")
	if p == nil {
		return ""
	}
	return strings.TrimSpace(parser.NodeText(parser.Field(p, "type"), source))
}
