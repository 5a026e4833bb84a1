package analyzer

import (
	"log/slog"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/executer-finder/internal/fqn"
	"github.com/DeusData/executer-finder/internal/model"
	"github.com/DeusData/executer-finder/internal/parser"
	"github.com/DeusData/executer-finder/internal/resolve"
)

// Strategy names of the operation-name chain.
const (
	strategyInlineInitializer = "inline-initializer"
	strategyInitializer       = "initializer"
	strategyAssignment        = "assignment"
)

// operationQuery identifies the request argument of one dispatch call.
type operationQuery struct {
	method  *tree_sitter.Node
	arg     *tree_sitter.Node
	argText string
}

// operationChain recovers the operation name carried by the request object.
// An object initializer on the request's declaration takes precedence over
// a later member assignment.
func (c *collector) operationChain() resolve.Chain[*operationQuery, string] {
	return resolve.Chain[*operationQuery, string]{
		{Name: strategyInlineInitializer, Resolve: c.inlineInitializerOperation},
		{Name: strategyInitializer, Resolve: c.initializerOperation},
		{Name: strategyAssignment, Resolve: c.assignmentOperation},
	}
}

// dispatchCall classifies inv as a dispatch call when its invoked expression
// starts with "<Dispatcher><". The second result reports whether inv was a
// dispatch-shaped call at all; malformed ones are dropped silently and must
// not be treated as ordinary calls either.
func (c *collector) dispatchCall(method, inv *tree_sitter.Node) (*model.DispatchCall, bool) {
	fn := parser.Field(inv, "function")
	text := strings.TrimSpace(parser.NodeText(fn, c.unit.Source))
	dispatcher := c.rules.DispatcherType()
	if !strings.HasPrefix(text, dispatcher+"<") {
		return nil, false
	}
	block, ok := GenericBlock(text, dispatcher)
	if !ok {
		slog.Debug("collect.dispatch.unbalanced", "file", c.unit.File.RelPath, "expr", text)
		return nil, true
	}
	args := ParseGenericArguments(block)
	if len(args) < 2 {
		slog.Debug("collect.dispatch.arity", "file", c.unit.File.RelPath, "expr", text, "args", len(args))
		return nil, true
	}

	invoked := memberName(fn, c.unit.Source)
	if want := c.rules.DispatchMethod(); invoked != want {
		slog.Warn("collect.dispatch.method_mismatch",
			"file", c.unit.File.RelPath, "expr", text, "method", invoked, "expected", want)
	}

	arg := argumentExpr(inv, 0)
	q := &operationQuery{
		method:  method,
		arg:     arg,
		argText: fqn.Compact(parser.NodeText(arg, c.unit.Source)),
	}
	call := &model.DispatchCall{
		RequestType:         args[0],
		ResponseType:        args[1],
		RequestVariableName: parser.NodeText(arg, c.unit.Source),
		DispatchMethod:      invoked,
		MethodName:          c.operationName(q),
	}
	return call, true
}

// operationName runs the operation chain and reports disagreeing strategies.
func (c *collector) operationName(q *operationQuery) string {
	hits := c.operations.All(q)
	if len(hits) == 0 {
		return ""
	}
	for _, h := range hits[1:] {
		if h.Value != hits[0].Value {
			slog.Warn("dispatch.method_name.conflict",
				"file", c.unit.File.RelPath,
				"request", q.argText,
				"chosen", hits[0].Value, "chosen_by", hits[0].Strategy,
				"other", h.Value, "other_by", h.Strategy)
		}
	}
	return hits[0].Value
}

// inlineInitializerOperation handles Execute(new Req { MethodName = "X" }).
func (c *collector) inlineInitializerOperation(q *operationQuery) (string, bool) {
	if !parser.IsKind(q.arg, "object_creation_expression") {
		return "", false
	}
	return c.initializerField(q.arg)
}

// initializerOperation finds a declaration of the request variable anywhere
// in the file whose initializer is new T { MethodName = "lit" }. The first
// such declaration in document order wins.
func (c *collector) initializerOperation(q *operationQuery) (string, bool) {
	if !parser.IsKind(q.arg, "identifier") {
		return "", false
	}
	name := q.argText
	var value string
	found := false
	parser.Walk(c.unit.Tree.RootNode(), func(n *tree_sitter.Node) bool {
		if found {
			return false
		}
		if n.Kind() != "variable_declarator" || declaratorName(n, c.unit.Source) != name {
			return true
		}
		if v := declaratorValue(n); parser.IsKind(v, "object_creation_expression") {
			value, found = c.initializerField(v)
		}
		return !found
	})
	return value, found
}

// initializerField returns the literal assigned to the operation field in an
// object initializer.
func (c *collector) initializerField(creation *tree_sitter.Node) (string, bool) {
	field := c.rules.OperationField()
	for _, a := range initializerAssignments(creation) {
		if fqn.Compact(parser.NodeText(parser.Field(a, "left"), c.unit.Source)) != field {
			continue
		}
		if lit, ok := parser.StringLiteral(parser.Field(a, "right"), c.unit.Source); ok {
			return lit, true
		}
	}
	return "", false
}

// assignmentOperation finds req.MethodName = "lit" in the calling method.
// With several assignments the last one in source order wins.
func (c *collector) assignmentOperation(q *operationQuery) (string, bool) {
	if q.argText == "" {
		return "", false
	}
	target := q.argText + "." + c.rules.OperationField()
	var value string
	found := false
	parser.Walk(q.method, func(n *tree_sitter.Node) bool {
		if n.Kind() != "assignment_expression" {
			return true
		}
		if fqn.Compact(parser.NodeText(parser.Field(n, "left"), c.unit.Source)) != target {
			return true
		}
		if lit, ok := parser.StringLiteral(parser.Field(n, "right"), c.unit.Source); ok {
			value, found = lit, true
		}
		return true
	})
	return value, found
}
