package analyzer

import (
	"regexp"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/executer-finder/internal/parser"
)

// procIdent matches one (optionally bracketed) SQL identifier segment.
const procIdent = `(?:\[[^\]\r\n]+\]|[A-Za-z_@#][\w@#$]*)`

var (
	execPattern     = regexp.MustCompile(`(?i)^\s*EXEC(?:UTE)?\s+(` + procIdent + `(?:\s*\.\s*` + procIdent + `){0,2})`)
	bareProcPattern = regexp.MustCompile(`^` + procIdent + `(?:\.` + procIdent + `){0,2}$`)
	bracketStripper = strings.NewReplacer("[", "", "]", "")
	dotSpaces       = regexp.MustCompile(`\s*\.\s*`)
)

// NormalizeProcedureName turns command text into a stored procedure name.
// "EXEC [dbo].[GetUser] @id" and "dbo.GetUser" both yield "dbo.GetUser".
// Text that is neither an EXEC/EXECUTE statement nor a bare, optionally
// schema-qualified identifier reports false.
func NormalizeProcedureName(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if m := execPattern.FindStringSubmatch(s); m != nil {
		return bracketStripper.Replace(dotSpaces.ReplaceAllString(m[1], ".")), true
	}
	if bareProcPattern.MatchString(s) {
		return bracketStripper.Replace(s), true
	}
	return "", false
}

// collectProcedures gathers stored procedure names referenced in a method
// body through helper calls, command constructors and CommandText
// assignments. Duplicates are removed by MethodRecord.Normalize.
func (c *collector) collectProcedures(method *tree_sitter.Node) []string {
	var out []string
	add := func(lit *tree_sitter.Node) {
		text, ok := parser.StringLiteral(lit, c.unit.Source)
		if !ok {
			return
		}
		if name, ok := NormalizeProcedureName(text); ok {
			out = append(out, name)
		}
	}

	parser.Walk(method, func(n *tree_sitter.Node) bool {
		switch n.Kind() {
		case "invocation_expression":
			if c.rules.IsProcedureHelper(invokedName(n, c.unit.Source)) {
				add(argumentExpr(n, 1))
			}
		case "object_creation_expression":
			_, simple := splitTypeText(parser.NodeText(parser.Field(n, "type"), c.unit.Source))
			if c.rules.IsCommandType(simple) {
				add(argumentExpr(n, 0))
			}
		case "assignment_expression":
			if memberName(parser.Field(n, "left"), c.unit.Source) == "CommandText" {
				add(parser.Field(n, "right"))
			}
		}
		return true
	})
	return out
}
