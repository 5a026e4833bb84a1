package parser

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_c_sharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"

	"github.com/DeusData/executer-finder/internal/lang"
)

var (
	languagesOnce sync.Once
	languages     map[lang.Language]*tree_sitter.Language
	parserPools   map[lang.Language]*sync.Pool
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func initLanguages() {
	languagesOnce.Do(func() {
		languages = map[lang.Language]*tree_sitter.Language{
			lang.CSharp: tree_sitter.NewLanguage(tree_sitter_c_sharp.Language()),
		}

		parserPools = make(map[lang.Language]*sync.Pool, len(languages))
		for l, tsLang := range languages {
			tsLang := tsLang
			parserPools[l] = &sync.Pool{
				New: func() any {
					p := tree_sitter.NewParser()
					if err := p.SetLanguage(tsLang); err != nil {
						panic(fmt.Sprintf("set language: %v", err))
					}
					return p
				},
			}
		}
	})
}

// GetLanguage returns the tree-sitter Language for a lang.Language.
func GetLanguage(l lang.Language) (*tree_sitter.Language, error) {
	initLanguages()
	tsLang, ok := languages[l]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", l)
	}
	return tsLang, nil
}

// StripBOM removes a leading UTF-8 byte order mark. The returned slice shares
// the backing array with source, so byte offsets stay relative to it.
func StripBOM(source []byte) []byte {
	return bytes.TrimPrefix(source, utf8BOM)
}

// Parse parses source code into a tree-sitter AST Tree.
// The caller must call tree.Close() when done.
// Parsers are pooled per language via sync.Pool to avoid per-file allocation.
func Parse(l lang.Language, source []byte) (*tree_sitter.Tree, error) {
	initLanguages()

	pool, ok := parserPools[l]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", l)
	}

	p, _ := pool.Get().(*tree_sitter.Parser)
	if p == nil {
		return nil, fmt.Errorf("failed to get parser for language %s", l)
	}
	tree := p.Parse(source, nil)
	pool.Put(p)

	if tree == nil {
		return nil, fmt.Errorf("parse failed for language %s", l)
	}

	return tree, nil
}

// WalkFunc is called for each node during AST traversal.
// Return false to skip children.
type WalkFunc func(node *tree_sitter.Node) bool

// Walk traverses the AST in depth-first order.
func Walk(node *tree_sitter.Node, fn WalkFunc) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil {
			Walk(child, fn)
		}
	}
}

// NodeText returns the text content of a node.
func NodeText(node *tree_sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// Field returns the first child under any of the given field names. Grammar
// releases rename fields now and then (e.g. "returns" vs "type"), so callers
// list every known spelling.
func Field(node *tree_sitter.Node, names ...string) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	for _, name := range names {
		if child := node.ChildByFieldName(name); child != nil {
			return child
		}
	}
	return nil
}

// ChildOfKind returns the first named child whose kind is one of kinds.
func ChildOfKind(node *tree_sitter.Node, kinds ...string) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child != nil && hasKind(child, kinds) {
			return child
		}
	}
	return nil
}

// Ancestor returns the nearest proper ancestor whose kind is one of kinds.
func Ancestor(node *tree_sitter.Node, kinds ...string) *tree_sitter.Node {
	if node == nil {
		return nil
	}
	for p := node.Parent(); p != nil; p = p.Parent() {
		if hasKind(p, kinds) {
			return p
		}
	}
	return nil
}

// IsKind reports whether node has one of the given kinds.
func IsKind(node *tree_sitter.Node, kinds ...string) bool {
	return node != nil && hasKind(node, kinds)
}

// SameNode reports whether a and b denote the same syntax node.
func SameNode(a, b *tree_sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Id() == b.Id()
}

func hasKind(node *tree_sitter.Node, kinds []string) bool {
	k := node.Kind()
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

// StringLiteral returns the value of a C# regular, verbatim or raw string
// literal node. Interpolated strings and non-literals report false.
func StringLiteral(node *tree_sitter.Node, source []byte) (string, bool) {
	if node == nil {
		return "", false
	}
	switch node.Kind() {
	case "string_literal", "verbatim_string_literal", "raw_string_literal":
		return UnquoteLiteral(NodeText(node, source))
	case "literal", "parenthesized_expression":
		if node.NamedChildCount() == 1 {
			return StringLiteral(node.NamedChild(0), source)
		}
	}
	return "", false
}

// UnquoteLiteral strips the quoting of a C# string literal and resolves the
// common escape sequences. It reports false for interpolated strings.
func UnquoteLiteral(text string) (string, bool) {
	text = strings.TrimSuffix(text, "u8")
	switch {
	case strings.HasPrefix(text, "$"):
		return "", false
	case strings.HasPrefix(text, `"""`):
		body := strings.TrimPrefix(text, `"""`)
		for strings.HasPrefix(body, `"`) {
			body = body[1:]
		}
		body = strings.TrimRight(body, `"`)
		return strings.TrimSpace(body), true
	case strings.HasPrefix(text, `@"`):
		if len(text) < 3 || !strings.HasSuffix(text, `"`) {
			return "", false
		}
		return strings.ReplaceAll(text[2:len(text)-1], `""`, `"`), true
	case strings.HasPrefix(text, `"`):
		if len(text) < 2 || !strings.HasSuffix(text, `"`) {
			return "", false
		}
		return unescape(text[1 : len(text)-1]), true
	}
	return "", false
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
