package analyzer

import (
	"encoding/hex"
	"fmt"
	"os"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	"github.com/zeebo/xxh3"

	"github.com/DeusData/executer-finder/internal/discover"
	"github.com/DeusData/executer-finder/internal/fqn"
	"github.com/DeusData/executer-finder/internal/lang"
	"github.com/DeusData/executer-finder/internal/parser"
)

// sourceUnit is one parsed source file.
type sourceUnit struct {
	File   discover.FileInfo
	Source []byte
	Tree   *tree_sitter.Tree
	Hash   string

	spec *lang.LanguageSpec
	// fileNamespace is the name of a file-scoped namespace declaration.
	fileNamespace string
	usings        []string
	aliases       map[string]string
}

// readUnit reads and parses a discovered file.
func readUnit(f discover.FileInfo) (*sourceUnit, error) {
	source, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	return parseUnit(f, source)
}

// parseUnit parses source, which must already be in memory.
func parseUnit(f discover.FileInfo, source []byte) (*sourceUnit, error) {
	source = parser.StripBOM(source)
	tree, err := parser.Parse(f.Language, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.RelPath, err)
	}

	h := xxh3.New()
	_, _ = h.Write(source)

	u := &sourceUnit{
		File:   f,
		Source: source,
		Tree:   tree,
		Hash:   hex.EncodeToString(h.Sum(nil)),
		spec:   lang.ForLanguage(f.Language),
	}
	if u.spec == nil {
		tree.Close()
		return nil, fmt.Errorf("parse %s: no language spec for %s", f.RelPath, f.Language)
	}
	root := tree.RootNode()
	if ns := parser.ChildOfKind(root, "file_scoped_namespace_declaration"); ns != nil {
		u.fileNamespace = fqn.Compact(parser.NodeText(parser.Field(ns, "name"), source))
	}
	u.usings, u.aliases = parseUsings(root, source)
	return u, nil
}

func (u *sourceUnit) close() {
	if u != nil && u.Tree != nil {
		u.Tree.Close()
		u.Tree = nil
	}
}

// namespaceOf returns the namespace enclosing node: the dotted join of every
// enclosing namespace declaration, else the file-scoped namespace, else
// fqn.GlobalNamespace.
func (u *sourceUnit) namespaceOf(node *tree_sitter.Node) string {
	var parts []string
	for p := node.Parent(); p != nil; p = p.Parent() {
		if !parser.IsKind(p, u.spec.NamespaceNodeTypes...) {
			continue
		}
		if name := fqn.Compact(parser.NodeText(parser.Field(p, "name"), u.Source)); name != "" {
			parts = append([]string{name}, parts...)
		}
	}
	if len(parts) == 0 && u.fileNamespace != "" {
		return u.fileNamespace
	}
	ns := ""
	for i, p := range parts {
		if i > 0 {
			ns += "."
		}
		ns += p
	}
	return fqn.Sanitize(ns)
}

// scopeAt returns the name-resolution scope for code inside namespace ns.
func (u *sourceUnit) scopeAt(ns string) scope {
	return scope{namespace: ns, usings: u.usings, aliases: u.aliases}
}
