package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/DeusData/executer-finder/internal/lang"
	"github.com/DeusData/executer-finder/internal/parser"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

func printAST(node *tree_sitter.Node, source []byte, indent int) {
	if node == nil {
		return
	}
	prefix := strings.Repeat("  ", indent)
	field := ""
	if p := node.Parent(); p != nil {
		for i := uint(0); i < p.ChildCount(); i++ {
			if parser.SameNode(p.Child(i), node) {
				if name := p.FieldNameForChild(uint32(i)); name != "" {
					field = name + ": "
				}
				break
			}
		}
	}
	text := parser.NodeText(node, source)
	if len(text) > 60 {
		text = text[:60] + "..."
	}
	fmt.Printf("%s%s%s %q\n", prefix, field, node.Kind(), text)
	for i := uint(0); i < node.ChildCount(); i++ {
		printAST(node.Child(i), source, indent+1)
	}
}

// sample exercises the shapes the analyzer classifies.
const sample = `namespace Demo
{
    public class C
    {
        public RespT M(ReqT request)
        {
            var req = new ReqT { MethodName = "DoThing" };
            var resp = BOAExecuter<ReqT, RespT>.Execute(req);
            other?.Helper();
            cmd.CommandText = "EXEC [dbo].[GetUser]";
            return resp;
        }
    }
}
`

func main() {
	source := []byte(sample)
	name := "sample"
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		source, name = parser.StripBOM(data), os.Args[1]
	}

	fmt.Printf("=== C# AST: %s ===\n", name)
	tree, err := parser.Parse(lang.CSharp, source)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	defer tree.Close()
	printAST(tree.RootNode(), source, 0)
}
