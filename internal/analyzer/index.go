package analyzer

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/executer-finder/internal/fqn"
	"github.com/DeusData/executer-finder/internal/parser"
)

// scope is the name-resolution context of a file position: the enclosing
// namespace plus the file's using directives.
type scope struct {
	namespace string
	usings    []string
	aliases   map[string]string
}

// candidates lists the namespaces searched for an unqualified type name,
// innermost enclosing namespace first, then usings.
func (s scope) candidates() []string {
	out := fqn.NamespaceChain(s.namespace)
	out = append(out, s.usings...)
	return append(out, fqn.GlobalNamespace)
}

// declaredType is a type declared somewhere in the analyzed tree.
type declaredType struct {
	Namespace string
	Name      string
	scope     scope
	// members maps field and property names to their declared type text.
	members map[string]string
	// returns maps method names to their return type text.
	returns map[string]string
}

// typeIndex is a read-only view of every type declared in the analyzed
// tree. It is built once before collection and shared by all workers.
type typeIndex struct {
	byName     map[string][]*declaredType
	namespaces map[string]bool
}

func newTypeIndex() *typeIndex {
	return &typeIndex{
		byName:     make(map[string][]*declaredType),
		namespaces: make(map[string]bool),
	}
}

// addUnit indexes every type declaration in a parsed file.
func (ix *typeIndex) addUnit(u *sourceUnit) {
	parser.Walk(u.Tree.RootNode(), func(n *tree_sitter.Node) bool {
		if !parser.IsKind(n, u.spec.TypeNodeTypes...) {
			return true
		}
		name := parser.NodeText(parser.Field(n, "name"), u.Source)
		if name == "" {
			return true
		}
		ns := u.namespaceOf(n)
		dt := &declaredType{
			Namespace: ns,
			Name:      name,
			scope:     u.scopeAt(ns),
			members:   make(map[string]string),
			returns:   make(map[string]string),
		}
		indexMembers(dt, n, u.Source)
		ix.byName[name] = append(ix.byName[name], dt)
		for _, part := range fqn.NamespaceChain(ns) {
			ix.namespaces[part] = true
		}
		return true
	})
}

func indexMembers(dt *declaredType, decl *tree_sitter.Node, source []byte) {
	body := classBody(decl)
	if body == nil {
		return
	}
	for i := uint(0); i < body.NamedChildCount(); i++ {
		member := body.NamedChild(i)
		if member == nil {
			continue
		}
		switch member.Kind() {
		case "field_declaration", "event_field_declaration":
			vd := parser.ChildOfKind(member, "variable_declaration")
			if vd == nil {
				continue
			}
			typeText := parser.NodeText(parser.Field(vd, "type"), source)
			for j := uint(0); j < vd.NamedChildCount(); j++ {
				d := vd.NamedChild(j)
				if d != nil && d.Kind() == "variable_declarator" {
					dt.members[declaratorName(d, source)] = typeText
				}
			}
		case "property_declaration":
			name := parser.NodeText(parser.Field(member, "name"), source)
			dt.members[name] = parser.NodeText(parser.Field(member, "type"), source)
		case "method_declaration":
			name := parser.NodeText(parser.Field(member, "name"), source)
			if _, dup := dt.returns[name]; !dup {
				dt.returns[name] = parser.NodeText(parser.Field(member, "returns", "type"), source)
			}
		}
	}
}

// lookup finds the declaration of an unqualified type name visible from
// the given candidate namespaces. A name declared exactly once is found even
// without a matching using directive (global usings live in other files).
func (ix *typeIndex) lookup(name string, candidates []string) (*declaredType, bool) {
	decls := ix.byName[name]
	if len(decls) == 0 {
		return nil, false
	}
	for _, ns := range candidates {
		for _, d := range decls {
			if d.Namespace == ns {
				return d, true
			}
		}
	}
	if len(decls) == 1 {
		return decls[0], true
	}
	return nil, false
}

// lookupQualified finds the declaration of ns.name.
func (ix *typeIndex) lookupQualified(ns, name string) (*declaredType, bool) {
	for _, d := range ix.byName[name] {
		if d.Namespace == ns {
			return d, true
		}
	}
	return nil, false
}

// isNamespace reports whether ns names a namespace known to the analysis:
// declared in the tree or a well-known platform namespace.
func (ix *typeIndex) isNamespace(ns string) bool {
	return ix.namespaces[ns] || platformNamespaces[ns]
}

// classBody returns the declaration_list of a type declaration.
func classBody(decl *tree_sitter.Node) *tree_sitter.Node {
	if body := parser.Field(decl, "body"); body != nil {
		return body
	}
	return parser.ChildOfKind(decl, "declaration_list")
}

// parseUsings extracts plain namespace imports and aliases from the using
// directives of a file. Static imports are ignored.
func parseUsings(root *tree_sitter.Node, source []byte) (usings []string, aliases map[string]string) {
	aliases = make(map[string]string)
	parser.Walk(root, func(n *tree_sitter.Node) bool {
		switch n.Kind() {
		case "using_directive":
			text := strings.TrimSuffix(strings.TrimSpace(parser.NodeText(n, source)), ";")
			text = strings.TrimSpace(strings.TrimPrefix(text, "global "))
			text = strings.TrimSpace(strings.TrimPrefix(text, "using"))
			if strings.HasPrefix(text, "static ") {
				return false
			}
			if alias, target, ok := strings.Cut(text, "="); ok {
				aliases[strings.TrimSpace(alias)] = fqn.StripGlobal(fqn.Compact(target))
				return false
			}
			if ns := fqn.StripGlobal(fqn.Compact(text)); ns != "" {
				usings = append(usings, ns)
			}
			return false
		case "class_declaration", "struct_declaration", "interface_declaration",
			"enum_declaration", "record_declaration", "method_declaration":
			return false
		}
		return true
	})
	return usings, aliases
}

// platformTypes maps well-known platform type names to their namespace.
// It stands in for the metadata references a compiler would load, so that
// receivers of these types are recognized as platform types.
var platformTypes = map[string]string{
	"Object": "System", "String": "System", "Boolean": "System", "Byte": "System",
	"Char": "System", "Decimal": "System", "Double": "System", "Single": "System",
	"Int16": "System", "Int32": "System", "Int64": "System", "UInt16": "System",
	"UInt32": "System", "UInt64": "System", "DateTime": "System", "DateTimeOffset": "System",
	"TimeSpan": "System", "Guid": "System", "Math": "System", "Convert": "System",
	"Console": "System", "Environment": "System", "Exception": "System", "Activator": "System",
	"Array": "System", "Enum": "System", "Nullable": "System", "Tuple": "System",
	"ValueTuple": "System", "Lazy": "System", "Func": "System", "Action": "System",
	"Uri": "System", "Random": "System", "GC": "System", "Type": "System",
	"StringComparer": "System", "BitConverter": "System", "AppDomain": "System",
	"StringBuilder": "System.Text", "Encoding": "System.Text",
	"Regex": "System.Text.RegularExpressions", "Match": "System.Text.RegularExpressions",
	"List": "System.Collections.Generic", "Dictionary": "System.Collections.Generic",
	"HashSet": "System.Collections.Generic", "Queue": "System.Collections.Generic",
	"Stack": "System.Collections.Generic", "IEnumerable": "System.Collections.Generic",
	"IList": "System.Collections.Generic", "ICollection": "System.Collections.Generic",
	"IDictionary": "System.Collections.Generic", "KeyValuePair": "System.Collections.Generic",
	"SortedDictionary": "System.Collections.Generic", "LinkedList": "System.Collections.Generic",
	"ArrayList": "System.Collections", "Hashtable": "System.Collections",
	"ConcurrentDictionary": "System.Collections.Concurrent", "ConcurrentQueue": "System.Collections.Concurrent",
	"Enumerable": "System.Linq", "Queryable": "System.Linq",
	"Task": "System.Threading.Tasks", "Parallel": "System.Threading.Tasks",
	"Thread": "System.Threading", "Interlocked": "System.Threading", "Monitor": "System.Threading",
	"CancellationToken": "System.Threading", "SemaphoreSlim": "System.Threading",
	"File": "System.IO", "Directory": "System.IO", "Path": "System.IO", "Stream": "System.IO",
	"MemoryStream": "System.IO", "FileStream": "System.IO", "StreamReader": "System.IO",
	"StreamWriter": "System.IO", "FileInfo": "System.IO", "DirectoryInfo": "System.IO",
	"DataTable": "System.Data", "DataSet": "System.Data", "DataRow": "System.Data",
	"DataColumn": "System.Data", "CommandType": "System.Data", "DbType": "System.Data",
	"SqlCommand": "System.Data.SqlClient", "SqlConnection": "System.Data.SqlClient",
	"SqlParameter": "System.Data.SqlClient", "SqlDataReader": "System.Data.SqlClient",
	"SqlDataAdapter": "System.Data.SqlClient", "DbCommand": "System.Data.Common",
	"DbConnection": "System.Data.Common", "HttpClient": "System.Net.Http",
	"WebClient": "System.Net", "HttpWebRequest": "System.Net",
	"XmlDocument": "System.Xml", "XmlNode": "System.Xml", "XDocument": "System.Xml.Linq",
	"XElement": "System.Xml.Linq", "JsonSerializer": "System.Text.Json",
	"Stopwatch": "System.Diagnostics", "Debug": "System.Diagnostics", "Trace": "System.Diagnostics",
	"Process": "System.Diagnostics", "CultureInfo": "System.Globalization",
	"ConfigurationManager": "System.Configuration", "Assembly": "System.Reflection",
	"ILogger": "Microsoft.Extensions.Logging", "IConfiguration": "Microsoft.Extensions.Configuration",
	"IServiceProvider": "System", "IServiceCollection": "Microsoft.Extensions.DependencyInjection",
}

var platformNamespaces = func() map[string]bool {
	out := make(map[string]bool)
	for _, ns := range platformTypes {
		for _, part := range fqn.NamespaceChain(ns) {
			out[part] = true
		}
	}
	return out
}()

// predefinedTypes are the C# keyword type names.
var predefinedTypes = map[string]bool{
	"bool": true, "byte": true, "sbyte": true, "char": true, "decimal": true,
	"double": true, "float": true, "int": true, "uint": true, "nint": true,
	"nuint": true, "long": true, "ulong": true, "short": true, "ushort": true,
	"object": true, "string": true, "void": true,
}
