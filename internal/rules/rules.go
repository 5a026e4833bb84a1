// Package rules holds the analysis rules a repository can override through
// an .efconfig file in its root.
package rules

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the per-repository rules file.
const FileName = ".efconfig"

const (
	defaultDispatcherType = "BOAExecuter"
	defaultDispatchMethod = "Execute"
	defaultOperationField = "MethodName"
)

// defaultPlatformPrefixes name the namespaces of the host platform's
// standard libraries.
var defaultPlatformPrefixes = []string{"System", "Microsoft", "Windows", "Mono"}

// defaultHelperDenylist lists framework helper methods that never count as
// domain calls, whatever their receiver resolves to. Verbs that domain
// repositories and services commonly declare (Add, Insert, Find, Remove,
// Exists, Parse...) are left out; on collections and strings the platform
// type filter already drops them.
var defaultHelperDenylist = []string{
	"ToString", "Equals", "GetHashCode", "GetType", "CompareTo", "Dispose",
	"Where", "Select", "SelectMany", "First", "FirstOrDefault", "Last", "LastOrDefault",
	"Single", "SingleOrDefault", "Any", "All", "Count", "LongCount", "Sum", "Min", "Max",
	"Average", "OrderBy", "OrderByDescending", "ThenBy", "ThenByDescending", "GroupBy",
	"Distinct", "ToList", "ToArray", "ToDictionary", "ToLookup", "ToHashSet",
	"AsEnumerable", "AsQueryable", "Skip", "Take", "Concat", "Contains", "Cast", "OfType",
	"Aggregate", "Zip", "Reverse", "ElementAt", "ElementAtOrDefault", "DefaultIfEmpty",
	"IndexOf", "TryGetValue", "ContainsKey", "GetValueOrDefault",
	"Split", "Trim", "TrimStart", "TrimEnd", "Substring", "Replace", "StartsWith", "EndsWith",
	"ToUpper", "ToLower", "ToUpperInvariant", "ToLowerInvariant", "IsNullOrEmpty",
	"IsNullOrWhiteSpace", "PadLeft", "PadRight", "AppendLine", "AppendFormat",
}

// defaultProcedureHelpers name helpers whose second argument is a stored
// procedure name or command text.
var defaultProcedureHelpers = []string{"GetDBCommand", "GetDbCommand"}

// defaultCommandSuffixes match command object types constructed with the
// command text as first argument (SqlCommand, OracleCommand, DbCommand...).
var defaultCommandSuffixes = []string{"Command"}

// Rules holds user-overridable analysis settings.
type Rules struct {
	Dispatch   DispatchRules  `yaml:"dispatch"`
	Types      TypeRules      `yaml:"types"`
	Procedures ProcedureRules `yaml:"procedures"`
}

// DispatchRules describe the generic dispatcher.
type DispatchRules struct {
	// TypeName is the dispatcher's generic type name. Default: BOAExecuter.
	TypeName string `yaml:"type_name"`
	// MethodName is the conventional dispatch method. Default: Execute.
	MethodName string `yaml:"method_name"`
	// OperationField is the request member carrying the operation name.
	// Default: MethodName.
	OperationField string `yaml:"operation_field"`
}

// TypeRules control which resolved receiver types count as domain types.
type TypeRules struct {
	// PlatformPrefixes are added to (not replacing) the built-in list.
	PlatformPrefixes []string `yaml:"platform_prefixes"`
	// AllowPrefixes exempt namespaces that a platform prefix would drop.
	AllowPrefixes []string `yaml:"allow_prefixes"`
	// HelperDenylist is added to the built-in helper method list.
	HelperDenylist []string `yaml:"helper_denylist"`
}

// ProcedureRules control stored procedure detection.
type ProcedureRules struct {
	Helpers             []string `yaml:"helpers"`
	CommandTypeSuffixes []string `yaml:"command_type_suffixes"`
}

// Default returns the default rules.
func Default() *Rules {
	return &Rules{}
}

// Load reads .efconfig from the given directory.
// Returns default rules if the file doesn't exist or is invalid.
func Load(dir string) *Rules {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return Default()
	}
	r := Default()
	if err := yaml.Unmarshal(data, r); err != nil {
		return Default()
	}
	return r
}

// DispatcherType returns the configured dispatcher type name.
func (r *Rules) DispatcherType() string {
	if r != nil && r.Dispatch.TypeName != "" {
		return r.Dispatch.TypeName
	}
	return defaultDispatcherType
}

// DispatchMethod returns the configured dispatch method name.
func (r *Rules) DispatchMethod() string {
	if r != nil && r.Dispatch.MethodName != "" {
		return r.Dispatch.MethodName
	}
	return defaultDispatchMethod
}

// OperationField returns the request member that names the operation.
func (r *Rules) OperationField() string {
	if r != nil && r.Dispatch.OperationField != "" {
		return r.Dispatch.OperationField
	}
	return defaultOperationField
}

// PlatformPrefixes returns default + user-configured platform prefixes.
func (r *Rules) PlatformPrefixes() []string {
	if r == nil {
		return defaultPlatformPrefixes
	}
	return combine(defaultPlatformPrefixes, r.Types.PlatformPrefixes)
}

// IsPlatformNamespace reports whether ns belongs to the host platform. A
// prefix matches whole dotted segments only: "System" matches "System.IO"
// but not "Systems.Billing".
func (r *Rules) IsPlatformNamespace(ns string) bool {
	if r != nil {
		for _, p := range r.Types.AllowPrefixes {
			if hasSegmentPrefix(ns, p) {
				return false
			}
		}
	}
	for _, p := range r.PlatformPrefixes() {
		if hasSegmentPrefix(ns, p) {
			return true
		}
	}
	return false
}

// IsHelperMethod reports whether name is a denylisted helper method.
func (r *Rules) IsHelperMethod(name string) bool {
	for _, h := range defaultHelperDenylist {
		if h == name {
			return true
		}
	}
	if r != nil {
		for _, h := range r.Types.HelperDenylist {
			if h == name {
				return true
			}
		}
	}
	return false
}

// ProcedureHelpers returns default + user-configured procedure helpers.
func (r *Rules) ProcedureHelpers() []string {
	if r == nil {
		return defaultProcedureHelpers
	}
	return combine(defaultProcedureHelpers, r.Procedures.Helpers)
}

// IsProcedureHelper reports whether name is a procedure helper method.
func (r *Rules) IsProcedureHelper(name string) bool {
	for _, h := range r.ProcedureHelpers() {
		if h == name {
			return true
		}
	}
	return false
}

// IsCommandType reports whether the simple type name denotes a command
// object whose first constructor argument is the command text.
func (r *Rules) IsCommandType(name string) bool {
	suffixes := defaultCommandSuffixes
	if r != nil {
		suffixes = combine(defaultCommandSuffixes, r.Procedures.CommandTypeSuffixes)
	}
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

func hasSegmentPrefix(ns, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return false
	}
	return ns == prefix || strings.HasPrefix(ns, prefix+".")
}

func combine(defaults, extra []string) []string {
	out := make([]string, 0, len(defaults)+len(extra))
	out = append(out, defaults...)
	out = append(out, extra...)
	return out
}
