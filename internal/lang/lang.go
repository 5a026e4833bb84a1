package lang

// Language represents a supported programming language.
type Language string

const (
	CSharp Language = "c-sharp"
)

// AllLanguages returns all supported languages.
func AllLanguages() []Language {
	return []Language{CSharp}
}

// LanguageSpec defines the tree-sitter node types for a language.
type LanguageSpec struct {
	Language       Language
	FileExtensions []string

	// ClassNodeTypes lists the declarations that produce a class record.
	ClassNodeTypes []string
	// TypeNodeTypes lists every type declaration indexed for name resolution
	// (classes, structs, interfaces, enums, records).
	TypeNodeTypes   []string
	MethodNodeTypes []string
	// NamespaceNodeTypes lists block and file-scoped namespace declarations.
	NamespaceNodeTypes  []string
	InvocationNodeTypes []string
}

// registry maps file extensions to language specs.
var registry = map[string]*LanguageSpec{}

// Register adds a LanguageSpec to the global registry.
func Register(spec *LanguageSpec) {
	for _, ext := range spec.FileExtensions {
		registry[ext] = spec
	}
}

// ForExtension returns the LanguageSpec for a file extension (e.g. ".cs").
func ForExtension(ext string) *LanguageSpec {
	return registry[ext]
}

// ForLanguage returns the LanguageSpec for a language.
func ForLanguage(lang Language) *LanguageSpec {
	for _, spec := range registry {
		if spec.Language == lang {
			return spec
		}
	}
	return nil
}

// LanguageForExtension returns the Language for a file extension.
func LanguageForExtension(ext string) (Language, bool) {
	spec := registry[ext]
	if spec == nil {
		return "", false
	}
	return spec.Language, true
}
