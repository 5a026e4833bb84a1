package lang

func init() {
	Register(&LanguageSpec{
		Language:       CSharp,
		FileExtensions: []string{".cs"},
		ClassNodeTypes: []string{"class_declaration"},
		TypeNodeTypes: []string{
			"class_declaration",
			"struct_declaration",
			"interface_declaration",
			"enum_declaration",
			"record_declaration",
		},
		MethodNodeTypes: []string{"method_declaration"},
		NamespaceNodeTypes: []string{
			"namespace_declaration",
			"file_scoped_namespace_declaration",
		},
		InvocationNodeTypes: []string{"invocation_expression"},
	})
}
