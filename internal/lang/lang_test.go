package lang

import "testing"

func TestForExtension(t *testing.T) {
	spec := ForExtension(".cs")
	if spec == nil {
		t.Fatal("ForExtension(.cs) = nil")
	}
	if spec.Language != CSharp {
		t.Errorf("ForExtension(.cs).Language = %s, want %s", spec.Language, CSharp)
	}
	if len(spec.ClassNodeTypes) == 0 || len(spec.MethodNodeTypes) == 0 {
		t.Error("C# spec is missing class or method node types")
	}
	if len(spec.NamespaceNodeTypes) != 2 || len(spec.InvocationNodeTypes) == 0 {
		t.Errorf("C# spec namespace/invocation kinds = %v / %v", spec.NamespaceNodeTypes, spec.InvocationNodeTypes)
	}
}

func TestForLanguage(t *testing.T) {
	for _, lang := range AllLanguages() {
		spec := ForLanguage(lang)
		if spec == nil {
			t.Errorf("ForLanguage(%s) = nil", lang)
		}
	}
}

func TestUnknownExtension(t *testing.T) {
	for _, ext := range []string{".xyz", ".go", ".csproj"} {
		if spec := ForExtension(ext); spec != nil {
			t.Errorf("ForExtension(%s) should be nil, got %v", ext, spec)
		}
	}
}
