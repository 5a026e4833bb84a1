package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefault(t *testing.T) {
	r := Load("/nonexistent/path")
	if r.DispatcherType() != "BOAExecuter" {
		t.Errorf("DispatcherType = %q", r.DispatcherType())
	}
	if r.DispatchMethod() != "Execute" {
		t.Errorf("DispatchMethod = %q", r.DispatchMethod())
	}
	if r.OperationField() != "MethodName" {
		t.Errorf("OperationField = %q", r.OperationField())
	}
	if len(r.PlatformPrefixes()) != len(defaultPlatformPrefixes) {
		t.Errorf("expected %d default prefixes, got %d", len(defaultPlatformPrefixes), len(r.PlatformPrefixes()))
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
dispatch:
  type_name: Dispatcher
  operation_field: Operation
types:
  platform_prefixes:
    - Newtonsoft
  allow_prefixes:
    - System.Corp
  helper_denylist:
    - Log
procedures:
  helpers:
    - CreateProc
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	r := Load(dir)
	if r.DispatcherType() != "Dispatcher" {
		t.Errorf("DispatcherType = %q", r.DispatcherType())
	}
	if r.DispatchMethod() != "Execute" {
		t.Errorf("DispatchMethod should keep default, got %q", r.DispatchMethod())
	}
	if r.OperationField() != "Operation" {
		t.Errorf("OperationField = %q", r.OperationField())
	}
	if !r.IsPlatformNamespace("Newtonsoft.Json") {
		t.Error("configured prefix should be platform")
	}
	if r.IsPlatformNamespace("System.Corp.Billing") {
		t.Error("allow prefix should exempt System.Corp")
	}
	if !r.IsPlatformNamespace("System.IO") {
		t.Error("System.IO should stay platform")
	}
	if !r.IsHelperMethod("Log") || !r.IsHelperMethod("ToString") {
		t.Error("helper denylist should include defaults and configured names")
	}
	if !r.IsProcedureHelper("CreateProc") || !r.IsProcedureHelper("GetDBCommand") {
		t.Error("procedure helpers should include defaults and configured names")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("dispatch: [broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := Load(dir).DispatcherType(); got != "BOAExecuter" {
		t.Errorf("expected default on invalid yaml, got %q", got)
	}
}

func TestIsPlatformNamespaceSegments(t *testing.T) {
	r := Default()
	tests := []struct {
		ns   string
		want bool
	}{
		{"System", true},
		{"System.Collections.Generic", true},
		{"Microsoft.Extensions.Logging", true},
		{"Systems.Billing", false},
		{"Demo.System", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := r.IsPlatformNamespace(tt.ns); got != tt.want {
			t.Errorf("IsPlatformNamespace(%q) = %v, want %v", tt.ns, got, tt.want)
		}
	}
}

func TestNilRulesUseDefaults(t *testing.T) {
	var r *Rules
	if r.DispatcherType() != "BOAExecuter" || !r.IsHelperMethod("Where") || !r.IsCommandType("SqlCommand") {
		t.Error("nil rules should behave like defaults")
	}
	if r.IsCommandType("Commander") {
		t.Error("Commander is not a command type")
	}
}

func TestHelperDenylistKeepsDomainVerbs(t *testing.T) {
	r := Default()
	for _, name := range []string{"ToString", "Where", "FirstOrDefault", "ToList", "Substring", "IsNullOrEmpty"} {
		if !r.IsHelperMethod(name) {
			t.Errorf("%s should be a helper method", name)
		}
	}
	for _, name := range []string{"Add", "Insert", "Find", "FindAll", "Remove", "Exists", "Clear", "Parse", "Save", "Execute"} {
		if r.IsHelperMethod(name) {
			t.Errorf("%s is a domain verb and must not be denylisted", name)
		}
	}
}
