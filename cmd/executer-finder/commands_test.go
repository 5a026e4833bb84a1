package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = `namespace Demo
{
    public class C
    {
        public RespT M(ReqT request)
        {
            var req = new ReqT { MethodName = "DoThing" };
            return BOAExecuter<ReqT, RespT>.Execute(req);
        }
    }
}
`

func TestIndexCommand(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "C.cs"), []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}
	dbDir := t.TempDir()
	t.Setenv("EXECUTER_FINDER_GRAPH_SQLITE_PATH", filepath.Join(dbDir, "graph.db"))
	t.Setenv("EXECUTER_FINDER_DOCUMENTS_SQLITE_PATH", filepath.Join(dbDir, "docs.db"))
	t.Setenv("EXECUTER_FINDER_LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{root})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), `"classes": 1`) {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestIndexCommandMissingRoot(t *testing.T) {
	t.Setenv("EXECUTER_FINDER_GRAPH_BACKEND", "none")
	t.Setenv("EXECUTER_FINDER_DOCUMENTS_BACKEND", "none")
	t.Setenv("EXECUTER_FINDER_LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "absent")})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing root")
	}
	if !strings.Contains(out.String(), "error:") {
		t.Errorf("expected error report, got:\n%s", out.String())
	}
}

func TestTooManyArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"a", "b"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for two positional args")
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "executer-finder dev") {
		t.Errorf("version output = %q", out.String())
	}
}
