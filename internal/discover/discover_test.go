package discover

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverBasic(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "Services", "AccountService.cs"), "class AccountService {}\n")
	writeFile(t, filepath.Join(dir, "Program.cs"), "class Program {}\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# readme\n")
	writeFile(t, filepath.Join(dir, "App.csproj"), "<Project/>\n")

	files, err := Discover(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].RelPath != "Program.cs" || files[1].RelPath != "Services/AccountService.cs" {
		t.Errorf("unexpected order: %s, %s", files[0].RelPath, files[1].RelPath)
	}
	for _, f := range files {
		if f.Path == "" {
			t.Error("expected non-empty Path")
		}
		if f.Language == "" {
			t.Error("expected non-empty Language")
		}
	}
}

func TestDiscoverSkipsBuildOutputAndGenerated(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "A.cs"), "class A {}\n")
	writeFile(t, filepath.Join(dir, "obj", "Debug", "Gen.cs"), "class Gen {}\n")
	writeFile(t, filepath.Join(dir, "bin", "B.cs"), "class B {}\n")
	writeFile(t, filepath.Join(dir, "Form1.Designer.cs"), "class F {}\n")
	writeFile(t, filepath.Join(dir, "Form2.designer.cs"), "class F2 {}\n")

	files, err := Discover(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	var rels []string
	for _, f := range files {
		rels = append(rels, f.RelPath)
	}
	// Form1.Designer.cs survives: suffix matching is case-sensitive.
	if len(files) != 2 || rels[0] != "A.cs" || rels[1] != "Form1.Designer.cs" {
		t.Errorf("unexpected files: %v", rels)
	}
}

func TestDiscoverIgnoreFile(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "A.cs"), "class A {}\n")
	writeFile(t, filepath.Join(dir, "Legacy", "Old.cs"), "class Old {}\n")
	writeFile(t, filepath.Join(dir, "Skip.cs"), "class Skip {}\n")
	writeFile(t, filepath.Join(dir, IgnoreFileName), "# comment\nLegacy\nSkip.cs\n")

	files, err := Discover(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "A.cs" {
		t.Errorf("expected only A.cs, got %v", files)
	}
}

func TestDiscoverCancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "A.cs"), "class A {}\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Discover(ctx, dir, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := Discover(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}
