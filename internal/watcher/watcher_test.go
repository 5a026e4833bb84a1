package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

const classSource = "namespace Demo { public class C { } }\n"

func TestSnapshotsEqual(t *testing.T) {
	now := time.Now()
	a := map[string]fileSnapshot{
		"C.cs": {modTime: now, size: 100},
		"D.cs": {modTime: now, size: 200},
	}
	cases := map[string]map[string]fileSnapshot{
		"size":    {"C.cs": {modTime: now, size: 101}, "D.cs": {modTime: now, size: 200}},
		"mtime":   {"C.cs": {modTime: now.Add(time.Second), size: 100}, "D.cs": {modTime: now, size: 200}},
		"missing": {"C.cs": {modTime: now, size: 100}},
		"renamed": {"C.cs": {modTime: now, size: 100}, "E.cs": {modTime: now, size: 200}},
	}
	for name, b := range cases {
		if snapshotsEqual(a, b) {
			t.Errorf("%s: snapshots should differ", name)
		}
	}
	same := map[string]fileSnapshot{
		"C.cs": {modTime: now, size: 100},
		"D.cs": {modTime: now, size: 200},
	}
	if !snapshotsEqual(a, same) {
		t.Error("identical snapshots should be equal")
	}
}

func TestPollInterval(t *testing.T) {
	tests := []struct {
		files    int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{499, 1 * time.Second},
		{500, 2 * time.Second},
		{10000, 21 * time.Second},
		{100000, 60 * time.Second},
	}
	for _, tt := range tests {
		if got := pollInterval(tt.files); got != tt.expected {
			t.Errorf("pollInterval(%d) = %v, want %v", tt.files, got, tt.expected)
		}
	}
}

func TestCaptureSnapshotOnlySourceFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "C.cs"), []byte(classSource), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# x\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	snap, err := captureSnapshot(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 1 {
		t.Fatalf("expected 1 file, got %d", len(snap))
	}
	if s, ok := snap["C.cs"]; !ok || s.size == 0 || s.modTime.IsZero() {
		t.Errorf("unexpected snapshot entry: %+v", snap)
	}
}

func resetPolls(w *Watcher) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, state := range w.roots {
		state.nextPoll = time.Time{}
	}
}

func TestWatcherTriggersOnChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "C.cs")
	if err := os.WriteFile(file, []byte(classSource), 0o600); err != nil {
		t.Fatal(err)
	}

	var indexed atomic.Int32
	w := New(func(_ context.Context, root string) error {
		indexed.Add(1)
		return nil
	})
	w.Add(dir)
	w.Add(dir)
	if len(w.Roots()) != 1 {
		t.Fatalf("expected 1 root, got %v", w.Roots())
	}

	w.pollAll()
	if indexed.Load() != 0 {
		t.Errorf("baseline poll should not index, got %d", indexed.Load())
	}

	resetPolls(w)
	w.pollAll()
	if indexed.Load() != 0 {
		t.Errorf("unchanged tree should not index, got %d", indexed.Load())
	}

	now := time.Now().Add(time.Second)
	if err := os.Chtimes(file, now, now); err != nil {
		t.Fatal(err)
	}
	resetPolls(w)
	w.pollAll()
	if indexed.Load() != 1 {
		t.Errorf("changed file should index once, got %d", indexed.Load())
	}

	if err := os.WriteFile(filepath.Join(dir, "D.cs"), []byte(classSource), 0o600); err != nil {
		t.Fatal(err)
	}
	resetPolls(w)
	w.pollAll()
	if indexed.Load() != 2 {
		t.Errorf("new file should index again, got %d", indexed.Load())
	}
}

func TestWatcherSkipsMissingRoot(t *testing.T) {
	var indexed atomic.Int32
	w := New(func(context.Context, string) error {
		indexed.Add(1)
		return nil
	})
	w.Add(filepath.Join(t.TempDir(), "gone"))
	w.pollAll()
	if indexed.Load() != 0 {
		t.Errorf("should not index missing root, got %d", indexed.Load())
	}
}

func TestWatcherCancellation(t *testing.T) {
	w := New(func(context.Context, string) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop after context cancellation")
	}
}
