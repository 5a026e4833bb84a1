// Package watcher polls analyzed source trees and triggers a full re-run
// when a C# file is added, removed or modified.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DeusData/executer-finder/internal/discover"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

type rootState struct {
	snapshot map[string]fileSnapshot
	interval time.Duration
	nextPoll time.Time
}

// IndexFunc re-analyzes one root.
type IndexFunc func(ctx context.Context, root string) error

// Watcher polls registered roots for file changes and triggers re-indexing.
type Watcher struct {
	indexFn IndexFunc
	ctx     context.Context

	mu    sync.Mutex
	roots map[string]*rootState
}

// New creates a Watcher. indexFn is called when file changes are detected.
func New(indexFn IndexFunc) *Watcher {
	return &Watcher{
		indexFn: indexFn,
		ctx:     context.Background(),
		roots:   make(map[string]*rootState),
	}
}

// Add registers root. Adding a root twice has no effect.
func (w *Watcher) Add(root string) {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.roots[root]; !ok {
		w.roots[root] = &rootState{}
		slog.Debug("watcher.add", "root", root)
	}
}

// Roots returns the registered roots.
func (w *Watcher) Roots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.roots))
	for r := range w.roots {
		out = append(out, r)
	}
	return out
}

// Run blocks until ctx is cancelled. Ticks at baseInterval, polling each
// root only when its adaptive interval has elapsed.
func (w *Watcher) Run(ctx context.Context) {
	w.ctx = ctx
	ticker := time.NewTicker(baseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollAll()
		}
	}
}

// pollAll polls each root that is due.
func (w *Watcher) pollAll() {
	now := time.Now()
	w.mu.Lock()
	due := make(map[string]*rootState)
	for root, state := range w.roots {
		if state.snapshot != nil && now.Before(state.nextPoll) {
			continue
		}
		due[root] = state
	}
	w.mu.Unlock()

	for root, state := range due {
		w.pollRoot(root, state)
	}
}

// pollRoot captures a snapshot of the tree and compares with the previous
// one. The first poll only records a baseline.
func (w *Watcher) pollRoot(root string, state *rootState) {
	if _, err := os.Stat(root); err != nil {
		slog.Warn("watcher.root_gone", "root", root)
		state.nextPoll = time.Now().Add(maxInterval)
		return
	}

	snap, err := captureSnapshot(root)
	if err != nil {
		slog.Warn("watcher.snapshot", "root", root, "err", err)
		state.nextPoll = time.Now().Add(state.interval)
		return
	}

	interval := pollInterval(len(snap))

	if state.snapshot == nil {
		slog.Debug("watcher.baseline", "root", root, "files", len(snap))
		state.snapshot = snap
		state.interval = interval
		state.nextPoll = time.Now().Add(interval)
		return
	}

	if snapshotsEqual(state.snapshot, snap) {
		state.interval = interval
		state.nextPoll = time.Now().Add(interval)
		return
	}

	slog.Info("watcher.changed", "root", root, "files", len(snap))
	if err := w.indexFn(w.ctx, root); err != nil {
		slog.Warn("watcher.index", "root", root, "err", err)
		// Keep old snapshot so we retry next cycle
		state.nextPoll = time.Now().Add(interval)
		return
	}

	state.snapshot = snap
	state.interval = interval
	state.nextPoll = time.Now().Add(interval)
}

// captureSnapshot records mtime and size of every discovered source file.
func captureSnapshot(root string) (map[string]fileSnapshot, error) {
	files, err := discover.Discover(context.Background(), root, nil)
	if err != nil {
		return nil, err
	}

	snap := make(map[string]fileSnapshot, len(files))
	for _, f := range files {
		info, statErr := os.Stat(f.Path)
		if statErr != nil {
			continue
		}
		snap[f.RelPath] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
		}
	}
	return snap, nil
}

// snapshotsEqual returns true if two snapshots have identical files with same mtime+size.
func snapshotsEqual(a, b map[string]fileSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for path, aSnap := range a {
		bSnap, ok := b[path]
		if !ok {
			return false
		}
		if !aSnap.modTime.Equal(bSnap.modTime) || aSnap.size != bSnap.size {
			return false
		}
	}
	return true
}

// pollInterval computes the adaptive interval from file count.
// 1s base + 1s per 500 files, capped at 60s.
func pollInterval(fileCount int) time.Duration {
	ms := 1000 + (fileCount/500)*1000
	if ms > 60000 {
		ms = 60000
	}
	return time.Duration(ms) * time.Millisecond
}
