// Package pipeline runs one analysis: discover and analyze the source tree,
// then merge the classes into the document and graph stores.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/DeusData/executer-finder/internal/analyzer"
	"github.com/DeusData/executer-finder/internal/config"
	"github.com/DeusData/executer-finder/internal/graph"
	"github.com/DeusData/executer-finder/internal/model"
)

// Pipeline analyzes a tree and writes the result to its backends.
type Pipeline struct {
	Config   *config.Config
	Backends *Backends
}

// Result summarizes a run.
type Result struct {
	Root     string         `json:"root"`
	Stats    model.Stats    `json:"stats"`
	Progress graph.Progress `json:"progress"`
	Elapsed  string         `json:"elapsed"`

	Classes []*model.ClassRecord `json:"-"`
}

// New creates a pipeline over already opened backends.
func New(cfg *config.Config, b *Backends) *Pipeline {
	return &Pipeline{Config: cfg, Backends: b}
}

// ProjectNameFromPath derives a database name from an absolute path by
// replacing path separators with dashes.
func ProjectNameFromPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	cleaned := filepath.ToSlash(filepath.Clean(path))
	name := strings.ReplaceAll(cleaned, "/", "-")
	name = strings.ReplaceAll(name, ":", "")
	name = strings.TrimLeft(name, "-")
	if name == "" {
		return "root"
	}
	return name
}

// Run analyzes root and merges the result. On a backend failure the error
// is a *graph.AbortError carrying the progress made so far.
func (p *Pipeline) Run(ctx context.Context, root string) (*Result, error) {
	start := time.Now()
	slog.Info("pipeline.start", "root", root)

	classes, err := analyzer.AnalyzeTree(ctx, root, &analyzer.Options{
		Workers:         p.Config.Workers,
		DisableSemantic: p.Config.DisableSemantic,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze: %w", err)
	}
	res := &Result{Root: root, Stats: model.Summarize(classes), Classes: classes}
	slog.Info("pipeline.analyzed",
		"classes", res.Stats.Classes,
		"methods", res.Stats.Methods,
		"dispatch_calls", res.Stats.DispatchCalls,
	)

	m := &graph.Merger{
		Retries: p.Config.Retries,
		Workers: p.Config.Workers,
	}
	if p.Backends != nil {
		if p.Backends.Graph != nil {
			m.Graph = p.Backends.Graph
		}
		if p.Backends.Docs != nil {
			m.Docs = p.Backends.Docs
		}
	}
	res.Progress, err = m.Merge(ctx, classes)
	res.Elapsed = time.Since(start).String()
	if err != nil {
		return res, err
	}
	slog.Info("pipeline.done", "classes", res.Stats.Classes, "edges", res.Progress.Edges, "elapsed", res.Elapsed)
	return res, nil
}

// Run opens the configured backends, runs the pipeline over cfg.Root and
// closes the backends.
func Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	b, err := OpenBackends(ctx, cfg, cfg.Root)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	return New(cfg, b).Run(ctx, cfg.Root)
}
