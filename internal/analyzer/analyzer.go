// Package analyzer extracts class, method, dispatch-call, invocation and
// stored-procedure records from C# source trees.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DeusData/executer-finder/internal/discover"
	"github.com/DeusData/executer-finder/internal/lang"
	"github.com/DeusData/executer-finder/internal/model"
	"github.com/DeusData/executer-finder/internal/rules"
)

// Options configures an analysis run. The zero value is usable.
type Options struct {
	// Rules overrides the repository's .efconfig. Nil loads it from the root.
	Rules *rules.Rules
	// Workers bounds concurrent file processing. Default: runtime.NumCPU().
	Workers int
	// DisableSemantic skips symbol-based type resolution, leaving only the
	// syntactic fallbacks.
	DisableSemantic bool
	// IgnoreFile overrides the root's .efignore.
	IgnoreFile string
}

func (o *Options) withDefaults(root string) *Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.Rules == nil {
		if root != "" {
			out.Rules = rules.Load(root)
		} else {
			out.Rules = rules.Default()
		}
	}
	if out.Workers <= 0 {
		out.Workers = runtime.NumCPU()
	}
	return &out
}

// AnalyzeTree walks every C# file under rootPath and returns the class
// records found, ordered by file path and then by position in the file.
// Files that cannot be read or parsed are logged and skipped. A missing root
// or a cancelled context is an error.
func AnalyzeTree(ctx context.Context, rootPath string, opts *Options) ([]*model.ClassRecord, error) {
	opts = opts.withDefaults(rootPath)
	start := time.Now()

	files, err := discover.Discover(ctx, rootPath, &discover.Options{IgnoreFile: opts.IgnoreFile})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", rootPath, err)
	}
	slog.Info("analyze.discovered", "root", rootPath, "files", len(files))
	if len(files) == 0 {
		return []*model.ClassRecord{}, nil
	}

	workers := opts.Workers
	if workers > len(files) {
		workers = len(files)
	}

	// Stage 1: parallel parse. No shared state.
	units := make([]*sourceUnit, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			u, err := readUnit(f)
			if err != nil {
				slog.Warn("parse.file.err", "path", f.RelPath, "err", err)
				return nil
			}
			units[i] = u
			return nil
		})
	}
	err = g.Wait()
	defer func() {
		for _, u := range units {
			u.close()
		}
	}()
	if err != nil {
		return nil, err
	}

	// Stage 2: sequential index build over all declarations.
	index := newTypeIndex()
	for _, u := range units {
		if u != nil {
			index.addUnit(u)
		}
	}

	// Stage 3: parallel collection against the read-only index.
	perFile := make([][]*model.ClassRecord, len(units))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, u := range units {
		if u == nil {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perFile[i] = newCollector(u, index, opts).collect()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	classes := make([]*model.ClassRecord, 0, len(units))
	for _, recs := range perFile {
		classes = append(classes, recs...)
	}
	stats := model.Summarize(classes)
	slog.Info("analyze.done",
		"classes", stats.Classes,
		"methods", stats.Methods,
		"dispatch_calls", stats.DispatchCalls,
		"elapsed", time.Since(start))
	return classes, nil
}

// AnalyzeSource analyzes a single in-memory file. relPath is recorded as the
// file path of every class; only types declared in this source are known to
// the resolver.
func AnalyzeSource(relPath string, source []byte, opts *Options) ([]*model.ClassRecord, error) {
	opts = opts.withDefaults("")
	u, err := parseUnit(discover.FileInfo{Path: relPath, RelPath: relPath, Language: lang.CSharp}, source)
	if err != nil {
		return nil, err
	}
	defer u.close()

	index := newTypeIndex()
	index.addUnit(u)
	return newCollector(u, index, opts).collect(), nil
}
