package graph

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/executer-finder/internal/docstore"
	"github.com/DeusData/executer-finder/internal/fqn"
	"github.com/DeusData/executer-finder/internal/model"
)

// DefaultRetries is the retry budget for a transient backend failure.
const DefaultRetries = 3

// Merger writes analyzed classes to the configured stores. A nil Graph or
// Docs skips that side.
type Merger struct {
	Graph   GraphStore
	Docs    DocumentStore
	Retries int
	Workers int
	// RetryInterval is the first backoff delay. Zero means 200ms.
	RetryInterval time.Duration

	mu      sync.Mutex
	written map[uint64]*nodeWrite

	documents, resolved, patched   atomic.Int64
	classNodes, methodNodes, procs atomic.Int64
	edges                          atomic.Int64
}

// Progress returns the counts accumulated so far.
func (m *Merger) Progress() Progress {
	return Progress{
		Documents:      int(m.documents.Load()),
		Resolved:       int(m.resolved.Load()),
		Patched:        int(m.patched.Load()),
		ClassNodes:     int(m.classNodes.Load()),
		MethodNodes:    int(m.methodNodes.Load()),
		ProcedureNodes: int(m.procs.Load()),
		Edges:          int(m.edges.Load()),
	}
}

// Merge persists classes: documents, dispatch target resolution with
// document patch-back, then graph structure and relationships. Any backend
// failure that survives retrying aborts the merge with an *AbortError.
func (m *Merger) Merge(ctx context.Context, classes []*model.ClassRecord) (Progress, error) {
	m.reset()
	start := time.Now()
	if merged := model.MergePartials(classes); len(merged) != len(classes) {
		slog.Info("merge.partial_classes", "records", len(classes), "classes", len(merged))
		classes = merged
	}

	if m.Docs != nil {
		err := m.retry(ctx, m.Docs, func() error { return m.Docs.UpsertClasses(ctx, classes) })
		if err != nil {
			return m.abort(PhaseDocuments, err)
		}
		m.documents.Add(int64(len(classes)))
	}

	if err := m.ResolveDispatchTargets(ctx, classes); err != nil {
		var ae *AbortError
		if errors.As(err, &ae) {
			return ae.Progress, err
		}
		return m.abort(PhaseResolve, err)
	}

	if m.Graph != nil {
		if err := m.writeStructure(ctx, classes); err != nil {
			return m.abort(PhaseStructure, err)
		}
		slog.Info("merge.phase_a", "classes", m.classNodes.Load(), "methods", m.methodNodes.Load())

		if err := m.writeRelationships(ctx, classes); err != nil {
			return m.abort(PhaseRelationships, err)
		}
		slog.Info("merge.phase_b", "edges", m.edges.Load(), "procedures", m.procs.Load())
	}

	p := m.Progress()
	slog.Info("merge.done",
		"documents", p.Documents,
		"resolved", p.Resolved,
		"nodes", p.ClassNodes+p.MethodNodes+p.ProcedureNodes,
		"edges", p.Edges,
		"elapsed", time.Since(start).String(),
	)
	return p, nil
}

func (m *Merger) reset() {
	m.mu.Lock()
	m.written = make(map[uint64]*nodeWrite)
	m.mu.Unlock()
	for _, c := range []*atomic.Int64{&m.documents, &m.resolved, &m.patched, &m.classNodes, &m.methodNodes, &m.procs, &m.edges} {
		c.Store(0)
	}
}

func (m *Merger) abort(phase string, err error) (Progress, error) {
	p := m.Progress()
	slog.Error("merge.abort", "phase", phase, "err", err,
		"documents", p.Documents, "class_nodes", p.ClassNodes, "method_nodes", p.MethodNodes, "edges", p.Edges)
	return p, &AbortError{Phase: phase, Progress: p, Err: err}
}

func (m *Merger) workers() int {
	if m.Workers > 0 {
		return m.Workers
	}
	return runtime.NumCPU()
}

// retry runs op until it succeeds, fails with a non-transient error, or the
// retry budget is spent.
func (m *Merger) retry(ctx context.Context, backend any, op func() error) error {
	retries := m.Retries
	if retries <= 0 {
		retries = DefaultRetries
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.RetryInterval
	if eb.InitialInterval <= 0 {
		eb.InitialInterval = 200 * time.Millisecond
	}
	checker, _ := backend.(transientChecker)
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if checker == nil || !checker.IsTransient(err) {
			return backoff.Permanent(err)
		}
		slog.Warn("merge.retry", "attempt", attempt, "err", err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx))
}

// nodeWrite tracks one node upsert of the current merge. done is closed
// once err is set.
type nodeWrite struct {
	done chan struct{}
	err  error
}

// ensureNode runs write once per key and merge. Callers that lose the race
// for a key block until the winning write has finished, so an edge is never
// written before its target node exists. The first result reports whether
// this call performed the write.
func (m *Merger) ensureNode(ctx context.Context, key string, write func() error) (bool, error) {
	h := xxh3.HashString(key)
	m.mu.Lock()
	w, seen := m.written[h]
	if !seen {
		w = &nodeWrite{done: make(chan struct{})}
		m.written[h] = w
	}
	m.mu.Unlock()

	if seen {
		select {
		case <-w.done:
			return false, w.err
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	w.err = write()
	close(w.done)
	return true, w.err
}

// markWritten records a node that has already been written and reports
// whether it was new to this merge.
func (m *Merger) markWritten(key string) bool {
	h := xxh3.HashString(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.written[h]; ok {
		return false
	}
	w := &nodeWrite{done: make(chan struct{})}
	close(w.done)
	m.written[h] = w
	return true
}

// writeStructure upserts class and method nodes and their containment edges.
// Classes are written concurrently; within a class, edges follow both nodes.
func (m *Merger) writeStructure(ctx context.Context, classes []*model.ClassRecord) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers())
	for _, c := range classes {
		g.Go(func() error {
			return m.writeClass(gctx, c)
		})
	}
	return g.Wait()
}

func (m *Merger) writeClass(ctx context.Context, c *model.ClassRecord) error {
	classKey := c.Key()
	err := m.retry(ctx, m.Graph, func() error { return m.Graph.UpsertClassNode(ctx, c.Namespace, c.Name) })
	if err != nil {
		return err
	}
	m.markWritten(classKey)
	m.classNodes.Add(1)
	slog.Debug("merge.class", "key", classKey, "methods", len(c.Methods))

	for _, meth := range c.Methods {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := m.retry(ctx, m.Graph, func() error {
			return m.Graph.UpsertMethodNode(ctx, c.Namespace, c.Name, meth.Name, meth.RequestType, meth.ResponseType)
		})
		if err != nil {
			return err
		}
		methodKey := fqn.MethodKey(c.Namespace, c.Name, meth.Name)
		m.markWritten(methodKey)
		m.methodNodes.Add(1)
		if err := m.edge(ctx, EdgeContains, classKey, methodKey, nil); err != nil {
			return err
		}
	}
	return nil
}

// writeRelationships writes calls, executes and procedure edges. It runs
// only after every structural node has been written.
func (m *Merger) writeRelationships(ctx context.Context, classes []*model.ClassRecord) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers())
	for _, c := range classes {
		for _, meth := range c.Methods {
			g.Go(func() error {
				return m.writeMethodRelationships(gctx, c, meth)
			})
		}
	}
	return g.Wait()
}

func (m *Merger) writeMethodRelationships(ctx context.Context, c *model.ClassRecord, meth *model.MethodRecord) error {
	src := fqn.MethodKey(c.Namespace, c.Name, meth.Name)

	for _, im := range meth.InvokedMethods {
		tgt := fqn.MethodKey(im.Namespace, im.ClassName, im.MethodName)
		wrote, err := m.ensureNode(ctx, tgt, func() error {
			return m.retry(ctx, m.Graph, func() error {
				return m.Graph.UpsertMethodNode(ctx, im.Namespace, im.ClassName, im.MethodName, "", "")
			})
		})
		if err != nil {
			return err
		}
		if wrote {
			m.methodNodes.Add(1)
		}
		if err := m.edge(ctx, EdgeCalls, src, tgt, nil); err != nil {
			return err
		}
	}

	for _, d := range meth.DispatchCalls {
		if d.MethodName == "" {
			continue
		}
		if err := m.writeDispatch(ctx, src, d); err != nil {
			return err
		}
	}

	for _, proc := range meth.StoredProcedures {
		key := fqn.ProcedureKey(proc)
		wrote, err := m.ensureNode(ctx, key, func() error {
			return m.retry(ctx, m.Graph, func() error { return m.Graph.UpsertProcedureNode(ctx, proc) })
		})
		if err != nil {
			return err
		}
		if wrote {
			m.procs.Add(1)
		}
		if err := m.edge(ctx, EdgeExecutesProcedure, src, key, nil); err != nil {
			return err
		}
	}
	return nil
}

// writeDispatch links src to the method a dispatch call executes. A
// resolved owner gets its method node merged with the signature types; an
// unresolved call links to every method matching the signature, or to a
// bare signature node.
func (m *Merger) writeDispatch(ctx context.Context, src string, d *model.DispatchCall) error {
	props := map[string]any{
		"requestType":  d.RequestType,
		"responseType": d.ResponseType,
	}
	if owner, ok := d.Resolved(); ok {
		err := m.retry(ctx, m.Graph, func() error {
			return m.Graph.UpsertMethodNode(ctx, owner.Namespace, owner.ClassName, d.MethodName, d.RequestType, d.ResponseType)
		})
		if err != nil {
			return err
		}
		tgt := fqn.MethodKey(owner.Namespace, owner.ClassName, d.MethodName)
		if m.markWritten(tgt) {
			m.methodNodes.Add(1)
		}
		props["external"] = d.IsExternal
		return m.edge(ctx, EdgeExecutes, src, tgt, props)
	}

	var targets []string
	err := m.retry(ctx, m.Graph, func() error {
		var err error
		targets, err = m.Graph.EnsureMethodNodeBySignature(ctx, d.MethodName, d.RequestType, d.ResponseType)
		return err
	})
	if err != nil {
		return err
	}
	props["bySignature"] = true
	for _, tgt := range targets {
		if fqn.IsSignatureKey(tgt) && m.markWritten(tgt) {
			m.methodNodes.Add(1)
		}
		if err := m.edge(ctx, EdgeExecutes, src, tgt, props); err != nil {
			return err
		}
	}
	return nil
}

func (m *Merger) edge(ctx context.Context, kind, src, tgt string, props map[string]any) error {
	err := m.retry(ctx, m.Graph, func() error { return m.Graph.UpsertEdge(ctx, kind, src, tgt, props) })
	if err != nil {
		return err
	}
	m.edges.Add(1)
	return nil
}

// ResolveDispatchTargets records the owner of every dispatch call with an
// operation name. Each distinct signature is resolved once: first against
// the analyzed classes, then through the document store, then by matching
// class names against the request type. Resolved fields are patched back
// into the stored class documents.
func (m *Merger) ResolveDispatchTargets(ctx context.Context, classes []*model.ClassRecord) error {
	idx := newClassIndex(classes)
	cache := make(map[model.Signature]resolution)

	for _, c := range classes {
		changed := false
		for _, meth := range c.Methods {
			for _, d := range meth.DispatchCalls {
				if d.MethodName == "" {
					continue
				}
				if _, ok := d.Resolved(); ok {
					continue
				}
				sig := d.Signature()
				r, seen := cache[sig]
				if !seen {
					var err error
					r, err = m.resolve(ctx, idx, sig)
					if err != nil {
						return err
					}
					cache[sig] = r
				}
				if !r.found {
					slog.Debug("merge.resolve.miss", "method", sig.MethodName, "request", sig.RequestType)
					continue
				}
				if d.Resolve(r.owner, !idx.isLocal(r.owner)) {
					m.resolved.Add(1)
					changed = true
				}
			}
		}
		if !changed || m.Docs == nil {
			continue
		}
		patches := docstore.DispatchPatches(c)
		err := m.retry(ctx, m.Docs, func() error { return m.Docs.PatchFields(ctx, c.Key(), patches) })
		if err != nil {
			_, aerr := m.abort(PhasePatch, err)
			return aerr
		}
		m.patched.Add(1)
	}
	slog.Info("merge.resolve", "resolved", m.resolved.Load(), "signatures", len(cache))
	return nil
}

type resolution struct {
	owner model.Owner
	found bool
}

func (m *Merger) resolve(ctx context.Context, idx *classIndex, sig model.Signature) (resolution, error) {
	if owner, ok := idx.bySignature(sig); ok {
		return resolution{owner: owner, found: true}, nil
	}
	if m.Docs != nil {
		var r resolution
		err := m.retry(ctx, m.Docs, func() error {
			var err error
			r.owner, r.found, err = m.Docs.FindOne(ctx, sig)
			return err
		})
		if err != nil {
			_, aerr := m.abort(PhaseResolve, err)
			return resolution{}, aerr
		}
		if r.found {
			return r, nil
		}
	}
	if owner, ok := idx.byRequestName(sig); ok {
		return resolution{owner: owner, found: true}, nil
	}
	return resolution{}, nil
}

// classIndex answers dispatch lookups over the analyzed classes.
type classIndex struct {
	classes []*model.ClassRecord
	local   map[string]struct{}
	sigs    map[model.Signature]model.Owner
}

func newClassIndex(classes []*model.ClassRecord) *classIndex {
	idx := &classIndex{
		classes: classes,
		local:   make(map[string]struct{}, len(classes)),
		sigs:    make(map[model.Signature]model.Owner),
	}
	for _, c := range classes {
		idx.local[c.Key()] = struct{}{}
		for _, meth := range c.Methods {
			sig := meth.Signature()
			if !sig.Complete() {
				continue
			}
			if _, dup := idx.sigs[sig]; !dup {
				idx.sigs[sig] = c.Owner()
			}
		}
	}
	return idx
}

func (idx *classIndex) isLocal(o model.Owner) bool {
	_, ok := idx.local[o.Key()]
	return ok
}

func (idx *classIndex) bySignature(sig model.Signature) (model.Owner, bool) {
	o, ok := idx.sigs[sig]
	return o, ok
}

// byRequestName finds a class whose name contains the request type name
// without its "Request" part and that declares a method named like the
// operation.
func (idx *classIndex) byRequestName(sig model.Signature) (model.Owner, bool) {
	_, simple := fqn.SplitQualified(fqn.StripGenerics(fqn.StripGlobal(sig.RequestType)))
	stem := strings.ReplaceAll(simple, "Request", "")
	if stem == "" {
		return model.Owner{}, false
	}
	for _, c := range idx.classes {
		if !strings.Contains(c.Name, stem) {
			continue
		}
		for _, meth := range c.Methods {
			if meth.Name == sig.MethodName {
				return c.Owner(), true
			}
		}
	}
	return model.Owner{}, false
}
