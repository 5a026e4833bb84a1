// Package graph merges analyzed classes into the document store and the
// graph store. Structure (class and method nodes with containment edges) is
// written first. Relationships follow once every node exists, with dispatch
// targets resolved across the whole analyzed class set.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/DeusData/executer-finder/internal/docstore"
	"github.com/DeusData/executer-finder/internal/model"
)

// GraphStore is the set of idempotent writes the merge needs.
type GraphStore interface {
	UpsertClassNode(ctx context.Context, namespace, class string) error
	UpsertMethodNode(ctx context.Context, namespace, class, method, request, response string) error
	UpsertProcedureNode(ctx context.Context, name string) error
	UpsertEdge(ctx context.Context, kind, sourceKey, targetKey string, props map[string]any) error
	EnsureMethodNodeBySignature(ctx context.Context, method, request, response string) ([]string, error)
}

// DocumentStore is the document side of the merge.
type DocumentStore interface {
	UpsertClasses(ctx context.Context, classes []*model.ClassRecord) error
	FindOne(ctx context.Context, sig model.Signature) (model.Owner, bool, error)
	PatchFields(ctx context.Context, key string, patches []docstore.Patch) error
}

// transientChecker is implemented by backends that can tell retryable
// failures apart.
type transientChecker interface {
	IsTransient(err error) bool
}

// Merge phases, as reported by AbortError.
const (
	PhaseDocuments     = "documents"
	PhaseResolve       = "resolve"
	PhasePatch         = "patch"
	PhaseStructure     = "structure"
	PhaseRelationships = "relationships"
)

// ErrBackend matches every AbortError.
var ErrBackend = errors.New("backend failure")

// Progress counts the writes completed by a merge.
type Progress struct {
	Documents      int `json:"documents"`
	Resolved       int `json:"resolved_dispatches"`
	Patched        int `json:"patched_documents"`
	ClassNodes     int `json:"class_nodes"`
	MethodNodes    int `json:"method_nodes"`
	ProcedureNodes int `json:"procedure_nodes"`
	Edges          int `json:"edges"`
}

// AbortError stops a merge after a backend failure that was not recovered by
// retrying.
type AbortError struct {
	Phase    string
	Progress Progress
	Err      error
}

func (e *AbortError) Error() string {
	p := e.Progress
	return fmt.Sprintf("merge aborted in %s phase (documents=%d classes=%d methods=%d edges=%d): %v",
		e.Phase, p.Documents, p.ClassNodes, p.MethodNodes, p.Edges, e.Err)
}

func (e *AbortError) Unwrap() []error {
	return []error{ErrBackend, e.Err}
}
