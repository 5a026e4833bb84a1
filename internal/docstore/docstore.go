// Package docstore persists one JSON document per class and answers
// dispatch-target lookups against the stored methods.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DeusData/executer-finder/internal/fqn"
	"github.com/DeusData/executer-finder/internal/model"
)

// DocTypeClass tags class documents.
const DocTypeClass = "ClassInfo"

// ErrNotFound is returned when a document key does not exist.
var ErrNotFound = errors.New("document not found")

// Store is a keyed JSON document store.
type Store interface {
	// UpsertClasses writes one ClassDocument per class, keyed by
	// fqn.ClassKey.
	UpsertClasses(ctx context.Context, classes []*model.ClassRecord) error
	// UpsertDocument writes doc under key, replacing any previous body.
	UpsertDocument(ctx context.Context, key string, doc any) error
	// FindOne returns the owner of some stored method matching sig.
	FindOne(ctx context.Context, sig model.Signature) (model.Owner, bool, error)
	// PatchFields sets individual fields of a stored document.
	PatchFields(ctx context.Context, key string, patches []Patch) error
	// Get returns the raw body stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Close() error
}

// Patch sets the value at a sub-document path such as
// "methods[0].executerCalls[1].namespace".
type Patch struct {
	Path  string
	Value any
}

// ClassDocument is the persisted form of a class record.
type ClassDocument struct {
	DocType    string                `json:"docType"`
	Namespace  string                `json:"namespace"`
	ClassName  string                `json:"className"`
	ClassType  string                `json:"classType"`
	FilePath   string                `json:"filePath"`
	SourceHash string                `json:"sourceHash,omitempty"`
	Methods    []*model.MethodRecord `json:"methods"`
	CreatedAt  time.Time             `json:"createdAt"`
}

// NewClassDocument builds the document for c.
func NewClassDocument(c *model.ClassRecord, now time.Time) *ClassDocument {
	ns := c.Namespace
	if ns == "" {
		ns = fqn.GlobalNamespace
	}
	methods := c.Methods
	if methods == nil {
		methods = []*model.MethodRecord{}
	}
	return &ClassDocument{
		DocType:    DocTypeClass,
		Namespace:  ns,
		ClassName:  c.Name,
		ClassType:  c.Kind,
		FilePath:   c.FilePath,
		SourceHash: c.SourceHash,
		Methods:    methods,
		CreatedAt:  now.UTC(),
	}
}

// DispatchPatches returns the patches that record the resolved target of
// every resolved dispatch call in c. Unresolved calls produce none.
func DispatchPatches(c *model.ClassRecord) []Patch {
	var out []Patch
	for i, m := range c.Methods {
		for j, d := range m.DispatchCalls {
			owner, ok := d.Resolved()
			if !ok {
				continue
			}
			base := fmt.Sprintf("methods[%d].executerCalls[%d].", i, j)
			out = append(out,
				Patch{Path: base + "namespace", Value: owner.Namespace},
				Patch{Path: base + "className", Value: owner.ClassName},
				Patch{Path: base + "isExternal", Value: d.IsExternal},
			)
		}
	}
	return out
}

// upsertEach writes classes one document at a time through write.
func upsertEach(ctx context.Context, classes []*model.ClassRecord, write func(context.Context, string, any) error) error {
	now := time.Now()
	for _, c := range classes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := write(ctx, c.Key(), NewClassDocument(c, now)); err != nil {
			return fmt.Errorf("upsert %s: %w", c.Key(), err)
		}
	}
	return nil
}
