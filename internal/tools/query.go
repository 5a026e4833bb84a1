package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/DeusData/executer-finder/internal/fqn"
	"github.com/DeusData/executer-finder/internal/model"
)

var (
	errNoDocuments = errors.New("no document store configured")
	errNoGraph     = errors.New("graph queries need the sqlite graph backend")
)

type dispatchTarget struct {
	Namespace string `json:"namespace"`
	ClassName string `json:"className"`
	Key       string `json:"key"`
	Source    string `json:"source"`
}

// findDispatchTarget answers from the document store, falling back to the
// graph's method signatures.
func (s *Server) findDispatchTarget(ctx context.Context, args map[string]any) (any, error) {
	sig := model.Signature{
		MethodName:   getStringArg(args, "method_name"),
		RequestType:  getStringArg(args, "request_type"),
		ResponseType: getStringArg(args, "response_type"),
	}
	if !sig.Complete() {
		return nil, errors.New("method_name, request_type and response_type are required")
	}

	var targets []dispatchTarget
	if s.backends != nil && s.backends.Docs != nil {
		owner, ok, err := s.backends.Docs.FindOne(ctx, sig)
		if err != nil {
			return nil, err
		}
		if ok {
			targets = append(targets, dispatchTarget{
				Namespace: owner.Namespace,
				ClassName: owner.ClassName,
				Key:       fqn.MethodKey(owner.Namespace, owner.ClassName, sig.MethodName),
				Source:    "documents",
			})
		}
	}
	if len(targets) == 0 && s.backends != nil && s.backends.SQLite != nil {
		nodes, err := s.backends.SQLite.FindMethodsBySignature(ctx, sig.MethodName, sig.RequestType, sig.ResponseType)
		if err != nil {
			return nil, err
		}
		for _, n := range nodes {
			if fqn.IsSignatureKey(n.QualifiedName) {
				continue
			}
			targets = append(targets, dispatchTarget{
				Namespace: n.Namespace,
				ClassName: n.ClassName,
				Key:       n.QualifiedName,
				Source:    "graph",
			})
		}
	}
	return map[string]any{
		"signature": sig,
		"found":     len(targets) > 0,
		"targets":   targets,
	}, nil
}

func (s *Server) getClass(ctx context.Context, args map[string]any) (any, error) {
	if s.backends == nil || s.backends.Docs == nil {
		return nil, errNoDocuments
	}
	name := getStringArg(args, "class_name")
	if name == "" {
		return nil, errors.New("class_name is required")
	}
	raw, err := s.backends.Docs.Get(ctx, fqn.ClassKey(getStringArg(args, "namespace"), name))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}
