// Package model holds the records produced by source analysis and consumed
// by the graph merge. JSON tags define the persisted document layout.
package model

import (
	"sort"

	"github.com/DeusData/executer-finder/internal/fqn"
)

// Class kinds. Only "class" is produced today.
const (
	KindClass = "class"
)

// ClassRecord describes one class declaration found in a source file.
type ClassRecord struct {
	Namespace  string          `json:"namespace"`
	Name       string          `json:"className"`
	Kind       string          `json:"classType"`
	FilePath   string          `json:"filePath"`
	SourceHash string          `json:"sourceHash,omitempty"`
	Methods    []*MethodRecord `json:"methods"`
}

// Owner returns the class identity.
func (c *ClassRecord) Owner() Owner {
	return Owner{Namespace: c.Namespace, ClassName: c.Name}
}

// Key returns the document/graph key "<ns>::<class>".
func (c *ClassRecord) Key() string {
	return fqn.ClassKey(c.Namespace, c.Name)
}

// MethodRecord describes one method declared directly in a class body.
type MethodRecord struct {
	Name             string          `json:"name"`
	RequestType      string          `json:"requestType"`
	ResponseType     string          `json:"responseType"`
	DispatchCalls    []*DispatchCall `json:"executerCalls"`
	InvokedMethods   []InvokedMethod `json:"invokedMethods"`
	StoredProcedures []string        `json:"storedProcedures"`
}

// Signature returns the (name, request, response) triple of the method.
func (m *MethodRecord) Signature() Signature {
	return Signature{MethodName: m.Name, RequestType: m.RequestType, ResponseType: m.ResponseType}
}

// Normalize deduplicates invoked methods and stored procedures, keeping the
// first occurrence of each, and replaces nil slices with empty ones so the
// persisted layout is stable.
func (m *MethodRecord) Normalize() {
	seen := make(map[InvokedMethod]struct{}, len(m.InvokedMethods))
	invoked := m.InvokedMethods[:0]
	for _, im := range m.InvokedMethods {
		if _, dup := seen[im]; dup {
			continue
		}
		seen[im] = struct{}{}
		invoked = append(invoked, im)
	}
	m.InvokedMethods = invoked

	procSeen := make(map[string]struct{}, len(m.StoredProcedures))
	procs := m.StoredProcedures[:0]
	for _, p := range m.StoredProcedures {
		if _, dup := procSeen[p]; dup {
			continue
		}
		procSeen[p] = struct{}{}
		procs = append(procs, p)
	}
	m.StoredProcedures = procs

	if m.DispatchCalls == nil {
		m.DispatchCalls = []*DispatchCall{}
	}
	if m.InvokedMethods == nil {
		m.InvokedMethods = []InvokedMethod{}
	}
	if m.StoredProcedures == nil {
		m.StoredProcedures = []string{}
	}
}

// DispatchCall is one occurrence of a generic dispatch call
// Dispatcher<TRequest, TResponse>.Execute(request) inside a method.
type DispatchCall struct {
	RequestType         string `json:"requestType"`
	ResponseType        string `json:"responseType"`
	MethodName          string `json:"methodName"`
	RequestVariableName string `json:"requestVariableName"`
	DispatchMethod      string `json:"dispatchMethod,omitempty"`
	Namespace           string `json:"namespace,omitempty"`
	ClassName           string `json:"className,omitempty"`
	IsExternal          bool   `json:"isExternal"`

	resolved bool
}

// Signature returns the target signature: operation name plus the
// request/response type arguments.
func (d *DispatchCall) Signature() Signature {
	return Signature{MethodName: d.MethodName, RequestType: d.RequestType, ResponseType: d.ResponseType}
}

// Resolve records the owner of the dispatch target. Only the first call has
// any effect; it reports whether the fields were set.
func (d *DispatchCall) Resolve(owner Owner, external bool) bool {
	if d.resolved || owner.ClassName == "" {
		return false
	}
	d.Namespace = owner.Namespace
	d.ClassName = owner.ClassName
	d.IsExternal = external
	d.resolved = true
	return true
}

// Resolved returns the target owner, if one was recorded.
func (d *DispatchCall) Resolved() (Owner, bool) {
	if !d.resolved {
		return Owner{}, false
	}
	return Owner{Namespace: d.Namespace, ClassName: d.ClassName}, true
}

// InvokedMethod is an ordinary member call resolved to a domain type.
type InvokedMethod struct {
	Namespace  string `json:"namespace"`
	ClassName  string `json:"className"`
	MethodName string `json:"methodName"`
}

// Owner identifies a class by namespace and simple name.
type Owner struct {
	Namespace string `json:"namespace"`
	ClassName string `json:"className"`
}

// Key returns the class key of the owner.
func (o Owner) Key() string {
	return fqn.ClassKey(o.Namespace, o.ClassName)
}

// Signature is the lookup triple used to find a dispatch target.
type Signature struct {
	MethodName   string `json:"methodName"`
	RequestType  string `json:"requestType"`
	ResponseType string `json:"responseType"`
}

// Complete reports whether every part of the signature is known.
func (s Signature) Complete() bool {
	return s.MethodName != "" && s.RequestType != "" && s.ResponseType != ""
}

// SortClasses orders classes by file path, then namespace, then name.
func SortClasses(classes []*ClassRecord) {
	sort.SliceStable(classes, func(i, j int) bool {
		a, b := classes[i], classes[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.Namespace != b.Namespace {
			return a.Namespace < b.Namespace
		}
		return a.Name < b.Name
	})
}

// MergePartials folds class records that share a key (partial classes split
// over several files) into one record per key, keeping the first record's
// file path and hash and appending methods in input order. Records without
// a duplicate are returned unchanged; the inputs are never modified.
func MergePartials(classes []*ClassRecord) []*ClassRecord {
	byKey := make(map[string]int, len(classes))
	out := make([]*ClassRecord, 0, len(classes))
	copied := make(map[int]bool)
	for _, c := range classes {
		i, dup := byKey[c.Key()]
		if !dup {
			byKey[c.Key()] = len(out)
			out = append(out, c)
			continue
		}
		if !copied[i] {
			merged := *out[i]
			merged.Methods = append([]*MethodRecord(nil), out[i].Methods...)
			out[i] = &merged
			copied[i] = true
		}
		out[i].Methods = append(out[i].Methods, c.Methods...)
	}
	return out
}

// Stats summarizes a set of class records.
type Stats struct {
	Classes          int `json:"classes"`
	Methods          int `json:"methods"`
	DispatchCalls    int `json:"dispatch_calls"`
	InvokedMethods   int `json:"invoked_methods"`
	StoredProcedures int `json:"stored_procedures"`
}

// Summarize counts the records in classes.
func Summarize(classes []*ClassRecord) Stats {
	var s Stats
	s.Classes = len(classes)
	for _, c := range classes {
		s.Methods += len(c.Methods)
		for _, m := range c.Methods {
			s.DispatchCalls += len(m.DispatchCalls)
			s.InvokedMethods += len(m.InvokedMethods)
			s.StoredProcedures += len(m.StoredProcedures)
		}
	}
	return s
}
